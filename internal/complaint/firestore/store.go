// Package firestore stores complaints and emergency contacts in Cloud
// Firestore, in the "complaints" and "emergencyContacts" collections.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/complaint"
	errx "github.com/aegis-safety/intake/internal/core/error"
)

const (
	complaintsCollection = "complaints"
	contactsCollection   = "emergencyContacts"
)

type Store struct {
	client *firestore.Client
	now    func() time.Time
}

// NewStore creates a Firestore store for projectID. FIRESTORE_EMULATOR_HOST
// is honoured by the client.
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &Store{client: client, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type complaintDoc struct {
	Title        string            `firestore:"title"`
	Description  string            `firestore:"description"`
	Status       string            `firestore:"status"`
	DateFiled    string            `firestore:"dateFiled"`
	SessionID    string            `firestore:"sessionId"`
	Name         string            `firestore:"name"`
	Phone        string            `firestore:"phone"`
	Location     string            `firestore:"location"`
	IncidentDate string            `firestore:"incidentDate"`
	Transcript   []transcriptEntry `firestore:"transcript"`
	TurnCount    int               `firestore:"turnCount"`
}

type transcriptEntry struct {
	ID      int    `firestore:"id"`
	Role    string `firestore:"role"`
	Message string `firestore:"message"`
}

// contactDoc is either a single contact or, when Contacts is set, a saved
// emergency list.
type contactDoc struct {
	Name        string         `firestore:"name,omitempty"`
	Mobile      string         `firestore:"mobile,omitempty"`
	IsEmergency bool           `firestore:"isEmergency"`
	Contacts    []batchContact `firestore:"contacts,omitempty"`
	Timestamp   time.Time      `firestore:"timestamp"`
}

type batchContact struct {
	Name   string `firestore:"name"`
	Mobile string `firestore:"mobile"`
}

func toRecord(id string, d complaintDoc) complaint.Record {
	r := complaint.Record{
		ID:           id,
		Title:        d.Title,
		Description:  d.Description,
		Status:       d.Status,
		SessionID:    d.SessionID,
		Name:         d.Name,
		Phone:        d.Phone,
		Location:     d.Location,
		IncidentDate: d.IncidentDate,
		TurnCount:    d.TurnCount,
	}
	// dateFiled is a display string in older documents
	if t, err := time.Parse(time.RFC3339, d.DateFiled); err == nil {
		r.DateFiled = t
	}
	for _, e := range d.Transcript {
		r.Transcript = append(r.Transcript, model.TranscriptEntry{ID: e.ID, Role: model.ParseTurnRole(e.Role), Message: e.Message})
	}
	return r
}

// ─────────────────────────────────────────
// Complaints
// ─────────────────────────────────────────

func (s *Store) CreateComplaint(ctx context.Context, in complaint.NewComplaint) (*complaint.Record, error) {
	filed := s.now().UTC()
	doc := complaintDoc{
		Title:        in.Title,
		Description:  in.Description,
		Status:       complaint.Raised.Label,
		DateFiled:    filed.Format(time.RFC3339),
		SessionID:    in.SessionID,
		Name:         in.Name,
		Phone:        in.Phone,
		Location:     in.Location,
		IncidentDate: in.IncidentDate,
		TurnCount:    len(in.Transcript),
	}
	for _, e := range in.Transcript {
		doc.Transcript = append(doc.Transcript, transcriptEntry{ID: e.ID, Role: string(e.Role), Message: e.Message})
	}

	ref, _, err := s.client.Collection(complaintsCollection).Add(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("firestore CreateComplaint: %w", err)
	}
	rec := toRecord(ref.ID, doc)
	return &rec, nil
}

func (s *Store) ListComplaints(ctx context.Context) ([]complaint.Record, error) {
	iter := s.client.Collection(complaintsCollection).Documents(ctx)
	defer iter.Stop()

	out := []complaint.Record{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListComplaints: %w", err)
		}
		var doc complaintDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode complaintDoc: %w", err)
		}
		out = append(out, toRecord(snap.Ref.ID, doc))
	}
	return out, nil
}

func (s *Store) GetComplaint(ctx context.Context, id string) (*complaint.Record, error) {
	snap, err := s.client.Collection(complaintsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errx.NotFound("complaint")
		}
		return nil, fmt.Errorf("firestore GetComplaint: %w", err)
	}
	var doc complaintDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetComplaint decode: %w", err)
	}
	rec := toRecord(snap.Ref.ID, doc)
	return &rec, nil
}

func (s *Store) UpdateComplaintStatus(ctx context.Context, id, newStatus string) (*complaint.Record, error) {
	_, err := s.client.Collection(complaintsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "status", Value: newStatus},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errx.NotFound("complaint")
		}
		return nil, fmt.Errorf("firestore UpdateComplaintStatus: %w", err)
	}
	return s.GetComplaint(ctx, id)
}

// ─────────────────────────────────────────
// Contacts
// ─────────────────────────────────────────

func (s *Store) AddContact(ctx context.Context, c complaint.Contact) (*complaint.Contact, error) {
	c.CreatedAt = s.now().UTC()
	ref, _, err := s.client.Collection(contactsCollection).Add(ctx, contactDoc{
		Name:        c.Name,
		Mobile:      c.Mobile,
		IsEmergency: c.IsEmergency,
		Timestamp:   c.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("firestore AddContact: %w", err)
	}
	c.ID = ref.ID
	return &c, nil
}

func (s *Store) CreateContactBatch(ctx context.Context, contacts []complaint.Contact) (*complaint.ContactBatch, error) {
	created := s.now().UTC()
	doc := contactDoc{IsEmergency: true, Timestamp: created}
	for _, c := range contacts {
		doc.Contacts = append(doc.Contacts, batchContact{Name: c.Name, Mobile: c.Mobile})
	}

	ref, _, err := s.client.Collection(contactsCollection).Add(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("firestore CreateContactBatch: %w", err)
	}
	return &complaint.ContactBatch{
		ID:        ref.ID,
		Contacts:  batchMembers(ref.ID, doc),
		CreatedAt: created,
	}, nil
}

func (s *Store) ListContacts(ctx context.Context) ([]complaint.Contact, error) {
	iter := s.client.Collection(contactsCollection).OrderBy("timestamp", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := []complaint.Contact{}
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore ListContacts: %w", err)
		}
		var doc contactDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode contactDoc: %w", err)
		}
		if len(doc.Contacts) > 0 {
			out = append(out, batchMembers(snap.Ref.ID, doc)...)
			continue
		}
		if doc.Name == "" || doc.Mobile == "" {
			continue
		}
		out = append(out, complaint.Contact{
			ID:          snap.Ref.ID,
			Name:        doc.Name,
			Mobile:      doc.Mobile,
			IsEmergency: doc.IsEmergency,
			CreatedAt:   doc.Timestamp,
		})
	}
	return out, nil
}

// batchMembers flattens a saved list; members without a name or mobile are
// skipped but keep their index in the id.
func batchMembers(docID string, doc contactDoc) []complaint.Contact {
	out := make([]complaint.Contact, 0, len(doc.Contacts))
	for i, c := range doc.Contacts {
		if c.Name == "" || c.Mobile == "" {
			continue
		}
		out = append(out, complaint.Contact{
			ID:          fmt.Sprintf("%s-%d", docID, i),
			Name:        c.Name,
			Mobile:      c.Mobile,
			IsEmergency: true,
			CreatedAt:   doc.Timestamp,
		})
	}
	return out
}

var _ complaint.Store = (*Store)(nil)
