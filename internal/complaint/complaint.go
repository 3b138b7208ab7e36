// Package complaint holds complaint records, the emergency contact book and
// the stage machine that reads complaint status.
package complaint

import (
	"context"
	"time"

	"github.com/aegis-safety/intake/internal/agent/model"
)

// Record is a stored complaint. Status is free text owned by the store;
// StageOf interprets it.
type Record struct {
	ID           string                  `json:"id"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description"`
	Status       string                  `json:"status"`
	DateFiled    time.Time               `json:"date_filed"`
	SessionID    string                  `json:"session_id,omitempty"`
	Name         string                  `json:"name,omitempty"`
	Phone        string                  `json:"phone,omitempty"`
	Location     string                  `json:"location,omitempty"`
	IncidentDate string                  `json:"incident_date,omitempty"`
	Transcript   []model.TranscriptEntry `json:"transcript,omitempty"`
	TurnCount    int                     `json:"turn_count"`
}

// Stage is the progress stage of the record's current status.
func (r Record) Stage() Stage {
	return StageOf(r.Status)
}

// NewComplaint is the input of CreateComplaint; stores assign ID, Status and
// DateFiled.
type NewComplaint struct {
	Title        string
	Description  string
	SessionID    string
	Name         string
	Phone        string
	Location     string
	IncidentDate string
	Transcript   []model.TranscriptEntry
}

// NewComplaintFrom builds a complaint from an extraction.
func NewComplaintFrom(sessionID string, ex model.ExtractedComplaint) NewComplaint {
	title := "Complaint"
	if ex.Name != "" {
		title = "Complaint by " + ex.Name
	}
	return NewComplaint{
		Title:        title,
		Description:  ex.Report,
		SessionID:    sessionID,
		Name:         ex.Name,
		Phone:        ex.Phone,
		Location:     ex.Location,
		IncidentDate: ex.IncidentDate,
		Transcript:   ex.Transcript,
	}
}

type Contact struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Mobile      string    `json:"mobile"`
	IsEmergency bool      `json:"is_emergency"`
	CreatedAt   time.Time `json:"created_at"`
}

// ContactBatch is a saved emergency contact list.
type ContactBatch struct {
	ID        string    `json:"id"`
	Contacts  []Contact `json:"contacts"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists complaints and contacts. Implementations must be safe for
// concurrent use; missing records are reported as errx NotFound.
type Store interface {
	CreateComplaint(ctx context.Context, in NewComplaint) (*Record, error)
	ListComplaints(ctx context.Context) ([]Record, error)
	GetComplaint(ctx context.Context, id string) (*Record, error)
	UpdateComplaintStatus(ctx context.Context, id, status string) (*Record, error)

	AddContact(ctx context.Context, c Contact) (*Contact, error)
	CreateContactBatch(ctx context.Context, contacts []Contact) (*ContactBatch, error)
	// ListContacts returns single contacts and the members of every batch,
	// oldest first. Batch members get the id "<batch id>-<index>".
	ListContacts(ctx context.Context) ([]Contact, error)

	Close() error
}
