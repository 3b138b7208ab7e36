// Package intake runs complaint intake sessions: the consent gate, the
// conversation with the interviewer, and turning the finished conversation
// into a stored complaint.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/complaint"
	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

// Dispatcher sends one user submission to the reasoning backend and returns
// the reply. graph.Runner satisfies it.
type Dispatcher interface {
	Submit(ctx context.Context, sessionID, text string) (string, error)
}

type Deps struct {
	Sessions      model.SessionRepository
	Conversations model.ConversationRepository
	Dispatcher    Dispatcher
	Extractor     *parsers.Extractor
	Complaints    complaint.Store
}

type Service struct {
	sessions      model.SessionRepository
	conversations model.ConversationRepository
	dispatcher    Dispatcher
	extractor     *parsers.Extractor
	complaints    complaint.Store
	now           func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session repository is nil")
	case deps.Conversations == nil:
		return nil, fmt.Errorf("conversation repository is nil")
	case deps.Dispatcher == nil:
		return nil, fmt.Errorf("dispatcher is nil")
	case deps.Complaints == nil:
		return nil, fmt.Errorf("complaint store is nil")
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = parsers.MustNewExtractor(parsers.DefaultCues())
	}
	return &Service{
		sessions:      deps.Sessions,
		conversations: deps.Conversations,
		dispatcher:    deps.Dispatcher,
		extractor:     extractor,
		complaints:    deps.Complaints,
		now:           time.Now,
	}, nil
}

// ================ Sessions ================

// StartSession creates a session with the consent gate closed.
func (s *Service) StartSession(ctx context.Context) (*model.Session, error) {
	now := s.now().UTC()
	sess := &model.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	logx.Info().Str("session_id", sess.ID).Msg("Session started")
	return sess, nil
}

func (s *Service) Session(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.sessions.GetSession(ctx, sessionID)
}

// EndSession evicts the session and its transcript.
func (s *Service) EndSession(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return err
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	logx.Info().Str("session_id", sessionID).Msg("Session ended")
	return nil
}

func (s *Service) GrantConsent(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.updateSession(ctx, sessionID, func(sess *model.Session) {
		sess.Consent.Grant()
	})
}

// DeclineConsent only refreshes the notice. An earlier grant and the
// transcript are kept.
func (s *Service) DeclineConsent(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.updateSession(ctx, sessionID, func(sess *model.Session) {
		sess.Consent.Decline()
	})
}

func (s *Service) updateSession(ctx context.Context, sessionID string, fn func(*model.Session)) (*model.Session, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	fn(sess)
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ================ Conversation ================

// Submit forwards text to the interviewer once the consent gate is open.
// Before that the backend is never contacted and the transcript is left
// untouched.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (string, error) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !sess.Consent.Admitted() {
		return "", errx.ConsentRequired(sess.Consent.Notice)
	}

	reply, err := s.dispatcher.Submit(ctx, sessionID, text)

	if !errx.IsKind(err, errx.KindEmptyInput) {
		s.touchSession(ctx, sessionID)
	}
	return reply, err
}

// touchSession keeps a used session alive. A session ended or evicted while
// the backend was answering stays gone, and turns stored for it meanwhile
// are dropped.
func (s *Service) touchSession(ctx context.Context, sessionID string) {
	sess, err := s.sessions.GetSession(ctx, sessionID)
	if errx.IsKind(err, errx.KindNotFound) {
		if cerr := s.conversations.ClearTranscript(ctx, sessionID); cerr != nil {
			logx.Warn().Err(cerr).Str("session_id", sessionID).Msg("Failed to drop transcript of ended session")
		}
		logx.Info().Str("session_id", sessionID).Msg("Session ended during dispatch")
		return
	}
	if err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to refresh session")
		return
	}
	sess.UpdatedAt = s.now().UTC()
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		logx.Warn().Err(err).Str("session_id", sessionID).Msg("Failed to refresh session")
	}
}

func (s *Service) Transcript(ctx context.Context, sessionID string) ([]model.Turn, error) {
	if _, err := s.sessions.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	tr, err := s.conversations.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if tr == nil || tr.Turns == nil {
		return []model.Turn{}, nil
	}
	return tr.Turns, nil
}

// Extract previews what RaiseComplaint would store.
func (s *Service) Extract(ctx context.Context, sessionID string) (model.ExtractedComplaint, error) {
	turns, err := s.Transcript(ctx, sessionID)
	if err != nil {
		return model.ExtractedComplaint{}, err
	}
	return s.extractor.Extract(turns), nil
}

// RaiseComplaint extracts the complete transcript and files it with status
// Raised. Fields the final summary lacks are stored empty.
func (s *Service) RaiseComplaint(ctx context.Context, sessionID string) (*complaint.Record, model.ExtractedComplaint, error) {
	ex, err := s.Extract(ctx, sessionID)
	if err != nil {
		return nil, ex, err
	}
	if ex.TurnCount == 0 {
		return nil, ex, errx.InvalidInput("the conversation is empty")
	}

	rec, err := s.complaints.CreateComplaint(ctx, complaint.NewComplaintFrom(sessionID, ex))
	if err != nil {
		return nil, ex, err
	}

	ev := logx.Info().
		Str("session_id", sessionID).
		Str("complaint_id", rec.ID).
		Int("turn_count", ex.TurnCount)
	if len(ex.Missing) > 0 {
		ev = ev.Strs("missing", ex.Missing)
	}
	ev.Msg("Complaint raised")
	return rec, ex, nil
}

// ================ Complaints ================

func (s *Service) ListComplaints(ctx context.Context) ([]complaint.Record, error) {
	return s.complaints.ListComplaints(ctx)
}

func (s *Service) Complaint(ctx context.Context, id string) (*complaint.Record, error) {
	return s.complaints.GetComplaint(ctx, id)
}

// UpdateComplaintStatus moves a complaint to the stage named by status,
// canonical label or legacy alias, and stores the canonical label.
func (s *Service) UpdateComplaintStatus(ctx context.Context, id, status string) (*complaint.Record, error) {
	stage, ok := complaint.LookupStage(strings.TrimSpace(status))
	if !ok {
		return nil, errx.InvalidInput(fmt.Sprintf("unknown complaint status %q", status))
	}
	rec, err := s.complaints.UpdateComplaintStatus(ctx, id, stage.Label)
	if err != nil {
		return nil, err
	}
	logx.Info().Str("complaint_id", id).Str("status", stage.Label).Msg("Complaint status updated")
	return rec, nil
}

// ================ Contacts ================

func (s *Service) AddContact(ctx context.Context, c complaint.Contact) (*complaint.Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Mobile = strings.TrimSpace(c.Mobile)
	if c.Name == "" || c.Mobile == "" {
		return nil, errx.InvalidInput("contact name and mobile are required")
	}
	return s.complaints.AddContact(ctx, c)
}

func (s *Service) CreateContactBatch(ctx context.Context, contacts []complaint.Contact) (*complaint.ContactBatch, error) {
	if len(contacts) == 0 {
		return nil, errx.InvalidInput("a contact list needs at least one contact")
	}
	for i := range contacts {
		contacts[i].Name = strings.TrimSpace(contacts[i].Name)
		contacts[i].Mobile = strings.TrimSpace(contacts[i].Mobile)
		if contacts[i].Name == "" || contacts[i].Mobile == "" {
			return nil, errx.InvalidInput(fmt.Sprintf("contact %d: name and mobile are required", i))
		}
	}
	return s.complaints.CreateContactBatch(ctx, contacts)
}

func (s *Service) ListContacts(ctx context.Context) ([]complaint.Contact, error) {
	return s.complaints.ListContacts(ctx)
}
