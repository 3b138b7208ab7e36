package model

import (
	"context"
	"time"
)

// DeclineNotice is shown when the user refuses consent.
const DeclineNotice = "Please accept the consent to proceed and talk to the AI."

// Consent is the admission gate in front of a session's transcript.
// Declining never revokes an earlier grant and never clears the transcript.
type Consent struct {
	Granted bool   `json:"granted"`
	Notice  string `json:"notice,omitempty"`
}

func (c *Consent) Admitted() bool {
	return c.Granted
}

func (c *Consent) Grant() {
	c.Granted = true
	c.Notice = ""
}

// Decline refreshes the user-visible notice and returns it.
func (c *Consent) Decline() string {
	c.Notice = DeclineNotice
	return c.Notice
}

// Session is one intake interaction. Its transcript lives in the
// ConversationRepository under the same id.
type Session struct {
	ID        string    `json:"id"`
	Consent   Consent   `json:"consent"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionRepository interface {
	// SaveSession creates or replaces a session
	SaveSession(ctx context.Context, session *Session) error

	// GetSession returns the session or a not_found AppError
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// DeleteSession evicts the session together with its transcript
	DeleteSession(ctx context.Context, sessionID string) error
}
