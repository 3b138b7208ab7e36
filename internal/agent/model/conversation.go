package model

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"
)

// TurnRole tags who produced a turn.
type TurnRole string

const (
	RoleUser      TurnRole = "user"
	RoleAssistant TurnRole = "assistant"
)

// Turn is one role-tagged message of a conversation. Turns are never
// modified after they are appended.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

func UserTurn(content string) Turn {
	return Turn{Role: RoleUser, Content: content}
}

func AssistantTurn(content string) Turn {
	return Turn{Role: RoleAssistant, Content: content}
}

// Message converts the turn to the eino message sent to the backend.
func (t Turn) Message() *schema.Message {
	if t.Role == RoleAssistant {
		return schema.AssistantMessage(t.Content, nil)
	}
	return schema.UserMessage(t.Content)
}

// ParseTurnRole maps free-form role names onto the two known roles.
// Anything that is not an assistant alias is treated as the user.
func ParseTurnRole(v string) TurnRole {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "assistant", "bot", "agent":
		return RoleAssistant
	default:
		return RoleUser
	}
}

type ConversationRepository interface {
	// AppendTurn adds a turn to the end of the session's transcript
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error

	// LoadTranscript retrieves the full transcript of a session, oldest first
	LoadTranscript(ctx context.Context, sessionID string) (*Transcript, error)

	// ClearTranscript removes all turns of a session
	ClearTranscript(ctx context.Context, sessionID string) error

	// CountTurns returns the number of turns in the session's transcript
	CountTurns(ctx context.Context, sessionID string) (int, error)
}

// Transcript represents a loaded conversation with its session id.
type Transcript struct {
	SessionID string
	Turns     []Turn
}

// Messages converts the transcript to eino messages, preserving order.
func (t *Transcript) Messages() []*schema.Message {
	if t == nil {
		return nil
	}
	msgs := make([]*schema.Message, 0, len(t.Turns))
	for _, turn := range t.Turns {
		msgs = append(msgs, turn.Message())
	}
	return msgs
}
