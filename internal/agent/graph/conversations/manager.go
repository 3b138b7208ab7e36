package conversations

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/aegis-safety/intake/internal/agent/model"
)

// MessagesManager owns the per-session transcript as seen by the dispatcher:
// it appends turns and builds the request sent to the backend.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
}

func NewMessagesManager(conversationRepo model.ConversationRepository) *MessagesManager {
	return &MessagesManager{conversationRepo: conversationRepo}
}

// ProcessUserTurn appends the user turn and returns the backend request: the
// full transcript, oldest first, followed by the directive as a trailing
// system message. The directive is never stored.
func (cm *MessagesManager) ProcessUserTurn(ctx context.Context, sessionID, text, directive string) ([]*schema.Message, error) {
	if err := cm.conversationRepo.AppendTurn(ctx, sessionID, model.UserTurn(text)); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	transcript, err := cm.conversationRepo.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	messages := transcript.Messages()
	messages = append(messages, schema.SystemMessage(directive))
	return messages, nil
}

// SaveResponse appends the assistant turn.
func (cm *MessagesManager) SaveResponse(ctx context.Context, sessionID, content string) error {
	return cm.conversationRepo.AppendTurn(ctx, sessionID, model.AssistantTurn(content))
}

func (cm *MessagesManager) Transcript(ctx context.Context, sessionID string) ([]model.Turn, error) {
	transcript, err := cm.conversationRepo.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if transcript == nil {
		return nil, nil
	}
	return transcript.Turns, nil
}
