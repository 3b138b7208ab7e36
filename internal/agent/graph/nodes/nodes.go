package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/aegis-safety/intake/internal/agent/graph/conversations"
	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/graph/prompts"
	"github.com/aegis-safety/intake/internal/agent/model"
	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

// NewRequestAssemblerPreHandler creates the pre-handler for RequestAssembler node
func NewRequestAssemblerPreHandler() func(context.Context, model.SubmitInput, *model.AppState) (model.SubmitInput, error) {
	return func(ctx context.Context, in model.SubmitInput, s *model.AppState) (model.SubmitInput, error) {
		s.SessionID = in.SessionID
		// Reset accumulated total cost for each new submission
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewRequestAssemblerNode appends the user turn and builds the backend
// request: the whole transcript plus the interviewer directive as a trailing
// system message. The directive is rendered and sent on every call.
func NewRequestAssemblerNode(
	mm *conversations.MessagesManager,
	promptCfg *model.InterviewerPromptConfig,
	cues parsers.CueSet,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.SubmitInput) ([]*schema.Message, error) {
		directive, err := prompts.RenderInterviewerDirective(ctx, *promptCfg, cues)
		if err != nil {
			return nil, fmt.Errorf("render interviewer directive: %w", err)
		}

		messages, err := mm.ProcessUserTurn(ctx, input.SessionID, input.Text, directive)
		if err != nil {
			return nil, err
		}

		logx.Debug().
			Str("session_id", input.SessionID).
			Int("message_count", len(messages)).
			Msg("Backend request assembled")
		return messages, nil
	})
}

// NewInterviewerChatModelPostHandler computes usage cost and appends the
// reply to the transcript. A reply that cannot be stored fails the dispatch.
func NewInterviewerChatModelPostHandler(
	mm *conversations.MessagesManager,
	modelName string,
) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if out == nil {
			return nil, errx.Backend(nil, 0, emptyReplyMessage)
		}
		recordUsageCost(out, state, NodeInterviewerChatModel, modelName)

		if err := mm.SaveResponse(ctx, state.SessionID, out.Content); err != nil {
			logx.Error().
				Str("session_id", state.SessionID).
				Err(err).
				Msg("Error saving assistant reply")
			return nil, fmt.Errorf("save assistant reply: %w", err)
		}

		logx.Debug().
			Str("session_id", state.SessionID).
			Msg("AI response ready")
		return out, nil
	}
}
