package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/model"
)

//go:embed template/interviewer_prompt.txt
var interviewerDirective string

// RenderInterviewerDirective renders the interviewer directive via the Eino
// prompt component, which also triggers prompt callbacks. The cue phrases are
// the ones the extractor will look for in the final summary.
func RenderInterviewerDirective(ctx context.Context, config model.InterviewerPromptConfig, cues parsers.CueSet) (string, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(interviewerDirective),
	)
	vars := map[string]any{
		"AgencyName":    config.AgencyName,
		"AssistantName": config.AssistantName,
		"Cues":          cues.Cues,
	}
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("interviewer directive render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("interviewer directive render: empty result")
	}
	return msgs[0].Content, nil
}
