package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/aegis-safety/intake/internal/agent/model"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

// ===== Small helpers to keep handlers simple/readable =====
// recordUsageCost computes the USD cost of one model call, attaches it to the
// message Extra and accumulates the total into state. It is a no-op when the
// backend reported no usage.
func recordUsageCost(out *schema.Message, state *model.AppState, node, modelName string) {
	if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	pricing := model.ResolvePricing(modelName)
	inC, outC, totalC := model.ComputeCost(usage, pricing)

	if out.Extra == nil {
		out.Extra = map[string]any{}
	}
	out.Extra["usage_cost"] = map[string]any{
		"currency":          "USD",
		"model":             modelName,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
		"input_cost":        inC,
		"output_cost":       outC,
		"total_cost":        totalC,
	}
	logx.Debug().
		Str("session_id", state.SessionID).
		Str("node", node).
		Str("model", modelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens).
		Float64("input_cost_usd", inC).
		Float64("output_cost_usd", outC).
		Float64("total_cost_usd", totalC).
		Msg("LLM usage")

	// Accumulate only total cost into state
	state.TotalCostUSD += totalC
	out.Extra["usage_cost_total_usd"] = state.TotalCostUSD
}
