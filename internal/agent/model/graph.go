package model

// AppState stores per-invocation state for the Eino Graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside Eino state handlers:
//     WithStatePreHandler, WithStatePostHandler, or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex/atomic is required as long as you never touch it outside handlers.
//   - The session transcript is not held here; it lives in the
//     ConversationRepository so that it survives across invocations.
type AppState struct {
	SessionID string

	// Accumulated total LLM cost (USD) across model invocations for this submission
	TotalCostUSD float64
}

// SubmitInput is the input of one dispatch.
type SubmitInput struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}
