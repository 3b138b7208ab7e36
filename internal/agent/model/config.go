package model

// ================ Config ================
type ConversationConfig struct {
	TTL           string `envconfig:"CONVERSATION_TTL" default:"30m"`
	SweepSchedule string `envconfig:"CONVERSATION_SWEEP_SCHEDULE" default:"@every 1m"`
}

type BackendConfig struct {
	Provider   string `envconfig:"BACKEND_PROVIDER" default:"gemini"`
	MaxRetries int    `envconfig:"BACKEND_MAX_RETRIES" default:"0"`

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL string `envconfig:"GEMINI_BASE_URL"`
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
}

type InterviewerModelConfig struct {
	Model       string  `envconfig:"INTERVIEWER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"INTERVIEWER_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"INTERVIEWER_TEMPERATURE" default:"0.4"`
}

type InterviewerPromptConfig struct {
	AgencyName    string `envconfig:"PROMPT_AGENCY_NAME" default:"the cybercrime cell"`
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Aegis"`
}

type ExtractionConfig struct {
	CuesFile string `envconfig:"EXTRACTION_CUES_FILE"`
}
