package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/aegis-safety/intake/internal/agent/model"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	Backend     model.BackendConfig
	Interviewer *model.InterviewerModelConfig
}

// ChatModels holds the interviewer chat model behind the resilience wrapper.
type ChatModels struct {
	Interviewer          einomodel.BaseChatModel
	InterviewerModelName string
}

// NewChatModels creates the interviewer chat model for the configured provider.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	if config.Interviewer == nil {
		return nil, fmt.Errorf("interviewer model config is nil")
	}

	var (
		base einomodel.BaseChatModel
		err  error
	)
	provider := strings.ToLower(strings.TrimSpace(config.Backend.Provider))
	switch provider {
	case "", ProviderGemini:
		base, err = newGeminiChatModel(ctx, config.Backend, config.Interviewer)
	case ProviderOpenAI:
		base, err = NewOpenAIChatModel(OpenAIChatModelConfig{
			APIKey:      config.Backend.OpenAIAPIKey,
			BaseURL:     config.Backend.OpenAIBaseURL,
			Model:       config.Interviewer.Model,
			MaxTokens:   config.Interviewer.MaxTokens,
			Temperature: &config.Interviewer.Temperature,
		})
	default:
		return nil, fmt.Errorf("unknown backend provider %q", config.Backend.Provider)
	}
	if err != nil {
		logx.Error().Err(err).Str("provider", provider).Msg("Error creating interviewer model")
		return nil, fmt.Errorf("error creating interviewer model: %w", err)
	}

	logx.Debug().
		Str("provider", provider).
		Str("model", config.Interviewer.Model).
		Int("max_retries", config.Backend.MaxRetries).
		Msg("Interviewer model ready")

	return &ChatModels{
		Interviewer:          NewResilientChatModel(base, config.Backend.MaxRetries),
		InterviewerModelName: config.Interviewer.Model,
	}, nil
}

func newGeminiChatModel(ctx context.Context, backend model.BackendConfig, cfg *model.InterviewerModelConfig) (*gemini.ChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  backend.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if backend.GeminiBaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = backend.GeminiBaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	return gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(int32(1024)),
		},
	})
}
