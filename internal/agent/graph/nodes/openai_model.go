package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIChatModelConfig configures the OpenAI chat completions backend.
type OpenAIChatModelConfig struct {
	APIKey      string
	BaseURL     string // Optional: for proxies and compatible gateways
	Model       string
	MaxTokens   int
	Temperature *float32
}

type openaiChatCompletions interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAIChatModel serves the eino chat model contract over the OpenAI chat
// completions API. It makes exactly one request per Generate; retries belong
// to ResilientChatModel.
type OpenAIChatModel struct {
	completions openaiChatCompletions
	model       string
	maxTokens   int
	temperature *float32
}

func NewOpenAIChatModel(cfg OpenAIChatModelConfig) (*OpenAIChatModel, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai: api key required")
	}
	modelName := strings.TrimSpace(cfg.Model)
	if modelName == "" {
		return nil, errors.New("openai: model required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)

	return &OpenAIChatModel{
		completions: &client.Chat.Completions,
		model:       modelName,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (m *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	options := einomodel.GetCommonOptions(&einomodel.Options{
		Model:       &m.model,
		MaxTokens:   &m.maxTokens,
		Temperature: m.temperature,
	}, opts...)

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(*options.Model),
		Messages: toOpenAIMessages(input),
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(*options.MaxTokens))
	}
	if options.Temperature != nil {
		params.Temperature = openai.Float(float64(*options.Temperature))
	}

	completion, err := m.completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if completion == nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: completion has no choices")
	}

	choice := completion.Choices[0]
	return &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: choice.FinishReason,
			Usage: &schema.TokenUsage{
				PromptTokens:     int(completion.Usage.PromptTokens),
				CompletionTokens: int(completion.Usage.CompletionTokens),
				TotalTokens:      int(completion.Usage.TotalTokens),
			},
		},
	}, nil
}

func (m *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

// toOpenAIMessages keeps message order; system messages stay where they are,
// so a trailing directive is sent last.
func toOpenAIMessages(msgs []*schema.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, msg := range msgs {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			out = append(out, openai.SystemMessage(msg.Content))
		case schema.Assistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
