package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aegis-safety/intake/internal/agent/graph/conversations"
	"github.com/aegis-safety/intake/internal/agent/graph/nodes"
	"github.com/aegis-safety/intake/internal/agent/graph/observers"
	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/model"
	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

const tracerName = "github.com/aegis-safety/intake/internal/agent/graph"

// Runner dispatches one user submission to the reasoning backend.
type Runner interface {
	Submit(ctx context.Context, sessionID, text string) (string, error)
}

// Config holds everything needed to compose the dispatch graph end-to-end.
// This is a convenience layer over GraphConfig that also constructs the chat
// model and the MessagesManager.
type Config struct {
	Backend          model.BackendConfig
	InterviewerModel model.InterviewerModelConfig
	Prompt           model.InterviewerPromptConfig
	Cues             parsers.CueSet
	ConversationRepo model.ConversationRepository
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	PromptConfig    *model.InterviewerPromptConfig
	Cues            parsers.CueSet
}

// GraphBuilder handles the construction of the dispatch graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.SubmitInput, *schema.Message]
}

type graphRunner struct {
	runnable compose.Runnable[model.SubmitInput, *schema.Message]
	tracer   trace.Tracer
}

// Submit appends the user turn, sends the transcript plus the directive to
// the backend and appends the reply. Blank text is rejected before anything
// is stored. On a backend failure the user turn stays and no assistant turn
// is added.
func (r *graphRunner) Submit(ctx context.Context, sessionID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errx.EmptyInput()
	}

	ctx, span := r.tracer.Start(ctx, "intake.submit",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("input.length", len(text)),
		),
	)
	defer span.End()

	out, err := r.runnable.Invoke(ctx, model.SubmitInput{
		SessionID: sessionID,
		Text:      text,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		err = dispatchError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logx.Error().
			Str("session_id", sessionID).
			Int("status", errx.StatusOf(err)).
			Err(err).
			Msg("Dispatch failed")
		return "", err
	}
	if out == nil {
		err := errx.Backend(nil, 0, "")
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if cost, ok := out.Extra["usage_cost_total_usd"].(float64); ok {
		span.SetAttributes(attribute.Float64("llm.cost_usd", cost))
	}
	return out.Content, nil
}

// dispatchError keeps errx errors raised inside the graph and treats any
// other failure as a backend failure.
func dispatchError(err error) error {
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errx.Backend(err, 0, "")
}

// BuildDispatchGraph composes ChatModels, MessagesManager, builds the graph, and returns a Runner.
func BuildDispatchGraph(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		Backend:     cfg.Backend,
		Interviewer: &cfg.InterviewerModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo)

	runner, err := NewRunner(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		PromptConfig:    &cfg.Prompt,
		Cues:            cfg.Cues,
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Dispatch graph built successfully")
	return runner, nil
}

// NewRunner compiles the graph for an already assembled GraphConfig.
func NewRunner(ctx context.Context, config *GraphConfig) (Runner, error) {
	runnable, err := BuildGraph(ctx, config)
	if err != nil {
		return nil, err
	}
	return &graphRunner{runnable: runnable, tracer: otel.Tracer(tracerName)}, nil
}

// BuildGraph constructs and returns the compiled dispatch graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.SubmitInput, *schema.Message], error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Interviewer == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.PromptConfig == nil {
		return nil, fmt.Errorf("prompt config is nil")
	}
	if len(config.Cues.Cues) == 0 {
		config.Cues = parsers.DefaultCues()
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.SubmitInput, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	if err := builder.addNodes(); err != nil {
		return nil, err
	}
	if err := builder.addEdges(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() error {
	if err := b.graph.AddLambdaNode(nodes.NodeRequestAssembler,
		nodes.NewRequestAssemblerNode(b.config.MessagesManager, b.config.PromptConfig, b.config.Cues),
		compose.WithStatePreHandler(nodes.NewRequestAssemblerPreHandler()),
	); err != nil {
		return fmt.Errorf("add %s node: %w", nodes.NodeRequestAssembler, err)
	}

	if err := b.graph.AddChatModelNode(nodes.NodeInterviewerChatModel,
		b.config.ChatModels.Interviewer,
		compose.WithStatePostHandler(nodes.NewInterviewerChatModelPostHandler(b.config.MessagesManager, b.config.ChatModels.InterviewerModelName)),
	); err != nil {
		return fmt.Errorf("add %s node: %w", nodes.NodeInterviewerChatModel, err)
	}
	return nil
}

// addEdges creates the linear flow START -> assembler -> model -> END
func (b *GraphBuilder) addEdges() error {
	edges := [][2]string{
		{compose.START, nodes.NodeRequestAssembler},
		{nodes.NodeRequestAssembler, nodes.NodeInterviewerChatModel},
		{nodes.NodeInterviewerChatModel, compose.END},
	}

	for _, edge := range edges {
		if err := b.graph.AddEdge(edge[0], edge[1]); err != nil {
			return fmt.Errorf("add edge %s -> %s: %w", edge[0], edge[1], err)
		}
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.SubmitInput, *schema.Message], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(10))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
