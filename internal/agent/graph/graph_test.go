package graph

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/aegis-safety/intake/internal/agent/graph/conversations"
	"github.com/aegis-safety/intake/internal/agent/graph/nodes"
	"github.com/aegis-safety/intake/internal/agent/graph/parsers"
	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/agent/repo"
	errx "github.com/aegis-safety/intake/internal/core/error"
)

type step struct {
	reply string
	err   error
}

// fakeBackend records every request and answers from a script; the last
// step repeats once the script runs out.
type fakeBackend struct {
	mu     sync.Mutex
	script []step
	calls  [][]*schema.Message
}

func (f *fakeBackend) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := make([]*schema.Message, len(input))
	copy(cp, input)
	f.calls = append(f.calls, cp)

	s := f.script[min(len(f.calls), len(f.script))-1]
	if s.err != nil {
		return nil, s.err
	}
	msg := schema.AssistantMessage(s.reply, nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120}}
	return msg, nil
}

func (f *fakeBackend) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (f *fakeBackend) requests() [][]*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestRunner(t *testing.T, backend *fakeBackend, maxRetries int) (Runner, *repo.MemoryStore) {
	t.Helper()
	store := repo.NewMemoryStore(time.Hour)
	runner, err := NewRunner(context.Background(), &GraphConfig{
		ChatModels: &nodes.ChatModels{
			Interviewer: nodes.NewResilientChatModel(backend, maxRetries, nodes.WithBackOff(func() backoff.BackOff {
				return backoff.NewConstantBackOff(time.Millisecond)
			})),
			InterviewerModelName: "gemini-2.5-flash",
		},
		MessagesManager: conversations.NewMessagesManager(store),
		PromptConfig:    &model.InterviewerPromptConfig{AgencyName: "the cybercrime cell", AssistantName: "Aegis"},
		Cues:            parsers.DefaultCues(),
	})
	require.NoError(t, err)
	return runner, store
}

func transcript(t *testing.T, store *repo.MemoryStore, sessionID string) []model.Turn {
	t.Helper()
	tr, err := store.LoadTranscript(context.Background(), sessionID)
	require.NoError(t, err)
	return tr.Turns
}

func TestSubmit_AppendsBothTurns(t *testing.T) {
	backend := &fakeBackend{script: []step{{reply: "I'm sorry to hear that. What happened?"}}}
	runner, store := newTestRunner(t, backend, 0)

	reply, err := runner.Submit(context.Background(), "s1", "I was scammed on a shopping site")
	require.NoError(t, err)

	assert.Equal(t, "I'm sorry to hear that. What happened?", reply)
	assert.Equal(t, []model.Turn{
		model.UserTurn("I was scammed on a shopping site"),
		model.AssistantTurn("I'm sorry to hear that. What happened?"),
	}, transcript(t, store, "s1"))

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0], 2)
	assert.Equal(t, schema.User, reqs[0][0].Role)
	assert.Equal(t, schema.System, reqs[0][1].Role)
	assert.Contains(t, reqs[0][1].Content, "name is")
}

func TestSubmit_DirectiveTrailsEveryRequest(t *testing.T) {
	backend := &fakeBackend{script: []step{{reply: "first"}, {reply: "second"}}}
	runner, _ := newTestRunner(t, backend, 0)
	ctx := context.Background()

	_, err := runner.Submit(ctx, "s1", "hello")
	require.NoError(t, err)
	_, err = runner.Submit(ctx, "s1", "my wallet app was hacked")
	require.NoError(t, err)

	reqs := backend.requests()
	require.Len(t, reqs, 2)
	second := reqs[1]
	require.Len(t, second, 4)
	assert.Equal(t, "hello", second[0].Content)
	assert.Equal(t, "first", second[1].Content)
	assert.Equal(t, "my wallet app was hacked", second[2].Content)
	assert.Equal(t, schema.System, second[3].Role)
	assert.Equal(t, reqs[0][1].Content, second[3].Content)

	systems := 0
	for _, m := range second {
		if m.Role == schema.System {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
}

func TestSubmit_EmptyInputIsNotDispatched(t *testing.T) {
	backend := &fakeBackend{script: []step{{reply: "unused"}}}
	runner, store := newTestRunner(t, backend, 0)

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := runner.Submit(context.Background(), "s1", text)
		require.Error(t, err)
		assert.True(t, errx.IsKind(err, errx.KindEmptyInput))
	}

	assert.Empty(t, backend.requests())
	assert.Empty(t, transcript(t, store, "s1"))
}

func TestSubmit_RateLimitedKeepsUserTurn(t *testing.T) {
	backend := &fakeBackend{script: []step{{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "Resource has been exhausted"}}}}
	runner, store := newTestRunner(t, backend, 0)

	_, err := runner.Submit(context.Background(), "s1", "someone is threatening me online")
	require.Error(t, err)

	assert.True(t, errx.IsKind(err, errx.KindBackend))
	assert.Equal(t, http.StatusTooManyRequests, errx.StatusOf(err))
	assert.Len(t, backend.requests(), 1)
	assert.Equal(t, []model.Turn{model.UserTurn("someone is threatening me online")}, transcript(t, store, "s1"))
}

func TestSubmit_RetriesTransientFailures(t *testing.T) {
	backend := &fakeBackend{script: []step{
		{err: genai.APIError{Code: http.StatusServiceUnavailable}},
		{reply: "Can you tell me when it happened?"},
	}}
	runner, store := newTestRunner(t, backend, 2)

	reply, err := runner.Submit(context.Background(), "s1", "my account was hacked")
	require.NoError(t, err)

	assert.Equal(t, "Can you tell me when it happened?", reply)
	assert.Len(t, backend.requests(), 2)
	assert.Len(t, transcript(t, store, "s1"), 2)
}

func TestSubmit_EmptyReplyIsBackendError(t *testing.T) {
	backend := &fakeBackend{script: []step{{reply: ""}}}
	runner, store := newTestRunner(t, backend, 0)

	_, err := runner.Submit(context.Background(), "s1", "hello")
	require.Error(t, err)

	assert.True(t, errx.IsKind(err, errx.KindBackend))
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
	assert.Len(t, transcript(t, store, "s1"), 1)
}

func TestSubmit_SessionsAreIsolated(t *testing.T) {
	backend := &fakeBackend{script: []step{{reply: "ok"}}}
	runner, store := newTestRunner(t, backend, 0)
	ctx := context.Background()

	_, err := runner.Submit(ctx, "a", "first session")
	require.NoError(t, err)
	_, err = runner.Submit(ctx, "b", "second session")
	require.NoError(t, err)

	reqs := backend.requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[1], 2, "session b must not see session a")
	assert.Len(t, transcript(t, store, "a"), 2)
	assert.Len(t, transcript(t, store, "b"), 2)
}

func TestBuildGraph_Validation(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	assert.Error(t, err)

	_, err = BuildGraph(context.Background(), &GraphConfig{})
	assert.Error(t, err)

	_, err = BuildDispatchGraph(context.Background(), Config{})
	assert.Error(t, err)
}
