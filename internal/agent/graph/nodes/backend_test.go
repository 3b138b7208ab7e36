package nodes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	errx "github.com/aegis-safety/intake/internal/core/error"
)

// openaiErr builds an API error the way the client does; Error() needs the
// request and response.
func openaiErr(status int, message string) *openai.Error {
	return &openai.Error{
		StatusCode: status,
		Message:    message,
		Request:    httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/chat/completions", nil),
		Response:   &http.Response{StatusCode: status},
	}
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestResilientChatModel_NoRetriesByDefault(t *testing.T) {
	inner := &scriptedChatModel{results: []scriptedResult{
		{err: openaiErr(http.StatusTooManyRequests, "Rate limit reached")},
		{msg: schema.AssistantMessage("ok", nil)},
	}}
	m := NewResilientChatModel(inner, 0, WithBackOff(fastBackOff))

	_, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})

	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount())
	assert.True(t, errx.IsKind(err, errx.KindBackend))
	assert.Equal(t, http.StatusTooManyRequests, errx.StatusOf(err))

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "Rate limit reached", appErr.Message)
}

func TestResilientChatModel_RetriesRateLimit(t *testing.T) {
	inner := &scriptedChatModel{results: []scriptedResult{
		{err: openaiErr(http.StatusTooManyRequests, "")},
		{err: openaiErr(http.StatusServiceUnavailable, "")},
		{msg: schema.AssistantMessage("what happened?", nil)},
	}}
	m := NewResilientChatModel(inner, 2, WithBackOff(fastBackOff))

	out, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")})

	require.NoError(t, err)
	assert.Equal(t, "what happened?", out.Content)
	assert.Equal(t, 3, inner.callCount())
}

func TestResilientChatModel_GivesUpAfterMaxRetries(t *testing.T) {
	inner := &scriptedChatModel{results: []scriptedResult{
		{err: openaiErr(http.StatusInternalServerError, "")},
	}}
	m := NewResilientChatModel(inner, 2, WithBackOff(fastBackOff))

	_, err := m.Generate(context.Background(), nil)

	require.Error(t, err)
	assert.Equal(t, 3, inner.callCount())
	assert.Equal(t, http.StatusInternalServerError, errx.StatusOf(err))
}

func TestResilientChatModel_ClientErrorsAreNotRetried(t *testing.T) {
	inner := &scriptedChatModel{results: []scriptedResult{
		{err: openaiErr(http.StatusUnauthorized, "bad key")},
	}}
	m := NewResilientChatModel(inner, 3, WithBackOff(fastBackOff))

	_, err := m.Generate(context.Background(), nil)

	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, http.StatusUnauthorized, errx.StatusOf(err))
}

func TestResilientChatModel_EmptyReplyIsBackendError(t *testing.T) {
	inner := &scriptedChatModel{results: []scriptedResult{
		{msg: schema.AssistantMessage("   ", nil)},
	}}
	m := NewResilientChatModel(inner, 3, WithBackOff(fastBackOff))

	_, err := m.Generate(context.Background(), nil)

	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount())
	assert.True(t, errx.IsKind(err, errx.KindBackend))
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
}

func TestResilientChatModel_Stream(t *testing.T) {
	inner := &scriptedChatModel{results: []scriptedResult{
		{msg: schema.AssistantMessage("streamed", nil)},
	}}
	m := NewResilientChatModel(inner, 0)

	sr, err := m.Stream(context.Background(), nil)
	require.NoError(t, err)
	defer sr.Close()

	msg, err := sr.Recv()
	require.NoError(t, err)
	assert.Equal(t, "streamed", msg.Content)
}

func TestClassifyBackendError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{name: "openai rate limit", err: openaiErr(429, ""), status: 429, retryable: true},
		{name: "openai bad request", err: openaiErr(400, ""), status: 400, retryable: false},
		{name: "gemini quota", err: genai.APIError{Code: 429, Message: "quota"}, status: 429, retryable: true},
		{name: "wrapped gemini", err: fmt.Errorf("generate: %w", genai.APIError{Code: 503}), status: 503, retryable: true},
		{name: "transport", err: errors.New("connection reset"), status: http.StatusBadGateway, retryable: true},
		{name: "canceled", err: context.Canceled, status: http.StatusBadGateway, retryable: false},
		{name: "already classified", err: errx.Backend(nil, 418, "teapot"), status: 418, retryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyBackendError(tt.err)
			assert.True(t, errx.IsKind(got, errx.KindBackend))
			assert.Equal(t, tt.status, errx.StatusOf(got))
			assert.Equal(t, tt.retryable, IsRetryable(got))
		})
	}
	assert.NoError(t, ClassifyBackendError(nil))
}
