package nodes

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v5"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/openai/openai-go"
	"google.golang.org/genai"

	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
)

const emptyReplyMessage = "reasoning backend returned an empty reply"

// ResilientChatModel wraps a provider chat model. Every failure leaves it as
// an errx Backend error carrying the provider status, an empty reply is a
// failure, and retryable failures are retried up to maxRetries times.
type ResilientChatModel struct {
	inner      einomodel.BaseChatModel
	maxRetries int
	newBackOff func() backoff.BackOff
}

type ResilientOption func(*ResilientChatModel)

// WithBackOff overrides the delay policy between attempts.
func WithBackOff(fn func() backoff.BackOff) ResilientOption {
	return func(m *ResilientChatModel) {
		m.newBackOff = fn
	}
}

func NewResilientChatModel(inner einomodel.BaseChatModel, maxRetries int, opts ...ResilientOption) *ResilientChatModel {
	if maxRetries < 0 {
		maxRetries = 0
	}
	m := &ResilientChatModel{
		inner:      inner,
		maxRetries: maxRetries,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *ResilientChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	attempt := 0
	op := func() (*schema.Message, error) {
		attempt++
		out, err := m.inner.Generate(ctx, input, opts...)
		if err != nil {
			classified := ClassifyBackendError(err)
			if !IsRetryable(classified) || attempt > m.maxRetries {
				return nil, backoff.Permanent(classified)
			}
			logx.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("status", errx.StatusOf(classified)).
				Msg("Backend call failed, retrying")
			return nil, classified
		}
		if out == nil || strings.TrimSpace(out.Content) == "" {
			return nil, backoff.Permanent(errx.Backend(nil, 0, emptyReplyMessage))
		}
		return out, nil
	}

	out, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(m.newBackOff()),
		backoff.WithMaxTries(uint(m.maxRetries+1)),
	)
	if err != nil {
		return nil, ClassifyBackendError(err)
	}
	return out, nil
}

// Stream is served by a single Generate call; the dispatcher never streams.
func (m *ResilientChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

// ClassifyBackendError turns a provider failure into an errx Backend error,
// keeping the provider's HTTP status and message when there is one.
func ClassifyBackendError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *errx.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return errx.Backend(err, oaErr.StatusCode, oaErr.Message)
	}

	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return errx.Backend(err, gErr.Code, gErr.Message)
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil {
		return errx.Backend(err, gErrPtr.Code, gErrPtr.Message)
	}

	return errx.Backend(err, 0, "")
}

// IsRetryable reports whether a classified backend failure is worth another
// attempt: rate limiting, server errors and transport failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if !errx.IsKind(err, errx.KindBackend) {
		return false
	}

	var appErr *errx.AppError
	if errors.As(err, &appErr) && appErr.Err == nil {
		// produced here, e.g. an empty reply
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	status := errx.StatusOf(err)
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
