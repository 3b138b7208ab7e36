package nodes

import (
	"context"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedChatModel replays one result per call; the last entry repeats.
type scriptedChatModel struct {
	mu      sync.Mutex
	results []scriptedResult
	calls   [][]*schema.Message
}

type scriptedResult struct {
	msg *schema.Message
	err error
}

func (m *scriptedChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, input)
	i := len(m.calls) - 1
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	r := m.results[i]
	return r.msg, r.err
}

func (m *scriptedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *scriptedChatModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
