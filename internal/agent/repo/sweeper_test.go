package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEvictor struct {
	calls int
	err   error
}

func (e *countingEvictor) EvictIdle(context.Context) (int, error) {
	e.calls++
	return 2, e.err
}

func TestNewSweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewSweeper(&countingEvictor{}, "every now and then")
	assert.Error(t, err)

	_, err = NewSweeper(nil, "@every 1m")
	assert.Error(t, err)
}

func TestSweepCallsEvictor(t *testing.T) {
	ev := &countingEvictor{}
	s, err := NewSweeper(ev, "@every 1h")
	require.NoError(t, err)

	s.Sweep()
	ev.err = errors.New("boom")
	s.Sweep()
	assert.Equal(t, 2, ev.calls)

	s.Start()
	s.Stop()
}
