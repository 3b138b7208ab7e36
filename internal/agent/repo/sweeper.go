package repo

import (
	"context"
	"fmt"

	logx "github.com/aegis-safety/intake/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Evictor removes idle sessions.
type Evictor interface {
	EvictIdle(ctx context.Context) (int, error)
}

// Sweeper runs an Evictor on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	evictor Evictor
}

func NewSweeper(evictor Evictor, schedule string) (*Sweeper, error) {
	if evictor == nil {
		return nil, fmt.Errorf("evictor is nil")
	}
	s := &Sweeper{cron: cron.New(), evictor: evictor}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Sweep performs one eviction pass.
func (s *Sweeper) Sweep() {
	n, err := s.evictor.EvictIdle(context.Background())
	if err != nil {
		logx.Error().Err(err).Msg("session sweep failed")
		return
	}
	if n > 0 {
		logx.Info().Int("evicted", n).Msg("evicted idle sessions")
	}
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
