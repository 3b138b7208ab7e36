package repo

import (
	"context"
	"sync"
	"time"

	"github.com/aegis-safety/intake/internal/agent/model"
	errx "github.com/aegis-safety/intake/internal/core/error"
)

// MemoryStore keeps sessions and their transcripts in process memory,
// keyed by session id. A session idle for longer than ttl is removed by
// EvictIdle; a zero ttl disables eviction.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	turns    map[string][]model.Turn
	touched  map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.Session),
		turns:    make(map[string][]model.Turn),
		touched:  make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

// ================ Sessions ================
func (s *MemoryStore) SaveSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp
	s.touched[session.ID] = s.now()
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errx.NotFound("session")
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteLocked(sessionID)
	return nil
}

func (s *MemoryStore) deleteLocked(sessionID string) {
	delete(s.sessions, sessionID)
	delete(s.turns, sessionID)
	delete(s.touched, sessionID)
}

// ================ Transcripts ================
func (s *MemoryStore) AppendTurn(_ context.Context, sessionID string, turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns[sessionID] = append(s.turns[sessionID], turn)
	s.touched[sessionID] = s.now()
	return nil
}

func (s *MemoryStore) LoadTranscript(_ context.Context, sessionID string) (*model.Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.turns[sessionID]
	turns := make([]model.Turn, len(src))
	copy(turns, src)
	return &model.Transcript{SessionID: sessionID, Turns: turns}, nil
}

func (s *MemoryStore) ClearTranscript(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, sessionID)
	if _, ok := s.sessions[sessionID]; !ok {
		delete(s.touched, sessionID)
	}
	return nil
}

func (s *MemoryStore) CountTurns(_ context.Context, sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.turns[sessionID]), nil
}

// EvictIdle drops every session whose last activity is older than the TTL
// and returns how many were removed.
func (s *MemoryStore) EvictIdle(_ context.Context) (int, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	evicted := 0
	for id, last := range s.touched {
		if last.Before(cutoff) {
			s.deleteLocked(id)
			evicted++
		}
	}
	return evicted, nil
}

var (
	_ model.ConversationRepository = (*MemoryStore)(nil)
	_ model.SessionRepository      = (*MemoryStore)(nil)
)
