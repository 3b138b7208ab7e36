package repo

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aegis-safety/intake/internal/agent/model"
	errx "github.com/aegis-safety/intake/internal/core/error"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendIsMonotonic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	previous := []model.Turn{}
	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn(fmt.Sprintf("turn %d", i))))

		tr, err := store.LoadTranscript(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, tr.Turns, i+1)
		assert.Equal(t, previous, tr.Turns[:i], "earlier turns must be preserved")
		previous = tr.Turns
	}

	n, err := store.CountTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMemoryStoreAcceptsDuplicatesAndAnyContent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn("")))
	require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn("same")))
	require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn("same")))

	tr, err := store.LoadTranscript(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, tr.Turns, 3)
}

func TestMemoryStoreScopesTranscriptsPerSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	require.NoError(t, store.AppendTurn(ctx, "alice", model.UserTurn("alice speaking")))
	require.NoError(t, store.AppendTurn(ctx, "bob", model.UserTurn("bob speaking")))

	alice, err := store.LoadTranscript(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice.Turns, 1)
	assert.Equal(t, "alice speaking", alice.Turns[0].Content)

	empty, err := store.LoadTranscript(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, empty.Turns)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn("original")))

	tr, err := store.LoadTranscript(ctx, "s1")
	require.NoError(t, err)
	tr.Turns[0].Content = "mutated"

	again, err := store.LoadTranscript(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Turns[0].Content)

	require.NoError(t, store.SaveSession(ctx, &model.Session{ID: "s1"}))
	sess, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	sess.Consent.Grant()

	stored, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, stored.Consent.Admitted())
}

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, err := store.GetSession(ctx, "missing")
	assert.True(t, errx.IsKind(err, errx.KindNotFound))

	require.NoError(t, store.SaveSession(ctx, &model.Session{ID: "s1"}))
	require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn("hi")))
	require.NoError(t, store.DeleteSession(ctx, "s1"))

	_, err = store.GetSession(ctx, "s1")
	assert.True(t, errx.IsKind(err, errx.KindNotFound))
	n, err := store.CountTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreEvictIdle(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	store := NewMemoryStore(10 * time.Minute)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.SaveSession(ctx, &model.Session{ID: "stale"}))
	clock = clock.Add(8 * time.Minute)
	require.NoError(t, store.SaveSession(ctx, &model.Session{ID: "fresh"}))
	require.NoError(t, store.AppendTurn(ctx, "fresh", model.UserTurn("still here")))

	clock = clock.Add(5 * time.Minute)
	n, err := store.EvictIdle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetSession(ctx, "stale")
	assert.Error(t, err)
	_, err = store.GetSession(ctx, "fresh")
	assert.NoError(t, err)
}

func TestMemoryStoreEvictDisabledWithoutTTL(t *testing.T) {
	store := NewMemoryStore(0)
	require.NoError(t, store.SaveSession(context.Background(), &model.Session{ID: "s"}))
	n, err := store.EvictIdle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.AppendTurn(ctx, "s1", model.UserTurn(fmt.Sprint(i)))
		}(i)
	}
	wg.Wait()

	n, err := store.CountTurns(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, n)
}
