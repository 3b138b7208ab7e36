package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-safety/intake/internal/agent/model"
	"github.com/aegis-safety/intake/internal/agent/repo"
)

func TestProcessUserTurn_AppendsAndTrailsDirective(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore(time.Hour)
	mm := NewMessagesManager(store)

	require.NoError(t, store.AppendTurn(ctx, "s1", model.UserTurn("hello")))
	require.NoError(t, store.AppendTurn(ctx, "s1", model.AssistantTurn("what happened?")))

	msgs, err := mm.ProcessUserTurn(ctx, "s1", "my account was hacked", "DIRECTIVE")
	require.NoError(t, err)

	require.Len(t, msgs, 4)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, schema.User, msgs[2].Role)
	assert.Equal(t, "my account was hacked", msgs[2].Content)
	assert.Equal(t, schema.System, msgs[3].Role)
	assert.Equal(t, "DIRECTIVE", msgs[3].Content)

	turns, err := mm.Transcript(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 3, "directive must not be stored")
}

func TestSaveResponse(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore(time.Hour)
	mm := NewMessagesManager(store)

	require.NoError(t, mm.SaveResponse(ctx, "s1", "noted"))

	turns, err := mm.Transcript(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []model.Turn{model.AssistantTurn("noted")}, turns)
}
