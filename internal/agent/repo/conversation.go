package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aegis-safety/intake/internal/agent/model"
	errx "github.com/aegis-safety/intake/internal/core/error"
	logx "github.com/aegis-safety/intake/pkg/logger"
	"github.com/redis/go-redis/v9"
)

type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func conversationKey(sessionID string) string {
	return fmt.Sprintf("conversation:%s:turns", sessionID)
}

func (r *RedisConversationRepository) AppendTurn(ctx context.Context, sessionID string, turn model.Turn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := conversationKey(sessionID)

	// RPUSH keeps submission order; EXPIRE slides the session window
	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to append turn to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) LoadTranscript(ctx context.Context, sessionID string) (*model.Transcript, error) {
	key := conversationKey(sessionID)

	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return &model.Transcript{SessionID: sessionID, Turns: []model.Turn{}}, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load transcript from redis")
		return nil, errx.WrapRedis(err)
	}

	turns := make([]model.Turn, 0, len(rows))
	for i, s := range rows {
		var t model.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		turns = append(turns, t)
	}
	return &model.Transcript{SessionID: sessionID, Turns: turns}, nil
}

func (r *RedisConversationRepository) ClearTranscript(ctx context.Context, sessionID string) error {
	key := conversationKey(sessionID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete transcript from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisConversationRepository) CountTurns(ctx context.Context, sessionID string) (int, error) {
	key := conversationKey(sessionID)
	n, err := r.rdb.LLen(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to count turns in redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
