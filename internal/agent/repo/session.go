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

// RedisSessionRepository stores sessions as JSON strings. Eviction is the
// key TTL, refreshed on every save.
type RedisSessionRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisSessionRepository(rdb redis.Cmdable, ttl time.Duration) *RedisSessionRepository {
	return &RedisSessionRepository{rdb: rdb, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func (r *RedisSessionRepository) SaveSession(ctx context.Context, session *model.Session) error {
	b, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	key := sessionKey(session.ID)
	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save session")
		return errx.WrapRedis(err)
	}
	// keep the transcript alive as long as the session
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, conversationKey(session.ID), r.ttl).Err(); err != nil {
			logx.Warn().Err(err).Str("session_id", session.ID).Msg("failed to refresh transcript TTL")
		}
	}
	return nil
}

func (r *RedisSessionRepository) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	key := sessionKey(sessionID)
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errx.NotFound("session")
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load session")
		return nil, errx.WrapRedis(err)
	}
	var s model.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &s, nil
}

func (r *RedisSessionRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.rdb.Del(ctx, sessionKey(sessionID), conversationKey(sessionID)).Err(); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete session")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.SessionRepository = (*RedisSessionRepository)(nil)
