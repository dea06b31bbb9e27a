package nonce

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const nonceKeyPrefix = "nonce:"

// RedisStore keeps consumed ids in Redis with native expiry. Calls that fail
// against Redis are served by an in-process store, and that store is always
// consulted on reads so ids recorded during an outage are not forgotten.
type RedisStore struct {
	rdb      *redis.Client
	fallback *MemoryStore
	log      *zap.Logger
}

// NewRedisStore creates a Redis-backed store. Use NewStore to get the
// connectivity check and automatic downgrade.
func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		rdb:      rdb,
		fallback: NewMemoryStore(),
		log:      logger,
	}
}

func (s *RedisStore) key(id string) string {
	return nonceKeyPrefix + id
}

func (s *RedisStore) MarkUsed(ctx context.Context, id string, ttl time.Duration) {
	if err := s.rdb.Set(ctx, s.key(id), "1", normalizeTTL(ttl)).Err(); err != nil {
		s.log.Warn("failed to record nonce in redis, using memory fallback",
			zap.String("jti", id),
			zap.Error(err),
		)
		s.fallback.MarkUsed(ctx, id, ttl)
	}
}

func (s *RedisStore) IsUsed(ctx context.Context, id string) bool {
	if s.fallback.IsUsed(ctx, id) {
		return true
	}

	n, err := s.rdb.Exists(ctx, s.key(id)).Result()
	if err != nil {
		s.log.Warn("failed to look up nonce in redis", zap.String("jti", id), zap.Error(err))
		return false
	}
	return n > 0
}

func (s *RedisStore) Consume(ctx context.Context, id string, ttl time.Duration) bool {
	if s.fallback.IsUsed(ctx, id) {
		return false
	}

	fresh, err := s.rdb.SetNX(ctx, s.key(id), "1", normalizeTTL(ttl)).Result()
	if err != nil {
		s.log.Warn("failed to consume nonce in redis, using memory fallback",
			zap.String("jti", id),
			zap.Error(err),
		)
		return s.fallback.Consume(ctx, id, ttl)
	}
	return fresh
}

func (s *RedisStore) Backend() string {
	return "redis"
}
