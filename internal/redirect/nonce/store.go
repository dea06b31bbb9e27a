// Package nonce records consumed token identifiers for replay detection.
package nonce

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MinTTL is the shortest retention of a consumed id. It covers the longest
// stage token lifetime with room to spare.
const MinTTL = 60 * time.Second

const pingTimeout = 2 * time.Second

// Store answers "has this id been consumed?".
// Implementations never return errors: a false positive is safe, a false
// negative is a replay hole.
type Store interface {
	// MarkUsed records id as consumed for at least ttl.
	MarkUsed(ctx context.Context, id string, ttl time.Duration)
	// IsUsed reports whether id was recorded and has not expired yet.
	IsUsed(ctx context.Context, id string) bool
	// Consume atomically records id and reports whether this was its first use.
	Consume(ctx context.Context, id string, ttl time.Duration) bool
	// Backend names the storage in use ("redis" or "memory").
	Backend() string
}

// Compile-time interface checks
var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// NewStore pings Redis once and returns a Redis-backed store when it is
// reachable. A nil client or a failed ping yields the in-memory store.
func NewStore(ctx context.Context, rdb *redis.Client, logger *zap.Logger) Store {
	if rdb == nil {
		logger.Info("redis not configured, nonce store running in memory")
		return NewMemoryStore()
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, nonce store falling back to memory", zap.Error(err))
		return NewMemoryStore()
	}

	logger.Info("nonce store using redis")
	return NewRedisStore(rdb, logger)
}

func normalizeTTL(ttl time.Duration) time.Duration {
	if ttl < MinTTL {
		return MinTTL
	}
	return ttl
}
