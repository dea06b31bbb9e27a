// Package cache adds a Redis read-through cache in front of a link
// repository.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"brain-link-tracker/internal/redirect/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	linkCachePrefix = "link:"
	linkCacheTTL    = 10 * time.Minute
)

// LinkCache caches link configurations. Get returns nil, nil on a miss.
type LinkCache interface {
	Get(ctx context.Context, linkID string) (*domain.LinkConfiguration, error)
	Set(ctx context.Context, link *domain.LinkConfiguration) error
	Invalidate(ctx context.Context, linkID string) error
}

// Compile-time interface checks
var (
	_ LinkCache = (*RedisLinkCache)(nil)
	_ LinkCache = (*noopLinkCache)(nil)
)

// RedisLinkCache implements LinkCache using Redis.
type RedisLinkCache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewRedisLinkCache creates a Redis-backed cache, or a no-op cache when rdb
// is nil.
func NewRedisLinkCache(rdb *redis.Client, logger *zap.Logger) LinkCache {
	if rdb == nil {
		return &noopLinkCache{}
	}
	return &RedisLinkCache{
		rdb: rdb,
		ttl: linkCacheTTL,
		log: logger,
	}
}

func (c *RedisLinkCache) cacheKey(linkID string) string {
	return linkCachePrefix + linkID
}

// Get treats Redis and decoding errors as misses.
func (c *RedisLinkCache) Get(ctx context.Context, linkID string) (*domain.LinkConfiguration, error) {
	data, err := c.rdb.Get(ctx, c.cacheKey(linkID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("failed to get link from cache", zap.String("link_id", linkID), zap.Error(err))
		}
		return nil, nil
	}

	var link domain.LinkConfiguration
	if err := json.Unmarshal(data, &link); err != nil {
		c.log.Warn("failed to unmarshal cached link", zap.String("link_id", linkID), zap.Error(err))
		return nil, nil
	}
	return &link, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, link *domain.LinkConfiguration) error {
	data, err := json.Marshal(link)
	if err != nil {
		c.log.Warn("failed to marshal link for cache", zap.String("link_id", link.LinkID), zap.Error(err))
		return nil
	}

	if err := c.rdb.Set(ctx, c.cacheKey(link.LinkID), data, c.ttl).Err(); err != nil {
		c.log.Warn("failed to cache link", zap.String("link_id", link.LinkID), zap.Error(err))
	}
	return nil
}

func (c *RedisLinkCache) Invalidate(ctx context.Context, linkID string) error {
	if err := c.rdb.Del(ctx, c.cacheKey(linkID)).Err(); err != nil {
		c.log.Warn("failed to invalidate link cache", zap.String("link_id", linkID), zap.Error(err))
	}
	return nil
}

type noopLinkCache struct{}

func (c *noopLinkCache) Get(context.Context, string) (*domain.LinkConfiguration, error) {
	return nil, nil
}

func (c *noopLinkCache) Set(context.Context, *domain.LinkConfiguration) error {
	return nil
}

func (c *noopLinkCache) Invalidate(context.Context, string) error {
	return nil
}
