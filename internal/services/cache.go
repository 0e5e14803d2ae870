package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache keys and patterns of the read views the core invalidates.
const (
	CacheKeyTables        = "cache:tables"
	CacheKeyMenu          = "cache:menu"
	CacheKeySummaryPrefix = "cache:summary:"
	CacheKeySummaryAll    = "cache:summary:*"
)

// Cache is the short-TTL read cache. Failures never surface to callers: a miss is
// reported as false and a failed invalidation is only logged.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) bool
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration)
	Invalidate(ctx context.Context, patterns ...string)
}

// NopCache disables caching.
type NopCache struct{}

func (NopCache) GetJSON(context.Context, string, any) bool { return false }

func (NopCache) SetJSON(context.Context, string, any, time.Duration) {}

func (NopCache) Invalidate(context.Context, ...string) {}

// RedisCache stores JSON snapshots in Redis.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

// NewRedisCache wraps a go-redis client.
func NewRedisCache(client *redis.Client, log *zap.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

// GetJSON decodes the cached value of key into dest.
func (c *RedisCache) GetJSON(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON stores value under key for ttl.
func (c *RedisCache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate deletes every key matching the given glob patterns.
func (c *RedisCache) Invalidate(ctx context.Context, patterns ...string) {
	for _, pattern := range patterns {
		if err := c.invalidate(ctx, pattern); err != nil {
			c.log.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (c *RedisCache) invalidate(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del %d keys: %w", len(keys), err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
