// Package cache provides the model-catalog cache port and its
// implementations: a Redis-backed cache for production and a no-op stub
// for when caching is disabled.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olegische/llmrouter/internal/config"
)

// Cache is the port the model catalog (C2) depends on. Get returns
// (false, nil) on a cache miss — callers distinguish "not present" from
// "present but empty" via the bool, not by inspecting err.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RedisCache is the production Cache backed by go-redis.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache builds a RedisCache from gateway configuration. The
// returned client is lazy: go-redis dials on first use, so construction
// never itself fails on an unreachable server.
func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Username: cfg.User,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		prefix: cfg.Prefix,
	}
}

// NewRedisCacheFromClient wraps an already-constructed go-redis client,
// used by tests against a miniredis instance.
func NewRedisCacheFromClient(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (c *RedisCache) fullKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get reports whether key is present, decoding its JSON payload into dest
// when it is.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %q: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache get %q: decoding payload: %w", key, err)
	}
	return true, nil
}

// Set writes value as JSON under key with the given TTL. A zero TTL means
// no expiration.
func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache set %q: encoding payload: %w", key, err)
	}
	if err := c.client.Set(ctx, c.fullKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// Delete removes key, if present.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

// NoopCache implements Cache as an always-miss store, used when
// ENABLE_CACHE is false. Set/Delete are no-ops so callers don't need a
// feature-flag branch of their own.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, any) (bool, error)  { return false, nil }
func (NoopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (NoopCache) Delete(context.Context, string) error            { return nil }
func (NoopCache) Close() error                                    { return nil }
