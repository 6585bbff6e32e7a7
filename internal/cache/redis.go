package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisExactCache implements ExactCache on Redis, letting several gateway
// replicas share external-call responses.
type RedisExactCache struct {
	client redis.Cmdable
	prefix string
}

type RedisConfig struct {
	Prefix string
}

// NewRedisExactCache creates a Redis-backed cache.
func NewRedisExactCache(client redis.Cmdable, config RedisConfig) *RedisExactCache {
	return &RedisExactCache{
		client: client,
		prefix: config.Prefix,
	}
}

func (c *RedisExactCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get retrieves a value. A missing key is a clean miss; any other Redis
// error is returned so the caller can log it and treat it as a miss.
func (c *RedisExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("context error: %w", err)
	}

	res, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	return res, true, nil
}

// Set stores a value with TTL. Redis expires it server-side.
// If ttl <= 0, nothing is cached.
func (c *RedisExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if ttl <= 0 {
		return nil
	}

	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Ping checks if Redis connection is healthy.
func (c *RedisExactCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
