package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Backend string // "memory" or "redis"
	TTL     time.Duration
	Prefix  string
}

// ResolveBackend names the backend NewExactCache will build: redis only
// when it was asked for and a live client is available.
func ResolveBackend(backend string, redisClient redis.Cmdable) string {
	if backend == BackendRedis && redisClient != nil {
		return BackendRedis
	}
	return BackendMemory
}

// NewExactCache picks the backend named by cfg. Redis needs a live client;
// without one the memory backend is used.
func NewExactCache(cfg Config, redisClient redis.Cmdable) ExactCache {
	if ResolveBackend(cfg.Backend, redisClient) == BackendRedis {
		return NewRedisExactCache(redisClient, RedisConfig{
			Prefix: cfg.Prefix,
		})
	}
	return NewMemoryExactCache(cfg.TTL)
}
