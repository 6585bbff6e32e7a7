package cache

import (
	"context"
	"strings"
	"time"

	"bookmatch-gateway/internal/metrics"
	"bookmatch-gateway/pkg/logging/logging"

	"go.uber.org/zap"
)

// LoggingExactCache wraps an ExactCache with logging + metrics.
type LoggingExactCache struct {
	inner ExactCache
}

// NewLoggingExactCache returns a cache that logs and records metrics.
func NewLoggingExactCache(inner ExactCache) ExactCache {
	return &LoggingExactCache{inner: inner}
}

func (c *LoggingExactCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	value, ok, err := c.inner.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
		metrics.ExactHitsTotal.Inc()
	}

	fields := append(keyFields(key),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("exact_cache_get", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("exact_cache_get", fields...)
	}

	return value, ok, err
}

func (c *LoggingExactCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.inner.Set(ctx, key, value, ttl)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000.0

	fields := append(keyFields(key),
		zap.Duration("ttl", ttl),
		zap.Int("bytes", len(value)),
		zap.Float64("latency_ms", latencyMs),
	)

	logger := logging.L(ctx)
	if err != nil {
		logger.Error("exact_cache_set", append(fields, zap.Error(err))...)
	} else {
		logger.Debug("exact_cache_set", fields...)
	}

	return err
}

func keyFields(key string) []zap.Field {
	fields := []zap.Field{
		zap.String("cache_tier", "exact"),
		zap.String("hash_key", key),
	}
	if parts, ok := parseKey(key); ok {
		fields = append(fields,
			zap.String("model_id", parts.ModelID),
			zap.String("api_version", parts.APIVersion),
			zap.String("hash", parts.Hash),
		)
	}
	return fields
}

// Expecting: llm:<MODEL_ID>:<API_VERSION>:<HASH>
func parseKey(key string) (Key, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 4 || parts[0] != "llm" {
		return Key{}, false
	}
	return Key{
		ModelID:    parts[1],
		APIVersion: parts[2],
		Hash:       parts[3],
	}, true
}
