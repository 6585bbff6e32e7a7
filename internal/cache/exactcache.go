package cache

import (
	"context"
	"fmt"
	"time"
)

// Key identifies one cached external-call response.
// Hash is sha256 of the normalized (payload, model, api version) triple.
type Key struct {
	ModelID    string
	APIVersion string
	Hash       string
}

// String converts the structured key into the final string used in Redis/map.
func (k Key) String() string {
	// llm:<MODEL_ID>:<API_VERSION>:<HASH_HEX>
	return fmt.Sprintf("llm:%s:%s:%s", k.ModelID, k.APIVersion, k.Hash)
}

// ExactCache stores raw external responses by exact key.
// Implemented by memory cache (dev) and Redis cache (prod).
type ExactCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
