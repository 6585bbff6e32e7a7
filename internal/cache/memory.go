package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e memoryEntry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) >= e.ttl
}

// MemoryExactCache is a process-local TTL map. Expired entries are evicted
// lazily on read and by a periodic sweep.
type MemoryExactCache struct {
	mu              sync.RWMutex
	items           map[string]memoryEntry
	now             func() time.Time
	stopCleanup     chan struct{}
	cleanupOnce     sync.Once
	cleanupInterval time.Duration
}

// MemoryOption customizes a MemoryExactCache.
type MemoryOption func(*MemoryExactCache)

// WithClock replaces time.Now, letting tests move time forward by hand.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryExactCache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithoutSweep disables the background cleanup goroutine; eviction then
// happens only on read.
func WithoutSweep() MemoryOption {
	return func(c *MemoryExactCache) {
		c.cleanupInterval = 0
	}
}

// NewMemoryExactCache creates an in-memory cache.
// If cleanupInterval <= 0 a sweep interval of 5 minutes is used.
func NewMemoryExactCache(cleanupInterval time.Duration, opts ...MemoryOption) *MemoryExactCache {
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	c := &MemoryExactCache{
		items:           make(map[string]memoryEntry),
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.cleanupInterval > 0 {
		go c.cleanupExpired()
	}

	return c
}

// Get retrieves a value, dropping it first if its TTL has passed.
func (c *MemoryExactCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	now := c.now()
	if entry.expired(now) {
		c.mu.Lock()
		if e, exists := c.items[key]; exists && e.expired(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set stores value for ttl. Last writer wins; ttl <= 0 removes the key.
func (c *MemoryExactCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return nil
	}

	// Copy to decouple from caller's buffer
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	c.items[key] = memoryEntry{
		value:    valueCopy,
		storedAt: c.now(),
		ttl:      ttl,
	}
	c.mu.Unlock()

	return nil
}

func (c *MemoryExactCache) cleanupExpired() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := c.now()
			c.mu.Lock()
			for k, v := range c.items {
				if v.expired(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine. Call this on shutdown or in tests.
func (c *MemoryExactCache) Close() error {
	c.cleanupOnce.Do(func() {
		close(c.stopCleanup)
	})
	return nil
}

// Len returns the number of items currently held, expired or not.
func (c *MemoryExactCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
