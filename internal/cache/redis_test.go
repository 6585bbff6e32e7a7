package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisCache(t *testing.T) (*RedisExactCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisExactCache(client, RedisConfig{Prefix: "bookmatch"}), mr
}

func TestRedisExactCache_SetGet(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "llm:m:v:h", []byte(`{"ok":true}`), 90*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("bookmatch:llm:m:v:h") {
		t.Fatalf("expected prefixed key in redis, keys=%v", mr.Keys())
	}

	got, hit, err := c.Get(ctx, "llm:m:v:h")
	if err != nil || !hit {
		t.Fatalf("expected hit, got hit=%v err=%v", hit, err)
	}
	if string(got) != `{"ok":true}` {
		t.Fatalf("unexpected value %q", got)
	}

	mr.FastForward(91 * time.Second)
	if _, hit, _ := c.Get(ctx, "llm:m:v:h"); hit {
		t.Fatalf("expected miss after redis TTL")
	}
}

func TestRedisExactCache_MissAndZeroTTL(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	if _, hit, err := c.Get(ctx, "absent"); hit || err != nil {
		t.Fatalf("expected clean miss, got hit=%v err=%v", hit, err)
	}

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(mr.Keys()) != 0 {
		t.Fatalf("ttl<=0 must not write, keys=%v", mr.Keys())
	}
}

func TestRedisExactCache_ErrorSurfaces(t *testing.T) {
	c, mr := newRedisCache(t)
	mr.Close()

	_, hit, err := c.Get(context.Background(), "k")
	if err == nil || hit {
		t.Fatalf("expected error from closed redis, got hit=%v err=%v", hit, err)
	}
}

func TestNewExactCache_RedisWithoutClientUsesMemory(t *testing.T) {
	c := NewExactCache(Config{Backend: "redis", TTL: time.Minute}, nil)
	mem, ok := c.(*MemoryExactCache)
	if !ok {
		t.Fatalf("expected memory fallback, got %T", c)
	}
	_ = mem.Close()
}

func TestResolveBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cases := []struct {
		name    string
		backend string
		client  redis.Cmdable
		want    string
	}{
		{"redis with client", BackendRedis, client, BackendRedis},
		{"redis unavailable", BackendRedis, nil, BackendMemory},
		{"memory ignores client", BackendMemory, client, BackendMemory},
		{"unknown", "memcached", client, BackendMemory},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ResolveBackend(tc.backend, tc.client); got != tc.want {
				t.Fatalf("ResolveBackend(%q) = %q, want %q", tc.backend, got, tc.want)
			}
		})
	}

	if _, ok := NewExactCache(Config{Backend: BackendRedis, Prefix: "bookmatch"}, client).(*RedisExactCache); !ok {
		t.Fatalf("expected redis backend when a client is available")
	}
}
