package artwork

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	if _, found, _ := cache.Get(ctx, "a|b"); found {
		t.Fatal("empty cache reported a hit")
	}

	cache.Set(ctx, "a|b", "https://x/512x512bb.jpg")
	cache.Set(ctx, "c|d", "")

	if v, found, _ := cache.Get(ctx, "a|b"); !found || v != "https://x/512x512bb.jpg" {
		t.Errorf("expected hit, got (%q, %v)", v, found)
	}
	if v, found, _ := cache.Get(ctx, "c|d"); !found || v != "" {
		t.Errorf("expected cached miss, got (%q, %v)", v, found)
	}

	now = now.Add(time.Minute)
	if _, found, _ := cache.Get(ctx, "a|b"); found {
		t.Error("entry should expire after ttl")
	}
}

func TestRedisCache_UnreachableServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	cache := NewRedisCache(client, time.Minute)
	defer cache.Close()

	ctx := context.Background()
	if _, _, err := cache.Get(ctx, "a|b"); err == nil {
		t.Error("expected Get error")
	}
	if err := cache.Set(ctx, "a|b", "v"); err == nil {
		t.Error("expected Set error")
	}
}
