package artwork

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/nowplayingd/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "nowplayingd:artwork:"

// MemoryCache is a process-local artwork cache with per-entry expiry
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   string
	expires time.Time
}

var _ domain.ArtworkCache = (*MemoryCache)(nil)

// NewMemoryCache creates a cache whose entries live for ttl. A non-positive ttl never expires.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// Get returns the cached value for key
func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expires.IsZero() && !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value for key
func (c *MemoryCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{value: value}
	if c.ttl > 0 {
		entry.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = entry
	return nil
}

// RedisCache shares artwork lookups between daemon instances
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ domain.ArtworkCache = (*RedisCache)(nil)

// NewRedisCache creates a cache on an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached value for key
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set stores value for key
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, redisKeyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the client
func (c *RedisCache) Close() error {
	return c.client.Close()
}
