package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// CacheService is the shared key-value store. A missing key reads as
// errors.ErrNotFound.
type CacheService interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

func NewRedisClient(ctx context.Context, cfg *config.CacheConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return client, nil
}

type RedisCacheService struct {
	client redis.UniversalClient
}

func NewRedisCacheService(client redis.UniversalClient) *RedisCacheService {
	return &RedisCacheService{client: client}
}

func (c *RedisCacheService) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrap(fmt.Errorf("%w: %v", errors.ErrCacheError, err), "failed to read cache")
	}
	return value, nil
}

func (c *RedisCacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %v", err)
	}
	return c.client.Set(ctx, key, jsonData, expiration).Err()
}

func (c *RedisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errors.Wrap(fmt.Errorf("%w: %v", errors.ErrCacheError, err), "failed to read cache")
	}
	return n > 0, nil
}

func (c *RedisCacheService) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCacheService) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCacheService is a single-process CacheService for development and
// tests.
type MemoryCacheService struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

func NewMemoryCacheService() *MemoryCacheService {
	return &MemoryCacheService{entries: make(map[string]memoryEntry), now: time.Now}
}

// sweep drops expired entries at most once per interval so keys that are
// never read again do not accumulate. Callers hold mu.
func (c *MemoryCacheService) sweep() {
	now := c.now()
	if now.Sub(c.lastSweep) < memorySweepInterval {
		return
	}
	c.lastSweep = now
	for key, entry := range c.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCacheService) lookup(key string) (memoryEntry, bool) {
	entry, ok := c.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (c *MemoryCacheService) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lookup(key)
	if !ok {
		return "", errors.ErrNotFound
	}
	return entry.value, nil
}

func (c *MemoryCacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()

	entry := memoryEntry{value: string(jsonData)}
	if expiration > 0 {
		entry.expiresAt = c.now().Add(expiration)
	}
	c.entries[key] = entry
	return nil
}

func (c *MemoryCacheService) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lookup(key)
	return ok, nil
}

func (c *MemoryCacheService) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

func (c *MemoryCacheService) Ping(ctx context.Context) error {
	return nil
}
