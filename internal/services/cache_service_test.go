package services

import (
	"context"
	"testing"
	"time"

	"bailian-gateway/internal/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestCacheServices(t *testing.T) {
	_, client := newMiniredisClient(t)

	caches := map[string]CacheService{
		"redis":  NewRedisCacheService(client),
		"memory": NewMemoryCacheService(),
	}

	for name, cache := range caches {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := cache.Get(ctx, "missing")
			assert.ErrorIs(t, err, errors.ErrNotFound)

			require.NoError(t, cache.Set(ctx, "greeting", "hello", time.Minute))
			value, err := cache.Get(ctx, "greeting")
			require.NoError(t, err)
			assert.Equal(t, `"hello"`, value)

			exists, err := cache.Exists(ctx, "greeting")
			require.NoError(t, err)
			assert.True(t, exists)

			require.NoError(t, cache.Delete(ctx, "greeting"))
			exists, err = cache.Exists(ctx, "greeting")
			require.NoError(t, err)
			assert.False(t, exists)

			assert.NoError(t, cache.Ping(ctx))
		})
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	cache := NewMemoryCacheService()
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k", 1, time.Second))

	now = now.Add(time.Second)
	exists, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCacheSweepsUnreadKeys(t *testing.T) {
	cache := NewMemoryCacheService()
	now := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "revoked:a", true, time.Second))
	require.NoError(t, cache.Set(ctx, "revoked:b", true, time.Hour))
	require.NoError(t, cache.Set(ctx, "pinned", true, 0))

	now = now.Add(2 * time.Minute)
	require.NoError(t, cache.Set(ctx, "revoked:c", true, time.Second))

	assert.Len(t, cache.entries, 3)
	assert.NotContains(t, cache.entries, "revoked:a")
}

func TestRedisCacheExpiry(t *testing.T) {
	mr, client := newMiniredisClient(t)
	cache := NewRedisCacheService(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Second))
	mr.FastForward(2 * time.Second)

	exists, err := cache.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}
