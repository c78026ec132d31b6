package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-court-reservation/internal/config"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := NewClient(&config.RedisConfig{Host: "localhost", Port: "6379", DB: 15})
	if err := Ping(context.Background(), client); err != nil {
		client.Close()
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAvailabilityCache_GetSet(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewAvailabilityCache(client, 30*time.Second)
	ctx := context.Background()
	resourceID := "test-court-123"
	t.Cleanup(func() { _ = cache.Invalidate(ctx, resourceID) })

	t.Run("キャッシュミス時はErrCacheMissを返す", func(t *testing.T) {
		_, err := cache.Get(ctx, resourceID, "public:2024-01-10")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("キャッシュにセットした値を取得できる", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, resourceID, "public:2024-01-10", []byte(`{"date":"2024-01-10"}`)))

		got, err := cache.Get(ctx, resourceID, "public:2024-01-10")
		require.NoError(t, err)
		assert.JSONEq(t, `{"date":"2024-01-10"}`, string(got))
	})

	t.Run("無効化するとコートの全日付が消える", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, resourceID, "public:2024-01-11", []byte(`{}`)))
		require.NoError(t, cache.Invalidate(ctx, resourceID))

		_, err := cache.Get(ctx, resourceID, "public:2024-01-10")
		assert.ErrorIs(t, err, ErrCacheMiss)
		_, err = cache.Get(ctx, resourceID, "public:2024-01-11")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})
}

func TestAvailabilityCache_TTL(t *testing.T) {
	client := setupTestRedis(t)
	cache := NewAvailabilityCache(client, 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "test-court-ttl", "public:2024-01-10", []byte(`{}`)))
	_, err := cache.Get(ctx, "test-court-ttl", "public:2024-01-10")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	_, err = cache.Get(ctx, "test-court-ttl", "public:2024-01-10")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
