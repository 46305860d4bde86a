package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AgroCoop/internal/pkg/env"
)

func testRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       13,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestTryLock(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()

	first, err := TryLock(ctx, client, "lock:test", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := TryLock(ctx, client, "lock:test", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, second, "held lock is not granted twice")

	require.NoError(t, first.Release(ctx))
	third, err := TryLock(ctx, client, "lock:test", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestReleaseKeepsForeignLock(t *testing.T) {
	client := testRedisClient(t)
	ctx := context.Background()

	stale, err := TryLock(ctx, client, "lock:test", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, stale)

	// Simulate expiry and takeover by another holder
	require.NoError(t, client.Set(ctx, "lock:test", "someone-else", time.Minute).Err())
	require.NoError(t, stale.Release(ctx))

	val, err := client.Get(ctx, "lock:test").Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestTryLockOffline(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	lock, err := TryLock(context.Background(), client, "lock:test", time.Minute)
	assert.Error(t, err)
	assert.Nil(t, lock)
	assert.NoError(t, (*Lock)(nil).Release(context.Background()))
}
