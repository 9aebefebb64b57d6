package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTryLock(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "owner-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, l.Held("owner-1"))

	_, ok, err = l.TryLock(ctx, "owner-1")
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := l.TryLock(ctx, "owner-2")
	require.NoError(t, err)
	require.True(t, ok)
	other()

	release()
	release()
	assert.False(t, l.Held("owner-1"))

	again, ok, err := l.TryLock(ctx, "owner-1")
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisTryLock(t *testing.T) {
	client := getTestRedisClient(t)
	ctx := context.Background()

	l := NewRedis(client, time.Minute, nil)
	key := "test-" + time.Now().Format("150405.000000000")

	release, ok, err := l.TryLock(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = NewRedis(client, time.Minute, nil).TryLock(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	release()

	again, ok, err := l.TryLock(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}
