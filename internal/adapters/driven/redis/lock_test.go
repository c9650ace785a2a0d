package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	lock := NewLock(client)

	ok, err := lock.Acquire(ctx, "reencrypt-credentials", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "Acquire() = false for a free lock")

	require.NoError(t, lock.Release(ctx, "reencrypt-credentials"))

	ok, err = lock.Acquire(ctx, "reencrypt-credentials", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "Acquire() = false after release")
}

func TestAcquireHeldLock(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)

	holder := NewLock(client)
	contender := NewLock(client)

	ok, err := holder.Acquire(ctx, "hygiene-scan", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "holder failed to acquire")

	ok, err = contender.Acquire(ctx, "hygiene-scan", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "contender acquired a held lock")
}

func TestReleaseByNonOwnerKeepsLock(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)

	holder := NewLock(client)
	other := NewLock(client)

	ok, err := holder.Acquire(ctx, "hygiene-scan", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "holder failed to acquire")
	require.NotEqual(t, holder.OwnerID(), other.OwnerID(), "owner IDs collide")

	// A non-owner Release is a no-op; the lock stays held.
	require.NoError(t, other.Release(ctx, "hygiene-scan"))

	ok, err = other.Acquire(ctx, "hygiene-scan", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock was released by a non-owner")
}
