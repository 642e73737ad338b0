package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - lock and release", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		locker := NewLocker(client)

		release, err := locker.Lock(ctx, "dedup:k", time.Second)
		require.NoError(t, err)
		assert.True(t, mr.Exists("lock:dedup:k"))

		release()
		assert.False(t, mr.Exists("lock:dedup:k"))
	})

	t.Run("Success - waiters are serialized", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		locker := NewLocker(client)

		var mu sync.Mutex
		inside, maxInside, done := 0, 0, 0
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := locker.Lock(ctx, "k", 5*time.Second)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				done++
				mu.Unlock()
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxInside)
		assert.Equal(t, 5, done)
	})

	t.Run("Error - context ends while waiting", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		locker := NewLocker(client)

		_, err := locker.Lock(ctx, "busy", time.Minute)
		require.NoError(t, err)

		cctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(cctx, "busy", time.Minute)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Success - stale release does not drop a newer holder", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		locker := NewLocker(client)

		release, err := locker.Lock(ctx, "k", time.Second)
		require.NoError(t, err)
		mr.FastForward(2 * time.Second)

		_, err = locker.Lock(ctx, "k", time.Minute)
		require.NoError(t, err)

		release()
		assert.True(t, mr.Exists("lock:k"))
	})
}

func TestLeaser(t *testing.T) {
	ctx := context.Background()
	client, mr := setupTestRedis(t)
	leaser := NewLeaser(client)

	ok, release, err := leaser.Claim(ctx, "sla:lease:t1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = leaser.Claim(ctx, "sla:lease:t1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	ok, _, err = leaser.Claim(ctx, "sla:lease:t1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(31 * time.Second)
	ok, _, err = leaser.Claim(ctx, "sla:lease:t1", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCursors(t *testing.T) {
	ctx := context.Background()
	client, _ := setupTestRedis(t)
	cursors := NewCursors(client)

	for want := int64(1); want <= 3; want++ {
		got, err := cursors.Next(ctx, "assign:rr:r1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := cursors.Next(ctx, "assign:rr:r2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}
