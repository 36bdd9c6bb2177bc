package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneuni/oneuni-backend/pkg/ratelimit"
)

func newRedisStore(t *testing.T) *ratelimit.RedisStore {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return ratelimit.NewRedisStore(client, "rl:test")
}

func TestRedisStoreRecord(t *testing.T) {
	t.Parallel()

	t.Run("counts up to the limit", func(t *testing.T) {
		t.Parallel()
		store := newRedisStore(t)
		now := time.Now()

		for i := 1; i <= 3; i++ {
			allowed, count, err := store.Record(context.Background(), "k", now, time.Minute, 3)
			require.NoError(t, err)
			assert.True(t, allowed)
			assert.Equal(t, int64(i), count)
		}

		allowed, count, err := store.Record(context.Background(), "k", now, time.Minute, 3)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, int64(3), count)
	})

	t.Run("identical timestamps count separately", func(t *testing.T) {
		t.Parallel()
		store := newRedisStore(t)
		now := time.Now()

		_, first, err := store.Record(context.Background(), "k", now, time.Minute, 10)
		require.NoError(t, err)
		_, second, err := store.Record(context.Background(), "k", now, time.Minute, 10)
		require.NoError(t, err)

		assert.Equal(t, int64(1), first)
		assert.Equal(t, int64(2), second)
	})

	t.Run("slots free up once the window passes", func(t *testing.T) {
		t.Parallel()
		store := newRedisStore(t)
		start := time.Now()

		allowed, _, err := store.Record(context.Background(), "k", start, time.Minute, 1)
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, _, err = store.Record(context.Background(), "k", start.Add(time.Second), time.Minute, 1)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, _, err = store.Record(context.Background(), "k", start.Add(2*time.Minute), time.Minute, 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("keys are isolated", func(t *testing.T) {
		t.Parallel()
		store := newRedisStore(t)
		now := time.Now()

		allowed, _, err := store.Record(context.Background(), "a", now, time.Minute, 1)
		require.NoError(t, err)
		require.True(t, allowed)

		allowed, _, err = store.Record(context.Background(), "b", now, time.Minute, 1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}
