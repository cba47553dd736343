package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	newLimiter := func() (*Memory, *time.Time) {
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		m := NewMemory(2, time.Minute)
		m.now = func() time.Time { return now }
		return m, &now
	}

	t.Run("limit per key", func(t *testing.T) {
		m, _ := newLimiter()

		for range 2 {
			allowed, _, err := m.Allow(t.Context(), "alice")
			require.NoError(t, err)
			require.True(t, allowed)
		}

		allowed, retryAfter, err := m.Allow(t.Context(), "alice")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, 30*time.Second, retryAfter)

		allowed, _, err = m.Allow(t.Context(), "bob")
		require.NoError(t, err)
		assert.True(t, allowed, "other keys are independent")
	})

	t.Run("tokens come back", func(t *testing.T) {
		m, now := newLimiter()
		for range 3 {
			_, _, err := m.Allow(t.Context(), "alice")
			require.NoError(t, err)
		}

		*now = now.Add(30 * time.Second)

		allowed, _, err := m.Allow(t.Context(), "alice")
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("forget idle keys", func(t *testing.T) {
		m, now := newLimiter()
		_, _, err := m.Allow(t.Context(), "alice")
		require.NoError(t, err)

		*now = now.Add(time.Hour)
		_, _, err = m.Allow(t.Context(), "bob")
		require.NoError(t, err)

		m.mu.Lock()
		defer m.mu.Unlock()
		assert.NotContains(t, m.visitors, "alice")
	})
}

func TestRedis(t *testing.T) {
	s := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	t.Run("window", func(t *testing.T) {
		lim, err := NewRedis(client, 2, 500*time.Millisecond, "test:")
		require.NoError(t, err)

		for range 2 {
			allowed, _, err := lim.Allow(t.Context(), "ip")
			require.NoError(t, err)
			require.True(t, allowed)
		}

		allowed, retryAfter, err := lim.Allow(t.Context(), "ip")
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Positive(t, retryAfter)

		s.FastForward(600 * time.Millisecond)

		allowed, _, err = lim.Allow(t.Context(), "ip")
		require.NoError(t, err)
		assert.True(t, allowed, "new window starts")
	})

	t.Run("default prefix", func(t *testing.T) {
		lim, err := NewRedis(client, 1, time.Second, "")
		require.NoError(t, err)

		_, _, err = lim.Allow(t.Context(), "alice")
		require.NoError(t, err)

		assert.True(t, s.Exists(defaultRedisPrefix+"alice"))
	})

	t.Run("bad config", func(t *testing.T) {
		_, err := NewRedis(client, 0, time.Second, "")
		require.Error(t, err)

		_, err = NewRedis(client, 1, 0, "")
		require.Error(t, err)
	})

	t.Run("redis down", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
		t.Cleanup(func() { _ = down.Close() })
		lim, err := NewRedis(down, 1, time.Second, "")
		require.NoError(t, err)

		_, _, err = lim.Allow(t.Context(), "alice")
		require.Error(t, err)
	})
}
