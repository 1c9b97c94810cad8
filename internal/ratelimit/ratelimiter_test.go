package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr
}

func TestRateLimiter_Allow(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		keyID := uuid.New()
		limit := 5

		for i := 0; i < 5; i++ {
			allowed, err := limiter.Allow(ctx, keyID, limit)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		keyID := uuid.New()
		limit := 3

		for i := 0; i < 3; i++ {
			allowed, err := limiter.Allow(ctx, keyID, limit)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		// 4th request should be blocked
		allowed, err := limiter.Allow(ctx, keyID, limit)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("unlimited when limit is 0", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		keyID := uuid.New()

		for i := 0; i < 100; i++ {
			allowed, err := limiter.Allow(ctx, keyID, 0)
			require.NoError(t, err)
			assert.True(t, allowed)
		}
	})

	t.Run("resets after window expires", func(t *testing.T) {
		client, mr := setupTestRedis(t)
		defer mr.Close()
		defer client.Close()

		limiter := NewRateLimiter(client)
		ctx := context.Background()

		keyID := uuid.New()
		limit := 2

		for i := 0; i < 2; i++ {
			allowed, err := limiter.Allow(ctx, keyID, limit)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := limiter.Allow(ctx, keyID, limit)
		require.NoError(t, err)
		assert.False(t, allowed)

		// Reset the limiter (simulates window expiry)
		require.NoError(t, limiter.Reset(ctx, keyID))

		allowed, err = limiter.Allow(ctx, keyID, limit)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRateLimiter_CurrentUsage(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	limiter := NewRateLimiter(client)
	ctx := context.Background()

	keyID := uuid.New()

	usage, err := limiter.CurrentUsage(ctx, keyID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage)

	for i := 0; i < 3; i++ {
		_, err := limiter.Allow(ctx, keyID, 10)
		require.NoError(t, err)
	}

	usage, err = limiter.CurrentUsage(ctx, keyID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), usage)
}

func TestMemoryLimiter(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()

	keyID := uuid.New()
	limit := 3

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, keyID, limit)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, keyID, limit)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Unlimited keys never block
	other := uuid.New()
	for i := 0; i < 50; i++ {
		allowed, err := limiter.Allow(ctx, other, 0)
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}
