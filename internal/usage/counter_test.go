package usage

import (
	"context"
	"sync"
	"testing"
	"time"

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

func TestPeriod(t *testing.T) {
	assert.Equal(t, "2026-08", Period(time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)))

	// Period is computed in UTC regardless of the clock's zone.
	est := time.FixedZone("EST", -5*3600)
	assert.Equal(t, "2026-09", Period(time.Date(2026, 8, 31, 23, 30, 0, 0, est)))
}

func TestRedisCounter(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	counter := NewRedisCounter(client)
	ctx := context.Background()
	keyID := uuid.New()

	t.Run("increments and reads back", func(t *testing.T) {
		value, err := counter.Increment(ctx, keyID, "2026-08")
		require.NoError(t, err)
		assert.Equal(t, int64(1), value)

		value, err = counter.Increment(ctx, keyID, "2026-08")
		require.NoError(t, err)
		assert.Equal(t, int64(2), value)

		value, err = counter.Get(ctx, keyID, "2026-08")
		require.NoError(t, err)
		assert.Equal(t, int64(2), value)
	})

	t.Run("decrement rolls back", func(t *testing.T) {
		value, err := counter.Decrement(ctx, keyID, "2026-08")
		require.NoError(t, err)
		assert.Equal(t, int64(1), value)
	})

	t.Run("missing counter reads zero", func(t *testing.T) {
		value, err := counter.Get(ctx, uuid.New(), "2026-08")
		require.NoError(t, err)
		assert.Equal(t, int64(0), value)
	})

	t.Run("retention TTL set on first increment", func(t *testing.T) {
		fresh := uuid.New()
		_, err := counter.Increment(ctx, fresh, "2026-08")
		require.NoError(t, err)

		ttl := mr.TTL(counterKey(fresh, "2026-08"))
		assert.Equal(t, Retention, ttl)
	})

	t.Run("periods are independent", func(t *testing.T) {
		fresh := uuid.New()
		_, err := counter.Increment(ctx, fresh, "2026-08")
		require.NoError(t, err)

		value, err := counter.Get(ctx, fresh, "2026-09")
		require.NoError(t, err)
		assert.Equal(t, int64(0), value)
	})
}

func TestMemoryCounter_Concurrent(t *testing.T) {
	counter := NewMemoryCounter()
	ctx := context.Background()
	keyID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := counter.Increment(ctx, keyID, "2026-08")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, err := counter.Get(ctx, keyID, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(200), value)
}
