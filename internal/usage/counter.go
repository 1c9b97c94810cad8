package usage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Counter tracks accepted request counts per key and period.
//
// Increment must be atomic: under concurrent calls every caller observes a
// distinct post-increment value. The counter reflects accepted requests
// only; callers roll back rejected increments with Decrement.
type Counter interface {
	// Increment adds one and returns the post-increment value.
	Increment(ctx context.Context, keyID uuid.UUID, period string) (int64, error)

	// Decrement subtracts one and returns the new value.
	Decrement(ctx context.Context, keyID uuid.UUID, period string) (int64, error)

	// Get returns the current value, zero if the counter does not exist.
	Get(ctx context.Context, keyID uuid.UUID, period string) (int64, error)
}

func counterKey(keyID uuid.UUID, period string) string {
	return fmt.Sprintf("usage:%s:%s", keyID, period)
}

// RedisCounter implements Counter on Redis INCR/DECR.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a counter backed by the given Redis client.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Increment(ctx context.Context, keyID uuid.UUID, period string) (int64, error) {
	key := counterKey(keyID, period)

	value, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	// Retention TTL is set on the period's first increment only.
	if value == 1 {
		if err := c.client.Expire(ctx, key, Retention).Err(); err != nil {
			return 0, fmt.Errorf("failed to set counter expiry: %w", err)
		}
	}

	return value, nil
}

func (c *RedisCounter) Decrement(ctx context.Context, keyID uuid.UUID, period string) (int64, error) {
	value, err := c.client.Decr(ctx, counterKey(keyID, period)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement counter: %w", err)
	}
	return value, nil
}

func (c *RedisCounter) Get(ctx context.Context, keyID uuid.UUID, period string) (int64, error) {
	value, err := c.client.Get(ctx, counterKey(keyID, period)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return value, nil
}

// MemoryCounter implements Counter on a mutex-guarded map.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounter creates an empty in-memory counter.
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) Increment(ctx context.Context, keyID uuid.UUID, period string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := counterKey(keyID, period)
	c.values[key]++
	return c.values[key], nil
}

func (c *MemoryCounter) Decrement(ctx context.Context, keyID uuid.UUID, period string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := counterKey(keyID, period)
	c.values[key]--
	return c.values[key], nil
}

func (c *MemoryCounter) Get(ctx context.Context, keyID uuid.UUID, period string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.values[counterKey(keyID, period)], nil
}
