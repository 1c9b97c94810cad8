package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// window is the sliding-window width for per-key limits.
const window = time.Minute

// RateLimiter implements distributed per-key rate limiting on Redis
// sorted sets with a sliding one-minute window.
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

func limiterKey(keyID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:%s", keyID)
}

// Allow checks if a request should be allowed for the given key.
// A limit of zero or less means unlimited.
func (rl *RateLimiter) Allow(ctx context.Context, keyID uuid.UUID, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := limiterKey(keyID)
	now := time.Now()
	windowStart := now.Add(-window)

	pipe := rl.client.Pipeline()

	// Remove old entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli()))

	// Count current requests in window
	countCmd := pipe.ZCard(ctx, key)

	// Add current request with timestamp as score
	timestamp := now.UnixMilli()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(timestamp),
		Member: fmt.Sprintf("%d:%d", timestamp, now.Nanosecond()),
	})

	// Set expiry on the key (cleanup old keys)
	pipe.Expire(ctx, key, 2*window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	// countCmd counted the window before this request was added.
	return int(countCmd.Val()) < limit, nil
}

// CurrentUsage returns the current request count in the window
func (rl *RateLimiter) CurrentUsage(ctx context.Context, keyID uuid.UUID) (int64, error) {
	key := limiterKey(keyID)
	windowStart := time.Now().Add(-window)

	if err := rl.client.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart.UnixMilli())).Err(); err != nil {
		return 0, fmt.Errorf("failed to clean old entries: %w", err)
	}

	count, err := rl.client.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get current usage: %w", err)
	}

	return count, nil
}

// Reset resets the rate limit for a key
func (rl *RateLimiter) Reset(ctx context.Context, keyID uuid.UUID) error {
	return rl.client.Del(ctx, limiterKey(keyID)).Err()
}

// MemoryLimiter is the in-process sliding-window fallback for deployments
// without Redis.
type MemoryLimiter struct {
	mu      sync.Mutex
	entries map[uuid.UUID][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter creates an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries: make(map[uuid.UUID][]time.Time),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, keyID uuid.UUID, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-window)

	kept := l.entries[keyID][:0]
	for _, t := range l.entries[keyID] {
		if t.After(windowStart) {
			kept = append(kept, t)
		}
	}

	allowed := len(kept) < limit
	l.entries[keyID] = append(kept, now)
	return allowed, nil
}
