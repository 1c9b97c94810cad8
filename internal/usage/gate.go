package usage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wahans/throttl/internal/models"
)

// Gate records which threshold events already fired for a key in a period.
//
// FirstCrossing is an atomic add-if-absent: when many calls cross a
// threshold concurrently, exactly one caller sees true and dispatches the
// event; the rest skip. Markers last for the whole period, so a key that
// dips back under a threshold and crosses it again does not re-fire.
type Gate interface {
	FirstCrossing(ctx context.Context, keyID uuid.UUID, period string, event models.WebhookEvent) (bool, error)
}

func gateKey(keyID uuid.UUID, period string, event models.WebhookEvent) string {
	return fmt.Sprintf("notified:%s:%s:%s", keyID, period, event)
}

// RedisGate implements Gate on Redis SETNX.
type RedisGate struct {
	client *redis.Client
}

// NewRedisGate creates a gate backed by the given Redis client.
func NewRedisGate(client *redis.Client) *RedisGate {
	return &RedisGate{client: client}
}

func (g *RedisGate) FirstCrossing(ctx context.Context, keyID uuid.UUID, period string, event models.WebhookEvent) (bool, error) {
	first, err := g.client.SetNX(ctx, gateKey(keyID, period, event), "1", Retention).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark notification gate: %w", err)
	}
	return first, nil
}

// MemoryGate implements Gate on a mutex-guarded set.
type MemoryGate struct {
	mu      sync.Mutex
	markers map[string]struct{}
}

// NewMemoryGate creates an empty in-memory gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{markers: make(map[string]struct{})}
}

func (g *MemoryGate) FirstCrossing(ctx context.Context, keyID uuid.UUID, period string, event models.WebhookEvent) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := gateKey(keyID, period, event)
	if _, ok := g.markers[key]; ok {
		return false, nil
	}
	g.markers[key] = struct{}{}
	return true, nil
}
