package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/wahans/throttl/internal/models"
)

// KeyStore manages key records and the secret index.
//
// Implementations must keep the secret index atomic with respect to the
// primary records: a lookup must never observe a key whose index entry is
// stale, and Regenerate must swap index entries so that the old secret stops
// resolving the instant the new one starts.
type KeyStore interface {
	// Create issues a new key and returns the record together with the
	// plaintext secret. The secret is shown exactly once and cannot be
	// recovered afterwards.
	Create(ctx context.Context, name string, planID uuid.UUID, ownerID string) (*models.Key, string, error)

	// GetByID returns the key record, or ErrKeyNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Key, error)

	// GetBySecret resolves a plaintext secret through the hash index.
	// Returns ErrKeyNotFound for unknown secrets. O(1), never a scan.
	GetBySecret(ctx context.Context, secret string) (*models.Key, error)

	// ListByOwner returns every key record belonging to an owner.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Key, error)

	// Revoke deactivates a key and drops its secret index entry.
	// The record persists for audit; revocation is terminal for validation.
	Revoke(ctx context.Context, id uuid.UUID) error

	// Regenerate rotates the key's secret and returns the new plaintext.
	Regenerate(ctx context.Context, id uuid.UUID) (string, error)
}

// PlanStore manages quota/rate plans.
type PlanStore interface {
	Create(ctx context.Context, name string, monthlyQuota int64, rateLimit int) (*models.Plan, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	GetByName(ctx context.Context, name string) (*models.Plan, error)
	List(ctx context.Context) ([]*models.Plan, error)

	// Update applies a partial update. Changes are visible to the very
	// next validation call.
	Update(ctx context.Context, id uuid.UUID, update models.PlanUpdate) (*models.Plan, error)
}

// WebhookStore manages webhook subscriptions.
type WebhookStore interface {
	Create(ctx context.Context, ownerID, url string, events []string) (*models.Webhook, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Webhook, error)
	Update(ctx context.Context, id uuid.UUID, update models.WebhookUpdate) (*models.Webhook, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DefaultPlan describes one canonical plan seeded at startup.
type DefaultPlan struct {
	Name         string
	MonthlyQuota int64
	RateLimit    int
}

// DefaultPlans are the canonical plans every deployment carries.
var DefaultPlans = []DefaultPlan{
	{Name: "free", MonthlyQuota: 1000, RateLimit: 10},
	{Name: "pro", MonthlyQuota: 50000, RateLimit: 100},
	{Name: "enterprise", MonthlyQuota: 500000, RateLimit: 1000},
}

// SeedDefaultPlans ensures the canonical plan set exists, matching by name.
// Safe to run on every startup; existing plans are never duplicated.
func SeedDefaultPlans(ctx context.Context, plans PlanStore) error {
	for _, p := range DefaultPlans {
		_, err := plans.GetByName(ctx, p.Name)
		if err == nil {
			continue
		}
		if err != ErrPlanNotFound {
			return err
		}
		if _, err := plans.Create(ctx, p.Name, p.MonthlyQuota, p.RateLimit); err != nil {
			return err
		}
	}
	return nil
}
