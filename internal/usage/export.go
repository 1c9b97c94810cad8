package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wahans/throttl/internal/store"
)

// ReportRow is one key's usage figures in an owner export.
type ReportRow struct {
	KeyID        string  `json:"keyId"`
	KeyName      string  `json:"keyName"`
	PlanName     string  `json:"planName"`
	CurrentUsage int64   `json:"currentUsage"`
	MonthlyQuota int64   `json:"monthlyQuota"`
	PercentUsed  float64 `json:"percentUsed"`
}

// Reporter builds per-owner usage reports from the live counters.
type Reporter struct {
	keys    store.KeyStore
	plans   store.PlanStore
	counter Counter
	now     func() time.Time
}

// NewReporter creates a usage reporter.
func NewReporter(keys store.KeyStore, plans store.PlanStore, counter Counter, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{keys: keys, plans: plans, counter: counter, now: now}
}

// Export returns one row per key the owner holds, current period figures.
// Keys whose plan no longer resolves are skipped, matching how validation
// treats a dangling planId.
func (r *Reporter) Export(ctx context.Context, ownerID string) ([]ReportRow, error) {
	keys, err := r.keys.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	period := Period(r.now())
	rows := make([]ReportRow, 0, len(keys))

	for _, key := range keys {
		plan, err := r.plans.GetByID(ctx, key.PlanID)
		if errors.Is(err, store.ErrPlanNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve plan: %w", err)
		}

		current, err := r.counter.Get(ctx, key.ID, period)
		if err != nil {
			return nil, fmt.Errorf("failed to read usage: %w", err)
		}

		rows = append(rows, ReportRow{
			KeyID:        key.ID.String(),
			KeyName:      key.Name,
			PlanName:     plan.Name,
			CurrentUsage: current,
			MonthlyQuota: plan.MonthlyQuota,
			PercentUsed:  percentUsed(current, plan.MonthlyQuota),
		})
	}

	return rows, nil
}
