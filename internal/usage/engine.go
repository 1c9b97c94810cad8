package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
	"github.com/wahans/throttl/internal/utils"
)

// Notifier hands a threshold event to the webhook fan-out without awaiting
// delivery. Implementations must return promptly.
type Notifier interface {
	Trigger(ctx context.Context, ownerID string, event models.WebhookEvent, payload models.WebhookPayload)
}

// Limiter answers whether a key may make another call right now.
type Limiter interface {
	Allow(ctx context.Context, keyID uuid.UUID, limit int) (bool, error)
}

// EngineConfig wires the validation engine's collaborators.
type EngineConfig struct {
	Keys     store.KeyStore
	Plans    store.PlanStore
	Counter  Counter
	Gate     Gate
	Notifier Notifier
	Limiter  Limiter // nil disables rate limiting
	Logger   *utils.Logger
	Now      func() time.Time // nil defaults to time.Now
}

// Engine is the validation/increment/notification state machine.
//
// A nil error with an invalid verdict is a policy rejection; a non-nil
// error means counter or gate state could not be trusted and the caller
// must fail closed, never answer valid.
type Engine struct {
	keys     store.KeyStore
	plans    store.PlanStore
	counter  Counter
	gate     Gate
	notifier Notifier
	limiter  Limiter
	logger   *utils.Logger
	now      func() time.Time
}

// NewEngine creates a validation engine.
func NewEngine(cfg EngineConfig) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = utils.NewLogger("engine")
	}
	return &Engine{
		keys:     cfg.Keys,
		plans:    cfg.Plans,
		counter:  cfg.Counter,
		gate:     cfg.Gate,
		notifier: cfg.Notifier,
		limiter:  cfg.Limiter,
		logger:   logger,
		now:      now,
	}
}

// Validate resolves a secret, enforces the key's quota and accounts one
// request. Accepted calls increment the period counter; rejected calls
// leave it untouched (over-quota increments are rolled back before the
// verdict is returned).
func (e *Engine) Validate(ctx context.Context, secret string) (*models.Verdict, error) {
	key, err := e.keys.GetBySecret(ctx, secret)
	if errors.Is(err, store.ErrKeyNotFound) {
		return &models.Verdict{Valid: false, Error: models.ErrCodeInvalidKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve key: %w", err)
	}

	if !key.Active {
		return &models.Verdict{Valid: false, Error: models.ErrCodeKeyInactive}, nil
	}

	plan, err := e.plans.GetByID(ctx, key.PlanID)
	if errors.Is(err, store.ErrPlanNotFound) {
		// A dangling planId reads as an invalid key, not a stored-data error.
		return &models.Verdict{Valid: false, Error: models.ErrCodeInvalidKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	if e.limiter != nil {
		allowed, err := e.limiter.Allow(ctx, key.ID, plan.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to check rate limit: %w", err)
		}
		if !allowed {
			return &models.Verdict{Valid: false, Error: models.ErrCodeRateLimited}, nil
		}
	}

	period := Period(e.now())

	current, err := e.counter.Increment(ctx, key.ID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to increment usage: %w", err)
	}

	if current > plan.MonthlyQuota {
		// The counter only counts accepted requests; the rollback must
		// land before the verdict does.
		if _, err := e.counter.Decrement(ctx, key.ID, period); err != nil {
			return nil, fmt.Errorf("failed to roll back usage: %w", err)
		}

		first, err := e.gate.FirstCrossing(ctx, key.ID, period, models.EventQuotaExceeded)
		if err != nil {
			return nil, fmt.Errorf("failed to mark exceeded notification: %w", err)
		}
		if first {
			e.dispatch(models.EventQuotaExceeded, key, plan, plan.MonthlyQuota)
		}

		return &models.Verdict{
			Valid:     false,
			Error:     models.ErrCodeQuotaExceeded,
			Remaining: utils.Int64Ptr(0),
		}, nil
	}

	remaining := plan.MonthlyQuota - current
	verdict := &models.Verdict{Valid: true, Remaining: &remaining}

	if percentUsed(current, plan.MonthlyQuota) >= 90 {
		first, err := e.gate.FirstCrossing(ctx, key.ID, period, models.EventQuota90Percent)
		if err != nil {
			return nil, fmt.Errorf("failed to mark 90 percent notification: %w", err)
		}
		if first {
			e.dispatch(models.EventQuota90Percent, key, plan, current)
		}
		verdict.Alert = models.AlertQuota90Percent
	}

	return verdict, nil
}

// PeekResult is the read-only usage view for a secret.
type PeekResult struct {
	Valid     bool   `json:"valid"`
	Used      int64  `json:"used"`
	Remaining int64  `json:"remaining"`
	Limit     int64  `json:"limit"`
	Error     string `json:"error,omitempty"`
}

// Peek reports current usage for a secret without any side effects.
func (e *Engine) Peek(ctx context.Context, secret string) (*PeekResult, error) {
	key, err := e.keys.GetBySecret(ctx, secret)
	if errors.Is(err, store.ErrKeyNotFound) {
		return &PeekResult{Valid: false, Error: models.ErrCodeInvalidKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve key: %w", err)
	}

	if !key.Active {
		return &PeekResult{Valid: false, Error: models.ErrCodeKeyInactive}, nil
	}

	plan, err := e.plans.GetByID(ctx, key.PlanID)
	if errors.Is(err, store.ErrPlanNotFound) {
		return &PeekResult{Valid: false, Error: models.ErrCodeInvalidKey}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	used, err := e.counter.Get(ctx, key.ID, Period(e.now()))
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}

	remaining := plan.MonthlyQuota - used
	if remaining < 0 {
		remaining = 0
	}

	return &PeekResult{
		Valid:     true,
		Used:      used,
		Remaining: remaining,
		Limit:     plan.MonthlyQuota,
	}, nil
}

// CurrentUsage returns the accepted-request count for a key this period.
func (e *Engine) CurrentUsage(ctx context.Context, keyID uuid.UUID) (int64, error) {
	return e.counter.Get(ctx, keyID, Period(e.now()))
}

// dispatch hands the event to the notifier on a detached context, so
// cancelling the originating request cannot cancel the delivery.
func (e *Engine) dispatch(event models.WebhookEvent, key *models.Key, plan *models.Plan, current int64) {
	if e.notifier == nil {
		return
	}

	payload := models.WebhookPayload{
		Event:     event,
		Timestamp: e.now().UnixMilli(),
		Data: models.WebhookPayloadData{
			KeyID:        key.ID.String(),
			KeyName:      key.Name,
			PlanName:     plan.Name,
			CurrentUsage: current,
			MonthlyQuota: plan.MonthlyQuota,
			PercentUsed:  percentUsed(current, plan.MonthlyQuota),
		},
	}

	e.logger.Debug("dispatching threshold event", "event", event, "key_id", key.ID)
	e.notifier.Trigger(context.Background(), key.OwnerID, event, payload)
}

func percentUsed(current, quota int64) float64 {
	if quota <= 0 {
		return 100
	}
	return float64(current) / float64(quota) * 100
}
