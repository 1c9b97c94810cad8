package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
)

// PlanRepository handles plan persistence in PostgreSQL
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new plan repository backed by the given DB.
func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db.Conn()}
}

func (r *PlanRepository) Create(ctx context.Context, name string, monthlyQuota int64, rateLimit int) (*models.Plan, error) {
	plan := &models.Plan{
		ID:           uuid.New(),
		Name:         name,
		MonthlyQuota: monthlyQuota,
		RateLimit:    rateLimit,
	}

	query := `
		INSERT INTO plans (id, name, monthly_quota, rate_limit)
		VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, plan.ID, plan.Name, plan.MonthlyQuota, plan.RateLimit); err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return nil, store.ErrDuplicatePlan
		}
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	return plan, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan

	query := `SELECT id, name, monthly_quota, rate_limit FROM plans WHERE id = $1`

	err := r.db.GetContext(ctx, &plan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

func (r *PlanRepository) GetByName(ctx context.Context, name string) (*models.Plan, error) {
	var plan models.Plan

	query := `SELECT id, name, monthly_quota, rate_limit FROM plans WHERE name = $1`

	err := r.db.GetContext(ctx, &plan, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan by name: %w", err)
	}

	return &plan, nil
}

func (r *PlanRepository) List(ctx context.Context) ([]*models.Plan, error) {
	plans := []*models.Plan{}

	query := `SELECT id, name, monthly_quota, rate_limit FROM plans ORDER BY name`

	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	return plans, nil
}

// Update changes a plan's limits. Keys referencing the plan pick up the new
// limits on their next validation; no per-key writes are needed.
func (r *PlanRepository) Update(ctx context.Context, id uuid.UUID, update models.PlanUpdate) (*models.Plan, error) {
	plan, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.MonthlyQuota != nil {
		plan.MonthlyQuota = *update.MonthlyQuota
	}
	if update.RateLimit != nil {
		plan.RateLimit = *update.RateLimit
	}

	query := `UPDATE plans SET monthly_quota = $2, rate_limit = $3 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, plan.MonthlyQuota, plan.RateLimit); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}

	return plan, nil
}
