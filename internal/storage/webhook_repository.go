package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
)

// WebhookRepository handles webhook subscription persistence in PostgreSQL
type WebhookRepository struct {
	db *sqlx.DB
}

// NewWebhookRepository creates a new webhook repository backed by the given DB.
func NewWebhookRepository(db *DB) *WebhookRepository {
	return &WebhookRepository{db: db.Conn()}
}

func (r *WebhookRepository) Create(ctx context.Context, ownerID, url string, events []string) (*models.Webhook, error) {
	webhook := &models.Webhook{
		ID:      uuid.New(),
		OwnerID: ownerID,
		URL:     url,
		Events:  pq.StringArray(events),
		Active:  true,
	}

	query := `
		INSERT INTO webhooks (id, owner_id, url, events, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		webhook.ID, webhook.OwnerID, webhook.URL, webhook.Events, webhook.Active,
	).Scan(&webhook.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Webhook, error) {
	var webhook models.Webhook

	query := `
		SELECT id, owner_id, url, events, active, created_at
		FROM webhooks
		WHERE id = $1`

	err := r.db.GetContext(ctx, &webhook, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrWebhookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}

	return &webhook, nil
}

func (r *WebhookRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Webhook, error) {
	webhooks := []*models.Webhook{}

	query := `
		SELECT id, owner_id, url, events, active, created_at
		FROM webhooks
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &webhooks, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	return webhooks, nil
}

func (r *WebhookRepository) Update(ctx context.Context, id uuid.UUID, update models.WebhookUpdate) (*models.Webhook, error) {
	webhook, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.URL != nil {
		webhook.URL = *update.URL
	}
	if update.Events != nil {
		webhook.Events = pq.StringArray(update.Events)
	}
	if update.Active != nil {
		webhook.Active = *update.Active
	}

	query := `UPDATE webhooks SET url = $2, events = $3, active = $4 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, webhook.URL, webhook.Events, webhook.Active); err != nil {
		return nil, fmt.Errorf("failed to update webhook: %w", err)
	}

	return webhook, nil
}

func (r *WebhookRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM webhooks WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return store.ErrWebhookNotFound
	}

	return nil
}
