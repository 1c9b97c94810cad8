package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/wahans/throttl/internal/models"
	"github.com/wahans/throttl/internal/store"
)

// KeyRepository handles key persistence in PostgreSQL. Secret-hash lookups
// go through the shared LRU cache because validation hits them on every
// request; revoke and regenerate invalidate the cached entry synchronously.
//
// The generation counter fences cache fills: a lookup that read its row
// before a concurrent revoke/regenerate committed must not write that row
// back into the cache afterwards.
type KeyRepository struct {
	db    *sqlx.DB
	cache *LRUCache
	gen   atomic.Uint64
}

// NewKeyRepository creates a new key repository backed by the given DB.
func NewKeyRepository(db *DB) *KeyRepository {
	return &KeyRepository{
		db:    db.Conn(),
		cache: db.KeyCache(),
	}
}

func (r *KeyRepository) Create(ctx context.Context, name string, planID uuid.UUID, ownerID string) (*models.Key, string, error) {
	secret, err := store.NewSecret()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate secret: %w", err)
	}

	key := &models.Key{
		ID:         uuid.New(),
		Name:       name,
		SecretHash: store.HashSecret(secret),
		PlanID:     planID,
		OwnerID:    ownerID,
		Active:     true,
	}

	query := `
		INSERT INTO keys (id, name, secret_hash, plan_id, owner_id, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err = r.db.QueryRowContext(ctx, query,
		key.ID, key.Name, key.SecretHash, key.PlanID, key.OwnerID, key.Active,
	).Scan(&key.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create key: %w", err)
	}

	return key, secret, nil
}

func (r *KeyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Key, error) {
	var key models.Key

	query := `
		SELECT id, name, secret_hash, plan_id, owner_id, active, created_at
		FROM keys
		WHERE id = $1`

	err := r.db.GetContext(ctx, &key, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	return &key, nil
}

func (r *KeyRepository) GetBySecret(ctx context.Context, secret string) (*models.Key, error) {
	hash := store.HashSecret(secret)

	if cached, found := r.cache.Get(hash); found {
		key := cached.(models.Key)
		return &key, nil
	}

	gen := r.gen.Load()

	var key models.Key

	query := `
		SELECT id, name, secret_hash, plan_id, owner_id, active, created_at
		FROM keys
		WHERE secret_hash = $1 AND secret_hash <> ''`

	err := r.db.GetContext(ctx, &key, query, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key by secret: %w", err)
	}

	// A rotation or revoke landed while the row was in flight; its cache
	// delete may have already run, so the fill is dropped instead.
	if r.gen.Load() == gen {
		r.cache.Set(hash, key)
	}
	return &key, nil
}

func (r *KeyRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Key, error) {
	keys := []*models.Key{}

	query := `
		SELECT id, name, secret_hash, plan_id, owner_id, active, created_at
		FROM keys
		WHERE owner_id = $1
		ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &keys, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	return keys, nil
}

// Revoke deactivates a key and blanks its secret hash so the secret stops
// resolving immediately, in the cache as well as in the table.
func (r *KeyRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	key, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	query := `UPDATE keys SET active = FALSE, secret_hash = '' WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check revoke result: %w", err)
	}
	if rows == 0 {
		return store.ErrKeyNotFound
	}

	r.gen.Add(1)
	r.cache.Delete(key.SecretHash)
	return nil
}

// Regenerate replaces the key's secret in a single UPDATE, so there is no
// window where both the old and the new secret resolve.
func (r *KeyRepository) Regenerate(ctx context.Context, id uuid.UUID) (string, error) {
	key, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}

	secret, err := store.NewSecret()
	if err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}

	query := `UPDATE keys SET secret_hash = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, store.HashSecret(secret))
	if err != nil {
		return "", fmt.Errorf("failed to regenerate key: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to check regenerate result: %w", err)
	}
	if rows == 0 {
		return "", store.ErrKeyNotFound
	}

	r.gen.Add(1)
	r.cache.Delete(key.SecretHash)
	return secret, nil
}
