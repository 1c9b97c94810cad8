package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wahans/throttl/internal/store"
)

var keyColumns = []string{"id", "name", "secret_hash", "plan_id", "owner_id", "active", "created_at"}

// newMockKeyRepository creates a KeyRepository over a mocked SQL connection.
func newMockKeyRepository(t *testing.T) (*KeyRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := &KeyRepository{
		db:    sqlx.NewDb(mockDB, "sqlmock"),
		cache: NewLRUCache(100, time.Minute),
	}
	return repo, mock, mockDB
}

func TestKeyRepository_GetBySecretCachesHit(t *testing.T) {
	repo, mock, mockDB := newMockKeyRepository(t)
	defer mockDB.Close()

	secret := "tk_cached"
	hash := store.HashSecret(secret)
	id := uuid.New()
	planID := uuid.New()

	// A single row expectation: the second lookup must come from the cache.
	mock.ExpectQuery(`FROM keys WHERE secret_hash`).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow(id, "ci", hash, planID, "acme", true, time.Now()))

	ctx := context.Background()

	first, err := repo.GetBySecret(ctx, secret)
	require.NoError(t, err)

	second, err := repo.GetBySecret(ctx, secret)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyRepository_RevokeDuringLookupDoesNotRepopulateCache(t *testing.T) {
	repo, mock, mockDB := newMockKeyRepository(t)
	defer mockDB.Close()
	mock.MatchExpectationsInOrder(false)

	secret := "tk_rotating"
	hash := store.HashSecret(secret)
	id := uuid.New()
	planID := uuid.New()

	// The lookup's row read is delayed so the revoke commits while it is in
	// flight, after the cache miss but before the fill.
	mock.ExpectQuery(`FROM keys WHERE secret_hash`).
		WithArgs(hash).
		WillDelayFor(150 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow(id, "ci", hash, planID, "acme", true, time.Now()))

	mock.ExpectQuery(`FROM keys WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow(id, "ci", hash, planID, "acme", true, time.Now()))
	mock.ExpectExec(`UPDATE keys SET active = FALSE`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	done := make(chan error, 1)
	go func() {
		_, err := repo.GetBySecret(context.Background(), secret)
		done <- err
	}()

	// Let the lookup reach its delayed read, then revoke underneath it.
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, repo.Revoke(context.Background(), id))

	require.NoError(t, <-done)

	// The stale row must not have been written back after the invalidation.
	_, found := repo.cache.Get(hash)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestKeyRepository_RegenerateInvalidatesCachedSecret(t *testing.T) {
	repo, mock, mockDB := newMockKeyRepository(t)
	defer mockDB.Close()

	secret := "tk_old"
	hash := store.HashSecret(secret)
	id := uuid.New()
	planID := uuid.New()

	mock.ExpectQuery(`FROM keys WHERE secret_hash`).
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow(id, "ci", hash, planID, "acme", true, time.Now()))

	mock.ExpectQuery(`FROM keys WHERE id`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(keyColumns).
			AddRow(id, "ci", hash, planID, "acme", true, time.Now()))
	mock.ExpectExec(`UPDATE keys SET secret_hash`).
		WithArgs(id, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()

	_, err := repo.GetBySecret(ctx, secret)
	require.NoError(t, err)
	_, found := repo.cache.Get(hash)
	require.True(t, found)

	_, err = repo.Regenerate(ctx, id)
	require.NoError(t, err)

	_, found = repo.cache.Get(hash)
	assert.False(t, found)

	assert.NoError(t, mock.ExpectationsWereMet())
}
