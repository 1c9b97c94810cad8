package models

import (
	"time"

	"github.com/google/uuid"
)

// Key is an issued API credential bound to a plan and an owner.
// The plaintext secret is never stored; only its SHA-256 hash is kept,
// and the hash doubles as the lookup index for validation calls.
type Key struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	SecretHash string    `db:"secret_hash" json:"-"`
	PlanID     uuid.UUID `db:"plan_id" json:"planId"`
	OwnerID    string    `db:"owner_id" json:"ownerId"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
