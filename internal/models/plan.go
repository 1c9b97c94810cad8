package models

import "github.com/google/uuid"

// Plan is a named quota/rate policy shared across many keys.
type Plan struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	MonthlyQuota int64     `db:"monthly_quota" json:"monthlyQuota"`
	RateLimit    int       `db:"rate_limit" json:"rateLimit"`
}

// PlanUpdate carries a partial plan update. Nil fields are left unchanged.
// Only quota and rate limit are mutable; id and name are fixed at creation.
type PlanUpdate struct {
	MonthlyQuota *int64 `json:"monthlyQuota,omitempty"`
	RateLimit    *int   `json:"rateLimit,omitempty"`
}
