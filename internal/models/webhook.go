package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// WebhookEvent identifies a threshold event kind a subscription can receive.
type WebhookEvent string

const (
	// EventQuota90Percent fires when a key first crosses 90% of its monthly quota.
	EventQuota90Percent WebhookEvent = "quota.90_percent"

	// EventQuotaExceeded fires when a key first hits its monthly quota.
	EventQuotaExceeded WebhookEvent = "quota.exceeded"
)

// ValidEvents lists every event kind a subscription may register for.
var ValidEvents = []WebhookEvent{EventQuota90Percent, EventQuotaExceeded}

// IsValidEvent reports whether s names a known event kind.
func IsValidEvent(s string) bool {
	for _, e := range ValidEvents {
		if string(e) == s {
			return true
		}
	}
	return false
}

// Webhook is a subscriber endpoint registered by an owner.
type Webhook struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	OwnerID   string         `db:"owner_id" json:"ownerId"`
	URL       string         `db:"url" json:"url"`
	Events    pq.StringArray `db:"events" json:"events"`
	Active    bool           `db:"active" json:"active"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// SubscribesTo reports whether the webhook wants the given event.
func (w *Webhook) SubscribesTo(event WebhookEvent) bool {
	for _, e := range w.Events {
		if e == string(event) {
			return true
		}
	}
	return false
}

// WebhookUpdate carries a partial subscription update. Nil fields are left unchanged.
type WebhookUpdate struct {
	URL    *string  `json:"url,omitempty"`
	Events []string `json:"events,omitempty"`
	Active *bool    `json:"active,omitempty"`
}

// WebhookPayload is the fixed outbound delivery body.
type WebhookPayload struct {
	Event     WebhookEvent       `json:"event"`
	Timestamp int64              `json:"timestamp"` // epoch milliseconds
	Data      WebhookPayloadData `json:"data"`
}

// WebhookPayloadData describes the key whose threshold was crossed.
type WebhookPayloadData struct {
	KeyID        string  `json:"keyId"`
	KeyName      string  `json:"keyName"`
	PlanName     string  `json:"planName"`
	CurrentUsage int64   `json:"currentUsage"`
	MonthlyQuota int64   `json:"monthlyQuota"`
	PercentUsed  float64 `json:"percentUsed"`
}
