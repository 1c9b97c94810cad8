package models

// Validation error codes returned to callers.
const (
	ErrCodeInvalidKey    = "invalid_key"
	ErrCodeKeyInactive   = "key_inactive"
	ErrCodeQuotaExceeded = "quota_exceeded"
	ErrCodeRateLimited   = "rate_limited"
)

// AlertQuota90Percent is attached to a valid verdict the first time a key
// crosses 90% of its quota in a period.
const AlertQuota90Percent = "quota_90_percent"

// Verdict is the validation engine's structured accept/reject response.
type Verdict struct {
	Valid     bool   `json:"valid"`
	Remaining *int64 `json:"remaining,omitempty"`
	Error     string `json:"error,omitempty"`
	Alert     string `json:"alert,omitempty"`
}
