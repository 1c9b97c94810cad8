package usage

import "time"

// Retention is how long counters and gate markers are kept after first use.
// Cleanup policy only; correctness never depends on expiry.
const Retention = 90 * 24 * time.Hour

// Period returns the metering period label for t: the UTC calendar month
// as YYYY-MM. Usage resets when the label changes.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}
