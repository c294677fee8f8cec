// Package expiry classifies batch expiration dates into urgency tiers.
// All functions are pure: "now" is always an explicit parameter so callers
// (and tests) control the clock.
package expiry

import "time"

// Tier is the expiration urgency classification of a batch.
type Tier string

const (
	TierExpired    Tier = "expired"
	TierNearExpiry Tier = "near_expiry"
	TierWarning    Tier = "warning"
	TierNormal     Tier = "normal"
)

// AlertWindowDays is the horizon within which a batch with remaining stock
// becomes an alert candidate.
const AlertWindowDays = 30

// Classification is the result of classifying an expiration date.
type Classification struct {
	Tier     Tier `json:"tier"`
	DaysLeft int  `json:"days_left"`
}

// DaysLeft returns the calendar-day difference between the expiration date
// and now. Both are truncated to their calendar date first, so the result
// does not depend on the time of day. Negative means already past.
func DaysLeft(expiration, now time.Time) int {
	exp := truncateToDay(expiration)
	today := truncateToDay(now)
	return int(exp.Sub(today).Hours() / 24)
}

// Classify computes the urgency tier and day count for an expiration date.
// Boundaries are closed: 0 days left is already Expired, exactly 7 is
// NearExpiry, exactly 30 is Warning.
func Classify(expiration, now time.Time) Classification {
	daysLeft := DaysLeft(expiration, now)

	var tier Tier
	switch {
	case daysLeft <= 0:
		tier = TierExpired
	case daysLeft <= 7:
		tier = TierNearExpiry
	case daysLeft <= AlertWindowDays:
		tier = TierWarning
	default:
		tier = TierNormal
	}

	return Classification{Tier: tier, DaysLeft: daysLeft}
}

// AlertCutoff returns the latest expiration date, relative to now, that
// still falls within the alert window. Queries prefiltering on expiration
// should use this cutoff so they agree with Classify at the boundary.
func AlertCutoff(now time.Time) time.Time {
	return truncateToDay(now).AddDate(0, 0, AlertWindowDays)
}

// IsAlertCandidate reports whether a batch with the given stock and
// expiration date belongs on the expiration alert list.
func IsAlertCandidate(stock int, expiration, now time.Time) bool {
	return stock > 0 && DaysLeft(expiration, now) <= AlertWindowDays
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
