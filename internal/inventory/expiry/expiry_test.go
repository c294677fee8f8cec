package expiry_test

import (
	"testing"
	"time"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/expiry"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)

func date(daysFromNow int) time.Time {
	return now.AddDate(0, 0, daysFromNow)
}

func TestClassify_TierBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		exp      time.Time
		wantTier expiry.Tier
		wantDays int
	}{
		{"long past", date(-10), expiry.TierExpired, -10},
		{"yesterday", date(-1), expiry.TierExpired, -1},
		{"expires today", date(0), expiry.TierExpired, 0},
		{"tomorrow", date(1), expiry.TierNearExpiry, 1},
		{"exactly seven days", date(7), expiry.TierNearExpiry, 7},
		{"eight days", date(8), expiry.TierWarning, 8},
		{"exactly thirty days", date(30), expiry.TierWarning, 30},
		{"thirty-one days", date(31), expiry.TierNormal, 31},
		{"far future", date(365), expiry.TierNormal, 365},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expiry.Classify(tt.exp, now)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantDays, got.DaysLeft)
		})
	}
}

func TestClassify_IgnoresTimeOfDay(t *testing.T) {
	// Expiring at 00:01 tomorrow and 23:59 tomorrow are both one day away.
	early := time.Date(2024, time.March, 16, 0, 1, 0, 0, time.UTC)
	late := time.Date(2024, time.March, 16, 23, 59, 0, 0, time.UTC)

	assert.Equal(t, 1, expiry.DaysLeft(early, now))
	assert.Equal(t, 1, expiry.DaysLeft(late, now))
}

func TestClassify_Deterministic(t *testing.T) {
	exp := date(12)
	first := expiry.Classify(exp, now)
	second := expiry.Classify(exp, now)
	assert.Equal(t, first, second)
}

func TestIsAlertCandidate(t *testing.T) {
	tests := []struct {
		name  string
		stock int
		exp   time.Time
		want  bool
	}{
		{"stock and inside window", 5, date(20), true},
		{"stock and expired", 5, date(-3), true},
		{"stock at window boundary", 5, date(30), true},
		{"stock outside window", 5, date(31), false},
		{"depleted batch never alerts", 0, date(2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expiry.IsAlertCandidate(tt.stock, tt.exp, now))
		})
	}
}

func TestAlertCutoff_AgreesWithClassify(t *testing.T) {
	cutoff := expiry.AlertCutoff(now)
	assert.Equal(t, time.Date(2024, time.April, 14, 0, 0, 0, 0, time.UTC), cutoff)

	// A lot expiring exactly on the cutoff is still inside the window, one
	// day later is out. The query filter and the classifier must agree.
	assert.True(t, expiry.IsAlertCandidate(1, cutoff, now))
	assert.Equal(t, expiry.TierWarning, expiry.Classify(cutoff, now).Tier)
	assert.False(t, expiry.IsAlertCandidate(1, cutoff.AddDate(0, 0, 1), now))
}
