package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/guard/models"
)

func TestDefault_CoversEveryOperation(t *testing.T) {
	cfg := Default()
	for _, op := range models.Operations() {
		l, ok := cfg.Limits[op]
		require.True(t, ok, "missing limit for %s", op)
		assert.Positive(t, l.MaxAttempts)
		assert.Positive(t, l.Window)
		assert.Positive(t, l.BlockDuration)
	}
}

func TestLimitFor_FallsBackToReadTier(t *testing.T) {
	cfg := Default()
	l := cfg.LimitFor(models.OperationKind("unknown_op"))
	assert.Equal(t, cfg.Limits[models.OpProfileRead], l)
}

func TestEntryExpired(t *testing.T) {
	cfg := Default()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		entry   *models.RateLimitEntry
		expired bool
	}{
		{
			name: "active window is not expired",
			entry: &models.RateLimitEntry{
				UserID:      "u1",
				Operation:   models.OpProfileUpdate,
				Attempts:    3,
				WindowStart: now.Add(-5 * time.Minute),
				LastAttempt: now.Add(-time.Minute),
			},
			expired: false,
		},
		{
			name: "elapsed window without block is expired",
			entry: &models.RateLimitEntry{
				UserID:      "u1",
				Operation:   models.OpProfileUpdate,
				Attempts:    3,
				WindowStart: now.Add(-11 * time.Minute),
				LastAttempt: now.Add(-11 * time.Minute),
			},
			expired: true,
		},
		{
			name: "elapsed window with live block is not expired",
			entry: &models.RateLimitEntry{
				UserID:      "u1",
				Operation:   models.OpProfileUpdate,
				Attempts:    11,
				WindowStart: now.Add(-11 * time.Minute),
				LastAttempt: now.Add(-11 * time.Minute),
				Blocked:     true,
			},
			expired: false,
		},
		{
			name: "elapsed window and elapsed block is expired",
			entry: &models.RateLimitEntry{
				UserID:      "u1",
				Operation:   models.OpProfileUpdate,
				Attempts:    11,
				WindowStart: now.Add(-time.Hour),
				LastAttempt: now.Add(-time.Hour),
				Blocked:     true,
			},
			expired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, cfg.EntryExpired(tt.entry, now))
		})
	}
}
