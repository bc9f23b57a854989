package config

import (
	"time"

	"aegis/internal/guard/models"
)

// Limit defines the sliding-window parameters for one operation kind.
type Limit struct {
	Window        time.Duration
	MaxAttempts   int
	BlockDuration time.Duration
}

// Config holds all tunables of the security guard. It is loaded once at
// startup and treated as immutable afterwards; the defaults match the
// documented per-operation table and can be overridden via the environment.
type Config struct {
	// Per-operation sliding window limits.
	Limits map[models.OperationKind]Limit

	// SweepInterval controls how often the expiry sweeper scans the table.
	SweepInterval time.Duration

	// CSRFMaxAge is the default token validity window.
	CSRFMaxAge time.Duration

	// MaxAvatarBytes caps the declared avatar upload size.
	MaxAvatarBytes int64

	// Throttle caps process-wide request admission (token bucket).
	// A zero rate disables the throttle.
	ThrottlePerSecond int
	ThrottleBurst     int
}

// Default returns the guard defaults. The per-operation table is
// window / max attempts / block duration.
func Default() *Config {
	return &Config{
		Limits: map[models.OperationKind]Limit{
			models.OpProfileRead:   {Window: 5 * time.Minute, MaxAttempts: 100, BlockDuration: 5 * time.Minute},
			models.OpProfileUpdate: {Window: 10 * time.Minute, MaxAttempts: 10, BlockDuration: 15 * time.Minute},
			models.OpProfileDelete: {Window: 60 * time.Minute, MaxAttempts: 2, BlockDuration: 60 * time.Minute},
			models.OpAvatarUpload:  {Window: 15 * time.Minute, MaxAttempts: 5, BlockDuration: 30 * time.Minute},
			models.OpAvatarDelete:  {Window: 30 * time.Minute, MaxAttempts: 3, BlockDuration: 30 * time.Minute},
			models.OpPrivacyUpdate: {Window: 30 * time.Minute, MaxAttempts: 5, BlockDuration: 30 * time.Minute},
			models.OpDataExport:    {Window: 60 * time.Minute, MaxAttempts: 2, BlockDuration: 120 * time.Minute},
		},
		SweepInterval:     5 * time.Minute,
		CSRFMaxAge:        30 * time.Minute,
		MaxAvatarBytes:    5 << 20, // 5 MiB
		ThrottlePerSecond: 1000,
		ThrottleBurst:     2000,
	}
}

// LimitFor returns the limit for an operation kind, falling back to the
// profile_read limit for unknown kinds so a stale caller degrades to the
// most permissive read tier instead of panicking.
func (c *Config) LimitFor(op models.OperationKind) Limit {
	if l, ok := c.Limits[op]; ok {
		return l
	}
	return c.Limits[models.OpProfileRead]
}

// EntryExpired reports whether an entry is fully stale at now: its window has
// elapsed and, if blocked, its block period has also elapsed. Only such
// entries may be evicted by the sweeper.
func (c *Config) EntryExpired(e *models.RateLimitEntry, now time.Time) bool {
	l := c.LimitFor(e.Operation)
	if !e.WindowExpired(l.Window, now) {
		return false
	}
	if e.Blocked && now.Before(e.BlockExpiresAt(l.BlockDuration)) {
		return false
	}
	return true
}
