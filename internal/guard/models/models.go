package models

import (
	"time"

	dErrors "aegis/pkg/domain-errors"
)

// OperationKind identifies a guarded profile operation. The set is closed:
// every rate-limit bucket, CSRF token, and status record is keyed by one of
// these values.
type OperationKind string

const (
	OpProfileRead   OperationKind = "profile_read"
	OpProfileUpdate OperationKind = "profile_update"
	OpProfileDelete OperationKind = "profile_delete"
	OpAvatarUpload  OperationKind = "avatar_upload"
	OpAvatarDelete  OperationKind = "avatar_delete"
	OpPrivacyUpdate OperationKind = "privacy_update"
	OpDataExport    OperationKind = "data_export"
)

// Operations lists all operation kinds in a stable order,
// used for status listings and config validation.
func Operations() []OperationKind {
	return []OperationKind{
		OpProfileRead,
		OpProfileUpdate,
		OpProfileDelete,
		OpAvatarUpload,
		OpAvatarDelete,
		OpPrivacyUpdate,
		OpDataExport,
	}
}

func (o OperationKind) IsValid() bool {
	switch o {
	case OpProfileRead, OpProfileUpdate, OpProfileDelete,
		OpAvatarUpload, OpAvatarDelete, OpPrivacyUpdate, OpDataExport:
		return true
	}
	return false
}

func (o OperationKind) String() string {
	return string(o)
}

// ParseOperationKind creates an OperationKind from a string, validating it.
func ParseOperationKind(s string) (OperationKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "operation cannot be empty")
	}
	o := OperationKind(s)
	if !o.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown operation: "+s)
	}
	return o, nil
}

// RateLimitEntry tracks attempts for one (user, operation) bucket.
// Created on first attempt, mutated on each subsequent attempt, reset when
// the window naturally expires, and deleted by the sweeper once both the
// window and any block period have elapsed.
type RateLimitEntry struct {
	UserID      string        `json:"user_id"`
	Operation   OperationKind `json:"operation"`
	Attempts    int           `json:"attempts"`
	WindowStart time.Time     `json:"window_start"`
	LastAttempt time.Time     `json:"last_attempt"`
	Blocked     bool          `json:"blocked"`
}

// NewRateLimitEntry creates an entry with domain invariant validation.
// Attempts starts at 1: an entry only exists once an attempt has been made.
func NewRateLimitEntry(userID string, operation OperationKind, now time.Time) (*RateLimitEntry, error) {
	if userID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user_id cannot be empty")
	}
	if !operation.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid operation kind")
	}
	return &RateLimitEntry{
		UserID:      userID,
		Operation:   operation,
		Attempts:    1,
		WindowStart: now,
		LastAttempt: now,
		Blocked:     false,
	}, nil
}

// BlockExpiresAt returns when the block on this entry lifts.
// Meaningful only when Blocked is true.
func (e *RateLimitEntry) BlockExpiresAt(blockDuration time.Duration) time.Time {
	return e.LastAttempt.Add(blockDuration)
}

// WindowExpired reports whether the sliding window has fully elapsed at now.
func (e *RateLimitEntry) WindowExpired(window time.Duration, now time.Time) bool {
	return now.Sub(e.WindowStart) > window
}

// RateLimitDecision is the admission verdict for a single attempt.
// Denial is a structured decision, never an error: the caller decides
// user-facing messaging.
type RateLimitDecision struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at,omitzero"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Blocked-reason tags attached to validation results.
const (
	ReasonXSSDetected          = "XSS_PATTERN_DETECTED"
	ReasonSQLInjectionDetected = "SQL_INJECTION_DETECTED"
	ReasonValidationSystemErr  = "VALIDATION_SYSTEM_ERROR"
)

// ValidationResult is produced per validation call; it is a pure function of
// (payload, operation) and is never persisted.
type ValidationResult struct {
	Valid          bool     `json:"is_valid"`
	Errors         []string `json:"errors"`
	RiskScore      int      `json:"risk_score"`
	BlockedReasons []string `json:"blocked_reasons,omitempty"`
	SanitizedData  any      `json:"sanitized_data,omitempty"`
}

// SecurityMetrics is a point-in-time snapshot of the guard's process-wide
// counters. Counters only move forward until an explicit operator reset.
type SecurityMetrics struct {
	TotalRequests       int64     `json:"total_requests"`
	BlockedRequests     int64     `json:"blocked_requests"`
	SuspiciousActivity  int64     `json:"suspicious_activity"`
	ValidationFailures  int64     `json:"validation_failures"`
	RateLimitViolations int64     `json:"rate_limit_violations"`
	LastUpdated         time.Time `json:"last_updated"`
}

// OperationStatus describes one user's standing against one operation's limit.
type OperationStatus struct {
	Operation OperationKind `json:"operation"`
	Attempts  int           `json:"attempts"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	Blocked   bool          `json:"blocked"`
	ResetAt   *time.Time    `json:"reset_at,omitempty"`
}
