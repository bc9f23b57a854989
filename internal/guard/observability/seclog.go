// Package observability provides security event logging for the guard.
// Events go to the structured logger; events at or above a severity
// threshold are additionally forwarded to an external tracking backend
// through the Publisher interface.
package observability

//go:generate mockgen -source=seclog.go -destination=mocks/mocks.go -package=mocks Publisher

import (
	"context"
	"log/slog"

	"aegis/pkg/requestcontext"
)

// RiskLevel buckets a numeric risk score for reporting.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor derives the reporting level from an additive risk score:
// high at 70 and above, medium at 40 and above, low otherwise.
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Event is a security-relevant occurrence inside the guard.
type Event struct {
	EventType   string    `json:"event_type"`
	RiskLevel   RiskLevel `json:"risk_level"`
	ActionTaken string    `json:"action_taken"`
	UserID      string    `json:"user_id,omitempty"`
	Operation   string    `json:"operation,omitempty"`
	RiskScore   int       `json:"risk_score,omitempty"`
	Reasons     []string  `json:"reasons,omitempty"`
}

// Publisher forwards security events to an external tracking backend.
// Implementations decide their own severity threshold; emission is
// best-effort and must never block the request path.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// LogSecurityEvent writes an event to the structured logger and forwards it
// to the publisher if one is configured. Correlation ID and device summary
// are attached from context when present.
func LogSecurityEvent(ctx context.Context, logger *slog.Logger, publisher Publisher, event Event, attrs ...any) {
	if correlationID := requestcontext.CorrelationID(ctx); correlationID != "" {
		attrs = append(attrs, "correlation_id", correlationID)
	}
	if device := requestcontext.Device(ctx); device != "" {
		attrs = append(attrs, "device", device)
	}
	args := append(attrs,
		"event", event.EventType,
		"risk_level", string(event.RiskLevel),
		"action_taken", event.ActionTaken,
		"log_type", "security",
	)

	if logger != nil {
		logger.InfoContext(ctx, event.EventType, args...)
	}
	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit security event", "event", event.EventType, "error", err)
	}
}

// LogPublisher emits events to a dedicated audit logger at warn level. It
// stands in for an external tracking backend in single-process deployments.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Emit(ctx context.Context, event Event) error {
	if p.logger == nil {
		return nil
	}
	p.logger.WarnContext(ctx, "security event published",
		"event", event.EventType,
		"risk_level", string(event.RiskLevel),
		"action_taken", event.ActionTaken,
		"user_id", event.UserID,
		"operation", event.Operation,
		"risk_score", event.RiskScore,
		"reasons", event.Reasons,
		"log_type", "security_audit",
	)
	return nil
}

// MinLevelPublisher wraps a Publisher and drops events below a minimum risk
// level, mirroring an error-tracking backend that only receives events above
// a severity threshold.
type MinLevelPublisher struct {
	next Publisher
	min  RiskLevel
}

func NewMinLevelPublisher(next Publisher, min RiskLevel) *MinLevelPublisher {
	return &MinLevelPublisher{next: next, min: min}
}

func (p *MinLevelPublisher) Emit(ctx context.Context, event Event) error {
	if p.next == nil || rank(event.RiskLevel) < rank(p.min) {
		return nil
	}
	return p.next.Emit(ctx, event)
}

func rank(l RiskLevel) int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}
