// Package requestcontext carries request-scoped metadata through context:
// a consistent "now" timestamp, a correlation ID, and a device summary.
// All operations within a single request observe the same clock reading,
// which keeps audit logs and window arithmetic consistent and lets tests
// inject a fixed time without a clock interface.
package requestcontext

import (
	"context"
	"time"
)

type contextKeyTime struct{}
type contextKeyCorrelationID struct{}
type contextKeyDevice struct{}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-request contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyTime{}, t)
}

// CorrelationID retrieves the correlation ID from context, or "" if unset.
func CorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyCorrelationID{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID injects a correlation ID into a context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyCorrelationID{}, id)
}

// Device retrieves the device summary ("browser/os/platform") from context.
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(contextKeyDevice{}).(string); ok {
		return d
	}
	return ""
}

// WithDevice injects a device summary into a context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, contextKeyDevice{}, device)
}
