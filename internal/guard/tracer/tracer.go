// Package tracer defines the guard's internal tracing interface so guard
// services do not depend on OpenTelemetry APIs directly.
package tracer

import "context"

// Attribute is a key/value pair attached to a span.
type Attribute struct {
	Key   string
	Value string
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Span represents an in-flight trace span.
type Span interface {
	// End completes the span, recording any error.
	End(err error)
}

// Tracer creates spans around guard operations.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Noop returns a tracer that does nothing. Used as the default so tracing
// stays optional.
func Noop() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
