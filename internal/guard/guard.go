// Package guard composes the profile security services behind one facade:
// sliding-window rate limiting, payload risk scoring, CSRF token issuance,
// and the shared process counters. Callers interact with the facade only;
// the services underneath share a single counter set so the metrics
// snapshot is consistent across all of them.
package guard

import (
	"context"
	"log/slog"
	"time"

	"aegis/internal/guard/config"
	"aegis/internal/guard/metrics"
	"aegis/internal/guard/models"
	"aegis/internal/guard/observability"
	"aegis/internal/guard/service/csrf"
	"aegis/internal/guard/service/ratelimit"
	"aegis/internal/guard/service/validator"
	"aegis/internal/guard/tracer"
)

// Store is the rate limit table the guard owns for its lifetime. Beyond the
// limiter's needs it must support clearing, which Close uses on disposal.
type Store interface {
	ratelimit.Store
	Clear(ctx context.Context) error
}

type Guard struct {
	store     Store
	limiter   *ratelimit.Service
	validator *validator.Service
	csrf      *csrf.Issuer
	counters  *metrics.Counters
	config    *config.Config
}

type Option func(*options)

type options struct {
	logger     *slog.Logger
	publisher  observability.Publisher
	config     *config.Config
	collectors *metrics.Collectors
	tracer     tracer.Tracer
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithPublisher(publisher observability.Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.config = cfg
	}
}

func WithCollectors(c *metrics.Collectors) Option {
	return func(o *options) {
		o.collectors = c
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// New wires the guard services over the given rate limit store. All
// services share one Counters instance and the same logger, publisher,
// config, and tracer.
func New(store Store, opts ...Option) (*Guard, error) {
	o := &options{
		config: config.Default(),
		tracer: tracer.Noop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	counters := metrics.NewCounters()

	limiter, err := ratelimit.New(store, counters,
		ratelimit.WithLogger(o.logger),
		ratelimit.WithPublisher(o.publisher),
		ratelimit.WithConfig(o.config),
		ratelimit.WithCollectors(o.collectors),
		ratelimit.WithTracer(o.tracer),
	)
	if err != nil {
		return nil, err
	}

	val, err := validator.New(counters,
		validator.WithLogger(o.logger),
		validator.WithPublisher(o.publisher),
		validator.WithConfig(o.config),
		validator.WithCollectors(o.collectors),
		validator.WithTracer(o.tracer),
	)
	if err != nil {
		return nil, err
	}

	issuer := csrf.New(
		csrf.WithMaxAge(o.config.CSRFMaxAge),
		csrf.WithCollectors(o.collectors),
	)

	return &Guard{
		store:     store,
		limiter:   limiter,
		validator: val,
		csrf:      issuer,
		counters:  counters,
		config:    o.config,
	}, nil
}

// CheckRateLimit decides admission for one attempt at (userID, operation).
func (g *Guard) CheckRateLimit(ctx context.Context, userID string, operation models.OperationKind) (*models.RateLimitDecision, error) {
	return g.limiter.Check(ctx, userID, operation)
}

// RateLimitStatus reports the user's standing against every operation.
func (g *Guard) RateLimitStatus(ctx context.Context, userID string) ([]models.OperationStatus, error) {
	return g.limiter.Status(ctx, userID)
}

// ClearRateLimit drops the bucket for (userID, operation).
func (g *Guard) ClearRateLimit(ctx context.Context, userID string, operation models.OperationKind) error {
	return g.limiter.Clear(ctx, userID, operation)
}

// ValidateProfileInput scores a payload and produces a sanitized copy.
func (g *Guard) ValidateProfileInput(ctx context.Context, payload any, operation models.OperationKind) *models.ValidationResult {
	return g.validator.Validate(ctx, payload, operation)
}

// IssueCSRFToken mints a token binding (userID, operation) to the current time.
func (g *Guard) IssueCSRFToken(userID string, operation models.OperationKind) (string, error) {
	return g.csrf.Issue(userID, operation)
}

// VerifyCSRFToken reports whether the token matches (userID, operation) and
// is inside the configured max age. All failures are a silent false.
func (g *Guard) VerifyCSRFToken(token, userID string, operation models.OperationKind) bool {
	return g.csrf.Verify(token, userID, operation)
}

// VerifyCSRFTokenWithMaxAge is VerifyCSRFToken with a caller-supplied
// validity window instead of the configured one.
func (g *Guard) VerifyCSRFTokenWithMaxAge(token, userID string, operation models.OperationKind, maxAge time.Duration) bool {
	return g.csrf.VerifyWithMaxAge(token, userID, operation, maxAge)
}

// CSRFMaxAge reports how long issued CSRF tokens stay valid.
func (g *Guard) CSRFMaxAge() time.Duration {
	return g.config.CSRFMaxAge
}

// Metrics returns a point-in-time snapshot of the shared security counters.
func (g *Guard) Metrics() models.SecurityMetrics {
	return g.counters.Snapshot()
}

// ResetMetrics zeroes the shared counters. Operator escape hatch.
func (g *Guard) ResetMetrics() {
	g.counters.Reset()
}

// Close releases the rate limit table on shutdown. The sweeper is stopped
// separately by cancelling its context; Close drops the state it swept.
func (g *Guard) Close(ctx context.Context) error {
	return g.store.Clear(ctx)
}
