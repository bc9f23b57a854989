// Package ratelimit implements per-(user, operation) sliding-window
// admission control. An attempt inside the window increments the bucket;
// exceeding the operation's maximum marks the bucket blocked for the
// configured cool-down. Denial is a structured decision, never an error,
// so a caller's request path cannot fail on admission control itself.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aegis/internal/guard/config"
	"aegis/internal/guard/metrics"
	"aegis/internal/guard/models"
	"aegis/internal/guard/observability"
	"aegis/internal/guard/tracer"
	"aegis/pkg/requestcontext"
)

// Store is the rate limit table the service decides over. Update must
// apply its mutation function atomically with respect to other calls on
// the same (userID, operation) key.
type Store interface {
	Update(ctx context.Context, userID string, operation models.OperationKind, fn func(*models.RateLimitEntry) (*models.RateLimitEntry, error)) (*models.RateLimitEntry, error)
	Delete(ctx context.Context, userID string, operation models.OperationKind) error
	ListByUser(ctx context.Context, userID string) ([]*models.RateLimitEntry, error)
}

type Service struct {
	store      Store
	counters   *metrics.Counters
	collectors *metrics.Collectors
	publisher  observability.Publisher
	logger     *slog.Logger
	tracer     tracer.Tracer
	config     *config.Config
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher observability.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

func WithCollectors(c *metrics.Collectors) Option {
	return func(s *Service) {
		s.collectors = c
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func New(store Store, counters *metrics.Counters, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	if counters == nil {
		return nil, fmt.Errorf("security counters are required")
	}

	svc := &Service{
		store:    store,
		counters: counters,
		config:   config.Default(),
		tracer:   tracer.Noop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check decides admission for one attempt at (userID, operation).
// The decision is purely a function of in-memory state and the
// request-scoped clock; logging side effects are best-effort.
func (s *Service) Check(ctx context.Context, userID string, operation models.OperationKind) (decision *models.RateLimitDecision, err error) {
	ctx, span := s.tracer.Start(ctx, "guard.ratelimit.check",
		tracer.String("operation", operation.String()),
	)
	defer func() { span.End(err) }()

	now := requestcontext.Now(ctx)
	limit := s.config.LimitFor(operation)

	// The entire read-modify-write runs inside the store's critical section
	// so concurrent checks on the same bucket serialize instead of losing
	// increments. Logging and counters happen after, outside the lock.
	var blockedUntil time.Time
	e, err := s.store.Update(ctx, userID, operation, func(e *models.RateLimitEntry) (*models.RateLimitEntry, error) {
		if e != nil && e.Blocked {
			expiry := e.BlockExpiresAt(limit.BlockDuration)
			if now.Before(expiry) {
				blockedUntil = expiry
				return e, nil
			}
			// Block elapsed: the bucket gets a fresh start.
			e = nil
		}
		if e == nil || e.WindowExpired(limit.Window, now) {
			return models.NewRateLimitEntry(userID, operation, now)
		}
		e.Attempts++
		e.LastAttempt = now
		if e.Attempts > limit.MaxAttempts {
			e.Blocked = true
		}
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	// Still inside a block period: deny with the remaining cool-down.
	if !blockedUntil.IsZero() {
		s.recordDenial(operation)
		observability.LogSecurityEvent(ctx, s.logger, s.publisher, observability.Event{
			EventType:   "rate_limit_blocked",
			RiskLevel:   observability.RiskMedium,
			ActionTaken: "denied",
			UserID:      userID,
			Operation:   operation.String(),
		},
			"block_remaining_s", int(blockedUntil.Sub(now).Seconds()),
		)
		return s.denied(limit, blockedUntil, now), nil
	}

	// This attempt tipped the bucket over the limit.
	if e.Blocked {
		s.recordDenial(operation)
		observability.LogSecurityEvent(ctx, s.logger, s.publisher, observability.Event{
			EventType:   "rate_limit_exceeded",
			RiskLevel:   observability.RiskHigh,
			ActionTaken: "blocked",
			UserID:      userID,
			Operation:   operation.String(),
		},
			"attempts", e.Attempts,
			"max_attempts", limit.MaxAttempts,
			"block_duration_s", int(limit.BlockDuration.Seconds()),
		)
		return s.denied(limit, now.Add(limit.BlockDuration), now), nil
	}

	if s.collectors != nil {
		s.collectors.RateLimitChecksTotal.WithLabelValues(operation.String(), "true").Inc()
	}
	return &models.RateLimitDecision{
		Allowed:   true,
		Limit:     limit.MaxAttempts,
		Remaining: limit.MaxAttempts - e.Attempts,
		ResetAt:   e.WindowStart.Add(limit.Window),
	}, nil
}

// Status reports the user's standing against every operation's limit.
func (s *Service) Status(ctx context.Context, userID string) ([]models.OperationStatus, error) {
	now := requestcontext.Now(ctx)

	entries, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	byOp := make(map[models.OperationKind]*models.RateLimitEntry, len(entries))
	for _, e := range entries {
		byOp[e.Operation] = e
	}

	statuses := make([]models.OperationStatus, 0, len(models.Operations()))
	for _, op := range models.Operations() {
		limit := s.config.LimitFor(op)
		st := models.OperationStatus{
			Operation: op,
			Limit:     limit.MaxAttempts,
			Remaining: limit.MaxAttempts,
		}

		e := byOp[op]
		switch {
		case e == nil:
			// untouched bucket
		case e.Blocked && now.Before(e.BlockExpiresAt(limit.BlockDuration)):
			expiry := e.BlockExpiresAt(limit.BlockDuration)
			st.Attempts = e.Attempts
			st.Remaining = 0
			st.Blocked = true
			st.ResetAt = &expiry
		case e.Blocked || e.WindowExpired(limit.Window, now):
			// stale bucket, next attempt starts fresh
		default:
			resetAt := e.WindowStart.Add(limit.Window)
			st.Attempts = e.Attempts
			st.Remaining = max(limit.MaxAttempts-e.Attempts, 0)
			st.ResetAt = &resetAt
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// Clear drops the bucket for (userID, operation). Operator escape hatch.
func (s *Service) Clear(ctx context.Context, userID string, operation models.OperationKind) error {
	return s.store.Delete(ctx, userID, operation)
}

func (s *Service) denied(limit config.Limit, resetAt, now time.Time) *models.RateLimitDecision {
	return &models.RateLimitDecision{
		Allowed:    false,
		Limit:      limit.MaxAttempts,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: int(resetAt.Sub(now).Seconds()),
	}
}

func (s *Service) recordDenial(operation models.OperationKind) {
	s.counters.IncRateLimitViolations()
	s.counters.IncBlockedRequests()
	if s.collectors != nil {
		s.collectors.RateLimitChecksTotal.WithLabelValues(operation.String(), "false").Inc()
		s.collectors.RateLimitViolationsTotal.Inc()
	}
}
