// Package sweeper evicts stale rate limit entries on a fixed interval,
// bounding the memory of the in-memory table. An entry is stale once its
// window has elapsed and, if blocked, its block period has elapsed too.
// This is the only component that mutates the table outside of an
// admission check.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"aegis/internal/guard/config"
	"aegis/internal/guard/metrics"
	"aegis/internal/guard/models"
)

// Result contains the outcome of a single sweep.
type Result struct {
	Evicted int
}

// Store is the slice of the entry table the sweeper needs.
type Store interface {
	DeleteWhere(ctx context.Context, match func(*models.RateLimitEntry) bool) (int, error)
}

type Sweeper struct {
	store      Store
	logger     *slog.Logger
	interval   time.Duration
	config     *config.Config
	collectors *metrics.Collectors
	now        func() time.Time
}

type Option func(*Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Sweeper) {
		s.config = cfg
	}
}

func WithCollectors(c *metrics.Collectors) Option {
	return func(s *Sweeper) {
		s.collectors = c
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

func New(store Store, opts ...Option) *Sweeper {
	s := &Sweeper{
		store:    store,
		logger:   slog.Default(),
		interval: 5 * time.Minute,
		config:   config.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop until ctx is cancelled and returns ctx.Err().
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			startTime := time.Now()
			res, err := s.RunOnce(ctx)
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Error("guard_sweep_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				if s.collectors != nil {
					s.collectors.SweeperRunsTotal.WithLabelValues("error").Inc()
					s.collectors.SweeperDurationSeconds.Observe(duration.Seconds())
				}
				continue
			}

			s.logger.Debug("guard_sweep_completed",
				"evicted", res.Evicted,
				"duration_ms", duration.Milliseconds(),
			)
			if s.collectors != nil {
				s.collectors.SweeperRunsTotal.WithLabelValues("success").Inc()
				s.collectors.SweeperEvictedTotal.Add(float64(res.Evicted))
				s.collectors.SweeperDurationSeconds.Observe(duration.Seconds())
			}

		case <-ctx.Done():
			s.logger.Info("guard sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
func (s *Sweeper) RunOnce(ctx context.Context) (*Result, error) {
	now := s.now()
	evicted, err := s.store.DeleteWhere(ctx, func(e *models.RateLimitEntry) bool {
		return s.config.EntryExpired(e, now)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Evicted: evicted}, nil
}
