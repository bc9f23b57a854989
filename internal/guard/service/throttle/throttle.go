// Package throttle caps process-wide request admission with a token bucket,
// in front of the per-user rate limiter. It protects the process as a whole;
// fairness between users is the rate limiter's job.
package throttle

import (
	"log/slog"

	"golang.org/x/time/rate"

	"aegis/internal/guard/metrics"
)

type Limiter struct {
	limiter    *rate.Limiter
	collectors *metrics.Collectors
	logger     *slog.Logger
}

type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithCollectors(c *metrics.Collectors) Option {
	return func(l *Limiter) {
		l.collectors = c
	}
}

// New builds a limiter admitting perSecond requests with the given burst.
// A zero or negative perSecond disables throttling entirely.
func New(perSecond, burst int, opts ...Option) *Limiter {
	l := &Limiter{}
	if perSecond > 0 {
		if burst < perSecond {
			burst = perSecond
		}
		l.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow reports whether one more request may enter the process right now.
func (l *Limiter) Allow() bool {
	if l.limiter == nil {
		return true
	}
	if l.limiter.Allow() {
		return true
	}
	if l.collectors != nil {
		l.collectors.ThrottleRejectionsTotal.Inc()
	}
	if l.logger != nil {
		l.logger.Warn("global throttle rejected request")
	}
	return false
}
