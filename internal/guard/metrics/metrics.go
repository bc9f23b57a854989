package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aegis/internal/guard/models"
)

// Counters holds the guard's process-wide security counters. They are the
// canonical SecurityMetrics view: monotonically increasing for the life of
// the process and reset only by explicit operator action.
//
// Counters is safe for concurrent use and cheap to construct, so every test
// gets a fresh instance. The prometheus Collectors below mirror the same
// events for scraping but, being prometheus counters, never reset.
type Counters struct {
	totalRequests       atomic.Int64
	blockedRequests     atomic.Int64
	suspiciousActivity  atomic.Int64
	validationFailures  atomic.Int64
	rateLimitViolations atomic.Int64
	lastUpdated         atomic.Int64 // unix nanos, 0 means never
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) touch() {
	c.lastUpdated.Store(time.Now().UnixNano())
}

func (c *Counters) IncTotalRequests() {
	c.totalRequests.Add(1)
	c.touch()
}

func (c *Counters) IncBlockedRequests() {
	c.blockedRequests.Add(1)
	c.touch()
}

func (c *Counters) IncSuspiciousActivity() {
	c.suspiciousActivity.Add(1)
	c.touch()
}

func (c *Counters) IncValidationFailures() {
	c.validationFailures.Add(1)
	c.touch()
}

func (c *Counters) IncRateLimitViolations() {
	c.rateLimitViolations.Add(1)
	c.touch()
}

// Snapshot returns a point-in-time copy of all counters.
func (c *Counters) Snapshot() models.SecurityMetrics {
	m := models.SecurityMetrics{
		TotalRequests:       c.totalRequests.Load(),
		BlockedRequests:     c.blockedRequests.Load(),
		SuspiciousActivity:  c.suspiciousActivity.Load(),
		ValidationFailures:  c.validationFailures.Load(),
		RateLimitViolations: c.rateLimitViolations.Load(),
	}
	if ns := c.lastUpdated.Load(); ns != 0 {
		m.LastUpdated = time.Unix(0, ns)
	}
	return m
}

// Reset zeroes all counters. Operator action only.
func (c *Counters) Reset() {
	c.totalRequests.Store(0)
	c.blockedRequests.Store(0)
	c.suspiciousActivity.Store(0)
	c.validationFailures.Store(0)
	c.rateLimitViolations.Store(0)
	c.touch()
}

// Collectors exposes guard activity to prometheus. Registered once at
// startup via promauto; services treat it as optional so unit tests do not
// touch the default registry.
type Collectors struct {
	RateLimitChecksTotal     *prometheus.CounterVec
	RateLimitViolationsTotal prometheus.Counter
	ValidationChecksTotal    *prometheus.CounterVec
	ValidationRiskScore      prometheus.Histogram
	SweeperRunsTotal         *prometheus.CounterVec
	SweeperEvictedTotal      prometheus.Counter
	SweeperDurationSeconds   prometheus.Histogram
	ThrottleRejectionsTotal  prometheus.Counter
	CSRFVerificationsTotal   *prometheus.CounterVec
}

func New() *Collectors {
	return &Collectors{
		RateLimitChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_guard_ratelimit_checks_total",
			Help: "Total number of rate limit admission checks",
		}, []string{"operation", "allowed"}),
		RateLimitViolationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_guard_ratelimit_violations_total",
			Help: "Total number of denied attempts due to rate limiting",
		}),
		ValidationChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_guard_validation_checks_total",
			Help: "Total number of payload validations",
		}, []string{"operation", "valid"}),
		ValidationRiskScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "aegis_guard_validation_risk_score",
			Help:    "Risk score distribution across payload validations",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 70, 100},
		}),
		SweeperRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_guard_sweeper_runs_total",
			Help: "Total number of expiry sweeper runs",
		}, []string{"status"}),
		SweeperEvictedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_guard_sweeper_evicted_total",
			Help: "Total number of stale rate limit entries evicted",
		}),
		SweeperDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "aegis_guard_sweeper_duration_seconds",
			Help: "Duration of sweeper runs in seconds",
		}),
		ThrottleRejectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "aegis_guard_throttle_rejections_total",
			Help: "Total number of requests rejected by the global throttle",
		}),
		CSRFVerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "aegis_guard_csrf_verifications_total",
			Help: "Total number of CSRF token verifications",
		}, []string{"result"}),
	}
}
