// Package httptransport is the thin HTTP layer. Handlers delegate to the
// domain services without embedding business logic so transport concerns
// remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aegis/internal/guard"
	"aegis/internal/guard/service/throttle"
	"aegis/internal/platform/middleware"
)

const maxBodyBytes = 1 << 20 // request bodies carry profile fields, not files

// RouterConfig carries the dependencies the router wires together.
type RouterConfig struct {
	Logger        *slog.Logger
	Guard         *guard.Guard
	Profiles      ProfileService
	Throttle      *throttle.Limiter
	JWTSigningKey string
}

// NewRouter wires all endpoints with the middleware chain. The ordering
// matters: the throttle sits before authentication so an over-capacity
// process sheds load without paying for token parsing.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.DeviceContext)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Throttle(cfg.Throttle))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	profiles := NewProfileHandler(cfg.Profiles, cfg.Logger)
	security := NewSecurityHandler(cfg.Guard, cfg.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWTSigningKey, cfg.Logger))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", profiles.handleGet)
			r.Put("/", profiles.handleUpdate)
			r.Delete("/", profiles.handleDelete)
			r.Post("/avatar", profiles.handleUploadAvatar)
			r.Delete("/avatar", profiles.handleDeleteAvatar)
			r.Put("/privacy", profiles.handleUpdatePrivacy)
			r.Get("/export", profiles.handleExport)
		})

		r.Route("/security", func(r chi.Router) {
			r.Get("/metrics", security.handleMetrics)
			r.Post("/metrics/reset", security.handleMetricsReset)
			r.Get("/rate-limits", security.handleRateLimits)
			r.Post("/csrf", security.handleIssueCSRF)
		})
	})

	return r
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
