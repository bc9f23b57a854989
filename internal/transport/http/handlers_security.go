package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"aegis/internal/guard"
	gmodels "aegis/internal/guard/models"
	"aegis/internal/platform/middleware"
	jsonwriter "aegis/internal/transport/http/json"
	"aegis/internal/transport/http/shared"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/validation"
)

// SecurityHandler exposes the guard's introspection surface: the metrics
// snapshot, per-user rate limit standing, and CSRF token issuance.
type SecurityHandler struct {
	logger *slog.Logger
	guard  *guard.Guard
}

func NewSecurityHandler(g *guard.Guard, logger *slog.Logger) *SecurityHandler {
	return &SecurityHandler{
		logger: logger,
		guard:  g,
	}
}

type issueCSRFRequest struct {
	Operation string `json:"operation" validate:"required"`
}

func (h *SecurityHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	jsonwriter.WriteJSON(w, http.StatusOK, h.guard.Metrics())
}

func (h *SecurityHandler) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	h.guard.ResetMetrics()
	h.logger.InfoContext(r.Context(), "security metrics reset",
		"user_id", middleware.GetUserID(r.Context()),
	)
	jsonwriter.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *SecurityHandler) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	statuses, err := h.guard.RateLimitStatus(r.Context(), userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":    userID,
		"operations": statuses,
	})
}

func (h *SecurityHandler) handleIssueCSRF(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req issueCSRFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	op, err := gmodels.ParseOperationKind(req.Operation)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown operation"))
		return
	}

	token, err := h.guard.IssueCSRFToken(userID, op)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"operation":  op.String(),
		"expires_in": int(h.guard.CSRFMaxAge() / time.Second),
	})
}
