package shared

import (
	"errors"
	"net/http"
	"strconv"

	gmodels "aegis/internal/guard/models"
	"aegis/internal/transport/http/json"
	dErrors "aegis/pkg/domain-errors"
)

// WriteError centralizes domain error translation to HTTP responses.
// It translates transport-agnostic domain errors into HTTP status codes and
// error responses.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": string(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		json.WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	// Fallback for unexpected errors
	json.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": string(dErrors.CodeInternal),
	})
}

// WriteRateLimited writes a 429 with the Retry-After hint from the decision.
func WriteRateLimited(w http.ResponseWriter, decision *gmodels.RateLimitDecision) {
	if decision != nil && decision.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfter))
	}
	response := map[string]any{
		"error":             string(dErrors.CodeRateLimited),
		"error_description": "Too many requests. Please try again later.",
	}
	if decision != nil {
		response["retry_after"] = decision.RetryAfter
		response["limit"] = decision.Limit
	}
	json.WriteJSON(w, http.StatusTooManyRequests, response)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeSuspiciousInput:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeInvalidToken:
		return http.StatusForbidden
	case dErrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case dErrors.CodeInternal, dErrors.CodeInvariantViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
