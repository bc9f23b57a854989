package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"aegis/internal/guard"
	"aegis/internal/guard/service/throttle"
	"aegis/internal/guard/store/entry"
	"aegis/internal/profile/service"
	"aegis/internal/profile/store"
)

const testSigningKey = "test-signing-key"

type RouterSuite struct {
	suite.Suite
	router   http.Handler
	guard    *guard.Guard
	profiles *service.Service
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := guard.New(entry.New(), guard.WithLogger(logger))
	s.Require().NoError(err)
	s.guard = g

	profiles, err := service.New(store.New(), g, service.WithLogger(logger))
	s.Require().NoError(err)
	s.profiles = profiles

	_, err = profiles.Create(s.T().Context(), "user-1", "Ada", "correct horse battery staple")
	s.Require().NoError(err)

	s.router = NewRouter(RouterConfig{
		Logger:        logger,
		Guard:         g,
		Profiles:      profiles,
		Throttle:      throttle.New(0, 0),
		JWTSigningKey: testSigningKey,
	})
}

func (s *RouterSuite) bearer(userID string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSigningKey))
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *RouterSuite) do(method, path string, body any, userID string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", s.bearer(userID))
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *RouterSuite) csrfToken(userID, operation string) string {
	w := s.do(http.MethodPost, "/v1/security/csrf", map[string]string{"operation": operation}, userID)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (s *RouterSuite) TestHealthz_NoAuthRequired() {
	w := s.do(http.MethodGet, "/healthz", nil, "")
	s.Equal(http.StatusOK, w.Code)
}

func (s *RouterSuite) TestProfile_RequiresAuth() {
	w := s.do(http.MethodGet, "/v1/profile", nil, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestGetProfile() {
	w := s.do(http.MethodGet, "/v1/profile", nil, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"display_name":"Ada"`)
	s.NotContains(w.Body.String(), "password", "hash must never leave the service")
}

func (s *RouterSuite) TestUpdateProfile() {
	token := s.csrfToken("user-1", "profile_update")

	w := s.do(http.MethodPut, "/v1/profile", map[string]any{
		"bio":        "gopher",
		"csrf_token": token,
	}, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"bio":"gopher"`)
}

func (s *RouterSuite) TestUpdateProfile_MissingCSRF() {
	w := s.do(http.MethodPut, "/v1/profile", map[string]any{"bio": "gopher"}, "user-1")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "csrf_token is required")
}

func (s *RouterSuite) TestUpdateProfile_WrongCSRF() {
	token := s.csrfToken("user-1", "profile_read")

	w := s.do(http.MethodPut, "/v1/profile", map[string]any{
		"bio":        "gopher",
		"csrf_token": token,
	}, "user-1")
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RouterSuite) TestUpdateProfile_BlocksXSS() {
	token := s.csrfToken("user-1", "profile_update")

	w := s.do(http.MethodPut, "/v1/profile", map[string]any{
		"bio":        "<script>alert(1)</script>",
		"csrf_token": token,
	}, "user-1")
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "suspicious_input")
	s.Contains(w.Body.String(), "Potentially malicious content detected")
}

func (s *RouterSuite) TestDeleteProfile_WrongPassword() {
	token := s.csrfToken("user-1", "profile_delete")

	w := s.do(http.MethodDelete, "/v1/profile", map[string]any{
		"password":   "wrong",
		"csrf_token": token,
	}, "user-1")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *RouterSuite) TestExport_RateLimited() {
	// data_export allows 2 attempts per hour.
	for i := 0; i < 2; i++ {
		w := s.do(http.MethodGet, "/v1/profile/export", nil, "user-1")
		s.Require().Equal(http.StatusOK, w.Code, "attempt %d", i+1)
	}

	w := s.do(http.MethodGet, "/v1/profile/export", nil, "user-1")
	s.Require().Equal(http.StatusTooManyRequests, w.Code)
	s.NotEmpty(w.Header().Get("Retry-After"))
	s.Contains(w.Body.String(), "rate_limited")
}

func (s *RouterSuite) TestAvatarLifecycle() {
	upload := s.csrfToken("user-1", "avatar_upload")
	w := s.do(http.MethodPost, "/v1/profile/avatar", map[string]any{
		"avatar_url": "https://cdn.example.com/a.png",
		"size_bytes": 1024,
		"csrf_token": upload,
	}, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)

	remove := s.csrfToken("user-1", "avatar_delete")
	w = s.do(http.MethodDelete, "/v1/profile/avatar", map[string]any{
		"csrf_token": remove,
	}, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)
	s.NotContains(w.Body.String(), "avatar_url")
}

func (s *RouterSuite) TestUpdatePrivacy() {
	token := s.csrfToken("user-1", "privacy_update")

	w := s.do(http.MethodPut, "/v1/profile/privacy", map[string]any{
		"visibility": "private",
		"show_email": true,
		"csrf_token": token,
	}, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"visibility":"private"`)

	s.Run("unknown visibility is rejected before the service", func() {
		w := s.do(http.MethodPut, "/v1/profile/privacy", map[string]any{
			"visibility": "everyone",
			"csrf_token": token,
		}, "user-1")
		s.Equal(http.StatusBadRequest, w.Code)
		s.Contains(w.Body.String(), "visibility must be one of")
	})
}

func (s *RouterSuite) TestSecurityMetrics() {
	// Drive one validation failure so the counters move.
	token := s.csrfToken("user-1", "profile_update")
	s.do(http.MethodPut, "/v1/profile", map[string]any{
		"email":      "not-an-email",
		"csrf_token": token,
	}, "user-1")

	w := s.do(http.MethodGet, "/v1/security/metrics", nil, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)

	var m struct {
		TotalRequests      int64 `json:"total_requests"`
		ValidationFailures int64 `json:"validation_failures"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &m))
	s.Positive(m.TotalRequests)
	s.Positive(m.ValidationFailures)

	s.Run("reset zeroes the snapshot", func() {
		w := s.do(http.MethodPost, "/v1/security/metrics/reset", nil, "user-1")
		s.Require().Equal(http.StatusOK, w.Code)

		w = s.do(http.MethodGet, "/v1/security/metrics", nil, "user-1")
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &m))
		s.Zero(m.TotalRequests)
	})
}

func (s *RouterSuite) TestRateLimitStatus() {
	w := s.do(http.MethodGet, "/v1/security/rate-limits", nil, "user-1")
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		UserID     string `json:"user_id"`
		Operations []struct {
			Operation string `json:"operation"`
			Limit     int    `json:"limit"`
		} `json:"operations"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("user-1", resp.UserID)
	s.Len(resp.Operations, 7)
}

func (s *RouterSuite) TestIssueCSRF_UnknownOperation() {
	w := s.do(http.MethodPost, "/v1/security/csrf", map[string]string{"operation": "nuke"}, "user-1")
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *RouterSuite) TestThrottleShedsLoad() {
	router := NewRouter(RouterConfig{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Guard:         s.guard,
		Profiles:      s.profiles,
		Throttle:      throttle.New(1, 1),
		JWTSigningKey: testSigningKey,
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if i == 0 {
			s.Equal(http.StatusOK, w.Code)
		} else {
			s.Equal(http.StatusTooManyRequests, w.Code, fmt.Sprintf("request %d", i))
		}
	}
}
