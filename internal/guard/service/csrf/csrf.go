// Package csrf issues and verifies short-lived tokens bound to a
// (user, operation) pair. Tokens are stateless: validity is determined
// purely by decoding and age-checking, with no server-side store.
//
// The encoding is reversible base64, not a MAC, so a token proves freshness
// and binding but not authenticity: anyone who can guess a user ID and
// operation can construct one. Kept byte-compatible with the original
// scheme; a keyed HMAC over the same fields would be the hardening path.
package csrf

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"aegis/internal/guard/metrics"
	"aegis/internal/guard/models"
	dErrors "aegis/pkg/domain-errors"
)

const (
	delimiter = "|"

	// DefaultMaxAge bounds token validity when the caller does not override it.
	DefaultMaxAge = 30 * time.Minute
)

type Issuer struct {
	maxAge     time.Duration
	collectors *metrics.Collectors
	now        func() time.Time
}

type Option func(*Issuer)

// WithMaxAge overrides the default token validity window.
func WithMaxAge(maxAge time.Duration) Option {
	return func(i *Issuer) {
		if maxAge > 0 {
			i.maxAge = maxAge
		}
	}
}

func WithCollectors(c *metrics.Collectors) Option {
	return func(i *Issuer) {
		i.collectors = c
	}
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) {
		i.now = now
	}
}

func New(opts ...Option) *Issuer {
	i := &Issuer{
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue creates a token bound to (userID, operation) at the current time.
func (i *Issuer) Issue(userID string, operation models.OperationKind) (string, error) {
	if userID == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user_id cannot be empty")
	}
	if strings.Contains(userID, delimiter) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "user_id contains reserved delimiter")
	}
	if !operation.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid operation kind")
	}

	raw := fmt.Sprintf("%s%s%s%s%d", userID, delimiter, operation, delimiter, i.now().UnixMilli())
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify reports whether token is valid for (userID, operation) under the
// issuer's default max age.
func (i *Issuer) Verify(token, userID string, operation models.OperationKind) bool {
	return i.VerifyWithMaxAge(token, userID, operation, i.maxAge)
}

// VerifyWithMaxAge checks binding and freshness. Malformed tokens are
// expected adversarial input: every failure is a silent false, never an
// error or panic.
func (i *Issuer) VerifyWithMaxAge(token, userID string, operation models.OperationKind, maxAge time.Duration) bool {
	ok := i.verify(token, userID, operation, maxAge)
	if i.collectors != nil {
		result := "ok"
		if !ok {
			result = "rejected"
		}
		i.collectors.CSRFVerificationsTotal.WithLabelValues(result).Inc()
	}
	return ok
}

func (i *Issuer) verify(token, userID string, operation models.OperationKind, maxAge time.Duration) bool {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	parts := strings.Split(string(decoded), delimiter)
	if len(parts) != 3 {
		return false
	}
	if parts[0] != userID || parts[1] != string(operation) {
		return false
	}
	issuedAt, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return false
	}
	age := i.now().UnixMilli() - issuedAt
	return age <= maxAge.Milliseconds()
}
