// Package validator inspects profile payloads for malicious patterns and
// malformed fields, accumulating an additive risk score instead of a simple
// pass/fail. Graduated scores allow callers to distinguish log-only findings
// from hard blocks and make every decision auditable.
package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"aegis/internal/guard/config"
	"aegis/internal/guard/metrics"
	"aegis/internal/guard/models"
	"aegis/internal/guard/observability"
	"aegis/internal/guard/tracer"
)

type Service struct {
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

func New(counters *metrics.Counters, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, fmt.Errorf("security counters are required")
	}

	svc := &Service{
		counters: counters,
		config:   config.Default(),
		tracer:   tracer.Noop(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Validate scores a payload against the guard's rule set and produces a
// sanitized copy. It is a pure function of (payload, operation) plus the
// process counters it updates, and it never propagates a fault: any internal
// panic degrades to a maximal-risk result instead of crashing the request
// path.
func (s *Service) Validate(ctx context.Context, payload any, operation models.OperationKind) (result *models.ValidationResult) {
	ctx, span := s.tracer.Start(ctx, "guard.validator.validate",
		tracer.String("operation", operation.String()),
	)
	defer func() { span.End(nil) }()

	s.counters.IncTotalRequests()

	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "validator fault", "panic", fmt.Sprint(r))
			}
			result = &models.ValidationResult{
				Valid:          false,
				Errors:         []string{"Validation system error"},
				RiskScore:      scoreSystemError,
				BlockedReasons: []string{models.ReasonValidationSystemErr},
			}
			s.recordOutcome(ctx, result, operation)
		}
	}()

	result = s.run(payload, operation)
	s.recordOutcome(ctx, result, operation)
	return result
}

func (s *Service) run(payload any, operation models.OperationKind) *models.ValidationResult {
	res := &models.ValidationResult{Errors: []string{}}

	obj, ok := payload.(map[string]any)
	if payload == nil || !ok || obj == nil {
		res.Errors = append(res.Errors, "Invalid input data format")
		res.RiskScore += scoreInvalidFormat
		res.Valid = len(res.Errors) == 0 && res.RiskScore < blockThreshold
		return res
	}

	serialized := serialize(obj)
	s.scanDangerousPatterns(serialized, res)
	s.checkFields(obj, operation, res)

	res.SanitizedData = sanitize(obj)
	res.Valid = len(res.Errors) == 0 && res.RiskScore < blockThreshold
	return res
}

// serialize renders the payload as a single string for pattern scanning.
// HTML escaping is disabled so markup like <script> survives into the
// scanned text.
func serialize(obj map[string]any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		// Unencodable payloads (channels, funcs) still get field checks;
		// pattern scanning falls back to the fmt rendering.
		return fmt.Sprint(obj)
	}
	return buf.String()
}

// scanDangerousPatterns applies the ordered XSS and SQL injection tables.
// The first match within each category short-circuits that category.
func (s *Service) scanDangerousPatterns(serialized string, res *models.ValidationResult) {
	for _, p := range xssPatterns {
		if p.MatchString(serialized) {
			res.Errors = append(res.Errors, "Potentially malicious content detected")
			res.RiskScore += scoreXSS
			res.BlockedReasons = append(res.BlockedReasons, models.ReasonXSSDetected)
			break
		}
	}
	for _, p := range sqlPatterns {
		if p.MatchString(serialized) {
			res.Errors = append(res.Errors, "SQL injection attempt detected")
			res.RiskScore += scoreSQLInjection
			res.BlockedReasons = append(res.BlockedReasons, models.ReasonSQLInjectionDetected)
			break
		}
	}
}

// checkFields runs the field-specific rules. Each rule is independent; none
// short-circuits the others.
func (s *Service) checkFields(obj map[string]any, operation models.OperationKind, res *models.ValidationResult) {
	if raw, present := obj["email"]; present {
		email, _ := raw.(string)
		if !emailPattern.MatchString(email) {
			res.Errors = append(res.Errors, "Invalid email format")
			res.RiskScore += scoreBadEmail
		}
	}

	if raw, present := obj["phone"]; present {
		phone, _ := raw.(string)
		normalized := phoneSeparators.ReplaceAllString(phone, "")
		if !phonePattern.MatchString(normalized) {
			res.Errors = append(res.Errors, "Invalid phone number format")
			res.RiskScore += scoreBadPhone
		}
	}

	for _, field := range []string{"avatar", "website"} {
		raw, present := obj[field]
		if !present {
			continue
		}
		u, _ := raw.(string)
		if u == "" {
			continue
		}
		s.checkURL(u, res)
	}

	if operation == models.OpAvatarUpload {
		if raw, present := obj["size"]; present {
			if size, ok := asInt64(raw); ok && size > s.config.MaxAvatarBytes {
				res.Errors = append(res.Errors, "File size exceeds maximum allowed")
				res.RiskScore += scoreOversizeAvatar
			}
		}
	}
}

func (s *Service) checkURL(raw string, res *models.ValidationResult) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		res.Errors = append(res.Errors, "Invalid URL format")
		res.RiskScore += scoreInvalidURL
		return
	}
	host := strings.ToLower(parsed.Hostname())
	for _, domain := range shortenerDomains {
		if host == domain {
			res.Errors = append(res.Errors, "Suspicious URL domain detected")
			res.RiskScore += scoreShortenerURL
			return
		}
	}
}

// asInt64 accepts the size field as a JSON number, Go integer, or numeric
// string. Anything else is ignored: only a comparable size has defined
// behavior.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func (s *Service) recordOutcome(ctx context.Context, res *models.ValidationResult, operation models.OperationKind) {
	if len(res.Errors) > 0 {
		s.counters.IncValidationFailures()
	}
	if res.RiskScore >= blockThreshold {
		s.counters.IncSuspiciousActivity()
	}
	if s.collectors != nil {
		s.collectors.ValidationChecksTotal.WithLabelValues(operation.String(), strconv.FormatBool(res.Valid)).Inc()
		s.collectors.ValidationRiskScore.Observe(float64(res.RiskScore))
	}

	if res.Valid {
		return
	}
	action := "rejected"
	if res.RiskScore >= blockThreshold {
		action = "blocked"
	}
	observability.LogSecurityEvent(ctx, s.logger, s.publisher, observability.Event{
		EventType:   "input_validation_failed",
		RiskLevel:   observability.RiskLevelFor(res.RiskScore),
		ActionTaken: action,
		Operation:   operation.String(),
		RiskScore:   res.RiskScore,
		Reasons:     res.BlockedReasons,
	},
		"errors", res.Errors,
		"risk_score", res.RiskScore,
	)
}
