// Package service implements the profile operations behind the security
// guard. Every operation runs the same gauntlet: per-user rate limiting,
// payload risk scoring for writes, and CSRF verification for mutations.
// Destructive operations additionally re-verify the account password.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"aegis/internal/guard"
	gmodels "aegis/internal/guard/models"
	"aegis/internal/profile/models"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/requestcontext"
	"aegis/pkg/secrets"
)

// Store is the profile persistence the service operates on.
type Store interface {
	Get(ctx context.Context, userID string) (*models.Profile, error)
	Put(ctx context.Context, p *models.Profile) error
	Delete(ctx context.Context, userID string) error
}

// RateLimitedError reports a denied admission decision. The decision
// carries the retry-after hint for the transport layer.
type RateLimitedError struct {
	Decision *gmodels.RateLimitDecision
	err      error
}

func (e *RateLimitedError) Error() string { return e.err.Error() }
func (e *RateLimitedError) Unwrap() error { return e.err }

func newRateLimited(d *gmodels.RateLimitDecision) error {
	return &RateLimitedError{
		Decision: d,
		err:      dErrors.New(dErrors.CodeRateLimited, "Too many requests. Please try again later."),
	}
}

// ValidationError reports a payload rejected by the risk scorer.
type ValidationError struct {
	Result *gmodels.ValidationResult
	err    error
}

func (e *ValidationError) Error() string { return e.err.Error() }
func (e *ValidationError) Unwrap() error { return e.err }

func newValidationFailed(res *gmodels.ValidationResult) error {
	msg := "invalid profile data"
	if len(res.Errors) > 0 {
		msg = res.Errors[0]
	}
	code := dErrors.CodeInvalidInput
	if len(res.BlockedReasons) > 0 {
		code = dErrors.CodeSuspiciousInput
	}
	return &ValidationError{Result: res, err: dErrors.New(code, msg)}
}

type Service struct {
	store  Store
	guard  *guard.Guard
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, g *guard.Guard, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	if g == nil {
		return nil, fmt.Errorf("security guard is required")
	}

	svc := &Service{
		store:  store,
		guard:  g,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// UpdateRequest carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type UpdateRequest struct {
	DisplayName *string
	Bio         *string
	Email       *string
	Phone       *string
	Website     *string
	CSRFToken   string
}

// AvatarRequest describes an avatar upload.
type AvatarRequest struct {
	AvatarURL string
	SizeBytes int64
	CSRFToken string
}

// PrivacyRequest carries new privacy settings.
type PrivacyRequest struct {
	Visibility models.Visibility
	ShowEmail  bool
	ShowPhone  bool
	CSRFToken  string
}

// Create registers a new profile with a hashed password. Registration sits
// outside the guarded operation set; the guard covers the profile surface
// only.
func (s *Service) Create(ctx context.Context, userID, displayName, password string) (*models.Profile, error) {
	if userID == "" || displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user id and display name are required")
	}
	hash, err := secrets.Hash(password)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	p := &models.Profile{
		UserID:       userID,
		DisplayName:  displayName,
		PasswordHash: hash,
		Privacy: models.PrivacySettings{
			Visibility: models.VisibilityPublic,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Get returns the caller's own profile.
func (s *Service) Get(ctx context.Context, userID string) (*models.Profile, error) {
	if err := s.admit(ctx, userID, gmodels.OpProfileRead); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, userID)
}

// Update applies the requested field changes after scoring and sanitizing
// them. The sanitized copy is what gets persisted, never the raw input.
func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) (*models.Profile, error) {
	const op = gmodels.OpProfileUpdate

	if err := s.admit(ctx, userID, op); err != nil {
		return nil, err
	}

	payload := map[string]any{}
	putIfSet(payload, "display_name", req.DisplayName)
	putIfSet(payload, "bio", req.Bio)
	putIfSet(payload, "email", req.Email)
	putIfSet(payload, "phone", req.Phone)
	putIfSet(payload, "website", req.Website)
	if len(payload) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no fields to update")
	}

	res := s.guard.ValidateProfileInput(ctx, payload, op)
	if !res.Valid {
		return nil, newValidationFailed(res)
	}
	if err := s.verifyCSRF(req.CSRFToken, userID, op); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	sanitized, _ := res.SanitizedData.(map[string]any)
	applyIfSet(sanitized, "display_name", &p.DisplayName)
	applyIfSet(sanitized, "bio", &p.Bio)
	applyIfSet(sanitized, "email", &p.Email)
	applyIfSet(sanitized, "phone", &p.Phone)
	applyIfSet(sanitized, "website", &p.Website)
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the profile after re-verifying the account password.
func (s *Service) Delete(ctx context.Context, userID, password, csrfToken string) error {
	const op = gmodels.OpProfileDelete

	if err := s.admit(ctx, userID, op); err != nil {
		return err
	}
	if err := s.verifyCSRF(csrfToken, userID, op); err != nil {
		return err
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := secrets.Verify(password, p.PasswordHash); err != nil {
		s.logger.WarnContext(ctx, "profile delete rejected, password mismatch", "user_id", userID)
		return dErrors.New(dErrors.CodeUnauthorized, "password verification failed")
	}

	return s.store.Delete(ctx, userID)
}

// UploadAvatar validates and stores a new avatar URL.
func (s *Service) UploadAvatar(ctx context.Context, userID string, req AvatarRequest) (*models.Profile, error) {
	const op = gmodels.OpAvatarUpload

	if err := s.admit(ctx, userID, op); err != nil {
		return nil, err
	}

	payload := map[string]any{
		"avatar": req.AvatarURL,
		"size":   req.SizeBytes,
	}
	res := s.guard.ValidateProfileInput(ctx, payload, op)
	if !res.Valid {
		return nil, newValidationFailed(res)
	}
	if err := s.verifyCSRF(req.CSRFToken, userID, op); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	sanitized, _ := res.SanitizedData.(map[string]any)
	applyIfSet(sanitized, "avatar", &p.AvatarURL)
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteAvatar clears the avatar URL.
func (s *Service) DeleteAvatar(ctx context.Context, userID, csrfToken string) (*models.Profile, error) {
	const op = gmodels.OpAvatarDelete

	if err := s.admit(ctx, userID, op); err != nil {
		return nil, err
	}
	if err := s.verifyCSRF(csrfToken, userID, op); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.AvatarURL = ""
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdatePrivacy replaces the privacy settings.
func (s *Service) UpdatePrivacy(ctx context.Context, userID string, req PrivacyRequest) (*models.Profile, error) {
	const op = gmodels.OpPrivacyUpdate

	if err := s.admit(ctx, userID, op); err != nil {
		return nil, err
	}
	if !req.Visibility.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid visibility value")
	}
	if err := s.verifyCSRF(req.CSRFToken, userID, op); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	p.Privacy = models.PrivacySettings{
		Visibility: req.Visibility,
		ShowEmail:  req.ShowEmail,
		ShowPhone:  req.ShowPhone,
	}
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Export produces the user's full data export.
func (s *Service) Export(ctx context.Context, userID string) (*models.Export, error) {
	if err := s.admit(ctx, userID, gmodels.OpDataExport); err != nil {
		return nil, err
	}

	p, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Export{
		Profile:     p,
		GeneratedAt: requestcontext.Now(ctx),
	}, nil
}

func (s *Service) admit(ctx context.Context, userID string, op gmodels.OperationKind) error {
	decision, err := s.guard.CheckRateLimit(ctx, userID, op)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "rate limit check failed")
	}
	if !decision.Allowed {
		return newRateLimited(decision)
	}
	return nil
}

func (s *Service) verifyCSRF(token, userID string, op gmodels.OperationKind) error {
	if !s.guard.VerifyCSRFToken(token, userID, op) {
		return dErrors.New(dErrors.CodeInvalidToken, "CSRF token verification failed")
	}
	return nil
}

func putIfSet(payload map[string]any, key string, v *string) {
	if v != nil {
		payload[key] = *v
	}
}

func applyIfSet(sanitized map[string]any, key string, dst *string) {
	if v, ok := sanitized[key].(string); ok {
		*dst = v
	}
}
