package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"aegis/internal/platform/middleware"
	profileModel "aegis/internal/profile/models"
	profileService "aegis/internal/profile/service"
	jsonwriter "aegis/internal/transport/http/json"
	"aegis/internal/transport/http/shared"
	dErrors "aegis/pkg/domain-errors"
	"aegis/pkg/validation"
)

// ProfileService is the slice of the profile service the transport needs.
type ProfileService interface {
	Get(ctx context.Context, userID string) (*profileModel.Profile, error)
	Update(ctx context.Context, userID string, req profileService.UpdateRequest) (*profileModel.Profile, error)
	Delete(ctx context.Context, userID, password, csrfToken string) error
	UploadAvatar(ctx context.Context, userID string, req profileService.AvatarRequest) (*profileModel.Profile, error)
	DeleteAvatar(ctx context.Context, userID, csrfToken string) (*profileModel.Profile, error)
	UpdatePrivacy(ctx context.Context, userID string, req profileService.PrivacyRequest) (*profileModel.Profile, error)
	Export(ctx context.Context, userID string) (*profileModel.Export, error)
}

// ProfileHandler handles the profile endpoints.
type ProfileHandler struct {
	logger   *slog.Logger
	profiles ProfileService
}

func NewProfileHandler(profiles ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		logger:   logger,
		profiles: profiles,
	}
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,notblank,max=100"`
	Bio         *string `json:"bio" validate:"omitempty,max=1000"`
	Email       *string `json:"email" validate:"omitempty,max=254"`
	Phone       *string `json:"phone" validate:"omitempty,max=32"`
	Website     *string `json:"website" validate:"omitempty,max=2048"`
	CSRFToken   string  `json:"csrf_token" validate:"required"`
}

type deleteProfileRequest struct {
	Password  string `json:"password" validate:"required"`
	CSRFToken string `json:"csrf_token" validate:"required"`
}

type uploadAvatarRequest struct {
	AvatarURL string `json:"avatar_url" validate:"required,max=2048"`
	SizeBytes int64  `json:"size_bytes" validate:"required,min=1"`
	CSRFToken string `json:"csrf_token" validate:"required"`
}

type deleteAvatarRequest struct {
	CSRFToken string `json:"csrf_token" validate:"required"`
}

type updatePrivacyRequest struct {
	Visibility string `json:"visibility" validate:"required,oneof=public friends private"`
	ShowEmail  bool   `json:"show_email"`
	ShowPhone  bool   `json:"show_phone"`
	CSRFToken  string `json:"csrf_token" validate:"required"`
}

func (h *ProfileHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	p, err := h.profiles.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req updateProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.profiles.Update(r.Context(), userID, profileService.UpdateRequest{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Email:       req.Email,
		Phone:       req.Phone,
		Website:     req.Website,
		CSRFToken:   req.CSRFToken,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req deleteProfileRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.profiles.Delete(r.Context(), userID, req.Password, req.CSRFToken); err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *ProfileHandler) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req uploadAvatarRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.profiles.UploadAvatar(r.Context(), userID, profileService.AvatarRequest{
		AvatarURL: req.AvatarURL,
		SizeBytes: req.SizeBytes,
		CSRFToken: req.CSRFToken,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleDeleteAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req deleteAvatarRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.profiles.DeleteAvatar(r.Context(), userID, req.CSRFToken)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleUpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req updatePrivacyRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.profiles.UpdatePrivacy(r.Context(), userID, profileService.PrivacyRequest{
		Visibility: profileModel.Visibility(req.Visibility),
		ShowEmail:  req.ShowEmail,
		ShowPhone:  req.ShowPhone,
		CSRFToken:  req.CSRFToken,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	export, err := h.profiles.Export(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	jsonwriter.WriteJSON(w, http.StatusOK, export)
}

// decode parses and validates the request body, writing the error response
// itself when the body is unusable.
func (h *ProfileHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return false
	}
	if err := validation.Validate(dst); err != nil {
		shared.WriteError(w, err)
		return false
	}
	return true
}

func (h *ProfileHandler) writeError(w http.ResponseWriter, err error) {
	var rle *profileService.RateLimitedError
	if errors.As(err, &rle) {
		shared.WriteRateLimited(w, rle.Decision)
		return
	}
	shared.WriteError(w, err)
}
