package transport

import (
	"net/http"

	"helmet-shop/internal/middleware"
	"helmet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProfileRequest carries editable profile fields; null clears a field.
type ProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,max=50"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Phone    *string `json:"phone" validate:"omitempty,max=30"`
	Age      *int    `json:"age" validate:"omitempty,gte=0,lte=150"`
}

func (p ProfileRequest) input() service.ProfileInput {
	return service.ProfileInput{
		Username: p.Username,
		FullName: p.FullName,
		Address:  p.Address,
		Phone:    p.Phone,
		Age:      p.Age,
	}
}

// ProfileHandler serves the caller's profile and admin profile management
type ProfileHandler struct {
	profiles service.ProfileService
	logger   *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler
func NewProfileHandler(profiles service.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/profile", h.Get)
	r.Put("/profile", h.Save)
}

func (h *ProfileHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/profiles", h.List)
	r.Put("/profiles/{profileID}", h.Update)
	r.Delete("/profiles/{profileID}", h.Delete)
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.GetProfile(r.Context(), principalFrom(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	profile, err := h.profiles.SaveProfile(r.Context(), principalFrom(r), req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to save profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) List(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.ListProfiles(r.Context())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list profiles")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "profileID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	var req ProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	profile, err := h.profiles.UpdateProfile(r.Context(), id, req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "profileID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	if err := h.profiles.DeleteProfile(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
