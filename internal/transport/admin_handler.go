package transport

import (
	"net/http"

	"helmet-shop/internal/middleware"
	"helmet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GrantAdminRequest struct {
	ProfileID string `json:"profile_id" validate:"required,uuid"`
	Role      string `json:"role" validate:"max=50"`
}

// AdminHandler manages admin grants
type AdminHandler struct {
	admins service.AdminService
	logger *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(admins service.AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, logger: logger}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admins", h.Grant)
	r.Delete("/admins/{profileID}", h.Revoke)
}

func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	var req GrantAdminRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	grant, err := h.admins.GrantAdmin(r.Context(), uuid.MustParse(req.ProfileID), req.Role)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to grant admin")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, grant)
}

func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "profileID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	if err := h.admins.RevokeAdmin(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to revoke admin")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, messageResponse("admin revoked"))
}
