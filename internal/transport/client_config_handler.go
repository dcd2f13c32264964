package transport

import (
	"net/http"

	"helmet-shop/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// ClientConfig is the public configuration a storefront client needs at
// startup. Only publishable values belong here.
type ClientConfig struct {
	StripePublishableKey string `json:"stripePublishableKey"`
	SupabaseURL          string `json:"supabaseUrl"`
	SupabaseAnonKey      string `json:"supabaseAnonKey"`
	BackendURL           string `json:"backendUrl"`
}

type ClientConfigHandler struct {
	config ClientConfig
}

func NewClientConfigHandler(config ClientConfig) *ClientConfigHandler {
	return &ClientConfigHandler{config: config}
}

func (h *ClientConfigHandler) RegisterRoutes(r chi.Router) {
	r.Get("/client-config", h.Get)
}

func (h *ClientConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.config)
}
