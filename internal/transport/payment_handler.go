package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"helmet-shop/internal/middleware"
	"helmet-shop/internal/payment"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const notConfiguredMessage = "Stripe not configured on server."

// PaymentGateway is the payment adapter as seen by HTTP clients.
type PaymentGateway interface {
	Configured() bool
	CreatePaymentIntent(ctx context.Context, amount float64, currency string) (*payment.Intent, error)
	ConfirmPayment(ctx context.Context, intentID, paymentMethodID string) (*payment.ConfirmResult, error)
	Health(now time.Time) payment.HealthStatus
}

// CreatePaymentIntentRequest is the body of POST /create-payment-intent.
type CreatePaymentIntentRequest struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// ConfirmPaymentRequest is the body of POST /confirm-payment.
type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	PaymentMethodID string `json:"paymentMethodId"`
}

type confirmFailure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PaymentHandler serves the three top-level payment endpoints. Their
// bodies keep the flat shapes storefront clients already parse.
type PaymentHandler struct {
	gateway PaymentGateway
	logger  *zap.Logger
	now     func() time.Time
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(gateway PaymentGateway, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// RegisterRoutes registers the payment routes. limiter guards the two
// endpoints that reach the processor.
func (h *PaymentHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)
	r.With(limiter).Post("/create-payment-intent", h.CreatePaymentIntent)
	r.With(limiter).Post("/confirm-payment", h.ConfirmPayment)
}

func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if !h.gateway.Configured() {
		RespondPlainError(w, http.StatusNotImplemented, notConfiguredMessage)
		return
	}

	var req CreatePaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Payment intent body rejected", zap.Error(err))
		RespondPlainError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	intent, err := h.gateway.CreatePaymentIntent(r.Context(), req.Amount, req.Currency)
	if err != nil {
		var upstream *payment.UpstreamError
		switch {
		case errors.Is(err, payment.ErrNotConfigured):
			RespondPlainError(w, http.StatusNotImplemented, notConfiguredMessage)
		case errors.Is(err, payment.ErrInvalidAmount):
			RespondPlainError(w, http.StatusBadRequest, "Invalid amount")
		case errors.As(err, &upstream):
			RespondPlainError(w, http.StatusInternalServerError, upstream.Message)
		default:
			h.logger.Error("Payment intent creation failed", zap.Error(err))
			RespondPlainError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CreatePaymentIntentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

func (h *PaymentHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debug("Confirm payment body rejected", zap.Error(err))
	}

	result, err := h.gateway.ConfirmPayment(r.Context(), req.PaymentIntentID, req.PaymentMethodID)
	if err != nil {
		var upstream *payment.UpstreamError
		switch {
		case errors.Is(err, payment.ErrMissingIdentifiers):
			middleware.RespondWithJSON(w, http.StatusBadRequest, confirmFailure{Message: "Missing payment intent or method ID"})
		case errors.Is(err, payment.ErrNotConfigured):
			middleware.RespondWithJSON(w, http.StatusNotImplemented, confirmFailure{Message: notConfiguredMessage})
		case errors.As(err, &upstream):
			middleware.RespondWithJSON(w, http.StatusInternalServerError, confirmFailure{Message: upstream.Message})
		default:
			h.logger.Error("Payment confirmation failed", zap.Error(err))
			middleware.RespondWithJSON(w, http.StatusInternalServerError, confirmFailure{Message: "Internal server error"})
		}
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.gateway.Health(h.now()))
}
