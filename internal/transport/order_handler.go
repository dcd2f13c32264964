package transport

import (
	"errors"
	"net/http"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/middleware"
	"helmet-shop/internal/repository"
	"helmet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyHeader = "Idempotency-Key"

// PlaceOrderRequest is the checkout payload. payment_status is accepted for
// older clients but ignored; card orders are verified with the processor.
type PlaceOrderRequest struct {
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	ShippingAddress string             `json:"shipping_address" validate:"required,max=500"`
	PaymentMethod   string             `json:"payment_method" validate:"required,payment_method"`
	Items           []domain.OrderLine `json:"items" validate:"required,min=1,dive"`
	PaymentIntentID string             `json:"payment_intent_id" validate:"max=255"`
	PaymentStatus   string             `json:"payment_status"`
}

// CheckoutResponse mirrors the success flag storefront clients expect.
type CheckoutResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Order   *domain.Order `json:"order,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,order_status"`
}

// UpdateOrderRequest is the admin edit payload; absent fields are unchanged.
type UpdateOrderRequest struct {
	TotalAmount     *decimal.Decimal `json:"total_amount"`
	ShippingAddress *string          `json:"shipping_address" validate:"omitempty,max=500"`
	PaymentMethod   *string          `json:"payment_method" validate:"omitempty,payment_method"`
}

// OrderHandler serves checkout and order history
type OrderHandler struct {
	checkout service.CheckoutService
	orders   service.OrderService
	logger   *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(checkout service.CheckoutService, orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{checkout: checkout, orders: orders, logger: logger}
}

// RegisterRoutes registers customer order routes. limiter guards placement.
func (h *OrderHandler) RegisterRoutes(r chi.Router, limiter func(http.Handler) http.Handler) {
	r.Get("/orders", h.List)
	r.With(limiter).Post("/orders", h.Place)
	r.Patch("/orders/{orderID}/status", h.UpdateStatus)
}

// RegisterAdminRoutes registers order management routes
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders", h.ListAll)
	r.Patch("/orders/{orderID}/status", h.SetStatus)
	r.Put("/orders/{orderID}", h.Update)
	r.Delete("/orders/{orderID}", h.Delete)
}

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), principalFrom(r).UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

// Place handles checkout. Every outcome carries success and message.
func (h *OrderHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		message := err.Error()
		if fields := middleware.FormatValidationErrors(err); len(fields) > 0 {
			message = fields[0].Field + ": " + fields[0].Message
		}
		middleware.RespondWithJSON(w, http.StatusBadRequest, CheckoutResponse{Message: message})
		return
	}

	principal := principalFrom(r)
	result, err := h.checkout.PlaceOrder(r.Context(), service.PlaceOrderRequest{
		UserID:          principal.UserID,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		Items:           req.Items,
		PaymentIntentID: req.PaymentIntentID,
		IdempotencyKey:  r.Header.Get(idempotencyHeader),
	})
	if err != nil {
		status := statusFor(err)
		message := clientMessage(err, "Failed to place order")
		if errors.Is(err, repository.ErrProductNotFound) {
			message = "a selected product is no longer available"
		}
		if status >= http.StatusInternalServerError {
			h.logger.Error("Checkout failed", zap.String("user_id", principal.UserID.String()), zap.Error(err))
		}
		middleware.RespondWithJSON(w, status, CheckoutResponse{Message: message})
		return
	}

	if result.Replayed {
		middleware.RespondWithJSON(w, http.StatusOK, CheckoutResponse{Success: true, Message: "Order already placed", Order: result.Order})
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CheckoutResponse{Success: true, Message: "Order placed successfully", Order: result.Order})
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, status, ok := h.decodeStatusChange(w, r)
	if !ok {
		return
	}

	order, err := h.orders.UpdateOrderStatus(r.Context(), principalFrom(r).UserID, orderID, status)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// ListAll handles GET /admin/orders?status=
func (h *OrderHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	var filter *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			respondServiceError(w, h.logger, err, "")
			return
		}
		filter = &status
	}

	orders, err := h.orders.ListAllOrders(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	orderID, status, ok := h.decodeStatusChange(w, r)
	if !ok {
		return
	}

	order, err := h.orders.SetOrderStatus(r.Context(), orderID, status)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Update(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	var req UpdateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	update := domain.OrderUpdate{
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
	}
	if req.PaymentMethod != nil {
		method := domain.PaymentMethod(*req.PaymentMethod)
		update.PaymentMethod = &method
	}

	order, err := h.orders.UpdateOrder(r.Context(), orderID, update)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuidParam(r, "orderID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), orderID); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) decodeStatusChange(w http.ResponseWriter, r *http.Request) (uuid.UUID, domain.OrderStatus, bool) {
	id, err := uuidParam(r, "orderID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return id, "", false
	}

	var req UpdateStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return id, "", false
	}

	return id, domain.OrderStatus(req.Status), true
}
