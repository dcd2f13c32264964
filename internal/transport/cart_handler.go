package transport

import (
	"net/http"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/middleware"
	"helmet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddToCartRequest adds one unit of a product in a size
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Size      string `json:"size" validate:"required,max=20"`
}

// UpdateCartRequest sets the quantity; zero or less removes the entry.
type UpdateCartRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type CartResponse struct {
	Items    []domain.CartEntry `json:"items"`
	Subtotal decimal.Decimal    `json:"subtotal"`
}

func newCartResponse(cart *domain.Cart) CartResponse {
	items := cart.Items
	if items == nil {
		items = []domain.CartEntry{}
	}
	return CartResponse{Items: items, Subtotal: cart.Subtotal()}
}

// CartHandler serves the signed-in user's cart
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// RegisterRoutes registers cart routes; they need a session.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/cart", h.Get)
	r.Post("/cart", h.Add)
	r.Put("/cart/{productID}/{size}", h.Update)
	r.Delete("/cart/{productID}/{size}", h.Remove)
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	key := domain.CartKey{ProductID: uuid.MustParse(req.ProductID), Size: req.Size}
	if _, err := h.carts.AddToCart(r.Context(), principalFrom(r).UserID, key); err != nil {
		respondServiceError(w, h.logger, err, "failed to add to cart")
		return
	}

	h.respondWithCart(w, r, http.StatusCreated)
}

func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	key, err := cartKeyFromPath(r)
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	var req UpdateCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), principalFrom(r).UserID, key, *req.Quantity); err != nil {
		respondServiceError(w, h.logger, err, "failed to update cart")
		return
	}

	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	key, err := cartKeyFromPath(r)
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	if err := h.carts.RemoveFromCart(r.Context(), principalFrom(r).UserID, key); err != nil {
		respondServiceError(w, h.logger, err, "failed to remove from cart")
		return
	}

	h.respondWithCart(w, r, http.StatusOK)
}

func (h *CartHandler) respondWithCart(w http.ResponseWriter, r *http.Request, status int) {
	cart, err := h.carts.GetCart(r.Context(), principalFrom(r).UserID)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load cart")
		return
	}

	middleware.RespondWithJSON(w, status, newCartResponse(cart))
}

func cartKeyFromPath(r *http.Request) (domain.CartKey, error) {
	productID, err := uuidParam(r, "productID")
	if err != nil {
		return domain.CartKey{}, err
	}

	size := pathParam(r, "size")
	if size == "" {
		return domain.CartKey{}, errInvalidID
	}

	return domain.CartKey{ProductID: productID, Size: size}, nil
}
