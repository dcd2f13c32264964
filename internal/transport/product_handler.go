package transport

import (
	"net/http"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/middleware"
	"helmet-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the admin create/update payload
type ProductRequest struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=5000"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity" validate:"gte=0"`
	ImagePath     string          `json:"image_path" validate:"max=500"`
	Color         string          `json:"color" validate:"max=50"`
}

func (p ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		ImagePath:     p.ImagePath,
		Color:         p.Color,
	}
}

// ProductHandler serves the catalog
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

// RegisterRoutes registers the public catalog routes
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Get("/products/{productID}", h.Get)
}

// RegisterAdminRoutes registers catalog management routes
func (h *ProductHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Put("/products/{productID}", h.Update)
	r.Delete("/products/{productID}", h.Delete)
}

// List handles GET /products?q=&color=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ProductFilter{
		Query: r.URL.Query().Get("q"),
		Color: r.URL.Query().Get("color"),
	}

	products, err := h.products.ListProducts(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.products.CreateProduct(r.Context(), req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	product, err := h.products.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "productID")
	if err != nil {
		respondServiceError(w, h.logger, err, "")
		return
	}

	if err := h.products.DeleteProduct(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
