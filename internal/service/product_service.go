package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"helmet-shop/internal/cache"
	"helmet-shop/internal/domain"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the editable catalog fields.
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	ImagePath     string
	Color         string
}

// ProductService serves the public catalog and admin catalog edits.
type ProductService interface {
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	products  repository.ProductRepository
	cartCache cache.CartCache
	logger    *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(products repository.ProductRepository, cartCache cache.CartCache, logger *zap.Logger) ProductService {
	return &productService{
		products:  products,
		cartCache: cartCache,
		logger:    logger,
	}
}

func (s *productService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	return s.products.List(ctx, filter)
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *productService) CreateProduct(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:            uuid.New(),
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		ImagePath:     input.ImagePath,
		Color:         input.Color,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	if err := validateProductInput(input); err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:            id,
		Name:          strings.TrimSpace(input.Name),
		Description:   input.Description,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		ImagePath:     input.ImagePath,
		Color:         input.Color,
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateCarts(ctx)
	s.logger.Info("Product updated", zap.String("product_id", id.String()))
	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateCarts(ctx)
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// invalidateCarts drops cached carts since they embed product data.
func (s *productService) invalidateCarts(ctx context.Context) {
	if err := s.cartCache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("Failed to invalidate cached carts", zap.Error(err))
	}
}

func validateProductInput(input ProductInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if !input.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	}
	if input.StockQuantity < 0 {
		return fmt.Errorf("%w: stock quantity must not be negative", ErrInvalidProduct)
	}
	return nil
}
