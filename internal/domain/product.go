package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, matching what storefront clients send.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a helmet in the catalog
type Product struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Name          string          `json:"name" db:"name"`
	Description   string          `json:"description" db:"description"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	ImagePath     string          `json:"image_path" db:"image_path"`
	Color         string          `json:"color" db:"color"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductSnapshot is the subset of product data shown next to cart entries
// and order items. Price is the current catalog price.
type ProductSnapshot struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImagePath string          `json:"image_path"`
	Color     string          `json:"color"`
}

// ProductFilter narrows catalog listings. Empty fields match everything.
type ProductFilter struct {
	Query string
	Color string
}
