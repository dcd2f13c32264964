package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartKey identifies one cart entry of a user.
type CartKey struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"required,max=20"`
}

// CartEntry is a pending selection of a product in a given size.
// Quantity is at least one while the row exists.
type CartEntry struct {
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	ProductID uuid.UUID        `json:"product_id" db:"product_id"`
	Size      string           `json:"size" db:"size"`
	Quantity  int              `json:"quantity" db:"quantity"`
	Product   *ProductSnapshot `json:"product,omitempty"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt time.Time        `json:"updated_at" db:"updated_at"`
}

func (e CartEntry) Key() CartKey {
	return CartKey{ProductID: e.ProductID, Size: e.Size}
}

// Cart is the full set of entries for one user.
type Cart struct {
	UserID uuid.UUID   `json:"user_id"`
	Items  []CartEntry `json:"items"`
}

// Subtotal sums quantity times current price over entries with a known product.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		if item.Product == nil {
			continue
		}
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
