package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// OrderStatus is the closed set of order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusInDelivery OrderStatus = "in-delivery"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusReceived   OrderStatus = "received"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusInDelivery, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusInDelivery, OrderStatusCancelled},
	OrderStatusInDelivery: {OrderStatusDelivered, OrderStatusReceived},
	OrderStatusDelivered:  {OrderStatusReceived},
	OrderStatusReceived:   {},
	OrderStatusCancelled:  {},
}

// AllOrderStatuses lists every status in lifecycle order.
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusInDelivery,
		OrderStatusDelivered,
		OrderStatusReceived,
		OrderStatusCancelled,
	}
}

// ParseOrderStatus rejects anything outside the closed set.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if _, ok := orderTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TransitionTo returns next when the move is allowed.
func (s OrderStatus) TransitionTo(next OrderStatus) (OrderStatus, error) {
	if !s.CanTransitionTo(next) {
		return s, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s, next)
	}
	return next, nil
}

// CustomerMayRequest reports the statuses a customer can set on their own order.
func (s OrderStatus) CustomerMayRequest() bool {
	return s == OrderStatusCancelled || s == OrderStatusReceived
}

// PaymentMethod is how an order is settled.
type PaymentMethod string

const (
	PaymentMethodCOD  PaymentMethod = "COD"
	PaymentMethodCard PaymentMethod = "CARD"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodCard
}

// Order is a placed order. PaymentIntentID and PaymentStatus stay nil for
// cash orders and for databases without the payment columns.
type Order struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	PaymentMethod   PaymentMethod   `json:"payment_method" db:"payment_method"`
	Status          OrderStatus     `json:"status" db:"status"`
	PaymentIntentID *string         `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	PaymentStatus   *string         `json:"payment_status,omitempty" db:"payment_status"`
	IdempotencyKey  *string         `json:"-" db:"idempotency_key"`
	CustomerName    string          `json:"customer_name,omitempty"`
	Items           []OrderItem     `json:"order_items"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is an immutable line of an order with its own price snapshot.
type OrderItem struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	OrderID         uuid.UUID        `json:"order_id" db:"order_id"`
	ProductID       *uuid.UUID       `json:"product_id" db:"product_id"`
	ProductSize     string           `json:"product_size" db:"product_size"`
	ProductColor    string           `json:"product_color" db:"product_color"`
	Quantity        int              `json:"quantity" db:"quantity"`
	PriceAtPurchase decimal.Decimal  `json:"price_at_purchase" db:"price_at_purchase"`
	Product         *ProductSnapshot `json:"product,omitempty"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// OrderLine is one selected cart entry submitted for checkout.
type OrderLine struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Size      string    `json:"size" validate:"required,max=20"`
	Color     string    `json:"color" validate:"max=50"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

func (l OrderLine) Key() CartKey {
	return CartKey{ProductID: l.ProductID, Size: l.Size}
}

// OrderUpdate carries admin edits; nil fields are left unchanged.
type OrderUpdate struct {
	TotalAmount     *decimal.Decimal
	ShippingAddress *string
	PaymentMethod   *PaymentMethod
}
