package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/payment"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentVerifier reports the processor's view of a payment intent.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, intentID string) (*payment.Intent, error)
	// MinorUnits converts an order total into the amount an intent for it
	// must carry.
	MinorUnits(amount float64) int64
}

// PlaceOrderRequest is one checkout submission. Items are the selected cart
// entries; entries not listed stay in the cart.
type PlaceOrderRequest struct {
	UserID          uuid.UUID
	TotalAmount     decimal.Decimal
	ShippingAddress string
	PaymentMethod   domain.PaymentMethod
	Items           []domain.OrderLine
	PaymentIntentID string
	IdempotencyKey  string
}

type PlaceOrderResult struct {
	Order *domain.Order
	// Replayed is true when the idempotency key matched an earlier order.
	Replayed bool
}

// CheckoutService turns selected cart entries into an order.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
}

type checkoutService struct {
	orders   repository.OrderRepository
	carts    CartService
	payments PaymentVerifier
	logger   *zap.Logger
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	orders repository.OrderRepository,
	carts CartService,
	payments PaymentVerifier,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		orders:   orders,
		carts:    carts,
		payments: payments,
		logger:   logger,
	}
}

func (s *checkoutService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.UserID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	if err := validateOrderRequest(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err == nil {
			return &PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
	}

	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          req.UserID,
		TotalAmount:     req.TotalAmount,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Status:          domain.OrderStatusPending,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		order.IdempotencyKey = &key
	}

	if req.PaymentMethod == domain.PaymentMethodCard {
		intent, err := s.verifyCardPayment(ctx, req)
		if err != nil {
			return nil, err
		}
		intentID, status := intent.ID, intent.Status
		order.PaymentIntentID = &intentID
		order.PaymentStatus = &status
		order.Status = domain.OrderStatusPaid
	}

	if err := s.orders.Place(ctx, order, req.Items); err != nil {
		if req.IdempotencyKey != "" && (errors.Is(err, repository.ErrDuplicateOrder) || errors.Is(err, repository.ErrPaymentIntentUsed)) {
			// A concurrent retry of this submission may have won either
			// unique check.
			existing, findErr := s.orders.FindByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if findErr == nil {
				return &PlaceOrderResult{Order: existing, Replayed: true}, nil
			}
			if !errors.Is(findErr, repository.ErrOrderNotFound) {
				return nil, fmt.Errorf("failed to load replayed order: %w", findErr)
			}
		}
		if errors.Is(err, repository.ErrPaymentIntentUsed) {
			s.logger.Warn("Payment intent reused",
				zap.String("user_id", req.UserID.String()),
				zap.String("payment_intent_id", req.PaymentIntentID),
			)
			return nil, err
		}
		s.logger.Error("Failed to place order",
			zap.String("user_id", req.UserID.String()),
			zap.String("payment_method", string(req.PaymentMethod)),
			zap.Error(err),
		)
		return nil, err
	}

	if req.PaymentMethod == domain.PaymentMethodCard && order.PaymentIntentID == nil {
		s.logger.Warn("Order stored without payment columns",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_intent_id", req.PaymentIntentID),
		)
	}

	s.carts.Invalidate(req.UserID)

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("status", string(order.Status)),
		zap.Int("items", len(order.Items)),
	)

	return &PlaceOrderResult{Order: order}, nil
}

// verifyCardPayment asks the processor for the intent's final status. Only a
// "succeeded" intent for exactly the order total lets the order through.
func (s *checkoutService) verifyCardPayment(ctx context.Context, req PlaceOrderRequest) (*payment.Intent, error) {
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		return nil, invalidOrder("card payment requires a payment intent")
	}

	intent, err := s.payments.VerifyPayment(ctx, req.PaymentIntentID)
	if err != nil {
		return nil, err
	}

	switch {
	case intent.Succeeded():
		if want := s.payments.MinorUnits(req.TotalAmount.InexactFloat64()); intent.Amount != want {
			s.logger.Warn("Payment amount does not match order total",
				zap.String("payment_intent_id", intent.ID),
				zap.Int64("paid", intent.Amount),
				zap.Int64("expected", want),
			)
			return nil, ErrPaymentAmountMismatch
		}
		return intent, nil
	case intent.Status == payment.StatusRequiresAction:
		return nil, ErrPaymentRequiresAction
	default:
		return nil, &PaymentIncompleteError{Status: intent.Status}
	}
}

func validateOrderRequest(req PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return invalidOrder("no items selected")
	}

	if !req.PaymentMethod.Valid() {
		return invalidOrder(fmt.Sprintf("unsupported payment method %q", req.PaymentMethod))
	}

	if req.TotalAmount.IsNegative() {
		return invalidOrder("total amount must not be negative")
	}

	seen := make(map[domain.CartKey]bool, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == uuid.Nil {
			return invalidOrder("item is missing a product")
		}
		if strings.TrimSpace(item.Size) == "" {
			return invalidOrder("item is missing a size")
		}
		if item.Quantity < 1 {
			return invalidOrder("item quantity must be at least 1")
		}
		if seen[item.Key()] {
			return invalidOrder("item listed twice")
		}
		seen[item.Key()] = true
	}

	return nil
}
