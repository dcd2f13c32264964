package service

import (
	"context"
	"errors"
	"strings"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService reads order history and applies status transitions.
type OrderService interface {
	ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error)
	// UpdateOrderStatus is the customer path: own orders only, and only
	// cancelling or marking received.
	UpdateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)

	ListAllOrders(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, update domain.OrderUpdate) (*domain.Order, error)
	DeleteOrder(ctx context.Context, orderID uuid.UUID) error
}

type orderService struct {
	orders repository.OrderRepository
	logger *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(orders repository.OrderRepository, logger *zap.Logger) OrderService {
	return &orderService{orders: orders, logger: logger}
}

func (s *orderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}
	return s.orders.ListByUser(ctx, userID)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if userID == uuid.Nil {
		return nil, ErrAuthRequired
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Other users' orders are reported as missing.
	if order.UserID != userID {
		return nil, repository.ErrOrderNotFound
	}

	if !status.CustomerMayRequest() {
		return nil, ErrForbidden
	}

	return s.transition(ctx, order, status)
}

func (s *orderService) ListAllOrders(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	return s.orders.List(ctx, status)
}

func (s *orderService) SetOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, status)
}

func (s *orderService) transition(ctx context.Context, order *domain.Order, status domain.OrderStatus) (*domain.Order, error) {
	next, err := order.Status.TransitionTo(status)
	if err != nil {
		return nil, err
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, next); err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(next)),
	)

	order.Status = next
	return order, nil
}

func (s *orderService) UpdateOrder(ctx context.Context, orderID uuid.UUID, update domain.OrderUpdate) (*domain.Order, error) {
	if update.TotalAmount != nil && update.TotalAmount.IsNegative() {
		return nil, invalidOrder("total amount must not be negative")
	}
	if update.PaymentMethod != nil && !update.PaymentMethod.Valid() {
		return nil, invalidOrder("unsupported payment method")
	}
	if update.ShippingAddress != nil && strings.TrimSpace(*update.ShippingAddress) == "" {
		return nil, invalidOrder("shipping address must not be empty")
	}

	if err := s.orders.Update(ctx, orderID, update); err != nil {
		return nil, err
	}

	return s.orders.FindByID(ctx, orderID)
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID uuid.UUID) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		if !errors.Is(err, repository.ErrOrderNotFound) {
			s.logger.Error("Failed to delete order", zap.String("order_id", orderID.String()), zap.Error(err))
		}
		return err
	}
	return nil
}
