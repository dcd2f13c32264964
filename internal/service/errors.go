package service

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired          = errors.New("authentication required")
	ErrForbidden             = errors.New("operation not permitted")
	ErrInvalidOrder          = errors.New("invalid order")
	ErrInvalidProduct        = errors.New("invalid product")
	ErrInvalidProfile        = errors.New("invalid profile")
	ErrPaymentRequiresAction = errors.New("payment requires additional authentication")
	ErrPaymentAmountMismatch = errors.New("payment amount does not match order total")
)

// PaymentIncompleteError means the card payment did not reach "succeeded".
type PaymentIncompleteError struct {
	Status string
}

func (e *PaymentIncompleteError) Error() string {
	return fmt.Sprintf("Payment status is %s. Cannot place order.", e.Status)
}

func invalidOrder(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, reason)
}
