// Package payment adapts storefront amounts to the card processor: it
// converts local currency into the processor's minor units and drives the
// payment intent lifecycle.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Intent statuses the storefront reacts to.
const (
	StatusSucceeded      = "succeeded"
	StatusRequiresAction = "requires_action"
)

var (
	ErrNotConfigured      = errors.New("payment processor not configured")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrMissingIdentifiers = errors.New("missing payment intent or method ID")
)

// UpstreamError is a failed processor call. Message is safe to return to
// the client: the processor's own text for rejections, a generic text for
// transport failures.
type UpstreamError struct {
	Op      string
	Message string
	Network bool
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Intent is the processor-side payment attempt as seen by the storefront.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	NextAction   string `json:"next_action,omitempty"`
}

func (i *Intent) Succeeded() bool {
	return i.Status == StatusSucceeded
}

// Provider is the remote payment service.
type Provider interface {
	CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
}

// ConfirmResult reports a confirmation. A valid but unfinished status is
// not an error: Success is false and Intent tells the client what to do next.
type ConfirmResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Intent  *Intent `json:"paymentIntent,omitempty"`
}

// HealthStatus is the liveness payload. Its shape does not depend on
// whether a processor is configured.
type HealthStatus struct {
	Status    string `json:"status"`
	Stripe    string `json:"stripe"`
	Timestamp string `json:"timestamp"`
}

// Gateway is safe for concurrent use; it holds no per-request state.
type Gateway struct {
	provider Provider
	rate     float64
	currency string
	logger   *zap.Logger
}

// NewGateway builds the adapter. A nil provider means no processor
// credentials are configured and every payment call fails with ErrNotConfigured.
func NewGateway(provider Provider, rate float64, currency string, logger *zap.Logger) *Gateway {
	return &Gateway{
		provider: provider,
		rate:     rate,
		currency: strings.ToLower(currency),
		logger:   logger,
	}
}

func (g *Gateway) Configured() bool {
	return g.provider != nil
}

// ToMinorUnits converts a local-currency amount into integer minor units of
// the settlement currency, rounding half up.
func ToMinorUnits(amount, rate float64) int64 {
	return int64(math.Round(amount * rate * 100))
}

// MinorUnits is what the processor charges for a local-currency amount.
func (g *Gateway) MinorUnits(amount float64) int64 {
	return ToMinorUnits(amount, g.rate)
}

// CreatePaymentIntent converts amount and opens an intent with automatic
// payment methods. An empty currency uses the configured default.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, amount float64, currency string) (*Intent, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}

	if currency == "" {
		currency = g.currency
	}
	currency = strings.ToLower(currency)

	minor := g.MinorUnits(amount)
	if minor <= 0 {
		return nil, ErrInvalidAmount
	}

	g.logger.Info("Creating payment intent",
		zap.Float64("amount", amount),
		zap.Float64("rate", g.rate),
		zap.Int64("minor_units", minor),
		zap.String("currency", currency),
	)

	intent, err := g.provider.CreateIntent(ctx, minor, currency)
	if err != nil {
		g.logUpstream("Failed to create payment intent", err)
		return nil, err
	}

	g.logger.Info("Payment intent created", zap.String("payment_intent_id", intent.ID))
	return intent, nil
}

// ConfirmPayment confirms an intent with a payment method. Missing
// identifiers are rejected before the processor is contacted.
func (g *Gateway) ConfirmPayment(ctx context.Context, intentID, paymentMethodID string) (*ConfirmResult, error) {
	if strings.TrimSpace(intentID) == "" || strings.TrimSpace(paymentMethodID) == "" {
		return nil, ErrMissingIdentifiers
	}

	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	intent, err := g.provider.ConfirmIntent(ctx, intentID, paymentMethodID)
	if err != nil {
		g.logUpstream("Failed to confirm payment", err)
		return nil, err
	}

	g.logger.Info("Payment confirmed",
		zap.String("payment_intent_id", intent.ID),
		zap.String("status", intent.Status),
	)

	if intent.Succeeded() {
		return &ConfirmResult{Success: true, Message: "Payment successful", Intent: intent}, nil
	}

	return &ConfirmResult{
		Success: false,
		Message: fmt.Sprintf("Payment status: %s", intent.Status),
		Intent:  intent,
	}, nil
}

// VerifyPayment fetches the intent so callers can trust the processor's
// status rather than one reported by the client.
func (g *Gateway) VerifyPayment(ctx context.Context, intentID string) (*Intent, error) {
	if strings.TrimSpace(intentID) == "" {
		return nil, ErrMissingIdentifiers
	}

	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	intent, err := g.provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		g.logUpstream("Failed to retrieve payment intent", err)
		return nil, err
	}

	return intent, nil
}

func (g *Gateway) Health(now time.Time) HealthStatus {
	stripe := "connected"
	if !g.Configured() {
		stripe = "not configured"
	}

	return HealthStatus{
		Status:    "Backend server running",
		Stripe:    stripe,
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
	}
}

func (g *Gateway) logUpstream(msg string, err error) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Network {
		g.logger.Error(msg, zap.String("op", upstream.Op), zap.Bool("network", true), zap.Error(upstream.Err))
		return
	}
	g.logger.Error(msg, zap.Error(err))
}
