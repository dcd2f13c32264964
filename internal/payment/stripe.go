package payment

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const networkFailureMessage = "Payment service is unreachable, please try again"

type StripeConfig struct {
	SecretKey string
	// APIURL overrides the processor endpoint; empty uses the public API.
	APIURL    string
	ReturnURL string
	Timeout   time.Duration
}

// StripeProvider talks to Stripe through a circuit breaker. Network calls
// are never retried.
type StripeProvider struct {
	api       *client.API
	breaker   *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	returnURL string
	timeout   time.Duration
}

func NewStripeProvider(cfg StripeConfig, logger *zap.Logger) *StripeProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	backendConfig := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	if cfg.APIURL != "" {
		backendConfig.URL = stripe.String(cfg.APIURL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig),
	})

	breaker := gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: isProcessorHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Payment circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &StripeProvider{
		api:       api,
		breaker:   breaker,
		returnURL: cfg.ReturnURL,
		timeout:   cfg.Timeout,
	}
}

// isProcessorHealthy treats declines and bad requests as answers from a
// working processor so they do not open the breaker.
func isProcessorHealthy(err error) bool {
	if err == nil {
		return true
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest, stripe.ErrorTypeIdempotency:
			return true
		}
	}
	return false
}

func (p *StripeProvider) CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	return p.call(ctx, "create payment intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params.Context = ctx
		return p.api.PaymentIntents.New(params)
	})
}

func (p *StripeProvider) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	if p.returnURL != "" {
		params.ReturnURL = stripe.String(p.returnURL)
	}

	return p.call(ctx, "confirm payment", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params.Context = ctx
		return p.api.PaymentIntents.Confirm(intentID, params)
	})
}

func (p *StripeProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}

	return p.call(ctx, "retrieve payment intent", func(ctx context.Context) (*stripe.PaymentIntent, error) {
		params.Context = ctx
		return p.api.PaymentIntents.Get(intentID, params)
	})
}

func (p *StripeProvider) call(ctx context.Context, op string, fn func(context.Context) (*stripe.PaymentIntent, error)) (*Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pi, err := p.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return fn(ctx)
	})
	if err != nil {
		return nil, classifyStripeError(op, err)
	}

	return toIntent(pi), nil
}

// classifyStripeError passes processor rejections through verbatim and
// hides transport details behind a generic message.
func classifyStripeError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = string(stripeErr.Type)
		}
		return &UpstreamError{Op: op, Message: msg, Err: err}
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &UpstreamError{Op: op, Message: "Payment service is temporarily unavailable", Network: true, Err: err}
	}

	return &UpstreamError{Op: op, Message: networkFailureMessage, Network: true, Err: err}
}

func toIntent(pi *stripe.PaymentIntent) *Intent {
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.NextAction != nil {
		intent.NextAction = string(pi.NextAction.Type)
	}
	return intent
}
