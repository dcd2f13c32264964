package payment

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testRate = 0.0175

// mockProvider records calls and answers with canned intents.
type mockProvider struct {
	mu            sync.Mutex
	created       []int64
	currencies    []string
	confirmCalls  int
	retrieveCalls int
	status        string
	err           error
}

func (m *mockProvider) CreateIntent(ctx context.Context, amount int64, currency string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, amount)
	m.currencies = append(m.currencies, currency)
	if m.err != nil {
		return nil, m.err
	}
	return &Intent{ID: "pi_test", ClientSecret: "pi_test_secret", Status: "requires_payment_method", Amount: amount, Currency: currency}, nil
}

func (m *mockProvider) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmCalls++
	if m.err != nil {
		return nil, m.err
	}
	return &Intent{ID: intentID, Status: m.status}, nil
}

func (m *mockProvider) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retrieveCalls++
	if m.err != nil {
		return nil, m.err
	}
	return &Intent{ID: intentID, Status: m.status}, nil
}

func newTestGateway(provider Provider) *Gateway {
	return NewGateway(provider, testRate, "usd", zap.NewNop())
}

func TestProperty_CreateSendsRoundedMinorUnits(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("minor units equal round(amount * rate * 100)", prop.ForAll(
		func(amount float64) bool {
			provider := &mockProvider{}
			_, err := newTestGateway(provider).CreatePaymentIntent(context.Background(), amount, "")
			expected := int64(math.Round(amount * testRate * 100))
			if expected <= 0 {
				return errors.Is(err, ErrInvalidAmount) && len(provider.created) == 0
			}
			return err == nil && len(provider.created) == 1 && provider.created[0] == expected
		},
		gen.Float64Range(0.01, 1_000_000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(350), ToMinorUnits(200, testRate))
	assert.Equal(t, int64(7875), ToMinorUnits(4500, testRate))
	assert.Equal(t, int64(2), ToMinorUnits(1, testRate), "1.75 cents rounds up")
	assert.Equal(t, int64(1), ToMinorUnits(0.5, testRate), "0.875 cents rounds up")
}

func TestMinorUnits_MatchesCreatedIntent(t *testing.T) {
	provider := &mockProvider{}
	gateway := newTestGateway(provider)

	_, err := gateway.CreatePaymentIntent(context.Background(), 4500, "")
	require.NoError(t, err)
	require.Len(t, provider.created, 1)
	assert.Equal(t, provider.created[0], gateway.MinorUnits(4500))
}

func TestCreatePaymentIntent_DefaultsCurrency(t *testing.T) {
	provider := &mockProvider{}
	intent, err := newTestGateway(provider).CreatePaymentIntent(context.Background(), 200, "")
	require.NoError(t, err)
	assert.Equal(t, "pi_test", intent.ID)
	assert.Equal(t, "pi_test_secret", intent.ClientSecret)
	assert.Equal(t, []string{"usd"}, provider.currencies)

	_, err = newTestGateway(provider).CreatePaymentIntent(context.Background(), 200, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "eur", provider.currencies[1])
}

func TestCreatePaymentIntent_RejectsNonPositiveAmounts(t *testing.T) {
	provider := &mockProvider{}
	gateway := newTestGateway(provider)

	for _, amount := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := gateway.CreatePaymentIntent(context.Background(), amount, "")
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %v", amount)
	}
	assert.Empty(t, provider.created)
}

func TestCreatePaymentIntent_NotConfiguredWinsOverValidation(t *testing.T) {
	gateway := newTestGateway(nil)

	_, err := gateway.CreatePaymentIntent(context.Background(), -5, "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestCreatePaymentIntent_PassesUpstreamError(t *testing.T) {
	upstream := &UpstreamError{Op: "create payment intent", Message: "Amount must be at least $0.50 usd"}
	provider := &mockProvider{err: upstream}

	_, err := newTestGateway(provider).CreatePaymentIntent(context.Background(), 10, "")
	var got *UpstreamError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "Amount must be at least $0.50 usd", got.Message)
}

func TestProperty_ConfirmWithMissingIdentifiersNeverCallsProvider(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing identifiers are rejected before the processor", prop.ForAll(
		func(intentID, methodID string, blankIntent bool) bool {
			if blankIntent {
				intentID = ""
			} else {
				methodID = ""
			}

			provider := &mockProvider{status: StatusSucceeded}
			_, err := newTestGateway(provider).ConfirmPayment(context.Background(), intentID, methodID)
			return errors.Is(err, ErrMissingIdentifiers) && provider.confirmCalls == 0
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestConfirmPayment_MissingIdentifiersWhenNotConfigured(t *testing.T) {
	_, err := newTestGateway(nil).ConfirmPayment(context.Background(), "", "pm_card")
	assert.ErrorIs(t, err, ErrMissingIdentifiers)

	_, err = newTestGateway(nil).ConfirmPayment(context.Background(), "pi_1", "pm_card")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConfirmPayment_Statuses(t *testing.T) {
	tests := []struct {
		status      string
		wantSuccess bool
		wantMessage string
	}{
		{StatusSucceeded, true, "Payment successful"},
		{StatusRequiresAction, false, "Payment status: requires_action"},
		{"requires_payment_method", false, "Payment status: requires_payment_method"},
		{"processing", false, "Payment status: processing"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			provider := &mockProvider{status: tt.status}
			result, err := newTestGateway(provider).ConfirmPayment(context.Background(), "pi_1", "pm_card")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantMessage, result.Message)
			require.NotNil(t, result.Intent)
			assert.Equal(t, tt.status, result.Intent.Status)
		})
	}
}

func TestVerifyPayment(t *testing.T) {
	provider := &mockProvider{status: StatusSucceeded}
	gateway := newTestGateway(provider)

	intent, err := gateway.VerifyPayment(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.True(t, intent.Succeeded())
	assert.Equal(t, 1, provider.retrieveCalls)

	_, err = gateway.VerifyPayment(context.Background(), " ")
	assert.ErrorIs(t, err, ErrMissingIdentifiers)
	assert.Equal(t, 1, provider.retrieveCalls)
}

func TestHealth_ShapeIndependentOfConfiguration(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	configured := newTestGateway(&mockProvider{}).Health(now)
	assert.Equal(t, "Backend server running", configured.Status)
	assert.Equal(t, "connected", configured.Stripe)
	assert.Equal(t, "2026-03-01T08:30:00.000Z", configured.Timestamp)

	missing := newTestGateway(nil).Health(now)
	assert.Equal(t, configured.Status, missing.Status)
	assert.Equal(t, "not configured", missing.Stripe)
	assert.Equal(t, configured.Timestamp, missing.Timestamp)
}
