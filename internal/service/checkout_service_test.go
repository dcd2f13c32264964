package service

import (
	"context"
	"errors"
	"testing"

	"helmet-shop/internal/domain"
	"helmet-shop/internal/payment"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type checkoutFixture struct {
	store    *mockStore
	cache    *mockCartCache
	verifier *mockVerifier
	carts    CartService
	svc      CheckoutService
}

func newCheckoutFixture(status string) *checkoutFixture {
	store := newMockStore()
	cartCache := newMockCartCache()
	verifier := &mockVerifier{status: status}
	carts := NewCartService(&mockCartRepository{store: store}, cartCache, zap.NewNop())
	return &checkoutFixture{
		store:    store,
		cache:    cartCache,
		verifier: verifier,
		carts:    carts,
		svc:      NewCheckoutService(&mockOrderRepository{store: store}, carts, verifier, zap.NewNop()),
	}
}

func (f *checkoutFixture) fill(t *testing.T, userID uuid.UUID, key domain.CartKey, quantity int) {
	t.Helper()
	for i := 0; i < quantity; i++ {
		_, err := f.carts.AddToCart(context.Background(), userID, key)
		require.NoError(t, err)
	}
}

func TestCheckout_CashOrderConsumesOnlySelectedEntries(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	ctx := context.Background()
	userID := uuid.New()
	helmetA := f.store.addProduct("2500.00", "Matte Black")
	helmetB := f.store.addProduct("4100.00", "Red")

	keyA := domain.CartKey{ProductID: helmetA.ID, Size: "M"}
	keyB := domain.CartKey{ProductID: helmetB.ID, Size: "L"}
	f.fill(t, userID, keyA, 2)
	f.fill(t, userID, keyB, 1)

	result, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
		UserID:          userID,
		TotalAmount:     decimal.RequireFromString("5000.00"),
		ShippingAddress: "12 Rider Lane",
		PaymentMethod:   domain.PaymentMethodCOD,
		Items:           []domain.OrderLine{{ProductID: helmetA.ID, Size: "M", Quantity: 2}},
	})
	require.NoError(t, err)
	require.False(t, result.Replayed)

	order := result.Order
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Nil(t, order.PaymentIntentID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, order.Items[0].PriceAtPurchase.Equal(helmetA.Price))
	assert.Equal(t, "Matte Black", order.Items[0].ProductColor)
	assert.Zero(t, f.verifier.calls, "cash orders skip payment verification")

	_, hasA := f.store.cartQuantity(userID, keyA)
	quantityB, hasB := f.store.cartQuantity(userID, keyB)
	assert.False(t, hasA)
	assert.True(t, hasB)
	assert.Equal(t, 1, quantityB)

	cart, err := f.carts.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1, "cached cart must not outlive the checkout")
}

func TestCheckout_CardOrderSucceeded(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	userID := uuid.New()
	helmet := f.store.addProduct("2500.00", "White")
	f.fill(t, userID, domain.CartKey{ProductID: helmet.ID, Size: "S"}, 1)
	f.verifier.charge("pi_123", helmet.Price)

	result, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          userID,
		TotalAmount:     helmet.Price,
		ShippingAddress: "1 Track Road",
		PaymentMethod:   domain.PaymentMethodCard,
		PaymentIntentID: "pi_123",
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "S", Quantity: 1}},
	})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaymentIntentID)
	require.NotNil(t, order.PaymentStatus)
	assert.Equal(t, "pi_123", *order.PaymentIntentID)
	assert.Equal(t, payment.StatusSucceeded, *order.PaymentStatus)
	assert.Equal(t, 1, f.verifier.calls)
}

// Any status other than succeeded must leave the database untouched.
func TestProperty_UnsucceededCardPaymentCreatesNoOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("no order and unchanged cart unless payment succeeded", prop.ForAll(
		func(status string) bool {
			f := newCheckoutFixture(status)
			userID := uuid.New()
			helmet := f.store.addProduct("1800.00", "Gray")
			key := domain.CartKey{ProductID: helmet.ID, Size: "M"}
			f.fill(t, userID, key, 1)

			_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID:          userID,
				TotalAmount:     helmet.Price,
				ShippingAddress: "5 Pit Street",
				PaymentMethod:   domain.PaymentMethodCard,
				PaymentIntentID: "pi_pending",
				Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "M", Quantity: 1}},
			})
			if err == nil {
				return false
			}

			if status == payment.StatusRequiresAction {
				if !errors.Is(err, ErrPaymentRequiresAction) {
					return false
				}
			} else {
				var incomplete *PaymentIncompleteError
				if !errors.As(err, &incomplete) || incomplete.Status != status {
					return false
				}
			}

			_, stillInCart := f.store.cartQuantity(userID, key)
			return f.store.placeCalls == 0 && len(f.store.orders) == 0 && stillInCart
		},
		gen.OneConstOf("processing", "requires_payment_method", "requires_confirmation", "requires_capture", "canceled", payment.StatusRequiresAction),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCheckout_IncompletePaymentMessage(t *testing.T) {
	err := &PaymentIncompleteError{Status: "processing"}
	assert.Equal(t, "Payment status is processing. Cannot place order.", err.Error())
}

func TestCheckout_CardOrderRequiresIntent(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	helmet := f.store.addProduct("1800.00", "Gray")

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          uuid.New(),
		TotalAmount:     helmet.Price,
		ShippingAddress: "5 Pit Street",
		PaymentMethod:   domain.PaymentMethodCard,
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "M", Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Zero(t, f.verifier.calls)
}

func TestCheckout_VerificationFailurePropagates(t *testing.T) {
	f := newCheckoutFixture("")
	f.verifier.err = &payment.UpstreamError{Op: "retrieve", Message: "Payment service is temporarily unavailable", Network: true}
	helmet := f.store.addProduct("1800.00", "Gray")

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          uuid.New(),
		TotalAmount:     helmet.Price,
		ShippingAddress: "5 Pit Street",
		PaymentMethod:   domain.PaymentMethodCard,
		PaymentIntentID: "pi_1",
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "M", Quantity: 1}},
	})

	var upstream *payment.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Zero(t, f.store.placeCalls)
}

func TestCheckout_IdempotencyKeyReplaysOrder(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	ctx := context.Background()
	userID := uuid.New()
	helmet := f.store.addProduct("2100.00", "Yellow")
	f.fill(t, userID, domain.CartKey{ProductID: helmet.ID, Size: "M"}, 1)

	req := PlaceOrderRequest{
		UserID:          userID,
		TotalAmount:     helmet.Price,
		ShippingAddress: "7 Apex Close",
		PaymentMethod:   domain.PaymentMethodCOD,
		IdempotencyKey:  "checkout-7f3a",
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "M", Quantity: 1}},
	}

	first, err := f.svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Len(t, f.store.orders, 1)

	// The same key from another user is a different order.
	other := req
	other.UserID = uuid.New()
	third, err := f.svc.PlaceOrder(ctx, other)
	require.NoError(t, err)
	assert.False(t, third.Replayed)
	assert.Len(t, f.store.orders, 2)
}

func TestCheckout_ConcurrentDuplicateResolvesToReplay(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	userID := uuid.New()
	helmet := f.store.addProduct("2100.00", "Yellow")
	key := "race-1"

	// Simulate a concurrent request that committed between lookup and insert.
	winner := &domain.Order{ID: uuid.New(), UserID: userID, Status: domain.OrderStatusPending, IdempotencyKey: &key}
	orders := &racingOrderRepository{mockOrderRepository: mockOrderRepository{store: f.store}, winner: winner}
	svc := NewCheckoutService(orders, f.carts, f.verifier, zap.NewNop())

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          userID,
		TotalAmount:     helmet.Price,
		ShippingAddress: "7 Apex Close",
		PaymentMethod:   domain.PaymentMethodCOD,
		IdempotencyKey:  key,
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "M", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.True(t, result.Replayed)
	assert.Equal(t, winner.ID, result.Order.ID)
}

// racingOrderRepository hides the winner from the first lookup and stores
// it just before Place runs.
type racingOrderRepository struct {
	mockOrderRepository
	winner  *domain.Order
	lookups int
}

func (r *racingOrderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Order, error) {
	r.lookups++
	if r.lookups == 1 {
		return nil, repository.ErrOrderNotFound
	}
	return r.mockOrderRepository.FindByIdempotencyKey(ctx, userID, key)
}

func (r *racingOrderRepository) Place(ctx context.Context, order *domain.Order, lines []domain.OrderLine) error {
	r.store.mu.Lock()
	r.store.orders[r.winner.ID] = r.winner
	r.store.mu.Unlock()
	return r.mockOrderRepository.Place(ctx, order, lines)
}

func TestCheckout_LegacySchemaStillPlacesOrder(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	f.store.missingCols = true
	helmet := f.store.addProduct("2500.00", "White")
	f.verifier.charge("pi_legacy", helmet.Price)

	result, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          uuid.New(),
		TotalAmount:     helmet.Price,
		ShippingAddress: "1 Track Road",
		PaymentMethod:   domain.PaymentMethodCard,
		PaymentIntentID: "pi_legacy",
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "S", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, result.Order.Status)
	assert.Nil(t, result.Order.PaymentIntentID)
}

func TestCheckout_OnePaymentPaysForOneOrder(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	ctx := context.Background()
	helmet := f.store.addProduct("2500.00", "White")
	key := domain.CartKey{ProductID: helmet.ID, Size: "S"}
	f.verifier.charge("pi_one_payment", helmet.Price)

	placed := 0
	for i := 0; i < 3; i++ {
		userID := uuid.New()
		f.fill(t, userID, key, 1)

		_, err := f.svc.PlaceOrder(ctx, PlaceOrderRequest{
			UserID:          userID,
			TotalAmount:     helmet.Price,
			ShippingAddress: "1 Track Road",
			PaymentMethod:   domain.PaymentMethodCard,
			PaymentIntentID: "pi_one_payment",
			Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "S", Quantity: 1}},
		})
		if err != nil {
			assert.ErrorIs(t, err, repository.ErrPaymentIntentUsed)
			_, stillInCart := f.store.cartQuantity(userID, key)
			assert.True(t, stillInCart, "a rejected checkout keeps the cart")
			continue
		}
		placed++
	}

	assert.Equal(t, 1, placed)
	paid := 0
	for _, order := range f.store.orders {
		if order.Status == domain.OrderStatusPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestCheckout_PaymentMustCoverOrderTotal(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	userID := uuid.New()
	cheap := f.store.addProduct("900.00", "Grey")
	helmet := f.store.addProduct("4100.00", "Red")
	key := domain.CartKey{ProductID: helmet.ID, Size: "L"}
	f.fill(t, userID, key, 1)
	f.verifier.charge("pi_cheap", cheap.Price)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          userID,
		TotalAmount:     helmet.Price,
		ShippingAddress: "1 Track Road",
		PaymentMethod:   domain.PaymentMethodCard,
		PaymentIntentID: "pi_cheap",
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "L", Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrPaymentAmountMismatch)

	assert.Empty(t, f.store.orders)
	assert.Zero(t, f.store.placeCalls)
	_, stillInCart := f.store.cartQuantity(userID, key)
	assert.True(t, stillInCart)
}

func TestCheckout_PlaceFailureKeepsCart(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)
	f.store.failPlace = errors.New("connection reset")
	userID := uuid.New()
	helmet := f.store.addProduct("2500.00", "White")
	key := domain.CartKey{ProductID: helmet.ID, Size: "S"}
	f.fill(t, userID, key, 1)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          userID,
		TotalAmount:     helmet.Price,
		ShippingAddress: "1 Track Road",
		PaymentMethod:   domain.PaymentMethodCOD,
		Items:           []domain.OrderLine{{ProductID: helmet.ID, Size: "S", Quantity: 1}},
	})
	require.Error(t, err)

	_, stillInCart := f.store.cartQuantity(userID, key)
	assert.True(t, stillInCart)
	assert.Empty(t, f.store.orders)
}

func TestCheckout_RejectsInvalidRequests(t *testing.T) {
	productID := uuid.New()
	line := domain.OrderLine{ProductID: productID, Size: "M", Quantity: 1}

	tests := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{"no items", PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD}},
		{"unknown payment method", PlaceOrderRequest{PaymentMethod: "BARTER", Items: []domain.OrderLine{line}}},
		{"negative total", PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD, TotalAmount: decimal.NewFromInt(-1), Items: []domain.OrderLine{line}}},
		{"missing product", PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD, Items: []domain.OrderLine{{Size: "M", Quantity: 1}}}},
		{"missing size", PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD, Items: []domain.OrderLine{{ProductID: productID, Quantity: 1}}}},
		{"zero quantity", PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD, Items: []domain.OrderLine{{ProductID: productID, Size: "M"}}}},
		{"duplicate entry", PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD, Items: []domain.OrderLine{line, line}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newCheckoutFixture(payment.StatusSucceeded)
			tt.req.UserID = uuid.New()

			_, err := f.svc.PlaceOrder(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidOrder)
			assert.Zero(t, f.store.placeCalls)
		})
	}
}

func TestCheckout_RequiresAuthenticatedUser(t *testing.T) {
	f := newCheckoutFixture(payment.StatusSucceeded)

	_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{PaymentMethod: domain.PaymentMethodCOD})
	assert.ErrorIs(t, err, ErrAuthRequired)
}

// Entries left out of the selection survive checkout with their quantity.
func TestProperty_UnselectedEntriesSurviveCheckout(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("only selected cart entries are consumed", prop.ForAll(
		func(selectMask []bool) bool {
			f := newCheckoutFixture(payment.StatusSucceeded)
			userID := uuid.New()

			var keys []domain.CartKey
			var lines []domain.OrderLine
			for i, selected := range selectMask {
				helmet := f.store.addProduct("1000.00", "Black")
				key := domain.CartKey{ProductID: helmet.ID, Size: "M"}
				keys = append(keys, key)
				f.fill(t, userID, key, i%3+1)
				if selected {
					lines = append(lines, domain.OrderLine{ProductID: helmet.ID, Size: "M", Quantity: i%3 + 1})
				}
			}

			_, err := f.svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID:          userID,
				TotalAmount:     decimal.NewFromInt(1000),
				ShippingAddress: "9 Chicane Way",
				PaymentMethod:   domain.PaymentMethodCOD,
				Items:           lines,
			})
			if len(lines) == 0 {
				return errors.Is(err, ErrInvalidOrder)
			}
			if err != nil {
				return false
			}

			for i, selected := range selectMask {
				quantity, exists := f.store.cartQuantity(userID, keys[i])
				if selected == exists {
					return false
				}
				if exists && quantity != i%3+1 {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(6, gen.Bool()),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
