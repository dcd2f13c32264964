package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"helmet-shop/internal/cache"
	"helmet-shop/internal/domain"
	"helmet-shop/internal/payment"
	"helmet-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// mockStore backs every mock repository so checkout can see carts,
// products and orders together.
type mockStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	carts    map[uuid.UUID]map[domain.CartKey]int
	orders   map[uuid.UUID]*domain.Order
	profiles map[uuid.UUID]*domain.Profile
	admins   map[uuid.UUID]string

	listCalls   int
	placeCalls  int
	failPlace   error
	missingCols bool
}

func newMockStore() *mockStore {
	return &mockStore{
		products: make(map[uuid.UUID]*domain.Product),
		carts:    make(map[uuid.UUID]map[domain.CartKey]int),
		orders:   make(map[uuid.UUID]*domain.Order),
		profiles: make(map[uuid.UUID]*domain.Profile),
		admins:   make(map[uuid.UUID]string),
	}
}

func (s *mockStore) addProduct(price string, color string) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &domain.Product{
		ID:            uuid.New(),
		Name:          "Helmet",
		Price:         decimal.RequireFromString(price),
		StockQuantity: 5,
		Color:         color,
	}
	s.products[p.ID] = p
	return p
}

func (s *mockStore) cartQuantity(userID uuid.UUID, key domain.CartKey) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.carts[userID][key]
	return q, ok
}

type mockCartRepository struct {
	store *mockStore
	// afterList, when set, runs once the entries are read and before they
	// are returned.
	afterList func(ctx context.Context)
	// listErrs records ctx.Err() as each ListByUser finished.
	listErrs []error
}

func (m *mockCartRepository) Increment(ctx context.Context, userID uuid.UUID, key domain.CartKey) (*domain.CartEntry, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.products[key.ProductID]; !ok {
		return nil, repository.ErrProductNotFound
	}
	if m.store.carts[userID] == nil {
		m.store.carts[userID] = make(map[domain.CartKey]int)
	}
	m.store.carts[userID][key]++
	return &domain.CartEntry{UserID: userID, ProductID: key.ProductID, Size: key.Size, Quantity: m.store.carts[userID][key]}, nil
}

func (m *mockCartRepository) SetQuantity(ctx context.Context, userID uuid.UUID, key domain.CartKey, quantity int) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.carts[userID][key]; !ok {
		return repository.ErrCartEntryNotFound
	}
	m.store.carts[userID][key] = quantity
	return nil
}

func (m *mockCartRepository) Remove(ctx context.Context, userID uuid.UUID, key domain.CartKey) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	delete(m.store.carts[userID], key)
	return nil
}

func (m *mockCartRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.CartEntry, error) {
	m.store.mu.Lock()
	m.store.listCalls++
	entries := []domain.CartEntry{}
	for key, q := range m.store.carts[userID] {
		p := m.store.products[key.ProductID]
		entries = append(entries, domain.CartEntry{
			UserID:    userID,
			ProductID: key.ProductID,
			Size:      key.Size,
			Quantity:  q,
			Product:   &domain.ProductSnapshot{ID: p.ID, Name: p.Name, Price: p.Price, Color: p.Color},
		})
	}
	m.store.mu.Unlock()

	if m.afterList != nil {
		m.afterList(ctx)
	}

	m.store.mu.Lock()
	m.listErrs = append(m.listErrs, ctx.Err())
	m.store.mu.Unlock()

	return entries, nil
}

type mockOrderRepository struct{ store *mockStore }

// Place mirrors the transactional repository: nothing changes unless
// every step succeeds.
func (m *mockOrderRepository) Place(ctx context.Context, order *domain.Order, lines []domain.OrderLine) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.placeCalls++

	if m.store.failPlace != nil {
		return m.store.failPlace
	}

	if order.IdempotencyKey != nil {
		for _, existing := range m.store.orders {
			if existing.UserID == order.UserID && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *order.IdempotencyKey {
				return repository.ErrDuplicateOrder
			}
		}
	}

	if order.PaymentIntentID != nil && !m.store.missingCols {
		for _, existing := range m.store.orders {
			if existing.PaymentIntentID != nil && *existing.PaymentIntentID == *order.PaymentIntentID {
				return repository.ErrPaymentIntentUsed
			}
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		p, ok := m.store.products[line.ProductID]
		if !ok {
			return repository.ErrProductNotFound
		}
		productID := line.ProductID
		color := line.Color
		if color == "" {
			color = p.Color
		}
		items = append(items, domain.OrderItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			ProductID:       &productID,
			ProductSize:     line.Size,
			ProductColor:    color,
			Quantity:        line.Quantity,
			PriceAtPurchase: p.Price,
		})
	}

	if m.store.missingCols {
		order.PaymentIntentID = nil
		order.PaymentStatus = nil
	}

	order.Items = items
	order.CreatedAt = time.Now().Add(time.Duration(len(m.store.orders)) * time.Millisecond)
	stored := *order
	m.store.orders[order.ID] = &stored

	for _, line := range lines {
		delete(m.store.carts[order.UserID], line.Key())
	}
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	order, ok := m.store.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (m *mockOrderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Order, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, order := range m.store.orders {
		if order.UserID == userID && order.IdempotencyKey != nil && *order.IdempotencyKey == key {
			copied := *order
			return &copied, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) sorted(match func(*domain.Order) bool) []*domain.Order {
	orders := []*domain.Order{}
	for _, order := range m.store.orders {
		if match(order) {
			copied := *order
			orders = append(orders, &copied)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (m *mockOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Order, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.sorted(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (m *mockOrderRepository) List(ctx context.Context, status *domain.OrderStatus) ([]*domain.Order, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.sorted(func(o *domain.Order) bool { return status == nil || o.Status == *status }), nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	order, ok := m.store.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if order.Status != from {
		return repository.ErrOrderStatusConflict
	}
	order.Status = to
	return nil
}

func (m *mockOrderRepository) Update(ctx context.Context, id uuid.UUID, update domain.OrderUpdate) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	order, ok := m.store.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if update.TotalAmount != nil {
		order.TotalAmount = *update.TotalAmount
	}
	if update.ShippingAddress != nil {
		order.ShippingAddress = *update.ShippingAddress
	}
	if update.PaymentMethod != nil {
		order.PaymentMethod = *update.PaymentMethod
	}
	return nil
}

func (m *mockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.store.orders, id)
	return nil
}

type mockProductRepository struct{ store *mockStore }

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	m.store.products[product.ID] = product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.store.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	products := []*domain.Product{}
	for _, p := range m.store.products {
		if filter.Color == "" || p.Color == filter.Color {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Price.LessThan(products[j].Price) })
	return products, nil
}

type mockProfileRepository struct{ store *mockStore }

func (m *mockProfileRepository) Upsert(ctx context.Context, profile *domain.Profile) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if existing, ok := m.store.profiles[profile.ID]; ok && profile.Email == "" {
		profile.Email = existing.Email
	}
	copied := *profile
	m.store.profiles[profile.ID] = &copied
	return nil
}

func (m *mockProfileRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	p, ok := m.store.profiles[id]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	copied := *p
	_, copied.IsAdmin = m.store.admins[id]
	return &copied, nil
}

func (m *mockProfileRepository) List(ctx context.Context) ([]*domain.Profile, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	profiles := []*domain.Profile{}
	for _, p := range m.store.profiles {
		copied := *p
		profiles = append(profiles, &copied)
	}
	return profiles, nil
}

func (m *mockProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.profiles[id]; !ok {
		return repository.ErrProfileNotFound
	}
	delete(m.store.profiles, id)
	delete(m.store.admins, id)
	return nil
}

type mockAdminRepository struct{ store *mockStore }

func (m *mockAdminRepository) Exists(ctx context.Context, profileID uuid.UUID) (bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	_, ok := m.store.admins[profileID]
	return ok, nil
}

func (m *mockAdminRepository) Grant(ctx context.Context, grant *domain.AdminGrant) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.profiles[grant.ProfileID]; !ok {
		return repository.ErrProfileNotFound
	}
	m.store.admins[grant.ProfileID] = grant.Role
	return nil
}

func (m *mockAdminRepository) Revoke(ctx context.Context, profileID uuid.UUID) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if _, ok := m.store.admins[profileID]; !ok {
		return repository.ErrAdminGrantNotFound
	}
	delete(m.store.admins, profileID)
	return nil
}

// mockCartCache is an in-memory CartCache. Like the Redis cache, a Set
// made under a retired version is never served.
type mockCartCache struct {
	mu            sync.Mutex
	carts         map[uuid.UUID]*domain.Cart
	stored        map[uuid.UUID]cache.Version
	versions      map[uuid.UUID]int64
	catalog       int64
	deletes       int
	invalidateAll int
}

func newMockCartCache() *mockCartCache {
	return &mockCartCache{
		carts:    make(map[uuid.UUID]*domain.Cart),
		stored:   make(map[uuid.UUID]cache.Version),
		versions: make(map[uuid.UUID]int64),
	}
}

func (c *mockCartCache) current(userID uuid.UUID) cache.Version {
	return cache.Version{Catalog: c.catalog, Cart: c.versions[userID]}
}

func (c *mockCartCache) Get(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.carts[userID]
	if !ok || c.stored[userID] != c.current(userID) {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *mockCartCache) Version(ctx context.Context, userID uuid.UUID) (cache.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current(userID), nil
}

func (c *mockCartCache) Set(ctx context.Context, userID uuid.UUID, version cache.Version, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userID] = cart
	c.stored[userID] = version
	return nil
}

func (c *mockCartCache) Delete(ctx context.Context, userID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	c.versions[userID]++
	return nil
}

func (c *mockCartCache) InvalidateAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateAll++
	c.catalog++
	return nil
}

// store caches cart under the user's current version.
func (c *mockCartCache) store(userID uuid.UUID, cart *domain.Cart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[userID] = cart
	c.stored[userID] = c.current(userID)
}

const testExchangeRate = 0.0175

// mockVerifier answers VerifyPayment with a fixed status. Intents carry the
// amount recorded by charge, zero otherwise.
type mockVerifier struct {
	status  string
	err     error
	calls   int
	amounts map[string]int64
}

func (v *mockVerifier) VerifyPayment(ctx context.Context, intentID string) (*payment.Intent, error) {
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	return &payment.Intent{ID: intentID, Status: v.status, Amount: v.amounts[intentID]}, nil
}

func (v *mockVerifier) MinorUnits(amount float64) int64 {
	return payment.ToMinorUnits(amount, testExchangeRate)
}

// charge records that intentID was paid for total.
func (v *mockVerifier) charge(intentID string, total decimal.Decimal) {
	if v.amounts == nil {
		v.amounts = make(map[string]int64)
	}
	v.amounts[intentID] = v.MinorUnits(total.InexactFloat64())
}
