package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/Luffyzera/onde-comprar/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCartAccessor struct {
	cart    *domain.Cart
	cleared bool
}

func (m *mockCartAccessor) Get(context.Context, string) (*domain.Cart, error) {
	return m.cart, nil
}

func (m *mockCartAccessor) Clear(context.Context, string) error {
	m.cleared = true
	return nil
}

type mockStock struct {
	m         sync.Mutex
	available map[string]int
	reserved  map[string]int
	consumed  map[string]int
}

func newMockStock(available map[string]int) *mockStock {
	return &mockStock{
		available: available,
		reserved:  map[string]int{},
		consumed:  map[string]int{},
	}
}

func (m *mockStock) ReserveStock(_ context.Context, id string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.available[id] < quantity {
		return repository.ErrInsufficientStock
	}
	m.available[id] -= quantity
	m.reserved[id] += quantity
	return nil
}

func (m *mockStock) ReleaseStock(_ context.Context, id string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.available[id] += quantity
	m.reserved[id] -= quantity
	return nil
}

func (m *mockStock) ConsumeStock(_ context.Context, id string, quantity int) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.reserved[id] -= quantity
	m.consumed[id] += quantity
	return nil
}

type mockOrderRepo struct {
	m      sync.Mutex
	orders map[string]*domain.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[string]*domain.Order{}}
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepo) Insert(_ context.Context, o *domain.Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	copied := *o
	m.orders[o.ID] = &copied
	return nil
}

func (m *mockOrderRepo) ListByCustomer(_ context.Context, customerID string) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByStore(_ context.Context, storeID string) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.StoreID == storeID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListOverduePickups(_ context.Context, cutoff time.Time) ([]*domain.Order, error) {
	m.m.Lock()
	defer m.m.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.Status != domain.StatusReserved && o.Status != domain.StatusReadyForPickup {
			continue
		}
		if o.ExpiresAt != nil && !o.ExpiresAt.After(cutoff) {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, expectedCurrent, next domain.OrderStatus) error {
	m.m.Lock()
	defer m.m.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != expectedCurrent {
		return repository.ErrOrderNotFound
	}
	o.Status = next
	return nil
}

type mockOutbox struct {
	m      sync.Mutex
	events []*repository.OutboxEvent
}

func (m *mockOutbox) InsertEvent(_ context.Context, event *repository.OutboxEvent) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockOutbox) GetUnprocessedEvents(context.Context, int) ([]*repository.OutboxEvent, error) {
	m.m.Lock()
	defer m.m.Unlock()
	return m.events, nil
}

func (m *mockOutbox) MarkEventAsProcessed(context.Context, string) error {
	return nil
}

func (m *mockOutbox) types() []string {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

func checkoutCart(mode domain.FulfillmentMode) *domain.Cart {
	store := testStore("store-a", true)
	p1 := *testProduct("p1", "store-a", 5000, 10)
	p2 := *testProduct("p2", "store-a", 3000, 10)
	p1.Store = store
	p2.Store = store

	cart := domain.NewCart("cust-1")
	cart = cart.AddItem(p1, 2, mode)
	cart = cart.AddItem(p2, 1, mode)
	return &cart
}

func TestCheckout_EmptyCart(t *testing.T) {
	empty := domain.NewCart("cust-1")
	sut := NewCheckoutService(&mockCartAccessor{cart: &empty}, newMockStock(nil), newMockOrderRepo(), &mockOutbox{})

	_, err := sut.Checkout(context.Background(), "cust-1", CheckoutRequest{})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_DeliveryRequiresAddress(t *testing.T) {
	sut := NewCheckoutService(&mockCartAccessor{cart: checkoutCart(domain.ModeDelivery)}, newMockStock(nil), newMockOrderRepo(), &mockOutbox{})

	_, err := sut.Checkout(context.Background(), "cust-1", CheckoutRequest{PaymentMethod: "pix"})
	require.ErrorIs(t, err, ErrDeliveryAddressRequired)
}

func TestCheckout_PickupReservation(t *testing.T) {
	carts := &mockCartAccessor{cart: checkoutCart(domain.ModePickup)}
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	outbox := &mockOutbox{}

	sut := NewCheckoutService(carts, stock, orders, outbox)

	order, err := sut.Checkout(context.Background(), "cust-1", CheckoutRequest{PaymentMethod: "in_store"})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusReserved, order.Status)
	assert.Equal(t, "store-a", order.StoreID)
	assert.Equal(t, int64(13000), order.TotalCents)
	assert.Len(t, order.ConfirmationCode, 6)
	assert.NotContains(t, order.ConfirmationCode, "0")
	assert.NotContains(t, order.ConfirmationCode, "O")
	require.NotNil(t, order.ExpiresAt)
	assert.WithinDuration(t, order.CreatedAt.Add(48*time.Hour), *order.ExpiresAt, time.Second)

	assert.Equal(t, 8, stock.available["p1"])
	assert.Equal(t, 2, stock.reserved["p1"])
	assert.True(t, carts.cleared)
	assert.Equal(t, []string{"OrderCreated"}, outbox.types())

	stored, err := orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ConfirmationCode, stored.ConfirmationCode)
}

func TestCheckout_DeliveryOrderFreezesPrices(t *testing.T) {
	cart := checkoutCart(domain.ModeDelivery)
	carts := &mockCartAccessor{cart: cart}
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})

	sut := NewCheckoutService(carts, stock, newMockOrderRepo(), &mockOutbox{})

	addr := &domain.Address{Street: "Rua A", Number: "10", City: "Manaus"}
	order, err := sut.Checkout(context.Background(), "cust-1", CheckoutRequest{PaymentMethod: "pix", Address: addr})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPending, order.Status)
	assert.Empty(t, order.ConfirmationCode)
	assert.Nil(t, order.ExpiresAt)
	require.Len(t, order.Lines, 2)
	assert.Equal(t, int64(5000), order.Lines[0].UnitPriceCents)
	assert.Equal(t, int64(10000), order.Lines[0].SubtotalCents)
	assert.Equal(t, cart.DeliveryFeeCents, order.DeliveryFeeCents)
	assert.Equal(t, cart.TotalCents(), order.TotalCents)
	assert.Equal(t, addr, order.DeliveryAddress)
}

func TestCheckout_InsufficientStockRollsBackReservations(t *testing.T) {
	carts := &mockCartAccessor{cart: checkoutCart(domain.ModePickup)}
	// Second line cannot be reserved; the first must be handed back.
	stock := newMockStock(map[string]int{"p1": 10, "p2": 0})
	orders := newMockOrderRepo()
	outbox := &mockOutbox{}

	sut := NewCheckoutService(carts, stock, orders, outbox)

	_, err := sut.Checkout(context.Background(), "cust-1", CheckoutRequest{})
	require.ErrorIs(t, err, repository.ErrInsufficientStock)
	assert.True(t, strings.Contains(err.Error(), "p2"))

	assert.Equal(t, 10, stock.available["p1"])
	assert.Equal(t, 0, stock.reserved["p1"])
	assert.False(t, carts.cleared)
	assert.Empty(t, orders.orders)
	assert.Empty(t, outbox.events)
}

func placeOrder(t *testing.T, mode domain.FulfillmentMode, stock *mockStock, orders *mockOrderRepo, outbox *mockOutbox) *domain.Order {
	t.Helper()
	carts := &mockCartAccessor{cart: checkoutCart(mode)}
	sut := NewCheckoutService(carts, stock, orders, outbox)

	req := CheckoutRequest{PaymentMethod: "pix"}
	if mode == domain.ModeDelivery {
		req.Address = &domain.Address{Street: "Rua A", Number: "10", City: "Manaus"}
	}
	order, err := sut.Checkout(context.Background(), "cust-1", req)
	require.NoError(t, err)
	return order
}

func TestUpdateStatus_LegalTransition(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	outbox := &mockOutbox{}
	order := placeOrder(t, domain.ModePickup, stock, orders, outbox)

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, outbox)

	updated, err := sut.UpdateStatus(context.Background(), "store-a", order.ID, domain.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)

	stored, err := orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, stored.Status)
	assert.Equal(t, []string{"OrderCreated", "OrderStatusChanged"}, outbox.types())
}

func TestUpdateStatus_IllegalTransition(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	order := placeOrder(t, domain.ModePickup, stock, orders, &mockOutbox{})

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, &mockOutbox{})

	_, err := sut.UpdateStatus(context.Background(), "store-a", order.ID, domain.StatusDelivered)
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestUpdateStatus_WrongStore(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	order := placeOrder(t, domain.ModePickup, stock, orders, &mockOutbox{})

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, &mockOutbox{})

	_, err := sut.UpdateStatus(context.Background(), "store-b", order.ID, domain.StatusConfirmed)
	require.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestUpdateStatus_CancelReleasesStock(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	order := placeOrder(t, domain.ModePickup, stock, orders, &mockOutbox{})

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, &mockOutbox{})

	_, err := sut.UpdateStatus(context.Background(), "store-a", order.ID, domain.StatusCanceled)
	require.NoError(t, err)

	assert.Equal(t, 10, stock.available["p1"])
	assert.Equal(t, 0, stock.reserved["p1"])
	assert.Equal(t, 10, stock.available["p2"])
}

func TestExpireOverduePickups(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	outbox := &mockOutbox{}
	order := placeOrder(t, domain.ModePickup, stock, orders, outbox)

	// Push the hold window into the past.
	orders.m.Lock()
	past := time.Now().Add(-time.Hour)
	orders.orders[order.ID].ExpiresAt = &past
	orders.m.Unlock()

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, outbox)

	expired, err := sut.ExpireOverduePickups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	stored, err := orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	assert.Equal(t, 10, stock.available["p1"])
	assert.Equal(t, 0, stock.reserved["p1"])
	assert.Equal(t, []string{"OrderCreated", "OrderStatusChanged"}, outbox.types())
}

func TestExpireOverduePickups_NothingOverdue(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	placeOrder(t, domain.ModePickup, stock, orders, &mockOutbox{})

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, &mockOutbox{})

	expired, err := sut.ExpireOverduePickups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestUpdateStatus_CompleteConsumesStock(t *testing.T) {
	stock := newMockStock(map[string]int{"p1": 10, "p2": 10})
	orders := newMockOrderRepo()
	order := placeOrder(t, domain.ModePickup, stock, orders, &mockOutbox{})

	sut := NewCheckoutService(&mockCartAccessor{}, stock, orders, &mockOutbox{})

	ctx := context.Background()
	for _, next := range []domain.OrderStatus{domain.StatusConfirmed, domain.StatusReadyForPickup, domain.StatusPaidInStore, domain.StatusCompleted} {
		_, err := sut.UpdateStatus(ctx, "store-a", order.ID, next)
		require.NoError(t, err)
	}

	assert.Equal(t, 8, stock.available["p1"])
	assert.Equal(t, 0, stock.reserved["p1"])
	assert.Equal(t, 2, stock.consumed["p1"])
	assert.Equal(t, 1, stock.consumed["p2"])
}
