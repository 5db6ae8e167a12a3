package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/cache"
	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/Luffyzera/onde-comprar/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCartRepo struct {
	m      sync.RWMutex
	record *repository.CartRecord
	err    error
}

func (m *mockCartRepo) Get(context.Context, string) (*repository.CartRecord, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.record == nil {
		return nil, repository.ErrCartNotFound
	}
	return m.record, nil
}

func (m *mockCartRepo) Upsert(_ context.Context, record *repository.CartRecord) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.record = record
	return nil
}

func (m *mockCartRepo) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.record == nil {
		return repository.ErrCartNotFound
	}
	m.record = nil
	return nil
}

func (m *mockCartRepo) getRecord() *repository.CartRecord {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.record
}

type mockCatalog struct {
	products map[string]*domain.Product
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

type mockCartCache struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockCartCache) Get(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCartCache) Set(_ context.Context, _ string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = cart
	return m.err
}

func (m *mockCartCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.cart = nil
	return m.err
}

func (m *mockCartCache) getCart() *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.cart
}

func testStore(id string, delivers bool) domain.Store {
	return domain.Store{
		ID:               id,
		Name:             "Store " + id,
		SupportsDelivery: delivers,
		SupportsPickup:   true,
		DeliveryFeeCents: 1200,
		IsActive:         true,
	}
}

func testProduct(id, storeID string, priceCents int64, stock int) *domain.Product {
	return &domain.Product{
		ID:             id,
		StoreID:        storeID,
		Name:           "Product " + id,
		PriceCents:     priceCents,
		AvailableStock: stock,
		IsActive:       true,
		Store:          testStore(storeID, true),
	}
}

func newTestCartService(repo *mockCartRepo, catalog *mockCatalog, c *mockCartCache) *CartService {
	return NewCartService(repo, catalog, c)
}

func TestGet_NoPersistedCartReturnsEmpty(t *testing.T) {
	sut := newTestCartService(&mockCartRepo{}, &mockCatalog{}, &mockCartCache{})

	cart, err := sut.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, domain.ModePickup, cart.FulfillmentMode)
}

func TestGet_CacheHitSkipsRepo(t *testing.T) {
	cached := domain.NewCart("cust-1")
	repo := &mockCartRepo{err: fmt.Errorf("repo should not be called")}
	mockC := &mockCartCache{cart: &cached}

	sut := newTestCartService(repo, &mockCatalog{}, mockC)

	cart, err := sut.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", cart.CustomerID)
}

func TestGet_ResolvesLinesAndFillsCache(t *testing.T) {
	repo := &mockCartRepo{record: &repository.CartRecord{
		CustomerID:       "cust-1",
		ActiveStoreID:    "store-a",
		FulfillmentMode:  "delivery",
		DeliveryFeeCents: 1200,
		Lines: []repository.CartLineRecord{
			{ProductID: "p1", Quantity: 2},
		},
	}}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 10),
	}}
	mockC := &mockCartCache{}

	sut := newTestCartService(repo, catalog, mockC)

	cart, err := sut.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(5000), cart.Lines[0].Product.PriceCents)
	assert.Equal(t, int64(11200), cart.TotalCents())

	require.Eventually(t, func() bool {
		return mockC.getCart() != nil
	}, 100*time.Millisecond, 10*time.Millisecond, "cart was not set in cache")
}

func TestGet_ReconciliationDropsStaleLines(t *testing.T) {
	inactive := testProduct("gone-inactive", "store-a", 3000, 5)
	inactive.IsActive = false

	repo := &mockCartRepo{record: &repository.CartRecord{
		CustomerID:      "cust-1",
		ActiveStoreID:   "store-a",
		FulfillmentMode: "pickup",
		Lines: []repository.CartLineRecord{
			{ProductID: "keep", Quantity: 1},
			{ProductID: "gone-deleted", Quantity: 2},
			{ProductID: "gone-inactive", Quantity: 3},
			{ProductID: "gone-moved", Quantity: 4},
		},
	}}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"keep":          testProduct("keep", "store-a", 5000, 10),
		"gone-inactive": inactive,
		"gone-moved":    testProduct("gone-moved", "store-b", 2000, 10),
	}}

	sut := newTestCartService(repo, catalog, &mockCartCache{})

	cart, err := sut.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "keep", cart.Lines[0].ProductID)
	assert.Equal(t, "store-a", cart.ActiveStoreID)
}

func TestGet_AllLinesDroppedResetsCart(t *testing.T) {
	repo := &mockCartRepo{record: &repository.CartRecord{
		CustomerID:       "cust-1",
		ActiveStoreID:    "store-a",
		FulfillmentMode:  "delivery",
		DeliveryFeeCents: 1200,
		Lines: []repository.CartLineRecord{
			{ProductID: "gone", Quantity: 2},
		},
	}}

	sut := newTestCartService(repo, &mockCatalog{}, &mockCartCache{})

	cart, err := sut.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "", cart.ActiveStoreID)
	assert.Equal(t, domain.ModePickup, cart.FulfillmentMode)
	assert.Equal(t, int64(0), cart.DeliveryFeeCents)
}

func TestAddItem_PersistsRefsOnly(t *testing.T) {
	repo := &mockCartRepo{}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 10),
	}}
	mockC := &mockCartCache{}

	sut := newTestCartService(repo, catalog, mockC)

	cart, check, err := sut.AddItem(context.Background(), "cust-1", "p1", 2, domain.ModeDelivery)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Empty(t, check.Reason)
	assert.Equal(t, int64(11200), cart.TotalCents())

	record := repo.getRecord()
	require.NotNil(t, record)
	require.Len(t, record.Lines, 1)
	assert.Equal(t, "p1", record.Lines[0].ProductID)
	assert.Equal(t, 2, record.Lines[0].Quantity)
	assert.Equal(t, "store-a", record.ActiveStoreID)
	assert.Equal(t, "delivery", record.FulfillmentMode)
	assert.Equal(t, int64(1200), record.DeliveryFeeCents)
}

func TestAddItem_OutOfStockDoesNotPersist(t *testing.T) {
	repo := &mockCartRepo{}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 0),
	}}

	sut := newTestCartService(repo, catalog, &mockCartCache{})

	cart, check, err := sut.AddItem(context.Background(), "cust-1", "p1", 1, domain.ModePickup)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Equal(t, domain.ReasonOutOfStock, check.Reason)
	assert.True(t, cart.IsEmpty())
	assert.Nil(t, repo.getRecord())
}

func TestAddItem_CrossStoreReplacesAndWarns(t *testing.T) {
	repo := &mockCartRepo{record: &repository.CartRecord{
		CustomerID:      "cust-1",
		ActiveStoreID:   "store-a",
		FulfillmentMode: "pickup",
		Lines: []repository.CartLineRecord{
			{ProductID: "p1", Quantity: 2},
		},
	}}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 10),
		"p2": testProduct("p2", "store-b", 7000, 10),
	}}

	sut := newTestCartService(repo, catalog, &mockCartCache{})

	cart, check, err := sut.AddItem(context.Background(), "cust-1", "p2", 1, domain.ModePickup)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Equal(t, domain.ReasonCartWillBeReplaced, check.Reason)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, "p2", cart.Lines[0].ProductID)
	assert.Equal(t, "store-b", cart.ActiveStoreID)

	record := repo.getRecord()
	require.Len(t, record.Lines, 1)
	assert.Equal(t, "p2", record.Lines[0].ProductID)
}

func TestAddItem_UnknownProduct(t *testing.T) {
	sut := newTestCartService(&mockCartRepo{}, &mockCatalog{}, &mockCartCache{})

	_, _, err := sut.AddItem(context.Background(), "cust-1", "ghost", 1, domain.ModePickup)
	require.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestAddItem_InvalidatesCache(t *testing.T) {
	cached := domain.NewCart("cust-1")
	repo := &mockCartRepo{}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 10),
	}}
	mockC := &mockCartCache{cart: &cached}

	sut := newTestCartService(repo, catalog, mockC)

	_, _, err := sut.AddItem(context.Background(), "cust-1", "p1", 1, domain.ModePickup)
	require.NoError(t, err)
	assert.Nil(t, mockC.getCart())
}

func TestSetQuantity_ZeroRemovesLine(t *testing.T) {
	repo := &mockCartRepo{record: &repository.CartRecord{
		CustomerID:      "cust-1",
		ActiveStoreID:   "store-a",
		FulfillmentMode: "pickup",
		Lines: []repository.CartLineRecord{
			{ProductID: "p1", Quantity: 2},
		},
	}}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 10),
	}}

	sut := newTestCartService(repo, catalog, &mockCartCache{})

	cart, err := sut.SetQuantity(context.Background(), "cust-1", "p1", 0)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Empty(t, repo.getRecord().Lines)
	assert.Equal(t, "", repo.getRecord().ActiveStoreID)
}

func TestSetFulfillmentMode_UnsupportedIsRejectedWithoutPersist(t *testing.T) {
	noDelivery := testProduct("p1", "store-a", 5000, 10)
	noDelivery.Store = testStore("store-a", false)

	record := &repository.CartRecord{
		CustomerID:      "cust-1",
		ActiveStoreID:   "store-a",
		FulfillmentMode: "pickup",
		Lines: []repository.CartLineRecord{
			{ProductID: "p1", Quantity: 1},
		},
	}
	repo := &mockCartRepo{record: record}
	catalog := &mockCatalog{products: map[string]*domain.Product{"p1": noDelivery}}

	sut := newTestCartService(repo, catalog, &mockCartCache{})

	cart, applied, err := sut.SetFulfillmentMode(context.Background(), "cust-1", domain.ModeDelivery)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, domain.ModePickup, cart.FulfillmentMode)
	assert.Equal(t, "pickup", repo.getRecord().FulfillmentMode)
}

func TestSetFulfillmentMode_DeliveryPersistsFee(t *testing.T) {
	repo := &mockCartRepo{record: &repository.CartRecord{
		CustomerID:      "cust-1",
		ActiveStoreID:   "store-a",
		FulfillmentMode: "pickup",
		Lines: []repository.CartLineRecord{
			{ProductID: "p1", Quantity: 1},
		},
	}}
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": testProduct("p1", "store-a", 5000, 10),
	}}

	sut := newTestCartService(repo, catalog, &mockCartCache{})

	cart, applied, err := sut.SetFulfillmentMode(context.Background(), "cust-1", domain.ModeDelivery)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1200), cart.DeliveryFeeCents)
	assert.Equal(t, "delivery", repo.getRecord().FulfillmentMode)
	assert.Equal(t, int64(1200), repo.getRecord().DeliveryFeeCents)
}

func TestClear_DeletesAndInvalidates(t *testing.T) {
	cached := domain.NewCart("cust-1")
	repo := &mockCartRepo{record: &repository.CartRecord{CustomerID: "cust-1"}}
	mockC := &mockCartCache{cart: &cached}

	sut := newTestCartService(repo, &mockCatalog{}, mockC)

	require.NoError(t, sut.Clear(context.Background(), "cust-1"))
	assert.Nil(t, repo.getRecord())
	assert.Nil(t, mockC.getCart())
}

func TestClear_MissingCartIsNoOp(t *testing.T) {
	sut := newTestCartService(&mockCartRepo{}, &mockCatalog{}, &mockCartCache{})

	assert.NoError(t, sut.Clear(context.Background(), "cust-1"))
}
