package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/domain"
)

var (
	ErrCartNotFound      = errors.New("cart not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrStoreNotFound     = errors.New("store not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient available stock")
)

// Indexer is implemented by the MongoDB repositories that manage their own
// collection indexes; called once at startup.
type Indexer interface {
	CreateIndexes(ctx context.Context) error
}

// CartRecord is the persisted shape of a cart. Lines carry only the product
// reference and quantity; product details are re-resolved against the catalog
// on load.
type CartRecord struct {
	ID               string           `bson:"_id,omitempty" json:"-"`
	CustomerID       string           `bson:"customer_id" json:"customer_id"`
	Lines            []CartLineRecord `bson:"lines" json:"lines"`
	ActiveStoreID    string           `bson:"active_store_id,omitempty" json:"active_store_id,omitempty"`
	FulfillmentMode  string           `bson:"fulfillment_mode" json:"fulfillment_mode"`
	DeliveryFeeCents int64            `bson:"delivery_fee_cents" json:"delivery_fee_cents"`
	CreatedAt        time.Time        `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `bson:"updated_at" json:"updated_at"`
}

type CartLineRecord struct {
	ProductID string `bson:"product_id" json:"product_id"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// CartRepository defines the interface for cart persistence.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	Get(ctx context.Context, customerID string) (*CartRecord, error)
	Upsert(ctx context.Context, record *CartRecord) error
	Delete(ctx context.Context, customerID string) error
}

type ProductRepository interface {
	Get(ctx context.Context, id string) (*domain.Product, error)
	ListActive(ctx context.Context) ([]*domain.Product, error)
	ListByStore(ctx context.Context, storeID string) ([]*domain.Product, error)
	Search(ctx context.Context, query string) ([]*domain.Product, error)
	Insert(ctx context.Context, p *domain.Product) error
	InsertMany(ctx context.Context, ps []*domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error

	// ReserveStock moves quantity units from available to reserved, failing
	// with ErrInsufficientStock when not enough units remain.
	ReserveStock(ctx context.Context, id string, quantity int) error
	// ReleaseStock is the inverse of ReserveStock, used on cancellation.
	ReleaseStock(ctx context.Context, id string, quantity int) error
	// ConsumeStock drops quantity units from reserved once an order reaches
	// a successful terminal state.
	ConsumeStock(ctx context.Context, id string, quantity int) error
}

type StoreRepository interface {
	Get(ctx context.Context, id string) (*domain.Store, error)
	ListActive(ctx context.Context) ([]*domain.Store, error)
	Insert(ctx context.Context, s *domain.Store) error
	Update(ctx context.Context, s *domain.Store) error
}

type OrderRepository interface {
	Get(ctx context.Context, id string) (*domain.Order, error)
	Insert(ctx context.Context, o *domain.Order) error
	ListByCustomer(ctx context.Context, customerID string) ([]*domain.Order, error)
	ListByStore(ctx context.Context, storeID string) ([]*domain.Order, error)

	// UpdateStatus moves the order from expectedCurrent to next in one
	// guarded write; ErrOrderNotFound means the order is gone or no longer
	// in expectedCurrent.
	UpdateStatus(ctx context.Context, id string, expectedCurrent, next domain.OrderStatus) error

	// ListOverduePickups returns pickup reservations whose hold expired
	// before cutoff and that are still awaiting the customer.
	ListOverduePickups(ctx context.Context, cutoff time.Time) ([]*domain.Order, error)
}

// OutboxEvent is an order event awaiting publication to Kafka.
type OutboxEvent struct {
	ID          string     `bson:"_id"`
	AggregateID string     `bson:"aggregate_id"`
	EventType   string     `bson:"event_type"`
	Payload     []byte     `bson:"payload"`
	CreatedAt   time.Time  `bson:"created_at"`
	ProcessedAt *time.Time `bson:"processed_at,omitempty"`
}

type OutboxRepository interface {
	InsertEvent(ctx context.Context, event *OutboxEvent) error
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id string) error
}
