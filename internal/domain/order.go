package domain

import "time"

type OrderStatus string

// Delivery orders move pending -> confirmed -> preparing -> shipped ->
// delivered -> completed. Pickup reservations move reserved -> confirmed ->
// ready_for_pickup -> paid_in_store -> completed. Both can be canceled from
// any non-terminal state; pickup reservations can additionally expire.
const (
	StatusPending        OrderStatus = "pending"
	StatusConfirmed      OrderStatus = "confirmed"
	StatusPreparing      OrderStatus = "preparing"
	StatusShipped        OrderStatus = "shipped"
	StatusDelivered      OrderStatus = "delivered"
	StatusReserved       OrderStatus = "reserved"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusPaidInStore    OrderStatus = "paid_in_store"
	StatusCompleted      OrderStatus = "completed"
	StatusCanceled       OrderStatus = "canceled"
	StatusExpired        OrderStatus = "expired"
)

func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusExpired
}

func (s OrderStatus) String() string {
	return string(s)
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusConfirmed, StatusCanceled},
	StatusConfirmed:      {StatusPreparing, StatusReadyForPickup, StatusCanceled},
	StatusPreparing:      {StatusShipped, StatusCanceled},
	StatusShipped:        {StatusDelivered, StatusCanceled},
	StatusDelivered:      {StatusCompleted},
	StatusReserved:       {StatusConfirmed, StatusCanceled, StatusExpired},
	StatusReadyForPickup: {StatusPaidInStore, StatusCanceled, StatusExpired},
	StatusPaidInStore:    {StatusCompleted},
}

// CanTransition reports whether an order may move from its current status to
// next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderLine is an immutable snapshot of a cart line at checkout time. Prices
// are frozen here so later catalog edits do not change past orders.
type OrderLine struct {
	ProductID      string `bson:"product_id" json:"product_id"`
	Name           string `bson:"name" json:"name"`
	Quantity       int    `bson:"quantity" json:"quantity"`
	UnitPriceCents int64  `bson:"unit_price_cents" json:"unit_price_cents"`
	SubtotalCents  int64  `bson:"subtotal_cents" json:"subtotal_cents"`
}

type Order struct {
	ID               string          `bson:"_id,omitempty" json:"id"`
	CustomerID       string          `bson:"customer_id" json:"customer_id"`
	StoreID          string          `bson:"store_id" json:"store_id"`
	Lines            []OrderLine     `bson:"lines" json:"lines"`
	FulfillmentMode  FulfillmentMode `bson:"fulfillment_mode" json:"fulfillment_mode"`
	SubtotalCents    int64           `bson:"subtotal_cents" json:"subtotal_cents"`
	DeliveryFeeCents int64           `bson:"delivery_fee_cents" json:"delivery_fee_cents"`
	TotalCents       int64           `bson:"total_cents" json:"total_cents"`
	Status           OrderStatus     `bson:"status" json:"status"`
	PaymentMethod    string          `bson:"payment_method,omitempty" json:"payment_method,omitempty"`
	DeliveryAddress  *Address        `bson:"delivery_address,omitempty" json:"delivery_address,omitempty"`

	// Pickup reservations only.
	ConfirmationCode string     `bson:"confirmation_code,omitempty" json:"confirmation_code,omitempty"`
	ExpiresAt        *time.Time `bson:"expires_at,omitempty" json:"expires_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// NewOrder freezes a reconciled cart into an order. Delivery orders start
// pending, pickup reservations start reserved.
func NewOrder(id string, cart Cart) Order {
	lines := make([]OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		unit := l.Product.EffectiveUnitPriceCents()
		lines = append(lines, OrderLine{
			ProductID:      l.ProductID,
			Name:           l.Product.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: unit,
			SubtotalCents:  int64(l.Quantity) * unit,
		})
	}

	status := StatusPending
	if cart.FulfillmentMode == ModePickup {
		status = StatusReserved
	}

	now := time.Now().UTC()
	return Order{
		ID:               id,
		CustomerID:       cart.CustomerID,
		StoreID:          cart.ActiveStoreID,
		Lines:            lines,
		FulfillmentMode:  cart.FulfillmentMode,
		SubtotalCents:    cart.SubtotalCents(),
		DeliveryFeeCents: cart.DeliveryFeeCents,
		TotalCents:       cart.TotalCents(),
		Status:           status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
