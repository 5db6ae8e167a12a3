package domain

type FulfillmentMode string

const (
	ModeDelivery FulfillmentMode = "delivery"
	ModePickup   FulfillmentMode = "pickup"
)

func (m FulfillmentMode) Valid() bool {
	return m == ModeDelivery || m == ModePickup
}

// Reason identifies a business-rule outcome the caller is expected to surface
// to the user. None of these are errors in the Go sense.
type Reason string

const (
	ReasonOutOfStock                 Reason = "out_of_stock"
	ReasonQuantityLimitReached       Reason = "quantity_limit_reached"
	ReasonCartWillBeReplaced         Reason = "cart_will_be_replaced"
	ReasonUnsupportedFulfillmentMode Reason = "unsupported_fulfillment_mode"
)

// AdditionCheck is the result of ValidateAddition. When Allowed is true,
// Reason may still carry an advisory warning (cart_will_be_replaced).
type AdditionCheck struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`

	// Product is the resolved catalog record for this line. Only the
	// reference is persisted; the cart service re-resolves it on load.
	Product Product `json:"product"`
}

// Cart holds the lines a customer is currently buying. All lines of a
// non-empty cart belong to a single store, ActiveStoreID. Operations use
// value semantics: they return a new Cart and never mutate the receiver's
// line slice, so callers can keep the previous state around.
type Cart struct {
	CustomerID       string          `json:"customer_id"`
	Lines            []CartLine      `json:"lines"`
	ActiveStoreID    string          `json:"active_store_id,omitempty"`
	FulfillmentMode  FulfillmentMode `json:"fulfillment_mode"`
	DeliveryFeeCents int64           `json:"delivery_fee_cents"`
}

func NewCart(customerID string) Cart {
	return Cart{
		CustomerID:      customerID,
		FulfillmentMode: ModePickup,
	}
}

// ValidateAddition checks whether one more unit of p can go into the cart.
// It is a pure check; AddItem does not call it, so callers that skip it get
// the cross-store replacement behavior without the warning.
func (c Cart) ValidateAddition(p Product) AdditionCheck {
	if p.AvailableStock <= 0 {
		return AdditionCheck{Allowed: false, Reason: ReasonOutOfStock}
	}

	current := 0
	for _, l := range c.Lines {
		if l.ProductID == p.ID {
			current = l.Quantity
			break
		}
	}
	if current+1 > p.AvailableStock {
		return AdditionCheck{Allowed: false, Reason: ReasonQuantityLimitReached}
	}

	if c.ActiveStoreID != "" && c.ActiveStoreID != p.StoreID {
		return AdditionCheck{Allowed: true, Reason: ReasonCartWillBeReplaced}
	}

	return AdditionCheck{Allowed: true}
}

// AddItem puts quantity units of p into the cart. Adding a product from a
// different store replaces the whole cart with a single line for p. The
// fulfillment mode is always set to mode and the delivery fee recomputed
// from p's store. quantity must be >= 1; the HTTP layer guards that.
func (c Cart) AddItem(p Product, quantity int, mode FulfillmentMode) Cart {
	if c.ActiveStoreID != "" && c.ActiveStoreID != p.StoreID {
		return Cart{
			CustomerID:       c.CustomerID,
			Lines:            []CartLine{{ProductID: p.ID, Quantity: quantity, Product: p}},
			ActiveStoreID:    p.StoreID,
			FulfillmentMode:  mode,
			DeliveryFeeCents: deliveryFee(p.Store, mode),
		}
	}

	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)

	found := false
	for i := range lines {
		if lines[i].ProductID == p.ID {
			lines[i].Quantity += quantity
			lines[i].Product = p
			found = true
			break
		}
	}
	if !found {
		lines = append(lines, CartLine{ProductID: p.ID, Quantity: quantity, Product: p})
	}

	c.Lines = lines
	c.ActiveStoreID = p.StoreID
	c.FulfillmentMode = mode
	c.DeliveryFeeCents = deliveryFee(p.Store, mode)
	return c
}

// RemoveItem drops the line for productID. Removing an absent product is a
// no-op. An emptied cart resets to its initial state (pickup, no fee).
func (c Cart) RemoveItem(productID string) Cart {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.ProductID != productID {
			lines = append(lines, l)
		}
	}

	c.Lines = lines
	if len(lines) == 0 {
		c.ActiveStoreID = ""
		c.FulfillmentMode = ModePickup
		c.DeliveryFeeCents = 0
	}
	return c
}

// SetQuantity replaces the line's quantity verbatim; quantity <= 0 removes
// the line. The quantity is not clamped to available stock here — the add
// path warns through ValidateAddition, and the presentation layer disables
// the increment control once stock is reached.
func (c Cart) SetQuantity(productID string, quantity int) Cart {
	if quantity <= 0 {
		return c.RemoveItem(productID)
	}

	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity = quantity
			break
		}
	}
	c.Lines = lines
	return c
}

// SetFulfillmentMode switches the cart between delivery and pickup and
// recomputes the fee. When the active store does not offer the requested
// mode the cart is returned unchanged and applied is false.
func (c Cart) SetFulfillmentMode(mode FulfillmentMode) (cart Cart, applied bool) {
	if len(c.Lines) == 0 {
		c.FulfillmentMode = mode
		c.DeliveryFeeCents = 0
		return c, true
	}

	store := c.Lines[0].Product.Store
	if mode == ModeDelivery && !store.SupportsDelivery {
		return c, false
	}
	if mode == ModePickup && !store.SupportsPickup {
		return c, false
	}

	c.FulfillmentMode = mode
	c.DeliveryFeeCents = deliveryFee(store, mode)
	return c, true
}

// Clear returns a fresh empty cart for the same customer.
func (c Cart) Clear() Cart {
	return NewCart(c.CustomerID)
}

func (c Cart) SubtotalCents() int64 {
	var total int64
	for _, l := range c.Lines {
		total += int64(l.Quantity) * l.Product.EffectiveUnitPriceCents()
	}
	return total
}

// TotalCents adds the delivery fee only while the cart is in delivery mode,
// regardless of the cached fee value.
func (c Cart) TotalCents() int64 {
	total := c.SubtotalCents()
	if c.FulfillmentMode == ModeDelivery {
		total += c.DeliveryFeeCents
	}
	return total
}

func (c Cart) TotalQuantity() int {
	total := 0
	for _, l := range c.Lines {
		total += l.Quantity
	}
	return total
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func deliveryFee(s Store, mode FulfillmentMode) int64 {
	if mode == ModeDelivery {
		return s.DeliveryFeeCents
	}
	return 0
}
