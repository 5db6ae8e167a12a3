package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/Luffyzera/onde-comprar/internal/repository"
	"github.com/google/uuid"
)

// CartAccessor is the slice of the cart service the checkout needs.
type CartAccessor interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	Clear(ctx context.Context, customerID string) error
}

// StockManager is the slice of the product repository the checkout needs.
type StockManager interface {
	ReserveStock(ctx context.Context, id string, quantity int) error
	ReleaseStock(ctx context.Context, id string, quantity int) error
	ConsumeStock(ctx context.Context, id string, quantity int) error
}

type CheckoutService struct {
	carts  CartAccessor
	stock  StockManager
	orders repository.OrderRepository
	outbox repository.OutboxRepository
}

func NewCheckoutService(carts CartAccessor, stock StockManager, orders repository.OrderRepository, outbox repository.OutboxRepository) *CheckoutService {
	return &CheckoutService{
		carts:  carts,
		stock:  stock,
		orders: orders,
		outbox: outbox,
	}
}

type CheckoutRequest struct {
	PaymentMethod string          `json:"payment_method"`
	Address       *domain.Address `json:"address,omitempty"`
}

const pickupReservationTTL = 48 * time.Hour

// Checkout freezes the customer's reconciled cart into an order, reserving
// stock line by line. Delivery orders need an address; pickup reservations
// get a confirmation code and an expiry. The cart is cleared once the order
// is accepted.
func (s *CheckoutService) Checkout(ctx context.Context, customerID string, req CheckoutRequest) (*domain.Order, error) {
	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if cart.IsEmpty() {
		return nil, ErrEmptyCart
	}
	if cart.FulfillmentMode == domain.ModeDelivery && req.Address == nil {
		return nil, ErrDeliveryAddressRequired
	}

	// Reserve every line before writing the order; roll back on failure.
	reserved := make([]domain.CartLine, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		if err := s.stock.ReserveStock(ctx, line.ProductID, line.Quantity); err != nil {
			s.releaseLines(ctx, reserved)
			return nil, fmt.Errorf("product %s: %w", line.ProductID, err)
		}
		reserved = append(reserved, line)
	}

	order := domain.NewOrder(uuid.NewString(), *cart)
	order.PaymentMethod = req.PaymentMethod
	order.DeliveryAddress = req.Address
	if cart.FulfillmentMode == domain.ModePickup {
		order.ConfirmationCode = confirmationCode()
		expires := order.CreatedAt.Add(pickupReservationTTL)
		order.ExpiresAt = &expires
	}

	if err := s.orders.Insert(ctx, &order); err != nil {
		s.releaseLines(ctx, reserved)
		return nil, err
	}

	s.appendEvent(ctx, order.ID, "OrderCreated", orderEventPayload(&order))

	if err := s.carts.Clear(ctx, customerID); err != nil {
		// The order stands; the stale cart is dropped on next reconcile.
		log.Printf("failed to clear cart after checkout: %v", err)
	}

	return &order, nil
}

func (s *CheckoutService) ListCustomerOrders(ctx context.Context, customerID string) ([]*domain.Order, error) {
	return s.orders.ListByCustomer(ctx, customerID)
}

func (s *CheckoutService) ListStoreOrders(ctx context.Context, storeID string) ([]*domain.Order, error) {
	return s.orders.ListByStore(ctx, storeID)
}

// UpdateStatus applies a merchant-driven transition. Cancellation and expiry
// hand the reserved units back; a completed order consumes them.
func (s *CheckoutService) UpdateStatus(ctx context.Context, storeID, orderID string, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.StoreID != storeID {
		// Do not leak other stores' orders.
		return nil, repository.ErrOrderNotFound
	}

	if !order.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, next)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, order.Status, next); err != nil {
		return nil, err
	}

	switch next {
	case domain.StatusCanceled, domain.StatusExpired:
		for _, line := range order.Lines {
			if err := s.stock.ReleaseStock(ctx, line.ProductID, line.Quantity); err != nil {
				log.Printf("failed to release stock for product %s: %v", line.ProductID, err)
			}
		}
	case domain.StatusCompleted:
		for _, line := range order.Lines {
			if err := s.stock.ConsumeStock(ctx, line.ProductID, line.Quantity); err != nil {
				log.Printf("failed to consume stock for product %s: %v", line.ProductID, err)
			}
		}
	}

	order.Status = next
	s.appendEvent(ctx, order.ID, "OrderStatusChanged", orderEventPayload(order))

	return order, nil
}

// ExpireOverduePickups moves pickup reservations past their hold window to
// expired and hands the reserved units back. It returns how many orders were
// expired; losing a guarded update race is not an error.
func (s *CheckoutService) ExpireOverduePickups(ctx context.Context) (int, error) {
	overdue, err := s.orders.ListOverduePickups(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range overdue {
		if err := s.orders.UpdateStatus(ctx, order.ID, order.Status, domain.StatusExpired); err != nil {
			// Someone else transitioned the order first; leave it alone.
			log.Printf("failed to expire order %s: %v", order.ID, err)
			continue
		}

		for _, line := range order.Lines {
			if err := s.stock.ReleaseStock(ctx, line.ProductID, line.Quantity); err != nil {
				log.Printf("failed to release stock for product %s: %v", line.ProductID, err)
			}
		}

		order.Status = domain.StatusExpired
		s.appendEvent(ctx, order.ID, "OrderStatusChanged", orderEventPayload(order))
		expired++
	}

	return expired, nil
}

func (s *CheckoutService) releaseLines(ctx context.Context, lines []domain.CartLine) {
	for _, line := range lines {
		if err := s.stock.ReleaseStock(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("failed to roll back reservation for product %s: %v", line.ProductID, err)
		}
	}
}

func (s *CheckoutService) appendEvent(ctx context.Context, orderID, eventType string, payload []byte) {
	event := &repository.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: orderID,
		EventType:   eventType,
		Payload:     payload,
	}
	if err := s.outbox.InsertEvent(ctx, event); err != nil {
		// Publication is best-effort here; the order itself is durable.
		log.Printf("failed to append outbox event for order %s: %v", orderID, err)
	}
}

func orderEventPayload(o *domain.Order) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"order_id":         o.ID,
		"customer_id":      o.CustomerID,
		"store_id":         o.StoreID,
		"fulfillment_mode": o.FulfillmentMode,
		"status":           o.Status,
		"total_cents":      o.TotalCents,
		"updated_at":       o.UpdatedAt,
	})
	if err != nil {
		log.Printf("failed to marshal order event payload: %v", err)
		return nil
	}
	return payload
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// confirmationCode returns the short code the customer shows at pickup.
// Ambiguous characters (0/O, 1/I) are excluded.
func confirmationCode() string {
	code := make([]byte, 6)
	for i := range code {
		code[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(code)
}
