package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/cache"
	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/Luffyzera/onde-comprar/internal/repository"
	"golang.org/x/sync/singleflight"
)

// ProductResolver is the slice of the catalog the cart service needs.
type ProductResolver interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type CartService struct {
	repo    repository.CartRepository
	catalog ProductResolver
	cache   cache.CartCache
	sfg     singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, catalog ProductResolver, cartCache cache.CartCache) *CartService {
	return &CartService{
		repo:    repo,
		catalog: catalog,
		cache:   cartCache,
	}
}

// Get loads the customer's cart, re-resolving every line against the catalog.
// Lines whose product no longer resolves, is inactive, or moved to a store
// other than the cart's active store are dropped (reconciliation). A missing
// cart comes back as a fresh empty one.
func (s *CartService) Get(ctx context.Context, customerID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(customerID, func() (interface{}, error) {

		cached, err := s.cache.Get(ctx, customerID)
		if err == nil {
			return cached, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errLoad := s.load(ctx, customerID)
		if errLoad != nil {
			return nil, errLoad
		}

		// set cache
		go func() {
			if errSet := s.cache.Set(context.Background(), customerID, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// load reads and reconciles the cart without touching the cache; mutation
// paths use it so their cache invalidation cannot race a concurrent fill.
func (s *CartService) load(ctx context.Context, customerID string) (*domain.Cart, error) {
	record, err := s.repo.Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			cart := domain.NewCart(customerID)
			return &cart, nil
		}
		return nil, err
	}

	return s.reconcile(ctx, record), nil
}

func (s *CartService) reconcile(ctx context.Context, record *repository.CartRecord) *domain.Cart {
	cart := domain.Cart{
		CustomerID:       record.CustomerID,
		ActiveStoreID:    record.ActiveStoreID,
		FulfillmentMode:  domain.FulfillmentMode(record.FulfillmentMode),
		DeliveryFeeCents: record.DeliveryFeeCents,
	}
	if !cart.FulfillmentMode.Valid() {
		cart.FulfillmentMode = domain.ModePickup
	}

	for _, line := range record.Lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			if !errors.Is(err, repository.ErrProductNotFound) {
				log.Printf("reconcile: failed to resolve product %s: %v", line.ProductID, err)
			}
			continue // dropped: product is gone
		}
		if !product.IsActive || product.StoreID != record.ActiveStoreID {
			continue // dropped: delisted or moved store
		}

		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   *product,
		})
	}

	if len(cart.Lines) == 0 {
		fresh := domain.NewCart(record.CustomerID)
		return &fresh
	}

	return &cart
}

// AddItem resolves the product, validates the addition, and applies it. When
// validation blocks (out of stock, quantity limit) the cart is returned
// unchanged together with the check; the advisory cart-will-be-replaced
// warning does not block.
func (s *CartService) AddItem(ctx context.Context, customerID, productID string, quantity int, mode domain.FulfillmentMode) (*domain.Cart, domain.AdditionCheck, error) {
	cart, err := s.load(ctx, customerID)
	if err != nil {
		return nil, domain.AdditionCheck{}, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, domain.AdditionCheck{}, err
	}

	check := cart.ValidateAddition(*product)
	if !check.Allowed {
		return cart, check, nil
	}

	updated := cart.AddItem(*product, quantity, mode)
	if err := s.persist(ctx, &updated); err != nil {
		return nil, check, err
	}

	return &updated, check, nil
}

func (s *CartService) SetQuantity(ctx context.Context, customerID, productID string, quantity int) (*domain.Cart, error) {
	cart, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	updated := cart.SetQuantity(productID, quantity)
	if err := s.persist(ctx, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

func (s *CartService) RemoveItem(ctx context.Context, customerID, productID string) (*domain.Cart, error) {
	cart, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}

	updated := cart.RemoveItem(productID)
	if err := s.persist(ctx, &updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

// SetFulfillmentMode switches delivery/pickup. applied is false when the
// active store does not offer the requested mode; the cart stays untouched.
func (s *CartService) SetFulfillmentMode(ctx context.Context, customerID string, mode domain.FulfillmentMode) (*domain.Cart, bool, error) {
	cart, err := s.load(ctx, customerID)
	if err != nil {
		return nil, false, err
	}

	updated, applied := cart.SetFulfillmentMode(mode)
	if !applied {
		return cart, false, nil
	}

	if err := s.persist(ctx, &updated); err != nil {
		return nil, false, err
	}

	return &updated, true, nil
}

func (s *CartService) Clear(ctx context.Context, customerID string) error {
	err := s.repo.Delete(ctx, customerID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		log.Printf("repo delete cart error: %v", err)
		return err
	}

	s.invalidateCache(customerID)
	return nil
}

func (s *CartService) persist(ctx context.Context, cart *domain.Cart) error {
	record := &repository.CartRecord{
		CustomerID:       cart.CustomerID,
		Lines:            make([]repository.CartLineRecord, 0, len(cart.Lines)),
		ActiveStoreID:    cart.ActiveStoreID,
		FulfillmentMode:  string(cart.FulfillmentMode),
		DeliveryFeeCents: cart.DeliveryFeeCents,
	}
	for _, line := range cart.Lines {
		record.Lines = append(record.Lines, repository.CartLineRecord{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	if err := s.repo.Upsert(ctx, record); err != nil {
		log.Printf("repo upsert cart error: %v", err)
		return err
	}

	s.invalidateCache(cart.CustomerID)
	return nil
}

func (s *CartService) invalidateCache(customerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, customerID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
