package cache

import (
	"context"
	"errors"

	"github.com/Luffyzera/onde-comprar/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// CartCache holds fully resolved carts so repeated storefront reads skip the
// catalog round trips.
type CartCache interface {
	Get(ctx context.Context, customerID string) (*domain.Cart, error)
	Set(ctx context.Context, customerID string, cart *domain.Cart) error
	Delete(ctx context.Context, customerID string) error
}

// ProductCache fronts the products collection for single-product lookups.
// Entries are short-lived because stock moves on every checkout.
type ProductCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, error)
	Set(ctx context.Context, productID string, product *domain.Product) error
	Delete(ctx context.Context, productID string) error
}
