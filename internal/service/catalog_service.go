package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/cache"
	"github.com/Luffyzera/onde-comprar/internal/domain"
	"github.com/Luffyzera/onde-comprar/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type CatalogService struct {
	products repository.ProductRepository
	stores   repository.StoreRepository
	cache    cache.ProductCache
	sfg      singleflight.Group
}

func NewCatalogService(products repository.ProductRepository, stores repository.StoreRepository, productCache cache.ProductCache) *CatalogService {
	return &CatalogService{
		products: products,
		stores:   stores,
		cache:    productCache,
	}
}

// GetProduct returns the product with its owning store resolved.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {

		cached, err := s.cache.Get(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("product cache get error: %v", err)
		}

		product, err := s.products.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		store, err := s.stores.Get(ctx, product.StoreID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve store %s: %w", product.StoreID, err)
		}
		product.Store = *store

		go func() {
			if errSet := s.cache.Set(context.Background(), id, product); errSet != nil {
				log.Printf("product cache set error: %v", errSet)
			}
		}()

		return product, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Product), nil
}

// ListProducts returns active products, optionally filtered by a name query.
func (s *CatalogService) ListProducts(ctx context.Context, query string) ([]*domain.Product, error) {
	var (
		products []*domain.Product
		err      error
	)
	if query != "" {
		products, err = s.products.Search(ctx, query)
	} else {
		products, err = s.products.ListActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	return s.resolveStores(ctx, products)
}

func (s *CatalogService) ListStoreProducts(ctx context.Context, storeID string) ([]*domain.Product, error) {
	products, err := s.products.ListByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	return s.resolveStores(ctx, products)
}

func (s *CatalogService) resolveStores(ctx context.Context, products []*domain.Product) ([]*domain.Product, error) {
	stores := map[string]*domain.Store{}
	for _, p := range products {
		store, ok := stores[p.StoreID]
		if !ok {
			var err error
			store, err = s.stores.Get(ctx, p.StoreID)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve store %s: %w", p.StoreID, err)
			}
			stores[p.StoreID] = store
		}
		p.Store = *store
	}
	return products, nil
}

// ProductInput is the merchant-facing shape for create/update.
type ProductInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	PriceCents      int64    `json:"price_cents"`
	PromoPriceCents *int64   `json:"promo_price_cents"`
	AvailableStock  int      `json:"available_stock"`
	ImageURLs       []string `json:"image_urls"`
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.PriceCents <= 0 {
		return fmt.Errorf("%w: price_cents must be positive", ErrInvalidInput)
	}
	if in.PromoPriceCents != nil && (*in.PromoPriceCents <= 0 || *in.PromoPriceCents >= in.PriceCents) {
		return fmt.Errorf("%w: promo_price_cents must be positive and lower than price_cents", ErrInvalidInput)
	}
	if in.AvailableStock < 0 {
		return fmt.Errorf("%w: available_stock cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, storeID string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	product := &domain.Product{
		ID:              uuid.NewString(),
		StoreID:         storeID,
		Name:            strings.TrimSpace(in.Name),
		Description:     in.Description,
		Category:        in.Category,
		PriceCents:      in.PriceCents,
		PromoPriceCents: in.PromoPriceCents,
		AvailableStock:  in.AvailableStock,
		ImageURLs:       in.ImageURLs,
		IsActive:        true,
	}

	if err := s.products.Insert(ctx, product); err != nil {
		return nil, err
	}

	product.Store = *store
	return product, nil
}

func (s *CatalogService) UpdateProduct(ctx context.Context, storeID, id string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.StoreID != storeID {
		// Do not leak other merchants' products.
		return nil, repository.ErrProductNotFound
	}

	product.Name = strings.TrimSpace(in.Name)
	product.Description = in.Description
	product.Category = in.Category
	product.PriceCents = in.PriceCents
	product.PromoPriceCents = in.PromoPriceCents
	product.AvailableStock = in.AvailableStock
	product.ImageURLs = in.ImageURLs

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}

	s.invalidateProduct(id)
	return s.GetProduct(ctx, id)
}

// DeactivateProduct is the merchant delete: a soft delete so order snapshots
// keep a valid reference.
func (s *CatalogService) DeactivateProduct(ctx context.Context, storeID, id string) error {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return err
	}
	if product.StoreID != storeID {
		return repository.ErrProductNotFound
	}

	if err := s.products.Deactivate(ctx, id); err != nil {
		return err
	}

	s.invalidateProduct(id)
	return nil
}

// csv columns, in order; header row required.
var csvHeader = []string{"name", "description", "category", "price_cents", "promo_price_cents", "available_stock"}

// ImportCSV bulk-creates products for a store from CSV content. The whole
// file is validated before anything is written, so a bad row rejects the
// entire import.
func (s *CatalogService) ImportCSV(ctx context.Context, storeID string, r io.Reader) (int, error) {
	if _, err := s.stores.Get(ctx, storeID); err != nil {
		return 0, err
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read CSV header: %v", ErrInvalidInput, err)
	}
	if len(header) != len(csvHeader) {
		return 0, fmt.Errorf("%w: expected header %s", ErrInvalidInput, strings.Join(csvHeader, ","))
	}
	for i, col := range csvHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return 0, fmt.Errorf("%w: expected header %s", ErrInvalidInput, strings.Join(csvHeader, ","))
		}
	}

	var products []*domain.Product
	for row := 2; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, row, err)
		}

		in, err := parseCSVRow(fields)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", row, err)
		}
		if err := in.validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", row, err)
		}

		products = append(products, &domain.Product{
			ID:              uuid.NewString(),
			StoreID:         storeID,
			Name:            strings.TrimSpace(in.Name),
			Description:     in.Description,
			Category:        in.Category,
			PriceCents:      in.PriceCents,
			PromoPriceCents: in.PromoPriceCents,
			AvailableStock:  in.AvailableStock,
			IsActive:        true,
		})
	}

	if len(products) == 0 {
		return 0, fmt.Errorf("%w: no data rows", ErrInvalidInput)
	}

	if err := s.products.InsertMany(ctx, products); err != nil {
		return 0, err
	}

	return len(products), nil
}

func parseCSVRow(fields []string) (ProductInput, error) {
	in := ProductInput{
		Name:        fields[0],
		Description: fields[1],
		Category:    fields[2],
	}

	price, err := strconv.ParseInt(strings.TrimSpace(fields[3]), 10, 64)
	if err != nil {
		return in, fmt.Errorf("%w: price_cents must be an integer", ErrInvalidInput)
	}
	in.PriceCents = price

	if promoField := strings.TrimSpace(fields[4]); promoField != "" {
		promo, err := strconv.ParseInt(promoField, 10, 64)
		if err != nil {
			return in, fmt.Errorf("%w: promo_price_cents must be an integer", ErrInvalidInput)
		}
		in.PromoPriceCents = &promo
	}

	stock, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return in, fmt.Errorf("%w: available_stock must be an integer", ErrInvalidInput)
	}
	in.AvailableStock = stock

	return in, nil
}

func (s *CatalogService) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	return s.stores.Get(ctx, id)
}

func (s *CatalogService) ListStores(ctx context.Context) ([]*domain.Store, error) {
	return s.stores.ListActive(ctx)
}

// DeliverySettings is the merchant dashboard's fulfillment configuration.
type DeliverySettings struct {
	SupportsDelivery bool    `json:"supports_delivery"`
	SupportsPickup   bool    `json:"supports_pickup"`
	DeliveryFeeCents int64   `json:"delivery_fee_cents"`
	DeliveryRadiusKm float64 `json:"delivery_radius_km"`
	MinDeliveryMins  int     `json:"min_delivery_mins"`
	MaxDeliveryMins  int     `json:"max_delivery_mins"`
}

func (s *CatalogService) UpdateDeliverySettings(ctx context.Context, storeID string, settings DeliverySettings) (*domain.Store, error) {
	if !settings.SupportsDelivery && !settings.SupportsPickup {
		return nil, fmt.Errorf("%w: store must support delivery or pickup", ErrInvalidInput)
	}
	if settings.DeliveryFeeCents < 0 {
		return nil, fmt.Errorf("%w: delivery_fee_cents cannot be negative", ErrInvalidInput)
	}

	store, err := s.stores.Get(ctx, storeID)
	if err != nil {
		return nil, err
	}

	store.SupportsDelivery = settings.SupportsDelivery
	store.SupportsPickup = settings.SupportsPickup
	store.DeliveryFeeCents = settings.DeliveryFeeCents
	store.DeliveryRadiusKm = settings.DeliveryRadiusKm
	store.MinDeliveryMins = settings.MinDeliveryMins
	store.MaxDeliveryMins = settings.MaxDeliveryMins

	if err := s.stores.Update(ctx, store); err != nil {
		return nil, err
	}

	// Store data rides inside cached products; drop the affected entries.
	s.invalidateStoreProducts(ctx, storeID)

	return store, nil
}

func (s *CatalogService) invalidateProduct(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id); err != nil {
		log.Printf("product cache invalidate error: %v", err)
	}
}

func (s *CatalogService) invalidateStoreProducts(ctx context.Context, storeID string) {
	products, err := s.products.ListByStore(ctx, storeID)
	if err != nil {
		log.Printf("failed to list products for cache invalidation: %v", err)
		return
	}
	for _, p := range products {
		s.invalidateProduct(p.ID)
	}
}
