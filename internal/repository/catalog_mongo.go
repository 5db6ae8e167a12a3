package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Luffyzera/onde-comprar/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoProductRepository struct {
	collection *mongo.Collection
}

func NewMongoProductRepository(db *mongo.Database) ProductRepository {
	return &mongoProductRepository{
		collection: db.Collection("products"),
	}
}

func (m *mongoProductRepository) Get(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

func (m *mongoProductRepository) ListActive(ctx context.Context) ([]*domain.Product, error) {
	filter := bson.M{"is_active": true}
	return m.find(ctx, filter)
}

func (m *mongoProductRepository) ListByStore(ctx context.Context, storeID string) ([]*domain.Product, error) {
	filter := bson.M{"store_id": storeID}
	return m.find(ctx, filter)
}

func (m *mongoProductRepository) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	filter := bson.M{
		"is_active": true,
		"name": bson.M{
			"$regex": primitive.Regex{Pattern: query, Options: "i"},
		},
	}
	return m.find(ctx, filter)
}

func (m *mongoProductRepository) find(ctx context.Context, filter bson.M) ([]*domain.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []*domain.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	return products, nil
}

func (m *mongoProductRepository) Insert(ctx context.Context, p *domain.Product) error {
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (m *mongoProductRepository) InsertMany(ctx context.Context, ps []*domain.Product) error {
	if len(ps) == 0 {
		return nil
	}

	now := time.Now()
	docs := make([]interface{}, 0, len(ps))
	for _, p := range ps {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now
		docs = append(docs, p)
	}

	if _, err := m.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert products: %w", err)
	}
	return nil
}

func (m *mongoProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"name":              p.Name,
		"description":       p.Description,
		"category":          p.Category,
		"price_cents":       p.PriceCents,
		"promo_price_cents": p.PromoPriceCents,
		"available_stock":   p.AvailableStock,
		"image_urls":        p.ImageURLs,
		"is_active":         p.IsActive,
		"updated_at":        p.UpdatedAt,
	}}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": p.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Deactivate is the soft delete: the product disappears from the storefront
// but existing order snapshots keep referencing it.
func (m *mongoProductRepository) Deactivate(ctx context.Context, id string) error {
	update := bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": time.Now(),
	}}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to deactivate product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) Delete(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) ReserveStock(ctx context.Context, id string, quantity int) error {
	filter := bson.M{
		"_id":             id,
		"available_stock": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{
			"available_stock": -quantity,
			"reserved_stock":  quantity,
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (m *mongoProductRepository) ReleaseStock(ctx context.Context, id string, quantity int) error {
	filter := bson.M{
		"_id":            id,
		"reserved_stock": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{
			"available_stock": quantity,
			"reserved_stock":  -quantity,
		},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) ConsumeStock(ctx context.Context, id string, quantity int) error {
	filter := bson.M{
		"_id":            id,
		"reserved_stock": bson.M{"$gte": quantity},
	}
	update := bson.M{
		"$inc": bson.M{"reserved_stock": -quantity},
		"$set": bson.M{"updated_at": time.Now()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to consume stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoProductRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "store_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

type mongoStoreRepository struct {
	collection *mongo.Collection
}

func NewMongoStoreRepository(db *mongo.Database) StoreRepository {
	return &mongoStoreRepository{
		collection: db.Collection("stores"),
	}
}

func (m *mongoStoreRepository) Get(ctx context.Context, id string) (*domain.Store, error) {
	var s domain.Store

	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("failed to get store: %w", err)
	}

	return &s, nil
}

func (m *mongoStoreRepository) ListActive(ctx context.Context) ([]*domain.Store, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})

	cursor, err := m.collection.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query stores: %w", err)
	}
	defer cursor.Close(ctx)

	var stores []*domain.Store
	if err := cursor.All(ctx, &stores); err != nil {
		return nil, fmt.Errorf("failed to decode stores: %w", err)
	}

	return stores, nil
}

func (m *mongoStoreRepository) Insert(ctx context.Context, s *domain.Store) error {
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	if _, err := m.collection.InsertOne(ctx, s); err != nil {
		return fmt.Errorf("failed to insert store: %w", err)
	}
	return nil
}

func (m *mongoStoreRepository) Update(ctx context.Context, s *domain.Store) error {
	s.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"name":               s.Name,
		"description":        s.Description,
		"phone":              s.Phone,
		"whatsapp":           s.WhatsApp,
		"email":              s.Email,
		"address":            s.Address,
		"supports_delivery":  s.SupportsDelivery,
		"supports_pickup":    s.SupportsPickup,
		"delivery_fee_cents": s.DeliveryFeeCents,
		"delivery_radius_km": s.DeliveryRadiusKm,
		"min_delivery_mins":  s.MinDeliveryMins,
		"max_delivery_mins":  s.MaxDeliveryMins,
		"is_active":          s.IsActive,
		"updated_at":         s.UpdatedAt,
	}}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": s.ID}, update)
	if err != nil {
		return fmt.Errorf("failed to update store: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrStoreNotFound
	}
	return nil
}
