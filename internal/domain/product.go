package domain

import "time"

type Address struct {
	Street     string  `bson:"street" json:"street"`
	Number     string  `bson:"number" json:"number"`
	District   string  `bson:"district" json:"district"`
	City       string  `bson:"city" json:"city"`
	State      string  `bson:"state" json:"state"`
	PostalCode string  `bson:"postal_code" json:"postal_code"`
	Latitude   float64 `bson:"latitude" json:"latitude"`
	Longitude  float64 `bson:"longitude" json:"longitude"`
}

type Store struct {
	ID               string    `bson:"_id,omitempty" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Description      string    `bson:"description,omitempty" json:"description,omitempty"`
	Phone            string    `bson:"phone" json:"phone"`
	WhatsApp         string    `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	Email            string    `bson:"email" json:"email"`
	Address          Address   `bson:"address" json:"address"`
	SupportsDelivery bool      `bson:"supports_delivery" json:"supports_delivery"`
	SupportsPickup   bool      `bson:"supports_pickup" json:"supports_pickup"`
	DeliveryFeeCents int64     `bson:"delivery_fee_cents" json:"delivery_fee_cents"`
	DeliveryRadiusKm float64   `bson:"delivery_radius_km" json:"delivery_radius_km"`
	MinDeliveryMins  int       `bson:"min_delivery_mins" json:"min_delivery_mins"`
	MaxDeliveryMins  int       `bson:"max_delivery_mins" json:"max_delivery_mins"`
	IsActive         bool      `bson:"is_active" json:"is_active"`
	CreatedAt        time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time `bson:"updated_at" json:"updated_at"`
}

// Product is the catalog record the cart engine reads. All monetary values
// are integer cents. PromoPriceCents, when set, must be lower than PriceCents;
// the catalog service validates that at the write boundary.
type Product struct {
	ID              string    `bson:"_id,omitempty" json:"id"`
	StoreID         string    `bson:"store_id" json:"store_id"`
	Name            string    `bson:"name" json:"name"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	Category        string    `bson:"category,omitempty" json:"category,omitempty"`
	PriceCents      int64     `bson:"price_cents" json:"price_cents"`
	PromoPriceCents *int64    `bson:"promo_price_cents,omitempty" json:"promo_price_cents,omitempty"`
	AvailableStock  int       `bson:"available_stock" json:"available_stock"`
	ReservedStock   int       `bson:"reserved_stock" json:"reserved_stock"`
	ImageURLs       []string  `bson:"image_urls,omitempty" json:"image_urls,omitempty"`
	IsActive        bool      `bson:"is_active" json:"is_active"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`

	// Store is resolved from the stores collection at read time and is not
	// persisted on the product document.
	Store Store `bson:"-" json:"store"`
}

// EffectiveUnitPriceCents returns the promotional price when present,
// otherwise the base price.
func (p Product) EffectiveUnitPriceCents() int64 {
	if p.PromoPriceCents != nil {
		return *p.PromoPriceCents
	}
	return p.PriceCents
}
