package entity

import "time"

const (
	ListingStatusAvailable = "available"
	ListingStatusSoldOut   = "sold_out"
)

type GeoPoint struct {
	Lat float64 `json:"lat" firestore:"lat"`
	Lng float64 `json:"lng" firestore:"lng"`
}

type Location struct {
	Address string    `json:"address,omitempty" firestore:"address,omitempty"`
	Region  string    `json:"region,omitempty" firestore:"region,omitempty"`
	Point   *GeoPoint `json:"point,omitempty" firestore:"point,omitempty"`
}

// Listing is a posted crop. QuantityKg and Status move together: the listing
// is sold_out exactly when no stock is left.
type Listing struct {
	ID          string    `json:"id" firestore:"id"`
	OwnerID     string    `json:"owner_id" firestore:"ownerId"`
	Title       string    `json:"title" firestore:"title"`
	Description string    `json:"description,omitempty" firestore:"description,omitempty"`
	Category    string    `json:"category,omitempty" firestore:"category,omitempty"`
	PricePerKg  float64   `json:"price_per_kg" firestore:"pricePerKg"`
	QuantityKg  int       `json:"quantity_kg" firestore:"quantityKg"`
	Status      string    `json:"status" firestore:"status"`
	Location    Location  `json:"location" firestore:"location"`
	CreatedAt   time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time `json:"updated_at" firestore:"updatedAt"`
}

// SetQuantity stores a new stock level and derives the status from it.
func (l *Listing) SetQuantity(quantityKg int) {
	if quantityKg < 0 {
		quantityKg = 0
	}
	l.QuantityKg = quantityKg
	if quantityKg == 0 {
		l.Status = ListingStatusSoldOut
	} else {
		l.Status = ListingStatusAvailable
	}
}

// CanSupply reports whether qty kg can be taken from the listing right now.
func (l *Listing) CanSupply(qty int) bool {
	return l.Status != ListingStatusSoldOut && qty > 0 && l.QuantityKg >= qty
}

type ListingFilter struct {
	OwnerID  string
	Status   string
	Category string
	Region   string
}
