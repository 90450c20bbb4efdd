package entity

import "time"

// MarketPrice is a point-in-time reference price for a crop in a region.
type MarketPrice struct {
	ID         string    `json:"id" firestore:"id"`
	Crop       string    `json:"crop" firestore:"crop"`
	Region     string    `json:"region" firestore:"region"`
	PricePerKg float64   `json:"price_per_kg" firestore:"pricePerKg"`
	Source     string    `json:"source,omitempty" firestore:"source,omitempty"`
	RecordedAt time.Time `json:"recorded_at" firestore:"recordedAt"`
}
