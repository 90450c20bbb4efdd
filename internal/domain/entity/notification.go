package entity

import "time"

const (
	NotificationOfferReceived  = "offer_received"
	NotificationOfferAccepted  = "offer_accepted"
	NotificationOfferRejected  = "offer_rejected"
	NotificationOfferCountered = "offer_countered"
	NotificationListingSoldOut = "listing_sold_out"
	NotificationPaymentMarked  = "payment_marked"
	NotificationCompleted      = "transaction_completed"
)

type Notification struct {
	ID        string                 `json:"id" firestore:"id"`
	UserID    string                 `json:"user_id" firestore:"userId"`
	Type      string                 `json:"type" firestore:"type"`
	Title     string                 `json:"title" firestore:"title"`
	Body      string                 `json:"body" firestore:"body"`
	Read      bool                   `json:"read" firestore:"read"`
	Metadata  map[string]interface{} `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at" firestore:"createdAt"`
}
