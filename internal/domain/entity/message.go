package entity

import "time"

const (
	MessageTypeText   = "text"
	MessageTypeOffer  = "offer"
	MessageTypeSystem = "system"

	SystemSenderID = "system"
)

// Message is one entry of a conversation transcript. Offer messages mirror
// the offer's status for display; the offers collection owns that state.
type Message struct {
	ID             string                 `json:"id" firestore:"id"`
	ConversationID string                 `json:"conversation_id" firestore:"conversationId"`
	SenderID       string                 `json:"sender_id" firestore:"senderId"`
	Text           string                 `json:"text" firestore:"text"`
	Type           string                 `json:"type" firestore:"type"`
	IsOffer        bool                   `json:"is_offer" firestore:"isOffer"`
	OfferID        string                 `json:"offer_id,omitempty" firestore:"offerId,omitempty"`
	OfferAmount    float64                `json:"offer_amount,omitempty" firestore:"offerAmount,omitempty"`
	OfferStatus    string                 `json:"offer_status,omitempty" firestore:"offerStatus,omitempty"`
	CropID         string                 `json:"crop_id,omitempty" firestore:"cropId,omitempty"`
	TransactionID  string                 `json:"transaction_id,omitempty" firestore:"transactionId,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" firestore:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at" firestore:"createdAt"`
}
