package entity

import "time"

const (
	OfferStatusPending   = "pending"
	OfferStatusAccepted  = "accepted"
	OfferStatusRejected  = "rejected"
	OfferStatusCountered = "countered"
)

var offerTransitions = map[string][]string{
	OfferStatusPending: {OfferStatusAccepted, OfferStatusRejected, OfferStatusCountered},
}

// Offer is one round of a negotiation on a listing. Amount is the proposed
// price per kg; OriginalPrice is the listing price the negotiation started
// from and is carried unchanged through counters.
type Offer struct {
	ID             string     `json:"id" firestore:"id"`
	ConversationID string     `json:"conversation_id" firestore:"conversationId"`
	MessageID      string     `json:"message_id,omitempty" firestore:"messageId,omitempty"`
	ListingID      string     `json:"listing_id" firestore:"listingId"`
	ListingTitle   string     `json:"listing_title,omitempty" firestore:"listingTitle,omitempty"`
	BuyerID        string     `json:"buyer_id" firestore:"buyerId"`
	SellerID       string     `json:"seller_id" firestore:"sellerId"`
	SenderID       string     `json:"sender_id" firestore:"senderId"`
	RecipientID    string     `json:"recipient_id" firestore:"recipientId"`
	Amount         float64    `json:"amount" firestore:"amount"`
	OriginalPrice  float64    `json:"original_price" firestore:"originalPrice"`
	QuantityKg     int        `json:"quantity_kg" firestore:"quantityKg"`
	Status         string     `json:"status" firestore:"status"`
	ParentOfferID  string     `json:"parent_offer_id,omitempty" firestore:"parentOfferId,omitempty"`
	TransactionID  string     `json:"transaction_id,omitempty" firestore:"transactionId,omitempty"`
	RespondedBy    string     `json:"responded_by,omitempty" firestore:"respondedBy,omitempty"`
	RespondedAt    *time.Time `json:"responded_at,omitempty" firestore:"respondedAt,omitempty"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updated_at" firestore:"updatedAt"`
}

func (o *Offer) Total() float64 {
	return o.Amount * float64(o.QuantityKg)
}

func CanTransitionOffer(from, to string) bool {
	for _, s := range offerTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
