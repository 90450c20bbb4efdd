package entity

import "time"

const (
	TransactionStatusPending   = "pending"
	TransactionStatusAccepted  = "accepted"
	TransactionStatusRejected  = "rejected"
	TransactionStatusPaid      = "paid"
	TransactionStatusCompleted = "completed"

	TransactionTypeOffer = "offer"
)

var transactionTransitions = map[string][]string{
	TransactionStatusPending:  {TransactionStatusAccepted, TransactionStatusRejected},
	TransactionStatusAccepted: {TransactionStatusPaid},
	TransactionStatusPaid:     {TransactionStatusCompleted},
}

// Transaction is the durable commercial record of a negotiation. One
// transaction follows a negotiation through all of its counter rounds.
type Transaction struct {
	ID             string     `json:"id" firestore:"id"`
	BuyerID        string     `json:"buyer_id" firestore:"buyerId"`
	SellerID       string     `json:"seller_id" firestore:"sellerId"`
	CropID         string     `json:"crop_id" firestore:"cropId"`
	CropTitle      string     `json:"crop_title" firestore:"cropTitle"`
	QuantityKg     int        `json:"quantity_kg" firestore:"quantity_kg"`
	PriceTotal     float64    `json:"price_total" firestore:"price_total"`
	Status         string     `json:"status" firestore:"status"`
	Type           string     `json:"type" firestore:"type"`
	OfferID        string     `json:"offer_id,omitempty" firestore:"offerId,omitempty"`
	ConversationID string     `json:"conversation_id,omitempty" firestore:"conversationId,omitempty"`
	CreatedAt      time.Time  `json:"created_at" firestore:"createdAt"`
	UpdatedAt      time.Time  `json:"updated_at" firestore:"updatedAt"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty" firestore:"acceptedAt,omitempty"`
	RejectedAt     *time.Time `json:"rejected_at,omitempty" firestore:"rejectedAt,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty" firestore:"paidAt,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" firestore:"completedAt,omitempty"`
}

func CanTransitionTransaction(from, to string) bool {
	for _, s := range transactionTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// MarkStatus stamps the matching timestamp for the new status.
func (t *Transaction) MarkStatus(status string, at time.Time) {
	t.Status = status
	t.UpdatedAt = at
	switch status {
	case TransactionStatusAccepted:
		t.AcceptedAt = &at
	case TransactionStatusRejected:
		t.RejectedAt = &at
	case TransactionStatusPaid:
		t.PaidAt = &at
	case TransactionStatusCompleted:
		t.CompletedAt = &at
	}
}
