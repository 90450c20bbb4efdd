package entity

import "time"

const (
	SagaStatusRunning     = "running"
	SagaStatusCompleted   = "completed"
	SagaStatusCompensated = "compensated"
	SagaStatusFailed      = "failed"
	// SagaStatusDeferred marks an accept that stands while its announce or
	// competitor resolution still has to run.
	SagaStatusDeferred = "deferred"
)

// AcceptSaga tracks one accept of one offer across the listing store and the
// document store. It is keyed by offer id, so the offer id doubles as the
// idempotency key for every step.
type AcceptSaga struct {
	ID                  string    `json:"id" firestore:"id"`
	OfferID             string    `json:"offer_id" firestore:"offerId"`
	ListingID           string    `json:"listing_id" firestore:"listingId"`
	QuantityKg          int       `json:"quantity_kg" firestore:"quantityKg"`
	AcceptedBy          string    `json:"accepted_by" firestore:"acceptedBy"`
	Status              string    `json:"status" firestore:"status"`
	StockDeducted       bool      `json:"stock_deducted" firestore:"stockDeducted"`
	OfferAccepted       bool      `json:"offer_accepted" firestore:"offerAccepted"`
	TransactionAccepted bool      `json:"transaction_accepted" firestore:"transactionAccepted"`
	Announced           bool      `json:"announced" firestore:"announced"`
	CompetitorsResolved bool      `json:"competitors_resolved" firestore:"competitorsResolved"`
	NotifiedBuyers      []string  `json:"notified_buyers,omitempty" firestore:"notifiedBuyers,omitempty"`
	LastError           string    `json:"last_error,omitempty" firestore:"lastError,omitempty"`
	LeaseUntil          time.Time `json:"lease_until" firestore:"leaseUntil"`
	CreatedAt           time.Time `json:"created_at" firestore:"createdAt"`
	UpdatedAt           time.Time `json:"updated_at" firestore:"updatedAt"`
}

func (s *AcceptSaga) Done() bool {
	return s.Status == SagaStatusCompleted
}

// Claimable reports whether a caller may (re)start the saga at now. A running
// saga is only claimable once its holder's lease has lapsed.
func (s *AcceptSaga) Claimable(now time.Time) bool {
	switch s.Status {
	case SagaStatusCompleted:
		return false
	case SagaStatusRunning:
		return now.After(s.LeaseUntil)
	}
	return true
}
