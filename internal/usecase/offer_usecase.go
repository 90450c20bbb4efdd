package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/infrastructure/ratelimit"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
)

const (
	stepLoadOffer         = "load_offer"
	stepDeductStock       = "deduct_stock"
	stepAcceptOffer       = "accept_offer"
	stepAcceptTransaction = "accept_transaction"
	stepAnnounce          = "announce"
	stepResolveCompeting  = "resolve_competing"

	defaultSagaLease = 30 * time.Second
)

type OfferUseCase struct {
	offerRepo       repository.OfferRepository
	sagaRepo        repository.OfferSagaRepository
	transactionRepo repository.TransactionRepository
	listings        repository.StockStore
	inventory       *InventoryUseCase
	chat            *ChatUseCase
	notifications   *NotificationUseCase
	pusher          RealtimePusher
	rateLimiter     RateLimiter
	sagaLease       time.Duration
	now             func() time.Time
}

func NewOfferUseCase(
	offerRepo repository.OfferRepository,
	sagaRepo repository.OfferSagaRepository,
	transactionRepo repository.TransactionRepository,
	listings repository.StockStore,
	inventory *InventoryUseCase,
	chat *ChatUseCase,
	notifications *NotificationUseCase,
	pusher RealtimePusher,
	rateLimiter RateLimiter,
	sagaLease time.Duration,
) *OfferUseCase {
	if pusher == nil {
		pusher = noopPusher{}
	}
	if rateLimiter == nil {
		rateLimiter = allowAll{}
	}
	if sagaLease <= 0 {
		sagaLease = defaultSagaLease
	}
	return &OfferUseCase{
		offerRepo:       offerRepo,
		sagaRepo:        sagaRepo,
		transactionRepo: transactionRepo,
		listings:        listings,
		inventory:       inventory,
		chat:            chat,
		notifications:   notifications,
		pusher:          pusher,
		rateLimiter:     rateLimiter,
		sagaLease:       sagaLease,
		now:             time.Now,
	}
}

type SendOfferInput struct {
	ListingID  string  `json:"listing_id" validate:"required"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	QuantityKg int     `json:"quantity_kg" validate:"gt=0"`
}

type CounterOfferInput struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type AcceptResult struct {
	Offer       *entity.Offer       `json:"offer"`
	Transaction *entity.Transaction `json:"transaction,omitempty"`
	Listing     *entity.Listing     `json:"listing,omitempty"`
}

// Send opens a negotiation on a listing: a pending offer, the pending
// transaction that follows it, and the offer message in the conversation.
func (uc *OfferUseCase) Send(ctx context.Context, sess session.Session, conversationID string, input SendOfferInput) (*entity.Offer, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, errors.BadRequest("Offer amount must be greater than zero", nil)
	}
	if input.QuantityKg <= 0 {
		return nil, errors.BadRequest("Quantity must be greater than zero", nil)
	}
	if err := checkRate(uc.rateLimiter, sess.UserID, ratelimit.ActionSendOffer); err != nil {
		return nil, err
	}

	conversation, err := uc.chat.GetParticipantConversation(ctx, sess, conversationID)
	if err != nil {
		return nil, err
	}

	listing, err := uc.listings.GetByID(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID == sess.UserID {
		return nil, errors.BadRequest("You cannot make an offer on your own listing", nil)
	}
	if !conversation.HasParticipant(listing.OwnerID) {
		return nil, errors.BadRequest("The listing owner is not part of this conversation", nil)
	}

	offer := &entity.Offer{
		ID:             uuid.New().String(),
		ConversationID: conversation.ID,
		MessageID:      ulid.Make().String(),
		ListingID:      listing.ID,
		ListingTitle:   listing.Title,
		BuyerID:        sess.UserID,
		SellerID:       listing.OwnerID,
		SenderID:       sess.UserID,
		RecipientID:    listing.OwnerID,
		Amount:         input.Amount,
		OriginalPrice:  listing.PricePerKg,
		QuantityKg:     input.QuantityKg,
		Status:         entity.OfferStatusPending,
		TransactionID:  uuid.New().String(),
	}

	transaction := &entity.Transaction{
		ID:             offer.TransactionID,
		BuyerID:        offer.BuyerID,
		SellerID:       offer.SellerID,
		CropID:         listing.ID,
		CropTitle:      listing.Title,
		QuantityKg:     offer.QuantityKg,
		PriceTotal:     offer.Total(),
		Status:         entity.TransactionStatusPending,
		Type:           entity.TransactionTypeOffer,
		OfferID:        offer.ID,
		ConversationID: conversation.ID,
	}
	if err := uc.transactionRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}

	if err := uc.offerRepo.Create(ctx, offer); err != nil {
		// a pending transaction without its offer would be swept up by
		// competing-offer resolution later
		if _, rerr := uc.transactionRepo.Transition(ctx, transaction.ID, entity.TransactionStatusPending, entity.TransactionStatusRejected, nil); rerr != nil {
			logger.Error("Failed to void transaction %s after offer create failed: %v", transaction.ID, rerr)
		}
		return nil, err
	}

	if err := uc.chat.PostMessage(ctx, conversation, offerMessage(offer)); err != nil {
		logger.Error("Offer %s created but its chat message failed: %v", offer.ID, err)
	}

	uc.pushOfferUpdate(offer, "")
	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID: offer.RecipientID,
		Type:   entity.NotificationOfferReceived,
		Title:  "New offer received",
		Body: fmt.Sprintf("%s offered %s/kg for %d kg of %s",
			uc.chat.displayName(ctx, offer.SenderID), formatRupiah(offer.Amount), offer.QuantityKg, offer.ListingTitle),
		Metadata: offerMetadata(offer),
	})

	logger.WithFields(logger.Fields{
		"offer_id":    offer.ID,
		"listing_id":  offer.ListingID,
		"buyer_id":    offer.BuyerID,
		"quantity_kg": offer.QuantityKg,
	}).Info("Offer sent")

	return offer, nil
}

// Accept runs the accept saga for an offer. Only the recipient may accept.
// Calling it again after success returns the same result; calling it after a
// partial failure resumes at the first incomplete step.
func (uc *OfferUseCase) Accept(ctx context.Context, sess session.Session, offerID string) (*AcceptResult, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.RecipientID != sess.UserID {
		return nil, errors.Forbidden("Only the offer recipient can accept this offer", nil)
	}
	if offer.Status != entity.OfferStatusAccepted && !entity.CanTransitionOffer(offer.Status, entity.OfferStatusAccepted) {
		return nil, errors.InvalidState(fmt.Sprintf("Offer is already %s", offer.Status))
	}

	unlock, err := uc.inventory.Lock(ctx, offer.ListingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	uc.finishDeferred(ctx, offer.ListingID)

	saga, err := uc.sagaRepo.Claim(ctx, &entity.AcceptSaga{
		ID:         offer.ID,
		OfferID:    offer.ID,
		ListingID:  offer.ListingID,
		QuantityKg: offer.QuantityKg,
		AcceptedBy: sess.UserID,
		LeaseUntil: uc.now().Add(uc.sagaLease),
	})
	if err != nil {
		return nil, err
	}
	if saga.Done() {
		return uc.acceptResult(ctx, offer.ID, nil)
	}

	return uc.runAcceptSaga(ctx, saga)
}

func (uc *OfferUseCase) runAcceptSaga(ctx context.Context, saga *entity.AcceptSaga) (*AcceptResult, error) {
	offer, err := uc.offerRepo.GetByID(ctx, saga.OfferID)
	if err != nil {
		uc.failSaga(ctx, saga, stepLoadOffer, err)
		return nil, err
	}

	switch offer.Status {
	case entity.OfferStatusPending:
	case entity.OfferStatusAccepted:
		// the offer only reaches accepted after stock moved
		saga.StockDeducted = true
		saga.OfferAccepted = true
	default:
		err := errors.InvalidState(fmt.Sprintf("Offer is already %s", offer.Status))
		uc.failSaga(ctx, saga, stepLoadOffer, err)
		return nil, err
	}

	var listing *entity.Listing
	if !saga.StockDeducted {
		listing, err = uc.inventory.Reserve(ctx, offer.ListingID, offer.QuantityKg)
		if err != nil {
			uc.failSaga(ctx, saga, stepDeductStock, err)
			return nil, err
		}
		saga.StockDeducted = true
		if err := uc.sagaRepo.Save(ctx, saga); err != nil {
			uc.compensate(ctx, saga, offer, stepDeductStock, err)
			return nil, err
		}
	}

	// Stock has moved. From here the caller going away must not leave the
	// saga half applied.
	ctx = detached(ctx)

	if !saga.OfferAccepted {
		respondedAt := uc.now()
		updated, err := uc.offerRepo.Transition(ctx, offer.ID, entity.OfferStatusPending, entity.OfferStatusAccepted, func(o *entity.Offer) {
			o.RespondedBy = saga.AcceptedBy
			o.RespondedAt = &respondedAt
		})
		if err != nil {
			uc.compensate(ctx, saga, offer, stepAcceptOffer, err)
			return nil, err
		}
		offer = updated
		saga.OfferAccepted = true
		uc.saveSaga(ctx, saga)
	}

	var transaction *entity.Transaction
	if !saga.TransactionAccepted {
		transaction, err = uc.acceptTransaction(ctx, offer)
		if err != nil {
			uc.compensate(ctx, saga, offer, stepAcceptTransaction, err)
			return nil, err
		}
		saga.TransactionAccepted = true
		uc.saveSaga(ctx, saga)
	}
	uc.chat.mirrorOfferStatus(ctx, offer)

	if !saga.Announced {
		if err := uc.announceAcceptance(ctx, offer, listing); err != nil {
			uc.deferSaga(ctx, saga, stepAnnounce, err)
			return uc.acceptResult(ctx, offer.ID, transaction)
		}
		saga.Announced = true
		uc.saveSaga(ctx, saga)
	}

	if !saga.CompetitorsResolved {
		if err := uc.resolveCompetingOffers(ctx, saga, offer); err != nil {
			uc.deferSaga(ctx, saga, stepResolveCompeting, err)
			return uc.acceptResult(ctx, offer.ID, transaction)
		}
		saga.CompetitorsResolved = true
	}

	saga.Status = entity.SagaStatusCompleted
	saga.LastError = ""
	uc.saveSaga(ctx, saga)

	logger.WithFields(logger.Fields{
		"offer_id":    offer.ID,
		"listing_id":  offer.ListingID,
		"buyer_id":    offer.BuyerID,
		"quantity_kg": offer.QuantityKg,
	}).Info("Offer accepted")

	return uc.acceptResult(ctx, offer.ID, transaction)
}

// acceptTransaction flips the negotiation's transaction to accepted, or
// creates it accepted when it is missing.
func (uc *OfferUseCase) acceptTransaction(ctx context.Context, offer *entity.Offer) (*entity.Transaction, error) {
	if offer.TransactionID != "" {
		transaction, err := uc.transactionRepo.Transition(ctx, offer.TransactionID,
			entity.TransactionStatusPending, entity.TransactionStatusAccepted,
			func(t *entity.Transaction) {
				t.OfferID = offer.ID
				t.QuantityKg = offer.QuantityKg
				t.PriceTotal = offer.Total()
			})
		switch {
		case err == nil:
			return transaction, nil
		case errors.Is(err, errors.CodeInvalidState):
			current, getErr := uc.transactionRepo.GetByID(ctx, offer.TransactionID)
			if getErr == nil && current.Status == entity.TransactionStatusAccepted && current.OfferID == offer.ID {
				return current, nil
			}
			return nil, err
		case !errors.Is(err, errors.CodeNotFound):
			return nil, err
		}
	}

	transaction := &entity.Transaction{
		ID:             offer.TransactionID,
		BuyerID:        offer.BuyerID,
		SellerID:       offer.SellerID,
		CropID:         offer.ListingID,
		CropTitle:      offer.ListingTitle,
		QuantityKg:     offer.QuantityKg,
		PriceTotal:     offer.Total(),
		Type:           entity.TransactionTypeOffer,
		OfferID:        offer.ID,
		ConversationID: offer.ConversationID,
	}
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}
	transaction.MarkStatus(entity.TransactionStatusAccepted, uc.now())
	if err := uc.transactionRepo.Create(ctx, transaction); err != nil {
		return nil, err
	}

	if offer.TransactionID == "" {
		offer.TransactionID = transaction.ID
		if err := uc.offerRepo.Update(ctx, offer); err != nil {
			logger.Warn("Failed to link offer %s to transaction %s: %v", offer.ID, transaction.ID, err)
		}
	}
	return transaction, nil
}

func (uc *OfferUseCase) announceAcceptance(ctx context.Context, offer *entity.Offer, listing *entity.Listing) error {
	text := fmt.Sprintf("%s accepted the offer: %s/kg for %d kg of %s (total %s).",
		uc.chat.displayName(ctx, offer.RecipientID),
		formatRupiah(offer.Amount), offer.QuantityKg, offer.ListingTitle, formatRupiah(offer.Total()))

	metadata := offerMetadata(offer)
	metadata["event"] = entity.NotificationOfferAccepted

	if _, err := uc.chat.SendSystemMessage(ctx, offer.ConversationID, text, metadata); err != nil {
		return err
	}

	uc.pushOfferUpdate(offer, "")
	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID:   offer.SenderID,
		Type:     entity.NotificationOfferAccepted,
		Title:    "Offer accepted",
		Body:     text,
		Metadata: offerMetadata(offer),
	})

	if listing == nil {
		if current, err := uc.listings.GetByID(ctx, offer.ListingID); err == nil {
			listing = current
		}
	}
	if listing != nil && listing.Status == entity.ListingStatusSoldOut {
		uc.notifications.notifyQuietly(ctx, NotifyInput{
			UserID:   offer.SellerID,
			Type:     entity.NotificationListingSoldOut,
			Title:    "Listing sold out",
			Body:     fmt.Sprintf("%s is now sold out", listing.Title),
			Metadata: map[string]interface{}{"listing_id": listing.ID},
		})
	}
	return nil
}

// resolveCompetingOffers rejects every other pending transaction on the
// listing. Each distinct losing buyer hears about it exactly once, in their
// own thread with the seller. The buyer is told before their transaction is
// flipped, so a retry after a failed notice still finds the transaction
// pending.
func (uc *OfferUseCase) resolveCompetingOffers(ctx context.Context, saga *entity.AcceptSaga, winner *entity.Offer) error {
	pending, err := uc.transactionRepo.ListByListing(ctx, winner.ListingID, entity.TransactionStatusPending)
	if err != nil {
		return err
	}

	notified := make(map[string]struct{}, len(saga.NotifiedBuyers))
	for _, buyerID := range saga.NotifiedBuyers {
		notified[buyerID] = struct{}{}
	}

	var firstErr error
	for _, transaction := range pending {
		if transaction.ID == winner.TransactionID || transaction.BuyerID == winner.BuyerID {
			continue
		}

		if _, done := notified[transaction.BuyerID]; !done {
			if err := uc.notifyLosingBuyer(ctx, winner, transaction); err != nil {
				logger.LogSagaError(saga.OfferID, stepResolveCompeting, err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			notified[transaction.BuyerID] = struct{}{}
			saga.NotifiedBuyers = append(saga.NotifiedBuyers, transaction.BuyerID)
			uc.saveSaga(ctx, saga)
		}

		if err := uc.rejectCompetitor(ctx, transaction); err != nil {
			logger.LogSagaError(saga.OfferID, stepResolveCompeting, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

func (uc *OfferUseCase) rejectCompetitor(ctx context.Context, transaction *entity.Transaction) error {
	_, err := uc.transactionRepo.Transition(ctx, transaction.ID,
		entity.TransactionStatusPending, entity.TransactionStatusRejected, nil)
	if err != nil && !errors.Is(err, errors.CodeInvalidState) {
		return err
	}

	if transaction.OfferID == "" {
		return nil
	}

	respondedAt := uc.now()
	offer, err := uc.offerRepo.Transition(ctx, transaction.OfferID,
		entity.OfferStatusPending, entity.OfferStatusRejected,
		func(o *entity.Offer) {
			o.RespondedBy = entity.SystemSenderID
			o.RespondedAt = &respondedAt
		})
	if err != nil {
		if errors.Is(err, errors.CodeInvalidState) || errors.Is(err, errors.CodeNotFound) {
			return nil
		}
		return err
	}

	uc.chat.mirrorOfferStatus(ctx, offer)
	uc.pushOfferUpdate(offer, "")
	return nil
}

func (uc *OfferUseCase) notifyLosingBuyer(ctx context.Context, winner *entity.Offer, transaction *entity.Transaction) error {
	conversation, err := uc.chat.EnsureConversation(ctx, transaction.BuyerID, transaction.SellerID, transaction.CropID)
	if err != nil {
		return err
	}

	title := transaction.CropTitle
	if title == "" {
		title = winner.ListingTitle
	}
	text := fmt.Sprintf("The seller accepted another offer on %s, so your pending offer was declined automatically.", title)

	metadata := map[string]interface{}{
		"event":          "offer_auto_rejected",
		"listing_id":     transaction.CropID,
		"transaction_id": transaction.ID,
	}
	if _, err := uc.chat.SendSystemMessage(ctx, conversation.ID, text, metadata); err != nil {
		return err
	}

	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID:   transaction.BuyerID,
		Type:     entity.NotificationOfferRejected,
		Title:    "Offer declined",
		Body:     text,
		Metadata: metadata,
	})
	return nil
}

// compensate undoes the steps already applied, newest first. If undoing the
// offer fails the stock stays deducted and the saga is left failed, so the
// next Accept resumes instead of double-restoring.
func (uc *OfferUseCase) compensate(ctx context.Context, saga *entity.AcceptSaga, offer *entity.Offer, step string, cause error) {
	logger.LogSagaError(saga.OfferID, step, cause)

	if saga.OfferAccepted {
		_, err := uc.offerRepo.Transition(ctx, offer.ID, entity.OfferStatusAccepted, entity.OfferStatusPending, func(o *entity.Offer) {
			o.RespondedBy = ""
			o.RespondedAt = nil
		})
		if err != nil {
			logger.LogSagaError(saga.OfferID, "compensate_offer", err)
			uc.failSaga(ctx, saga, step, cause)
			return
		}
		saga.OfferAccepted = false
	}

	if saga.StockDeducted {
		if _, err := uc.inventory.Release(ctx, saga.ListingID, saga.QuantityKg); err != nil {
			logger.LogSagaError(saga.OfferID, "compensate_stock", err)
			uc.failSaga(ctx, saga, step, cause)
			return
		}
		saga.StockDeducted = false
	}

	saga.Status = entity.SagaStatusCompensated
	saga.LastError = fmt.Sprintf("%s: %v", step, cause)
	uc.saveSaga(ctx, saga)
}

func (uc *OfferUseCase) failSaga(ctx context.Context, saga *entity.AcceptSaga, step string, cause error) {
	if !errors.Is(cause, errors.CodeStockUnavailable) {
		logger.LogSagaError(saga.OfferID, step, cause)
	}
	saga.Status = entity.SagaStatusFailed
	saga.LastError = fmt.Sprintf("%s: %v", step, cause)
	uc.saveSaga(ctx, saga)
}

// deferSaga records a failed follow-up step. The accept stands; the next
// Accept on the listing or the deferred sweep picks the step up again.
func (uc *OfferUseCase) deferSaga(ctx context.Context, saga *entity.AcceptSaga, step string, cause error) {
	logger.LogSagaError(saga.OfferID, step, cause)
	saga.Status = entity.SagaStatusDeferred
	saga.LastError = fmt.Sprintf("%s: %v", step, cause)
	uc.saveSaga(ctx, saga)
}

// finishDeferred resumes deferred accepts on listingID. The caller holds the
// listing lock.
func (uc *OfferUseCase) finishDeferred(ctx context.Context, listingID string) {
	sagas, err := uc.sagaRepo.ListDeferred(ctx, listingID)
	if err != nil {
		logger.Warn("Failed to list deferred accepts on listing %s: %v", listingID, err)
		return
	}

	for _, deferred := range sagas {
		saga, err := uc.sagaRepo.Claim(ctx, &entity.AcceptSaga{
			ID:         deferred.ID,
			OfferID:    deferred.OfferID,
			ListingID:  deferred.ListingID,
			QuantityKg: deferred.QuantityKg,
			AcceptedBy: deferred.AcceptedBy,
			LeaseUntil: uc.now().Add(uc.sagaLease),
		})
		if err != nil || saga.Done() {
			continue
		}
		if _, err := uc.runAcceptSaga(ctx, saga); err != nil {
			logger.LogSagaError(saga.OfferID, "resume_deferred", err)
		}
	}
}

// SweepDeferred finishes every deferred accept, one listing at a time.
func (uc *OfferUseCase) SweepDeferred(ctx context.Context) {
	sagas, err := uc.sagaRepo.ListDeferred(ctx, "")
	if err != nil {
		logger.Warn("Failed to list deferred accepts: %v", err)
		return
	}

	seen := make(map[string]bool)
	for _, saga := range sagas {
		if seen[saga.ListingID] {
			continue
		}
		seen[saga.ListingID] = true

		unlock, err := uc.inventory.Lock(ctx, saga.ListingID)
		if err != nil {
			return
		}
		uc.finishDeferred(ctx, saga.ListingID)
		unlock()
	}
}

// StartDeferredSweep runs SweepDeferred every interval until ctx ends.
func (uc *OfferUseCase) StartDeferredSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				uc.SweepDeferred(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (uc *OfferUseCase) saveSaga(ctx context.Context, saga *entity.AcceptSaga) {
	if err := uc.sagaRepo.Save(ctx, saga); err != nil {
		logger.Error("Failed to save saga for offer %s: %v", saga.OfferID, err)
	}
}

func (uc *OfferUseCase) acceptResult(ctx context.Context, offerID string, transaction *entity.Transaction) (*AcceptResult, error) {
	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}

	result := &AcceptResult{Offer: offer, Transaction: transaction}
	if result.Transaction == nil && offer.TransactionID != "" {
		if t, err := uc.transactionRepo.GetByID(ctx, offer.TransactionID); err == nil {
			result.Transaction = t
		}
	}
	if listing, err := uc.listings.GetByID(ctx, offer.ListingID); err == nil {
		result.Listing = listing
	}
	return result, nil
}

// Reject declines a pending offer. No stock moves.
func (uc *OfferUseCase) Reject(ctx context.Context, sess session.Session, offerID string) (*entity.Offer, error) {
	offer, err := uc.loadForResponse(ctx, sess, offerID, entity.OfferStatusRejected)
	if err != nil {
		return nil, err
	}

	respondedAt := uc.now()
	rejected, err := uc.offerRepo.Transition(ctx, offer.ID, entity.OfferStatusPending, entity.OfferStatusRejected, func(o *entity.Offer) {
		o.RespondedBy = sess.UserID
		o.RespondedAt = &respondedAt
	})
	if err != nil {
		return nil, err
	}

	if rejected.TransactionID != "" {
		_, err := uc.transactionRepo.Transition(ctx, rejected.TransactionID,
			entity.TransactionStatusPending, entity.TransactionStatusRejected, nil)
		if err != nil && !errors.Is(err, errors.CodeInvalidState) && !errors.Is(err, errors.CodeNotFound) {
			logger.Error("Offer %s rejected but transaction %s was not: %v", rejected.ID, rejected.TransactionID, err)
		}
	}

	uc.chat.mirrorOfferStatus(ctx, rejected)

	text := fmt.Sprintf("%s declined the offer of %s/kg for %d kg.",
		uc.chat.displayName(ctx, sess.UserID), formatRupiah(rejected.Amount), rejected.QuantityKg)
	metadata := offerMetadata(rejected)
	metadata["event"] = entity.NotificationOfferRejected
	if _, err := uc.chat.SendSystemMessage(ctx, rejected.ConversationID, text, metadata); err != nil {
		logger.Error("Failed to announce rejection of offer %s: %v", rejected.ID, err)
	}

	uc.pushOfferUpdate(rejected, "")
	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID:   rejected.SenderID,
		Type:     entity.NotificationOfferRejected,
		Title:    "Offer declined",
		Body:     text,
		Metadata: offerMetadata(rejected),
	})

	return rejected, nil
}

// Counter closes the offer as countered and opens exactly one new pending
// offer in the other direction. The negotiation's transaction follows the
// new offer.
func (uc *OfferUseCase) Counter(ctx context.Context, sess session.Session, offerID string, input CounterOfferInput) (*entity.Offer, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if input.Amount <= 0 {
		return nil, errors.BadRequest("Counter amount must be greater than zero", nil)
	}
	if err := checkRate(uc.rateLimiter, sess.UserID, ratelimit.ActionCounterOffer); err != nil {
		return nil, err
	}

	offer, err := uc.loadForResponse(ctx, sess, offerID, entity.OfferStatusCountered)
	if err != nil {
		return nil, err
	}
	conversation, err := uc.chat.GetParticipantConversation(ctx, sess, offer.ConversationID)
	if err != nil {
		return nil, err
	}

	respondedAt := uc.now()
	countered, err := uc.offerRepo.Transition(ctx, offer.ID, entity.OfferStatusPending, entity.OfferStatusCountered, func(o *entity.Offer) {
		o.RespondedBy = sess.UserID
		o.RespondedAt = &respondedAt
	})
	if err != nil {
		return nil, err
	}

	next := &entity.Offer{
		ID:             uuid.New().String(),
		ConversationID: countered.ConversationID,
		MessageID:      ulid.Make().String(),
		ListingID:      countered.ListingID,
		ListingTitle:   countered.ListingTitle,
		BuyerID:        countered.BuyerID,
		SellerID:       countered.SellerID,
		SenderID:       countered.RecipientID,
		RecipientID:    countered.SenderID,
		Amount:         input.Amount,
		OriginalPrice:  countered.OriginalPrice,
		QuantityKg:     countered.QuantityKg,
		Status:         entity.OfferStatusPending,
		ParentOfferID:  countered.ID,
		TransactionID:  countered.TransactionID,
	}
	if err := uc.offerRepo.Create(ctx, next); err != nil {
		if _, rerr := uc.offerRepo.Transition(ctx, countered.ID, entity.OfferStatusCountered, entity.OfferStatusPending, func(o *entity.Offer) {
			o.RespondedBy = ""
			o.RespondedAt = nil
		}); rerr != nil {
			logger.Error("Failed to reopen offer %s after counter failed: %v", countered.ID, rerr)
		}
		return nil, err
	}

	if next.TransactionID != "" {
		_, err := uc.transactionRepo.Transition(ctx, next.TransactionID,
			entity.TransactionStatusPending, entity.TransactionStatusPending,
			func(t *entity.Transaction) {
				t.OfferID = next.ID
				t.PriceTotal = next.Total()
			})
		if err != nil {
			logger.Error("Counter offer %s created but transaction %s not carried forward: %v", next.ID, next.TransactionID, err)
		}
	}

	uc.chat.mirrorOfferStatus(ctx, countered)
	if err := uc.chat.PostMessage(ctx, conversation, offerMessage(next)); err != nil {
		logger.Error("Counter offer %s created but its chat message failed: %v", next.ID, err)
	}

	uc.pushOfferUpdate(countered, next.ID)
	uc.notifications.notifyQuietly(ctx, NotifyInput{
		UserID: next.RecipientID,
		Type:   entity.NotificationOfferCountered,
		Title:  "Offer countered",
		Body: fmt.Sprintf("%s countered with %s/kg for %d kg of %s",
			uc.chat.displayName(ctx, next.SenderID), formatRupiah(next.Amount), next.QuantityKg, next.ListingTitle),
		Metadata: offerMetadata(next),
	})

	return next, nil
}

func (uc *OfferUseCase) GetOffer(ctx context.Context, sess session.Session, offerID string) (*entity.Offer, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.BuyerID != sess.UserID && offer.SellerID != sess.UserID && sess.Role != session.RoleAdmin {
		return nil, errors.Forbidden("You are not part of this negotiation", nil)
	}
	return offer, nil
}

func (uc *OfferUseCase) ListByConversation(ctx context.Context, sess session.Session, conversationID string) ([]*entity.Offer, error) {
	if _, err := uc.chat.GetParticipantConversation(ctx, sess, conversationID); err != nil {
		return nil, err
	}
	return uc.offerRepo.ListByConversation(ctx, conversationID)
}

// loadForResponse fetches an offer the caller is allowed to move to status to.
func (uc *OfferUseCase) loadForResponse(ctx context.Context, sess session.Session, offerID, to string) (*entity.Offer, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	offer, err := uc.offerRepo.GetByID(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.RecipientID != sess.UserID {
		return nil, errors.Forbidden("Only the offer recipient can respond to this offer", nil)
	}
	if !entity.CanTransitionOffer(offer.Status, to) {
		return nil, errors.InvalidState(fmt.Sprintf("Offer is already %s", offer.Status))
	}
	return offer, nil
}

func (uc *OfferUseCase) pushOfferUpdate(offer *entity.Offer, nextOfferID string) {
	update := ws.OfferUpdateData{
		OfferID:        offer.ID,
		ConversationID: offer.ConversationID,
		ListingID:      offer.ListingID,
		Status:         offer.Status,
		Amount:         offer.Amount,
		QuantityKg:     offer.QuantityKg,
		NextOfferID:    nextOfferID,
	}
	for _, userID := range []string{offer.BuyerID, offer.SellerID} {
		if err := uc.pusher.Push(userID, ws.EventOfferUpdate, update); err != nil {
			logger.Warn("Offer update push to %s failed: %v", userID, err)
		}
	}
}

func offerMessage(offer *entity.Offer) *entity.Message {
	return &entity.Message{
		ID:             offer.MessageID,
		ConversationID: offer.ConversationID,
		SenderID:       offer.SenderID,
		Text: fmt.Sprintf("Offer: %s/kg for %d kg of %s",
			formatRupiah(offer.Amount), offer.QuantityKg, offer.ListingTitle),
		Type:          entity.MessageTypeOffer,
		IsOffer:       true,
		OfferID:       offer.ID,
		OfferAmount:   offer.Amount,
		OfferStatus:   offer.Status,
		CropID:        offer.ListingID,
		TransactionID: offer.TransactionID,
		Metadata: map[string]interface{}{
			"quantity_kg":    offer.QuantityKg,
			"original_price": offer.OriginalPrice,
			"parent_offer":   offer.ParentOfferID,
		},
	}
}

func offerMetadata(offer *entity.Offer) map[string]interface{} {
	return map[string]interface{}{
		"offer_id":        offer.ID,
		"conversation_id": offer.ConversationID,
		"listing_id":      offer.ListingID,
		"transaction_id":  offer.TransactionID,
	}
}
