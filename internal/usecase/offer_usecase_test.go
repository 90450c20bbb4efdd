package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/adapter/repository/memory"
	"sakanect/internal/domain/entity"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/pkg/errors"
)

// flakyTransactions fails the pending->accepted transition while armed.
type flakyTransactions struct {
	*memory.TransactionRepository
	failAccept atomic.Bool
}

func (r *flakyTransactions) Transition(ctx context.Context, id, from, to string, mutate func(*entity.Transaction)) (*entity.Transaction, error) {
	if to == entity.TransactionStatusAccepted && r.failAccept.Load() {
		return nil, errors.Internal("transaction store unavailable", nil)
	}
	return r.TransactionRepository.Transition(ctx, id, from, to, mutate)
}

// flakyConversations drops system messages while armed.
type flakyConversations struct {
	*memory.ConversationRepository
	failSystem atomic.Bool
}

func (r *flakyConversations) CreateMessage(ctx context.Context, message *entity.Message) error {
	if message.Type == entity.MessageTypeSystem && r.failSystem.Load() {
		return errors.Internal("message store unavailable", nil)
	}
	return r.ConversationRepository.CreateMessage(ctx, message)
}

func TestSendOffer(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)

	offer := f.sendOffer(t, buyerA, listing, 45, 4)

	assert.Equal(t, entity.OfferStatusPending, offer.Status)
	assert.Equal(t, buyerA, offer.SenderID)
	assert.Equal(t, sellerID, offer.RecipientID)
	assert.Equal(t, 50.0, offer.OriginalPrice)
	assert.NotEmpty(t, offer.MessageID)

	transaction := f.transaction(t, offer.TransactionID)
	assert.Equal(t, entity.TransactionStatusPending, transaction.Status)
	assert.Equal(t, offer.ID, transaction.OfferID)
	assert.Equal(t, 180.0, transaction.PriceTotal)

	msg, err := f.conversations.GetMessageByID(context.Background(), offer.ConversationID, offer.MessageID)
	require.NoError(t, err)
	assert.True(t, msg.IsOffer)
	assert.Equal(t, entity.OfferStatusPending, msg.OfferStatus)

	assert.Equal(t, 1, f.notificationsOf(t, sellerID, entity.NotificationOfferReceived))
	assert.Equal(t, 10, f.listing(t, listing.ID).QuantityKg, "sending an offer must not move stock")
}

func TestSendOfferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, 10, 50)
	conv := f.conversation(t, buyerA)

	_, err := f.offerUC.Send(ctx, as(buyerA), conv.ID, SendOfferInput{ListingID: listing.ID, Amount: 0, QuantityKg: 1})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = f.offerUC.Send(ctx, as(buyerA), conv.ID, SendOfferInput{ListingID: listing.ID, Amount: 10, QuantityKg: 0})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = f.offerUC.Send(ctx, as(sellerID), conv.ID, SendOfferInput{ListingID: listing.ID, Amount: 10, QuantityKg: 1})
	assert.True(t, errors.Is(err, errors.CodeBadRequest), "owner cannot offer on own listing")

	_, err = f.offerUC.Send(ctx, as(buyerB), conv.ID, SendOfferInput{ListingID: listing.ID, Amount: 10, QuantityKg: 1})
	assert.True(t, errors.Is(err, errors.CodeForbidden), "outsider cannot use the thread")

	_, err = f.offerUC.Send(ctx, as(buyerA), conv.ID, SendOfferInput{ListingID: "missing", Amount: 10, QuantityKg: 1})
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestAcceptOfferSellsOutListing(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 10)

	result, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.OfferStatusAccepted, result.Offer.Status)
	assert.Equal(t, sellerID, result.Offer.RespondedBy)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, entity.TransactionStatusAccepted, result.Transaction.Status)
	assert.Equal(t, 500.0, result.Transaction.PriceTotal)
	require.NotNil(t, result.Listing)
	assert.Equal(t, 0, result.Listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusSoldOut, result.Listing.Status)

	saga, err := f.sagas.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusCompleted, saga.Status)

	assert.Len(t, f.systemMessages(t, buyerA, entity.NotificationOfferAccepted), 1)
	assert.Equal(t, 1, f.notificationsOf(t, buyerA, entity.NotificationOfferAccepted))
	assert.Equal(t, 1, f.notificationsOf(t, sellerID, entity.NotificationListingSoldOut))

	msg, err := f.conversations.GetMessageByID(context.Background(), offer.ConversationID, offer.MessageID)
	require.NoError(t, err)
	assert.Equal(t, entity.OfferStatusAccepted, msg.OfferStatus)
}

func TestAcceptOfferInsufficientStock(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 10)

	// stock drops below the offer after it was made
	_, err := f.inventory.Reserve(context.Background(), listing.ID, 5)
	require.NoError(t, err)

	_, err = f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeStockUnavailable))

	assert.Equal(t, 5, f.listing(t, listing.ID).QuantityKg)
	assert.Equal(t, entity.OfferStatusPending, f.offer(t, offer.ID).Status)
	assert.Equal(t, entity.TransactionStatusPending, f.transaction(t, offer.TransactionID).Status)
}

func TestAcceptResolvesCompetingOffers(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	winner := f.sendOffer(t, buyerA, listing, 50, 10)
	loser := f.sendOffer(t, buyerB, listing, 48, 8)

	_, err := f.offerUC.Accept(context.Background(), as(sellerID), winner.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.TransactionStatusRejected, f.transaction(t, loser.TransactionID).Status)
	lost := f.offer(t, loser.ID)
	assert.Equal(t, entity.OfferStatusRejected, lost.Status)
	assert.Equal(t, entity.SystemSenderID, lost.RespondedBy)

	assert.Len(t, f.systemMessages(t, buyerB, "offer_auto_rejected"), 1)
	assert.Equal(t, 1, f.notificationsOf(t, buyerB, entity.NotificationOfferRejected))
	assert.Empty(t, f.systemMessages(t, buyerA, "offer_auto_rejected"))
	assert.Equal(t, entity.ListingStatusSoldOut, f.listing(t, listing.ID).Status)

	// the rejected offer can no longer be accepted
	_, err = f.offerUC.Accept(context.Background(), as(sellerID), loser.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
	assert.Equal(t, 0, f.listing(t, listing.ID).QuantityKg)
}

func TestCompetingBuyerWithSeveralOffersIsNotifiedOnce(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 20, 50)
	first := f.sendOffer(t, buyerB, listing, 40, 3)
	second := f.sendOffer(t, buyerB, listing, 42, 6)
	winner := f.sendOffer(t, buyerA, listing, 50, 5)

	_, err := f.offerUC.Accept(context.Background(), as(sellerID), winner.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.TransactionStatusRejected, f.transaction(t, first.TransactionID).Status)
	assert.Equal(t, entity.TransactionStatusRejected, f.transaction(t, second.TransactionID).Status)
	assert.Len(t, f.systemMessages(t, buyerB, "offer_auto_rejected"), 1)
	assert.Equal(t, 1, f.notificationsOf(t, buyerB, entity.NotificationOfferRejected))

	listingAfter := f.listing(t, listing.ID)
	assert.Equal(t, 15, listingAfter.QuantityKg)
	assert.Equal(t, entity.ListingStatusAvailable, listingAfter.Status)
}

func TestAcceptIsIdempotent(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	first, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)
	second, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Offer.ID, second.Offer.ID)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)
	assert.Equal(t, 6, f.listing(t, listing.ID).QuantityKg)
	assert.Len(t, f.systemMessages(t, buyerA, entity.NotificationOfferAccepted), 1)
}

func TestOnlyRecipientCanRespond(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	_, err := f.offerUC.Accept(ctx, as(buyerA), offer.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	_, err = f.offerUC.Reject(ctx, as(buyerB), offer.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
	_, err = f.offerUC.Counter(ctx, as(buyerA), offer.ID, CounterOfferInput{Amount: 30})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	assert.Equal(t, 10, f.listing(t, listing.ID).QuantityKg)
	assert.Equal(t, entity.OfferStatusPending, f.offer(t, offer.ID).Status)
}

func TestRejectOffer(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 30, 4)

	rejected, err := f.offerUC.Reject(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.OfferStatusRejected, rejected.Status)
	assert.Equal(t, entity.TransactionStatusRejected, f.transaction(t, offer.TransactionID).Status)
	assert.Equal(t, 10, f.listing(t, listing.ID).QuantityKg)
	assert.Len(t, f.systemMessages(t, buyerA, entity.NotificationOfferRejected), 1)
	assert.Equal(t, 1, f.notificationsOf(t, buyerA, entity.NotificationOfferRejected))

	_, err = f.offerUC.Reject(context.Background(), as(sellerID), offer.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
}

func TestCounterOfferCarriesNegotiationForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 40, 4)

	next, err := f.offerUC.Counter(ctx, as(sellerID), offer.ID, CounterOfferInput{Amount: 45})
	require.NoError(t, err)

	original := f.offer(t, offer.ID)
	assert.Equal(t, entity.OfferStatusCountered, original.Status)

	assert.Equal(t, entity.OfferStatusPending, next.Status)
	assert.Equal(t, sellerID, next.SenderID)
	assert.Equal(t, buyerA, next.RecipientID)
	assert.Equal(t, 45.0, next.Amount)
	assert.Equal(t, 50.0, next.OriginalPrice)
	assert.Equal(t, offer.QuantityKg, next.QuantityKg)
	assert.Equal(t, offer.ID, next.ParentOfferID)
	assert.Equal(t, offer.TransactionID, next.TransactionID)

	offers, err := f.offerUC.ListByConversation(ctx, as(buyerA), offer.ConversationID)
	require.NoError(t, err)
	pending := 0
	for _, o := range offers {
		if o.Status == entity.OfferStatusPending {
			pending++
		}
	}
	assert.Len(t, offers, 2)
	assert.Equal(t, 1, pending)

	transaction := f.transaction(t, offer.TransactionID)
	assert.Equal(t, next.ID, transaction.OfferID)
	assert.Equal(t, 180.0, transaction.PriceTotal)
	assert.Equal(t, 1, f.notificationsOf(t, buyerA, entity.NotificationOfferCountered))

	// the countered offer is closed; the buyer answers the counter
	_, err = f.offerUC.Accept(ctx, as(sellerID), offer.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidState))

	result, err := f.offerUC.Accept(ctx, as(buyerA), next.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionStatusAccepted, result.Transaction.Status)
	assert.Equal(t, offer.TransactionID, result.Transaction.ID)
	assert.Equal(t, 6, f.listing(t, listing.ID).QuantityKg)
}

func TestCounterOfferRequiresPositiveAmount(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 40, 4)

	_, err := f.offerUC.Counter(context.Background(), as(sellerID), offer.ID, CounterOfferInput{Amount: 0})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
	assert.Equal(t, entity.OfferStatusPending, f.offer(t, offer.ID).Status)
}

func TestCounterOnAcceptedOfferIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	_, err := f.offerUC.Accept(ctx, as(sellerID), offer.ID)
	require.NoError(t, err)

	_, err = f.offerUC.Counter(ctx, as(sellerID), offer.ID, CounterOfferInput{Amount: 45})
	assert.True(t, errors.Is(err, errors.CodeInvalidState))
	assert.Equal(t, entity.OfferStatusAccepted, f.offer(t, offer.ID).Status)
	assert.Equal(t, 6, f.listing(t, listing.ID).QuantityKg)
}

func TestConcurrentAcceptsNeverOversell(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)

	// one buyer's offers do not reject each other, so every accept races
	// for stock
	var offers []*entity.Offer
	for i := 0; i < 4; i++ {
		offers = append(offers, f.sendOffer(t, buyerA, listing, 50, 4))
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		short     atomic.Int32
	)
	for _, offer := range offers {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.offerUC.Accept(context.Background(), as(sellerID), id)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, errors.CodeStockUnavailable):
				short.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(offer.ID)
	}
	wg.Wait()

	assert.EqualValues(t, 2, succeeded.Load())
	assert.EqualValues(t, 2, short.Load())
	assert.Equal(t, 2, f.listing(t, listing.ID).QuantityKg)
}

func TestAcceptCompensatesWhenTransactionStepFails(t *testing.T) {
	txRepo := &flakyTransactions{TransactionRepository: memory.NewTransactionRepository()}
	f := newFixtureWith(t, fixtureOverrides{transactions: txRepo})
	f.transactions = txRepo.TransactionRepository
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	txRepo.failAccept.Store(true)
	_, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.Error(t, err)

	assert.Equal(t, 10, f.listing(t, listing.ID).QuantityKg)
	assert.Equal(t, entity.OfferStatusPending, f.offer(t, offer.ID).Status)
	saga, err := f.sagas.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusCompensated, saga.Status)
	assert.False(t, saga.StockDeducted)

	txRepo.failAccept.Store(false)
	result, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TransactionStatusAccepted, result.Transaction.Status)
	assert.Equal(t, 6, f.listing(t, listing.ID).QuantityKg)
}

func TestAcceptResumesAfterAnnounceFailure(t *testing.T) {
	convRepo := &flakyConversations{ConversationRepository: memory.NewConversationRepository()}
	f := newFixtureWith(t, fixtureOverrides{conversations: convRepo})
	f.conversations = convRepo.ConversationRepository
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	convRepo.failSystem.Store(true)
	result, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err, "the accept stands once stock and records moved")
	assert.Equal(t, entity.OfferStatusAccepted, result.Offer.Status)

	saga, err := f.sagas.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusDeferred, saga.Status)
	assert.True(t, saga.TransactionAccepted)
	assert.False(t, saga.Announced)
	assert.NotEmpty(t, saga.LastError)

	convRepo.failSystem.Store(false)
	_, err = f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)

	saga, err = f.sagas.GetByID(context.Background(), offer.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusCompleted, saga.Status)
	assert.Equal(t, 6, f.listing(t, listing.ID).QuantityKg, "resume must not deduct again")
	assert.Len(t, f.systemMessages(t, buyerA, entity.NotificationOfferAccepted), 1)
}

// deferredAccept leaves the accept of a 6kg offer from buyerA standing with
// its announce and competitor resolution still outstanding, next to a
// pending 4kg offer from buyerB.
func deferredAccept(t *testing.T) (f *fixture, convRepo *flakyConversations, listing *entity.Listing, winner, loser *entity.Offer) {
	t.Helper()
	convRepo = &flakyConversations{ConversationRepository: memory.NewConversationRepository()}
	f = newFixtureWith(t, fixtureOverrides{conversations: convRepo})
	f.conversations = convRepo.ConversationRepository
	listing = f.seedListing(t, 10, 50)
	winner = f.sendOffer(t, buyerA, listing, 50, 6)
	loser = f.sendOffer(t, buyerB, listing, 45, 4)

	convRepo.failSystem.Store(true)
	_, err := f.offerUC.Accept(context.Background(), as(sellerID), winner.ID)
	require.NoError(t, err)
	convRepo.failSystem.Store(false)

	saga, err := f.sagas.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	require.Equal(t, entity.SagaStatusDeferred, saga.Status)
	require.Equal(t, entity.OfferStatusPending, f.offer(t, loser.ID).Status)
	return f, convRepo, listing, winner, loser
}

func TestNextAcceptOnListingFinishesDeferredAccept(t *testing.T) {
	f, _, listing, winner, loser := deferredAccept(t)

	_, err := f.offerUC.Accept(context.Background(), as(sellerID), loser.ID)
	assert.True(t, errors.Is(err, errors.CodeInvalidState), "the earlier accept wins")

	saga, err := f.sagas.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusCompleted, saga.Status)
	assert.Equal(t, entity.OfferStatusRejected, f.offer(t, loser.ID).Status)
	assert.Equal(t, entity.TransactionStatusRejected, f.transaction(t, loser.TransactionID).Status)
	assert.Len(t, f.systemMessages(t, buyerB, "offer_auto_rejected"), 1)
	assert.Equal(t, 4, f.listing(t, listing.ID).QuantityKg)
}

func TestSweepFinishesDeferredAccepts(t *testing.T) {
	f, convRepo, listing, winner, loser := deferredAccept(t)

	convRepo.failSystem.Store(true)
	f.offerUC.SweepDeferred(context.Background())
	saga, err := f.sagas.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusDeferred, saga.Status, "still failing, still deferred")

	convRepo.failSystem.Store(false)
	f.offerUC.SweepDeferred(context.Background())

	saga, err = f.sagas.GetByID(context.Background(), winner.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SagaStatusCompleted, saga.Status)
	assert.Equal(t, entity.OfferStatusRejected, f.offer(t, loser.ID).Status)
	assert.Len(t, f.systemMessages(t, buyerA, entity.NotificationOfferAccepted), 1)
	assert.Len(t, f.systemMessages(t, buyerB, "offer_auto_rejected"), 1)
	assert.Equal(t, 4, f.listing(t, listing.ID).QuantityKg, "finishing must not deduct again")

	deferred, err := f.sagas.ListDeferred(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, deferred)
}

func TestAcceptRefusesWhileAnotherRunHoldsTheLease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	_, err := f.sagas.Claim(ctx, &entity.AcceptSaga{
		ID:         offer.ID,
		OfferID:    offer.ID,
		ListingID:  listing.ID,
		QuantityKg: offer.QuantityKg,
		AcceptedBy: sellerID,
		LeaseUntil: time.Now().Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = f.offerUC.Accept(ctx, as(sellerID), offer.ID)
	assert.True(t, errors.Is(err, errors.CodeConflict))
	assert.Equal(t, 10, f.listing(t, listing.ID).QuantityKg)
}

func TestOfferUpdatesArePushedToBothParties(t *testing.T) {
	f := newFixture(t)
	listing := f.seedListing(t, 10, 50)
	offer := f.sendOffer(t, buyerA, listing, 50, 4)

	_, err := f.offerUC.Accept(context.Background(), as(sellerID), offer.ID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, f.pusher.count(buyerA, ws.EventOfferUpdate), 2)
	assert.GreaterOrEqual(t, f.pusher.count(sellerID, ws.EventOfferUpdate), 2)
}
