package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sakanect/internal/adapter/repository/memory"
	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/session"
)

const (
	sellerID = "farmer-1"
	buyerA   = "buyer-a"
	buyerB   = "buyer-b"
)

type pushed struct {
	UserID string
	Event  string
}

type recordingPusher struct {
	mu     sync.Mutex
	events []pushed
}

func (p *recordingPusher) Push(userID, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, pushed{UserID: userID, Event: eventType})
	return nil
}

func (p *recordingPusher) count(userID, eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.UserID == userID && e.Event == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	listings      *memory.ListingRepository
	offers        *memory.OfferRepository
	sagas         *memory.OfferSagaRepository
	transactions  *memory.TransactionRepository
	conversations *memory.ConversationRepository
	notifications *memory.NotificationRepository
	users         *memory.UserRepository
	pusher        *recordingPusher

	inventory     *InventoryUseCase
	chat          *ChatUseCase
	notify        *NotificationUseCase
	offerUC       *OfferUseCase
	transactionUC *TransactionUseCase
}

type fixtureOverrides struct {
	transactions  repository.TransactionRepository
	conversations repository.ConversationRepository
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, fixtureOverrides{})
}

func newFixtureWith(t *testing.T, o fixtureOverrides) *fixture {
	t.Helper()

	f := &fixture{
		listings:      memory.NewListingRepository(),
		offers:        memory.NewOfferRepository(),
		sagas:         memory.NewOfferSagaRepository(),
		transactions:  memory.NewTransactionRepository(),
		conversations: memory.NewConversationRepository(),
		notifications: memory.NewNotificationRepository(),
		users:         memory.NewUserRepository(),
		pusher:        &recordingPusher{},
	}

	var txRepo repository.TransactionRepository = f.transactions
	if o.transactions != nil {
		txRepo = o.transactions
	}
	var convRepo repository.ConversationRepository = f.conversations
	if o.conversations != nil {
		convRepo = o.conversations
	}

	ctx := context.Background()
	for id, name := range map[string]string{sellerID: "Pak Tani", buyerA: "Ayu", buyerB: "Budi"} {
		require.NoError(t, f.users.Create(ctx, &entity.User{ID: id, DisplayName: name, Email: id + "@example.com"}))
	}

	f.inventory = NewInventoryUseCase(f.listings, nil)
	f.notify = NewNotificationUseCase(f.notifications, f.users, f.pusher, nil)
	f.chat = NewChatUseCase(convRepo, f.users, f.pusher, nil)
	f.offerUC = NewOfferUseCase(f.offers, f.sagas, txRepo, f.listings, f.inventory, f.chat, f.notify, f.pusher, nil, time.Minute)
	f.transactionUC = NewTransactionUseCase(txRepo, f.notify)
	return f
}

func as(userID string) session.Session {
	return session.Session{UserID: userID, Role: session.RoleUser}
}

func (f *fixture) seedListing(t *testing.T, quantityKg int, pricePerKg float64) *entity.Listing {
	t.Helper()
	listing := &entity.Listing{
		OwnerID:    sellerID,
		Title:      "Tomat Merah",
		PricePerKg: pricePerKg,
		QuantityKg: quantityKg,
	}
	require.NoError(t, f.listings.Create(context.Background(), listing))
	return listing
}

func (f *fixture) conversation(t *testing.T, buyerID string) *entity.Conversation {
	t.Helper()
	conv, err := f.chat.CreateConversation(context.Background(), as(buyerID), CreateConversationInput{ParticipantID: sellerID})
	require.NoError(t, err)
	return conv
}

func (f *fixture) sendOffer(t *testing.T, buyerID string, listing *entity.Listing, amount float64, quantityKg int) *entity.Offer {
	t.Helper()
	conv := f.conversation(t, buyerID)
	offer, err := f.offerUC.Send(context.Background(), as(buyerID), conv.ID, SendOfferInput{
		ListingID:  listing.ID,
		Amount:     amount,
		QuantityKg: quantityKg,
	})
	require.NoError(t, err)
	return offer
}

func (f *fixture) listing(t *testing.T, id string) *entity.Listing {
	t.Helper()
	l, err := f.listings.GetByID(context.Background(), id)
	require.NoError(t, err)
	return l
}

func (f *fixture) offer(t *testing.T, id string) *entity.Offer {
	t.Helper()
	o, err := f.offers.GetByID(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (f *fixture) transaction(t *testing.T, id string) *entity.Transaction {
	t.Helper()
	tx, err := f.transactions.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tx
}

// systemMessages returns the system messages in the thread between buyer and
// seller whose metadata event matches.
func (f *fixture) systemMessages(t *testing.T, buyerID, event string) []*entity.Message {
	t.Helper()
	msgs, _, err := f.conversations.GetMessages(context.Background(), entity.ConversationIDFor(buyerID, sellerID), 0, 0)
	require.NoError(t, err)

	var out []*entity.Message
	for _, m := range msgs {
		if m.Type == entity.MessageTypeSystem && m.Metadata["event"] == event {
			out = append(out, m)
		}
	}
	return out
}

func (f *fixture) notificationsOf(t *testing.T, userID, notificationType string) int {
	t.Helper()
	list, _, err := f.notifications.ListByUserID(context.Background(), userID, false, 0, 0)
	require.NoError(t, err)
	n := 0
	for _, item := range list {
		if item.Type == notificationType {
			n++
		}
	}
	return n
}
