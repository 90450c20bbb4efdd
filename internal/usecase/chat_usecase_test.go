package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/domain/entity"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/pkg/errors"
)

type denyAfter struct {
	mu      sync.Mutex
	allowed int
}

func (d *denyAfter) Allow(userID, action string) (bool, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.allowed == 0 {
		return false, 5 * time.Second
	}
	d.allowed--
	return true, 0
}

func TestCreateConversationIsOnePerPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.chat.CreateConversation(ctx, as(buyerA), CreateConversationInput{ParticipantID: sellerID})
	require.NoError(t, err)
	second, err := f.chat.CreateConversation(ctx, as(sellerID), CreateConversationInput{ParticipantID: buyerA})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, entity.ConversationIDFor(buyerA, sellerID), first.ID)

	_, err = f.chat.CreateConversation(ctx, as(buyerA), CreateConversationInput{ParticipantID: buyerA})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestEnsureConversationConcurrent(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	ids := make([]string, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conv, err := f.chat.EnsureConversation(context.Background(), buyerB, sellerID, "")
			if assert.NoError(t, err) {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	list, total, err := f.chat.ListConversations(context.Background(), as(buyerB), 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestSendMessageMarksUnreadAndPushes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, buyerA)

	msg, err := f.chat.SendMessage(ctx, as(buyerA), conv.ID, SendMessageInput{Text: "  Masih ada tomat?  "})
	require.NoError(t, err)
	assert.Equal(t, "Masih ada tomat?", msg.Text)
	assert.NotEmpty(t, msg.ID)

	stored, err := f.conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Masih ada tomat?", stored.LastMessage)
	assert.Contains(t, stored.UnreadBy, sellerID)
	assert.NotContains(t, stored.UnreadBy, buyerA)
	assert.Equal(t, 1, f.pusher.count(sellerID, ws.EventNewMessage))

	require.NoError(t, f.chat.MarkRead(ctx, as(sellerID), conv.ID))
	stored, err = f.conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.UnreadBy, sellerID)
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, buyerA)

	_, err := f.chat.SendMessage(ctx, as(buyerA), conv.ID, SendMessageInput{Text: "   "})
	assert.True(t, errors.Is(err, errors.CodeBadRequest))

	_, err = f.chat.SendMessage(ctx, as(buyerB), conv.ID, SendMessageInput{Text: "hi"})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	_, _, err = f.chat.GetMessages(ctx, as(buyerB), conv.ID, 10, 0)
	assert.True(t, errors.Is(err, errors.CodeForbidden))
}

func TestSendMessageIsRateLimited(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, buyerA)
	chat := NewChatUseCase(f.conversations, f.users, f.pusher, &denyAfter{allowed: 1})

	_, err := chat.SendMessage(context.Background(), as(buyerA), conv.ID, SendMessageInput{Text: "one"})
	require.NoError(t, err)
	_, err = chat.SendMessage(context.Background(), as(buyerA), conv.ID, SendMessageInput{Text: "two"})
	assert.True(t, errors.Is(err, errors.CodeTooManyRequests))
}

func TestSystemMessageIsUnreadForEveryone(t *testing.T) {
	f := newFixture(t)
	conv := f.conversation(t, buyerA)

	msg, err := f.chat.SendSystemMessage(context.Background(), conv.ID, "Stok habis", map[string]interface{}{"event": "test"})
	require.NoError(t, err)
	assert.Equal(t, entity.SystemSenderID, msg.SenderID)
	assert.Equal(t, entity.MessageTypeSystem, msg.Type)

	stored, err := f.conversations.GetByID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{buyerA, sellerID}, stored.UnreadBy)
}

func TestStaleConversationKeepsEveryUnreadParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, buyerA)

	// Both senders loaded the thread before either message landed.
	buyerView, sellerView := *conv, *conv
	first := &entity.Message{SenderID: buyerA, Text: "Berapa per kg?", Type: entity.MessageTypeText, CreatedAt: time.Now()}
	second := &entity.Message{SenderID: sellerID, Text: "Rp 50", Type: entity.MessageTypeText, CreatedAt: first.CreatedAt.Add(time.Second)}
	require.NoError(t, f.chat.PostMessage(ctx, &buyerView, first))
	require.NoError(t, f.chat.PostMessage(ctx, &sellerView, second))

	stored, err := f.conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{buyerA, sellerID}, stored.UnreadBy)
	assert.Equal(t, "Rp 50", stored.LastMessage)
}

func TestMarkReadDuringSendsKeepsRecipientUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.conversation(t, buyerA)

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := f.chat.SendMessage(ctx, as(buyerA), conv.ID, SendMessageInput{Text: fmt.Sprintf("pesan %d", i)})
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.chat.MarkRead(ctx, as(buyerA), conv.ID))
		}()
	}
	wg.Wait()

	stored, err := f.conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{sellerID}, stored.UnreadBy)

	messages, total, err := f.conversations.GetMessages(ctx, conv.ID, rounds, 0)
	require.NoError(t, err)
	require.EqualValues(t, rounds, total)
	newest := messages[0].CreatedAt
	for _, m := range messages {
		if m.CreatedAt.After(newest) {
			newest = m.CreatedAt
		}
	}
	assert.True(t, newest.Equal(stored.LastMessageAt))
}
