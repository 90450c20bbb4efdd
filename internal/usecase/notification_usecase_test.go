package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/adapter/repository/memory"
	"sakanect/internal/domain/entity"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/pkg/errors"
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (e *recordingEmail) Send(ctx context.Context, to, subject, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, to)
	return e.err
}

// jsonPusher encodes every payload the way the websocket manager does.
type jsonPusher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (p *jsonPusher) Push(userID, eventType string, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, raw)
	return nil
}

type failingNotifications struct {
	*memory.NotificationRepository
}

func (failingNotifications) Create(ctx context.Context, notification *entity.Notification) error {
	return errors.Internal("Failed to create notification", fmt.Errorf("unavailable"))
}

func TestNotifyPushesTheStoredNotification(t *testing.T) {
	notifications := memory.NewNotificationRepository()
	pusher := &jsonPusher{}
	uc := NewNotificationUseCase(notifications, memory.NewUserRepository(), pusher, nil)

	const calls = 50
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Notify(context.Background(), NotifyInput{UserID: buyerA, Type: "x", Title: "t"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, total, err := notifications.ListByUserID(context.Background(), buyerA, false, calls, 0)
	require.NoError(t, err)
	require.EqualValues(t, calls, total)
	byID := make(map[string]*entity.Notification, len(stored))
	for _, n := range stored {
		byID[n.ID] = n
	}

	require.Len(t, pusher.payloads, calls)
	for _, raw := range pusher.payloads {
		var got entity.Notification
		require.NoError(t, json.Unmarshal(raw, &got))
		want, ok := byID[got.ID]
		require.True(t, ok, "pushed notification %s was never stored", got.ID)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	}
}

func TestNotifyDoesNotPushWhenStoreFails(t *testing.T) {
	pusher := &recordingPusher{}
	email := &recordingEmail{}
	users := memory.NewUserRepository()
	require.NoError(t, users.Create(context.Background(), &entity.User{ID: buyerA, Email: "ayu@example.com"}))
	uc := NewNotificationUseCase(failingNotifications{memory.NewNotificationRepository()}, users, pusher, email)

	_, err := uc.Notify(context.Background(), NotifyInput{UserID: buyerA, Type: "x", Title: "t"})
	assert.True(t, errors.Is(err, errors.CodeInternal))
	assert.Zero(t, pusher.count(buyerA, ws.EventNotification))
	assert.Empty(t, email.sent)
}

func TestNotifyStoresPushesAndEmails(t *testing.T) {
	users := memory.NewUserRepository()
	require.NoError(t, users.Create(context.Background(), &entity.User{ID: buyerA, Email: "ayu@example.com"}))
	notifications := memory.NewNotificationRepository()
	pusher := &recordingPusher{}
	email := &recordingEmail{}
	uc := NewNotificationUseCase(notifications, users, pusher, email)

	n, err := uc.Notify(context.Background(), NotifyInput{
		UserID: buyerA,
		Type:   entity.NotificationOfferAccepted,
		Title:  "Offer accepted",
		Body:   "Deal",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)

	stored, total, err := notifications.ListByUserID(context.Background(), buyerA, true, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, n.ID, stored[0].ID)
	assert.Equal(t, 1, pusher.count(buyerA, ws.EventNotification))
	assert.Equal(t, []string{"ayu@example.com"}, email.sent)
}

func TestNotifySurvivesEmailFailure(t *testing.T) {
	users := memory.NewUserRepository()
	require.NoError(t, users.Create(context.Background(), &entity.User{ID: buyerA, Email: "ayu@example.com"}))
	notifications := memory.NewNotificationRepository()
	uc := NewNotificationUseCase(notifications, users, nil, &recordingEmail{err: fmt.Errorf("smtp down")})

	_, err := uc.Notify(context.Background(), NotifyInput{UserID: buyerA, Type: "x", Title: "t"})
	require.NoError(t, err)

	_, total, err := notifications.ListByUserID(context.Background(), buyerA, false, 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestMarkNotificationRead(t *testing.T) {
	notifications := memory.NewNotificationRepository()
	uc := NewNotificationUseCase(notifications, memory.NewUserRepository(), nil, nil)
	ctx := context.Background()

	n, err := uc.Notify(ctx, NotifyInput{UserID: buyerA, Type: "x", Title: "t"})
	require.NoError(t, err)

	err = uc.MarkRead(ctx, as(buyerB), n.ID)
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	require.NoError(t, uc.MarkRead(ctx, as(buyerA), n.ID))
	require.NoError(t, uc.MarkRead(ctx, as(buyerA), n.ID))

	unread, _, err := uc.List(ctx, as(buyerA), true, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, unread)
	all, _, err := uc.List(ctx, as(buyerA), false, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
