package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

type NotificationRepository struct {
	mu            sync.Mutex
	notifications map[string]entity.Notification
}

var _ repository.NotificationRepository = (*NotificationRepository)(nil)

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{notifications: make(map[string]entity.Notification)}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}
	r.notifications[notification.ID] = *notification
	return nil
}

func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification, ok := r.notifications[id]
	if !ok {
		return nil, errors.NotFound("Notification", nil)
	}
	return &notification, nil
}

func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Notification
	for _, n := range r.notifications {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		notification := n
		matched = append(matched, &notification)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	notification, ok := r.notifications[id]
	if !ok {
		return errors.NotFound("Notification", nil)
	}
	notification.Read = true
	r.notifications[id] = notification
	return nil
}
