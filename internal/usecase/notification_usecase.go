package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/domain/service"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	userRepo         repository.UserRepository
	pusher           RealtimePusher
	email            service.EmailSender
}

func NewNotificationUseCase(
	notificationRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	pusher RealtimePusher,
	email service.EmailSender,
) *NotificationUseCase {
	if pusher == nil {
		pusher = noopPusher{}
	}
	if email == nil {
		email = service.NoopEmailService{}
	}
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pusher:           pusher,
		email:            email,
	}
}

type NotifyInput struct {
	UserID   string
	Type     string
	Title    string
	Body     string
	Metadata map[string]interface{}
}

// Notify stores an in-app notification, then pushes it over the websocket
// and emails the user in parallel. Only the stored document is required to
// succeed; push and email are best effort.
func (uc *NotificationUseCase) Notify(ctx context.Context, input NotifyInput) (*entity.Notification, error) {
	notification := &entity.Notification{
		ID:        uuid.New().String(),
		UserID:    input.UserID,
		Type:      input.Type,
		Title:     input.Title,
		Body:      input.Body,
		Metadata:  input.Metadata,
		CreatedAt: time.Now(),
	}

	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		return nil, err
	}

	// The goroutines below only read the stored copy.
	sent := *notification

	var g errgroup.Group

	g.Go(func() error {
		if err := uc.pusher.Push(sent.UserID, ws.EventNotification, sent); err != nil {
			logger.Warn("Notification push to %s failed: %v", sent.UserID, err)
		}
		return nil
	})

	g.Go(func() error {
		user, err := uc.userRepo.GetByID(ctx, sent.UserID)
		if err != nil || user.Email == "" {
			return nil
		}
		if err := uc.email.Send(ctx, user.Email, sent.Title, sent.Body); err != nil {
			logger.WithFields(logger.Fields{
				"user_id": sent.UserID,
				"type":    sent.Type,
			}).Warnf("Email notification failed: %v", err)
		}
		return nil
	})

	g.Wait()
	return notification, nil
}

// notifyQuietly is Notify for follow-up effects that must not fail the
// operation that triggered them.
func (uc *NotificationUseCase) notifyQuietly(ctx context.Context, input NotifyInput) {
	if _, err := uc.Notify(ctx, input); err != nil {
		logger.Error("Failed to notify %s (%s): %v", input.UserID, input.Type, err)
	}
}

func (uc *NotificationUseCase) List(ctx context.Context, sess session.Session, unreadOnly bool, limit, offset int) ([]*entity.Notification, int64, error) {
	if err := requireSession(sess); err != nil {
		return nil, 0, err
	}
	return uc.notificationRepo.ListByUserID(ctx, sess.UserID, unreadOnly, limit, offset)
}

func (uc *NotificationUseCase) MarkRead(ctx context.Context, sess session.Session, notificationID string) error {
	if err := requireSession(sess); err != nil {
		return err
	}

	notification, err := uc.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if notification.UserID != sess.UserID {
		return errors.Forbidden("You can only update your own notifications", nil)
	}
	if notification.Read {
		return nil
	}
	return uc.notificationRepo.MarkRead(ctx, notificationID)
}
