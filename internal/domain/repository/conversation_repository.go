package repository

import (
	"context"
	"time"

	"sakanect/internal/domain/entity"
)

type ConversationRepository interface {
	// Create fails with CONFLICT when a conversation with the same id exists.
	Create(ctx context.Context, conversation *entity.Conversation) error
	GetByID(ctx context.Context, id string) (*entity.Conversation, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error)
	// RecordMessage adds unreadBy to the unread set and moves the
	// last-message cache to text when at is not older than the cached one.
	// Other fields are left as stored.
	RecordMessage(ctx context.Context, conversationID, text string, at time.Time, unreadBy []string) error
	// MarkRead removes userID from the unread set.
	MarkRead(ctx context.Context, conversationID, userID string) error

	CreateMessage(ctx context.Context, message *entity.Message) error
	GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error)
	UpdateMessage(ctx context.Context, message *entity.Message) error
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error)
}
