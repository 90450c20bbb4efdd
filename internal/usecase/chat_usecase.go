package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/infrastructure/ratelimit"
	ws "sakanect/internal/infrastructure/websocket"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
)

type ChatUseCase struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	pusher           RealtimePusher
	rateLimiter      RateLimiter
}

func NewChatUseCase(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	pusher RealtimePusher,
	rateLimiter RateLimiter,
) *ChatUseCase {
	if pusher == nil {
		pusher = noopPusher{}
	}
	if rateLimiter == nil {
		rateLimiter = allowAll{}
	}
	return &ChatUseCase{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		pusher:           pusher,
		rateLimiter:      rateLimiter,
	}
}

type CreateConversationInput struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	ListingID     string `json:"listing_id"`
}

type SendMessageInput struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// CreateConversation opens the thread between the caller and another user,
// or returns the existing one.
func (uc *ChatUseCase) CreateConversation(ctx context.Context, sess session.Session, input CreateConversationInput) (*entity.Conversation, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if input.ParticipantID == "" || input.ParticipantID == sess.UserID {
		return nil, errors.BadRequest("A conversation needs another participant", nil)
	}
	if err := checkRate(uc.rateLimiter, sess.UserID, ratelimit.ActionCreateConversation); err != nil {
		return nil, err
	}

	return uc.EnsureConversation(ctx, sess.UserID, input.ParticipantID, input.ListingID)
}

// EnsureConversation returns the thread between two users, creating it when
// absent. Concurrent callers converge on the same document.
func (uc *ChatUseCase) EnsureConversation(ctx context.Context, userA, userB, listingID string) (*entity.Conversation, error) {
	id := entity.ConversationIDFor(userA, userB)

	conversation, err := uc.conversationRepo.GetByID(ctx, id)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, errors.CodeNotFound) {
		return nil, err
	}

	conversation = &entity.Conversation{
		ID:           id,
		Participants: []string{userA, userB},
		ListingID:    listingID,
		UnreadBy:     []string{},
	}
	if err := uc.conversationRepo.Create(ctx, conversation); err != nil {
		if errors.Is(err, errors.CodeConflict) {
			return uc.conversationRepo.GetByID(ctx, id)
		}
		return nil, err
	}

	logger.Debug("Conversation %s created for %s and %s", id, userA, userB)
	return conversation, nil
}

func (uc *ChatUseCase) ListConversations(ctx context.Context, sess session.Session, limit, offset int) ([]*entity.Conversation, int64, error) {
	if err := requireSession(sess); err != nil {
		return nil, 0, err
	}
	return uc.conversationRepo.ListByUserID(ctx, sess.UserID, limit, offset)
}

// GetParticipantConversation loads a conversation the caller belongs to.
func (uc *ChatUseCase) GetParticipantConversation(ctx context.Context, sess session.Session, conversationID string) (*entity.Conversation, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}

	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(sess.UserID) {
		return nil, errors.Forbidden("User is not a participant in this conversation", nil)
	}
	return conversation, nil
}

func (uc *ChatUseCase) GetMessages(ctx context.Context, sess session.Session, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	if _, err := uc.GetParticipantConversation(ctx, sess, conversationID); err != nil {
		return nil, 0, err
	}
	return uc.conversationRepo.GetMessages(ctx, conversationID, limit, offset)
}

func (uc *ChatUseCase) SendMessage(ctx context.Context, sess session.Session, conversationID string, input SendMessageInput) (*entity.Message, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.BadRequest("Message text is required", nil)
	}
	if err := checkRate(uc.rateLimiter, sess.UserID, ratelimit.ActionSendMessage); err != nil {
		return nil, err
	}

	conversation, err := uc.GetParticipantConversation(ctx, sess, conversationID)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		ConversationID: conversationID,
		SenderID:       sess.UserID,
		Text:           text,
		Type:           entity.MessageTypeText,
	}
	if err := uc.PostMessage(ctx, conversation, message); err != nil {
		return nil, err
	}
	return message, nil
}

// SendSystemMessage writes a message from the system sender. Every
// participant sees it as unread.
func (uc *ChatUseCase) SendSystemMessage(ctx context.Context, conversationID, text string, metadata map[string]interface{}) (*entity.Message, error) {
	conversation, err := uc.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		ConversationID: conversationID,
		SenderID:       entity.SystemSenderID,
		Text:           text,
		Type:           entity.MessageTypeSystem,
		Metadata:       metadata,
	}
	if err := uc.PostMessage(ctx, conversation, message); err != nil {
		return nil, err
	}
	return message, nil
}

// PostMessage appends message to the conversation, refreshes the
// last-message cache and unread set, and pushes it to the other side.
func (uc *ChatUseCase) PostMessage(ctx context.Context, conversation *entity.Conversation, message *entity.Message) error {
	if message.ID == "" {
		message.ID = ulid.Make().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.ConversationID = conversation.ID

	if err := uc.conversationRepo.CreateMessage(ctx, message); err != nil {
		return err
	}

	recipients := conversation.Recipients(message.SenderID)
	if err := uc.conversationRepo.RecordMessage(ctx, conversation.ID, message.Text, message.CreatedAt, recipients); err != nil {
		logger.Error("Failed to update conversation %s after message %s: %v", conversation.ID, message.ID, err)
		return err
	}

	for _, participant := range recipients {
		if err := uc.pusher.Push(participant, ws.EventNewMessage, message); err != nil {
			logger.Warn("Push of message %s to %s failed: %v", message.ID, participant, err)
		}
	}
	return nil
}

// mirrorOfferStatus keeps the offer message's display status in line with
// the offer document.
func (uc *ChatUseCase) mirrorOfferStatus(ctx context.Context, offer *entity.Offer) {
	if offer.MessageID == "" {
		return
	}
	message, err := uc.conversationRepo.GetMessageByID(ctx, offer.ConversationID, offer.MessageID)
	if err != nil {
		logger.Warn("Offer message %s not found for offer %s: %v", offer.MessageID, offer.ID, err)
		return
	}
	if message.OfferStatus == offer.Status {
		return
	}
	message.OfferStatus = offer.Status
	if err := uc.conversationRepo.UpdateMessage(ctx, message); err != nil {
		logger.Warn("Failed to mirror status of offer %s: %v", offer.ID, err)
	}
}

func (uc *ChatUseCase) MarkRead(ctx context.Context, sess session.Session, conversationID string) error {
	conversation, err := uc.GetParticipantConversation(ctx, sess, conversationID)
	if err != nil {
		return err
	}
	return uc.conversationRepo.MarkRead(ctx, conversation.ID, sess.UserID)
}

func (uc *ChatUseCase) displayName(ctx context.Context, userID string) string {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return (*entity.User)(nil).Name()
	}
	return user.Name()
}
