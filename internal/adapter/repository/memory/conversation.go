package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

type ConversationRepository struct {
	mu            sync.Mutex
	conversations map[string]entity.Conversation
	messages      map[string][]entity.Message
}

var _ repository.ConversationRepository = (*ConversationRepository)(nil)

func NewConversationRepository() *ConversationRepository {
	return &ConversationRepository{
		conversations: make(map[string]entity.Conversation),
		messages:      make(map[string][]entity.Message),
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conversation.ID == "" && len(conversation.Participants) == 2 {
		conversation.ID = entity.ConversationIDFor(conversation.Participants[0], conversation.Participants[1])
	}
	if _, exists := r.conversations[conversation.ID]; exists {
		return errors.Conflict("Conversation already exists")
	}

	now := time.Now()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now
	if conversation.LastMessageAt.IsZero() {
		conversation.LastMessageAt = now
	}
	if conversation.UnreadBy == nil {
		conversation.UnreadBy = []string{}
	}
	r.conversations[conversation.ID] = cloneConversation(*conversation)
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return nil, errors.NotFound("Conversation", nil)
	}
	c := cloneConversation(conversation)
	return &c, nil
}

func (r *ConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Conversation
	for _, conv := range r.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		c := cloneConversation(conv)
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].LastMessageAt.After(matched[j].LastMessageAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *ConversationRepository) RecordMessage(ctx context.Context, conversationID, text string, at time.Time, unreadBy []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	conversation.AddUnread(unreadBy...)
	if !at.Before(conversation.LastMessageAt) {
		conversation.LastMessage = text
		conversation.LastMessageAt = at
	}
	conversation.UpdatedAt = time.Now()
	r.conversations[conversationID] = conversation
	return nil
}

func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conversation, ok := r.conversations[conversationID]
	if !ok {
		return errors.NotFound("Conversation", nil)
	}
	conversation.MarkRead(userID)
	conversation.UpdatedAt = time.Now()
	r.conversations[conversationID] = conversation
	return nil
}

func (r *ConversationRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if message.ID == "" {
		message.ID = ulid.Make().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], *message)
	return nil
}

func (r *ConversationRepository) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.messages[conversationID] {
		if m.ID == messageID {
			message := m
			return &message, nil
		}
	}
	return nil, errors.NotFound("Message", nil)
}

func (r *ConversationRepository) UpdateMessage(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.messages[message.ConversationID]
	for i := range msgs {
		if msgs[i].ID == message.ID {
			msgs[i] = *message
			return nil
		}
	}
	return errors.NotFound("Message", nil)
}

// GetMessages returns newest first, like the Firestore implementation.
func (r *ConversationRepository) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msgs := r.messages[conversationID]
	ordered := make([]*entity.Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		message := msgs[i]
		ordered = append(ordered, &message)
	}

	start, end := utils.Window(len(ordered), limit, offset)
	return ordered[start:end], int64(len(ordered)), nil
}

func cloneConversation(c entity.Conversation) entity.Conversation {
	c.Participants = append([]string(nil), c.Participants...)
	c.UnreadBy = append([]string{}, c.UnreadBy...)
	return c
}
