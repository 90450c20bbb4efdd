package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/oklog/ulid/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

type firestoreConversationRepository struct {
	client *firestore.Client
}

func NewFirestoreConversationRepository(client *firestore.Client) repository.ConversationRepository {
	return &firestoreConversationRepository{
		client: client,
	}
}

func (r *firestoreConversationRepository) Create(ctx context.Context, conversation *entity.Conversation) error {
	if conversation.ID == "" && len(conversation.Participants) == 2 {
		conversation.ID = entity.ConversationIDFor(conversation.Participants[0], conversation.Participants[1])
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

	_, err := r.client.Collection("conversations").Doc(conversation.ID).Create(ctx, conversation)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return errors.Conflict("Conversation already exists")
		}
		return errors.Internal("Failed to create conversation", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetByID(ctx context.Context, id string) (*entity.Conversation, error) {
	doc, err := r.client.Collection("conversations").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Conversation", err)
		}
		return nil, errors.Internal("Failed to get conversation", err)
	}

	var conversation entity.Conversation
	if err := doc.DataTo(&conversation); err != nil {
		return nil, errors.Internal("Failed to parse conversation data", err)
	}

	return &conversation, nil
}

func (r *firestoreConversationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Conversation, int64, error) {
	query := r.client.Collection("conversations").
		Where("participants", "array-contains", userID).
		OrderBy("lastMessageAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching conversations for user %s: %v", userID, err)
		return nil, 0, errors.Internal("Failed to fetch conversations", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	conversations := make([]*entity.Conversation, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var conversation entity.Conversation
		if err := doc.DataTo(&conversation); err != nil {
			log.Printf("Error parsing conversation data for user %s: %v", userID, err)
			continue // Skip bad data instead of failing
		}
		conversations = append(conversations, &conversation)
	}

	return conversations, total, nil
}

// RecordMessage reads lastMessageAt inside a transaction so an older message
// never replaces a newer preview; unreadBy is merged with ArrayUnion.
func (r *firestoreConversationRepository) RecordMessage(ctx context.Context, conversationID, text string, at time.Time, unreadBy []string) error {
	docRef := r.client.Collection("conversations").Doc(conversationID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Conversation", err)
			}
			return err
		}

		var current entity.Conversation
		if err := doc.DataTo(&current); err != nil {
			return err
		}

		updates := []firestore.Update{{Path: "updatedAt", Value: time.Now()}}
		if len(unreadBy) > 0 {
			updates = append(updates, firestore.Update{Path: "unreadBy", Value: firestore.ArrayUnion(stringValues(unreadBy)...)})
		}
		if !at.Before(current.LastMessageAt) {
			updates = append(updates,
				firestore.Update{Path: "lastMessage", Value: text},
				firestore.Update{Path: "lastMessageAt", Value: at},
			)
		}
		return tx.Update(docRef, updates)
	})
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return err
		}
		return errors.Internal("Failed to update conversation", err)
	}
	return nil
}

func (r *firestoreConversationRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	_, err := r.client.Collection("conversations").Doc(conversationID).Update(ctx, []firestore.Update{
		{Path: "unreadBy", Value: firestore.ArrayRemove(userID)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Conversation", err)
		}
		return errors.Internal("Failed to mark conversation read", err)
	}
	return nil
}

func stringValues(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (r *firestoreConversationRepository) messages(conversationID string) *firestore.CollectionRef {
	return r.client.Collection("conversations").Doc(conversationID).Collection("messages")
}

// CreateMessage assigns ULIDs so message ids sort in send order.
func (r *firestoreConversationRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = ulid.Make().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	_, err := r.messages(message.ConversationID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreConversationRepository) GetMessageByID(ctx context.Context, conversationID, messageID string) (*entity.Message, error) {
	doc, err := r.messages(conversationID).Doc(messageID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreConversationRepository) UpdateMessage(ctx context.Context, message *entity.Message) error {
	_, err := r.messages(message.ConversationID).Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to update message", err)
	}
	return nil
}

func (r *firestoreConversationRepository) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.messages(conversationID).OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		log.Printf("Firestore error while fetching messages for conversation %s: %v", conversationID, err)
		return nil, 0, errors.Internal("Failed to fetch messages", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	messages := make([]*entity.Message, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}
