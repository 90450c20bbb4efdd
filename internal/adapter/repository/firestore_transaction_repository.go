package repository

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

type firestoreTransactionRepository struct {
	client *firestore.Client
}

func NewFirestoreTransactionRepository(client *firestore.Client) repository.TransactionRepository {
	return &firestoreTransactionRepository{
		client: client,
	}
}

func (r *firestoreTransactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	// Generate ID if not provided
	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}

	now := time.Now()
	transaction.CreatedAt = now
	transaction.UpdatedAt = now

	_, err := r.client.Collection("transactions").Doc(transaction.ID).Set(ctx, transaction)
	if err != nil {
		return errors.Internal("Failed to create transaction", err)
	}

	return nil
}

func (r *firestoreTransactionRepository) GetByID(ctx context.Context, id string) (*entity.Transaction, error) {
	doc, err := r.client.Collection("transactions").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Transaction", err)
		}
		return nil, errors.Internal("Failed to get transaction", err)
	}

	var transaction entity.Transaction
	if err := doc.DataTo(&transaction); err != nil {
		return nil, errors.Internal("Failed to parse transaction data", err)
	}

	return &transaction, nil
}

func (r *firestoreTransactionRepository) Update(ctx context.Context, transaction *entity.Transaction) error {
	transaction.UpdatedAt = time.Now()

	_, err := r.client.Collection("transactions").Doc(transaction.ID).Set(ctx, transaction)
	if err != nil {
		return errors.Internal("Failed to update transaction", err)
	}

	return nil
}

func (r *firestoreTransactionRepository) Transition(ctx context.Context, id, from, to string, mutate func(*entity.Transaction)) (*entity.Transaction, error) {
	var updated entity.Transaction

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := r.client.Collection("transactions").Doc(id)
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Transaction", err)
			}
			return err
		}

		var transaction entity.Transaction
		if err := doc.DataTo(&transaction); err != nil {
			return err
		}
		if transaction.Status != from {
			return errors.InvalidState(fmt.Sprintf("Transaction is %s, expected %s", transaction.Status, from))
		}

		transaction.MarkStatus(to, time.Now())
		if mutate != nil {
			mutate(&transaction)
		}
		updated = transaction

		return tx.Set(docRef, transaction)
	})
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.Internal("Failed to update transaction status", err)
	}

	return &updated, nil
}

func (r *firestoreTransactionRepository) ListByListing(ctx context.Context, listingID, status string) ([]*entity.Transaction, error) {
	query := r.client.Collection("transactions").Where("cropId", "==", listingID)
	if status != "" {
		query = query.Where("status", "==", status)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var transactions []*entity.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate transactions", err)
		}

		var transaction entity.Transaction
		if err := doc.DataTo(&transaction); err != nil {
			return nil, errors.Internal("Failed to parse transaction data", err)
		}
		transactions = append(transactions, &transaction)
	}

	return transactions, nil
}

func (r *firestoreTransactionRepository) ListByUserID(ctx context.Context, userID string, role string, status string, limit, offset int) ([]*entity.Transaction, int64, error) {
	// Determine the field to query based on role
	var field string
	switch role {
	case "buyer":
		field = "buyerId"
	case "seller":
		field = "sellerId"
	default:
		return nil, 0, errors.BadRequest("Invalid role", nil)
	}

	query := r.client.Collection("transactions").Where(field, "==", userID)
	if status != "" {
		query = query.Where("status", "==", status)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to fetch transactions", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	transactions := make([]*entity.Transaction, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var transaction entity.Transaction
		if err := doc.DataTo(&transaction); err != nil {
			return nil, 0, errors.Internal("Failed to parse transaction data", err)
		}
		transactions = append(transactions, &transaction)
	}

	return transactions, total, nil
}
