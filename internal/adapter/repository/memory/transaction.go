package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

type TransactionRepository struct {
	mu           sync.Mutex
	transactions map[string]entity.Transaction
}

var _ repository.TransactionRepository = (*TransactionRepository)(nil)

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{transactions: make(map[string]entity.Transaction)}
}

func (r *TransactionRepository) Create(ctx context.Context, transaction *entity.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if transaction.ID == "" {
		transaction.ID = uuid.New().String()
	}
	now := time.Now()
	transaction.CreatedAt = now
	transaction.UpdatedAt = now
	r.transactions[transaction.ID] = *transaction
	return nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	transaction, ok := r.transactions[id]
	if !ok {
		return nil, errors.NotFound("Transaction", nil)
	}
	return &transaction, nil
}

func (r *TransactionRepository) Update(ctx context.Context, transaction *entity.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	transaction.UpdatedAt = time.Now()
	r.transactions[transaction.ID] = *transaction
	return nil
}

func (r *TransactionRepository) Transition(ctx context.Context, id, from, to string, mutate func(*entity.Transaction)) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	transaction, ok := r.transactions[id]
	if !ok {
		return nil, errors.NotFound("Transaction", nil)
	}
	if transaction.Status != from {
		return nil, errors.InvalidState(fmt.Sprintf("Transaction is %s, expected %s", transaction.Status, from))
	}

	transaction.MarkStatus(to, time.Now())
	if mutate != nil {
		mutate(&transaction)
	}
	r.transactions[id] = transaction
	return &transaction, nil
}

func (r *TransactionRepository) ListByListing(ctx context.Context, listingID, status string) ([]*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var transactions []*entity.Transaction
	for _, t := range r.transactions {
		if t.CropID != listingID || (status != "" && t.Status != status) {
			continue
		}
		transaction := t
		transactions = append(transactions, &transaction)
	}
	sort.Slice(transactions, func(i, j int) bool {
		return transactions[i].CreatedAt.Before(transactions[j].CreatedAt)
	})
	return transactions, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID string, role string, status string, limit, offset int) ([]*entity.Transaction, int64, error) {
	if role != "buyer" && role != "seller" {
		return nil, 0, errors.BadRequest("Invalid role", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Transaction
	for _, t := range r.transactions {
		owner := t.BuyerID
		if role == "seller" {
			owner = t.SellerID
		}
		if owner != userID || (status != "" && t.Status != status) {
			continue
		}
		transaction := t
		matched = append(matched, &transaction)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}
