package repository

import (
	"context"

	"sakanect/internal/domain/entity"
)

type TransactionRepository interface {
	Create(ctx context.Context, transaction *entity.Transaction) error
	GetByID(ctx context.Context, id string) (*entity.Transaction, error)
	Update(ctx context.Context, transaction *entity.Transaction) error
	// Transition is a conditional status update, see OfferRepository.
	Transition(ctx context.Context, id, from, to string, mutate func(*entity.Transaction)) (*entity.Transaction, error)
	ListByListing(ctx context.Context, listingID, status string) ([]*entity.Transaction, error)
	ListByUserID(ctx context.Context, userID string, role string, status string, limit, offset int) ([]*entity.Transaction, int64, error)
}
