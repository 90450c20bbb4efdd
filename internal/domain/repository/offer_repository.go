package repository

import (
	"context"

	"sakanect/internal/domain/entity"
)

type OfferRepository interface {
	Create(ctx context.Context, offer *entity.Offer) error
	GetByID(ctx context.Context, id string) (*entity.Offer, error)
	Update(ctx context.Context, offer *entity.Offer) error
	// Transition moves the offer from one status to another atomically. It
	// fails with INVALID_STATE when the stored status is no longer from.
	Transition(ctx context.Context, id, from, to string, mutate func(*entity.Offer)) (*entity.Offer, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.Offer, error)
}

type OfferSagaRepository interface {
	// Claim creates the saga or takes it over when Claimable. It returns the
	// stored saga when it is already completed, and CONFLICT when another
	// caller holds a live lease.
	Claim(ctx context.Context, saga *entity.AcceptSaga) (*entity.AcceptSaga, error)
	Save(ctx context.Context, saga *entity.AcceptSaga) error
	GetByID(ctx context.Context, id string) (*entity.AcceptSaga, error)
	// ListDeferred returns deferred sagas on listingID, or on every listing
	// when listingID is empty, oldest first.
	ListDeferred(ctx context.Context, listingID string) ([]*entity.AcceptSaga, error)
}
