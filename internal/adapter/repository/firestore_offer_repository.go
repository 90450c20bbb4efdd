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
)

type firestoreOfferRepository struct {
	client *firestore.Client
}

func NewFirestoreOfferRepository(client *firestore.Client) repository.OfferRepository {
	return &firestoreOfferRepository{
		client: client,
	}
}

func (r *firestoreOfferRepository) Create(ctx context.Context, offer *entity.Offer) error {
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}

	now := time.Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	_, err := r.client.Collection("offers").Doc(offer.ID).Set(ctx, offer)
	if err != nil {
		return errors.Internal("Failed to create offer", err)
	}

	return nil
}

func (r *firestoreOfferRepository) GetByID(ctx context.Context, id string) (*entity.Offer, error) {
	doc, err := r.client.Collection("offers").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Offer", err)
		}
		return nil, errors.Internal("Failed to get offer", err)
	}

	var offer entity.Offer
	if err := doc.DataTo(&offer); err != nil {
		return nil, errors.Internal("Failed to parse offer data", err)
	}

	return &offer, nil
}

func (r *firestoreOfferRepository) Update(ctx context.Context, offer *entity.Offer) error {
	offer.UpdatedAt = time.Now()

	_, err := r.client.Collection("offers").Doc(offer.ID).Set(ctx, offer)
	if err != nil {
		return errors.Internal("Failed to update offer", err)
	}

	return nil
}

func (r *firestoreOfferRepository) Transition(ctx context.Context, id, from, to string, mutate func(*entity.Offer)) (*entity.Offer, error) {
	var updated entity.Offer

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := r.client.Collection("offers").Doc(id)
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Offer", err)
			}
			return err
		}

		var offer entity.Offer
		if err := doc.DataTo(&offer); err != nil {
			return err
		}
		if offer.Status != from {
			return errors.InvalidState(fmt.Sprintf("Offer is %s, expected %s", offer.Status, from))
		}

		offer.Status = to
		offer.UpdatedAt = time.Now()
		if mutate != nil {
			mutate(&offer)
		}
		updated = offer

		return tx.Set(docRef, offer)
	})
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.Internal("Failed to update offer status", err)
	}

	return &updated, nil
}

func (r *firestoreOfferRepository) ListByConversation(ctx context.Context, conversationID string) ([]*entity.Offer, error) {
	iter := r.client.Collection("offers").
		Where("conversationId", "==", conversationID).
		OrderBy("createdAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var offers []*entity.Offer
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate offers", err)
		}

		var offer entity.Offer
		if err := doc.DataTo(&offer); err != nil {
			return nil, errors.Internal("Failed to parse offer data", err)
		}
		offers = append(offers, &offer)
	}

	return offers, nil
}
