package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
)

type firestoreOfferSagaRepository struct {
	client *firestore.Client
}

func NewFirestoreOfferSagaRepository(client *firestore.Client) repository.OfferSagaRepository {
	return &firestoreOfferSagaRepository{
		client: client,
	}
}

func (r *firestoreOfferSagaRepository) Claim(ctx context.Context, saga *entity.AcceptSaga) (*entity.AcceptSaga, error) {
	var claimed entity.AcceptSaga

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := r.client.Collection("offer_sagas").Doc(saga.ID)
		now := time.Now()

		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			claimed = *saga
			claimed.Status = entity.SagaStatusRunning
			claimed.CreatedAt = now
			claimed.UpdatedAt = now
			return tx.Create(docRef, claimed)
		}

		var stored entity.AcceptSaga
		if err := doc.DataTo(&stored); err != nil {
			return err
		}
		if stored.Done() {
			claimed = stored
			return nil
		}
		if !stored.Claimable(now) {
			return errors.Conflict("Offer is already being accepted")
		}

		stored.Status = entity.SagaStatusRunning
		stored.AcceptedBy = saga.AcceptedBy
		stored.LeaseUntil = saga.LeaseUntil
		stored.LastError = ""
		stored.UpdatedAt = now
		claimed = stored
		return tx.Set(docRef, stored)
	})
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.Internal("Failed to claim offer saga", err)
	}

	return &claimed, nil
}

func (r *firestoreOfferSagaRepository) Save(ctx context.Context, saga *entity.AcceptSaga) error {
	saga.UpdatedAt = time.Now()

	_, err := r.client.Collection("offer_sagas").Doc(saga.ID).Set(ctx, saga)
	if err != nil {
		return errors.Internal("Failed to save offer saga", err)
	}
	return nil
}

func (r *firestoreOfferSagaRepository) GetByID(ctx context.Context, id string) (*entity.AcceptSaga, error) {
	doc, err := r.client.Collection("offer_sagas").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Offer saga", err)
		}
		return nil, errors.Internal("Failed to get offer saga", err)
	}

	var saga entity.AcceptSaga
	if err := doc.DataTo(&saga); err != nil {
		return nil, errors.Internal("Failed to parse offer saga", err)
	}
	return &saga, nil
}

func (r *firestoreOfferSagaRepository) ListDeferred(ctx context.Context, listingID string) ([]*entity.AcceptSaga, error) {
	query := r.client.Collection("offer_sagas").Where("status", "==", entity.SagaStatusDeferred)
	if listingID != "" {
		query = query.Where("listingId", "==", listingID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var sagas []*entity.AcceptSaga
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to list deferred offer sagas", err)
		}

		var saga entity.AcceptSaga
		if err := doc.DataTo(&saga); err != nil {
			return nil, errors.Internal("Failed to parse offer saga", err)
		}
		sagas = append(sagas, &saga)
	}

	sort.Slice(sagas, func(i, j int) bool {
		return sagas[i].CreatedAt.Before(sagas[j].CreatedAt)
	})
	return sagas, nil
}
