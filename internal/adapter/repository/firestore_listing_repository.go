package repository

import (
	"context"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

const listingsCollection = "listings"

type firestoreListingRepository struct {
	client *firestore.Client
}

func NewFirestoreListingRepository(client *firestore.Client) repository.ListingRepository {
	return &firestoreListingRepository{
		client: client,
	}
}

func (r *firestoreListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}

	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	listing.SetQuantity(listing.QuantityKg)

	_, err := r.client.Collection(listingsCollection).Doc(listing.ID).Set(ctx, listing)
	if err != nil {
		return errors.Internal("Failed to create listing", err)
	}

	return nil
}

func (r *firestoreListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	doc, err := r.client.Collection(listingsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Listing", err)
		}
		return nil, errors.Internal("Failed to get listing", err)
	}

	var listing entity.Listing
	if err := doc.DataTo(&listing); err != nil {
		return nil, errors.Internal("Failed to parse listing data", err)
	}

	return &listing, nil
}

func (r *firestoreListingRepository) List(ctx context.Context, filter entity.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	query := r.client.Collection(listingsCollection).Query
	if filter.OwnerID != "" {
		query = query.Where("ownerId", "==", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status", "==", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category", "==", filter.Category)
	}
	if filter.Region != "" {
		query = query.Where("location.region", "==", filter.Region)
	}
	query = query.OrderBy("createdAt", firestore.Desc)

	allDocs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, 0, errors.Internal("Failed to fetch listings", err)
	}

	total := int64(len(allDocs))
	start, end := utils.Window(len(allDocs), limit, offset)

	listings := make([]*entity.Listing, 0, end-start)
	for _, doc := range allDocs[start:end] {
		var listing entity.Listing
		if err := doc.DataTo(&listing); err != nil {
			log.Printf("Error parsing listing %s: %v", doc.Ref.ID, err)
			continue
		}
		listings = append(listings, &listing)
	}

	return listings, total, nil
}

func (r *firestoreListingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	listing.UpdatedAt = time.Now()
	listing.SetQuantity(listing.QuantityKg)

	_, err := r.client.Collection(listingsCollection).Doc(listing.ID).Set(ctx, listing)
	if err != nil {
		return errors.Internal("Failed to update listing", err)
	}

	return nil
}

func (r *firestoreListingRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection(listingsCollection).Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete listing", err)
	}
	return nil
}

// DeductStock reads, checks the floor and writes inside one Firestore
// transaction, so two coordinators can never both take the last kilograms.
func (r *firestoreListingRepository) DeductStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	return r.adjustStock(ctx, id, -qty)
}

func (r *firestoreListingRepository) RestoreStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	return r.adjustStock(ctx, id, qty)
}

func (r *firestoreListingRepository) adjustStock(ctx context.Context, id string, delta int) (*entity.Listing, error) {
	var updated entity.Listing

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := r.client.Collection(listingsCollection).Doc(id)
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return errors.NotFound("Listing", err)
			}
			return err
		}

		var listing entity.Listing
		if err := doc.DataTo(&listing); err != nil {
			return err
		}

		if delta < 0 && !listing.CanSupply(-delta) {
			return errors.StockUnavailable(id, -delta, listing.QuantityKg)
		}

		listing.SetQuantity(listing.QuantityKg + delta)
		listing.UpdatedAt = time.Now()
		updated = listing

		return tx.Update(docRef, []firestore.Update{
			{Path: "quantityKg", Value: listing.QuantityKg},
			{Path: "status", Value: listing.Status},
			{Path: "updatedAt", Value: listing.UpdatedAt},
		})
	})
	if err != nil {
		if _, ok := err.(*errors.AppError); ok {
			return nil, err
		}
		return nil, errors.Internal("Failed to adjust listing stock", err)
	}

	return &updated, nil
}
