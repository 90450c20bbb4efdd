package usecase

import (
	"context"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/infrastructure/lock"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
)

// InventoryUseCase reconciles listing stock. Every change to one listing
// goes through its keyed lock in this process, and the store applies the
// floor check atomically for everyone else.
type InventoryUseCase struct {
	store repository.StockStore
	locks *lock.KeyedMutex
}

func NewInventoryUseCase(store repository.StockStore, locks *lock.KeyedMutex) *InventoryUseCase {
	if locks == nil {
		locks = lock.NewKeyedMutex()
	}
	return &InventoryUseCase{
		store: store,
		locks: locks,
	}
}

// Lock serializes work on one listing. Reserve and Release expect the
// caller to hold it.
func (uc *InventoryUseCase) Lock(ctx context.Context, listingID string) (func(), error) {
	unlock, err := uc.locks.Lock(ctx, listingID)
	if err != nil {
		return nil, errors.Internal("Timed out waiting for listing lock", err)
	}
	return unlock, nil
}

// Reserve removes quantityKg from the listing, flipping it to sold_out at
// zero. It fails with STOCK_UNAVAILABLE and changes nothing when the listing
// cannot cover the request.
func (uc *InventoryUseCase) Reserve(ctx context.Context, listingID string, quantityKg int) (*entity.Listing, error) {
	if quantityKg <= 0 {
		return nil, errors.BadRequest("Quantity must be greater than zero", nil)
	}

	listing, err := uc.store.DeductStock(ctx, listingID, quantityKg)
	if err != nil {
		return nil, err
	}

	fields := logger.Fields{
		"listing_id":  listingID,
		"deducted_kg": quantityKg,
		"quantity_kg": listing.QuantityKg,
	}
	if listing.Status == entity.ListingStatusSoldOut {
		logger.WithFields(fields).Info("Listing sold out")
	} else {
		logger.WithFields(fields).Debug("Listing stock reserved")
	}
	return listing, nil
}

// Release gives quantityKg back, reopening a sold-out listing.
func (uc *InventoryUseCase) Release(ctx context.Context, listingID string, quantityKg int) (*entity.Listing, error) {
	if quantityKg <= 0 {
		return nil, errors.BadRequest("Quantity must be greater than zero", nil)
	}

	listing, err := uc.store.RestoreStock(ctx, listingID, quantityKg)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"listing_id":  listingID,
		"restored_kg": quantityKg,
		"quantity_kg": listing.QuantityKg,
	}).Info("Listing stock restored")
	return listing, nil
}
