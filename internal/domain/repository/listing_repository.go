package repository

import (
	"context"

	"sakanect/internal/domain/entity"
)

// StockStore is the part of a listing store the offer flow depends on.
// DeductStock must be atomic: it either removes qty kg and returns the
// updated listing, or fails with a STOCK_UNAVAILABLE error and changes
// nothing.
type StockStore interface {
	GetByID(ctx context.Context, id string) (*entity.Listing, error)
	DeductStock(ctx context.Context, id string, qty int) (*entity.Listing, error)
	RestoreStock(ctx context.Context, id string, qty int) (*entity.Listing, error)
}

type ListingRepository interface {
	StockStore
	Create(ctx context.Context, listing *entity.Listing) error
	List(ctx context.Context, filter entity.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error)
	Update(ctx context.Context, listing *entity.Listing) error
	Delete(ctx context.Context, id string) error
}
