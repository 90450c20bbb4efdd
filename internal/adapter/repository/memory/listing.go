package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
	"sakanect/pkg/utils"
)

type ListingRepository struct {
	mu       sync.Mutex
	listings map[string]entity.Listing
}

var _ repository.ListingRepository = (*ListingRepository)(nil)

func NewListingRepository() *ListingRepository {
	return &ListingRepository{listings: make(map[string]entity.Listing)}
}

func (r *ListingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	listing.SetQuantity(listing.QuantityKg)

	r.listings[listing.ID] = *listing
	return nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	return &listing, nil
}

func (r *ListingRepository) List(ctx context.Context, filter entity.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.Listing
	for _, l := range r.listings {
		if filter.OwnerID != "" && l.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if filter.Category != "" && l.Category != filter.Category {
			continue
		}
		if filter.Region != "" && l.Location.Region != filter.Region {
			continue
		}
		listing := l
		matched = append(matched, &listing)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	start, end := utils.Window(len(matched), limit, offset)
	return matched[start:end], int64(len(matched)), nil
}

func (r *ListingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.listings[listing.ID]; !ok {
		return errors.NotFound("Listing", nil)
	}
	listing.UpdatedAt = time.Now()
	listing.SetQuantity(listing.QuantityKg)
	r.listings[listing.ID] = *listing
	return nil
}

func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listings, id)
	return nil
}

func (r *ListingRepository) DeductStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	return r.adjust(ctx, id, -qty)
}

func (r *ListingRepository) RestoreStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	return r.adjust(ctx, id, qty)
}

func (r *ListingRepository) adjust(ctx context.Context, id string, delta int) (*entity.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Internal("Stock update cancelled", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	listing, ok := r.listings[id]
	if !ok {
		return nil, errors.NotFound("Listing", nil)
	}
	if delta < 0 && !listing.CanSupply(-delta) {
		return nil, errors.StockUnavailable(id, -delta, listing.QuantityKg)
	}

	listing.SetQuantity(listing.QuantityKg + delta)
	listing.UpdatedAt = time.Now()
	r.listings[id] = listing
	return &listing, nil
}
