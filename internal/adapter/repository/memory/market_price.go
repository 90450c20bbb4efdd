package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
)

type MarketPriceRepository struct {
	mu     sync.Mutex
	prices []entity.MarketPrice
}

var _ repository.MarketPriceRepository = (*MarketPriceRepository)(nil)

func NewMarketPriceRepository() *MarketPriceRepository {
	return &MarketPriceRepository{}
}

func (r *MarketPriceRepository) Create(ctx context.Context, price *entity.MarketPrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if price.ID == "" {
		price.ID = uuid.New().String()
	}
	if price.RecordedAt.IsZero() {
		price.RecordedAt = time.Now()
	}
	r.prices = append(r.prices, *price)
	return nil
}

func (r *MarketPriceRepository) ListLatest(ctx context.Context, crop, region string, limit int) ([]*entity.MarketPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*entity.MarketPrice
	for _, p := range r.prices {
		if (crop != "" && p.Crop != crop) || (region != "" && p.Region != region) {
			continue
		}
		price := p
		matched = append(matched, &price)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].RecordedAt.After(matched[j].RecordedAt)
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
