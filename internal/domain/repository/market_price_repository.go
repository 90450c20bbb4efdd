package repository

import (
	"context"

	"sakanect/internal/domain/entity"
)

type MarketPriceRepository interface {
	Create(ctx context.Context, price *entity.MarketPrice) error
	// ListLatest returns snapshots newest first; empty crop or region match all.
	ListLatest(ctx context.Context, crop, region string, limit int) ([]*entity.MarketPrice, error)
}
