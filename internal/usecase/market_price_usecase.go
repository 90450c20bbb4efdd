package usecase

import (
	"context"
	"strings"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
)

type MarketPriceUseCase struct {
	priceRepo repository.MarketPriceRepository
}

func NewMarketPriceUseCase(priceRepo repository.MarketPriceRepository) *MarketPriceUseCase {
	return &MarketPriceUseCase{priceRepo: priceRepo}
}

type RecordPriceInput struct {
	Crop       string  `json:"crop" validate:"required"`
	Region     string  `json:"region" validate:"required"`
	PricePerKg float64 `json:"price_per_kg" validate:"gt=0"`
	Source     string  `json:"source"`
}

// RecordPrice stores a reference price snapshot. Admin only.
func (uc *MarketPriceUseCase) RecordPrice(ctx context.Context, sess session.Session, input RecordPriceInput) (*entity.MarketPrice, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if sess.Role != session.RoleAdmin {
		return nil, errors.Forbidden("Only admins can record market prices", nil)
	}
	if input.PricePerKg <= 0 {
		return nil, errors.BadRequest("Price per kg must be greater than zero", nil)
	}

	price := &entity.MarketPrice{
		Crop:       strings.ToLower(strings.TrimSpace(input.Crop)),
		Region:     strings.ToLower(strings.TrimSpace(input.Region)),
		PricePerKg: input.PricePerKg,
		Source:     input.Source,
	}
	if err := uc.priceRepo.Create(ctx, price); err != nil {
		return nil, err
	}
	return price, nil
}

// LatestPrices returns the newest snapshots for the crop and region filter.
func (uc *MarketPriceUseCase) LatestPrices(ctx context.Context, crop, region string, limit int) ([]*entity.MarketPrice, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return uc.priceRepo.ListLatest(ctx,
		strings.ToLower(strings.TrimSpace(crop)),
		strings.ToLower(strings.TrimSpace(region)),
		limit)
}
