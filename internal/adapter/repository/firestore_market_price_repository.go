package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/pkg/errors"
)

type firestoreMarketPriceRepository struct {
	client *firestore.Client
}

func NewFirestoreMarketPriceRepository(client *firestore.Client) repository.MarketPriceRepository {
	return &firestoreMarketPriceRepository{
		client: client,
	}
}

func (r *firestoreMarketPriceRepository) Create(ctx context.Context, price *entity.MarketPrice) error {
	if price.ID == "" {
		price.ID = uuid.New().String()
	}
	if price.RecordedAt.IsZero() {
		price.RecordedAt = time.Now()
	}

	_, err := r.client.Collection("market_prices").Doc(price.ID).Set(ctx, price)
	if err != nil {
		return errors.Internal("Failed to record market price", err)
	}
	return nil
}

func (r *firestoreMarketPriceRepository) ListLatest(ctx context.Context, crop, region string, limit int) ([]*entity.MarketPrice, error) {
	query := r.client.Collection("market_prices").Query
	if crop != "" {
		query = query.Where("crop", "==", crop)
	}
	if region != "" {
		query = query.Where("region", "==", region)
	}
	query = query.OrderBy("recordedAt", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var prices []*entity.MarketPrice
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate market prices", err)
		}

		var price entity.MarketPrice
		if err := doc.DataTo(&price); err != nil {
			return nil, errors.Internal("Failed to parse market price", err)
		}
		prices = append(prices, &price)
	}

	return prices, nil
}
