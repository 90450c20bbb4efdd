package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/adapter/repository/memory"
	"sakanect/internal/session"
	"sakanect/pkg/errors"
)

func TestRecordAndReadMarketPrices(t *testing.T) {
	uc := NewMarketPriceUseCase(memory.NewMarketPriceRepository())
	ctx := context.Background()
	admin := session.Session{UserID: "ops", Role: session.RoleAdmin}

	_, err := uc.RecordPrice(ctx, as(sellerID), RecordPriceInput{Crop: "Tomat", Region: "Bandung", PricePerKg: 9000})
	assert.True(t, errors.Is(err, errors.CodeForbidden))

	price, err := uc.RecordPrice(ctx, admin, RecordPriceInput{Crop: " Tomat ", Region: "Bandung", PricePerKg: 9000})
	require.NoError(t, err)
	assert.Equal(t, "tomat", price.Crop)
	assert.Equal(t, "bandung", price.Region)

	_, err = uc.RecordPrice(ctx, admin, RecordPriceInput{Crop: "Cabai", Region: "Bandung", PricePerKg: 40000})
	require.NoError(t, err)

	prices, err := uc.LatestPrices(ctx, "TOMAT", "", 0)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, 9000.0, prices[0].PricePerKg)
}
