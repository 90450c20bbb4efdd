package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/adapter/repository/memory"
	"sakanect/internal/domain/entity"
	"sakanect/pkg/errors"
)

func newInventory(t *testing.T, quantityKg int) (*InventoryUseCase, *memory.ListingRepository, string) {
	t.Helper()
	repo := memory.NewListingRepository()
	listing := &entity.Listing{OwnerID: sellerID, Title: "Cabai", PricePerKg: 30, QuantityKg: quantityKg}
	require.NoError(t, repo.Create(context.Background(), listing))
	return NewInventoryUseCase(repo, nil), repo, listing.ID
}

func TestReserveSellsOutAtZero(t *testing.T) {
	inventory, _, id := newInventory(t, 10)

	listing, err := inventory.Reserve(context.Background(), id, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusAvailable, listing.Status)

	listing, err = inventory.Reserve(context.Background(), id, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusSoldOut, listing.Status)

	_, err = inventory.Reserve(context.Background(), id, 1)
	assert.True(t, errors.Is(err, errors.CodeStockUnavailable))
}

func TestReserveMoreThanAvailableChangesNothing(t *testing.T) {
	inventory, repo, id := newInventory(t, 5)

	_, err := inventory.Reserve(context.Background(), id, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeStockUnavailable))

	listing, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 5, listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusAvailable, listing.Status)
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	inventory, _, id := newInventory(t, 5)

	_, err := inventory.Reserve(context.Background(), id, 0)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
	_, err = inventory.Release(context.Background(), id, -2)
	assert.True(t, errors.Is(err, errors.CodeBadRequest))
}

func TestReleaseReopensSoldOutListing(t *testing.T) {
	inventory, _, id := newInventory(t, 3)

	_, err := inventory.Reserve(context.Background(), id, 3)
	require.NoError(t, err)

	listing, err := inventory.Release(context.Background(), id, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusAvailable, listing.Status)
}

func TestConcurrentReservesNeverGoNegative(t *testing.T) {
	inventory, repo, id := newInventory(t, 10)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := inventory.Reserve(context.Background(), id, 3); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	listing, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, listing.QuantityKg)
}

func TestReserveUnknownListing(t *testing.T) {
	inventory, _, _ := newInventory(t, 1)

	_, err := inventory.Reserve(context.Background(), "nope", 1)
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}
