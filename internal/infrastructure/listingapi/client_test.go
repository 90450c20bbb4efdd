package listingapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/domain/entity"
	"sakanect/pkg/errors"
)

// fakeListingAPI serves GET/PUT /api/crops/:id from a map.
type fakeListingAPI struct {
	mu       sync.Mutex
	listings map[string]*entity.Listing
	puts     int
}

func (f *fakeListingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/crops/")

	f.mu.Lock()
	defer f.mu.Unlock()

	listing, ok := f.listings[id]
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		json.NewEncoder(w).Encode(listing)
	case http.MethodPut:
		var patch stockPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		listing.QuantityKg = patch.QuantityKg
		listing.Status = patch.Status
		f.puts++
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": listing})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFake(qty int) *fakeListingAPI {
	l := &entity.Listing{ID: "crop-1", OwnerID: "farmer", Title: "Tomatoes", PricePerKg: 50}
	l.SetQuantity(qty)
	return &fakeListingAPI{listings: map[string]*entity.Listing{"crop-1": l}}
}

func TestClientDeductStock(t *testing.T) {
	fake := newFake(10)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(srv.URL, 100, time.Second)

	listing, err := client.DeductStock(context.Background(), "crop-1", 10)
	require.NoError(t, err)
	assert.Equal(t, 0, listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusSoldOut, listing.Status)
	assert.Equal(t, entity.ListingStatusSoldOut, fake.listings["crop-1"].Status)
}

func TestClientDeductStockInsufficient(t *testing.T) {
	fake := newFake(5)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(srv.URL, 100, time.Second)

	_, err := client.DeductStock(context.Background(), "crop-1", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeStockUnavailable))
	assert.Equal(t, 5, fake.listings["crop-1"].QuantityKg)
	assert.Equal(t, 0, fake.puts)
}

func TestClientConcurrentDeductNeverOversells(t *testing.T) {
	fake := newFake(10)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(srv.URL, 1000, time.Second)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.DeductStock(context.Background(), "crop-1", 3); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, successes)
	assert.Equal(t, 1, fake.listings["crop-1"].QuantityKg)
}

func TestClientRestoreStockReopensListing(t *testing.T) {
	fake := newFake(0)
	srv := httptest.NewServer(fake)
	defer srv.Close()

	client := NewClient(srv.URL, 100, time.Second)

	listing, err := client.RestoreStock(context.Background(), "crop-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, listing.QuantityKg)
	assert.Equal(t, entity.ListingStatusAvailable, listing.Status)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 100, time.Second)

	_, err := client.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	_, err = client.GetByID(context.Background(), "broken")
	assert.True(t, errors.Is(err, errors.CodeBadGateway))
}
