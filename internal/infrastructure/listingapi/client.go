package listingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	"sakanect/internal/infrastructure/lock"
	"sakanect/pkg/errors"
	"sakanect/pkg/logger"
)

// Client talks to an external listing service over its REST API. Stock
// changes are read-check-write and therefore only safe while this process is
// the single writer for a listing; the keyed lock makes it so in-process.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	locks      *lock.KeyedMutex
}

var _ repository.ListingRepository = (*Client)(nil)

func NewClient(baseURL string, rps float64, timeout time.Duration) *Client {
	if rps <= 0 {
		rps = 20
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		locks:      lock.NewKeyedMutex(),
	}
}

type stockPatch struct {
	QuantityKg int    `json:"quantity_kg"`
	Status     string `json:"status"`
}

type listPage struct {
	Items []*entity.Listing `json:"items"`
	Total int64             `json:"total"`
}

func (c *Client) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	var listing entity.Listing
	if err := c.do(ctx, http.MethodGet, "/api/crops/"+url.PathEscape(id), nil, &listing); err != nil {
		return nil, err
	}
	if listing.ID == "" {
		listing.ID = id
	}
	return &listing, nil
}

func (c *Client) List(ctx context.Context, filter entity.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	q := url.Values{}
	if filter.OwnerID != "" {
		q.Set("owner_id", filter.OwnerID)
	}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.Region != "" {
		q.Set("region", filter.Region)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	path := "/api/crops"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page listPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, 0, err
	}
	if page.Total == 0 {
		page.Total = int64(len(page.Items))
	}
	return page.Items, page.Total, nil
}

func (c *Client) Create(ctx context.Context, listing *entity.Listing) error {
	listing.SetQuantity(listing.QuantityKg)
	return c.do(ctx, http.MethodPost, "/api/crops", listing, listing)
}

func (c *Client) Update(ctx context.Context, listing *entity.Listing) error {
	unlock, err := c.locks.Lock(ctx, listing.ID)
	if err != nil {
		return errors.Internal("Listing update cancelled", err)
	}
	defer unlock()

	listing.SetQuantity(listing.QuantityKg)
	return c.do(ctx, http.MethodPut, "/api/crops/"+url.PathEscape(listing.ID), listing, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/crops/"+url.PathEscape(id), nil, nil)
}

func (c *Client) DeductStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	return c.adjust(ctx, id, -qty)
}

func (c *Client) RestoreStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	return c.adjust(ctx, id, qty)
}

func (c *Client) adjust(ctx context.Context, id string, delta int) (*entity.Listing, error) {
	unlock, err := c.locks.Lock(ctx, id)
	if err != nil {
		return nil, errors.Internal("Stock update cancelled", err)
	}
	defer unlock()

	listing, err := c.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if delta < 0 && !listing.CanSupply(-delta) {
		return nil, errors.StockUnavailable(id, -delta, listing.QuantityKg)
	}

	listing.SetQuantity(listing.QuantityKg + delta)
	patch := stockPatch{QuantityKg: listing.QuantityKg, Status: listing.Status}
	if err := c.do(ctx, http.MethodPut, "/api/crops/"+url.PathEscape(id), patch, nil); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"listing_id":  id,
		"delta_kg":    delta,
		"quantity_kg": listing.QuantityKg,
	}).Debug("Listing stock adjusted via listing API")
	return listing, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Internal("Listing API call cancelled", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("Failed to encode listing payload", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Internal("Failed to build listing API request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.BadGateway("Listing API unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.BadGateway("Failed to read listing API response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errors.NotFound("Listing", nil)
	case resp.StatusCode >= 300:
		return errors.BadGateway(fmt.Sprintf("Listing API returned %d", resp.StatusCode), fmt.Errorf("%s %s: %s", method, path, truncate(raw, 200)))
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapEnvelope(raw), out); err != nil {
		return errors.BadGateway("Invalid listing API response", err)
	}
	return nil
}

// unwrapEnvelope accepts both bare documents and {"success":..,"data":..}.
func unwrapEnvelope(raw []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && env.Data[0] != 'n' {
		return env.Data
	}
	return raw
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
