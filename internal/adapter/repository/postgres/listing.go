package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sakanect/internal/domain/entity"
	"sakanect/internal/domain/repository"
	apperrors "sakanect/pkg/errors"
)

const listingColumns = `id, owner_id, title, description, category, price_per_kg, quantity_kg, status,
	address, region, lat, lng, created_at, updated_at`

const schemaDDL = `
CREATE TABLE IF NOT EXISTS listings (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	category     TEXT NOT NULL DEFAULT '',
	price_per_kg DOUBLE PRECISION NOT NULL,
	quantity_kg  INTEGER NOT NULL CHECK (quantity_kg >= 0),
	status       TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	region       TEXT NOT NULL DEFAULT '',
	lat          DOUBLE PRECISION,
	lng          DOUBLE PRECISION,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS listings_owner_idx ON listings (owner_id);
CREATE INDEX IF NOT EXISTS listings_status_idx ON listings (status);
`

type listingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) repository.ListingRepository {
	return &listingRepository{pool: pool}
}

// EnsureSchema creates the listings table when it does not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaDDL)
	return err
}

func (r *listingRepository) Create(ctx context.Context, listing *entity.Listing) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	listing.CreatedAt = now
	listing.UpdatedAt = now
	listing.SetQuantity(listing.QuantityKg)

	lat, lng := pointArgs(listing.Location.Point)
	q := `INSERT INTO listings (` + listingColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := r.pool.Exec(ctx, q,
		listing.ID, listing.OwnerID, listing.Title, listing.Description, listing.Category,
		listing.PricePerKg, listing.QuantityKg, listing.Status,
		listing.Location.Address, listing.Location.Region, lat, lng,
		listing.CreatedAt, listing.UpdatedAt,
	)
	if err != nil {
		return apperrors.Internal("Failed to create listing", err)
	}
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id string) (*entity.Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Listing", err)
		}
		return nil, apperrors.Internal("Failed to get listing", err)
	}
	return listing, nil
}

func (r *listingRepository) List(ctx context.Context, filter entity.ListingFilter, limit, offset int) ([]*entity.Listing, int64, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("owner_id", filter.OwnerID)
	add("status", filter.Status)
	add("category", filter.Category)
	add("region", filter.Region)

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM listings`+clause, args...).Scan(&total); err != nil {
		return nil, 0, apperrors.Internal("Failed to count listings", err)
	}

	q := `SELECT ` + listingColumns + ` FROM listings` + clause + ` ORDER BY created_at DESC`
	if limit > 0 {
		args = append(args, limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to list listings", err)
	}
	defer rows.Close()

	var listings []*entity.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, apperrors.Internal("Failed to scan listing", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Internal("Failed to iterate listings", err)
	}
	return listings, total, nil
}

func (r *listingRepository) Update(ctx context.Context, listing *entity.Listing) error {
	listing.UpdatedAt = time.Now().UTC()
	listing.SetQuantity(listing.QuantityKg)

	lat, lng := pointArgs(listing.Location.Point)
	q := `UPDATE listings SET title = $2, description = $3, category = $4, price_per_kg = $5,
		quantity_kg = $6, status = $7, address = $8, region = $9, lat = $10, lng = $11, updated_at = $12
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q,
		listing.ID, listing.Title, listing.Description, listing.Category, listing.PricePerKg,
		listing.QuantityKg, listing.Status, listing.Location.Address, listing.Location.Region,
		lat, lng, listing.UpdatedAt,
	)
	if err != nil {
		return apperrors.Internal("Failed to update listing", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("Listing", nil)
	}
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id); err != nil {
		return apperrors.Internal("Failed to delete listing", err)
	}
	return nil
}

// DeductStock is a single conditional UPDATE: the floor check and the write
// happen in one statement, so concurrent callers cannot oversell.
func (r *listingRepository) DeductStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	q := `UPDATE listings
		SET quantity_kg = quantity_kg - $2,
		    status = CASE WHEN quantity_kg - $2 = 0 THEN 'sold_out' ELSE 'available' END,
		    updated_at = now()
		WHERE id = $1 AND status <> 'sold_out' AND quantity_kg >= $2
		RETURNING ` + listingColumns

	listing, err := scanListing(r.pool.QueryRow(ctx, q, id, qty))
	if err == nil {
		return listing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.Internal("Failed to deduct stock", err)
	}

	// Nothing matched: either the listing is missing or it is short.
	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperrors.StockUnavailable(id, qty, current.QuantityKg)
}

func (r *listingRepository) RestoreStock(ctx context.Context, id string, qty int) (*entity.Listing, error) {
	q := `UPDATE listings
		SET quantity_kg = quantity_kg + $2,
		    status = CASE WHEN quantity_kg + $2 > 0 THEN 'available' ELSE 'sold_out' END,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + listingColumns

	listing, err := scanListing(r.pool.QueryRow(ctx, q, id, qty))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Listing", err)
		}
		return nil, apperrors.Internal("Failed to restore stock", err)
	}
	return listing, nil
}

func scanListing(row pgx.Row) (*entity.Listing, error) {
	var (
		l        entity.Listing
		lat, lng *float64
	)
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Description, &l.Category, &l.PricePerKg, &l.QuantityKg, &l.Status,
		&l.Location.Address, &l.Location.Region, &lat, &lng, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		l.Location.Point = &entity.GeoPoint{Lat: *lat, Lng: *lng}
	}
	return &l, nil
}

func pointArgs(p *entity.GeoPoint) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Lat, &p.Lng
}
