package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

const listingColumns = `id, title, lat, lng, geohash, category_id, subcategory_id,
	price::TEXT, status, moderation_status, views, created_at`

// ListingStore implements repository.ListingRepository on the listings
// table.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore creates a PostgreSQL-backed listing store.
func NewListingStore(pool *pgxpool.Pool) *ListingStore {
	return &ListingStore{pool: pool}
}

// Upsert writes a listing. Used by seeding and tests; the marketplace owns
// the real write path.
func (s *ListingStore) Upsert(ctx context.Context, l *entities.Listing) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO listings (id, title, lat, lng, geohash, category_id, subcategory_id,
		                       price, status, moderation_status, views, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8::NUMERIC, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, lat = EXCLUDED.lat, lng = EXCLUDED.lng,
		   geohash = EXCLUDED.geohash, category_id = EXCLUDED.category_id,
		   subcategory_id = EXCLUDED.subcategory_id, price = EXCLUDED.price,
		   status = EXCLUDED.status, moderation_status = EXCLUDED.moderation_status,
		   views = EXCLUDED.views`,
		l.ID, l.Title, l.Location.Latitude, l.Location.Longitude, l.Geohash,
		l.CategoryID, l.SubcategoryID, l.Price.String(),
		string(l.Status), string(l.ModerationStatus), l.Views, l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", l.ID, err)
	}
	return nil
}

func (s *ListingStore) FindWithinRadius(ctx context.Context, filter repository.ListingFilter) ([]*entities.Listing, error) {
	if filter.Center == nil {
		return nil, repository.ErrSpatialUnavailable
	}
	w := listingWhere(filter)
	rows, err := s.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings`+w.String(), w.args...)
	if err != nil {
		return nil, fmt.Errorf("find listings within radius: %w", err)
	}
	return scanListings(rows)
}

func (s *ListingStore) List(ctx context.Context, filter repository.ListingFilter, sort repository.ListingSort, limit, skip int) ([]*entities.Listing, int, error) {
	total, err := s.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	w := listingWhere(filter)
	query := `SELECT ` + listingColumns + ` FROM listings` + w.String() + orderBy(sort)
	if limit > 0 {
		query += " LIMIT " + w.arg(limit)
	}
	if skip > 0 {
		query += " OFFSET " + w.arg(skip)
	}

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list listings: %w", err)
	}
	items, err := scanListings(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *ListingStore) Count(ctx context.Context, filter repository.ListingFilter) (int, error) {
	w := listingWhere(filter)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM listings`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return n, nil
}

func scanListings(rows pgx.Rows) ([]*entities.Listing, error) {
	defer rows.Close()

	var out []*entities.Listing
	for rows.Next() {
		var l entities.Listing
		var price, status, moderation string
		if err := rows.Scan(&l.ID, &l.Title, &l.Location.Latitude, &l.Location.Longitude,
			&l.Geohash, &l.CategoryID, &l.SubcategoryID,
			&price, &status, &moderation, &l.Views, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		p, err := parsePrice(l.ID, price)
		if err != nil {
			return nil, err
		}
		l.Price = p
		l.Status = entities.ListingStatus(status)
		l.ModerationStatus = entities.ModerationStatus(moderation)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// parsePrice reads the NUMERIC price column, which is scanned as text.
func parsePrice(id, raw string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("scan listing %s price %q: %w", id, raw, err)
	}
	return p, nil
}
