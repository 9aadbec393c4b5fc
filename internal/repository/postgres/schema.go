// Package postgres implements the repository interfaces on PostgreSQL via
// pgx/v5. Coordinates are plain DOUBLE PRECISION columns; radius queries use
// a bounding-box prefilter (served by the lat/lng index) followed by an
// exact haversine predicate. Prices are NUMERIC and cross the wire as text
// so they round-trip through decimal.Decimal without float rounding.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS geo_events (
		id          TEXT PRIMARY KEY,
		type        TEXT NOT NULL,
		lat         DOUBLE PRECISION NOT NULL,
		lng         DOUBLE PRECISION NOT NULL,
		geohash     TEXT NOT NULL DEFAULT '',
		category_id TEXT NOT NULL DEFAULT '',
		query       TEXT NOT NULL DEFAULT '',
		actor_id    TEXT NOT NULL DEFAULT '',
		payload     JSONB,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS geo_events_created_at_idx ON geo_events (created_at)`,
	`CREATE INDEX IF NOT EXISTS geo_events_lat_lng_idx ON geo_events (lat, lng)`,
	`CREATE INDEX IF NOT EXISTS geo_events_type_idx ON geo_events (type, created_at)`,

	`CREATE TABLE IF NOT EXISTS listings (
		id                TEXT PRIMARY KEY,
		title             TEXT NOT NULL DEFAULT '',
		lat               DOUBLE PRECISION NOT NULL,
		lng               DOUBLE PRECISION NOT NULL,
		geohash           TEXT NOT NULL DEFAULT '',
		category_id       TEXT NOT NULL DEFAULT '',
		subcategory_id    TEXT NOT NULL DEFAULT '',
		price             NUMERIC(14, 2) NOT NULL DEFAULT 0,
		status            TEXT NOT NULL,
		moderation_status TEXT NOT NULL,
		views             INTEGER NOT NULL DEFAULT 0,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS listings_visible_idx ON listings (status, moderation_status, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS listings_lat_lng_idx ON listings (lat, lng)`,
	`CREATE INDEX IF NOT EXISTS listings_category_idx ON listings (category_id, created_at DESC)`,
}

// EnsureSchema creates the tables and indexes the stores query. It is safe
// to run repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
