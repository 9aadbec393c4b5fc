package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

const eventColumns = `id, type, lat, lng, geohash, category_id, query, actor_id, payload, created_at`

// EventStore implements repository.EventRepository on the geo_events table.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a PostgreSQL-backed event store.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

func (s *EventStore) Insert(ctx context.Context, e *entities.InteractionEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO geo_events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, string(e.Type), e.Location.Latitude, e.Location.Longitude,
		e.Geohash, e.CategoryID, e.Query, e.ActorID, e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *EventStore) Find(ctx context.Context, filter repository.EventFilter) ([]*entities.InteractionEvent, error) {
	w := eventWhere(filter)
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM geo_events`+w.String()+` ORDER BY created_at, id`,
		w.args...)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	defer rows.Close()

	var events []*entities.InteractionEvent
	for rows.Next() {
		var e entities.InteractionEvent
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Location.Latitude, &e.Location.Longitude,
			&e.Geohash, &e.CategoryID, &e.Query, &e.ActorID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = entities.EventType(typ)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *EventStore) Count(ctx context.Context, filter repository.EventFilter) (int, error) {
	w := eventWhere(filter)
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM geo_events`+w.String(), w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
