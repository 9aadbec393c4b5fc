// Package memory provides in-process implementations of the repository
// interfaces, used for local development and tests.
//
// Both stores keep a primary map plus a geo.SpatialIndex over the same rows.
// Every write updates both under one lock so the two indices never drift.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
	"geopulse/internal/repository"
)

// ErrMissingID is returned when a row without an ID is written.
var ErrMissingID = errors.New("missing id")

// EventRepository is an in-memory, geohash-indexed interaction-event log.
type EventRepository struct {
	mu     sync.RWMutex
	events map[string]*entities.InteractionEvent // id → event
	index  *geo.SpatialIndex
}

// NewEventRepository creates an empty event store whose spatial index uses
// cells of the given geohash precision.
func NewEventRepository(precision int) *EventRepository {
	return &EventRepository{
		events: make(map[string]*entities.InteractionEvent),
		index:  geo.NewSpatialIndex(precision),
	}
}

// Insert stores a copy of the event. Events are immutable, so inserting an
// existing ID replaces the row wholesale.
func (r *EventRepository) Insert(ctx context.Context, event *entities.InteractionEvent) error {
	if event.ID == "" {
		return ErrMissingID
	}
	cp := *event

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[cp.ID] = &cp
	r.index.Insert(cp.ID, cp.Location.Latitude, cp.Location.Longitude)
	return nil
}

// Find returns matching events ordered oldest first.
func (r *EventRepository) Find(ctx context.Context, filter repository.EventFilter) ([]*entities.InteractionEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.InteractionEvent
	if filter.Center != nil {
		for _, p := range r.index.Within(ctx, filter.Center.Latitude, filter.Center.Longitude, filter.RadiusKm) {
			if e, ok := r.events[p.ID]; ok && filter.Matches(e) {
				out = append(out, e)
			}
		}
	} else {
		for _, e := range r.events {
			if filter.Matches(e) {
				out = append(out, e)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Count returns how many events match the filter.
func (r *EventRepository) Count(ctx context.Context, filter repository.EventFilter) (int, error) {
	events, err := r.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// DeleteBefore drops every event created before cutoff and returns how many
// were removed.
//
// Go Learning Note — Safe Map Deletion During Iteration:
// Deleting map keys inside a for-range over the same map is explicitly
// allowed by the Go spec.
func (r *EventRepository) DeleteBefore(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.events {
		if e.CreatedAt.Before(cutoff) {
			delete(r.events, id)
			r.index.Remove(id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored events.
func (r *EventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
