// Package redisgeo implements repository.EventRepository on Redis.
//
// Layout:
//
//	<prefix>:geo          GEO set, member = event ID
//	<prefix>:time         sorted set, member = event ID, score = created_at (unix ms)
//	<prefix>:event:<id>   JSON-encoded event, expiring after the retention window
//
// The two indexes are never expired themselves; members whose JSON value has
// expired are pruned lazily when a query runs into them.
package redisgeo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

// DefaultPrefix namespaces all keys written by the store.
const DefaultPrefix = "geopulse:events"

// EventStore is a Redis-backed interaction-event log.
type EventStore struct {
	rdb       *redis.Client
	prefix    string
	retention time.Duration
}

// NewEventStore creates an event store. Events expire after retention; a
// non-positive retention keeps them forever.
func NewEventStore(rdb *redis.Client, prefix string, retention time.Duration) *EventStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &EventStore{rdb: rdb, prefix: prefix, retention: retention}
}

func (s *EventStore) geoKey() string  { return s.prefix + ":geo" }
func (s *EventStore) timeKey() string { return s.prefix + ":time" }
func (s *EventStore) eventKey(id string) string {
	return s.prefix + ":event:" + id
}

// Insert writes the event value and both index entries in one MULTI/EXEC.
func (s *EventStore) Insert(ctx context.Context, e *entities.InteractionEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.ID, err)
	}

	ttl := s.retention
	if ttl < 0 {
		ttl = 0
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.eventKey(e.ID), data, ttl)
		pipe.GeoAdd(ctx, s.geoKey(), &redis.GeoLocation{
			Name:      e.ID,
			Longitude: e.Location.Longitude,
			Latitude:  e.Location.Latitude,
		})
		pipe.ZAdd(ctx, s.timeKey(), redis.Z{
			Score:  float64(e.CreatedAt.UnixMilli()),
			Member: e.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

// Find returns matching events ordered oldest first. A radius query is
// answered by GEOSEARCH; otherwise the time index narrows the candidates.
func (s *EventStore) Find(ctx context.Context, filter repository.EventFilter) ([]*entities.InteractionEvent, error) {
	ids, err := s.candidates(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.eventKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	events, stale := decodeEvents(ids, values)
	if len(stale) > 0 {
		s.prune(ctx, stale)
	}

	out := events[:0]
	for _, e := range events {
		if filter.Matches(e) {
			out = append(out, e)
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
func (s *EventStore) Count(ctx context.Context, filter repository.EventFilter) (int, error) {
	events, err := s.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

// TrimBefore removes index entries for events created before cutoff. The
// JSON values expire on their own.
func (s *EventStore) TrimBefore(ctx context.Context, cutoff time.Time) (int, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, s.timeKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("trim events: %w", err)
	}
	if len(ids) > 0 {
		s.prune(ctx, ids)
	}
	return len(ids), nil
}

func (s *EventStore) candidates(ctx context.Context, filter repository.EventFilter) ([]string, error) {
	if filter.Center != nil {
		ids, err := s.rdb.GeoSearch(ctx, s.geoKey(), &redis.GeoSearchQuery{
			Longitude:  filter.Center.Longitude,
			Latitude:   filter.Center.Latitude,
			Radius:     filter.RadiusKm,
			RadiusUnit: "km",
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", repository.ErrSpatialUnavailable, err)
		}
		return ids, nil
	}

	ids, err := s.rdb.ZRangeByScore(ctx, s.timeKey(), timeRange(filter.Since, filter.Until)).Result()
	if err != nil {
		return nil, fmt.Errorf("range events: %w", err)
	}
	return ids, nil
}

func (s *EventStore) prune(ctx context.Context, ids []string) {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	// Best effort; a failed prune is retried by the next query that hits
	// the same members.
	s.rdb.ZRem(ctx, s.geoKey(), members...)
	s.rdb.ZRem(ctx, s.timeKey(), members...)
}

// timeRange converts a [since, until) window to a ZRANGEBYSCORE range.
func timeRange(since, until time.Time) *redis.ZRangeBy {
	r := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !since.IsZero() {
		r.Min = strconv.FormatInt(since.UnixMilli(), 10)
	}
	if !until.IsZero() {
		r.Max = "(" + strconv.FormatInt(until.UnixMilli(), 10)
	}
	return r
}

// decodeEvents pairs MGET results with their IDs. Missing values (expired
// keys) and undecodable values are returned as stale.
func decodeEvents(ids []string, values []any) (events []*entities.InteractionEvent, stale []string) {
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var e entities.InteractionEvent
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		events = append(events, &e)
	}
	return events, stale
}
