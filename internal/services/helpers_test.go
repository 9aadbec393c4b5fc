package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
	"geopulse/internal/repository"
	"geopulse/internal/repository/memory"
)

var (
	testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// Three points in distinct precision-6 cells, a few km apart.
	cellA = entities.NewLocation(55.7558, 37.6173)
	cellB = entities.NewLocation(55.7800, 37.6173)
	cellC = entities.NewLocation(55.7300, 37.6173)
)

func fixedClock() time.Time { return testNow }

// countingEvents counts Find calls reaching the underlying store.
type countingEvents struct {
	repository.EventRepository
	finds atomic.Int32
}

func (c *countingEvents) Find(ctx context.Context, f repository.EventFilter) ([]*entities.InteractionEvent, error) {
	c.finds.Add(1)
	return c.EventRepository.Find(ctx, f)
}

// flakyEvents fails every call while failing is set.
type flakyEvents struct {
	repository.EventRepository
	mu      sync.Mutex
	failing bool
}

func (f *flakyEvents) setFailing(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = v
}

func (f *flakyEvents) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("event store unreachable")
	}
	return nil
}

func (f *flakyEvents) Find(ctx context.Context, filter repository.EventFilter) ([]*entities.InteractionEvent, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.EventRepository.Find(ctx, filter)
}

func (f *flakyEvents) Count(ctx context.Context, filter repository.EventFilter) (int, error) {
	if err := f.err(); err != nil {
		return 0, err
	}
	return f.EventRepository.Count(ctx, filter)
}

// noSpatialListings rejects every radius query.
type noSpatialListings struct {
	*memory.ListingRepository
}

func (n noSpatialListings) FindWithinRadius(ctx context.Context, f repository.ListingFilter) ([]*entities.Listing, error) {
	return nil, fmt.Errorf("no 2dsphere index: %w", repository.ErrSpatialUnavailable)
}

type testEnv struct {
	events   *memory.EventRepository
	listings *memory.ListingRepository
	engine   *GeoIntelligence
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	events := memory.NewEventRepository(6)
	listings := memory.NewListingRepository(6)
	return &testEnv{
		events:   events,
		listings: listings,
		engine:   newEngine(events, listings),
	}
}

func newEngine(events repository.EventRepository, listings repository.ListingRepository) *GeoIntelligence {
	cfg := config.NewDefaultConfig()
	g := New(cfg, events, listings,
		cache.New("test_short", cfg.Cache.ShortTTL, cfg.Cache.Capacity),
		cache.New("test_long", cfg.Cache.LongTTL, cfg.Cache.Capacity))
	g.SetClock(fixedClock)
	return g
}

var seq atomic.Int64

func (e *testEnv) addEvents(t *testing.T, n int, typ entities.EventType, loc entities.Location, query string, age time.Duration) {
	t.Helper()
	e.addCategoryEvents(t, n, typ, loc, query, "", age)
}

func (e *testEnv) addCategoryEvents(t *testing.T, n int, typ entities.EventType, loc entities.Location, query, category string, age time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		ev := &entities.InteractionEvent{
			ID:         fmt.Sprintf("ev-%d", seq.Add(1)),
			Type:       typ,
			Location:   loc,
			Geohash:    geo.Encode(loc.Latitude, loc.Longitude, 9),
			Query:      query,
			CategoryID: category,
			ActorID:    "buyer-1",
			CreatedAt:  testNow.Add(-age),
		}
		if err := e.events.Insert(context.Background(), ev); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
}

func (e *testEnv) addListing(t *testing.T, title, category string, loc entities.Location, price int64, age time.Duration) *entities.Listing {
	t.Helper()
	l := &entities.Listing{
		ID:               fmt.Sprintf("ad-%d", seq.Add(1)),
		Title:            title,
		Location:         loc,
		CategoryID:       category,
		Price:            decimal.NewFromInt(price),
		Status:           entities.ListingStatusActive,
		ModerationStatus: entities.ModerationApproved,
		CreatedAt:        testNow.Add(-age),
	}
	if err := e.listings.Upsert(context.Background(), l); err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l
}

// offset returns loc moved north by km kilometres.
func offset(loc entities.Location, km float64) entities.Location {
	return entities.NewLocation(loc.Latitude+km/111.195, loc.Longitude)
}
