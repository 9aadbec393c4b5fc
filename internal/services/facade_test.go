package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
	"geopulse/internal/repository/memory"
)

func TestResultEnvelope_InvalidInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hm := env.engine.HeatmapDemand(ctx, 55.75, 37.61, -1, 24)
	if hm.Success || hm.Error == "" {
		t.Errorf("Expected failure for negative radius, got %+v", hm)
	}
	if hm.Data == nil || hm.Data.Points == nil || len(hm.Data.Points) != 0 {
		t.Errorf("Expected empty default payload, got %#v", hm.Data)
	}

	hs := env.engine.DemandHotspots(ctx, 123, 37.61, 5, 24, 0)
	if hs.Success || hs.Data == nil || hs.Data.Hotspots == nil {
		t.Errorf("Expected failure with empty hotspots, got %+v", hs)
	}

	zones := env.engine.OpportunityZones(ctx, 55.75, 37.61, 0)
	if zones.Success || zones.Data == nil || zones.Data.Zones == nil {
		t.Errorf("Expected failure with empty zones, got %+v", zones)
	}

	cd := env.engine.DemandForCategory(ctx, "", nil, 0)
	if cd.Success {
		t.Errorf("Expected failure for empty category, got %+v", cd)
	}
}

func TestErrorsAreNotCached(t *testing.T) {
	events := &flakyEvents{EventRepository: memory.NewEventRepository(6)}
	engine := newEngine(events, memory.NewListingRepository(6))
	ctx := context.Background()

	events.setFailing(true)
	first := engine.HeatmapDemand(ctx, cellA.Latitude, cellA.Longitude, 5, 24)
	if first.Success {
		t.Fatal("Expected failure while the store is down")
	}

	events.setFailing(false)
	second := engine.HeatmapDemand(ctx, cellA.Latitude, cellA.Longitude, 5, 24)
	if !second.Success {
		t.Errorf("Expected recovery once the store is back, got %+v", second)
	}
}

func TestLogGeoEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res := env.engine.LogGeoEvent(ctx, entities.InteractionEvent{
		Type:     entities.EventSearch,
		Location: cellA,
		Geohash:  geo.Encode(cellA.Latitude, cellA.Longitude, 9),
		Query:    "Клубника",
		ActorID:  "buyer-7",
	})
	if !res.Success || res.Data.EventID == "" {
		t.Fatalf("Expected event id, got %+v", res)
	}
	if env.events.Len() != 1 {
		t.Fatalf("Expected 1 stored event, got %d", env.events.Len())
	}

	// Windows end exclusively at now.
	env.engine.SetClock(func() time.Time { return testNow.Add(time.Minute) })
	trends := env.engine.TrendingSearches(ctx, cellA.Latitude, cellA.Longitude, 5, 24, 10)
	if !trends.Success || len(trends.Data.Trends) != 1 || trends.Data.Trends[0].Query != "клубника" {
		t.Errorf("Expected logged search to trend, got %+v", trends)
	}
	if !trends.Data.Trends[0].LastSearched.Equal(testNow) {
		t.Errorf("Expected event stamped with the engine clock, got %v", trends.Data.Trends[0].LastSearched)
	}
}

type failingInsert struct {
	*memory.EventRepository
}

func (failingInsert) Insert(context.Context, *entities.InteractionEvent) error {
	return errors.New("disk full")
}

func TestLogGeoEvent_StoreFailure(t *testing.T) {
	engine := newEngine(failingInsert{memory.NewEventRepository(6)}, memory.NewListingRepository(6))

	res := engine.LogGeoEvent(context.Background(), entities.InteractionEvent{Type: entities.EventView, Location: cellA})
	if res.Success || res.Error != "disk full" {
		t.Errorf("Expected store error in envelope, got %+v", res)
	}
	if res.Data == nil || res.Data.EventID != "" {
		t.Errorf("Expected empty receipt, got %+v", res.Data)
	}
}
