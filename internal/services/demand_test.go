package services

import (
	"context"
	"testing"
	"time"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/repository/memory"
)

func TestDemandHeatmap(t *testing.T) {
	env := newTestEnv(t)
	env.addEvents(t, 4, entities.EventSearch, cellA, "клубника", time.Hour)
	env.addEvents(t, 3, entities.EventEmptySearch, cellA, "малина", time.Hour)
	env.addEvents(t, 2, entities.EventView, cellB, "", 2*time.Hour)
	// Outside the window, wrong type, outside the radius.
	env.addEvents(t, 5, entities.EventSearch, cellA, "old", 30*time.Hour)
	env.addEvents(t, 5, entities.EventContact, cellA, "", time.Hour)
	env.addEvents(t, 5, entities.EventSearch, offset(cellA, 20), "far", time.Hour)

	hm, err := env.engine.Demand.Heatmap(context.Background(), cellA, 5, 24)
	if err != nil {
		t.Fatalf("Heatmap failed: %v", err)
	}

	if hm.TotalEvents != 9 {
		t.Errorf("Expected 9 events, got %d", hm.TotalEvents)
	}
	if len(hm.Points) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(hm.Points))
	}

	a, b := hm.Points[0], hm.Points[1]
	if a.Count != 7 || a.Searches != 4 || a.EmptySearches != 3 {
		t.Errorf("Unexpected first point: %+v", a)
	}
	// score 7 + 2×3 = 13 is clamped.
	if a.Intensity != 1 {
		t.Errorf("Expected intensity 1, got %v", a.Intensity)
	}
	if b.Count != 2 || b.Intensity != 0.2 {
		t.Errorf("Expected 2 views with intensity 0.2, got %+v", b)
	}
	if len(a.GeoHash) != 6 {
		t.Errorf("Expected precision-6 bucket, got %q", a.GeoHash)
	}
}

func TestDemandHeatmap_RejectsBadArea(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Demand.Heatmap(context.Background(), cellA, 0, 24); err == nil {
		t.Error("Expected error for zero radius")
	}
	if _, err := env.engine.Demand.Heatmap(context.Background(), entities.NewLocation(91, 0), 5, 24); err == nil {
		t.Error("Expected error for latitude out of range")
	}
}

func TestDemandHeatmap_CachesByRoundedCenter(t *testing.T) {
	events := &countingEvents{EventRepository: memory.NewEventRepository(6)}
	listings := memory.NewListingRepository(6)
	cfg := config.NewDefaultConfig()

	svc := NewDemandService(NewAggregator(events, listings), events, listings,
		cache.New("test", time.Minute, 100), cfg.Demand, 6)
	svc.SetClock(fixedClock)

	ctx := context.Background()
	if _, err := svc.Heatmap(ctx, entities.NewLocation(55.751, 37.618), 5, 24); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Heatmap(ctx, entities.NewLocation(55.752, 37.618), 5, 24); err != nil {
		t.Fatal(err)
	}

	if got := events.finds.Load(); got != 1 {
		t.Errorf("Expected one store query for centers in the same 0.01° cell, got %d", got)
	}

	if _, err := svc.Heatmap(ctx, entities.NewLocation(55.77, 37.618), 5, 24); err != nil {
		t.Fatal(err)
	}
	if got := events.finds.Load(); got != 2 {
		t.Errorf("Expected a second store query for a different cell, got %d", got)
	}
}

func TestTrending(t *testing.T) {
	env := newTestEnv(t)
	env.addEvents(t, 3, entities.EventSearch, cellA, "Клубника", 3*time.Hour)
	env.addEvents(t, 2, entities.EventEmptySearch, cellA, "клубника ", time.Hour)
	env.addEvents(t, 1, entities.EventEmptySearch, cellA, "малина", 2*time.Hour)
	env.addEvents(t, 4, entities.EventView, cellA, "ignored", time.Hour)

	res, err := env.engine.Demand.Trending(context.Background(), cellA, 5, 24, 10)
	if err != nil {
		t.Fatalf("Trending failed: %v", err)
	}
	if len(res.Trends) != 2 {
		t.Fatalf("Expected 2 queries, got %d: %+v", len(res.Trends), res.Trends)
	}

	top := res.Trends[0]
	if top.Query != "клубника" || top.Count != 3 || top.EmptyCount != 2 {
		t.Errorf("Unexpected top query: %+v", top)
	}
	if top.DemandScore != 6 {
		t.Errorf("Expected demand score 6, got %v", top.DemandScore)
	}
	if !top.LastSearched.Equal(testNow.Add(-time.Hour)) {
		t.Errorf("Expected last searched 1h ago, got %v", top.LastSearched)
	}
	if res.Trends[1].Query != "малина" || res.Trends[1].DemandScore != 1.5 {
		t.Errorf("Unexpected second query: %+v", res.Trends[1])
	}
}

func TestRankQueries_TieBreaks(t *testing.T) {
	at := testNow
	events := []*entities.InteractionEvent{
		{Type: entities.EventSearch, Query: "b", CreatedAt: at.Add(-2 * time.Hour)},
		{Type: entities.EventSearch, Query: "a", CreatedAt: at.Add(-2 * time.Hour)},
		{Type: entities.EventSearch, Query: "c", CreatedAt: at.Add(-time.Hour)},
		{Type: entities.EventSearch, Query: "  ", CreatedAt: at},
	}

	got := RankQueries(events, 2)
	if len(got) != 2 {
		t.Fatalf("Expected limit of 2, got %d", len(got))
	}
	// Equal scores: most recent first, then alphabetical.
	if got[0].Query != "c" || got[1].Query != "a" {
		t.Errorf("Unexpected order: %q, %q", got[0].Query, got[1].Query)
	}
}

func TestCategoryDemand(t *testing.T) {
	tests := []struct {
		name      string
		demand    int
		supply    int
		wantRatio float64
		wantLabel string
	}{
		{"three to one", 6, 2, 3, DemandHigh},
		{"even", 2, 2, 1, DemandBalanced},
		{"no interest", 0, 3, 0, DemandNone},
		{"nothing at all", 0, 0, 0, DemandOversupplied},
		{"weak interest", 1, 4, 0.25, DemandOversupplied},
		{"no supply", 4, 0, 4, DemandHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.addCategoryEvents(t, tt.demand, entities.EventCategoryOpen, cellA, "", "berries", 24*time.Hour)
			env.addCategoryEvents(t, 3, entities.EventCategoryOpen, cellA, "", "dairy", time.Hour)
			env.addCategoryEvents(t, 2, entities.EventCategoryOpen, cellA, "", "berries", 8*24*time.Hour)
			for i := 0; i < tt.supply; i++ {
				env.addListing(t, "Клубника", "berries", cellA, 300, time.Hour)
			}

			res, err := env.engine.Demand.CategoryDemand(context.Background(), "berries", nil, 0)
			if err != nil {
				t.Fatalf("CategoryDemand failed: %v", err)
			}
			if res.Demand != tt.demand || res.Supply != tt.supply {
				t.Errorf("Expected demand/supply %d/%d, got %d/%d", tt.demand, tt.supply, res.Demand, res.Supply)
			}
			if res.DemandSupplyRatio != tt.wantRatio {
				t.Errorf("Expected ratio %v, got %v", tt.wantRatio, res.DemandSupplyRatio)
			}
			if res.Recommendation != tt.wantLabel {
				t.Errorf("Expected %q, got %q", tt.wantLabel, res.Recommendation)
			}
		})
	}
}

func TestCategoryDemand_WithCenter(t *testing.T) {
	env := newTestEnv(t)
	env.addCategoryEvents(t, 2, entities.EventSearch, cellA, "мёд", "honey", time.Hour)
	env.addCategoryEvents(t, 5, entities.EventSearch, offset(cellA, 50), "мёд", "honey", time.Hour)
	env.addListing(t, "Мёд", "honey", cellA, 500, time.Hour)

	center := cellA
	res, err := env.engine.Demand.CategoryDemand(context.Background(), "honey", &center, 5)
	if err != nil {
		t.Fatalf("CategoryDemand failed: %v", err)
	}
	if res.Demand != 2 || res.Supply != 1 {
		t.Errorf("Expected only nearby rows counted, got %d/%d", res.Demand, res.Supply)
	}

	if _, err := env.engine.Demand.CategoryDemand(context.Background(), "", nil, 0); err == nil {
		t.Error("Expected error for empty category")
	}
}
