package services

import (
	"context"
	"testing"
	"time"

	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
)

func TestGrowthRate(t *testing.T) {
	tests := []struct {
		name     string
		current  int
		previous int
		want     float64
	}{
		{"doubled", 10, 5, 1.0},
		{"shrunk", 2, 4, -0.5},
		{"unchanged", 3, 3, 0},
		{"from zero above floor", 6, 0, 1.0},
		{"from zero at floor", 5, 0, 0},
		{"from zero below floor", 3, 0, 0},
		{"nothing", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GrowthRate(tt.current, tt.previous, 5); got != tt.want {
				t.Errorf("GrowthRate(%d, %d) = %v, want %v", tt.current, tt.previous, got, tt.want)
			}
		})
	}
}

func TestDemandScore(t *testing.T) {
	b := &entities.SpatialBucket{
		Count: 5,
		TypeBreakdown: map[string]int{
			string(entities.EventSearch):      1,
			string(entities.EventEmptySearch): 1,
			string(entities.EventView):        2,
			string(entities.EventFavorite):    1,
		},
	}
	// (1 + 2×1 + 0.5×2 + 3×1) / 5
	if got := DemandScore(b); got != 1.4 {
		t.Errorf("DemandScore = %v, want 1.4", got)
	}
	if got := DemandScore(&entities.SpatialBucket{}); got != 0 {
		t.Errorf("DemandScore of empty bucket = %v, want 0", got)
	}
}

func TestScoreDemandBuckets_TiedIntensity(t *testing.T) {
	current := []*entities.SpatialBucket{
		{Geohash: "ucfv0j", Count: 4},
		{Geohash: "ucfv0k", Count: 4},
	}
	scored := ScoreDemandBuckets(current, nil, HotspotRules{Threshold: 0.3, GrowthThreshold: 0.3, GrowthFloor: 5})
	for _, h := range scored {
		if h.Intensity != 1.0 || !h.IsHotspot {
			t.Errorf("Expected tied buckets both at intensity 1.0, got %+v", h)
		}
	}

	res := selectHotspots(scored, 24, 0.3)
	if res.Summary.PeakGeohash != "ucfv0j" {
		t.Errorf("Expected lowest geohash as tie-broken peak, got %q", res.Summary.PeakGeohash)
	}
}

func TestDemandHotspots(t *testing.T) {
	env := newTestEnv(t)
	env.addEvents(t, 10, entities.EventSearch, cellA, "клубника", time.Hour)
	env.addEvents(t, 5, entities.EventView, cellB, "", 2*time.Hour)
	env.addEvents(t, 2, entities.EventView, cellB, "", 30*time.Hour)
	env.addEvents(t, 1, entities.EventFavorite, cellC, "", time.Hour)

	res, err := env.engine.Hotspots.Demand(context.Background(), cellA, 10, 24, 0)
	if err != nil {
		t.Fatalf("Demand hotspots failed: %v", err)
	}

	cellHash := func(loc entities.Location) string { return geo.Encode(loc.Latitude, loc.Longitude, 6) }

	if len(res.Hotspots) != 2 {
		t.Fatalf("Expected 2 hotspots, got %d: %+v", len(res.Hotspots), res.Hotspots)
	}
	a, b := res.Hotspots[0], res.Hotspots[1]
	if a.Geohash != cellHash(cellA) || a.Intensity != 1.0 || a.GrowthRate != 1.0 {
		t.Errorf("Unexpected first hotspot: %+v", a)
	}
	if b.Geohash != cellHash(cellB) || b.Intensity != 0.5 || b.GrowthRate != 1.5 || b.PreviousCount != 2 {
		t.Errorf("Unexpected second hotspot: %+v", b)
	}

	s := res.Summary
	if s.TotalBuckets != 3 || s.HotspotCount != 2 || s.TotalEvents != 16 {
		t.Errorf("Unexpected summary: %+v", s)
	}
	if s.PeakGeohash != cellHash(cellA) || s.Hours != 24 || s.Threshold != 0.3 {
		t.Errorf("Unexpected summary: %+v", s)
	}
}

func TestDemandHotspots_Empty(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.engine.Hotspots.Demand(context.Background(), cellA, 10, 24, 0.5)
	if err != nil {
		t.Fatalf("Demand hotspots failed: %v", err)
	}
	if res.Hotspots == nil || len(res.Hotspots) != 0 {
		t.Errorf("Expected empty, non-nil hotspots, got %#v", res.Hotspots)
	}
	if res.Summary.TotalBuckets != 0 || res.Summary.PeakGeohash != "" {
		t.Errorf("Unexpected summary: %+v", res.Summary)
	}
}

func TestScoreSupplyBuckets(t *testing.T) {
	fresh := []*entities.SpatialBucket{
		{Geohash: "a", Count: 4},
		{Geohash: "b", Count: 1},
		{Geohash: "c", Count: 2},
	}
	all := []*entities.SpatialBucket{
		{Geohash: "a", Count: 5},
		{Geohash: "b", Count: 10},
		{Geohash: "c", Count: 3},
	}

	scored := ScoreSupplyBuckets(fresh, all, HotspotRules{Threshold: 0.6, NewRatioMin: 0.5})
	want := map[string]struct {
		intensity float64
		ratio     float64
		hot       bool
	}{
		"a": {1.0, 0.8, true},
		"b": {0.25, 0.1, false},
		"c": {0.5, 2.0 / 3.0, true},
	}

	for _, h := range scored {
		w := want[h.Geohash]
		if h.Intensity != w.intensity || h.NewRatio != w.ratio || h.IsHotspot != w.hot {
			t.Errorf("%s: got intensity=%v ratio=%v hot=%v, want %+v", h.Geohash, h.Intensity, h.NewRatio, h.IsHotspot, w)
		}
	}
}

func TestSupplyHotspots(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 3; i++ {
		env.addListing(t, "Клубника", "berries", cellA, 300, time.Hour)
	}
	env.addListing(t, "Клубника", "berries", cellA, 300, 100*time.Hour)
	env.addListing(t, "Молоко", "dairy", cellB, 90, 2*time.Hour)
	for i := 0; i < 4; i++ {
		env.addListing(t, "Молоко", "dairy", cellB, 90, 100*time.Hour)
	}

	res, err := env.engine.Hotspots.Supply(context.Background(), cellA, 10, 24, 0.5)
	if err != nil {
		t.Fatalf("Supply hotspots failed: %v", err)
	}
	if len(res.Hotspots) != 1 {
		t.Fatalf("Expected 1 hotspot, got %d", len(res.Hotspots))
	}

	h := res.Hotspots[0]
	if h.Count != 3 || h.TotalCount != 4 || h.NewRatio != 0.75 {
		t.Errorf("Unexpected hotspot: %+v", h)
	}
	if len(h.CategoryHints) != 1 || h.CategoryHints[0] != "berries" {
		t.Errorf("Expected berries hint, got %v", h.CategoryHints)
	}
	if res.Summary.TotalBuckets != 2 || res.Summary.TotalListings != 9 {
		t.Errorf("Unexpected summary: %+v", res.Summary)
	}
}
