package services

import (
	"context"
	"testing"
	"time"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository/memory"
)

func seedSellerSignals(t *testing.T, env *testEnv) {
	t.Helper()
	env.addEvents(t, 6, entities.EventSearch, cellA, "клубника", 2*time.Hour)
	env.addEvents(t, 3, entities.EventEmptySearch, cellA, "малина", time.Hour)
	env.addEvents(t, 1, entities.EventEmptySearch, cellA, "груша", time.Hour)
	env.addListing(t, "Груша свежая", "fruit", offset(cellA, 1), 150, 48*time.Hour)
}

func TestRecommendations_Seller(t *testing.T) {
	for _, role := range []Role{RoleSeller, RoleFarmer} {
		t.Run(string(role), func(t *testing.T) {
			env := newTestEnv(t)
			seedSellerSignals(t, env)

			hints := env.engine.Recommendations.For(context.Background(), "seller-1", role, cellA)
			if len(hints) != 2 {
				t.Fatalf("Expected 2 hints, got %d: %+v", len(hints), hints)
			}

			unmet := hints[0]
			if unmet.Type != HintUnmetDemand || unmet.Priority != 1 || unmet.Data["query"] != "малина" {
				t.Errorf("Expected unmet demand for малина first, got %+v", unmet)
			}
			if unmet.Data["emptySearches"] != 3 {
				t.Errorf("Expected 3 empty searches, got %v", unmet.Data["emptySearches"])
			}

			top := hints[1]
			if top.Type != HintDemandOpportunity || top.Priority != 2 || top.Data["query"] != "клубника" {
				t.Errorf("Expected demand opportunity for клубника, got %+v", top)
			}
		})
	}
}

func TestRecommendations_Buyer(t *testing.T) {
	env := newTestEnv(t)
	env.addListing(t, "Клубника", "berries", offset(cellA, 1), 300, time.Hour)
	env.addListing(t, "Малина", "berries", offset(cellA, 2), 400, 20*time.Hour)
	env.addListing(t, "Молоко", "dairy", offset(cellA, 1), 90, 48*time.Hour)
	env.addListing(t, "Мёд", "honey", offset(cellA, 10), 500, time.Hour)

	hints := env.engine.Recommendations.For(context.Background(), "buyer-1", RoleBuyer, cellA)
	if len(hints) != 1 {
		t.Fatalf("Expected 1 hint, got %d", len(hints))
	}
	if hints[0].Type != HintNewNearby || hints[0].Data["count"] != 2 {
		t.Errorf("Expected new_nearby with count 2, got %+v", hints[0])
	}
}

func TestRecommendations_BuyerNothingNew(t *testing.T) {
	env := newTestEnv(t)

	hints := env.engine.Recommendations.For(context.Background(), "buyer-1", RoleBuyer, cellA)
	if hints == nil || len(hints) != 0 {
		t.Errorf("Expected empty, non-nil hints, got %#v", hints)
	}
}

func TestRecommendations_UnknownRole(t *testing.T) {
	env := newTestEnv(t)
	seedSellerSignals(t, env)

	hints := env.engine.Recommendations.For(context.Background(), "x", Role("courier"), cellA)
	if hints == nil || len(hints) != 0 {
		t.Errorf("Expected empty hints for unknown role, got %#v", hints)
	}
}

func TestRecommendations_StoreFailureYieldsEmpty(t *testing.T) {
	events := &flakyEvents{EventRepository: memory.NewEventRepository(6)}
	events.setFailing(true)
	engine := newEngine(events, memory.NewListingRepository(6))

	res := engine.GeoRecommendations(context.Background(), "seller-1", cellA.Latitude, cellA.Longitude, RoleSeller)
	if !res.Success {
		t.Fatalf("Recommendations should never fail, got %+v", res)
	}
	if len(res.Data.Recommendations) != 0 {
		t.Errorf("Expected empty recommendations, got %+v", res.Data.Recommendations)
	}
}
