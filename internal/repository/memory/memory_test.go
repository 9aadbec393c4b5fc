package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

var (
	moscow = entities.NewLocation(55.7558, 37.6173)
	now    = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
)

func event(id string, typ entities.EventType, lat, lng float64, at time.Time) *entities.InteractionEvent {
	return &entities.InteractionEvent{
		ID:        id,
		Type:      typ,
		Location:  entities.NewLocation(lat, lng),
		ActorID:   "buyer-1",
		CreatedAt: at,
	}
}

func listing(id string, lat, lng float64, price int64, at time.Time) *entities.Listing {
	return &entities.Listing{
		ID:               id,
		Title:            "Listing " + id,
		Location:         entities.NewLocation(lat, lng),
		CategoryID:       "food",
		Price:            decimal.NewFromInt(price),
		Status:           entities.ListingStatusActive,
		ModerationStatus: entities.ModerationApproved,
		CreatedAt:        at,
	}
}

func TestEventRepository_FindRadiusAndWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(6)

	seed := []*entities.InteractionEvent{
		event("near-new", entities.EventSearch, 55.7560, 37.6175, now.Add(-time.Hour)),
		event("near-old", entities.EventSearch, 55.7561, 37.6170, now.Add(-72*time.Hour)),
		event("near-view", entities.EventView, 55.7565, 37.6180, now.Add(-2*time.Hour)),
		event("far", entities.EventSearch, 59.9343, 30.3351, now.Add(-time.Hour)),
	}
	for _, e := range seed {
		if err := repo.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := repo.Find(ctx, repository.EventFilter{
		Center:   &moscow,
		RadiusKm: 2,
		Since:    now.Add(-24 * time.Hour),
		Until:    now,
		Types:    []entities.EventType{entities.EventSearch},
	})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "near-new" {
		t.Fatalf("Expected only near-new, got %v", ids(got))
	}

	n, err := repo.Count(ctx, repository.EventFilter{Center: &moscow, RadiusKm: 2})
	if err != nil || n != 3 {
		t.Errorf("Count = %d, %v; want 3", n, err)
	}
}

func TestEventRepository_InsertRequiresID(t *testing.T) {
	repo := NewEventRepository(6)
	if err := repo.Insert(context.Background(), &entities.InteractionEvent{}); err != ErrMissingID {
		t.Errorf("Expected ErrMissingID, got %v", err)
	}
}

func TestRetentionSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(6)
	_ = repo.Insert(ctx, event("fresh", entities.EventView, 55.75, 37.61, now.Add(-24*time.Hour)))
	_ = repo.Insert(ctx, event("stale", entities.EventView, 55.75, 37.61, now.Add(-31*24*time.Hour)))

	s := NewRetentionSweeper(repo, 30*24*time.Hour, time.Hour)
	s.now = func() time.Time { return now }

	if removed := s.Sweep(); removed != 1 {
		t.Errorf("Expected 1 removed, got %d", removed)
	}
	if repo.Len() != 1 {
		t.Errorf("Expected 1 event left, got %d", repo.Len())
	}
	got, _ := repo.Find(ctx, repository.EventFilter{Center: &moscow, RadiusKm: 5})
	if len(got) != 1 || got[0].ID != "fresh" {
		t.Errorf("Expected stale event gone from the spatial index too, got %v", ids(got))
	}
}

func TestListingRepository_VisibilityAndRadius(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(6)

	visible := listing("a", 55.7560, 37.6175, 100, now)
	sold := listing("sold", 55.7561, 37.6176, 100, now)
	sold.Status = entities.ListingStatusSold
	pending := listing("pending", 55.7562, 37.6177, 100, now)
	pending.ModerationStatus = entities.ModerationPending
	far := listing("far", 59.9343, 30.3351, 100, now)

	for _, l := range []*entities.Listing{visible, sold, pending, far} {
		if err := repo.Upsert(ctx, l); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	got, err := repo.FindWithinRadius(ctx, repository.ListingFilter{Center: &moscow, RadiusKm: 3})
	if err != nil {
		t.Fatalf("FindWithinRadius failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("Expected only the visible nearby listing, got %d", len(got))
	}
	if got[0].Geohash == "" {
		t.Error("Expected Upsert to fill in the geohash")
	}

	if _, err := repo.FindWithinRadius(ctx, repository.ListingFilter{}); err != repository.ErrSpatialUnavailable {
		t.Errorf("Expected ErrSpatialUnavailable without center, got %v", err)
	}
}

func TestListingRepository_ListSortAndPage(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(6)

	_ = repo.Upsert(ctx, listing("cheap", 55.75, 37.61, 50, now.Add(-3*time.Hour)))
	_ = repo.Upsert(ctx, listing("mid", 55.75, 37.61, 150, now.Add(-2*time.Hour)))
	_ = repo.Upsert(ctx, listing("pricey", 55.75, 37.61, 900, now.Add(-time.Hour)))

	tests := []struct {
		sort  repository.ListingSort
		limit int
		skip  int
		want  []string
	}{
		{repository.SortNewest, 10, 0, []string{"pricey", "mid", "cheap"}},
		{repository.SortPriceAsc, 2, 0, []string{"cheap", "mid"}},
		{repository.SortPriceDesc, 2, 1, []string{"mid", "cheap"}},
		{repository.SortDistance, 1, 0, []string{"pricey"}},
	}
	for _, tt := range tests {
		items, total, err := repo.List(ctx, repository.ListingFilter{}, tt.sort, tt.limit, tt.skip)
		if err != nil {
			t.Fatalf("List(%s) failed: %v", tt.sort, err)
		}
		if total != 3 {
			t.Errorf("List(%s) total = %d, want 3", tt.sort, total)
		}
		got := make([]string, len(items))
		for i, l := range items {
			got[i] = l.ID
		}
		if len(got) != len(tt.want) {
			t.Fatalf("List(%s) = %v, want %v", tt.sort, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("List(%s) = %v, want %v", tt.sort, got, tt.want)
				break
			}
		}
	}

	minPrice := decimal.NewFromInt(100)
	n, err := repo.Count(ctx, repository.ListingFilter{PriceMin: &minPrice})
	if err != nil || n != 2 {
		t.Errorf("Count(price>=100) = %d, %v; want 2", n, err)
	}
}

func ids(events []*entities.InteractionEvent) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
