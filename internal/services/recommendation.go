package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

// Role is the marketplace role a recommendation is composed for.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleFarmer Role = "farmer"
)

// Hint types.
const (
	HintDemandOpportunity = "demand_opportunity"
	HintUnmetDemand       = "unmet_demand"
	HintNewNearby         = "new_nearby"
)

// Hint is one short actionable recommendation. Lower priority values are
// more urgent.
type Hint struct {
	Type     string         `json:"type"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority int            `json:"priority"`
	Data     map[string]any `json:"data,omitempty"`
}

// RecommendationService composes role-aware hints from the demand engine
// and the listing store.
type RecommendationService struct {
	demand   *DemandService
	listings repository.ListingRepository
	cfg      config.RecommendationConfig
	now      Clock
}

// NewRecommendationService creates a RecommendationService.
func NewRecommendationService(demand *DemandService, listings repository.ListingRepository, cfg config.RecommendationConfig) *RecommendationService {
	return &RecommendationService{
		demand:   demand,
		listings: listings,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock replaces the service's time source.
func (s *RecommendationService) SetClock(now Clock) { s.now = now }

// For returns hints for an actor. It never fails: unknown roles and
// internal errors yield an empty list.
func (s *RecommendationService) For(ctx context.Context, actorID string, role Role, center entities.Location) []Hint {
	var (
		hints []Hint
		err   error
	)
	switch role {
	case RoleSeller, RoleFarmer:
		hints, err = s.forSeller(ctx, center)
	case RoleBuyer:
		hints, err = s.forBuyer(ctx, center)
	default:
		return []Hint{}
	}
	if err != nil {
		slog.Warn("recommendations unavailable", "actor", actorID, "role", role, "err", err)
		return []Hint{}
	}

	sort.SliceStable(hints, func(i, j int) bool { return hints[i].Priority < hints[j].Priority })
	return hints
}

func (s *RecommendationService) forSeller(ctx context.Context, center entities.Location) ([]Hint, error) {
	var trending, unmet *TrendingResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trending, err = s.demand.Trending(gctx, center, s.cfg.TrendingRadiusKm, s.cfg.TrendingHours, 1)
		return err
	})
	g.Go(func() error {
		var err error
		unmet, err = s.demand.UnmetQueries(gctx, center, s.cfg.UnmetRadiusKm, s.cfg.UnmetHours, s.cfg.UnmetMax)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hints := make([]Hint, 0, 1+len(unmet.Trends))
	if len(trending.Trends) > 0 {
		top := trending.Trends[0]
		hints = append(hints, Hint{
			Type:     HintDemandOpportunity,
			Title:    "Popular nearby",
			Message:  fmt.Sprintf("%q is the most searched item within %g km today.", top.Query, s.cfg.TrendingRadiusKm),
			Priority: 2,
			Data: map[string]any{
				"query":       top.Query,
				"searches":    top.Count,
				"demandScore": top.DemandScore,
			},
		})
	}

	for _, q := range unmet.Trends {
		supply, err := s.listings.Count(ctx, repository.ListingFilter{
			Center:   &center,
			RadiusKm: s.cfg.UnmetRadiusKm,
			Text:     q.Query,
		})
		if err != nil {
			return nil, fmt.Errorf("count supply for %q: %w", q.Query, err)
		}
		if supply > 0 {
			continue
		}
		hints = append(hints, Hint{
			Type:     HintUnmetDemand,
			Title:    "Nobody sells this nearby",
			Message:  fmt.Sprintf("Buyers searched for %q %d times in the last %d hours and found nothing within %g km.", q.Query, q.EmptyCount, s.cfg.UnmetHours, s.cfg.UnmetRadiusKm),
			Priority: 1,
			Data: map[string]any{
				"query":         q.Query,
				"emptySearches": q.EmptyCount,
			},
		})
	}
	return hints, nil
}

func (s *RecommendationService) forBuyer(ctx context.Context, center entities.Location) ([]Hint, error) {
	n, err := s.listings.Count(ctx, repository.ListingFilter{
		Center:       &center,
		RadiusKm:     s.cfg.NearbyRadiusKm,
		CreatedSince: s.now().Add(-time.Duration(s.cfg.NearbyHours) * time.Hour),
	})
	if err != nil {
		return nil, fmt.Errorf("count new listings: %w", err)
	}
	if n == 0 {
		return []Hint{}, nil
	}
	return []Hint{{
		Type:     HintNewNearby,
		Title:    "New nearby",
		Message:  fmt.Sprintf("%d new listings within %g km in the last %d hours.", n, s.cfg.NearbyRadiusKm, s.cfg.NearbyHours),
		Priority: 2,
		Data:     map[string]any{"count": n},
	}}, nil
}
