package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
	"geopulse/pkg/utils"
)

// Category demand labels.
const (
	DemandHigh         = "high_demand"
	DemandBalanced     = "balanced"
	DemandNone         = "no_demand"
	DemandOversupplied = "oversupplied"
)

// HeatmapPoint is one demand heatmap cell.
type HeatmapPoint struct {
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Intensity     float64 `json:"intensity"`
	Count         int     `json:"count"`
	Searches      int     `json:"searches"`
	EmptySearches int     `json:"emptySearches"`
	GeoHash       string  `json:"geoHash"`
}

// DemandHeatmap is the result of DemandService.Heatmap.
type DemandHeatmap struct {
	Points      []HeatmapPoint `json:"points"`
	TotalEvents int            `json:"totalEvents"`
}

// TrendingQuery is one ranked free-text query.
type TrendingQuery struct {
	Query        string    `json:"query"`
	Count        int       `json:"count"`
	EmptyCount   int       `json:"emptyCount"`
	DemandScore  float64   `json:"demandScore"`
	LastSearched time.Time `json:"lastSearched"`
}

// TrendingResult is the result of DemandService.Trending.
type TrendingResult struct {
	Trends []TrendingQuery `json:"trends"`
}

// CategoryDemand compares recent buyer interest in a category with its live
// supply.
type CategoryDemand struct {
	CategoryID        string  `json:"categoryId"`
	Demand            int     `json:"demand"`
	Supply            int     `json:"supply"`
	DemandSupplyRatio float64 `json:"demandSupplyRatio"`
	Recommendation    string  `json:"recommendation"`
}

// DemandService turns interaction events into heatmaps and query rankings.
//
// Heatmap intensity here uses a fixed divisor, so a cell's intensity does
// not depend on its neighbours. HotspotService normalizes against the
// busiest bucket instead; the two are separate metrics.
type DemandService struct {
	agg       *Aggregator
	events    repository.EventRepository
	listings  repository.ListingRepository
	cache     *cache.Cache
	cfg       config.DemandConfig
	precision int
	now       Clock
}

// NewDemandService creates a DemandService. results caches heatmaps,
// rankings and category demand.
func NewDemandService(
	agg *Aggregator,
	events repository.EventRepository,
	listings repository.ListingRepository,
	results *cache.Cache,
	cfg config.DemandConfig,
	precision int,
) *DemandService {
	return &DemandService{
		agg:       agg,
		events:    events,
		listings:  listings,
		cache:     results,
		cfg:       cfg,
		precision: precision,
		now:       time.Now,
	}
}

// SetClock replaces the service's time source.
func (s *DemandService) SetClock(now Clock) { s.now = now }

// Heatmap aggregates demand events in [now-hours, now) around center.
// score = count + 2×emptySearches; intensity = clamp(score/10, 0, 1).
func (s *DemandService) Heatmap(ctx context.Context, center entities.Location, radiusKm float64, hours int) (*DemandHeatmap, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}
	if hours <= 0 {
		hours = s.cfg.Hours
	}

	key := cache.Key("demand_heatmap", cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm, hours)
	hm, _, err := cache.Fetch(s.cache, key, func() (*DemandHeatmap, error) {
		since, until := window(s.now(), hours)
		buckets, total, err := s.agg.Events(ctx, repository.EventFilter{
			Center:   &center,
			RadiusKm: radiusKm,
			Since:    since,
			Until:    until,
			Types:    entities.DemandEventTypes,
		}, s.precision)
		if err != nil {
			return nil, err
		}

		points := make([]HeatmapPoint, 0, len(buckets))
		for _, b := range buckets {
			empty := b.TypeCount(entities.EventEmptySearch)
			score := float64(b.Count + 2*empty)
			points = append(points, HeatmapPoint{
				Lat:           b.Centroid.Latitude,
				Lng:           b.Centroid.Longitude,
				Intensity:     utils.Clamp(score/s.divisor(), 0, 1),
				Count:         b.Count,
				Searches:      b.TypeCount(entities.EventSearch),
				EmptySearches: empty,
				GeoHash:       b.Geohash,
			})
		}
		return &DemandHeatmap{Points: points, TotalEvents: total}, nil
	})
	return hm, err
}

func (s *DemandService) divisor() float64 {
	if s.cfg.IntensityDivisor > 0 {
		return s.cfg.IntensityDivisor
	}
	return 10
}

// Trending ranks free-text queries from search and empty_search events in
// [now-hours, now) around center.
func (s *DemandService) Trending(ctx context.Context, center entities.Location, radiusKm float64, hours, limit int) (*TrendingResult, error) {
	return s.rank(ctx, "trending", entities.SearchEventTypes, center, radiusKm, hours, limit)
}

// UnmetQueries ranks queries from empty_search events only: searches that
// found nothing.
func (s *DemandService) UnmetQueries(ctx context.Context, center entities.Location, radiusKm float64, hours, limit int) (*TrendingResult, error) {
	return s.rank(ctx, "unmet", []entities.EventType{entities.EventEmptySearch}, center, radiusKm, hours, limit)
}

func (s *DemandService) rank(ctx context.Context, name string, types []entities.EventType, center entities.Location, radiusKm float64, hours, limit int) (*TrendingResult, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}
	if hours <= 0 {
		hours = s.cfg.Hours
	}
	if limit <= 0 {
		limit = s.cfg.TrendingLimit
	}

	key := cache.Key(name, cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm, hours, limit)
	res, _, err := cache.Fetch(s.cache, key, func() (*TrendingResult, error) {
		since, until := window(s.now(), hours)
		events, err := s.events.Find(ctx, repository.EventFilter{
			Center:   &center,
			RadiusKm: radiusKm,
			Since:    since,
			Until:    until,
			Types:    types,
		})
		if err != nil {
			return nil, fmt.Errorf("find search events: %w", err)
		}
		return &TrendingResult{Trends: RankQueries(events, limit)}, nil
	})
	return res, err
}

// RankQueries groups search events by normalized query.
// count = search events, emptyCount = empty_search events,
// demandScore = count + 1.5×emptyCount. Sorted by demandScore desc, then
// most recent first, then query.
func RankQueries(events []*entities.InteractionEvent, limit int) []TrendingQuery {
	byQuery := make(map[string]*TrendingQuery)
	for _, e := range events {
		q := NormalizeQuery(e.Query)
		if q == "" || !e.IsSearch() {
			continue
		}
		t, ok := byQuery[q]
		if !ok {
			t = &TrendingQuery{Query: q}
			byQuery[q] = t
		}
		if e.Type == entities.EventEmptySearch {
			t.EmptyCount++
		} else {
			t.Count++
		}
		if e.CreatedAt.After(t.LastSearched) {
			t.LastSearched = e.CreatedAt
		}
	}

	out := make([]TrendingQuery, 0, len(byQuery))
	for _, t := range byQuery {
		t.DemandScore = float64(t.Count) + 1.5*float64(t.EmptyCount)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DemandScore != out[j].DemandScore {
			return out[i].DemandScore > out[j].DemandScore
		}
		if !out[i].LastSearched.Equal(out[j].LastSearched) {
			return out[i].LastSearched.After(out[j].LastSearched)
		}
		return out[i].Query < out[j].Query
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CategoryDemand compares demand events for a category over the configured
// window (7 days by default) with its active listings. center is optional;
// without it the whole store is counted.
func (s *DemandService) CategoryDemand(ctx context.Context, categoryID string, center *entities.Location, radiusKm float64) (*CategoryDemand, error) {
	if categoryID == "" {
		return nil, fmt.Errorf("category id is required")
	}
	if center != nil {
		if err := validateArea(*center, radiusKm); err != nil {
			return nil, err
		}
	}

	key := cache.Key("category_demand", categoryID, "global")
	if center != nil {
		key = cache.Key("category_demand", categoryID, cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm)
	}

	res, _, err := cache.Fetch(s.cache, key, func() (*CategoryDemand, error) {
		var demand, supply int
		since := s.now().Add(-s.cfg.CategoryWindow)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			n, err := s.events.Count(gctx, repository.EventFilter{
				Center:     center,
				RadiusKm:   radiusKm,
				Since:      since,
				Types:      entities.DemandEventTypes,
				CategoryID: categoryID,
			})
			if err != nil {
				return fmt.Errorf("count category demand: %w", err)
			}
			demand = n
			return nil
		})
		g.Go(func() error {
			n, err := s.listings.Count(gctx, repository.ListingFilter{
				Center:     center,
				RadiusKm:   radiusKm,
				CategoryID: categoryID,
			})
			if err != nil {
				return fmt.Errorf("count category supply: %w", err)
			}
			supply = n
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		ratio := float64(demand) / float64(max(supply, 1))
		return &CategoryDemand{
			CategoryID:        categoryID,
			Demand:            demand,
			Supply:            supply,
			DemandSupplyRatio: utils.Round(ratio, 2),
			Recommendation:    s.demandLabel(demand, supply, ratio),
		}, nil
	})
	return res, err
}

func (s *DemandService) demandLabel(demand, supply int, ratio float64) string {
	switch {
	case ratio >= s.cfg.HighDemandRatio:
		return DemandHigh
	case ratio >= s.cfg.BalancedDemandMin:
		return DemandBalanced
	case demand == 0 && supply > 0:
		return DemandNone
	default:
		return DemandOversupplied
	}
}
