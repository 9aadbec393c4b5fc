package services

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/metrics"
	"geopulse/internal/repository"
)

// HotspotSummary describes a hotspot computation.
type HotspotSummary struct {
	TotalBuckets  int     `json:"totalBuckets"`
	HotspotCount  int     `json:"hotspotCount"`
	TotalEvents   int     `json:"totalEvents,omitempty"`
	TotalListings int     `json:"totalListings,omitempty"`
	Hours         int     `json:"hours"`
	Threshold     float64 `json:"threshold"`
	PeakGeohash   string  `json:"peakGeohash,omitempty"`
}

// HotspotResult is the result of HotspotService.Demand and Supply.
type HotspotResult struct {
	Hotspots []entities.Hotspot `json:"hotspots"`
	Summary  HotspotSummary     `json:"summary"`
}

// HotspotRules are the tunables of hotspot scoring.
type HotspotRules struct {
	Threshold       float64 // minimum relative intensity
	GrowthThreshold float64 // growth rate that qualifies on its own
	GrowthFloor     int     // current count needed to call growth from zero
	NewRatioMin     float64 // new/total ratio that qualifies a supply bucket
}

// HotspotService compares a current time window with the preceding window
// of equal length and reports the buckets that stand out.
//
// Intensity is relative to the busiest bucket of the current result set, so
// the same cell can report different intensities for different radii or
// windows.
type HotspotService struct {
	agg       *Aggregator
	cache     *cache.Cache
	cfg       config.HotspotConfig
	precision int
	now       Clock
}

// NewHotspotService creates a HotspotService. results should be the
// long-TTL cache.
func NewHotspotService(agg *Aggregator, results *cache.Cache, cfg config.HotspotConfig, precision int) *HotspotService {
	return &HotspotService{
		agg:       agg,
		cache:     results,
		cfg:       cfg,
		precision: precision,
		now:       time.Now,
	}
}

// SetClock replaces the service's time source.
func (s *HotspotService) SetClock(now Clock) { s.now = now }

func (s *HotspotService) rules(threshold float64) HotspotRules {
	if threshold <= 0 {
		threshold = s.cfg.Threshold
	}
	return HotspotRules{
		Threshold:       threshold,
		GrowthThreshold: s.cfg.GrowthThreshold,
		GrowthFloor:     s.cfg.GrowthFloor,
		NewRatioMin:     s.cfg.NewRatioMin,
	}
}

// Demand detects demand hotspots: buckets of demand events in
// [now-hours, now) compared with [now-2·hours, now-hours). Both windows are
// aggregated concurrently.
func (s *HotspotService) Demand(ctx context.Context, center entities.Location, radiusKm float64, hours int, threshold float64) (*HotspotResult, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}
	if hours <= 0 {
		hours = s.cfg.Hours
	}
	rules := s.rules(threshold)

	key := cache.Key("demand_hotspots", cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm, hours, rules.Threshold)
	res, _, err := cache.Fetch(s.cache, key, func() (*HotspotResult, error) {
		now := s.now()
		span := time.Duration(hours) * time.Hour

		var current, previous []*entities.SpatialBucket
		var total int

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			current, total, err = s.agg.Events(gctx, repository.EventFilter{
				Center: &center, RadiusKm: radiusKm,
				Since: now.Add(-span), Until: now,
				Types: entities.DemandEventTypes,
			}, s.precision)
			return err
		})
		g.Go(func() error {
			var err error
			previous, _, err = s.agg.Events(gctx, repository.EventFilter{
				Center: &center, RadiusKm: radiusKm,
				Since: now.Add(-2 * span), Until: now.Add(-span),
				Types: entities.DemandEventTypes,
			}, s.precision)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		scored := ScoreDemandBuckets(current, previous, rules)
		res := selectHotspots(scored, hours, rules.Threshold)
		res.Summary.TotalEvents = total
		metrics.HotspotsDetected.WithLabelValues("demand").Add(float64(len(res.Hotspots)))
		return res, nil
	})
	return res, err
}

// Supply detects supply hotspots: buckets where many listings were created
// in [now-hours, now) relative to all listings in the bucket. The new and
// total aggregations run concurrently.
func (s *HotspotService) Supply(ctx context.Context, center entities.Location, radiusKm float64, hours int, threshold float64) (*HotspotResult, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}
	if hours <= 0 {
		hours = s.cfg.Hours
	}
	rules := s.rules(threshold)

	key := cache.Key("supply_hotspots", cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm, hours, rules.Threshold)
	res, _, err := cache.Fetch(s.cache, key, func() (*HotspotResult, error) {
		since := s.now().Add(-time.Duration(hours) * time.Hour)

		var fresh, all []*entities.SpatialBucket
		var total int

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			fresh, _, err = s.agg.Listings(gctx, repository.ListingFilter{
				Center: &center, RadiusKm: radiusKm, CreatedSince: since,
			}, s.precision)
			return err
		})
		g.Go(func() error {
			var err error
			all, total, err = s.agg.Listings(gctx, repository.ListingFilter{
				Center: &center, RadiusKm: radiusKm,
			}, s.precision)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		scored := ScoreSupplyBuckets(fresh, all, rules)
		res := selectHotspots(scored, hours, rules.Threshold)
		res.Summary.TotalListings = total
		metrics.HotspotsDetected.WithLabelValues("supply").Add(float64(len(res.Hotspots)))
		return res, nil
	})
	return res, err
}

// GrowthRate compares a bucket's current count with the previous window.
// From a zero baseline, growth is 1.0 only once the current count exceeds
// floor; otherwise it is 0.
func GrowthRate(current, previous, floor int) float64 {
	if previous > 0 {
		return float64(current-previous) / float64(previous)
	}
	if current > floor {
		return 1.0
	}
	return 0.0
}

// DemandScore is the per-event weighted average
// (searches + 2×emptySearches + 0.5×views + 3×favorites) / count.
func DemandScore(b *entities.SpatialBucket) float64 {
	if b.Count == 0 {
		return 0
	}
	weighted := float64(b.TypeCount(entities.EventSearch)) +
		2*float64(b.TypeCount(entities.EventEmptySearch)) +
		0.5*float64(b.TypeCount(entities.EventView)) +
		3*float64(b.TypeCount(entities.EventFavorite))
	return weighted / float64(b.Count)
}

// ScoreDemandBuckets scores every current bucket. intensity =
// count/maxCount; a bucket is a hotspot when intensity reaches the
// threshold or growth exceeds the growth threshold.
func ScoreDemandBuckets(current, previous []*entities.SpatialBucket, rules HotspotRules) []entities.Hotspot {
	prev := make(map[string]int, len(previous))
	for _, b := range previous {
		prev[b.Geohash] = b.Count
	}
	maxCount := 0
	for _, b := range current {
		maxCount = max(maxCount, b.Count)
	}

	out := make([]entities.Hotspot, 0, len(current))
	for _, b := range current {
		intensity := 0.0
		if maxCount > 0 {
			intensity = float64(b.Count) / float64(maxCount)
		}
		growth := GrowthRate(b.Count, prev[b.Geohash], rules.GrowthFloor)
		out = append(out, entities.Hotspot{
			SpatialBucket: *b,
			Intensity:     intensity,
			DemandScore:   DemandScore(b),
			GrowthRate:    growth,
			PreviousCount: prev[b.Geohash],
			IsHotspot:     intensity >= rules.Threshold || growth > rules.GrowthThreshold,
		})
	}
	return out
}

// ScoreSupplyBuckets scores every bucket with new listings. newRatio =
// new/total in the bucket; intensity = new/maxNew. A bucket is a hotspot
// when intensity reaches the threshold or newRatio exceeds NewRatioMin.
func ScoreSupplyBuckets(fresh, all []*entities.SpatialBucket, rules HotspotRules) []entities.Hotspot {
	totals := make(map[string]int, len(all))
	for _, b := range all {
		totals[b.Geohash] = b.Count
	}
	maxNew := 0
	for _, b := range fresh {
		maxNew = max(maxNew, b.Count)
	}

	out := make([]entities.Hotspot, 0, len(fresh))
	for _, b := range fresh {
		total := max(totals[b.Geohash], b.Count)
		intensity := 0.0
		if maxNew > 0 {
			intensity = float64(b.Count) / float64(maxNew)
		}
		ratio := float64(b.Count) / float64(total)
		out = append(out, entities.Hotspot{
			SpatialBucket: *b,
			Intensity:     intensity,
			GrowthRate:    ratio,
			NewRatio:      ratio,
			TotalCount:    total,
			IsHotspot:     intensity >= rules.Threshold || ratio > rules.NewRatioMin,
		})
	}
	return out
}

// selectHotspots keeps the hotspots, sorted by intensity desc then
// geohash, and summarizes the full scored set.
func selectHotspots(scored []entities.Hotspot, hours int, threshold float64) *HotspotResult {
	summary := HotspotSummary{
		TotalBuckets: len(scored),
		Hours:        hours,
		Threshold:    threshold,
	}

	peak := -1
	hotspots := make([]entities.Hotspot, 0)
	for i, h := range scored {
		if peak < 0 || h.Count > scored[peak].Count || (h.Count == scored[peak].Count && h.Geohash < scored[peak].Geohash) {
			peak = i
		}
		if h.IsHotspot {
			hotspots = append(hotspots, h)
		}
	}
	if peak >= 0 {
		summary.PeakGeohash = scored[peak].Geohash
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Intensity != hotspots[j].Intensity {
			return hotspots[i].Intensity > hotspots[j].Intensity
		}
		return hotspots[i].Geohash < hotspots[j].Geohash
	})
	summary.HotspotCount = len(hotspots)
	return &HotspotResult{Hotspots: hotspots, Summary: summary}
}
