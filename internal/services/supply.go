package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
	"geopulse/pkg/utils"
)

// SupplyPoint is one supply heatmap cell.
type SupplyPoint struct {
	Lat       float64         `json:"lat"`
	Lng       float64         `json:"lng"`
	Intensity float64         `json:"intensity"`
	Count     int             `json:"count"`
	AvgPrice  decimal.Decimal `json:"avgPrice"`
	GeoHash   string          `json:"geoHash"`
}

// SupplyHeatmap is the result of SupplyService.Heatmap.
type SupplyHeatmap struct {
	Points     []SupplyPoint       `json:"points"`
	TotalAds   int                 `json:"totalAds"`
	PriceStats entities.PriceStats `json:"priceStats"`
}

// Cluster is one map marker: a single listing or a group of them.
type Cluster struct {
	GeoHash        string            `json:"geoHash"`
	Lat            float64           `json:"lat"`
	Lng            float64           `json:"lng"`
	Count          int               `json:"count"`
	IsCluster      bool              `json:"isCluster"`
	AvgPrice       decimal.Decimal   `json:"avgPrice"`
	Representative *entities.Listing `json:"representative,omitempty"`
}

// ClusterResult is the result of SupplyService.Clusters.
type ClusterResult struct {
	Clusters  []Cluster `json:"clusters"`
	Precision int       `json:"precision"`
}

// FeedQuery selects one page of the listing feed. Center is optional.
type FeedQuery struct {
	Center        *entities.Location
	RadiusKm      float64
	CategoryID    string
	SubcategoryID string
	PriceMin      *decimal.Decimal
	PriceMax      *decimal.Decimal
	SortBy        repository.ListingSort
	Limit         int
	Skip          int
}

// FeedItem is a listing with its distance from the feed center, if any.
type FeedItem struct {
	Listing    *entities.Listing `json:"listing"`
	DistanceKm *float64          `json:"distanceKm,omitempty"`
}

// Feed is one page of listings.
type Feed struct {
	Ads      []FeedItem `json:"ads"`
	Count    int        `json:"count"`
	HasMore  bool       `json:"hasMore"`
	Degraded bool       `json:"degraded,omitempty"`
}

// SupplyService turns live listings into heatmaps, map clusters and feeds.
type SupplyService struct {
	agg       *Aggregator
	listings  repository.ListingRepository
	cache     *cache.Cache
	cfg       config.SupplyConfig
	precision int
}

// NewSupplyService creates a SupplyService.
func NewSupplyService(
	agg *Aggregator,
	listings repository.ListingRepository,
	results *cache.Cache,
	cfg config.SupplyConfig,
	precision int,
) *SupplyService {
	return &SupplyService{
		agg:       agg,
		listings:  listings,
		cache:     results,
		cfg:       cfg,
		precision: precision,
	}
}

// Heatmap buckets visible listings around center. intensity =
// min(count/20, 1); each point carries its average price.
func (s *SupplyService) Heatmap(ctx context.Context, center entities.Location, radiusKm float64, categoryID string) (*SupplyHeatmap, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}

	key := cache.Key("supply_heatmap", cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm, categoryID)
	hm, _, err := cache.Fetch(s.cache, key, func() (*SupplyHeatmap, error) {
		start := time.Now()
		listings, err := s.listings.FindWithinRadius(ctx, repository.ListingFilter{
			Center:     &center,
			RadiusKm:   radiusKm,
			CategoryID: categoryID,
		})
		observeListings(start, err)
		if err != nil {
			return nil, fmt.Errorf("supply heatmap: %w", err)
		}

		buckets := GroupListings(listings, s.precision)
		points := make([]SupplyPoint, 0, len(buckets))
		for _, b := range buckets {
			points = append(points, SupplyPoint{
				Lat:       b.Centroid.Latitude,
				Lng:       b.Centroid.Longitude,
				Intensity: utils.Clamp(float64(b.Count)/s.divisor(), 0, 1),
				Count:     b.Count,
				AvgPrice:  b.Prices.Avg,
				GeoHash:   b.Geohash,
			})
		}
		return &SupplyHeatmap{
			Points:     points,
			TotalAds:   len(listings),
			PriceStats: PriceSummary(listings),
		}, nil
	})
	return hm, err
}

func (s *SupplyService) divisor() float64 {
	if s.cfg.IntensityDivisor > 0 {
		return s.cfg.IntensityDivisor
	}
	return 20
}

// PrecisionForZoom maps a map zoom level to a cluster geohash precision.
func PrecisionForZoom(zoom int) int {
	switch {
	case zoom >= 15:
		return 7
	case zoom >= 12:
		return 6
	case zoom >= 9:
		return 5
	default:
		return 4
	}
}

// Clusters groups visible listings into zoom-dependent markers, largest
// first, capped at the configured maximum.
func (s *SupplyService) Clusters(ctx context.Context, center entities.Location, radiusKm float64, zoom int, categoryID string) (*ClusterResult, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}
	precision := PrecisionForZoom(zoom)

	key := cache.Key("clusters", cache.Coord(center.Latitude), cache.Coord(center.Longitude), radiusKm, precision, categoryID)
	res, _, err := cache.Fetch(s.cache, key, func() (*ClusterResult, error) {
		buckets, _, err := s.agg.Listings(ctx, repository.ListingFilter{
			Center:     &center,
			RadiusKm:   radiusKm,
			CategoryID: categoryID,
		}, precision)
		if err != nil {
			return nil, err
		}

		limit := s.cfg.MaxClusters
		if limit <= 0 || limit > len(buckets) {
			limit = len(buckets)
		}
		clusters := make([]Cluster, 0, limit)
		for _, b := range buckets[:limit] {
			clusters = append(clusters, Cluster{
				GeoHash:        b.Geohash,
				Lat:            b.Centroid.Latitude,
				Lng:            b.Centroid.Longitude,
				Count:          b.Count,
				IsCluster:      b.Count > 1,
				AvgPrice:       b.Prices.Avg,
				Representative: b.Representative,
			})
		}
		return &ClusterResult{Clusters: clusters, Precision: precision}, nil
	})
	return res, err
}

// Feed returns one page of listings. With a center the page is ranked from
// a radius query; if that query fails the feed degrades to a plain filtered
// page sorted by recency. Degraded pages are not cached.
func (s *SupplyService) Feed(ctx context.Context, q FeedQuery) (*Feed, error) {
	q = s.normalizeFeed(q)
	if q.Center != nil {
		if err := validateArea(*q.Center, q.RadiusKm); err != nil {
			return nil, err
		}
	}

	key := feedKey(q)
	if v, ok := s.cache.Get(key); ok {
		if f, ok := v.(*Feed); ok {
			return f, nil
		}
	}

	var (
		feed *Feed
		err  error
	)
	if q.Center != nil {
		feed, err = s.nearbyFeed(ctx, q)
		if err != nil {
			slog.Warn("spatial feed query failed, serving recency feed", "err", err)
			feed, err = s.plainFeed(ctx, q, repository.SortNewest)
			if err != nil {
				return nil, err
			}
			feed.Degraded = true
			return feed, nil
		}
	} else {
		sortBy := q.SortBy
		if sortBy == repository.SortDistance {
			sortBy = repository.SortNewest
		}
		if feed, err = s.plainFeed(ctx, q, sortBy); err != nil {
			return nil, err
		}
	}

	s.cache.Set(key, feed)
	return feed, nil
}

func (s *SupplyService) normalizeFeed(q FeedQuery) FeedQuery {
	if q.Limit <= 0 {
		q.Limit = s.cfg.FeedLimit
	}
	if s.cfg.FeedMaxLimit > 0 && q.Limit > s.cfg.FeedMaxLimit {
		q.Limit = s.cfg.FeedMaxLimit
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.SortBy == "" {
		if q.Center != nil {
			q.SortBy = repository.SortDistance
		} else {
			q.SortBy = repository.SortNewest
		}
	}
	if q.Center != nil && q.RadiusKm <= 0 {
		q.RadiusKm = s.cfg.RadiusKm
	}
	return q
}

func (q FeedQuery) filter() repository.ListingFilter {
	return repository.ListingFilter{
		Center:        q.Center,
		RadiusKm:      q.RadiusKm,
		CategoryID:    q.CategoryID,
		SubcategoryID: q.SubcategoryID,
		PriceMin:      q.PriceMin,
		PriceMax:      q.PriceMax,
	}
}

func (s *SupplyService) nearbyFeed(ctx context.Context, q FeedQuery) (*Feed, error) {
	start := time.Now()
	listings, err := s.listings.FindWithinRadius(ctx, q.filter())
	observeListings(start, err)
	if err != nil {
		return nil, err
	}

	items := make([]FeedItem, len(listings))
	for i, l := range listings {
		d := utils.Round(utils.HaversineDistance(q.Center.Latitude, q.Center.Longitude, l.Location.Latitude, l.Location.Longitude), 3)
		items[i] = FeedItem{Listing: l, DistanceKm: &d}
	}

	if q.SortBy == repository.SortDistance {
		sort.SliceStable(items, func(i, j int) bool {
			if *items[i].DistanceKm != *items[j].DistanceKm {
				return *items[i].DistanceKm < *items[j].DistanceKm
			}
			return items[i].Listing.CreatedAt.After(items[j].Listing.CreatedAt)
		})
	} else {
		byListing := make(map[*entities.Listing]*float64, len(items))
		for _, it := range items {
			byListing[it.Listing] = it.DistanceKm
		}
		repository.SortListings(listings, q.SortBy)
		for i, l := range listings {
			items[i] = FeedItem{Listing: l, DistanceKm: byListing[l]}
		}
	}

	page := repository.Page(items, q.Limit, q.Skip)
	return &Feed{
		Ads:     page,
		Count:   len(items),
		HasMore: q.Skip+len(page) < len(items),
	}, nil
}

func (s *SupplyService) plainFeed(ctx context.Context, q FeedQuery, sortBy repository.ListingSort) (*Feed, error) {
	filter := q.filter()
	filter.Center = nil
	filter.RadiusKm = 0

	start := time.Now()
	listings, total, err := s.listings.List(ctx, filter, sortBy, q.Limit, q.Skip)
	observeListings(start, err)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}

	items := make([]FeedItem, len(listings))
	for i, l := range listings {
		items[i] = FeedItem{Listing: l}
	}
	return &Feed{
		Ads:     items,
		Count:   total,
		HasMore: q.Skip+len(items) < total,
	}, nil
}

func feedKey(q FeedQuery) string {
	lat, lng := "-", "-"
	if q.Center != nil {
		lat, lng = cache.Coord(q.Center.Latitude), cache.Coord(q.Center.Longitude)
	}
	return cache.Key("feed", lat, lng, q.RadiusKm, q.CategoryID, q.SubcategoryID,
		decimalKey(q.PriceMin), decimalKey(q.PriceMax), q.SortBy, q.Limit, q.Skip)
}

func decimalKey(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
