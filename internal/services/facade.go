package services

import (
	"context"
	"log/slog"
	"time"

	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/metrics"
	"geopulse/internal/repository"
	"geopulse/pkg/utils"
)

// Result is the envelope every GeoIntelligence operation returns. On
// failure Data holds the operation's empty default, so callers can render
// it unconditionally and branch on Success for retries and logging.
//
// Go Learning Note — Generic Types:
// Result[T] is one envelope type instantiated per payload
// (Result[*DemandHeatmap], Result[[]Hint], ...), keeping the payload typed
// all the way to the JSON encoder.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// OK wraps a successful payload.
func OK[T any](data T) Result[T] {
	return Result[T]{Success: true, Data: data}
}

// Fail wraps an error with the operation's empty default.
func Fail[T any](err error, empty T) Result[T] {
	return Result[T]{Success: false, Data: empty, Error: err.Error()}
}

func wrap[T any](op string, data T, err error, empty T) Result[T] {
	if err != nil {
		slog.Warn("geo operation failed", "op", op, "err", err)
		return Fail(err, empty)
	}
	return OK(data)
}

// RecommendationList is the payload of GeoRecommendations.
type RecommendationList struct {
	Recommendations []Hint `json:"recommendations"`
}

// EventReceipt is the payload of LogGeoEvent.
type EventReceipt struct {
	EventID string `json:"eventId"`
}

// GeoIntelligence is the inbound surface of the engine. Every method
// returns a Result and never an error.
type GeoIntelligence struct {
	Demand          *DemandService
	Supply          *SupplyService
	Hotspots        *HotspotService
	Opportunities   *OpportunityService
	Recommendations *RecommendationService

	events repository.EventRepository
	now    Clock
}

// New wires every engine over the two stores. short caches raw heatmaps,
// feeds and rankings; long caches hotspot computations.
func New(cfg *config.Config, events repository.EventRepository, listings repository.ListingRepository, short, long *cache.Cache) *GeoIntelligence {
	agg := NewAggregator(events, listings)
	precision := cfg.Geo.BucketPrecision

	demand := NewDemandService(agg, events, listings, short, cfg.Demand, precision)
	hotspots := NewHotspotService(agg, long, cfg.Hotspot, precision)

	return &GeoIntelligence{
		Demand:          demand,
		Supply:          NewSupplyService(agg, listings, short, cfg.Supply, precision),
		Hotspots:        hotspots,
		Opportunities:   NewOpportunityService(hotspots, cfg.Opportunity),
		Recommendations: NewRecommendationService(demand, listings, cfg.Recommendation),
		events:          events,
		now:             time.Now,
	}
}

// SetClock replaces the time source of every engine.
func (g *GeoIntelligence) SetClock(now Clock) {
	g.now = now
	g.Demand.SetClock(now)
	g.Hotspots.SetClock(now)
	g.Recommendations.SetClock(now)
}

func (g *GeoIntelligence) HeatmapDemand(ctx context.Context, lat, lng, radiusKm float64, hours int) Result[*DemandHeatmap] {
	hm, err := g.Demand.Heatmap(ctx, entities.NewLocation(lat, lng), radiusKm, hours)
	return wrap("heatmap_demand", hm, err, &DemandHeatmap{Points: []HeatmapPoint{}})
}

func (g *GeoIntelligence) HeatmapSupply(ctx context.Context, lat, lng, radiusKm float64, categoryID string) Result[*SupplyHeatmap] {
	hm, err := g.Supply.Heatmap(ctx, entities.NewLocation(lat, lng), radiusKm, categoryID)
	return wrap("heatmap_supply", hm, err, &SupplyHeatmap{Points: []SupplyPoint{}})
}

func (g *GeoIntelligence) TrendingSearches(ctx context.Context, lat, lng, radiusKm float64, hours, limit int) Result[*TrendingResult] {
	res, err := g.Demand.Trending(ctx, entities.NewLocation(lat, lng), radiusKm, hours, limit)
	return wrap("trending_searches", res, err, &TrendingResult{Trends: []TrendingQuery{}})
}

func (g *GeoIntelligence) GeoFeed(ctx context.Context, q FeedQuery) Result[*Feed] {
	feed, err := g.Supply.Feed(ctx, q)
	return wrap("geo_feed", feed, err, &Feed{Ads: []FeedItem{}})
}

func (g *GeoIntelligence) ClusteredMarkers(ctx context.Context, lat, lng, radiusKm float64, zoom int, categoryID string) Result[*ClusterResult] {
	res, err := g.Supply.Clusters(ctx, entities.NewLocation(lat, lng), radiusKm, zoom, categoryID)
	return wrap("clustered_markers", res, err, &ClusterResult{Clusters: []Cluster{}, Precision: PrecisionForZoom(zoom)})
}

// DemandForCategory compares demand and supply for a category. center may
// be nil.
func (g *GeoIntelligence) DemandForCategory(ctx context.Context, categoryID string, center *entities.Location, radiusKm float64) Result[*CategoryDemand] {
	res, err := g.Demand.CategoryDemand(ctx, categoryID, center, radiusKm)
	return wrap("demand_for_category", res, err, &CategoryDemand{CategoryID: categoryID})
}

// GeoRecommendations always succeeds; failures inside the composer yield an
// empty list.
func (g *GeoIntelligence) GeoRecommendations(ctx context.Context, actorID string, lat, lng float64, role Role) Result[*RecommendationList] {
	hints := g.Recommendations.For(ctx, actorID, role, entities.NewLocation(lat, lng))
	return OK(&RecommendationList{Recommendations: hints})
}

func (g *GeoIntelligence) DemandHotspots(ctx context.Context, lat, lng, radiusKm float64, hours int, threshold float64) Result[*HotspotResult] {
	res, err := g.Hotspots.Demand(ctx, entities.NewLocation(lat, lng), radiusKm, hours, threshold)
	return wrap("demand_hotspots", res, err, &HotspotResult{Hotspots: []entities.Hotspot{}})
}

func (g *GeoIntelligence) SupplyHotspots(ctx context.Context, lat, lng, radiusKm float64, hours int, threshold float64) Result[*HotspotResult] {
	res, err := g.Hotspots.Supply(ctx, entities.NewLocation(lat, lng), radiusKm, hours, threshold)
	return wrap("supply_hotspots", res, err, &HotspotResult{Hotspots: []entities.Hotspot{}})
}

func (g *GeoIntelligence) OpportunityZones(ctx context.Context, lat, lng, radiusKm float64) Result[*OpportunityResult] {
	res, err := g.Opportunities.Zones(ctx, entities.NewLocation(lat, lng), radiusKm)
	return wrap("opportunity_zones", res, err, &OpportunityResult{Zones: []entities.OpportunityZone{}})
}

// LogGeoEvent hands an event to the Event Store. It only assigns an ID (and
// a timestamp when the caller sent none); the payload is stored as given.
func (g *GeoIntelligence) LogGeoEvent(ctx context.Context, event entities.InteractionEvent) Result[*EventReceipt] {
	event.ID = utils.GenerateID()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = g.now()
	}
	if err := g.events.Insert(ctx, &event); err != nil {
		return wrap("log_geo_event", (*EventReceipt)(nil), err, &EventReceipt{})
	}
	metrics.EventsLogged.WithLabelValues(string(event.Type)).Inc()
	return OK(&EventReceipt{EventID: event.ID})
}
