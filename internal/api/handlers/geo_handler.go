// Package handlers adapts HTTP requests to the GeoIntelligence façade.
//
// Handlers only bind and validate input. Every successful bind is answered
// with 200 and the façade's Result envelope, whether or not the operation
// succeeded; malformed input is answered with 400.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
	"geopulse/internal/services"
)

type GeoHandler struct {
	geo *services.GeoIntelligence
	cfg *config.Config
}

func NewGeoHandler(geo *services.GeoIntelligence, cfg *config.Config) *GeoHandler {
	return &GeoHandler{geo: geo, cfg: cfg}
}

// areaQuery is the center + radius shared by most endpoints.
//
// Go Learning Note — Pointer Fields for Required Numbers:
// `binding:"required"` rejects zero values, and 0 is a valid latitude. A
// *float64 is nil only when the parameter is absent, so required checks
// presence while lat=0 still binds.
type areaQuery struct {
	Lat      *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng      *float64 `form:"lng" binding:"required,min=-180,max=180"`
	RadiusKm float64  `form:"radiusKm" binding:"omitempty,gt=0"`
}

func (q areaQuery) radius(def float64) float64 {
	if q.RadiusKm > 0 {
		return q.RadiusKm
	}
	return def
}

type demandHeatmapQuery struct {
	areaQuery
	Hours int `form:"hours" binding:"omitempty,min=1,max=720"`
}

// DemandHeatmap handles GET /api/v1/geo/heatmap/demand
func (h *GeoHandler) DemandHeatmap(c *gin.Context) {
	var q demandHeatmapQuery
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.HeatmapDemand(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Demand.RadiusKm), q.Hours))
}

type supplyHeatmapQuery struct {
	areaQuery
	CategoryID string `form:"categoryId"`
}

// SupplyHeatmap handles GET /api/v1/geo/heatmap/supply
func (h *GeoHandler) SupplyHeatmap(c *gin.Context) {
	var q supplyHeatmapQuery
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.HeatmapSupply(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Supply.RadiusKm), q.CategoryID))
}

type trendingQuery struct {
	areaQuery
	Hours int `form:"hours" binding:"omitempty,min=1,max=720"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Trending handles GET /api/v1/geo/trending
func (h *GeoHandler) Trending(c *gin.Context) {
	var q trendingQuery
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.TrendingSearches(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Demand.RadiusKm), q.Hours, q.Limit))
}

type feedQuery struct {
	Lat           *float64 `form:"lat" binding:"omitempty,min=-90,max=90"`
	Lng           *float64 `form:"lng" binding:"omitempty,min=-180,max=180"`
	RadiusKm      float64  `form:"radiusKm" binding:"omitempty,gt=0"`
	CategoryID    string   `form:"categoryId"`
	SubcategoryID string   `form:"subcategoryId"`
	PriceMin      string   `form:"priceMin"`
	PriceMax      string   `form:"priceMax"`
	SortBy        string   `form:"sortBy" binding:"omitempty,oneof=distance price_asc price_desc newest popular"`
	Limit         int      `form:"limit" binding:"omitempty,min=1"`
	Skip          int      `form:"skip" binding:"omitempty,min=0"`
}

// Feed handles GET /api/v1/geo/feed. lat and lng are optional but must be
// sent together.
func (h *GeoHandler) Feed(c *gin.Context) {
	var q feedQuery
	if !bindQuery(c, &q) {
		return
	}
	if (q.Lat == nil) != (q.Lng == nil) {
		badRequest(c, fmt.Errorf("lat and lng must be given together"))
		return
	}

	fq := services.FeedQuery{
		RadiusKm:      q.RadiusKm,
		CategoryID:    q.CategoryID,
		SubcategoryID: q.SubcategoryID,
		Limit:         q.Limit,
		Skip:          q.Skip,
	}
	if q.Lat != nil {
		center := entities.NewLocation(*q.Lat, *q.Lng)
		fq.Center = &center
	}
	if q.SortBy != "" {
		fq.SortBy = repository.ParseListingSort(q.SortBy)
	}

	var err error
	if fq.PriceMin, err = parsePrice("priceMin", q.PriceMin); err != nil {
		badRequest(c, err)
		return
	}
	if fq.PriceMax, err = parsePrice("priceMax", q.PriceMax); err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, h.geo.GeoFeed(c.Request.Context(), fq))
}

type clustersQuery struct {
	areaQuery
	Zoom       int    `form:"zoom" binding:"omitempty,min=0,max=22"`
	CategoryID string `form:"categoryId"`
}

// Clusters handles GET /api/v1/geo/clusters
func (h *GeoHandler) Clusters(c *gin.Context) {
	q := clustersQuery{Zoom: 12}
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.ClusteredMarkers(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Supply.RadiusKm), q.Zoom, q.CategoryID))
}

type categoryDemandQuery struct {
	Lat      *float64 `form:"lat" binding:"omitempty,min=-90,max=90"`
	Lng      *float64 `form:"lng" binding:"omitempty,min=-180,max=180"`
	RadiusKm float64  `form:"radiusKm" binding:"omitempty,gt=0"`
}

// CategoryDemand handles GET /api/v1/geo/categories/:categoryId/demand.
// Without lat/lng the whole store is counted.
func (h *GeoHandler) CategoryDemand(c *gin.Context) {
	var q categoryDemandQuery
	if !bindQuery(c, &q) {
		return
	}
	if (q.Lat == nil) != (q.Lng == nil) {
		badRequest(c, fmt.Errorf("lat and lng must be given together"))
		return
	}

	var center *entities.Location
	radius := q.RadiusKm
	if q.Lat != nil {
		loc := entities.NewLocation(*q.Lat, *q.Lng)
		center = &loc
		if radius <= 0 {
			radius = h.cfg.Demand.RadiusKm
		}
	}
	c.JSON(http.StatusOK, h.geo.DemandForCategory(c.Request.Context(), c.Param("categoryId"), center, radius))
}

type hotspotQuery struct {
	areaQuery
	Hours     int     `form:"hours" binding:"omitempty,min=1,max=720"`
	Threshold float64 `form:"threshold" binding:"omitempty,gt=0,lte=1"`
}

// DemandHotspots handles GET /api/v1/geo/hotspots/demand
func (h *GeoHandler) DemandHotspots(c *gin.Context) {
	var q hotspotQuery
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.DemandHotspots(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Demand.RadiusKm), q.Hours, q.Threshold))
}

// SupplyHotspots handles GET /api/v1/geo/hotspots/supply
func (h *GeoHandler) SupplyHotspots(c *gin.Context) {
	var q hotspotQuery
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.SupplyHotspots(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Supply.RadiusKm), q.Hours, q.Threshold))
}

// Opportunities handles GET /api/v1/geo/opportunities
func (h *GeoHandler) Opportunities(c *gin.Context) {
	var q areaQuery
	if !bindQuery(c, &q) {
		return
	}
	c.JSON(http.StatusOK, h.geo.OpportunityZones(c.Request.Context(), *q.Lat, *q.Lng, q.radius(h.cfg.Demand.RadiusKm)))
}

func bindQuery(c *gin.Context, dst any) bool {
	if err := c.ShouldBindQuery(dst); err != nil {
		badRequest(c, err)
		return false
	}
	return true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

func parsePrice(name, raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%s must be a non-negative number", name)
	}
	return &d, nil
}
