package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"geopulse/internal/api/middleware"
	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
	"geopulse/internal/services"
)

// eventGeohashPrecision is the geohash length stored with logged events;
// every bucketing precision is a prefix of it.
const eventGeohashPrecision = 9

// ActorHandler serves the endpoints that act on behalf of the
// authenticated actor.
type ActorHandler struct {
	geo *services.GeoIntelligence
}

func NewActorHandler(engine *services.GeoIntelligence) *ActorHandler {
	return &ActorHandler{geo: engine}
}

type recommendationsQuery struct {
	Lat *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng *float64 `form:"lng" binding:"required,min=-180,max=180"`
}

// Recommendations handles GET /api/v1/geo/recommendations
func (h *ActorHandler) Recommendations(c *gin.Context) {
	var q recommendationsQuery
	if !bindQuery(c, &q) {
		return
	}
	role := services.Role(middleware.GetRole(c))
	c.JSON(http.StatusOK, h.geo.GeoRecommendations(c.Request.Context(), middleware.GetActorID(c), *q.Lat, *q.Lng, role))
}

type LogEventRequest struct {
	Type       string         `json:"type" binding:"required,oneof=search empty_search view favorite category_open contact share"`
	Lat        *float64       `json:"lat" binding:"required,min=-90,max=90"`
	Lng        *float64       `json:"lng" binding:"required,min=-180,max=180"`
	CategoryID string         `json:"categoryId"`
	Query      string         `json:"query"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  *time.Time     `json:"createdAt"`
}

// LogEvent handles POST /api/v1/geo/events. The actor comes from the
// Authorization header, never from the body.
func (h *ActorHandler) LogEvent(c *gin.Context) {
	var req LogEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	event := entities.InteractionEvent{
		Type:       entities.EventType(req.Type),
		Location:   entities.NewLocation(*req.Lat, *req.Lng),
		Geohash:    geo.Encode(*req.Lat, *req.Lng, eventGeohashPrecision),
		CategoryID: req.CategoryID,
		Query:      req.Query,
		ActorID:    middleware.GetActorID(c),
		Payload:    req.Payload,
	}
	if req.CreatedAt != nil {
		event.CreatedAt = req.CreatedAt.UTC()
	}

	c.JSON(http.StatusOK, h.geo.LogGeoEvent(c.Request.Context(), event))
}
