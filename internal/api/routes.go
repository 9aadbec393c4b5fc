// Package api wires HTTP routes onto a Gin engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"geopulse/internal/api/handlers"
	"geopulse/internal/api/middleware"
	"geopulse/internal/metrics"
)

type Router struct {
	geoHandler   *handlers.GeoHandler
	actorHandler *handlers.ActorHandler
	logger       *slog.Logger
}

func NewRouter(geoHandler *handlers.GeoHandler, actorHandler *handlers.ActorHandler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		geoHandler:   geoHandler,
		actorHandler: actorHandler,
		logger:       logger,
	}
}

func (r *Router) Setup(engine *gin.Engine) {
	engine.Use(gin.Recovery(), metrics.Middleware(), middleware.RequestLogger(r.logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	geo := engine.Group("/api/v1/geo")
	{
		// Read-only analytics are public.
		geo.GET("/heatmap/demand", r.geoHandler.DemandHeatmap)
		geo.GET("/heatmap/supply", r.geoHandler.SupplyHeatmap)
		geo.GET("/trending", r.geoHandler.Trending)
		geo.GET("/feed", r.geoHandler.Feed)
		geo.GET("/clusters", r.geoHandler.Clusters)
		geo.GET("/categories/:categoryId/demand", r.geoHandler.CategoryDemand)
		geo.GET("/hotspots/demand", r.geoHandler.DemandHotspots)
		geo.GET("/hotspots/supply", r.geoHandler.SupplyHotspots)
		geo.GET("/opportunities", r.geoHandler.Opportunities)

		actor := geo.Group("/")
		actor.Use(middleware.MockAuth())
		{
			actor.GET("/recommendations", r.actorHandler.Recommendations)
			actor.POST("/events", r.actorHandler.LogEvent)
		}
	}
}
