package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"geopulse/internal/config"
	"geopulse/internal/services"
)

// areaFlags are shared by every query command.
type areaFlags struct {
	lat, lng, radiusKm float64
	hours              int
}

func (f *areaFlags) register(cmd *cobra.Command, hours int) {
	cmd.Flags().Float64Var(&f.lat, "lat", 0, "Center latitude")
	cmd.Flags().Float64Var(&f.lng, "lng", 0, "Center longitude")
	cmd.Flags().Float64Var(&f.radiusKm, "radius", 5, "Radius in kilometres")
	if hours > 0 {
		cmd.Flags().IntVar(&f.hours, "hours", hours, "Time window in hours")
	}
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")
}

var (
	hotspotArea      areaFlags
	hotspotSide      string
	hotspotThreshold float64

	opportunityArea areaFlags

	trendingArea  areaFlags
	trendingLimit int
)

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "Detect demand or supply hotspots around a point",
	Example: `  geopulse hotspots --lat 55.7558 --lng 37.6173 --radius 10
  geopulse hotspots --side supply --lat 55.7558 --lng 37.6173 --threshold 0.5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var run func(context.Context, *services.GeoIntelligence) any
		switch hotspotSide {
		case "demand":
			run = func(ctx context.Context, g *services.GeoIntelligence) any {
				return g.DemandHotspots(ctx, hotspotArea.lat, hotspotArea.lng, hotspotArea.radiusKm, hotspotArea.hours, hotspotThreshold)
			}
		case "supply":
			run = func(ctx context.Context, g *services.GeoIntelligence) any {
				return g.SupplyHotspots(ctx, hotspotArea.lat, hotspotArea.lng, hotspotArea.radiusKm, hotspotArea.hours, hotspotThreshold)
			}
		default:
			return fmt.Errorf("--side must be demand or supply, got %q", hotspotSide)
		}
		return runQuery(cmd, run)
	},
}

var opportunitiesCmd = &cobra.Command{
	Use:     "opportunities",
	Short:   "List opportunity zones where demand and supply disagree",
	Example: `  geopulse opportunities --lat 55.7558 --lng 37.6173 --radius 15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, g *services.GeoIntelligence) any {
			return g.OpportunityZones(ctx, opportunityArea.lat, opportunityArea.lng, opportunityArea.radiusKm)
		})
	},
}

var trendingCmd = &cobra.Command{
	Use:     "trending",
	Short:   "Rank trending search queries around a point",
	Example: `  geopulse trending --lat 55.7558 --lng 37.6173 --hours 6 --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, func(ctx context.Context, g *services.GeoIntelligence) any {
			return g.TrendingSearches(ctx, trendingArea.lat, trendingArea.lng, trendingArea.radiusKm, trendingArea.hours, trendingLimit)
		})
	},
}

func init() {
	hotspotArea.register(hotspotsCmd, 24)
	hotspotsCmd.Flags().StringVar(&hotspotSide, "side", "demand", "Hotspot side: demand or supply")
	hotspotsCmd.Flags().Float64Var(&hotspotThreshold, "threshold", 0, "Minimum relative intensity (default from config)")

	opportunityArea.register(opportunitiesCmd, 0)

	trendingArea.register(trendingCmd, 24)
	trendingCmd.Flags().IntVar(&trendingLimit, "limit", 10, "Maximum queries to return")

	rootCmd.AddCommand(hotspotsCmd, opportunitiesCmd, trendingCmd)
}

// runQuery opens the configured stores, runs one façade call and prints the
// Result envelope as indented JSON.
func runQuery(cmd *cobra.Command, run func(context.Context, *services.GeoIntelligence) any) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	return queryWith(cmd, cfg, run)
}

func queryWith(cmd *cobra.Command, cfg *config.Config, run func(context.Context, *services.GeoIntelligence) any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	out, err := json.MarshalIndent(run(ctx, newEngine(cfg, b)), "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
