package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/metrics"
)

// OpportunityRules are the thresholds of opportunity classification.
type OpportunityRules struct {
	DemandMin        float64 // demand intensity above which a cell is interesting
	SupplyMax        float64 // supply intensity below which it counts as undersupplied
	SaturationMin    float64 // supply intensity above which a cell with no demand is saturated
	SaturationFactor float64 // damping applied to saturated scores
	MaxZones         int
}

// RulesFromConfig builds OpportunityRules from configuration.
func RulesFromConfig(cfg config.OpportunityConfig) OpportunityRules {
	return OpportunityRules{
		DemandMin:        cfg.DemandMin,
		SupplyMax:        cfg.SupplyMax,
		SaturationMin:    cfg.SaturationMin,
		SaturationFactor: cfg.SaturationFactor,
		MaxZones:         cfg.MaxZones,
	}
}

// OpportunitySummary counts zones by type.
type OpportunitySummary struct {
	Total               int `json:"total"`
	HighDemandLowSupply int `json:"highDemandLowSupply"`
	HighSupplyLowDemand int `json:"highSupplyLowDemand"`
}

// OpportunityResult is the result of OpportunityService.Zones.
type OpportunityResult struct {
	Zones   []entities.OpportunityZone `json:"zones"`
	Summary OpportunitySummary         `json:"summary"`
}

// OpportunityService cross-references demand and supply hotspots.
type OpportunityService struct {
	hotspots *HotspotService
	cfg      config.OpportunityConfig
}

// NewOpportunityService creates an OpportunityService.
func NewOpportunityService(hotspots *HotspotService, cfg config.OpportunityConfig) *OpportunityService {
	return &OpportunityService{hotspots: hotspots, cfg: cfg}
}

// Zones runs demand and supply hotspot detection concurrently over a
// widened window with a lowered threshold and classifies the cells where
// the two disagree.
func (s *OpportunityService) Zones(ctx context.Context, center entities.Location, radiusKm float64) (*OpportunityResult, error) {
	if err := validateArea(center, radiusKm); err != nil {
		return nil, err
	}

	var demand, supply *HotspotResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		demand, err = s.hotspots.Demand(gctx, center, radiusKm, s.cfg.Hours, s.cfg.Threshold)
		return err
	})
	g.Go(func() error {
		var err error
		supply, err = s.hotspots.Supply(gctx, center, radiusKm, s.cfg.Hours, s.cfg.Threshold)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	zones := ClassifyOpportunities(demand.Hotspots, supply.Hotspots, RulesFromConfig(s.cfg))
	res := &OpportunityResult{Zones: zones, Summary: summarizeZones(zones)}
	metrics.OpportunityZones.WithLabelValues(string(entities.ZoneHighDemandLowSupply)).Add(float64(res.Summary.HighDemandLowSupply))
	metrics.OpportunityZones.WithLabelValues(string(entities.ZoneHighSupplyLowDemand)).Add(float64(res.Summary.HighSupplyLowDemand))
	return res, nil
}

// ClassifyOpportunities joins demand and supply hotspots by geohash.
//
//   - demand intensity > DemandMin with supply absent or below SupplyMax
//     ⇒ high_demand_low_supply, score = d×(1−s)
//   - supply intensity > SaturationMin with no demand in the cell
//     ⇒ high_supply_low_demand, score = s×SaturationFactor
//
// Zones are sorted by score desc, then geohash, and truncated to MaxZones.
func ClassifyOpportunities(demand, supply []entities.Hotspot, rules OpportunityRules) []entities.OpportunityZone {
	demandByCell := make(map[string]entities.Hotspot, len(demand))
	for _, h := range demand {
		demandByCell[h.Geohash] = h
	}
	supplyByCell := make(map[string]entities.Hotspot, len(supply))
	for _, h := range supply {
		supplyByCell[h.Geohash] = h
	}

	zones := make([]entities.OpportunityZone, 0)
	for _, d := range demand {
		if d.Intensity <= rules.DemandMin {
			continue
		}
		sup, hasSupply := supplyByCell[d.Geohash]
		if hasSupply && sup.Intensity >= rules.SupplyMax {
			continue
		}
		supplyIntensity := 0.0
		if hasSupply {
			supplyIntensity = sup.Intensity
		}
		zones = append(zones, entities.OpportunityZone{
			Geohash:          d.Geohash,
			Centroid:         d.Centroid,
			Type:             entities.ZoneHighDemandLowSupply,
			OpportunityScore: d.Intensity * (1 - supplyIntensity),
			DemandIntensity:  d.Intensity,
			SupplyIntensity:  supplyIntensity,
			CategoryHints:    hintsOrEmpty(d.CategoryHints),
			Recommendation:   demandRecommendation(d),
		})
	}

	for _, sup := range supply {
		if _, hasDemand := demandByCell[sup.Geohash]; hasDemand || sup.Intensity <= rules.SaturationMin {
			continue
		}
		zones = append(zones, entities.OpportunityZone{
			Geohash:          sup.Geohash,
			Centroid:         sup.Centroid,
			Type:             entities.ZoneHighSupplyLowDemand,
			OpportunityScore: sup.Intensity * rules.SaturationFactor,
			SupplyIntensity:  sup.Intensity,
			CategoryHints:    hintsOrEmpty(sup.CategoryHints),
			Recommendation:   saturationRecommendation(sup),
		})
	}

	sort.Slice(zones, func(i, j int) bool {
		if zones[i].OpportunityScore != zones[j].OpportunityScore {
			return zones[i].OpportunityScore > zones[j].OpportunityScore
		}
		return zones[i].Geohash < zones[j].Geohash
	})
	if rules.MaxZones > 0 && len(zones) > rules.MaxZones {
		zones = zones[:rules.MaxZones]
	}
	return zones
}

func summarizeZones(zones []entities.OpportunityZone) OpportunitySummary {
	s := OpportunitySummary{Total: len(zones)}
	for _, z := range zones {
		switch z.Type {
		case entities.ZoneHighDemandLowSupply:
			s.HighDemandLowSupply++
		case entities.ZoneHighSupplyLowDemand:
			s.HighSupplyLowDemand++
		}
	}
	return s
}

func hintsOrEmpty(h []string) []string {
	if h == nil {
		return []string{}
	}
	return h
}

func demandRecommendation(h entities.Hotspot) string {
	if len(h.QueryHints) > 0 {
		return fmt.Sprintf("Buyers here search for %s but few sellers offer it. Listing here should find buyers quickly.",
			strings.Join(h.QueryHints, ", "))
	}
	if len(h.CategoryHints) > 0 {
		return fmt.Sprintf("Strong demand in %s with little local supply.", strings.Join(h.CategoryHints, ", "))
	}
	return "Strong buyer activity with little local supply."
}

func saturationRecommendation(h entities.Hotspot) string {
	if len(h.CategoryHints) > 0 {
		return fmt.Sprintf("Many new %s listings and little buyer activity. Consider a nearby area or a sharper price.",
			strings.Join(h.CategoryHints, ", "))
	}
	return "Many new listings and little buyer activity. Consider a nearby area or a sharper price."
}
