package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceStats summarizes listing prices in a bucket or result set.
type PriceStats struct {
	Count int             `json:"count"`
	Min   decimal.Decimal `json:"min"`
	Max   decimal.Decimal `json:"max"`
	Avg   decimal.Decimal `json:"avg"`
}

// SpatialBucket is the set of events or listings sharing a truncated
// geohash prefix within one query. Buckets are recomputed on every call.
//
// The centroid is a plain arithmetic mean of member coordinates, which is
// only meaningful for small cells (prefix length 4-7).
type SpatialBucket struct {
	Geohash        string         `json:"geoHash"`
	Centroid       Location       `json:"centroid"`
	Count          int            `json:"count"`
	TypeBreakdown  map[string]int `json:"typeBreakdown,omitempty"`
	CategoryHints  []string       `json:"categoryHints"`
	QueryHints     []string       `json:"queryHints"`
	Prices         PriceStats     `json:"prices"`
	Representative *Listing       `json:"representative,omitempty"`
	LastSeen       time.Time      `json:"lastSeen"`
}

// TypeCount returns how many members of the bucket had the given type.
func (b *SpatialBucket) TypeCount(t EventType) int {
	return b.TypeBreakdown[string(t)]
}

// Hotspot is a SpatialBucket annotated with relative intensity and growth.
// Intensity is relative to the maximum bucket count of the result set it was
// computed in, so the same cell may report different intensities across
// calls with different radii or windows.
type Hotspot struct {
	SpatialBucket
	Intensity     float64 `json:"intensity"`
	DemandScore   float64 `json:"demandScore"`
	GrowthRate    float64 `json:"growthRate"`
	NewRatio      float64 `json:"newRatio,omitempty"`
	PreviousCount int     `json:"previousCount"`
	TotalCount    int     `json:"totalCount,omitempty"`
	IsHotspot     bool    `json:"isHotspot"`
}

// ZoneType classifies a demand/supply mismatch.
type ZoneType string

const (
	ZoneHighDemandLowSupply ZoneType = "high_demand_low_supply"
	ZoneHighSupplyLowDemand ZoneType = "high_supply_low_demand"
)

// OpportunityZone is a geohash cell where demand and supply hotspot maps
// disagree strongly.
type OpportunityZone struct {
	Geohash          string   `json:"geoHash"`
	Centroid         Location `json:"centroid"`
	Type             ZoneType `json:"type"`
	OpportunityScore float64  `json:"opportunityScore"`
	DemandIntensity  float64  `json:"demandIntensity"`
	SupplyIntensity  float64  `json:"supplyIntensity"`
	CategoryHints    []string `json:"categoryHints"`
	Recommendation   string   `json:"recommendation"`
}
