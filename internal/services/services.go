// Package services contains the geo intelligence engines: spatial
// aggregation, demand and supply heatmaps, hotspot detection, opportunity
// matching and role-aware recommendations.
//
// Engines return typed results and plain errors. GeoIntelligence wraps them
// into Result envelopes for transports.
package services

import (
	"errors"
	"fmt"
	"time"

	"geopulse/internal/domain/entities"
)

var (
	// ErrInvalidRadius is returned for a non-positive or non-finite radius.
	ErrInvalidRadius = errors.New("radius must be positive")
	// ErrInvalidLocation is returned for coordinates outside WGS84 ranges.
	ErrInvalidLocation = errors.New("invalid coordinates")
)

// Clock returns the current time. Engines default to time.Now.
type Clock func() time.Time

func validateArea(center entities.Location, radiusKm float64) error {
	if !center.Valid() {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidLocation, center.Latitude, center.Longitude)
	}
	if !(radiusKm > 0) || radiusKm > maxRadiusKm {
		return fmt.Errorf("%w: %v", ErrInvalidRadius, radiusKm)
	}
	return nil
}

// maxRadiusKm caps radius queries at half the Earth's circumference.
const maxRadiusKm = 20038.0

// window returns the [now-hours, now) interval.
func window(now time.Time, hours int) (since, until time.Time) {
	return now.Add(-time.Duration(hours) * time.Hour), now
}
