package geo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"geopulse/pkg/utils"
)

// Point is one indexed location.
type Point struct {
	ID  string
	Lat float64
	Lon float64
}

// PointWithDistance pairs an indexed point with its distance from a search
// center in kilometres.
type PointWithDistance struct {
	Point
	Distance float64
}

// SpatialIndex is an in-memory geospatial index that answers "everything
// within radius r of a point" without scanning every point. Points are
// grouped into geohash cells at a fixed precision; a query only visits the
// cells of a 3x3 block sized to the radius, then applies an exact haversine
// filter.
//
// Go Learning Note — sync.RWMutex:
// Many goroutines can hold RLock at once while Lock is exclusive, which fits
// an index that is queried constantly and written less often.
type SpatialIndex struct {
	mu        sync.RWMutex
	precision int
	cells     map[string]map[string]Point // geohash -> id -> point
	byID      map[string]string           // id -> geohash
}

// NewSpatialIndex creates an empty spatial index that stores points in cells
// of the given geohash precision.
func NewSpatialIndex(precision int) *SpatialIndex {
	if precision <= 0 || precision > MaxPrecision {
		precision = DefaultPrecision
	}
	return &SpatialIndex{
		precision: precision,
		cells:     make(map[string]map[string]Point),
		byID:      make(map[string]string),
	}
}

// Insert adds or moves a point and returns the cell it now lives in.
func (s *SpatialIndex) Insert(id string, lat, lon float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell := Encode(lat, lon, s.precision)
	if old, ok := s.byID[id]; ok && old != cell {
		s.removeLocked(id, old)
	}

	if _, exists := s.cells[cell]; !exists {
		s.cells[cell] = make(map[string]Point)
	}
	s.cells[cell][id] = Point{ID: id, Lat: lat, Lon: lon}
	s.byID[id] = cell
	return cell
}

// Remove deletes a point from the index. Unknown IDs are ignored.
func (s *SpatialIndex) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cell, ok := s.byID[id]; ok {
		s.removeLocked(id, cell)
	}
}

func (s *SpatialIndex) removeLocked(id, cell string) {
	if points, ok := s.cells[cell]; ok {
		delete(points, id)
		if len(points) == 0 {
			delete(s.cells, cell)
		}
	}
	delete(s.byID, id)
}

// Within returns every point within radiusKm of (lat, lon), nearest first.
//
// Strategy: coarse filter, then fine filter.
//  1. Pick the finest precision whose cells are at least radiusKm on each
//     side and take the 3x3 block around the center at that precision.
//  2. Visit only index cells under one of those prefixes.
//  3. Keep points whose haversine distance is within the radius.
func (s *SpatialIndex) Within(ctx context.Context, lat, lon, radiusKm float64) []PointWithDistance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []PointWithDistance
	visit := func(points map[string]Point) {
		for _, p := range points {
			d := utils.HaversineDistance(lat, lon, p.Lat, p.Lon)
			if d <= radiusKm {
				candidates = append(candidates, PointWithDistance{Point: p, Distance: d})
			}
		}
	}

	level := PrecisionForRadius(radiusKm, lat)
	switch {
	case level == 0:
		for _, points := range s.cells {
			visit(points)
		}
	case level >= s.precision:
		seen := make(map[string]bool, 9)
		for _, gh := range AllNeighbors(Encode(lat, lon, s.precision)) {
			if seen[gh] {
				continue
			}
			seen[gh] = true
			visit(s.cells[gh])
		}
	default:
		prefixes := AllNeighbors(Encode(lat, lon, level))
		for cell, points := range s.cells {
			for _, prefix := range prefixes {
				if strings.HasPrefix(cell, prefix) {
					visit(points)
					break
				}
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	return candidates
}

// Count returns the total number of indexed points.
func (s *SpatialIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
