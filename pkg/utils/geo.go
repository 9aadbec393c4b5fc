package utils

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// HaversineDistance calculates the great-circle distance between two points
// in kilometers.
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoundingBox returns the latitude/longitude box enclosing a circle of
// radiusKm around (lat, lon). Stores use it as an index-friendly prefilter
// before the exact haversine check, so it must never be narrower than the
// circle. The longitude half-width is the circle's true extent,
// asin(sin(r/R) / cos(lat)), which is wider than r/R / cos(lat) at high
// latitudes.
func BoundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	angular := radiusKm / EarthRadiusKm
	dLat := angular * 180 / math.Pi
	minLat, maxLat = lat-dLat, lat+dLat
	if maxLat >= 90 || minLat <= -90 {
		return math.Max(minLat, -90), math.Min(maxLat, 90), -180, 180
	}

	ratio := math.Sin(angular) / math.Cos(lat*math.Pi/180)
	if ratio >= 1 {
		return minLat, maxLat, -180, 180
	}
	dLon := math.Asin(ratio) * 180 / math.Pi
	minLon, maxLon = lon-dLon, lon+dLon
	if minLon < -180 || maxLon > 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLon, maxLon
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
