// Package geo implements geohash encoding/decoding, cell sizing, and a
// geohash-cell spatial index for proximity queries over events and listings.
//
// Go Learning Note — What is a Geohash?
// A geohash encodes a latitude/longitude pair into a short base32 string.
// Nearby locations share a common prefix, and truncating a hash yields the
// enclosing coarser cell. Grouping rows by a truncated prefix is therefore a
// cheap way to bucket points spatially.
//
// Precision determines the cell size:
//
//	1 → ~5000 km    4 → ~39 km     7 → ~153 m    10 → ~1.2 m
//	2 → ~1250 km    5 → ~5 km      8 → ~38 m     11 → ~15 cm
//	3 → ~156 km     6 → ~1.2 km    9 → ~4.8 m    12 → ~3.7 cm
//
// Heatmaps and hotspots bucket at precision 4-7.
package geo

import (
	"math"
	"strings"
)

const (
	base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

	// DefaultPrecision is used when a caller passes a non-positive precision.
	DefaultPrecision = 6
	// MaxPrecision is the longest hash Encode produces.
	MaxPrecision = 12

	// UnknownCell is the bucket key for rows without a usable geohash.
	UnknownCell = "unknown"

	earthRadiusKm = 6371.0
)

// Neighbor lookup tables, indexed by hash-length parity: [0] for even
// lengths, [1] for odd lengths. Geohash alternates longitude and latitude
// bits, so the character grid is transposed between the two parities.
var (
	base32Map = map[byte]int{}
	neighbors = map[string][2]string{
		"n": {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
		"s": {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
		"e": {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
		"w": {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	}
	borders = map[string][2]string{
		"n": {"prxz", "bcfguvyz"},
		"s": {"028b", "0145hjnp"},
		"e": {"bcfguvyz", "prxz"},
		"w": {"0145hjnp", "028b"},
	}
)

// init() runs automatically when the package is first imported.
//
// Go Learning Note — init() Functions:
// Every Go package can have init() functions that run once, in dependency
// order, before main(). Building small lookup tables is a typical use.
func init() {
	for i := 0; i < len(base32); i++ {
		base32Map[base32[i]] = i
	}
}

// Encode converts latitude and longitude to a geohash string with the given
// precision. The result is deterministic and always exactly precision
// characters long (precision is clamped to 1..12; non-positive means 6).
//
// Algorithm overview (binary interleaving):
//  1. Start with the full range: lat [-90, 90], lon [-180, 180]
//  2. Alternate between longitude (even bits) and latitude (odd bits)
//  3. For each step, bisect the range and set bit=1 if value >= midpoint
//  4. Every 5 bits are encoded as one base32 character
//
// Because every character only refines the previous ones, a shorter hash is
// always a prefix of a longer hash of the same point.
//
// Go Learning Note — strings.Builder:
// strings.Builder is the idiomatic way to build strings in a loop. It grows
// one internal buffer instead of allocating a new string per concatenation.
func Encode(lat, lon float64, precision int) string {
	if precision <= 0 {
		precision = DefaultPrecision
	}
	if precision > MaxPrecision {
		precision = MaxPrecision
	}

	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0

	var hash strings.Builder
	hash.Grow(precision)
	isEven := true
	bit := 0
	ch := 0

	for hash.Len() < precision {
		if isEven {
			mid := (minLon + maxLon) / 2
			if lon >= mid {
				ch |= 1 << (4 - bit)
				minLon = mid
			} else {
				maxLon = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		isEven = !isEven
		bit++
		if bit == 5 {
			hash.WriteByte(base32[ch])
			bit = 0
			ch = 0
		}
	}

	return hash.String()
}

// Truncate returns the first n characters of hash, i.e. the enclosing cell
// at precision n. Hashes shorter than n are returned unchanged; an empty
// hash maps to UnknownCell.
func Truncate(hash string, n int) string {
	if hash == "" {
		return UnknownCell
	}
	if n <= 0 || n >= len(hash) {
		return hash
	}
	return hash[:n]
}

// Decode converts a geohash string back to the center latitude and longitude
// of the encoded cell by replaying the binary subdivision.
//
// Go Learning Note — Named Return Values:
// `(lat, lon float64)` documents which float is which and allows a bare
// return at the end.
func Decode(hash string) (lat, lon float64) {
	minLat, maxLat := -90.0, 90.0
	minLon, maxLon := -180.0, 180.0
	isEven := true

	for i := 0; i < len(hash); i++ {
		cd, ok := base32Map[hash[i]]
		if !ok {
			continue
		}
		for j := 4; j >= 0; j-- {
			bit := (cd >> j) & 1
			if isEven {
				mid := (minLon + maxLon) / 2
				if bit == 1 {
					minLon = mid
				} else {
					maxLon = mid
				}
			} else {
				mid := (minLat + maxLat) / 2
				if bit == 1 {
					minLat = mid
				} else {
					maxLat = mid
				}
			}
			isEven = !isEven
		}
	}

	lat = (minLat + maxLat) / 2
	lon = (minLon + maxLon) / 2
	return
}

// Neighbor returns the geohash of the adjacent cell in the given direction
// ("n", "s", "e", "w"), recursing into the parent hash when the last
// character sits on the border of its parent cell.
func Neighbor(hash string, direction string) string {
	if len(hash) == 0 {
		return ""
	}
	table, ok := neighbors[direction]
	if !ok {
		return hash
	}

	hash = strings.ToLower(hash)
	lastChar := hash[len(hash)-1]
	parent := hash[:len(hash)-1]
	parity := len(hash) % 2

	if strings.IndexByte(borders[direction][parity], lastChar) >= 0 && len(parent) > 0 {
		parent = Neighbor(parent, direction)
	}

	idx := strings.IndexByte(table[parity], lastChar)
	if idx < 0 {
		return hash
	}
	return parent + string(base32[idx])
}

// AllNeighbors returns the center cell followed by its 8 neighbours, a 3x3
// block of cells. Any point within one cell-width of a point in the center
// cell lies somewhere in this block.
func AllNeighbors(hash string) []string {
	n := Neighbor(hash, "n")
	s := Neighbor(hash, "s")
	return []string{
		hash,
		n,
		s,
		Neighbor(hash, "e"),
		Neighbor(hash, "w"),
		Neighbor(n, "e"),
		Neighbor(n, "w"),
		Neighbor(s, "e"),
		Neighbor(s, "w"),
	}
}

// CellSize returns the angular height and width (degrees) of a cell at the
// given precision.
func CellSize(precision int) (latDeg, lonDeg float64) {
	bits := precision * 5
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	return 180 / math.Pow(2, float64(latBits)), 360 / math.Pow(2, float64(lonBits))
}

// CellDimensionsKm returns the approximate height and width in kilometres of
// a cell at the given precision and latitude.
func CellDimensionsKm(precision int, lat float64) (heightKm, widthKm float64) {
	latDeg, lonDeg := CellSize(precision)
	kmPerDeg := math.Pi * earthRadiusKm / 180
	heightKm = latDeg * kmPerDeg
	widthKm = lonDeg * kmPerDeg * math.Cos(lat*math.Pi/180)
	return heightKm, widthKm
}

// PrecisionForRadius returns the finest precision whose cells are at least
// radiusKm tall and wide at the given latitude, so a 3x3 neighbour block
// covers the whole search circle. It returns 0 when even precision-1 cells
// are too small, meaning the caller must scan everything.
func PrecisionForRadius(radiusKm, lat float64) int {
	for p := MaxPrecision; p >= 1; p-- {
		h, w := CellDimensionsKm(p, lat)
		if h >= radiusKm && w >= radiusKm {
			return p
		}
	}
	return 0
}
