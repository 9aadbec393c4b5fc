package postgres

import (
	"fmt"
	"strings"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
	"geopulse/pkg/utils"
)

// where accumulates AND-ed predicates and their positional arguments.
type where struct {
	clauses []string
	args    []any
}

// arg registers v and returns its placeholder.
func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(clause string) {
	w.clauses = append(w.clauses, clause)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// haversineSQL is the great-circle distance in km from (%[1]s, %[2]s) to
// the row's lat/lng columns.
const haversineSQL = `(%[3]g * 2 * ASIN(SQRT(
	POWER(SIN(RADIANS(lat - %[1]s) / 2), 2) +
	COS(RADIANS(%[1]s)) * COS(RADIANS(lat)) * POWER(SIN(RADIANS(lng - %[2]s) / 2), 2))))`

// addRadius adds a bounding-box prefilter plus the exact distance check.
func (w *where) addRadius(center *entities.Location, radiusKm float64) {
	if center == nil {
		return
	}
	minLat, maxLat, minLon, maxLon := utils.BoundingBox(center.Latitude, center.Longitude, radiusKm)
	w.add(fmt.Sprintf("lat BETWEEN %s AND %s", w.arg(minLat), w.arg(maxLat)))
	if minLon > -180 || maxLon < 180 {
		w.add(fmt.Sprintf("lng BETWEEN %s AND %s", w.arg(minLon), w.arg(maxLon)))
	}
	dist := fmt.Sprintf(haversineSQL, w.arg(center.Latitude), w.arg(center.Longitude), utils.EarthRadiusKm)
	w.add(fmt.Sprintf("%s <= %s", dist, w.arg(radiusKm)))
}

func eventWhere(f repository.EventFilter) *where {
	w := &where{}
	w.addRadius(f.Center, f.RadiusKm)
	if !f.Since.IsZero() {
		w.add("created_at >= " + w.arg(f.Since))
	}
	if !f.Until.IsZero() {
		w.add("created_at < " + w.arg(f.Until))
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		w.add("type = ANY(" + w.arg(types) + ")")
	}
	if f.CategoryID != "" {
		w.add("category_id = " + w.arg(f.CategoryID))
	}
	return w
}

func listingWhere(f repository.ListingFilter) *where {
	w := &where{}
	w.add("status = " + w.arg(string(entities.ListingStatusActive)))
	w.add("moderation_status = " + w.arg(string(entities.ModerationApproved)))
	w.addRadius(f.Center, f.RadiusKm)
	if f.CategoryID != "" {
		w.add("category_id = " + w.arg(f.CategoryID))
	}
	if f.SubcategoryID != "" {
		w.add("subcategory_id = " + w.arg(f.SubcategoryID))
	}
	if f.PriceMin != nil {
		w.add("price >= " + w.arg(f.PriceMin.String()) + "::NUMERIC")
	}
	if f.PriceMax != nil {
		w.add("price <= " + w.arg(f.PriceMax.String()) + "::NUMERIC")
	}
	if !f.CreatedSince.IsZero() {
		w.add("created_at >= " + w.arg(f.CreatedSince))
	}
	if !f.CreatedUntil.IsZero() {
		w.add("created_at < " + w.arg(f.CreatedUntil))
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		w.add("title ILIKE " + w.arg(containsPattern(text)) + ` ESCAPE '\'`)
	}
	return w
}

// likeEscaper escapes LIKE wildcards so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern turns text into a substring ILIKE pattern.
func containsPattern(text string) string {
	return "%" + likeEscaper.Replace(text) + "%"
}

func orderBy(s repository.ListingSort) string {
	switch s {
	case repository.SortPriceAsc:
		return " ORDER BY price ASC, created_at DESC, id"
	case repository.SortPriceDesc:
		return " ORDER BY price DESC, created_at DESC, id"
	case repository.SortPopular:
		return " ORDER BY views DESC, created_at DESC, id"
	default:
		return " ORDER BY created_at DESC, id"
	}
}
