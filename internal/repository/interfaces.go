// Package repository declares the store contracts the engine reads from.
//
// Events and listings are owned by the surrounding marketplace. The engine
// only reads them (plus the single Insert write path for events), so the
// interfaces are query-shaped rather than CRUD-shaped.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"geopulse/internal/domain/entities"
)

// ErrSpatialUnavailable is returned by a store that cannot answer a radius
// query (missing geo index, unsupported backend). Callers that can degrade
// check for it with errors.Is.
var ErrSpatialUnavailable = errors.New("spatial query unavailable")

// EventFilter narrows an event query. Zero values mean "no constraint".
type EventFilter struct {
	Center     *entities.Location
	RadiusKm   float64
	Since      time.Time // inclusive
	Until      time.Time // exclusive
	Types      []entities.EventType
	CategoryID string
}

// Matches reports whether e satisfies every non-spatial constraint of f.
// Backends that filter in memory share it.
func (f EventFilter) Matches(e *entities.InteractionEvent) bool {
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	if f.CategoryID != "" && e.CategoryID != f.CategoryID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ListingFilter narrows a listing query. Only active, approved listings are
// ever returned regardless of the filter.
type ListingFilter struct {
	Center        *entities.Location
	RadiusKm      float64
	CategoryID    string
	SubcategoryID string
	PriceMin      *decimal.Decimal
	PriceMax      *decimal.Decimal
	CreatedSince  time.Time // inclusive
	CreatedUntil  time.Time // exclusive
	Text          string    // case-insensitive title substring
}

// Matches reports whether l is visible and satisfies every non-spatial
// constraint of f.
func (f ListingFilter) Matches(l *entities.Listing) bool {
	if !l.IsVisible() {
		return false
	}
	if f.CategoryID != "" && l.CategoryID != f.CategoryID {
		return false
	}
	if f.SubcategoryID != "" && l.SubcategoryID != f.SubcategoryID {
		return false
	}
	if f.PriceMin != nil && l.Price.LessThan(*f.PriceMin) {
		return false
	}
	if f.PriceMax != nil && l.Price.GreaterThan(*f.PriceMax) {
		return false
	}
	if !f.CreatedSince.IsZero() && l.CreatedAt.Before(f.CreatedSince) {
		return false
	}
	if !f.CreatedUntil.IsZero() && !l.CreatedAt.Before(f.CreatedUntil) {
		return false
	}
	if f.Text != "" && !containsFold(l.Title, f.Text) {
		return false
	}
	return true
}

// ListingSort orders a listing page.
type ListingSort string

const (
	SortDistance  ListingSort = "distance"
	SortPriceAsc  ListingSort = "price_asc"
	SortPriceDesc ListingSort = "price_desc"
	SortNewest    ListingSort = "newest"
	SortPopular   ListingSort = "popular"
)

// ParseListingSort maps a request value to a ListingSort; unknown or empty
// values fall back to SortNewest.
func ParseListingSort(s string) ListingSort {
	switch ListingSort(s) {
	case SortDistance, SortPriceAsc, SortPriceDesc, SortNewest, SortPopular:
		return ListingSort(s)
	default:
		return SortNewest
	}
}

// EventRepository is the interaction-event log.
type EventRepository interface {
	// Insert stores a new event as-is.
	Insert(ctx context.Context, event *entities.InteractionEvent) error
	// Find returns all events matching the filter. When Center is set, only
	// events within RadiusKm of it are returned.
	Find(ctx context.Context, filter EventFilter) ([]*entities.InteractionEvent, error)
	// Count returns how many events match the filter.
	Count(ctx context.Context, filter EventFilter) (int, error)
}

// ListingRepository is the live listing collection.
type ListingRepository interface {
	// FindWithinRadius returns visible listings within filter.RadiusKm of
	// filter.Center. It fails with ErrSpatialUnavailable when the backend
	// cannot run spatial queries.
	FindWithinRadius(ctx context.Context, filter ListingFilter) ([]*entities.Listing, error)
	// List returns one sorted page of visible listings plus the total number
	// of matches. SortDistance is treated as SortNewest here; distance
	// ranking is done by the caller.
	List(ctx context.Context, filter ListingFilter, sort ListingSort, limit, skip int) ([]*entities.Listing, int, error)
	// Count returns how many visible listings match the filter, honoring
	// Center/RadiusKm when set.
	Count(ctx context.Context, filter ListingFilter) (int, error)
}
