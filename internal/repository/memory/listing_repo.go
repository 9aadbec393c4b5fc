package memory

import (
	"context"
	"sync"

	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
	"geopulse/internal/repository"
)

// ListingRepository is an in-memory, geohash-indexed listing collection.
type ListingRepository struct {
	mu       sync.RWMutex
	listings map[string]*entities.Listing // id → listing
	index    *geo.SpatialIndex
}

// NewListingRepository creates an empty listing store.
func NewListingRepository(precision int) *ListingRepository {
	return &ListingRepository{
		listings: make(map[string]*entities.Listing),
		index:    geo.NewSpatialIndex(precision),
	}
}

// storedPrecision is the geohash length filled in for listings seeded
// without one; long enough for every cluster zoom level.
const storedPrecision = 9

// Upsert stores a copy of the listing, filling in its geohash if missing.
// The marketplace owns listings; this exists to seed the store.
func (r *ListingRepository) Upsert(ctx context.Context, listing *entities.Listing) error {
	if listing.ID == "" {
		return ErrMissingID
	}
	cp := *listing

	r.mu.Lock()
	defer r.mu.Unlock()

	r.index.Insert(cp.ID, cp.Location.Latitude, cp.Location.Longitude)
	if cp.Geohash == "" {
		cp.Geohash = geo.Encode(cp.Location.Latitude, cp.Location.Longitude, storedPrecision)
	}
	r.listings[cp.ID] = &cp
	return nil
}

// Delete removes a listing. Unknown IDs are ignored.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.listings, id)
	r.index.Remove(id)
	return nil
}

// FindWithinRadius returns visible listings within the filter's radius,
// nearest first.
func (r *ListingRepository) FindWithinRadius(ctx context.Context, filter repository.ListingFilter) ([]*entities.Listing, error) {
	if filter.Center == nil {
		return nil, repository.ErrSpatialUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Listing
	for _, p := range r.index.Within(ctx, filter.Center.Latitude, filter.Center.Longitude, filter.RadiusKm) {
		if l, ok := r.listings[p.ID]; ok && filter.Matches(l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// List returns one sorted page of matching listings and the total count.
func (r *ListingRepository) List(ctx context.Context, filter repository.ListingFilter, sortBy repository.ListingSort, limit, skip int) ([]*entities.Listing, int, error) {
	var all []*entities.Listing
	if filter.Center != nil {
		var err error
		if all, err = r.FindWithinRadius(ctx, filter); err != nil {
			return nil, 0, err
		}
	} else {
		r.mu.RLock()
		for _, l := range r.listings {
			if filter.Matches(l) {
				all = append(all, l)
			}
		}
		r.mu.RUnlock()
	}

	repository.SortListings(all, sortBy)
	return repository.Page(all, limit, skip), len(all), nil
}

// Count returns how many visible listings match the filter.
func (r *ListingRepository) Count(ctx context.Context, filter repository.ListingFilter) (int, error) {
	if filter.Center != nil {
		items, err := r.FindWithinRadius(ctx, filter)
		return len(items), err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, l := range r.listings {
		if filter.Matches(l) {
			n++
		}
	}
	return n, nil
}
