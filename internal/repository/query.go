package repository

import (
	"sort"
	"strings"

	"geopulse/internal/domain/entities"
)

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(strings.TrimSpace(substr)))
}

// SortListings orders listings in place for the non-distance sorts. Ties
// fall back to newest first, then ID, so pages are stable.
func SortListings(items []*entities.Listing, by ListingSort) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch by {
		case SortPriceAsc:
			if c := a.Price.Cmp(b.Price); c != 0 {
				return c < 0
			}
		case SortPriceDesc:
			if c := a.Price.Cmp(b.Price); c != 0 {
				return c > 0
			}
		case SortPopular:
			if a.Views != b.Views {
				return a.Views > b.Views
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Page returns items[skip:skip+limit], clamped to the slice bounds.
func Page[T any](items []T, limit, skip int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return items[skip:end]
}
