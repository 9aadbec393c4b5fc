package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"geopulse/internal/domain/entities"
	"geopulse/internal/geo"
	"geopulse/internal/metrics"
	"geopulse/internal/repository"
)

// maxHints is how many category/query hints a bucket carries.
const maxHints = 3

// Aggregator runs one radius query against a store and groups the rows into
// geohash buckets.
type Aggregator struct {
	events   repository.EventRepository
	listings repository.ListingRepository
}

// NewAggregator creates an Aggregator over the two stores.
func NewAggregator(events repository.EventRepository, listings repository.ListingRepository) *Aggregator {
	return &Aggregator{events: events, listings: listings}
}

// Events queries events and buckets them at the given precision. It also
// returns the number of rows aggregated.
func (a *Aggregator) Events(ctx context.Context, filter repository.EventFilter, precision int) ([]*entities.SpatialBucket, int, error) {
	start := time.Now()
	events, err := a.events.Find(ctx, filter)
	metrics.ObserveStore("events", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate events: %w", err)
	}
	return GroupEvents(events, precision), len(events), nil
}

// Listings queries visible listings within the filter's radius and buckets
// them at the given precision.
func (a *Aggregator) Listings(ctx context.Context, filter repository.ListingFilter, precision int) ([]*entities.SpatialBucket, int, error) {
	start := time.Now()
	listings, err := a.listings.FindWithinRadius(ctx, filter)
	metrics.ObserveStore("listings", start, err)
	if err != nil {
		return nil, 0, fmt.Errorf("aggregate listings: %w", err)
	}
	return GroupListings(listings, precision), len(listings), nil
}

// bucketBuilder accumulates one bucket during the single grouping pass.
type bucketBuilder struct {
	bucket     *entities.SpatialBucket
	sumLat     float64
	sumLng     float64
	categories map[string]int
	queries    map[string]int
	priceSum   decimal.Decimal
}

func newBucketBuilder(cell string) *bucketBuilder {
	return &bucketBuilder{
		bucket:     &entities.SpatialBucket{Geohash: cell},
		categories: make(map[string]int),
		queries:    make(map[string]int),
	}
}

func (b *bucketBuilder) addPoint(loc entities.Location, at time.Time) {
	b.bucket.Count++
	b.sumLat += loc.Latitude
	b.sumLng += loc.Longitude
	if at.After(b.bucket.LastSeen) {
		b.bucket.LastSeen = at
	}
}

func (b *bucketBuilder) build() *entities.SpatialBucket {
	n := float64(b.bucket.Count)
	b.bucket.Centroid = entities.NewLocation(b.sumLat/n, b.sumLng/n)
	b.bucket.CategoryHints = topKeys(b.categories, maxHints)
	b.bucket.QueryHints = topKeys(b.queries, maxHints)
	if b.bucket.Prices.Count > 0 {
		b.bucket.Prices.Avg = b.priceSum.Div(decimal.NewFromInt(int64(b.bucket.Prices.Count))).Round(2)
	}
	return b.bucket
}

// cellOf returns the bucket key for a stored geohash.
func cellOf(hash string, precision int) string {
	return geo.Truncate(strings.TrimSpace(hash), precision)
}

// GroupEvents buckets events by truncated geohash in one pass. Rows with no
// geohash land in the geo.UnknownCell bucket.
func GroupEvents(events []*entities.InteractionEvent, precision int) []*entities.SpatialBucket {
	builders := make(map[string]*bucketBuilder)
	for _, e := range events {
		cell := cellOf(e.Geohash, precision)
		b, ok := builders[cell]
		if !ok {
			b = newBucketBuilder(cell)
			b.bucket.TypeBreakdown = make(map[string]int)
			builders[cell] = b
		}
		b.addPoint(e.Location, e.CreatedAt)
		b.bucket.TypeBreakdown[string(e.Type)]++
		if e.CategoryID != "" {
			b.categories[e.CategoryID]++
		}
		if q := NormalizeQuery(e.Query); q != "" {
			b.queries[q]++
		}
	}
	return finish(builders)
}

// GroupListings buckets listings by truncated geohash in one pass, with
// price stats and the newest listing as the bucket's representative.
func GroupListings(listings []*entities.Listing, precision int) []*entities.SpatialBucket {
	builders := make(map[string]*bucketBuilder)
	for _, l := range listings {
		cell := cellOf(l.Geohash, precision)
		b, ok := builders[cell]
		if !ok {
			b = newBucketBuilder(cell)
			builders[cell] = b
		}
		b.addPoint(l.Location, l.CreatedAt)
		if l.CategoryID != "" {
			b.categories[l.CategoryID]++
		}
		addPrice(&b.bucket.Prices, l.Price)
		b.priceSum = b.priceSum.Add(l.Price)

		rep := b.bucket.Representative
		if rep == nil || l.CreatedAt.After(rep.CreatedAt) || (l.CreatedAt.Equal(rep.CreatedAt) && l.ID < rep.ID) {
			b.bucket.Representative = l
		}
	}
	return finish(builders)
}

// finish builds every bucket and orders them by count desc, geohash asc.
func finish(builders map[string]*bucketBuilder) []*entities.SpatialBucket {
	out := make([]*entities.SpatialBucket, 0, len(builders))
	for _, b := range builders {
		out = append(out, b.build())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Geohash < out[j].Geohash
	})
	return out
}

func addPrice(s *entities.PriceStats, p decimal.Decimal) {
	if s.Count == 0 || p.LessThan(s.Min) {
		s.Min = p
	}
	if s.Count == 0 || p.GreaterThan(s.Max) {
		s.Max = p
	}
	s.Count++
}

// PriceSummary computes price stats over a listing set.
func PriceSummary(listings []*entities.Listing) entities.PriceStats {
	var s entities.PriceStats
	sum := decimal.Zero
	for _, l := range listings {
		addPrice(&s, l.Price)
		sum = sum.Add(l.Price)
	}
	if s.Count > 0 {
		s.Avg = sum.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	return s
}

// topKeys returns up to n keys by count desc, then lexically.
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// NormalizeQuery lower-cases and trims a free-text search query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func observeListings(start time.Time, err error) {
	metrics.ObserveStore("listings", start, err)
}
