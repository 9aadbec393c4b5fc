package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

// Collection names.
const (
	EventsCollection   = "geo_events"
	ListingsCollection = "listings"
)

// EnsureIndexes creates the 2dsphere and query indexes. Events additionally
// get a TTL index so MongoDB drops them after retention.
func EnsureIndexes(ctx context.Context, db *mongo.Database, retention time.Duration) error {
	events := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if retention > 0 {
		events = append(events, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		})
	}
	if _, err := db.Collection(EventsCollection).Indexes().CreateMany(ctx, events); err != nil {
		return fmt.Errorf("ensure event indexes: %w", err)
	}

	listings := []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "moderation_status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "category_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}
	if _, err := db.Collection(ListingsCollection).Indexes().CreateMany(ctx, listings); err != nil {
		return fmt.Errorf("ensure listing indexes: %w", err)
	}
	return nil
}

// EventStore implements repository.EventRepository on a MongoDB collection.
type EventStore struct {
	coll *mongo.Collection
}

// NewEventStore creates an event store over db's geo_events collection.
func NewEventStore(db *mongo.Database) *EventStore {
	return &EventStore{coll: db.Collection(EventsCollection)}
}

func (s *EventStore) Insert(ctx context.Context, e *entities.InteractionEvent) error {
	if _, err := s.coll.InsertOne(ctx, toEventDoc(e)); err != nil {
		return fmt.Errorf("insert event %s: %w", e.ID, err)
	}
	return nil
}

func (s *EventStore) Find(ctx context.Context, filter repository.EventFilter) ([]*entities.InteractionEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, eventFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]*entities.InteractionEvent, len(docs))
	for i, d := range docs {
		events[i] = d.entity()
	}
	return events, nil
}

func (s *EventStore) Count(ctx context.Context, filter repository.EventFilter) (int, error) {
	n, err := s.coll.CountDocuments(ctx, eventFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return int(n), nil
}

// ListingStore implements repository.ListingRepository on a MongoDB
// collection.
type ListingStore struct {
	coll *mongo.Collection
}

// NewListingStore creates a listing store over db's listings collection.
func NewListingStore(db *mongo.Database) *ListingStore {
	return &ListingStore{coll: db.Collection(ListingsCollection)}
}

// Upsert writes a listing. Used by seeding and tests.
func (s *ListingStore) Upsert(ctx context.Context, l *entities.Listing) error {
	doc, err := toListingDoc(l)
	if err != nil {
		return fmt.Errorf("encode listing %s: %w", l.ID, err)
	}
	_, err = s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", l.ID, err)
	}
	return nil
}

// FindWithinRadius runs a $centerSphere query. Any failure is reported as
// ErrSpatialUnavailable so callers can degrade.
func (s *ListingStore) FindWithinRadius(ctx context.Context, filter repository.ListingFilter) ([]*entities.Listing, error) {
	if filter.Center == nil {
		return nil, repository.ErrSpatialUnavailable
	}
	q, err := listingFilter(filter)
	if err != nil {
		return nil, err
	}
	items, err := s.find(ctx, q, options.Find())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrSpatialUnavailable, err)
	}
	return items, nil
}

func (s *ListingStore) List(ctx context.Context, filter repository.ListingFilter, sort repository.ListingSort, limit, skip int) ([]*entities.Listing, int, error) {
	q, err := listingFilter(filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.coll.CountDocuments(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("count listings: %w", err)
	}

	opts := options.Find().SetSort(listingSort(sort))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if skip > 0 {
		opts.SetSkip(int64(skip))
	}
	items, err := s.find(ctx, q, opts)
	if err != nil {
		return nil, 0, err
	}
	return items, int(total), nil
}

func (s *ListingStore) Count(ctx context.Context, filter repository.ListingFilter) (int, error) {
	q, err := listingFilter(filter)
	if err != nil {
		return 0, err
	}
	n, err := s.coll.CountDocuments(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	return int(n), nil
}

func (s *ListingStore) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]*entities.Listing, error) {
	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	var docs []listingDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	items := make([]*entities.Listing, len(docs))
	for i, d := range docs {
		items[i] = d.entity()
	}
	return items, nil
}
