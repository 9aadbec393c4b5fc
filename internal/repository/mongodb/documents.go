// Package mongodb implements the repository interfaces on MongoDB. Locations
// are stored as GeoJSON points under a 2dsphere index and radius queries use
// $geoWithin/$centerSphere. Prices are Decimal128.
package mongodb

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"geopulse/internal/domain/entities"
)

// geoPoint is a GeoJSON Point. Coordinates are [longitude, latitude].
type geoPoint struct {
	Type        string     `bson:"type"`
	Coordinates [2]float64 `bson:"coordinates"`
}

func newGeoPoint(l entities.Location) geoPoint {
	return geoPoint{Type: "Point", Coordinates: [2]float64{l.Longitude, l.Latitude}}
}

func (p geoPoint) location() entities.Location {
	return entities.NewLocation(p.Coordinates[1], p.Coordinates[0])
}

type eventDoc struct {
	ID         string    `bson:"_id"`
	Type       string    `bson:"type"`
	Location   geoPoint  `bson:"location"`
	Geohash    string    `bson:"geohash,omitempty"`
	CategoryID string    `bson:"category_id,omitempty"`
	Query      string    `bson:"query,omitempty"`
	ActorID    string    `bson:"actor_id"`
	Payload    bson.M    `bson:"payload,omitempty"`
	CreatedAt  time.Time `bson:"created_at"`
}

func toEventDoc(e *entities.InteractionEvent) eventDoc {
	var payload bson.M
	if len(e.Payload) > 0 {
		payload = bson.M(e.Payload)
	}
	return eventDoc{
		ID:         e.ID,
		Type:       string(e.Type),
		Location:   newGeoPoint(e.Location),
		Geohash:    e.Geohash,
		CategoryID: e.CategoryID,
		Query:      e.Query,
		ActorID:    e.ActorID,
		Payload:    payload,
		CreatedAt:  e.CreatedAt,
	}
}

func (d eventDoc) entity() *entities.InteractionEvent {
	var payload map[string]any
	if len(d.Payload) > 0 {
		payload = map[string]any(d.Payload)
	}
	return &entities.InteractionEvent{
		ID:         d.ID,
		Type:       entities.EventType(d.Type),
		Location:   d.Location.location(),
		Geohash:    d.Geohash,
		CategoryID: d.CategoryID,
		Query:      d.Query,
		ActorID:    d.ActorID,
		Payload:    payload,
		CreatedAt:  d.CreatedAt,
	}
}

type listingDoc struct {
	ID               string               `bson:"_id"`
	Title            string               `bson:"title"`
	Location         geoPoint             `bson:"location"`
	Geohash          string               `bson:"geohash,omitempty"`
	CategoryID       string               `bson:"category_id"`
	SubcategoryID    string               `bson:"subcategory_id,omitempty"`
	Price            primitive.Decimal128 `bson:"price"`
	Status           string               `bson:"status"`
	ModerationStatus string               `bson:"moderation_status"`
	Views            int                  `bson:"views"`
	CreatedAt        time.Time            `bson:"created_at"`
}

func toListingDoc(l *entities.Listing) (listingDoc, error) {
	price, err := primitive.ParseDecimal128(l.Price.String())
	if err != nil {
		return listingDoc{}, err
	}
	return listingDoc{
		ID:               l.ID,
		Title:            l.Title,
		Location:         newGeoPoint(l.Location),
		Geohash:          l.Geohash,
		CategoryID:       l.CategoryID,
		SubcategoryID:    l.SubcategoryID,
		Price:            price,
		Status:           string(l.Status),
		ModerationStatus: string(l.ModerationStatus),
		Views:            l.Views,
		CreatedAt:        l.CreatedAt,
	}, nil
}

func (d listingDoc) entity() *entities.Listing {
	price, err := decimal.NewFromString(d.Price.String())
	if err != nil {
		price = decimal.Zero
	}
	return &entities.Listing{
		ID:               d.ID,
		Title:            d.Title,
		Location:         d.Location.location(),
		Geohash:          d.Geohash,
		CategoryID:       d.CategoryID,
		SubcategoryID:    d.SubcategoryID,
		Price:            price,
		Status:           entities.ListingStatus(d.Status),
		ModerationStatus: entities.ModerationStatus(d.ModerationStatus),
		Views:            d.Views,
		CreatedAt:        d.CreatedAt,
	}
}
