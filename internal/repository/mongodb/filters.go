package mongodb

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

// earthRadiusKm is the radius $centerSphere expects distances to be
// divided by.
const earthRadiusKm = 6378.1

func centerSphere(center *entities.Location, radiusKm float64) bson.M {
	return bson.M{
		"$geoWithin": bson.M{
			"$centerSphere": bson.A{
				bson.A{center.Longitude, center.Latitude},
				radiusKm / earthRadiusKm,
			},
		},
	}
}

func eventFilter(f repository.EventFilter) bson.M {
	q := bson.M{}
	if f.Center != nil {
		q["location"] = centerSphere(f.Center, f.RadiusKm)
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		r := bson.M{}
		if !f.Since.IsZero() {
			r["$gte"] = f.Since
		}
		if !f.Until.IsZero() {
			r["$lt"] = f.Until
		}
		q["created_at"] = r
	}
	if len(f.Types) > 0 {
		types := make(bson.A, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		q["type"] = bson.M{"$in": types}
	}
	if f.CategoryID != "" {
		q["category_id"] = f.CategoryID
	}
	return q
}

// priceBound converts a filter price to Decimal128. Values Decimal128 cannot
// hold exactly are rejected rather than dropped from the query.
func priceBound(name string, d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("listing filter %s %s: %w", name, d, err)
	}
	return v, nil
}

func listingFilter(f repository.ListingFilter) (bson.M, error) {
	q := bson.M{
		"status":            string(entities.ListingStatusActive),
		"moderation_status": string(entities.ModerationApproved),
	}
	if f.Center != nil {
		q["location"] = centerSphere(f.Center, f.RadiusKm)
	}
	if f.CategoryID != "" {
		q["category_id"] = f.CategoryID
	}
	if f.SubcategoryID != "" {
		q["subcategory_id"] = f.SubcategoryID
	}
	if f.PriceMin != nil || f.PriceMax != nil {
		r := bson.M{}
		if f.PriceMin != nil {
			d, err := priceBound("price_min", *f.PriceMin)
			if err != nil {
				return nil, err
			}
			r["$gte"] = d
		}
		if f.PriceMax != nil {
			d, err := priceBound("price_max", *f.PriceMax)
			if err != nil {
				return nil, err
			}
			r["$lte"] = d
		}
		q["price"] = r
	}
	if !f.CreatedSince.IsZero() || !f.CreatedUntil.IsZero() {
		r := bson.M{}
		if !f.CreatedSince.IsZero() {
			r["$gte"] = f.CreatedSince
		}
		if !f.CreatedUntil.IsZero() {
			r["$lt"] = f.CreatedUntil
		}
		q["created_at"] = r
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		q["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
	}
	return q, nil
}

func listingSort(s repository.ListingSort) bson.D {
	switch s {
	case repository.SortPriceAsc:
		return bson.D{{Key: "price", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	case repository.SortPriceDesc:
		return bson.D{{Key: "price", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	case repository.SortPopular:
		return bson.D{{Key: "views", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	default:
		return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
}
