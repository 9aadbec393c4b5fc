package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus is the publication state of a listing.
type ListingStatus string

const (
	ListingStatusActive   ListingStatus = "active"
	ListingStatusSold     ListingStatus = "sold"
	ListingStatusArchived ListingStatus = "archived"
)

// ModerationStatus is the review state of a listing.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Listing is a seller's offer as seen by the engine. Prices are
// decimal.Decimal; never float64 for money.
type Listing struct {
	ID               string           `json:"id"`
	Title            string           `json:"title"`
	Location         Location         `json:"location"`
	Geohash          string           `json:"geohash"`
	CategoryID       string           `json:"categoryId"`
	SubcategoryID    string           `json:"subcategoryId,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	Status           ListingStatus    `json:"status"`
	ModerationStatus ModerationStatus `json:"moderationStatus"`
	Views            int              `json:"views"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// IsVisible reports whether the listing may be shown by the engine: only
// active and approved listings are.
func (l *Listing) IsVisible() bool {
	return l.Status == ListingStatusActive && l.ModerationStatus == ModerationApproved
}
