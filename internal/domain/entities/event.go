// Package entities defines the core domain models of the geo intelligence
// engine. Raw signals (InteractionEvent, Listing) are owned by external
// stores and are read-only here; everything else (SpatialBucket, Hotspot,
// OpportunityZone) is derived per call and never persisted.
//
// Go Learning Note — "internal/" directory:
// Packages under internal/ cannot be imported by code outside this module. Go
// enforces this at the compiler level.
package entities

import "time"

// EventType is a typed string enum for buyer interaction signals.
type EventType string

const (
	EventSearch       EventType = "search"
	EventEmptySearch  EventType = "empty_search"
	EventView         EventType = "view"
	EventFavorite     EventType = "favorite"
	EventCategoryOpen EventType = "category_open"
	EventContact      EventType = "contact"
	EventShare        EventType = "share"
)

// DemandEventTypes are the event types that feed demand heatmaps and
// hotspot detection.
var DemandEventTypes = []EventType{
	EventSearch,
	EventEmptySearch,
	EventView,
	EventFavorite,
	EventCategoryOpen,
}

// SearchEventTypes are the event types that carry a free-text query.
var SearchEventTypes = []EventType{
	EventSearch,
	EventEmptySearch,
}

// InteractionEvent is one buyer interaction recorded by the marketplace.
// Events are immutable once written and retained for ~30 days by the
// Event Store.
type InteractionEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Location   Location       `json:"location"`
	Geohash    string         `json:"geohash"`
	CategoryID string         `json:"categoryId,omitempty"`
	Query      string         `json:"query,omitempty"`
	ActorID    string         `json:"actorId"`
	Payload    map[string]any `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// IsSearch reports whether the event carries a search query signal.
func (e *InteractionEvent) IsSearch() bool {
	return e.Type == EventSearch || e.Type == EventEmptySearch
}
