package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"geopulse/internal/domain/entities"
	"geopulse/internal/repository"
)

func TestEventWhere(t *testing.T) {
	center := entities.NewLocation(55.75, 37.61)
	since := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	w := eventWhere(repository.EventFilter{
		Center:     &center,
		RadiusKm:   2,
		Since:      since,
		Types:      []entities.EventType{entities.EventSearch, entities.EventEmptySearch},
		CategoryID: "berries",
	})
	sql := w.String()

	for _, want := range []string{
		"lat BETWEEN $1 AND $2",
		"lng BETWEEN $3 AND $4",
		"ASIN(SQRT(",
		"<= $7",
		"created_at >= $8",
		"type = ANY($9)",
		"category_id = $10",
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("Expected %q in %s", want, sql)
		}
	}
	if len(w.args) != 10 {
		t.Fatalf("Expected 10 args, got %d", len(w.args))
	}
	types, ok := w.args[8].([]string)
	if !ok || len(types) != 2 || types[1] != "empty_search" {
		t.Errorf("Unexpected types arg: %#v", w.args[8])
	}
}

func TestEventWhere_Empty(t *testing.T) {
	if got := eventWhere(repository.EventFilter{}).String(); got != "" {
		t.Errorf("Expected no WHERE clause, got %q", got)
	}
}

func TestListingWhere_AlwaysVisibleOnly(t *testing.T) {
	minPrice := decimal.NewFromInt(100)
	w := listingWhere(repository.ListingFilter{PriceMin: &minPrice, Text: " клубника "})
	sql := w.String()

	for _, want := range []string{
		"status = $1",
		"moderation_status = $2",
		"price >= $3::NUMERIC",
		`title ILIKE $4 ESCAPE '\'`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("Expected %q in %s", want, sql)
		}
	}
	if w.args[0] != "active" || w.args[1] != "approved" || w.args[2] != "100" || w.args[3] != "%клубника%" {
		t.Errorf("Unexpected args: %#v", w.args)
	}
}

func TestContainsPatternEscapesWildcards(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"клубника", `%клубника%`},
		{"50%", `%50\%%`},
		{"a_b", `%a\_b%`},
		{`c:\dir`, `%c:\\dir%`},
	}
	for _, tt := range tests {
		if got := containsPattern(tt.text); got != tt.want {
			t.Errorf("containsPattern(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestParsePrice(t *testing.T) {
	p, err := parsePrice("l1", "349.90")
	if err != nil || !p.Equal(decimal.RequireFromString("349.9")) {
		t.Errorf("parsePrice(349.90) = %s, %v", p, err)
	}

	for _, raw := range []string{"", "abc", "12,50"} {
		if _, err := parsePrice("l2", raw); err == nil || !strings.Contains(err.Error(), "l2") {
			t.Errorf("parsePrice(%q) = %v, want error naming the listing", raw, err)
		}
	}
}

func TestOrderBy(t *testing.T) {
	tests := map[repository.ListingSort]string{
		repository.SortPriceAsc:  "price ASC",
		repository.SortPriceDesc: "price DESC",
		repository.SortPopular:   "views DESC",
		repository.SortNewest:    "created_at DESC",
		repository.SortDistance:  "created_at DESC",
	}
	for sort, want := range tests {
		if got := orderBy(sort); !strings.Contains(got, want) {
			t.Errorf("orderBy(%s) = %q, want it to contain %q", sort, got, want)
		}
	}
}
