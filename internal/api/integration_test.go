package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"geopulse/internal/api/handlers"
	"geopulse/internal/cache"
	"geopulse/internal/config"
	"geopulse/internal/domain/entities"
	"geopulse/internal/repository/memory"
	"geopulse/internal/services"
)

type testServer struct {
	engine   *gin.Engine
	listings *memory.ListingRepository
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.NewDefaultConfig()
	events := memory.NewEventRepository(cfg.Geo.IndexPrecision)
	listings := memory.NewListingRepository(cfg.Geo.IndexPrecision)

	geo := services.New(cfg, events, listings,
		cache.New("short", cfg.Cache.ShortTTL, cfg.Cache.Capacity),
		cache.New("long", cfg.Cache.LongTTL, cfg.Cache.Capacity))

	router := NewRouter(
		handlers.NewGeoHandler(geo, cfg),
		handlers.NewActorHandler(geo),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	engine := gin.New()
	router.Setup(engine)

	return &testServer{engine: engine, listings: listings}
}

func (s *testServer) do(t *testing.T, method, path, auth, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var response map[string]any
	json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func (s *testServer) seedListing(t *testing.T, id, title string, lat, lng float64, age time.Duration) {
	t.Helper()
	err := s.listings.Upsert(context.Background(), &entities.Listing{
		ID:               id,
		Title:            title,
		Location:         entities.NewLocation(lat, lng),
		CategoryID:       "berries",
		Price:            decimal.NewFromInt(250),
		Status:           entities.ListingStatusActive,
		ModerationStatus: entities.ModerationApproved,
		CreatedAt:        time.Now().Add(-age),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := setupTestServer(t)

	w, _ := s.do(t, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.do(t, "GET", "/health", "", "")

	w, _ := s.do(t, "GET", "/metrics", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "geopulse_http_requests_total") {
		t.Error("Expected HTTP request counter in metrics output")
	}
}

func TestQueryValidation(t *testing.T) {
	s := setupTestServer(t)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"missing lat", "/api/v1/geo/heatmap/demand?lng=37.6", http.StatusBadRequest},
		{"lat out of range", "/api/v1/geo/heatmap/demand?lat=95&lng=37.6", http.StatusBadRequest},
		{"negative radius", "/api/v1/geo/trending?lat=55.7&lng=37.6&radiusKm=-2", http.StatusBadRequest},
		{"lat without lng on feed", "/api/v1/geo/feed?lat=55.7", http.StatusBadRequest},
		{"bad price", "/api/v1/geo/feed?priceMin=cheap", http.StatusBadRequest},
		{"bad sort", "/api/v1/geo/feed?sortBy=random", http.StatusBadRequest},
		{"threshold above one", "/api/v1/geo/hotspots/demand?lat=55.7&lng=37.6&threshold=2", http.StatusBadRequest},
		{"equator and meridian", "/api/v1/geo/heatmap/demand?lat=0&lng=0", http.StatusOK},
		{"feed without center", "/api/v1/geo/feed", http.StatusOK},
		{"global category demand", "/api/v1/geo/categories/berries/demand", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := s.do(t, "GET", tt.path, "", "")
			if w.Code != tt.want {
				t.Fatalf("Expected status %d, got %d. Body: %s", tt.want, w.Code, w.Body.String())
			}
			wantSuccess := tt.want == http.StatusOK
			if resp["success"] != wantSuccess {
				t.Errorf("Expected success=%v, got %v", wantSuccess, resp["success"])
			}
		})
	}
}

func TestEventsRequireAuth(t *testing.T) {
	s := setupTestServer(t)
	body := `{"type":"search","lat":55.75,"lng":37.61,"query":"клубника"}`

	for _, auth := range []string{"", "Token buyer-1", "Bearer driver-1", "Bearer buyer-"} {
		w, _ := s.do(t, "POST", "/api/v1/geo/events", auth, body)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("auth %q: expected 401, got %d", auth, w.Code)
		}
	}
}

func TestLogEventRejectsUnknownType(t *testing.T) {
	s := setupTestServer(t)

	w, _ := s.do(t, "POST", "/api/v1/geo/events", "Bearer buyer-1", `{"type":"purchase","lat":55.75,"lng":37.61}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestLoggedSearchesTrend(t *testing.T) {
	s := setupTestServer(t)
	createdAt := time.Now().Add(-time.Minute).UTC().Format(time.RFC3339)

	for i := 0; i < 3; i++ {
		body := fmt.Sprintf(`{"type":"search","lat":55.7558,"lng":37.6173,"query":"Клубника","createdAt":%q}`, createdAt)
		w, resp := s.do(t, "POST", "/api/v1/geo/events", "Bearer buyer-1", body)
		if w.Code != http.StatusOK || resp["success"] != true {
			t.Fatalf("Expected logged event, got %d: %s", w.Code, w.Body.String())
		}
		data := resp["data"].(map[string]any)
		if data["eventId"] == "" {
			t.Error("Expected eventId in response")
		}
	}

	w, resp := s.do(t, "GET", "/api/v1/geo/trending?lat=55.7558&lng=37.6173&radiusKm=5", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	trends := resp["data"].(map[string]any)["trends"].([]any)
	if len(trends) != 1 {
		t.Fatalf("Expected 1 trending query, got %d", len(trends))
	}
	top := trends[0].(map[string]any)
	if top["query"] != "клубника" || top["count"] != float64(3) {
		t.Errorf("Unexpected trend: %v", top)
	}

	w, resp = s.do(t, "GET", "/api/v1/geo/hotspots/demand?lat=55.7558&lng=37.6173&radiusKm=5", "", "")
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("Expected hotspots, got %d: %s", w.Code, w.Body.String())
	}
	hotspots := resp["data"].(map[string]any)["hotspots"].([]any)
	if len(hotspots) != 1 {
		t.Errorf("Expected 1 hotspot, got %d", len(hotspots))
	}
}

func TestBuyerRecommendations(t *testing.T) {
	s := setupTestServer(t)
	s.seedListing(t, "ad-1", "Клубника", 55.7560, 37.6170, time.Hour)
	s.seedListing(t, "ad-2", "Малина", 55.7600, 37.6200, 2*time.Hour)

	w, resp := s.do(t, "GET", "/api/v1/geo/recommendations?lat=55.7558&lng=37.6173", "Bearer buyer-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", w.Code, w.Body.String())
	}
	recs := resp["data"].(map[string]any)["recommendations"].([]any)
	if len(recs) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d", len(recs))
	}
	rec := recs[0].(map[string]any)
	if rec["type"] != "new_nearby" {
		t.Errorf("Expected new_nearby, got %v", rec["type"])
	}
}

func TestFeedEndpoint(t *testing.T) {
	s := setupTestServer(t)
	s.seedListing(t, "far", "Клубника", 55.7800, 37.6173, time.Hour)
	s.seedListing(t, "near", "Клубника", 55.7560, 37.6173, 5*time.Hour)

	w, resp := s.do(t, "GET", "/api/v1/geo/feed?lat=55.7558&lng=37.6173&radiusKm=10&limit=1", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	data := resp["data"].(map[string]any)
	if data["count"] != float64(2) || data["hasMore"] != true {
		t.Errorf("Unexpected feed meta: %v", data)
	}
	ads := data["ads"].([]any)
	first := ads[0].(map[string]any)["listing"].(map[string]any)
	if first["id"] != "near" {
		t.Errorf("Expected nearest listing first, got %v", first["id"])
	}
}
