package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/normalize"
	"carma_backend/internal/comparables/profile"
	"carma_backend/internal/comparables/repository"
	"carma_backend/internal/comparables/service"
	"carma_backend/internal/comparables/transport"
	"carma_backend/platform/apperr"
	"carma_backend/platform/httpkit"
	"carma_backend/platform/logger"
	"carma_backend/platform/validator"
)

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func bmw(id string, year int, km int64, price float64) domain.Listing {
	return domain.Listing{
		ID:               id,
		Make:             "BMW",
		Model:            "3 Series",
		RegistrationYear: intPtr(year),
		FuelType:         "Diesel",
		Transmission:     "Automatic",
		MileageKM:        int64Ptr(km),
		PriceEUR:         floatPtr(price),
		Available:        true,
	}
}

func newRouter(t *testing.T, store *repository.Memory) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := service.New(store, profile.Default(), service.Options{DefaultCount: 12, MinPool: 3, MaxPool: 50}, validator.New(), logger.Discard())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h := New(svc)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/comparables/:id", h.Compare)
	v1.GET("/listings/:id", h.GetListing)
	v1.GET("/stats", h.Stats)
	return r
}

func seededStore() *repository.Memory {
	return repository.NewMemory(normalize.New(),
		bmw("target", 2019, 60000, 25000),
		bmw("a", 2019, 58000, 23000),
		bmw("b", 2020, 52000, 26500),
		bmw("c", 2018, 75000, 21000),
		domain.Listing{ID: "lonely", Make: "Lada", Model: "Niva", Available: true},
	)
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestCompareReturnsRankedCandidates(t *testing.T) {
	r := newRouter(t, seededStore())

	w := get(r, "/api/v1/comparables/target?count=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp transport.ComparablesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Candidates) != 2 || resp.Target.ID != "target" {
		t.Fatalf("expected 2 candidates for target, got %+v", resp)
	}
	if resp.Candidates[0].Rank != 1 || resp.Metadata.Requested != 2 {
		t.Fatalf("unexpected ranks or metadata: %+v", resp.Metadata)
	}
}

func TestCompareErrorMapping(t *testing.T) {
	r := newRouter(t, seededStore())

	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"unknown listing", "/api/v1/comparables/nope", http.StatusNotFound, apperr.CodeTargetNotFound},
		{"count out of range", "/api/v1/comparables/target?count=99", http.StatusBadRequest, apperr.CodeInvalidRequest},
		{"count not a number", "/api/v1/comparables/target?count=many", http.StatusBadRequest, apperr.CodeInvalidRequest},
		{"explicit zero count", "/api/v1/comparables/target?count=0", http.StatusBadRequest, apperr.CodeInvalidRequest},
		{"bad id", "/api/v1/comparables/bad%20id", http.StatusBadRequest, apperr.CodeInvalidListingID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.path)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var body httpkit.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body.Code != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, body.Code)
			}
		})
	}
}

func TestCompareWithoutPeersAnswersNoComparables(t *testing.T) {
	r := newRouter(t, seededStore())

	w := get(r, "/api/v1/comparables/lonely")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body transport.NoResultsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != apperr.CodeNoComparables || body.Target.ID != "lonely" {
		t.Fatalf("expected no_comparables_found with target, got %+v", body)
	}
}

func TestUnavailableStoreSetsRetryAfter(t *testing.T) {
	store := seededStore()
	store.Err = repository.ErrUnavailable
	r := newRouter(t, store)

	w := get(r, "/api/v1/comparables/target")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestListingAndStats(t *testing.T) {
	r := newRouter(t, seededStore())

	w := get(r, "/api/v1/listings/a")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var v transport.VehicleResponse
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if v.ID != "a" || v.Make != "BMW" {
		t.Fatalf("unexpected listing %+v", v)
	}

	w = get(r, "/api/v1/stats")
	var stats transport.StatsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if w.Code != http.StatusOK || stats.TotalAvailable != 5 {
		t.Fatalf("expected 5 available listings, got %d (%d)", stats.TotalAvailable, w.Code)
	}
}
