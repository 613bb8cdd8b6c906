package transport

import (
	"time"

	"carma_backend/internal/comparables/filter"
	"carma_backend/internal/comparables/scoring"
)

// ComparablesRequest contains the query for a comparables search.
type ComparablesRequest struct {
	ID                     string `json:"id" validate:"required,listingid"`
	Count                  *int   `form:"count" json:"count,omitempty" validate:"omitempty,min=1,max=50"`
	Top                    *int   `form:"top" json:"-" validate:"omitempty,min=1,max=50"`
	PreferredColor         string `form:"preferredColor" json:"preferredColor,omitempty" validate:"omitempty,max=64"`
	PreferredInteriorColor string `form:"preferredInteriorColor" json:"preferredInteriorColor,omitempty" validate:"omitempty,max=64"`
}

// VehicleResponse is a normalized listing in API responses.
type VehicleResponse struct {
	ID            string   `json:"id"`
	Make          string   `json:"make"`
	Model         string   `json:"model"`
	Year          *int     `json:"year,omitempty"`
	FuelType      string   `json:"fuelType,omitempty"`
	Transmission  string   `json:"transmission,omitempty"`
	BodyType      string   `json:"bodyType,omitempty"`
	ExteriorColor string   `json:"exteriorColor,omitempty"`
	InteriorColor string   `json:"interiorColor,omitempty"`
	MileageKM     *int64   `json:"mileageKm,omitempty"`
	PriceEUR      *float64 `json:"priceEur,omitempty"`
	PowerKW       *float64 `json:"powerKw,omitempty"`
	Available     bool     `json:"available"`
	Description   string   `json:"description,omitempty"`
	URL           string   `json:"url,omitempty"`
	DataSource    string   `json:"dataSource,omitempty"`
	Images        []string `json:"images,omitempty"`
	MissingFields []string `json:"missingFields,omitempty"`
}

// Weights reports the blend used for the final score.
type Weights struct {
	Similarity float64 `json:"similarity"`
	Deal       float64 `json:"deal"`
}

// ScoreBreakdown explains how a candidate's final score was assembled.
type ScoreBreakdown struct {
	Similarity      scoring.SimilarityBreakdown `json:"similarity"`
	Deal            scoring.DealBreakdown       `json:"deal"`
	Preference      float64                     `json:"preference"`
	PreferenceBonus float64                     `json:"preferenceBonus"`
	Weights         Weights                     `json:"weights"`
}

// CandidateResponse is a ranked comparable.
type CandidateResponse struct {
	Rank            int                `json:"rank"`
	Vehicle         VehicleResponse    `json:"vehicle"`
	SimilarityScore float64            `json:"similarityScore"`
	DealScore       float64            `json:"dealScore"`
	DealIndicator   float64            `json:"dealIndicator"`
	FinalScore      float64            `json:"finalScore"`
	Savings         *float64           `json:"savings,omitempty"`
	SavingsPercent  *float64           `json:"savingsPercent,omitempty"`
	FilterLevel     string             `json:"filterLevel"`
	DroppedFilters  []filter.Attribute `json:"droppedFilters,omitempty"`
	Breakdown       ScoreBreakdown     `json:"breakdown"`
}

// Metadata describes how the result set was produced.
type Metadata struct {
	Requested           int              `json:"requested"`
	Returned            int              `json:"returned"`
	TotalConsidered     int              `json:"totalConsidered"`
	DataQualityWarnings int              `json:"dataQualityWarnings"`
	FinalLevel          string           `json:"finalLevel,omitempty"`
	PoolSatisfied       bool             `json:"poolSatisfied"`
	Attempts            []filter.Attempt `json:"attempts"`
	Cached              bool             `json:"cached"`
	GeneratedAt         time.Time        `json:"generatedAt"`
}

// ComparablesResponse is the ranked result for a target listing.
type ComparablesResponse struct {
	Target     VehicleResponse     `json:"target"`
	Candidates []CandidateResponse `json:"candidates"`
	Metadata   Metadata            `json:"metadata"`
}

// NoResults reports whether the search found no comparable candidates.
func (r ComparablesResponse) NoResults() bool {
	return len(r.Candidates) == 0
}

// StatsResponse reports store-wide and engine counters.
type StatsResponse struct {
	TotalAvailable    int64     `json:"totalAvailable"`
	ComparisonsServed int64     `json:"comparisonsServed"`
	NoResultsServed   int64     `json:"noResultsServed"`
	Computed          int64     `json:"computed"`
	Timestamp         time.Time `json:"timestamp"`
}

// NoResultsResponse is returned when the target resolved but no comparable
// candidate was found at any relaxation level.
type NoResultsResponse struct {
	Error    string          `json:"error"`
	Code     string          `json:"code"`
	Target   VehicleResponse `json:"target"`
	Metadata Metadata        `json:"metadata"`
}
