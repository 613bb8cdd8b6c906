package service

import (
	"math"
	"strings"
	"time"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/filter"
	"carma_backend/internal/comparables/normalize"
	"carma_backend/internal/comparables/ranking"
	"carma_backend/internal/comparables/transport"
	"carma_backend/platform/sanitize"
)

func buildResponse(target domain.Vehicle, plan filter.Plan, scored, ranked []ranking.Scored, requested int, weights ranking.Weights, now time.Time) transport.ComparablesResponse {
	warnings := 0
	if target.HasMissing() {
		warnings++
	}
	for _, s := range scored {
		if s.Candidate.Vehicle.HasMissing() {
			warnings++
		}
	}

	candidates := make([]transport.CandidateResponse, 0, len(ranked))
	for i, s := range ranked {
		candidates = append(candidates, toCandidateResponse(i+1, target, s, weights))
	}

	attempts := plan.Attempts
	if attempts == nil {
		attempts = []filter.Attempt{}
	}

	return transport.ComparablesResponse{
		Target:     toVehicleResponse(target),
		Candidates: candidates,
		Metadata: transport.Metadata{
			Requested:           requested,
			Returned:            len(candidates),
			TotalConsidered:     len(plan.Candidates),
			DataQualityWarnings: warnings,
			FinalLevel:          plan.FinalLevel,
			PoolSatisfied:       plan.Satisfied,
			Attempts:            attempts,
			GeneratedAt:         now,
		},
	}
}

func toCandidateResponse(rank int, target domain.Vehicle, s ranking.Scored, weights ranking.Weights) transport.CandidateResponse {
	resp := transport.CandidateResponse{
		Rank:            rank,
		Vehicle:         toVehicleResponse(s.Candidate.Vehicle),
		SimilarityScore: round(s.Similarity.Score, 4),
		DealScore:       round(s.Deal.Score, 4),
		DealIndicator:   round((s.Deal.Score-0.5)*2, 4),
		FinalScore:      round(s.Final, 4),
		FilterLevel:     s.Candidate.LevelName,
		DroppedFilters:  s.Candidate.Dropped,
		Breakdown: transport.ScoreBreakdown{
			Similarity:      s.Similarity,
			Deal:            s.Deal,
			Preference:      round(s.Preference, 4),
			PreferenceBonus: round(s.PreferenceBonus, 4),
			Weights:         transport.Weights{Similarity: weights.Similarity, Deal: weights.Deal},
		},
	}
	resp.Savings, resp.SavingsPercent = savings(target.PriceEUR, s.Candidate.Vehicle.PriceEUR)
	return resp
}

// savings reports how much cheaper the candidate is than the target.
func savings(targetPrice, candidatePrice *float64) (*float64, *float64) {
	if targetPrice == nil || candidatePrice == nil || *candidatePrice >= *targetPrice {
		return nil, nil
	}
	abs := round(*targetPrice-*candidatePrice, 2)
	pct := round((*targetPrice-*candidatePrice) / *targetPrice * 100, 2)
	return &abs, &pct
}

func toVehicleResponse(v domain.Vehicle) transport.VehicleResponse {
	src := v.Source
	resp := transport.VehicleResponse{
		ID:            v.ID,
		Make:          displayOr(src.Make, v.Make),
		Model:         displayOr(src.Model, v.Model),
		Year:          v.Year,
		MileageKM:     v.MileageKM,
		PriceEUR:      v.PriceEUR,
		PowerKW:       v.PowerKW,
		Available:     v.Available,
		Description:   sanitize.Text(src.Description),
		URL:           strings.TrimSpace(src.ListingURL),
		DataSource:    src.DataSource,
		Images:        sanitize.TextSlice(src.Images),
		MissingFields: v.Missing,
	}
	if v.FuelType != "" {
		resp.FuelType = normalize.Display(src.FuelType)
	}
	if v.Transmission != "" {
		resp.Transmission = normalize.Display(src.Transmission)
	}
	if v.BodyType != "" {
		resp.BodyType = normalize.Display(src.BodyType)
	}
	if v.ExteriorColor != "" {
		resp.ExteriorColor = normalize.Display(src.ExteriorColor)
	}
	if v.InteriorColor != "" {
		resp.InteriorColor = normalize.Display(src.InteriorColor)
	}
	return resp
}

func displayOr(raw, folded string) string {
	if folded == "" {
		return ""
	}
	if d := normalize.Display(raw); d != "" {
		return d
	}
	return folded
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
