package scoring

import (
	"fmt"
	"math"

	"carma_backend/internal/comparables/domain"
)

// DefaultMaxYearSpan bounds the age closeness normalization.
const DefaultMaxYearSpan = 10

// SimilarityWeights defines the relative importance of each similarity factor.
type SimilarityWeights struct {
	Make         float64 `yaml:"make" json:"make"`
	Model        float64 `yaml:"model" json:"model"`
	Age          float64 `yaml:"age" json:"age"`
	Mileage      float64 `yaml:"mileage" json:"mileage"`
	FuelType     float64 `yaml:"fuel_type" json:"fuelType"`
	Transmission float64 `yaml:"transmission" json:"transmission"`
}

// DefaultSimilarityWeights returns the default weight table. Make and model
// together dominate.
func DefaultSimilarityWeights() SimilarityWeights {
	return SimilarityWeights{
		Make:         0.25,
		Model:        0.25,
		Age:          0.20,
		Mileage:      0.20,
		FuelType:     0.05,
		Transmission: 0.05,
	}
}

// Sum returns the total weight.
func (w SimilarityWeights) Sum() float64 {
	return w.Make + w.Model + w.Age + w.Mileage + w.FuelType + w.Transmission
}

// Validate checks the weights are non-negative and sum to 1.
func (w SimilarityWeights) Validate() error {
	for _, v := range []float64{w.Make, w.Model, w.Age, w.Mileage, w.FuelType, w.Transmission} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("similarity weights must be non-negative")
		}
	}
	if math.Abs(w.Sum()-1) > 1e-6 {
		return fmt.Errorf("similarity weights must sum to 1, got %.4f", w.Sum())
	}
	return nil
}

// SimilarityBreakdown shows per-factor scores before weighting.
type SimilarityBreakdown struct {
	Make         float64 `json:"make"`
	Model        float64 `json:"model"`
	Age          float64 `json:"age"`
	Mileage      float64 `json:"mileage"`
	FuelType     float64 `json:"fuelType"`
	Transmission float64 `json:"transmission"`
	Score        float64 `json:"score"`
	// Neutral names the factors that fell back to the neutral value.
	Neutral []string `json:"neutral,omitempty"`
}

// Similarity scores candidates against a target.
type Similarity struct {
	weights     SimilarityWeights
	maxYearSpan float64
}

// NewSimilarity creates a similarity scorer. A non-positive span uses the default.
func NewSimilarity(weights SimilarityWeights, maxYearSpan int) *Similarity {
	if maxYearSpan <= 0 {
		maxYearSpan = DefaultMaxYearSpan
	}
	return &Similarity{weights: weights, maxYearSpan: float64(maxYearSpan)}
}

// Weights returns the weight table in use.
func (s *Similarity) Weights() SimilarityWeights {
	return s.weights
}

// Score computes the weighted similarity of candidate to target. Power is
// never a factor.
func (s *Similarity) Score(target, candidate domain.Vehicle) SimilarityBreakdown {
	var b SimilarityBreakdown

	factor := func(name string, value float64, ok bool) float64 {
		if !ok {
			b.Neutral = append(b.Neutral, name)
		}
		return OrNeutral(value, ok)
	}

	v, ok := match(target.Make, candidate.Make)
	b.Make = factor(domain.FieldMake, v, ok)
	v, ok = match(target.Model, candidate.Model)
	b.Model = factor(domain.FieldModel, v, ok)
	v, ok = s.age(target.Year, candidate.Year)
	b.Age = factor(domain.FieldYear, v, ok)
	v, ok = mileageCloseness(target.MileageKM, candidate.MileageKM)
	b.Mileage = factor(domain.FieldMileage, v, ok)
	v, ok = match(target.FuelType, candidate.FuelType)
	b.FuelType = factor(domain.FieldFuelType, v, ok)
	v, ok = match(target.Transmission, candidate.Transmission)
	b.Transmission = factor(domain.FieldTransmission, v, ok)

	w := s.weights
	total := b.Make*w.Make +
		b.Model*w.Model +
		b.Age*w.Age +
		b.Mileage*w.Mileage +
		b.FuelType*w.FuelType +
		b.Transmission*w.Transmission

	b.Score = Clamp01(total)
	return b
}

func (s *Similarity) age(target, candidate *int) (float64, bool) {
	if target == nil || candidate == nil {
		return 0, false
	}
	return closeness(float64(*target-*candidate), s.maxYearSpan), true
}

func mileageCloseness(target, candidate *int64) (float64, bool) {
	if target == nil || candidate == nil {
		return 0, false
	}
	return closeness(float64(*target-*candidate), math.Max(float64(*target), 1)), true
}
