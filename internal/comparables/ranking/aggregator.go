// Package ranking blends similarity, deal and preference signals into the
// final ordering of a candidate pool.
package ranking

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/filter"
	"carma_backend/internal/comparables/scoring"

	"golang.org/x/sync/errgroup"
)

// TieEpsilon is the resolution of final scores when ranking. Scores that
// round to the same multiple of it are tied.
const TieEpsilon = 1e-9

// parallelThreshold is the pool size from which scoring fans out.
const parallelThreshold = 64

// Weights blends similarity and deal into the final score.
type Weights struct {
	Similarity float64 `yaml:"similarity" json:"similarity"`
	Deal       float64 `yaml:"deal" json:"deal"`
}

// DefaultWeights returns the default 60/40 blend.
func DefaultWeights() Weights {
	return Weights{Similarity: 0.60, Deal: 0.40}
}

// Validate checks the blend is non-negative and sums to 1.
func (w Weights) Validate() error {
	if w.Similarity < 0 || w.Deal < 0 {
		return fmt.Errorf("ranking weights must be non-negative")
	}
	if math.Abs(w.Similarity+w.Deal-1) > 1e-6 {
		return fmt.Errorf("ranking weights must sum to 1, got %.4f", w.Similarity+w.Deal)
	}
	return nil
}

// Scored is a pool member with its full score breakdown.
type Scored struct {
	Candidate       filter.Candidate
	Similarity      scoring.SimilarityBreakdown
	Deal            scoring.DealBreakdown
	Preference      float64
	PreferenceBonus float64
	Final           float64
}

// Aggregator scores and orders candidate pools.
type Aggregator struct {
	similarity  *scoring.Similarity
	deal        *scoring.Deal
	weights     Weights
	preferences PreferenceWeights
}

// NewAggregator creates an aggregator from validated components.
func NewAggregator(similarity *scoring.Similarity, deal *scoring.Deal, weights Weights, preferences PreferenceWeights) *Aggregator {
	return &Aggregator{
		similarity:  similarity,
		deal:        deal,
		weights:     weights,
		preferences: preferences,
	}
}

// Weights returns the blend in use.
func (a *Aggregator) Weights() Weights {
	return a.weights
}

// Score computes every candidate's breakdown against target. Large pools are
// scored concurrently; the result keeps pool order.
func (a *Aggregator) Score(ctx context.Context, target domain.Vehicle, pool []filter.Candidate, prefs domain.Preferences) ([]Scored, error) {
	vehicles := make([]domain.Vehicle, len(pool))
	for i, c := range pool {
		vehicles[i] = c.Vehicle
	}
	market := scoring.NewMarket(vehicles)
	out := make([]Scored, len(pool))

	if len(pool) < parallelThreshold {
		for i, c := range pool {
			out[i] = a.scoreOne(market, target, c, prefs)
		}
		return out, nil
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(pool) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(pool); start += chunk {
		start, end := start, min(start+chunk, len(pool))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				out[i] = a.scoreOne(market, target, pool[i], prefs)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Aggregator) scoreOne(market *scoring.Market, target domain.Vehicle, c filter.Candidate, prefs domain.Preferences) Scored {
	s := Scored{
		Candidate:  c,
		Similarity: a.similarity.Score(target, c.Vehicle),
		Deal:       a.deal.Score(market, c.Vehicle),
	}
	s.Preference, s.PreferenceBonus = a.preferences.Bonus(prefs, c.Vehicle)
	s.Final = a.weights.Similarity*s.Similarity.Score + a.weights.Deal*s.Deal.Score + s.PreferenceBonus
	return s
}

// Rank orders scored candidates by final score, breaking ties by price,
// mileage and id, and truncates to count.
func Rank(scored []Scored, count int) []Scored {
	ranked := append([]Scored(nil), scored...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})
	if count >= 0 && len(ranked) > count {
		ranked = ranked[:count]
	}
	return ranked
}

func less(a, b Scored) bool {
	if aq, bq := quantize(a.Final), quantize(b.Final); aq != bq {
		return aq > bq
	}
	av, bv := a.Candidate.Vehicle, b.Candidate.Vehicle
	if c := compareMissingLast(av.PriceEUR, bv.PriceEUR); c != 0 {
		return c < 0
	}
	var am, bm *float64
	if av.MileageKM != nil {
		f := float64(*av.MileageKM)
		am = &f
	}
	if bv.MileageKM != nil {
		f := float64(*bv.MileageKM)
		bm = &f
	}
	if c := compareMissingLast(am, bm); c != 0 {
		return c < 0
	}
	return av.ID < bv.ID
}

// quantize keeps the tie relation transitive, which an epsilon distance does not.
func quantize(final float64) float64 {
	return math.Round(final / TieEpsilon)
}

func compareMissingLast(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	}
	return 0
}
