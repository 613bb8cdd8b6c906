package scoring

import (
	"fmt"
	"sort"

	"carma_backend/internal/comparables/domain"
)

// DefaultMileageBonusWeight nudges lower-mileage candidates. The bonus is a
// share of one price-percentile step, so it reorders equally priced
// candidates only.
const DefaultMileageBonusWeight = 0.1

// Market is the price and mileage distribution of a candidate pool. Scores
// are computed for members of the pool.
type Market struct {
	size     int
	prices   []float64
	mileages []float64
}

// NewMarket indexes the pool for percentile lookups.
func NewMarket(pool []domain.Vehicle) *Market {
	m := &Market{size: len(pool)}
	for _, v := range pool {
		if v.PriceEUR != nil {
			m.prices = append(m.prices, *v.PriceEUR)
		}
		if v.MileageKM != nil {
			m.mileages = append(m.mileages, float64(*v.MileageKM))
		}
	}
	sort.Float64s(m.prices)
	sort.Float64s(m.mileages)
	return m
}

// priceStep is the percentile distance between two adjacent priced members.
func (m *Market) priceStep() float64 {
	if m.size == 1 || len(m.prices) < 2 {
		return 1
	}
	return 1 / float64(len(m.prices)-1)
}

// Size returns the number of pool members.
func (m *Market) Size() int {
	return m.size
}

// percentile returns the share of other members strictly below value. A pool
// of one compares the member against itself, which yields 0.
func (m *Market) percentile(sorted []float64, value float64) (float64, bool) {
	if len(sorted) == 0 {
		return 0, false
	}
	below := float64(sort.SearchFloat64s(sorted, value))
	if m.size == 1 {
		return below / float64(len(sorted)), true
	}
	others := len(sorted) - 1
	if others <= 0 {
		return 0, false
	}
	return below / float64(others), true
}

// DealBreakdown shows how the deal score was assembled.
type DealBreakdown struct {
	PricePercentile   *float64 `json:"pricePercentile,omitempty"`
	Base              float64  `json:"base"`
	MileagePercentile *float64 `json:"mileagePercentile,omitempty"`
	MileageBonus      float64  `json:"mileageBonus"`
	Score             float64  `json:"score"`
	// Neutral is true when price data was insufficient and the score defaulted.
	Neutral bool `json:"neutral"`
}

// Deal scores candidates by price position within their pool.
type Deal struct {
	mileageBonusWeight float64
}

// NewDeal creates a deal scorer.
func NewDeal(mileageBonusWeight float64) (*Deal, error) {
	if mileageBonusWeight < 0 || mileageBonusWeight > 0.5 {
		return nil, fmt.Errorf("mileage bonus weight must be within [0, 0.5], got %.3f", mileageBonusWeight)
	}
	return &Deal{mileageBonusWeight: mileageBonusWeight}, nil
}

// MileageBonusWeight returns the configured bonus weight.
func (d *Deal) MileageBonusWeight() float64 {
	return d.mileageBonusWeight
}

// Score computes 1 - price percentile plus a mileage bonus, clamped to
// [0, 1]. The bonus is weight * step * (1 - mileage percentile), where step
// is one price-percentile step; with weight <= 0.5 a cheaper candidate always
// keeps the higher deal score. A candidate without a price, or without priced
// peers, scores exactly Neutral.
func (d *Deal) Score(market *Market, candidate domain.Vehicle) DealBreakdown {
	var b DealBreakdown

	if candidate.PriceEUR == nil {
		return DealBreakdown{Base: Neutral, Score: Neutral, Neutral: true}
	}
	p, ok := market.percentile(market.prices, *candidate.PriceEUR)
	if !ok {
		return DealBreakdown{Base: Neutral, Score: Neutral, Neutral: true}
	}
	b.PricePercentile = &p
	b.Base = 1 - p

	mileagePct := Neutral
	if candidate.MileageKM != nil {
		if mp, ok := market.percentile(market.mileages, float64(*candidate.MileageKM)); ok {
			b.MileagePercentile = &mp
			mileagePct = mp
		}
	}
	b.MileageBonus = d.mileageBonusWeight * market.priceStep() * (1 - mileagePct)

	b.Score = Clamp01(b.Base + b.MileageBonus)
	return b
}
