// Package filter builds the progressively relaxed predicates used to pull a
// comparable candidate pool out of the listing store.
package filter

import (
	"errors"
	"fmt"
)

// Attribute is an optional categorical constraint that may be dropped when
// it limits the pool. Make and model are never attributes: they always apply.
type Attribute string

const (
	AttrExteriorColor Attribute = "exterior_color"
	AttrBodyType      Attribute = "body_type"
	AttrTransmission  Attribute = "transmission"
	AttrFuelType      Attribute = "fuel_type"
)

// DropOrder is the fixed order in which categorical constraints are dropped.
var DropOrder = []Attribute{AttrExteriorColor, AttrBodyType, AttrTransmission, AttrFuelType}

// Level is one tier of numeric strictness. A zero tolerance or ratio disables
// that range at this level.
type Level struct {
	Name            string  `yaml:"name" json:"name"`
	YearTolerance   int     `yaml:"year_tolerance" json:"yearTolerance"`
	MaxMileageRatio float64 `yaml:"max_mileage_ratio" json:"maxMileageRatio"`
	MinPriceRatio   float64 `yaml:"min_price_ratio" json:"minPriceRatio"`
	MaxPriceRatio   float64 `yaml:"max_price_ratio" json:"maxPriceRatio"`
	PowerTolerance  float64 `yaml:"power_tolerance" json:"powerTolerance"`
}

// DefaultLevels returns the built-in strict-to-relaxed ladder.
func DefaultLevels() []Level {
	return []Level{
		{Name: "strict", YearTolerance: 2, MaxMileageRatio: 1.5, MinPriceRatio: 0.6, MaxPriceRatio: 1.4, PowerTolerance: 0.10},
		{Name: "relaxed", YearTolerance: 3, MaxMileageRatio: 1.7, MinPriceRatio: 0.55, MaxPriceRatio: 1.45, PowerTolerance: 0.15},
		{Name: "wide", YearTolerance: 4, MaxMileageRatio: 2.0, MinPriceRatio: 0.5, MaxPriceRatio: 1.5, PowerTolerance: 0.20},
		{Name: "make_model"},
	}
}

// Validate checks a single level.
func (l Level) Validate() error {
	if l.Name == "" {
		return errors.New("level name is required")
	}
	if l.YearTolerance < 0 || l.MaxMileageRatio < 0 || l.PowerTolerance < 0 {
		return fmt.Errorf("level %s: tolerances must be non-negative", l.Name)
	}
	if l.PowerTolerance >= 1 {
		return fmt.Errorf("level %s: power tolerance must be below 1", l.Name)
	}
	if (l.MinPriceRatio == 0) != (l.MaxPriceRatio == 0) {
		return fmt.Errorf("level %s: price ratios must be set together", l.Name)
	}
	if l.MinPriceRatio < 0 || l.MinPriceRatio > l.MaxPriceRatio {
		return fmt.Errorf("level %s: min price ratio must be within [0, max price ratio]", l.Name)
	}
	return nil
}

// ValidateLevels checks a full ladder.
func ValidateLevels(levels []Level) error {
	if len(levels) == 0 {
		return errors.New("at least one filter level is required")
	}
	seen := make(map[string]struct{}, len(levels))
	for _, l := range levels {
		if err := l.Validate(); err != nil {
			return err
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("duplicate level name %q", l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	return nil
}
