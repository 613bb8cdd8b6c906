package filter

import (
	"math"

	"carma_backend/internal/comparables/domain"
)

// Predicate is the store query contract: equality on folded categorical keys
// plus optional numeric ranges. Empty strings and nil bounds are unconstrained.
type Predicate struct {
	Make          string
	Model         string
	FuelType      string
	Transmission  string
	BodyType      string
	ExteriorColor string

	YearMin    *int
	YearMax    *int
	MileageMax *int64
	PriceMin   *float64
	PriceMax   *float64
	PowerMin   *float64
	PowerMax   *float64

	ExcludeID string
}

// Build derives the predicate for a level with every categorical constraint
// the target can supply. Ranges are skipped for fields the target lacks.
func Build(target domain.Vehicle, level Level) Predicate {
	p := Predicate{
		Make:          target.Make,
		Model:         target.Model,
		FuelType:      target.FuelType,
		Transmission:  target.Transmission,
		BodyType:      target.BodyType,
		ExteriorColor: target.ExteriorColor,
		ExcludeID:     target.ID,
	}

	if target.Year != nil && level.YearTolerance > 0 {
		lo, hi := *target.Year-level.YearTolerance, *target.Year+level.YearTolerance
		p.YearMin, p.YearMax = &lo, &hi
	}
	if target.MileageKM != nil && level.MaxMileageRatio > 0 {
		hi := int64(math.Floor(float64(*target.MileageKM) * level.MaxMileageRatio))
		p.MileageMax = &hi
	}
	if target.PriceEUR != nil && level.MaxPriceRatio > 0 {
		lo, hi := *target.PriceEUR*level.MinPriceRatio, *target.PriceEUR*level.MaxPriceRatio
		p.PriceMin, p.PriceMax = &lo, &hi
	}
	if target.PowerKW != nil && level.PowerTolerance > 0 {
		lo, hi := *target.PowerKW*(1-level.PowerTolerance), *target.PowerKW*(1+level.PowerTolerance)
		p.PowerMin, p.PowerMax = &lo, &hi
	}

	return p
}

// Constrains reports whether the attribute is currently part of the predicate.
func (p Predicate) Constrains(attr Attribute) bool {
	return p.value(attr) != ""
}

// Without returns a copy with the attribute constraint removed.
func (p Predicate) Without(attr Attribute) Predicate {
	switch attr {
	case AttrExteriorColor:
		p.ExteriorColor = ""
	case AttrBodyType:
		p.BodyType = ""
	case AttrTransmission:
		p.Transmission = ""
	case AttrFuelType:
		p.FuelType = ""
	}
	return p
}

func (p Predicate) value(attr Attribute) string {
	switch attr {
	case AttrExteriorColor:
		return p.ExteriorColor
	case AttrBodyType:
		return p.BodyType
	case AttrTransmission:
		return p.Transmission
	case AttrFuelType:
		return p.FuelType
	}
	return ""
}

// Matches evaluates the predicate against a normalized vehicle. A candidate
// missing a field the predicate ranges over is excluded, except power, which
// only filters when both sides have it.
func (p Predicate) Matches(v domain.Vehicle) bool {
	if !v.Available || v.ID == "" || v.ID == p.ExcludeID {
		return false
	}
	if v.Make != p.Make || v.Model != p.Model || p.Make == "" || p.Model == "" {
		return false
	}
	if !equalIfSet(p.FuelType, v.FuelType) || !equalIfSet(p.Transmission, v.Transmission) ||
		!equalIfSet(p.BodyType, v.BodyType) || !equalIfSet(p.ExteriorColor, v.ExteriorColor) {
		return false
	}

	if p.YearMin != nil || p.YearMax != nil {
		if v.Year == nil {
			return false
		}
		if (p.YearMin != nil && *v.Year < *p.YearMin) || (p.YearMax != nil && *v.Year > *p.YearMax) {
			return false
		}
	}
	if p.MileageMax != nil {
		if v.MileageKM == nil || *v.MileageKM > *p.MileageMax {
			return false
		}
	}
	if p.PriceMin != nil || p.PriceMax != nil {
		if v.PriceEUR == nil {
			return false
		}
		if (p.PriceMin != nil && *v.PriceEUR < *p.PriceMin) || (p.PriceMax != nil && *v.PriceEUR > *p.PriceMax) {
			return false
		}
	}
	if v.PowerKW != nil {
		if (p.PowerMin != nil && *v.PowerKW < *p.PowerMin) || (p.PowerMax != nil && *v.PowerKW > *p.PowerMax) {
			return false
		}
	}
	return true
}

func equalIfSet(want, got string) bool {
	return want == "" || want == got
}
