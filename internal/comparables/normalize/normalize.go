// Package normalize turns stored listing fields into the canonical values
// used by filtering and scoring. It never fails: a field that cannot be
// parsed is reported as missing and the rest of the record is kept.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"carma_backend/internal/comparables/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// psToKW converts metric horsepower to kilowatts.
const psToKW = 0.7355

// earliestYear is the oldest first-registration year accepted as signal.
const earliestYear = 1900

var (
	// yearRegexp captures a four digit year anywhere in a date string ("03/2019", "2019-03-01").
	yearRegexp = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	// kwRegexp captures a power value followed by a kW unit.
	kwRegexp = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*kw\b`)
	// psRegexp captures a power value followed by a horsepower unit.
	psRegexp = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(?:ps|hp|bhp|cv|pk)\b`)
)

// placeholders are scraped values that carry no information.
var placeholders = map[string]struct{}{
	"-":             {},
	"--":            {},
	"n/a":           {},
	"na":            {},
	"none":          {},
	"null":          {},
	"unknown":       {},
	"not specified": {},
}

// Normalizer canonicalizes listings. The clock bounds plausible years.
type Normalizer struct {
	now func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithClock overrides the clock used for the year plausibility window.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{now: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize converts a stored listing into a Vehicle.
func (n *Normalizer) Normalize(l domain.Listing) domain.Vehicle {
	v := domain.Vehicle{
		ID:            strings.TrimSpace(l.ID),
		Make:          Categorical(l.Make),
		Model:         Categorical(l.Model),
		FuelType:      Categorical(l.FuelType),
		Transmission:  Categorical(l.Transmission),
		BodyType:      Categorical(l.BodyType),
		ExteriorColor: Categorical(l.ExteriorColor),
		InteriorColor: Categorical(l.InteriorColor),
		Year:          n.year(l.RegistrationYear, l.FirstRegistrationRaw),
		MileageKM:     mileage(l.MileageKM, l.MileageRaw),
		PriceEUR:      price(l.PriceEUR, l.PriceRaw),
		PowerKW:       power(l.PowerKW, l.PowerRaw),
		Available:     l.Available,
		Source:        l,
	}

	missing := make([]string, 0, 4)
	check := func(field string, absent bool) {
		if absent {
			missing = append(missing, field)
		}
	}
	check(domain.FieldMake, v.Make == "")
	check(domain.FieldModel, v.Model == "")
	check(domain.FieldYear, v.Year == nil)
	check(domain.FieldFuelType, v.FuelType == "")
	check(domain.FieldTransmission, v.Transmission == "")
	check(domain.FieldBodyType, v.BodyType == "")
	check(domain.FieldExteriorColor, v.ExteriorColor == "")
	check(domain.FieldMileage, v.MileageKM == nil)
	check(domain.FieldPrice, v.PriceEUR == nil)
	check(domain.FieldPower, v.PowerKW == nil)
	if len(missing) > 0 {
		v.Missing = missing
	}

	return v
}

// Categorical folds a categorical value into its comparison key: Unicode
// NFC, collapsed whitespace, case folded. Placeholders become "".
func Categorical(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
	if s == "" {
		return ""
	}
	s = cases.Fold().String(s)
	if _, ok := placeholders[s]; ok {
		return ""
	}
	return s
}

// Display trims and collapses whitespace without changing case.
func Display(raw string) string {
	return strings.Join(strings.FieldsFunc(norm.NFC.String(raw), unicode.IsSpace), " ")
}

func (n *Normalizer) year(structured *int, raw string) *int {
	maxYear := n.now().Year() + 1
	plausible := func(y int) bool { return y >= earliestYear && y <= maxYear }

	if structured != nil && plausible(*structured) {
		y := *structured
		return &y
	}

	for _, match := range yearRegexp.FindAllString(raw, -1) {
		y, err := strconv.Atoi(match)
		if err == nil && plausible(y) {
			return &y
		}
	}
	return nil
}

func mileage(structured *int64, raw string) *int64 {
	if structured != nil && *structured >= 0 {
		m := *structured
		return &m
	}

	value, ok := ParseNumber(raw)
	if !ok || value < 0 || value > math.MaxInt64/2 {
		return nil
	}
	m := int64(math.Round(value))
	return &m
}

func price(structured *float64, raw string) *float64 {
	if structured != nil && validPositive(*structured) {
		p := *structured
		return &p
	}

	value, ok := ParseNumber(raw)
	if !ok || !validPositive(value) {
		return nil
	}
	return &value
}

func power(structured *float64, raw string) *float64 {
	if structured != nil && validPositive(*structured) {
		p := *structured
		return &p
	}

	if m := kwRegexp.FindStringSubmatch(raw); len(m) == 2 {
		if kw, ok := ParseNumber(m[1]); ok && validPositive(kw) {
			return &kw
		}
	}
	if m := psRegexp.FindStringSubmatch(raw); len(m) == 2 {
		if ps, ok := ParseNumber(m[1]); ok && validPositive(ps) {
			kw := math.Round(ps*psToKW*10) / 10
			return &kw
		}
	}

	// A bare number is taken as kW, the unit of the structured column.
	value, ok := ParseNumber(raw)
	if !ok || !validPositive(value) {
		return nil
	}
	return &value
}

func validPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
