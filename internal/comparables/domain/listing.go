// Package domain holds the vehicle types shared by every comparables stage.
package domain

import "time"

// Field names used in data-quality reporting and plan traces.
const (
	FieldMake          = "make"
	FieldModel         = "model"
	FieldYear          = "registration_year"
	FieldFuelType      = "fuel_type"
	FieldTransmission  = "transmission"
	FieldBodyType      = "body_type"
	FieldExteriorColor = "exterior_color"
	FieldInteriorColor = "interior_color"
	FieldMileage       = "mileage_km"
	FieldPrice         = "price_eur"
	FieldPower         = "power_kw"
)

// Listing is a vehicle-for-sale record as stored by the ingestion process.
// Structured columns may be empty while the scraped text is present; the
// normalizer reconciles both.
type Listing struct {
	ID                   string
	Make                 string
	Model                string
	RegistrationYear     *int
	FirstRegistrationRaw string
	FuelType             string
	Transmission         string
	BodyType             string
	ExteriorColor        string
	InteriorColor        string
	MileageKM            *int64
	MileageRaw           string
	PriceEUR             *float64
	PriceRaw             string
	PowerKW              *float64
	PowerRaw             string
	Available            bool
	Description          string
	ListingURL           string
	DataSource           string
	Images               []string
	UpdatedAt            time.Time
}

// Vehicle is the canonical form of a Listing. Categorical fields hold folded
// comparison keys ("" means missing); numeric fields are nil when missing.
type Vehicle struct {
	ID            string
	Make          string
	Model         string
	Year          *int
	FuelType      string
	Transmission  string
	BodyType      string
	ExteriorColor string
	InteriorColor string
	MileageKM     *int64
	PriceEUR      *float64
	PowerKW       *float64
	Available     bool

	// Missing names every field that fell back to the missing sentinel.
	Missing []string
	// Source is the untouched record, kept for display and passthrough fields.
	Source Listing
}

// HasMissing reports whether any field fell back to the missing sentinel.
func (v Vehicle) HasMissing() bool {
	return len(v.Missing) > 0
}

// Comparable reports whether the vehicle carries the identity fields needed
// to search for peers.
func (v Vehicle) Comparable() bool {
	return v.Make != "" && v.Model != ""
}

// Preferences are optional soft signals that add a small bonus to matching
// candidates. Values are folded comparison keys.
type Preferences struct {
	ExteriorColor string
	InteriorColor string
}

// IsZero reports whether no preference was supplied.
func (p Preferences) IsZero() bool {
	return p.ExteriorColor == "" && p.InteriorColor == ""
}
