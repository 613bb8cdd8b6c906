package ranking

import (
	"fmt"

	"carma_backend/internal/comparables/domain"
)

// PreferenceWeights weights the soft preference factors and caps the bonus.
type PreferenceWeights struct {
	ExteriorColor float64 `yaml:"exterior_color" json:"exteriorColor"`
	InteriorColor float64 `yaml:"interior_color" json:"interiorColor"`
	MaxBonus      float64 `yaml:"max_bonus" json:"maxBonus"`
}

// DefaultPreferenceWeights returns the default preference weights.
func DefaultPreferenceWeights() PreferenceWeights {
	return PreferenceWeights{ExteriorColor: 0.6, InteriorColor: 0.4, MaxBonus: 0.05}
}

// Validate bounds the bonus to [0, 0.05].
func (w PreferenceWeights) Validate() error {
	if w.ExteriorColor < 0 || w.InteriorColor < 0 {
		return fmt.Errorf("preference weights must be non-negative")
	}
	if w.MaxBonus < 0 || w.MaxBonus > 0.05 {
		return fmt.Errorf("preference bonus must be within [0, 0.05], got %.3f", w.MaxBonus)
	}
	return nil
}

// Bonus returns the preference score in [0, 1] over the supplied preferences
// and the additive bonus it earns. A candidate missing the field does not match.
func (w PreferenceWeights) Bonus(prefs domain.Preferences, v domain.Vehicle) (float64, float64) {
	var score, total float64
	if prefs.ExteriorColor != "" {
		total += w.ExteriorColor
		if v.ExteriorColor == prefs.ExteriorColor {
			score += w.ExteriorColor
		}
	}
	if prefs.InteriorColor != "" {
		total += w.InteriorColor
		if v.InteriorColor == prefs.InteriorColor {
			score += w.InteriorColor
		}
	}
	if total == 0 {
		return 0, 0
	}
	s := score / total
	return s, s * w.MaxBonus
}
