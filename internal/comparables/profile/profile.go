// Package profile loads the ranking profile: the filter level ladder and
// every scoring weight. Without a file the built-in defaults apply.
package profile

import (
	"fmt"
	"os"

	"carma_backend/internal/comparables/filter"
	"carma_backend/internal/comparables/ranking"
	"carma_backend/internal/comparables/scoring"

	"gopkg.in/yaml.v3"
)

// Profile holds the tunable parameters of the comparables engine.
type Profile struct {
	Levels             []filter.Level             `yaml:"levels"`
	Similarity         *scoring.SimilarityWeights `yaml:"similarity_weights"`
	MaxYearSpan        int                        `yaml:"max_year_span"`
	MileageBonusWeight *float64                   `yaml:"mileage_bonus_weight"`
	Ranking            *ranking.Weights           `yaml:"ranking_weights"`
	Preferences        *ranking.PreferenceWeights `yaml:"preference_weights"`
}

// Default returns the built-in profile.
func Default() *Profile {
	p := &Profile{}
	p.applyDefaults()
	return p
}

// Load reads a YAML profile and expands environment variables.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ranking profile: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var p Profile
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("parse ranking profile yaml: %w", err)
	}

	return &p, nil
}

// LoadAndValidate loads the profile at path, or the defaults when path is
// empty, applies defaults and validates.
func LoadAndValidate(path string) (*Profile, error) {
	if path == "" {
		p := Default()
		return p, p.Validate()
	}

	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	p.applyDefaults()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("validate ranking profile: %w", err)
	}
	return p, nil
}

func (p *Profile) applyDefaults() {
	if len(p.Levels) == 0 {
		p.Levels = filter.DefaultLevels()
	}
	if p.Similarity == nil {
		w := scoring.DefaultSimilarityWeights()
		p.Similarity = &w
	}
	if p.MaxYearSpan == 0 {
		p.MaxYearSpan = scoring.DefaultMaxYearSpan
	}
	if p.MileageBonusWeight == nil {
		w := scoring.DefaultMileageBonusWeight
		p.MileageBonusWeight = &w
	}
	if p.Ranking == nil {
		w := ranking.DefaultWeights()
		p.Ranking = &w
	}
	if p.Preferences == nil {
		w := ranking.DefaultPreferenceWeights()
		p.Preferences = &w
	}
}

// Validate checks every section.
func (p *Profile) Validate() error {
	if err := filter.ValidateLevels(p.Levels); err != nil {
		return err
	}
	if err := p.Similarity.Validate(); err != nil {
		return err
	}
	if p.MaxYearSpan < 1 {
		return fmt.Errorf("max_year_span must be >= 1")
	}
	if *p.MileageBonusWeight < 0 || *p.MileageBonusWeight > 0.5 {
		return fmt.Errorf("mileage_bonus_weight must be within [0, 0.5]")
	}
	if err := p.Ranking.Validate(); err != nil {
		return err
	}
	return p.Preferences.Validate()
}

// Aggregator builds the ranking aggregator described by the profile.
func (p *Profile) Aggregator() (*ranking.Aggregator, error) {
	deal, err := scoring.NewDeal(*p.MileageBonusWeight)
	if err != nil {
		return nil, err
	}
	similarity := scoring.NewSimilarity(*p.Similarity, p.MaxYearSpan)
	return ranking.NewAggregator(similarity, deal, *p.Ranking, *p.Preferences), nil
}
