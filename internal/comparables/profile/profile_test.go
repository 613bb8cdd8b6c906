package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ranking.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadAndValidateDefaults(t *testing.T) {
	p, err := LoadAndValidate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Levels) != 4 || p.Levels[0].Name != "strict" || p.Levels[3].Name != "make_model" {
		t.Fatalf("unexpected default ladder %+v", p.Levels)
	}
	if p.Ranking.Similarity != 0.6 || p.Ranking.Deal != 0.4 {
		t.Fatalf("unexpected default blend %+v", p.Ranking)
	}
	if _, err := p.Aggregator(); err != nil {
		t.Fatalf("expected aggregator from defaults: %v", err)
	}
}

func TestLoadOverridesLevelsAndKeepsOtherDefaults(t *testing.T) {
	t.Setenv("CARMA_YEAR_TOL", "5")
	path := writeProfile(t, `
levels:
  - name: tight
    year_tolerance: 1
    max_mileage_ratio: 1.2
    min_price_ratio: 0.8
    max_price_ratio: 1.2
    power_tolerance: 0.05
  - name: loose
    year_tolerance: ${CARMA_YEAR_TOL}
ranking_weights:
  similarity: 0.7
  deal: 0.3
`)

	p, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Levels) != 2 || p.Levels[1].YearTolerance != 5 {
		t.Fatalf("expected env-expanded second level, got %+v", p.Levels)
	}
	if p.Ranking.Similarity != 0.7 {
		t.Fatalf("expected overridden blend, got %+v", p.Ranking)
	}
	if p.Similarity.Make != 0.25 || *p.MileageBonusWeight != 0.1 {
		t.Fatalf("expected untouched sections to keep defaults")
	}
}

func TestLoadRejectsWeightsNotSummingToOne(t *testing.T) {
	path := writeProfile(t, `
similarity_weights:
  make: 0.5
  model: 0.5
  age: 0.5
`)

	if _, err := LoadAndValidate(path); err == nil {
		t.Fatalf("expected invalid similarity weights to be rejected")
	}
}

func TestLoadRejectsOversizedPreferenceBonus(t *testing.T) {
	path := writeProfile(t, `
preference_weights:
  exterior_color: 1
  interior_color: 1
  max_bonus: 0.2
`)

	if _, err := LoadAndValidate(path); err == nil {
		t.Fatalf("expected preference bonus above 0.05 to be rejected")
	}
}
