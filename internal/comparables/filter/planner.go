package filter

import (
	"context"
	"errors"
	"fmt"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/normalize"
)

// ErrNotComparable is returned when the target lacks make or model.
var ErrNotComparable = errors.New("target lacks make or model")

// Querier is the part of the listing store the planner depends on.
type Querier interface {
	Query(ctx context.Context, p Predicate, limit int) ([]domain.Listing, error)
}

// Candidate is a pool member tagged with the strictest attempt that found it.
type Candidate struct {
	Vehicle    domain.Vehicle
	LevelIndex int
	LevelName  string
	Dropped    []Attribute
}

// Attempt records one store query for diagnostics.
type Attempt struct {
	LevelIndex int         `json:"levelIndex"`
	LevelName  string      `json:"level"`
	Dropped    []Attribute `json:"dropped,omitempty"`
	Returned   int         `json:"returned"`
	Added      int         `json:"added"`
}

// Plan is the outcome of a retrieval: the deduplicated pool and the trace of
// attempts that built it.
type Plan struct {
	Candidates []Candidate
	Attempts   []Attempt
	// FinalLevel is the level of the last attempt issued.
	FinalLevel string
	// Satisfied is true when the pool reached the minimum size.
	Satisfied bool
}

// Config bounds the pool.
type Config struct {
	Levels     []Level
	MinResults int
	MaxPool    int
}

// Planner walks the level ladder until the pool is large enough.
type Planner struct {
	store      Querier
	normalizer *normalize.Normalizer
	levels     []Level
	minResults int
	maxPool    int
}

// NewPlanner creates a planner. The config must have been validated.
func NewPlanner(store Querier, normalizer *normalize.Normalizer, cfg Config) *Planner {
	levels := cfg.Levels
	if len(levels) == 0 {
		levels = DefaultLevels()
	}
	return &Planner{
		store:      store,
		normalizer: normalizer,
		levels:     levels,
		minResults: max(cfg.MinResults, 1),
		maxPool:    max(cfg.MaxPool, 1),
	}
}

// Levels returns the ladder in use.
func (p *Planner) Levels() []Level {
	return p.levels
}

// Retrieve builds the candidate pool for target. Each level starts from the
// full set of categorical constraints and drops them one at a time in
// DropOrder, querying after every drop. It stops once the pool holds at
// least MinResults candidates; otherwise it returns whatever was found.
func (p *Planner) Retrieve(ctx context.Context, target domain.Vehicle) (Plan, error) {
	if !target.Comparable() {
		return Plan{}, ErrNotComparable
	}

	var plan Plan
	seen := make(map[string]struct{}, p.maxPool)
	seen[target.ID] = struct{}{}

	for li, level := range p.levels {
		pred := Build(target, level)
		var dropped []Attribute

		for step := 0; step <= len(DropOrder); step++ {
			if step > 0 {
				attr := DropOrder[step-1]
				if !pred.Constrains(attr) {
					continue
				}
				pred = pred.Without(attr)
				dropped = append(append([]Attribute(nil), dropped...), attr)
			}

			attempt, err := p.run(ctx, &plan, seen, pred, li, level.Name, dropped)
			if err != nil {
				return Plan{}, err
			}
			plan.Attempts = append(plan.Attempts, attempt)
			plan.FinalLevel = level.Name

			if len(plan.Candidates) >= p.minResults {
				plan.Satisfied = true
				return plan, nil
			}
		}
	}

	return plan, nil
}

func (p *Planner) run(ctx context.Context, plan *Plan, seen map[string]struct{}, pred Predicate, levelIndex int, levelName string, dropped []Attribute) (Attempt, error) {
	listings, err := p.store.Query(ctx, pred, p.maxPool)
	if err != nil {
		return Attempt{}, fmt.Errorf("query level %s: %w", levelName, err)
	}

	attempt := Attempt{LevelIndex: levelIndex, LevelName: levelName, Dropped: dropped, Returned: len(listings)}
	for _, l := range listings {
		if len(plan.Candidates) >= p.maxPool {
			break
		}
		v := p.normalizer.Normalize(l)
		if !pred.Matches(v) {
			continue
		}
		if _, dup := seen[v.ID]; dup {
			continue
		}
		seen[v.ID] = struct{}{}
		plan.Candidates = append(plan.Candidates, Candidate{
			Vehicle:    v,
			LevelIndex: levelIndex,
			LevelName:  levelName,
			Dropped:    dropped,
		})
		attempt.Added++
	}
	return attempt, nil
}
