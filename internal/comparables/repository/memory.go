package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/filter"
	"carma_backend/internal/comparables/normalize"
)

// Memory is an in-process Store. It evaluates predicates on normalized
// values and is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	listings   map[string]domain.Listing
	normalizer *normalize.Normalizer
	// Err, when set, is returned by every operation.
	Err error
}

// NewMemory creates an in-memory store seeded with listings.
func NewMemory(normalizer *normalize.Normalizer, listings ...domain.Listing) *Memory {
	m := &Memory{listings: make(map[string]domain.Listing, len(listings)), normalizer: normalizer}
	for _, l := range listings {
		m.listings[l.ID] = l
	}
	return m
}

// Compile-time check that Memory implements Store.
var _ Store = (*Memory)(nil)

// Upsert adds or replaces a listing.
func (m *Memory) Upsert(l domain.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
}

// GetByID retrieves a listing by id regardless of availability.
func (m *Memory) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	if err := m.check(ctx); err != nil {
		return domain.Listing{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, ErrNotFound
	}
	return l, nil
}

// Query retrieves available listings matching the predicate.
func (m *Memory) Query(ctx context.Context, p filter.Predicate, limit int) ([]domain.Listing, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	matched := make([]domain.Vehicle, 0, len(m.listings))
	for _, l := range m.listings {
		v := m.normalizer.Normalize(l)
		if p.Matches(v) {
			matched = append(matched, v)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := compareFloatMissingLast(a.PriceEUR, b.PriceEUR); c != 0 {
			return c < 0
		}
		if c := compareIntMissingLast(a.MileageKM, b.MileageKM); c != 0 {
			return c < 0
		}
		return a.ID < b.ID
	})
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]domain.Listing, len(matched))
	for i, v := range matched {
		out[i] = v.Source
	}
	return out, nil
}

// CountAvailable returns the number of available listings.
func (m *Memory) CountAvailable(ctx context.Context) (int64, error) {
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, l := range m.listings {
		if l.Available {
			n++
		}
	}
	return n, nil
}

// ListAvailableIDs pages through available listing ids in id order.
func (m *Memory) ListAvailableIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	ids := make([]string, 0, len(m.listings))
	for id, l := range m.listings {
		if l.Available && id > afterID {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return m.Err
}

func compareFloatMissingLast(a, b *float64) int {
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

func compareIntMissingLast(a, b *int64) int {
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
