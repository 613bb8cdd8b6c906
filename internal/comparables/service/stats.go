package service

import (
	"context"
	"sync/atomic"

	"carma_backend/internal/events"
)

// Stats counts served comparisons since process start.
type Stats struct {
	served    atomic.Int64
	noResults atomic.Int64
	computed  atomic.Int64
}

func (s *Stats) recordServed(empty bool) {
	s.served.Add(1)
	if empty {
		s.noResults.Add(1)
	}
}

// Snapshot returns served and no-result counts.
func (s *Stats) Snapshot() (served, noResults int64) {
	return s.served.Load(), s.noResults.Load()
}

// Computed returns the number of comparisons that ran against the store.
func (s *Stats) Computed() int64 {
	return s.computed.Load()
}

// Handle counts ComparablesComputed events.
func (s *Stats) Handle(_ context.Context, event events.Event) error {
	if _, ok := event.(events.ComparablesComputed); ok {
		s.computed.Add(1)
	}
	return nil
}
