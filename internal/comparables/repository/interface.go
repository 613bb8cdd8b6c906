// Package repository provides read access to the vehicle listing store.
package repository

import (
	"context"
	"errors"

	"carma_backend/internal/comparables/domain"
	"carma_backend/internal/comparables/filter"
)

var (
	// ErrNotFound is returned when no listing has the requested id.
	ErrNotFound = errors.New("listing not found")
	// ErrUnavailable is returned when the store failed or timed out.
	ErrUnavailable = errors.New("listing store unavailable")
)

// ListingReader resolves single listings.
type ListingReader interface {
	GetByID(ctx context.Context, id string) (domain.Listing, error)
}

// CandidateQuerier retrieves candidate listings. Only available listings
// are returned, ordered by price then mileage (missing last) then id.
type CandidateQuerier interface {
	Query(ctx context.Context, p filter.Predicate, limit int) ([]domain.Listing, error)
}

// StatsReader exposes store-wide counts and keyset paging over available listings.
type StatsReader interface {
	CountAvailable(ctx context.Context) (int64, error)
	ListAvailableIDs(ctx context.Context, afterID string, limit int) ([]string, error)
}

// Store combines all listing store operations.
type Store interface {
	ListingReader
	CandidateQuerier
	StatsReader
}
