// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"carma_backend/platform/events"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Listing Domain Events
// =============================================================================

// ListingChanged is published when the ingestion process reports that a
// listing was created, updated, or withdrawn. Make and model identify the
// comparable segment whose cached results are now stale.
type ListingChanged struct {
	BaseEvent
	ListingID string `json:"listingId"`
	Make      string `json:"make"`
	Model     string `json:"model"`
}

func (e ListingChanged) EventName() string { return "listings.changed" }

// ComparablesComputed is published after a comparison ran against the store
// (cache misses only).
type ComparablesComputed struct {
	BaseEvent
	TargetID       string `json:"targetId"`
	Considered     int    `json:"considered"`
	Returned       int    `json:"returned"`
	FinalLevel     string `json:"finalLevel"`
	DataQualityHit int    `json:"dataQualityWarnings"`
}

func (e ComparablesComputed) EventName() string { return "comparables.computed" }
