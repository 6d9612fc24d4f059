package domain

import (
	"context"
)

// DataRepository defines the interface for data persistence
// The domain owns the interface; postgres, sqlite and memory implement it
type DataRepository interface {
	// SaveLoadOutcome persists the result of one load
	SaveLoadOutcome(ctx context.Context, outcome LoadOutcome) error

	// ListLoadOutcomes returns the most recent outcomes, newest first
	ListLoadOutcomes(ctx context.Context, limit int) ([]LoadOutcome, error)

	// SaveIncidents replaces the stored incident set
	SaveIncidents(ctx context.Context, incidents []RawIncident) error

	// ListIncidents returns the stored incident rows in insertion order
	ListIncidents(ctx context.Context) ([]RawIncident, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
