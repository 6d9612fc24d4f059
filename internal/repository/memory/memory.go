package memory

import (
	"context"
	"sync"

	"github.com/visionzero/backend/internal/domain"
)

// Repository implements domain.DataRepository in process memory for demo mode and tests
type Repository struct {
	mu        sync.RWMutex
	outcomes  []domain.LoadOutcome
	incidents []domain.RawIncident
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{}
}

// SaveLoadOutcome appends the outcome
func (r *Repository) SaveLoadOutcome(ctx context.Context, outcome domain.LoadOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

// ListLoadOutcomes returns up to limit outcomes, newest first; limit <= 0 returns all
func (r *Repository) ListLoadOutcomes(ctx context.Context, limit int) ([]domain.LoadOutcome, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.outcomes)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.LoadOutcome, 0, n)
	for i := len(r.outcomes) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.outcomes[i])
	}
	return out, nil
}

// SaveIncidents replaces the stored rows
func (r *Repository) SaveIncidents(ctx context.Context, incidents []domain.RawIncident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append([]domain.RawIncident(nil), incidents...)
	return nil
}

// ListIncidents returns a copy of the stored rows
func (r *Repository) ListIncidents(ctx context.Context) ([]domain.RawIncident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.RawIncident(nil), r.incidents...), nil
}

// Health always succeeds in memory mode
func (r *Repository) Health(ctx context.Context) error {
	return nil
}
