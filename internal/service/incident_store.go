package service

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/metrics"
)

// IncidentStore owns the published incident snapshot. A snapshot is replaced as a whole
// and never modified after publication.
type IncidentStore struct {
	source IncidentSource
	group  singleflight.Group

	all     atomic.Pointer[[]domain.Incident]
	loading atomic.Bool

	mu   sync.RWMutex
	last *domain.LoadOutcome
}

// NewIncidentStore creates an empty store reading from source
func NewIncidentStore(source IncidentSource) *IncidentStore {
	return &IncidentStore{source: source}
}

// Load fetches the dataset and publishes it. On a fault the previous snapshot stays
// published and the fault is returned alongside the outcome. Concurrent calls share one fetch.
func (s *IncidentStore) Load(ctx context.Context) (domain.LoadOutcome, error) {
	v, err, _ := s.group.Do("load", func() (interface{}, error) {
		return s.load(ctx)
	})
	return v.(domain.LoadOutcome), err
}

func (s *IncidentStore) load(ctx context.Context) (domain.LoadOutcome, error) {
	s.loading.Store(true)
	defer s.loading.Store(false)

	outcome := domain.NewLoadOutcome(s.source.Name(), s.source.Resource())
	raw, status, err := s.source.FetchIncidents(ctx)
	outcome.HTTPStatus = status
	if err != nil {
		outcome = outcome.Fail(err)
		s.record(outcome)
		logger.L().Warn("incidents_load_failed", "source", outcome.Source, "status", status, "err", err)
		return outcome, err
	}

	incidents, skipped := domain.Normalize(raw)
	s.all.Store(&incidents)

	outcome = outcome.Succeed(len(incidents))
	outcome.Skipped = skipped
	s.record(outcome)
	metrics.IncidentsLoaded.Set(float64(len(incidents)))
	logger.L().Info("incidents_loaded", "source", outcome.Source, "count", len(incidents), "skipped", skipped,
		"duration_ms", outcome.Duration().Milliseconds())
	return outcome, nil
}

func (s *IncidentStore) record(o domain.LoadOutcome) {
	metrics.LoadsTotal.WithLabelValues(o.Resource, string(o.Status)).Inc()
	metrics.LoadDurationMs.WithLabelValues(o.Resource).Observe(float64(o.Duration().Milliseconds()))
	s.mu.Lock()
	s.last = &o
	s.mu.Unlock()
}

// All returns the published snapshot; callers must treat it as read-only
func (s *IncidentStore) All() []domain.Incident {
	if p := s.all.Load(); p != nil {
		return *p
	}
	return nil
}

// Loaded reports whether any snapshot was published
func (s *IncidentStore) Loaded() bool {
	return s.all.Load() != nil
}

// Loading reports whether a load is in flight
func (s *IncidentStore) Loading() bool {
	return s.loading.Load()
}

// LastOutcome returns the outcome of the most recent load, nil before the first one
func (s *IncidentStore) LastOutcome() *domain.LoadOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
