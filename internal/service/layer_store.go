package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb/geojson"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/metrics"
)

// LayerStore owns the four map layers. Each layer is published into its own slot
// as soon as it loads, independently of the others.
type LayerStore struct {
	source Source

	loading atomic.Bool

	mu     sync.RWMutex
	layers map[domain.LayerName]*domain.Layer
}

// NewLayerStore creates a store with every layer pending
func NewLayerStore(source Source) *LayerStore {
	layers := make(map[domain.LayerName]*domain.Layer, len(domain.Layers))
	for _, name := range domain.Layers {
		layers[name] = &domain.Layer{Name: name, State: domain.LayerPending}
	}
	return &LayerStore{source: source, layers: layers}
}

// LoadAll fetches every layer concurrently. The loading flag clears once all fetches settled.
// A failed layer never blocks the others; outcomes are returned in domain.Layers order.
func (s *LayerStore) LoadAll(ctx context.Context) []domain.LoadOutcome {
	s.loading.Store(true)
	defer s.loading.Store(false)

	outcomes := make([]domain.LoadOutcome, len(domain.Layers))
	var wg sync.WaitGroup
	for i, name := range domain.Layers {
		wg.Add(1)
		go func(i int, name domain.LayerName) {
			defer wg.Done()
			outcomes[i] = s.loadLayer(ctx, name)
		}(i, name)
	}
	wg.Wait()

	return outcomes
}

func (s *LayerStore) loadLayer(ctx context.Context, name domain.LayerName) domain.LoadOutcome {
	resource := LayerResources[name]
	outcome := domain.NewLoadOutcome(s.source.Name(), resource)

	body, status, err := s.source.Fetch(ctx, resource)
	outcome.HTTPStatus = status
	var fc *geojson.FeatureCollection
	if err == nil {
		fc, err = geojson.UnmarshalFeatureCollection(body)
		if err != nil {
			err = fmt.Errorf("service: failed to decode layer %s: %w", name, err)
		}
	}

	if err != nil {
		outcome = outcome.Fail(err)
		logger.L().Warn("layer_load_failed", "layer", name, "status", status, "err", err)
	} else {
		outcome = outcome.Succeed(len(fc.Features))
		logger.L().Info("layer_loaded", "layer", name, "features", len(fc.Features),
			"duration_ms", outcome.Duration().Milliseconds())
	}
	metrics.LoadsTotal.WithLabelValues(resource, string(outcome.Status)).Inc()
	metrics.LoadDurationMs.WithLabelValues(resource).Observe(float64(outcome.Duration().Milliseconds()))

	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.layers[name]
	next := &domain.Layer{Name: name, Outcome: &outcome}
	switch {
	case err == nil:
		next.State, next.Doc, next.Raw = domain.LayerLoaded, fc, body
	case prev.State == domain.LayerLoaded:
		// keep serving the last good document
		next.State, next.Doc, next.Raw = prev.State, prev.Doc, prev.Raw
	default:
		next.State = domain.LayerFailed
	}
	s.layers[name] = next

	return outcome
}

// Layer returns the current state of one layer
func (s *LayerStore) Layer(name domain.LayerName) (domain.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.layers[name]
	if !ok {
		return domain.Layer{}, fmt.Errorf("%w: %q", domain.ErrUnknownLayer, name)
	}
	return *l, nil
}

// States returns every layer's state in domain.Layers order
func (s *LayerStore) States() []domain.Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Layer, 0, len(domain.Layers))
	for _, name := range domain.Layers {
		out = append(out, *s.layers[name])
	}
	return out
}

// Snapshot returns the published documents; unloaded layers are nil
func (s *LayerStore) Snapshot() domain.MapLayers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.MapLayers{
		Boundary:      s.layers[domain.LayerBoundary].Doc,
		Neighborhoods: s.layers[domain.LayerNeighborhoods].Doc,
		Stations:      s.layers[domain.LayerStations].Doc,
		Districts:     s.layers[domain.LayerDistricts].Doc,
	}
}

// Loading reports whether LoadAll is in flight
func (s *LayerStore) Loading() bool {
	return s.loading.Load()
}
