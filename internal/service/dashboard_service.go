package service

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/visionzero/backend/internal/cache"
	"github.com/visionzero/backend/internal/densitymap"
	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/metrics"
	"github.com/visionzero/backend/internal/spatial"
	"github.com/visionzero/backend/internal/summary"
)

// DashboardService owns every piece of dashboard state: both stores, the summary
// engine, the density map, the summary cache and the repository.
type DashboardService struct {
	incidents *IncidentStore
	layers    *LayerStore
	engine    *summary.Engine
	cache     cache.SummaryCache
	repo      DataRepository

	// the density map is not safe for concurrent use
	mapMu sync.Mutex
	dmap  *densitymap.Map

	reloadMu   sync.Mutex
	generation atomic.Uint64
	// reloadID keys cached summaries; it changes with every reload and every process
	reloadID atomic.Pointer[string]

	wgBg sync.WaitGroup // tracks background goroutines for graceful shutdown
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(
	incidents *IncidentStore,
	layers *LayerStore,
	engine *summary.Engine,
	dmap *densitymap.Map,
	summaryCache cache.SummaryCache,
	repo DataRepository,
) *DashboardService {
	if summaryCache == nil {
		summaryCache = cache.Nop{}
	}
	s := &DashboardService{
		incidents: incidents,
		layers:    layers,
		engine:    engine,
		dmap:      dmap,
		cache:     summaryCache,
		repo:      repo,
	}
	id := uuid.NewString()
	s.reloadID.Store(&id)
	return s
}

// WaitBackground blocks until all background save goroutines complete.
// Call during graceful shutdown to avoid dropped writes.
func (s *DashboardService) WaitBackground() {
	s.wgBg.Wait()
}

// ReloadReport describes one Reload
type ReloadReport struct {
	Generation uint64               `json:"generation"`
	ReloadID   string               `json:"reload_id"`
	Incidents  domain.LoadOutcome   `json:"incidents"`
	Layers     []domain.LoadOutcome `json:"layers"`
	MapReady   bool                 `json:"map_ready"`
}

// Outcomes returns every outcome of the reload, incidents first
func (r ReloadReport) Outcomes() []domain.LoadOutcome {
	return append([]domain.LoadOutcome{r.Incidents}, r.Layers...)
}

// Reload loads layers and incidents concurrently, then rebuilds the summaries and the
// density map from whatever is published. Failed loads keep the previous data and are
// reported in the returned outcomes. Reloads are serialized.
func (s *DashboardService) Reload(ctx context.Context) ReloadReport {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	var (
		report ReloadReport
		wg     sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		report.Layers = s.layers.LoadAll(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		// the fault is already tagged on the outcome
		report.Incidents, _ = s.incidents.Load(ctx)
	}()

	wg.Wait()

	incidents := s.incidents.All()
	s.engine.Summarize(incidents)
	s.engine.SummarizeNested(incidents)

	report.MapReady = s.rebuildMap(incidents)
	report.ReloadID = uuid.NewString()
	s.reloadID.Store(&report.ReloadID)
	report.Generation = s.generation.Add(1)
	metrics.ReloadsTotal.Inc()
	logger.L().Info("dashboard_reloaded", "generation", report.Generation, "reload_id", report.ReloadID,
		"incidents", len(incidents),
		"incidents_status", report.Incidents.Status, "map_ready", report.MapReady)

	// Persist outcomes asynchronously (tracked for graceful shutdown)
	outcomes := report.Outcomes()
	s.wgBg.Add(1)
	go func() {
		defer s.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, o := range outcomes {
			if err := s.repo.SaveLoadOutcome(bgCtx, o); err != nil {
				logger.L().Warn("save_load_outcome_failed", "resource", o.Resource, "err", err)
			}
		}
	}()

	return report
}

// rebuildMap refits the projection and reprojects every mode filter
func (s *DashboardService) rebuildMap(incidents []domain.Incident) bool {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if err := s.dmap.InitMap(s.layers.Snapshot().Neighborhoods); err != nil {
		logger.L().Warn("map_init_skipped", "err", err)
		return s.dmap.Ready()
	}
	projected, err := s.dmap.ComputeCoordinates(incidents)
	if err != nil {
		logger.L().Warn("map_projection_failed", "err", err)
		return false
	}
	s.dmap.ProcessAndFilterData(domain.ModeAll, projected)
	for _, mode := range domain.Modes {
		s.dmap.ProcessAndFilterData(mode, filterMode(projected, mode))
	}
	return true
}

// Generation returns the number of completed reloads
func (s *DashboardService) Generation() uint64 {
	return s.generation.Load()
}

// ReloadID identifies the published data; it is fresh for every reload
func (s *DashboardService) ReloadID() string {
	return *s.reloadID.Load()
}

// SourceStatus is the loading state of one store
type SourceStatus struct {
	Loading bool                `json:"loading"`
	Loaded  bool                `json:"loaded"`
	Last    *domain.LoadOutcome `json:"last_outcome,omitempty"`
}

// Status is the overall dashboard state
type Status struct {
	Generation    uint64         `json:"generation"`
	ReloadID      string         `json:"reload_id"`
	Incidents     SourceStatus   `json:"incidents"`
	LayersLoading bool           `json:"layers_loading"`
	Layers        []domain.Layer `json:"layers"`
	MapReady      bool           `json:"map_ready"`
	StatsPolicy   string         `json:"stats_policy"`
}

// GetStatus reports loading flags, last outcomes and layer states
func (s *DashboardService) GetStatus() Status {
	s.mapMu.Lock()
	ready := s.dmap.Ready()
	s.mapMu.Unlock()

	return Status{
		Generation: s.Generation(),
		ReloadID:   s.ReloadID(),
		Incidents: SourceStatus{
			Loading: s.incidents.Loading(),
			Loaded:  s.incidents.Loaded(),
			Last:    s.incidents.LastOutcome(),
		},
		LayersLoading: s.layers.Loading(),
		Layers:        s.layers.States(),
		MapReady:      ready,
		StatsPolicy:   string(s.engine.Policy()),
	}
}

// Health checks the repository
func (s *DashboardService) Health(ctx context.Context) error {
	return s.repo.Health(ctx)
}

// GetIncidents returns the published incidents passing opts; a zero year or month matches any
func (s *DashboardService) GetIncidents(opts domain.Options) []domain.Incident {
	all := s.incidents.All()
	out := make([]domain.Incident, 0, len(all))
	for _, d := range all {
		if !opts.Type.Matches(d.ModeType) {
			continue
		}
		if opts.Year != 0 && d.Year != opts.Year {
			continue
		}
		if opts.Month != 0 && d.Month != opts.Month {
			continue
		}
		out = append(out, d)
	}
	return out
}

// GetLayer returns one map layer. It fails with domain.ErrNotLoaded while pending.
func (s *DashboardService) GetLayer(name domain.LayerName) (domain.Layer, error) {
	l, err := s.layers.Layer(name)
	if err != nil {
		return domain.Layer{}, err
	}
	if l.State == domain.LayerPending {
		return l, fmt.Errorf("service: layer %s: %w", name, domain.ErrNotLoaded)
	}
	return l, nil
}

// YearlyReport is the yearly summary with its sorted years
type YearlyReport struct {
	Summary []domain.YearlySummary `json:"summary"`
	Years   []int                  `json:"years"`
}

// GetYearly returns the last yearly summary
func (s *DashboardService) GetYearly() YearlyReport {
	yearly, years := s.engine.Yearly()
	if yearly == nil {
		yearly = []domain.YearlySummary{}
	}
	if years == nil {
		years = []int{}
	}
	return YearlyReport{Summary: yearly, Years: years}
}

// GetNested returns the nested summary of mode, consulting the cache first
func (s *DashboardService) GetNested(ctx context.Context, mode domain.ModeType) (*domain.NestedSummary, error) {
	id := s.ReloadID()
	if cached, ok := s.cache.GetNested(ctx, id, mode); ok {
		return cached, nil
	}
	nested := s.engine.Nested(mode)
	if nested == nil {
		return nil, fmt.Errorf("service: nested summary %s: %w", mode, domain.ErrNotLoaded)
	}
	s.cache.SetNested(ctx, id, mode, nested)
	return nested, nil
}

// GetStats returns the running aggregation stats
func (s *DashboardService) GetStats() domain.AllStats {
	return s.engine.Stats()
}

// MapView is everything needed to draw the base map
type MapView struct {
	Width      int                           `json:"width"`
	Height     int                           `json:"height"`
	Ready      bool                          `json:"ready"`
	Scale      float64                       `json:"scale,omitempty"`
	Translate  [2]float64                    `json:"translate"`
	Paths      []densitymap.NeighborhoodPath `json:"paths"`
	Hover      densitymap.Hover              `json:"hover"`
	PointCount map[domain.ModeType]int       `json:"point_count"`
}

// GetMap returns the projection and neighborhood outlines
func (s *DashboardService) GetMap() MapView {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	w, h := s.dmap.Size()
	view := MapView{
		Width:      w,
		Height:     h,
		Ready:      s.dmap.Ready(),
		Paths:      s.dmap.Paths(),
		Hover:      s.dmap.Hover(),
		PointCount: make(map[domain.ModeType]int),
	}
	if view.Paths == nil {
		view.Paths = []densitymap.NeighborhoodPath{}
	}
	if p := s.dmap.Projection(); p != nil {
		view.Scale = p.Scale
		view.Translate = [2]float64{p.TranslateX, p.TranslateY}
	}
	for _, mode := range append([]domain.ModeType{domain.ModeAll}, domain.Modes...) {
		if d := s.dmap.Density(mode); d != nil {
			view.PointCount[mode] = len(d.HeatmapData)
		}
	}
	return view
}

// ProjectedIncident is a selected incident with its screen position
type ProjectedIncident struct {
	domain.Incident
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HoverSelection is the result of a hover query
type HoverSelection struct {
	Hover     densitymap.Hover    `json:"hover"`
	Mode      domain.ModeType     `json:"mode"`
	Count     int                 `json:"count"`
	Incidents []ProjectedIncident `json:"incidents"`
}

// Hover moves the cursor to (x, y) and selects the incidents of mode under it
func (s *DashboardService) Hover(mode domain.ModeType, x, y, r float64) (HoverSelection, error) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if s.dmap.Density(mode) == nil {
		return HoverSelection{}, fmt.Errorf("service: density %s: %w", mode, domain.ErrNotLoaded)
	}
	s.dmap.SelectMode(mode)
	s.dmap.MoveHover(x, y, r)
	hits := s.dmap.UpdateHoverSelection()

	out := make([]ProjectedIncident, len(hits))
	for i, d := range hits {
		out[i] = ProjectedIncident{Incident: d, X: d.X, Y: d.Y}
	}
	return HoverSelection{Hover: s.dmap.Hover(), Mode: mode, Count: len(out), Incidents: out}, nil
}

// Heatmap renders the density raster of mode
func (s *DashboardService) Heatmap(mode domain.ModeType) (*image.NRGBA, error) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	d := s.dmap.Density(mode)
	if d == nil {
		return nil, fmt.Errorf("service: density %s: %w", mode, domain.ErrNotLoaded)
	}
	return s.dmap.RenderHeatmap(d), nil
}

// Choropleth counts the incidents of mode per neighborhood
func (s *DashboardService) Choropleth(mode domain.ModeType) (spatial.Choropleth, error) {
	incidents := filterMode(s.incidents.All(), mode)

	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if !s.dmap.Ready() {
		return spatial.Choropleth{}, fmt.Errorf("service: map: %w", domain.ErrNotLoaded)
	}
	return s.dmap.Choropleth(incidents), nil
}

// ListLoads returns the persisted load history, newest first
func (s *DashboardService) ListLoads(ctx context.Context, limit int) ([]domain.LoadOutcome, error) {
	loads, err := s.repo.ListLoadOutcomes(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list loads: %w", err)
	}
	if loads == nil {
		loads = []domain.LoadOutcome{}
	}
	return loads, nil
}

func filterMode(incidents []domain.Incident, mode domain.ModeType) []domain.Incident {
	if mode == domain.ModeAll {
		return incidents
	}
	out := make([]domain.Incident, 0, len(incidents)/len(domain.Modes))
	for _, d := range incidents {
		if d.ModeType == mode {
			out = append(out, d)
		}
	}
	return out
}
