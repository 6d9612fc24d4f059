// Package densitymap is the view-model behind the incident density map: it fits the
// projection to the neighborhoods, projects incidents, keeps a quadtree per mode filter
// for hover queries and renders the heatmap raster.
//
// A Map is not safe for concurrent use; its owner serializes access.
package densitymap

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/metrics"
	"github.com/visionzero/backend/internal/spatial"
)

// DefaultHoverRadius is the side of the hover square in pixels
const DefaultHoverRadius = 10

// Hover is the pointer position and the size of the selection square
type Hover struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	R float64 `json:"r"`
}

// NeighborhoodPath is the SVG outline of one neighborhood
type NeighborhoodPath struct {
	Name string `json:"name"`
	D    string `json:"d"`
}

// Density is the projected point set of one mode filter
type Density struct {
	Incidents   []domain.Incident
	HeatmapData []spatial.HeatPoint
	Quadtree    *spatial.Quadtree[domain.Incident]
}

// Map holds the projection, neighborhood outlines, per-mode densities and the hover cursor
type Map struct {
	width  int
	height int
	fit    spatial.FitMode
	heat   *spatial.Heatmap

	projection *spatial.Projection
	paths      []NeighborhoodPath
	regions    []spatial.Region

	densities map[domain.ModeType]*Density
	mode      domain.ModeType

	hover          Hover
	hoverIncidents []domain.Incident
}

// New creates a map view-model for a width x height viewport
func New(width, height int, fit spatial.FitMode, heat spatial.HeatmapOptions) *Map {
	return &Map{
		width:     width,
		height:    height,
		fit:       fit,
		heat:      spatial.NewHeatmap(heat),
		densities: make(map[domain.ModeType]*Density),
		mode:      domain.ModeAll,
		hover:     Hover{R: DefaultHoverRadius},
	}
}

// InitMap fits the projection to the neighborhoods and builds one outline per feature
func (m *Map) InitMap(neighborhoods *geojson.FeatureCollection) error {
	if neighborhoods == nil || len(neighborhoods.Features) == 0 {
		return fmt.Errorf("densitymap: neighborhoods: %w", domain.ErrNotLoaded)
	}

	var bound orb.Bound
	seen := false
	for _, f := range neighborhoods.Features {
		if f.Geometry == nil {
			continue
		}
		if !seen {
			bound, seen = f.Geometry.Bound(), true
			continue
		}
		bound = bound.Union(f.Geometry.Bound())
	}
	if !seen {
		return fmt.Errorf("densitymap: neighborhoods have no geometry: %w", domain.ErrNotLoaded)
	}
	p := spatial.Fit(m.fit, float64(m.width), float64(m.height), bound)
	m.projection = &p

	m.paths = make([]NeighborhoodPath, 0, len(neighborhoods.Features))
	for _, f := range neighborhoods.Features {
		m.paths = append(m.paths, NeighborhoodPath{
			Name: f.Properties.MustString("Name", ""),
			D:    p.Path(f.Geometry),
		})
	}
	m.regions = spatial.RegionsFromFeatures(neighborhoods)

	// a new projection invalidates every projected point
	m.densities = make(map[domain.ModeType]*Density)
	m.hover = Hover{R: DefaultHoverRadius}
	m.hoverIncidents = nil
	return nil
}

// Ready reports whether InitMap succeeded
func (m *Map) Ready() bool {
	return m.projection != nil
}

// Projection returns the fitted projection, nil before InitMap
func (m *Map) Projection() *spatial.Projection {
	return m.projection
}

// Paths returns the neighborhood outlines
func (m *Map) Paths() []NeighborhoodPath {
	return m.paths
}

// Size returns the viewport size
func (m *Map) Size() (int, int) {
	return m.width, m.height
}

// ComputeCoordinates returns a copy of incidents with X/Y set to their screen position.
// Incidents without valid coordinates, or whose projection is not finite, get NaN
// positions and HasCoords cleared on the copy.
func (m *Map) ComputeCoordinates(incidents []domain.Incident) ([]domain.Incident, error) {
	if m.projection == nil {
		return nil, fmt.Errorf("densitymap: projection: %w", domain.ErrNotLoaded)
	}
	out := make([]domain.Incident, len(incidents))
	for i, d := range incidents {
		if d.HasCoords && domain.ValidLatLong(d.Lat, d.Long) {
			d.X, d.Y = m.projection.Project(d.Long, d.Lat)
		} else {
			d.HasCoords = false
		}
		if !d.HasCoords || !finite(d.X) || !finite(d.Y) {
			d.X, d.Y, d.HasCoords = math.NaN(), math.NaN(), false
		}
		out[i] = d
	}
	return out, nil
}

// ProcessAndFilterData rebuilds the heatmap points and quadtree of mode from projected incidents
func (m *Map) ProcessAndFilterData(mode domain.ModeType, projected []domain.Incident) *Density {
	d := &Density{
		Incidents:   projected,
		HeatmapData: make([]spatial.HeatPoint, 0, len(projected)),
	}
	for _, inc := range projected {
		if !inc.HasCoords || !finite(inc.X) || !finite(inc.Y) {
			continue
		}
		d.HeatmapData = append(d.HeatmapData, spatial.HeatPoint{X: inc.X, Y: inc.Y, Value: 1})
	}
	d.Quadtree = spatial.NewQuadtree(
		func(i domain.Incident) float64 { return i.X },
		func(i domain.Incident) float64 { return i.Y },
		projected,
	)
	m.densities[mode] = d
	return d
}

// Density returns the processed data of mode, nil when not processed
func (m *Map) Density(mode domain.ModeType) *Density {
	return m.densities[mode]
}

// UpdateHeatmap processes projected incidents for mode and renders the raster
func (m *Map) UpdateHeatmap(mode domain.ModeType, projected []domain.Incident) *image.NRGBA {
	d := m.ProcessAndFilterData(mode, projected)
	return m.RenderHeatmap(d)
}

// RenderHeatmap draws the raster of an already processed density
func (m *Map) RenderHeatmap(d *Density) *image.NRGBA {
	start := time.Now()
	var pts []spatial.HeatPoint
	if d != nil {
		pts = d.HeatmapData
	}
	img := m.heat.Render(m.width, m.height, pts)
	metrics.HeatmapRenderMs.Observe(float64(time.Since(start).Milliseconds()))
	return img
}

// SelectMode chooses which density the hover selection queries
func (m *Map) SelectMode(mode domain.ModeType) {
	m.mode = mode
}

// MoveHover moves the cursor; a non-positive r keeps the current radius
func (m *Map) MoveHover(x, y, r float64) {
	m.hover.X, m.hover.Y = x, y
	if r > 0 {
		m.hover.R = r
	}
}

// Hover returns the cursor
func (m *Map) Hover() Hover {
	return m.hover
}

// UpdateHoverSelection collects the incidents inside the square [x-r, x) x [y-r, y)
func (m *Map) UpdateHoverSelection() []domain.Incident {
	d := m.densities[m.mode]
	if d == nil {
		m.hoverIncidents = nil
		return nil
	}
	r := m.hover.R
	m.hoverIncidents = d.Quadtree.InRect(m.hover.X-r, m.hover.Y-r, m.hover.X, m.hover.Y)
	return m.hoverIncidents
}

// HoverIncidents returns the last hover selection
func (m *Map) HoverIncidents() []domain.Incident {
	return m.hoverIncidents
}

// Choropleth counts incidents per neighborhood
func (m *Map) Choropleth(incidents []domain.Incident) spatial.Choropleth {
	return spatial.CountByRegion(m.regions, incidents)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
