package densitymap

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/spatial"
)

func square(name string, lon0, lat0, lon1, lat1 float64) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{{lon0, lat0}, {lon1, lat0}, {lon1, lat1}, {lon0, lat1}, {lon0, lat0}}})
	f.Properties["Name"] = name
	return f
}

func testNeighborhoods() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(square("West", -71.10, 42.30, -71.05, 42.35))
	fc.Append(square("East", -71.05, 42.30, -71.00, 42.35))
	return fc
}

func randomIncidents(n int) []domain.Incident {
	rng := rand.New(rand.NewSource(7))
	out := make([]domain.Incident, n)
	for i := range out {
		out[i] = domain.Incident{
			ID:        int64(i + 1),
			ModeType:  domain.Modes[rng.Intn(len(domain.Modes))],
			Lat:       42.30 + rng.Float64()*0.05,
			Long:      -71.10 + rng.Float64()*0.10,
			Year:      2015,
			Month:     1 + rng.Intn(12),
			Hour:      rng.Intn(24),
			HasCoords: i%17 != 0,
		}
	}
	return out
}

func TestInitMap_RequiresNeighborhoods(t *testing.T) {
	m := New(300, 200, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.ErrorIs(t, m.InitMap(nil), domain.ErrNotLoaded)
	require.ErrorIs(t, m.InitMap(geojson.NewFeatureCollection()), domain.ErrNotLoaded)
	require.False(t, m.Ready())

	_, err := m.ComputeCoordinates(randomIncidents(3))
	require.ErrorIs(t, err, domain.ErrNotLoaded)
}

func TestComputeCoordinates_CopiesInput(t *testing.T) {
	m := New(300, 200, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.NoError(t, m.InitMap(testNeighborhoods()))
	require.Len(t, m.Paths(), 2)
	require.Equal(t, "West", m.Paths()[0].Name)

	in := randomIncidents(50)
	out, err := m.ComputeCoordinates(in)
	require.NoError(t, err)
	require.Len(t, out, 50)

	for i := range in {
		require.Zero(t, in[i].X)
		if out[i].HasCoords {
			require.GreaterOrEqual(t, out[i].Y, -1e-6)
			require.LessOrEqual(t, out[i].Y, 200+1e-6)
		} else {
			require.True(t, math.IsNaN(out[i].X))
		}
	}
}

func TestHoverSelection_MatchesBruteForce(t *testing.T) {
	m := New(300, 200, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.NoError(t, m.InitMap(testNeighborhoods()))

	projected, err := m.ComputeCoordinates(randomIncidents(400))
	require.NoError(t, err)
	m.ProcessAndFilterData(domain.ModeAll, projected)

	for _, c := range [][3]float64{{50, 50, 10}, {150, 100, 40}, {300, 200, 300}, {0, 0, 5}} {
		m.MoveHover(c[0], c[1], c[2])
		got := m.UpdateHoverSelection()

		want := 0
		for _, d := range projected {
			if d.X >= c[0]-c[2] && d.X < c[0] && d.Y >= c[1]-c[2] && d.Y < c[1] {
				want++
			}
		}
		require.Len(t, got, want, "hover %v", c)
		require.Equal(t, got, m.HoverIncidents())
	}

	// r <= 0 keeps the radius
	m.MoveHover(10, 10, 0)
	require.Equal(t, 300.0, m.Hover().R)
}

func TestHoverSelection_UnprocessedMode(t *testing.T) {
	m := New(300, 200, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.NoError(t, m.InitMap(testNeighborhoods()))
	m.SelectMode(domain.ModeBike)
	require.Nil(t, m.UpdateHoverSelection())
}

func TestUpdateHeatmap(t *testing.T) {
	m := New(120, 80, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.NoError(t, m.InitMap(testNeighborhoods()))

	projected, err := m.ComputeCoordinates(randomIncidents(100))
	require.NoError(t, err)
	img := m.UpdateHeatmap(domain.ModeAll, projected)
	require.Equal(t, 120, img.Bounds().Dx())
	require.Equal(t, 80, img.Bounds().Dy())

	d := m.Density(domain.ModeAll)
	require.NotNil(t, d)
	located := 0
	for _, inc := range projected {
		if inc.HasCoords {
			located++
		}
	}
	require.Len(t, d.HeatmapData, located)
	require.Equal(t, located, d.Quadtree.Size())

	painted := false
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			painted = true
			break
		}
	}
	require.True(t, painted)
}

func TestChoropleth(t *testing.T) {
	m := New(300, 200, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.NoError(t, m.InitMap(testNeighborhoods()))

	ch := m.Choropleth([]domain.Incident{
		{Lat: 42.32, Long: -71.08, HasCoords: true},
		{Lat: 42.32, Long: -71.02, HasCoords: true},
		{Lat: 42.33, Long: -71.01, HasCoords: true},
		{Lat: 40.0, Long: -70.0, HasCoords: true},
		{},
	})
	require.Equal(t, 1, ch.Regions[0].Count)
	require.Equal(t, 2, ch.Regions[1].Count)
	require.Equal(t, 2, ch.Unassigned)
	require.Equal(t, 2, ch.Max)
	require.Greater(t, ch.Regions[0].AreaKm2, 0.0)
}

func TestUpdateHeatmap_ExtremeCoordinates(t *testing.T) {
	var raw []domain.RawIncident
	require.NoError(t, json.Unmarshal([]byte(`[
		{"mode_type": "mv", "lat": "42.32", "long": "1e308", "year": 2015, "month": 1, "hour": 1},
		{"mode_type": "mv", "lat": "42.32", "long": "1e25", "year": 2015, "month": 1, "hour": 1},
		{"mode_type": "mv", "lat": "91", "long": "-71.05", "year": 2015, "month": 1, "hour": 1},
		{"mode_type": "mv", "lat": "42.32", "long": "-71.05", "year": 2015, "month": 1, "hour": 1}
	]`), &raw))
	incidents, skipped := domain.Normalize(raw)
	require.Zero(t, skipped)
	require.Len(t, incidents, 4)
	for _, d := range incidents[:3] {
		require.False(t, d.HasCoords)
	}
	require.True(t, incidents[3].HasCoords)

	// values that bypass normalization still cannot reach the raster or the index
	incidents = append(incidents,
		domain.Incident{ID: 5, ModeType: domain.ModeBike, Lat: 42.32, Long: 1e308, HasCoords: true},
		domain.Incident{ID: 6, ModeType: domain.ModeBike, Lat: 42.32, Long: 1e25, HasCoords: true},
	)

	m := New(120, 80, spatial.FitHeight, spatial.DefaultHeatmapOptions())
	require.NoError(t, m.InitMap(testNeighborhoods()))

	done := make(chan *Density, 1)
	go func() {
		projected, err := m.ComputeCoordinates(incidents)
		if err != nil {
			done <- nil
			return
		}
		m.UpdateHeatmap(domain.ModeAll, projected)
		done <- m.Density(domain.ModeAll)
	}()

	select {
	case d := <-done:
		require.NotNil(t, d)
		require.Len(t, d.HeatmapData, 1)
		require.Equal(t, 1, d.Quadtree.Size())
		for _, inc := range d.Incidents[4:] {
			require.True(t, math.IsNaN(inc.X))
			require.False(t, inc.HasCoords)
		}
		require.Len(t, d.Quadtree.InRect(0, 0, 120, 80), 1)
	case <-time.After(5 * time.Second):
		t.Fatal("heatmap update did not return")
	}
}
