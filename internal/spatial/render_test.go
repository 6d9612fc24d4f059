package spatial_test

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/spatial"
)

// roughly the Boston extent
var boston = orb.Bound{Min: orb.Point{-71.19, 42.23}, Max: orb.Point{-70.99, 42.40}}

func TestFit_HeightFillsViewport(t *testing.T) {
	p := spatial.Fit(spatial.FitHeight, 960, 600, boston)

	_, top := p.Project(boston.Min[0], boston.Max[1])
	_, bottom := p.Project(boston.Min[0], boston.Min[1])
	left, _ := p.Project(boston.Min[0], boston.Min[1])

	require.InDelta(t, 0, top, 1e-6)
	require.InDelta(t, 600, bottom, 1e-6)
	require.InDelta(t, 0, left, 1e-6)
}

func TestFit_WidthFillsViewport(t *testing.T) {
	p := spatial.Fit(spatial.FitWidth, 960, 600, boston)

	left, top := p.Project(boston.Min[0], boston.Max[1])
	right, _ := p.Project(boston.Max[0], boston.Max[1])
	require.InDelta(t, 0, left, 1e-6)
	require.InDelta(t, 960, right, 1e-6)
	require.InDelta(t, 0, top, 1e-6)
}

func TestFit_ExtentStaysInside(t *testing.T) {
	p := spatial.Fit(spatial.FitExtent, 300, 300, boston)
	for _, c := range []orb.Point{boston.Min, boston.Max, {boston.Min[0], boston.Max[1]}, {boston.Max[0], boston.Min[1]}} {
		x, y := p.Project(c[0], c[1])
		require.GreaterOrEqual(t, x, -1e-6)
		require.LessOrEqual(t, x, 300+1e-6)
		require.GreaterOrEqual(t, y, -1e-6)
		require.LessOrEqual(t, y, 300+1e-6)
	}
}

func TestProjection_NorthIsUp(t *testing.T) {
	p := spatial.Fit(spatial.FitHeight, 960, 600, boston)
	_, north := p.Project(-71.05, 42.39)
	_, south := p.Project(-71.05, 42.25)
	require.Less(t, north, south)
}

func TestParseFitMode(t *testing.T) {
	m, err := spatial.ParseFitMode("")
	require.NoError(t, err)
	require.Equal(t, spatial.FitHeight, m)
	_, err = spatial.ParseFitMode("stretch")
	require.Error(t, err)
}

func square(x0, y0, x1, y1 float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}}}
}

func TestPath_Polygon(t *testing.T) {
	p := spatial.Projection{Scale: 1}
	d := p.Path(square(0, 0, 1, 1))
	require.True(t, strings.HasPrefix(d, "M"))
	require.True(t, strings.HasSuffix(d, "Z"))
	require.Equal(t, 3, strings.Count(d, "L"))
}

func TestHeatmap_EmptyIsTransparent(t *testing.T) {
	h := spatial.NewHeatmap(spatial.DefaultHeatmapOptions())
	img := h.Render(10, 10, nil)
	for _, b := range img.Pix {
		require.Zero(t, b)
	}
}

func TestHeatmap_PointsAccumulate(t *testing.T) {
	h := spatial.NewHeatmap(spatial.DefaultHeatmapOptions())

	one := h.Intensity(10, 10, []spatial.HeatPoint{{X: 5, Y: 5, Value: 0.3}})
	many := h.Intensity(10, 10, []spatial.HeatPoint{{X: 5, Y: 5, Value: 0.3}, {X: 5, Y: 5, Value: 0.3}})
	centre := 5*10 + 5
	require.InDelta(t, 0.3, one[centre], 1e-9)
	require.Greater(t, many[centre], one[centre])
	require.LessOrEqual(t, many[centre], 1.0)
	require.Zero(t, one[0])

	img := h.Render(10, 10, []spatial.HeatPoint{{X: 5, Y: 5, Value: 1}})
	require.NotZero(t, img.NRGBAAt(5, 5).A)
	require.Zero(t, img.NRGBAAt(0, 0).A)
}

func TestHeatmap_SkipsPointsOffRaster(t *testing.T) {
	h := spatial.NewHeatmap(spatial.DefaultHeatmapOptions())

	acc := h.Intensity(10, 10, []spatial.HeatPoint{
		{X: 3e28, Y: 5, Value: 1},
		{X: -3e28, Y: -3e28, Value: 1},
		{X: math.Inf(1), Y: 5, Value: 1},
		{X: 5, Y: math.NaN(), Value: 1},
		{X: 50, Y: 5, Value: 1},
	})
	for _, a := range acc {
		require.Zero(t, a)
	}

	// a point just outside the edge still bleeds into it
	edge := h.Intensity(10, 10, []spatial.HeatPoint{{X: -1, Y: 5, Value: 1}})
	require.Greater(t, edge[5*10], 0.0)
}

func TestGreys(t *testing.T) {
	require.Equal(t, "#ffffff", spatial.Hex(spatial.Greys(0)))
	require.Equal(t, "#000000", spatial.Hex(spatial.Greys(1)))
	require.Equal(t, "#ffffff", spatial.ScaleColor(1))
}

func TestChoropleth_CountsByRegion(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	a := geojson.NewFeature(square(-71.10, 42.30, -71.05, 42.35))
	a.Properties["Name"] = "Roxbury"
	b := geojson.NewFeature(square(-71.05, 42.30, -71.00, 42.35))
	b.Properties["Name"] = "South Boston"
	fc.Append(a)
	fc.Append(b)
	fc.Append(geojson.NewFeature(orb.Point{-71.0, 42.3}))

	regions := spatial.RegionsFromFeatures(fc)
	require.Len(t, regions, 2)
	require.Equal(t, "Roxbury", regions[0].Name)
	require.Greater(t, regions[0].AreaKm2, 10.0)
	require.Less(t, regions[0].AreaKm2, 30.0)

	incidents := []domain.Incident{
		{ID: 1, Long: -71.07, Lat: 42.32, HasCoords: true},
		{ID: 2, Long: -71.08, Lat: 42.33, HasCoords: true},
		{ID: 3, Long: -71.02, Lat: 42.31, HasCoords: true},
		{ID: 4, Long: -70.90, Lat: 42.31, HasCoords: true},
		{ID: 5},
	}
	c := spatial.CountByRegion(regions, incidents)
	require.Equal(t, 2, c.Max)
	require.Equal(t, 2, c.Unassigned)
	require.Equal(t, 2, c.Regions[0].Count)
	require.Equal(t, 1, c.Regions[1].Count)
	require.Equal(t, "#ffffff", c.Regions[0].Fill)
	require.Greater(t, c.Regions[0].Density, 0.0)
}
