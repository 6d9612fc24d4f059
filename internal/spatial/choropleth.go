package spatial

import (
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/pkg/utils"
)

// EarthRadiusKm is the mean earth radius
const EarthRadiusKm = 6371.0088

// Region is a named polygonal area of the map
type Region struct {
	Name     string
	Geometry orb.Geometry
	Bound    orb.Bound
	AreaKm2  float64
}

// RegionCount is the choropleth value of one region
type RegionCount struct {
	Name    string  `json:"name"`
	Count   int     `json:"count"`
	AreaKm2 float64 `json:"area_km2"`
	Density float64 `json:"density_per_km2"`
	Fill    string  `json:"fill"`
}

// Choropleth is the per-region incident breakdown
type Choropleth struct {
	Regions    []RegionCount `json:"regions"`
	Unassigned int           `json:"unassigned"`
	Max        int           `json:"max"`
}

// RegionsFromFeatures keeps the polygonal features of fc, named by their Name property
func RegionsFromFeatures(fc *geojson.FeatureCollection) []Region {
	if fc == nil {
		return nil
	}
	regions := make([]Region, 0, len(fc.Features))
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			continue
		}
		regions = append(regions, Region{
			Name:     featureName(f),
			Geometry: f.Geometry,
			Bound:    f.Geometry.Bound(),
			AreaKm2:  AreaKm2(f.Geometry),
		})
	}
	return regions
}

func featureName(f *geojson.Feature) string {
	for _, k := range []string{"Name", "name", "DISTRICT", "NAME"} {
		if s := f.Properties.MustString(k, ""); s != "" {
			return s
		}
	}
	if f.ID != nil {
		if s, ok := f.ID.(string); ok {
			return s
		}
	}
	return ""
}

// Contains reports whether lon/lat lies inside the region
func (r Region) Contains(pt orb.Point) bool {
	if !r.Bound.Contains(pt) {
		return false
	}
	switch g := r.Geometry.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	}
	return false
}

// CountByRegion assigns every located incident to the first region containing it
func CountByRegion(regions []Region, incidents []domain.Incident) Choropleth {
	counts := make([]int, len(regions))
	out := Choropleth{Regions: make([]RegionCount, len(regions))}
	for _, d := range incidents {
		if !d.HasCoords {
			out.Unassigned++
			continue
		}
		pt := orb.Point{d.Long, d.Lat}
		hit := false
		for i := range regions {
			if regions[i].Contains(pt) {
				counts[i]++
				hit = true
				break
			}
		}
		if !hit {
			out.Unassigned++
		}
	}

	for _, c := range counts {
		if c > out.Max {
			out.Max = c
		}
	}
	for i, r := range regions {
		rc := RegionCount{Name: r.Name, Count: counts[i], AreaKm2: utils.RoundTo(r.AreaKm2, 3)}
		if r.AreaKm2 > 0 {
			rc.Density = utils.RoundTo(float64(counts[i])/r.AreaKm2, 3)
		}
		rc.Fill = ScaleColor(utils.Ratio(counts[i], out.Max))
		out.Regions[i] = rc
	}
	return out
}

// AreaKm2 computes the spherical area of a polygonal geometry
func AreaKm2(g orb.Geometry) float64 {
	switch g := g.(type) {
	case orb.Polygon:
		return polygonArea(g)
	case orb.MultiPolygon:
		total := 0.0
		for _, p := range g {
			total += polygonArea(p)
		}
		return total
	}
	return 0
}

// polygonArea subtracts holes from the outer ring
func polygonArea(p orb.Polygon) float64 {
	if len(p) == 0 {
		return 0
	}
	area := ringArea(p[0])
	for _, hole := range p[1:] {
		area -= ringArea(hole)
	}
	if area < 0 {
		return 0
	}
	return area
}

func ringArea(r orb.Ring) float64 {
	n := len(r)
	if n > 1 && r[0] == r[n-1] {
		n--
	}
	if n < 3 {
		return 0
	}
	pts := make([]s2.Point, 0, n)
	for _, pt := range r[:n] {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(pt[1], pt[0])))
	}
	loop := s2.LoopFromPoints(pts)
	// winding order varies between sources; take the smaller side
	loop.Normalize()
	return loop.Area() * EarthRadiusKm * EarthRadiusKm
}
