package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// FitMode selects how a projection is fitted to the viewport
type FitMode string

const (
	// FitHeight scales the extent to the viewport height, left aligned and vertically centred
	FitHeight FitMode = "height"
	// FitWidth scales the extent to the viewport width, top aligned and horizontally centred
	FitWidth FitMode = "width"
	// FitExtent scales the extent to fit inside the viewport and centres it
	FitExtent FitMode = "extent"
)

// ParseFitMode parses a fit mode, defaulting to FitHeight
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(s) {
	case "", FitHeight:
		return FitHeight, nil
	case FitWidth, FitExtent:
		return FitMode(s), nil
	}
	return "", fmt.Errorf("spatial: unknown fit mode %q", s)
}

// Projection maps WGS84 longitude/latitude to screen pixels through spherical Mercator.
// Screen y grows southward.
type Projection struct {
	Scale      float64 `json:"scale"`
	TranslateX float64 `json:"translate_x"`
	TranslateY float64 `json:"translate_y"`
}

// mercator returns web-mercator meters with y flipped to screen orientation
func mercator(lon, lat float64) (float64, float64) {
	p := project.Point(orb.Point{lon, lat}, project.WGS84.ToMercator)
	return p[0], -p[1]
}

// Project returns the screen position of lon/lat
func (p Projection) Project(lon, lat float64) (x, y float64) {
	mx, my := mercator(lon, lat)
	return mx*p.Scale + p.TranslateX, my*p.Scale + p.TranslateY
}

// ProjectPoint projects an orb point (lon, lat)
func (p Projection) ProjectPoint(pt orb.Point) orb.Point {
	x, y := p.Project(pt[0], pt[1])
	return orb.Point{x, y}
}

// Fit builds a projection that places bound inside a width x height viewport
func Fit(mode FitMode, width, height float64, bound orb.Bound) Projection {
	x0, y0 := mercator(bound.Min[0], bound.Max[1])
	x1, y1 := mercator(bound.Max[0], bound.Min[1])
	dx, dy := x1-x0, y1-y0

	switch mode {
	case FitWidth:
		if dx <= 0 {
			return centred(width, height, x0, y0)
		}
		k := width / dx
		return Projection{Scale: k, TranslateX: (width - k*(x1+x0)) / 2, TranslateY: -k * y0}
	case FitExtent:
		if dx <= 0 || dy <= 0 {
			return centred(width, height, x0, y0)
		}
		k := math.Min(width/dx, height/dy)
		return Projection{Scale: k, TranslateX: (width - k*(x1+x0)) / 2, TranslateY: (height - k*(y1+y0)) / 2}
	default:
		if dy <= 0 {
			return centred(width, height, x0, y0)
		}
		k := height / dy
		return Projection{Scale: k, TranslateX: -k * x0, TranslateY: (height - k*(y1+y0)) / 2}
	}
}

// centred puts a degenerate extent at the viewport centre at unit scale
func centred(width, height, x, y float64) Projection {
	return Projection{Scale: 1, TranslateX: width/2 - x, TranslateY: height/2 - y}
}
