package spatial

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/visionzero/backend/pkg/utils"
)

// pointRadius is the radius of the circle drawn for point geometries
const pointRadius = 4.5

// Path renders g as an SVG path "d" attribute in projected screen space
func (p Projection) Path(g orb.Geometry) string {
	var b strings.Builder
	p.writeGeometry(&b, g)
	return b.String()
}

func (p Projection) writeGeometry(b *strings.Builder, g orb.Geometry) {
	switch g := g.(type) {
	case orb.Point:
		p.writePoint(b, g)
	case orb.MultiPoint:
		for _, pt := range g {
			p.writePoint(b, pt)
		}
	case orb.LineString:
		p.writeLine(b, g, false)
	case orb.MultiLineString:
		for _, ls := range g {
			p.writeLine(b, ls, false)
		}
	case orb.Ring:
		p.writeLine(b, g, true)
	case orb.Polygon:
		for _, r := range g {
			p.writeLine(b, r, true)
		}
	case orb.MultiPolygon:
		for _, poly := range g {
			for _, r := range poly {
				p.writeLine(b, r, true)
			}
		}
	case orb.Collection:
		for _, c := range g {
			p.writeGeometry(b, c)
		}
	}
}

func (p Projection) writeLine(b *strings.Builder, pts []orb.Point, closed bool) {
	n := len(pts)
	// the closing vertex of a ring repeats the first
	if closed && n > 1 && pts[0] == pts[n-1] {
		n--
	}
	for i := 0; i < n; i++ {
		if i == 0 {
			b.WriteByte('M')
		} else {
			b.WriteByte('L')
		}
		writeXY(b, p.ProjectPoint(pts[i]))
	}
	if closed && n > 0 {
		b.WriteByte('Z')
	}
}

// writePoint draws a small circle as two arcs
func (p Projection) writePoint(b *strings.Builder, pt orb.Point) {
	c := p.ProjectPoint(pt)
	r := formatCoord(pointRadius)
	b.WriteByte('M')
	writeXY(b, orb.Point{c[0], c[1] + pointRadius})
	for _, dy := range []float64{-2 * pointRadius, 2 * pointRadius} {
		b.WriteString("a" + r + "," + r + " 0 1,1 0," + formatCoord(dy))
	}
	b.WriteByte('Z')
}

func writeXY(b *strings.Builder, pt orb.Point) {
	b.WriteString(formatCoord(pt[0]))
	b.WriteByte(',')
	b.WriteString(formatCoord(pt[1]))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(utils.RoundTo(v, 3), 'f', -1, 64)
}
