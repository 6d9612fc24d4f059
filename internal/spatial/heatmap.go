package spatial

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/visionzero/backend/pkg/utils"
)

// HeatPoint is one weighted point in screen space
type HeatPoint struct {
	X, Y, Value float64
}

// GradientStop maps an intensity offset in [0,1] to a colour
type GradientStop struct {
	Offset float64
	Color  color.NRGBA
}

// HeatmapOptions configure the kernel-density raster
type HeatmapOptions struct {
	Radius     float64
	Blur       float64
	Max        float64
	MinOpacity float64
	Gradient   []GradientStop
}

// DefaultHeatmapOptions is the dashboard's greyscale heatmap: small kernel, faint minimum opacity
func DefaultHeatmapOptions() HeatmapOptions {
	return HeatmapOptions{
		Radius:     1.5,
		Blur:       2,
		Max:        1,
		MinOpacity: 0.05,
		Gradient: []GradientStop{
			{Offset: 0, Color: Greys(1)},
			{Offset: 0.5, Color: Greys(0.5)},
			{Offset: 1, Color: Greys(0.3)},
		},
	}
}

// Heatmap renders weighted points into an intensity raster and colourises it
type Heatmap struct {
	opts    HeatmapOptions
	palette [256]color.NRGBA
}

// NewHeatmap prepares the colour palette for opts
func NewHeatmap(opts HeatmapOptions) *Heatmap {
	if opts.Max <= 0 {
		opts.Max = 1
	}
	h := &Heatmap{opts: opts}
	h.palette = buildPalette(opts.Gradient)
	return h
}

// Render draws points on a width x height image. Pixel alpha carries the accumulated intensity.
func (h *Heatmap) Render(width, height int, points []HeatPoint) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 {
		return img
	}

	acc := h.Intensity(width, height, points)
	for i, a := range acc {
		if a <= 0 {
			continue
		}
		idx := int(math.Round(utils.Clamp(a, 0, 1) * 255))
		c := h.palette[idx]
		o := i * 4
		img.Pix[o] = c.R
		img.Pix[o+1] = c.G
		img.Pix[o+2] = c.B
		img.Pix[o+3] = uint8(idx)
	}
	return img
}

// Intensity accumulates point kernels with source-over compositing, row-major, one value per pixel
func (h *Heatmap) Intensity(width, height int, points []HeatPoint) []float64 {
	acc := make([]float64, width*height)
	r := h.opts.Radius
	reach := r + h.opts.Blur
	for _, p := range points {
		// NaN fails every comparison; far-off points never touch the raster
		if !(p.X >= -reach && p.X < float64(width)+reach && p.Y >= -reach && p.Y < float64(height)+reach) {
			continue
		}
		alpha := math.Min(math.Max(p.Value/h.opts.Max, h.opts.MinOpacity), 1)

		minX := int(math.Max(0, math.Floor(p.X-reach)))
		maxX := int(math.Min(float64(width-1), math.Ceil(p.X+reach)))
		minY := int(math.Max(0, math.Floor(p.Y-reach)))
		maxY := int(math.Min(float64(height-1), math.Ceil(p.Y+reach)))
		for py := minY; py <= maxY; py++ {
			for px := minX; px <= maxX; px++ {
				d := math.Hypot(float64(px)+0.5-p.X, float64(py)+0.5-p.Y)
				k := kernel(d, r, h.opts.Blur)
				if k <= 0 {
					continue
				}
				i := py*width + px
				acc[i] += alpha * k * (1 - acc[i])
			}
		}
	}
	return acc
}

// kernel is 1 inside the radius and falls off linearly across the blur band
func kernel(d, radius, blur float64) float64 {
	if d <= radius {
		return 1
	}
	if blur <= 0 || d >= radius+blur {
		return 0
	}
	return 1 - (d-radius)/blur
}

func buildPalette(stops []GradientStop) [256]color.NRGBA {
	var pal [256]color.NRGBA
	if len(stops) == 0 {
		for i := range pal {
			pal[i] = color.NRGBA{A: 0xff}
		}
		return pal
	}
	sorted := append([]GradientStop(nil), stops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	for i := range pal {
		t := float64(i) / 255
		switch {
		case t <= sorted[0].Offset:
			pal[i] = sorted[0].Color
		case t >= sorted[len(sorted)-1].Offset:
			pal[i] = sorted[len(sorted)-1].Color
		default:
			for s := 1; s < len(sorted); s++ {
				if t <= sorted[s].Offset {
					a, b := sorted[s-1], sorted[s]
					pal[i] = lerpColor(a.Color, b.Color, (t-a.Offset)/(b.Offset-a.Offset))
					break
				}
			}
		}
	}
	return pal
}
