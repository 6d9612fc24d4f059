package spatial

import (
	"fmt"
	"image/color"
	"math"

	"github.com/visionzero/backend/pkg/utils"
)

// greys is the nine-class sequential grey scheme, light to dark
var greys = []color.NRGBA{
	{0xff, 0xff, 0xff, 0xff},
	{0xf0, 0xf0, 0xf0, 0xff},
	{0xd9, 0xd9, 0xd9, 0xff},
	{0xbd, 0xbd, 0xbd, 0xff},
	{0x96, 0x96, 0x96, 0xff},
	{0x73, 0x73, 0x73, 0xff},
	{0x52, 0x52, 0x52, 0xff},
	{0x25, 0x25, 0x25, 0xff},
	{0x00, 0x00, 0x00, 0xff},
}

// Greys interpolates the grey ramp; 0 is white, 1 is black
func Greys(t float64) color.NRGBA {
	t = utils.Clamp(t, 0, 1)
	pos := t * float64(len(greys)-1)
	i := int(math.Floor(pos))
	if i >= len(greys)-1 {
		return greys[len(greys)-1]
	}
	return lerpColor(greys[i], greys[i+1], pos-float64(i))
}

// ScaleColor maps a share p in [0,1] to a grey where larger shares are lighter
func ScaleColor(p float64) string {
	return Hex(Greys(1 - p))
}

// Hex formats c as #rrggbb
func Hex(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	ch := func(x, y uint8) uint8 {
		return uint8(math.Round(utils.Lerp(float64(x), float64(y), t)))
	}
	return color.NRGBA{R: ch(a.R, b.R), G: ch(a.G, b.G), B: ch(a.B, b.B), A: ch(a.A, b.A)}
}
