package livecode

import (
	"math"
	"strconv"
)

// RGBA is a color with straight (non-premultiplied) alpha. Each component is
// in the range [0, 1]. This is the value a ShaderFunc returns for a
// fragment.
type RGBA struct {
	R, G, B, A float64
}

// Pack converts the color to the surface's native 8-bit RGBA encoding.
// Components are clamped to [0, 1] and rounded; NaN maps to 0.
func (c RGBA) Pack() [4]uint8 {
	return [4]uint8{to8(c.R), to8(c.G), to8(c.B), to8(c.A)}
}

// Unpack converts native 8-bit RGBA back to floating point.
func Unpack(p [4]uint8) RGBA {
	return RGBA{
		R: float64(p[0]) / 255,
		G: float64(p[1]) / 255,
		B: float64(p[2]) / 255,
		A: float64(p[3]) / 255,
	}
}

// RGB creates an opaque color.
func RGB(r, g, b float64) RGBA {
	return RGBA{R: r, G: g, B: b, A: 1}
}

// RGB8 creates an opaque color from 8-bit components.
func RGB8(r, g, b uint8) RGBA {
	return Unpack([4]uint8{r, g, b, 255})
}

// Hex parses "RGB", "RGBA", "RRGGBB" or "RRGGBBAA", with or without a
// leading '#'. Anything else yields opaque black.
func Hex(s string) RGBA {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Black
	}

	var p [4]uint8
	switch len(s) {
	case 3, 4:
		// Short forms repeat each nibble: "f80" is "ff8800".
		n := len(s)
		for i := range n {
			nib := uint8(v>>(4*(n-1-i))) & 0xf
			p[i] = nib<<4 | nib
		}
		if n == 3 {
			p[3] = 255
		}
	case 6:
		p = [4]uint8{uint8(v >> 16), uint8(v >> 8), uint8(v), 255}
	case 8:
		p = [4]uint8{uint8(v >> 24), uint8(v >> 16), uint8(v >> 8), uint8(v)}
	default:
		return Black
	}
	return Unpack(p)
}

// Lerp interpolates every component linearly from c to other.
func (c RGBA) Lerp(other RGBA, t float64) RGBA {
	return RGBA{
		R: c.R + (other.R-c.R)*t,
		G: c.G + (other.G-c.G)*t,
		B: c.B + (other.B-c.B)*t,
		A: c.A + (other.A-c.A)*t,
	}
}

// HSL creates an opaque color from hue in degrees (any value, wrapped to
// [0, 360)), saturation and lightness in [0, 1].
func HSL(h, s, l float64) RGBA {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	a := s * min(l, 1-l)
	channel := func(n float64) float64 {
		k := math.Mod(n+h/30, 12)
		return l - a*max(-1, min(k-3, 9-k, 1))
	}
	return RGB(channel(0), channel(8), channel(4))
}

func to8(x float64) uint8 {
	if !(x > 0) { // NaN too
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(x*255 + 0.5)
}

// Named colors.
var (
	Black       = RGB(0, 0, 0)
	White       = RGB(1, 1, 1)
	Red         = RGB(1, 0, 0)
	Green       = RGB(0, 1, 0)
	Blue        = RGB(0, 0, 1)
	Transparent = RGBA{}
)
