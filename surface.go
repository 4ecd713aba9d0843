package livecode

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
)

// MaxSurfaceDimension bounds either side of a surface.
const MaxSurfaceDimension = 1 << 14

var (
	// ErrInvalidSize is returned for negative surface dimensions.
	ErrInvalidSize = errors.New("livecode: invalid surface size")

	// ErrSurfaceTooLarge is returned when a surface would exceed
	// MaxSurfaceDimension on either side.
	ErrSurfaceTooLarge = errors.New("livecode: surface too large")
)

// Surface is a rectangular RGBA pixel buffer stored row-major, 4 bytes per
// pixel. A frame's surface is owned by the frame driver; scene callbacks and
// shaders borrow it for the duration of one call.
type Surface struct {
	width  int
	height int
	data   []uint8
}

// NewSurface creates a surface with the given dimensions, cleared to
// transparent black. Zero-sized surfaces are valid and hold no pixels.
func NewSurface(width, height int) (*Surface, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if width > MaxSurfaceDimension || height > MaxSurfaceDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrSurfaceTooLarge, width, height)
	}
	return &Surface{
		width:  width,
		height: height,
		data:   make([]uint8, width*height*4),
	}, nil
}

// Width returns the width of the surface.
func (s *Surface) Width() int {
	return s.width
}

// Height returns the height of the surface.
func (s *Surface) Height() int {
	return s.height
}

// Resolution returns the surface size as a Vec2.
func (s *Surface) Resolution() Vec2 {
	return Vec2{X: float64(s.width), Y: float64(s.height)}
}

// Stride returns the number of bytes per row.
func (s *Surface) Stride() int {
	return s.width * 4
}

// Data returns the raw pixel data (RGBA format).
func (s *Surface) Data() []uint8 {
	return s.data
}

// SetPixel sets the color of a single pixel. Out-of-bounds writes are ignored.
func (s *Surface) SetPixel(x, y int, c RGBA) {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return
	}
	s.setPacked(x, y, c.Pack())
}

// setPacked writes an already encoded pixel without bounds checks.
func (s *Surface) setPacked(x, y int, p [4]uint8) {
	i := (y*s.width + x) * 4
	s.data[i+0] = p[0]
	s.data[i+1] = p[1]
	s.data[i+2] = p[2]
	s.data[i+3] = p[3]
}

// Pixel returns the color of a single pixel, or Transparent outside the surface.
func (s *Surface) Pixel(x, y int) RGBA {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return Transparent
	}
	i := (y*s.width + x) * 4
	return Unpack([4]uint8{s.data[i], s.data[i+1], s.data[i+2], s.data[i+3]})
}

// Clear fills the entire surface with a color.
func (s *Surface) Clear(c RGBA) {
	p := c.Pack()
	for i := 0; i < len(s.data); i += 4 {
		s.data[i+0] = p[0]
		s.data[i+1] = p[1]
		s.data[i+2] = p[2]
		s.data[i+3] = p[3]
	}
}

// FillRect fills the w×h rectangle at (x, y), clipped to the surface.
func (s *Surface) FillRect(x, y, w, h int, c RGBA) {
	x0, y0 := max(x, 0), max(y, 0)
	x1, y1 := min(x+w, s.width), min(y+h, s.height)
	if x0 >= x1 || y0 >= y1 {
		return
	}
	p := c.Pack()
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			s.setPacked(px, py, p)
		}
	}
}

// StrokeRect draws the one pixel outline of the w×h rectangle at (x, y).
func (s *Surface) StrokeRect(x, y, w, h int, c RGBA) {
	if w <= 0 || h <= 0 {
		return
	}
	s.FillRect(x, y, w, 1, c)
	s.FillRect(x, y+h-1, w, 1, c)
	s.FillRect(x, y, 1, h, c)
	s.FillRect(x+w-1, y, 1, h, c)
}

// ToImage copies the surface into a new image.NRGBA.
func (s *Surface) ToImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
	copy(img.Pix, s.data)
	return img
}

// SavePNG saves the surface to a PNG file.
func (s *Surface) SavePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return err
	}
	if err := png.Encode(f, s.ToImage()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// At implements the image.Image interface.
func (s *Surface) At(x, y int) color.Color {
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return color.NRGBA{}
	}
	i := (y*s.width + x) * 4
	return color.NRGBA{R: s.data[i], G: s.data[i+1], B: s.data[i+2], A: s.data[i+3]}
}

// Bounds implements the image.Image interface.
func (s *Surface) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// ColorModel implements the image.Image interface.
func (s *Surface) ColorModel() color.Model {
	return color.NRGBAModel
}
