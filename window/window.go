// Package window provides the presentation collaborators a frame driver
// renders into.
//
// A Window receives a finished surface once per frame and reports input as
// livecode.Event values. Events are queued by whatever goroutine produces
// them and handed to the registered handler from Poll, so handlers always run
// on the frame thread.
//
// Two backends are included: Headless keeps the framebuffer in memory (for
// tests, CI and offline rendering) and Terminal draws into an ANSI truecolor
// terminal.
package window

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gogpu/livecode"
)

var (
	// ErrInvalidSize is returned when a window is opened or resized with a
	// non-positive dimension.
	ErrInvalidSize = errors.New("window: invalid size")

	// ErrNotOpen is returned by operations that need an open window.
	ErrNotOpen = errors.New("window: not open")

	// ErrAlreadyOpen is returned by Open on a window that is already open.
	ErrAlreadyOpen = errors.New("window: already open")
)

// Flags select optional window behavior. Backends ignore flags they cannot
// honor.
type Flags uint32

// Window flags.
const (
	Resizable Flags = 1 << iota
	Fullscreen
	FullscreenDesktop
	Borderless
	AlwaysOnTop
)

var flagNames = []struct {
	f    Flags
	name string
}{
	{Resizable, "resizable"},
	{Fullscreen, "fullscreen"},
	{FullscreenDesktop, "fullscreen-desktop"},
	{Borderless, "borderless"},
	{AlwaysOnTop, "always-on-top"},
}

// Has reports whether all bits of g are set in f.
func (f Flags) Has(g Flags) bool {
	return f&g == g
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var parts []string
	for _, n := range flagNames {
		if f.Has(n.f) {
			parts = append(parts, n.name)
			f &^= n.f
		}
	}
	if f != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(f)))
	}
	return strings.Join(parts, "|")
}

// ParseFlags parses a "|" or "," separated list of flag names as printed by
// Flags.String.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		field = strings.TrimSpace(field)
		if field == "" || field == "none" {
			continue
		}
		found := false
		for _, n := range flagNames {
			if n.name == field {
				f |= n.f
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("window: unknown flag %q", field)
		}
	}
	return f, nil
}

// Window is a presentation target with an input event source.
type Window interface {
	// Open creates the window with a client area of width×height pixels.
	Open(width, height int, title string, flags Flags) error

	// Poll dispatches queued events to the handler. It returns false once
	// the window was closed by the user or the backend.
	Poll() bool

	// Close releases the window. It is safe to call more than once.
	Close() error

	SetTitle(title string)
	SetSize(width, height int) error
	Size() (width, height int)
	MousePosition() (x, y int)

	// SetEventHandler sets the function Poll passes events to. A nil
	// handler drops events.
	SetEventHandler(fn func(livecode.Event))

	// Present displays s, scaled to the window size.
	Present(s *livecode.Surface) error
}

// nrgbaView wraps the surface pixels as an image without copying.
func nrgbaView(s *livecode.Surface) *image.NRGBA {
	return &image.NRGBA{
		Pix:    s.Data(),
		Stride: s.Stride(),
		Rect:   image.Rect(0, 0, s.Width(), s.Height()),
	}
}

// blit scales s into dst. Same-size frames are copied directly.
func blit(dst *image.NRGBA, s *livecode.Surface, scaler draw.Scaler) {
	src := nrgbaView(s)
	if src.Rect.Eq(dst.Rect) {
		copy(dst.Pix, src.Pix)
		return
	}
	if src.Rect.Empty() {
		clear(dst.Pix)
		return
	}
	scaler.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
}

func validSize(width, height int) error {
	if width <= 0 || height <= 0 || width > livecode.MaxSurfaceDimension || height > livecode.MaxSurfaceDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return livecode.Logger()
}
