package window

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/gogpu/livecode"
)

// HeadlessOption configures a Headless window.
type HeadlessOption func(*Headless)

// WithSnapshots writes every nth presented frame to dir as a BMP file named
// frame-NNNNNN.bmp. n <= 0 disables snapshots.
func WithSnapshots(dir string, n int) HeadlessOption {
	return func(h *Headless) {
		h.snapshotDir = dir
		h.snapshotEvery = n
	}
}

// WithScaler sets the scaler used when the surface and window sizes differ.
// The default is draw.NearestNeighbor.
func WithScaler(s draw.Scaler) HeadlessOption {
	return func(h *Headless) {
		if s != nil {
			h.scaler = s
		}
	}
}

// WithHeadlessLogger sets the logger. By default livecode.Logger() is used.
func WithHeadlessLogger(l *slog.Logger) HeadlessOption {
	return func(h *Headless) {
		h.logger = l
	}
}

// Headless is a Window whose framebuffer lives in memory.
//
// Input comes from Inject, which may be called from any goroutine. All other
// methods belong to the frame thread.
type Headless struct {
	scaler        draw.Scaler
	snapshotDir   string
	snapshotEvery int
	logger        *slog.Logger

	open    bool
	closing atomic.Bool

	width, height int
	title         string
	flags         Flags
	frame         *image.NRGBA
	frames        int
	snapshots     int

	mouseX, mouseY int
	handler        func(livecode.Event)
	events         *eventQueue
}

var _ Window = (*Headless)(nil)

// NewHeadless creates a closed headless window.
func NewHeadless(opts ...HeadlessOption) *Headless {
	h := &Headless{
		scaler: draw.NearestNeighbor,
		events: newEventQueue(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = loggerOr(h.logger)
	return h
}

// Open allocates the framebuffer.
func (h *Headless) Open(width, height int, title string, flags Flags) error {
	if h.open {
		return ErrAlreadyOpen
	}
	if err := validSize(width, height); err != nil {
		return err
	}
	if h.snapshotEvery > 0 && h.snapshotDir != "" {
		if err := os.MkdirAll(h.snapshotDir, 0o755); err != nil {
			return fmt.Errorf("window: snapshot dir: %w", err)
		}
	}

	h.width, h.height = width, height
	h.title = title
	h.flags = flags
	h.frame = image.NewNRGBA(image.Rect(0, 0, width, height))
	h.frames = 0
	h.closing.Store(false)
	h.open = true

	h.logger.Debug("window: headless opened", "width", width, "height", height, "flags", flags)
	return nil
}

// Poll dispatches queued events. It returns false after Close, or after a
// ClosedEvent (from RequestClose or Inject) was dispatched.
func (h *Headless) Poll() bool {
	if !h.open {
		return false
	}

	for _, ev := range h.events.drain() {
		switch ev.Type {
		case livecode.MouseMoveEvent:
			h.mouseX, h.mouseY = ev.X, ev.Y
		case livecode.MouseButtonEvent:
			h.mouseX, h.mouseY = ev.X, ev.Y
		case livecode.ClosedEvent:
			h.closing.Store(true)
		}
		if h.handler != nil {
			h.handler(ev)
		}
	}
	if n := h.events.takeDropped(); n > 0 {
		h.logger.Warn("window: event queue overflow", "dropped", n)
	}

	return !h.closing.Load()
}

// Close releases the framebuffer.
func (h *Headless) Close() error {
	if !h.open {
		return nil
	}
	h.open = false
	h.frame = nil
	h.logger.Debug("window: headless closed", "frames", h.frames)
	return nil
}

// Inject queues ev for the next Poll. It is safe for concurrent use.
func (h *Headless) Inject(ev livecode.Event) {
	h.events.push(ev)
}

// RequestClose queues a ClosedEvent, as if the user closed the window.
func (h *Headless) RequestClose() {
	h.events.push(livecode.Event{Type: livecode.ClosedEvent})
}

// SetTitle sets the title.
func (h *Headless) SetTitle(title string) {
	h.title = title
}

// Title returns the title.
func (h *Headless) Title() string {
	return h.title
}

// Flags returns the flags the window was opened with.
func (h *Headless) Flags() Flags {
	return h.flags
}

// SetSize resizes the framebuffer and queues a ResizedEvent.
func (h *Headless) SetSize(width, height int) error {
	if !h.open {
		return ErrNotOpen
	}
	if err := validSize(width, height); err != nil {
		return err
	}
	if width == h.width && height == h.height {
		return nil
	}
	h.width, h.height = width, height
	h.frame = image.NewNRGBA(image.Rect(0, 0, width, height))
	h.events.push(livecode.Event{Type: livecode.ResizedEvent, Width: width, Height: height})
	return nil
}

// Size returns the window size in pixels.
func (h *Headless) Size() (int, int) {
	return h.width, h.height
}

// MousePosition returns the last position seen in a mouse event.
func (h *Headless) MousePosition() (int, int) {
	return h.mouseX, h.mouseY
}

// SetEventHandler sets the event handler.
func (h *Headless) SetEventHandler(fn func(livecode.Event)) {
	h.handler = fn
}

// Present scales s into the framebuffer and writes a snapshot when one is
// due.
func (h *Headless) Present(s *livecode.Surface) error {
	if !h.open {
		return ErrNotOpen
	}
	if s == nil {
		return nil
	}

	blit(h.frame, s, h.scaler)
	h.frames++

	if h.snapshotEvery > 0 && h.snapshotDir != "" && h.frames%h.snapshotEvery == 0 {
		if err := h.snapshot(); err != nil {
			return err
		}
	}
	return nil
}

// Frame returns the framebuffer as of the last Present. The image is owned
// by the window and is replaced on resize.
func (h *Headless) Frame() *image.NRGBA {
	return h.frame
}

// Frames returns the number of frames presented since Open.
func (h *Headless) Frames() int {
	return h.frames
}

// Snapshots returns the number of snapshot files written.
func (h *Headless) Snapshots() int {
	return h.snapshots
}

func (h *Headless) snapshot() error {
	path := filepath.Join(h.snapshotDir, fmt.Sprintf("frame-%06d.bmp", h.frames))
	f, err := os.Create(path) //nolint:gosec // snapshot dir is user-provided intentionally
	if err != nil {
		return fmt.Errorf("window: snapshot: %w", err)
	}
	if err := bmp.Encode(f, h.frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("window: snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("window: snapshot: %w", err)
	}
	h.snapshots++
	h.logger.Debug("window: snapshot written", "path", path)
	return nil
}
