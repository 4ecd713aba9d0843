// Package host runs the frame loop: it owns the window, the surface and
// the scene reloader, and drives one Poll, Refresh, Tick, Present cycle per
// frame on the calling goroutine.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/livecode"
	"github.com/gogpu/livecode/hotload"
	"github.com/gogpu/livecode/window"
)

var (
	// ErrFirstLoad is returned by Run when the scene module could not be
	// loaded at startup. There is nothing to run without it.
	ErrFirstLoad = errors.New("host: first load failed")

	// ErrScenePanic wraps a panic raised by a scene's Tick or Event callback.
	ErrScenePanic = errors.New("host: scene callback panicked")
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. By default livecode.Logger() is used.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithAudio sets the audio context passed to Tick.
func WithAudio(a livecode.AudioContext) Option {
	return func(rt *Runtime) {
		rt.audio = a
	}
}

// WithClock replaces time.Now for frame timing.
func WithClock(now func() time.Time) Option {
	return func(rt *Runtime) {
		if now != nil {
			rt.now = now
		}
	}
}

// WithFrameHook registers fn to run after every presented frame.
func WithFrameHook(fn func(frame int, s *livecode.Surface)) Option {
	return func(rt *Runtime) {
		rt.onFrame = fn
	}
}

// Runtime is the frame driver. It is not safe for concurrent use; Run
// blocks the calling goroutine.
type Runtime struct {
	cfg      Config
	win      window.Window
	reloader *hotload.Reloader
	logger   *slog.Logger
	audio    livecode.AudioContext
	now      func() time.Time
	onFrame  func(int, *livecode.Surface)

	timer   *Timer
	surface *livecode.Surface
	frames  int

	stopRequested bool
	callbackErr   error
	pendingW      int
	pendingH      int
}

// New creates a Runtime. The window is opened by Run.
func New(cfg Config, win window.Window, reloader *hotload.Reloader, opts ...Option) (*Runtime, error) {
	if win == nil {
		return nil, errors.New("host: nil window")
	}
	if reloader == nil {
		return nil, errors.New("host: nil reloader")
	}
	rt := &Runtime{
		cfg:      cfg,
		win:      win,
		reloader: reloader,
		logger:   livecode.Logger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.timer = NewTimer(rt.now)
	return rt, nil
}

// Frames returns the number of frames presented.
func (rt *Runtime) Frames() int { return rt.frames }

// Surface returns the frame surface, or nil before Run.
func (rt *Runtime) Surface() *livecode.Surface { return rt.surface }

// Timer returns the runtime clock started when the loop begins.
func (rt *Runtime) Timer() *Timer { return rt.timer }

// Run opens the window, loads the scene and runs frames until the window
// closes, the scene asks to stop, MaxFrames is reached or ctx is cancelled.
// Those are all normal exits and return nil. The scene is always shut down
// and the window closed before Run returns.
func (rt *Runtime) Run(ctx context.Context) (err error) {
	flags, err := rt.cfg.WindowFlags()
	if err != nil {
		return fmt.Errorf("host: %w", err)
	}
	if err := rt.win.Open(rt.cfg.Width, rt.cfg.Height, rt.cfg.Title, flags); err != nil {
		return fmt.Errorf("host: open window: %w", err)
	}
	defer func() {
		if cerr := rt.win.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("host: close window: %w", cerr))
		}
	}()

	w, h := rt.win.Size()
	if rt.surface, err = livecode.NewSurface(w, h); err != nil {
		return fmt.Errorf("host: %w", err)
	}
	rt.win.SetEventHandler(rt.dispatch)

	if _, err := rt.reloader.Refresh(rt.surface); err != nil {
		return fmt.Errorf("%w: %w", ErrFirstLoad, err)
	}
	defer rt.reloader.Shutdown()

	if err := rt.applyHints(); err != nil {
		return err
	}

	rt.logger.Info("host: running", "scene", rt.reloader.Path(), "width", rt.surface.Width(), "height", rt.surface.Height())
	return rt.loop(ctx)
}

func (rt *Runtime) loop(ctx context.Context) error {
	interval := rt.cfg.FrameInterval()
	rt.timer.Start()
	last := rt.timer.Elapsed()

	for {
		if ctx.Err() != nil {
			rt.logger.Info("host: cancelled", "frames", rt.frames)
			return nil
		}
		frameStart := rt.now()

		if !rt.win.Poll() {
			rt.logger.Info("host: window closed", "frames", rt.frames)
			return nil
		}
		if rt.callbackErr != nil {
			return rt.callbackErr
		}
		if rt.stopRequested {
			rt.logger.Info("host: scene requested stop", "frames", rt.frames)
			return nil
		}
		if err := rt.applyResize(); err != nil {
			return err
		}

		if changed, err := rt.reloader.Refresh(rt.surface); err != nil {
			return err
		} else if changed {
			rt.logger.Debug("host: scene swapped", "generation", rt.reloader.Generation())
		}

		now := rt.timer.Elapsed()
		delta := (now - last).Seconds()
		last = now

		cont, err := rt.tick(delta)
		if err != nil {
			return err
		}
		if !cont {
			rt.logger.Info("host: scene finished", "frames", rt.frames)
			return nil
		}

		if err := rt.win.Present(rt.surface); err != nil {
			return fmt.Errorf("host: present: %w", err)
		}
		rt.frames++
		if rt.onFrame != nil {
			rt.onFrame(rt.frames, rt.surface)
		}
		if rt.cfg.MaxFrames > 0 && rt.frames >= rt.cfg.MaxFrames {
			return nil
		}

		if interval > 0 {
			if wait := interval - rt.now().Sub(frameStart); wait > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(wait):
				}
			}
		}
	}
}

func (rt *Runtime) tick(delta float64) (cont bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: Tick: %v", ErrScenePanic, r)
		}
	}()
	return rt.reloader.Scene().Tick(rt.reloader.State(), rt.surface, rt.audio, delta), nil
}

// dispatch routes a window event to the active scene. It runs inside Poll.
func (rt *Runtime) dispatch(ev livecode.Event) {
	if ev.Type == livecode.ResizedEvent {
		rt.pendingW, rt.pendingH = ev.Width, ev.Height
	}

	scene := rt.reloader.Scene()
	if scene == nil || rt.callbackErr != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			rt.callbackErr = fmt.Errorf("%w: Event: %v", ErrScenePanic, r)
		}
	}()
	if !scene.Event(rt.reloader.State(), ev) {
		rt.stopRequested = true
	}
}

// applyResize reallocates the surface after a resize event.
func (rt *Runtime) applyResize() error {
	if rt.pendingW <= 0 || rt.pendingH <= 0 {
		return nil
	}
	w, h := rt.pendingW, rt.pendingH
	rt.pendingW, rt.pendingH = 0, 0
	if w == rt.surface.Width() && h == rt.surface.Height() {
		return nil
	}
	s, err := livecode.NewSurface(w, h)
	if err != nil {
		return fmt.Errorf("host: resize: %w", err)
	}
	rt.surface = s
	rt.logger.Debug("host: surface resized", "width", w, "height", h)
	return nil
}

// applyHints applies a scene's preferred window size and title.
func (rt *Runtime) applyHints() error {
	hinter, ok := rt.reloader.Scene().(livecode.WindowHinter)
	if !ok {
		return nil
	}
	hints := hinter.WindowHints()
	if hints.Title != "" {
		rt.win.SetTitle(hints.Title)
	}
	if hints.Width > 0 && hints.Height > 0 {
		if err := rt.win.SetSize(hints.Width, hints.Height); err != nil {
			rt.logger.Warn("host: window hints rejected", "width", hints.Width, "height", hints.Height, "err", err)
			return nil
		}
		w, h := rt.win.Size()
		rt.pendingW, rt.pendingH = w, h
		return rt.applyResize()
	}
	return nil
}
