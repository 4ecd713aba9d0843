// Package hotload keeps a scene module current while the host runs.
//
// A Reloader watches one module path. Once per frame the host calls
// Refresh; when the file's fingerprint changed, the Reloader opens the new
// build, hands the existing application state to its Reload hook and swaps
// the active scene. A build that fails to open or to take over the state is
// rejected and the previous scene keeps running with its state untouched.
//
// The Reloader is driven from a single goroutine (the frame thread) and is
// not safe for concurrent use.
package hotload

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/livecode"
)

var (
	// ErrNoModule is returned by Refresh when no scene could be made active.
	// It is fatal for a frame driver that has nothing else to run.
	ErrNoModule = errors.New("hotload: no module loaded")

	// ErrCallbackPanic wraps a panic raised by a scene callback invoked
	// during a load, reload or shutdown.
	ErrCallbackPanic = errors.New("hotload: scene callback panicked")
)

// Phase is the lifecycle phase of a Reloader.
type Phase int

const (
	// Unloaded means no module is active: before the first load, after a
	// failed first load and after Shutdown.
	Unloaded Phase = iota

	// Loaded means a module was opened and its state is being initialized.
	Loaded

	// Active means a module and its state are live.
	Active

	// ReloadPending means a changed build is being swapped in while the
	// previous module is still active.
	ReloadPending
)

func (p Phase) String() string {
	switch p {
	case Unloaded:
		return "Unloaded"
	case Loaded:
		return "Loaded"
	case Active:
		return "Active"
	case ReloadPending:
		return "ReloadPending"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Stats counts lifecycle transitions.
type Stats struct {
	Opens    int // modules opened successfully
	Inits    int // Init calls that created state
	Reloads  int // successful state hand-overs to a new build
	Unloads  int // modules swapped out
	Rejected int // builds rejected (open, init or reload failure)
}

// Option configures a Reloader.
type Option func(*Reloader)

// WithLogger sets the logger. By default livecode.Logger() is used.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reloader) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithFingerprinter replaces Stat as the change detector.
func WithFingerprinter(fn func(path string) (Fingerprint, error)) Option {
	return func(r *Reloader) {
		if fn != nil {
			r.stat = fn
		}
	}
}

// WithSettleDelay makes Refresh ignore a changed file until its
// modification time is at least d in the past, so a build that is still
// being written is not opened half-finished. The first load never waits.
func WithSettleDelay(d time.Duration) Option {
	return func(r *Reloader) {
		r.settle = d
	}
}

// WithClock replaces time.Now for settle checks.
func WithClock(now func() time.Time) Option {
	return func(r *Reloader) {
		if now != nil {
			r.now = now
		}
	}
}

// Reloader is the module registry and reload state machine for one path.
type Reloader struct {
	path   string
	loader Loader
	stat   func(string) (Fingerprint, error)
	settle time.Duration
	now    func() time.Time
	logger *slog.Logger

	phase      Phase
	module     Module
	scene      livecode.Scene
	current    Fingerprint
	rejected   Fingerprint
	state      *livecode.State
	generation int
	stats      Stats
	lastErr    error
}

// NewReloader creates a Reloader for the module at path. Nothing is loaded
// until the first Refresh.
func NewReloader(path string, loader Loader, opts ...Option) *Reloader {
	r := &Reloader{
		path:   path,
		loader: loader,
		stat:   Stat,
		now:    time.Now,
		logger: livecode.Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Path returns the watched module path.
func (r *Reloader) Path() string { return r.path }

// Phase returns the current lifecycle phase.
func (r *Reloader) Phase() Phase { return r.phase }

// Scene returns the active callback table, or nil when Unloaded.
// It only changes inside Refresh and Shutdown, after a swap completed.
func (r *Reloader) Scene() livecode.Scene { return r.scene }

// State returns the application state handle, or nil before Init.
func (r *Reloader) State() *livecode.State { return r.state }

// Fingerprint returns the fingerprint of the active build.
func (r *Reloader) Fingerprint() Fingerprint { return r.current }

// Generation counts successful loads, starting at 1 for the first one.
func (r *Reloader) Generation() int { return r.generation }

// Stats returns the transition counters.
func (r *Reloader) Stats() Stats { return r.stats }

// LastError returns why the most recent build was rejected, or nil if the
// last change was applied.
func (r *Reloader) LastError() error { return r.lastErr }

// ForceReload makes the next Refresh reload the module even if its
// fingerprint is unchanged.
func (r *Reloader) ForceReload() {
	r.current = Fingerprint{}
	r.rejected = Fingerprint{}
}

// Refresh checks the module file and swaps in a new build if it changed.
// s is the surface passed to Init on first load.
//
// It reports whether a new build became active. Failures of a rebuild are
// absorbed: the previous scene stays active and LastError records the
// cause. An error is returned only when no scene is active afterwards; it
// wraps ErrNoModule.
func (r *Reloader) Refresh(s *livecode.Surface) (bool, error) {
	fp, err := r.stat(r.path)
	if err != nil {
		if r.module == nil {
			return false, fmt.Errorf("%w: %w", ErrNoModule, err)
		}
		// A vanished or unreadable file mid-rebuild is not a change.
		r.logger.Debug("hotload: fingerprint unavailable", "path", r.path, "err", err)
		return false, nil
	}

	if r.module != nil && fp == r.current {
		return false, nil
	}
	if !r.rejected.IsZero() && fp == r.rejected {
		if r.module == nil {
			return false, fmt.Errorf("%w: %w", ErrNoModule, r.lastErr)
		}
		return false, nil
	}
	if r.module != nil && r.settle > 0 && r.now().Sub(fp.Time()) < r.settle {
		return false, nil
	}

	if r.module == nil {
		return r.load(fp, s)
	}
	return r.swap(fp)
}

// load opens the first build of a lineage and creates its state.
func (r *Reloader) load(fp Fingerprint, s *livecode.Surface) (bool, error) {
	mod, err := r.open()
	if err != nil {
		return false, r.reject(fp, err)
	}
	r.phase = Loaded
	scene := mod.Scene()

	if r.state == nil {
		var value any
		err := guard("Init", func() error {
			var ierr error
			value, ierr = scene.Init(s)
			return ierr
		})
		if err != nil {
			r.closeModule(mod)
			return false, r.reject(fp, fmt.Errorf("init: %w", err))
		}
		r.state = livecode.NewState(value)
		r.stats.Inits++
	}

	r.commit(mod, scene, fp)
	r.logger.Info("hotload: scene loaded", "path", r.path, "generation", r.generation)
	return true, nil
}

// swap replaces the active build with a changed one, handing over the state.
func (r *Reloader) swap(fp Fingerprint) (bool, error) {
	r.phase = ReloadPending

	mod, err := r.open()
	if err != nil {
		return false, r.reject(fp, err)
	}
	next := mod.Scene()
	prev, prevModule := r.scene, r.module

	if err := guard("Unload", func() error { prev.Unload(r.state); return nil }); err != nil {
		r.logger.Warn("hotload: unload failed", "path", r.path, "err", err)
	}

	if err := guard("Reload", func() error { return next.Reload(r.state) }); err != nil {
		r.closeModule(mod)
		// The outgoing build was told it is being unloaded; tell it it is
		// back in charge.
		if rerr := guard("Reload", func() error { return prev.Reload(r.state) }); rerr != nil {
			r.logger.Warn("hotload: previous scene did not resume cleanly", "path", r.path, "err", rerr)
		}
		return false, r.reject(fp, fmt.Errorf("reload: %w", err))
	}

	r.closeModule(prevModule)
	r.stats.Unloads++
	r.stats.Reloads++
	r.commit(mod, next, fp)
	r.logger.Info("hotload: scene reloaded", "path", r.path, "generation", r.generation)
	return true, nil
}

func (r *Reloader) open() (mod Module, err error) {
	err = guard("Open", func() error {
		var oerr error
		mod, oerr = r.loader.Open(r.path)
		return oerr
	})
	if err != nil {
		return nil, err
	}
	if mod == nil || mod.Scene() == nil {
		if mod != nil {
			r.closeModule(mod)
		}
		return nil, fmt.Errorf("%w: loader returned no scene", ErrBadCallbackTable)
	}
	r.stats.Opens++
	return mod, nil
}

func (r *Reloader) commit(mod Module, scene livecode.Scene, fp Fingerprint) {
	r.module = mod
	r.scene = scene
	r.current = fp
	r.rejected = Fingerprint{}
	r.lastErr = nil
	r.generation++
	r.phase = Active
}

// reject records a failed build. The fingerprint is remembered so the same
// broken file is not retried every frame; the next write changes it.
func (r *Reloader) reject(fp Fingerprint, err error) error {
	r.rejected = fp
	r.lastErr = err
	r.stats.Rejected++

	if r.module == nil {
		r.phase = Unloaded
		r.logger.Error("hotload: scene failed to load", "path", r.path, "err", err)
		return fmt.Errorf("%w: %w", ErrNoModule, err)
	}
	r.phase = Active
	r.logger.Warn("hotload: rebuild rejected, keeping previous scene", "path", r.path, "err", err)
	return nil
}

func (r *Reloader) closeModule(m Module) {
	if err := m.Close(); err != nil {
		r.logger.Warn("hotload: module close failed", "path", r.path, "err", err)
	}
}

// Shutdown notifies the active scene with Unload then Deinit, releases the
// state and closes the module. The Reloader ends Unloaded and may be
// refreshed again to start a new lineage.
func (r *Reloader) Shutdown() {
	if r.scene != nil && r.state != nil {
		if err := guard("Unload", func() error { r.scene.Unload(r.state); return nil }); err != nil {
			r.logger.Warn("hotload: unload failed", "path", r.path, "err", err)
		}
		if err := guard("Deinit", func() error { r.scene.Deinit(r.state); return nil }); err != nil {
			r.logger.Warn("hotload: deinit failed", "path", r.path, "err", err)
		}
	}
	if r.state != nil {
		r.state.Release()
		r.state = nil
	}
	if r.module != nil {
		r.closeModule(r.module)
	}
	r.module = nil
	r.scene = nil
	r.current = Fingerprint{}
	r.rejected = Fingerprint{}
	r.phase = Unloaded
	r.logger.Info("hotload: scene shut down", "path", r.path)
}

// guard runs fn and converts a panic into an error wrapping ErrCallbackPanic.
func guard(name string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: %v", ErrCallbackPanic, name, rec)
		}
	}()
	return fn()
}
