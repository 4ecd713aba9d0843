package hotload

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/gogpu/livecode"
)

var (
	// ErrBadCallbackTable is returned when a module does not export a
	// complete, correctly typed scene callback table.
	ErrBadCallbackTable = errors.New("hotload: incomplete scene callback table")

	// ErrUnsupported is returned by PluginLoader on platforms without Go
	// plugin support.
	ErrUnsupported = errors.New("hotload: plugins are not supported on this platform")

	// ErrPluginPathReused is returned by PluginLoader when a build carries
	// the plugin path of a build already loaded into the process.
	ErrPluginPathReused = errors.New("hotload: plugin path already loaded; rebuild from the file list")
)

// Module is one opened build of a scene.
type Module interface {
	// Scene returns the callback table resolved from the module.
	Scene() livecode.Scene

	// Close releases the module handle.
	Close() error
}

// Loader opens the module found at a path.
type Loader interface {
	Open(path string) (Module, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(path string) (Module, error)

// Open calls f(path).
func (f LoaderFunc) Open(path string) (Module, error) {
	return f(path)
}

// StaticModule is a Module backed by an in-process scene, useful for
// embedding a scene in the host binary and for tests.
type StaticModule struct {
	S       livecode.Scene
	OnClose func() error
}

// Scene returns the wrapped scene.
func (m *StaticModule) Scene() livecode.Scene { return m.S }

// Close runs OnClose if set.
func (m *StaticModule) Close() error {
	if m.OnClose != nil {
		return m.OnClose()
	}
	return nil
}

// Symbol names resolved from a module.
const (
	// SymbolScene names a livecode.Scene variable or a func() livecode.Scene.
	SymbolScene = "Scene"

	SymbolInit   = "Init"
	SymbolDeinit = "Deinit"
	SymbolReload = "Reload"
	SymbolUnload = "Unload"
	SymbolEvent  = "Event"
	SymbolTick   = "Tick"
)

// LookupFunc resolves an exported symbol by name.
type LookupFunc func(name string) (any, error)

var sceneType = reflect.TypeFor[livecode.Scene]()

// ResolveScene builds a Scene from a module's exported symbols.
//
// A module either exports SymbolScene, holding a value that implements
// livecode.Scene (or a func() livecode.Scene), or exports the callback
// functions individually:
//
//	func Init(*livecode.Surface) (any, error)
//	func Deinit(*livecode.State)
//	func Reload(*livecode.State) error
//	func Unload(*livecode.State)
//	func Tick(*livecode.State, *livecode.Surface, livecode.AudioContext, float64) bool
//	func Event(*livecode.State, livecode.Event) bool // optional
//
// Any missing or mistyped piece rejects the whole module with
// ErrBadCallbackTable.
func ResolveScene(lookup LookupFunc) (livecode.Scene, error) {
	if sym, err := lookup(SymbolScene); err == nil && sym != nil {
		if s := sceneFromSymbol(sym); s != nil {
			return s, nil
		}
		return nil, fmt.Errorf("%w: %s has type %T", ErrBadCallbackTable, SymbolScene, sym)
	}
	return resolveFuncs(lookup)
}

// sceneFromSymbol unwraps the shapes a Scene symbol can take: plugin
// variables arrive as pointers to the declared type.
func sceneFromSymbol(sym any) livecode.Scene {
	switch v := sym.(type) {
	case *livecode.Scene:
		if v != nil && *v != nil {
			return *v
		}
		return nil
	case func() livecode.Scene:
		return v()
	case livecode.Scene:
		return v
	}

	rv := reflect.ValueOf(sym)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		elem := rv.Elem()
		if elem.Type().Implements(sceneType) && elem.CanInterface() {
			if s, ok := elem.Interface().(livecode.Scene); ok && s != nil {
				return s
			}
		}
	}
	return nil
}

func resolveFuncs(lookup LookupFunc) (livecode.Scene, error) {
	var (
		fs      funcScene
		missing []string
	)

	need := func(name string, bind func(any) bool) {
		sym, err := lookup(name)
		if err != nil || sym == nil {
			missing = append(missing, name)
			return
		}
		if !bind(sym) {
			missing = append(missing, fmt.Sprintf("%s (%T)", name, sym))
		}
	}

	need(SymbolInit, func(sym any) (ok bool) {
		fs.init, ok = sym.(func(*livecode.Surface) (any, error))
		return ok
	})
	need(SymbolDeinit, func(sym any) (ok bool) {
		fs.deinit, ok = sym.(func(*livecode.State))
		return ok
	})
	need(SymbolReload, func(sym any) (ok bool) {
		fs.reload, ok = sym.(func(*livecode.State) error)
		return ok
	})
	need(SymbolUnload, func(sym any) (ok bool) {
		fs.unload, ok = sym.(func(*livecode.State))
		return ok
	})
	need(SymbolTick, func(sym any) (ok bool) {
		fs.tick, ok = sym.(func(*livecode.State, *livecode.Surface, livecode.AudioContext, float64) bool)
		return ok
	})

	if sym, err := lookup(SymbolEvent); err == nil && sym != nil {
		ev, ok := sym.(func(*livecode.State, livecode.Event) bool)
		if !ok {
			missing = append(missing, fmt.Sprintf("%s (%T)", SymbolEvent, sym))
		}
		fs.event = ev
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing or mistyped %s", ErrBadCallbackTable, strings.Join(missing, ", "))
	}
	return &fs, nil
}

// funcScene is a Scene assembled from individually exported callbacks.
type funcScene struct {
	init   func(*livecode.Surface) (any, error)
	deinit func(*livecode.State)
	reload func(*livecode.State) error
	unload func(*livecode.State)
	event  func(*livecode.State, livecode.Event) bool
	tick   func(*livecode.State, *livecode.Surface, livecode.AudioContext, float64) bool
}

func (f *funcScene) Init(s *livecode.Surface) (any, error) { return f.init(s) }
func (f *funcScene) Deinit(st *livecode.State)             { f.deinit(st) }
func (f *funcScene) Reload(st *livecode.State) error       { return f.reload(st) }
func (f *funcScene) Unload(st *livecode.State)             { f.unload(st) }

func (f *funcScene) Event(st *livecode.State, ev livecode.Event) bool {
	if f.event == nil {
		return true
	}
	return f.event(st, ev)
}

func (f *funcScene) Tick(st *livecode.State, s *livecode.Surface, audio livecode.AudioContext, dt float64) bool {
	return f.tick(st, s, audio, dt)
}

// PluginLoader opens scenes built with `go build -buildmode=plugin`.
//
// The Go runtime caches plugins by path and can never unmap one, so every
// Open copies the file to a fresh shadow path first.
//
// The runtime also refuses a second plugin with the same plugin path. A
// scene built as a package (./examples/basic) always gets the package's
// import path, so only its first build loads. Build scenes from the file
// list instead:
//
//	go build -buildmode=plugin -o build/basic.so ./examples/basic/main.go
//
// which names the plugin after a hash of its sources, giving every edit a
// new plugin path. Rebuilding unchanged sources reproduces the old path and
// is rejected with ErrPluginPathReused; the running build is unaffected.
type PluginLoader struct {
	dir string
	gen atomic.Uint64
}

// NewPluginLoader creates a loader that keeps shadow copies in dir.
// An empty dir selects a per-process directory under os.TempDir.
func NewPluginLoader(dir string) *PluginLoader {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), fmt.Sprintf("livecode-%d", os.Getpid()))
	}
	return &PluginLoader{dir: dir}
}

// Dir returns the shadow copy directory.
func (l *PluginLoader) Dir() string {
	return l.dir
}

// Open copies the module to a shadow path, opens it and resolves its scene.
func (l *PluginLoader) Open(path string) (Module, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("hotload: shadow dir: %w", err)
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)
	shadow := filepath.Join(l.dir, fmt.Sprintf("%s.%d%s", base, l.gen.Add(1), ext))

	if err := copyFile(path, shadow); err != nil {
		return nil, fmt.Errorf("hotload: copy module: %w", err)
	}

	lookup, err := openPlugin(shadow)
	if err != nil {
		_ = os.Remove(shadow)
		if strings.Contains(err.Error(), "plugin already loaded") {
			return nil, fmt.Errorf("%w: %s: %w", ErrPluginPathReused, path, err)
		}
		return nil, fmt.Errorf("hotload: open %s: %w", path, err)
	}

	scene, err := ResolveScene(lookup)
	if err != nil {
		_ = os.Remove(shadow)
		return nil, err
	}

	return &pluginModule{scene: scene, shadow: shadow}, nil
}

// pluginModule is an opened plugin. Close removes the shadow copy; the code
// itself stays mapped until the process exits.
type pluginModule struct {
	scene  livecode.Scene
	shadow string
}

func (m *pluginModule) Scene() livecode.Scene { return m.scene }

func (m *pluginModule) Close() error {
	if err := os.Remove(m.shadow); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // module path is user-provided intentionally
	if err != nil {
		return err
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o755) //nolint:gosec // shadow path is derived from the module path
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
