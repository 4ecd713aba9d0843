package livecode

import (
	"io"

	"github.com/gogpu/livecode/resource"
)

// AudioContext is the audio collaborator handed to Tick. The runtime
// passes it through without inspecting it; it may be nil when no audio
// backend is configured.
type AudioContext interface{}

// Scene is the callback table a loadable module exports.
//
// The runtime calls every method on the frame thread, never concurrently.
// The same *State is passed to every generation of a scene, so a rebuilt
// scene picks up where the previous build left off.
type Scene interface {
	// Init creates the scene's application state on first load. The
	// returned value is stored in the State handle passed to later calls.
	Init(s *Surface) (any, error)

	// Deinit is called once at shutdown. It should release whatever the
	// state value owns; the State handle itself is released by the runtime.
	Deinit(state *State)

	// Reload is called on a freshly loaded build that inherits existing
	// state. It may migrate state.Value() with state.Set.
	Reload(state *State) error

	// Unload notifies the outgoing build that it is about to be replaced
	// or that the process is exiting.
	Unload(state *State)

	// Event receives a window event. Returning false stops the runtime.
	Event(state *State, ev Event) bool

	// Tick renders one frame. Returning false stops the runtime.
	Tick(state *State, s *Surface, audio AudioContext, delta float64) bool
}

// WindowHints is the window configuration a scene asks for.
// Zero fields leave the runtime's configuration unchanged.
type WindowHints struct {
	Width  int
	Height int
	Title  string
}

// WindowHinter is implemented by scenes that want a particular window size
// or title. The runtime applies the hints after the first successful load.
type WindowHinter interface {
	WindowHints() WindowHints
}

// BaseScene implements every Scene method as a no-op that keeps running.
// Embed it to implement only the callbacks a scene needs.
type BaseScene struct{}

func (BaseScene) Init(*Surface) (any, error)                       { return nil, nil }
func (BaseScene) Deinit(*State)                                    {}
func (BaseScene) Reload(*State) error                              { return nil }
func (BaseScene) Unload(*State)                                    {}
func (BaseScene) Event(*State, Event) bool                         { return true }
func (BaseScene) Tick(*State, *Surface, AudioContext, float64) bool { return true }

// State is the reload-surviving application state of a scene lineage.
//
// The runtime owns the handle: it is created around the value returned by
// Init, passed unchanged to every later callback of every build, and
// released only after Deinit. Scenes replace the value with Set, never the
// handle.
//
// Values that cross a rebuild must have types the host also knows (types
// from this module, the standard library, or other shared packages): a
// plugin's own types are distinct from the same types in the next build.
type State struct {
	value any

	// Resources holds named resources that live as long as the state.
	// Values with a Close method (io.Closer or a plain Close()) are closed
	// when they leave the table.
	Resources *resource.Table[any]
}

// NewState wraps an initial value in a state handle.
func NewState(value any) *State {
	return &State{
		value:     value,
		Resources: resource.New[any](0, closeResource),
	}
}

// Value returns the scene's state value.
func (s *State) Value() any {
	return s.value
}

// Set replaces the scene's state value.
func (s *State) Set(v any) {
	s.value = v
}

// Release clears the resources and drops the value. The runtime calls it
// after Deinit.
func (s *State) Release() {
	s.Resources.Clear()
	s.value = nil
}

// StateValue returns the state value as a T.
func StateValue[T any](s *State) (T, bool) {
	if s == nil {
		var zero T
		return zero, false
	}
	v, ok := s.value.(T)
	return v, ok
}

func closeResource(v any) {
	switch c := v.(type) {
	case io.Closer:
		_ = c.Close()
	case interface{ Close() }:
		c.Close()
	}
}
