// Package livecode is a live-coding host for software rendered scenes.
//
// # Overview
//
// A scene is a Go plugin that exports a [Scene] value. The host opens a
// window, loads the plugin, and drives its callbacks once per frame. When
// the plugin file is rebuilt, the host swaps in the new code while the
// application state (a [State] handle) stays alive, so an edited scene
// continues from where the previous build stopped.
//
// # Quick Start
//
//	package main
//
//	import "github.com/gogpu/livecode"
//
//	type scene struct{ livecode.BaseScene }
//
//	var Scene livecode.Scene = scene{}
//
//	func (scene) Tick(st *livecode.State, s *livecode.Surface, _ livecode.AudioContext, dt float64) bool {
//		s.Clear(livecode.Hex("#336699"))
//		return true
//	}
//
//	func main() {}
//
// Build it as a plugin and point the host at the output:
//
//	go build -buildmode=plugin -o build/scene.so ./myscene/main.go
//	livecode build/scene.so
//
// Rebuild with the same command while the host runs to reload it. Listing
// the source files, rather than naming the package directory, gives every
// edited build its own plugin path; a process cannot open two plugins that
// share one.
//
// # Lifecycle
//
// Init runs once on the first build and creates the state value. Every
// later build receives the existing state in Reload, after the outgoing
// build saw Unload. A build that fails to load or whose Reload fails is
// rejected; the previous build keeps running. Deinit runs once at exit.
//
// Values kept in the state must have types the host knows as well: types
// from this module or the standard library. Named types declared inside a
// plugin differ between builds.
//
// # Drawing
//
// A [Surface] is an 8-bit RGBA framebuffer with the origin at the top left.
// Scenes draw with [Surface.SetPixel], [Surface.FillRect] and friends, or
// run a [Shader]: a per-pixel function evaluated over tiles of the surface
// by a worker pool.
//
// # Sub-packages
//
//   - hotload: file fingerprinting, plugin loading and the reload state machine
//   - host: frame loop, configuration and timer
//   - window: headless and terminal presentation backends
//   - resource: named resource table owned by a state
//
// # Logging
//
// The library is silent by default. Call [SetLogger] with a *slog.Logger
// to see lifecycle and reload diagnostics.
package livecode
