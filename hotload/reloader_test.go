package hotload

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/gogpu/livecode"
)

// =============================================================================
// Test doubles
// =============================================================================

// counterState is the application state used by the instrumented scenes.
type counterState struct {
	Ticks int
	Color string
}

// recordingScene records every callback in a shared log and counts them.
type recordingScene struct {
	name string
	log  *[]string

	initErr   error
	reloadErr error
	panicOn   string

	inits, deinits, reloads, unloads, ticks, events int
}

func (p *recordingScene) record(cb string) {
	if p.log != nil {
		*p.log = append(*p.log, p.name+"."+cb)
	}
	if p.panicOn == cb {
		panic(p.name + " " + cb + " failed")
	}
}

func (p *recordingScene) Init(*livecode.Surface) (any, error) {
	p.inits++
	p.record("Init")
	if p.initErr != nil {
		return nil, p.initErr
	}
	return &counterState{Color: p.name}, nil
}

func (p *recordingScene) Deinit(*livecode.State) {
	p.deinits++
	p.record("Deinit")
}

func (p *recordingScene) Reload(st *livecode.State) error {
	p.reloads++
	p.record("Reload")
	if p.reloadErr != nil {
		return p.reloadErr
	}
	if cs, ok := livecode.StateValue[*counterState](st); ok {
		cs.Color = p.name
	}
	return nil
}

func (p *recordingScene) Unload(*livecode.State) {
	p.unloads++
	p.record("Unload")
}

func (p *recordingScene) Event(*livecode.State, livecode.Event) bool {
	p.events++
	return true
}

func (p *recordingScene) Tick(st *livecode.State, _ *livecode.Surface, _ livecode.AudioContext, _ float64) bool {
	p.ticks++
	if cs, ok := livecode.StateValue[*counterState](st); ok {
		cs.Ticks++
	}
	return true
}

// fakeBuild is what the fake loader returns for one fingerprint.
type fakeBuild struct {
	scene   livecode.Scene
	openErr error
	closed  int
}

// fakeWorkspace simulates a module file whose builds are keyed by size.
type fakeWorkspace struct {
	fp      Fingerprint
	statErr error
	builds  map[int64]*fakeBuild
	opens   int
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{builds: make(map[int64]*fakeBuild)}
}

// publish makes build the current content of the module file.
func (w *fakeWorkspace) publish(build *fakeBuild) {
	w.fp = Fingerprint{
		ModTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano() + w.fp.Size + 1,
		Size:    w.fp.Size + 1,
		Inode:   42,
	}
	w.builds[w.fp.Size] = build
}

func (w *fakeWorkspace) stat(string) (Fingerprint, error) {
	if w.statErr != nil {
		return Fingerprint{}, w.statErr
	}
	return w.fp, nil
}

func (w *fakeWorkspace) Open(string) (Module, error) {
	w.opens++
	b, ok := w.builds[w.fp.Size]
	if !ok {
		return nil, errors.New("no such build")
	}
	if b.openErr != nil {
		return nil, b.openErr
	}
	return &StaticModule{S: b.scene, OnClose: func() error {
		b.closed++
		return nil
	}}, nil
}

func newTestReloader(t *testing.T, ws *fakeWorkspace, opts ...Option) *Reloader {
	t.Helper()
	opts = append([]Option{WithFingerprinter(ws.stat)}, opts...)
	return NewReloader("scene.so", ws, opts...)
}

func newSurface(t *testing.T) *livecode.Surface {
	t.Helper()
	s, err := livecode.NewSurface(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func tick(r *Reloader, s *livecode.Surface, n int) {
	for range n {
		r.Scene().Tick(r.State(), s, nil, 1.0/60)
	}
}

// =============================================================================
// First load
// =============================================================================

func TestReloader_FirstLoad(t *testing.T) {
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a"}
	ws.publish(&fakeBuild{scene: a})

	r := newTestReloader(t, ws)
	if r.Phase() != Unloaded {
		t.Fatalf("initial phase = %v, want Unloaded", r.Phase())
	}

	changed, err := r.Refresh(newSurface(t))
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if !changed {
		t.Error("first Refresh should report a change")
	}
	if r.Phase() != Active {
		t.Errorf("phase = %v, want Active", r.Phase())
	}
	if r.Scene() != a {
		t.Error("Scene() should be the loaded scene")
	}
	if a.inits != 1 || a.reloads != 0 {
		t.Errorf("inits=%d reloads=%d, want 1 and 0", a.inits, a.reloads)
	}
	if r.State() == nil {
		t.Fatal("State() is nil after Init")
	}
	if r.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", r.Generation())
	}
	if r.Fingerprint() != ws.fp {
		t.Errorf("Fingerprint() = %v, want %v", r.Fingerprint(), ws.fp)
	}
}

func TestReloader_FirstLoadFailureIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		build *fakeBuild
	}{
		{"open error", &fakeBuild{openErr: errors.New("truncated binary")}},
		{"init error", &fakeBuild{scene: &recordingScene{name: "a", initErr: errors.New("no GPU")}}},
		{"init panic", &fakeBuild{scene: &recordingScene{name: "a", panicOn: "Init"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newFakeWorkspace()
			ws.publish(tt.build)
			r := newTestReloader(t, ws)

			changed, err := r.Refresh(newSurface(t))
			if !errors.Is(err, ErrNoModule) {
				t.Fatalf("Refresh error = %v, want ErrNoModule", err)
			}
			if changed {
				t.Error("failed load must not report a change")
			}
			if r.Phase() != Unloaded {
				t.Errorf("phase = %v, want Unloaded", r.Phase())
			}
			if r.Scene() != nil || r.State() != nil {
				t.Error("no scene or state should be visible after a failed first load")
			}
			if tt.build.scene != nil && tt.build.closed != 1 {
				t.Errorf("module closed %d times, want 1", tt.build.closed)
			}

			// The same broken build is not reopened, but still reported.
			opens := ws.opens
			if _, err := r.Refresh(newSurface(t)); !errors.Is(err, ErrNoModule) {
				t.Errorf("second Refresh error = %v, want ErrNoModule", err)
			}
			if ws.opens != opens {
				t.Errorf("broken build reopened: opens %d -> %d", opens, ws.opens)
			}
		})
	}
}

func TestReloader_FirstLoadMissingFile(t *testing.T) {
	ws := newFakeWorkspace()
	ws.statErr = os.ErrNotExist
	r := newTestReloader(t, ws)

	_, err := r.Refresh(newSurface(t))
	if !errors.Is(err, ErrNoModule) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Refresh error = %v, want ErrNoModule wrapping ErrNotExist", err)
	}
}

// =============================================================================
// Steady state
// =============================================================================

func TestReloader_NoChangeIsIdempotent(t *testing.T) {
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a"}
	ws.publish(&fakeBuild{scene: a})
	r := newTestReloader(t, ws)
	s := newSurface(t)

	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}

	for range 100 {
		changed, err := r.Refresh(s)
		if err != nil || changed {
			t.Fatalf("Refresh = (%v, %v), want (false, nil)", changed, err)
		}
	}

	if ws.opens != 1 {
		t.Errorf("opens = %d, want 1", ws.opens)
	}
	if a.inits != 1 || a.unloads != 0 || a.reloads != 0 {
		t.Errorf("inits=%d unloads=%d reloads=%d, want 1/0/0", a.inits, a.unloads, a.reloads)
	}
	if r.Generation() != 1 {
		t.Errorf("Generation() = %d, want 1", r.Generation())
	}
}

func TestReloader_StatErrorAfterLoadIsNoChange(t *testing.T) {
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a"}
	ws.publish(&fakeBuild{scene: a})
	r := newTestReloader(t, ws)
	s := newSurface(t)

	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}

	ws.statErr = os.ErrNotExist
	changed, err := r.Refresh(s)
	if err != nil || changed {
		t.Errorf("Refresh with vanished file = (%v, %v), want (false, nil)", changed, err)
	}
	if r.Scene() != a || r.Phase() != Active {
		t.Error("active scene must survive a vanished file")
	}
}

// =============================================================================
// Reload
// =============================================================================

func TestReloader_ReloadPreservesState(t *testing.T) {
	var log []string
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a", log: &log}
	buildA := &fakeBuild{scene: a}
	ws.publish(buildA)
	r := newTestReloader(t, ws)
	s := newSurface(t)

	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}
	tick(r, s, 3)
	stateBefore := r.State()

	b := &recordingScene{name: "b", log: &log}
	ws.publish(&fakeBuild{scene: b})

	changed, err := r.Refresh(s)
	if err != nil || !changed {
		t.Fatalf("Refresh = (%v, %v), want (true, nil)", changed, err)
	}

	if r.State() != stateBefore {
		t.Error("state handle must survive the swap")
	}
	cs, ok := livecode.StateValue[*counterState](r.State())
	if !ok {
		t.Fatal("state value lost its type")
	}
	if cs.Ticks != 3 {
		t.Errorf("Ticks = %d right after reload, want 3", cs.Ticks)
	}
	if cs.Color != "b" {
		t.Errorf("Color = %q, want %q (set by the new Reload hook)", cs.Color, "b")
	}

	if r.Scene() != b {
		t.Error("Scene() must resolve to the new build")
	}
	tick(r, s, 1)
	if b.ticks != 1 || a.ticks != 3 {
		t.Errorf("ticks a=%d b=%d, want 3 and 1", a.ticks, b.ticks)
	}
	if cs.Ticks != 4 {
		t.Errorf("Ticks = %d, want 4", cs.Ticks)
	}

	wantLog := []string{"a.Init", "a.Unload", "b.Reload"}
	if !slices.Equal(log, wantLog) {
		t.Errorf("callback order = %v, want %v", log, wantLog)
	}
	if buildA.closed != 1 {
		t.Errorf("old module closed %d times, want 1", buildA.closed)
	}
	if b.inits != 0 {
		t.Error("Init must not run on a reload")
	}
	if r.Generation() != 2 {
		t.Errorf("Generation() = %d, want 2", r.Generation())
	}
	if st := r.Stats(); st.Opens != 2 || st.Inits != 1 || st.Reloads != 1 || st.Unloads != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestReloader_FailedReloadIsolation(t *testing.T) {
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a"}
	ws.publish(&fakeBuild{scene: a})
	r := newTestReloader(t, ws)
	s := newSurface(t)

	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}
	tick(r, s, 5)
	state := r.State()
	fp := r.Fingerprint()

	loadErr := fmt.Errorf("%w: missing Tick", ErrBadCallbackTable)
	ws.publish(&fakeBuild{openErr: loadErr})

	changed, err := r.Refresh(s)
	if err != nil || changed {
		t.Fatalf("Refresh = (%v, %v), want (false, nil)", changed, err)
	}
	if !errors.Is(r.LastError(), ErrBadCallbackTable) {
		t.Errorf("LastError() = %v, want ErrBadCallbackTable", r.LastError())
	}
	if r.Scene() != a || r.State() != state || r.Fingerprint() != fp {
		t.Fatal("previous scene, state and fingerprint must be untouched")
	}
	if r.Phase() != Active {
		t.Errorf("phase = %v, want Active", r.Phase())
	}
	if a.unloads != 0 {
		t.Error("old scene must not be unloaded when the new build cannot be opened")
	}

	// Still callable.
	tick(r, s, 1)
	if cs, _ := livecode.StateValue[*counterState](r.State()); cs.Ticks != 6 {
		t.Errorf("Ticks = %d, want 6", cs.Ticks)
	}

	// The broken build is not retried every frame.
	opens := ws.opens
	for range 10 {
		_, _ = r.Refresh(s)
	}
	if ws.opens != opens {
		t.Errorf("rejected build reopened %d times", ws.opens-opens)
	}

	// Fixing the build picks it up.
	c := &recordingScene{name: "c"}
	ws.publish(&fakeBuild{scene: c})
	changed, err = r.Refresh(s)
	if err != nil || !changed {
		t.Fatalf("Refresh after fix = (%v, %v), want (true, nil)", changed, err)
	}
	if r.Scene() != c || r.LastError() != nil {
		t.Error("fixed build should be active with no error")
	}
	if cs, _ := livecode.StateValue[*counterState](r.State()); cs.Ticks != 6 {
		t.Errorf("Ticks = %d after fix, want 6", cs.Ticks)
	}
}

func TestReloader_ReloadHookFailureRevertsToPrevious(t *testing.T) {
	tests := []struct {
		name string
		next *recordingScene
	}{
		{"error", &recordingScene{name: "b", reloadErr: errors.New("incompatible state")}},
		{"panic", &recordingScene{name: "b", panicOn: "Reload"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var log []string
			ws := newFakeWorkspace()
			a := &recordingScene{name: "a", log: &log}
			ws.publish(&fakeBuild{scene: a})
			r := newTestReloader(t, ws)
			s := newSurface(t)
			if _, err := r.Refresh(s); err != nil {
				t.Fatal(err)
			}

			tt.next.log = &log
			buildB := &fakeBuild{scene: tt.next}
			ws.publish(buildB)

			changed, err := r.Refresh(s)
			if err != nil || changed {
				t.Fatalf("Refresh = (%v, %v), want (false, nil)", changed, err)
			}
			if r.Scene() != a {
				t.Error("previous scene must stay active")
			}
			if buildB.closed != 1 {
				t.Errorf("rejected module closed %d times, want 1", buildB.closed)
			}
			want := []string{"a.Init", "a.Unload", "b.Reload", "a.Reload"}
			if !slices.Equal(log, want) {
				t.Errorf("callback order = %v, want %v", log, want)
			}
			if r.Stats().Rejected != 1 {
				t.Errorf("Rejected = %d, want 1", r.Stats().Rejected)
			}
		})
	}
}

func TestReloader_UnloadPanicDoesNotBlockReload(t *testing.T) {
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a", panicOn: "Unload"}
	ws.publish(&fakeBuild{scene: a})
	r := newTestReloader(t, ws)
	s := newSurface(t)
	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}

	b := &recordingScene{name: "b"}
	ws.publish(&fakeBuild{scene: b})

	changed, err := r.Refresh(s)
	if err != nil || !changed {
		t.Fatalf("Refresh = (%v, %v), want (true, nil)", changed, err)
	}
	if r.Scene() != b {
		t.Error("new scene should be active despite the unload panic")
	}
}

func TestReloader_SettleDelay(t *testing.T) {
	ws := newFakeWorkspace()
	ws.publish(&fakeBuild{scene: &recordingScene{name: "a"}})

	now := ws.fp.Time()
	r := newTestReloader(t, ws,
		WithSettleDelay(200*time.Millisecond),
		WithClock(func() time.Time { return now }),
	)
	s := newSurface(t)

	// First load never waits.
	if changed, err := r.Refresh(s); err != nil || !changed {
		t.Fatalf("first Refresh = (%v, %v)", changed, err)
	}

	b := &recordingScene{name: "b"}
	ws.publish(&fakeBuild{scene: b})
	now = ws.fp.Time().Add(50 * time.Millisecond)

	if changed, _ := r.Refresh(s); changed {
		t.Fatal("a build younger than the settle delay must not be opened")
	}
	if ws.opens != 1 {
		t.Errorf("opens = %d, want 1", ws.opens)
	}

	now = ws.fp.Time().Add(time.Second)
	if changed, err := r.Refresh(s); err != nil || !changed {
		t.Fatalf("settled Refresh = (%v, %v), want (true, nil)", changed, err)
	}
	if r.Scene() != b {
		t.Error("settled build should be active")
	}
}

func TestReloader_ForceReload(t *testing.T) {
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a"}
	ws.publish(&fakeBuild{scene: a})
	r := newTestReloader(t, ws)
	s := newSurface(t)
	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}

	r.ForceReload()
	changed, err := r.Refresh(s)
	if err != nil || !changed {
		t.Fatalf("Refresh after ForceReload = (%v, %v), want (true, nil)", changed, err)
	}
	if a.unloads != 1 || a.reloads != 1 {
		t.Errorf("unloads=%d reloads=%d, want 1 and 1", a.unloads, a.reloads)
	}
}

func TestReloader_NilSceneFromLoader(t *testing.T) {
	r := NewReloader("scene.so",
		LoaderFunc(func(string) (Module, error) { return &StaticModule{}, nil }),
		WithFingerprinter(func(string) (Fingerprint, error) { return Fingerprint{Size: 1}, nil }),
	)

	_, err := r.Refresh(newSurface(t))
	if !errors.Is(err, ErrBadCallbackTable) || !errors.Is(err, ErrNoModule) {
		t.Errorf("Refresh error = %v, want ErrNoModule wrapping ErrBadCallbackTable", err)
	}
}

// =============================================================================
// Shutdown
// =============================================================================

func TestReloader_Shutdown(t *testing.T) {
	var log []string
	ws := newFakeWorkspace()
	a := &recordingScene{name: "a", log: &log}
	build := &fakeBuild{scene: a}
	ws.publish(build)
	r := newTestReloader(t, ws)
	s := newSurface(t)
	if _, err := r.Refresh(s); err != nil {
		t.Fatal(err)
	}

	closed := false
	r.State().Resources.Insert("font", closerFunc(func() error {
		closed = true
		return nil
	}))

	r.Shutdown()

	if want := []string{"a.Init", "a.Unload", "a.Deinit"}; !slices.Equal(log, want) {
		t.Errorf("callback order = %v, want %v", log, want)
	}
	if build.closed != 1 {
		t.Errorf("module closed %d times, want 1", build.closed)
	}
	if !closed {
		t.Error("state resources must be released on shutdown")
	}
	if r.Phase() != Unloaded || r.Scene() != nil || r.State() != nil {
		t.Error("Shutdown must leave the reloader Unloaded with no scene or state")
	}

	// Shutdown twice is harmless.
	r.Shutdown()
	if a.deinits != 1 {
		t.Errorf("deinits = %d, want 1", a.deinits)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestPhase_String(t *testing.T) {
	tests := map[Phase]string{
		Unloaded:      "Unloaded",
		Loaded:        "Loaded",
		Active:        "Active",
		ReloadPending: "ReloadPending",
		Phase(9):      "Phase(9)",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(p), got, want)
		}
	}
}
