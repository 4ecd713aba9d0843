package livecode

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gogpu/livecode/internal/parallel"
)

// DefaultTileSize is the edge length of the square tiles a shader is split
// into when no WithTileSize option is given.
const DefaultTileSize = parallel.DefaultTileSize

var (
	// ErrShaderPanic wraps failures raised by a ShaderFunc during Apply.
	ErrShaderPanic = errors.New("livecode: shader panicked")

	// ErrNilShader is returned when applying a shader without a function.
	ErrNilShader = errors.New("livecode: nil shader function")
)

// ShaderFunc computes the color of one fragment.
//
// fragCoord is the pixel center (x+0.5, y+0.5), resolution is the surface
// size and time is the elapsed time in seconds. The function runs
// concurrently on many tiles, so it must not mutate shared state; userdata
// should be treated as read-only.
type ShaderFunc func(fragCoord, resolution Vec2, time float64, userdata any) RGBA

// Shader is a reusable per-pixel program with its own worker pool.
//
// The pool is not created by NewShader. By default it is created on the
// first Apply and kept for later frames until Close; with WithScopedPool a
// fresh pool is created and joined inside every Apply.
//
// A Shader must not be applied from several goroutines at once.
type Shader struct {
	fn      ShaderFunc
	threads int
	tileW   int
	tileH   int
	scoped  bool
	clock   func() float64

	pool *parallel.WorkerPool
}

// ShaderOption configures a Shader.
type ShaderOption func(*Shader)

// WithTileSize sets the tile size used to split the surface.
// Non-positive values select the SetShaderDefaults tile size, which is
// DefaultTileSize unless configured.
func WithTileSize(w, h int) ShaderOption {
	return func(sh *Shader) {
		sh.tileW, sh.tileH = w, h
	}
}

// WithScopedPool makes every Apply create, use and join its own pool.
func WithScopedPool() ShaderOption {
	return func(sh *Shader) {
		sh.scoped = true
	}
}

// WithClock replaces the time source used by Apply.
func WithClock(clock func() float64) ShaderOption {
	return func(sh *Shader) {
		if clock != nil {
			sh.clock = clock
		}
	}
}

// shaderDefaults holds the process-wide worker count and tile size set by
// the host from its configuration.
var shaderDefaults atomic.Pointer[[2]int]

// SetShaderDefaults sets the worker count used by NewShader when threads is
// 0 or negative, and the tile size used when no WithTileSize option is
// given. Zero values restore GOMAXPROCS and DefaultTileSize.
func SetShaderDefaults(threads, tileSize int) {
	shaderDefaults.Store(&[2]int{threads, tileSize})
}

func defaultThreadsAndTile() (int, int) {
	threads, tile := 0, DefaultTileSize
	if d := shaderDefaults.Load(); d != nil {
		if d[0] > 0 {
			threads = d[0]
		}
		if d[1] > 0 {
			tile = d[1]
		}
	}
	return threads, tile
}

// NewShader creates a shader running fn on threads workers.
// If threads is 0 or negative, the SetShaderDefaults worker count is used,
// which is GOMAXPROCS unless configured.
func NewShader(fn ShaderFunc, threads int, opts ...ShaderOption) *Shader {
	start := time.Now()
	defThreads, defTile := defaultThreadsAndTile()
	if threads <= 0 {
		threads = defThreads
	}
	sh := &Shader{
		fn:      fn,
		threads: threads,
		tileW:   defTile,
		tileH:   defTile,
		clock:   func() float64 { return time.Since(start).Seconds() },
	}
	for _, opt := range opts {
		opt(sh)
	}
	if sh.tileW <= 0 {
		sh.tileW = defTile
	}
	if sh.tileH <= 0 {
		sh.tileH = defTile
	}
	return sh
}

// Threads returns the worker count (0 means GOMAXPROCS).
func (sh *Shader) Threads() int {
	return sh.threads
}

// Apply evaluates the shader for every pixel of s using the shader's clock.
//
// If a shader function panics, the remaining tiles still run and the error
// wraps ErrShaderPanic. Tiles that completed keep their pixels; nothing is
// rolled back.
func (sh *Shader) Apply(s *Surface, userdata any) error {
	if sh == nil {
		return ErrNilShader
	}
	return sh.ApplyAt(s, sh.clock(), userdata)
}

// ApplyAt is Apply with an explicit time value.
func (sh *Shader) ApplyAt(s *Surface, t float64, userdata any) error {
	if sh == nil || sh.fn == nil {
		return ErrNilShader
	}
	if s == nil || s.width == 0 || s.height == 0 {
		return nil
	}

	res := s.Resolution()
	job := func(tile parallel.Tile) {
		sh.shadeTile(s, tile, res, t, userdata)
	}

	var err error
	if sh.scoped {
		err = parallel.Scope(sh.threads, func(p *parallel.WorkerPool) error {
			return parallel.ApplyTiles(s.width, s.height, sh.tileW, sh.tileH, p, job)
		})
	} else {
		pool, perr := sh.ensurePool()
		if perr != nil {
			return fmt.Errorf("livecode: shader pool: %w", perr)
		}
		err = parallel.ApplyTiles(s.width, s.height, sh.tileW, sh.tileH, pool, job)
	}

	if err == nil {
		return nil
	}
	var pe *parallel.PanicError
	if errors.As(err, &pe) {
		return fmt.Errorf("%w: %w", ErrShaderPanic, err)
	}
	return fmt.Errorf("livecode: shader pool: %w", err)
}

// shadeTile evaluates every fragment of one tile. Only pixels inside the
// tile are written.
func (sh *Shader) shadeTile(s *Surface, tile parallel.Tile, res Vec2, t float64, userdata any) {
	for y := tile.Y; y < tile.Y+tile.Height; y++ {
		for x := tile.X; x < tile.X+tile.Width; x++ {
			frag := Vec2{X: float64(x) + 0.5, Y: float64(y) + 0.5}
			s.setPacked(x, y, sh.fn(frag, res, t, userdata).Pack())
		}
	}
}

func (sh *Shader) ensurePool() (*parallel.WorkerPool, error) {
	if sh.pool != nil {
		return sh.pool, nil
	}
	pool, err := parallel.NewWorkerPool(sh.threads)
	if err != nil {
		return nil, err
	}
	Logger().Debug("shader pool started", "workers", pool.Workers())
	sh.pool = pool
	return pool, nil
}

// Close releases the shader's worker pool. The shader stays usable; the
// next Apply starts a new pool. Close is safe to call multiple times.
func (sh *Shader) Close() {
	if sh == nil || sh.pool == nil {
		return
	}
	sh.pool.Close()
	sh.pool = nil
	Logger().Debug("shader pool stopped")
}
