package host

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/livecode"
	"github.com/gogpu/livecode/window"
)

// Backend names.
const (
	BackendAuto     = "auto"
	BackendHeadless = "headless"
	BackendTerminal = "terminal"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("host: invalid config")

// Config holds the runtime settings. Zero values of optional fields mean
// "unlimited" or "default" as documented per field.
type Config struct {
	// Scene is the path of the module to load and watch.
	Scene string `toml:"scene"`

	// Initial window size and title. A scene's WindowHints override them.
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	Title  string `toml:"title"`
	Flags  string `toml:"flags"`

	// Backend selects the window: auto, headless or terminal.
	Backend string `toml:"backend"`

	// TargetFPS paces the loop; 0 runs unpaced.
	TargetFPS float64 `toml:"target_fps"`
	// MaxFrames stops the loop after that many frames; 0 runs until closed.
	MaxFrames int `toml:"max_frames"`

	// Threads and TileSize are handed to scenes that build shaders.
	Threads  int `toml:"threads"`
	TileSize int `toml:"tile_size"`

	// SettleDelay is how old a rebuilt module must be before it is opened.
	SettleDelay time.Duration `toml:"settle_delay"`

	// SnapshotDir and SnapshotEvery enable BMP snapshots in headless mode.
	SnapshotDir   string `toml:"snapshot_dir"`
	SnapshotEvery int    `toml:"snapshot_every"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Width:       800,
		Height:      600,
		Title:       "livecode",
		Flags:       "resizable",
		Backend:     BackendAuto,
		TargetFPS:   60,
		TileSize:    livecode.DefaultTileSize,
		SettleDelay: 100 * time.Millisecond,
		LogLevel:    "info",
	}
}

// LoadConfig reads a TOML file over DefaultConfig. Unknown keys are
// rejected so that typos do not pass silently.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("host: config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: %s: unknown keys %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Scene == "":
		return fmt.Errorf("%w: scene path is empty", ErrInvalidConfig)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.Width > livecode.MaxSurfaceDimension || c.Height > livecode.MaxSurfaceDimension:
		return fmt.Errorf("%w: window size %dx%d exceeds %d", ErrInvalidConfig, c.Width, c.Height, livecode.MaxSurfaceDimension)
	case c.TargetFPS < 0:
		return fmt.Errorf("%w: target_fps %v", ErrInvalidConfig, c.TargetFPS)
	case c.MaxFrames < 0:
		return fmt.Errorf("%w: max_frames %d", ErrInvalidConfig, c.MaxFrames)
	case c.Threads < 0:
		return fmt.Errorf("%w: threads %d", ErrInvalidConfig, c.Threads)
	case c.TileSize < 0:
		return fmt.Errorf("%w: tile_size %d", ErrInvalidConfig, c.TileSize)
	case c.SettleDelay < 0:
		return fmt.Errorf("%w: settle_delay %v", ErrInvalidConfig, c.SettleDelay)
	case c.SnapshotEvery < 0:
		return fmt.Errorf("%w: snapshot_every %d", ErrInvalidConfig, c.SnapshotEvery)
	}

	switch c.Backend {
	case BackendAuto, BackendHeadless, BackendTerminal:
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalidConfig, c.Backend)
	}
	if _, err := c.WindowFlags(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log_level: %w", ErrInvalidConfig, err)
	}
	return nil
}

// WindowFlags parses Flags.
func (c Config) WindowFlags() (window.Flags, error) {
	return window.ParseFlags(c.Flags)
}

// SlogLevel parses LogLevel. An empty level means info.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// FrameInterval returns the pacing interval for TargetFPS, or 0 if unpaced.
func (c Config) FrameInterval() time.Duration {
	if c.TargetFPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.TargetFPS)
}
