// Command livecode runs a scene module and reloads it whenever it is
// rebuilt.
//
// Build a scene as a Go plugin, then point livecode at it:
//
//	go build -buildmode=plugin -o plasma.so ./examples/plasma/main.go
//	livecode -fps 30 plasma.so
//
// Rebuilding plasma.so the same way while livecode runs swaps the new code
// in without losing the scene's state. Build from the file list, not the
// package directory: only then does each edit get a fresh plugin path.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/gogpu/livecode"
	"github.com/gogpu/livecode/hotload"
	"github.com/gogpu/livecode/host"
	"github.com/gogpu/livecode/window"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// options holds command-line settings that are not part of host.Config.
type options struct {
	configPath string
	logFile    string
	shadowDir  string
}

func run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	cfg, opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "livecode: %v\n", err)
		return 2
	}

	backend := cfg.Backend
	if backend == host.BackendAuto {
		backend = host.BackendHeadless
		if isTTY(stdin) && isTTY(stdout) {
			backend = host.BackendTerminal
		}
	}

	logger, closeLog, err := newLogger(cfg, opts, backend, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "livecode: %v\n", err)
		return 2
	}
	defer closeLog()
	livecode.SetLogger(logger)
	livecode.SetShaderDefaults(cfg.Threads, cfg.TileSize)

	var win window.Window
	switch backend {
	case host.BackendTerminal:
		win = window.NewTerminal(stdin, stdout, window.WithTerminalLogger(logger))
	default:
		win = window.NewHeadless(
			window.WithSnapshots(cfg.SnapshotDir, cfg.SnapshotEvery),
			window.WithHeadlessLogger(logger),
		)
	}

	loader := hotload.NewPluginLoader(opts.shadowDir)
	defer func() {
		if err := os.RemoveAll(loader.Dir()); err != nil {
			logger.Warn("livecode: remove shadow dir", "dir", loader.Dir(), "err", err)
		}
	}()
	reloader := hotload.NewReloader(cfg.Scene, loader,
		hotload.WithLogger(logger),
		hotload.WithSettleDelay(cfg.SettleDelay),
	)

	rt, err := host.New(cfg, win, reloader, host.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(stderr, "livecode: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		logger.Error("livecode: stopped", "err", err)
		fmt.Fprintf(stderr, "livecode: %v\n", err)
		return 1
	}
	logger.Info("livecode: exit", "frames", rt.Frames())
	return 0
}

// parseArgs builds the configuration: defaults, then the TOML file given by
// -config, then flags set explicitly on the command line. A positional
// argument names the scene.
func parseArgs(args []string, stderr io.Writer) (host.Config, options, error) {
	var opts options
	def := host.DefaultConfig()

	fs := flag.NewFlagSet("livecode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: livecode [flags] scene.so\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", "", "TOML config file")
	fs.StringVar(&opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	fs.StringVar(&opts.shadowDir, "shadow-dir", "", "directory for shadow copies of loaded modules")

	var flagCfg host.Config
	fs.StringVar(&flagCfg.Scene, "scene", def.Scene, "scene module path")
	fs.IntVar(&flagCfg.Width, "width", def.Width, "window width")
	fs.IntVar(&flagCfg.Height, "height", def.Height, "window height")
	fs.StringVar(&flagCfg.Title, "title", def.Title, "window title")
	fs.StringVar(&flagCfg.Flags, "flags", def.Flags, "window flags (resizable|fullscreen|fullscreen-desktop|borderless|always-on-top)")
	fs.StringVar(&flagCfg.Backend, "backend", def.Backend, "window backend: auto, headless or terminal")
	fs.Float64Var(&flagCfg.TargetFPS, "fps", def.TargetFPS, "target frames per second (0 = unpaced)")
	fs.IntVar(&flagCfg.MaxFrames, "frames", def.MaxFrames, "stop after this many frames (0 = run until closed)")
	fs.IntVar(&flagCfg.Threads, "threads", def.Threads, "shader worker threads (0 = GOMAXPROCS)")
	fs.IntVar(&flagCfg.TileSize, "tile", def.TileSize, "shader tile size in pixels")
	fs.DurationVar(&flagCfg.SettleDelay, "settle", def.SettleDelay, "minimum age of a rebuilt module before it is loaded")
	fs.StringVar(&flagCfg.SnapshotDir, "snapshots", def.SnapshotDir, "headless: directory for BMP snapshots")
	fs.IntVar(&flagCfg.SnapshotEvery, "snapshot-every", def.SnapshotEvery, "headless: snapshot every Nth frame (0 = off)")
	fs.StringVar(&flagCfg.LogLevel, "log-level", def.LogLevel, "log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return host.Config{}, opts, err
	}

	cfg := def
	if opts.configPath != "" {
		loaded, err := host.LoadConfig(opts.configPath)
		if err != nil {
			return host.Config{}, opts, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "scene":
			cfg.Scene = flagCfg.Scene
		case "width":
			cfg.Width = flagCfg.Width
		case "height":
			cfg.Height = flagCfg.Height
		case "title":
			cfg.Title = flagCfg.Title
		case "flags":
			cfg.Flags = flagCfg.Flags
		case "backend":
			cfg.Backend = flagCfg.Backend
		case "fps":
			cfg.TargetFPS = flagCfg.TargetFPS
		case "frames":
			cfg.MaxFrames = flagCfg.MaxFrames
		case "threads":
			cfg.Threads = flagCfg.Threads
		case "tile":
			cfg.TileSize = flagCfg.TileSize
		case "settle":
			cfg.SettleDelay = flagCfg.SettleDelay
		case "snapshots":
			cfg.SnapshotDir = flagCfg.SnapshotDir
		case "snapshot-every":
			cfg.SnapshotEvery = flagCfg.SnapshotEvery
		case "log-level":
			cfg.LogLevel = flagCfg.LogLevel
		}
	})

	switch fs.NArg() {
	case 0:
	case 1:
		cfg.Scene = fs.Arg(0)
	default:
		return host.Config{}, opts, fmt.Errorf("expected one scene path, got %d arguments", fs.NArg())
	}

	if err := cfg.Validate(); err != nil {
		return host.Config{}, opts, err
	}
	return cfg, opts, nil
}

// newLogger writes text logs to stderr, or to -log-file. The terminal
// backend owns the screen, so without a log file it only keeps errors.
func newLogger(cfg host.Config, opts options, backend string, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}

	out, closeFn := stderr, func() {}
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // user-provided path
		if err != nil {
			return nil, nil, fmt.Errorf("log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	} else if backend == host.BackendTerminal {
		level = max(level, slog.LevelError)
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(h), closeFn, nil
}

func isTTY(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
