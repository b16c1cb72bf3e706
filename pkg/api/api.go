// Package api provides the public API for running the deobfuscation
// pipeline as a library rather than through the CLI.
//
// Basic usage:
//
//	d, err := api.New(api.Options{ConfigPath: "detfm.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	output, err := d.Run(context.Background(), "game.swf")
//	if err != nil {
//	    log.Fatal(err)
//	}
package api

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/whit3rabbit/detfm/internal/config"
	"github.com/whit3rabbit/detfm/internal/detfm"
	"github.com/whit3rabbit/detfm/internal/pktnames"
	"github.com/whit3rabbit/detfm/internal/swf"
	"github.com/whit3rabbit/detfm/internal/unpack"
)

// PrintInfo forwards to internal/config.PrintInfo, respecting Testing mode.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Deobfuscator is the library entry point wrapping a loaded configuration
// and logger, reused across Run calls.
type Deobfuscator struct {
	Config *config.Config
	Log    *zap.SugaredLogger
}

// Options configures a new Deobfuscator.
type Options struct {
	// ConfigPath is a YAML config file path; empty uses defaults.
	ConfigPath string

	// Silent suppresses informational log output.
	Silent bool

	// ConfigOverrides allows overriding specific loaded config fields by
	// dotted key ("proxy.enable", "output.compression", ...). Reserved for
	// callers that don't want to hand-author a YAML file for one-off runs.
	ConfigOverrides map[string]interface{}
}

// New loads configuration per options and returns a ready-to-run
// Deobfuscator.
func New(options Options) (*Deobfuscator, error) {
	cfg, err := config.LoadConfig(options.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("api: loading configuration: %w", err)
	}
	if options.Silent {
		cfg.Logging.Silent = true
	}
	for key, value := range options.ConfigOverrides {
		if err := applyOverride(cfg, key, value); err != nil {
			return nil, fmt.Errorf("api: applying override %q: %w", key, err)
		}
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("api: building logger: %w", err)
	}

	return &Deobfuscator{Config: cfg, Log: log}, nil
}

func newLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	if cfg.Logging.Silent {
		return zap.NewNop().Sugar(), nil
	}
	zcfg := zap.NewDevelopmentConfig()
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	zcfg.Level = level
	logger, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func applyOverride(cfg *config.Config, key string, value interface{}) error {
	switch key {
	case "proxy.enable":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool")
		}
		cfg.Proxy.Enable = v
	case "proxy.port":
		v, ok := value.(uint16)
		if !ok {
			return fmt.Errorf("expected uint16")
		}
		cfg.Proxy.Port = v
	case "output.compression":
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string")
		}
		comp, err := config.ParseCompression(v)
		if err != nil {
			return err
		}
		cfg.Output.Compression = comp
	case "input.no_unpack":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool")
		}
		cfg.Input.NoUnpack = v
	default:
		return fmt.Errorf("unknown override key")
	}
	return nil
}

// Run deobfuscates the movie at inputPath (a filesystem path or http(s)
// URL) and returns the rewritten, recompressed movie bytes. ctx governs
// only the remote fetch inside swf.FromFileContext; the deobfuscation
// pipeline itself is synchronous CPU work.
func (d *Deobfuscator) Run(ctx context.Context, inputPath string) ([]byte, error) {
	movie, err := swf.FromFileContext(ctx, inputPath)
	if err != nil {
		return nil, fmt.Errorf("api: reading movie: %w", err)
	}

	if !d.Config.Input.NoUnpack && !movie.Frame1() {
		unpacked, err := unpack.UnpackMovie(movie)
		if err != nil {
			return nil, fmt.Errorf("api: unpacking wrapper movie: %w", err)
		}
		movie = unpacked
	}
	if !movie.Frame1() {
		return nil, fmt.Errorf("api: movie has no embedded ABC block")
	}

	dict, err := d.loadDictionary()
	if err != nil {
		return nil, fmt.Errorf("api: loading packet dictionary: %w", err)
	}

	symbols := movie.SymbolList()
	pipeline := detfm.New(movie.ABC, nil, dict, d.Log)
	missing, err := pipeline.Run(symbols)
	if err != nil {
		return nil, fmt.Errorf("api: deobfuscating: %w", err)
	}
	for _, role := range missing {
		d.Log.Warnw("structural role not found", "role", role)
	}
	movie.ApplySymbolNames(symbols)

	if d.Config.Proxy.Enable {
		from, to, found := detfm.RewriteServerAddress(movie.Pool, d.Config.Proxy.Port)
		if found {
			d.Log.Infow("rewrote proxy connect address", "from", from, "to", to)
		}
	}

	comp, err := resolveCompression(d.Config.Output.Compression)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := movie.Write(&out, comp); err != nil {
		return nil, fmt.Errorf("api: writing movie: %w", err)
	}
	return out.Bytes(), nil
}

func resolveCompression(c config.Compression) (swf.Compression, error) {
	switch c {
	case config.CompressionNone, "":
		return swf.CompressionNone, nil
	case config.CompressionZlib:
		return swf.CompressionZlib, nil
	case config.CompressionLzma:
		return swf.CompressionLzma, nil
	default:
		return 0, fmt.Errorf("api: unknown compression %q", c)
	}
}

func (d *Deobfuscator) loadDictionary() (*pktnames.Overlay, error) {
	var user *pktnames.Dictionary
	if path := d.Config.Dictionary.OverlayPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		user, err = pktnames.FromJSON(data)
		if err != nil {
			return nil, err
		}
	}
	return pktnames.NewOverlay(user)
}

// RunToFile is a convenience wrapper around Run that writes the result to
// outputPath.
func (d *Deobfuscator) RunToFile(ctx context.Context, inputPath, outputPath string) error {
	data, err := d.Run(ctx, inputPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("api: writing %s: %w", outputPath, err)
	}
	return nil
}
