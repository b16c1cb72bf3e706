// Package cmd implements the detfm command line interface.
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/whit3rabbit/detfm/internal/config"
	"github.com/whit3rabbit/detfm/internal/detfm"
	"github.com/whit3rabbit/detfm/internal/pktnames"
	"github.com/whit3rabbit/detfm/internal/swf"
	"github.com/whit3rabbit/detfm/internal/unpack"
)

var (
	verboseCount int
	noUnpack     bool
	configPath   string
	compression  string
	inputPath    string
	enableProxy  bool
	proxyPort    uint16
)

const defaultProxyPort uint16 = 11801

// rootCmd is the single top-level command: detfm always runs the full
// read-unpack-deobfuscate-write pipeline in one shot, matching the
// original tool's flag surface rather than a git-style subcommand tree.
var rootCmd = &cobra.Command{
	Use:   "detfm <output>",
	Short: "Recover identities in an obfuscated Transformice client movie",
	Long: `detfm reads an obfuscated Transformice client movie (a local file or an
http(s) URL), recovers class, method, field, and packet-handler identities,
and writes the rewritten movie to <output>.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetfm,
}

func init() {
	rootCmd.Flags().CountVarP(&verboseCount, "verbose", "v", "increase output verbosity")
	rootCmd.Flags().BoolVar(&noUnpack, "no-unpack", false, "do not unpack the movie before deobfuscating")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a config file")
	rootCmd.Flags().StringVarP(&compression, "compression", "C", "none", "output compression: none, zlib, or lzma")
	rootCmd.Flags().StringVarP(&inputPath, "input", "i", "https://www.transformice.com/Transformice.swf", "file or url to deobfuscate")
	rootCmd.Flags().BoolVarP(&enableProxy, "enable-proxy", "P", false, "change the server's connect address to localhost")
	rootCmd.Flags().Uint16VarP(&proxyPort, "proxy-port", "p", 0, "port to rewrite the server's connect address to (implies --enable-proxy)")
}

// Execute runs the root command; it is the package's sole export, called
// from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func verbosityLevel(count int) zap.AtomicLevel {
	switch {
	case count <= 0:
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case count == 1:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	default:
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	}
}

// stageTimer records named checkpoints across the pipeline's stages
// (SUPPLEMENTED FEATURES "timing/stats reporting") and logs the
// per-stage deltas at Debug once the run finishes.
type stageTimer struct {
	boot   time.Time
	points []stagePoint
}

type stagePoint struct {
	name    string
	elapsed time.Duration
}

func newStageTimer() *stageTimer {
	return &stageTimer{boot: time.Now()}
}

func (t *stageTimer) mark(name string) {
	t.points = append(t.points, stagePoint{name: name, elapsed: time.Since(t.boot)})
}

func (t *stageTimer) report(log *zap.SugaredLogger) {
	last := time.Duration(0)
	for _, p := range t.points {
		log.Debugw("stage timing", "stage", p.name, "took", p.elapsed-last)
		last = p.elapsed
	}
	log.Debugw("total", "elapsed", time.Since(t.boot))
}

func runDetfm(cmd *cobra.Command, args []string) error {
	outputPath := args[0]
	cmd.SilenceUsage = true

	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = verbosityLevel(verboseCount)
	zapLogger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer zapLogger.Sync() //nolint:errcheck
	log := zapLogger.Sugar()

	timer := newStageTimer()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("no-unpack") {
		cfg.Input.NoUnpack = noUnpack
	}
	if cmd.Flags().Changed("compression") {
		comp, err := config.ParseCompression(compression)
		if err != nil {
			return err
		}
		cfg.Output.Compression = comp
	}
	if proxyPort != 0 {
		cfg.Proxy.Enable = true
		cfg.Proxy.Port = proxyPort
	} else if enableProxy {
		cfg.Proxy.Enable = true
		if cfg.Proxy.Port == 0 {
			cfg.Proxy.Port = defaultProxyPort
		}
	}

	log.Infow("reading file", "input", inputPath)
	movie, err := swf.FromFileContext(context.Background(), inputPath)
	timer.mark("reading file")
	if err != nil {
		return fmt.Errorf("reading file %q: %w", inputPath, err)
	}

	if !cfg.Input.NoUnpack && !movie.Frame1() {
		log.Info("unpacking")
		unpacked, err := unpack.UnpackMovie(movie)
		timer.mark("unpacking")
		if err != nil {
			return fmt.Errorf("unpacking failed: %w", err)
		}
		movie = unpacked
	}
	if !movie.Frame1() {
		return fmt.Errorf("invalid swf: frame 1 has no embedded ABC block")
	}

	dict, err := loadDictionary(cfg, log)
	if err != nil {
		return fmt.Errorf("loading packet dictionary: %w", err)
	}

	log.Info("analyzing methods and classes")
	symbols := movie.SymbolList()
	pipeline := detfm.New(movie.ABC, nil, dict, log)
	missing, err := pipeline.Run(symbols)
	timer.mark("analyzing, unscrambling, renaming")
	if err != nil {
		return fmt.Errorf("deobfuscating: %w", err)
	}
	if len(missing) > 0 {
		log.Warnw("some structural roles could not be found", "missing", missing)
	}
	movie.ApplySymbolNames(symbols)

	if cfg.Proxy.Enable {
		from, to, found := detfm.RewriteServerAddress(movie.Pool, cfg.Proxy.Port)
		if found {
			log.Infow("proxying", "from", from, "to", to)
		} else {
			log.Warn("server's connect address not found")
		}
		timer.mark("proxying")
	}

	log.Info("writing file")
	comp, err := resolveCompression(cfg.Output.Compression)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := movie.Write(&out, comp); err != nil {
		return fmt.Errorf("writing movie: %w", err)
	}
	if err := os.WriteFile(outputPath, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	timer.mark("writing file")

	timer.report(log)
	return nil
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
		return 0, fmt.Errorf("unknown compression %q", c)
	}
}

func loadDictionary(cfg *config.Config, log *zap.SugaredLogger) (*pktnames.Overlay, error) {
	var user *pktnames.Dictionary
	if path := cfg.Dictionary.OverlayPath; path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Warnw("invalid dictionary overlay file", "path", path, "error", err)
		} else if d, err := pktnames.FromJSON(data); err != nil {
			log.Warnw("invalid dictionary overlay contents", "path", path, "error", err)
		} else {
			user = d
		}
	}
	return pktnames.NewOverlay(user)
}
