// Package config loads and validates the settings the deobfuscation
// pipeline runs with: where the input movie comes from, where the output
// goes, whether a proxy rewrite or wrapper unpack should run, and how
// verbose the run should be.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Compression names the three wire-compatible SWF compression modes a
// user can request on the command line.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZlib Compression = "zlib"
	CompressionLzma Compression = "lzma"
)

// InputConfig describes where the movie to deobfuscate comes from.
type InputConfig struct {
	URL      string `yaml:"url,omitempty" mapstructure:"url"`
	Path     string `yaml:"path,omitempty" mapstructure:"path"`
	NoUnpack bool   `yaml:"no_unpack" mapstructure:"no_unpack"`
}

// OutputConfig describes where the deobfuscated movie is written and how
// it is recompressed.
type OutputConfig struct {
	Path        string      `yaml:"path" mapstructure:"path"`
	Compression Compression `yaml:"compression" mapstructure:"compression"`
}

// ProxyConfig controls the connect-address rewrite (spec.md 6's
// "--enable-proxy"/"--proxy-port" pair): when Enable is set, the first
// pool string shaped like a host:port literal is rewritten to
// "127.0.0.1:<Port>".
type ProxyConfig struct {
	Enable bool   `yaml:"enable" mapstructure:"enable"`
	Port   uint16 `yaml:"port" mapstructure:"port"`
}

// DictionaryConfig points at a user-supplied packet-name overlay, layered
// on top of the built-in dictionaries (internal/pktnames.Overlay).
type DictionaryConfig struct {
	OverlayPath string `yaml:"overlay_path,omitempty" mapstructure:"overlay_path"`
}

// LoggingConfig controls verbosity of the zap logger the CLI constructs.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Silent bool   `yaml:"silent" mapstructure:"silent"`
}

// Config holds every setting the deobfuscation pipeline needs, loaded
// from a YAML file (via viper) and overridden by whichever CLI flags the
// user actually set.
type Config struct {
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Proxy      ProxyConfig      `yaml:"proxy" mapstructure:"proxy"`
	Dictionary DictionaryConfig `yaml:"dictionary" mapstructure:"dictionary"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

var (
	// Testing suppresses PrintInfo output during test runs.
	Testing bool
)

// PrintInfo writes a line to stdout unless Testing is set, mirroring the
// teacher's Testing-gated debug dump.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// DefaultConfig returns the configuration a bare run with no flags or
// config file would use.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Compression: CompressionNone,
		},
		Proxy: ProxyConfig{
			Enable: false,
			Port:   11801,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Silent: false,
		},
	}
}

// LoadConfig reads configPath (defaulting to "detfm.yaml") through viper
// if it exists, unmarshalling over DefaultConfig's values, and returns
// the filled Config. A missing default path is not an error; a missing
// explicitly-named path is.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = "detfm.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		v := viper.New()
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("config: unmarshalling %s: %w", configPath, err)
		}
		if !cfg.Logging.Silent {
			PrintInfo("Info: loaded configuration from %s\n", configPath)
		}
	} else if os.IsNotExist(err) {
		if configPath != "detfm.yaml" {
			return nil, fmt.Errorf("config: specified config file not found: %s", configPath)
		}
	} else {
		return nil, fmt.Errorf("config: checking %s: %w", configPath, err)
	}

	if cfg.Output.Path != "" {
		cfg.Output.Path = filepath.Clean(cfg.Output.Path)
	}
	return cfg, nil
}

// SaveConfig writes cfg to path as YAML, creating parent directories as
// needed.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshalling: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	PrintInfo("Info: saved configuration to %s\n", path)
	return nil
}

// ParseCompression maps a CLI/config string to a Compression, defaulting
// to CompressionNone for an empty string.
func ParseCompression(value string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "none":
		return CompressionNone, nil
	case "zlib", "cws":
		return CompressionZlib, nil
	case "lzma", "zws":
		return CompressionLzma, nil
	default:
		return "", fmt.Errorf("config: unknown compression %q", value)
	}
}
