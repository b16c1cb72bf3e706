package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, CompressionNone, cfg.Output.Compression)
	assert.False(t, cfg.Proxy.Enable)
	assert.Equal(t, uint16(11801), cfg.Proxy.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadConfigMissingDefaultPathIsNotError(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigMissingExplicitPathErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	content := `
input:
  no_unpack: true
output:
  compression: zlib
  path: out.swf
proxy:
  enable: true
  port: 9001
dictionary:
  overlay_path: overlay.json
logging:
  level: debug
  silent: true
`
	path := filepath.Join(t.TempDir(), "detfm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Input.NoUnpack)
	assert.Equal(t, CompressionZlib, cfg.Output.Compression)
	assert.True(t, cfg.Proxy.Enable)
	assert.Equal(t, uint16(9001), cfg.Proxy.Port)
	assert.Equal(t, "overlay.json", cfg.Dictionary.OverlayPath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Silent)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Proxy.Enable = true
	cfg.Proxy.Port = 4242
	cfg.Output.Compression = CompressionLzma

	path := filepath.Join(t.TempDir(), "nested", "detfm.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Proxy, loaded.Proxy)
	assert.Equal(t, cfg.Output.Compression, loaded.Output.Compression)
}

func TestParseCompression(t *testing.T) {
	cases := map[string]Compression{
		"":     CompressionNone,
		"none": CompressionNone,
		"NONE": CompressionNone,
		"zlib": CompressionZlib,
		"cws":  CompressionZlib,
		"lzma": CompressionLzma,
		"zws":  CompressionLzma,
		" lzma ": CompressionLzma,
	}
	for in, want := range cases {
		got, err := ParseCompression(in)
		require.NoError(t, err, "ParseCompression(%q)", in)
		assert.Equal(t, want, got)
	}

	_, err := ParseCompression("bogus")
	assert.Error(t, err)
}

func TestPrintInfoRespectsTestingFlag(t *testing.T) {
	original := Testing
	defer func() { Testing = original }()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStdout := os.Stdout
	os.Stdout = w

	Testing = false
	PrintInfo("visible\n")
	Testing = true
	PrintInfo("hidden\n")

	require.NoError(t, w.Close())
	os.Stdout = origStdout

	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	assert.Equal(t, "visible\n", string(buf[:n]))
}
