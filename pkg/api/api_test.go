package api

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
	"github.com/whit3rabbit/detfm/internal/config"
	"github.com/whit3rabbit/detfm/internal/swf"
)

// writeTagHeader mirrors internal/swf's own unexported tag-header encoder;
// it's small enough to duplicate here rather than export it just for tests.
func writeTagHeader(out *bytes.Buffer, code uint16, length int) {
	var h [2]byte
	binary.LittleEndian.PutUint16(h[:], code<<6|uint16(length))
	out.Write(h[:])
}

// buildMovieFile writes a minimal but valid uncompressed SWF to a temp file:
// an empty embedded ABC block (DoABC, tag code 82) and an empty SymbolClass
// table (tag code 76), enough for the full read-unpack-deobfuscate-write
// pipeline to run end to end without finding any structural roles.
func buildMovieFile(t *testing.T) string {
	t.Helper()

	pool := abc.NewConstantPool()
	a := abc.NewAbc(pool)
	abcBytes, err := abc.WriteABC(a)
	require.NoError(t, err)

	var doABC bytes.Buffer
	doABC.Write([]byte{0, 0, 0, 0}) // flags
	doABC.WriteByte(0)              // empty name, nul-terminated
	doABC.Write(abcBytes)

	var symbolClass bytes.Buffer
	symbolClass.Write([]byte{0, 0}) // zero symbols

	var tags bytes.Buffer
	writeTagHeader(&tags, 82, doABC.Len())
	tags.Write(doABC.Bytes())
	writeTagHeader(&tags, 76, symbolClass.Len())
	tags.Write(symbolClass.Bytes())
	writeTagHeader(&tags, 0, 0) // end tag

	var body bytes.Buffer
	body.Write([]byte{0x00, 0, 0, 0, 0}) // nbits=0 RECT, frame rate, frame count
	body.Write(tags.Bytes())

	var out bytes.Buffer
	out.WriteString("FWS")
	var head [5]byte
	head[0] = 6 // version
	binary.LittleEndian.PutUint32(head[1:], uint32(8+body.Len()))
	out.Write(head[:])
	out.Write(body.Bytes())

	path := filepath.Join(t.TempDir(), "movie.swf")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))
	return path
}

func TestNewDefaultOptions(t *testing.T) {
	d, err := New(Options{})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, config.CompressionNone, d.Config.Output.Compression)
	assert.False(t, d.Config.Proxy.Enable)
}

func TestNewSilentSuppressesLogging(t *testing.T) {
	d, err := New(Options{Silent: true})
	require.NoError(t, err)
	assert.True(t, d.Config.Logging.Silent)
}

func TestNewWithConfigFile(t *testing.T) {
	configContent := "proxy:\n  enable: true\n  port: 12345\noutput:\n  compression: zlib\n"
	path := filepath.Join(t.TempDir(), "detfm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configContent), 0o644))

	d, err := New(Options{ConfigPath: path})
	require.NoError(t, err)
	assert.True(t, d.Config.Proxy.Enable)
	assert.Equal(t, uint16(12345), d.Config.Proxy.Port)
	assert.Equal(t, config.CompressionZlib, d.Config.Output.Compression)
}

func TestNewMissingExplicitConfigFails(t *testing.T) {
	_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestNewConfigOverrides(t *testing.T) {
	d, err := New(Options{ConfigOverrides: map[string]interface{}{
		"proxy.enable":       true,
		"proxy.port":         uint16(9999),
		"output.compression": "lzma",
		"input.no_unpack":    true,
	}})
	require.NoError(t, err)
	assert.True(t, d.Config.Proxy.Enable)
	assert.Equal(t, uint16(9999), d.Config.Proxy.Port)
	assert.Equal(t, config.CompressionLzma, d.Config.Output.Compression)
	assert.True(t, d.Config.Input.NoUnpack)
}

func TestNewConfigOverridesRejectsWrongType(t *testing.T) {
	_, err := New(Options{ConfigOverrides: map[string]interface{}{
		"proxy.port": "not-a-uint16",
	}})
	assert.Error(t, err)
}

func TestNewConfigOverridesRejectsUnknownKey(t *testing.T) {
	_, err := New(Options{ConfigOverrides: map[string]interface{}{
		"nonsense.key": true,
	}})
	assert.Error(t, err)
}

func TestResolveCompression(t *testing.T) {
	cases := map[config.Compression]swf.Compression{
		config.CompressionNone: swf.CompressionNone,
		config.CompressionZlib: swf.CompressionZlib,
		config.CompressionLzma: swf.CompressionLzma,
		"":                     swf.CompressionNone,
	}
	for in, want := range cases {
		got, err := resolveCompression(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := resolveCompression("bogus")
	assert.Error(t, err)
}

func TestLoadDictionaryWithoutOverlay(t *testing.T) {
	d, err := New(Options{Silent: true})
	require.NoError(t, err)
	overlay, err := d.loadDictionary()
	require.NoError(t, err)
	assert.NotNil(t, overlay)
}

func TestLoadDictionaryMissingOverlayFileErrors(t *testing.T) {
	d, err := New(Options{Silent: true})
	require.NoError(t, err)
	d.Config.Dictionary.OverlayPath = filepath.Join(t.TempDir(), "missing.json")
	_, err = d.loadDictionary()
	assert.Error(t, err)
}

func TestRunRoundTrip(t *testing.T) {
	moviePath := buildMovieFile(t)

	d, err := New(Options{Silent: true})
	require.NoError(t, err)
	d.Config.Input.NoUnpack = true

	out, err := d.Run(context.Background(), moviePath)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	roundTripped, err := swf.FromReader(bytes.NewReader(out))
	require.NoError(t, err)
	assert.True(t, roundTripped.Frame1())
}

func TestRunToFileWritesOutput(t *testing.T) {
	moviePath := buildMovieFile(t)
	outputPath := filepath.Join(t.TempDir(), "out.swf")

	d, err := New(Options{Silent: true})
	require.NoError(t, err)
	d.Config.Input.NoUnpack = true

	require.NoError(t, d.RunToFile(context.Background(), moviePath, outputPath))

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestRunWithoutEmbeddedABCFails(t *testing.T) {
	// A bare FWS header with no tags at all: no DoABC tag means no ABC to
	// deobfuscate, and with unpacking disabled Run has nothing to fall
	// back to.
	var tags bytes.Buffer
	writeTagHeader(&tags, 0, 0)

	var body bytes.Buffer
	body.Write([]byte{0x00, 0, 0, 0, 0})
	body.Write(tags.Bytes())

	var out bytes.Buffer
	out.WriteString("FWS")
	var head [5]byte
	head[0] = 6
	binary.LittleEndian.PutUint32(head[1:], uint32(8+body.Len()))
	out.Write(head[:])
	out.Write(body.Bytes())

	path := filepath.Join(t.TempDir(), "empty.swf")
	require.NoError(t, os.WriteFile(path, out.Bytes(), 0o644))

	d, err := New(Options{Silent: true})
	require.NoError(t, err)
	d.Config.Input.NoUnpack = true

	_, err = d.Run(context.Background(), path)
	assert.Error(t, err)
}

func TestPrintInfoRespectsTestingFlag(t *testing.T) {
	original := config.Testing
	defer func() { config.Testing = original }()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	origStdout := os.Stdout
	os.Stdout = w

	config.Testing = false
	PrintInfo("visible: %s\n", "yes")

	config.Testing = true
	PrintInfo("hidden: %s\n", "no")

	require.NoError(t, w.Close())
	os.Stdout = origStdout

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "visible: yes")
	assert.NotContains(t, buf.String(), "hidden: no")
}
