package swf

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
)

func buildMinimalMovieBytes(t *testing.T, sig string) []byte {
	t.Helper()

	pool := abc.NewConstantPool()
	a := abc.NewAbc(pool)
	abcBytes, err := abc.WriteABC(a)
	require.NoError(t, err)

	var doABC bytes.Buffer
	doABC.Write([]byte{0, 0, 0, 0})
	doABC.WriteByte(0)
	doABC.Write(abcBytes)

	var symbolClass bytes.Buffer
	symbolClass.Write([]byte{1, 0}) // one symbol
	symbolClass.Write([]byte{7, 0}) // character id 7
	symbolClass.WriteString("MainDocument")
	symbolClass.WriteByte(0)

	var tags bytes.Buffer
	writeTagHeader(&tags, tagCodeDoABC, doABC.Len())
	tags.Write(doABC.Bytes())
	writeTagHeader(&tags, tagCodeSymbolClass, symbolClass.Len())
	tags.Write(symbolClass.Bytes())
	writeTagHeader(&tags, tagCodeEnd, 0)

	var body bytes.Buffer
	body.Write([]byte{0x00, 0, 0, 0, 0})
	body.Write(tags.Bytes())

	var out bytes.Buffer
	out.WriteString(sig)
	var head [5]byte
	head[0] = 6
	binary.LittleEndian.PutUint32(head[1:], uint32(8+body.Len()))
	out.Write(head[:])
	out.Write(body.Bytes())
	return out.Bytes()
}

func TestFromReaderParsesDoABCAndSymbolClass(t *testing.T) {
	m, err := FromReader(bytes.NewReader(buildMinimalMovieBytes(t, "FWS")))
	require.NoError(t, err)
	require.True(t, m.Frame1())
	assert.Equal(t, CompressionNone, m.OriginalCompression)
	assert.Equal(t, "MainDocument", m.Symbols[7])
}

func TestWriteRoundTripsUncompressed(t *testing.T) {
	m, err := FromReader(bytes.NewReader(buildMinimalMovieBytes(t, "FWS")))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, m.Write(&out, CompressionNone))

	reread, err := FromReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.True(t, reread.Frame1())
	assert.Equal(t, "MainDocument", reread.Symbols[7])
}

func TestWriteOriginalCompressionReusesSourceCompression(t *testing.T) {
	m, err := FromReader(bytes.NewReader(buildMinimalMovieBytes(t, "FWS")))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, m.Write(&out, CompressionOriginal))
	assert.Equal(t, []byte("FWS"), out.Bytes()[:3])
}

func TestApplySymbolNamesUpdatesTable(t *testing.T) {
	m, err := FromReader(bytes.NewReader(buildMinimalMovieBytes(t, "FWS")))
	require.NoError(t, err)

	symbols := m.SymbolList()
	require.Len(t, symbols, 1)
	symbols[0].Name = "Renamed"
	m.ApplySymbolNames(symbols)

	assert.Equal(t, "Renamed", m.Symbols[7])
}

func TestFromReaderRejectsBadSignature(t *testing.T) {
	_, err := FromReader(bytes.NewReader([]byte("XXXabcde")))
	assert.Error(t, err)
}

func TestFrame1FalseWithoutEmbeddedABC(t *testing.T) {
	var tags bytes.Buffer
	writeTagHeader(&tags, tagCodeEnd, 0)

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

	m, err := FromReader(bytes.NewReader(out.Bytes()))
	require.NoError(t, err)
	assert.False(t, m.Frame1())
}
