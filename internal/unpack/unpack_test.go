package unpack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/swf"
)

func binaryDataTag(id uint16, payload []byte) swf.Tag {
	body := make([]byte, 6+len(payload))
	body[0] = byte(id)
	body[1] = byte(id >> 8)
	copy(body[6:], payload)
	return swf.Tag{Code: tagCodeDefineBinaryData, Body: body}
}

func TestNamedPart(t *testing.T) {
	cases := []struct {
		name       string
		wantPrefix string
		wantIdx    int
		wantOK     bool
	}{
		{"Deploy12", "Deploy", 12, true},
		{"Deploy0", "Deploy", 0, true},
		{"Deploy", "", 0, false},
		{"12", "", 0, false},
		{"Deploy012", "Deploy0", 12, true},
	}
	for _, c := range cases {
		prefix, idx, ok := namedPart(c.name)
		assert.Equal(t, c.wantOK, ok, "namedPart(%q) ok", c.name)
		if c.wantOK {
			assert.Equal(t, c.wantPrefix, prefix)
			assert.Equal(t, c.wantIdx, idx)
		}
	}
}

func TestUnpackReassemblesContiguousRun(t *testing.T) {
	movie := &swf.Movie{
		Tags: []swf.Tag{
			binaryDataTag(1, []byte("AAA")),
			binaryDataTag(2, []byte("BBB")),
			binaryDataTag(3, []byte("CCC")),
		},
		Symbols: map[uint16]string{
			1: "Deploy0",
			2: "Deploy1",
			3: "Deploy2",
		},
	}

	data, missing, err := Unpack(movie)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, "AAABBBCCC", string(data))
}

func TestUnpackPicksLargestGroupAndIgnoresUnnamedOrUnnumbered(t *testing.T) {
	movie := &swf.Movie{
		Tags: []swf.Tag{
			binaryDataTag(1, []byte("A")),
			binaryDataTag(2, []byte("B")),
			binaryDataTag(3, []byte("X")), // small unrelated single-part group
			binaryDataTag(4, []byte("ignored, no symbol name")),
		},
		Symbols: map[uint16]string{
			1: "Deploy0",
			2: "Deploy1",
			3: "Other0",
		},
	}

	data, missing, err := Unpack(movie)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Equal(t, "AB", string(data))
}

func TestUnpackReportsFirstMissingIndex(t *testing.T) {
	movie := &swf.Movie{
		Tags: []swf.Tag{
			binaryDataTag(1, []byte("A")),
			binaryDataTag(3, []byte("C")),
		},
		Symbols: map[uint16]string{
			1: "Deploy0",
			3: "Deploy2",
		},
	}

	_, missing, err := Unpack(movie)
	require.NoError(t, err)
	assert.Equal(t, "Deploy1", missing)
}

func TestUnpackMovieErrorsOnMissingPart(t *testing.T) {
	movie := &swf.Movie{
		Tags: []swf.Tag{
			binaryDataTag(1, []byte("A")),
			binaryDataTag(3, []byte("C")),
		},
		Symbols: map[uint16]string{
			1: "Deploy0",
			3: "Deploy2",
		},
	}

	_, err := UnpackMovie(movie)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Deploy1")
}

func TestNewErrorsWithNoBinaryData(t *testing.T) {
	movie := &swf.Movie{Tags: []swf.Tag{{Code: 1, Body: []byte{0}}}}
	_, err := New(movie)
	assert.Error(t, err)
}

func TestNewErrorsWhenNoSymbolNames(t *testing.T) {
	movie := &swf.Movie{
		Tags:    []swf.Tag{binaryDataTag(1, []byte("A"))},
		Symbols: map[uint16]string{},
	}
	_, err := New(movie)
	assert.Error(t, err)
}
