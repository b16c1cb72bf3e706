package detfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
)

func TestRewriteServerAddressRewritesFirstMatch(t *testing.T) {
	pool := abc.NewConstantPool()
	pool.Strings.Intern("not a match")
	pool.Strings.Intern("short:1") // shorter than 11 chars, skipped
	addrIdx := pool.Strings.Intern("66.70.104.1:13001")
	otherIdx := pool.Strings.Intern("66.70.104.2:13002")

	from, to, found := RewriteServerAddress(pool, 11801)
	require.True(t, found)
	assert.Equal(t, "66.70.104.1:13001", from)
	assert.Equal(t, "127.0.0.1:11801", to)

	assert.Equal(t, "127.0.0.1:11801", pool.Strings.At(addrIdx))
	assert.Equal(t, "66.70.104.2:13002", pool.Strings.At(otherIdx), "only the first match is rewritten")
}

func TestRewriteServerAddressRewritesPortRange(t *testing.T) {
	pool := abc.NewConstantPool()
	pool.Strings.Intern("66.70.104.1:13001-13010")

	from, to, found := RewriteServerAddress(pool, 443)
	require.True(t, found)
	assert.Equal(t, "66.70.104.1:13001-13010", from)
	assert.Equal(t, "127.0.0.1:443", to)
}

func TestRewriteServerAddressNoMatch(t *testing.T) {
	pool := abc.NewConstantPool()
	pool.Strings.Intern("com.atelier801.transformice.Main")
	pool.Strings.Intern("no colon here at all")

	from, to, found := RewriteServerAddress(pool, 11801)
	assert.False(t, found)
	assert.Empty(t, from)
	assert.Empty(t, to)
}

func TestSplitHostPort(t *testing.T) {
	cases := []struct {
		in       string
		wantHost string
		wantPort string
		wantOK   bool
	}{
		{"66.70.104.1:13001", "66.70.104.1", "13001", true},
		{"66.70.104.1:13001-13010", "66.70.104.1", "13001-13010", true},
		{"nocolon", "", "", false},
		{":13001", "", "", false},
		{"66.70.104.1:", "", "", false},
		{"example.com:80", "", "", false}, // host has letters, not a literal
		{"66.70.104.1:abc", "", "", false},
	}
	for _, c := range cases {
		host, port, ok := splitHostPort(c.in)
		assert.Equal(t, c.wantOK, ok, "splitHostPort(%q) ok", c.in)
		if c.wantOK {
			assert.Equal(t, c.wantHost, host)
			assert.Equal(t, c.wantPort, port)
		}
	}
}
