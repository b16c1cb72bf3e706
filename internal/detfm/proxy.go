package detfm

import (
	"strconv"
	"strings"

	"github.com/whit3rabbit/detfm/internal/abc"
)

// RewriteServerAddress scans the constant pool's UTF8 strings for the
// first one shaped like "host:port" or "host:port-port" (an IP literal
// followed by a colon and a numeric port, possibly a dash-joined range)
// and rewrites it to 127.0.0.1:port, returning the original and rewritten
// strings (SUPPLEMENTED FEATURES item 3: the game's hard-coded connect
// address gets redirected at a caller-supplied proxy port so the
// deobfuscated client can be pointed at a local relay).
func RewriteServerAddress(pool *abc.ConstantPool, proxyPort uint16) (from, to string, found bool) {
	newPort := strconv.FormatUint(uint64(proxyPort), 10)
	for i := 1; i < pool.Strings.Len(); i++ {
		s := pool.Strings.At(abc.Index(i))
		if len(s) < 11 {
			continue
		}
		host, port, ok := splitHostPort(s)
		if !ok {
			continue
		}
		rewritten := "127.0.0.1:" + newPort
		pool.Strings.Set(abc.Index(i), rewritten)
		return host + ":" + port, rewritten, true
	}
	return "", "", false
}

// splitHostPort reports whether s is "digits.digits...:digits[-digits]",
// the address-literal shape the obfuscated client embeds its connect
// target as.
func splitHostPort(s string) (host, port string, ok bool) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return "", "", false
	}
	host, port = s[:colon], s[colon+1:]
	if host == "" || port == "" {
		return "", "", false
	}
	if !isHostLiteral(host) {
		return "", "", false
	}
	if !isPortLiteral(port) {
		return "", "", false
	}
	return host, port, true
}

func isHostLiteral(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9') && r != '.' {
			return false
		}
	}
	return true
}

func isPortLiteral(s string) bool {
	hasDigit, hasDash := false, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r == '-':
			hasDash = true
		default:
			return false
		}
	}
	return hasDigit || hasDash
}
