// Package pktnames loads the packet-name dictionaries (spec.md 6): four
// mappings from a packet's numeric code to a human name, one per protocol
// side (serverbound/clientbound, outer and Tribulle). A built-in dictionary
// is embedded at build time; a user-supplied JSON file overlays it.
package pktnames

import (
	"embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

//go:embed data/*.json
var builtinFS embed.FS

// Side names one of the four dictionaries a packet code can belong to.
type Side int

const (
	Serverbound Side = iota
	Clientbound
	TribulleServerbound
	TribulleClientbound
)

func (s Side) String() string {
	switch s {
	case Serverbound:
		return "serverbound"
	case Clientbound:
		return "clientbound"
	case TribulleServerbound:
		return "tribulle_serverbound"
	case TribulleClientbound:
		return "tribulle_clientbound"
	default:
		return "unknown"
	}
}

// Dictionary holds the four code->name maps for one source (built-in or
// user overlay).
type Dictionary struct {
	serverbound          map[uint16]string
	clientbound          map[uint16]string
	tribulleServerbound  map[uint16]string
	tribulleClientbound  map[uint16]string
}

func newEmptyDictionary() *Dictionary {
	return &Dictionary{
		serverbound:         map[uint16]string{},
		clientbound:         map[uint16]string{},
		tribulleServerbound: map[uint16]string{},
		tribulleClientbound: map[uint16]string{},
	}
}

func (d *Dictionary) mapFor(side Side) map[uint16]string {
	switch side {
	case Serverbound:
		return d.serverbound
	case Clientbound:
		return d.clientbound
	case TribulleServerbound:
		return d.tribulleServerbound
	case TribulleClientbound:
		return d.tribulleClientbound
	default:
		return nil
	}
}

// Get returns the known name for (side, code), if any.
func (d *Dictionary) Get(side Side, code uint16) (string, bool) {
	if d == nil {
		return "", false
	}
	m := d.mapFor(side)
	if m == nil {
		return "", false
	}
	name, ok := m[code]
	return name, ok
}

// FromJSON parses a packet-name JSON document of the shape spec.md 6
// describes: at most four top-level objects (clientbound, serverbound,
// tribulle_clientbound, tribulle_serverbound), each mapping a hex-string
// packet code to a free-form name, normalized per spec.md 6's rule
// (split on '_'/space, uppercase each part's leading character, drop
// non-alphabetic characters).
func FromJSON(data []byte) (*Dictionary, error) {
	var raw struct {
		Clientbound         map[string]string `json:"clientbound"`
		Serverbound         map[string]string `json:"serverbound"`
		TribulleClientbound map[string]string `json:"tribulle_clientbound"`
		TribulleServerbound map[string]string `json:"tribulle_serverbound"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("pktnames: decoding dictionary: %w", err)
	}
	d := newEmptyDictionary()
	var err error
	if d.clientbound, err = normalizeMap(raw.Clientbound); err != nil {
		return nil, fmt.Errorf("pktnames: clientbound: %w", err)
	}
	if d.serverbound, err = normalizeMap(raw.Serverbound); err != nil {
		return nil, fmt.Errorf("pktnames: serverbound: %w", err)
	}
	if d.tribulleClientbound, err = normalizeMap(raw.TribulleClientbound); err != nil {
		return nil, fmt.Errorf("pktnames: tribulle_clientbound: %w", err)
	}
	if d.tribulleServerbound, err = normalizeMap(raw.TribulleServerbound); err != nil {
		return nil, fmt.Errorf("pktnames: tribulle_serverbound: %w", err)
	}
	return d, nil
}

func normalizeMap(raw map[string]string) (map[uint16]string, error) {
	out := make(map[uint16]string, len(raw))
	for key, value := range raw {
		code, err := strconv.ParseUint(key, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("key %q is not a hex packet code: %w", key, err)
		}
		out[uint16(code)] = Normalize(value)
	}
	return out, nil
}

// Normalize implements spec.md 6's name normalization: split on '_' or
// space, uppercase each part's leading character, drop non-alphabetic
// characters.
func Normalize(value string) string {
	var b strings.Builder
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == '_' || r == ' ' }) {
		first := true
		for _, r := range part {
			if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' {
				if first {
					b.WriteRune(toUpper(r))
					first = false
				} else {
					b.WriteRune(r)
				}
			}
		}
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}

var builtinOnce sync.Once
var builtin *Dictionary
var builtinErr error

// Builtin returns the process-wide built-in packet-name dictionary,
// loaded once from the embedded JSON files and immutable thereafter
// (spec.md 9's "process-wide dictionary" design note).
func Builtin() (*Dictionary, error) {
	builtinOnce.Do(func() {
		d := newEmptyDictionary()
		files := map[Side]string{
			Serverbound:         "data/serverbound.json",
			Clientbound:         "data/clientbound.json",
			TribulleServerbound: "data/tribulle_serverbound.json",
			TribulleClientbound: "data/tribulle_clientbound.json",
		}
		for side, path := range files {
			raw, err := builtinFS.ReadFile(path)
			if err != nil {
				builtinErr = fmt.Errorf("pktnames: reading embedded %s: %w", path, err)
				return
			}
			var m map[string]string
			if err := json.Unmarshal(raw, &m); err != nil {
				builtinErr = fmt.Errorf("pktnames: decoding embedded %s: %w", path, err)
				return
			}
			norm, err := normalizeMap(m)
			if err != nil {
				builtinErr = fmt.Errorf("pktnames: normalizing embedded %s: %w", path, err)
				return
			}
			dst := d.mapFor(side)
			for code, name := range norm {
				dst[code] = name
			}
		}
		builtin = d
	})
	return builtin, builtinErr
}

// Overlay combines the built-in dictionary with a user-supplied overlay:
// entries in overlay take priority, falling back to the built-in entry
// when the overlay has none for a given (side, code).
type Overlay struct {
	user    *Dictionary
	builtin *Dictionary
}

// NewOverlay builds an Overlay from an optional user dictionary (nil is
// fine — Get then falls straight through to the built-in).
func NewOverlay(user *Dictionary) (*Overlay, error) {
	b, err := Builtin()
	if err != nil {
		return nil, err
	}
	return &Overlay{user: user, builtin: b}, nil
}

// Get returns the user dictionary's entry for (side, code) if present,
// else the built-in entry, else ("", false).
func (o *Overlay) Get(side Side, code uint16) (string, bool) {
	if o.user != nil {
		if name, ok := o.user.Get(side, code); ok {
			return name, true
		}
	}
	return o.builtin.Get(side, code)
}
