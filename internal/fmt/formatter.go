// Package fmt provides the Formatter capability (spec.md 4.7, 9): the
// single extension point the renaming pass and packet-identity recovery go
// through to produce every generated name. The core never hard-codes a
// name string; it always calls through this interface, so a caller could
// in principle supply a different naming scheme (spec.md 9's "name-
// formatter extension" design note) — this package ships only the default,
// pure-string-formatting implementation; no scripting backend is built
// (spec.md 1's Non-goals, reiterated in SPEC_FULL.md's Non-goals list).
package fmt

import (
	stdfmt "fmt"

	"github.com/whit3rabbit/detfm/internal/pktnames"
)

// Formatter is the ten-operation capability spec.md 4.7 names. Every
// generated identifier in the deobfuscated output passes through one of
// these calls.
type Formatter interface {
	Classes(counter uint32) string
	Consts(counter uint32) string
	Functions(counter uint32) string
	Vars(counter uint32) string
	Methods(counter uint32) string
	Errors(counter uint32) string
	Symbols(id uint16) string
	Packets(side pktnames.Side, pktID uint16, knownName string) string
	Subhandler(category uint8) string
	UnknownPacket(counter uint32) string
}

// DefaultFormatter is the only Formatter this repository ships: pure string
// formatting, following original_source's formatters/default.rs format
// strings verbatim.
type DefaultFormatter struct{}

func (DefaultFormatter) Classes(counter uint32) string   { return stdfmt.Sprintf("class_%03d", counter) }
func (DefaultFormatter) Consts(counter uint32) string    { return stdfmt.Sprintf("const_%03d", counter) }
func (DefaultFormatter) Functions(counter uint32) string { return stdfmt.Sprintf("function_%03d", counter) }
func (DefaultFormatter) Vars(counter uint32) string      { return stdfmt.Sprintf("var_%03d", counter) }
func (DefaultFormatter) Methods(counter uint32) string   { return stdfmt.Sprintf("method_%03d", counter) }
func (DefaultFormatter) Errors(counter uint32) string    { return stdfmt.Sprintf("error%d", counter) }
func (DefaultFormatter) Symbols(id uint16) string        { return stdfmt.Sprintf("ClassSymbol_%d", id) }

func (DefaultFormatter) Packets(side pktnames.Side, pktID uint16, knownName string) string {
	categID, id := pktID>>8, pktID&0xff
	switch side {
	case pktnames.Serverbound:
		return stdfmt.Sprintf("SPacket%02x%02x%s", categID, id, knownName)
	case pktnames.Clientbound:
		return stdfmt.Sprintf("CPacket%02x%02x%s", categID, id, knownName)
	case pktnames.TribulleClientbound:
		return stdfmt.Sprintf("TCPacket_%04x%s", pktID, knownName)
	case pktnames.TribulleServerbound:
		return stdfmt.Sprintf("TSPacket_%04x%s", pktID, knownName)
	default:
		return stdfmt.Sprintf("Packet_%04x%s", pktID, knownName)
	}
}

func (DefaultFormatter) Subhandler(category uint8) string {
	return stdfmt.Sprintf("PacketSubHandler_%02x", category)
}
func (DefaultFormatter) UnknownPacket(counter uint32) string {
	return stdfmt.Sprintf("CPacket_u%02x", counter)
}

var _ Formatter = DefaultFormatter{}
