package detfm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/whit3rabbit/detfm/internal/abc"
	dfmt "github.com/whit3rabbit/detfm/internal/fmt"
	"github.com/whit3rabbit/detfm/internal/pktnames"
)

// Detfm is the top-level deobfuscation pipeline: it owns the ABC file
// being rewritten, the fingerprinted structural inventory, and the
// collaborators each pass needs, and runs them in the single fixed order
// spec.md 9 requires (simplify before unscramble before rename before
// packet recovery before namespace finalisation, since each later pass
// depends on the lexical cleanup the earlier ones perform).
type Detfm struct {
	A    *abc.Abc
	Inv  *Inventory
	NS   NSNames
	NA   *NamespaceAssigner
	Ren  *Renamer
	Fmt  dfmt.Formatter
	Dict *pktnames.Overlay
	Log  *zap.SugaredLogger
}

// New builds a Detfm ready to run, wiring the default formatter unless f is
// supplied and a no-op logger unless log is supplied. dict may be nil, in
// which case packet recovery falls back to the formatter's generic naming.
func New(a *abc.Abc, f dfmt.Formatter, dict *pktnames.Overlay, log *zap.SugaredLogger) *Detfm {
	if f == nil {
		f = dfmt.DefaultFormatter{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Detfm{
		A:    a,
		NA:   NewNamespaceAssigner(a.Pool),
		Ren:  NewRenamer(f),
		Fmt:  f,
		Dict: dict,
		Log:  log,
	}
}

// Run executes the full pipeline end to end: symbol-table renaming,
// simplification, fingerprinting, unscrambling, renaming, packet-identity
// recovery, and namespace finalisation. It returns the fingerprinter's missing-role diagnostics
// (never fatal, per spec.md 7) alongside any hard error from a pass that
// cannot proceed at all.
func (d *Detfm) Run(symbols []Symbol) ([]string, error) {
	if err := d.Ren.RenameInvalidSymbols(d.A, symbols); err != nil {
		return nil, err
	}

	d.SimplifyAllCinits()

	inv, missing := Fingerprint(d.A)
	d.Inv = inv
	for _, m := range missing {
		d.Log.Warnw("structural role not found", "role", m)
	}

	if err := d.UnscrambleAllMethods(); err != nil {
		return missing, err
	}

	if err := d.Ren.RenameAllInvalid(d.A); err != nil {
		return missing, err
	}

	if err := d.finalize(); err != nil {
		return missing, err
	}
	d.NA.Finalize()
	return missing, nil
}

// SimplifyAllCinits runs SimplifyMethod to a fixed point over every
// class's static initializer (spec.md 4.3/9): static holders' cinit bodies
// are exactly the ones the static-value evaluator in classes.go depends on
// being already folded into literals.
func (d *Detfm) SimplifyAllCinits() {
	for i := range d.A.Classes {
		c := &d.A.Classes[i]
		m := d.A.Method(c.CInit)
		if m == nil {
			continue
		}
		for {
			changed, err := SimplifyMethod(d.A.Pool, m)
			if err != nil {
				d.Log.Debugw("cinit simplify stopped", "class", i, "error", err)
				break
			}
			if !changed {
				break
			}
		}
	}
}

// UnscrambleAllMethods runs UnscrambleMethod once over every method with a
// body (spec.md 4.6), relying on d.Inv having already been populated by
// Fingerprint.
func (d *Detfm) UnscrambleAllMethods() error {
	for i := range d.A.Methods {
		m := &d.A.Methods[i]
		if _, err := UnscrambleMethod(d.A, m, d.Inv); err != nil {
			return err
		}
	}
	return nil
}

// finalize implements the bulk of spec.md 4.9's "Finalisation": it creates
// the target package namespaces, renames and places every recognised
// structural role, recovers packet identity, and wipes the obfuscation's
// own wrapper/static-holder scaffolding once nothing still reads through
// it.
func (d *Detfm) finalize() error {
	d.NS = NSNames{
		Slot:  d.NA.CreatePackage("slots"),
		Pkt:   d.NA.CreatePackage("packets"),
		SPkt:  d.NA.CreatePackage("packets.serverbound"),
		CPkt:  d.NA.CreatePackage("packets.clientbound"),
		TPkt:  d.NA.CreatePackage("packets.tribulle"),
		TSPkt: d.NA.CreatePackage("packets.tribulle.serverbound"),
		TCPkt: d.NA.CreatePackage("packets.tribulle.clientbound"),
	}

	if d.Inv.HasBaseSPkt {
		if err := d.renameBaseServerbound(); err != nil {
			return err
		}
	}
	if d.Inv.HasBaseCPkt {
		if err := d.renameBaseClientbound(); err != nil {
			return err
		}
	}
	if d.Inv.HasVarIntRdr {
		if err := d.renameVarIntReader(); err != nil {
			return err
		}
	}
	if d.Inv.HasIfaceProxy {
		if err := d.renameInterfaceProxy(); err != nil {
			return err
		}
	}

	pr := &PacketRecovery{A: d.A, Inv: d.Inv, NS: &d.NS, NA: d.NA, Ren: d.Ren, Fmt: d.Fmt, Dict: d.Dict}
	if err := pr.RecoverServerboundDirect(); err != nil {
		return err
	}
	if err := pr.ProvisionalRenameClientbound(); err != nil {
		return err
	}
	if err := pr.RecoverClientboundDispatch(); err != nil {
		return err
	}

	d.wipeStaticHolders()
	d.wipeWrapClass()
	d.renameDocumentClassInstanceSlot()
	return nil
}

// renameBaseServerbound renames the serverbound base packet class and its
// third instance slot (spec.md 4.9: "pcode" is the packet-id slot
// every serverbound subclass's super-constructor call feeds).
func (d *Detfm) renameBaseServerbound() error {
	ci := d.Inv.BaseSPkt
	c := d.A.Class(ci)
	if err := RenameMultiname(d.A.Pool, c.Name, "SPacketBase"); err != nil {
		return err
	}
	if len(c.ITraits) > 2 {
		if err := RenameMultiname(d.A.Pool, c.ITraits[2].Name, "pcode"); err != nil {
			return err
		}
	}
	return d.NA.SetClassNS(d.A, ci, d.NS.SPkt)
}

// renameBaseClientbound renames the clientbound base packet class and its
// three known instance slots: the two-part category/packet-id pair plus
// the trailing ByteArray "buffer" payload slot.
func (d *Detfm) renameBaseClientbound() error {
	ci := d.Inv.BaseCPkt
	c := d.A.Class(ci)
	if err := RenameMultiname(d.A.Pool, c.Name, "CPacketBase"); err != nil {
		return err
	}
	names := []string{"pcode0", "pcode1", "buffer"}
	for i, name := range names {
		if i < len(c.ITraits) {
			if err := RenameMultiname(d.A.Pool, c.ITraits[i].Name, name); err != nil {
				return err
			}
		}
	}
	return d.NA.SetClassNS(d.A, ci, d.NS.CPkt)
}

// renameVarIntReader renames the varint-decoding helper class and its
// buffer slot, then recovers every one of its accessor method names
// (spec.md 4.9's rename_readany equivalent).
func (d *Detfm) renameVarIntReader() error {
	ci := d.Inv.VarIntReader
	c := d.A.Class(ci)
	if err := RenameMultiname(d.A.Pool, c.Name, "VarIntReader"); err != nil {
		return err
	}
	if len(c.ITraits) > 0 {
		if err := RenameMultiname(d.A.Pool, c.ITraits[0].Name, "buffer"); err != nil {
			return err
		}
	}
	if err := d.NA.SetClassNS(d.A, ci, d.NS.Pkt); err != nil {
		return err
	}
	return d.renameReadAccessors(c)
}

// renameReadAccessors renames the varint reader's remaining instance
// methods by what they actually call through to the underlying ByteArray:
// a method that reads the buffer slot and then calls exactly one property
// on the result is named after that property (readInt, readUTF, ...);
// boolean-typed methods and the first unmatched method default to the
// two names every obfuscated build reliably needs, readBoolean and
// readVarInt.
func (d *Detfm) renameReadAccessors(c *abc.Class) error {
	if len(c.ITraits) == 0 {
		return nil
	}
	bufferName := c.ITraits[0].Name
	assignedDefault := false
	for i := 1; i < len(c.ITraits); i++ {
		t := &c.ITraits[i]
		if t.Kind != abc.TraitMethod {
			continue
		}
		m := d.A.Method(t.Method)
		if m == nil || !m.HasBody() || len(m.Params) != 0 {
			continue
		}
		decoded, err := m.Parse()
		if err != nil {
			continue
		}
		called, ok := findBufferCall(d.A.Pool, decoded, bufferName)
		retName, _ := d.A.Pool.QName(m.ReturnType)
		switch {
		case retName == "Boolean":
			if err := RenameMultiname(d.A.Pool, t.Name, "readBoolean"); err != nil {
				return err
			}
		case ok:
			if err := RenameMultiname(d.A.Pool, t.Name, called); err != nil {
				return err
			}
		case !assignedDefault:
			if err := RenameMultiname(d.A.Pool, t.Name, "readVarInt"); err != nil {
				return err
			}
			assignedDefault = true
		}
	}
	return nil
}

// findBufferCall looks for `GetProperty(bufferName); CallProperty(p, n)` in
// decoded and returns p's own name, if found.
func findBufferCall(pool *abc.ConstantPool, decoded []abc.Instruction, bufferName abc.Index) (string, bool) {
	for i := 0; i+1 < len(decoded); i++ {
		if decoded[i].Opcode == abc.OpGetProperty && abc.Index(decoded[i].Operands[0]) == bufferName &&
			decoded[i+1].Opcode == abc.OpCallProperty {
			name, ok := pool.QName(abc.Index(decoded[i+1].Operands[0]))
			if ok {
				return name, true
			}
		}
	}
	return "", false
}

// renameInterfaceProxy renames the interface-proxy class and repairs every
// multiname it constructs dynamically from a preceding PushString literal
// (spec.md 4.4's interface-proxy shape): the pushed string is almost always
// the symbol's true name, so the proxy's own multiname's Name field is
// repointed at that string index directly rather than through the
// rename-by-string-index path (this multiname is private to the proxy, not
// shared with any other reference, so overwriting its Name field in place
// cannot affect anything else).
func (d *Detfm) renameInterfaceProxy() error {
	ci := d.Inv.IfaceProxy
	c := d.A.Class(ci)
	if err := RenameMultiname(d.A.Pool, c.Name, "InterfaceProxy"); err != nil {
		return err
	}
	iinit := d.A.Method(c.IInit)
	if iinit != nil && iinit.HasBody() {
		decoded, err := iinit.Parse()
		if err == nil {
			d.repointProxyNames(decoded)
		}
	}
	return nil
}

func (d *Detfm) repointProxyNames(decoded []abc.Instruction) {
	for i := 0; i+1 < len(decoded); i++ {
		if decoded[i].Opcode != abc.OpPushString || decoded[i+1].Opcode != abc.OpGetProperty {
			continue
		}
		str := abc.Index(decoded[i].Operands[0])
		mnIdx := abc.Index(decoded[i+1].Operands[0])
		mn := d.A.Pool.MultinameAt(mnIdx)
		if mn == nil || !mn.HasFixedName() {
			continue
		}
		current := d.A.Pool.Strings.At(mn.Name)
		if hasAnyPrefix(current, "method_", "name_", "const_") {
			mn.Name = str
		}
	}
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if len(s) >= len(p) && s[:len(p)] == p {
			return true
		}
	}
	return false
}

// wipeStaticHolders clears every static holder's member tables (nothing
// reads through them once UnscrambleAllMethods has inlined their values)
// and renames the now-empty shell so its presence in the output is at
// least self-explanatory (spec.md 4.9).
func (d *Detfm) wipeStaticHolders() {
	counter := uint32(0)
	for _, sc := range d.Inv.StaticClasses {
		c := d.A.Class(sc.ClassIndex)
		if c == nil {
			continue
		}
		c.CTraits = nil
		c.ITraits = nil
		c.CInit = 0
		name := fmt.Sprintf("$StaticClass_%04d", counter)
		counter++
		_ = RenameMultiname(d.A.Pool, c.Name, name)
		_ = d.NA.SetClassNS(d.A, sc.ClassIndex, d.NS.Slot)
	}
}

// wipeWrapClass clears the wrapper class's own members the same way, once
// UnscrambleAllMethods has removed every call site that went through it.
func (d *Detfm) wipeWrapClass() {
	if d.Inv.WrapClass == nil {
		return
	}
	ci := d.Inv.WrapClass.Index
	c := d.A.Class(ci)
	c.CTraits = nil
	c.ITraits = nil
	c.CInit = 0
	_ = RenameMultiname(d.A.Pool, c.Name, "$WrapperClass")
	_ = d.NA.SetClassNS(d.A, ci, d.NS.Slot)
}

// renameDocumentClassInstanceSlot renames the document class's (class 0)
// self-referential instance slot — the one whose declared type is the
// document class itself, the obfuscated equivalent of a singleton "this
// game instance" field — to "instance" (spec.md invariant 4).
func (d *Detfm) renameDocumentClassInstanceSlot() {
	if len(d.A.Classes) == 0 {
		return
	}
	game := &d.A.Classes[0]
	for i := range game.ITraits {
		t := &game.ITraits[i]
		if t.IsConstLike() && t.SlotType == game.Name {
			_ = RenameMultiname(d.A.Pool, t.Name, "instance")
			return
		}
	}
}
