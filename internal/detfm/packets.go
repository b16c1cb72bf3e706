package detfm

import (
	"github.com/whit3rabbit/detfm/internal/abc"
	dfmt "github.com/whit3rabbit/detfm/internal/fmt"
	"github.com/whit3rabbit/detfm/internal/pktnames"
)

// program is a read-only cursor over one method's decoded instructions: the
// walks below step forward, peek ahead without consuming, and jump to a
// branch target by address (spec.md 4.9).
type program struct {
	ins     []abc.Instruction
	addrIdx map[uint32]int
	pos     int
}

func newProgram(ins []abc.Instruction) *program {
	idx := make(map[uint32]int, len(ins))
	for i, in := range ins {
		idx[in.Addr] = i
	}
	return &program{ins: ins, addrIdx: idx}
}

func (p *program) done() bool           { return p.pos >= len(p.ins) }
func (p *program) cur() abc.Instruction { return p.ins[p.pos] }
func (p *program) advance(n int)        { p.pos += n }

func (p *program) peek(n int) (abc.Instruction, bool) {
	i := p.pos + n
	if i < 0 || i >= len(p.ins) {
		return abc.Instruction{}, false
	}
	return p.ins[i], true
}

// seek moves the cursor to the instruction at addr, reporting whether one
// exists there.
func (p *program) seek(addr uint32) bool {
	i, ok := p.addrIdx[addr]
	if !ok {
		return false
	}
	p.pos = i
	return true
}

// seekNextOpcode advances the cursor forward until it reaches an
// instruction with the given opcode, leaving the cursor there. Reports
// whether one was found before the end of the stream.
func (p *program) seekNextOpcode(op abc.Opcode) bool {
	for !p.done() {
		if p.cur().Opcode == op {
			return true
		}
		p.advance(1)
	}
	return false
}

// PacketRecovery holds the shared context every packet-identity walk in
// this file needs: the namespace assigner to queue class placements, the
// renamer to produce and count generated names, and the known-name overlay
// (spec.md 4.9's packet-name dictionary).
type PacketRecovery struct {
	A    *abc.Abc
	Inv  *Inventory
	NS   *NSNames
	NA   *NamespaceAssigner
	Ren  *Renamer
	Fmt  dfmt.Formatter
	Dict *pktnames.Overlay

	unknownCounter uint32
}

// ProvisionalRenameClientbound renames every class directly subclassing the
// clientbound base packet to a generic "unknown" placeholder and places it
// in the clientbound package, before RecoverClientboundDispatch attempts to
// recover each one's true packet id: a class the dispatch walk never
// reaches (dead code the obfuscator left behind, or a packet id this
// program build never sends) still ends up named and placed sensibly
// rather than left under its original obfuscated identifier.
func (pr *PacketRecovery) ProvisionalRenameClientbound() error {
	if !pr.Inv.HasBaseCPkt {
		return nil
	}
	baseName, ok := pr.A.FQN(pr.A.Class(pr.Inv.BaseCPkt))
	if !ok {
		return nil
	}
	for i := range pr.A.Classes {
		c := &pr.A.Classes[i]
		if c.SuperName == abc.NoIndex {
			continue
		}
		superName, ok := pr.A.Pool.QName(c.SuperName)
		if !ok || superName != baseName {
			continue
		}
		name := pr.Fmt.UnknownPacket(pr.unknownCounter)
		pr.unknownCounter++
		if err := pr.renameClass(abc.ClassIndex(i), name, pr.NS.CPkt); err != nil {
			return err
		}
	}
	return nil
}

func (pr *PacketRecovery) packetName(side pktnames.Side, pktID uint16) string {
	known := ""
	if pr.Dict != nil {
		if name, ok := pr.Dict.Get(side, pktID); ok {
			known = name
		}
	}
	return pr.Fmt.Packets(side, pktID, known)
}

func (pr *PacketRecovery) renameClass(ci abc.ClassIndex, name string, ns abc.Index) error {
	c := pr.A.Class(ci)
	if c == nil {
		return nil
	}
	if err := RenameMultiname(pr.A.Pool, c.Name, name); err != nil {
		return err
	}
	return pr.NA.SetClassNS(pr.A, ci, ns)
}

// findClassByName linear-scans the class table for the class whose own
// multiname resolves to name.
func (pr *PacketRecovery) findClassByName(name string) (abc.ClassIndex, bool) {
	if name == "" {
		return 0, false
	}
	for i := range pr.A.Classes {
		if n, ok := pr.A.FQN(&pr.A.Classes[i]); ok && n == name {
			return abc.ClassIndex(i), true
		}
	}
	return 0, false
}

// isBufferTrait reports whether t is the ByteArray-typed "buffer" slot
// every packet base class (and varint reader) leads with.
func (pr *PacketRecovery) isBufferTrait(t *abc.Trait) bool {
	return t.IsConstLike() && t.SlotType == pr.Inv.ByteArrayMN
}

// isClassWithBufferTrait reports whether c's first instance trait is the
// buffer slot: the shape a sub-handler's packet classes carry, which marks
// them as already-identified rather than directly constructed by the
// dispatcher.
func (pr *PacketRecovery) isClassWithBufferTrait(c *abc.Class) bool {
	return len(c.ITraits) > 0 && pr.isBufferTrait(&c.ITraits[0])
}

func (pr *PacketRecovery) findTrait(c *abc.Class, name abc.Index) (*abc.Trait, bool) {
	for i := range c.CTraits {
		if c.CTraits[i].Name == name {
			return &c.CTraits[i], true
		}
	}
	for i := range c.ITraits {
		if c.ITraits[i].Name == name {
			return &c.ITraits[i], true
		}
	}
	return nil, false
}

// findITraitByName walks c's superclass chain (via SuperName) looking for
// an instance trait named name.
func (pr *PacketRecovery) findITraitByName(c *abc.Class, name abc.Index) (*abc.Trait, bool) {
	for depth := 0; depth < 64 && c != nil; depth++ {
		for i := range c.ITraits {
			if c.ITraits[i].Name == name {
				return &c.ITraits[i], true
			}
		}
		if c.SuperName == abc.NoIndex {
			return nil, false
		}
		superName, ok := pr.A.Pool.QName(c.SuperName)
		if !ok {
			return nil, false
		}
		ci, ok := pr.findClassByName(superName)
		if !ok {
			return nil, false
		}
		c = pr.A.Class(ci)
	}
	return nil, false
}

func (pr *PacketRecovery) getMethod(t *abc.Trait) *abc.Method {
	if t.Kind != abc.TraitMethod {
		return nil
	}
	return pr.A.Method(t.Method)
}

// RecoverServerboundDirect implements spec.md 4.9's serverbound (direct)
// recovery: every class whose superclass is the serverbound base parses its
// own constructor for a super-call carrying the category/packet-id literals
// pushed right before ConstructSuper.
func (pr *PacketRecovery) RecoverServerboundDirect() error {
	if !pr.Inv.HasBaseSPkt {
		return nil
	}
	baseName, ok := pr.A.FQN(pr.A.Class(pr.Inv.BaseSPkt))
	if !ok {
		return nil
	}
	for i := range pr.A.Classes {
		c := &pr.A.Classes[i]
		if c.SuperName == abc.NoIndex {
			continue
		}
		superName, ok := pr.A.Pool.QName(c.SuperName)
		if !ok || superName != baseName {
			continue
		}
		iinit := pr.A.Method(c.IInit)
		if iinit == nil || !iinit.HasBody() {
			continue
		}
		decoded, err := iinit.Parse()
		if err != nil {
			return err
		}
		categID, pktID, ok := matchSuperConstructSeq(pr.A.Pool, decoded)
		if !ok {
			continue
		}
		name := pr.packetName(pktnames.Serverbound, uint16(categID)<<8|uint16(pktID))
		if err := pr.renameClass(abc.ClassIndex(i), name, pr.NS.SPkt); err != nil {
			return err
		}
	}
	return nil
}

// matchSuperConstructSeq looks for [PushDouble, PushDouble, ConstructSuper]
// (categoryID + packetID) or [PushDouble, ConstructSuper] (packetID only,
// category defaults to 0) anywhere in decoded, returning the two literal
// byte values as read back from the constant pool's double table (a
// PushDouble operand is a pool index, not the value itself).
func matchSuperConstructSeq(pool *abc.ConstantPool, decoded []abc.Instruction) (categID, pktID uint8, ok bool) {
	for i, ins := range decoded {
		if ins.Opcode != abc.OpConstructSuper {
			continue
		}
		if i >= 2 && decoded[i-2].Opcode == abc.OpPushDouble && decoded[i-1].Opcode == abc.OpPushDouble {
			cat := pool.Doubles.At(abc.Index(decoded[i-2].Operands[0]))
			pkt := pool.Doubles.At(abc.Index(decoded[i-1].Operands[0]))
			return uint8(cat), uint8(pkt), true
		}
		if i >= 1 && decoded[i-1].Opcode == abc.OpPushDouble {
			pkt := pool.Doubles.At(abc.Index(decoded[i-1].Operands[0]))
			return 0, uint8(pkt), true
		}
	}
	return 0, 0, false
}

// RecoverClientboundDispatch implements spec.md 4.9's clientbound dispatch
// walk: the packet-handler's handling method is a cascade of
// `if (category == X) { if (code == Y) { new Packet(...) } ... }` blocks,
// optionally delegating to a sub-handler class, with one special-cased
// branch (category 0x3c, code 0x03) that hands off into the Tribulle
// sub-protocol.
func (pr *PacketRecovery) RecoverClientboundDispatch() error {
	if !pr.Inv.HasPktHdlr {
		return nil
	}
	hdlr := pr.A.Class(pr.Inv.PktHdlr)
	var handleTrait *abc.Trait
	for i := range hdlr.CTraits {
		t := &hdlr.CTraits[i]
		if m := pr.getMethod(t); m != nil && m.HasBody() &&
			m.LocalCount >= pktHdlrMinLocals && m.MaxStack >= pktHdlrMinStack &&
			len(m.Params) == 1 && m.Params[0] == pr.Inv.ByteArrayMN {
			handleTrait = t
			break
		}
	}
	if handleTrait == nil {
		return nil
	}
	if err := pr.renameClass(pr.Inv.PktHdlr, "PacketHandler", pr.NS.Pkt); err != nil {
		return err
	}
	if err := RenameMultiname(pr.A.Pool, handleTrait.Name, "handle_packet"); err != nil {
		return err
	}

	m := pr.A.Method(handleTrait.Method)
	decoded, err := m.Parse()
	if err != nil {
		return err
	}
	prog := newProgram(decoded)
	pktHdlrName := hdlr.Name

	for !prog.done() {
		ins := prog.cur()
		if ins.Opcode != abc.OpGetLex || abc.Index(ins.Operands[0]) != pktHdlrName {
			prog.advance(1)
			continue
		}
		category, target, found := getPacketCode(pr.A.Pool, prog)
		if !found {
			prog.advance(1)
			continue
		}

		if category == 0x3c {
			if handled, err := pr.findClientboundTribulle(prog); err != nil {
				return err
			} else if handled {
				if !prog.seek(target) {
					break
				}
				continue
			}
		}

		if err := pr.findClientboundCategory(prog, category, target, pktHdlrName); err != nil {
			return err
		}
		if !prog.seek(target) {
			break
		}
	}
	return nil
}

// findClientboundCategory walks one outer if-block's body (up to the
// outer target address), looking for inner (code) branches that each
// construct a packet class directly, or falling back to a nested
// sub-handler dispatch if none are found.
func (pr *PacketRecovery) findClientboundCategory(prog *program, category uint8, outerTarget uint32, pktHdlrName abc.Index) error {
	foundAny := false
	for prog.cur().Addr < outerTarget && !prog.done() {
		ins := prog.cur()
		if ins.Opcode != abc.OpGetLex || abc.Index(ins.Operands[0]) != pktHdlrName {
			if subClass, traitName, ok := matchSubHandlerSeq(prog, pktHdlrName); ok && !foundAny {
				if err := pr.findClientboundSubPackets(subClass, traitName, category); err != nil {
					return err
				}
				return nil
			}
			prog.advance(1)
			continue
		}
		code, innerTarget, ok := getPacketCode(pr.A.Pool, prog)
		if !ok {
			prog.advance(1)
			continue
		}
		if category == 0x3c && code == 0x03 {
			if handled, err := pr.findClientboundTribulle(prog); err != nil {
				return err
			} else if handled {
				if !prog.seek(innerTarget) {
					return nil
				}
				continue
			}
		}
		for prog.cur().Addr < innerTarget && !prog.done() {
			if classMN, ok := matchNewClassSeq(prog); ok {
				if ci, ok := pr.findClassByName(mustQName(pr.A.Pool, classMN)); ok {
					c := pr.A.Class(ci)
					if !pr.isClassWithBufferTrait(c) {
						name := pr.packetName(pktnames.Clientbound, uint16(category)<<8|uint16(code))
						if err := pr.renameClass(ci, name, pr.NS.CPkt); err != nil {
							return err
						}
						foundAny = true
					}
				}
				prog.advance(3)
				continue
			}
			prog.advance(1)
		}
		if !prog.seek(innerTarget) {
			return nil
		}
	}
	return nil
}

// findClientboundSubPackets is the recursive twin of findClientboundCategory
// for a delegated sub-handler class: its method of the same name carries
// its own code -> target cascade (without the outer category test, already
// consumed by the caller).
func (pr *PacketRecovery) findClientboundSubPackets(subClass abc.ClassIndex, traitName abc.Index, category uint8) error {
	c := pr.A.Class(subClass)
	if c == nil {
		return nil
	}
	t, ok := pr.findTrait(c, traitName)
	if !ok {
		return nil
	}
	m := pr.getMethod(t)
	if m == nil || !m.HasBody() {
		return nil
	}
	decoded, err := m.Parse()
	if err != nil {
		return err
	}
	prog := newProgram(decoded)
	for !prog.done() {
		code, target, ok := matchPushDoubleIfNe(pr.A.Pool, prog)
		if !ok {
			prog.advance(1)
			continue
		}
		for prog.cur().Addr < target && !prog.done() {
			if classMN, ok := matchNewClassSeq(prog); ok {
				if ci, ok := pr.findClassByName(mustQName(pr.A.Pool, classMN)); ok {
					name := pr.packetName(pktnames.Clientbound, uint16(category)<<8|uint16(code))
					if err := pr.renameClass(ci, name, pr.NS.CPkt); err != nil {
						return err
					}
				}
				prog.advance(3)
				continue
			}
			prog.advance(1)
		}
		if !prog.seek(target) {
			break
		}
	}
	return pr.renameClass(subClass, pr.Fmt.Subhandler(category), pr.NS.Pkt)
}

// findClientboundTribulle locates the Tribulle sub-protocol accessor
// method (a chained GetLex/GetProperty/CallProperty/Coerce), then hands off
// into findServerboundAndClientboundTribulle to recover both the
// serverbound and clientbound Tribulle packet tables it reaches.
func (pr *PacketRecovery) findClientboundTribulle(prog *program) (bool, error) {
	seq := [5]abc.Opcode{abc.OpGetLex, abc.OpGetLex, abc.OpGetProperty, abc.OpCallProperty, abc.OpCoerce}
	var window [5]abc.Instruction
	for i := range seq {
		v, ok := prog.peek(i)
		if !ok {
			return false, nil
		}
		window[i] = v
	}
	for i, op := range seq {
		if window[i].Opcode != op {
			return false, nil
		}
	}
	ci, ok := pr.findClassByName(mustQName(pr.A.Pool, abc.Index(window[0].Operands[0])))
	if !ok {
		return false, nil
	}
	accessorTrait, ok := pr.findTrait(pr.A.Class(ci), abc.Index(window[3].Operands[0]))
	if !ok {
		return false, nil
	}
	accessor := pr.getMethod(accessorTrait)
	if accessor == nil || !accessor.HasBody() {
		return false, nil
	}
	prog.advance(5)
	return true, pr.findServerboundAndClientboundTribulle(accessor)
}

// findServerboundAndClientboundTribulle implements spec.md 4.9's Tribulle
// sub-protocol recovery: accessor's body opens with a GetLex naming the
// Tribulle base class, then a chain of GetProperty reads, each following
// that slot's declared type down to the next class, ending at a
// CallProperty naming the "magic" dispatch method. That method's body is
// scanned for PushDouble/FindPropStrict pairs, each naming one clientbound
// Tribulle packet class; its own return type is the Tribulle base packet
// class, renamed last so findServerboundTribulle can still see its
// original shape while walking it.
func (pr *PacketRecovery) findServerboundAndClientboundTribulle(accessor *abc.Method) error {
	decoded, err := accessor.Parse()
	if err != nil {
		return err
	}
	prog := newProgram(decoded)

	if !prog.seekNextOpcode(abc.OpGetLex) {
		return nil
	}
	klass, ok := pr.findClassByName(mustQName(pr.A.Pool, abc.Index(prog.cur().Operands[0])))
	if !ok {
		return nil
	}
	prog.advance(1)

	for !prog.done() && prog.cur().Opcode == abc.OpGetProperty {
		c := pr.A.Class(klass)
		t, ok := pr.findTrait(c, abc.Index(prog.cur().Operands[0]))
		if !ok || !t.IsConstLike() || t.SlotType == abc.NoIndex {
			return nil
		}
		next, ok := pr.findClassByName(mustQName(pr.A.Pool, t.SlotType))
		if !ok {
			return nil
		}
		klass = next
		prog.advance(1)
	}

	if !prog.seekNextOpcode(abc.OpCallProperty) {
		return nil
	}
	magicName := abc.Index(prog.cur().Operands[0])
	magicTrait, ok := pr.findITraitByName(pr.A.Class(klass), magicName)
	if !ok || magicTrait.Kind != abc.TraitMethod {
		return nil
	}
	magic := pr.getMethod(magicTrait)
	if magic == nil || !magic.HasBody() {
		return nil
	}

	if err := pr.findServerboundTribulle(pr.A.Class(klass)); err != nil {
		return err
	}

	magicDecoded, err := magic.Parse()
	if err != nil {
		return err
	}
	magicProg := newProgram(magicDecoded)
	for !magicProg.done() {
		if magicProg.cur().Opcode != abc.OpPushDouble {
			magicProg.advance(1)
			continue
		}
		code := uint16(pr.A.Pool.Doubles.At(abc.Index(magicProg.cur().Operands[0])))
		magicProg.advance(1)
		if !magicProg.seekNextOpcode(abc.OpFindPropStrict) {
			continue
		}
		fp := magicProg.cur()
		magicProg.advance(1)
		ci, ok := pr.findClassByName(mustQName(pr.A.Pool, abc.Index(fp.Operands[0])))
		if !ok {
			continue
		}
		name := pr.packetName(pktnames.TribulleClientbound, code)
		if err := pr.renameClass(ci, name, pr.NS.TCPkt); err != nil {
			return err
		}
	}

	if retClass, ok := pr.findClassByName(mustQName(pr.A.Pool, magic.ReturnType)); ok {
		if err := pr.renameClass(retClass, "TCPacketBase", pr.NS.TPkt); err != nil {
			return err
		}
	}
	return nil
}

// findServerboundTribulle recovers the Tribulle serverbound packet table
// by locating "getPacketId" (an int-returning single-parameter method) and
// reading back the LookupSwitch inside it: each switch-index case's target
// address holds a Label/PushDouble/ReturnValue triple recording that case's
// numeric packet id.
func (pr *PacketRecovery) findServerboundTribulle(klass *abc.Class) error {
	var getPacketID *abc.Trait
	for i := range klass.ITraits {
		t := &klass.ITraits[i]
		m := pr.getMethod(t)
		if m == nil || len(m.Params) != 1 {
			continue
		}
		retName, _ := pr.A.Pool.QName(m.ReturnType)
		if retName != "int" {
			continue
		}
		getPacketID = t
		break
	}
	if getPacketID == nil {
		return nil
	}
	if err := RenameMultiname(pr.A.Pool, getPacketID.Name, "getPacketId"); err != nil {
		return err
	}
	m := pr.getMethod(getPacketID)
	decoded, err := m.Parse()
	if err != nil {
		return err
	}

	addr2id := map[uint32]uint16{}
	for i := 0; i+2 < len(decoded); i++ {
		if decoded[i].Opcode == abc.OpLabel && decoded[i+1].Opcode == abc.OpPushDouble && decoded[i+2].Opcode == abc.OpReturnValue {
			addr2id[decoded[i].Addr] = uint16(pr.A.Pool.Doubles.At(abc.Index(decoded[i+1].Operands[0])))
		}
	}

	var lookup *abc.Instruction
	index2name := map[uint32]string{}
	index := uint32(0)
	for i := 0; i < len(decoded); i++ {
		if decoded[i].Opcode == abc.OpLookupSwitch {
			lookup = &decoded[i]
			break
		}
		if decoded[i].Opcode == abc.OpGetLex && i+1 < len(decoded) && decoded[i+1].Opcode == abc.OpPushByte {
			name := mustQName(pr.A.Pool, abc.Index(decoded[i].Operands[0]))
			index2name[index] = name
			index = uint32(decoded[i+1].Operands[0])
			i++
		}
	}
	if lookup == nil {
		return nil
	}
	for idx, name := range index2name {
		target := int(idx) + 1
		if target >= len(lookup.Targets) {
			continue
		}
		code, ok := addr2id[lookup.Targets[target]]
		if !ok {
			continue
		}
		if ci, ok := pr.findClassByName(name); ok {
			out := pr.packetName(pktnames.TribulleServerbound, code)
			if err := pr.renameClass(ci, out, pr.NS.TSPkt); err != nil {
				return err
			}
		}
	}
	return nil
}

// getPacketCode matches `GetLex(pktHdlrName) GetProperty PushDouble IfNe`
// (category/code compared, branch taken on mismatch) at the cursor, in
// either operand order the obfuscator happened to emit, returning the
// compared literal (resolved through the double pool, since PushDouble's
// operand is a pool index) and the branch's target address. The cursor is
// left just past the IfNe.
func getPacketCode(pool *abc.ConstantPool, prog *program) (code uint8, target uint32, ok bool) {
	lex, okLex := prog.peek(0)
	if !okLex || lex.Opcode != abc.OpGetLex {
		return 0, 0, false
	}
	prop, okProp := prog.peek(1)
	if !okProp || prop.Opcode != abc.OpGetProperty {
		return 0, 0, false
	}
	push, okPush := prog.peek(2)
	ifne, okIfNe := prog.peek(3)
	if okPush && okIfNe && push.Opcode == abc.OpPushDouble && ifne.Opcode == abc.OpIfNE {
		prog.advance(4)
		return uint8(pool.Doubles.At(abc.Index(push.Operands[0]))), ifne.Targets[0], true
	}
	push2, okPush2 := prog.peek(-1)
	if okPush2 && push2.Opcode == abc.OpPushDouble && okPush && push.Opcode == abc.OpIfNE {
		prog.advance(3)
		return uint8(pool.Doubles.At(abc.Index(push2.Operands[0]))), push.Targets[0], true
	}
	return 0, 0, false
}

func matchNewClassSeq(prog *program) (classMN abc.Index, ok bool) {
	a0, ok0 := prog.peek(0)
	a1, ok1 := prog.peek(1)
	a2, ok2 := prog.peek(2)
	if !ok0 || !ok1 || !ok2 {
		return 0, false
	}
	if a0.Opcode != abc.OpFindPropStrict || a1.Opcode != abc.OpGetLocal1 || a2.Opcode != abc.OpConstructProp {
		return 0, false
	}
	return abc.Index(a0.Operands[0]), true
}

func matchSubHandlerSeq(prog *program, pktHdlrName abc.Index) (subHandlerClass, traitName abc.Index, ok bool) {
	var win [6]abc.Instruction
	for i := range win {
		v, k := prog.peek(i)
		if !k {
			return 0, 0, false
		}
		win[i] = v
	}
	if win[0].Opcode != abc.OpGetLex || win[1].Opcode != abc.OpGetLocal1 ||
		win[2].Opcode != abc.OpGetLex || win[3].Opcode != abc.OpGetProperty ||
		win[4].Opcode != abc.OpCallPropVoid || win[5].Opcode != abc.OpReturnVoid {
		return 0, 0, false
	}
	if abc.Index(win[2].Operands[0]) != pktHdlrName {
		return 0, 0, false
	}
	prog.advance(6)
	return abc.Index(win[0].Operands[0]), abc.Index(win[3].Operands[0]), true
}

// matchPushDoubleIfNe matches the sub-handler's inner comparison, which can
// appear as either [GetLocal2, PushDouble, IfNe] or [PushDouble, GetLocal2,
// IfNe], returning the compared byte (resolved through the double pool) and
// branch target.
func matchPushDoubleIfNe(pool *abc.ConstantPool, prog *program) (code uint8, target uint32, ok bool) {
	a0, ok0 := prog.peek(0)
	a1, ok1 := prog.peek(1)
	a2, ok2 := prog.peek(2)
	if !ok0 || !ok1 || !ok2 || a2.Opcode != abc.OpIfNE {
		return 0, 0, false
	}
	switch {
	case a0.Opcode == abc.OpGetLocal2 && a1.Opcode == abc.OpPushDouble:
		prog.advance(3)
		return uint8(pool.Doubles.At(abc.Index(a1.Operands[0]))), a2.Targets[0], true
	case a0.Opcode == abc.OpPushDouble && a1.Opcode == abc.OpGetLocal2:
		prog.advance(3)
		return uint8(pool.Doubles.At(abc.Index(a0.Operands[0]))), a2.Targets[0], true
	default:
		return 0, 0, false
	}
}

func mustQName(pool *abc.ConstantPool, idx abc.Index) string {
	name, _ := pool.QName(idx)
	return name
}
