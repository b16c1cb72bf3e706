package detfm

import (
	"github.com/whit3rabbit/detfm/internal/abc"
)

// Structural-role trait-count bounds (spec.md 9, Open Question: tuned
// empirically to one target program; left as constants rather than
// parameterized — see DESIGN.md).
const (
	minClientboundCTraits = 1
	maxClientboundCTraits = 9
	minClientboundITraits = 4
	maxClientboundITraits = 9
	staticHolderMinCTraits = 100
	pktHdlrMinLocals       = 200
	pktHdlrMinStack        = 30
)

// WrapClass is the obfuscation's pass-through indirection construct: every
// class trait is a single-argument method whose parameter type equals its
// return type (spec.md 3/4.4).
type WrapClass struct {
	Index   abc.ClassIndex
	Name    abc.Index // class's own multiname index
	Methods map[abc.Index]bool // class-trait method name multiname indices
}

// StaticValue is a static holder method's evaluated constant: either an
// int32 or a float64 result (spec.md 4.5).
type StaticValue struct {
	IsFloat bool
	I       int32
	F       float64
}

// StaticClass is an obfuscation "holder" class whose class-traits supply
// constants indirectly (spec.md 3/4.5).
type StaticClass struct {
	ClassIndex abc.ClassIndex
	// Slots maps a slot trait's name multiname index to its position in
	// the class's CTraits, so the unscrambler can read its current
	// ValueKind/ValueIndex (which the cinit walk may still update).
	Slots map[abc.Index]int
	// Methods maps a method trait's name multiname index to its evaluated
	// constant.
	Methods map[abc.Index]StaticValue
}

// Inventory is the fingerprinter's output: the (at most one each) singleton
// structural roles, plus every recognised static holder keyed by the
// holder class's own name multiname index (spec.md 3).
type Inventory struct {
	ByteArrayMN abc.Index // 0 if not found

	WrapClass *WrapClass

	BaseSPkt      abc.ClassIndex
	HasBaseSPkt   bool
	BaseCPkt      abc.ClassIndex
	HasBaseCPkt   bool
	PktHdlr       abc.ClassIndex
	HasPktHdlr    bool
	VarIntReader  abc.ClassIndex
	HasVarIntRdr  bool
	IfaceProxy    abc.ClassIndex
	HasIfaceProxy bool

	StaticClasses map[abc.Index]*StaticClass
}

// Fingerprint classifies every class in a by structural shape (spec.md
// 4.4) and extracts every static holder's constants (spec.md 4.5). It
// returns the inventory plus a list of missing-role diagnostics (never an
// error: an absent structural role is reported, not fatal, per spec.md 7).
func Fingerprint(a *abc.Abc) (*Inventory, []string) {
	inv := &Inventory{StaticClasses: map[abc.Index]*StaticClass{}}
	inv.ByteArrayMN = findByteArrayMultiname(a.Pool)

	for i := range a.Classes {
		ci := abc.ClassIndex(i)
		c := &a.Classes[i]

		if inv.WrapClass == nil {
			if wc := matchWrapClass(a, ci, c); wc != nil {
				inv.WrapClass = wc
			}
		}
		if !inv.HasBaseSPkt && matchServerboundBase(c, inv.ByteArrayMN) {
			inv.BaseSPkt, inv.HasBaseSPkt = ci, true
		}
		if !inv.HasBaseCPkt && matchClientboundBase(a, c, inv.ByteArrayMN) {
			inv.BaseCPkt, inv.HasBaseCPkt = ci, true
		}
		if !inv.HasPktHdlr && matchPacketHandler(a, c, inv.ByteArrayMN) {
			inv.PktHdlr, inv.HasPktHdlr = ci, true
		}
		if !inv.HasVarIntRdr && matchVarIntReader(a, c, inv.ByteArrayMN) {
			inv.VarIntReader, inv.HasVarIntRdr = ci, true
		}
		if !inv.HasIfaceProxy && matchInterfaceProxy(a, c) {
			inv.IfaceProxy, inv.HasIfaceProxy = ci, true
		}

		if sc := matchStaticClass(a, ci, c); sc != nil {
			inv.StaticClasses[c.Name] = sc
		}
	}

	var missing []string
	if inv.ByteArrayMN == 0 {
		missing = append(missing, "ByteArray multiname not found")
	}
	if inv.WrapClass == nil {
		missing = append(missing, "WrapClass not found")
	}
	if !inv.HasBaseSPkt {
		missing = append(missing, "serverbound base packet class not found")
	}
	if !inv.HasBaseCPkt {
		missing = append(missing, "clientbound base packet class not found")
	}
	if !inv.HasPktHdlr {
		missing = append(missing, "packet handler class not found")
	}
	if !inv.HasVarIntRdr {
		missing = append(missing, "varint reader class not found")
	}
	if !inv.HasIfaceProxy {
		missing = append(missing, "interface proxy class not found")
	}
	if len(inv.StaticClasses) == 0 {
		missing = append(missing, "no static holder classes found")
	}
	return inv, missing
}

func findByteArrayMultiname(pool *abc.ConstantPool) abc.Index {
	for i := 1; i < len(pool.Multinames); i++ {
		mn := &pool.Multinames[i]
		if mn.Kind != abc.MNKindQName {
			continue
		}
		if pool.Strings.At(mn.Name) == "ByteArray" {
			return abc.Index(i)
		}
	}
	return 0
}

func matchWrapClass(a *abc.Abc, ci abc.ClassIndex, c *abc.Class) *WrapClass {
	if len(c.ITraits) != 0 || len(c.CTraits) == 0 {
		return nil
	}
	methods := map[abc.Index]bool{}
	for _, t := range c.CTraits {
		if t.Kind != abc.TraitMethod {
			return nil
		}
		m := a.Method(t.Method)
		if m == nil || len(m.Params) != 1 || m.Params[0] != m.ReturnType {
			return nil
		}
		methods[t.Name] = true
	}
	return &WrapClass{Index: ci, Name: c.Name, Methods: methods}
}

func matchStaticClass(a *abc.Abc, ci abc.ClassIndex, c *abc.Class) *StaticClass {
	if len(c.ITraits) != 0 || len(c.CTraits) < staticHolderMinCTraits {
		return nil
	}
	sc := &StaticClass{ClassIndex: ci, Slots: map[abc.Index]int{}, Methods: map[abc.Index]StaticValue{}}
	for pos, t := range c.CTraits {
		switch {
		case t.IsConstLike() && t.Attrs == 0:
			sc.Slots[t.Name] = pos
		case t.Kind == abc.TraitMethod && t.Attrs&abc.TraitAttrFinal != 0:
			m := a.Method(t.Method)
			if m == nil {
				return nil
			}
			retName, _ := a.Pool.QName(m.ReturnType)
			if retName != "int" && retName != "Number" {
				return nil
			}
			val, ok := evalStaticMethod(a.Pool, m)
			if !ok {
				return nil
			}
			sc.Methods[t.Name] = val
		default:
			return nil
		}
	}
	evalCinit(a, c, sc)
	return sc
}

func matchServerboundBase(c *abc.Class, byteArrayMN abc.Index) bool {
	if !c.Sealed() || !c.Protected() {
		return false
	}
	if len(c.ITraits) == 0 {
		return false
	}
	first := c.ITraits[0]
	return first.IsConstLike() && first.SlotType == byteArrayMN
}

func matchClientboundBase(a *abc.Abc, c *abc.Class, byteArrayMN abc.Index) bool {
	if len(c.CTraits) < minClientboundCTraits || len(c.CTraits) > maxClientboundCTraits {
		return false
	}
	if len(c.ITraits) < minClientboundITraits || len(c.ITraits) > maxClientboundITraits {
		return false
	}
	if len(c.ITraits) < 3 {
		return false
	}
	third := c.ITraits[2]
	return third.IsConstLike() && third.SlotType == byteArrayMN
}

func matchPacketHandler(a *abc.Abc, c *abc.Class, byteArrayMN abc.Index) bool {
	if len(c.ITraits) != 0 {
		return false
	}
	for _, t := range c.CTraits {
		if t.Kind != abc.TraitMethod {
			continue
		}
		m := a.Method(t.Method)
		if m == nil || !m.HasBody() {
			continue
		}
		if m.LocalCount >= pktHdlrMinLocals && m.MaxStack >= pktHdlrMinStack &&
			len(m.Params) == 1 && m.Params[0] == byteArrayMN {
			return true
		}
	}
	return false
}

func matchVarIntReader(a *abc.Abc, c *abc.Class, byteArrayMN abc.Index) bool {
	if len(c.ITraits) == 0 {
		return false
	}
	first := c.ITraits[0]
	if !first.IsConstLike() || first.SlotType != byteArrayMN {
		return false
	}
	iinit := a.Method(c.IInit)
	return iinit != nil && len(iinit.Params) == 1 && iinit.Params[0] == byteArrayMN
}

func matchInterfaceProxy(a *abc.Abc, c *abc.Class) bool {
	if len(c.CTraits) != 0 || len(c.ITraits) != 0 || c.ProtectedNS == 0 {
		return false
	}
	iinit := a.Method(c.IInit)
	if iinit == nil || len(iinit.Params) != 1 {
		return false
	}
	// The parameter's type must name the game class, which is always the
	// document class at index 0 (spec.md invariant 4).
	if len(a.Classes) == 0 {
		return false
	}
	paramName, ok := a.Pool.QName(iinit.Params[0])
	gameName, gameOK := a.FQN(&a.Classes[0])
	return ok && gameOK && paramName == gameName
}

// evalStaticMethod runs the tiny arithmetic interpreter of spec.md 4.5 over
// a static holder method's body: PushByte/PushShort/PushInt, Add, Divide,
// GetLocal0, PushScope, ReturnValue only.
func evalStaticMethod(pool *abc.ConstantPool, m *abc.Method) (StaticValue, bool) {
	decoded, err := m.Parse()
	if err != nil {
		return StaticValue{}, false
	}
	var stack []StackValue
	for _, ins := range decoded {
		switch ins.Opcode {
		case abc.OpPushByte, abc.OpPushShort, abc.OpPushInt:
			v, ok := literalValue(pool, ins)
			if !ok {
				return StaticValue{}, false
			}
			stack = append(stack, v)
		case abc.OpGetLocal0, abc.OpPushScope:
			// no-op for constant evaluation purposes
		case abc.OpAdd, abc.OpDivide:
			if len(stack) < 2 {
				return StaticValue{}, false
			}
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			stack = append(stack, BinaryOp(ins.Opcode, a, b))
		case abc.OpReturnValue:
			if len(stack) == 0 {
				return StaticValue{}, false
			}
			top := stack[len(stack)-1]
			if !top.IsNumber() {
				return StaticValue{}, false
			}
			n := top.Number()
			if n == float64(int32(n)) {
				return StaticValue{I: int32(n)}, true
			}
			return StaticValue{IsFloat: true, F: n}, true
		default:
			return StaticValue{}, false
		}
	}
	return StaticValue{}, false
}

// Slot value-kind constants (ABC trait value kinds), named where spec.md
// 4.5/4.6 refers to them by kind byte.
const (
	ValueKindUtf8    uint8 = 0x01
	ValueKindDouble  uint8 = 0x06
	ValueKindFalse   uint8 = 0x0a
	ValueKindTrue    uint8 = 0x0b
)

// evalCinit walks a static holder's class initializer for
// `FindProperty P; Push{True,False}` pairs and records an inverted boolean
// value kind on slot P: PushTrue records ValueKindFalse (0x0a) and PushFalse
// records ValueKindTrue (0x0b), so the literal slotLiteral later inlines for
// P is the opposite of the one pushed here. A slot whose FindProperty is
// followed by anything else is dropped from sc.Slots (spec.md 4.5's
// "post-processing" for kind==0 default slots).
func evalCinit(a *abc.Abc, c *abc.Class, sc *StaticClass) {
	cinit := a.Method(c.CInit)
	if cinit == nil || !cinit.HasBody() {
		return
	}
	decoded, err := cinit.Parse()
	if err != nil {
		return
	}
	for i := 0; i < len(decoded)-1; i++ {
		ins := decoded[i]
		if ins.Opcode != abc.OpFindProperty {
			continue
		}
		name := abc.Index(ins.Operands[0])
		pos, ok := sc.Slots[name]
		if !ok {
			continue
		}
		next := decoded[i+1]
		switch next.Opcode {
		case abc.OpPushTrue:
			c.CTraits[pos].ValueKind = ValueKindFalse
		case abc.OpPushFalse:
			c.CTraits[pos].ValueKind = ValueKindTrue
		default:
			delete(sc.Slots, name)
		}
	}
}
