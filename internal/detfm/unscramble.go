package detfm

import "github.com/whit3rabbit/detfm/internal/abc"

// IsWrapIns reports whether ins is a CallProperty or GetProperty naming one
// of wc's pass-through methods (spec.md 4.6).
func (wc *WrapClass) IsWrapIns(ins abc.Instruction) bool {
	if len(ins.Operands) == 0 {
		return false
	}
	switch ins.Opcode {
	case abc.OpCallProperty, abc.OpGetProperty:
		return wc.Methods[abc.Index(ins.Operands[0])]
	default:
		return false
	}
}

// UnscrambleMethod rewrites m's body to remove wrapper-class indirection
// and inline static-holder constants (spec.md 4.6). Methods without a body
// and methods when no wrapper class was found are left untouched. It
// reports whether anything changed.
func UnscrambleMethod(a *abc.Abc, m *abc.Method, inv *Inventory) (bool, error) {
	if !m.HasBody() {
		return false, nil
	}
	if inv.WrapClass == nil {
		return false, nil
	}

	decoded, err := m.Parse()
	if err != nil {
		return false, err
	}
	ji := NewJumpInfo(decoded, m.Exceptions)

	removeCalls := 0
	var staticClass *StaticClass

	for _, ins := range decoded {
		if staticClass != nil {
			sc := staticClass
			staticClass = nil
			if rewritten, ok := handleStaticClass(a, ins, sc); ok {
				ji.Pop() // drop the buffered GetLex
				ji.Add(rewritten)
			} else {
				ji.Add(ins)
			}
			continue
		}

		switch {
		case inv.WrapClass.IsWrapIns(ins):
			if ins.Opcode == abc.OpGetProperty {
				removeCalls++
			}
			ji.Remove(ins)

		case removeCalls > 0 && (ins.Opcode == abc.OpCall || ins.Opcode == abc.OpGetGlobalScope):
			if ins.Opcode == abc.OpCall {
				removeCalls--
			}
			ji.Remove(ins)

		case ins.Opcode == abc.OpGetLex:
			property := abc.Index(ins.Operands[0])
			switch {
			case inv.StaticClasses[property] != nil:
				staticClass = inv.StaticClasses[property]
				ji.Add(ins) // buffered; dropped on the next iteration if rewritten
			case property == inv.WrapClass.Name:
				ji.Remove(ins)
			default:
				ji.Add(ins)
			}

		default:
			ji.Add(ins)
		}
	}

	if !ji.Modified() {
		return false, nil
	}
	instrs, excs, err := ji.FixAddresses()
	if err != nil {
		return false, err
	}
	if err := m.SaveInstructions(instrs); err != nil {
		return false, err
	}
	m.Exceptions = excs
	return true, nil
}

// handleStaticClass implements spec.md 4.6 step 1: the instruction
// following a buffered GetLex(staticClass) is inspected and, if it reads a
// slot or calls a constant-evaluated method, rewritten to the equivalent
// push-literal in place.
func handleStaticClass(a *abc.Abc, ins abc.Instruction, sc *StaticClass) (abc.Instruction, bool) {
	if len(ins.Operands) == 0 {
		return ins, false
	}
	property := abc.Index(ins.Operands[0])

	switch ins.Opcode {
	case abc.OpGetProperty:
		pos, ok := sc.Slots[property]
		if !ok {
			return ins, false
		}
		return sc.slotLiteral(a, pos, ins.Addr)

	case abc.OpCallProperty:
		val, ok := sc.Methods[property]
		if !ok {
			return ins, false
		}
		return val.literalInstruction(a.Pool, ins.Addr), true

	default:
		return ins, false
	}
}

// slotLiteral reads back the value kind/index stored at a static holder's
// CTraits[pos] (possibly updated by evalCinit's boolean post-processing)
// and produces the matching push-literal instruction.
func (sc *StaticClass) slotLiteral(a *abc.Abc, pos int, addr uint32) (abc.Instruction, bool) {
	class := a.Class(sc.ClassIndex)
	if class == nil || pos >= len(class.CTraits) {
		return abc.Instruction{}, false
	}
	trait := class.CTraits[pos]
	switch trait.ValueKind {
	case ValueKindUtf8:
		return abc.Instruction{Addr: addr, Opcode: abc.OpPushString, Operands: []uint32{uint32(trait.ValueIndex)}}, true
	case ValueKindDouble:
		return abc.Instruction{Addr: addr, Opcode: abc.OpPushDouble, Operands: []uint32{uint32(trait.ValueIndex)}}, true
	case ValueKindFalse:
		return abc.Instruction{Addr: addr, Opcode: abc.OpPushFalse}, true
	case ValueKindTrue:
		return abc.Instruction{Addr: addr, Opcode: abc.OpPushTrue}, true
	default:
		return abc.Instruction{}, false
	}
}

// literalInstruction turns an evaluated static-method constant into the
// matching push-literal instruction: a Float result (IsFloat) becomes
// PushDouble and an Int result becomes PushInt, each interned in the
// matching pool table.
func (v StaticValue) literalInstruction(pool *abc.ConstantPool, addr uint32) abc.Instruction {
	if v.IsFloat {
		idx := pool.Doubles.Intern(v.F)
		return abc.Instruction{Addr: addr, Opcode: abc.OpPushDouble, Operands: []uint32{uint32(idx)}}
	}
	idx := pool.Integers.Intern(v.I)
	return abc.Instruction{Addr: addr, Opcode: abc.OpPushInt, Operands: []uint32{uint32(idx)}}
}
