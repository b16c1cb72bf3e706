package detfm

import (
	"fmt"
	"math"

	"github.com/whit3rabbit/detfm/internal/abc"
)

// ErrEmptyStack is returned when an opcode needs an abstract stack entry
// that isn't there — a malformed method body, per spec.md 4.3.
var ErrEmptyStack = fmt.Errorf("detfm: empty abstract stack")

// ErrUnsupportedOpCode is returned when an opcode has no stack-effect
// entry and isn't one of the specially-handled cases (spec.md 4.3).
type ErrUnsupportedOpCode struct{ Op abc.Opcode }

func (e *ErrUnsupportedOpCode) Error() string {
	return fmt.Sprintf("detfm: unsupported opcode %s (0x%02x)", e.Op.Name(), byte(e.Op))
}

// trackedValue pairs an abstract StackValue with the output-instruction
// index solely responsible for producing it — Owner is -1 when the value
// was produced by Dup (shared with another live copy) or by an opaque
// opcode, meaning it cannot be safely popped out of the output stream.
type trackedValue struct {
	value StackValue
	owner int
}

// SimplifyMethod performs one pass of spec.md 4.3's expression
// simplification over m: constant folding of literal arithmetic, Negate,
// Not, dup/swap bookkeeping, and the `CallProperty("Boolean", 1)` rewrite.
// It returns whether anything changed.
func SimplifyMethod(pool *abc.ConstantPool, m *abc.Method) (bool, error) {
	if !m.HasBody() {
		return false, nil
	}
	decoded, err := m.Parse()
	if err != nil {
		return false, err
	}
	ji := NewJumpInfo(decoded, m.Exceptions)

	var stack []trackedValue
	pop := func() (trackedValue, error) {
		n := len(stack)
		if n == 0 {
			return trackedValue{}, ErrEmptyStack
		}
		v := stack[n-1]
		stack = stack[:n-1]
		return v, nil
	}

	for _, ins := range decoded {
		if lit, ok := literalValue(pool, ins); ok {
			owner := len(ji.instructions)
			ji.Add(ins)
			stack = append(stack, trackedValue{lit, owner})
			continue
		}

		switch ins.Opcode {
		case abc.OpDup:
			ji.Add(ins)
			topValue := Invalid()
			if n := len(stack); n > 0 {
				topValue = stack[n-1].value
				stack[n-1] = trackedValue{topValue, -1} // no longer independently poppable
			}
			stack = append(stack, trackedValue{topValue, -1})
			continue

		case abc.OpSwap:
			ji.Add(ins)
			n := len(stack)
			if n >= 2 {
				stack[n-1], stack[n-2] = stack[n-2], stack[n-1]
			} else {
				for len(stack) < 2 {
					stack = append(stack, trackedValue{Invalid(), -1})
				}
			}
			continue

		case abc.OpNot:
			v, err := pop()
			if err != nil {
				return false, err
			}
			var nv StackValue
			if v.value.IsBoolean() {
				nv = Boolean(!v.value.Bool())
			} else {
				nv = Invalid()
			}
			ji.Add(ins)
			stack = append(stack, trackedValue{nv, -1})
			continue

		case abc.OpNegate:
			v, err := pop()
			if err != nil {
				return false, err
			}
			if v.value.IsNumber() && v.owner == len(ji.instructions)-1 {
				ji.Pop()
				nv := Number(-v.value.Number())
				newIns := literalInstruction(pool, nv, ins.Addr)
				owner := len(ji.instructions)
				ji.Add(newIns)
				stack = append(stack, trackedValue{nv, owner})
			} else {
				ji.Add(ins)
				stack = append(stack, trackedValue{Invalid(), -1})
			}
			continue

		case abc.OpAdd, abc.OpSubtract, abc.OpMultiply, abc.OpDivide:
			b, err := pop()
			if err != nil {
				return false, err
			}
			a, err := pop()
			if err != nil {
				return false, err
			}
			combined := BinaryOp(ins.Opcode, a.value, b.value)
			canFold := !combined.IsInvalid() && a.owner >= 0 && b.owner == a.owner+1 && b.owner == len(ji.instructions)-1
			if canFold {
				ji.Pop()
				ji.Pop()
				newIns := literalInstruction(pool, combined, ins.Addr)
				owner := len(ji.instructions)
				ji.Add(newIns)
				stack = append(stack, trackedValue{combined, owner})
			} else {
				ji.Add(ins)
				stack = append(stack, trackedValue{combined, -1})
			}
			continue

		case abc.OpCallProperty:
			if isBooleanCoercionCall(pool, ins) {
				arg, err := pop()
				if err != nil {
					return false, err
				}
				recv, err := pop()
				if err != nil {
					return false, err
				}
				nv := Boolean(arg.value.ToBool())
				canFold := arg.owner >= 0 && recv.owner >= 0 && arg.owner == len(ji.instructions)-1 && recv.owner == arg.owner-1
				if canFold {
					ji.Pop()
					ji.Pop()
					newIns := literalInstruction(pool, nv, ins.Addr)
					owner := len(ji.instructions)
					ji.Add(newIns)
					stack = append(stack, trackedValue{nv, owner})
					continue
				}
				ji.Add(ins)
				stack = append(stack, trackedValue{nv, -1})
				continue
			}
		}

		take, put, ok := StackEffect(ins)
		if !ok {
			return false, &ErrUnsupportedOpCode{ins.Opcode}
		}
		for i := 0; i < take; i++ {
			if _, err := pop(); err != nil {
				return false, err
			}
		}
		ji.Add(ins)
		for i := 0; i < put; i++ {
			stack = append(stack, trackedValue{Invalid(), -1})
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

// literalValue decodes a push-literal instruction into its StackValue, or
// reports ok=false for anything else.
func literalValue(pool *abc.ConstantPool, ins abc.Instruction) (StackValue, bool) {
	switch ins.Opcode {
	case abc.OpPushByte:
		return Number(float64(int8(ins.Operands[0]))), true
	case abc.OpPushShort:
		return Number(float64(int16(ins.Operands[0]))), true
	case abc.OpPushInt:
		return Number(float64(pool.Integers.At(abc.Index(ins.Operands[0])))), true
	case abc.OpPushUInt:
		return Number(float64(pool.UIntegers.At(abc.Index(ins.Operands[0])))), true
	case abc.OpPushDouble:
		return Number(pool.Doubles.At(abc.Index(ins.Operands[0]))), true
	case abc.OpPushString:
		return StringValue(pool.Strings.At(abc.Index(ins.Operands[0]))), true
	case abc.OpPushTrue:
		return Boolean(true), true
	case abc.OpPushFalse:
		return Boolean(false), true
	default:
		return StackValue{}, false
	}
}

// literalInstruction chooses the smallest ABC encoding for v (spec.md 4.3's
// rewrite table) and returns a ready-to-append instruction carrying addr
// so it forwards correctly through JumpInfo.
func literalInstruction(pool *abc.ConstantPool, v StackValue, addr uint32) abc.Instruction {
	if v.IsBoolean() {
		op := abc.OpPushFalse
		if v.Bool() {
			op = abc.OpPushTrue
		}
		return abc.Instruction{Addr: addr, Opcode: op}
	}
	if v.IsString() {
		idx := pool.Strings.Intern(v.String())
		return abc.Instruction{Addr: addr, Opcode: abc.OpPushString, Operands: []uint32{uint32(idx)}}
	}
	n := v.Number()
	if n == math.Trunc(n) && !math.IsInf(n, 0) {
		iv := int64(n)
		if iv >= -0x80 && iv <= 0x80 {
			return abc.Instruction{Addr: addr, Opcode: abc.OpPushByte, Operands: []uint32{uint32(uint8(int8(iv)))}}
		}
		if iv >= -0x8000 && iv <= 0x8000 {
			return abc.Instruction{Addr: addr, Opcode: abc.OpPushShort, Operands: []uint32{uint32(uint16(int16(iv)))}}
		}
	}
	idx := pool.Doubles.Intern(n)
	return abc.Instruction{Addr: addr, Opcode: abc.OpPushDouble, Operands: []uint32{uint32(idx)}}
}

// isBooleanCoercionCall reports whether ins is `CallProperty(Boolean, 1)` —
// a property named "Boolean" called with exactly one argument.
func isBooleanCoercionCall(pool *abc.ConstantPool, ins abc.Instruction) bool {
	if len(ins.Operands) != 2 || ins.Operands[1] != 1 {
		return false
	}
	name, ok := pool.QName(abc.Index(ins.Operands[0]))
	return ok && name == "Boolean"
}
