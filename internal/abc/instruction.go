package abc

import (
	"bytes"
	"fmt"
	"math"
)

// Instruction is the decoded form of one AVM2 opcode and its operands.
// Operands holds whatever U30/U8 values the opcode carries, in encoding
// order (e.g. CallProperty's Operands are [multiname-index, arg-count]).
// Targets holds absolute destination addresses: for branch ops a single
// entry, for LookupSwitch [default, case0, case1, ...] as spec.md 3 names.
type Instruction struct {
	Addr     uint32
	Opcode   Opcode
	Operands []uint32
	Targets  []uint32
}

// Op is a convenience accessor returning the mnemonic name.
func (i *Instruction) Op() string { return i.Opcode.Name() }

// IntOperand re-interprets the operand value v as a signed value of the given
// byte width, used for PushByte (1 byte) and PushShort-style reads.
func IntOperand(v uint32, width int) int64 {
	switch width {
	case 1:
		return int64(int8(v))
	case 2:
		return int64(int16(v))
	default:
		return int64(int32(v))
	}
}

// Size returns the number of bytes this instruction occupies once encoded,
// used by FixAddresses to recompute the address of every instruction after
// edits (spec.md 4.1).
func (i *Instruction) Size() int {
	n := 1 // opcode byte
	info, ok := opcodeTable[i.Opcode]
	if !ok {
		return n
	}
	if info.IsSwitch {
		// case-count U30 + one S24 per target (default included).
		n += varuintSize(uint64(len(i.Targets)-2))
		n += 3 * len(i.Targets)
		return n
	}
	for idx, kind := range info.Operands {
		switch kind {
		case OperandU8:
			n++
		case OperandS24:
			n += 3
		case OperandU30:
			n += varuintSize(uint64(i.Operands[idx]))
		}
	}
	return n
}

func varuintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// DecodeInstructions decodes the full body of a method's code array into
// absolute-addressed instructions. Branch and switch operands are resolved
// to absolute target addresses immediately, matching the Instruction shape
// spec.md 3 requires ("targets lists absolute destination addresses").
func DecodeInstructions(code []byte) ([]Instruction, error) {
	r := bytes.NewReader(code)
	var out []Instruction
	for r.Len() > 0 {
		addr := uint32(len(code) - r.Len())
		opByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("abc: reading opcode at %d: %w", addr, err)
		}
		op := Opcode(opByte)
		info, ok := opcodeTable[op]
		if !ok {
			return nil, fmt.Errorf("abc: unknown opcode 0x%02x at %d", opByte, addr)
		}
		ins := Instruction{Addr: addr, Opcode: op}
		if info.IsSwitch {
			base := uint32(len(code) - r.Len()) // position right after opcode byte
			def, err := readS24(r)
			if err != nil {
				return nil, fmt.Errorf("abc: lookupswitch default at %d: %w", addr, err)
			}
			caseCount, err := readU30(r)
			if err != nil {
				return nil, fmt.Errorf("abc: lookupswitch case count at %d: %w", addr, err)
			}
			targets := make([]uint32, 0, caseCount+2)
			targets = append(targets, uint32(int64(base)+def))
			for c := uint32(0); c <= caseCount; c++ {
				off, err := readS24(r)
				if err != nil {
					return nil, fmt.Errorf("abc: lookupswitch case %d at %d: %w", c, addr, err)
				}
				targets = append(targets, uint32(int64(base)+off))
			}
			ins.Targets = targets
		} else {
			for _, kind := range info.Operands {
				switch kind {
				case OperandU8:
					b, err := r.ReadByte()
					if err != nil {
						return nil, fmt.Errorf("abc: %s operand at %d: %w", info.Name, addr, err)
					}
					ins.Operands = append(ins.Operands, uint32(b))
				case OperandU30:
					v, err := readU30(r)
					if err != nil {
						return nil, fmt.Errorf("abc: %s operand at %d: %w", info.Name, addr, err)
					}
					ins.Operands = append(ins.Operands, v)
				case OperandS24:
					opPos := uint32(len(code) - r.Len())
					off, err := readS24(r)
					if err != nil {
						return nil, fmt.Errorf("abc: %s branch at %d: %w", info.Name, addr, err)
					}
					target := uint32(int64(opPos+3) + off)
					ins.Targets = []uint32{target}
				}
			}
		}
		out = append(out, ins)
	}
	return out, nil
}

// EncodeInstructions re-serializes instructions, assumed already address-
// fixed by a JumpInfo.FixAddresses pass, back into a flat byte stream.
func EncodeInstructions(instructions []Instruction) ([]byte, error) {
	var buf bytes.Buffer
	for _, ins := range instructions {
		buf.WriteByte(byte(ins.Opcode))
		info, ok := opcodeTable[ins.Opcode]
		if !ok {
			return nil, fmt.Errorf("abc: unknown opcode 0x%02x at %d", ins.Opcode, ins.Addr)
		}
		if info.IsSwitch {
			endOfOpAddr := ins.Addr + 1
			writeS24(&buf, int64(ins.Targets[0])-int64(endOfOpAddr))
			writeU30(&buf, uint32(len(ins.Targets)-2))
			for _, t := range ins.Targets[1:] {
				writeS24(&buf, int64(t)-int64(endOfOpAddr))
			}
			continue
		}
		opIdx := 0
		for _, kind := range info.Operands {
			switch kind {
			case OperandU8:
				buf.WriteByte(byte(ins.Operands[opIdx]))
				opIdx++
			case OperandU30:
				writeU30(&buf, ins.Operands[opIdx])
				opIdx++
			case OperandS24:
				// Written below, once the full instruction size is known.
			}
		}
		if ins.Opcode.IsBranch() {
			end := uint32(int(ins.Addr) + ins.Size())
			writeS24(&buf, int64(ins.Targets[0])-int64(end))
		}
	}
	return buf.Bytes(), nil
}

func readU30(r *bytes.Reader) (uint32, error) {
	var result uint32
	for shift := 0; shift < 35; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, fmt.Errorf("abc: varint too long")
}

func writeU30(buf *bytes.Buffer, v uint32) {
	for v >= 0x80 {
		buf.WriteByte(byte(v&0x7f) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}

func readS24(r *bytes.Reader) (int64, error) {
	var b [3]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	if v&0x800000 != 0 {
		v |= -1 << 24
	}
	return int64(v), nil
}

func writeS24(buf *bytes.Buffer, v int64) {
	u := uint32(int32(v)) & 0xffffff
	buf.WriteByte(byte(u))
	buf.WriteByte(byte(u >> 8))
	buf.WriteByte(byte(u >> 16))
}

// DoubleBits returns the IEEE-754 bit pattern of v.
func DoubleBits(v float64) uint64 { return math.Float64bits(v) }
