// Package detfm is the ABC analysis and rewriting core: expression
// simplification, method unscrambling, structural fingerprinting, packet
// identity recovery, and the jump/exception bookkeeping that keeps branch
// targets and exception ranges consistent as instructions are edited.
package detfm

import (
	"fmt"

	"github.com/whit3rabbit/detfm/internal/abc"
)

// excRef names which field of an exception record refers to an address,
// so JumpInfo can forward the right one when that address's instruction is
// removed.
type excField int

const (
	excFrom excField = iota
	excTo
	excTarget
)

type excRef struct {
	index int
	field excField
}

// JumpInfo lets a pass describe edits to one method's instruction stream as
// an append/pop/remove stream, instead of threading address arithmetic
// through the walk by hand. Once editing finishes, FixAddresses recomputes
// every instruction's address and rewrites every branch target and
// exception-range reference to match. This mirrors spec.md 4.1 exactly.
type JumpInfo struct {
	targets    map[uint32][]uint32
	jumpsHere  map[uint32][]uint32
	exceptions map[uint32][]excRef

	removed      []uint32
	instructions []abc.Instruction
	modified     bool

	// excAddr holds each exception record's current (possibly forwarded)
	// [from, to, target] addresses; origExceptions supplies the type/var
	// fields, which forwarding never touches.
	excAddr        [][3]uint32
	origExceptions []abc.ExceptionInfo
}

// ErrTrailingInstructions is returned by FixAddresses when edits scheduled
// a forward but no further Add ever arrived to receive it.
var ErrTrailingInstructions = fmt.Errorf("detfm: trailing removed instructions at fix_addresses")

// NewJumpInfo seeds all bookkeeping maps from a method's original
// instruction list and exception table.
func NewJumpInfo(original []abc.Instruction, exceptions []abc.ExceptionInfo) *JumpInfo {
	ji := &JumpInfo{
		targets:        map[uint32][]uint32{},
		jumpsHere:      map[uint32][]uint32{},
		exceptions:     map[uint32][]excRef{},
		origExceptions: exceptions,
	}
	for _, ins := range original {
		if len(ins.Targets) == 0 {
			continue
		}
		cp := append([]uint32(nil), ins.Targets...)
		ji.targets[ins.Addr] = cp
		for _, t := range cp {
			ji.jumpsHere[t] = append(ji.jumpsHere[t], ins.Addr)
		}
	}
	ji.excAddr = make([][3]uint32, len(exceptions))
	for i, e := range exceptions {
		ji.excAddr[i] = [3]uint32{e.From, e.To, e.Target}
		ji.exceptions[e.From] = append(ji.exceptions[e.From], excRef{i, excFrom})
		ji.exceptions[e.To] = append(ji.exceptions[e.To], excRef{i, excTo})
		ji.exceptions[e.Target] = append(ji.exceptions[e.Target], excRef{i, excTarget})
	}
	return ji
}

// Add appends ins to the output list. If any instructions are pending
// removal, their labels are forwarded to ins's address first.
func (ji *JumpInfo) Add(ins abc.Instruction) {
	if len(ji.removed) > 0 {
		for _, addr := range ji.removed {
			ji.forward(addr, ins.Addr)
		}
		ji.removed = ji.removed[:0]
	}
	ji.instructions = append(ji.instructions, ins)
}

// Pop removes the last appended instruction, scheduling its address to be
// forwarded to whatever is appended next.
func (ji *JumpInfo) Pop() {
	n := len(ji.instructions)
	if n == 0 {
		return
	}
	last := ji.instructions[n-1]
	ji.instructions = ji.instructions[:n-1]
	ji.removed = append(ji.removed, last.Addr)
	ji.modified = true
}

// Remove schedules ins's original address to be forwarded to whatever
// instruction is appended next, without touching the output list (used
// when the caller is walking the *original* stream rather than popping
// from the output).
func (ji *JumpInfo) Remove(ins abc.Instruction) {
	ji.removed = append(ji.removed, ins.Addr)
	ji.modified = true
}

// Jumps returns the i-th original branch target recorded for the
// instruction that was at addr (order matters for LookupSwitch).
func (ji *JumpInfo) Jumps(addr uint32, i int) (uint32, bool) {
	targets, ok := ji.targets[addr]
	if !ok || i >= len(targets) {
		return 0, false
	}
	return targets[i], true
}

// Modified reports whether any Pop or Remove has been made; Add alone never
// sets it.
func (ji *JumpInfo) Modified() bool { return ji.modified }

// forward redirects every src that used to jump to addr, and every
// exception record that referenced addr, to nextAddr instead.
func (ji *JumpInfo) forward(addr, nextAddr uint32) {
	for _, src := range ji.jumpsHere[addr] {
		targets := ji.targets[src]
		for i, t := range targets {
			if t == addr {
				targets[i] = nextAddr
			}
		}
		ji.jumpsHere[nextAddr] = append(ji.jumpsHere[nextAddr], src)
	}
	delete(ji.jumpsHere, addr)
	if refs, ok := ji.exceptions[addr]; ok {
		for _, ref := range refs {
			ji.excAddr[ref.index][ref.field] = nextAddr
		}
		ji.exceptions[nextAddr] = append(ji.exceptions[nextAddr], refs...)
		delete(ji.exceptions, addr)
	}
	ji.modified = true
}

// FixAddresses walks the edited instruction list, recomputes absolute
// addresses by cumulative instruction size, and rewrites every branch
// target and exception-record field to the new address of whatever
// instruction now represents the original destination. It returns the
// final instruction list and exception table, ready for
// Method.SaveInstructions.
func (ji *JumpInfo) FixAddresses() ([]abc.Instruction, []abc.ExceptionInfo, error) {
	if len(ji.removed) > 0 {
		return nil, nil, ErrTrailingInstructions
	}

	oldToNew := make(map[uint32]uint32, len(ji.instructions))
	addr := uint32(0)
	for i := range ji.instructions {
		oldToNew[ji.instructions[i].Addr] = addr
		addr += uint32(ji.instructions[i].Size())
	}

	out := make([]abc.Instruction, len(ji.instructions))
	for i, ins := range ji.instructions {
		newIns := ins
		newIns.Addr = oldToNew[ins.Addr]
		// ji.targets is the authoritative, forward-updated destination
		// list for the instruction that was at ins.Addr; ins.Targets
		// itself may still name an address that was since removed.
		if targets, ok := ji.targets[ins.Addr]; ok {
			newTargets := make([]uint32, len(targets))
			for j, t := range targets {
				newAddr, ok := oldToNew[t]
				if !ok {
					return nil, nil, fmt.Errorf("detfm: branch target %d has no surviving instruction", t)
				}
				newTargets[j] = newAddr
			}
			newIns.Targets = newTargets
		}
		out[i] = newIns
	}

	newExceptions := make([]abc.ExceptionInfo, len(ji.origExceptions))
	for i, e := range ji.origExceptions {
		cur := ji.excAddr[i]
		from, ok := oldToNew[cur[0]]
		if !ok {
			return nil, nil, fmt.Errorf("detfm: exception[%d].From %d has no surviving instruction", i, cur[0])
		}
		to, ok := oldToNew[cur[1]]
		if !ok {
			return nil, nil, fmt.Errorf("detfm: exception[%d].To %d has no surviving instruction", i, cur[1])
		}
		target, ok := oldToNew[cur[2]]
		if !ok {
			return nil, nil, fmt.Errorf("detfm: exception[%d].Target %d has no surviving instruction", i, cur[2])
		}
		newExceptions[i] = abc.ExceptionInfo{From: from, To: to, Target: target, ExcType: e.ExcType, VarName: e.VarName}
	}

	return out, newExceptions, nil
}
