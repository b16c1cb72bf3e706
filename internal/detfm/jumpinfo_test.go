package detfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
)

func TestJumpInfoForwardsRemovedTargetToNextInstruction(t *testing.T) {
	original := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpNop},
		{Addr: 1, Opcode: abc.OpJump, Targets: []uint32{2}},
		{Addr: 2, Opcode: abc.OpNop}, // jump target, will be removed
		{Addr: 3, Opcode: abc.OpNop},
	}

	ji := NewJumpInfo(original, nil)
	ji.Add(original[0])
	ji.Add(original[1])
	ji.Remove(original[2])
	ji.Add(original[3])

	assert.True(t, ji.Modified())

	out, _, err := ji.FixAddresses()
	require.NoError(t, err)
	require.Len(t, out, 3)

	// ins0 (1 byte) -> 0, ins1/jump (4 bytes) -> 1, ins3 -> 5, since ins2
	// was dropped and the jump's target forwards to ins3's new address.
	assert.Equal(t, uint32(0), out[0].Addr)
	assert.Equal(t, uint32(1), out[1].Addr)
	assert.Equal(t, uint32(5), out[2].Addr)
	require.Len(t, out[1].Targets, 1)
	assert.Equal(t, uint32(5), out[1].Targets[0])
}

func TestJumpInfoFixAddressesFailsWithTrailingRemoved(t *testing.T) {
	original := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpNop},
	}
	ji := NewJumpInfo(original, nil)
	ji.Remove(original[0])

	_, _, err := ji.FixAddresses()
	assert.ErrorIs(t, err, ErrTrailingInstructions)
}

func TestJumpInfoPopSchedulesForward(t *testing.T) {
	original := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpJump, Targets: []uint32{1}},
		{Addr: 1, Opcode: abc.OpNop},
	}
	ji := NewJumpInfo(original, nil)
	ji.Add(original[0])
	ji.Add(original[1])
	ji.Pop() // drop the Nop at addr 1
	replacement := abc.Instruction{Addr: 1, Opcode: abc.OpNop}
	ji.Add(replacement)

	out, _, err := ji.FixAddresses()
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint32(4), out[1].Addr) // jump is 4 bytes
	require.Len(t, out[0].Targets, 1)
	assert.Equal(t, uint32(4), out[0].Targets[0])
}

func TestJumpInfoForwardsExceptionRanges(t *testing.T) {
	original := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpNop},
		{Addr: 1, Opcode: abc.OpNop}, // try-from, removed
		{Addr: 2, Opcode: abc.OpNop},
	}
	exceptions := []abc.ExceptionInfo{
		{From: 1, To: 2, Target: 2},
	}
	ji := NewJumpInfo(original, exceptions)
	ji.Add(original[0])
	ji.Remove(original[1])
	ji.Add(original[2])

	out, newExc, err := ji.FixAddresses()
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, newExc, 1)
	assert.Equal(t, out[1].Addr, newExc[0].From)
	assert.Equal(t, out[1].Addr, newExc[0].To)
	assert.Equal(t, out[1].Addr, newExc[0].Target)
}

func TestJumpInfoJumpsAccessor(t *testing.T) {
	original := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpLookupSwitch, Targets: []uint32{10, 20, 30}},
	}
	ji := NewJumpInfo(original, nil)

	target, ok := ji.Jumps(0, 1)
	require.True(t, ok)
	assert.Equal(t, uint32(20), target)

	_, ok = ji.Jumps(0, 5)
	assert.False(t, ok)

	_, ok = ji.Jumps(99, 0)
	assert.False(t, ok)
}
