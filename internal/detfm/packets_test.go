package detfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
	dfmt "github.com/whit3rabbit/detfm/internal/fmt"
)

func TestMatchSuperConstructSeqResolvesDoublePoolIndex(t *testing.T) {
	pool, _ := newTestPool()
	catIdx := pool.Doubles.Intern(2)
	pktIdx := pool.Doubles.Intern(9)

	decoded := []abc.Instruction{
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(catIdx)}},
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(pktIdx)}},
		{Opcode: abc.OpConstructSuper, Operands: []uint32{0}},
	}

	cat, pkt, ok := matchSuperConstructSeq(pool, decoded)
	require.True(t, ok)
	assert.Equal(t, uint8(2), cat)
	assert.Equal(t, uint8(9), pkt)
}

func TestMatchSuperConstructSeqSinglePushDoubleDefaultsCategory(t *testing.T) {
	pool, _ := newTestPool()
	pktIdx := pool.Doubles.Intern(7)

	decoded := []abc.Instruction{
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(pktIdx)}},
		{Opcode: abc.OpConstructSuper, Operands: []uint32{0}},
	}

	cat, pkt, ok := matchSuperConstructSeq(pool, decoded)
	require.True(t, ok)
	assert.Equal(t, uint8(0), cat)
	assert.Equal(t, uint8(7), pkt)
}

func TestGetPacketCodeResolvesDoublePoolIndexPushFirst(t *testing.T) {
	pool, _ := newTestPool()
	codeIdx := pool.Doubles.Intern(40)

	ins := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpGetLex, Operands: []uint32{1}},
		{Addr: 1, Opcode: abc.OpGetProperty, Operands: []uint32{2}},
		{Addr: 2, Opcode: abc.OpPushDouble, Operands: []uint32{uint32(codeIdx)}},
		{Addr: 3, Opcode: abc.OpIfNE, Targets: []uint32{99}},
	}
	prog := newProgram(ins)

	code, target, ok := getPacketCode(pool, prog)
	require.True(t, ok)
	assert.Equal(t, uint8(40), code)
	assert.Equal(t, uint32(99), target)
}

func TestGetPacketCodeResolvesDoublePoolIndexPushBefore(t *testing.T) {
	pool, _ := newTestPool()
	codeIdx := pool.Doubles.Intern(41)

	ins := []abc.Instruction{
		{Addr: 0, Opcode: abc.OpPushDouble, Operands: []uint32{uint32(codeIdx)}},
		{Addr: 1, Opcode: abc.OpGetLex, Operands: []uint32{1}},
		{Addr: 2, Opcode: abc.OpGetProperty, Operands: []uint32{2}},
		{Addr: 3, Opcode: abc.OpIfNE, Targets: []uint32{77}},
	}
	prog := newProgram(ins)
	prog.advance(1) // cursor on the GetLex, PushDouble one slot behind

	code, target, ok := getPacketCode(pool, prog)
	require.True(t, ok)
	assert.Equal(t, uint8(41), code)
	assert.Equal(t, uint32(77), target)
}

func TestMatchPushDoubleIfNeResolvesDoublePoolIndexBothOrders(t *testing.T) {
	pool, _ := newTestPool()
	idxA := pool.Doubles.Intern(12)
	idxB := pool.Doubles.Intern(13)

	progA := newProgram([]abc.Instruction{
		{Opcode: abc.OpGetLocal2},
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(idxA)}},
		{Opcode: abc.OpIfNE, Targets: []uint32{5}},
	})
	code, target, ok := matchPushDoubleIfNe(pool, progA)
	require.True(t, ok)
	assert.Equal(t, uint8(12), code)
	assert.Equal(t, uint32(5), target)

	progB := newProgram([]abc.Instruction{
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(idxB)}},
		{Opcode: abc.OpGetLocal2},
		{Opcode: abc.OpIfNE, Targets: []uint32{6}},
	})
	code, target, ok = matchPushDoubleIfNe(pool, progB)
	require.True(t, ok)
	assert.Equal(t, uint8(13), code)
	assert.Equal(t, uint32(6), target)
}

// TestRecoverServerboundDirectRenamesUsingDoublePoolValues builds a minimal
// serverbound-base subclass whose constructor pushes pool-indexed category
// and packet-id doubles ahead of ConstructSuper, and checks the recovered
// name embeds the literal values (not the pool indices).
func TestRecoverServerboundDirectRenamesUsingDoublePoolValues(t *testing.T) {
	pool, ns := newTestPool()
	a := abc.NewAbc(pool)

	baseName := qname(pool, ns, "Base")
	a.Classes = append(a.Classes, abc.Class{
		Name:    baseName,
		Flags:   abc.ClassFlagSealed | abc.ClassFlagProtected,
		ITraits: []abc.Trait{{Kind: abc.TraitConst}},
	})

	catIdx := pool.Doubles.Intern(2)
	pktIdx := pool.Doubles.Intern(9)
	code, err := abc.EncodeInstructions([]abc.Instruction{
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(catIdx)}},
		{Opcode: abc.OpPushDouble, Operands: []uint32{uint32(pktIdx)}},
		{Opcode: abc.OpConstructSuper, Operands: []uint32{0}},
		{Opcode: abc.OpReturnVoid},
	})
	require.NoError(t, err)
	a.Methods = append(a.Methods, abc.Method{Code: code})

	a.Classes = append(a.Classes, abc.Class{
		Name:      qname(pool, ns, "obf1"),
		SuperName: baseName,
		IInit:     0,
	})

	na := NewNamespaceAssigner(pool)
	spkt := na.CreatePackage("packets.serverbound")
	pr := &PacketRecovery{
		A:   a,
		Inv: &Inventory{HasBaseSPkt: true, BaseSPkt: 0},
		NS:  &NSNames{SPkt: spkt},
		NA:  na,
		Fmt: dfmt.DefaultFormatter{},
	}

	require.NoError(t, pr.RecoverServerboundDirect())

	gotName, ok := pool.QName(a.Classes[1].Name)
	require.True(t, ok)
	assert.Equal(t, "SPacket0209", gotName)
}
