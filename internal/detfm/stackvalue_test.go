package detfm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/whit3rabbit/detfm/internal/abc"
)

func TestStackValueToBool(t *testing.T) {
	assert.False(t, Invalid().ToBool())
	assert.False(t, Number(0).ToBool())
	assert.True(t, Number(1).ToBool())
	assert.False(t, StringValue("").ToBool())
	assert.True(t, StringValue("x").ToBool())
	assert.True(t, Boolean(true).ToBool())
	assert.False(t, Boolean(false).ToBool())
}

func TestBinaryOpArithmetic(t *testing.T) {
	assert.Equal(t, 5.0, BinaryOp(abc.OpAdd, Number(2), Number(3)).Number())
	assert.Equal(t, -1.0, BinaryOp(abc.OpSubtract, Number(2), Number(3)).Number())
	assert.Equal(t, 6.0, BinaryOp(abc.OpMultiply, Number(2), Number(3)).Number())
	assert.Equal(t, 2.0, BinaryOp(abc.OpDivide, Number(4), Number(2)).Number())
}

func TestBinaryOpStringConcat(t *testing.T) {
	result := BinaryOp(abc.OpAdd, StringValue("foo"), StringValue("bar"))
	assert.True(t, result.IsString())
	assert.Equal(t, "foobar", result.String())
}

func TestBinaryOpMismatchedTypesInvalid(t *testing.T) {
	assert.True(t, BinaryOp(abc.OpAdd, StringValue("foo"), Number(1)).IsInvalid())
	assert.True(t, BinaryOp(abc.OpSubtract, StringValue("foo"), StringValue("bar")).IsInvalid())
	assert.True(t, BinaryOp(abc.OpMultiply, Invalid(), Number(1)).IsInvalid())
}

func TestStackEffectFixedArity(t *testing.T) {
	take, put, ok := StackEffect(abc.Instruction{Opcode: abc.OpPop})
	assert.True(t, ok)
	assert.Equal(t, 1, take)
	assert.Equal(t, 0, put)
}

func TestStackEffectVariableArity(t *testing.T) {
	take, put, ok := StackEffect(abc.Instruction{
		Opcode:   abc.OpCallPropLex,
		Operands: []uint32{0, 3},
	})
	assert.True(t, ok)
	// receiver (1, base table) + argc (3)
	assert.Equal(t, 4, take)
	assert.Equal(t, 1, put)
}

func TestStackEffectUnknownOpcodeNotOK(t *testing.T) {
	_, _, ok := StackEffect(abc.Instruction{Opcode: abc.Opcode(0xff)})
	assert.False(t, ok)
}
