package detfm

import "github.com/whit3rabbit/detfm/internal/abc"

// StackValue is the abstract-evaluator's value domain (spec.md 4.2):
// a known boolean, number, or string literal, or Invalid for anything the
// simplifier can't reason about (a runtime-computed value, a popped opaque
// result, or the outcome of a mismatched-type operation).
type StackValue struct {
	kind stackKind
	b    bool
	n    float64
	s    string
}

type stackKind int

const (
	kindInvalid stackKind = iota
	kindBoolean
	kindNumber
	kindString
)

func Invalid() StackValue        { return StackValue{kind: kindInvalid} }
func Boolean(b bool) StackValue  { return StackValue{kind: kindBoolean, b: b} }
func Number(n float64) StackValue { return StackValue{kind: kindNumber, n: n} }
func StringValue(s string) StackValue { return StackValue{kind: kindString, s: s} }

func (v StackValue) IsInvalid() bool { return v.kind == kindInvalid }
func (v StackValue) IsNumber() bool  { return v.kind == kindNumber }
func (v StackValue) IsString() bool  { return v.kind == kindString }
func (v StackValue) IsBoolean() bool { return v.kind == kindBoolean }

func (v StackValue) Number() float64 { return v.n }
func (v StackValue) String() string  { return v.s }
func (v StackValue) Bool() bool      { return v.b }

// ToBool implements spec.md 4.2's to_bool: Number(0) and "" are false,
// Invalid is false, everything else is truthy.
func (v StackValue) ToBool() bool {
	switch v.kind {
	case kindBoolean:
		return v.b
	case kindNumber:
		return v.n != 0
	case kindString:
		return v.s != ""
	default:
		return false
	}
}

// BinaryOp applies one of the four arithmetic ops the simplifier folds
// (Add/Subtract/Multiply/Divide). Add also handles string concatenation;
// all other combinations of non-numeric operands yield Invalid.
func BinaryOp(op abc.Opcode, a, b StackValue) StackValue {
	if op == abc.OpAdd && a.kind == kindString && b.kind == kindString {
		return StringValue(a.s + b.s)
	}
	if a.kind != kindNumber || b.kind != kindNumber {
		return Invalid()
	}
	switch op {
	case abc.OpAdd:
		return Number(a.n + b.n)
	case abc.OpSubtract:
		return Number(a.n - b.n)
	case abc.OpMultiply:
		return Number(a.n * b.n)
	case abc.OpDivide:
		return Number(a.n / b.n)
	default:
		return Invalid()
	}
}

// stackEffect describes how many values an opcode takes off the stack and
// pushes back, for opcodes the simplifier treats opaquely (spec.md 4.2).
// Variable-arity opcodes add their argument count (read from the
// instruction's operand) to Take.
type stackEffect struct {
	Take int
	Put  int
}

// stackOperations is the opaque-opcode stack-effect table of spec.md 4.2. Opcodes not
// listed here are either handled specially by the simplifier (push-literal,
// Dup, Swap, Not, Negate, arithmetic, Boolean() coercion) or are a fatal
// UnsupportedOpCode.
var stackOperations = map[abc.Opcode]stackEffect{
	abc.OpPop:              {1, 0},
	abc.OpPushNull:         {0, 1},
	abc.OpPushUndefined:    {0, 1},
	abc.OpPushNaN:          {0, 1},
	abc.OpPushScope:        {1, 0},
	abc.OpPopScope:         {0, 0},
	abc.OpGetGlobalScope:   {0, 1},
	abc.OpGetScopeObject:   {0, 1},
	abc.OpGetLocal:         {0, 1},
	abc.OpGetLocal0:        {0, 1},
	abc.OpGetLocal1:        {0, 1},
	abc.OpGetLocal2:        {0, 1},
	abc.OpGetLocal3:        {0, 1},
	abc.OpSetLocal:         {1, 0},
	abc.OpSetLocal0:        {1, 0},
	abc.OpSetLocal1:        {1, 0},
	abc.OpSetLocal2:        {1, 0},
	abc.OpSetLocal3:        {1, 0},
	abc.OpGetLex:           {0, 1},
	abc.OpFindProperty:     {0, 1},
	abc.OpFindPropStrict:   {0, 1},
	abc.OpGetProperty:      {1, 1},
	abc.OpSetProperty:      {2, 0},
	abc.OpInitProperty:     {2, 0},
	abc.OpCoerce:           {1, 1},
	abc.OpCoerceAny:        {1, 1},
	abc.OpCoerceString:     {1, 1},
	abc.OpConvertString:    {1, 1},
	abc.OpConvertInt:       {1, 1},
	abc.OpConvertDouble:    {1, 1},
	abc.OpConvertBoolean:   {1, 1},
	abc.OpReturnValue:      {1, 0},
	abc.OpReturnVoid:       {0, 0},
	abc.OpEquals:           {2, 1},
	abc.OpStrictEquals:     {2, 1},
	abc.OpGreaterThan:      {2, 1},
	abc.OpGreaterEquals:    {2, 1},
	abc.OpLessThan:         {2, 1},
	abc.OpLessEquals:       {2, 1},
	abc.OpIfEq:             {2, 0},
	abc.OpIfNE:             {2, 0},
	abc.OpIfTrue:           {1, 0},
	abc.OpIfFalse:          {1, 0},
	abc.OpIfGE:             {2, 0},
	abc.OpIfGT:             {2, 0},
	abc.OpIfLE:             {2, 0},
	abc.OpIfLT:             {2, 0},
	abc.OpJump:             {0, 0},
	abc.OpLabel:            {0, 0},
	abc.OpDebugLine:        {0, 0},
	abc.OpDebugFile:        {0, 0},
	abc.OpKill:             {0, 0},
	abc.OpNewActivation:    {0, 1},

	// Variable-arity opcodes; variableArity below adds the argc operand to
	// Take on top of this base.
	abc.OpConstruct:     {1, 1},
	abc.OpConstructProp: {1, 1},
	abc.OpCallProperty:  {1, 1},
	abc.OpCallPropVoid:  {1, 0},
	abc.OpCallPropLex:   {1, 1},
	abc.OpCall:          {2, 1},
	abc.OpApplyType:     {1, 1},
	abc.OpNewArray:      {0, 1},
	abc.OpNewObject:     {0, 1},
}

// variableArity opcodes augment Take by the argument count carried in the
// named operand index (spec.md 4.2).
var variableArity = map[abc.Opcode]int{
	abc.OpConstruct:      0, // argc operand index within Operands
	abc.OpConstructProp:  1,
	abc.OpCallProperty:   1,
	abc.OpCallPropVoid:   1,
	abc.OpCallPropLex:    1,
	abc.OpCall:           0,
	abc.OpApplyType:      0,
	abc.OpNewArray:       0,
	abc.OpNewObject:      0,
}

// StackEffect returns the (take, put) pair for ins, or ok=false if the
// opcode has no entry and is not otherwise handled by the simplifier —
// the caller should treat that as the fatal UnsupportedOpCode condition
// spec.md 4.3 names.
func StackEffect(ins abc.Instruction) (take, put int, ok bool) {
	eff, found := stackOperations[ins.Opcode]
	if !found {
		return 0, 0, false
	}
	take, put = eff.Take, eff.Put
	if argIdx, isVariadic := variableArity[ins.Opcode]; isVariadic {
		if argIdx < len(ins.Operands) {
			take += int(ins.Operands[argIdx])
		}
	}
	return take, put, true
}
