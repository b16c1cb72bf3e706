package abc

// ExceptionInfo is one entry of a method body's exception table: the
// instruction range [From, To) protected, the handler Target, the caught
// type, and the bound variable name — all addresses, fixed up the same way
// branch targets are (spec.md 3, invariant 1).
type ExceptionInfo struct {
	From    uint32
	To      uint32
	Target  uint32
	ExcType Index // multiname index, 0 for catch-all
	VarName Index // multiname index, 0 if unnamed
}

// Method is a method signature plus, for methods with a body, its bytecode
// and exception table. Methods without a body (abstract/native) have a nil
// Code and are never visited by internal/detfm's per-method passes.
type Method struct {
	Name       Index // string index, may be 0 (anonymous)
	Params     []Index // multiname indices, parameter types
	ReturnType Index   // multiname index, 0 = untyped
	Flags      uint8

	// Body, present only for methods with MethodBodiesInfo entries.
	MaxStack       uint32
	LocalCount     uint32
	InitScopeDepth uint32
	MaxScopeDepth  uint32
	Code           []byte
	Exceptions     []ExceptionInfo
	Traits         []Trait

	decoded []Instruction
}

// HasBody reports whether this method owns bytecode (as opposed to being a
// native/interface signature with no body).
func (m *Method) HasBody() bool { return m.Code != nil }

// Parse decodes Code into instructions, caching the result. Subsequent
// SaveInstructions calls invalidate the cache by replacing Code.
func (m *Method) Parse() ([]Instruction, error) {
	if m.decoded != nil {
		return m.decoded, nil
	}
	ins, err := DecodeInstructions(m.Code)
	if err != nil {
		return nil, err
	}
	m.decoded = ins
	return ins, nil
}

// SaveInstructions re-encodes instructions (expected to already be address-
// fixed via JumpInfo.FixAddresses) and stores the result as Code.
func (m *Method) SaveInstructions(instructions []Instruction) error {
	code, err := EncodeInstructions(instructions)
	if err != nil {
		return err
	}
	m.Code = code
	m.decoded = instructions
	return nil
}
