package abc

// Class flag bits, matching the ABC instance_info flags byte.
const (
	ClassFlagSealed    uint8 = 1 << 0
	ClassFlagFinal     uint8 = 1 << 1
	ClassFlagInterface uint8 = 1 << 2
	ClassFlagProtected uint8 = 1 << 3
)

// Class pairs an ABC instance_info record with its companion class_info
// record (the cinit/ctraits half), matching how spec.md 3 describes it as a
// single merged shape.
type Class struct {
	Name        Index // multiname index
	SuperName   Index // multiname index, 0 for Object
	ProtectedNS Index // namespace index, 0 if ClassFlagProtected unset
	Flags       uint8
	Interfaces  []Index // multiname indices

	IInit   MethodIndex
	ITraits []Trait

	CInit   MethodIndex
	CTraits []Trait
}

func (c *Class) Sealed() bool    { return c.Flags&ClassFlagSealed != 0 }
func (c *Class) Final() bool     { return c.Flags&ClassFlagFinal != 0 }
func (c *Class) Interface() bool { return c.Flags&ClassFlagInterface != 0 }
func (c *Class) Protected() bool { return c.Flags&ClassFlagProtected != 0 }

// Script is an ABC script_info entry: the top-level init method plus the
// traits it exports (each script exports the one or more document classes
// via a TraitClass entry).
type Script struct {
	Init   MethodIndex
	Traits []Trait
}

// Abc is the in-memory form of one DoABC tag's method/class/script tables,
// alongside the ConstantPool every index in this package refers into.
type Abc struct {
	Pool *ConstantPool

	Methods []Method
	Classes []Class
	Scripts []Script

	// MethodBodyOf maps a MethodIndex to the index of its body's owning
	// entry for round-tripping order-sensitive formats; callers that only
	// add/rewrite instructions need not consult it.
	MethodBodyOf map[MethodIndex]int
}

// NewAbc returns an empty Abc bound to pool.
func NewAbc(pool *ConstantPool) *Abc {
	return &Abc{Pool: pool, MethodBodyOf: map[MethodIndex]int{}}
}

// Method returns a pointer to the method at idx, or nil if out of range.
func (a *Abc) Method(idx MethodIndex) *Method {
	if int(idx) >= len(a.Methods) {
		return nil
	}
	return &a.Methods[int(idx)]
}

// Class returns a pointer to the class at idx, or nil if out of range.
func (a *Abc) Class(idx ClassIndex) *Class {
	if int(idx) >= len(a.Classes) {
		return nil
	}
	return &a.Classes[int(idx)]
}

// FQN returns the fully-qualified name portion of a class's own multiname
// (just the local name; ABC multinames don't carry dotted package paths —
// namespace is separate, per internal/detfm/namespace.go).
func (a *Abc) FQN(c *Class) (string, bool) {
	return a.Pool.QName(c.Name)
}

// AllMethods calls fn for every method in the file, including class/script
// init methods, exactly once each — the shape internal/detfm's per-method
// passes (simplify, unscramble) iterate over.
func (a *Abc) AllMethods(fn func(MethodIndex, *Method)) {
	for i := range a.Methods {
		fn(MethodIndex(i), &a.Methods[i])
	}
}
