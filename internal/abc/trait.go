package abc

// TraitKind tags the closed set of ABC trait variants.
type TraitKind uint8

const (
	TraitSlot TraitKind = iota
	TraitMethod
	TraitGetter
	TraitSetter
	TraitClass
	TraitFunction
	TraitConst
)

// Trait attribute bits, stored in the high nibble of the ABC trait kind byte.
const (
	TraitAttrFinal    = 1 << 0
	TraitAttrOverride = 1 << 1
	TraitAttrMetadata = 1 << 2
)

// Trait is a tagged variant over a class's or method's declared members.
// Only the fields meaningful for Kind are populated; see spec.md 3.
type Trait struct {
	Kind  TraitKind
	Name  Index // multiname index
	Attrs uint8
	Metadata []Index

	// Slot/Const payload.
	SlotID   uint32
	SlotType Index // multiname index, 0 if untyped
	// Value kind/index as stored in the ABC trait record (0x00 none,
	// 0x01 string/Utf8, 0x03 int, 0x06 double, 0x0a false, 0x0b true, ...).
	ValueKind  uint8
	ValueIndex Index

	// Method/Getter/Setter/Function payload.
	Method MethodIndex

	// Class payload.
	Class ClassIndex
}

// IsConstLike reports whether the trait is a Slot or Const — both occupy
// the same ABC record shape and both are addressed as "slots" by
// spec.md's static-holder extractor (4.5).
func (t *Trait) IsConstLike() bool {
	return t.Kind == TraitSlot || t.Kind == TraitConst
}
