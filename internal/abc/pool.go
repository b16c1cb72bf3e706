// Package abc models the ActionScript Bytecode (ABC) container embedded in a
// SWF's DoABC tag: the constant pool and the class/trait/method/instruction
// shapes that internal/detfm analyzes and rewrites.
package abc

import "fmt"

// Index is a 0-based position into one of the constant pool's parallel
// tables. Index 0 is reserved ("any"/absent) in every table per the ABC
// file format, mirrored here rather than hidden behind an off-by-one.
type Index uint32

// NoIndex is the reserved "absent" slot present at position 0 of every pool table.
const NoIndex Index = 0

// MethodIndex identifies an entry in Abc.Methods.
type MethodIndex uint32

// ClassIndex identifies an entry in Abc.Classes.
type ClassIndex uint32

// NamespaceKind distinguishes the seven ABC namespace kinds. Only Kind and
// Name matter to this package's passes; the distinction between e.g.
// PackageNamespace and PackageInternalNs is preserved for round-tripping but
// not interpreted.
type NamespaceKind uint8

const (
	NSKindNamespace       NamespaceKind = 0x08
	NSKindPackageNs       NamespaceKind = 0x16
	NSKindPackageInternal NamespaceKind = 0x17
	NSKindProtectedNs     NamespaceKind = 0x18
	NSKindExplicitNs      NamespaceKind = 0x19
	NSKindStaticProtected NamespaceKind = 0x1a
	NSKindPrivateNs       NamespaceKind = 0x05
)

// Namespace is a single entry of the pool's namespace table.
type Namespace struct {
	Kind NamespaceKind
	Name Index // string index
}

// NSSet is a namespace-set: an unordered list of namespace indices used by
// generic (non-QName) multinames.
type NSSet struct {
	Namespaces []Index
}

// MultinameKind tags which of the ABC multiname encodings a Multiname holds.
type MultinameKind uint8

const (
	MNKindQName       MultinameKind = 0x07
	MNKindQNameA      MultinameKind = 0x0d
	MNKindRTQName     MultinameKind = 0x0f
	MNKindRTQNameA    MultinameKind = 0x10
	MNKindRTQNameL    MultinameKind = 0x11
	MNKindRTQNameLA   MultinameKind = 0x12
	MNKindMultiname   MultinameKind = 0x09
	MNKindMultinameA  MultinameKind = 0x0e
	MNKindMultinameL  MultinameKind = 0x1b
	MNKindMultinameLA MultinameKind = 0x1c
	MNKindTypeName    MultinameKind = 0x1d
)

// Multiname is ABC's polymorphic symbol reference. QName/QNameA carry a
// single fixed namespace; Multiname/MultinameA instead carry a namespace-set.
// The remaining kinds have no single name index: MultinameL/MultinameLA
// carry only a namespace-set, TypeName carries its base and parameter
// multinames, and the runtime-qualified kinds carry no fields here.
type Multiname struct {
	Kind MultinameKind

	// Valid when Kind is QName or QNameA.
	NS Index
	// Valid when Kind is QName, QNameA, Multiname, or MultinameA: the
	// string index naming this symbol. Renaming rewrites the *string* at
	// this index (see ConstantPool.Strings.Set), never this field, so that
	// every multiname sharing the index renames together.
	Name Index
	// Valid when Kind is Multiname, MultinameA, MultinameL or MultinameLA.
	NSSet Index

	// TypeName payload: base type multiname index and parameter multiname
	// indices. Valid when Kind is MNKindTypeName.
	TypeBase   Index
	TypeParams []Index
}

// HasFixedName reports whether Name is meaningful for this multiname kind
// (true for QName, QNameA, Multiname, MultinameA).
func (m *Multiname) HasFixedName() bool {
	switch m.Kind {
	case MNKindQName, MNKindQNameA, MNKindMultiname, MNKindMultinameA:
		return true
	default:
		return false
	}
}

// stringTable is an interned table of strings with fast reverse lookup for
// Intern; Intern appends new slots and Set overwrites one in place. Index 0 is the reserved "any" slot and is never
// assigned a real value.
type stringTable struct {
	values []string
	index  map[string]Index
}

func newStringTable() *stringTable {
	return &stringTable{values: []string{""}, index: map[string]Index{}}
}

// At returns the value at idx, or "" for NoIndex / out-of-range.
func (t *stringTable) At(idx Index) string {
	if idx == NoIndex || int(idx) >= len(t.values) {
		return ""
	}
	return t.values[idx]
}

// Set overwrites the string at idx in place. This is how renaming works:
// every multiname whose Name field equals idx observes the new string.
func (t *stringTable) Set(idx Index, value string) {
	if idx == NoIndex || int(idx) >= len(t.values) {
		return
	}
	old := t.values[idx]
	if old == value {
		return
	}
	// The reverse-lookup entry for old is dropped unconditionally; in
	// practice each decoded string is unique to its slot so this is safe.
	delete(t.index, old)
	t.values[idx] = value
	t.index[value] = idx
}

// Intern returns the index for value, appending a new slot if absent.
func (t *stringTable) Intern(value string) Index {
	if idx, ok := t.index[value]; ok {
		return idx
	}
	idx := Index(len(t.values))
	t.values = append(t.values, value)
	t.index[value] = idx
	return idx
}

func (t *stringTable) Len() int { return len(t.values) }

type intTable[T comparable] struct {
	values []T
	index  map[T]Index
}

func newIntTable[T comparable]() *intTable[T] {
	var zero T
	return &intTable[T]{values: []T{zero}, index: map[T]Index{}}
}

func (t *intTable[T]) At(idx Index) T {
	var zero T
	if idx == NoIndex || int(idx) >= len(t.values) {
		return zero
	}
	return t.values[idx]
}

func (t *intTable[T]) Intern(value T) Index {
	if idx, ok := t.index[value]; ok {
		return idx
	}
	idx := Index(len(t.values))
	t.values = append(t.values, value)
	t.index[value] = idx
	return idx
}

func (t *intTable[T]) Len() int { return len(t.values) }

// ConstantPool holds every parallel indexed table the ABC format defines.
// Index 0 of each table is the reserved "any"/absent slot.
type ConstantPool struct {
	Integers   *intTable[int32]
	UIntegers  *intTable[uint32]
	Doubles    *intTable[float64]
	Strings    *stringTable
	Namespaces *intTable[Namespace]
	NSSets     *intTable[nsSetKey]
	Multinames []Multiname // index 0 reserved, like the others

	nsSetCache   map[string]Index
	nsSetMembers map[Index][]Index
}

// nsSetKey makes NSSet comparable for intTable's map-based reverse lookup;
// namespace-sets are small so a sorted-join string key is sufficient.
type nsSetKey string

func NewConstantPool() *ConstantPool {
	return &ConstantPool{
		Integers:   newIntTable[int32](),
		UIntegers:  newIntTable[uint32](),
		Doubles:    newIntTable[float64](),
		Strings:    newStringTable(),
		Namespaces: newIntTable[Namespace](),
		NSSets:     newIntTable[nsSetKey](),
		Multinames: []Multiname{{}},
		nsSetCache: map[string]Index{},
	}
}

// MultinameAt returns a pointer to the multiname at idx so callers can read
// or mutate it in place (e.g. namespace widening in internal/detfm/namespace.go).
func (p *ConstantPool) MultinameAt(idx Index) *Multiname {
	if idx == NoIndex || int(idx) >= len(p.Multinames) {
		return nil
	}
	return &p.Multinames[idx]
}

// InternMultiname appends a new multiname and returns its index. Multinames
// are never deduplicated by value: ABC code routinely has many distinct
// multiname slots that happen to share a name string, and collapsing them
// would violate the "rename by string, not by index" discipline.
func (p *ConstantPool) InternMultiname(m Multiname) Index {
	idx := Index(len(p.Multinames))
	p.Multinames = append(p.Multinames, m)
	return idx
}

// QName returns the plain string name of the multiname at idx when its kind
// has a fixed name (QName, QNameA, Multiname, MultinameA), regardless of
// namespace.
func (p *ConstantPool) QName(idx Index) (string, bool) {
	mn := p.MultinameAt(idx)
	if mn == nil || !mn.HasFixedName() {
		return "", false
	}
	return p.Strings.At(mn.Name), true
}

// NSSetSingleton interns (caching) a namespace-set containing exactly one
// namespace, used by namespace widening for generic Multiname/MultinameA
// entries (spec.md 4.8).
func (p *ConstantPool) NSSetSingleton(ns Index) Index {
	key := fmt.Sprint([]Index{ns})
	if idx, ok := p.nsSetCache[key]; ok {
		return idx
	}
	// NSSets itself is keyed by a flattened string so identical sets made
	// through other paths are still deduplicated.
	nsIdx := p.NSSets.Intern(nsSetKey(key))
	p.nsSetCache[key] = nsIdx
	p.nsSetRaw(nsIdx, []Index{ns})
	return nsIdx
}

// nsSetRaw records the real member list for an NSSet index out-of-band,
// since intTable's comparable-key design only tracks the dedup key.
func (p *ConstantPool) nsSetRaw(idx Index, members []Index) {
	if p.nsSetMembers == nil {
		p.nsSetMembers = map[Index][]Index{}
	}
	p.nsSetMembers[idx] = members
}

// NSSetMembers returns the namespace indices belonging to the set at idx.
func (p *ConstantPool) NSSetMembers(idx Index) []Index {
	return p.nsSetMembers[idx]
}

// InternNSSet interns an arbitrary namespace-set (used by the ABC decoder
// when reading sets that are not singletons).
func (p *ConstantPool) InternNSSet(members []Index) Index {
	key := fmt.Sprint(members)
	if idx, ok := p.nsSetCache[key]; ok {
		return idx
	}
	idx := p.NSSets.Intern(nsSetKey(key))
	p.nsSetCache[key] = idx
	p.nsSetRaw(idx, members)
	return idx
}
