package detfm

import (
	"errors"

	"github.com/whit3rabbit/detfm/internal/abc"
)

// NSNames is the set of target package namespaces the rename/packet-
// recovery passes place renamed classes into (spec.md 4.8).
type NSNames struct {
	Slot  abc.Index // obfuscate-specific package for static/wrapper junk
	Pkt   abc.Index // packets
	SPkt  abc.Index // packets.serverbound
	CPkt  abc.Index // packets.clientbound
	TPkt  abc.Index // packets.tribulle
	TSPkt abc.Index // packets.tribulle.serverbound
	TCPkt abc.Index // packets.tribulle.clientbound
}

// NamespaceAssigner accumulates the name_mn -> target-namespace map of
// spec.md 4.8 and applies it in one final pass: direct assignment for
// QName/QNameA, namespace-set widening (via an interned singleton-set
// cache) for generic Multiname/MultinameA.
type NamespaceAssigner struct {
	pool      *abc.ConstantPool
	classToNS map[abc.Index]abc.Index
}

func NewNamespaceAssigner(pool *abc.ConstantPool) *NamespaceAssigner {
	return &NamespaceAssigner{pool: pool, classToNS: map[abc.Index]abc.Index{}}
}

// CreatePackage interns a package namespace named name, used once per
// target package up front by the orchestrator to build an NSNames value.
func (na *NamespaceAssigner) CreatePackage(name string) abc.Index {
	return na.pool.Namespaces.Intern(abc.Namespace{
		Kind: abc.NSKindPackageNs,
		Name: na.pool.Strings.Intern(name),
	})
}

// SetClassNS sets the target namespace for the class at classIdx's own
// multiname (must be a QName/QNameA, which every class name is), and
// records the name->namespace mapping so every other multiname sharing
// that name index gets the same namespace in Finalize.
func (na *NamespaceAssigner) SetClassNS(a *abc.Abc, classIdx abc.ClassIndex, ns abc.Index) error {
	if ns == abc.NoIndex {
		return errInvalidNamespaceTarget
	}
	c := a.Class(classIdx)
	if c == nil {
		return errClassOutOfRange
	}
	mn := a.Pool.MultinameAt(c.Name)
	if mn == nil || (mn.Kind != abc.MNKindQName && mn.Kind != abc.MNKindQNameA) {
		return errInvalidClassMultiname
	}
	mn.NS = ns
	if mn.Name != abc.NoIndex {
		na.classToNS[mn.Name] = ns
	}
	return nil
}

// Finalize applies the accumulated name->namespace map to every multiname
// in the pool that shares one of those name indices: QName/QNameA get their
// NS field set directly; generic Multiname/MultinameA get a (cached)
// singleton namespace-set instead, per spec.md 4.8.
func (na *NamespaceAssigner) Finalize() {
	for i := range na.pool.Multinames {
		mn := &na.pool.Multinames[i]
		switch mn.Kind {
		case abc.MNKindQName, abc.MNKindQNameA:
			if ns, ok := na.classToNS[mn.Name]; ok {
				mn.NS = ns
			}
		case abc.MNKindMultiname, abc.MNKindMultinameA:
			if ns, ok := na.classToNS[mn.Name]; ok {
				mn.NSSet = na.pool.NSSetSingleton(ns)
			}
		}
	}
}

var (
	errInvalidNamespaceTarget = errors.New("detfm: cannot assign the null namespace to a class")
	errClassOutOfRange        = errors.New("detfm: class index out of range")
	errInvalidClassMultiname  = errors.New("detfm: class multiname is not a QName/QNameA")
)
