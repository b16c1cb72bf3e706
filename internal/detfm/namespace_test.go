package detfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
)

func TestSetClassNSAssignsNamespaceDirectly(t *testing.T) {
	pool, classNameIdx := newPoolWithQName(t, "a1b2")
	a := abc.NewAbc(pool)
	a.Classes = append(a.Classes, abc.Class{Name: classNameIdx})

	na := NewNamespaceAssigner(pool)
	pkt := na.CreatePackage("packets")

	require.NoError(t, na.SetClassNS(a, 0, pkt))

	mn := pool.MultinameAt(classNameIdx)
	assert.Equal(t, pkt, mn.NS)
}

func TestSetClassNSRejectsNullNamespace(t *testing.T) {
	pool, classNameIdx := newPoolWithQName(t, "a1b2")
	a := abc.NewAbc(pool)
	a.Classes = append(a.Classes, abc.Class{Name: classNameIdx})

	na := NewNamespaceAssigner(pool)
	assert.ErrorIs(t, na.SetClassNS(a, 0, abc.NoIndex), errInvalidNamespaceTarget)
}

func TestSetClassNSRejectsOutOfRangeClass(t *testing.T) {
	pool := abc.NewConstantPool()
	a := abc.NewAbc(pool)
	na := NewNamespaceAssigner(pool)
	assert.ErrorIs(t, na.SetClassNS(a, 0, 1), errClassOutOfRange)
}

func TestFinalizePropagatesToSharedMultinamesAndSets(t *testing.T) {
	pool, classNameIdx := newPoolWithQName(t, "a1b2")
	a := abc.NewAbc(pool)
	a.Classes = append(a.Classes, abc.Class{Name: classNameIdx})

	mn := pool.MultinameAt(classNameIdx)
	// A second QName sharing the same name string, and a generic Multiname
	// (ambiguous namespace set) also sharing it, must both be widened.
	otherQName := pool.InternMultiname(abc.Multiname{Kind: abc.MNKindQName, Name: mn.Name})
	genericMN := pool.InternMultiname(abc.Multiname{Kind: abc.MNKindMultiname, Name: mn.Name})

	na := NewNamespaceAssigner(pool)
	pkt := na.CreatePackage("packets")
	require.NoError(t, na.SetClassNS(a, 0, pkt))
	na.Finalize()

	assert.Equal(t, pkt, pool.MultinameAt(otherQName).NS)

	wantSet := pool.NSSetSingleton(pkt)
	assert.Equal(t, wantSet, pool.MultinameAt(genericMN).NSSet)
}
