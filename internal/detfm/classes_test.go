package detfm

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
)

func newTestPool() (*abc.ConstantPool, abc.Index) {
	pool := abc.NewConstantPool()
	ns := pool.Namespaces.Intern(abc.Namespace{Kind: abc.NSKindPackageNs, Name: pool.Strings.Intern("")})
	return pool, ns
}

func qname(pool *abc.ConstantPool, ns abc.Index, name string) abc.Index {
	return pool.InternMultiname(abc.Multiname{Kind: abc.MNKindQName, NS: ns, Name: pool.Strings.Intern(name)})
}

func TestMatchWrapClassIdentifiesPassThroughMethods(t *testing.T) {
	pool, ns := newTestPool()
	a := abc.NewAbc(pool)

	intType := qname(pool, ns, "int")
	wrapMethod := abc.Method{Params: []abc.Index{intType}, ReturnType: intType}
	a.Methods = append(a.Methods, wrapMethod)

	className := qname(pool, ns, "WrapHolder")
	methodName := qname(pool, ns, "wrap")
	a.Classes = append(a.Classes, abc.Class{
		Name: className,
		CTraits: []abc.Trait{
			{Kind: abc.TraitMethod, Name: methodName, Method: 0},
		},
	})

	wc := matchWrapClass(a, 0, &a.Classes[0])
	require.NotNil(t, wc)
	assert.Equal(t, className, wc.Name)
	assert.True(t, wc.Methods[methodName])
}

func TestMatchWrapClassRejectsClassWithInstanceTraits(t *testing.T) {
	pool, ns := newTestPool()
	a := abc.NewAbc(pool)
	intType := qname(pool, ns, "int")
	a.Methods = append(a.Methods, abc.Method{Params: []abc.Index{intType}, ReturnType: intType})

	a.Classes = append(a.Classes, abc.Class{
		Name:    qname(pool, ns, "NotAWrap"),
		ITraits: []abc.Trait{{Kind: abc.TraitSlot}},
		CTraits: []abc.Trait{{Kind: abc.TraitMethod, Method: 0}},
	})

	assert.Nil(t, matchWrapClass(a, 0, &a.Classes[0]))
}

func TestMatchStaticClassEvaluatesFinalMethodsAndSlots(t *testing.T) {
	pool, ns := newTestPool()
	a := abc.NewAbc(pool)

	intType := qname(pool, ns, "int")
	code, err := abc.EncodeInstructions([]abc.Instruction{
		{Opcode: abc.OpPushByte, Operands: []uint32{3}},
		{Opcode: abc.OpPushByte, Operands: []uint32{4}},
		{Opcode: abc.OpAdd},
		{Opcode: abc.OpReturnValue},
	})
	require.NoError(t, err)
	a.Methods = append(a.Methods, abc.Method{ReturnType: intType, Code: code})

	methodName := qname(pool, ns, "VALUE")

	traits := make([]abc.Trait, 0, 100)
	for i := 0; i < 99; i++ {
		traits = append(traits, abc.Trait{
			Kind: abc.TraitConst,
			Name: qname(pool, ns, fmt.Sprintf("SLOT_%d", i)),
		})
	}
	traits = append(traits, abc.Trait{
		Kind:   abc.TraitMethod,
		Name:   methodName,
		Method: 0,
		Attrs:  abc.TraitAttrFinal,
	})

	a.Classes = append(a.Classes, abc.Class{
		Name:    qname(pool, ns, "Constants"),
		CTraits: traits,
	})

	sc := matchStaticClass(a, 0, &a.Classes[0])
	require.NotNil(t, sc)
	require.Len(t, sc.Slots, 99)
	val, ok := sc.Methods[methodName]
	require.True(t, ok)
	assert.False(t, val.IsFloat)
	assert.Equal(t, int32(7), val.I)
}

func TestMatchStaticClassRejectsBelowMinimumTraitCount(t *testing.T) {
	pool, ns := newTestPool()
	a := abc.NewAbc(pool)
	a.Classes = append(a.Classes, abc.Class{
		Name:    qname(pool, ns, "TooSmall"),
		CTraits: []abc.Trait{{Kind: abc.TraitConst, Name: qname(pool, ns, "X")}},
	})
	assert.Nil(t, matchStaticClass(a, 0, &a.Classes[0]))
}

func TestFindByteArrayMultiname(t *testing.T) {
	pool, ns := newTestPool()
	assert.Equal(t, abc.Index(0), findByteArrayMultiname(pool))

	baIdx := qname(pool, ns, "ByteArray")
	assert.Equal(t, baIdx, findByteArrayMultiname(pool))
}
