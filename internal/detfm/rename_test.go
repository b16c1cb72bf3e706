package detfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/detfm/internal/abc"
	dfmt "github.com/whit3rabbit/detfm/internal/fmt"
)

func TestInvalid(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"", true},
		{"a", false},
		{"PlayerController", false},
		{"a1", true},
		{"_a", true},
		{"a_b", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Invalid(c.name), "Invalid(%q)", c.name)
	}
}

func newPoolWithQName(t *testing.T, name string) (*abc.ConstantPool, abc.Index) {
	t.Helper()
	pool := abc.NewConstantPool()
	ns := pool.Namespaces.Intern(abc.Namespace{Kind: abc.NSKindPackageNs, Name: pool.Strings.Intern("")})
	strIdx := pool.Strings.Intern(name)
	mnIdx := pool.InternMultiname(abc.Multiname{Kind: abc.MNKindQName, NS: ns, Name: strIdx})
	return pool, mnIdx
}

func TestRenameMultinameOverwritesSharedString(t *testing.T) {
	pool, mnIdx := newPoolWithQName(t, "a1b2")

	// A second multiname sharing the same string index must observe the
	// rename too, since RenameMultiname only ever overwrites the string.
	mn := pool.MultinameAt(mnIdx)
	other := pool.InternMultiname(abc.Multiname{Kind: abc.MNKindQName, NS: mn.NS, Name: mn.Name})

	require.NoError(t, RenameMultiname(pool, mnIdx, "class_000"))

	name, ok := pool.QName(mnIdx)
	require.True(t, ok)
	assert.Equal(t, "class_000", name)

	otherName, ok := pool.QName(other)
	require.True(t, ok)
	assert.Equal(t, "class_000", otherName)
}

func TestRenameMultinameRejectsNameless(t *testing.T) {
	pool := abc.NewConstantPool()
	idx := pool.InternMultiname(abc.Multiname{Kind: abc.MNKindRTQName})
	assert.Error(t, RenameMultiname(pool, idx, "whatever"))
}

func TestStripNumericPrefix(t *testing.T) {
	cases := map[string]string{
		"123_Foo":  "Foo",
		"Foo":      "Foo",
		"9_":       "",
		"9a_Foo":   "9a_Foo",
		"_leading": "_leading",
		"0_0_Foo":  "0_Foo",
	}
	for in, want := range cases {
		assert.Equal(t, want, stripNumericPrefix(in), "stripNumericPrefix(%q)", in)
	}
}

func TestRenameAllInvalidRenamesClassAndTraits(t *testing.T) {
	pool, classNameIdx := newPoolWithQName(t, "a1b2")
	constNameIdx := pool.InternMultiname(abc.Multiname{
		Kind: abc.MNKindQName,
		NS:   pool.MultinameAt(classNameIdx).NS,
		Name: pool.Strings.Intern("x9z"),
	})

	a := abc.NewAbc(pool)
	a.Classes = append(a.Classes, abc.Class{
		Name: classNameIdx,
		CTraits: []abc.Trait{
			{Kind: abc.TraitConst, Name: constNameIdx},
		},
	})

	r := NewRenamer(dfmt.DefaultFormatter{})
	require.NoError(t, r.RenameAllInvalid(a))

	className, ok := pool.QName(classNameIdx)
	require.True(t, ok)
	assert.Equal(t, "class_000", className)

	constName, ok := pool.QName(constNameIdx)
	require.True(t, ok)
	assert.Equal(t, "const_000", constName)
}
