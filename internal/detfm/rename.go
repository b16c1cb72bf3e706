package detfm

import (
	"fmt"
	"strings"

	"github.com/whit3rabbit/detfm/internal/abc"
	dfmt "github.com/whit3rabbit/detfm/internal/fmt"
	"github.com/whit3rabbit/detfm/internal/swf"
)

// Invalid reports whether name contains any non-alphabetic character,
// spec.md 4.7's discipline for deciding whether an obfuscated identifier
// needs a generated replacement. An empty name is always invalid.
func Invalid(name string) bool {
	if name == "" {
		return true
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')) {
			return true
		}
	}
	return false
}

// RenameMultiname overwrites the *string* a multiname points at (spec.md
// 4.7/invariant 2): every multiname sharing that string index observes the
// new name, which is the behavior the ABC verifier relies on. Renaming the
// multiname slot itself, rather than the string it names, would break
// every other reference to the same symbol.
func RenameMultiname(pool *abc.ConstantPool, mnIdx abc.Index, name string) error {
	mn := pool.MultinameAt(mnIdx)
	if mn == nil || !mn.HasFixedName() {
		return fmt.Errorf("detfm: multiname %d has no name to rename", mnIdx)
	}
	pool.Strings.Set(mn.Name, name)
	return nil
}

// Counters is the Renamer's per-kind generated-name sequence, incremented
// every time a name of that kind is produced (spec.md 4.7).
type Counters struct {
	Classes   uint32
	Consts    uint32
	Functions uint32
	Vars      uint32
	Methods   uint32
	Errors    uint32
}

// Renamer walks the ABC file renaming every invalid identifier through a
// Formatter (spec.md 4.7). It holds no state besides the counters, unlike
// the teacher's obfuscation-direction Scrambler (internal/scrambler), which
// persists a collision-retry cache this deobfuscation-direction pass has no
// need for (names are derived from a monotonic counter, not randomly
// generated, so collisions can't occur).
type Renamer struct {
	Fmt      dfmt.Formatter
	Counters Counters
}

// NewRenamer returns a Renamer using f to produce generated names.
func NewRenamer(f dfmt.Formatter) *Renamer {
	return &Renamer{Fmt: f}
}

// RenameAllInvalid walks every class and every method's exception table,
// renaming every identifier Invalid reports true for.
func (r *Renamer) RenameAllInvalid(a *abc.Abc) error {
	for i := range a.Classes {
		if err := r.renameInvalidClass(a, &a.Classes[i]); err != nil {
			return err
		}
	}
	for i := range a.Methods {
		if err := r.renameInvalidMethod(a.Pool, &a.Methods[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renamer) invalidMultiname(pool *abc.ConstantPool, mnIdx abc.Index) bool {
	if mnIdx == abc.NoIndex {
		return false
	}
	name, ok := pool.QName(mnIdx)
	if !ok {
		return false
	}
	return Invalid(name)
}

func (r *Renamer) renameInvalidClass(a *abc.Abc, c *abc.Class) error {
	pool := a.Pool
	if c.Name != abc.NoIndex && r.invalidMultiname(pool, c.Name) {
		if err := RenameMultiname(pool, c.Name, r.Fmt.Classes(r.Counters.Classes)); err != nil {
			return err
		}
		r.Counters.Classes++
	}
	if c.SuperName != abc.NoIndex && r.invalidMultiname(pool, c.SuperName) {
		if err := RenameMultiname(pool, c.SuperName, r.Fmt.Classes(r.Counters.Classes)); err != nil {
			return err
		}
		r.Counters.Classes++
	}
	for i := range c.CTraits {
		if err := r.renameInvalidTrait(pool, &c.CTraits[i]); err != nil {
			return err
		}
	}
	for i := range c.ITraits {
		if err := r.renameInvalidTrait(pool, &c.ITraits[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renamer) renameInvalidTrait(pool *abc.ConstantPool, t *abc.Trait) error {
	if t.Name == abc.NoIndex || !r.invalidMultiname(pool, t.Name) {
		return nil
	}
	var name string
	switch t.Kind {
	case abc.TraitConst:
		name = r.Fmt.Consts(r.Counters.Consts)
		r.Counters.Consts++
	case abc.TraitMethod:
		name = r.Fmt.Methods(r.Counters.Methods)
		r.Counters.Methods++
	case abc.TraitFunction:
		name = r.Fmt.Functions(r.Counters.Functions)
		r.Counters.Functions++
	default:
		name = r.Fmt.Vars(r.Counters.Vars)
		r.Counters.Vars++
	}
	return RenameMultiname(pool, t.Name, name)
}

func (r *Renamer) renameInvalidMethod(pool *abc.ConstantPool, m *abc.Method) error {
	for i := range m.Exceptions {
		if err := r.renameInvalidException(pool, &m.Exceptions[i]); err != nil {
			return err
		}
	}
	for i := range m.Traits {
		if err := r.renameInvalidTrait(pool, &m.Traits[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renamer) renameInvalidException(pool *abc.ConstantPool, e *abc.ExceptionInfo) error {
	if e.VarName == abc.NoIndex || !r.invalidMultiname(pool, e.VarName) {
		return nil
	}
	name := r.Fmt.Errors(r.Counters.Errors)
	r.Counters.Errors++
	return RenameMultiname(pool, e.VarName, name)
}

// Symbol is an alias for the SWF symbol-class table entry shape, kept here
// so callers that only import internal/detfm (tests, in particular) don't
// need an extra import to build the slice RenameInvalidSymbols expects.
type Symbol = swf.Symbol

// RenameInvalidSymbols renames every symbol-table entry whose name is
// invalid, stripping any numeric obfuscation prefix up to the first '_'
// before re-testing (SUPPLEMENTED FEATURES item 2). Symbol 0 (the document
// class) is always forced to "Game" regardless of its current name
// (spec.md invariant 4), and the class pool's own name for class 0 is
// renamed in the same step so the symbol table and the class pool never
// disagree. Run by the orchestrator before SimplifyAllCinits.
func (r *Renamer) RenameInvalidSymbols(a *abc.Abc, symbols []Symbol) error {
	sawZero := false
	for i := range symbols {
		sym := &symbols[i]
		if sym.ID == 0 {
			sawZero = true
			sym.Name = "Game"
			if c := a.Class(sym.Class); c != nil {
				if err := RenameMultiname(a.Pool, c.Name, "Game"); err != nil {
					return err
				}
			}
			continue
		}
		stripped := stripNumericPrefix(sym.Name)
		if !Invalid(stripped) {
			sym.Name = stripped
			continue
		}
		sym.Name = r.Fmt.Symbols(sym.ID)
		if c := a.Class(sym.Class); c != nil && c.Name != abc.NoIndex && r.invalidMultiname(a.Pool, c.Name) {
			if err := RenameMultiname(a.Pool, c.Name, sym.Name); err != nil {
				return err
			}
		}
	}
	if !sawZero && len(a.Classes) > 0 {
		if err := RenameMultiname(a.Pool, a.Classes[0].Name, "Game"); err != nil {
			return err
		}
	}
	return nil
}

// stripNumericPrefix removes a leading run of digits followed by '_', the
// obfuscator's symbol-table prefixing scheme, before re-testing validity.
func stripNumericPrefix(name string) string {
	idx := strings.IndexByte(name, '_')
	if idx < 0 {
		return name
	}
	prefix := name[:idx]
	if prefix == "" {
		return name
	}
	for _, r := range prefix {
		if r < '0' || r > '9' {
			return name
		}
	}
	return name[idx+1:]
}
