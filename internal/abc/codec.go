package abc

import (
	"bytes"
	"fmt"
	"io"
)

// ReadABC parses one DoABC tag's body into an Abc bound to a fresh
// ConstantPool, following the ABC file format's fixed table order:
// version, constant pool, method signatures, metadata (skipped), instance
// info, class info, script info, method bodies.
func ReadABC(data []byte) (*Abc, error) {
	r := &byteReader{b: bytes.NewReader(data)}

	if _, err := r.u16(); err != nil { // minor_version
		return nil, fmt.Errorf("abc: minor version: %w", err)
	}
	if _, err := r.u16(); err != nil { // major_version
		return nil, fmt.Errorf("abc: major version: %w", err)
	}

	pool, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}

	methodCount, err := r.u30()
	if err != nil {
		return nil, fmt.Errorf("abc: method_count: %w", err)
	}
	abc := NewAbc(pool)
	abc.Methods = make([]Method, methodCount)
	for i := range abc.Methods {
		m, err := readMethodSignature(r)
		if err != nil {
			return nil, fmt.Errorf("abc: method[%d] signature: %w", i, err)
		}
		abc.Methods[i] = m
	}

	metadataCount, err := r.u30()
	if err != nil {
		return nil, fmt.Errorf("abc: metadata_count: %w", err)
	}
	for i := uint32(0); i < metadataCount; i++ {
		if err := skipMetadata(r); err != nil {
			return nil, fmt.Errorf("abc: metadata[%d]: %w", i, err)
		}
	}

	classCount, err := r.u30()
	if err != nil {
		return nil, fmt.Errorf("abc: class_count: %w", err)
	}
	abc.Classes = make([]Class, classCount)
	for i := range abc.Classes {
		if err := readInstanceInfo(r, &abc.Classes[i]); err != nil {
			return nil, fmt.Errorf("abc: instance[%d]: %w", i, err)
		}
	}
	for i := range abc.Classes {
		cinit, ctraits, err := readClassInfo(r)
		if err != nil {
			return nil, fmt.Errorf("abc: class[%d]: %w", i, err)
		}
		abc.Classes[i].CInit = cinit
		abc.Classes[i].CTraits = ctraits
	}

	scriptCount, err := r.u30()
	if err != nil {
		return nil, fmt.Errorf("abc: script_count: %w", err)
	}
	abc.Scripts = make([]Script, scriptCount)
	for i := range abc.Scripts {
		init, err := r.u30()
		if err != nil {
			return nil, fmt.Errorf("abc: script[%d] init: %w", i, err)
		}
		traits, err := readTraits(r)
		if err != nil {
			return nil, fmt.Errorf("abc: script[%d] traits: %w", i, err)
		}
		abc.Scripts[i] = Script{Init: MethodIndex(init), Traits: traits}
	}

	bodyCount, err := r.u30()
	if err != nil {
		return nil, fmt.Errorf("abc: method_body_count: %w", err)
	}
	for i := uint32(0); i < bodyCount; i++ {
		methodIdx, err := r.u30()
		if err != nil {
			return nil, fmt.Errorf("abc: body[%d] method: %w", i, err)
		}
		if err := readMethodBody(r, abc, MethodIndex(methodIdx)); err != nil {
			return nil, fmt.Errorf("abc: body[%d]: %w", i, err)
		}
		abc.MethodBodyOf[MethodIndex(methodIdx)] = int(i)
	}

	return abc, nil
}

// WriteABC serializes abc back into DoABC-tag-body bytes. It assumes every
// method's Code has already been produced by Method.SaveInstructions with
// addresses fixed by a completed JumpInfo.FixAddresses pass.
func WriteABC(abc *Abc) ([]byte, error) {
	w := &byteWriter{}
	w.u16(0)
	w.u16(46) // AVM2 major version used by Flash Player 9+/Transformice-era content

	writeConstantPool(w, abc.Pool)

	w.u30(uint32(len(abc.Methods)))
	for i := range abc.Methods {
		writeMethodSignature(w, &abc.Methods[i])
	}

	w.u30(0) // metadata_count: none carried

	w.u30(uint32(len(abc.Classes)))
	for i := range abc.Classes {
		writeInstanceInfo(w, &abc.Classes[i])
	}
	for i := range abc.Classes {
		writeClassInfo(w, &abc.Classes[i])
	}

	w.u30(uint32(len(abc.Scripts)))
	for _, s := range abc.Scripts {
		w.u30(uint32(s.Init))
		writeTraits(w, s.Traits)
	}

	bodies := make([]MethodIndex, 0, len(abc.Methods))
	for i := range abc.Methods {
		if abc.Methods[i].HasBody() {
			bodies = append(bodies, MethodIndex(i))
		}
	}
	w.u30(uint32(len(bodies)))
	for _, mi := range bodies {
		w.u30(uint32(mi))
		writeMethodBody(w, &abc.Methods[mi])
	}

	return w.buf.Bytes(), nil
}

func readConstantPool(r *byteReader) (*ConstantPool, error) {
	pool := NewConstantPool()

	intCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < intCount; i++ {
		v, err := r.s32()
		if err != nil {
			return nil, err
		}
		pool.Integers.Intern(v)
	}

	uintCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < uintCount; i++ {
		v, err := r.u30()
		if err != nil {
			return nil, err
		}
		pool.UIntegers.Intern(v)
	}

	doubleCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < doubleCount; i++ {
		v, err := r.f64()
		if err != nil {
			return nil, err
		}
		pool.Doubles.Intern(v)
	}

	strCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < strCount; i++ {
		s, err := r.utf8()
		if err != nil {
			return nil, err
		}
		pool.Strings.Intern(s)
	}

	nsCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < nsCount; i++ {
		kind, err := r.u8()
		if err != nil {
			return nil, err
		}
		name, err := r.u30()
		if err != nil {
			return nil, err
		}
		pool.Namespaces.Intern(Namespace{Kind: NamespaceKind(kind), Name: Index(name)})
	}

	nsSetCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < nsSetCount; i++ {
		count, err := r.u30()
		if err != nil {
			return nil, err
		}
		members := make([]Index, count)
		for j := range members {
			v, err := r.u30()
			if err != nil {
				return nil, err
			}
			members[j] = Index(v)
		}
		pool.InternNSSet(members)
	}

	mnCount, err := r.u30()
	if err != nil {
		return nil, err
	}
	for i := uint32(1); i < mnCount; i++ {
		mn, err := readMultiname(r)
		if err != nil {
			return nil, err
		}
		pool.Multinames = append(pool.Multinames, mn)
	}

	return pool, nil
}

func readMultiname(r *byteReader) (Multiname, error) {
	kindByte, err := r.u8()
	if err != nil {
		return Multiname{}, err
	}
	kind := MultinameKind(kindByte)
	mn := Multiname{Kind: kind}
	switch kind {
	case MNKindQName, MNKindQNameA:
		ns, err := r.u30()
		if err != nil {
			return mn, err
		}
		name, err := r.u30()
		if err != nil {
			return mn, err
		}
		mn.NS, mn.Name = Index(ns), Index(name)
	case MNKindRTQName, MNKindRTQNameA:
		// no static data
	case MNKindRTQNameL, MNKindRTQNameLA:
		// no static data
	case MNKindMultiname, MNKindMultinameA:
		name, err := r.u30()
		if err != nil {
			return mn, err
		}
		nsSet, err := r.u30()
		if err != nil {
			return mn, err
		}
		mn.Name, mn.NSSet = Index(name), Index(nsSet)
	case MNKindMultinameL, MNKindMultinameLA:
		nsSet, err := r.u30()
		if err != nil {
			return mn, err
		}
		mn.NSSet = Index(nsSet)
	case MNKindTypeName:
		base, err := r.u30()
		if err != nil {
			return mn, err
		}
		count, err := r.u30()
		if err != nil {
			return mn, err
		}
		params := make([]Index, count)
		for i := range params {
			v, err := r.u30()
			if err != nil {
				return mn, err
			}
			params[i] = Index(v)
		}
		mn.TypeBase, mn.TypeParams = Index(base), params
	default:
		return mn, fmt.Errorf("abc: unknown multiname kind 0x%02x", kindByte)
	}
	return mn, nil
}

func readMethodSignature(r *byteReader) (Method, error) {
	paramCount, err := r.u30()
	if err != nil {
		return Method{}, err
	}
	retType, err := r.u30()
	if err != nil {
		return Method{}, err
	}
	params := make([]Index, paramCount)
	for i := range params {
		v, err := r.u30()
		if err != nil {
			return Method{}, err
		}
		params[i] = Index(v)
	}
	name, err := r.u30()
	if err != nil {
		return Method{}, err
	}
	flags, err := r.u8()
	if err != nil {
		return Method{}, err
	}
	if flags&0x08 != 0 { // HAS_OPTIONAL
		optionalCount, err := r.u30()
		if err != nil {
			return Method{}, err
		}
		for i := uint32(0); i < optionalCount; i++ {
			if _, err := r.u30(); err != nil { // val index
				return Method{}, err
			}
			if _, err := r.u8(); err != nil { // val kind
				return Method{}, err
			}
		}
	}
	if flags&0x80 != 0 { // HAS_PARAM_NAMES
		for i := uint32(0); i < paramCount; i++ {
			if _, err := r.u30(); err != nil {
				return Method{}, err
			}
		}
	}
	return Method{Name: Index(name), Params: params, ReturnType: Index(retType), Flags: flags}, nil
}

func skipMetadata(r *byteReader) error {
	if _, err := r.u30(); err != nil { // name
		return err
	}
	count, err := r.u30()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count*2; i++ {
		if _, err := r.u30(); err != nil {
			return err
		}
	}
	return nil
}

func readInstanceInfo(r *byteReader, c *Class) error {
	name, err := r.u30()
	if err != nil {
		return err
	}
	super, err := r.u30()
	if err != nil {
		return err
	}
	flags, err := r.u8()
	if err != nil {
		return err
	}
	c.Name, c.SuperName, c.Flags = Index(name), Index(super), flags
	if flags&ClassFlagProtected != 0 {
		ns, err := r.u30()
		if err != nil {
			return err
		}
		c.ProtectedNS = Index(ns)
	}
	ifaceCount, err := r.u30()
	if err != nil {
		return err
	}
	c.Interfaces = make([]Index, ifaceCount)
	for i := range c.Interfaces {
		v, err := r.u30()
		if err != nil {
			return err
		}
		c.Interfaces[i] = Index(v)
	}
	iinit, err := r.u30()
	if err != nil {
		return err
	}
	c.IInit = MethodIndex(iinit)
	traits, err := readTraits(r)
	if err != nil {
		return err
	}
	c.ITraits = traits
	return nil
}

func readClassInfo(r *byteReader) (MethodIndex, []Trait, error) {
	cinit, err := r.u30()
	if err != nil {
		return 0, nil, err
	}
	traits, err := readTraits(r)
	if err != nil {
		return 0, nil, err
	}
	return MethodIndex(cinit), traits, nil
}

func readTraits(r *byteReader) ([]Trait, error) {
	count, err := r.u30()
	if err != nil {
		return nil, err
	}
	out := make([]Trait, count)
	for i := range out {
		t, err := readTrait(r)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func readTrait(r *byteReader) (Trait, error) {
	name, err := r.u30()
	if err != nil {
		return Trait{}, err
	}
	kindByte, err := r.u8()
	if err != nil {
		return Trait{}, err
	}
	kind := TraitKind(kindByte & 0x0f)
	attrs := kindByte >> 4
	t := Trait{Kind: kind, Name: Index(name), Attrs: attrs}
	switch kind {
	case TraitSlot, TraitConst:
		slotID, err := r.u30()
		if err != nil {
			return t, err
		}
		typeIdx, err := r.u30()
		if err != nil {
			return t, err
		}
		vIdx, err := r.u30()
		if err != nil {
			return t, err
		}
		t.SlotID, t.SlotType, t.ValueIndex = slotID, Index(typeIdx), Index(vIdx)
		if vIdx != 0 {
			vKind, err := r.u8()
			if err != nil {
				return t, err
			}
			t.ValueKind = vKind
		}
	case TraitMethod, TraitGetter, TraitSetter:
		dispID, err := r.u30()
		if err != nil {
			return t, err
		}
		methodIdx, err := r.u30()
		if err != nil {
			return t, err
		}
		t.SlotID, t.Method = dispID, MethodIndex(methodIdx)
	case TraitClass:
		slotID, err := r.u30()
		if err != nil {
			return t, err
		}
		classIdx, err := r.u30()
		if err != nil {
			return t, err
		}
		t.SlotID, t.Class = slotID, ClassIndex(classIdx)
	case TraitFunction:
		slotID, err := r.u30()
		if err != nil {
			return t, err
		}
		methodIdx, err := r.u30()
		if err != nil {
			return t, err
		}
		t.SlotID, t.Method = slotID, MethodIndex(methodIdx)
	default:
		return t, fmt.Errorf("abc: unknown trait kind %d", kind)
	}
	if attrs&TraitAttrMetadata != 0 {
		count, err := r.u30()
		if err != nil {
			return t, err
		}
		t.Metadata = make([]Index, count)
		for i := range t.Metadata {
			v, err := r.u30()
			if err != nil {
				return t, err
			}
			t.Metadata[i] = Index(v)
		}
	}
	return t, nil
}

func readMethodBody(r *byteReader, abc *Abc, methodIdx MethodIndex) error {
	maxStack, err := r.u30()
	if err != nil {
		return err
	}
	localCount, err := r.u30()
	if err != nil {
		return err
	}
	initScope, err := r.u30()
	if err != nil {
		return err
	}
	maxScope, err := r.u30()
	if err != nil {
		return err
	}
	codeLen, err := r.u30()
	if err != nil {
		return err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r.b, code); err != nil {
		return err
	}
	excCount, err := r.u30()
	if err != nil {
		return err
	}
	exceptions := make([]ExceptionInfo, excCount)
	for i := range exceptions {
		from, err := r.u30()
		if err != nil {
			return err
		}
		to, err := r.u30()
		if err != nil {
			return err
		}
		target, err := r.u30()
		if err != nil {
			return err
		}
		excType, err := r.u30()
		if err != nil {
			return err
		}
		varName, err := r.u30()
		if err != nil {
			return err
		}
		exceptions[i] = ExceptionInfo{From: from, To: to, Target: target, ExcType: Index(excType), VarName: Index(varName)}
	}
	traits, err := readTraits(r)
	if err != nil {
		return err
	}
	m := abc.Method(methodIdx)
	if m == nil {
		return fmt.Errorf("abc: method body for out-of-range method %d", methodIdx)
	}
	m.MaxStack, m.LocalCount, m.InitScopeDepth, m.MaxScopeDepth = maxStack, localCount, initScope, maxScope
	m.Code, m.Exceptions, m.Traits = code, exceptions, traits
	return nil
}

func writeConstantPool(w *byteWriter, p *ConstantPool) {
	w.u30(uint32(p.Integers.Len()))
	for i := 1; i < p.Integers.Len(); i++ {
		w.s32(p.Integers.At(Index(i)))
	}
	w.u30(uint32(p.UIntegers.Len()))
	for i := 1; i < p.UIntegers.Len(); i++ {
		w.u30(p.UIntegers.At(Index(i)))
	}
	w.u30(uint32(p.Doubles.Len()))
	for i := 1; i < p.Doubles.Len(); i++ {
		w.f64(p.Doubles.At(Index(i)))
	}
	w.u30(uint32(p.Strings.Len()))
	for i := 1; i < p.Strings.Len(); i++ {
		w.utf8(p.Strings.At(Index(i)))
	}
	w.u30(uint32(p.Namespaces.Len()))
	for i := 1; i < p.Namespaces.Len(); i++ {
		ns := p.Namespaces.At(Index(i))
		w.u8(byte(ns.Kind))
		w.u30(uint32(ns.Name))
	}
	w.u30(uint32(p.NSSets.Len()))
	for i := 1; i < p.NSSets.Len(); i++ {
		members := p.NSSetMembers(Index(i))
		w.u30(uint32(len(members)))
		for _, m := range members {
			w.u30(uint32(m))
		}
	}
	w.u30(uint32(len(p.Multinames)))
	for i := 1; i < len(p.Multinames); i++ {
		writeMultiname(w, &p.Multinames[i])
	}
}

func writeMultiname(w *byteWriter, mn *Multiname) {
	w.u8(byte(mn.Kind))
	switch mn.Kind {
	case MNKindQName, MNKindQNameA:
		w.u30(uint32(mn.NS))
		w.u30(uint32(mn.Name))
	case MNKindRTQName, MNKindRTQNameA, MNKindRTQNameL, MNKindRTQNameLA:
	case MNKindMultiname, MNKindMultinameA:
		w.u30(uint32(mn.Name))
		w.u30(uint32(mn.NSSet))
	case MNKindMultinameL, MNKindMultinameLA:
		w.u30(uint32(mn.NSSet))
	case MNKindTypeName:
		w.u30(uint32(mn.TypeBase))
		w.u30(uint32(len(mn.TypeParams)))
		for _, p := range mn.TypeParams {
			w.u30(uint32(p))
		}
	}
}

func writeMethodSignature(w *byteWriter, m *Method) {
	w.u30(uint32(len(m.Params)))
	w.u30(uint32(m.ReturnType))
	for _, p := range m.Params {
		w.u30(uint32(p))
	}
	w.u30(uint32(m.Name))
	w.u8(m.Flags &^ 0x88) // optional/param-name extras are not round-tripped
}

func writeInstanceInfo(w *byteWriter, c *Class) {
	w.u30(uint32(c.Name))
	w.u30(uint32(c.SuperName))
	w.u8(c.Flags)
	if c.Flags&ClassFlagProtected != 0 {
		w.u30(uint32(c.ProtectedNS))
	}
	w.u30(uint32(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		w.u30(uint32(i))
	}
	w.u30(uint32(c.IInit))
	writeTraits(w, c.ITraits)
}

func writeClassInfo(w *byteWriter, c *Class) {
	w.u30(uint32(c.CInit))
	writeTraits(w, c.CTraits)
}

func writeTraits(w *byteWriter, traits []Trait) {
	w.u30(uint32(len(traits)))
	for i := range traits {
		writeTrait(w, &traits[i])
	}
}

func writeTrait(w *byteWriter, t *Trait) {
	w.u30(uint32(t.Name))
	w.u8(byte(t.Kind) | t.Attrs<<4)
	switch t.Kind {
	case TraitSlot, TraitConst:
		w.u30(t.SlotID)
		w.u30(uint32(t.SlotType))
		w.u30(uint32(t.ValueIndex))
		if t.ValueIndex != 0 {
			w.u8(t.ValueKind)
		}
	case TraitMethod, TraitGetter, TraitSetter:
		w.u30(t.SlotID)
		w.u30(uint32(t.Method))
	case TraitClass:
		w.u30(t.SlotID)
		w.u30(uint32(t.Class))
	case TraitFunction:
		w.u30(t.SlotID)
		w.u30(uint32(t.Method))
	}
	if t.Attrs&TraitAttrMetadata != 0 {
		w.u30(uint32(len(t.Metadata)))
		for _, m := range t.Metadata {
			w.u30(uint32(m))
		}
	}
}

func writeMethodBody(w *byteWriter, m *Method) {
	w.u30(m.MaxStack)
	w.u30(m.LocalCount)
	w.u30(m.InitScopeDepth)
	w.u30(m.MaxScopeDepth)
	w.u30(uint32(len(m.Code)))
	w.buf.Write(m.Code)
	w.u30(uint32(len(m.Exceptions)))
	for _, e := range m.Exceptions {
		w.u30(e.From)
		w.u30(e.To)
		w.u30(e.Target)
		w.u30(uint32(e.ExcType))
		w.u30(uint32(e.VarName))
	}
	writeTraits(w, m.Traits)
}
