package classfile

// Access flag bits shared by classes, fields, and methods (JVMS §4.1,
// §4.5, §4.6). Not every flag is meaningful for every kind; callers check
// the ones relevant to their context.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSuper        uint16 = 0x0020
	AccSynchronized uint16 = 0x0020
	AccVolatile     uint16 = 0x0040
	AccBridge       uint16 = 0x0040
	AccTransient    uint16 = 0x0080
	AccVarargs      uint16 = 0x0080
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
	AccStrict       uint16 = 0x0800
	AccSynthetic    uint16 = 0x1000
	AccAnnotation   uint16 = 0x2000
	AccEnum         uint16 = 0x4000
	AccModule       uint16 = 0x8000
)

// Field is a decoded field_info structure plus its resolved name and
// descriptor.
type Field struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []RawAttribute
}

func (f *Field) IsStatic() bool { return f.AccessFlags&AccStatic != 0 }

// Method is a decoded method_info structure. Abstract and native methods
// have no Code attribute, so DecodeCode returns nil for them (spec.md §4.1: "abstract
// and native methods carry no Code attribute and translate to WASM-level
// declarations only, never bodies").
type Method struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Attributes  []RawAttribute
}

func (m *Method) IsStatic() bool      { return m.AccessFlags&AccStatic != 0 }
func (m *Method) IsAbstract() bool    { return m.AccessFlags&AccAbstract != 0 }
func (m *Method) IsNative() bool      { return m.AccessFlags&AccNative != 0 }
func (m *Method) IsSynthetic() bool   { return m.AccessFlags&AccSynthetic != 0 }
func (m *Method) HasNoBody() bool     { return m.IsAbstract() || m.IsNative() }
func (m *Method) IsConstructor() bool { return m.Name == "<init>" }
func (m *Method) IsClinit() bool      { return m.Name == "<clinit>" }

func readFields(r *reader, cp *Pool) ([]*Field, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]*Field, 0, count)
	for i := 0; i < int(count); i++ {
		flags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.UTF8At(nameIdx)
		if err != nil {
			return nil, err
		}
		desc, err := cp.UTF8At(descIdx)
		if err != nil {
			return nil, err
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, &Field{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs})
	}
	return out, nil
}

func readMethods(r *reader, cp *Pool) ([]*Method, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]*Method, 0, count)
	for i := 0; i < int(count); i++ {
		flags, err := r.u2()
		if err != nil {
			return nil, err
		}
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		descIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.UTF8At(nameIdx)
		if err != nil {
			return nil, err
		}
		desc, err := cp.UTF8At(descIdx)
		if err != nil {
			return nil, err
		}
		attrs, err := readAttributes(r, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, &Method{AccessFlags: flags, Name: name, Descriptor: desc, Attributes: attrs})
	}
	return out, nil
}
