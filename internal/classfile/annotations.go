package classfile

import "github.com/jacobin-wasm/j2w/internal/j2werr"

// ElementValue is a decoded annotation element value. Exactly one of the
// fields is meaningful, selected by Kind (spec.md §4.1's Open Questions:
// "a conforming implementation must support all five kinds" — const,
// enum, class, nested annotation, and array).
type ElementValue struct {
	// Kind is the tag byte from JVMS §4.7.16.1: one of
	// B C D F I J S Z (primitive const), s (string const), e (enum),
	// c (class literal), @ (nested annotation), [ (array).
	Kind byte

	ConstInt32   int32
	ConstInt64   int64
	ConstFloat32 float32
	ConstFloat64 float64
	ConstString  string

	EnumTypeName string
	EnumConst    string

	ClassDescriptor string

	Nested *Annotation

	Array []ElementValue
}

// Annotation is a decoded runtime-(in)visible annotation (JVMS §4.7.16).
type Annotation struct {
	TypeDescriptor string
	Elements       map[string]ElementValue
}

func readAnnotation(r *reader, cp *Pool) (*Annotation, error) {
	typeIdx, err := r.u2()
	if err != nil {
		return nil, err
	}
	typeDesc, err := cp.UTF8At(typeIdx)
	if err != nil {
		return nil, err
	}
	pairCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	elems := make(map[string]ElementValue, pairCount)
	for i := 0; i < int(pairCount); i++ {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.UTF8At(nameIdx)
		if err != nil {
			return nil, err
		}
		val, err := readElementValue(r, cp)
		if err != nil {
			return nil, err
		}
		elems[name] = val
	}
	return &Annotation{TypeDescriptor: typeDesc, Elements: elems}, nil
}

func readElementValue(r *reader, cp *Pool) (ElementValue, error) {
	tag, err := r.u1()
	if err != nil {
		return ElementValue{}, err
	}
	switch tag {
	case 'B', 'C', 'I', 'S', 'Z':
		idx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		e, err := cp.Get(idx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, ConstInt32: e.Int32}, nil
	case 'J':
		idx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		e, err := cp.Get(idx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, ConstInt64: e.Int64}, nil
	case 'F':
		idx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		e, err := cp.Get(idx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, ConstFloat32: e.Float32}, nil
	case 'D':
		idx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		e, err := cp.Get(idx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, ConstFloat64: e.Float64}, nil
	case 's':
		idx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		s, err := cp.UTF8At(idx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, ConstString: s}, nil
	case 'e':
		typeIdx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		constIdx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		typeName, err := cp.UTF8At(typeIdx)
		if err != nil {
			return ElementValue{}, err
		}
		constName, err := cp.UTF8At(constIdx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, EnumTypeName: typeName, EnumConst: constName}, nil
	case 'c':
		idx, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		desc, err := cp.UTF8At(idx)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, ClassDescriptor: desc}, nil
	case '@':
		nested, err := readAnnotation(r, cp)
		if err != nil {
			return ElementValue{}, err
		}
		return ElementValue{Kind: tag, Nested: nested}, nil
	case '[':
		count, err := r.u2()
		if err != nil {
			return ElementValue{}, err
		}
		arr := make([]ElementValue, 0, count)
		for i := 0; i < int(count); i++ {
			v, err := readElementValue(r, cp)
			if err != nil {
				return ElementValue{}, err
			}
			arr = append(arr, v)
		}
		return ElementValue{Kind: tag, Array: arr}, nil
	}
	return ElementValue{}, j2werr.Newf(j2werr.KindDecodeError, "unknown annotation element value tag %q", tag)
}

func readAnnotationTable(data []byte, cp *Pool) ([]*Annotation, error) {
	r := newReader(data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]*Annotation, 0, count)
	for i := 0; i < int(count); i++ {
		a, err := readAnnotation(r, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeAnnotations decodes a RuntimeVisibleAnnotations or
// RuntimeInvisibleAnnotations attribute. j2w treats both the same way:
// annotations drive compile-time linkage decisions (@Import, @Export,
// @WasmTextCode, @Replace, @Partial), never runtime reflection, so
// visibility is immaterial here.
func DecodeAnnotations(attrs []RawAttribute, cp *Pool) ([]*Annotation, error) {
	var out []*Annotation
	for _, name := range []string{"RuntimeVisibleAnnotations", "RuntimeInvisibleAnnotations"} {
		raw := find(attrs, name)
		if raw == nil {
			continue
		}
		decoded, err := readAnnotationTable(raw.Data, cp)
		if err != nil {
			return nil, err
		}
		out = append(out, decoded...)
	}
	return out, nil
}

// ByType returns the first decoded annotation whose TypeDescriptor matches
// descriptor (e.g. "Lorg/jacobinwasm/annotation/Import;"), or nil.
func ByType(annotations []*Annotation, descriptor string) *Annotation {
	for _, a := range annotations {
		if a.TypeDescriptor == descriptor {
			return a
		}
	}
	return nil
}
