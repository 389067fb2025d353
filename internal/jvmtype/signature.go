// Package jvmtype parses JVM descriptor and signature strings (spec.md
// §4.2) into the sequence of value/reference types they describe. It knows
// nothing about WebAssembly; internal/wasmtype consumes its output to build
// the module's own type system.
package jvmtype

import (
	"strings"

	"github.com/jacobin-wasm/j2w/internal/j2werr"
)

// Kind enumerates the erased JVM type shapes a descriptor can describe.
type Kind int

const (
	KindBoolean Kind = iota
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindVoid
	KindClass
	KindArray
)

// Type is one parsed element of a descriptor: a primitive, a class
// reference (ClassName holds the dot-form name, e.g. "java.lang.String"),
// or an array (Element points at the component type).
type Type struct {
	Kind      Kind
	ClassName string
	Element   *Type
}

// IsPrimitive reports whether t is one of the eight JVM primitive kinds.
func (t *Type) IsPrimitive() bool {
	return t.Kind != KindClass && t.Kind != KindArray
}

// String renders t back in its canonical descriptor form (testable
// property 3: descriptor round-trip).
func (t *Type) String() string {
	switch t.Kind {
	case KindBoolean:
		return "Z"
	case KindByte:
		return "B"
	case KindChar:
		return "C"
	case KindShort:
		return "S"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindVoid:
		return "V"
	case KindClass:
		return "L" + strings.ReplaceAll(t.ClassName, ".", "/") + ";"
	case KindArray:
		return "[" + t.Element.String()
	}
	return "?"
}

// normalizeClassName converts the internal form "pkg/Name" (as it appears
// between 'L' and ';') to the dotted form "pkg.Name" (spec.md §4.1).
func normalizeClassName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// Parser walks a method descriptor "(ArgTypes)ReturnType" or a bare field
// descriptor, yielding one Type per call to Next.
//
// For a method descriptor, Next returns each parameter type in order; once
// the argument list is exhausted it returns (nil, nil), and the following
// call returns the return type. For a field descriptor there is exactly
// one type, then (nil, nil) forever after.
type Parser struct {
	src    string
	pos    int
	inArgs bool
	// state tracks progress through the three phases of a method
	// descriptor: args, then a single pending-return marker, then done.
	state parserState
}

type parserState int

const (
	stateArgs parserState = iota
	stateReturnPending
	stateDone
)

// NewParser creates a Parser over a method or field descriptor string.
func NewParser(descriptor string) *Parser {
	p := &Parser{src: descriptor}
	if len(descriptor) > 0 && descriptor[0] == '(' {
		p.inArgs = true
		p.pos = 1
	} else {
		// bare field descriptor: one type, then the "end of arguments"
		// nil, followed by nothing more.
		p.state = stateReturnPending
	}
	return p
}

// Next yields the next type in parameter order. See the Parser doc comment
// for the two end-of-sequence conventions.
func (p *Parser) Next() (*Type, error) {
	switch p.state {
	case stateArgs:
		if p.pos >= len(p.src) {
			return nil, j2werr.Newf(j2werr.KindDecodeError, "jvmtype: unterminated parameter list in %q", p.src)
		}
		if p.src[p.pos] == ')' {
			p.pos++
			p.state = stateReturnPending
			return nil, nil
		}
		return p.parseOne()
	case stateReturnPending:
		p.state = stateDone
		if p.pos >= len(p.src) {
			return nil, j2werr.Newf(j2werr.KindDecodeError, "jvmtype: missing return type in %q", p.src)
		}
		return p.parseOne()
	default:
		return nil, nil
	}
}

// parseOne consumes exactly one type starting at p.pos.
func (p *Parser) parseOne() (*Type, error) {
	if p.pos >= len(p.src) {
		return nil, j2werr.Newf(j2werr.KindDecodeError, "jvmtype: descriptor %q ended early", p.src)
	}
	c := p.src[p.pos]
	switch c {
	case 'Z':
		p.pos++
		return &Type{Kind: KindBoolean}, nil
	case 'B':
		p.pos++
		return &Type{Kind: KindByte}, nil
	case 'C':
		p.pos++
		return &Type{Kind: KindChar}, nil
	case 'S':
		p.pos++
		return &Type{Kind: KindShort}, nil
	case 'I':
		p.pos++
		return &Type{Kind: KindInt}, nil
	case 'J':
		p.pos++
		return &Type{Kind: KindLong}, nil
	case 'F':
		p.pos++
		return &Type{Kind: KindFloat}, nil
	case 'D':
		p.pos++
		return &Type{Kind: KindDouble}, nil
	case 'V':
		p.pos++
		return &Type{Kind: KindVoid}, nil
	case 'L':
		end := strings.IndexByte(p.src[p.pos:], ';')
		if end < 0 {
			return nil, j2werr.Newf(j2werr.KindDecodeError, "jvmtype: unterminated class type in %q", p.src)
		}
		internal := p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
		return &Type{Kind: KindClass, ClassName: normalizeClassName(internal)}, nil
	case '[':
		p.pos++
		elem, err := p.parseOne()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Element: elem}, nil
	}
	return nil, j2werr.Newf(j2werr.KindDecodeError, "jvmtype: unrecognized descriptor character %q in %q", c, p.src)
}

// ParseFieldType parses a single field descriptor such as "[Ljava/lang/String;".
func ParseFieldType(descriptor string) (*Type, error) {
	p := NewParser(descriptor)
	return p.parseOne()
}

// ParseMethodSignature parses a full method descriptor into its parameter
// types (in order) and its return type.
func ParseMethodSignature(descriptor string) (params []*Type, result *Type, err error) {
	p := NewParser(descriptor)
	for {
		t, err := p.Next()
		if err != nil {
			return nil, nil, err
		}
		if t == nil {
			break
		}
		params = append(params, t)
	}
	result, err = p.Next()
	if err != nil {
		return nil, nil, err
	}
	if result == nil {
		return nil, nil, j2werr.Newf(j2werr.KindDecodeError, "jvmtype: missing return type in %q", descriptor)
	}
	return params, result, nil
}
