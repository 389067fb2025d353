package classfile

import (
	"encoding/binary"

	"github.com/jacobin-wasm/j2w/internal/j2werr"
)

// RawAttribute is an attribute whose content has not yet been decoded.
// Unknown attribute names are kept exactly in this form (spec.md §4.1);
// known ones are decoded lazily by the On-demand accessors below the first
// time a caller asks for them.
type RawAttribute struct {
	Name string
	Data []byte
}

// readAttributes reads a standard count-prefixed attribute table.
func readAttributes(r *reader, cp *Pool) ([]RawAttribute, error) {
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	attrs := make([]RawAttribute, 0, count)
	for i := 0; i < int(count); i++ {
		nameIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		name, err := cp.UTF8At(nameIdx)
		if err != nil {
			return nil, err
		}
		length, err := r.u4()
		if err != nil {
			return nil, err
		}
		data, err := r.bytes(int(length))
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, RawAttribute{Name: name, Data: data})
	}
	return attrs, nil
}

// find returns the first attribute named name, or nil.
func find(attrs []RawAttribute, name string) *RawAttribute {
	for i := range attrs {
		if attrs[i].Name == name {
			return &attrs[i]
		}
	}
	return nil
}

// ExceptionHandler is one entry of a Code attribute's exception table
// (spec.md §3). CatchType == "" means a finally handler (catches
// everything).
type ExceptionHandler struct {
	StartPC, EndPC, HandlerPC int
	CatchType                 string
}

// LineEntry maps a bytecode offset to a source line; entries are strictly
// increasing by Offset (spec.md §3).
type LineEntry struct {
	Offset, Line int
}

// LocalVariable is one entry of a method's LocalVariableTable attribute.
type LocalVariable struct {
	StartPC, Length, Index int
	Name, Descriptor       string
}

// Code is the decoded form of a method's Code attribute.
type Code struct {
	MaxStack, MaxLocals int
	Bytes               []byte
	ExceptionTable      []ExceptionHandler
	LineNumbers         []LineEntry
	LocalVariables      []LocalVariable
}

// DecodeCode lazily decodes the Code attribute of a method, per spec.md
// §4.1 ("each ... decoded lazily on first access").
func DecodeCode(attrs []RawAttribute, cp *Pool) (*Code, error) {
	raw := find(attrs, "Code")
	if raw == nil {
		return nil, nil
	}
	r := newReader(raw.Data)
	maxStack, err := r.u2()
	if err != nil {
		return nil, err
	}
	maxLocals, err := r.u2()
	if err != nil {
		return nil, err
	}
	codeLen, err := r.u4()
	if err != nil {
		return nil, err
	}
	code, err := r.bytes(int(codeLen))
	if err != nil {
		return nil, err
	}
	excCount, err := r.u2()
	if err != nil {
		return nil, err
	}
	handlers := make([]ExceptionHandler, 0, excCount)
	for i := 0; i < int(excCount); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		endPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		handlerPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		catchIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		var catchType string
		if catchIdx != 0 {
			e, err := cp.Get(catchIdx)
			if err != nil {
				return nil, err
			}
			catchType = e.Name
		}
		handlers = append(handlers, ExceptionHandler{
			StartPC: int(startPC), EndPC: int(endPC), HandlerPC: int(handlerPC), CatchType: catchType,
		})
	}
	subAttrs, err := readAttributes(r, cp)
	if err != nil {
		return nil, err
	}
	lines, err := decodeLineNumberTable(subAttrs, cp)
	if err != nil {
		return nil, err
	}
	locals, err := decodeLocalVariableTable(subAttrs, cp)
	if err != nil {
		return nil, err
	}
	return &Code{
		MaxStack: int(maxStack), MaxLocals: int(maxLocals), Bytes: code,
		ExceptionTable: handlers, LineNumbers: lines, LocalVariables: locals,
	}, nil
}

func decodeLineNumberTable(attrs []RawAttribute, cp *Pool) ([]LineEntry, error) {
	raw := find(attrs, "LineNumberTable")
	if raw == nil {
		return nil, nil
	}
	r := newReader(raw.Data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]LineEntry, 0, count)
	for i := 0; i < int(count); i++ {
		off, err := r.u2()
		if err != nil {
			return nil, err
		}
		line, err := r.u2()
		if err != nil {
			return nil, err
		}
		out = append(out, LineEntry{Offset: int(off), Line: int(line)})
	}
	return out, nil
}

func decodeLocalVariableTable(attrs []RawAttribute, cp *Pool) ([]LocalVariable, error) {
	raw := find(attrs, "LocalVariableTable")
	if raw == nil {
		return nil, nil
	}
	r := newReader(raw.Data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVariable, 0, count)
	for i := 0; i < int(count); i++ {
		startPC, err := r.u2()
		if err != nil {
			return nil, err
		}
		length, err := r.u2()
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
		index, err := r.u2()
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
		out = append(out, LocalVariable{
			StartPC: int(startPC), Length: int(length), Index: int(index),
			Name: name, Descriptor: desc,
		})
	}
	return out, nil
}

// DecodeSignature returns the generic signature attribute's UTF-8 payload,
// or "" if absent.
func DecodeSignature(attrs []RawAttribute, cp *Pool) (string, error) {
	raw := find(attrs, "Signature")
	if raw == nil {
		return "", nil
	}
	if len(raw.Data) < 2 {
		return "", j2werr.New(j2werr.KindDecodeError, "truncated Signature attribute")
	}
	idx := binary.BigEndian.Uint16(raw.Data)
	return cp.UTF8At(idx)
}

// DecodeSourceFile returns the SourceFile class attribute's payload.
func DecodeSourceFile(attrs []RawAttribute, cp *Pool) (string, error) {
	raw := find(attrs, "SourceFile")
	if raw == nil {
		return "", nil
	}
	if len(raw.Data) < 2 {
		return "", j2werr.New(j2werr.KindDecodeError, "truncated SourceFile attribute")
	}
	idx := binary.BigEndian.Uint16(raw.Data)
	return cp.UTF8At(idx)
}

// DecodeExceptions returns the declared checked-exception class names of a
// method's Exceptions attribute.
func DecodeExceptions(attrs []RawAttribute, cp *Pool) ([]string, error) {
	raw := find(attrs, "Exceptions")
	if raw == nil {
		return nil, nil
	}
	r := newReader(raw.Data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, count)
	for i := 0; i < int(count); i++ {
		idx, err := r.u2()
		if err != nil {
			return nil, err
		}
		e, err := cp.Get(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, e.Name)
	}
	return out, nil
}

// BootstrapMethod records one entry of the class's BootstrapMethods
// attribute, referenced by invokedynamic call sites (spec.md §3, §4.5).
type BootstrapMethod struct {
	// Handle describes the meta-factory: its kind and the (class, name,
	// descriptor) it resolves to.
	Handle MethodHandleRef
	// Args are the loadable constant-pool arguments passed to the
	// meta-factory (e.g. the SAM descriptor, the implementation method
	// handle, the instantiated method type for lambda metafactory; the
	// recipe string and static args for the string-concat factory).
	Args []Entry
}

// MethodHandleRef is a resolved method handle (spec.md §3: "method-handle
// resolves through its referenced member").
type MethodHandleRef struct {
	RefKind              byte
	IsField              bool
	ClassName, Name, Desc string
}

// DecodeBootstrapMethods decodes the class-level BootstrapMethods
// attribute.
func DecodeBootstrapMethods(attrs []RawAttribute, cp *Pool) ([]BootstrapMethod, error) {
	raw := find(attrs, "BootstrapMethods")
	if raw == nil {
		return nil, nil
	}
	r := newReader(raw.Data)
	count, err := r.u2()
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, 0, count)
	for i := 0; i < int(count); i++ {
		handleIdx, err := r.u2()
		if err != nil {
			return nil, err
		}
		he, err := cp.Get(handleIdx)
		if err != nil {
			return nil, err
		}
		if he.Tag != TagMethodHandle {
			return nil, j2werr.New(j2werr.KindDecodeError, "bootstrap method does not reference a MethodHandle")
		}
		argCount, err := r.u2()
		if err != nil {
			return nil, err
		}
		args := make([]Entry, 0, argCount)
		for j := 0; j < int(argCount); j++ {
			argIdx, err := r.u2()
			if err != nil {
				return nil, err
			}
			ae, err := cp.Get(argIdx)
			if err != nil {
				return nil, err
			}
			args = append(args, *ae)
		}
		out = append(out, BootstrapMethod{
			Handle: MethodHandleRef{
				RefKind: he.RefKind, IsField: he.RefIsField,
				ClassName: he.RefClassName, Name: he.RefMemberName, Desc: he.RefMemberDesc,
			},
			Args: args,
		})
	}
	return out, nil
}
