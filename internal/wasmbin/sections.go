package wasmbin

import (
	"bytes"

	"github.com/jacobin-wasm/j2w/internal/compiler"
	"github.com/jacobin-wasm/j2w/internal/leb128"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// emitter holds the module-wide bookkeeping every section needs: the
// import-first function-index remap (already computed by
// link.FuncManager.WasmIndexTable, see Module.WasmIndex) split back into
// ordered import/definition lists, and, in GC mode, the type-section
// index each registered class's struct type and each array element
// category landed at.
type emitter struct {
	mod *compiler.Module
	cfg *compiler.Config

	importsOrdered []*link.FuncEntry
	definedOrdered []*link.FuncEntry
	totalFuncs     int

	structTypeIdx []uint32          // class index -> type section index (GC mode only)
	arrayTypeIdx  map[scratchKind]uint32 // element category -> type section index (GC mode only)

	// globalIdx/globalOrder/globalType back the WASM globals static fields
	// lower to (OpGlobalGet/OpGlobalSet's GlobalID is a "Class#Field" key,
	// not a WASM index): one mutable global per distinct key, in first-seen
	// order across every body, typed by whichever use is encountered first.
	globalIdx   map[string]uint32
	globalOrder []string
	globalType  map[string]wasmtype.ValueType
}

func (e *emitter) prepare() error {
	n := e.mod.Funcs.Len()
	for i := 0; i < n; i++ {
		entry := e.mod.Funcs.ByID(uint32(i))
		switch entry.Kind {
		case link.FuncImported:
			e.importsOrdered = append(e.importsOrdered, entry)
		case link.FuncCode, link.FuncStart:
			e.definedOrdered = append(e.definedOrdered, entry)
		}
	}
	e.totalFuncs = len(e.importsOrdered) + len(e.definedOrdered)

	e.globalIdx = make(map[string]uint32)
	e.globalType = make(map[string]wasmtype.ValueType)
	for _, entry := range e.definedOrdered {
		body := e.mod.Bodies[entry.Name.String()]
		if body == nil {
			continue
		}
		for _, in := range body.Instructions {
			if in.Op != translate.OpGlobalGet && in.Op != translate.OpGlobalSet {
				continue
			}
			if _, ok := e.globalIdx[in.GlobalID]; ok {
				continue
			}
			e.globalIdx[in.GlobalID] = uint32(len(e.globalOrder))
			e.globalType[in.GlobalID] = in.Type
			e.globalOrder = append(e.globalOrder, in.GlobalID)
		}
	}

	if e.cfg.WasmUseGC {
		base := uint32(len(e.mod.Funcs.Types()))
		e.structTypeIdx = make([]uint32, e.mod.Types.Len())
		for i := range e.structTypeIdx {
			e.structTypeIdx[i] = base + uint32(i)
		}
		arrBase := base + uint32(e.mod.Types.Len())
		e.arrayTypeIdx = map[scratchKind]uint32{
			scratchI32: arrBase + 0,
			scratchI64: arrBase + 1,
			scratchF32: arrBase + 2,
			scratchF64: arrBase + 3,
			scratchRef: arrBase + 4,
		}
	}
	return nil
}

// typeSection renders every registered function signature, and, in GC
// mode, one struct type per registered class plus five fixed array types
// (one per element category: i32/i64/f32/f64/ref).
func (e *emitter) typeSection() []byte {
	var buf bytes.Buffer
	sigs := e.mod.Funcs.Types()
	count := len(sigs)
	if e.cfg.WasmUseGC {
		count += e.mod.Types.Len() + int(numScratchKinds)
	}
	buf.Write(vec(count))
	for _, sig := range sigs {
		buf.WriteByte(ctFunc)
		buf.Write(vec(len(sig.Params)))
		for _, p := range sig.Params {
			buf.WriteByte(e.encodeValType(p))
		}
		buf.Write(vec(len(sig.Results)))
		for _, r := range sig.Results {
			buf.WriteByte(e.encodeValType(r))
		}
	}
	if !e.cfg.WasmUseGC {
		return buf.Bytes()
	}
	for i := 0; i < e.mod.Types.Len(); i++ {
		info := e.mod.Types.Get(uint32(i))
		buf.WriteByte(ctStruct)
		buf.Write(vec(len(info.Fields)))
		for _, f := range info.Fields {
			buf.WriteByte(e.encodeValType(f.Type))
			if f.Mutable {
				buf.WriteByte(fieldMutable)
			} else {
				buf.WriteByte(fieldImmutable)
			}
		}
	}
	for _, k := range []scratchKind{scratchI32, scratchI64, scratchF32, scratchF64, scratchRef} {
		buf.WriteByte(ctArray)
		buf.WriteByte(e.encodeValType(e.scratchValType(k)))
		buf.WriteByte(fieldMutable)
	}
	return buf.Bytes()
}

// importSection renders one entry per FuncImported entry, in the same
// order WasmIndexTable assigned them indices.
func (e *emitter) importSection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(len(e.importsOrdered)))
	for _, entry := range e.importsOrdered {
		buf.Write(leb128EncodeString(entry.ImportFrom))
		buf.Write(leb128EncodeString(entry.ImportName))
		buf.WriteByte(0x00) // func import kind
		buf.Write(leb128.EncodeUint32(entry.TypeID))
	}
	return buf.Bytes()
}

func (e *emitter) functionSection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(len(e.definedOrdered)))
	for _, entry := range e.definedOrdered {
		buf.Write(leb128.EncodeUint32(entry.TypeID))
	}
	return buf.Bytes()
}

// tableSection declares one funcref table, sized to the total function
// count and filled reflexively by elementSection (table index i always
// holds function index i), so a call_indirect's dynamically computed
// function index is usable directly as a table index with no extra
// indirection.
func (e *emitter) tableSection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(1))
	buf.WriteByte(vtFuncref)
	buf.WriteByte(0x00) // limits: min only
	buf.Write(vec(e.totalFuncs))
	return buf.Bytes()
}

// memorySection declares the single linear memory every non-GC heap
// access and the vtable/string data segment lives in, sized generously
// enough to hold the data segment with room for a typical program's
// instance data (spec.md does not size this; the host may grow it).
func (e *emitter) memorySection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(1))
	minPages := uint32(len(e.mod.Data.Bytes))/65536 + 1
	buf.WriteByte(0x00) // limits: min only
	buf.Write(leb128.EncodeUint32(minPages))
	return buf.Bytes()
}

// globalSection declares one mutable global per distinct static-field key
// (spec.md §4.3's getstatic/putstatic lowering), zero/null-initialized: the
// synthesized start function's <clinit> calls populate the real values
// before any exported function can observe them.
func (e *emitter) globalSection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(len(e.globalOrder)))
	for _, key := range e.globalOrder {
		t := e.globalType[key]
		buf.WriteByte(e.encodeValType(t))
		buf.WriteByte(0x01) // mutable
		buf.Write(e.zeroInitExpr(t))
	}
	return buf.Bytes()
}

// zeroInitExpr renders the constant init expression ("... end") for a
// global or local's zero value.
func (e *emitter) zeroInitExpr(t wasmtype.ValueType) []byte {
	var buf bytes.Buffer
	switch t {
	case wasmtype.I64:
		buf.WriteByte(opI64Const)
		buf.Write(leb128.EncodeInt64(0))
	case wasmtype.F32:
		buf.WriteByte(opF32Const)
		buf.Write(encodeF32(0))
	case wasmtype.F64:
		buf.WriteByte(opF64Const)
		buf.Write(encodeF64(0))
	case wasmtype.StructRef, wasmtype.ArrayRef, wasmtype.Externref:
		buf.WriteByte(opRefNull)
		buf.WriteByte(e.heapType(t))
	default:
		buf.WriteByte(opI32Const)
		buf.Write(leb128.EncodeInt32(0))
	}
	buf.WriteByte(opEnd)
	return buf.Bytes()
}

func (e *emitter) exportSection() []byte {
	var exports []link.FuncEntry
	for i := 0; i < e.mod.Funcs.Len(); i++ {
		entry := e.mod.Funcs.ByID(uint32(i))
		if entry.ExportName != "" {
			exports = append(exports, *entry)
		}
	}
	var buf bytes.Buffer
	buf.Write(vec(len(exports) + 1))
	for _, entry := range exports {
		buf.Write(leb128EncodeString(entry.ExportName))
		buf.WriteByte(0x00) // func export kind
		buf.Write(leb128.EncodeUint32(e.mod.WasmIndex[entry.ID]))
	}
	buf.Write(leb128EncodeString("memory"))
	buf.WriteByte(0x02) // memory export kind
	buf.Write(vec(0))
	return buf.Bytes()
}

func (e *emitter) startSection() ([]byte, bool) {
	if e.mod.StartFunc == "" {
		return nil, false
	}
	entry := e.mod.Funcs.Lookup(parseModuleFuncName(e.mod.StartFunc))
	if entry == nil {
		return nil, false
	}
	return leb128.EncodeUint32(e.mod.WasmIndex[entry.ID]), true
}

// elementSection fills the table reflexively: table[i] = function i, for
// every function in the index space (imports included, since any import
// satisfying a funcref-typed signature is as valid a call_indirect target
// as a definition).
func (e *emitter) elementSection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(1))
	buf.WriteByte(0x00) // active segment, table 0
	buf.WriteByte(0x41) // i32.const
	buf.Write(leb128.EncodeInt32(0))
	buf.WriteByte(0x0b) // end
	buf.Write(vec(e.totalFuncs))
	for i := 0; i < e.totalFuncs; i++ {
		buf.Write(leb128.EncodeUint32(uint32(i)))
	}
	return buf.Bytes()
}

func (e *emitter) dataSection() []byte {
	var buf bytes.Buffer
	buf.Write(vec(1))
	buf.WriteByte(0x00) // active segment, memory 0
	buf.WriteByte(0x41) // i32.const
	buf.Write(leb128.EncodeInt32(0))
	buf.WriteByte(0x0b) // end
	buf.Write(leb128.EncodeUint32(uint32(len(e.mod.Data.Bytes))))
	buf.Write(e.mod.Data.Bytes)
	return buf.Bytes()
}

// parseModuleFuncName reconstructs a link.FuncName from its String() form
// ("Class#Method(Descriptor)…"); mirrors internal/compiler's own
// parseFuncName, duplicated here since that one is unexported.
func parseModuleFuncName(s string) link.FuncName {
	hashIdx := bytes.IndexByte([]byte(s), '#')
	if hashIdx < 0 {
		return link.FuncName{}
	}
	class := s[:hashIdx]
	rest := s[hashIdx+1:]
	parenIdx := bytes.IndexByte([]byte(rest), '(')
	if parenIdx < 0 {
		return link.FuncName{Class: class, Method: rest}
	}
	return link.FuncName{Class: class, Method: rest[:parenIdx], Descriptor: rest[parenIdx:]}
}
