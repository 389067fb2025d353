package link

import (
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// FuncKind classifies a registered function (spec.md §4.5).
type FuncKind int

const (
	FuncImported FuncKind = iota
	FuncCode
	FuncAbstract
	FuncStart
)

// FuncName is the globally unique handle for a function: a
// (class, method, descriptor) triple plus its derived signature string
// (spec.md §3: "Function name ... the primary handle passed between
// components").
type FuncName struct {
	Class, Method, Descriptor string
}

func (n FuncName) String() string { return n.Class + "#" + n.Method + n.Descriptor }

// FuncEntry is one registered function.
type FuncEntry struct {
	Name       FuncName
	ID         uint32 // dense id, allocation order
	TypeID     uint32 // index into the function-type table
	Kind       FuncKind
	ExportName string // "" unless exported
	ImportFrom string // module name, for FuncImported
	ImportName string // import name, for FuncImported
}

// FuncManager is C5's function registry: dense allocation order, a
// deduplicated function-type table, and kind tracking (spec.md §4.5).
type FuncManager struct {
	byName  map[string]*FuncEntry
	byID    []*FuncEntry
	sigs    []wasmtype.FuncSig
}

func NewFuncManager() *FuncManager {
	return &FuncManager{byName: make(map[string]*FuncEntry)}
}

// Lookup returns the entry for name, or nil.
func (m *FuncManager) Lookup(name FuncName) *FuncEntry { return m.byName[name.String()] }

// Len reports the number of registered functions so far.
func (m *FuncManager) Len() int { return len(m.byID) }

// ByID returns the function registered with the given dense id.
func (m *FuncManager) ByID(id uint32) *FuncEntry {
	if int(id) >= len(m.byID) {
		return nil
	}
	return m.byID[id]
}

// TypeByID returns the deduplicated function signature for a type id.
func (m *FuncManager) TypeByID(id uint32) wasmtype.FuncSig { return m.sigs[id] }

// WasmIndexTable maps every registered FuncEntry.ID to its real WebAssembly
// function-index-space index: the binary format requires every import to
// precede every definition there, but FuncEntry.ID is assigned in
// arbitrary registration order (an @Import-annotated method is Register'd
// like any other, then re-Kind'd by SetImport once its annotation is
// read), so the two numberings diverge whenever a class declares an
// import after a body method. FuncAbstract entries never reach the
// function-index space at all (no class overriding them may exist; they
// exist only so call_indirect type-checks have a TypeID to compare
// against) and map to 0, a placeholder no emitted instruction ever reads
// back (an unresolved vtable slot already defaults to id 0, see
// internal/compiler's buildVtables).
func (m *FuncManager) WasmIndexTable() []uint32 {
	out := make([]uint32, len(m.byID))
	var next uint32
	for _, entry := range m.byID {
		if entry.Kind == FuncImported {
			out[entry.ID] = next
			next++
		}
	}
	for _, entry := range m.byID {
		if entry.Kind == FuncCode || entry.Kind == FuncStart {
			out[entry.ID] = next
			next++
		}
	}
	return out
}

// Types returns the full deduplicated function-type table, in the order
// types were first seen (used to emit the module's type section).
func (m *FuncManager) Types() []wasmtype.FuncSig { return m.sigs }

// internFuncType returns the existing type id for sig if one was already
// registered, otherwise appends sig and returns its new id (spec.md §4.5:
// "a function-type id ... deduplicated by parameter+result tuple").
func (m *FuncManager) internFuncType(sig wasmtype.FuncSig) uint32 {
	for i, s := range m.sigs {
		if s.Equal(sig) {
			return uint32(i)
		}
	}
	m.sigs = append(m.sigs, sig)
	return uint32(len(m.sigs) - 1)
}

// Register allocates (idempotently) an entry for name with the given
// signature and kind; abstract and interface methods still receive a
// function-type id (spec.md §4.5) so they can be call_indirect targets.
func (m *FuncManager) Register(name FuncName, sig wasmtype.FuncSig, kind FuncKind) *FuncEntry {
	key := name.String()
	if existing, ok := m.byName[key]; ok {
		return existing
	}
	entry := &FuncEntry{
		Name: name, ID: uint32(len(m.byID)), TypeID: m.internFuncType(sig), Kind: kind,
	}
	m.byName[key] = entry
	m.byID = append(m.byID, entry)
	return entry
}

// SetExport marks name exported under exportName. It is a LinkError to
// export a function that was never registered.
func (m *FuncManager) SetExport(name FuncName, exportName string) error {
	entry, ok := m.byName[name.String()]
	if !ok {
		return j2werr.Newf(j2werr.KindLinkError, "cannot export unregistered function %s", name)
	}
	if exportName == "" {
		exportName = name.Method
	}
	entry.ExportName = exportName
	return nil
}

// SetImport marks name as imported from (module, importName).
func (m *FuncManager) SetImport(name FuncName, module, importName string) error {
	entry, ok := m.byName[name.String()]
	if !ok {
		return j2werr.Newf(j2werr.KindLinkError, "cannot import unregistered function %s", name)
	}
	entry.Kind = FuncImported
	entry.ImportFrom = module
	entry.ImportName = importName
	return nil
}
