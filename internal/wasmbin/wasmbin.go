// Package wasmbin renders a *compiler.Module into the WebAssembly binary
// format (spec.md §6, component C9): the `\0asm` header, the twelve
// canonical sections, and a trailing sourceMappingURL custom section.
//
// It is grounded on the teacher's own binary encoder
// (internal/wasm/binary in wazero): a flat byte buffer built by a
// handful of small, single-purpose append functions (encodeValType,
// encodeLimitsType, ...) rather than a streaming writer abstraction, and
// a leading-length-prefixed "section" helper that first renders a
// section's body into a scratch buffer, then prepends its own encoded
// byte length — exactly what wazero's binary.EncodeSection generalizes
// into a `io.Writer`-free helper. This package keeps that shape, using
// internal/leb128 (this repo's own, grounded on wazero's leb128 package)
// in place of wazero's.
package wasmbin

import (
	"bytes"

	"github.com/jacobin-wasm/j2w/internal/compiler"
	"github.com/jacobin-wasm/j2w/internal/leb128"
)

const (
	magic   = "\x00asm"
	version = 1
)

// Section ids, in the order the binary format requires them to appear.
const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secTable    = 4
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secStart    = 8
	secElement  = 9
	secCode     = 10
	secData     = 11
	secCustom   = 0
)

// Mapping is one generated-code-offset-to-source-line record, collected
// while the code section is emitted; internal/sourcemap turns a slice of
// these into a source map's per-segment fields (spec.md §6, component
// C10).
type Mapping struct {
	// CodeOffset is a byte offset relative to the start of the code
	// section's body (the first function body's first byte is 0).
	CodeOffset int
	File       string
	Line       int
}

// Result is the binary emitter's output: the finished module bytes plus
// the line mappings the source-map sink needs.
type Result struct {
	Bytes    []byte
	Mappings []Mapping
}

// Emit renders mod into a complete binary module. sourceMapURL, if
// non-empty, is embedded as a trailing "sourceMappingURL" custom section
// (spec.md §4's SourceMapBase configuration key feeds this from the
// caller once C10 has written the map file).
func Emit(mod *compiler.Module, cfg *compiler.Config, sourceMapURL string) (*Result, error) {
	e := &emitter{mod: mod, cfg: cfg}
	if err := e.prepare(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(version)
	buf.WriteByte(0)
	buf.WriteByte(0)
	buf.WriteByte(0)

	buf.Write(section(secType, e.typeSection()))
	buf.Write(section(secImport, e.importSection()))
	buf.Write(section(secFunction, e.functionSection()))
	buf.Write(section(secTable, e.tableSection()))
	buf.Write(section(secMemory, e.memorySection()))
	buf.Write(section(secGlobal, e.globalSection()))
	buf.Write(section(secExport, e.exportSection()))
	if start, ok := e.startSection(); ok {
		buf.Write(section(secStart, start))
	}
	buf.Write(section(secElement, e.elementSection()))

	code, mappings, err := e.codeSection()
	if err != nil {
		return nil, err
	}
	buf.Write(section(secCode, code))
	buf.Write(section(secData, e.dataSection()))

	if sourceMapURL != "" {
		buf.Write(customSection("sourceMappingURL", leb128EncodeString(sourceMapURL)))
	}

	return &Result{Bytes: buf.Bytes(), Mappings: mappings}, nil
}

// section length-prefixes body with its own ULEB128 byte count and
// prepends the section id.
func section(id byte, body []byte) []byte {
	var out bytes.Buffer
	out.WriteByte(id)
	out.Write(leb128.EncodeUint32(uint32(len(body))))
	out.Write(body)
	return out.Bytes()
}

func customSection(name string, payload []byte) []byte {
	var body bytes.Buffer
	body.Write(leb128EncodeString(name))
	body.Write(payload)
	return section(secCustom, body.Bytes())
}

func leb128EncodeString(s string) []byte {
	var out bytes.Buffer
	out.Write(leb128.EncodeUint32(uint32(len(s))))
	out.WriteString(s)
	return out.Bytes()
}

func vec(n int) []byte { return leb128.EncodeUint32(uint32(n)) }
