// Package sourcemap renders the (generated-code-offset, source-file,
// source-line) triples the binary emitter collects (component C9,
// wasmbin.Mapping) into a Source Map v3 JSON document (spec.md §4.10,
// component C10).
//
// There is no ecosystem source-map-writing library anywhere in the
// retrieved corpus — the teacher only *consumes* debug info, the mirror
// operation, via experimental/dwarf.go's DWARF-based stack traces — so
// this is grounded on that consumer's shape (an ordered offset-to-source
// table) rather than on a third-party producer. VLQ-base64 is a small,
// fully specified bit encoding; the standard library's encoding/json and
// a hand-written VLQ encoder (the same scale of hand-rolled codec as
// internal/leb128, which the teacher's own internal/leb128 is the
// template for) are used rather than an external dependency, since none
// of the corpus's repos ever write this format.
package sourcemap

import (
	"bytes"
	"encoding/json"

	"github.com/jacobin-wasm/j2w/internal/wasmbin"
)

// Map is the Source Map v3 document shape spec.md §4.10 requires: fixed
// version, deduplicated sources in first-seen order, no symbol names, and
// the VLQ-base64 mappings string.
type Map struct {
	Version  int      `json:"version"`
	Sources  []string `json:"sources"`
	Names    []string `json:"names"`
	Mappings string   `json:"mappings"`
}

// Build turns the binary emitter's collected mappings into a Map. base is
// prepended to every source-file name (cfg.SourceMapBase, spec.md §6).
// Generated line is always 1 for WebAssembly (there is only one "line" of
// binary code); the mappings string therefore has no ';' line separators,
// only ',' segment separators.
func Build(mappings []wasmbin.Mapping, base string) *Map {
	m := &Map{Version: 3, Names: []string{}}

	sourceIdx := make(map[string]int)
	var prevColumn, prevSource, prevLine int
	var segs bytes.Buffer

	for i, mp := range mappings {
		file := base + mp.File
		idx, ok := sourceIdx[file]
		if !ok {
			idx = len(m.Sources)
			sourceIdx[file] = idx
			m.Sources = append(m.Sources, file)
		}

		if i > 0 {
			segs.WriteByte(',')
		}
		writeVLQ(&segs, mp.CodeOffset-prevColumn)
		writeVLQ(&segs, idx-prevSource)
		writeVLQ(&segs, mp.Line-prevLine)
		writeVLQ(&segs, 0) // source-column: always 0, JVM bytecode has no column info

		prevColumn, prevSource, prevLine = mp.CodeOffset, idx, mp.Line
	}

	m.Mappings = segs.String()
	return m
}

// Marshal renders m as the JSON document spec.md §4.10 specifies, field
// order matching the fixed `version, sources, names, mappings` shape.
func Marshal(m *Map) ([]byte, error) {
	return json.Marshal(m)
}

const vlqBase64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ appends v's Source Map v3 VLQ-base64 encoding: the sign is
// folded into bit 0 of the first digit, then the magnitude is chunked into
// 5-bit groups (least significant first), each group's continuation bit
// (0x20) set on every digit but the last.
func writeVLQ(buf *bytes.Buffer, v int) {
	var n uint32
	if v < 0 {
		n = (uint32(-v) << 1) | 1
	} else {
		n = uint32(v) << 1
	}
	for {
		digit := n & 0x1f
		n >>= 5
		if n > 0 {
			digit |= 0x20
		}
		buf.WriteByte(vlqBase64Alphabet[digit])
		if n == 0 {
			break
		}
	}
}
