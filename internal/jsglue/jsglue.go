// Package jsglue renders a compiled Module's JavaScript-bodied imports
// into the CommonJS sidecar file spec.md §6/§4.11 documents: an object
// `{ module: { name: body, … }, … }` exported as `module.exports`.
//
// This is grounded on the teacher's `imports/go`/`experimental/gojs`
// packages, which generate host-side glue binding imported function names
// to Go closures for a `syscall/js`-flavored host; here the host is
// literally JavaScript, so the "glue" degenerates to the plain object
// literal the runtime's module loader already expects (see
// internal/compiler/runtime.go's RuntimeJSModule note).
package jsglue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jacobin-wasm/j2w/internal/compiler"
)

// Render builds the glue file's full source text: a `const __strings`
// literal array (the interned string table every `materializeString`
// import body indexes into, internal/compiler/runtime.go's RTMaterializeString)
// followed by the `module.exports` object, grouped by import module name
// in first-seen order and, within a module, by import name in first-seen
// order (stable output for golden-file diffing).
func Render(mod *compiler.Module) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("// Code generated by j2w; see spec.md §4.11. DO NOT EDIT.\n")
	buf.WriteString("const __strings = [\n")
	for _, e := range mod.Strings.Entries() {
		lit, err := json.Marshal(e.Content)
		if err != nil {
			return nil, fmt.Errorf("jsglue: encoding string pool entry %d: %w", e.Index, err)
		}
		buf.WriteString("  ")
		buf.Write(lit)
		buf.WriteString(",\n")
	}
	buf.WriteString("];\n\n")

	order, byModule := groupByModule(mod.JSImports)

	buf.WriteString("module.exports = {\n")
	for _, modName := range order {
		modLit, err := json.Marshal(modName)
		if err != nil {
			return nil, err
		}
		buf.WriteString("  ")
		buf.Write(modLit)
		buf.WriteString(": {\n")
		for _, imp := range byModule[modName] {
			nameLit, err := json.Marshal(imp.Name)
			if err != nil {
				return nil, err
			}
			buf.WriteString("    ")
			buf.Write(nameLit)
			buf.WriteString(": ")
			buf.WriteString(imp.Body)
			buf.WriteString(",\n")
		}
		buf.WriteString("  },\n")
	}
	buf.WriteString("};\n")

	return buf.Bytes(), nil
}

// HasJSImports reports whether mod has any import the glue sink needs to
// render, so the caller (spec.md §6: "a sidecar JavaScript glue file when
// any @Import carries a js attribute") can skip writing the file entirely
// otherwise. The runtime helper imports (internal/compiler/runtime.go)
// always count, since their JS bodies are this file's only definition.
func HasJSImports(mod *compiler.Module) bool {
	return len(mod.JSImports) > 0
}

// groupByModule buckets imports by module name, returning both the bucket
// map and the first-seen module order (Go maps have no iteration order,
// and the rendered file's module order should be deterministic run to
// run, matching the translation's own encounter order).
func groupByModule(imports []compiler.JSImport) ([]string, map[string][]compiler.JSImport) {
	var order []string
	byModule := make(map[string][]compiler.JSImport)
	seen := make(map[string]bool)
	for _, imp := range imports {
		if !seen[imp.Module] {
			seen[imp.Module] = true
			order = append(order, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], imp)
	}
	return order, byModule
}
