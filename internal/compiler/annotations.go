package compiler

import "github.com/jacobin-wasm/j2w/internal/classfile"

// Annotation descriptors recognized on input methods (spec.md §6), under
// the org/jacobinwasm/annotation convention internal/classfile already
// uses for @Partial (see DESIGN.md's "naming convention" entry).
const (
	descImport      = "Lorg/jacobinwasm/annotation/Import;"
	descExport      = "Lorg/jacobinwasm/annotation/Export;"
	descWasmTextCode = "Lorg/jacobinwasm/annotation/WasmTextCode;"
	descReplace     = "Lorg/jacobinwasm/annotation/Replace;"
)

// importSpec is the decoded form of @Import(module, name, js?).
type importSpec struct {
	module, name string
	js           string
	hasJS        bool
}

func readImport(annotations []*classfile.Annotation) (importSpec, bool) {
	a := classfile.ByType(annotations, descImport)
	if a == nil {
		return importSpec{}, false
	}
	spec := importSpec{
		module: stringElement(a, "module"),
		name:   stringElement(a, "name"),
	}
	if js, ok := a.Elements["js"]; ok {
		spec.js = js.ConstString
		spec.hasJS = true
	}
	return spec, true
}

// readExport returns the export name (already defaulted to "" when the
// element is absent; the caller defaults it to the method's simple name
// per spec.md §6: "defaults to the method's simple name").
func readExport(annotations []*classfile.Annotation) (string, bool) {
	a := classfile.ByType(annotations, descExport)
	if a == nil {
		return "", false
	}
	return stringElement(a, "name"), true
}

func readWasmTextCode(annotations []*classfile.Annotation) (string, bool) {
	a := classfile.ByType(annotations, descWasmTextCode)
	if a == nil {
		return "", false
	}
	return stringElement(a, "text"), true
}

func readReplace(annotations []*classfile.Annotation) (string, bool) {
	a := classfile.ByType(annotations, descReplace)
	if a == nil {
		return "", false
	}
	return stringElement(a, "target"), true
}

func stringElement(a *classfile.Annotation, key string) string {
	if ev, ok := a.Elements[key]; ok {
		return ev.ConstString
	}
	return ""
}
