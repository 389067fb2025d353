// Package j2w is the top-level cross-compiler API: it drives C7's
// orchestrator (internal/compiler) to a finished Module, then renders
// every sink spec.md §6 documents as an output — the binary module (C9,
// always produced), the text module (C8, on request), the V3 source map
// (C10, when the binary carries any source-line mapping), and the
// JavaScript glue sidecar (when any `@Import` supplied a `js` body).
//
// Grounded on the teacher's own root package (wazero's builder.go/
// config.go: a small root-level API wrapping the internal runtime/store
// machinery so an embedder never imports internal/ packages directly).
// spec.md §1 scopes this repository the same way: "consumed by an
// external driver ... never owns process exit codes [or] flag parsing".
package j2w

import (
	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/compiler"
	"github.com/jacobin-wasm/j2w/internal/jsglue"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/sourcemap"
	"github.com/jacobin-wasm/j2w/internal/wasmbin"
	"github.com/jacobin-wasm/j2w/internal/wasmtext"
)

// Config is the recognized configuration map (spec.md §6), re-exported so
// callers never need to import internal/compiler directly.
type Config = compiler.Config

// NewConfig returns a Config with every documented default.
func NewConfig() *Config { return compiler.NewConfig() }

// ConfigFromMap builds a Config from the flat string-keyed map spec.md §6
// describes (a CLI flag set, a JSON request body).
func ConfigFromMap(m map[string]interface{}) *Config { return compiler.FromMap(m) }

// Classpath is a searched sequence of library archives (spec.md §4.7).
type Classpath = link.Classpath

// NewClasspath opens every path as a (possibly signed) jar for on-demand
// library class resolution.
func NewClasspath(paths []string) (*Classpath, error) { return link.NewClasspath(paths) }

// Result is the finished cross-compilation's full output set. Text,
// SourceMap, and JSGlue are nil when the caller didn't ask for them or
// (for SourceMap/JSGlue) there was nothing to emit.
type Result struct {
	// Binary is the WebAssembly binary module (component C9).
	Binary []byte
	// Text is the WebAssembly text module (component C8), rendered only
	// when WithText is set.
	Text string
	// SourceMap is the V3 JSON source map (component C10), non-nil
	// whenever the compiled module carries at least one source-line
	// mapping.
	SourceMap []byte
	// SourceMapURL is the name embedded as the binary's sourceMappingURL
	// custom section / the text module's trailer comment, "" if SourceMap
	// is nil.
	SourceMapURL string
	// JSGlue is the CommonJS glue sidecar (spec.md §4.11), non-nil
	// whenever the compiled module has any `@Import(...,js=...)`-derived
	// or runtime-helper JavaScript body to render.
	JSGlue []byte
	// Warnings carries every non-fatal diagnostic the orchestrator
	// collected (e.g. a class loaded from a signed archive whose signature
	// is not verified, spec.md §6).
	Warnings []string
}

// Options controls which optional sinks Compile renders in addition to
// the always-produced binary module.
type Options struct {
	// WithText additionally renders the text module (C8).
	WithText bool
	// SourceMapName, when non-empty, is the file name Compile embeds as
	// the sourceMappingURL and uses as Result.SourceMapURL; defaults to
	// "module.wasm.map" when a source map is produced but no name was
	// given.
	SourceMapName string
}

// Compile runs the full C1-C10+jsglue pipeline over inputs: it drives
// internal/compiler's orchestrator to a finished Module, then renders
// every sink the module and opts call for. classpath may be nil to
// disable on-demand library loading.
func Compile(inputs []*classfile.ClassFile, cfg *Config, classpath *Classpath, opts Options) (*Result, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	c := compiler.NewCompiler(cfg, classpath)
	mod, err := c.Compile(inputs)
	if err != nil {
		return nil, err
	}

	mapName := opts.SourceMapName
	if mapName == "" {
		mapName = "module.wasm.map"
	}

	binOut, err := wasmbin.Emit(mod, cfg, mapName)
	if err != nil {
		return nil, err
	}

	result := &Result{Binary: binOut.Bytes, Warnings: mod.Warnings}

	if len(binOut.Mappings) > 0 {
		smap := sourcemap.Build(binOut.Mappings, cfg.SourceMapBase)
		mapBytes, err := sourcemap.Marshal(smap)
		if err != nil {
			return nil, err
		}
		result.SourceMap = mapBytes
		result.SourceMapURL = mapName
	}

	if opts.WithText {
		textURL := ""
		if result.SourceMap != nil {
			textURL = mapName
		}
		text, err := wasmtext.Render(mod, cfg, textURL)
		if err != nil {
			return nil, err
		}
		result.Text = text
	}

	if jsglue.HasJSImports(mod) {
		glue, err := jsglue.Render(mod)
		if err != nil {
			return nil, err
		}
		result.JSGlue = glue
	}

	return result, nil
}
