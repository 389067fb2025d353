package compiler

// Config controls orchestrator behavior (spec.md §6: "a configuration map
// with the following recognized keys"). The teacher's own top-level
// configuration (wazero.RuntimeConfig) is an immutable fluent WithX/clone
// builder chain, built up in Go source by the embedder. That shape doesn't
// fit here: this module's configuration arrives as a flat key/value map
// handed across the external interface boundary (a CLI flag set, a JSON
// request body, …), not assembled in Go by the caller, so a plain struct
// populated by FromMap matches the documented contract more directly than
// a chain of WithX calls would — see DESIGN.md.
type Config struct {
	// DebugNames emits field, local, and type names in debug form
	// (default false).
	DebugNames bool
	// SourceMapBase is prepended to every source-file name in the
	// source map (default "").
	SourceMapBase string
	// WasmUseGC lowers allocations to the WebAssembly GC proposal
	// instead of host-imported allocator calls (default false).
	WasmUseGC bool
	// WasmUseEH is accepted and stored (default false), but no stage reads
	// it: try/catch/throw/rethrow always lower through the §4.4
	// degradation, and no exception-handling proposal instruction is
	// emitted.
	WasmUseEH bool
	// ProfileCPU, when non-empty, names a writable path the finish pass
	// writes a pprof CPU profile to.
	ProfileCPU string
}

// NewConfig returns the documented defaults: every feature flag off, an
// empty source-map base.
func NewConfig() *Config {
	return &Config{}
}

// FromMap builds a Config from the recognized keys of a configuration
// map, ignoring keys it does not recognize and leaving any key it does
// not find at its documented default.
func FromMap(m map[string]interface{}) *Config {
	c := NewConfig()
	if v, ok := m["debug-names"].(bool); ok {
		c.DebugNames = v
	}
	if v, ok := m["source-map-base"].(string); ok {
		c.SourceMapBase = v
	}
	if v, ok := m["wasm-use-gc"].(bool); ok {
		c.WasmUseGC = v
	}
	if v, ok := m["wasm-use-eh"].(bool); ok {
		c.WasmUseEH = v
	}
	if v, ok := m["profile-cpu"].(string); ok {
		c.ProfileCPU = v
	}
	return c
}
