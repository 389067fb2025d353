// Package compiler implements the module orchestrator (spec.md §4.7,
// component C7): the prepare/finish two-pass worklist driver that ties
// the decoder, translator, restructurer, and linker together into one
// compiled Module for the text/binary/source-map/JS-glue sinks to render.
//
// It is grounded on the teacher's own top-level orchestration shape
// (wazero's Runtime owning a store, a namespace, and a worklist of
// modules to instantiate) generalized from "link WASM modules together
// at instantiation time" to "link JVM classes together at compile time":
// the same idea of a long-lived registry (wazero's wasm.Store) fed by a
// driver loop that resolves cross-module references on demand is reused
// here for the function/type/string managers and the on-demand classpath
// search.
package compiler

import (
	"fmt"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/control"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/jvmtype"
	"github.com/jacobin-wasm/j2w/internal/link"
	"github.com/jacobin-wasm/j2w/internal/translate"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// methodSource pairs a registered function with the class file and
// method record its body (if any) is translated from.
type methodSource struct {
	cf *classfile.ClassFile
	m  *classfile.Method
}

// Compiler drives one compilation: prepare walks every input class and
// registers its types/functions/imports/exports; finish drains the
// reachable-function worklist, translating and restructuring each body
// (spec.md §4.7).
type Compiler struct {
	cfg       *Config
	classpath *link.Classpath

	funcs   *link.FuncManager
	types   *link.TypeTable
	strings *link.StringPool

	classes map[string]*classfile.ClassFile // primary input set, by this-class name
	merged  map[string]bool                 // classes folded away by @Partial

	vmethods map[string]*link.VMethodTable
	allKeys  map[string][]string

	methodByKey  map[string]*link.FuncEntry   // "class#name+descriptor" -> entry
	methodSrc    map[string]methodSource      // FuncName.String() -> source
	replacements map[string]link.FuncName     // target FuncName.String() -> replacement
	wasmText     map[string]string            // FuncName.String() -> literal body

	classNameStringIdx map[string]uint32

	clinitOrder []link.FuncName

	worklist []link.FuncName
	visited  map[string]bool
	bodies   map[string]*CompiledFunc

	jsImports []JSImport
	warnings  []string

	callSiteBase int

	// Cancel, when set, is polled between worklist entries (spec.md §5:
	// "the orchestrator checks a cancellation flag between methods").
	Cancel func() bool
}

// ErrCancelled is returned by Compile when Cancel reports true between
// methods; it is not one of the five §7 error kinds because cancellation
// is not a compilation failure.
var ErrCancelled = fmt.Errorf("compiler: compilation cancelled")

// NewCompiler builds an orchestrator over the given configuration and
// classpath (nil classpath disables on-demand library loading).
func NewCompiler(cfg *Config, classpath *link.Classpath) *Compiler {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Compiler{
		cfg:                cfg,
		classpath:          classpath,
		funcs:              link.NewFuncManager(),
		types:              link.NewTypeTable(),
		strings:            link.NewStringPool(),
		classes:            make(map[string]*classfile.ClassFile),
		merged:             make(map[string]bool),
		vmethods:           make(map[string]*link.VMethodTable),
		allKeys:            make(map[string][]string),
		methodByKey:        make(map[string]*link.FuncEntry),
		methodSrc:          make(map[string]methodSource),
		replacements:       make(map[string]link.FuncName),
		wasmText:           make(map[string]string),
		classNameStringIdx: make(map[string]uint32),
		visited:            make(map[string]bool),
		bodies:             make(map[string]*CompiledFunc),
	}
}

// Config returns the orchestrator's configuration, for the downstream
// sinks (text/binary/source-map) that read DebugNames/SourceMapBase/
// WasmUseGC off the same Compiler that produced their Module.
func (c *Compiler) Config() *Config { return c.cfg }

// Compile runs the full prepare/finish cycle over the given primary input
// classes and returns the finalized Module. When cfg.ProfileCPU names a
// path, the finish pass (the part of compilation whose cost scales with
// the size of the reachable call graph) runs under a pprof CPU profile
// written there.
func (c *Compiler) Compile(inputs []*classfile.ClassFile) (*Module, error) {
	c.registerRuntimeHelpers()

	if err := c.prepare(inputs); err != nil {
		return nil, err
	}

	if c.cfg.ProfileCPU != "" {
		f, err := os.Create(c.cfg.ProfileCPU)
		if err != nil {
			return nil, j2werr.Newf(j2werr.KindLinkError, "cannot create CPU profile %q: %v", c.cfg.ProfileCPU, err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return nil, err
		}
		defer pprof.StopCPUProfile()
	}

	if err := c.finish(); err != nil {
		return nil, err
	}
	return c.build(), nil
}

// prepare walks every input class, merges @Partial classes into their
// targets, registers types/fields/vtables/functions, and seeds the
// worklist with every exported and start-marked (<clinit>) method; an
// @Replace method is recorded as its target's substitute, not seeded
// (spec.md §4.7).
func (c *Compiler) prepare(inputs []*classfile.ClassFile) error {
	for _, cf := range inputs {
		c.classes[cf.ThisClass] = cf
	}
	for _, cf := range inputs {
		if cf.Partial == "" {
			continue
		}
		target, err := c.findClass(cf.Partial)
		if err != nil {
			return err
		}
		classfile.Merge(target, cf)
		c.merged[cf.ThisClass] = true
	}

	for _, cf := range inputs {
		if c.merged[cf.ThisClass] {
			continue
		}
		if _, err := c.ensureClass(cf.ThisClass); err != nil {
			return err
		}
	}
	return nil
}

// findClass resolves a binary class name against the primary input set
// first, then the classpath (spec.md §4.7: "when a referenced class is
// not present in the primary input, the orchestrator searches each
// registered library path in order").
func (c *Compiler) findClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := c.classes[name]; ok {
		return cf, nil
	}
	if c.classpath == nil {
		return nil, j2werr.Newf(j2werr.KindLinkError, "class %q not found in inputs and no classpath configured", name)
	}
	cf, err := c.classpath.Find(name)
	if err != nil {
		return nil, err
	}
	if cf == nil {
		return nil, j2werr.Newf(j2werr.KindLinkError, "class %q not found in inputs or classpath", name)
	}
	c.classes[name] = cf
	return cf, nil
}

// ensureClass registers name's type (recursing into its super and
// interfaces first, since link.TypeTable.Register requires them already
// present) and, the first time through, its fields, vtable, and methods.
// Idempotent: a class already registered returns immediately.
func (c *Compiler) ensureClass(name string) (*link.ClassInfo, error) {
	if info := c.types.Lookup(name); info != nil {
		return info, nil
	}

	cf, err := c.findClass(name)
	if err != nil {
		return nil, err
	}

	var superVMT *link.VMethodTable
	var superKeys []string
	if cf.SuperClass != "" {
		if _, err := c.ensureClass(cf.SuperClass); err != nil {
			return nil, err
		}
		superVMT = c.vmethods[cf.SuperClass]
		superKeys = c.allKeys[cf.SuperClass]
	}
	for _, iface := range cf.Interfaces {
		if _, err := c.ensureClass(iface); err != nil {
			return nil, err
		}
	}

	ownFields, err := instanceFields(cf)
	if err != nil {
		return nil, err
	}
	info, err := c.types.Register(cf.ThisClass, link.KindNormal, cf.SuperClass, cf.Interfaces, ownFields)
	if err != nil {
		return nil, err
	}

	vmt, keys := buildVMethodTable(cf, superVMT, superKeys)
	c.vmethods[cf.ThisClass] = vmt
	c.allKeys[cf.ThisClass] = keys

	c.classNameStringIdx[cf.ThisClass] = c.strings.Intern(cf.ThisClass)

	if err := c.registerMethods(cf); err != nil {
		return nil, err
	}
	return info, nil
}

// instanceFields computes the struct field layout contribution of cf's
// own (non-static) fields (spec.md §4.2: static fields become globals,
// never struct fields).
func instanceFields(cf *classfile.ClassFile) ([]wasmtype.StructField, error) {
	var fields []wasmtype.StructField
	for _, f := range cf.Fields {
		if f.IsStatic() {
			continue
		}
		t, err := jvmtype.ParseFieldType(f.Descriptor)
		if err != nil {
			return nil, err
		}
		fields = append(fields, wasmtype.StructField{Name: f.Name, Type: wasmtype.LowerKind(t.Kind), Mutable: true})
	}
	return fields, nil
}

// registerMethods registers a FuncEntry for every method of cf, applying
// @Import/@Export/@WasmTextCode/@Replace, and seeds the worklist with
// every export and <clinit>; a replacement is only recorded in
// c.replacements (spec.md §4.7/§6).
func (c *Compiler) registerMethods(cf *classfile.ClassFile) error {
	for _, m := range cf.Methods {
		params, result, err := jvmtype.ParseMethodSignature(m.Descriptor)
		if err != nil {
			return err
		}
		sig := wasmtype.LowerSignature(params, result, m.IsStatic())
		fn := link.FuncName{Class: cf.ThisClass, Method: m.Name, Descriptor: m.Descriptor}

		kind := link.FuncCode
		if m.IsAbstract() {
			kind = link.FuncAbstract
		}
		entry := c.funcs.Register(fn, sig, kind)
		c.methodByKey[cf.ThisClass+"#"+vmethodKey(m)] = entry
		c.methodSrc[fn.String()] = methodSource{cf: cf, m: m}

		annotations, err := classfile.DecodeAnnotations(m.Attributes, cf.ConstantPool)
		if err != nil {
			return err
		}

		if imp, ok := readImport(annotations); ok {
			if err := c.funcs.SetImport(fn, imp.module, imp.name); err != nil {
				return err
			}
			if imp.hasJS {
				c.jsImports = append(c.jsImports, JSImport{Module: imp.module, Name: imp.name, Body: imp.js})
			}
			continue // an import's body, if any, is never translated
		}
		if exportName, ok := readExport(annotations); ok {
			if err := c.funcs.SetExport(fn, exportName); err != nil {
				return err
			}
			c.enqueue(fn)
		}
		if text, ok := readWasmTextCode(annotations); ok {
			c.wasmText[fn.String()] = text
		}
		if target, ok := readReplace(annotations); ok {
			c.replacements[target] = fn
		}
		if m.IsClinit() {
			// always runs; never exported, never a @Replace target.
			c.clinitOrder = append(c.clinitOrder, fn)
			c.enqueue(fn)
		}
	}
	return nil
}

func (c *Compiler) enqueue(fn link.FuncName) {
	if c.visited[fn.String()] {
		return
	}
	c.worklist = append(c.worklist, fn)
}

// finish repeatedly pops a function from the worklist, translates and
// restructures it, and forwards every function or virtual slot its body
// references as a new worklist entry (spec.md §4.7).
func (c *Compiler) finish() error {
	for len(c.worklist) > 0 {
		if c.Cancel != nil && c.Cancel() {
			return ErrCancelled
		}
		fn := c.worklist[0]
		c.worklist = c.worklist[1:]
		key := fn.String()
		if c.visited[key] {
			continue
		}
		c.visited[key] = true

		if err := c.compileOne(fn); err != nil {
			return err
		}
	}
	if len(c.clinitOrder) > 0 {
		if err := c.synthesizeStart(); err != nil {
			return err
		}
	}
	return nil
}

// compileOne lowers fn's body, if it has one, into a CompiledFunc and
// queues every function and virtual slot it references.
func (c *Compiler) compileOne(fn link.FuncName) error {
	entry := c.funcs.Lookup(fn)
	if entry == nil || entry.Kind == link.FuncImported {
		return nil // an import's declaration needs no body
	}

	effectiveName := fn
	if replacement, ok := c.replacements[fn.String()]; ok {
		effectiveName = replacement
	}
	src, ok := c.methodSrc[effectiveName.String()]
	if !ok && c.wasmText[effectiveName.String()] == "" {
		return j2werr.Newf(j2werr.KindLinkError, "no method body registered for %s", effectiveName)
	}
	if text, ok := c.wasmText[effectiveName.String()]; ok {
		sourceFile := ""
		if src.cf != nil {
			sourceFile = src.cf.SourceFile
		}
		c.bodies[fn.String()] = &CompiledFunc{Name: fn, WasmText: text, SourceFile: sourceFile}
		return nil
	}
	if src.m.HasNoBody() {
		return nil // abstract/native: declaration only
	}

	code, err := classfile.DecodeCode(src.m.Attributes, src.cf.ConstantPool)
	if err != nil {
		return err
	}
	if code == nil {
		return j2werr.Newf(j2werr.KindDecodeError, "method %s has no Code attribute", effectiveName)
	}

	ctx := &translate.Context{
		CP: src.cf.ConstantPool, Funcs: c.funcs, Types: c.types, Strings: c.strings,
		CallSiteBase: c.callSiteBase,
		Static:       src.m.IsStatic(), Descriptor: src.m.Descriptor,
	}
	result, err := translate.Translate(code, code.LineNumbers, ctx)
	if err != nil {
		return err
	}
	c.callSiteBase += len(result.DynamicSites)

	if err := c.resolveDynamicSites(src.cf, result); err != nil {
		return err
	}
	c.queueDirectCalls(result.Instructions)
	c.queueVirtualTargets(result.Instructions)
	c.resolveVirtualSlots(result.Instructions)

	restructured, err := control.Restructure(result.Instructions, result.ExceptionTable)
	if err != nil {
		return err
	}
	c.bodies[fn.String()] = &CompiledFunc{Name: fn, Locals: result.Locals.Types(), Instructions: restructured, SourceFile: src.cf.SourceFile}
	return nil
}

// resolveDynamicSites synthesizes the lambda struct or string-concat
// function for each invokedynamic call site the translator recorded, and
// rewrites the corresponding OpCall instruction's CallFunc placeholder to
// point at the resolved target (spec.md §4.5).
//
// A lambda site's captured operands are already sitting on the runtime
// stack, left there by whatever instructions the translator emitted to
// compute them (popArgs only pops the translator's own abstract
// type-stack model; it never touches the instruction stream). Replacing
// the single placeholder OpCall with buildLambdaCapture's sequence drains
// those live values into scratch locals and struct.sets them into the
// freshly allocated closure, so this works regardless of how many
// instructions produced each captured value.
func (c *Compiler) resolveDynamicSites(cf *classfile.ClassFile, result *translate.Result) error {
	for dynOrdinal, site := range result.DynamicSites {
		if site.BootstrapIndex < 0 || site.BootstrapIndex >= len(cf.Bootstrap) {
			return j2werr.Newf(j2werr.KindLinkError, "invokedynamic site references out-of-range bootstrap method %d", site.BootstrapIndex)
		}
		bsm := cf.Bootstrap[site.BootstrapIndex]
		callSiteIndex := c.callSiteBase - len(result.DynamicSites) + dynOrdinal // the number translate gave this site's placeholder; unique across the compilation
		lambda, concat, err := link.SynthesizeDynamic(bsm, site.Name, site.Desc, c.types, c.funcs, callSiteIndex)
		if err != nil {
			return err
		}
		idx := findCallFunc(result.Instructions, site.CallFunc)
		if idx < 0 {
			continue
		}
		switch {
		case lambda != nil:
			capture := c.buildLambdaCapture(lambda, result.Locals, dynOrdinal)
			result.Instructions = spliceInstruction(result.Instructions, idx, capture)
			c.enqueue(lambda.ImplFunc)
		case concat != nil:
			entry := c.funcs.Lookup(concat.Func)
			if entry != nil && entry.Kind != link.FuncImported {
				if err := c.funcs.SetImport(concat.Func, link.ConcatJSModule, concat.Func.Method); err != nil {
					return err
				}
				c.jsImports = append(c.jsImports, JSImport{Module: link.ConcatJSModule, Name: concat.Func.Method, Body: concat.JSBody})
			}
			result.Instructions[idx].CallFunc = concat.Func.String()
			if entry != nil {
				result.Instructions[idx].CallTypeID = entry.TypeID
			}
		}
	}
	return nil
}

// buildLambdaCapture returns the instruction sequence replacing a lambda
// invokedynamic call site: drain each captured operand already on the
// stack into a scratch local, default-construct the closure struct, then
// struct.set every captured field from its scratch local — the same
// default-construct-then-field-set idiom C3 already uses for ordinary
// object construction (spec.md §4.2/§4.5). Declared fields start at
// struct slot 2 (slots 0/1 are always the hidden vtable-pointer and
// class-index header, wasmtype.StructType.VtableSlotField/ClassIndexField).
func (c *Compiler) buildLambdaCapture(lambda *link.LambdaSite, locals *translate.LocalAllocator, dynOrdinal int) []translate.Instruction {
	n := len(lambda.Captured)
	scratch := make([]uint32, n)
	types := make([]wasmtype.ValueType, n)
	for i, p := range lambda.Captured {
		types[i] = wasmtype.LowerKind(p.Kind)
		scratch[i] = locals.Get(scratchSlot(dynOrdinal, i), types[i])
	}
	refLocal := locals.Get(scratchSlot(dynOrdinal, n), wasmtype.StructRef)

	out := make([]translate.Instruction, 0, 2*n+3)
	for i := n - 1; i >= 0; i-- {
		out = append(out, translate.Instruction{Op: translate.OpLocalSet, Type: types[i], LocalIdx: scratch[i]})
	}
	out = append(out, translate.Instruction{
		Op: translate.OpStruct, StructOp: "new_default", StructClass: lambda.StructType.Index,
	})
	out = append(out, translate.Instruction{Op: translate.OpLocalSet, Type: wasmtype.StructRef, LocalIdx: refLocal})
	for i := 0; i < n; i++ {
		out = append(out, translate.Instruction{Op: translate.OpLocalGet, Type: wasmtype.StructRef, LocalIdx: refLocal})
		out = append(out, translate.Instruction{Op: translate.OpLocalGet, Type: types[i], LocalIdx: scratch[i]})
		out = append(out, translate.Instruction{
			Op: translate.OpStruct, StructOp: "set", StructClass: lambda.StructType.Index, StructField: 2 + i,
		})
	}
	out = append(out, translate.Instruction{Op: translate.OpLocalGet, Type: wasmtype.StructRef, LocalIdx: refLocal})
	return out
}

// scratchSlot derives a synthetic JVM-local slot number for a lambda
// capture's scratch WASM local: real JVM local slots are always >= 0, so
// negative slots can never collide with them, and keying additionally on
// dynOrdinal (this method's invokedynamic site's position in encounter
// order) keeps every call site's scratch locals disjoint from every
// other's.
func scratchSlot(dynOrdinal, i int) int {
	return -(dynOrdinal*64 + i + 1)
}

// spliceInstruction replaces the single instruction at idx with
// replacement, preserving everything before and after.
func spliceInstruction(instrs []translate.Instruction, idx int, replacement []translate.Instruction) []translate.Instruction {
	out := make([]translate.Instruction, 0, len(instrs)-1+len(replacement))
	out = append(out, instrs[:idx]...)
	out = append(out, replacement...)
	out = append(out, instrs[idx+1:]...)
	return out
}

func findCallFunc(instrs []translate.Instruction, callFunc string) int {
	for i, in := range instrs {
		if in.Op == translate.OpCall && in.CallFunc == callFunc {
			return i
		}
	}
	return -1
}

// queueDirectCalls forwards every direct call target (invokestatic,
// invokespecial, synthesized concat) that is not itself a dynamic-site
// placeholder onto the worklist.
func (c *Compiler) queueDirectCalls(instrs []translate.Instruction) {
	for _, in := range instrs {
		if in.Op != translate.OpCall || in.CallFunc == "" {
			continue
		}
		if fn, ok := parseFuncName(in.CallFunc); ok {
			c.enqueue(fn)
		}
	}
}

// queueVirtualTargets forwards every concrete override reachable through
// an invokevirtual/invokeinterface call-indirect site: every registered
// class that is a subtype of the call's static receiver type, per
// spec.md §4.7's "forwards ... each referenced ... virtual slot as a new
// worklist entry".
func (c *Compiler) queueVirtualTargets(instrs []translate.Instruction) {
	for _, in := range instrs {
		if in.Op != translate.OpCallIndirect {
			continue
		}
		fn, ok := parseFuncName(in.CallFunc)
		if !ok {
			continue
		}
		key := fn.Method + fn.Descriptor
		receiver := c.types.Get(in.StructClass)
		if receiver == nil {
			continue
		}
		for i := 0; i < c.types.Len(); i++ {
			sub := c.types.Get(uint32(i))
			if !sub.IsSubtypeOf(receiver) {
				continue
			}
			if target := c.resolveVirtualTarget(sub.Name, key); target != nil {
				c.enqueue(target.Name)
			}
		}
	}
}

// resolveVirtualSlots fills in each OpCallIndirect's StructField with the
// statically known vtable slot for its (receiver class, method key) pair,
// reusing the field C9 needs at runtime: the slot number is identical
// across every subtype by construction (buildVMethodTable never moves an
// inherited slot), so the emitter only needs one integer baked in at
// compile time, never the receiver's full VMethodTable.
func (c *Compiler) resolveVirtualSlots(instrs []translate.Instruction) {
	for i, in := range instrs {
		if in.Op != translate.OpCallIndirect {
			continue
		}
		fn, ok := parseFuncName(in.CallFunc)
		if !ok {
			continue
		}
		receiver := c.types.Get(in.StructClass)
		if receiver == nil {
			continue
		}
		vmt, ok := c.vmethods[receiver.Name]
		if !ok {
			continue
		}
		if slot, ok := vmt.SlotOf(fn.Method + fn.Descriptor); ok {
			instrs[i].StructField = slot
		}
	}
}

// parseFuncName reconstructs a FuncName from a link.FuncName.String()
// value ("Class#Method(Descriptor)…"); JVM method names never contain
// '(', so the first '(' in the part after '#' always starts the
// descriptor.
func parseFuncName(s string) (link.FuncName, bool) {
	hashIdx := strings.IndexByte(s, '#')
	if hashIdx < 0 {
		return link.FuncName{}, false
	}
	class := s[:hashIdx]
	rest := s[hashIdx+1:]
	parenIdx := strings.IndexByte(rest, '(')
	if parenIdx < 0 {
		return link.FuncName{}, false
	}
	return link.FuncName{Class: class, Method: rest[:parenIdx], Descriptor: rest[parenIdx:]}, true
}

// synthesizeStart registers and lowers the module's start function: a
// straight-line sequence of calls to every reachable class's <clinit>, in
// class-registration order (spec.md §2: "marking entry points ...  the
// synthetic start method").
func (c *Compiler) synthesizeStart() error {
	startName := link.FuncName{Class: "", Method: "$start", Descriptor: "()V"}
	c.funcs.Register(startName, wasmtype.FuncSig{}, link.FuncStart)

	var instrs []translate.Instruction
	for _, clinit := range c.clinitOrder {
		target := c.funcs.Lookup(clinit)
		if target == nil {
			continue
		}
		instrs = append(instrs, translate.Instruction{Op: translate.OpCall, CallFunc: clinit.String(), CallTypeID: target.TypeID})
	}
	instrs = append(instrs, translate.Instruction{Op: translate.OpReturn})

	restructured, err := control.Restructure(instrs, nil)
	if err != nil {
		return err
	}
	c.bodies[startName.String()] = &CompiledFunc{Name: startName, Instructions: restructured}
	return nil
}

// patchNewDefaultHeaders splices a field-set sequence after every
// struct.new_default, writing the two hidden header slots §4.2 reserves
// ($vtable, $class_index) that struct.new_default's own zero-initialization
// never fills in. Both values — classIdx is already on the instruction,
// the vtable's byte offset only exists once data is final — are only
// knowable together at this late a stage, so the splice happens here
// rather than where new_default is first emitted (translate's newObject,
// buildLambdaCapture): the same default-construct-then-field-set idiom
// buildLambdaCapture already uses for captured fields, one reusable
// scratch local per function rather than per site, since sites never
// nest.
func (c *Compiler) patchNewDefaultHeaders(data *link.DataLayout) {
	for _, body := range c.bodies {
		if len(body.Instructions) == 0 {
			continue
		}
		var scratch uint32
		haveScratch := false
		for i := 0; i < len(body.Instructions); i++ {
			in := body.Instructions[i]
			if in.Op != translate.OpStruct || in.StructOp != "new_default" {
				continue
			}
			if !haveScratch {
				scratch = uint32(len(body.Locals))
				body.Locals = append(body.Locals, wasmtype.StructRef)
				haveScratch = true
			}
			classIdx := in.StructClass
			vtableOffset := uint32(0)
			if int(classIdx) < len(data.VtableOffsetOf) {
				vtableOffset = data.VtableOffsetOf[classIdx]
			}
			replacement := []translate.Instruction{
				in,
				{Op: translate.OpLocalSet, Type: wasmtype.StructRef, LocalIdx: scratch},
				{Op: translate.OpLocalGet, Type: wasmtype.StructRef, LocalIdx: scratch},
				{Op: translate.OpConst, Type: wasmtype.I32, Const: translate.ConstValue{I32: int32(vtableOffset)}},
				{Op: translate.OpStruct, Type: wasmtype.I32, StructOp: "set", StructClass: classIdx, StructField: 0},
				{Op: translate.OpLocalGet, Type: wasmtype.StructRef, LocalIdx: scratch},
				{Op: translate.OpConst, Type: wasmtype.I32, Const: translate.ConstValue{I32: int32(classIdx)}},
				{Op: translate.OpStruct, Type: wasmtype.I32, StructOp: "set", StructClass: classIdx, StructField: 1},
				{Op: translate.OpLocalGet, Type: wasmtype.StructRef, LocalIdx: scratch},
			}
			body.Instructions = spliceInstruction(body.Instructions, i, replacement)
			i += len(replacement) - 1
		}
	}
}

// build finalizes the string/type tables and data segment and assembles
// the Module the emitters consume (spec.md §4.7's last paragraph).
//
// Vtable.TypeNameOffset must point into the string region, but
// link.BuildDataLayout lays the vtable region out before the string
// region, so the offset is unknowable in a single pass: a first, sizing
// pass builds the vtables with placeholder zero offsets purely to learn
// DataLayout.StringOffsetOf, then a second pass rebuilds them with the
// real offsets for the layout actually shipped.
func (c *Compiler) build() *Module {
	sizing := link.BuildDataLayout(c.buildVtables(nil), c.strings)
	data := link.BuildDataLayout(c.buildVtables(sizing.StringOffsetOf), c.strings)
	c.patchNewDefaultHeaders(data)

	startKey := ""
	if len(c.clinitOrder) > 0 {
		startKey = (link.FuncName{Class: "", Method: "$start", Descriptor: "()V"}).String()
	}

	return &Module{
		Funcs:     c.funcs,
		Types:     c.types,
		Strings:   c.strings,
		Data:      data,
		Bodies:    c.bodies,
		StartFunc: startKey,
		WasmIndex: c.funcs.WasmIndexTable(),
		JSImports: c.jsImports,
		Warnings:  append(append([]string{}, c.warnings...), c.classpathWarnings()...),
	}
}

func (c *Compiler) classpathWarnings() []string {
	if c.classpath == nil {
		return nil
	}
	return c.classpath.Warnings
}
