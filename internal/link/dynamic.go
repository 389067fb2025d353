package link

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jacobin-wasm/j2w/internal/classfile"
	"github.com/jacobin-wasm/j2w/internal/j2werr"
	"github.com/jacobin-wasm/j2w/internal/jvmtype"
	"github.com/jacobin-wasm/j2w/internal/wasmtype"
)

// ConcatJSModule is the synthetic import module every string-concat site
// is bound to, distinct from any class-declared @Import module name so it
// can never collide with a user import (spec.md section 4.11's JS glue
// sink renders it exactly like any other imported module).
const ConcatJSModule = "j2w/concat"

// concatArgPlaceholder is java.lang.invoke.StringConcatFactory's recipe
// marker for "substitute the next argument here".
const concatArgPlaceholder = '\u0001'

// concatConstPlaceholder marks a bootstrap-constant recipe argument; no
// test program exercising this repo's invokedynamic coverage needs it, and
// supporting it would require threading the bootstrap's extra constant
// arguments through to the JS body, so sites using it fail explicitly
// rather than silently mis-rendering.
const concatConstPlaceholder = '\u0002'

const (
	lambdaMetafactoryClass = "java/lang/invoke/LambdaMetafactory"
	stringConcatClass      = "java/lang/invoke/StringConcatFactory"
)

// LambdaSite is the synthesized result of lowering one invokedynamic call
// site targeting the lambda meta-factory (spec.md §4.5 item 1/2).
type LambdaSite struct {
	StructType *ClassInfo
	// ImplFunc is the implementation method named by the bootstrap method
	// handle; the compiler queues it for compilation. StructType has no
	// vtable slot bound to it.
	ImplFunc FuncName
	// Captured holds, in call-site-argument order, the JVM types of the
	// variables captured into the synthesized struct's fields.
	Captured []*jvmtype.Type
}

// ConcatSite is the synthesized result of lowering one invokedynamic call
// site targeting the string-concat meta-factory. There is no runtime
// string-builder object anywhere in this system's WASM-side type model
// (a JVM string is, at most, a compile-time index into the interned
// string table, see internal/link/stringpool.go): a synthesized concat
// function is therefore never given a WASM body. Instead it is
// registered as an import bound to ConcatJSModule, and JSBody holds the
// literal JS arrow-function expression computed once, here, from the
// bootstrap recipe (spec.md section 4.11's JS glue sink renders it
// exactly like a user-declared @Import(..., js=...)).
type ConcatSite struct {
	Func FuncName
	// Recipe is the literal/argument interleaving string; concatArgPlaceholder
	// marks an argument position, per
	// java.lang.invoke.StringConcatFactory's documented recipe grammar.
	Recipe string
	// JSBody is the generated "(a0,a1,...)=>(...)" glue expression.
	JSBody string
}

// classifyFactory reports which known meta-factory family bsm.Handle names,
// or returns UnsupportedDynamic per spec.md §4.5: "All other bootstrap
// factories fail with UnsupportedDynamic."
func classifyFactory(bsm classfile.BootstrapMethod) (string, error) {
	switch bsm.Handle.ClassName {
	case lambdaMetafactoryClass:
		if bsm.Handle.Name == "metafactory" || bsm.Handle.Name == "altMetafactory" {
			return "lambda", nil
		}
	case stringConcatClass:
		if bsm.Handle.Name == "makeConcatWithConstants" || bsm.Handle.Name == "makeConcat" {
			return "concat", nil
		}
	}
	return "", j2werr.Newf(j2werr.KindUnsupportedDynamic, "unsupported invokedynamic bootstrap %s#%s", bsm.Handle.ClassName, bsm.Handle.Name)
}

// SynthesizeDynamic dispatches an invokedynamic call site (identified by
// its resolved bootstrap method and the call site's own name+descriptor,
// i.e. the SAM/concat signature) to the lambda or string-concat synthesis
// routine.
func SynthesizeDynamic(bsm classfile.BootstrapMethod, siteName, siteDesc string, tt *TypeTable, fm *FuncManager, callSiteIndex int) (*LambdaSite, *ConcatSite, error) {
	kind, err := classifyFactory(bsm)
	if err != nil {
		return nil, nil, err
	}
	switch kind {
	case "lambda":
		site, err := synthesizeLambda(bsm, siteName, siteDesc, tt, fm, callSiteIndex)
		return site, nil, err
	case "concat":
		site, err := synthesizeConcat(bsm, siteDesc, fm, callSiteIndex)
		return nil, site, err
	}
	panic("unreachable")
}

// synthesizeLambda implements spec.md §4.5's lambda metafactory lowering:
// a fresh struct type whose fields are the captured variables, registered
// with no superclass and no virtual methods. The implementation referenced
// by the bootstrap handle's method-handle argument is returned as
// ImplFunc; no vtable entry of the struct points at it.
func synthesizeLambda(bsm classfile.BootstrapMethod, siteName, siteDesc string, tt *TypeTable, fm *FuncManager, callSiteIndex int) (*LambdaSite, error) {
	params, _, err := jvmtype.ParseMethodSignature(siteDesc)
	if err != nil {
		return nil, err
	}

	var implHandle *classfile.Entry
	for i := range bsm.Args {
		if bsm.Args[i].Tag == classfile.TagMethodHandle {
			implHandle = &bsm.Args[i]
			break
		}
	}
	if implHandle == nil {
		return nil, j2werr.New(j2werr.KindUnsupportedDynamic, "lambda metafactory bootstrap carries no implementation method handle")
	}

	implFunc := FuncName{Class: implHandle.RefClassName, Method: implHandle.RefMemberName, Descriptor: implHandle.RefMemberDesc}

	fields := make([]wasmtype.StructField, len(params))
	for i, p := range params {
		fields[i] = wasmtype.StructField{Name: fmt.Sprintf("$captured%d", i), Type: wasmtype.LowerKind(p.Kind)}
	}

	structName := fmt.Sprintf("$lambda$%s$%d", siteName, callSiteIndex)
	info, err := tt.Register(structName, KindLambda, "", nil, fields)
	if err != nil {
		return nil, err
	}

	return &LambdaSite{StructType: info, ImplFunc: implFunc, Captured: params}, nil
}

// synthesizeConcat implements the string-concat meta-factory lowering.
// Since no runtime string-builder type exists anywhere in this system
// (see ConcatSite's doc comment), the synthesized function is bound to a
// host import rather than given a translated body: concatJSBody renders
// the recipe's literal fragments and argument placeholders into a single
// JS expression at compile time, when the recipe is fully known, so no
// runtime recipe interpretation is ever needed.
func synthesizeConcat(bsm classfile.BootstrapMethod, siteDesc string, fm *FuncManager, callSiteIndex int) (*ConcatSite, error) {
	var recipe string
	for _, arg := range bsm.Args {
		if arg.Tag == classfile.TagString {
			recipe = arg.Name
			break
		}
	}
	if recipe == "" {
		return nil, j2werr.New(j2werr.KindUnsupportedDynamic, "string-concat bootstrap carries no recipe string argument")
	}
	if strings.ContainsRune(recipe, concatConstPlaceholder) {
		return nil, j2werr.New(j2werr.KindUnsupportedDynamic, "string-concat recipe constant arguments are not supported")
	}

	params, result, err := jvmtype.ParseMethodSignature(siteDesc)
	if err != nil {
		return nil, err
	}
	sig := wasmtype.LowerSignature(params, result, true)
	name := FuncName{Class: "$concat", Method: fmt.Sprintf("concat%d", callSiteIndex), Descriptor: siteDesc}
	fm.Register(name, sig, FuncCode)

	return &ConcatSite{Func: name, Recipe: recipe, JSBody: concatJSBody(recipe, len(params))}, nil
}

// concatJSBody renders recipe's literal fragments and concatArgPlaceholder
// occurrences into a JS arrow function "(a0,a1,...)=>(lit0+String(a0)+...)".
// nargs must equal the number of placeholders recipe actually contains
// (guaranteed by the call site's own descriptor, since javac always emits
// one placeholder per dynamic argument).
func concatJSBody(recipe string, nargs int) string {
	segments := strings.Split(recipe, string(concatArgPlaceholder))
	var parts []string
	for i, seg := range segments {
		if seg != "" {
			parts = append(parts, strconv.Quote(seg))
		}
		if i < nargs {
			parts = append(parts, fmt.Sprintf("String(a%d)", i))
		}
	}
	if len(parts) == 0 {
		parts = []string{`""`}
	}
	params := make([]string, nargs)
	for i := range params {
		params[i] = fmt.Sprintf("a%d", i)
	}
	return fmt.Sprintf("(%s)=>(%s)", strings.Join(params, ","), strings.Join(parts, "+"))
}
