// Package j2werr defines the single tagged error type surfaced by every
// component of the compiler (spec.md §7). All failures are fatal to the
// current compilation; there is no local retry.
package j2werr

import "fmt"

// Kind discriminates the five documented failure classes plus the two
// named special cases from §4.1 and §4.5.
type Kind int

const (
	// KindDecodeError is a malformed class file: bad magic, truncated
	// stream, or an inconsistent constant pool.
	KindDecodeError Kind = iota
	// KindCircularConstantPool is raised when constant-pool resolution
	// makes no progress while unresolved slots remain (spec.md §4.1).
	KindCircularConstantPool
	// KindUnsupported is a bytecode, bootstrap factory, or signature
	// feature the core does not implement.
	KindUnsupported
	// KindUnsupportedDynamic is an invokedynamic bootstrap method outside
	// the lambda and string-concat families (spec.md §4.5).
	KindUnsupportedDynamic
	// KindTypeError is an operand-stack type mismatch the translator
	// cannot reconcile.
	KindTypeError
	// KindLinkError is a referenced class, method, or field not found in
	// the inputs or libraries.
	KindLinkError
	// KindEmitError is a bug-class internal invariant failure in an
	// emitter. Always fatal, never expected in a correct compilation.
	KindEmitError
)

func (k Kind) String() string {
	switch k {
	case KindDecodeError:
		return "DecodeError"
	case KindCircularConstantPool:
		return "CircularConstantPool"
	case KindUnsupported:
		return "Unsupported"
	case KindUnsupportedDynamic:
		return "UnsupportedDynamic"
	case KindTypeError:
		return "TypeError"
	case KindLinkError:
		return "LinkError"
	case KindEmitError:
		return "EmitError"
	}
	return "UnknownError"
}

// Error is the single tagged error type every package returns. Line is the
// source line closest to the failure, taken from the method's line-number
// table; it is zero when no line information was available.
type Error struct {
	kind    Kind
	message string
	line    int
	cause   error
}

// New builds an Error with no known source line.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, message: message}
}

// Newf builds an Error from a format string, mirroring fmt.Errorf.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// At attaches a source line to an error built with New or Newf.
func (e *Error) At(line int) *Error {
	e.line = line
	return e
}

// Wrap attaches a cause visible through errors.Unwrap.
func (e *Error) Wrap(cause error) *Error {
	e.cause = cause
	return e
}

// Kind reports which of the documented failure classes produced err.
func (e *Error) Kind() Kind { return e.kind }

// Line returns the closest known source line, or 0 if none was recorded.
func (e *Error) Line() int { return e.line }

func (e *Error) Error() string {
	if e.line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.kind, e.message, e.line)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.message)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, j2werr.New(j2werr.KindLinkError, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}
