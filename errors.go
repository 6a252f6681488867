package scm

import "fmt"

// OutOfMemoryError is returned when the allocator can't free a single
// cell after running a full collection.
type OutOfMemoryError struct {
	Requested string
}

func (e OutOfMemoryError) Error() string {
	return fmt.Sprintf("out of memory allocating %s", e.Requested)
}

// TypeMismatchError is returned when a primitive or the FFI dispatcher
// is handed an operand of the wrong cell type.
type TypeMismatchError struct {
	Op       string
	Expected Type
	Got      Type
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Op, e.Expected, e.Got)
}

// ArityError is returned when a call supplies too few arguments, or a
// dotted argument list reaches a primitive that requires a proper list.
type ArityError struct {
	Op       string
	Expected int
	Got      int
}

func (e ArityError) Error() string {
	return fmt.Sprintf("%s: expected %d argument(s), got %d", e.Op, e.Expected, e.Got)
}

// SyntaxErrorKind enumerates the ways the reader can reject input.
type SyntaxErrorKind int

const (
	SyntaxErrorMismatchedDelimiter SyntaxErrorKind = iota
	SyntaxErrorUnclosedList
	SyntaxErrorTokenTooLong
	SyntaxErrorUnexpectedCharacter
)

func (k SyntaxErrorKind) String() string {
	switch k {
	case SyntaxErrorMismatchedDelimiter:
		return "MismatchedDelimiter"
	case SyntaxErrorUnclosedList:
		return "UnclosedList"
	case SyntaxErrorTokenTooLong:
		return "TokenTooLong"
	default:
		return "UnexpectedCharacter"
	}
}

// SyntaxError is returned by the reader.
type SyntaxError struct {
	Kind    SyntaxErrorKind
	Message string
	Line    int
	Column  int
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("%s @ %d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
}

// UnresolvedLabelError is returned by the encoder when a label has no
// corresponding block at assemble time.
type UnresolvedLabelError struct {
	Label string
}

func (e UnresolvedLabelError) Error() string {
	return fmt.Sprintf("unresolved label %q", e.Label)
}

// RegisterPressureError is returned by the register allocator when no
// interval can be retired or spilled to satisfy a new allocation. This
// is the seam spec.md §9 leaves for a future spill implementation.
type RegisterPressureError struct {
	Version string
}

func (e RegisterPressureError) Error() string {
	return fmt.Sprintf("register pressure: no free register for %s", e.Version)
}

// FfiNoMatchingOverloadError is returned when no registered overload's
// signature matches the actual argument types of an FFI call.
type FfiNoMatchingOverloadError struct {
	Name      string
	Signature string
}

func (e FfiNoMatchingOverloadError) Error() string {
	return fmt.Sprintf("ffi %q: no overload matches signature %s", e.Name, e.Signature)
}

// FfiInvalidConversionError is returned when a return value can't be
// converted back into a cell of the class the prototype promised.
type FfiInvalidConversionError struct {
	Name string
	From string
}

func (e FfiInvalidConversionError) Error() string {
	return fmt.Sprintf("ffi %q: can't convert return value from %s", e.Name, e.From)
}

// UnboundVariableError is returned when `get` or `set` walk the full
// parent chain without finding a binding for a symbol.
type UnboundVariableError struct {
	Name string
}

func (e UnboundVariableError) Error() string {
	return fmt.Sprintf("unbound variable: %s", e.Name)
}

// NotCallableError is returned when eval tries to apply a cell that
// isn't a func, macro, prim, cfunc or ffi.
type NotCallableError struct {
	Got Type
}

func (e NotCallableError) Error() string {
	return fmt.Sprintf("not callable: %s", e.Got)
}

// UserError wraps the argument list passed to the `error` primitive,
// alongside a snapshot of the call-list taken before the evaluator
// resets it (see SPEC_FULL.md §4, "Call-list snapshot on error").
type UserError struct {
	ctx      *Context
	Args     []Cell
	CallList []string
}

func (e UserError) Error() string {
	s := "user error:"
	for _, c := range e.Args {
		s += " " + e.ctx.Write(c)
	}
	return s
}
