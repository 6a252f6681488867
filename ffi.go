package scm

import "fmt"

// ffiTypeClass mirrors original_source's `ffi_type_map_t` (s_types),
// reduced to the four classes spec.md names for the FFI call path:
// int, float, ptr and list (SPEC_FULL.md §4).
type ffiTypeClass int

const (
	ffiClassInt ffiTypeClass = iota
	ffiClassFloat
	ffiClassPtr
	ffiClassList
)

func (c ffiTypeClass) String() string {
	return [...]string{"int", "float", "ptr", "list"}[c]
}

func classOf(t Type) ffiTypeClass {
	switch t {
	case TypeFixnum:
		return ffiClassInt
	case TypeFlonum:
		return ffiClassFloat
	case TypePtr:
		return ffiClassPtr
	default:
		return ffiClassList
	}
}

// ffiOverload is one registered signature of a named FFI function.
type ffiOverload struct {
	sig  []ffiTypeClass
	ret  ffiTypeClass
	call CFunc
}

// ffiRegistry resolves an FFI call to the overload whose signature
// matches the actual argument types (spec.md §4.5, "FFI overload
// dispatch by type-width signature").
type ffiRegistry struct {
	overloads map[string][]ffiOverload
}

func newFFIRegistry() *ffiRegistry {
	return &ffiRegistry{overloads: map[string][]ffiOverload{}}
}

// RegisterFFI adds an overload for `name` with the given argument
// signature and return class, backed by a Go CFunc — this port's
// stand-in for original_source's libffi call boundary (SPEC_FULL.md §4).
func (ctx *Context) RegisterFFI(name string, sig []ffiTypeClass, ret ffiTypeClass, fn CFunc) Cell {
	ctx.ffi.overloads[name] = append(ctx.ffi.overloads[name], ffiOverload{sig: sig, ret: ret, call: fn})
	idx := int32(len(ctx.nativePtrs))
	ctx.nativePtrs = append(ctx.nativePtrs, name)
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeFFI
	ctx.cell(c).value = idx
	return c
}

func (ctx *Context) callFFI(c Cell, args []Cell) (Cell, error) {
	name := ctx.nativePtrs[ctx.cell(c).value].(string)
	overloads := ctx.ffi.overloads[name]

	sig := make([]ffiTypeClass, len(args))
	for i, a := range args {
		sig[i] = classOf(ctx.Type(a))
	}

	for _, ov := range overloads {
		if sigMatches(ov.sig, sig) {
			ret, err := ov.call(ctx, args)
			if err != nil {
				return Cell{}, FfiInvalidConversionError{Name: name, From: err.Error()}
			}
			if classOf(ctx.Type(ret)) != ov.ret {
				return Cell{}, FfiInvalidConversionError{Name: name, From: ctx.Type(ret).String()}
			}
			return ret, nil
		}
	}
	return Cell{}, FfiNoMatchingOverloadError{Name: name, Signature: signatureString(sig)}
}

func sigMatches(want, got []ffiTypeClass) bool {
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

func signatureString(sig []ffiTypeClass) string {
	s := ""
	for i, c := range sig {
		if i > 0 {
			s += ","
		}
		s += c.String()
	}
	return fmt.Sprintf("(%s)", s)
}
