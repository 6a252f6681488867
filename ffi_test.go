package scm

import "testing"

func TestFFIDispatchByArgumentClass(t *testing.T) {
	ctx := newTestContext(t)

	intFn := ctx.RegisterFFI("describe", []ffiTypeClass{ffiClassInt}, ffiClassInt,
		func(ctx *Context, args []Cell) (Cell, error) {
			return ctx.Fixnum(ctx.FixnumValue(args[0]) * 2), nil
		})
	ctx.RegisterFFI("describe", []ffiTypeClass{ffiClassFloat}, ffiClassFloat,
		func(ctx *Context, args []Cell) (Cell, error) {
			return ctx.Flonum(ctx.FlonumValue(args[0]) + 1), nil
		})

	v, err := ctx.callFFI(intFn, []Cell{ctx.Fixnum(5)})
	if err != nil {
		t.Fatalf("callFFI(int overload): %v", err)
	}
	if ctx.FixnumValue(v) != 10 {
		t.Errorf("want 10, got %d", ctx.FixnumValue(v))
	}

	v, err = ctx.callFFI(intFn, []Cell{ctx.Flonum(2.5)})
	if err != nil {
		t.Fatalf("callFFI(float overload): %v", err)
	}
	if ctx.FlonumValue(v) != 3.5 {
		t.Errorf("want 3.5, got %v", ctx.FlonumValue(v))
	}
}

func TestFFINoMatchingOverload(t *testing.T) {
	ctx := newTestContext(t)
	fn := ctx.RegisterFFI("intonly", []ffiTypeClass{ffiClassInt}, ffiClassInt,
		func(ctx *Context, args []Cell) (Cell, error) { return args[0], nil })

	_, err := ctx.callFFI(fn, []Cell{ctx.String("nope")})
	if _, ok := err.(FfiNoMatchingOverloadError); !ok {
		t.Fatalf("want FfiNoMatchingOverloadError, got %T (%v)", err, err)
	}
}
