package scm

import "fmt"

// applyPrim evaluates the non-special-form primitives: list
// constructors/accessors, predicates, comparisons and arithmetic
// (spec.md §4.5). Arguments are already evaluated by the time they
// reach here.
func (ctx *Context) applyPrim(op PrimOp, argv []Cell) (Cell, error) {
	switch op {
	case PrimCons:
		if len(argv) != 2 {
			return Cell{}, ArityError{Op: "cons", Expected: 2, Got: len(argv)}
		}
		return ctx.Cons(argv[0], argv[1]), nil

	case PrimCar:
		if len(argv) != 1 {
			return Cell{}, ArityError{Op: "car", Expected: 1, Got: len(argv)}
		}
		if ctx.Type(argv[0]) != TypePair && !ctx.IsNil(argv[0]) {
			return Cell{}, TypeMismatchError{Op: "car", Expected: TypePair, Got: ctx.Type(argv[0])}
		}
		return ctx.Car(argv[0]), nil

	case PrimCdr:
		if len(argv) != 1 {
			return Cell{}, ArityError{Op: "cdr", Expected: 1, Got: len(argv)}
		}
		if ctx.Type(argv[0]) != TypePair && !ctx.IsNil(argv[0]) {
			return Cell{}, TypeMismatchError{Op: "cdr", Expected: TypePair, Got: ctx.Type(argv[0])}
		}
		return ctx.Cdr(argv[0]), nil

	case PrimSetCar:
		if len(argv) != 2 {
			return Cell{}, ArityError{Op: "setcar", Expected: 2, Got: len(argv)}
		}
		ctx.SetCar(argv[0], argv[1])
		return argv[0], nil

	case PrimSetCdr:
		if len(argv) != 2 {
			return Cell{}, ArityError{Op: "setcdr", Expected: 2, Got: len(argv)}
		}
		ctx.SetCdr(argv[0], argv[1])
		return argv[0], nil

	case PrimList:
		return ctx.sliceToList(argv), nil

	case PrimNot:
		if len(argv) != 1 {
			return Cell{}, ArityError{Op: "not_", Expected: 1, Got: len(argv)}
		}
		return ctx.Bool(ctx.IsFalse(argv[0])), nil

	case PrimAtom:
		if len(argv) != 1 {
			return Cell{}, ArityError{Op: "atom", Expected: 1, Got: len(argv)}
		}
		return ctx.Bool(ctx.Type(argv[0]) != TypePair), nil

	case PrimIs:
		if len(argv) != 2 {
			return Cell{}, ArityError{Op: "is", Expected: 2, Got: len(argv)}
		}
		return ctx.Bool(ctx.equal(argv[0], argv[1])), nil

	case PrimPrint:
		for i, a := range argv {
			if i > 0 {
				fmt.Print(" ")
			}
			fmt.Print(ctx.Write(a))
		}
		fmt.Println()
		if len(argv) == 0 {
			return ctx.Nil, nil
		}
		return argv[len(argv)-1], nil

	case PrimGt, PrimGte, PrimLt, PrimLte:
		return ctx.compareChain(op, argv)

	case PrimAdd, PrimSub, PrimMul, PrimDiv, PrimMod:
		return ctx.arithChain(op, argv)

	default:
		return Cell{}, NotCallableError{Got: TypePrim}
	}
}

// equal implements the `is` primitive's deep structural equality:
// pairs compare recursively, numbers coerce through numericEqual,
// symbols/keywords/strings compare by interned id, everything else by
// cell identity (spec.md §4.5; SPEC_FULL.md §4).
func (ctx *Context) equal(a, b Cell) bool {
	if a.idx == b.idx {
		return true
	}
	ta, tb := ctx.Type(a), ctx.Type(b)
	if ctx.IsNumber(a) && ctx.IsNumber(b) {
		return numericEqual(ctx.NumberValue(a), ctx.NumberValue(b))
	}
	if ta != tb {
		return false
	}
	switch ta {
	case TypeString, TypeKeyword:
		return ctx.StringValue(a) == ctx.StringValue(b)
	case TypePair:
		return ctx.equal(ctx.Car(a), ctx.Car(b)) && ctx.equal(ctx.Cdr(a), ctx.Cdr(b))
	default:
		return false
	}
}

func (ctx *Context) compareChain(op PrimOp, argv []Cell) (Cell, error) {
	if len(argv) < 2 {
		return Cell{}, ArityError{Op: op.String(), Expected: 2, Got: len(argv)}
	}
	for i := 0; i+1 < len(argv); i++ {
		if !ctx.IsNumber(argv[i]) {
			return Cell{}, TypeMismatchError{Op: op.String(), Expected: TypeFixnum, Got: ctx.Type(argv[i])}
		}
		a, b := ctx.NumberValue(argv[i]), ctx.NumberValue(argv[i+1])
		var ok bool
		switch op {
		case PrimGt:
			ok = a > b
		case PrimGte:
			ok = a >= b
		case PrimLt:
			ok = a < b
		case PrimLte:
			ok = a <= b
		}
		if !ok {
			return ctx.False, nil
		}
	}
	return ctx.True, nil
}

// arithChain folds add/sub/mul/div left to right through flonum,
// always returning a flonum result: original_source's scm.cpp
// (prim_type_t::add/sub/mul/div) coerces every operand through
// to_flonum(...) and returns make_flonum(...) unconditionally, even
// when every operand started as a fixnum. Only mod stays integer, and
// rejects flonum operands outright (spec.md §4.5).
func (ctx *Context) arithChain(op PrimOp, argv []Cell) (Cell, error) {
	if len(argv) == 0 {
		return Cell{}, ArityError{Op: op.String(), Expected: 1, Got: 0}
	}
	for _, a := range argv {
		if !ctx.IsNumber(a) {
			return Cell{}, TypeMismatchError{Op: op.String(), Expected: TypeFixnum, Got: ctx.Type(a)}
		}
	}

	if op == PrimMod {
		for _, a := range argv {
			if ctx.Type(a) != TypeFixnum {
				return Cell{}, TypeMismatchError{Op: "mod", Expected: TypeFixnum, Got: ctx.Type(a)}
			}
		}
		acc := int64(ctx.FixnumValue(argv[0]))
		for _, a := range argv[1:] {
			acc %= int64(ctx.FixnumValue(a))
		}
		return ctx.Fixnum(int32(acc)), nil
	}

	acc := ctx.NumberValue(argv[0])
	for _, a := range argv[1:] {
		v := ctx.NumberValue(a)
		switch op {
		case PrimAdd:
			acc += v
		case PrimSub:
			acc -= v
		case PrimMul:
			acc *= v
		case PrimDiv:
			acc /= v
		}
	}
	if len(argv) == 1 && op == PrimSub {
		acc = -acc
	}
	return ctx.Flonum(float32(acc)), nil
}
