package scm

import "math"

// PrimOp enumerates every primitive operation, spelled exactly as
// original_source's `prim_type_t`/`s_prim_names` does (SPEC_FULL.md
// §4): special forms that control evaluation of their own operands
// (`quote`, `if_`, `fn`, ...) alongside plain value primitives
// (`add`, `car`, `is`, ...). Both kinds are represented uniformly as
// `prim` cells bound in the global environment; `eval` tells them
// apart with isSpecialForm.
type PrimOp int32

const (
	PrimEval PrimOp = iota
	PrimLet
	PrimSet
	PrimIf
	PrimFn
	PrimMac
	PrimWhile
	PrimError
	PrimQuote
	PrimUnquote
	PrimQuasiquote
	PrimUnquoteSplicing
	PrimAnd
	PrimOr
	PrimDo
	PrimCons
	PrimCar
	PrimCdr
	PrimSetCar
	PrimSetCdr
	PrimList
	PrimNot
	PrimIs
	PrimAtom
	PrimPrint
	PrimGt
	PrimGte
	PrimLt
	PrimLte
	PrimAdd
	PrimSub
	PrimMul
	PrimDiv
	PrimMod
	primCount
)

var primNames = [primCount]string{
	PrimEval: "eval", PrimLet: "let", PrimSet: "set", PrimIf: "if_",
	PrimFn: "fn", PrimMac: "mac", PrimWhile: "while_", PrimError: "error",
	PrimQuote: "quote", PrimUnquote: "unquote", PrimQuasiquote: "quasiquote",
	PrimUnquoteSplicing: "unquote_splicing", PrimAnd: "and_", PrimOr: "or_",
	PrimDo: "do_", PrimCons: "cons", PrimCar: "car", PrimCdr: "cdr",
	PrimSetCar: "setcar", PrimSetCdr: "setcdr", PrimList: "list",
	PrimNot: "not_", PrimIs: "is", PrimAtom: "atom", PrimPrint: "print",
	PrimGt: "gt", PrimGte: "gte", PrimLt: "lt", PrimLte: "lte",
	PrimAdd: "add", PrimSub: "sub", PrimMul: "mul", PrimDiv: "div", PrimMod: "mod",
}

func (op PrimOp) String() string {
	if int(op) < len(primNames) {
		return primNames[op]
	}
	return "unknown"
}

func isSpecialForm(op PrimOp) bool {
	switch op {
	case PrimEval, PrimLet, PrimSet, PrimIf, PrimFn, PrimMac, PrimWhile,
		PrimError, PrimQuote, PrimUnquote, PrimQuasiquote, PrimUnquoteSplicing,
		PrimAnd, PrimOr, PrimDo:
		return true
	}
	return false
}

// installBuiltinPrimitives binds every PrimOp name to a prim cell in
// the global environment (spec.md §4.5).
func installBuiltinPrimitives(ctx *Context) {
	for op := PrimOp(0); op < primCount; op++ {
		ctx.EnvDefine(ctx.Symbol(op.String()), ctx.Prim(op), ctx.global)
	}
}

const epsilon = 1e-6

// numericEqual coerces a fixnum/flonum mix through float64 with an
// epsilon compare, following original_source's `is` primitive
// (SPEC_FULL.md §4).
func numericEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// Eval evaluates `expr` in `env` (spec.md §5, C5): self-evaluating
// atoms return themselves, symbols resolve through the environment
// chain, pairs dispatch on their head — special forms control their
// own operand evaluation, funcs/macros/prims/cfuncs/ffi cells apply to
// evaluated arguments. Tail calls into a func body rebind `expr`/`env`
// and loop instead of recursing.
func (ctx *Context) Eval(expr, env Cell) (Cell, error) {
tailcall:
	switch ctx.Type(expr) {
	case TypeSymbol:
		return ctx.EnvGet(expr, env)
	case TypePair:
		// fallthrough to call handling below
	default:
		return expr, nil
	}

	head := ctx.Car(expr)
	args := ctx.Cdr(expr)

	if ctx.Type(head) == TypeSymbol {
		if callee, err := ctx.EnvGet(head, env); err == nil && ctx.Type(callee) == TypePrim {
			op := ctx.PrimOp(callee)
			if isSpecialForm(op) {
				result, tail, tailEnv, err := ctx.evalSpecialForm(op, args, env)
				if err != nil {
					return Cell{}, err
				}
				if !ctx.IsNil(tail) || tailEnv.idx != 0 {
					expr, env = tail, tailEnv
					goto tailcall
				}
				return result, nil
			}
		}
	}

	callee, err := ctx.Eval(head, env)
	if err != nil {
		return Cell{}, err
	}

	// Macro: expand by overwriting the caller's pair in place, then
	// re-dispatch on the rewritten form (spec.md §5, "macro expansion
	// overwrites the caller's pair").
	if ctx.Type(callee) == TypeMacro {
		expanded, err := ctx.applyProcedure(callee, listToSlice(ctx, args))
		if err != nil {
			return Cell{}, err
		}
		ctx.SetCar(expr, ctx.Car(expanded))
		ctx.SetCdr(expr, ctx.Cdr(expanded))
		goto tailcall
	}

	var argv []Cell
	for cur := args; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
		v, err := ctx.Eval(ctx.Car(cur), env)
		if err != nil {
			return Cell{}, err
		}
		argv = append(argv, v)
	}

	ctx.callList = ctx.Cons(head, ctx.callList)

	if ctx.Type(callee) == TypeFunc {
		callEnv, bodyExpr, err := ctx.enterProcedure(callee, argv)
		if err != nil {
			return Cell{}, err
		}
		expr, env = bodyExpr, callEnv
		ctx.callList = ctx.Cdr(ctx.callList)
		goto tailcall
	}

	result, err := ctx.apply(callee, argv)
	ctx.callList = ctx.Cdr(ctx.callList)
	return result, err
}

func listToSlice(ctx *Context, list Cell) []Cell {
	var out []Cell
	for cur := list; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
		out = append(out, ctx.Car(cur))
	}
	return out
}

// apply invokes a callable with already evaluated arguments: prims,
// cfuncs and ffi cells directly, funcs through applyProcedure.
func (ctx *Context) apply(callee Cell, argv []Cell) (Cell, error) {
	switch ctx.Type(callee) {
	case TypePrim:
		return ctx.applyPrim(ctx.PrimOp(callee), argv)
	case TypeCFunc:
		return ctx.cfuncAt(callee)(ctx, argv)
	case TypeFFI:
		return ctx.callFFI(callee, argv)
	case TypeFunc:
		return ctx.applyProcedure(callee, argv)
	default:
		return Cell{}, NotCallableError{Got: ctx.Type(callee)}
	}
}

// enterProcedure binds argv to params in a fresh child environment and
// returns (childEnv, bodyExpr) so the caller can tail-loop instead of
// recursing into Eval again.
func (ctx *Context) enterProcedure(proc Cell, argv []Cell) (Cell, Cell, error) {
	p := ctx.procAt(proc)
	child := ctx.MakeChildEnvironment(p.env)

	params := p.params
	i := 0
	for !ctx.IsNil(params) {
		if ctx.Type(params) != TypePair {
			ctx.EnvDefine(params, ctx.sliceToList(argv[i:]), child)
			i = len(argv)
			break
		}
		if i >= len(argv) {
			return Cell{}, Cell{}, ArityError{Op: "fn", Expected: i + 1, Got: len(argv)}
		}
		ctx.EnvDefine(ctx.Car(params), argv[i], child)
		i++
		params = ctx.Cdr(params)
	}

	body := p.body
	if ctx.IsNil(body) {
		return child, ctx.Nil, nil
	}
	for !ctx.IsNil(ctx.Cdr(body)) {
		if _, err := ctx.Eval(ctx.Car(body), child); err != nil {
			return Cell{}, Cell{}, err
		}
		body = ctx.Cdr(body)
	}
	return child, ctx.Car(body), nil
}

func (ctx *Context) applyProcedure(proc Cell, argv []Cell) (Cell, error) {
	child, bodyExpr, err := ctx.enterProcedure(proc, argv)
	if err != nil {
		return Cell{}, err
	}
	return ctx.Eval(bodyExpr, child)
}

func (ctx *Context) sliceToList(cells []Cell) Cell {
	out := ctx.Nil
	for i := len(cells) - 1; i >= 0; i-- {
		out = ctx.Cons(cells[i], out)
	}
	return out
}

// evalSpecialForm evaluates one of the special-form primitives.
// Returning a non-nil tail expr (or a non-zero tailEnv) asks Eval to
// continue the tail-call loop instead of returning `result` directly.
func (ctx *Context) evalSpecialForm(op PrimOp, args, env Cell) (result, tail, tailEnv Cell, err error) {
	switch op {
	case PrimQuote:
		return ctx.Car(args), Cell{}, Cell{}, nil

	case PrimEval:
		v, err := ctx.Eval(ctx.Car(args), env)
		if err != nil {
			return Cell{}, Cell{}, Cell{}, err
		}
		return Cell{}, v, env, nil

	case PrimIf:
		cond, err := ctx.Eval(ctx.Car(args), env)
		if err != nil {
			return Cell{}, Cell{}, Cell{}, err
		}
		rest := ctx.Cdr(args)
		if !ctx.IsFalse(cond) {
			return Cell{}, ctx.Car(rest), env, nil
		}
		elseRest := ctx.Cdr(rest)
		if ctx.IsNil(elseRest) {
			return ctx.Nil, Cell{}, Cell{}, nil
		}
		return Cell{}, ctx.Car(elseRest), env, nil

	case PrimAnd:
		v := ctx.True
		for cur := args; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
			if ctx.IsNil(ctx.Cdr(cur)) {
				return Cell{}, ctx.Car(cur), env, nil
			}
			var err error
			v, err = ctx.Eval(ctx.Car(cur), env)
			if err != nil {
				return Cell{}, Cell{}, Cell{}, err
			}
			if ctx.IsFalse(v) {
				return v, Cell{}, Cell{}, nil
			}
		}
		return v, Cell{}, Cell{}, nil

	case PrimOr:
		v := ctx.False
		for cur := args; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
			var err error
			v, err = ctx.Eval(ctx.Car(cur), env)
			if err != nil {
				return Cell{}, Cell{}, Cell{}, err
			}
			if !ctx.IsFalse(v) {
				return v, Cell{}, Cell{}, nil
			}
		}
		return v, Cell{}, Cell{}, nil

	case PrimDo:
		if ctx.IsNil(args) {
			return ctx.Nil, Cell{}, Cell{}, nil
		}
		for !ctx.IsNil(ctx.Cdr(args)) {
			if _, err := ctx.Eval(ctx.Car(args), env); err != nil {
				return Cell{}, Cell{}, Cell{}, err
			}
			args = ctx.Cdr(args)
		}
		return Cell{}, ctx.Car(args), env, nil

	case PrimWhile:
		cond := ctx.Car(args)
		body := ctx.Cdr(args)
		for {
			v, err := ctx.Eval(cond, env)
			if err != nil {
				return Cell{}, Cell{}, Cell{}, err
			}
			if ctx.IsFalse(v) {
				return ctx.Nil, Cell{}, Cell{}, nil
			}
			for cur := body; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
				if _, err := ctx.Eval(ctx.Car(cur), env); err != nil {
					return Cell{}, Cell{}, Cell{}, err
				}
			}
		}

	case PrimLet:
		sym := ctx.Car(args)
		val, err := ctx.Eval(ctx.Car(ctx.Cdr(args)), env)
		if err != nil {
			return Cell{}, Cell{}, Cell{}, err
		}
		ctx.EnvDefine(sym, val, env)
		return val, Cell{}, Cell{}, nil

	case PrimSet:
		sym := ctx.Car(args)
		val, err := ctx.Eval(ctx.Car(ctx.Cdr(args)), env)
		if err != nil {
			return Cell{}, Cell{}, Cell{}, err
		}
		if err := ctx.EnvSet(sym, val, env); err != nil {
			return Cell{}, Cell{}, Cell{}, err
		}
		return val, Cell{}, Cell{}, nil

	case PrimFn, PrimMac:
		params := ctx.Car(args)
		body := ctx.Cdr(args)
		proc := ctx.MakeProcedure(params, body, env, op == PrimMac)
		return proc, Cell{}, Cell{}, nil

	case PrimQuasiquote:
		v, err := ctx.quasiquote(ctx.Car(args), env, 1)
		return v, Cell{}, Cell{}, err

	case PrimUnquote, PrimUnquoteSplicing:
		return Cell{}, Cell{}, Cell{}, SyntaxError{
			Kind: SyntaxErrorUnexpectedCharacter, Message: op.String() + " outside quasiquote",
		}

	case PrimError:
		var evaluated []Cell
		for cur := args; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
			v, err := ctx.Eval(ctx.Car(cur), env)
			if err != nil {
				return Cell{}, Cell{}, Cell{}, err
			}
			evaluated = append(evaluated, v)
		}
		snapshot := ctx.snapshotCallList()
		ue := UserError{ctx: ctx, Args: evaluated, CallList: snapshot}
		ctx.lastError = &ue
		ctx.callList = ctx.Nil
		return Cell{}, Cell{}, Cell{}, ue

	default:
		return Cell{}, Cell{}, Cell{}, NotCallableError{Got: TypePrim}
	}
}

// snapshotCallList copies the call-list cons chain into a string slice
// before it's reset, preserving the trace exactly (SPEC_FULL.md §4,
// "call-list snapshot on error").
func (ctx *Context) snapshotCallList() []string {
	var out []string
	for cur := ctx.callList; !ctx.IsNil(cur); cur = ctx.Cdr(cur) {
		out = append(out, ctx.SymbolName(ctx.Car(cur)))
	}
	return out
}

// quasiquote implements the recursive quasiquotation rules: `unquote`
// evaluates and splices its single value in, `unquote_splicing`
// evaluates to a list and splices its elements in, everything else
// quasiquotes its car/cdr recursively (spec.md §5.4).
func (ctx *Context) quasiquote(expr, env Cell, depth int) (Cell, error) {
	if ctx.Type(expr) != TypePair {
		return expr, nil
	}
	head := ctx.Car(expr)
	if ctx.Type(head) == TypeSymbol {
		switch ctx.SymbolName(head) {
		case "unquote":
			if depth == 1 {
				return ctx.Eval(ctx.Car(ctx.Cdr(expr)), env)
			}
			inner, err := ctx.quasiquote(ctx.Car(ctx.Cdr(expr)), env, depth-1)
			if err != nil {
				return Cell{}, err
			}
			return ctx.Cons(head, ctx.Cons(inner, ctx.Nil)), nil
		case "quasiquote":
			inner, err := ctx.quasiquote(ctx.Car(ctx.Cdr(expr)), env, depth+1)
			if err != nil {
				return Cell{}, err
			}
			return ctx.Cons(head, ctx.Cons(inner, ctx.Nil)), nil
		}
	}

	if ctx.Type(head) == TypePair && ctx.Type(ctx.Car(head)) == TypeSymbol &&
		ctx.SymbolName(ctx.Car(head)) == "unquote_splicing" && depth == 1 {
		spliced, err := ctx.Eval(ctx.Car(ctx.Cdr(head)), env)
		if err != nil {
			return Cell{}, err
		}
		rest, err := ctx.quasiquote(ctx.Cdr(expr), env, depth)
		if err != nil {
			return Cell{}, err
		}
		return appendList(ctx, spliced, rest), nil
	}

	car, err := ctx.quasiquote(head, env, depth)
	if err != nil {
		return Cell{}, err
	}
	cdr, err := ctx.quasiquote(ctx.Cdr(expr), env, depth)
	if err != nil {
		return Cell{}, err
	}
	return ctx.Cons(car, cdr), nil
}

func appendList(ctx *Context, a, b Cell) Cell {
	if ctx.IsNil(a) {
		return b
	}
	items := listToSlice(ctx, a)
	out := b
	for i := len(items) - 1; i >= 0; i-- {
		out = ctx.Cons(items[i], out)
	}
	return out
}
