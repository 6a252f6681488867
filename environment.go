package scm

// Environment get/set/make — spec.md §4.4 (C4). Frames chain to a
// parent, bindings are keyed by the symbol's interned-string id so
// lookup never compares byte strings, just int32s.

// MakeChildEnvironment allocates a new environment whose parent is
// `parent` (spec.md §4.4, "make").
func (ctx *Context) MakeChildEnvironment(parent Cell) Cell {
	return ctx.MakeEnvironment(parent)
}

// EnvGet walks the parent chain looking up `sym`'s binding, returning
// UnboundVariableError if no frame defines it (spec.md §4.4, "get").
func (ctx *Context) EnvGet(sym, env Cell) (Cell, error) {
	name := ctx.SymbolName(sym)
	for !ctx.IsNil(env) {
		e := ctx.envAt(env)
		if v, ok := e.bindings.Get(ctx.cell(sym).value); ok {
			return v, nil
		}
		env = e.parent
	}
	return Cell{}, UnboundVariableError{Name: name}
}

// EnvDefine binds `sym` to `val` in `env`'s own frame, shadowing any
// binding in a parent frame (spec.md §4.4, used by `let`/`fn` param
// binding).
func (ctx *Context) EnvDefine(sym, val, env Cell) {
	ctx.envAt(env).bindings.Put(ctx.cell(sym).value, val)
}

// EnvSet mutates the nearest frame that already binds `sym`, returning
// UnboundVariableError if none does (spec.md §4.4, "set").
func (ctx *Context) EnvSet(sym, val, env Cell) error {
	name := ctx.SymbolName(sym)
	id := ctx.cell(sym).value
	for !ctx.IsNil(env) {
		e := ctx.envAt(env)
		if _, ok := e.bindings.Get(id); ok {
			e.bindings.Put(id, val)
			return nil
		}
		env = e.parent
	}
	return UnboundVariableError{Name: name}
}
