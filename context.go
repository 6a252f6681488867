package scm

// InstallErrorHook registers a callback invoked whenever EvalString
// returns a UserError (Eval itself does not call it), letting an
// embedder observe user-raised errors without having to type-switch
// every Eval result (spec.md §9, embedding API).
func (ctx *Context) InstallErrorHook(fn func(error)) {
	ctx.errorHook = fn
}

// LastError returns the most recent UserError captured by the `error`
// primitive, along with the call-list snapshot taken before it was
// reset (SPEC_FULL.md §4).
func (ctx *Context) LastError() *UserError { return ctx.lastError }

// EvalString reads and evaluates every top-level form in `src` against
// the global environment, returning the value of the last one. This
// is the tree-walking path (spec.md §5); use Compile+RunProgram for
// the compiled path (spec.md §7-§9).
func (ctx *Context) EvalString(src string) (Cell, error) {
	forms, err := ctx.ReadAll([]byte(src))
	if err != nil {
		return Cell{}, err
	}
	result := ctx.Nil
	for _, f := range forms {
		result, err = ctx.Eval(f, ctx.global)
		if err != nil {
			if ue, ok := err.(UserError); ok && ctx.errorHook != nil {
				ctx.errorHook(ue)
			}
			return Cell{}, err
		}
	}
	return result, nil
}

// CompileString reads every top-level form in `src`, folds them into
// one `do_` body, and compiles that into a Program ready for
// Assemble/RunProgram (spec.md §7).
func (ctx *Context) CompileString(src string) (*Program, error) {
	forms, err := ctx.ReadAll([]byte(src))
	if err != nil {
		return nil, err
	}
	body := ctx.Cons(ctx.Symbol("do_"), ctx.sliceToList(forms))

	c := NewCompiler(ctx)
	if _, _, _, err := c.Compile(body, ctx.global); err != nil {
		return nil, err
	}
	if err := c.prog.CheckLiveness(); err != nil {
		return nil, err
	}
	return c.prog, nil
}
