package scm

// compileCtx bundles a lowering call's ambient state (spec.md §7, C7):
// the basic block instructions are currently appended to, the lexical
// environment callee names are resolved in, a preferred target
// register, a label, and whether this is the top-level form.
type compileCtx struct {
	block   *BasicBlock
	env     Cell
	target  int8
	label   string
	topLevel bool
}

// numRegisters is the size of the compiler's register pool (spec.md
// §7, "R0-R15").
const numRegisters = 16

// registerPool tracks which of R0..R15 are free, reserved, or
// protected across a call (spec.md §7, "register reservation pool").
type registerPool struct {
	reserved  [numRegisters]bool
	protected [numRegisters]bool
}

func newRegisterPool() *registerPool { return &registerPool{} }

func (p *registerPool) reserve() (int8, error) {
	for i := 0; i < numRegisters; i++ {
		if !p.reserved[i] {
			p.reserved[i] = true
			return int8(i), nil
		}
	}
	return 0, RegisterPressureError{Version: "compile-time reservation"}
}

func (p *registerPool) release(r int8) { p.reserved[r] = false }

func (p *registerPool) protect(r int8)   { p.protected[r] = true }
func (p *registerPool) unprotect(r int8) { p.protected[r] = false }

// Compiler lowers S-expressions into the IR (spec.md §7). It owns the
// program being built, the register pool and the label-backpatching
// tables, the same `openAddrs`/`definitionLabels` idiom the teacher's
// grammar_compiler.go uses for its PEG rules, generalized here to
// switch on a cons cell's head symbol instead of a typed AST visitor
// (since our reader produces cons trees, not typed nodes).
type Compiler struct {
	ctx  *Context
	prog *Program
	regs *registerPool

	// openAddrs maps a not-yet-compiled procedure's entry block id to
	// the call sites awaiting patching once it's lowered (lazy
	// compilation of fn/mac bodies at first call site).
	openAddrs map[Cell][]*BasicBlock

	// definitionLabels remembers a procedure cell's compiled entry
	// block, so repeat calls reuse it instead of recompiling.
	definitionLabels map[Cell]int32

	nextVersion map[string]int
}

// NewCompiler creates a compiler writing into a fresh Program.
func NewCompiler(ctx *Context) *Compiler {
	return &Compiler{
		ctx:              ctx,
		prog:             NewProgram(),
		regs:             newRegisterPool(),
		openAddrs:        map[Cell][]*BasicBlock{},
		definitionLabels: map[Cell]int32{},
		nextVersion:      map[string]int{},
	}
}

// Compile lowers `expr` as a top-level form, returning the block the
// compiled code ends in (the entry block id is in c.prog.Entry), the
// register the value ends up in, and
// whether that register holds a volatile (not callee-saved) value
// (spec.md §7: "compile(ctx) -> (last_block, result_reg, is_volatile)").
func (c *Compiler) Compile(expr, env Cell) (lastBlock *BasicBlock, resultReg int8, isVolatile bool, err error) {
	entry := c.prog.NewBlock(BlockEntry, "entry")
	c.prog.Entry = entry.ID
	c.enterFrame(entry, 0)

	cctx := &compileCtx{block: entry, env: env, topLevel: true}
	reg, err := c.compileExpr(cctx, expr)
	if err != nil {
		return nil, 0, false, err
	}

	cctx.block.Emit(Instruction{Op: OpRet, Encoding: EncReg1, Operands: [4]Operand{RegOperand(reg)}})
	return cctx.block, reg, isVolatileReg(reg), nil
}

func isVolatileReg(r int8) bool { return r < 8 } // R0-R7 caller-saved, R8-R15 callee-saved

// enterFrame emits the procedure prologue the teacher's compiled
// output always opens with: push lr, push fp, move fp,sp, and
// sub sp,locals when locals > 0 (spec.md §7, "procedure prologue").
func (c *Compiler) enterFrame(b *BasicBlock, locals int64) {
	b.Emit(Instruction{Op: OpPush, Encoding: EncReg1, Operands: [4]Operand{RegOperand(regLR)}})
	b.Emit(Instruction{Op: OpPush, Encoding: EncReg1, Operands: [4]Operand{RegOperand(regFP)}})
	b.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(regFP), RegOperand(regSP)}})
	if locals > 0 {
		b.Emit(Instruction{Op: OpSub, Encoding: EncReg2Imm, Operands: [4]Operand{RegOperand(regSP), RegOperand(regSP), ImmOperand(locals)}})
	}
}

// leaveFrame is the matching epilogue: move sp,fp; pop fp; pop lr
// (spec.md §7, "procedure epilogue"). It emits no ret; the caller
// (compileProcedure) emits OpRet after it.
func (c *Compiler) leaveFrame(b *BasicBlock) {
	b.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(regSP), RegOperand(regFP)}})
	b.Emit(Instruction{Op: OpPop, Encoding: EncReg1, Operands: [4]Operand{RegOperand(regFP)}})
	b.Emit(Instruction{Op: OpPop, Encoding: EncReg1, Operands: [4]Operand{RegOperand(regLR)}})
}

const (
	regLR int8 = 14
	regFP int8 = 15
	regSP int8 = 13
)

// compileExpr lowers one S-expression into cctx.block, returning the
// register holding its value.
func (c *Compiler) compileExpr(cctx *compileCtx, expr Cell) (int8, error) {
	ctx := c.ctx
	switch ctx.Type(expr) {
	case TypeFixnum, TypeFlonum, TypeBoolean, TypeNil, TypeString, TypeKeyword:
		return c.compileLiteral(cctx, expr)
	case TypeSymbol:
		return c.compileSymbolRef(cctx, expr)
	case TypePair:
		return c.compilePair(cctx, expr)
	default:
		return 0, NotCallableError{Got: ctx.Type(expr)}
	}
}

// compileLiteral loads a literal's own pre-existing arena cell
// directly into a register (spec.md §7: registers hold boxed Cell
// indices, same as OpLoad/OpCons/OpCar/OpCdr's results). The reader
// already built the fixnum/flonum/string/boolean/nil/keyword cell when
// it parsed the source, so compiling a literal is just "reference that
// cell" — no reconstruction of its value as a raw immediate.
func (c *Compiler) compileLiteral(cctx *compileCtx, expr Cell) (int8, error) {
	reg, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	cctx.block.Emit(Instruction{Op: OpMovI, Encoding: EncReg2Imm, Operands: [4]Operand{RegOperand(reg), ImmOperand(int64(expr.idx)), {}}})
	return reg, nil
}

func (c *Compiler) compileSymbolRef(cctx *compileCtx, sym Cell) (int8, error) {
	reg, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	name := c.ctx.SymbolName(sym)
	cctx.block.Emit(Instruction{
		Op: OpLoad, Encoding: EncReg2,
		Operands: [4]Operand{RegOperand(reg), LabelOperand(name)},
	})
	return reg, nil
}

func (c *Compiler) compilePair(cctx *compileCtx, expr Cell) (int8, error) {
	ctx := c.ctx
	head := ctx.Car(expr)
	args := ctx.Cdr(expr)

	if ctx.Type(head) == TypeSymbol {
		name := ctx.SymbolName(head)
		if fn, ok := specialCompilers[name]; ok {
			return fn(c, cctx, args)
		}
		if prim, ok := primArithOp[name]; ok {
			return c.compilePrimChain(cctx, prim, args)
		}
		if op, ok := primListOp[name]; ok {
			return c.compileListOp(cctx, op, args)
		}
	}

	return c.compileCall(cctx, head, args)
}

var primArithOp = map[string]PrimOp{
	"add": PrimAdd, "sub": PrimSub, "mul": PrimMul, "div": PrimDiv, "mod": PrimMod,
	"gt": PrimGt, "gte": PrimGte, "lt": PrimLt, "lte": PrimLte, "is": PrimIs,
}

var primListOp = map[string]Opcode{
	"cons": OpCons, "car": OpCar, "cdr": OpCdr, "setcar": OpSetCar, "setcdr": OpSetCdr,
}

// compilePrimChain lowers a variadic value-primitive call (arithmetic,
// comparisons, `is`) the way spec.md §7's "Arithmetic primitives" rule
// describes: allocate an n-slot frame, evaluate each argument into it,
// emit the `l*` list-arithmetic opcode over the frame, free the frame.
// This port's single generalized OpListOp (ir.go's "variadic prim call
// through a reserved arg area") carries the argument count in Aux and
// the PrimOp to dispatch in Mode, so the VM runs the exact same
// applyPrim/arithChain logic the tree-walking evaluator uses — no
// separate boxing/coercion rules to keep in sync between the two
// execution paths.
func (c *Compiler) compilePrimChain(cctx *compileCtx, prim PrimOp, args Cell) (int8, error) {
	ctx := c.ctx
	items := listToSlice(ctx, args)
	if len(items) == 0 {
		return 0, ArityError{Op: prim.String(), Expected: 1, Got: 0}
	}

	argRegs := make([]int8, len(items))
	for i, it := range items {
		r, err := c.compileExpr(cctx, it)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	for i := len(argRegs) - 1; i >= 0; i-- {
		c.regs.protect(argRegs[i])
		cctx.block.Emit(Instruction{Op: OpPush, Encoding: EncReg1, Operands: [4]Operand{RegOperand(argRegs[i])}})
		c.regs.unprotect(argRegs[i])
		c.regs.release(argRegs[i])
	}

	dst, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	cctx.block.Emit(Instruction{
		Op: OpListOp, Encoding: EncReg1, Mode: uint8(prim), Aux: int32(len(items)),
		Operands: [4]Operand{RegOperand(dst)},
	})
	return dst, nil
}

func (c *Compiler) compileListOp(cctx *compileCtx, op Opcode, args Cell) (int8, error) {
	ctx := c.ctx
	items := listToSlice(ctx, args)
	regs := make([]int8, len(items))
	for i, it := range items {
		r, err := c.compileExpr(cctx, it)
		if err != nil {
			return 0, err
		}
		regs[i] = r
	}
	dst, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	ops := [4]Operand{RegOperand(dst)}
	for i, r := range regs {
		if i+1 < 4 {
			ops[i+1] = RegOperand(r)
		}
	}
	enc := EncReg2
	if len(regs) >= 2 {
		enc = EncReg3
	}
	cctx.block.Emit(Instruction{Op: op, Encoding: enc, Operands: ops})
	return dst, nil
}

// compileCall lowers a call to an already-defined func: it compiles
// the callee's body once (memoized in definitionLabels, lazily, at
// its first call site — spec.md §7, "construct procedure descriptor,
// lazy-compile body at first call site"), pushes the evaluated
// argument registers, and emits a direct call to the callee's entry
// block. The result comes back in R0. Registers are not saved or
// restored around the call, and no env frame is pushed: the callee
// binds its parameters in the global environment with OpStore.
func (c *Compiler) compileCall(cctx *compileCtx, head, args Cell) (int8, error) {
	ctx := c.ctx
	if ctx.Type(head) != TypeSymbol {
		return 0, NotCallableError{Got: ctx.Type(head)}
	}
	callee, err := ctx.EnvGet(head, cctx.env)
	if err != nil {
		return 0, err
	}
	if ctx.Type(callee) != TypeFunc {
		return 0, NotCallableError{Got: ctx.Type(callee)}
	}

	entry, err := c.compileProcedure(callee)
	if err != nil {
		return 0, err
	}

	items := listToSlice(ctx, args)
	argRegs := make([]int8, len(items))
	for i, it := range items {
		r, err := c.compileExpr(cctx, it)
		if err != nil {
			return 0, err
		}
		argRegs[i] = r
	}
	for i := len(argRegs) - 1; i >= 0; i-- {
		c.regs.protect(argRegs[i])
		cctx.block.Emit(Instruction{Op: OpPush, Encoding: EncReg1, Operands: [4]Operand{RegOperand(argRegs[i])}})
		c.regs.unprotect(argRegs[i])
		c.regs.release(argRegs[i])
	}

	cctx.block.Emit(Instruction{Op: OpCall, Encoding: EncImm, Aux: int32(len(items)), Operands: [4]Operand{BlockOperand(entry)}})

	dst, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	cctx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(0)}})
	return dst, nil
}

// compileProcedure lowers a func's parameter list and body into its
// own prologue/body/epilogue blocks, memoizing the entry block id so
// repeat call sites don't recompile it.
func (c *Compiler) compileProcedure(proc Cell) (int32, error) {
	if entry, ok := c.definitionLabels[proc]; ok {
		return entry, nil
	}
	ctx := c.ctx
	p := ctx.procAt(proc)

	entry := c.prog.NewBlock(BlockBody, "proc")
	c.definitionLabels[proc] = entry.ID

	pctx := &compileCtx{block: entry, env: p.env}

	// Pop the caller's pushed arguments while they still sit on top of the
	// stack, before enterFrame buries them under its own saved lr/fp.
	for cur := p.params; !ctx.IsNil(cur) && ctx.Type(cur) == TypePair; cur = ctx.Cdr(cur) {
		r, err := c.regs.reserve()
		if err != nil {
			return 0, err
		}
		pctx.block.Emit(Instruction{Op: OpPop, Encoding: EncReg1, Operands: [4]Operand{RegOperand(r)}})
		name := ctx.SymbolName(ctx.Car(cur))
		pctx.block.Emit(Instruction{Op: OpStore, Encoding: EncReg2, Operands: [4]Operand{LabelOperand(name), RegOperand(r)}})
		c.regs.release(r)
	}

	c.enterFrame(entry, 0)

	var result int8
	var err error
	body := p.body
	if ctx.IsNil(body) {
		result, err = c.compileLiteral(pctx, ctx.Nil)
	} else {
		for !ctx.IsNil(ctx.Cdr(body)) {
			if _, err := c.compileExpr(pctx, ctx.Car(body)); err != nil {
				return 0, err
			}
			body = ctx.Cdr(body)
		}
		result, err = c.compileExpr(pctx, ctx.Car(body))
	}
	if err != nil {
		return 0, err
	}

	pctx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(0), RegOperand(result)}})
	c.leaveFrame(pctx.block)
	pctx.block.Emit(Instruction{Op: OpRet, Encoding: EncNone})
	return entry.ID, nil
}

// specialCompileFunc lowers a special form directly from its argument
// list, given the enclosing compiler state.
type specialCompileFunc func(c *Compiler, cctx *compileCtx, args Cell) (int8, error)

var specialCompilers = map[string]specialCompileFunc{
	"if_":        compileIf,
	"and_":       compileAnd,
	"or_":        compileOr,
	"do_":        compileDo,
	"quote":      compileQuote,
	"quasiquote": compileQuote,
	"let":        compileLet,
	"set":        compileLet,
	"error":      compileError,
}

func compileIf(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	ctx := c.ctx
	cond, err := c.compileExpr(cctx, ctx.Car(args))
	if err != nil {
		return 0, err
	}
	rest := ctx.Cdr(args)
	thenBlock := c.prog.NewBlock(BlockBody, "if_then")
	elseBlock := c.prog.NewBlock(BlockBody, "if_else")
	joinBlock := c.prog.NewBlock(BlockBody, "if_join")

	cctx.block.Emit(Instruction{Op: OpBr, Encoding: EncIndexed, Operands: [4]Operand{RegOperand(cond), BlockOperand(thenBlock.ID), BlockOperand(elseBlock.ID)}})
	c.prog.Link(cctx.block, thenBlock)
	c.prog.Link(cctx.block, elseBlock)

	dst, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}

	thenCtx := &compileCtx{block: thenBlock, env: cctx.env}
	thenReg, err := c.compileExpr(thenCtx, ctx.Car(rest))
	if err != nil {
		return 0, err
	}
	thenCtx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(thenReg)}})
	thenCtx.block.Emit(Instruction{Op: OpJmp, Encoding: EncImm, Operands: [4]Operand{BlockOperand(joinBlock.ID)}})
	c.prog.Link(thenCtx.block, joinBlock)

	elseCtx := &compileCtx{block: elseBlock, env: cctx.env}
	elseRest := ctx.Cdr(rest)
	var elseReg int8
	if ctx.IsNil(elseRest) {
		elseReg, err = c.compileLiteral(elseCtx, ctx.Nil)
	} else {
		elseReg, err = c.compileExpr(elseCtx, ctx.Car(elseRest))
	}
	if err != nil {
		return 0, err
	}
	elseCtx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(elseReg)}})
	elseCtx.block.Emit(Instruction{Op: OpJmp, Encoding: EncImm, Operands: [4]Operand{BlockOperand(joinBlock.ID)}})
	c.prog.Link(elseCtx.block, joinBlock)

	cctx.block = joinBlock
	return dst, nil
}

// compileAnd lowers `and_` as a chain of conditional branches to a
// shared exit, each OpBr testing the value's truthiness itself with no
// separate truep step (eval.go's
// PrimAnd: evaluate left to right, short-circuit to the first falsy
// value, otherwise yield the last one).
func compileAnd(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	ctx := c.ctx
	items := listToSlice(ctx, args)
	if len(items) == 0 {
		return c.compileLiteral(cctx, ctx.True)
	}

	dst, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	exitBlock := c.prog.NewBlock(BlockBody, "and_exit")

	cur := cctx.block
	env := cctx.env
	for _, it := range items[:len(items)-1] {
		curCtx := &compileCtx{block: cur, env: env}
		valReg, err := c.compileExpr(curCtx, it)
		if err != nil {
			return 0, err
		}
		curCtx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(valReg)}})

		nextBlock := c.prog.NewBlock(BlockBody, "and_next")
		curCtx.block.Emit(Instruction{Op: OpBr, Encoding: EncIndexed, Operands: [4]Operand{RegOperand(valReg), BlockOperand(nextBlock.ID), BlockOperand(exitBlock.ID)}})
		c.prog.Link(curCtx.block, nextBlock)
		c.prog.Link(curCtx.block, exitBlock)
		cur = nextBlock
	}

	lastCtx := &compileCtx{block: cur, env: env}
	lastReg, err := c.compileExpr(lastCtx, items[len(items)-1])
	if err != nil {
		return 0, err
	}
	lastCtx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(lastReg)}})
	lastCtx.block.Emit(Instruction{Op: OpJmp, Encoding: EncImm, Operands: [4]Operand{BlockOperand(exitBlock.ID)}})
	c.prog.Link(lastCtx.block, exitBlock)

	cctx.block = exitBlock
	return dst, nil
}

// compileOr is compileAnd's mirror: short-circuits to the first truthy
// value, otherwise yields the last one (eval.go's PrimOr).
func compileOr(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	ctx := c.ctx
	items := listToSlice(ctx, args)
	if len(items) == 0 {
		return c.compileLiteral(cctx, ctx.False)
	}

	dst, err := c.regs.reserve()
	if err != nil {
		return 0, err
	}
	exitBlock := c.prog.NewBlock(BlockBody, "or_exit")

	cur := cctx.block
	env := cctx.env
	for _, it := range items[:len(items)-1] {
		curCtx := &compileCtx{block: cur, env: env}
		valReg, err := c.compileExpr(curCtx, it)
		if err != nil {
			return 0, err
		}
		curCtx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(valReg)}})

		nextBlock := c.prog.NewBlock(BlockBody, "or_next")
		curCtx.block.Emit(Instruction{Op: OpBr, Encoding: EncIndexed, Operands: [4]Operand{RegOperand(valReg), BlockOperand(exitBlock.ID), BlockOperand(nextBlock.ID)}})
		c.prog.Link(curCtx.block, exitBlock)
		c.prog.Link(curCtx.block, nextBlock)
		cur = nextBlock
	}

	lastCtx := &compileCtx{block: cur, env: env}
	lastReg, err := c.compileExpr(lastCtx, items[len(items)-1])
	if err != nil {
		return 0, err
	}
	lastCtx.block.Emit(Instruction{Op: OpMove, Encoding: EncReg2, Operands: [4]Operand{RegOperand(dst), RegOperand(lastReg)}})
	lastCtx.block.Emit(Instruction{Op: OpJmp, Encoding: EncImm, Operands: [4]Operand{BlockOperand(exitBlock.ID)}})
	c.prog.Link(lastCtx.block, exitBlock)

	cctx.block = exitBlock
	return dst, nil
}

func compileDo(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	ctx := c.ctx
	items := listToSlice(ctx, args)
	var last int8
	var err error
	for _, it := range items {
		last, err = c.compileExpr(cctx, it)
		if err != nil {
			return 0, err
		}
	}
	return last, nil
}

func compileQuote(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	return c.compileLiteral(cctx, c.ctx.Car(args))
}

func compileLet(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	ctx := c.ctx
	sym := ctx.Car(args)
	val, err := c.compileExpr(cctx, ctx.Car(ctx.Cdr(args)))
	if err != nil {
		return 0, err
	}
	name := ctx.SymbolName(sym)
	cctx.block.Emit(Instruction{Op: OpStore, Encoding: EncReg2, Operands: [4]Operand{LabelOperand(name), RegOperand(val)}})
	return val, nil
}

func compileError(c *Compiler, cctx *compileCtx, args Cell) (int8, error) {
	ctx := c.ctx
	items := listToSlice(ctx, args)
	regs := make([]int8, 0, len(items))
	for _, it := range items {
		r, err := c.compileExpr(cctx, it)
		if err != nil {
			return 0, err
		}
		regs = append(regs, r)
	}
	ops := [4]Operand{TrapOperand(int64(trapUserError))}
	for i, r := range regs {
		if i+1 < 4 {
			ops[i+1] = RegOperand(r)
		}
	}
	cctx.block.Emit(Instruction{Op: OpTrap, Encoding: EncIndexed, Operands: ops})
	return c.regs.reserve()
}

const trapUserError = 1
