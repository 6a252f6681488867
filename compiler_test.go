package scm

import "testing"

func TestCompileArithmeticRunsThroughVM(t *testing.T) {
	ctx := newTestContext(t)
	prog, err := ctx.CompileString("(add 1 2 3)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err := ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	// add always coerces through flonum, compiled or tree-walked alike
	// (spec.md §4.5).
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 6 {
		t.Errorf("(add 1 2 3) compiled = %s, want flonum 6", ctx.Write(v))
	}
}

func TestCompileIfRunsThroughVM(t *testing.T) {
	ctx := newTestContext(t)

	prog, err := ctx.CompileString("(if_ (gt 2 1) 10 20)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err := ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if got := ctx.FixnumValue(v); got != 10 {
		t.Errorf("true branch compiled = %d, want 10", got)
	}

	prog, err = ctx.CompileString("(if_ (gt 1 2) 10 20)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err = ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if got := ctx.FixnumValue(v); got != 20 {
		t.Errorf("false branch compiled = %d, want 20", got)
	}
}

// TestCompileProcedureCallRunsThroughVM exercises the compileCall ->
// compileProcedure path: the caller pushes its argument before the
// Call instruction, and the callee's prologue must not bury that
// pushed argument under its own saved lr/fp before popping it.
func TestCompileProcedureCallRunsThroughVM(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let double (fn (x) (mul x x)))")

	prog, err := ctx.CompileString("(double 5)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err := ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	// mul always coerces through flonum (spec.md §4.5).
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 25 {
		t.Errorf("(double 5) compiled = %s, want flonum 25", ctx.Write(v))
	}
}

// TestCompileSquareMatchesEndToEndScenario mirrors spec.md §8's
// end-to-end scenario: compile (let sq (fn (x) (mul x x))) (sq 7),
// assemble, run, and check the return register holds a flonum 49.0 —
// confirms OpListOp boxes its result rather than leaving a raw
// register int for RunProgram to misread as an arena index.
func TestCompileSquareMatchesEndToEndScenario(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let sq (fn (x) (mul x x)))")

	prog, err := ctx.CompileString("(sq 7)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err := ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 49 {
		t.Errorf("(sq 7) compiled = %s, want flonum 49", ctx.Write(v))
	}
}

// TestCompileAndOrShortCircuitRunsThroughVM exercises compileAnd's/
// compileOr's block-chain lowering end to end, including the
// short-circuit case where the compiled condition register holds a
// boxed ctx.False cell rather than a raw zero (review comment on
// OpBr's truthiness check).
func TestCompileAndOrShortCircuitRunsThroughVM(t *testing.T) {
	ctx := newTestContext(t)

	prog, err := ctx.CompileString("(and_ 1 2 3)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err := ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if ctx.FixnumValue(v) != 3 {
		t.Errorf("(and_ 1 2 3) compiled = %s, want 3", ctx.Write(v))
	}

	prog, err = ctx.CompileString("(and_ 1 #f 3)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err = ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if !ctx.IsFalse(v) {
		t.Errorf("(and_ 1 #f 3) compiled should short-circuit to #f, got %s", ctx.Write(v))
	}

	prog, err = ctx.CompileString("(or_ #f #f 7)")
	if err != nil {
		t.Fatalf("CompileString: %v", err)
	}
	v, err = ctx.RunProgram(prog)
	if err != nil {
		t.Fatalf("RunProgram: %v", err)
	}
	if ctx.FixnumValue(v) != 7 {
		t.Errorf("(or_ #f #f 7) compiled = %s, want 7", ctx.Write(v))
	}
}

func TestCheckLivenessRejectsOverflowingBlock(t *testing.T) {
	// Synthesize intervals that all overlap at the same instruction,
	// one more than the register pool holds, without going through the
	// compiler (which never emits that many concurrently-live values
	// for a block this small).
	intervals := make([]liveInterval, 0, numRegisters+1)
	for i := 0; i <= numRegisters; i++ {
		intervals = append(intervals, liveInterval{
			variable: &VirtualVariable{Symbol: regName(int8(i))},
			start:    0,
			end:      10,
		})
	}
	if err := allocate(intervals); err == nil {
		t.Fatalf("want RegisterPressureError when active set exceeds the pool, got nil")
	} else if _, ok := err.(RegisterPressureError); !ok {
		t.Fatalf("want RegisterPressureError, got %T (%v)", err, err)
	}
}

func TestAssembleUnresolvedLabelOnDanglingJumpTarget(t *testing.T) {
	prog := NewProgram()
	entry := prog.NewBlock(BlockEntry, "entry")
	prog.Entry = entry.ID
	// Jump to a block id that was never created with NewBlock.
	entry.Emit(Instruction{Op: OpJmp, Encoding: EncImm, Operands: [4]Operand{BlockOperand(999)}})

	_, err := Assemble(prog)
	if _, ok := err.(UnresolvedLabelError); !ok {
		t.Fatalf("want UnresolvedLabelError, got %T (%v)", err, err)
	}
}
