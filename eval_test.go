package scm

import "testing"

func evalOne(t *testing.T, ctx *Context, src string) Cell {
	t.Helper()
	v, err := ctx.EvalString(src)
	if err != nil {
		t.Fatalf("EvalString(%q): %v", src, err)
	}
	return v
}

func TestEvalArithmetic(t *testing.T) {
	ctx := newTestContext(t)
	// add/sub/mul/div coerce through flonum unconditionally, even when
	// every operand is a fixnum (spec.md §4.5; original_source's
	// scm.cpp add/sub/mul/div all call to_flonum/make_flonum).
	v := evalOne(t, ctx, "(add 1 2 3)")
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 6 {
		t.Errorf("(add 1 2 3) = %s, want flonum 6", ctx.Write(v))
	}

	v = evalOne(t, ctx, "(sub 10 1 2)")
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 7 {
		t.Errorf("(sub 10 1 2) = %s, want flonum 7", ctx.Write(v))
	}

	v = evalOne(t, ctx, "(div 1 2)")
	if ctx.Type(v) != TypeFlonum {
		t.Errorf("(div 1 2) should promote to flonum, got %s", ctx.Type(v))
	}

	v = evalOne(t, ctx, "(mod 10 3)")
	if ctx.Type(v) != TypeFixnum || ctx.FixnumValue(v) != 1 {
		t.Errorf("(mod 10 3) = %s, want fixnum 1", ctx.Write(v))
	}

	_, err := ctx.EvalString("(mod 10.0 3)")
	if _, ok := err.(TypeMismatchError); !ok {
		t.Errorf("(mod 10.0 3) should reject a flonum operand, got %T (%v)", err, err)
	}
}

func TestEvalIf(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOne(t, ctx, "(if_ (gt 2 1) 10 20)")
	if ctx.FixnumValue(v) != 10 {
		t.Errorf("want 10, got %d", ctx.FixnumValue(v))
	}
	v = evalOne(t, ctx, "(if_ (gt 1 2) 10 20)")
	if ctx.FixnumValue(v) != 20 {
		t.Errorf("want 20, got %d", ctx.FixnumValue(v))
	}
	v = evalOne(t, ctx, "(if_ #f 10)")
	if !ctx.IsNil(v) {
		t.Errorf("if_ with no else and a false condition should yield nil, got %s", ctx.Write(v))
	}
}

func TestEvalLetAndSet(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let x 5)")
	v := evalOne(t, ctx, "x")
	if ctx.FixnumValue(v) != 5 {
		t.Errorf("want 5, got %d", ctx.FixnumValue(v))
	}
	evalOne(t, ctx, "(set x 6)")
	v = evalOne(t, ctx, "x")
	if ctx.FixnumValue(v) != 6 {
		t.Errorf("want 6, got %d", ctx.FixnumValue(v))
	}
}

func TestEvalFnApplicationAndRecursion(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let square (fn (x) (mul x x)))")
	v := evalOne(t, ctx, "(square 5)")
	// mul always coerces through flonum (spec.md §4.5).
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 25 {
		t.Errorf("(square 5) = %s, want flonum 25", ctx.Write(v))
	}

	evalOne(t, ctx, `
		(let fact (fn (n)
		  (if_ (lte n 1)
		       1
		       (mul n (fact (sub n 1))))))
	`)
	v = evalOne(t, ctx, "(fact 6)")
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 720 {
		t.Errorf("(fact 6) = %s, want flonum 720", ctx.Write(v))
	}
}

func TestEvalDottedRestArgs(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let rest (fn xs (list xs)))")
	v := evalOne(t, ctx, "(rest 1 2 3)")
	if got := ctx.Write(v); got != "((1 2 3))" {
		t.Errorf("want ((1 2 3)), got %s", got)
	}
}

func TestEvalAndOrShortCircuit(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOne(t, ctx, "(and_ 1 2 3)")
	if ctx.FixnumValue(v) != 3 {
		t.Errorf("(and_ 1 2 3) = %v, want 3", ctx.Write(v))
	}
	v = evalOne(t, ctx, "(and_ 1 #f 3)")
	if !ctx.IsFalse(v) {
		t.Errorf("(and_ 1 #f 3) should short-circuit to #f, got %v", ctx.Write(v))
	}
	v = evalOne(t, ctx, "(or_ #f #f 7)")
	if ctx.FixnumValue(v) != 7 {
		t.Errorf("(or_ #f #f 7) = %v, want 7", ctx.Write(v))
	}
}

func TestEvalWhileLoop(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let i 0)")
	evalOne(t, ctx, "(let acc 0)")
	evalOne(t, ctx, "(while_ (lt i 5) (set acc (add acc i)) (set i (add i 1)))")
	v := evalOne(t, ctx, "acc")
	// add always coerces through flonum (spec.md §4.5).
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 10 {
		t.Errorf("want flonum 10, got %s", ctx.Write(v))
	}
}

func TestEvalQuoteAndIs(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOne(t, ctx, "(is (quote (1 2 3)) (list 1 2 3))")
	if !ctx.IsTrue(v) {
		t.Errorf("structurally equal lists should compare (is) true, got %v", ctx.Write(v))
	}
	v = evalOne(t, ctx, "(is 1 1.0)")
	if !ctx.IsTrue(v) {
		t.Errorf("(is 1 1.0) should coerce numerically to true, got %v", ctx.Write(v))
	}
}

func TestEvalQuasiquoteSplice(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let xs (list 2 3))")
	v := evalOne(t, ctx, "`(1 ,@xs 4)")
	if got := ctx.Write(v); got != "(1 2 3 4)" {
		t.Errorf("want (1 2 3 4), got %s", got)
	}
}

func TestEvalMacroExpansion(t *testing.T) {
	ctx := newTestContext(t)
	evalOne(t, ctx, "(let my-add (mac (a b) (list (quote add) a b)))")
	v := evalOne(t, ctx, "(my-add 2 3)")
	// The expansion (add 2 3) coerces through flonum (spec.md §4.5).
	if ctx.Type(v) != TypeFlonum || ctx.FlonumValue(v) != 5 {
		t.Errorf("(my-add 2 3) = %v, want flonum 5", ctx.Write(v))
	}
}

func TestEvalErrorPrimitive(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.EvalString(`(error "boom" 42)`)
	ue, ok := err.(UserError)
	if !ok {
		t.Fatalf("want UserError, got %T (%v)", err, err)
	}
	if len(ue.Args) != 2 {
		t.Errorf("want 2 error args, got %d", len(ue.Args))
	}
}

func TestEvalUnboundVariable(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.EvalString("totally-undefined-name")
	if _, ok := err.(UnboundVariableError); !ok {
		t.Fatalf("want UnboundVariableError, got %T (%v)", err, err)
	}
}

func TestEvalConsCarCdrPrimitives(t *testing.T) {
	ctx := newTestContext(t)
	v := evalOne(t, ctx, "(car (cons 1 2))")
	if ctx.FixnumValue(v) != 1 {
		t.Errorf("want 1, got %d", ctx.FixnumValue(v))
	}
	v = evalOne(t, ctx, "(cdr (cons 1 2))")
	if ctx.FixnumValue(v) != 2 {
		t.Errorf("want 2, got %d", ctx.FixnumValue(v))
	}
}
