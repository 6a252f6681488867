package scm

import "testing"

func TestEnvDefineGet(t *testing.T) {
	ctx := newTestContext(t)
	env := ctx.MakeChildEnvironment(ctx.global)
	sym := ctx.Symbol("x")
	ctx.EnvDefine(sym, ctx.Fixnum(10), env)

	v, err := ctx.EnvGet(sym, env)
	if err != nil {
		t.Fatalf("EnvGet: %v", err)
	}
	if ctx.FixnumValue(v) != 10 {
		t.Errorf("want 10, got %d", ctx.FixnumValue(v))
	}
}

func TestEnvGetWalksParentChain(t *testing.T) {
	ctx := newTestContext(t)
	parent := ctx.MakeChildEnvironment(ctx.global)
	child := ctx.MakeChildEnvironment(parent)
	sym := ctx.Symbol("y")
	ctx.EnvDefine(sym, ctx.Fixnum(7), parent)

	v, err := ctx.EnvGet(sym, child)
	if err != nil {
		t.Fatalf("EnvGet through parent chain: %v", err)
	}
	if ctx.FixnumValue(v) != 7 {
		t.Errorf("want 7, got %d", ctx.FixnumValue(v))
	}
}

func TestEnvGetUnbound(t *testing.T) {
	ctx := newTestContext(t)
	env := ctx.MakeChildEnvironment(ctx.global)
	_, err := ctx.EnvGet(ctx.Symbol("nope"), env)
	if _, ok := err.(UnboundVariableError); !ok {
		t.Fatalf("want UnboundVariableError, got %T (%v)", err, err)
	}
}

func TestEnvSetMutatesNearestFrame(t *testing.T) {
	ctx := newTestContext(t)
	parent := ctx.MakeChildEnvironment(ctx.global)
	child := ctx.MakeChildEnvironment(parent)
	sym := ctx.Symbol("z")
	ctx.EnvDefine(sym, ctx.Fixnum(1), parent)

	if err := ctx.EnvSet(sym, ctx.Fixnum(2), child); err != nil {
		t.Fatalf("EnvSet: %v", err)
	}
	v, _ := ctx.EnvGet(sym, parent)
	if ctx.FixnumValue(v) != 2 {
		t.Errorf("want the parent frame's binding mutated to 2, got %d", ctx.FixnumValue(v))
	}
}

func TestEnvSetUnboundIsAnError(t *testing.T) {
	ctx := newTestContext(t)
	env := ctx.MakeChildEnvironment(ctx.global)
	err := ctx.EnvSet(ctx.Symbol("nope"), ctx.Fixnum(1), env)
	if _, ok := err.(UnboundVariableError); !ok {
		t.Fatalf("want UnboundVariableError, got %T (%v)", err, err)
	}
}

func TestEnvDefineShadowsParent(t *testing.T) {
	ctx := newTestContext(t)
	parent := ctx.MakeChildEnvironment(ctx.global)
	child := ctx.MakeChildEnvironment(parent)
	sym := ctx.Symbol("x")
	ctx.EnvDefine(sym, ctx.Fixnum(1), parent)
	ctx.EnvDefine(sym, ctx.Fixnum(2), child)

	v, _ := ctx.EnvGet(sym, child)
	if ctx.FixnumValue(v) != 2 {
		t.Errorf("child's own binding should shadow the parent's, got %d", ctx.FixnumValue(v))
	}
	v, _ = ctx.EnvGet(sym, parent)
	if ctx.FixnumValue(v) != 1 {
		t.Errorf("parent's binding should be untouched, got %d", ctx.FixnumValue(v))
	}
}
