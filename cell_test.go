package scm

import "testing"

func newTestContext(t *testing.T) *Context {
	t.Helper()
	ctx := NewContext(arenaMinCells, NewConfig())
	t.Cleanup(ctx.Close)
	return ctx
}

func TestConsCarCdr(t *testing.T) {
	ctx := newTestContext(t)
	a := ctx.Fixnum(1)
	b := ctx.Fixnum(2)
	pair := ctx.Cons(a, b)

	if ctx.Type(pair) != TypePair {
		t.Fatalf("expected pair, got %s", ctx.Type(pair))
	}
	if got := ctx.FixnumValue(ctx.Car(pair)); got != 1 {
		t.Errorf("car: want 1, got %d", got)
	}
	if got := ctx.FixnumValue(ctx.Cdr(pair)); got != 2 {
		t.Errorf("cdr: want 2, got %d", got)
	}

	ctx.SetCar(pair, ctx.Fixnum(9))
	if got := ctx.FixnumValue(ctx.Car(pair)); got != 9 {
		t.Errorf("setcar: want 9, got %d", got)
	}
}

func TestFlonumRoundtrip(t *testing.T) {
	ctx := newTestContext(t)
	f := ctx.Flonum(3.5)
	if ctx.Type(f) != TypeFlonum {
		t.Fatalf("expected flonum, got %s", ctx.Type(f))
	}
	if got := ctx.FlonumValue(f); got != 3.5 {
		t.Errorf("want 3.5, got %v", got)
	}
}

func TestSymbolInterning(t *testing.T) {
	ctx := newTestContext(t)
	a := ctx.Symbol("foo")
	b := ctx.Symbol("foo")
	if a.Index() != b.Index() {
		t.Errorf("expected same cell for repeated Symbol() calls, got %d and %d", a.Index(), b.Index())
	}
	c := ctx.Symbol("bar")
	if a.Index() == c.Index() {
		t.Errorf("distinct symbol names got the same cell")
	}
	if ctx.SymbolName(a) != "foo" {
		t.Errorf("SymbolName: want foo, got %s", ctx.SymbolName(a))
	}
}

func TestBoolPredicates(t *testing.T) {
	ctx := newTestContext(t)
	if !ctx.IsTrue(ctx.True) || ctx.IsTrue(ctx.False) || ctx.IsTrue(ctx.Nil) {
		t.Errorf("IsTrue misbehaved")
	}
	if !ctx.IsFalse(ctx.False) || !ctx.IsFalse(ctx.Nil) || ctx.IsFalse(ctx.True) {
		t.Errorf("IsFalse misbehaved")
	}
	if ctx.Bool(true).Index() != ctx.True.Index() || ctx.Bool(false).Index() != ctx.False.Index() {
		t.Errorf("Bool() didn't map to the sentinel cells")
	}
}

func TestMakeObjectReusesFreedCells(t *testing.T) {
	ctx := newTestContext(t)
	// Allocate and immediately orphan a bunch of pairs, then collect.
	for i := 0; i < 16; i++ {
		ctx.Cons(ctx.Fixnum(int32(i)), ctx.Nil)
	}
	afterAlloc := len(ctx.objects)

	ctx.Collect()
	if ctx.freeHead == 0 {
		t.Fatalf("expected freed cells after collecting garbage pairs")
	}
	// Reusing the free list shouldn't grow the underlying arena.
	ctx.Cons(ctx.Fixnum(99), ctx.Nil)
	if len(ctx.objects) > afterAlloc {
		t.Errorf("arena grew past what collection should have reclaimed: %d objects (was %d)", len(ctx.objects), afterAlloc)
	}
}
