package scm

import "testing"

func TestCollectPreservesRootedCells(t *testing.T) {
	ctx := newTestContext(t)

	mark := ctx.SaveRoots()
	protected := ctx.Cons(ctx.Fixnum(1), ctx.Cons(ctx.Fixnum(2), ctx.Nil))
	ctx.PushRoot(protected)

	// Garbage the GC should be free to reclaim.
	for i := 0; i < 8; i++ {
		ctx.Cons(ctx.Fixnum(int32(i)), ctx.Nil)
	}

	ctx.Collect()

	if got := ctx.Write(protected); got != "(1 2)" {
		t.Fatalf("rooted cell was mangled by collection: %s", got)
	}

	ctx.RestoreRoots(mark)
}

func TestCollectPreservesGlobalBindings(t *testing.T) {
	ctx := newTestContext(t)
	ctx.EnvDefine(ctx.Symbol("kept"), ctx.Fixnum(42), ctx.global)

	for i := 0; i < 8; i++ {
		ctx.Cons(ctx.Fixnum(int32(i)), ctx.Nil)
	}
	ctx.Collect()

	v, err := ctx.EnvGet(ctx.Symbol("kept"), ctx.global)
	if err != nil {
		t.Fatalf("global binding lost after collection: %v", err)
	}
	if ctx.FixnumValue(v) != 42 {
		t.Errorf("want 42, got %d", ctx.FixnumValue(v))
	}
}

func TestDumpHeapDoesNotPanic(t *testing.T) {
	ctx := newTestContext(t)
	ctx.Cons(ctx.Fixnum(1), ctx.Nil)
	if s := ctx.DumpHeap(); s == "" {
		t.Errorf("DumpHeap returned an empty string")
	}
}
