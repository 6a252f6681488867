package scm

import "github.com/davecgh/go-spew/spew"

// Collect runs a full mark-sweep cycle over the object arena: every
// cell reachable from the root stack, the global environment, the
// call list, and the symbol table survives; everything else is
// threaded onto the free list (spec.md §4.3, "collect").
func (ctx *Context) Collect() {
	if ctx.cfg.GetBool("heap.gc_trace") {
		ctx.logf("gc: begin, %d/%d cells in use", ctx.used, len(ctx.objects))
	}

	for i := range ctx.objects {
		ctx.objects[i].mark = false
	}

	ctx.markCell(ctx.Nil)
	ctx.markCell(ctx.True)
	ctx.markCell(ctx.False)
	ctx.markCell(ctx.dot)
	ctx.markCell(ctx.rparen)
	ctx.markCell(ctx.rbrk)
	ctx.markCell(ctx.global)
	ctx.markCell(ctx.callList)
	for _, c := range ctx.symTable {
		ctx.markCell(c)
	}
	ctx.roots.walk(ctx.markCell)
	for i := range ctx.envs {
		if ctx.envs[i].gcProtect {
			ctx.envs[i].bindings.Iter(func(_ int32, c Cell) bool {
				ctx.markCell(c)
				return false
			})
		}
	}

	ctx.sweep()

	if ctx.cfg.GetBool("heap.gc_trace") {
		ctx.logf("gc: end, %d/%d cells in use", ctx.used, len(ctx.objects))
	}
}

func (ctx *Context) markCell(c Cell) {
	if int(c.idx) >= len(ctx.objects) {
		return
	}
	d := &ctx.objects[c.idx]
	if d.mark {
		return
	}
	d.mark = true

	switch d.typ {
	case TypePair:
		ctx.markCell(Cell{idx: d.car})
		ctx.markCell(Cell{idx: d.cdr})
	case TypeFunc, TypeMacro:
		p := &ctx.procs[d.value]
		ctx.markCell(p.params)
		ctx.markCell(p.body)
		ctx.markCell(p.env)
	case TypePtr:
		if d.ptr == 1 { // environment
			e := &ctx.envs[d.value]
			ctx.markCell(e.parent)
			e.bindings.Iter(func(_ int32, v Cell) bool {
				ctx.markCell(v)
				return false
			})
		}
	}
}

func (ctx *Context) sweep() {
	// Recount from index 0: the reserved Nil sentinel is always marked
	// (Collect marks it explicitly), so it belongs in the live count.
	ctx.used = 0
	for i := 0; i < len(ctx.objects); i++ {
		d := &ctx.objects[i]
		if d.mark {
			ctx.used++
			continue
		}
		if d.typ == TypeFree {
			continue
		}
		*d = cellData{typ: TypeFree, cdr: ctx.freeHead}
		ctx.freeHead = int32(i)
	}
}

// DumpHeap renders the live object graph for debugging and GC
// invariant tests, using go-spew instead of a hand-rolled recursive
// printer (SPEC_FULL.md §3).
func (ctx *Context) DumpHeap() string {
	return spew.Sdump(ctx.objects)
}
