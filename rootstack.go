package scm

// rootStack is the GC's root set: a stack of live cells plus marks
// that let a caller snapshot and later discard everything pushed
// since the mark, the same save/restore-mark shape the teacher's
// parser stack uses for backtracking (vm_stack.go's `stack`), here
// repurposed to scope the lifetime of temporaries built mid-evaluation
// so the mark-sweep collector can find them (spec.md §4.2).
type rootStack struct {
	cells []Cell
}

func (s *rootStack) push(cells ...Cell) {
	s.cells = append(s.cells, cells...)
}

func (s *rootStack) len() int { return len(s.cells) }

// mark returns a save point to later pass to restore.
func (s *rootStack) mark() int { return len(s.cells) }

// restore discards every root pushed after `m`.
func (s *rootStack) restore(m int) {
	s.cells = s.cells[:m]
}

func (s *rootStack) walk(fn func(Cell)) {
	for _, c := range s.cells {
		fn(c)
	}
}

// PushRoot protects a cell from collection until the next matching
// RestoreRoots call. Returns the mark so callers can restore precisely
// (spec.md §4.2, "push_root").
func (ctx *Context) PushRoot(c Cell) int {
	ctx.roots.push(c)
	return ctx.roots.len() - 1
}

// SaveRoots returns the current root-stack mark (spec.md §4.2,
// "save_roots").
func (ctx *Context) SaveRoots() int { return ctx.roots.mark() }

// RestoreRoots discards every root pushed since `mark` (spec.md §4.2,
// "restore_roots").
func (ctx *Context) RestoreRoots(mark int) { ctx.roots.restore(mark) }
