package scm

import (
	"sort"
	"strconv"
)

// liveInterval is one virtual variable's live range within a single
// block: [firstDef, lastUse], split at block boundaries the way
// spec.md §8 (C8) describes.
type liveInterval struct {
	variable *VirtualVariable
	start    int32
	end      int32
}

// findLiveness computes, for every basic block, the live intervals of
// its virtual variables by scanning instruction operands for register
// defs/uses (spec.md §8, "find_liveness"). Registers referenced by
// Operand{Kind: OperandReg} are treated as the variable "r<N>" for
// this pass; the compiler's own R0-R15 pool already assigns physical
// registers directly, so this allocator's job in this port is to
// re-validate that no block ever needs more concurrently-live values
// than the pool holds, returning RegisterPressureError if it does.
func findLiveness(b *BasicBlock) []liveInterval {
	first := map[int8]int32{}
	last := map[int8]int32{}
	var order []int8

	for _, in := range b.Instructions {
		for _, op := range in.Operands {
			if op.Kind != OperandReg {
				continue
			}
			if _, ok := first[op.Reg]; !ok {
				first[op.Reg] = in.ID
				order = append(order, op.Reg)
			}
			last[op.Reg] = in.ID
		}
	}

	intervals := make([]liveInterval, 0, len(order))
	for _, r := range order {
		intervals = append(intervals, liveInterval{
			variable: &VirtualVariable{Symbol: regName(r), LiveStart: first[r], LiveEnd: last[r]},
			start:    first[r],
			end:      last[r],
		})
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })
	return intervals
}

func regName(r int8) string {
	return "r" + strconv.Itoa(int(r))
}

// allocate runs a linear-scan pass over `intervals`: an `active` list
// retires expired intervals as the scan reaches each new interval's
// start, then checks the pool still has room (spec.md §8, "allocate").
// Spilling is out of scope (spec.md §9's Open Question): once the
// active set exceeds the register pool with nothing left to retire,
// this returns RegisterPressureError — the seam a future spill pass
// would fill (SPEC_FULL.md §5).
func allocate(intervals []liveInterval) error {
	var active []liveInterval
	for _, iv := range intervals {
		filtered := active[:0]
		for _, a := range active {
			if a.end >= iv.start {
				filtered = append(filtered, a)
			}
		}
		active = filtered

		if len(active) >= numRegisters {
			return RegisterPressureError{Version: iv.variable.Symbol}
		}
		active = append(active, iv)
	}
	return nil
}

// CheckLiveness runs findLiveness+allocate over every block in p,
// surfacing the first RegisterPressureError found.
func (p *Program) CheckLiveness() error {
	for _, b := range p.Blocks {
		if err := allocate(findLiveness(b)); err != nil {
			return err
		}
	}
	return nil
}
