package scm

import "github.com/dolthub/swiss"

// interner assigns dense integer ids to byte sequences, the same
// "intern once, compare by id forever" contract spec.md §3 (C2)
// requires for symbols, strings and keywords. Backed by a SwissTable
// map (SPEC_FULL.md §3): this table is on the hot path of every
// `eval`/`compile` call, the shape dolthub/swiss targets.
type interner struct {
	ids     *swiss.Map[string, int32]
	strings []string
}

func newInterner() *interner {
	return &interner{
		ids:     swiss.NewMap[string, int32](64),
		strings: []string{""}, // id 0 is reserved/unused
	}
}

// intern returns the dense id for s, allocating a fresh one if s has
// never been seen (spec.md §3, "intern").
func (in *interner) intern(s string) int32 {
	if id, ok := in.ids.Get(s); ok {
		return id
	}
	id := int32(len(in.strings))
	in.strings = append(in.strings, s)
	in.ids.Put(s, id)
	return id
}

func (in *interner) mustIntern(s string) int32 { return in.intern(s) }

// lookup returns the string registered under id (spec.md §3,
// "lookup").
func (in *interner) lookup(id int32) (string, bool) {
	if id <= 0 || int(id) >= len(in.strings) {
		return "", false
	}
	return in.strings[id], true
}
