package scm

import (
	"math"

	"github.com/dolthub/swiss"
)

// Type is the 6-bit discriminator every cell carries. The evaluator,
// printer and GC mark routine all switch on it rather than using
// virtual dispatch (spec.md §9, "Dynamic dispatch on object type").
type Type uint8

const (
	TypePair Type = iota
	TypeFree
	TypeNil
	TypeFixnum
	TypeFlonum
	TypeSymbol
	TypeString
	TypeFunc
	TypeMacro
	TypePrim
	TypeCFunc
	TypePtr
	TypeBoolean
	TypeKeyword
	TypeFFI
	TypeError
	typeCount
)

var typeNames = [typeCount]string{
	TypePair:    "pair",
	TypeFree:    "free",
	TypeNil:     "nil",
	TypeFixnum:  "fixnum",
	TypeFlonum:  "flonum",
	TypeSymbol:  "symbol",
	TypeString:  "string",
	TypeFunc:    "func",
	TypeMacro:   "macro",
	TypePrim:    "prim",
	TypeCFunc:   "cfunc",
	TypePtr:     "ptr",
	TypeBoolean: "boolean",
	TypeKeyword: "keyword",
	TypeFFI:     "ffi",
	TypeError:   "error",
}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Cell is a handle into a Context's object arena. It is a value type
// (4 bytes: a single int32 slot index, with no type tag or
// generation), copied freely the way the original's `obj_t*`
// pointers were passed around. Two Cells are `==` iff they name the
// same arena slot.
type Cell struct {
	idx int32
}

// Index returns the arena slot index this handle names.
func (c Cell) Index() int32 { return c.idx }

// cellData is the arena's backing storage for one slot. Unlike the
// original C++ `obj_t` this isn't bit-packed into 8 bytes — Go has no
// portable bitfields — but it preserves the same addressing model:
// pairs reference other slots by index, numbers/interned-strings are
// stored by 32-bit id. See DESIGN.md for the tradeoff.
type cellData struct {
	typ  Type
	mark bool

	// pair
	car, cdr int32

	// fixnum (int32) / flonum (float32 bits) / symbol,string,keyword
	// (interned id) / boolean (0/1) / prim (opcode) / cfunc,ptr,ffi
	// (native table index)
	value int32

	// ptr is 1 on environment cells, telling them apart from native
	// ptr cells. Environment cells keep their index into Context.envs,
	// and func/macro cells their index into Context.procs, in value.
	ptr int32
}

// procDescriptor backs func/macro cells (spec.md §3, "Procedure
// descriptor").
type procDescriptor struct {
	params   Cell
	body     Cell
	env      Cell
	isMacro  bool
	compiled bool
	entry    int32 // word address in the VM's code area, once compiled
}

// envDescriptor backs environment cells (spec.md §3, "Environment
// descriptor").
type envDescriptor struct {
	parent    Cell
	bindings  *swiss.Map[int32, Cell] // interned-string id -> cell
	gcProtect bool
}

// arenaMinCells must leave room beyond the bootstrap, which alone takes
// 7+2*primCount cells (sentinels, the global environment, and one
// symbol plus one prim cell per primitive).
const arenaMinCells = 256

// Context is the interpreter's single value-type owner of every
// mutable resource: the object arena, free list, GC root stack,
// string/symbol tables, native-pointer table, FFI registry, call-list
// and the compiled-code VM. It must be initialized with NewContext and
// torn down with Close once; there is no process-wide state (spec.md
// §9, "Global mutable context").
type Context struct {
	cfg *Config

	objects []cellData
	used    int32

	freeHead int32 // index of first free cell, or 0 when the list is empty

	procs []procDescriptor
	envs  []envDescriptor

	strings *interner

	// symTable maps an interned-string id to the unique symbol cell
	// for it, so `equal?` on symbols reduces to id comparison.
	symTable map[int32]Cell

	roots rootStack

	// callList is a cons-list of symbol cells, most recent call
	// first, used for error call-stacks (spec.md §5, "Ordering
	// guarantees").
	callList Cell

	lastError *UserError

	nativePtrs []any
	ffi        *ffiRegistry

	global Cell

	Nil, True, False  Cell
	dot, rparen, rbrk Cell

	vm *machine

	errorHook func(error)
}

// NewContext allocates a fresh arena sized to hold at least `cells`
// objects (spec.md §6, "The host initializes a context over a
// caller-provided memory region of byte size S" — here sized in
// cells rather than bytes, since this port has no raw memory region to
// carve up).
func NewContext(cells int, cfg *Config) *Context {
	if cfg == nil {
		cfg = NewConfig()
	}
	if cells < arenaMinCells {
		cells = arenaMinCells
	}
	ctx := &Context{
		cfg:      cfg,
		objects:  make([]cellData, 1, cells),
		strings:  newInterner(),
		symTable: map[int32]Cell{},
		ffi:      newFFIRegistry(),
	}
	ctx.objects[0] = cellData{typ: TypeNil}
	ctx.Nil = Cell{idx: 0}
	ctx.used = 1

	ctx.True = ctx.allocRaw(cellData{typ: TypeBoolean, value: 1})
	ctx.False = ctx.allocRaw(cellData{typ: TypeBoolean, value: 0})
	ctx.dot = ctx.allocRaw(cellData{typ: TypeSymbol, value: ctx.strings.mustIntern(".")})
	ctx.rparen = ctx.allocRaw(cellData{typ: TypeSymbol, value: ctx.strings.mustIntern(")")})
	ctx.rbrk = ctx.allocRaw(cellData{typ: TypeSymbol, value: ctx.strings.mustIntern("]")})

	ctx.roots.push(ctx.Nil, ctx.True, ctx.False)

	ctx.global = ctx.MakeEnvironment(ctx.Nil)
	ctx.protectEnvironment(ctx.global, true)
	ctx.vm = newMachine(ctx, cfg.GetInt("vm.heap_words"))

	installBuiltinPrimitives(ctx)
	return ctx
}

// Close frees every subsidiary table the context allocated. It does
// not (and cannot, in this port) free the region itself, since Go's
// GC owns the backing array (spec.md §6, "Teardown frees only what the
// context allocated, not the region itself").
func (ctx *Context) Close() {
	ctx.objects = nil
	ctx.procs = nil
	ctx.envs = nil
	ctx.nativePtrs = nil
	ctx.strings = nil
	ctx.symTable = nil
	ctx.ffi = nil
	ctx.vm = nil
}

func (ctx *Context) cell(c Cell) *cellData {
	return &ctx.objects[c.idx]
}

func (ctx *Context) Type(c Cell) Type { return ctx.cell(c).typ }

func (ctx *Context) IsNil(c Cell) bool  { return c.idx == ctx.Nil.idx }
func (ctx *Context) IsTrue(c Cell) bool { return !ctx.IsNil(c) && c.idx == ctx.True.idx }
func (ctx *Context) IsFalse(c Cell) bool {
	return ctx.IsNil(c) || c.idx == ctx.False.idx
}

// Bool converts a Go bool to the Scheme boolean cell.
func (ctx *Context) Bool(b bool) Cell {
	if b {
		return ctx.True
	}
	return ctx.False
}

// allocRaw installs a fully-formed cellData into a fresh slot without
// going through the free list; only used for bootstrapping sentinels
// that must never be collected.
func (ctx *Context) allocRaw(d cellData) Cell {
	idx := int32(len(ctx.objects))
	ctx.objects = append(ctx.objects, d)
	ctx.used++
	return Cell{idx: idx}
}

// MakeObject pops a cell off the free list, or takes the arena's next
// unused slot. When the free list is empty and the arena is full it
// runs a collection, failing with OutOfMemoryError if the collection
// can't free anything (spec.md §4.1).
func (ctx *Context) MakeObject() (Cell, error) {
	if ctx.freeHead == 0 && len(ctx.objects) == cap(ctx.objects) {
		ctx.Collect()
		if ctx.freeHead == 0 {
			return Cell{}, OutOfMemoryError{Requested: "cell"}
		}
	}
	if ctx.freeHead != 0 {
		idx := ctx.freeHead
		cell := &ctx.objects[idx]
		ctx.freeHead = cell.cdr
		*cell = cellData{}
		ctx.used++
		return Cell{idx: idx}, nil
	}
	idx := int32(len(ctx.objects))
	ctx.objects = append(ctx.objects, cellData{})
	ctx.used++
	return Cell{idx: idx}, nil
}

func (ctx *Context) mustMakeObject() Cell {
	c, err := ctx.MakeObject()
	if err != nil {
		panic(err)
	}
	return c
}

// Cons allocates a pair cell.
func (ctx *Context) Cons(car, cdr Cell) Cell {
	c := ctx.mustMakeObject()
	d := ctx.cell(c)
	d.typ = TypePair
	d.car = car.idx
	d.cdr = cdr.idx
	return c
}

func (ctx *Context) Car(c Cell) Cell {
	if ctx.IsNil(c) {
		return ctx.Nil
	}
	return Cell{idx: ctx.cell(c).car}
}

func (ctx *Context) Cdr(c Cell) Cell {
	if ctx.IsNil(c) {
		return ctx.Nil
	}
	return Cell{idx: ctx.cell(c).cdr}
}

func (ctx *Context) SetCar(c, v Cell) { ctx.cell(c).car = v.idx }
func (ctx *Context) SetCdr(c, v Cell) { ctx.cell(c).cdr = v.idx }

// Fixnum allocates a fixnum cell.
func (ctx *Context) Fixnum(v int32) Cell {
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeFixnum
	ctx.cell(c).value = v
	return c
}

func (ctx *Context) FixnumValue(c Cell) int32 { return ctx.cell(c).value }

// Flonum allocates a flonum cell, storing the float32 bit pattern in
// the 32-bit payload (spec.md §3, "flonum").
func (ctx *Context) Flonum(v float32) Cell {
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeFlonum
	ctx.cell(c).value = int32(float32bits(v))
	return c
}

func (ctx *Context) FlonumValue(c Cell) float32 {
	return float32frombits(uint32(ctx.cell(c).value))
}

func (ctx *Context) IsNumber(c Cell) bool {
	t := ctx.Type(c)
	return t == TypeFixnum || t == TypeFlonum
}

// NumberValue returns a cell's numeric value widened to float64,
// regardless of whether it's a fixnum or flonum.
func (ctx *Context) NumberValue(c Cell) float64 {
	if ctx.Type(c) == TypeFixnum {
		return float64(ctx.FixnumValue(c))
	}
	return float64(ctx.FlonumValue(c))
}

// Symbol interns `name` and returns its (unique) symbol cell, creating
// one if this is the first time the name has been seen (spec.md §3,
// "A symbol's interned-string ID uniquely identifies it").
func (ctx *Context) Symbol(name string) Cell {
	id := ctx.strings.mustIntern(name)
	if c, ok := ctx.symTable[id]; ok {
		return c
	}
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeSymbol
	ctx.cell(c).value = id
	ctx.symTable[id] = c
	return c
}

func (ctx *Context) SymbolName(c Cell) string {
	s, _ := ctx.strings.lookup(ctx.cell(c).value)
	return s
}

// Keyword allocates a `#:ident` keyword cell.
func (ctx *Context) Keyword(name string) Cell {
	id := ctx.strings.mustIntern(name)
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeKeyword
	ctx.cell(c).value = id
	return c
}

// String allocates a string cell over an interned byte sequence.
func (ctx *Context) String(s string) Cell {
	id := ctx.strings.mustIntern(s)
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeString
	ctx.cell(c).value = id
	return c
}

func (ctx *Context) StringValue(c Cell) string {
	s, _ := ctx.strings.lookup(ctx.cell(c).value)
	return s
}

// Prim allocates a primitive-opcode cell.
func (ctx *Context) Prim(op PrimOp) Cell {
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypePrim
	ctx.cell(c).value = int32(op)
	return c
}

func (ctx *Context) PrimOp(c Cell) PrimOp { return PrimOp(ctx.cell(c).value) }

// CFunc is a host function directly callable from the evaluator.
type CFunc func(ctx *Context, args []Cell) (Cell, error)

// RegisterCFunc installs a host function in the native-pointer side
// table and returns a cfunc cell for it.
func (ctx *Context) RegisterCFunc(fn CFunc) Cell {
	idx := int32(len(ctx.nativePtrs))
	ctx.nativePtrs = append(ctx.nativePtrs, fn)
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypeCFunc
	ctx.cell(c).value = idx
	return c
}

func (ctx *Context) cfuncAt(c Cell) CFunc {
	return ctx.nativePtrs[ctx.cell(c).value].(CFunc)
}

// MakeEnvironment allocates a fresh environment descriptor with the
// given parent and returns its cell (spec.md §4.4).
func (ctx *Context) MakeEnvironment(parent Cell) Cell {
	idx := int32(len(ctx.envs))
	ctx.envs = append(ctx.envs, envDescriptor{
		parent:   parent,
		bindings: swiss.NewMap[int32, Cell](8),
	})
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = TypePtr
	ctx.cell(c).value = idx
	ctx.cell(c).ptr = 1 // distinguishes "environment" ptr cells from native ptrs
	return c
}

func (ctx *Context) envAt(c Cell) *envDescriptor {
	return &ctx.envs[ctx.cell(c).value]
}

func (ctx *Context) protectEnvironment(c Cell, protect bool) {
	ctx.envAt(c).gcProtect = protect
}

// MakeProcedure allocates a func or macro cell closing over `env`.
func (ctx *Context) MakeProcedure(params, body, env Cell, isMacro bool) Cell {
	idx := int32(len(ctx.procs))
	ctx.procs = append(ctx.procs, procDescriptor{params: params, body: body, env: env})
	t := TypeFunc
	if isMacro {
		t = TypeMacro
		ctx.procs[idx].isMacro = true
	}
	c := ctx.mustMakeObject()
	ctx.cell(c).typ = t
	ctx.cell(c).value = idx
	return c
}

func (ctx *Context) procAt(c Cell) *procDescriptor {
	return &ctx.procs[ctx.cell(c).value]
}

// GlobalEnvironment returns the context's root environment cell.
func (ctx *Context) GlobalEnvironment() Cell { return ctx.global }

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(u uint32) float32 {
	return math.Float32frombits(u)
}
