package scm

// Opcode is the IR/bytecode operation taxonomy (spec.md §6, C6):
// arithmetic, control-flow, compares, memory, Lisp primitives,
// list-arithmetic, predicates and boxing.
type Opcode uint8

const (
	OpNop Opcode = iota
	OpMove
	OpMovI // load immediate

	// arithmetic
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// control flow
	OpJmp
	OpBr // conditional branch, taken unless operand 0 is #f or nil
	OpCall
	OpBlr // branch-and-link; the VM runs it exactly like OpCall (PC-relative block operand)
	OpRet
	OpHalt
	OpTrap

	// compares (result is a boolean register)
	OpCmpEq
	OpCmpNe
	OpCmpLt
	OpCmpLe
	OpCmpGt
	OpCmpGe

	// memory / stack frame
	OpLoad  // load local/env slot into register
	OpStore // store register into local/env slot
	OpPush
	OpPop

	// Lisp primitives
	OpCons
	OpCar
	OpCdr
	OpSetCar
	OpSetCdr

	// list arithmetic (variadic prim call through a reserved arg area)
	OpListOp

	// predicates
	OpIsNil
	OpIsPair
	OpIsNum
	OpIsSym

	// boxing
	OpBox
	OpUnbox
)

var opcodeNames = map[Opcode]string{
	OpNop: "nop", OpMove: "move", OpMovI: "movi",
	OpAdd: "add", OpSub: "sub", OpMul: "mul", OpDiv: "div", OpMod: "mod", OpNeg: "neg",
	OpJmp: "jmp", OpBr: "br", OpCall: "call", OpBlr: "blr", OpRet: "ret",
	OpHalt: "halt", OpTrap: "trap",
	OpCmpEq: "cmpeq", OpCmpNe: "cmpne", OpCmpLt: "cmplt", OpCmpLe: "cmple",
	OpCmpGt: "cmpgt", OpCmpGe: "cmpge",
	OpLoad: "load", OpStore: "store", OpPush: "push", OpPop: "pop",
	OpCons: "cons", OpCar: "car", OpCdr: "cdr", OpSetCar: "setcar", OpSetCdr: "setcdr",
	OpListOp: "listop",
	OpIsNil:  "isnil", OpIsPair: "ispair", OpIsNum: "isnum", OpIsSym: "issym",
	OpBox: "box", OpUnbox: "unbox",
}

func (op Opcode) String() string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return "unknown"
}

// Encoding is one of the IR's 8 instruction shapes (spec.md §6).
type Encoding uint8

const (
	EncNone Encoding = iota
	EncImm
	EncReg1
	EncReg2
	EncReg2Imm
	EncReg3
	EncOffset
	EncIndexed
)

// OperandKind tags what an Operand actually holds.
type OperandKind uint8

const (
	OperandNone OperandKind = iota
	OperandReg
	OperandImmValue
	OperandImmLabel
	OperandImmBlock
	OperandImmTrap
	OperandOffsetValue
)

// Operand is the IR's tagged-union instruction argument.
type Operand struct {
	Kind  OperandKind
	Reg   int8
	Value int64
	Label string
	Block int32
}

func RegOperand(r int8) Operand               { return Operand{Kind: OperandReg, Reg: r} }
func ImmOperand(v int64) Operand               { return Operand{Kind: OperandImmValue, Value: v} }
func LabelOperand(l string) Operand            { return Operand{Kind: OperandImmLabel, Label: l} }
func BlockOperand(b int32) Operand             { return Operand{Kind: OperandImmBlock, Block: b} }
func TrapOperand(code int64) Operand           { return Operand{Kind: OperandImmTrap, Value: code} }
func OffsetOperand(r int8, off int64) Operand  { return Operand{Kind: OperandOffsetValue, Reg: r, Value: off} }

// Instruction is one IR instruction. Rather than the teacher's
// one-Go-type-per-opcode scheme (vm_instructions.go's ILabel/IChar/...),
// this port uses a single generic record with an Opcode discriminant
// and up to 4 operands — the shape spec.md §6 actually describes
// (opcode/encoding/operands fields on one instruction record), closer
// to original_source's bytecode.cpp layout than to a PEG VM's bespoke
// per-op struct family.
type Instruction struct {
	ID       int32
	BlockID  int32
	Op       Opcode
	Encoding Encoding
	Signed   bool
	Mode     uint8
	Aux      int32
	Operands [4]Operand

	sourceLine int
}

func (i Instruction) Name() string           { return i.Op.String() }
func (i Instruction) SizeInBytes() int       { return 8 * int(wordsFor(i)) } // header word plus one word per operand
func (i Instruction) SourceLocation() int    { return i.sourceLine }

// BasicBlockKind distinguishes entry/body/exit blocks for pretty
// printing and liveness splitting.
type BasicBlockKind int

const (
	BlockEntry BasicBlockKind = iota
	BlockBody
	BlockExit
)

// BasicBlock groups a run of Instructions under one label, tracking
// its predecessors/successors for liveness analysis and its
// assembled address once the encoder has run (spec.md §6).
type BasicBlock struct {
	ID    int32
	Kind  BasicBlockKind
	Label string

	Instructions []Instruction
	Comments     []string
	Parameters   []string

	Predecessors []int32
	Successors   []int32

	Address int32 // word address once assembled, -1 until then
}

// VirtualVariable is an SSA-flavored value: a symbol carrying one
// version per definition, tracked accesses and a live range used by
// the register allocator (spec.md §6, §8, C8).
type VirtualVariable struct {
	Symbol  string
	Version int

	Accesses []int32 // instruction IDs that read or write this version

	LiveStart int32
	LiveEnd   int32
}

// Program is the compiler's output: a function table of basic blocks
// plus the virtual-variable table the register allocator consumes.
type Program struct {
	Blocks    []*BasicBlock
	Variables []*VirtualVariable

	// entry names the block the VM starts executing from.
	Entry int32

	// strings holds literal string/symbol ids referenced by the
	// assembled code (e.g. trap messages), mirroring vm_program.go's
	// `strings`/`stringsMap` table.
	strings    []string
	stringsMap map[string]int
}

func NewProgram() *Program {
	return &Program{stringsMap: map[string]int{}}
}

func (p *Program) internString(s string) int {
	if id, ok := p.stringsMap[s]; ok {
		return id
	}
	id := len(p.strings)
	p.strings = append(p.strings, s)
	p.stringsMap[s] = id
	return id
}

func (p *Program) NewBlock(kind BasicBlockKind, label string) *BasicBlock {
	b := &BasicBlock{ID: int32(len(p.Blocks)), Kind: kind, Label: label, Address: -1}
	p.Blocks = append(p.Blocks, b)
	return b
}

func (b *BasicBlock) Emit(in Instruction) int32 {
	in.ID = int32(len(b.Instructions))
	in.BlockID = b.ID
	b.Instructions = append(b.Instructions, in)
	return in.ID
}

func (p *Program) Link(from, to *BasicBlock) {
	from.Successors = append(from.Successors, to.ID)
	to.Predecessors = append(to.Predecessors, from.ID)
}
