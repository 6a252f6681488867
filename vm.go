package scm

// machine is the register VM's memory areas and dispatch loop
// (spec.md §9, C9): `code` is the LP (load-pointer) area holding
// assembled Words, and `envStack`/`dataStack` are the EP/DP areas,
// both growing down from the top of their slice. There is no separate
// heap area: the object arena lives in the Context.
type machine struct {
	ctx *Context

	code     []Word
	labelsAt map[int32]string

	regs [numRegisters]int64

	envStack  []int64
	dataStack []int64
	ep        int
	dp        int

	pc      int32
	halted  bool
	jumped  bool
	trapped error
}

func newMachine(ctx *Context, heapWords int) *machine {
	if heapWords <= 0 {
		heapWords = 1 << 12
	}
	m := &machine{
		ctx:       ctx,
		envStack:  make([]int64, heapWords/4),
		dataStack: make([]int64, heapWords/4),
	}
	m.ep = len(m.envStack)
	m.dp = len(m.dataStack)
	return m
}

// Load installs an assembled program into the code area and resets
// the register file, ready for Run.
func (m *machine) Load(prog *AssembledProgram, entry int32) {
	m.code = prog.Code
	m.labelsAt = prog.LabelsAt
	m.pc = entry
	m.halted = false
	m.trapped = nil
	m.regs = [numRegisters]int64{}
	m.ep = len(m.envStack)
	m.dp = len(m.dataStack)
}

// RunProgram assembles and runs `prog` starting at its entry block,
// returning the value left in R0 converted back to a Cell.
func (ctx *Context) RunProgram(prog *Program) (Cell, error) {
	asm, err := Assemble(prog)
	if err != nil {
		return Cell{}, err
	}
	entryBlock := prog.Blocks[prog.Entry]
	ctx.vm.Load(asm, entryBlock.Address)
	if err := ctx.vm.run(); err != nil {
		return Cell{}, err
	}
	return Cell{idx: int32(ctx.vm.regs[0])}, nil
}

// run is the threaded dispatch loop: decode one header word, pull its
// operand words, execute, advance pc — the same labeled-loop shape the
// teacher's Match loop uses, switching on an opcode byte instead of a
// PEG instruction tag.
func (m *machine) run() error {
	for !m.halted {
		if int(m.pc) >= len(m.code) {
			return UnresolvedLabelError{Label: "pc ran off the end of code"}
		}
		op, enc, mode, _, aux := unpackHeader(m.code[m.pc])
		operandCount := encodingArity(enc)
		base := m.pc + 1
		ops := make([]Word, operandCount)
		for i := int32(0); i < operandCount; i++ {
			ops[i] = m.code[base+i]
		}
		next := base + operandCount

		if err := m.exec(op, enc, mode, aux, ops, base); err != nil {
			if m.ctx.cfg.GetBool("vm.trap_on_halt") {
				return err
			}
			m.trapped = err
			m.halted = true
			return err
		}
		if !m.jumped {
			m.pc = next
		}
		m.jumped = false
	}
	return nil
}

func encodingArity(enc Encoding) int32 {
	switch enc {
	case EncNone:
		return 0
	case EncImm, EncReg1:
		return 1
	case EncReg2, EncOffset:
		return 2
	case EncReg2Imm, EncReg3:
		return 3
	case EncIndexed:
		return 3
	}
	return 0
}

func regOf(w Word) int8    { return int8((w >> 8) & 0xff) }
func immOf(w Word) int64   { return int64(w >> 8) }
func blockOf(w Word) int32 { return int32(w >> 8) }

func (m *machine) exec(op Opcode, enc Encoding, mode uint8, aux int32, ops []Word, base int32) error {
	// rhs resolves operand index 2 as either a register (EncReg3) or
	// an immediate (EncReg2Imm), the two shapes the compiler emits
	// arithmetic through.
	rhs := func() int64 {
		if enc == EncReg2Imm {
			return immOf(ops[2])
		}
		return m.regs[regOf(ops[2])]
	}

	switch op {
	case OpNop:
	case OpMove:
		m.regs[regOf(ops[0])] = m.regs[regOf(ops[1])]
	case OpMovI:
		m.regs[regOf(ops[0])] = immOf(ops[1])

	// OpAdd..OpCmpGe operate on raw register/stack-pointer integers
	// (spec.md §4.6's scalar arithmetic family, e.g. enterFrame/
	// leaveFrame's `sub sp,locals`), distinct from the boxed Scheme
	// arithmetic and comparisons compiled through OpListOp's l*
	// dispatch. Reserved for prologue/epilogue pointer math.
	case OpAdd:
		m.regs[regOf(ops[0])] = m.regs[regOf(ops[1])] + rhs()
	case OpSub:
		m.regs[regOf(ops[0])] = m.regs[regOf(ops[1])] - rhs()
	case OpMul:
		m.regs[regOf(ops[0])] = m.regs[regOf(ops[1])] * rhs()
	case OpDiv:
		d := rhs()
		if d == 0 {
			return TypeMismatchError{Op: "div", Expected: TypeFixnum, Got: TypeFixnum}
		}
		m.regs[regOf(ops[0])] = m.regs[regOf(ops[1])] / d
	case OpMod:
		m.regs[regOf(ops[0])] = m.regs[regOf(ops[1])] % rhs()
	case OpNeg:
		m.regs[regOf(ops[0])] = -m.regs[regOf(ops[1])]

	case OpCmpEq:
		m.regs[regOf(ops[0])] = boolInt(m.regs[regOf(ops[1])] == m.regs[regOf(ops[2])])
	case OpCmpNe:
		m.regs[regOf(ops[0])] = boolInt(m.regs[regOf(ops[1])] != m.regs[regOf(ops[2])])
	case OpCmpLt:
		m.regs[regOf(ops[0])] = boolInt(m.regs[regOf(ops[1])] < m.regs[regOf(ops[2])])
	case OpCmpLe:
		m.regs[regOf(ops[0])] = boolInt(m.regs[regOf(ops[1])] <= m.regs[regOf(ops[2])])
	case OpCmpGt:
		m.regs[regOf(ops[0])] = boolInt(m.regs[regOf(ops[1])] > m.regs[regOf(ops[2])])
	case OpCmpGe:
		m.regs[regOf(ops[0])] = boolInt(m.regs[regOf(ops[1])] >= m.regs[regOf(ops[2])])

	case OpJmp:
		// Block operands are PC-relative (spec.md §9): offset from this
		// instruction's own header word address, m.pc.
		m.pc = m.pc + blockOf(ops[0])
		m.jumped = true
	case OpBr:
		// The condition register holds a boxed Cell index (spec.md §7:
		// comparisons run through OpListOp's applyPrim, returning
		// ctx.True/ctx.False cells, not raw 0/1, and and_/or_ branch on
		// their operands' own value cells), so branch on cell falsiness
		// rather than the register's raw value.
		cond := Cell{idx: int32(m.regs[regOf(ops[0])])}
		if !m.ctx.IsFalse(cond) {
			m.pc = m.pc + blockOf(ops[1])
		} else {
			m.pc = m.pc + blockOf(ops[2])
		}
		m.jumped = true

	case OpPush:
		m.ep--
		m.envStack[m.ep] = m.regs[regOf(ops[0])]
	case OpPop:
		m.regs[regOf(ops[0])] = m.envStack[m.ep]
		m.ep++

	case OpCall, OpBlr:
		m.dp--
		m.dataStack[m.dp] = int64(m.pc) + int64(len(ops)) + 1
		// Call target is PC-relative like Jmp/Br; the pushed return
		// address above is already absolute (the next instruction's
		// own word index), so it needs no adjustment.
		m.pc = m.pc + blockOf(ops[0])
		m.jumped = true
	case OpRet:
		if enc == EncReg1 {
			m.regs[0] = m.regs[regOf(ops[0])]
		}
		if m.dp >= len(m.dataStack) {
			m.halted = true
			return nil
		}
		ret := m.dataStack[m.dp]
		m.dp++
		m.pc = int32(ret)
		m.jumped = true

	case OpHalt:
		m.halted = true

	case OpTrap:
		return m.trap(int32(immOf(ops[0])), ops)

	case OpLoad:
		name, ok := m.labelsAt[base+1]
		if !ok {
			return UnresolvedLabelError{Label: "load"}
		}
		v, err := m.ctx.EnvGet(m.ctx.Symbol(name), m.ctx.global)
		if err != nil {
			return err
		}
		m.regs[regOf(ops[0])] = int64(v.idx)
	case OpStore:
		name, ok := m.labelsAt[base]
		if !ok {
			return UnresolvedLabelError{Label: "store"}
		}
		m.ctx.EnvDefine(m.ctx.Symbol(name), Cell{idx: int32(m.regs[regOf(ops[1])])}, m.ctx.global)

	case OpCons:
		car := Cell{idx: int32(m.regs[regOf(ops[1])])}
		cdr := m.ctx.Nil
		if len(ops) > 2 {
			cdr = Cell{idx: int32(m.regs[regOf(ops[2])])}
		}
		m.regs[regOf(ops[0])] = int64(m.ctx.Cons(car, cdr).idx)
	case OpCar:
		m.regs[regOf(ops[0])] = int64(m.ctx.Car(Cell{idx: int32(m.regs[regOf(ops[1])])}).idx)
	case OpCdr:
		m.regs[regOf(ops[0])] = int64(m.ctx.Cdr(Cell{idx: int32(m.regs[regOf(ops[1])])}).idx)
	case OpSetCar:
		m.ctx.SetCar(Cell{idx: int32(m.regs[regOf(ops[1])])}, Cell{idx: int32(m.regs[regOf(ops[2])])})
	case OpSetCdr:
		m.ctx.SetCdr(Cell{idx: int32(m.regs[regOf(ops[1])])}, Cell{idx: int32(m.regs[regOf(ops[2])])})

	case OpIsNil:
		m.regs[regOf(ops[0])] = boolInt(m.ctx.IsNil(Cell{idx: int32(m.regs[regOf(ops[1])])}))
	case OpIsPair:
		m.regs[regOf(ops[0])] = boolInt(m.ctx.Type(Cell{idx: int32(m.regs[regOf(ops[1])])}) == TypePair)
	case OpIsNum:
		m.regs[regOf(ops[0])] = boolInt(m.ctx.IsNumber(Cell{idx: int32(m.regs[regOf(ops[1])])}))
	case OpIsSym:
		m.regs[regOf(ops[0])] = boolInt(m.ctx.Type(Cell{idx: int32(m.regs[regOf(ops[1])])}) == TypeSymbol)

	case OpBox:
		m.regs[regOf(ops[0])] = int64(m.ctx.Fixnum(int32(m.regs[regOf(ops[1])])).idx)
	case OpUnbox:
		m.regs[regOf(ops[0])] = int64(m.ctx.FixnumValue(Cell{idx: int32(m.regs[regOf(ops[1])])}))

	case OpListOp:
		// Variadic prim call through the reserved arg area (spec.md
		// §4.6/§4.7's l* list-arithmetic family): compilePrimChain
		// pushed the evaluated, boxed argument cells right to left (last
		// argument first), so popping them off envStack in order
		// recovers the original argument order. Mode carries the PrimOp to dispatch; running
		// it through the same applyPrim the tree-walking evaluator
		// uses keeps coercion/boxing rules in one place.
		count := int(aux)
		argv := make([]Cell, count)
		for i := 0; i < count; i++ {
			argv[i] = Cell{idx: int32(m.envStack[m.ep])}
			m.ep++
		}
		result, err := m.ctx.applyPrim(PrimOp(mode), argv)
		if err != nil {
			return err
		}
		m.regs[regOf(ops[0])] = int64(result.idx)

	default:
		return NotCallableError{Got: TypePrim}
	}
	return nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// trap handles OpTrap, the compiler's lowering of the `error`
// primitive and any future VM-level fault. Trap code 1 is a user
// error: its operand registers hold cell indices for the error's
// argument values (spec.md §9, "trap").
func (m *machine) trap(code int32, ops []Word) error {
	switch code {
	case trapUserError:
		var args []Cell
		for _, w := range ops[1:] {
			if w == packOperand(Operand{}) {
				continue
			}
			args = append(args, Cell{idx: int32(m.regs[regOf(w)])})
		}
		return UserError{ctx: m.ctx, Args: args}
	default:
		return UnresolvedLabelError{Label: "trap"}
	}
}
