package scm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/basecode-lang/foundation/ascii"
)

// asmFormatToken classifies a span of disassembly text for theming,
// the same token taxonomy vm_program.go used for the PEG VM's printer.
type asmFormatToken int

const (
	asmTokenNone asmFormatToken = iota
	asmTokenComment
	asmTokenLabel
	asmTokenLiteral
	asmTokenOperator
	asmTokenOperand
)

var asmPrinterTheme = map[asmFormatToken]string{
	asmTokenNone:     ascii.Reset,
	asmTokenComment:  ascii.DefaultTheme.Comment,
	asmTokenLabel:    ascii.DefaultTheme.Label,
	asmTokenLiteral:  ascii.DefaultTheme.Literal,
	asmTokenOperator: ascii.DefaultTheme.Operator,
	asmTokenOperand:  ascii.DefaultTheme.Operand,
}

type formatFunc func(input string, token asmFormatToken) string

// PrettyString renders the whole program as plain, uncolored text.
func (p *Program) PrettyString() string {
	return p.prettyString(func(s string, _ asmFormatToken) string { return s })
}

// HighlightPrettyString renders the program with ascii.DefaultTheme
// colors, exactly as vm_program.go's HighlightPrettyString did for the
// PEG VM's bytecode (SPEC_FULL.md §2, `-dump-asm`).
func (p *Program) HighlightPrettyString() string {
	return p.prettyString(func(s string, tok asmFormatToken) string {
		return asmPrinterTheme[tok] + s + asmPrinterTheme[asmTokenNone]
	})
}

func (p *Program) prettyString(format formatFunc) string {
	var s strings.Builder
	for _, b := range p.Blocks {
		s.WriteString(format(fmt.Sprintf("l%d:", b.ID), asmFormatToken(asmTokenLabel)))
		if b.Label != "" {
			s.WriteString(format(" ; "+b.Label, asmTokenComment))
		}
		s.WriteString("\n")
		for _, in := range b.Instructions {
			s.WriteString("    ")
			s.WriteString(format(in.Op.String(), asmTokenOperand))
			for _, op := range in.Operands {
				writeOperand(&s, op, format)
			}
			s.WriteString("\n")
		}
	}
	return s.String()
}

func writeOperand(s *strings.Builder, op Operand, format formatFunc) {
	switch op.Kind {
	case OperandNone:
		return
	case OperandReg:
		s.WriteString(format(" r"+strconv.Itoa(int(op.Reg)), asmTokenOperand))
	case OperandImmValue:
		s.WriteString(format(" "+strconv.FormatInt(op.Value, 10), asmTokenLiteral))
	case OperandImmLabel:
		s.WriteString(format(" "+op.Label, asmTokenLabel))
	case OperandImmBlock:
		s.WriteString(format(fmt.Sprintf(" l%d", op.Block), asmTokenLabel))
	case OperandImmTrap:
		s.WriteString(format(" #"+strconv.FormatInt(op.Value, 10), asmTokenLiteral))
	case OperandOffsetValue:
		s.WriteString(format(fmt.Sprintf(" [r%d+%d]", op.Reg, op.Value), asmTokenOperand))
	}
}
