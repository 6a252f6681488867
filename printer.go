package scm

import (
	"strconv"
	"strings"
)

// Write renders a cell the way the reader would read it back (spec.md
// §6): `nil`, `#t`/`#f`, quoted strings, signed decimal fixnums,
// `%.7g`-style flonums, `#:keyword`, bare symbols, and `(a b . c)`
// dotted pairs.
func (ctx *Context) Write(c Cell) string {
	var b strings.Builder
	ctx.write(&b, c)
	return b.String()
}

func (ctx *Context) write(b *strings.Builder, c Cell) {
	switch ctx.Type(c) {
	case TypeNil:
		b.WriteString("nil")
	case TypeBoolean:
		if ctx.IsTrue(c) {
			b.WriteString("#t")
		} else {
			b.WriteString("#f")
		}
	case TypeFixnum:
		b.WriteString(strconv.FormatInt(int64(ctx.FixnumValue(c)), 10))
	case TypeFlonum:
		b.WriteString(strconv.FormatFloat(float64(ctx.FlonumValue(c)), 'g', 7, 32))
	case TypeString:
		b.WriteByte('"')
		b.WriteString(escapeString(ctx.StringValue(c)))
		b.WriteByte('"')
	case TypeKeyword:
		b.WriteString("#:")
		b.WriteString(ctx.SymbolName(c))
	case TypeSymbol:
		b.WriteString(ctx.SymbolName(c))
	case TypePair:
		ctx.writePair(b, c)
	case TypeFunc:
		b.WriteString("#<func>")
	case TypeMacro:
		b.WriteString("#<macro>")
	case TypePrim:
		b.WriteString("#<prim:" + ctx.PrimOp(c).String() + ">")
	case TypeCFunc:
		b.WriteString("#<cfunc>")
	case TypeFFI:
		b.WriteString("#<ffi>")
	case TypePtr:
		b.WriteString("#<env>")
	case TypeError:
		b.WriteString("#<error>")
	default:
		b.WriteString("#<unknown>")
	}
}

func (ctx *Context) writePair(b *strings.Builder, c Cell) {
	b.WriteByte('(')
	first := true
	for {
		if !first {
			b.WriteByte(' ')
		}
		first = false
		ctx.write(b, ctx.Car(c))
		cdr := ctx.Cdr(c)
		if ctx.IsNil(cdr) {
			break
		}
		if ctx.Type(cdr) != TypePair {
			b.WriteString(" . ")
			ctx.write(b, cdr)
			break
		}
		c = cdr
	}
	b.WriteByte(')')
}

func escapeString(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
