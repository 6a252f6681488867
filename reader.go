package scm

import (
	"io"
	"strconv"
	"strings"
)

// Read parses one datum from `data` (spec.md §4.3, C3 reader: whitespace
// and `;`-comments skipped, `(`/`[` lists, dotted tails via `.`, quote
// sugar, string escapes, number/symbol/keyword atom classification).
// Returns io.EOF if the buffer holds nothing but whitespace/comments.
func (ctx *Context) Read(data []byte) (Cell, error) {
	cu := newCursor(data)
	ctx.skipAtmosphere(cu)
	if cu.atEOF() {
		return Cell{}, io.EOF
	}
	return ctx.readDatum(cu)
}

// ReadAll parses every top-level datum in `data`.
func (ctx *Context) ReadAll(data []byte) ([]Cell, error) {
	cu := newCursor(data)
	var out []Cell
	for {
		ctx.skipAtmosphere(cu)
		if cu.atEOF() {
			return out, nil
		}
		c, err := ctx.readDatum(cu)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
}

func (ctx *Context) skipAtmosphere(cu *cursor) {
	for {
		b, err := cu.peekByte()
		if err != nil {
			return
		}
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			cu.advance()
		case b == ';':
			for {
				b, err := cu.peekByte()
				if err != nil || b == '\n' {
					break
				}
				cu.advance()
			}
		default:
			return
		}
	}
}

func (ctx *Context) readDatum(cu *cursor) (Cell, error) {
	b, err := cu.peekByte()
	if err != nil {
		return Cell{}, io.EOF
	}

	switch b {
	case '(':
		cu.advance()
		return ctx.readList(cu, ')')
	case '[':
		cu.advance()
		return ctx.readList(cu, ']')
	case ')':
		cu.advance()
		return ctx.rparen, nil
	case ']':
		cu.advance()
		return ctx.rbrk, nil
	case '\'':
		cu.advance()
		return ctx.readSugar(cu, "quote")
	case '`':
		cu.advance()
		return ctx.readSugar(cu, "quasiquote")
	case ',':
		cu.advance()
		if b2, err := cu.peekByte(); err == nil && b2 == '@' {
			cu.advance()
			return ctx.readSugar(cu, "unquote_splicing")
		}
		return ctx.readSugar(cu, "unquote")
	case '"':
		return ctx.readString(cu)
	default:
		return ctx.readAtom(cu)
	}
}

func (ctx *Context) readSugar(cu *cursor, head string) (Cell, error) {
	ctx.skipAtmosphere(cu)
	inner, err := ctx.readDatum(cu)
	if err != nil {
		return Cell{}, err
	}
	return ctx.Cons(ctx.Symbol(head), ctx.Cons(inner, ctx.Nil)), nil
}

// readList handles both proper and dotted lists, checking that the
// closing delimiter matches the one the caller opened with (spec.md
// §4.3, "mismatched delimiter" edge case).
func (ctx *Context) readList(cu *cursor, closer byte) (Cell, error) {
	mark := ctx.SaveRoots()
	defer ctx.RestoreRoots(mark)

	var head, tail Cell
	head = ctx.Nil

	for {
		ctx.skipAtmosphere(cu)
		if cu.atEOF() {
			return Cell{}, SyntaxError{
				Kind: SyntaxErrorUnclosedList, Message: "unexpected end of input",
				Line: cu.line, Column: cu.column,
			}
		}
		b, _ := cu.peekByte()
		if b == ')' || b == ']' {
			cu.advance()
			if b != closer {
				return Cell{}, SyntaxError{
					Kind: SyntaxErrorMismatchedDelimiter,
					Message: "expected '" + string(closer) + "', got '" + string(b) + "'",
					Line: cu.line, Column: cu.column,
				}
			}
			if ctx.IsNil(head) {
				return ctx.Nil, nil
			}
			return head, nil
		}
		if b == '.' {
			if la, ok := cu.lookaheadDelimiterAt1(); ok && la {
				cu.advance()
				ctx.skipAtmosphere(cu)
				last, err := ctx.readDatum(cu)
				if err != nil {
					return Cell{}, err
				}
				ctx.skipAtmosphere(cu)
				cb, err := cu.peekByte()
				if err != nil || (cb != ')' && cb != ']') {
					return Cell{}, SyntaxError{
						Kind: SyntaxErrorUnclosedList, Message: "malformed dotted list",
						Line: cu.line, Column: cu.column,
					}
				}
				cu.advance()
				if cb != closer {
					return Cell{}, SyntaxError{
						Kind: SyntaxErrorMismatchedDelimiter, Message: "mismatched closing delimiter",
						Line: cu.line, Column: cu.column,
					}
				}
				ctx.SetCdr(tail, last)
				return head, nil
			}
		}

		elem, err := ctx.readDatum(cu)
		if err != nil {
			return Cell{}, err
		}
		pair := ctx.Cons(elem, ctx.Nil)
		ctx.PushRoot(pair)
		if ctx.IsNil(head) {
			head = pair
		} else {
			ctx.SetCdr(tail, pair)
		}
		tail = pair
	}
}

// lookaheadDelimiterAt1 reports whether the byte after the current '.'
// is whitespace/EOF/delimiter, distinguishing a dotted-pair `.` from an
// atom that merely starts with one (e.g. `.5`, which readAtom parses as
// the flonum 0.5).
func (cu *cursor) lookaheadDelimiterAt1() (bool, bool) {
	if cu.pos+1 >= len(cu.data) {
		return true, true
	}
	b := cu.data[cu.pos+1]
	return isDelim(b) || isSpace(b), true
}

func (ctx *Context) readString(cu *cursor) (Cell, error) {
	cu.advance() // opening quote
	limit := ctx.cfg.GetInt("reader.scratch_bytes")
	var sb strings.Builder
	for {
		b, err := cu.peekByte()
		if err != nil {
			return Cell{}, SyntaxError{
				Kind: SyntaxErrorUnclosedList, Message: "unterminated string",
				Line: cu.line, Column: cu.column,
			}
		}
		if b == '"' {
			cu.advance()
			return ctx.String(sb.String()), nil
		}
		if b == '\\' {
			cu.advance()
			e, err := cu.peekByte()
			if err != nil {
				return Cell{}, SyntaxError{Kind: SyntaxErrorUnclosedList, Message: "unterminated escape"}
			}
			cu.advance()
			switch e {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			default:
				sb.WriteByte(e)
			}
		} else {
			cu.advance()
			sb.WriteByte(b)
		}
		if sb.Len() > limit {
			return Cell{}, SyntaxError{
				Kind: SyntaxErrorTokenTooLong, Message: "string literal too long",
				Line: cu.line, Column: cu.column,
			}
		}
	}
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }
func isDelim(b byte) bool {
	switch b {
	case '(', ')', '[', ']', '"', ';', '\'', '`', ',':
		return true
	}
	return false
}

func (ctx *Context) readAtom(cu *cursor) (Cell, error) {
	start := cu.pos
	limit := ctx.cfg.GetInt("reader.scratch_bytes")
	for {
		b, err := cu.peekByte()
		if err != nil || isSpace(b) || isDelim(b) {
			break
		}
		cu.advance()
		if cu.pos-start > limit {
			return Cell{}, SyntaxError{
				Kind: SyntaxErrorTokenTooLong, Message: "atom too long",
				Line: cu.line, Column: cu.column,
			}
		}
	}
	tok := cu.sliceFrom(start)
	if tok == "" {
		return Cell{}, SyntaxError{
			Kind: SyntaxErrorUnexpectedCharacter, Message: "empty token",
			Line: cu.line, Column: cu.column,
		}
	}
	if strings.HasPrefix(tok, "#:") {
		return ctx.Keyword(tok[2:]), nil
	}
	if tok == "#t" {
		return ctx.True, nil
	}
	if tok == "#f" {
		return ctx.False, nil
	}
	if n, ok := parseFixnum(tok); ok {
		return ctx.Fixnum(n), nil
	}
	if f, ok := parseFlonum(tok); ok {
		return ctx.Flonum(f), nil
	}
	return ctx.Symbol(tok), nil
}

func parseFixnum(tok string) (int32, bool) {
	n, err := strconv.ParseInt(tok, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}

func parseFlonum(tok string) (float32, bool) {
	if !strings.ContainsAny(tok, ".eE") {
		return 0, false
	}
	f, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		return 0, false
	}
	return float32(f), true
}
