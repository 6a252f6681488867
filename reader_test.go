package scm

import (
	"io"
	"testing"
)

func TestReadAtoms(t *testing.T) {
	ctx := newTestContext(t)

	c, err := ctx.Read([]byte("42"))
	if err != nil {
		t.Fatalf("Read(42): %v", err)
	}
	if ctx.Type(c) != TypeFixnum || ctx.FixnumValue(c) != 42 {
		t.Errorf("want fixnum 42, got %s %v", ctx.Type(c), ctx.Write(c))
	}

	c, err = ctx.Read([]byte("3.5"))
	if err != nil {
		t.Fatalf("Read(3.5): %v", err)
	}
	if ctx.Type(c) != TypeFlonum {
		t.Errorf("want flonum, got %s", ctx.Type(c))
	}

	c, err = ctx.Read([]byte("#t"))
	if err != nil || !ctx.IsTrue(c) {
		t.Errorf("Read(#t) = %v, %v; want #t", ctx.Write(c), err)
	}

	c, err = ctx.Read([]byte("#:foo"))
	if err != nil || ctx.Type(c) != TypeKeyword || ctx.SymbolName(c) != "foo" {
		t.Errorf("Read(#:foo) = %v, %v; want keyword foo", ctx.Write(c), err)
	}

	c, err = ctx.Read([]byte("hello-world"))
	if err != nil || ctx.Type(c) != TypeSymbol || ctx.SymbolName(c) != "hello-world" {
		t.Errorf("Read(hello-world) = %v, %v; want symbol hello-world", ctx.Write(c), err)
	}
}

func TestReadString(t *testing.T) {
	ctx := newTestContext(t)
	c, err := ctx.Read([]byte(`"a\nb\"c"`))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ctx.Type(c) != TypeString {
		t.Fatalf("want string, got %s", ctx.Type(c))
	}
	want := "a\nb\"c"
	if got := ctx.StringValue(c); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}

func TestReadList(t *testing.T) {
	ctx := newTestContext(t)
	c, err := ctx.Read([]byte("(1 2 3)"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := ctx.Write(c); got != "(1 2 3)" {
		t.Errorf("want (1 2 3), got %s", got)
	}
}

func TestReadDottedPair(t *testing.T) {
	ctx := newTestContext(t)
	c, err := ctx.Read([]byte("(1 . 2)"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := ctx.Write(c); got != "(1 . 2)" {
		t.Errorf("want (1 . 2), got %s", got)
	}
}

func TestReadQuoteSugar(t *testing.T) {
	ctx := newTestContext(t)
	c, err := ctx.Read([]byte("'(1 2)"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := ctx.Write(c); got != "(quote (1 2))" {
		t.Errorf("want (quote (1 2)), got %s", got)
	}

	c, err = ctx.Read([]byte(",@xs"))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := ctx.Write(c); got != "(unquote_splicing xs)" {
		t.Errorf("want (unquote_splicing xs), got %s", got)
	}
}

func TestReadAllSkipsComments(t *testing.T) {
	ctx := newTestContext(t)
	forms, err := ctx.ReadAll([]byte("; a comment\n1 2\n; trailing\n3"))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(forms) != 3 {
		t.Fatalf("want 3 forms, got %d", len(forms))
	}
	for i, want := range []int32{1, 2, 3} {
		if got := ctx.FixnumValue(forms[i]); got != want {
			t.Errorf("form %d: want %d, got %d", i, want, got)
		}
	}
}

func TestReadEmptyIsEOF(t *testing.T) {
	ctx := newTestContext(t)
	if _, err := ctx.Read([]byte("   ")); err != io.EOF {
		t.Errorf("want io.EOF for all-whitespace input, got %v", err)
	}
}

func TestReadUnclosedListIsSyntaxError(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Read([]byte("(1 2"))
	se, ok := err.(SyntaxError)
	if !ok {
		t.Fatalf("want SyntaxError, got %T (%v)", err, err)
	}
	if se.Kind != SyntaxErrorUnclosedList {
		t.Errorf("want SyntaxErrorUnclosedList, got %v", se.Kind)
	}
}

func TestReadMismatchedDelimiterIsSyntaxError(t *testing.T) {
	ctx := newTestContext(t)
	_, err := ctx.Read([]byte("(1 2]"))
	se, ok := err.(SyntaxError)
	if !ok {
		t.Fatalf("want SyntaxError, got %T (%v)", err, err)
	}
	if se.Kind != SyntaxErrorMismatchedDelimiter {
		t.Errorf("want SyntaxErrorMismatchedDelimiter, got %v", se.Kind)
	}
}
