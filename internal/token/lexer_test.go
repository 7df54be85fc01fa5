package token

import (
	"io"
	"strings"
	"testing"
)

func allTokens(t *testing.T, src string, mode Mode) []Token {
	t.Helper()
	l := NewLexer("test.repack", strings.NewReader(src), mode)

	var toks []Token
	for {
		tok, err := l.Token()
		if err != nil {
			t.Fatalf("Token(): %v", err)
		}
		if tok.Kind == EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks
}

func TestLexerIdentsAndPunctuation(t *testing.T) {
	toks := allTokens(t, `record User @users { id uuid db:pk; }`, ModeSL)

	want := []Kind{Ident, Ident, At, Ident, LBrace, Ident, Ident, Ident, Colon, Ident, Semi, RBrace}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(toks), len(want), toks)
	}
	for i, k := range want {
		if toks[i].Kind != k {
			t.Errorf("token %d: got %v, want %v (%q)", i, toks[i].Kind, k, toks[i].Text)
		}
	}
}

func TestLexerString(t *testing.T) {
	toks := allTokens(t, `query Foo(a int32) = "SELECT * FROM t" : one`, ModeSL)

	var found bool
	for _, tok := range toks {
		if tok.Kind == String {
			found = true
			if tok.Text != "SELECT * FROM t" {
				t.Errorf("string content = %q", tok.Text)
			}
		}
	}
	if !found {
		t.Fatal("no string token found")
	}
}

func TestLexerCommentsDiscarded(t *testing.T) {
	toks := allTokens(t, "record A {\n// a comment\nid string\n}", ModeSL)

	for _, tok := range toks {
		if tok.Kind == Comment {
			t.Fatalf("comment token leaked into stream: %+v", tok)
		}
	}
}

func TestLexerTLModePunctuation(t *testing.T) {
	toks := allTokens(t, `[each field][name][/each]`, ModeTL)

	var hasBracket, hasSlash bool
	for _, tok := range toks {
		if tok.Kind == LBracket || tok.Kind == RBracket {
			hasBracket = true
		}
		if tok.Kind == Slash {
			hasSlash = true
		}
	}
	if !hasBracket || !hasSlash {
		t.Fatalf("expected bracket and slash tokens in TL mode, got %v", toks)
	}
}

func TestLexerEscapedBracket(t *testing.T) {
	toks := allTokens(t, `\[literal`, ModeTL)
	if len(toks) == 0 || toks[0].Kind != EscapeOpen {
		t.Fatalf("expected EscapeOpen as first token, got %v", toks)
	}
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("f.repack", strings.NewReader("ab\ncd"), ModeSL)

	tok, err := l.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok.Range.Begin.Line != 1 || tok.Range.Begin.Col != 1 {
		t.Errorf("first token begin = %+v", tok.Range.Begin)
	}

	tok2, err := l.Token()
	if err != nil {
		t.Fatal(err)
	}
	if tok2.Range.Begin.Line != 2 || tok2.Range.Begin.Col != 1 {
		t.Errorf("second token begin = %+v", tok2.Range.Begin)
	}
}

func TestLexerUnterminatedString(t *testing.T) {
	l := NewLexer("f.repack", strings.NewReader(`"unterminated`), ModeSL)
	_, err := l.Token()
	if err == nil {
		t.Fatal("expected error for unterminated string")
	}
}

func TestLexerEOFIsSticky(t *testing.T) {
	l := NewLexer("f.repack", strings.NewReader(""), ModeSL)
	for i := 0; i < 3; i++ {
		tok, err := l.Token()
		if err != nil && err != io.EOF {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind != EOF {
			t.Fatalf("call %d: got %v, want EOF", i, tok.Kind)
		}
	}
}
