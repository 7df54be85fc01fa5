package schemalang

import (
	"io"

	"github.com/alecthomas/participle/v2/lexer"

	itoken "github.com/golangee/repack/internal/token"
)

// Symbol ids participle's grammar tags refer to by name. Kept in one
// place so the grammar in ast.go and the adapter below stay in sync,
// the way the teacher keeps its stateful.Rule names in one literal
// slice in parser/parser.go.
const (
	symEOF = iota
	symIdent
	symString
	symArrayMarker // "[" immediately followed by "]", coalesced below
	symPunct       // everything else single-character
)

// lexerDefinition adapts internal/token.Lexer (the one shared Lexer
// required by spec §4.1) to participle's lexer.Definition/lexer.Lexer
// interfaces, so the SL participle grammar reads tokens from the same
// scanner that Split uses rather than participle's own regex lexer,
// which is what the teacher's ast/parser.go uses instead.
// lexerDefinition always starts counting positions at line 1, column 1
// of whatever it is handed — each SL declaration is parsed from its own
// re-sliced text (see Split in parse.go), so Parse adjusts the resulting
// line/column back into the original file's coordinate space afterwards
// rather than threading a start position through participle's
// once-built Definition.
type lexerDefinition struct{}

func (lexerDefinition) Lex(filename string, r io.Reader) (lexer.Lexer, error) {
	return &participleLexer{l: itoken.NewLexer(filename, r, itoken.ModeSL)}, nil
}

func (lexerDefinition) Symbols() map[string]lexer.TokenType {
	return map[string]lexer.TokenType{
		"EOF":         symEOF,
		"Ident":       symIdent,
		"String":      symString,
		"ArrayMarker": symArrayMarker,
		"Punct":       symPunct,
	}
}

type participleLexer struct {
	l       *itoken.Lexer
	pending *itoken.Token
}

func (p *participleLexer) next() (itoken.Token, error) {
	if p.pending != nil {
		t := *p.pending
		p.pending = nil
		return t, nil
	}
	return p.l.Token()
}

func (p *participleLexer) Next() (lexer.Token, error) {
	tok, err := p.next()
	if err != nil {
		return lexer.Token{}, err
	}

	pos := lexer.Position{Filename: tok.Range.Begin.File, Line: tok.Range.Begin.Line, Column: tok.Range.Begin.Col, Offset: tok.Range.Begin.Offset}

	switch tok.Kind {
	case itoken.EOF:
		return lexer.Token{Type: symEOF, Value: "", Pos: pos}, nil
	case itoken.Ident:
		return lexer.Token{Type: symIdent, Value: tok.Text, Pos: pos}, nil
	case itoken.String:
		// participle.Unquote expects the surrounding quotes present.
		return lexer.Token{Type: symString, Value: `"` + tok.Text + `"`, Pos: pos}, nil
	case itoken.LBracket:
		// Coalesce "[" "]" (no gap) into a single ArrayMarker, mirroring
		// the teacher's single-regex SliceLooper token.
		nxt, err2 := p.l.Token()
		if err2 == nil && nxt.Kind == itoken.RBracket && nxt.Range.Begin.Offset == tok.Range.End.Offset {
			return lexer.Token{Type: symArrayMarker, Value: "[]", Pos: pos}, nil
		}
		if err2 == nil {
			p.pending = &nxt
		}
		return lexer.Token{Type: symPunct, Value: tok.Text, Pos: pos}, nil
	default:
		return lexer.Token{Type: symPunct, Value: tok.Text, Pos: pos}, nil
	}
}
