package schemalang

import (
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/golangee/repack/internal/diag"
	itoken "github.com/golangee/repack/internal/token"
)

var (
	importParser    = participle.MustBuild[ImportDecl](participle.Lexer(lexerDefinition{}), participle.Unquote("String"))
	blueprintParser = participle.MustBuild[BlueprintDecl](participle.Lexer(lexerDefinition{}), participle.Unquote("String"))
	enumParser      = participle.MustBuild[EnumDecl](participle.Lexer(lexerDefinition{}), participle.Unquote("String"), participle.UseLookahead(2))
	snippetParser   = participle.MustBuild[SnippetDecl](participle.Lexer(lexerDefinition{}), participle.Unquote("String"), participle.UseLookahead(2))
	objectParser    = participle.MustBuild[ObjectDecl](participle.Lexer(lexerDefinition{}), participle.Unquote("String"), participle.UseLookahead(2))
	outputParser    = participle.MustBuild[OutputDecl](participle.Lexer(lexerDefinition{}), participle.Unquote("String"), participle.UseLookahead(2))
)

// reservedWords are tokenized as plain identifiers (spec §9 open
// question) but rejected wherever one appears as an identifier: at the
// top level and anywhere inside a declaration.
var reservedWords = map[string]bool{"where": true, "with": true, "except": true}

var topKeywords = map[string]bool{
	"import": true, "blueprint": true, "enum": true, "snippet": true,
	"record": true, "struct": true, "synthetic": true, "output": true,
}

// rawDecl is one un-parsed top-level declaration, sliced verbatim out
// of the source file by brace/terminator matching.
type rawDecl struct {
	keyword string
	text    string
	begin   itoken.Pos
}

// Split scans source into a sequence of raw top-level declarations by
// tracking brace depth, without attempting to parse their contents.
// This is what makes per-declaration recovery possible (spec §4.2): a
// malformed declaration still has well-defined boundaries because
// braces balance even when the content inside them doesn't parse.
func Split(filename, source string) ([]rawDecl, diag.List) {
	var diags diag.List
	runes := []rune(source)
	lex := itoken.NewLexer(filename, strings.NewReader(source), itoken.ModeSL)

	var decls []rawDecl

	for {
		tok, err := lex.Token()
		if err != nil {
			diags.Add(diag.Wrap(diag.SyntaxError, diag.Context{Profile: "parser"}, err, "%v", err))
			return decls, diags
		}
		if tok.Kind == itoken.EOF {
			return decls, diags
		}
		if tok.Kind != itoken.Ident {
			diags.Addf(diag.SyntaxError, ctxAt(tok.Range.Begin), "unexpected token %q at top level", tok.Text)
			continue
		}
		if reservedWords[tok.Text] {
			diags.Addf(diag.SyntaxError, ctxAt(tok.Range.Begin), "%q is a reserved word and may not appear here", tok.Text)
			continue
		}
		if !topKeywords[tok.Text] {
			diags.Addf(diag.SyntaxError, ctxAt(tok.Range.Begin), "unexpected top-level keyword %q", tok.Text)
			continue
		}

		begin := tok.Range.Begin
		end := tok.Range.End

		switch tok.Text {
		case "import", "blueprint":
			strTok, err2 := lex.Token()
			if err2 != nil || strTok.Kind != itoken.String {
				diags.Addf(diag.ParseIncomplete, ctxAt(begin), "%s expects a quoted path", tok.Text)
				continue
			}
			end = strTok.Range.End

		default: // enum, snippet, record, struct, synthetic, output
			depth := 0
			openedBrace := false
			incomplete := true

		scan:
			for {
				t2, err2 := lex.Token()
				if err2 != nil || t2.Kind == itoken.EOF {
					break scan
				}
				end = t2.Range.End
				if t2.Kind == itoken.Ident && reservedWords[t2.Text] {
					diags.Addf(diag.SyntaxError, ctxAt(t2.Range.Begin), "%q is a reserved word and may not appear here", t2.Text)
				}

				switch t2.Kind {
				case itoken.LBrace:
					depth++
					openedBrace = true
				case itoken.RBrace:
					depth--
					if openedBrace && depth == 0 {
						incomplete = false
						break scan
					}
				case itoken.Semi:
					if depth == 0 {
						incomplete = false
						break scan
					}
				}
			}

			if incomplete {
				diags.Addf(diag.ParseIncomplete, ctxAt(begin), "%s declaration is not terminated", tok.Text)
			}
		}

		decls = append(decls, rawDecl{
			keyword: tok.Text,
			text:    string(runes[begin.Offset:end.Offset]),
			begin:   begin,
		})
	}
}

func ctxAt(p itoken.Pos) diag.Context {
	return diag.Context{Profile: "parser", Location: p}
}

// Parse splits source into declarations and parses each one
// independently, so a syntax error in one declaration does not prevent
// the others from being recognized (spec §4.2). It does not follow
// imports or blueprints; that is internal/driver's job.
func Parse(filename, source string) (*Program, diag.List) {
	decls, diags := Split(filename, source)

	prog := &Program{}

	for _, d := range decls {
		switch d.keyword {
		case "import":
			node, err := importParser.ParseString(filename, d.text)
			if err != nil {
				diags.Add(adjust(diag.FromParseError(err, "parser", "import"), d.begin))
				continue
			}
			prog.Imports = append(prog.Imports, node)

		case "blueprint":
			node, err := blueprintParser.ParseString(filename, d.text)
			if err != nil {
				diags.Add(adjust(diag.FromParseError(err, "parser", "blueprint"), d.begin))
				continue
			}
			prog.Blueprints = append(prog.Blueprints, node)

		case "enum":
			node, err := enumParser.ParseString(filename, d.text)
			if err != nil {
				diags.Add(adjust(diag.FromParseError(err, "parser", "enum"), d.begin))
				continue
			}
			prog.Enums = append(prog.Enums, node)

		case "snippet":
			node, err := snippetParser.ParseString(filename, d.text)
			if err != nil {
				diags.Add(adjust(diag.FromParseError(err, "parser", "snippet"), d.begin))
				continue
			}
			prog.Snippets = append(prog.Snippets, node)

		case "record", "struct", "synthetic":
			node, err := objectParser.ParseString(filename, d.text)
			if err != nil {
				diags.Add(adjust(diag.FromParseError(err, "parser", d.keyword), d.begin))
				continue
			}
			prog.Objects = append(prog.Objects, node)

		case "output":
			node, err := outputParser.ParseString(filename, d.text)
			if err != nil {
				diags.Add(adjust(diag.FromParseError(err, "parser", "output"), d.begin))
				continue
			}
			prog.Outputs = append(prog.Outputs, node)
		}
	}

	return prog, diags
}

// adjust rewrites a diagnostic's location from "relative to the
// re-sliced declaration text" (participle always starts at line 1,
// column 1 of whatever it's handed) back into the original file's
// coordinate space.
func adjust(e *diag.Error, declBegin itoken.Pos) *diag.Error {
	if e.Context.Location.File == "" {
		e.Context.Location = declBegin
		return e
	}

	loc := e.Context.Location
	if loc.Line <= 1 {
		loc.Col = declBegin.Col + loc.Col - 1
	}
	loc.Line = declBegin.Line + loc.Line - 1
	loc.Offset = declBegin.Offset + loc.Offset
	e.Context.Location = loc
	return e
}
