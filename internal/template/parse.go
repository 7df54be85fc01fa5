package template

import (
	"strings"

	"github.com/golangee/repack/internal/diag"
	itoken "github.com/golangee/repack/internal/token"
)

// Parse turns TL source into the top-level token sequence (spec §4.5).
//
// Literal text is captured by raw rune scanning that stops only at an
// unescaped '[' — template output is arbitrary target-language source
// (Go, SQL, TypeScript, …) and cannot be pushed through the structured
// Ident/String/punctuation classifier the way SL declarations can,
// mirroring the teacher's own split between structured G2 tokenizing
// and verbatim G1 char-data capture (token/lexer.go's WantG1AttributeCharData
// state). Only a tag's header — the text between '[' and ']' — is
// structured enough (bare identifiers, dotted names) to not need that
// verbatim treatment.
func Parse(filename, source string) ([]*Token, diag.List) {
	p := &parser{filename: filename, runes: []rune(source)}
	children := p.parseChildren("")
	return children, p.diags
}

type parser struct {
	filename string
	runes    []rune
	i        int
	diags    diag.List
}

func (p *parser) eof() bool { return p.i >= len(p.runes) }

func (p *parser) posAt(offset int) itoken.Pos {
	line, col := 1, 1
	for _, r := range p.runes[:offset] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return itoken.Pos{File: p.filename, Line: line, Col: col, Offset: offset}
}

func (p *parser) ctx(offset int) diag.Context {
	return diag.Context{Profile: "template", Location: p.posAt(offset)}
}

// parseChildren scans tokens until it finds the close tag matching
// closeName (or EOF, for the top-level call where closeName is "").
func (p *parser) parseChildren(closeName string) []*Token {
	var children []*Token
	var text strings.Builder
	textStart := p.i

	flush := func(upto int) {
		if upto > textStart {
			text.WriteString(string(p.runes[textStart:upto]))
		}
	}
	emit := func(pos int) {
		if text.Len() > 0 {
			children = append(children, &Token{Kind: KindText, Text: text.String(), Pos: p.posAt(pos)})
			text.Reset()
		}
	}

	for {
		if p.eof() {
			flush(p.i)
			emit(p.i)
			if closeName != "" {
				p.diags.Addf(diag.SyntaxError, p.ctx(p.i), "unterminated block [%s]: missing [/%s]", closeName, closeName)
			}
			return children
		}

		r := p.runes[p.i]

		if r == '\\' && p.i+1 < len(p.runes) && p.runes[p.i+1] == '[' {
			flush(p.i)
			text.WriteByte('[')
			p.i += 2
			textStart = p.i
			continue
		}

		if r == '[' {
			flush(p.i)
			tagStart := p.i
			emit(tagStart)

			tok, isClose, closeTarget := p.parseTag()
			if tok == nil && closeTarget == "" && !isClose {
				// Unterminated tag: parseTag already reported it and
				// consumed to EOF.
				textStart = p.i
				continue
			}

			if isClose {
				if closeTarget != closeName {
					p.diags.Addf(diag.SyntaxError, p.ctx(tagStart), "unexpected closing tag [/%s], expected [/%s]", closeTarget, closeName)
					if closeName == "" {
						// Top level: ignore the stray close and keep scanning.
						textStart = p.i
						continue
					}
				}
				return children
			}

			if tok != nil {
				children = append(children, tok)
			}
			textStart = p.i
			continue
		}

		p.i++
	}
}

// parseTag consumes one "[...]" starting at p.runes[p.i] == '['. It
// returns either a completed leaf/block Token, or isClose=true with the
// name being closed, or (nil, false, "") if the tag was malformed (a
// diagnostic has already been recorded and scanning resumed past it).
func (p *parser) parseTag() (tok *Token, isClose bool, closeTarget string) {
	openPos := p.i
	p.i++ // consume '['

	depth := 0
	headerStart := p.i
	headerEnd := -1
	for !p.eof() {
		r := p.runes[p.i]
		if r == '\\' && p.i+1 < len(p.runes) && p.runes[p.i+1] == '[' {
			p.i += 2
			continue
		}
		if r == '[' {
			depth++
			p.i++
			continue
		}
		if r == ']' {
			if depth > 0 {
				depth--
				p.i++
				continue
			}
			headerEnd = p.i
			p.i++
			break
		}
		p.i++
	}

	if headerEnd < 0 {
		p.diags.Addf(diag.SyntaxError, p.ctx(openPos), "unterminated tag: missing ']'")
		return nil, false, ""
	}

	header := strings.TrimSpace(string(p.runes[headerStart:headerEnd]))
	pos := p.posAt(openPos)

	if strings.HasPrefix(header, "/") {
		return nil, true, strings.TrimSpace(strings.TrimPrefix(header, "/"))
	}

	words := strings.Fields(header)
	if len(words) == 0 {
		p.diags.Addf(diag.SyntaxError, p.ctx(openPos), "empty tag []")
		return nil, false, ""
	}

	name := words[0]

	if kind, ok := autoCloseKinds[name]; ok {
		return &Token{Kind: kind, Words: words, Pos: pos}, false, ""
	}

	if block, ok := blockKinds[name]; ok {
		children := p.parseChildren(name)
		return &Token{Kind: KindBlock, Block: block, Words: words, Children: children, Pos: pos}, false, ""
	}

	// Unrecognized leading identifier: bare variable reference (spec §4.5).
	return &Token{Kind: KindVariable, Words: words, Pos: pos}, false, ""
}
