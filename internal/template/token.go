// Package template implements the TL Parser (spec §4.5): it reads a
// template source and produces a tree of tokens — auto-close leaves,
// bare variable references, and nested block directives — preserving
// literal inline text verbatim, which matters for [file], [define],
// [link] and query-fragment bodies.
package template

import itoken "github.com/golangee/repack/internal/token"

// Kind discriminates the closed set of token shapes (spec §4.5).
type Kind int

const (
	// KindText is a leaf holding literal source text between tags.
	KindText Kind = iota
	// KindVariable is a bare variable reference: either the explicit
	// "[variable name]" form or an unrecognized "[name]" shorthand.
	KindVariable
	KindImports
	KindImport
	KindIncrement
	KindBr
	// KindBlock is a "[main secondary?] ... [/main]" directive.
	KindBlock
)

// BlockKind is the closed set of recognized block directive names.
type BlockKind string

const (
	BlockMeta    BlockKind = "meta"
	BlockFile    BlockKind = "file"
	BlockIf      BlockKind = "if"
	BlockIfn     BlockKind = "ifn"
	BlockEach    BlockKind = "each"
	BlockEachr   BlockKind = "eachr"
	BlockDefine  BlockKind = "define"
	BlockFunc    BlockKind = "func"
	BlockNfunc   BlockKind = "nfunc"
	BlockJoin    BlockKind = "join"
	BlockRef     BlockKind = "ref"
	BlockLink    BlockKind = "link"
	BlockTrim    BlockKind = "trim"
	BlockExec    BlockKind = "exec"
	BlockSnippet BlockKind = "snippet"
	BlockRender  BlockKind = "render"
)

// autoCloseKinds are the leaf directives that never expect a matching
// "[/name]" (spec §4.5 "Auto-close tokens").
var autoCloseKinds = map[string]Kind{
	"variable":  KindVariable,
	"imports":   KindImports,
	"import":    KindImport,
	"increment": KindIncrement,
	"br":        KindBr,
}

// blockKinds are the directives that open a nested region closed by a
// matching "[/name]" (spec §4.5 "Block tokens").
var blockKinds = map[string]BlockKind{
	"meta": BlockMeta, "file": BlockFile, "if": BlockIf, "ifn": BlockIfn,
	"each": BlockEach, "eachr": BlockEachr, "define": BlockDefine,
	"func": BlockFunc, "nfunc": BlockNfunc, "join": BlockJoin, "ref": BlockRef,
	"link": BlockLink, "trim": BlockTrim, "exec": BlockExec,
	"snippet": BlockSnippet, "render": BlockRender,
}

// Token is one node of the parsed template tree.
type Token struct {
	Kind  Kind
	Block BlockKind

	// Words holds the whitespace-separated elements of the tag header,
	// e.g. ["each", "field"], ["func", "ns.name"], ["link", "custom"].
	// For a KindVariable written in the short form, Words[0] is the
	// (possibly dotted-modifier) variable name, e.g. "name.uppercase";
	// for the explicit "[variable name]" form, Words[0] is "variable"
	// and Words[1] the name.
	Words []string

	// Text holds the literal source text for a KindText leaf.
	Text string

	Children []*Token
	Pos      itoken.Pos
}

// Name is the directive or variable name (Words[0]).
func (t *Token) Name() string {
	if len(t.Words) == 0 {
		return ""
	}
	return t.Words[0]
}

// Arg is the directive's secondary word, if any (Words[1]).
func (t *Token) Arg() string {
	if len(t.Words) < 2 {
		return ""
	}
	return t.Words[1]
}
