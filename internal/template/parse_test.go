package template_test

import (
	"testing"

	"github.com/golangee/repack/internal/template"
)

func TestParseBareTextLeaf(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "hello world")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Kind != template.KindText || toks[0].Text != "hello world" {
		t.Fatalf("expected single text leaf, got %+v", toks)
	}
}

func TestParseEscapedBracketIsLiteral(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", `a \[b\] c`)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Text != "a [b] c" {
		t.Fatalf("expected escaped brackets folded to literal text, got %+v", toks)
	}
}

func TestParseAutoCloseVariable(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[variable name]")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Kind != template.KindVariable || toks[0].Name() != "variable" || toks[0].Arg() != "name" {
		t.Fatalf("expected explicit variable leaf, got %+v", toks)
	}
}

func TestParseBareIdentifierIsVariableShorthand(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[name.uppercase]")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Kind != template.KindVariable || toks[0].Name() != "name.uppercase" {
		t.Fatalf("expected bare variable shorthand token, got %+v", toks)
	}
}

func TestParseAutoCloseLeavesDoNotConsumeFollowingText(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[br]after")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 2 || toks[0].Kind != template.KindBr || toks[1].Kind != template.KindText || toks[1].Text != "after" {
		t.Fatalf("expected [br] leaf followed by text, got %+v", toks)
	}
}

func TestParseBlockWithChildren(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[each field]x[/each]")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Kind != template.KindBlock || toks[0].Block != template.BlockEach || toks[0].Arg() != "field" {
		t.Fatalf("expected each block, got %+v", toks)
	}
	if len(toks[0].Children) != 1 || toks[0].Children[0].Text != "x" {
		t.Fatalf("expected one text child, got %+v", toks[0].Children)
	}
}

func TestParseNestedBlocks(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[if has_joins][each field][name][/each][/if]")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Block != template.BlockIf {
		t.Fatalf("expected outer if block, got %+v", toks)
	}
	inner := toks[0].Children
	if len(inner) != 1 || inner[0].Block != template.BlockEach {
		t.Fatalf("expected nested each block, got %+v", inner)
	}
	if len(inner[0].Children) != 1 || inner[0].Children[0].Kind != template.KindVariable || inner[0].Children[0].Name() != "name" {
		t.Fatalf("expected variable reference inside each, got %+v", inner[0].Children)
	}
}

func TestParseUnterminatedBlockReportsSyntaxError(t *testing.T) {
	_, diags := template.Parse("t.tmpl", "[each field]x")
	if !diags.HasErrors() {
		t.Fatal("expected a diagnostic for the unterminated block")
	}
}

func TestParseMismatchedCloseReportsSyntaxError(t *testing.T) {
	_, diags := template.Parse("t.tmpl", "[each field]x[/if]")
	if !diags.HasErrors() {
		t.Fatal("expected a diagnostic for the mismatched closing tag")
	}
}

func TestParseVerbatimContentPreservesSpecialCharacters(t *testing.T) {
	// Query fragments and generated-code bodies routinely contain
	// characters the structured SL tokenizer would reject outright
	// (<, >, &, backticks, stray quotes); TL text must pass them through
	// untouched.
	src := "func Foo() string { return `<a href=\"x\">` + a<b && c>d }"
	toks, diags := template.Parse("t.tmpl", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Text != src {
		t.Fatalf("expected verbatim passthrough, got %+v", toks)
	}
}

func TestParseDefineBlockCapturesHeaderAndBody(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[define primitive]string[/define]")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(toks) != 1 || toks[0].Block != template.BlockDefine || toks[0].Arg() != "primitive" {
		t.Fatalf("expected define block, got %+v", toks)
	}
	if len(toks[0].Children) != 1 || toks[0].Children[0].Text != "string" {
		t.Fatalf("expected literal body, got %+v", toks[0].Children)
	}
}

func TestParseFuncHeaderKeepsDottedName(t *testing.T) {
	toks, diags := template.Parse("t.tmpl", "[func db.quote]x[/func]")
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if toks[0].Block != template.BlockFunc || toks[0].Arg() != "db.quote" {
		t.Fatalf("expected func block with dotted name preserved, got %+v", toks[0])
	}
}
