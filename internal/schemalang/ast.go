// Package schemalang implements the AST and per-declaration parser for
// the schema language (SL): enums, objects (record/struct/synthetic),
// snippets, joins, queries and output requests (spec §3, §4.2, §6).
package schemalang

import "github.com/alecthomas/participle/v2/lexer"

// ImportDecl loads another SL file, or all "*.repack" files in a
// directory when Path ends in "*".
type ImportDecl struct {
	Pos  lexer.Position
	Path string `"import" @String`
}

// BlueprintDecl enqueues a template file to be loaded by the driver.
type BlueprintDecl struct {
	Pos  lexer.Position
	Path string `"blueprint" @String`
}

// EnumDecl declares a closed set of named cases.
type EnumDecl struct {
	Pos        lexer.Position
	Name       string      `"enum" @Ident`
	Categories []string    `("#" @Ident)*`
	Cases      []*EnumCase `"{" @@* "}"`
}

// EnumCase is one case of an enum; Value defaults to Name when absent
// (spec §3, §8 "Enum with one case and no custom value").
type EnumCase struct {
	Pos   lexer.Position
	Name  string  `@Ident`
	Value *string `@String?`
}

// ResolvedValue returns the case's wire value: its explicit Value, or
// its Name if none was given.
func (c *EnumCase) ResolvedValue() string {
	if c.Value != nil {
		return *c.Value
	}
	return c.Name
}

// ArrayMark is a marker struct used to capture the optional "[]" suffix
// of a TypeExpr as presence rather than as literal text, the way the
// teacher captures its own "SliceLooper" marker in ast/ast.go. The "?"
// suffix is captured directly as TypeExpr.Optional.
type ArrayMark struct {
	Present bool `@ArrayMarker`
}

// TypeExpr is "Ident [. Ident] [[]] [?]" (spec §4.2): a primitive,
// enum, or custom-object type name, optionally qualified with a field
// name when this expresses an external-field reference ("Other.field"),
// optionally an array, optionally optional.
type TypeExpr struct {
	Pos      lexer.Position
	Name     string     `@Ident`
	Sub      *string    `("." @Ident)?`
	Array    *ArrayMark `@@?`
	Optional bool       `@"?"?`
}

// IsExternalRef reports whether this TypeExpr is the "Other.field" form.
func (t *TypeExpr) IsExternalRef() bool {
	return t.Sub != nil
}

// FuncArg is a single function argument: a string literal or a bare
// identifier (spec §3 "ordered list of string arguments").
type FuncArg struct {
	Pos   lexer.Position
	Value string `@String | @Ident`
}

// FunctionDecl is "ns:name(arg1, arg2, ...)" (spec §3). It attaches
// either to a field (trailing a FieldDecl) or directly to an object,
// both forms sharing this grammar.
type FunctionDecl struct {
	Pos       lexer.Position
	Namespace string     `@Ident ":"`
	Name      string     `@Ident`
	Args      []*FuncArg `("(" (@@ ("," @@)*)? ")")?`
}

// FieldDecl is "name TypeExpr [FunctionList]" (spec §4.2).
type FieldDecl struct {
	Pos       lexer.Position
	Name      string          `@Ident`
	Type      TypeExpr        `@@`
	Functions []*FunctionDecl `@@*`
}

// JoinDecl attaches a named relational predicate to an object: a local
// alias, the referenced object's name, and a predicate template that
// may contain "$name", "$super" and "$<alias>" (spec §3).
type JoinDecl struct {
	Pos       lexer.Position
	Alias     string `"join" @Ident`
	Target    string `@Ident`
	Predicate string `@String`
}

// SnippetInclude splices a named snippet's fields/functions into the
// enclosing object body (spec §3, §4.3 pass 1).
type SnippetInclude struct {
	Pos  lexer.Position
	Name string `"!" @Ident`
}

// Cardinality is the return shape of a query: none/one/many (spec §3).
type Cardinality string

const (
	CardinalityNone Cardinality = "none"
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Param is one query parameter: a name and a type shape.
type Param struct {
	Pos  lexer.Position
	Name string   `@Ident`
	Type TypeExpr `@@`
}

// cardTag is shared by all three query forms: "(: one|many)?", defaulting
// to CardinalityNone when absent (spec §3).
type cardTag struct {
	Card *string `(":" @("one"|"many"))?`
}

func (c cardTag) Cardinality() Cardinality {
	if c.Card == nil {
		return CardinalityNone
	}
	return Cardinality(*c.Card)
}

// ManualQueryDecl is `query Name(arg1 Type1, ...) = "SQL" [: one|many]`.
type ManualQueryDecl struct {
	Pos    lexer.Position
	Name   string   `"query" @Ident`
	Params []*Param `"(" (@@ ("," @@)*)? ")"`
	Body   string   `"=" @String`
	cardTag
}

// InsertQueryDecl is `insert Name(field1, field2, ...) [: one|many]`.
// It is rewritten into manual form during resolution (spec §4.3 pass 6).
type InsertQueryDecl struct {
	Pos    lexer.Position
	Name   string   `"insert" @Ident`
	Fields []string `"(" (@Ident ("," @Ident)*)? ")"`
	cardTag
}

// UpdateQueryDecl is `update Name(arg1 Type1, ...) = "fragment" [: one|many]`.
// It is rewritten into manual form during resolution (spec §4.3 pass 6).
type UpdateQueryDecl struct {
	Pos      lexer.Position
	Name     string   `"update" @Ident`
	Params   []*Param `"(" (@@ ("," @@)*)? ")"`
	Fragment string   `"=" @String`
	cardTag
}

// Member is one interleaved element of an object body: a snippet
// inclusion, a join, a query, an object-level function, or a field
// (spec §4.2 "the body admits any interleaving of...").
type Member struct {
	Snippet      *SnippetInclude  `( @@`
	Join         *JoinDecl        `| @@`
	ManualQuery  *ManualQueryDecl `| @@`
	InsertQuery  *InsertQueryDecl `| @@`
	UpdateQuery  *UpdateQueryDecl `| @@`
	Function     *FunctionDecl    `| @@`
	Field        *FieldDecl       `| @@ )`
}

// SnippetDecl is a named, parse-only bundle of field/function
// declarations (spec §3 "Snippet"). It is declared at the top level and
// spliced into an object body wherever a SnippetInclude ("!Name")
// references it (spec §4.3 pass 1).
type SnippetDecl struct {
	Pos     lexer.Position
	Name    string    `"snippet" @Ident`
	Members []*Member `"{" @@* "}"`
}

// ObjectDecl is "Kind Name [: Parent] [@Table] {#Category}* { body }"
// (spec §3, §4.2). Kind is one of "record", "struct", "synthetic".
type ObjectDecl struct {
	Pos        lexer.Position
	Kind       string    `@("record"|"struct"|"synthetic")`
	Name       string    `@Ident`
	Parent     *string   `(":" @Ident)?`
	Table      *string   `("@" @Ident)?`
	Categories []string  `("#" @Ident)*`
	Members    []*Member `"{" @@* "}"`
}

// OutputOption is one "key value" pair inside an output request's body.
type OutputOption struct {
	Pos   lexer.Position
	Key   string `@Ident`
	Value string `@String | @Ident`
}

// OutputDecl requests rendering of one blueprint against the resolved
// model (spec §3 "Output request").
type OutputDecl struct {
	Pos        lexer.Position
	Blueprint  string          `"output" @Ident`
	Path       string          `"@" @String`
	Categories []string        `("#" @Ident)*`
	Excludes   []string        `("!" @Ident)*`
	Options    []*OutputOption `("{" @@* "}")?`
}

// Program is the full, assembled contents of every SL file reachable
// from the top-level schema file, including transitively imported ones
// (spec §4.7). Parse returns one Program per file; internal/driver's
// loader appends the declarations of every imported file into a single
// Program, so it is never produced by a single participle invocation.
type Program struct {
	Imports    []*ImportDecl
	Blueprints []*BlueprintDecl
	Enums      []*EnumDecl
	Snippets   []*SnippetDecl
	Objects    []*ObjectDecl
	Outputs    []*OutputDecl
}
