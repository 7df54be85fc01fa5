// Package render implements the Renderer (spec §4.6): a recursive tree
// walker that evaluates a parsed template token tree against a resolved
// model to produce one or more output files for a single output
// request. It is modeled on the teacher's encoder/xml.go XMLEncoder — a
// stack of open scopes, a buffer per active output file, and a
// visitor-style dispatch keyed on token kind, the way parser/visitor.go
// dispatches a Visitable callback per TreeNode.
package render

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/golangee/repack/internal/diag"
	"github.com/golangee/repack/internal/resolve"
	"github.com/golangee/repack/internal/template"
	itoken "github.com/golangee/repack/internal/token"
)

// Meta is a blueprint's own declared identity (spec §4.6 "[meta id] /
// [meta name] / [meta kind]").
type Meta struct {
	ID   string
	Name string
	Kind string // "code" | "configure" | "document"
}

// ExtractMeta scans a parsed blueprint's top-level tokens for [meta ...]
// blocks and returns their literal values. It does not evaluate
// variables or require a resolved model, so the Driver can call it to
// decide whether a blueprint's kind matches the requested command
// before paying for a full Render (spec §4.7).
func ExtractMeta(tokens []*template.Token) Meta {
	var m Meta
	for _, t := range tokens {
		if t.Kind != template.KindBlock || t.Block != template.BlockMeta {
			continue
		}
		val := literalText(t.Children)
		switch t.Arg() {
		case "id":
			m.ID = val
		case "name":
			m.Name = val
		case "kind":
			m.Kind = val
		}
	}
	return m
}

func literalText(toks []*template.Token) string {
	var b strings.Builder
	for _, t := range toks {
		if t.Kind == template.KindText {
			b.WriteString(t.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// Executor is the Renderer's collaborator for "[exec]script[/exec]"
// (spec §4.6): the renderer never runs a shell itself, it requests
// confirmation and delegates execution, the same collaborator-boundary
// shape the Driver uses for filesystem writes (spec §4.7's "thin
// collaborators").
type Executor interface {
	Confirm(script string) bool
	Exec(script string) error
}

// Request describes a single output request's parameters (spec §3
// "Output request", §4.8 "Output Filtering"). The Driver builds one
// Request per `output` declaration whose blueprint kind matches the
// invoked command.
type Request struct {
	// Path is the destination relative to which file names produced by
	// "[file name]" are resolved; the Renderer itself only ever deals in
	// the relative names returned from Render.
	Path       string
	Categories []string
	Excludes   []string
	Options    map[string]string
	// Env is set for "configure <env>" requests, binding the "env"
	// variable for instance selection (spec §6).
	Env string
}

// Render evaluates tokens (a parsed blueprint) against model for a
// single output request, returning every produced file keyed by the
// relative name given to "[file]" (or "" for content emitted before any
// [file] directive — callers should treat a non-empty "" entry as a
// malformed blueprint, but Render never fails outright, per the
// error-accumulation discipline that runs through the whole pipeline).
func Render(model *resolve.Model, tokens []*template.Token, req Request, exec Executor) (map[string]string, diag.List) {
	r := &renderer{
		model:    model,
		files:    map[string]*bytes.Buffer{},
		imports:  map[string]map[string]bool{},
		snippets: map[string][]*template.Token{},
		counters: map[string]int{},
		typeMap:  map[string]string{},
		linkMap:  map[string]string{},
		exec:     exec,
	}
	r.objects = filterObjects(model.Objects, req.Categories, req.Excludes)
	r.enums = filterEnums(model.Enums, req.Categories, req.Excludes)

	root := newScope(nil)
	for k, v := range req.Options {
		root.setVar(k, v)
	}
	if req.Env != "" {
		root.setVar("env", req.Env)
	}
	r.scope = root

	r.walkChildren(tokens)
	r.resolveImportMarkers()

	out := make(map[string]string, len(r.files))
	for name, buf := range r.files {
		out[name] = buf.String()
	}
	return out, r.diags
}

type renderer struct {
	model *resolve.Model
	diags diag.List
	scope *scope

	files   map[string]*bytes.Buffer
	curFile string
	imports map[string]map[string]bool

	snippets map[string][]*template.Token
	counters map[string]int
	typeMap  map[string]string
	linkMap  map[string]string
	meta     Meta
	exec     Executor

	objects []*resolve.Object
	enums   []*resolve.Enum

	importMarkers []importMarker
}

// importMarker records where "[imports]" inserted a placeholder, so the
// final import set for that file — which keeps growing as later parts
// of the same file are rendered — can be substituted in once rendering
// finishes, rather than only what had been collected by the time
// "[imports]" was textually reached.
type importMarker struct {
	file  string
	token string
}

func (r *renderer) ctx(pos itoken.Pos) diag.Context {
	return diag.Context{Profile: "render", Location: pos}
}

func (r *renderer) buf() *bytes.Buffer {
	b, ok := r.files[r.curFile]
	if !ok {
		b = &bytes.Buffer{}
		r.files[r.curFile] = b
	}
	return b
}

func (r *renderer) emit(s string) {
	r.buf().WriteString(s)
}

func (r *renderer) addImport(line string) {
	set, ok := r.imports[r.curFile]
	if !ok {
		set = map[string]bool{}
		r.imports[r.curFile] = set
	}
	set[line] = true
}

func (r *renderer) sortedImportsFor(file string) []string {
	set := r.imports[file]
	lines := make([]string, 0, len(set))
	for l := range set {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	return lines
}

// resolveImportMarkers substitutes every "[imports]" placeholder with
// its file's final import set (spec §4.6 "[imports] serializes the set
// at its position").
func (r *renderer) resolveImportMarkers() {
	for _, m := range r.importMarkers {
		buf, ok := r.files[m.file]
		if !ok {
			continue
		}
		lines := r.sortedImportsFor(m.file)
		var rep string
		if len(lines) > 0 {
			rep = "\n" + strings.Join(lines, "\n") + "\n\n"
		}
		content := strings.Replace(buf.String(), m.token, rep, 1)
		buf.Reset()
		buf.WriteString(content)
	}
}

// renderChildrenToString evaluates children into a scratch buffer
// rather than the current file, for directive bodies whose content is
// a value rather than direct output (spec §4.6's [meta]/[file]/
// [define]/[link]/[exec] bodies).
func (r *renderer) renderChildrenToString(children []*template.Token) string {
	scratch := &bytes.Buffer{}
	saved, had := r.files[r.curFile]
	r.files[r.curFile] = scratch
	r.walkChildren(children)
	if had {
		r.files[r.curFile] = saved
	} else {
		delete(r.files, r.curFile)
	}
	return scratch.String()
}

func (r *renderer) walkChildren(toks []*template.Token) {
	for _, t := range toks {
		r.walk(t)
	}
}

func (r *renderer) walk(t *template.Token) {
	switch t.Kind {
	case template.KindText:
		r.emit(t.Text)
	case template.KindVariable:
		r.renderVariable(t)
	case template.KindImports:
		token := fmt.Sprintf("\x00IMPORTS#%d\x00", len(r.importMarkers))
		r.importMarkers = append(r.importMarkers, importMarker{file: r.curFile, token: token})
		r.emit(token)
	case template.KindImport:
		if len(t.Words) > 1 {
			r.addImport(strings.Join(t.Words[1:], " "))
		}
	case template.KindIncrement:
		r.counters[t.Arg()]++
	case template.KindBr:
		r.emit("\n")
	case template.KindBlock:
		r.walkBlock(t)
	}
}

func (r *renderer) renderVariable(t *template.Token) {
	var exprWord string
	if t.Name() == "variable" {
		exprWord = t.Arg()
	} else {
		exprWord = t.Name()
	}
	if exprWord == "" {
		return
	}

	segs := strings.Split(exprWord, ".")
	name := segs[0]
	mods := segs[1:]

	val, ok := r.resolveVar(name)
	if !ok {
		r.diags.Add(diag.New(diag.VariableNotInScope, r.ctx(t.Pos), "unknown variable %q", name))
		r.emit(fmt.Sprintf("[err: %s]", name))
		return
	}

	if key, ok := r.scope.lookupLinkKey(name); ok {
		r.maybeEmitImport(key, val)
	}

	out, ok := applyModifiers(val, mods)
	if !ok {
		r.diags.Add(diag.New(diag.InvalidVariableModifier, r.ctx(t.Pos), "invalid modifier in %q", exprWord))
	}
	r.emit(out)
}

func (r *renderer) resolveVar(name string) (string, bool) {
	if v, ok := r.scope.lookupVar(name); ok {
		return v, true
	}
	if n, ok := r.counters[name]; ok {
		return strconv.Itoa(n), true
	}
	return "", false
}

func (r *renderer) maybeEmitImport(key, typeName string) {
	tmpl, ok := r.linkMap[key]
	if !ok {
		return
	}
	r.addImport(strings.ReplaceAll(tmpl, "$", typeName))
}

func (r *renderer) walkBlock(t *template.Token) {
	switch t.Block {
	case template.BlockMeta:
		val := r.renderChildrenToString(t.Children)
		switch t.Arg() {
		case "id":
			r.meta.ID = val
		case "name":
			r.meta.Name = val
		case "kind":
			r.meta.Kind = val
		}
	case template.BlockFile:
		r.curFile = r.renderChildrenToString(t.Children)
		r.buf() // ensure the file exists even if nothing is ever written to it
	case template.BlockIf:
		if r.scope.lookupFlag(t.Arg()) {
			r.walkChildren(t.Children)
		}
	case template.BlockIfn:
		if !r.scope.lookupFlag(t.Arg()) {
			r.walkChildren(t.Children)
		}
	case template.BlockEach:
		r.walkEach(t, false)
	case template.BlockEachr:
		r.walkEach(t, true)
	case template.BlockDefine:
		r.typeMap[t.Arg()] = r.renderChildrenToString(t.Children)
	case template.BlockLink:
		r.linkMap[t.Arg()] = r.renderChildrenToString(t.Children)
	case template.BlockFunc:
		r.walkFunc(t, false)
	case template.BlockNfunc:
		r.walkFunc(t, true)
	case template.BlockJoin:
		// Separator helper: renders its body only between non-last
		// iteration elements, equivalent to wrapping the body in
		// "[if sep]...[/if]" (spec §4.6 names the "sep" flag precisely
		// for this purpose but leaves [join] itself undefined beyond
		// "Block tokens"; resolved here as shorthand for that check).
		if r.scope.lookupFlag("sep") {
			r.walkChildren(t.Children)
		}
	case template.BlockRef:
		r.walkRef(t)
	case template.BlockTrim:
		r.walkTrim(t)
	case template.BlockExec:
		r.walkExec(t)
	case template.BlockSnippet:
		r.snippets[t.Arg()] = t.Children
	case template.BlockRender:
		name := t.Arg()
		body, ok := r.snippets[name]
		if !ok {
			r.diags.Add(diag.New(diag.UnknownSnippet, r.ctx(t.Pos), "render: unknown snippet %q", name))
			return
		}
		r.walkChildren(body)
	}
}

func (r *renderer) walkEach(t *template.Token, reverse bool) {
	switch t.Arg() {
	case "struct":
		r.iterate(len(r.objects), reverse, t.Children, func(i int, s *scope) {
			bindObject(s, r.objects[i])
		})
	case "enum":
		r.iterate(len(r.enums), reverse, t.Children, func(i int, s *scope) {
			bindEnum(s, r.enums[i])
		})
	case "field":
		obj := r.scope.curObject()
		if obj == nil {
			return
		}
		r.iterate(len(obj.Fields), reverse, t.Children, func(i int, s *scope) {
			r.bindField(s, obj.Fields[i])
		})
	case "case":
		en := r.scope.curEnum()
		if en == nil {
			return
		}
		r.iterate(len(en.Cases), reverse, t.Children, func(i int, s *scope) {
			bindCase(s, &en.Cases[i])
		})
	case "query":
		obj := r.scope.curObject()
		if obj == nil {
			return
		}
		r.iterate(len(obj.Queries), reverse, t.Children, func(i int, s *scope) {
			bindQuery(s, obj.Queries[i])
		})
	case "arg":
		if q := r.scope.curQuery(); q != nil {
			r.iterate(len(q.Params), reverse, t.Children, func(i int, s *scope) {
				r.bindParam(s, q.Params[i])
			})
			return
		}
		if fn := r.scope.curFn(); fn != nil {
			r.iterate(len(fn.Args), reverse, t.Children, func(i int, s *scope) {
				s.setVar("value", fn.Args[i])
				s.setVar("name", strconv.Itoa(i))
			})
			return
		}
	default:
		r.diags.Add(diag.New(diag.SyntaxError, r.ctx(t.Pos), "unknown iteration kind %q", t.Arg()))
	}
}

// iterate runs body once per element in [0,n), innermost scope bound by
// bind, in forward or reverse order, setting the "sep" flag false only
// on the last rendered element (spec §4.6 "Iteration semantics").
func (r *renderer) iterate(n int, reverse bool, body []*template.Token, bind func(i int, s *scope)) {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}
	for pos, i := range order {
		child := newScope(r.scope)
		bind(i, child)
		child.setFlag("sep", pos != len(order)-1)
		saved := r.scope
		r.scope = child
		r.walkChildren(body)
		r.scope = saved
	}
}

func bindObject(s *scope, o *resolve.Object) {
	s.object = o
	s.setVar("name", o.Name)
	s.setVar("table", o.Table)
	s.setFlag("record", o.Kind == resolve.KindRecord)
	s.setFlag("struct", o.Kind == resolve.KindStruct)
	s.setFlag("syn", o.Kind == resolve.KindSynthetic)
	s.setFlag("has_joins", len(o.Joins) > 0)
	s.setFlag("queries", len(o.Queries) > 0)
}

func bindEnum(s *scope, e *resolve.Enum) {
	s.enum = e
	s.setVar("name", e.Name)
}

func bindCase(s *scope, c *resolve.EnumCaseValue) {
	s.ecase = c
	s.setVar("name", c.Name)
	s.setVar("value", c.Value)
}

func bindQuery(s *scope, q *resolve.Query) {
	s.query = q
	s.setVar("name", q.Name)
	s.setVar("body", q.Body)
	s.setFlag("returns_one", q.Cardinality == resolve.CardinalityOne)
	s.setFlag("returns_many", q.Cardinality == resolve.CardinalityMany)
	s.setFlag("returns_none", q.Cardinality == resolve.CardinalityNone)
}

func (r *renderer) bindField(s *scope, f *resolve.Field) {
	s.field = f
	s.setVar("name", f.Name)
	text, key := r.fieldTypeTextAndKey(f)
	s.setVarWithLink("type", text, key)
	s.setFlag("optional", f.Optional)
	s.setFlag("array", f.Array)
	s.setFlag("custom", f.TypeKind == resolve.TypeObject || f.TypeKind == resolve.TypeEnum)
	s.setFlag("local", !f.IsExternal())
}

func (r *renderer) bindParam(s *scope, p resolve.Param) {
	s.setVar("name", p.Name)
	text, key := r.paramTypeTextAndKey(p)
	s.setVarWithLink("type", text, key)
	s.setFlag("optional", p.Optional)
	s.setFlag("array", p.Array)
	s.setFlag("custom", p.TypeKind == resolve.TypeObject || p.TypeKind == resolve.TypeEnum)
}

// fieldTypeTextAndKey computes the rendered type text for a field and
// the link-map key that should govern import emission for it (spec
// §4.6 "Type map and link map"): a primitive's own name for primitives,
// or the generic "custom" key for enum/object references.
func (r *renderer) fieldTypeTextAndKey(f *resolve.Field) (text, key string) {
	switch f.TypeKind {
	case resolve.TypePrimitive:
		key = string(f.Primitive)
		if t, ok := r.typeMap[key]; ok {
			return t, key
		}
		return key, key
	case resolve.TypeEnum:
		if f.Enum != nil {
			return f.Enum.Name, "custom"
		}
	case resolve.TypeObject:
		if f.Object != nil {
			return f.Object.Name, "custom"
		}
	}
	return "", ""
}

func (r *renderer) paramTypeTextAndKey(p resolve.Param) (text, key string) {
	switch p.TypeKind {
	case resolve.TypePrimitive:
		key = string(p.Primitive)
		if t, ok := r.typeMap[key]; ok {
			return t, key
		}
		return key, key
	case resolve.TypeEnum:
		if p.Enum != nil {
			return p.Enum.Name, "custom"
		}
	case resolve.TypeObject:
		if p.Object != nil {
			return p.Object.Name, "custom"
		}
	}
	return "", ""
}

func (r *renderer) walkFunc(t *template.Token, negate bool) {
	parts := strings.SplitN(t.Arg(), ".", 2)
	if len(parts) != 2 {
		r.diags.Add(diag.New(diag.SyntaxError, r.ctx(t.Pos), "malformed function reference %q, want ns.name", t.Arg()))
		return
	}
	ns, name := parts[0], parts[1]

	var fns []*resolve.Function
	if f := r.scope.curField(); f != nil {
		fns = resolve.FindFuncs(f.Functions, ns, name)
	} else if o := r.scope.curObject(); o != nil {
		fns = resolve.FindFuncs(o.Functions, ns, name)
	}

	if negate {
		if len(fns) > 0 {
			return
		}
		child := newScope(r.scope)
		child.setFlag("has_args", false)
		saved := r.scope
		r.scope = child
		r.walkChildren(t.Children)
		r.scope = saved
		return
	}

	for _, fn := range fns {
		child := newScope(r.scope)
		child.fn = fn
		for i, a := range fn.Args {
			child.setVar(strconv.Itoa(i), a)
		}
		child.setFlag("has_args", len(fn.Args) > 0)
		saved := r.scope
		r.scope = child
		r.walkChildren(t.Children)
		r.scope = saved
	}
}

// walkRef pushes the object or enum a custom-typed field refers to as
// the current scope, so a template can recurse into the referenced
// type's own fields/cases (e.g. to render a nested DTO). It is a no-op,
// not an error, when the current field isn't a custom reference — the
// same forward-compatible leniency spec §4.6 specifies for [ifn] on an
// unknown flag.
func (r *renderer) walkRef(t *template.Token) {
	f := r.scope.curField()
	if f == nil {
		return
	}
	child := newScope(r.scope)
	switch f.TypeKind {
	case resolve.TypeObject:
		if f.Object == nil {
			return
		}
		bindObject(child, f.Object)
	case resolve.TypeEnum:
		if f.Enum == nil {
			return
		}
		bindEnum(child, f.Enum)
	default:
		return
	}
	saved := r.scope
	r.scope = child
	r.walkChildren(t.Children)
	r.scope = saved
}

// walkTrim renders body into a scratch buffer, then deletes the longest
// suffix of the current file buffer that matches a suffix of that
// scratch text (spec §4.6 "delete the longest matching suffix of it
// from the current file buffer"): body is never itself appended, only
// used to find how much of whatever the buffer already ends with
// should be cut — the standard trick for stripping a trailing
// separator a preceding loop wrote unconditionally.
func (r *renderer) walkTrim(t *template.Token) {
	pattern := r.renderChildrenToString(t.Children)
	buf := r.buf()
	content := buf.String()
	cut := longestMatchingSuffix(content, pattern)
	buf.Truncate(len(content) - cut)
}

func longestMatchingSuffix(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for l := max; l > 0; l-- {
		if a[len(a)-l:] == b[len(b)-l:] {
			return l
		}
	}
	return 0
}

func (r *renderer) walkExec(t *template.Token) {
	script := r.renderChildrenToString(t.Children)
	if r.exec == nil || !r.exec.Confirm(script) {
		r.diags.Add(diag.New(diag.ProcessExecutionFailed, r.ctx(t.Pos), "exec declined or no collaborator configured"))
		return
	}
	if err := r.exec.Exec(script); err != nil {
		r.diags.Add(diag.Wrap(diag.ProcessExecutionFailed, r.ctx(t.Pos), err, "exec failed"))
	}
}

// filterObjects/filterEnums implement spec §4.8 "Output Filtering",
// preserving resolved order (stable filtering).
func filterObjects(objs []*resolve.Object, categories, excludes []string) []*resolve.Object {
	var out []*resolve.Object
	for _, o := range objs {
		if included(o.Name, o.Categories, categories, excludes) {
			out = append(out, o)
		}
	}
	return out
}

func filterEnums(enums []*resolve.Enum, categories, excludes []string) []*resolve.Enum {
	var out []*resolve.Enum
	for _, e := range enums {
		if included(e.Name, e.Categories, categories, excludes) {
			out = append(out, e)
		}
	}
	return out
}

func included(name string, ownCategories, categories, excludes []string) bool {
	for _, x := range excludes {
		if x == name {
			return false
		}
	}
	if len(categories) == 0 {
		return true
	}
	for _, c := range ownCategories {
		for _, want := range categories {
			if c == want {
				return true
			}
		}
	}
	return false
}
