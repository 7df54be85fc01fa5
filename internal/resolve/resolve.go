package resolve

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/golangee/repack/internal/diag"
	"github.com/golangee/repack/internal/interpolate"
	"github.com/golangee/repack/internal/schemalang"
	itoken "github.com/golangee/repack/internal/token"
)

// builder carries the intermediate state threaded through the seven
// resolution passes (spec §4.3). Nothing in here survives past Resolve;
// the only thing handed back to callers is the finished Model.
type builder struct {
	enums      []*Enum
	enumByName map[string]*Enum

	objects    map[string]*Object
	declOrder  []*Object
	decls      map[*Object]*schemalang.ObjectDecl
	snippets   map[string]*schemalang.SnippetDecl
	expanded   map[*Object][]*schemalang.Member
	edges      map[*Object][]*Object
	ownerOf    map[*Field]*Object
	rawQueries map[*Object][]*schemalang.Member
}

// Resolve runs the seven resolution passes over prog in order, mirroring
// how parser/validate.go chains independent checks over a parsed tree
// and accumulates their errors rather than stopping at the first.
func Resolve(prog *schemalang.Program) (*Model, diag.List) {
	var diags diag.List

	b := &builder{
		enumByName: map[string]*Enum{},
		objects:    map[string]*Object{},
		decls:      map[*Object]*schemalang.ObjectDecl{},
		snippets:   map[string]*schemalang.SnippetDecl{},
		expanded:   map[*Object][]*schemalang.Member{},
		edges:      map[*Object][]*Object{},
		ownerOf:    map[*Field]*Object{},
		rawQueries: map[*Object][]*schemalang.Member{},
	}

	for _, e := range prog.Enums {
		b.buildEnum(e)
	}
	for _, s := range prog.Snippets {
		b.snippets[s.Name] = s
	}

	for i, od := range prog.Objects {
		obj := &Object{
			Name:       od.Name,
			Kind:       objectKind(od.Kind),
			Categories: od.Categories,
			Index:      i,
			Pos:        posOf(od.Pos),
		}
		if od.Table != nil {
			obj.Table = *od.Table
		}
		if _, dup := b.objects[obj.Name]; dup {
			diags.Addf(diag.DuplicateFieldNames, resolveCtx(obj.Name, "", obj.Pos), "object %q is declared more than once", obj.Name)
			continue
		}
		b.objects[obj.Name] = obj
		b.decls[obj] = od
		b.declOrder = append(b.declOrder, obj)
	}

	// Pass 1: snippet expansion.
	for _, obj := range b.declOrder {
		trail := map[string]bool{}
		b.expanded[obj] = b.expandMembers(b.decls[obj].Members, obj.Name, trail, &diags)
	}

	// Build fields/functions/joins from the expanded member lists. This
	// needs no cross-object ordering: every field's *own* declaration is
	// all that's required to record its pending type shape; only the
	// external-field and custom-type passes below need other objects to
	// already exist, which they do by now.
	for _, obj := range b.declOrder {
		b.populateMembers(obj, &diags)
	}
	for _, obj := range b.declOrder {
		b.resolveJoinTargets(obj, &diags)
	}

	// Pass 2: dependency ordering.
	b.buildEdges()
	order := b.topoSort(&diags)

	// Pass 3: inheritance propagation.
	b.propagateInheritance(order, &diags)

	// Pass 4: external-field resolution.
	inProgress := map[*Field]bool{}
	for _, obj := range order {
		for _, f := range obj.Fields {
			if f.IsExternal() {
				b.resolveExternalField(obj, f, inProgress, &diags)
			}
		}
	}

	// Pass 5: custom-type resolution.
	b.resolveFieldTypes(&diags)

	// Pass 6: auto-query synthesis.
	for _, obj := range order {
		b.buildQueries(obj, &diags)
	}

	// Pass 7: field-name uniqueness.
	b.checkDuplicateFields(&diags)

	return &Model{Enums: b.enums, Objects: order}, diags
}

func objectKind(k string) ObjectKind {
	switch k {
	case "record":
		return KindRecord
	case "struct":
		return KindStruct
	default:
		return KindSynthetic
	}
}

func posOf(p lexer.Position) itoken.Pos {
	return itoken.Pos{File: p.Filename, Line: p.Line, Col: p.Column, Offset: p.Offset}
}

func resolveCtx(scope, sub string, pos itoken.Pos) diag.Context {
	if sub != "" {
		scope = scope + "." + sub
	}
	return diag.Context{Profile: "resolve", Scope: scope, Location: pos}
}

func (b *builder) buildEnum(ed *schemalang.EnumDecl) {
	e := &Enum{Name: ed.Name, Categories: ed.Categories, Pos: posOf(ed.Pos)}
	for _, c := range ed.Cases {
		e.Cases = append(e.Cases, EnumCaseValue{Name: c.Name, Value: c.ResolvedValue()})
	}
	b.enums = append(b.enums, e)
	b.enumByName[e.Name] = e
}

// expandMembers splices snippet includes into member lists, following
// nested includes with a per-chain trail to catch self-inclusion (spec
// §4.3 pass 1).
func (b *builder) expandMembers(members []*schemalang.Member, objName string, trail map[string]bool, diags *diag.List) []*schemalang.Member {
	var out []*schemalang.Member
	for _, m := range members {
		if m.Snippet == nil {
			out = append(out, m)
			continue
		}

		name := m.Snippet.Name
		if trail[name] {
			diags.Addf(diag.SnippetNotFound, resolveCtx(objName, "", posOf(m.Snippet.Pos)), "snippet %q includes itself", name)
			continue
		}
		sd, ok := b.snippets[name]
		if !ok {
			diags.Addf(diag.SnippetNotFound, resolveCtx(objName, "", posOf(m.Snippet.Pos)), "snippet %q is not defined", name)
			continue
		}

		nextTrail := make(map[string]bool, len(trail)+1)
		for k := range trail {
			nextTrail[k] = true
		}
		nextTrail[name] = true
		out = append(out, b.expandMembers(sd.Members, objName, nextTrail, diags)...)
	}
	return out
}

// populateMembers builds Fields/Functions/Joins for obj from its
// expanded member list. Query members are stashed for pass 6, since
// insert/update synthesis needs the object's fields fully typed first.
func (b *builder) populateMembers(obj *Object, diags *diag.List) {
	for _, m := range b.expanded[obj] {
		switch {
		case m.Field != nil:
			f := &Field{
				Name: m.Field.Name,
				Pos:  posOf(m.Field.Pos),
			}
			if m.Field.Type.IsExternalRef() {
				f.TypeKind = TypeExternalRef
				f.ExternalSource = m.Field.Type.Name
				f.ExternalField = *m.Field.Type.Sub
			} else {
				f.pendingName = m.Field.Type.Name
				f.pendingArray = m.Field.Type.Array != nil && m.Field.Type.Array.Present
				f.pendingOptional = m.Field.Type.Optional
			}
			for _, fn := range m.Field.Functions {
				f.Functions = append(f.Functions, convertFunc(fn))
			}
			obj.Fields = append(obj.Fields, f)
			b.ownerOf[f] = obj

		case m.Function != nil:
			obj.Functions = append(obj.Functions, convertFunc(m.Function))

		case m.Join != nil:
			obj.Joins = append(obj.Joins, &Join{
				Alias:     m.Join.Alias,
				Predicate: m.Join.Predicate,
			})

		case m.ManualQuery != nil, m.InsertQuery != nil, m.UpdateQuery != nil:
			b.rawQueries[obj] = append(b.rawQueries[obj], m)
		}
	}
}

func convertFunc(fn *schemalang.FunctionDecl) *Function {
	f := &Function{Namespace: fn.Namespace, Name: fn.Name}
	for _, a := range fn.Args {
		f.Args = append(f.Args, a.Value)
	}
	return f
}

// resolveJoinTargets links each Join's Alias to the Object it names,
// which must already exist since every object was created up front.
func (b *builder) resolveJoinTargets(obj *Object, diags *diag.List) {
	i := 0
	for _, m := range b.expanded[obj] {
		if m.Join == nil {
			continue
		}
		target, ok := b.objects[m.Join.Target]
		if !ok {
			diags.Addf(diag.UnknownObject, resolveCtx(obj.Name, "", posOf(m.Join.Pos)), "join %q references unknown object %q", m.Join.Alias, m.Join.Target)
			i++
			continue
		}
		obj.Joins[i].Target = target
		i++
	}
}

// buildEdges constructs the dependency graph used by pass 2: an edge
// from an object to its parent, and from an object to every other
// object named directly (not through "Other.field") by one of its
// fields (spec §4.3 pass 2).
func (b *builder) buildEdges() {
	for _, obj := range b.declOrder {
		decl := b.decls[obj]
		if decl.Parent != nil {
			if p, ok := b.objects[*decl.Parent]; ok {
				b.edges[obj] = append(b.edges[obj], p)
			}
		}
		for _, f := range obj.Fields {
			if f.IsExternal() {
				continue
			}
			if ref, ok := b.objects[f.pendingName]; ok {
				b.edges[obj] = append(b.edges[obj], ref)
			}
		}
	}
}

// topoSort orders objects so that everything an object depends on
// (its parent, its custom-typed fields) appears before it, detecting
// cycles along the way (spec §4.3 pass 2, CircularDependancy).
func (b *builder) topoSort(diags *diag.List) []*Object {
	const (
		white = iota
		gray
		black
	)
	color := map[*Object]int{}
	var order []*Object
	var stack []string

	var visit func(o *Object)
	visit = func(o *Object) {
		switch color[o] {
		case black:
			return
		case gray:
			diags.Addf(diag.CircularDependancy, resolveCtx(o.Name, "", o.Pos), "circular dependency: %s", strings.Join(append(append([]string{}, stack...), o.Name), " -> "))
			return
		}
		color[o] = gray
		stack = append(stack, o.Name)
		for _, dep := range b.edges[o] {
			visit(dep)
		}
		stack = stack[:len(stack)-1]
		color[o] = black
		order = append(order, o)
	}

	for _, o := range b.declOrder {
		visit(o)
	}
	for i, o := range order {
		o.Index = i
	}
	return order
}

// propagateInheritance resolves each object's Parent pointer and, when
// an object declares no table of its own, inherits its parent's (spec
// §4.3 pass 3). order must list parents before children, which the
// topological sort above guarantees.
func (b *builder) propagateInheritance(order []*Object, diags *diag.List) {
	for _, obj := range order {
		decl := b.decls[obj]
		if decl.Parent == nil {
			continue
		}
		parent, ok := b.objects[*decl.Parent]
		if !ok {
			diags.Addf(diag.ParentObjectDoesNotExist, resolveCtx(obj.Name, "", obj.Pos), "object %q declares parent %q, which does not exist", obj.Name, *decl.Parent)
			continue
		}
		obj.Parent = parent
		if obj.Table == "" {
			obj.Table = parent.Table
		}
	}
}

// resolveExternalField resolves one "Other.field" reference, copying
// the source field's pending type shape onto f (spec §4.3 pass 4). It
// recurses into the source first when the source is itself an
// unresolved external reference, so chains of external refs resolve in
// one pass regardless of declaration order.
func (b *builder) resolveExternalField(obj *Object, f *Field, inProgress map[*Field]bool, diags *diag.List) {
	if f.SourceField != nil || f.pendingName != "" {
		return
	}
	if inProgress[f] {
		diags.Addf(diag.InvalidSuper, resolveCtx(obj.Name, f.Name, f.Pos), "circular external-field reference at %s.%s", obj.Name, f.Name)
		return
	}
	inProgress[f] = true
	defer delete(inProgress, f)

	other := f.ExternalSource
	fieldName := f.ExternalField
	ctx := resolveCtx(obj.Name, f.Name, f.Pos)

	var src *Field
	switch {
	case other == "super":
		if obj.Parent == nil {
			diags.Add(diag.New(diag.InvalidSuper, ctx, "field %q references super, but %q has no parent", f.Name, obj.Name))
			return
		}
		src = obj.Parent.FieldByName(fieldName)
		if src == nil {
			diags.Add(diag.New(diag.FieldNotOnSuper, ctx, "super (%q) has no field %q", obj.Parent.Name, fieldName))
			return
		}

	default:
		if j := obj.JoinByAlias(other); j != nil {
			if j.Target == nil {
				diags.Add(diag.New(diag.InvalidJoin, ctx, "join %q has no resolvable target", other))
				return
			}
			src = j.Target.FieldByName(fieldName)
			if src == nil {
				diags.Add(diag.New(diag.FieldNotOnJoin, ctx, "join %q (%s) has no field %q", other, j.Target.Name, fieldName))
				return
			}
		} else if target, ok := b.objects[other]; ok {
			src = target.FieldByName(fieldName)
			if src == nil {
				diags.Add(diag.New(diag.FieldNotFound, ctx, "object %q has no field %q", other, fieldName))
				return
			}
		} else {
			diags.Add(diag.New(diag.UnknownObject, ctx, "%q is neither a join alias nor a known object", other))
			return
		}
	}

	if src.IsExternal() && src.pendingName == "" {
		if srcObj, ok := b.ownerOf[src]; ok {
			b.resolveExternalField(srcObj, src, inProgress, diags)
		}
	}

	f.SourceField = src
	f.pendingName = src.pendingName
	f.pendingArray = src.pendingArray
	f.pendingOptional = src.pendingOptional
}

// resolveFieldTypes resolves every field's pending type name into a
// concrete Primitive/Enum/Object kind (spec §4.3 pass 5). It runs after
// external-field resolution, so externally-sourced fields are resolved
// the same way as any other by this point.
func (b *builder) resolveFieldTypes(diags *diag.List) {
	for _, obj := range b.declOrder {
		for _, f := range obj.Fields {
			if f.IsExternal() && f.SourceField == nil {
				continue // already reported in pass 4
			}
			name := f.pendingName
			ctx := resolveCtx(obj.Name, f.Name, f.Pos)

			switch {
			case name == "":
				diags.Add(diag.New(diag.TypeNotResolved, ctx, "field %q has no resolvable type", f.Name))
			case isPrimitive(name):
				f.TypeKind = TypePrimitive
				f.Primitive = primitives[name]
			case b.enumByName[name] != nil:
				f.TypeKind = TypeEnum
				f.Enum = b.enumByName[name]
			case b.objects[name] != nil:
				f.TypeKind = TypeObject
				f.Object = b.objects[name]
			default:
				diags.Add(diag.New(diag.CustomTypeNotDefined, ctx, "type %q is not defined", name))
				continue
			}
			f.Array = f.pendingArray
			f.Optional = f.pendingOptional
		}
	}
}

func isPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

// checkDuplicateFields is pass 7: each object's field names must be
// unique once snippets have been spliced in and inheritance resolved.
func (b *builder) checkDuplicateFields(diags *diag.List) {
	for _, obj := range b.declOrder {
		seen := map[string]bool{}
		for _, f := range obj.Fields {
			if seen[f.Name] {
				diags.Add(diag.New(diag.DuplicateFieldNames, resolveCtx(obj.Name, "", f.Pos), "object %q declares field %q more than once", obj.Name, f.Name))
				continue
			}
			seen[f.Name] = true
		}
	}
}

// buildQueries is pass 6: manual queries are converted as-is; insert and
// update shorthands are rewritten into the same Query shape; every
// query's body is then run through the Query Interpolator (§4.4), which
// the spec's data flow describes as a subroutine of the Resolver, not a
// separately-invoked later stage (spec §4.3 pass 6).
func (b *builder) buildQueries(obj *Object, diags *diag.List) {
	for _, m := range b.rawQueries[obj] {
		var q *Query
		switch {
		case m.ManualQuery != nil:
			mq := m.ManualQuery
			q = &Query{
				Name:        mq.Name,
				Origin:      OriginManual,
				Params:      b.convertParams(obj, mq.Params, diags),
				Body:        mq.Body,
				Cardinality: Cardinality(mq.Cardinality()),
				Pos:         posOf(mq.Pos),
			}

		case m.InsertQuery != nil:
			q = b.synthesizeInsert(obj, m.InsertQuery, diags)

		case m.UpdateQuery != nil:
			q = b.synthesizeUpdate(obj, m.UpdateQuery, diags)

		default:
			continue
		}

		b.interpolateQuery(obj, q, diags)
		obj.Queries = append(obj.Queries, q)
	}
}

// queryInput flattens obj into the resolve-independent shape
// internal/interpolate needs, so that package can stay free of any
// dependency back on this one (spec §4.4).
func (b *builder) queryInput(obj *Object) interpolate.Input {
	in := interpolate.Input{ObjectName: obj.Name, Table: obj.Table}
	if obj.Parent != nil {
		in.ParentTable = obj.Parent.Table
	}
	for _, f := range obj.Fields {
		table, column := b.sourceRef(obj, f)
		expr := ""
		if as := FindFunc(f.Functions, "db", "as"); as != nil && len(as.Args) > 0 {
			expr = as.Args[0]
		}
		in.Fields = append(in.Fields, interpolate.Field{Name: f.Name, Table: table, Column: column, Expr: expr})
	}
	for _, j := range obj.Joins {
		table := ""
		if j.Target != nil {
			table = j.Target.Table
		}
		in.Joins = append(in.Joins, interpolate.Join{Alias: j.Alias, Table: table, Predicate: j.Predicate})
	}
	return in
}

// sourceRef returns the physical table and column a field's value comes
// from: itself for a plain field, or the relevant parent/join/object for
// an external-ref field (spec §4.4).
func (b *builder) sourceRef(obj *Object, f *Field) (table, column string) {
	if !f.IsExternal() {
		return obj.Table, f.Name
	}
	if f.ExternalSource == "super" {
		if obj.Parent != nil {
			return obj.Parent.Table, f.ExternalField
		}
		return obj.Table, f.ExternalField
	}
	if j := obj.JoinByAlias(f.ExternalSource); j != nil {
		return j.Alias, f.ExternalField
	}
	if target, ok := b.objects[f.ExternalSource]; ok {
		return target.Table, f.ExternalField
	}
	return obj.Table, f.ExternalField
}

// interpolateQuery runs the Query Interpolator over q.Body, replacing it
// with the fully-expanded SQL text and recording q.Args (spec §4.4).
func (b *builder) interpolateQuery(obj *Object, q *Query, diags *diag.List) {
	res, idiags := interpolate.Query(b.queryInput(obj), q.Body)
	q.Body = res.SQL
	q.Args = res.Args

	ctx := resolveCtx(obj.Name, q.Name, q.Pos)
	for _, d := range idiags {
		diags.Add(diag.New(diag.VariableNotInScope, ctx, "%s", d.Message))
	}
}

func (b *builder) convertParams(obj *Object, params []*schemalang.Param, diags *diag.List) []Param {
	out := make([]Param, 0, len(params))
	for _, p := range params {
		out = append(out, b.resolveParamType(obj, p.Name, p.Type, diags))
	}
	return out
}

func (b *builder) resolveParamType(obj *Object, name string, t schemalang.TypeExpr, diags *diag.List) Param {
	param := Param{
		Name:     name,
		Array:    t.Array != nil && t.Array.Present,
		Optional: t.Optional,
	}
	switch {
	case isPrimitive(t.Name):
		param.TypeKind = TypePrimitive
		param.Primitive = primitives[t.Name]
	case b.enumByName[t.Name] != nil:
		param.TypeKind = TypeEnum
		param.Enum = b.enumByName[t.Name]
	case b.objects[t.Name] != nil:
		param.TypeKind = TypeObject
		param.Object = b.objects[t.Name]
	default:
		diags.Add(diag.New(diag.CustomTypeNotDefined, resolveCtx(obj.Name, name, posOf(t.Pos)), "type %q is not defined", t.Name))
	}
	return param
}

// synthesizeInsert rewrites `insert Name(f1, f2) : card` into the manual
// CTE form the spec gives literally: `WITH T AS (INSERT INTO T (f1, f2,
// …) VALUES ($1, $2, …) RETURNING *) SELECT $fields FROM $locations`
// (spec §4.3 pass 6). `$fields`/`$locations` are left untouched for the
// Query Interpolator (§4.4) to expand later against the resolved
// object.
func (b *builder) synthesizeInsert(obj *Object, q *schemalang.InsertQueryDecl, diags *diag.List) *Query {
	ctx := resolveCtx(obj.Name, q.Name, posOf(q.Pos))

	var cols []string
	var placeholders []string
	var params []Param
	for i, name := range q.Fields {
		f := obj.FieldByName(name)
		if f == nil {
			diags.Add(diag.New(diag.FieldNotFound, ctx, "insert %q names unknown field %q", q.Name, name))
			continue
		}
		cols = append(cols, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		params = append(params, Param{
			Name: name, TypeKind: f.TypeKind, Primitive: f.Primitive,
			Enum: f.Enum, Object: f.Object, Array: f.Array, Optional: f.Optional,
		})
	}

	body := fmt.Sprintf(
		"WITH %s AS (INSERT INTO %s (%s) VALUES (%s) RETURNING *) SELECT $fields FROM $locations",
		obj.Table, obj.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	return &Query{
		Name:        q.Name,
		Origin:      OriginAutoInsert,
		Params:      params,
		Body:        body,
		Cardinality: Cardinality(q.Cardinality()),
		Pos:         posOf(q.Pos),
	}
}

// synthesizeUpdate rewrites `update Name(args...) = "fragment"` into the
// manual CTE form `WITH T AS (UPDATE T fragment RETURNING *) SELECT
// $fields FROM $locations`. Every `$` in the user-written fragment is
// rewritten to `$#`, forcing the fragment's own interpolation to the
// unqualified column form so it can never be mistaken for a `$fields`/
// `$locations` wrapper token or a qualified field reference once the
// Query Interpolator makes its single pass over the whole body (spec
// §4.3 pass 6: "rewrite $ -> $# so user interpolation is column-only").
func (b *builder) synthesizeUpdate(obj *Object, q *schemalang.UpdateQueryDecl, diags *diag.List) *Query {
	fragment := strings.ReplaceAll(q.Fragment, "$", "$#")
	body := fmt.Sprintf("WITH %s AS (UPDATE %s %s RETURNING *) SELECT $fields FROM $locations", obj.Table, obj.Table, fragment)
	return &Query{
		Name:        q.Name,
		Origin:      OriginAutoUpdate,
		Params:      b.convertParams(obj, q.Params, diags),
		Body:        body,
		Cardinality: Cardinality(q.Cardinality()),
		Pos:         posOf(q.Pos),
	}
}
