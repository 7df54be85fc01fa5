package resolve

import (
	"strings"
	"testing"

	"github.com/golangee/repack/internal/diag"
	"github.com/golangee/repack/internal/schemalang"
)

func mustParse(t *testing.T, src string) *schemalang.Program {
	t.Helper()
	prog, diags := schemalang.Parse("t.repack", src)
	if diags.HasErrors() {
		t.Fatalf("unexpected parse diagnostics: %s", diags.String())
	}
	return prog
}

func hasKind(diags diag.List, k diag.Kind) bool {
	for _, e := range diags.Errors() {
		if e.Kind == k {
			return true
		}
	}
	return false
}

func TestResolveBasicSchema(t *testing.T) {
	prog := mustParse(t, `
enum UserType {
	Admin
	User
}

record User @users {
	id uuid db:pk
	name string
	kind UserType
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}

	if len(model.Enums) != 1 || model.Enums[0].Name != "UserType" {
		t.Fatalf("expected UserType enum, got %+v", model.Enums)
	}

	obj := model.ObjectByName("User")
	if obj == nil {
		t.Fatal("expected User object")
	}
	if obj.Table != "users" {
		t.Errorf("expected table users, got %q", obj.Table)
	}

	kind := obj.FieldByName("kind")
	if kind == nil || kind.TypeKind != TypeEnum || kind.Enum == nil || kind.Enum.Name != "UserType" {
		t.Fatalf("expected kind field to resolve to UserType enum, got %+v", kind)
	}

	id := obj.FieldByName("id")
	if id == nil || id.TypeKind != TypePrimitive || id.Primitive != PUUID {
		t.Fatalf("expected id field to resolve to uuid primitive, got %+v", id)
	}
}

func TestResolveEnumSingleCaseDefaultsValueToName(t *testing.T) {
	prog := mustParse(t, `
enum Status {
	Active
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	if len(model.Enums[0].Cases) != 1 || model.Enums[0].Cases[0].Value != "Active" {
		t.Fatalf("expected default case value to equal name, got %+v", model.Enums[0].Cases)
	}
}

func TestResolveSuperWithNoParentIsInvalidSuper(t *testing.T) {
	prog := mustParse(t, `
record Orphan {
	label super.label
}
`)
	_, diags := Resolve(prog)
	if !hasKind(diags, diag.InvalidSuper) {
		t.Fatalf("expected InvalidSuper, got: %s", diags.String())
	}
}

func TestResolveCircularDependency(t *testing.T) {
	prog := mustParse(t, `
record A : B {
	name string
}

record B : A {
	name string
}
`)
	_, diags := Resolve(prog)
	if !hasKind(diags, diag.CircularDependancy) {
		t.Fatalf("expected CircularDependancy, got: %s", diags.String())
	}
}

func TestResolveDuplicateFieldNames(t *testing.T) {
	prog := mustParse(t, `
record Dup {
	name string
	name string
}
`)
	_, diags := Resolve(prog)
	if !hasKind(diags, diag.DuplicateFieldNames) {
		t.Fatalf("expected DuplicateFieldNames, got: %s", diags.String())
	}
}

func TestResolveParentObjectDoesNotExist(t *testing.T) {
	prog := mustParse(t, `
record Child : Ghost {
	name string
}
`)
	_, diags := Resolve(prog)
	if !hasKind(diags, diag.ParentObjectDoesNotExist) {
		t.Fatalf("expected ParentObjectDoesNotExist, got: %s", diags.String())
	}
}

func TestResolveJoinAndExternalField(t *testing.T) {
	prog := mustParse(t, `
record User @users {
	id uuid
	name string
}

synthetic FullUser {
	join j_user User "$name.id = $j_user.user_id"
	name j_user.name
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}

	full := model.ObjectByName("FullUser")
	if full == nil {
		t.Fatal("expected FullUser object")
	}
	name := full.FieldByName("name")
	if name == nil || !name.IsExternal() || name.TypeKind != TypePrimitive || name.Primitive != PString {
		t.Fatalf("expected name to resolve via join to a string primitive, got %+v", name)
	}
	if name.SourceField == nil || name.SourceField.Name != "name" {
		t.Fatalf("expected SourceField to point at User.name, got %+v", name.SourceField)
	}
}

func TestResolveSuperInheritedField(t *testing.T) {
	prog := mustParse(t, `
record Base @items {
	id uuid
	label string
}

record Derived : Base {
	own_label super.label
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}

	derived := model.ObjectByName("Derived")
	if derived.Table != "items" {
		t.Errorf("expected inherited table items, got %q", derived.Table)
	}
	f := derived.FieldByName("own_label")
	if f == nil || f.TypeKind != TypePrimitive || f.Primitive != PString {
		t.Fatalf("expected own_label to resolve to string via super, got %+v", f)
	}
}

func TestResolveInsertQuerySynthesis(t *testing.T) {
	prog := mustParse(t, `
record User @users {
	id uuid
	name string
	insert CreateUser(id, name) : one
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	obj := model.ObjectByName("User")
	if len(obj.Queries) != 1 {
		t.Fatalf("expected 1 synthesized query, got %d", len(obj.Queries))
	}
	q := obj.Queries[0]
	if q.Origin != OriginAutoInsert || q.Cardinality != CardinalityOne {
		t.Fatalf("unexpected query metadata: %+v", q)
	}
	if !strings.Contains(q.Body, "WITH users AS (INSERT INTO users") ||
		!strings.Contains(q.Body, "VALUES ($1, $2)") ||
		!strings.Contains(q.Body, "RETURNING *) SELECT users.id AS id, users.name AS name FROM users") {
		t.Fatalf("unexpected synthesized+interpolated body: %q", q.Body)
	}
	if len(q.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(q.Params))
	}
	if !strings.HasSuffix(q.Body, ";") {
		t.Fatalf("expected trailing semicolon, got %q", q.Body)
	}
}

func TestResolveUpdateQueryDollarRewrite(t *testing.T) {
	prog := mustParse(t, `
record User @users {
	id uuid
	name string
	update RenameUser(id uuid, name string) = "name = $name WHERE id = $id"
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	obj := model.ObjectByName("User")
	q := obj.Queries[0]
	if q.Origin != OriginAutoUpdate {
		t.Fatalf("expected auto-update origin, got %v", q.Origin)
	}
	if !strings.Contains(q.Body, "WITH users AS (UPDATE users name = name WHERE id = id RETURNING *)") {
		t.Fatalf("expected $ rewritten to $# then interpolated to the unqualified column form, got %q", q.Body)
	}
	if !strings.Contains(q.Body, "SELECT users.id AS id, users.name AS name FROM users") {
		t.Fatalf("expected $fields/$locations expanded, got %q", q.Body)
	}
	if len(q.Args) != 0 {
		t.Fatalf("expected no positional args (fragment uses only field-name tokens), got %v", q.Args)
	}
}

func TestResolveManualQueryInterpolatesAcrossJoins(t *testing.T) {
	prog := mustParse(t, `
record User @users {
	id uuid
	name string
}

synthetic FullUser : User {
	join j_user User "$name.id = $j_user.user_id"
	uname j_user.name
	query All() = "SELECT $fields FROM $locations"
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	obj := model.ObjectByName("FullUser")
	q := obj.Queries[0]
	if !strings.Contains(q.Body, "j_user.name AS uname") {
		t.Fatalf("expected external field qualified via join alias, got %q", q.Body)
	}
	if !strings.Contains(q.Body, "INNER JOIN users j_user ON users.id = j_user.user_id") {
		t.Fatalf("expected join segment with substituted $name/$alias, got %q", q.Body)
	}
}

func TestResolveQueryUnknownVariableReportsDiagnostic(t *testing.T) {
	prog := mustParse(t, `
record User @users {
	id uuid
	query Bad() = "SELECT $bogus FROM $table"
}
`)
	model, diags := Resolve(prog)
	if !hasKind(diags, diag.VariableNotInScope) {
		t.Fatalf("expected VariableNotInScope, got: %s", diags.String())
	}
	q := model.ObjectByName("User").Queries[0]
	if !strings.Contains(q.Body, "[err: bogus]") {
		t.Fatalf("expected literal error token in interpolated body, got %q", q.Body)
	}
}

func TestResolveSnippetExpansion(t *testing.T) {
	prog := mustParse(t, `
snippet Timestamps {
	created_at datetime
	updated_at datetime
}

record Post @posts {
	id uuid
	!Timestamps
}
`)
	model, diags := Resolve(prog)
	if diags.HasErrors() {
		t.Fatalf("unexpected diagnostics: %s", diags.String())
	}
	obj := model.ObjectByName("Post")
	if obj.FieldByName("created_at") == nil || obj.FieldByName("updated_at") == nil {
		t.Fatalf("expected snippet fields spliced in, got %+v", obj.Fields)
	}
}

func TestResolveUnknownSnippetReported(t *testing.T) {
	prog := mustParse(t, `
record Post @posts {
	id uuid
	!Missing
}
`)
	_, diags := Resolve(prog)
	if !hasKind(diags, diag.SnippetNotFound) {
		t.Fatalf("expected SnippetNotFound, got: %s", diags.String())
	}
}

func TestResolveCustomTypeNotDefined(t *testing.T) {
	prog := mustParse(t, `
record Post @posts {
	id uuid
	owner Nonexistent
}
`)
	_, diags := Resolve(prog)
	if !hasKind(diags, diag.CustomTypeNotDefined) {
		t.Fatalf("expected CustomTypeNotDefined, got: %s", diags.String())
	}
}
