package interpolate_test

import (
	"strings"
	"testing"

	"github.com/golangee/repack/internal/interpolate"
)

func TestQueryExpandsTableAndFieldReference(t *testing.T) {
	in := interpolate.Input{
		Table:  "users",
		Fields: []interpolate.Field{{Name: "name", Table: "users", Column: "name"}},
	}
	res, diags := interpolate.Query(in, "SELECT * FROM $table WHERE name = $name")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !strings.Contains(res.SQL, "FROM users WHERE") {
		t.Fatalf("expected $table expanded, got %q", res.SQL)
	}
	if !strings.Contains(res.SQL, "users.name") {
		t.Fatalf("expected qualified field reference, got %q", res.SQL)
	}
	if !strings.HasSuffix(res.SQL, ";") {
		t.Fatalf("expected trailing semicolon, got %q", res.SQL)
	}
}

func TestQueryExpandsFieldsAndLocations(t *testing.T) {
	in := interpolate.Input{
		Table: "users",
		Fields: []interpolate.Field{
			{Name: "id", Table: "users", Column: "id"},
			{Name: "uname", Table: "j_user", Column: "name"},
		},
		Joins: []interpolate.Join{
			{Alias: "j_user", Table: "users", Predicate: "$name.id = $j_user.user_id"},
		},
	}
	res, diags := interpolate.Query(in, "SELECT $fields FROM $locations")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !strings.Contains(res.SQL, "j_user.name AS uname") {
		t.Fatalf("expected external field qualified via join alias, got %q", res.SQL)
	}
	if !strings.Contains(res.SQL, "INNER JOIN users j_user ON users.id = j_user.user_id") {
		t.Fatalf("expected join segment with substituted $name/$alias, got %q", res.SQL)
	}
}

func TestQueryUnknownVariableReportsAndEmitsErrToken(t *testing.T) {
	in := interpolate.Input{Table: "users"}
	res, diags := interpolate.Query(in, "SELECT $bogus FROM $table")
	if len(diags) != 1 || diags[0].Name != "bogus" {
		t.Fatalf("expected one diagnostic for 'bogus', got %v", diags)
	}
	if !strings.Contains(res.SQL, "[err: bogus]") {
		t.Fatalf("expected literal error token, got %q", res.SQL)
	}
}

func TestQueryUnqualifiedFieldForm(t *testing.T) {
	in := interpolate.Input{
		Table: "users",
		Fields: []interpolate.Field{
			{Name: "id", Table: "users", Column: "id"},
			{Name: "name", Table: "users", Column: "name"},
		},
	}
	// Auto-update synthesis rewrites every "$" in the user fragment to
	// "$#" before interpolation runs (spec §4.3 pass 6), forcing the
	// unqualified column form.
	res, diags := interpolate.Query(in, "name = $#name WHERE id = $#id")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if strings.Contains(res.SQL, "users.id") || strings.Contains(res.SQL, "users.name") {
		t.Fatalf("expected unqualified column form, got %q", res.SQL)
	}
	if !strings.Contains(res.SQL, "name = name") || !strings.Contains(res.SQL, "id = id") {
		t.Fatalf("expected plain column names substituted, got %q", res.SQL)
	}
}

func TestQueryFieldNameTakesPriorityOverArg(t *testing.T) {
	in := interpolate.Input{
		Table:  "users",
		Fields: []interpolate.Field{{Name: "id", Table: "users", Column: "id"}},
	}
	res, diags := interpolate.Query(in, "SELECT $id, $id FROM $table WHERE id = $id")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	// "id" is also a field name, so every occurrence resolves via the
	// field path (qualified), not the arg path.
	if strings.Count(res.SQL, "users.id") != 3 {
		t.Fatalf("expected all three occurrences qualified, got %q", res.SQL)
	}
}

func TestQueryArgsAssignedInFirstAppearanceOrder(t *testing.T) {
	in := interpolate.Input{Table: "users"}
	res, diags := interpolate.Query(in, "SELECT * FROM $table WHERE b = $b AND a = $a AND b2 = $b")
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if res.Args[0] != "b" || res.Args[1] != "a" {
		t.Fatalf("expected args in first-appearance order [b a], got %v", res.Args)
	}
	if !strings.Contains(res.SQL, "b = $1") || !strings.Contains(res.SQL, "a = $2") || !strings.Contains(res.SQL, "b2 = $1") {
		t.Fatalf("expected repeated arg to reuse its position, got %q", res.SQL)
	}
}
