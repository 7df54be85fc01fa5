// Package interpolate implements the Query Interpolator (spec §4.4): it
// expands $table, $fields, $locations, $<fieldName>, $#<fieldName> and
// $<argName> in a query body, assigning positional SQL parameters in
// order of first appearance. It is invoked once per query as a
// subroutine of the Resolver (spec §2 "Data flow": "Resolver (with
// Query Interpolator as subroutine)"), so this package deliberately
// takes a flat, resolve-independent Input rather than *resolve.Object —
// resolve is the only caller, and it builds Input from the Object it
// already has in hand.
package interpolate

import (
	"fmt"
	"regexp"
	"strings"
)

var varPattern = regexp.MustCompile(`\$#?[A-Za-z_][A-Za-z0-9_]*`)

// Field describes one projectable column, already resolved to its
// physical source table/column (spec §4.3 pass 4's job, not this
// package's).
type Field struct {
	// Name is the field's name as written in the schema; this is what
	// $<fieldName> and $#<fieldName> match against.
	Name string
	// Table is the physical table or join alias the value is read from.
	Table string
	// Column is the physical column name.
	Column string
	// Expr, if non-empty, overrides "Table.Column" as the $fields source
	// expression (a field's db:as(...) function, spec §4.4).
	Expr string
}

func (f Field) sourceExpr() string {
	if f.Expr != "" {
		return f.Expr
	}
	return f.Table + "." + f.Column
}

// Join describes one $locations join segment. Predicate is the raw,
// not-yet-substituted predicate template; $name/$super/$<alias> inside
// it are resolved during interpolation (spec §4.4).
type Join struct {
	Alias     string
	Table     string
	Predicate string
}

// Input is everything the Interpolator needs to expand one query body
// against its owning object.
type Input struct {
	// ObjectName/QueryName are used only to build diagnostic scope.
	ObjectName string
	QueryName  string

	Table       string
	ParentTable string // "" if the object has no super
	Fields      []Field
	Joins       []Join
}

func (in Input) fieldByName(name string) (Field, bool) {
	for _, f := range in.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (in Input) joinByAlias(alias string) (Join, bool) {
	for _, j := range in.Joins {
		if j.Alias == alias {
			return j, true
		}
	}
	return Join{}, false
}

// Result is the outcome of interpolating one query.
type Result struct {
	// SQL is the fully expanded query body, with a trailing semicolon.
	SQL string
	// Args lists the query's own parameter names in the order their
	// positional placeholders ($1, $2, …) were assigned.
	Args []string
}

// Diagnostic is one problem found while interpolating, reported without
// this package depending on internal/diag's Kind taxonomy directly —
// the caller (resolve) maps Name back to diag.VariableNotInScope.
type Diagnostic struct {
	Name    string
	Message string
}

// Query interpolates body against in, a flat description of the owning
// object's table/fields/joins.
func Query(in Input, body string) (Result, []Diagnostic) {
	var diags []Diagnostic
	argPos := map[string]int{}
	var argOrder []string

	expanded := varPattern.ReplaceAllStringFunc(body, func(tok string) string {
		unqualified := strings.HasPrefix(tok, "$#")
		name := strings.TrimPrefix(strings.TrimPrefix(tok, "$#"), "$")

		switch {
		case !unqualified && name == "table":
			return in.Table
		case !unqualified && name == "fields":
			return fieldsExpr(in)
		case !unqualified && name == "locations":
			return locationsExpr(in)
		}

		if f, ok := in.fieldByName(name); ok {
			if unqualified {
				return f.Column
			}
			return f.Table + "." + f.Column
		}

		if !unqualified {
			if n, ok := argPos[name]; ok {
				return fmt.Sprintf("$%d", n)
			}
			n := len(argOrder) + 1
			argPos[name] = n
			argOrder = append(argOrder, name)
			return fmt.Sprintf("$%d", n)
		}

		diags = append(diags, Diagnostic{Name: name, Message: fmt.Sprintf("unknown variable %q", name)})
		return fmt.Sprintf("[err: %s]", name)
	})

	expanded = strings.TrimRight(expanded, " \t\n")
	if !strings.HasSuffix(expanded, ";") {
		expanded += ";"
	}

	return Result{SQL: expanded, Args: argOrder}, diags
}

// fieldsExpr builds the comma-joined "<expr> AS <alias>" list for
// $fields (spec §4.4).
func fieldsExpr(in Input) string {
	parts := make([]string, 0, len(in.Fields))
	for _, f := range in.Fields {
		parts = append(parts, fmt.Sprintf("%s AS %s", f.sourceExpr(), f.Name))
	}
	return strings.Join(parts, ", ")
}

// locationsExpr builds $locations: the base table, followed by one
// "INNER JOIN target alias ON predicate" segment per join, with $name,
// $super and $<alias> substituted in the predicate template (spec §4.4).
func locationsExpr(in Input) string {
	segs := make([]string, 0, len(in.Joins)+1)
	segs = append(segs, in.Table)
	for _, j := range in.Joins {
		pred := substituteJoinVars(in, j)
		segs = append(segs, fmt.Sprintf("INNER JOIN %s %s ON %s", j.Table, j.Alias, pred))
	}
	return strings.Join(segs, " ")
}

var joinVarPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)

func substituteJoinVars(in Input, j Join) string {
	return joinVarPattern.ReplaceAllStringFunc(j.Predicate, func(tok string) string {
		name := tok[1:]
		switch {
		case name == "name":
			return in.Table
		case name == "super":
			if in.ParentTable != "" {
				return in.ParentTable
			}
			return tok
		default:
			if alias, ok := in.joinByAlias(name); ok {
				return alias.Alias
			}
			return tok
		}
	})
}
