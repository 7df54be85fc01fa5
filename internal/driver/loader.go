package driver

import (
	"path/filepath"
	"strings"

	"github.com/golangee/repack/internal/blueprints"
	"github.com/golangee/repack/internal/diag"
	"github.com/golangee/repack/internal/render"
	"github.com/golangee/repack/internal/schemalang"
	"github.com/golangee/repack/internal/template"
)

// builtinPrefix marks a `blueprint "..."` path as referring to one of
// repack's built-in target templates (package blueprints) rather than a
// file on disk (spec §3 "Built-in target templates are treated as data
// the template engine consumes, not as code the core implements").
const builtinPrefix = "builtin:"

// loader accumulates a full schemalang.Program across a top-level SL
// file and every file it transitively imports (spec §4.7), and loads
// every blueprint file any of them declared. Grounded on
// parser/workspace.go's Parse/collect pair, which reads one root file
// and walks outward into the files it references; generalized here from
// a fixed two-level (workspace → module) shape into an arbitrary import
// graph walked by recursion, and with a visited-set guard since SL
// imports (unlike tadl's module list) can legally form a diamond.
type loader struct {
	env     Environment
	diags   diag.List
	visited map[string]bool

	prog       schemalang.Program
	blueprints map[string][]*template.Token // blueprint id -> parsed tokens
}

func newLoader(env Environment) *loader {
	return &loader{
		env:        env,
		visited:    map[string]bool{},
		blueprints: map[string][]*template.Token{},
	}
}

// load parses path and merges it (and everything it imports/declares
// as a blueprint) into l.prog / l.blueprints.
func (l *loader) load(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		l.diags.Addf(diag.PathNotValid, diag.Context{Profile: "driver", Scope: path}, "cannot resolve path: %v", err)
		return
	}
	if l.visited[abs] {
		return
	}
	l.visited[abs] = true

	src, err := l.env.ReadFile(abs)
	if err != nil {
		l.diags.Addf(diag.CannotRead, diag.Context{Profile: "driver", Scope: abs}, "cannot read file: %v", err)
		return
	}

	prog, diags := schemalang.Parse(abs, src)
	l.diags.Extend(diags)

	l.prog.Enums = append(l.prog.Enums, prog.Enums...)
	l.prog.Snippets = append(l.prog.Snippets, prog.Snippets...)
	l.prog.Objects = append(l.prog.Objects, prog.Objects...)
	l.prog.Outputs = append(l.prog.Outputs, prog.Outputs...)

	base := filepath.Dir(abs)

	for _, bp := range prog.Blueprints {
		l.loadBlueprint(base, bp.Path)
	}

	for _, imp := range prog.Imports {
		for _, p := range l.resolveImportPath(base, imp.Path) {
			l.load(p)
		}
	}
}

// resolveImportPath expands one import path into the concrete file(s)
// it names: a plain path resolves (relative to base, unless already
// absolute) to itself; a path ending in "*" globs every "*.repack" file
// in that directory (spec §4.2 "all *.repack in a directory when the
// path ends with a *").
func (l *loader) resolveImportPath(base, path string) []string {
	if strings.HasSuffix(path, "*") {
		dir := strings.TrimSuffix(path, "*")
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		matches, err := l.env.Glob(filepath.Join(dir, "*.repack"))
		if err != nil {
			l.diags.Addf(diag.PathNotValid, diag.Context{Profile: "driver", Scope: path}, "cannot glob import: %v", err)
			return nil
		}
		return matches
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, full)
	}
	return []string{full}
}

func (l *loader) loadBlueprint(base, path string) {
	if strings.HasPrefix(path, builtinPrefix) {
		l.loadBuiltinBlueprint(strings.TrimPrefix(path, builtinPrefix))
		return
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(base, full)
	}

	src, err := l.env.ReadFile(full)
	if err != nil {
		l.diags.Addf(diag.CannotRead, diag.Context{Profile: "driver", Scope: full}, "cannot read blueprint: %v", err)
		return
	}

	tokens, diags := template.Parse(full, src)
	l.diags.Extend(diags)

	meta := render.ExtractMeta(tokens)
	if meta.ID == "" {
		l.diags.Addf(diag.PathNotValid, diag.Context{Profile: "driver", Scope: full}, "blueprint has no [meta id]")
		return
	}

	l.blueprints[meta.ID] = tokens
}

// loadBuiltinBlueprint resolves a `blueprint "builtin:<id>"` declaration
// against package blueprints instead of the filesystem.
func (l *loader) loadBuiltinBlueprint(id string) {
	src, known, err := blueprints.Open(id)
	if err != nil {
		l.diags.Addf(diag.CannotRead, diag.Context{Profile: "driver", Scope: builtinPrefix + id}, "cannot read built-in blueprint: %v", err)
		return
	}
	if !known {
		l.diags.Addf(diag.UnknownObject, diag.Context{Profile: "driver", Scope: builtinPrefix + id}, "unknown built-in blueprint %q", id)
		return
	}

	tokens, diags := template.Parse(builtinPrefix+id, src)
	l.diags.Extend(diags)

	meta := render.ExtractMeta(tokens)
	if meta.ID == "" {
		l.diags.Addf(diag.PathNotValid, diag.Context{Profile: "driver", Scope: builtinPrefix + id}, "built-in blueprint has no [meta id]")
		return
	}

	l.blueprints[meta.ID] = tokens
}
