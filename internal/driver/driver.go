package driver

import (
	"path/filepath"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/golangee/repack/internal/diag"
	"github.com/golangee/repack/internal/render"
	"github.com/golangee/repack/internal/resolve"
	"github.com/golangee/repack/internal/schemalang"
	"github.com/golangee/repack/internal/template"
	itoken "github.com/golangee/repack/internal/token"
)

// posOf mirrors internal/resolve's own helper of the same name: it
// converts a participle lexer.Position into the itoken.Pos diagnostics
// carry, since OutputDecl.Pos (like every schemalang AST node) is typed
// against the parser library's own position type.
func posOf(p lexer.Position) itoken.Pos {
	return itoken.Pos{File: p.Filename, Line: p.Line, Col: p.Column, Offset: p.Offset}
}

// Command is one CLI invocation (spec §6): a mode and, for "configure",
// the target environment tag.
type Command struct {
	Kind string // "build" | "document" | "configure" | "clean"
	Env  string // set only for Kind == "configure"
}

var kindForCommand = map[string]string{
	"build":     "code",
	"document":  "document",
	"configure": "configure",
}

// Driver orchestrates the whole pipeline for one invocation (spec
// §4.7): load, resolve once, render per matching output request, write.
type Driver struct {
	env Environment
}

func New(env Environment) *Driver {
	return &Driver{env: env}
}

// Run executes cmd against the schema file at schemaPath. It returns
// every diagnostic recorded across loading, resolving and rendering;
// the caller (cmd/repack) exits 1 if any were recorded (spec §6).
// "clean" removes the files a prior build/document/configure run of
// the same schema would have produced rather than writing anything.
func (d *Driver) Run(cmd Command, schemaPath string) diag.List {
	l := newLoader(d.env)
	l.load(schemaPath)

	var all diag.List
	all.Extend(l.diags)
	if l.diags.HasErrors() {
		return all
	}

	model, diags := resolve.Resolve(&l.prog)
	all.Extend(diags)
	if diags.HasErrors() {
		return all
	}

	base := d.schemaDir(schemaPath)

	if cmd.Kind == "clean" {
		d.clean(l, model, base, &all)
		return all
	}

	wantKind, ok := kindForCommand[cmd.Kind]
	if !ok {
		all.Addf(diag.UnknownError, diag.Context{Profile: "driver"}, "unknown command %q", cmd.Kind)
		return all
	}

	for _, out := range l.prog.Outputs {
		tokens, ok := d.matchBlueprint(l, out, wantKind, &all)
		if !ok {
			continue
		}

		req := requestFor(out, cmd)
		files, rdiags := render.Render(model, tokens, req, d.env)
		all.Extend(rdiags)
		d.write(base, out.Path, files, &all)
	}

	return all
}

func (d *Driver) schemaDir(schemaPath string) string {
	abs, err := filepath.Abs(schemaPath)
	if err != nil {
		return filepath.Dir(schemaPath)
	}
	return filepath.Dir(abs)
}

// matchBlueprint resolves the blueprint an output request names and
// reports whether its declared [meta kind] matches wantKind (spec
// §4.7 "whose blueprint kind matches the requested command").
func (d *Driver) matchBlueprint(l *loader, out *schemalang.OutputDecl, wantKind string, diags *diag.List) ([]*template.Token, bool) {
	tokens, ok := l.blueprints[out.Blueprint]
	if !ok {
		diags.Addf(diag.UnknownObject, diag.Context{Profile: "driver", Scope: out.Blueprint, Location: posOf(out.Pos)},
			"output references unknown blueprint %q", out.Blueprint)
		return nil, false
	}

	meta := render.ExtractMeta(tokens)
	if meta.Kind != wantKind {
		return nil, false
	}
	return tokens, true
}

func requestFor(out *schemalang.OutputDecl, cmd Command) render.Request {
	opts := make(map[string]string, len(out.Options))
	for _, o := range out.Options {
		opts[o.Key] = o.Value
	}
	return render.Request{
		Path:       out.Path,
		Categories: append([]string(nil), out.Categories...),
		Excludes:   append([]string(nil), out.Excludes...),
		Options:    opts,
		Env:        cmd.Env,
	}
}

func (d *Driver) write(base, outPath string, files map[string]string, diags *diag.List) {
	dir := outPath
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(base, dir)
	}
	for name, content := range files {
		if name == "" {
			continue // content emitted before any [file] directive
		}
		full := filepath.Join(dir, name)
		if err := d.env.WriteFile(full, content); err != nil {
			diags.Addf(diag.CannotWrite, diag.Context{Profile: "driver", Scope: full}, "cannot write file: %v", err)
		}
	}
}

// clean computes, for every output request (regardless of kind — a
// prior invocation may have run any of build/document/configure over
// this schema), the file set a render would have produced, and removes
// each one. The Renderer's own Confirm is forced to refuse so a `clean`
// never triggers an "[exec]" side effect.
func (d *Driver) clean(l *loader, model *resolve.Model, base string, diags *diag.List) {
	silent := noExecEnv{d.env}
	for _, out := range l.prog.Outputs {
		tokens, ok := l.blueprints[out.Blueprint]
		if !ok {
			continue
		}
		req := requestFor(out, Command{})
		files, rdiags := render.Render(model, tokens, req, silent)
		diags.Extend(rdiags)

		dir := out.Path
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		for name := range files {
			if name == "" {
				continue
			}
			full := filepath.Join(dir, name)
			if err := d.env.Remove(full); err != nil {
				diags.Addf(diag.CannotWrite, diag.Context{Profile: "driver", Scope: full}, "cannot remove file: %v", err)
			}
		}
	}
}

// noExecEnv wraps an Environment so Confirm always refuses, used by
// clean to compute file sets without ever running a shell.
type noExecEnv struct {
	Environment
}

func (noExecEnv) Confirm(string) bool { return false }
