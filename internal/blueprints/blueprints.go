// Package blueprints holds repack's built-in target templates. Spec §3
// treats built-in target templates as data the template engine
// consumes, not as code the core implements: this package is exactly
// that — a handful of .tl files embedded as assets, in the spirit of
// the teacher's own embedded test fixtures (parser/parser_test.go's
// "//go:embed test.tadl"), generalized from a test-only embed into a
// small shipped asset set the Driver can load without a file on disk.
package blueprints

import (
	"embed"
	"sort"
)

//go:embed *.tl
var fs embed.FS

// ids maps each built-in blueprint identifier (its own [meta id]) to the
// embedded file that holds it; kept explicit rather than scanned from
// the embed.FS so a typo in a new .tl file's [meta id] fails a lookup
// loudly instead of silently shadowing another built-in.
var ids = map[string]string{
	"go-struct":    "gostruct.tl",
	"sql-ddl":      "sqlddl.tl",
	"markdown-doc": "markdowndoc.tl",
}

// Open returns the source of the built-in blueprint with the given id,
// or ok=false if no built-in by that id exists.
func Open(id string) (string, bool, error) {
	file, ok := ids[id]
	if !ok {
		return "", false, nil
	}
	b, err := fs.ReadFile(file)
	if err != nil {
		return "", true, err
	}
	return string(b), true, nil
}

// Names returns every built-in blueprint id, sorted.
func Names() []string {
	names := make([]string, 0, len(ids))
	for id := range ids {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}
