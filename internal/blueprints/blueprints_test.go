package blueprints_test

import (
	"testing"

	"github.com/golangee/repack/internal/blueprints"
	"github.com/golangee/repack/internal/render"
	"github.com/golangee/repack/internal/template"
)

func TestNamesMatchesDeclaredMeta(t *testing.T) {
	for _, id := range blueprints.Names() {
		src, ok, err := blueprints.Open(id)
		if err != nil {
			t.Fatalf("Open(%q): %v", id, err)
		}
		if !ok {
			t.Fatalf("Names() returned %q but Open reports it unknown", id)
		}

		tokens, diags := template.Parse(id, src)
		if diags.HasErrors() {
			t.Fatalf("built-in blueprint %q failed to parse: %s", id, diags.String())
		}

		meta := render.ExtractMeta(tokens)
		if meta.ID != id {
			t.Errorf("blueprint file for %q declares [meta id]%q[/meta]", id, meta.ID)
		}
		if meta.Kind != "code" && meta.Kind != "document" && meta.Kind != "configure" {
			t.Errorf("blueprint %q has invalid [meta kind] %q", id, meta.Kind)
		}
	}
}

func TestOpenReportsUnknownID(t *testing.T) {
	_, ok, err := blueprints.Open("does-not-exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an unregistered id")
	}
}
