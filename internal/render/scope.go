package render

import "github.com/golangee/repack/internal/resolve"

// scope is one nested rendering context: a variable/flag stack plus the
// structured model pointers the current iteration is bound to (spec
// §4.6 "Variable stack" / "Flag set"). Lookups walk outward so an inner
// scope shadows an outer one without ever mutating it, the way a nested
// [each field] inside [each struct] must not leak field-level flags
// into the enclosing object scope once the inner loop ends.
type scope struct {
	parent *scope

	vars     map[string]string
	flags    map[string]bool
	linkKeys map[string]string // var name -> link-map key, for import emission on render (see renderVariable)

	object *resolve.Object
	field  *resolve.Field
	enum   *resolve.Enum
	ecase  *resolve.EnumCaseValue
	query  *resolve.Query
	fn     *resolve.Function
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, vars: map[string]string{}, flags: map[string]bool{}}
}

func (s *scope) setVar(name, value string) {
	s.vars[name] = value
}

// setVarWithLink binds a variable whose emission should also add an
// import line (spec §4.6 "Imports"): key is looked up in the renderer's
// link map, and "$" in the matched template is replaced with value.
func (s *scope) setVarWithLink(name, value, key string) {
	s.vars[name] = value
	if s.linkKeys == nil {
		s.linkKeys = map[string]string{}
	}
	s.linkKeys[name] = key
}

func (s *scope) setFlag(name string, value bool) {
	s.flags[name] = value
}

func (s *scope) lookupVar(name string) (string, bool) {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return "", false
}

// lookupLinkKey reports the link-map key associated with name at the
// scope level where name is actually bound (not any shadowing level),
// so an inner scope that rebinds "type" without a link key correctly
// suppresses import emission rather than inheriting the outer one.
func (s *scope) lookupLinkKey(name string) (string, bool) {
	for c := s; c != nil; c = c.parent {
		if _, ok := c.vars[name]; ok {
			key, ok := c.linkKeys[name]
			return key, ok
		}
	}
	return "", false
}

func (s *scope) lookupFlag(name string) bool {
	for c := s; c != nil; c = c.parent {
		if v, ok := c.flags[name]; ok {
			return v
		}
	}
	return false
}

func (s *scope) curObject() *resolve.Object {
	for c := s; c != nil; c = c.parent {
		if c.object != nil {
			return c.object
		}
	}
	return nil
}

func (s *scope) curField() *resolve.Field {
	for c := s; c != nil; c = c.parent {
		if c.field != nil {
			return c.field
		}
	}
	return nil
}

func (s *scope) curEnum() *resolve.Enum {
	for c := s; c != nil; c = c.parent {
		if c.enum != nil {
			return c.enum
		}
	}
	return nil
}

func (s *scope) curQuery() *resolve.Query {
	for c := s; c != nil; c = c.parent {
		if c.query != nil {
			return c.query
		}
	}
	return nil
}

func (s *scope) curFn() *resolve.Function {
	for c := s; c != nil; c = c.parent {
		if c.fn != nil {
			return c.fn
		}
	}
	return nil
}
