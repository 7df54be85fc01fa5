// Package resolve implements the semantic resolution pipeline (spec
// §4.3): snippet expansion, dependency ordering, inheritance
// propagation, external-field and custom-type resolution, auto-query
// synthesis, and the final field-name-uniqueness check. It turns a
// schemalang.Program into a flat, fully-typed Model that the renderer
// can walk without ever re-deriving anything (spec §3 "Lifecycle").
package resolve

import "github.com/golangee/repack/internal/token"

// Primitive is one of the eight closed primitive types (spec §3).
type Primitive string

const (
	PString   Primitive = "string"
	PInt32    Primitive = "int32"
	PInt64    Primitive = "int64"
	PFloat64  Primitive = "float64"
	PBoolean  Primitive = "boolean"
	PDatetime Primitive = "datetime"
	PUUID     Primitive = "uuid"
	PBytes    Primitive = "bytes"
)

var primitives = map[string]Primitive{
	"string": PString, "int32": PInt32, "int64": PInt64, "float64": PFloat64,
	"boolean": PBoolean, "datetime": PDatetime, "uuid": PUUID, "bytes": PBytes,
}

// FieldTypeKind is the tagged union discriminator for a resolved
// Field's type (spec §9 "fields are a tagged union").
type FieldTypeKind int

const (
	TypePrimitive FieldTypeKind = iota
	TypeEnum
	TypeObject
	TypeExternalRef
)

// ObjectKind is the tagged union discriminator for Object (spec §3).
type ObjectKind int

const (
	KindRecord ObjectKind = iota
	KindStruct
	KindSynthetic
)

func (k ObjectKind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindStruct:
		return "struct"
	case KindSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// Model is the fully resolved object graph produced by Resolve. Objects
// are stored in dependency order (spec §4.3 pass 2); nothing in this
// type is ever mutated by the renderer (spec §3 "Lifecycle").
type Model struct {
	Enums   []*Enum
	Objects []*Object
}

// ObjectByName returns the object with the given name, or nil.
func (m *Model) ObjectByName(name string) *Object {
	for _, o := range m.Objects {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// EnumByName returns the enum with the given name, or nil.
func (m *Model) EnumByName(name string) *Enum {
	for _, e := range m.Enums {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// Enum is a resolved enum: a name, categories, and ordered cases.
type Enum struct {
	Name       string
	Categories []string
	Cases      []EnumCaseValue
	Pos        token.Pos
}

// EnumCaseValue is one case of an enum with its resolved wire value.
type EnumCaseValue struct {
	Name  string
	Value string
}

// Object is a resolved record/struct/synthetic (spec §3).
type Object struct {
	Name       string
	Kind       ObjectKind
	Parent     *Object
	Table      string
	Categories []string
	Fields     []*Field
	Functions  []*Function
	Joins      []*Join
	Queries    []*Query
	// Index is this object's position in dependency order, used by
	// [each struct]/[eachr struct] and by the idempotence property.
	Index int
	Pos   token.Pos
}

// JoinByAlias returns the join with the given alias, or nil.
func (o *Object) JoinByAlias(alias string) *Join {
	for _, j := range o.Joins {
		if j.Alias == alias {
			return j
		}
	}
	return nil
}

// FieldByName returns the field with the given name, or nil.
func (o *Object) FieldByName(name string) *Field {
	for _, f := range o.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Field is a resolved field (spec §3). A field declared with the
// "Other.field" syntax has ExternalSource/ExternalField/SourceField set
// regardless of its final TypeKind: pass 4 (external-field resolution)
// copies the referenced field's type shape onto this one, and pass 5
// (custom-type resolution) then resolves that shape into a concrete
// TypePrimitive/TypeEnum/TypeObject kind exactly as it would for any
// plain field (spec §4.3). TypeExternalRef is therefore a transient
// marker used only between those two passes; call IsExternal to test
// provenance instead of comparing TypeKind.
type Field struct {
	Name     string
	TypeKind FieldTypeKind

	// Valid when TypeKind == TypePrimitive.
	Primitive Primitive
	// Valid when TypeKind == TypeEnum.
	Enum *Enum
	// Valid when TypeKind == TypeObject (custom reference).
	Object *Object

	Array    bool
	Optional bool

	// External-ref bookkeeping, set for "Other.field" fields whatever
	// their final TypeKind (see IsExternal).
	ExternalSource string // "super", a join alias, or an object name
	ExternalField  string
	SourceField    *Field // the referenced field, whose type shape this field copies (spec §4.3 pass 4)

	Functions []*Function
	Pos       token.Pos

	// pending* carry the not-yet-validated type expression between
	// object construction and pass 5 (custom-type resolution); for an
	// external-ref field these are filled in by pass 4 by copying
	// SourceField's own pending type, per spec §4.3 pass ordering
	// (external-field resolution runs before custom-type resolution).
	pendingName     string
	pendingArray    bool
	pendingOptional bool
}

// Function is a db-level annotation attached to a field or object
// (spec §3).
type Function struct {
	Namespace string
	Name      string
	Args      []string
}

// IsExternal reports whether this field was declared with the
// "Other.field" syntax (spec §3).
func (f *Field) IsExternal() bool {
	return f.ExternalSource != ""
}

// FindFunc returns the first function with the given "ns:name", or nil.
func FindFunc(fns []*Function, ns, name string) *Function {
	for _, f := range fns {
		if f.Namespace == ns && f.Name == name {
			return f
		}
	}
	return nil
}

// FindFuncs returns every function with the given "ns:name", in
// declaration order. The Renderer's `[func ns.name]` runs its body once
// per match (spec §4.6), not just once for the first.
func FindFuncs(fns []*Function, ns, name string) []*Function {
	var out []*Function
	for _, f := range fns {
		if f.Namespace == ns && f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// Join is a named relational predicate (spec §3).
type Join struct {
	Alias     string
	Target    *Object
	Predicate string
}

// Cardinality is a query's return shape (spec §3).
type Cardinality string

const (
	CardinalityNone Cardinality = "none"
	CardinalityOne  Cardinality = "one"
	CardinalityMany Cardinality = "many"
)

// Param is a query parameter: a name and a type shape.
type Param struct {
	Name      string
	TypeKind  FieldTypeKind
	Primitive Primitive
	Enum      *Enum
	Object    *Object
	Array     bool
	Optional  bool
}

// QueryOrigin records whether a Query was written by hand or synthesized
// from an insert/update shorthand (spec §3, §4.3 pass 6).
type QueryOrigin int

const (
	OriginManual QueryOrigin = iota
	OriginAutoInsert
	OriginAutoUpdate
)

// Query is a resolved, fully-interpolated SQL operation attached to an
// object (spec §3).
type Query struct {
	Name   string
	Origin QueryOrigin
	Params []Param
	// Body is the final, fully-interpolated SQL text (spec §4.4's
	// $table/$fields/$locations/$field/$#field already expanded), with
	// a trailing semicolon. The Query Interpolator runs as a subroutine
	// of Resolve itself (spec §2 "Data flow"), so nothing downstream
	// ever sees raw $-tokens.
	Body string
	// Args lists this query's parameter names in the order their
	// positional placeholders ($1, $2, …) were assigned, i.e. in order
	// of first textual appearance in the original body.
	Args        []string
	Cardinality Cardinality
	Pos         token.Pos
}
