// Package diag implements the typed error taxonomy and accumulation
// discipline described in spec §7: diagnostics are values, not
// exceptions, and every phase returns a (partial result, List) pair so
// later, independent failures can still be surfaced in the same run.
package diag

import (
	"fmt"
	"strings"

	"github.com/golangee/repack/internal/token"
)

// Kind is one entry of the closed taxonomy in spec §7. Order matches
// the declaration order in the spec, which also fixes the numeric Code
// assigned by CodeOf.
type Kind int

const (
	CircularDependancy Kind = iota
	ParentObjectDoesNotExist
	CustomTypeNotDefined
	TypeNotResolved
	SnippetNotFound
	DuplicateFieldNames
	CannotCreateContext
	FunctionInvalidSyntax
	TypeNotSupported
	CannotRead
	CannotWrite
	SnippetNotClosed
	UnknownSnippet
	VariableNotInScope
	InvalidVariableModifier
	UnknownLink
	UnknownObject
	QueryArgInvalidSyntax
	QueryInvalidSyntax
	InvalidSuper
	FieldNotOnSuper
	InvalidJoin
	FieldNotOnJoin
	SyntaxError
	ProcessExecutionFailed
	PathNotValid
	ParseIncomplete
	FieldNotFound
	UnknownError
)

var kindNames = [...]string{
	"CircularDependancy",
	"ParentObjectDoesNotExist",
	"CustomTypeNotDefined",
	"TypeNotResolved",
	"SnippetNotFound",
	"DuplicateFieldNames",
	"CannotCreateContext",
	"FunctionInvalidSyntax",
	"TypeNotSupported",
	"CannotRead",
	"CannotWrite",
	"SnippetNotClosed",
	"UnknownSnippet",
	"VariableNotInScope",
	"InvalidVariableModifier",
	"UnknownLink",
	"UnknownObject",
	"QueryArgInvalidSyntax",
	"QueryInvalidSyntax",
	"InvalidSuper",
	"FieldNotOnSuper",
	"InvalidJoin",
	"FieldNotOnJoin",
	"SyntaxError",
	"ProcessExecutionFailed",
	"PathNotValid",
	"ParseIncomplete",
	"FieldNotFound",
	"UnknownError",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "UnknownError"
	}
	return kindNames[k]
}

// Code returns the stable numeric code ("E0001", ...) for k.
func (k Kind) Code() string {
	return fmt.Sprintf("E%04d", int(k)+1)
}

// Context is one frame of the profile → scope → location stack attached
// to every diagnostic, following token.PosError's Details chain.
type Context struct {
	Profile  string
	Scope    string
	Location token.Pos
}

// Error is a single accumulated diagnostic.
type Error struct {
	Kind    Kind
	Message string
	Context Context
	Cause   error
}

func (e *Error) Error() string {
	loc := ""
	if e.Context.Location.File != "" {
		loc = e.Context.Location.String() + ": "
	}

	scope := e.Context.Profile
	if e.Context.Scope != "" {
		if scope != "" {
			scope += " → "
		}
		scope += e.Context.Scope
	}

	if scope != "" {
		return fmt.Sprintf("[%s] (%s) %s%s", e.Kind.Code(), scope, loc, e.Message)
	}
	return fmt.Sprintf("[%s] %s%s", e.Kind.Code(), loc, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a diagnostic of the given kind with a formatted message.
func New(kind Kind, ctx Context, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Context: ctx}
}

// Wrap is like New but attaches a causing error (unwrappable via
// errors.Unwrap/errors.As).
func Wrap(kind Kind, ctx Context, cause error, format string, args ...interface{}) *Error {
	e := New(kind, ctx, format, args...)
	e.Cause = cause
	return e
}

// List accumulates diagnostics across phases, in encounter order. It is
// the only thing threaded back to the driver across phase boundaries.
type List struct {
	errs []*Error
}

// Add appends a diagnostic.
func (l *List) Add(e *Error) {
	if e == nil {
		return
	}
	l.errs = append(l.errs, e)
}

// Addf is a convenience wrapper around New+Add.
func (l *List) Addf(kind Kind, ctx Context, format string, args ...interface{}) {
	l.Add(New(kind, ctx, format, args...))
}

// Extend appends every diagnostic in other to l, preserving order.
func (l *List) Extend(other List) {
	l.errs = append(l.errs, other.errs...)
}

// HasErrors reports whether any diagnostic was recorded.
func (l *List) HasErrors() bool {
	return len(l.errs) > 0
}

// Errors returns the accumulated diagnostics in encounter order.
func (l *List) Errors() []*Error {
	return l.errs
}

// Len reports how many diagnostics have been recorded.
func (l *List) Len() int {
	return len(l.errs)
}

// String renders every diagnostic, one per line, in the
// "[E####] (profile → scope) message" form required by spec §7.
func (l *List) String() string {
	var sb strings.Builder
	for i, e := range l.errs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Error())
	}
	return sb.String()
}
