package diag

import (
	"errors"

	"github.com/alecthomas/participle/v2"
	"github.com/golangee/repack/internal/token"
)

// FromParseError adapts a participle parse failure into a SyntaxError
// diagnostic carrying a real source Context, the way token/error.go's
// Explain unwraps a participle.Error into a PosError.
func FromParseError(err error, profile, scope string) *Error {
	var perr participle.Error
	if errors.As(err, &perr) {
		p := perr.Position()
		return Wrap(SyntaxError, Context{
			Profile: profile,
			Scope:   scope,
			Location: token.Pos{
				File: p.Filename,
				Line: p.Line,
				Col:  p.Column,
			},
		}, err, "%s", perr.Message())
	}

	return Wrap(SyntaxError, Context{Profile: profile, Scope: scope}, err, "%s", err.Error())
}
