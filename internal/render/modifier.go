package render

import (
	"strings"
	"unicode"
)

// applyModifiers runs value through the dotted modifier chain from a
// variable reference like "name.snakecase" (spec §4.6 "Variable
// resolution"). It returns ok=false and the value unmodified from that
// point on at the first unrecognized modifier, so the caller can still
// emit best-effort output alongside the InvalidVariableModifier
// diagnostic.
func applyModifiers(value string, modifiers []string) (string, bool) {
	for _, m := range modifiers {
		switch m {
		case "uppercase":
			value = strings.ToUpper(value)
		case "lowercase":
			value = strings.ToLower(value)
		case "titlecase":
			value = titleCase(value)
		case "camelcase":
			value = camelCase(value)
		case "snakecase":
			value = snakeCase(value)
		case "split_period_first":
			value = splitFirst(value, ".")
		case "split_period_last":
			value = splitLast(value, ".")
		case "split_dash_first":
			value = splitFirst(value, "-")
		case "split_dash_last":
			value = splitLast(value, "-")
		default:
			return value, false
		}
	}
	return value, true
}

// words splits an identifier-ish string on separators and internal
// camel-case boundaries, so "user_name", "user-name" and "userName" all
// yield ["user", "name"].
func words(s string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(s)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || r == ' ':
			flush()
		case unicode.IsUpper(r) && i > 0 && !unicode.IsUpper(runes[i-1]):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	return strings.ToUpper(string(r[0])) + strings.ToLower(string(r[1:]))
}

// titleCase concatenates every word capitalized (PascalCase), matching
// the identifier-naming use this modifier serves in generated code.
func titleCase(s string) string {
	var b strings.Builder
	for _, w := range words(s) {
		b.WriteString(capitalize(w))
	}
	return b.String()
}

// camelCase is titleCase with its first word lowercased.
func camelCase(s string) string {
	ws := words(s)
	var b strings.Builder
	for i, w := range ws {
		if i == 0 {
			b.WriteString(strings.ToLower(w))
		} else {
			b.WriteString(capitalize(w))
		}
	}
	return b.String()
}

func snakeCase(s string) string {
	ws := words(s)
	for i, w := range ws {
		ws[i] = strings.ToLower(w)
	}
	return strings.Join(ws, "_")
}

func splitFirst(s, sep string) string {
	i := strings.Index(s, sep)
	if i < 0 {
		return s
	}
	return s[:i]
}

func splitLast(s, sep string) string {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s
	}
	return s[i+len(sep):]
}
