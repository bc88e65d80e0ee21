package psast

import "strings"

// Unquote strips one pair of surrounding single or double quotes and undoes
// the doubled-quote escape of the matching kind. Text that is not quoted is
// returned unchanged.
func Unquote(s string) string {
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '\'' && q != '"') || s[len(s)-1] != q {
		return s
	}
	inner := s[1 : len(s)-1]
	if q == '\'' {
		return strings.ReplaceAll(inner, "''", "'")
	}
	inner = strings.ReplaceAll(inner, `""`, `"`)
	return strings.ReplaceAll(inner, "`\"", `"`)
}

// StaticValue returns the value of a literal expression after quote
// stripping. It reports false for anything that is not a plain literal, such
// as a variable, a sub-expression or a double-quoted string that expands
// variables.
func StaticValue(e Expr) (string, bool) {
	lit, ok := e.(*Literal)
	if !ok {
		return "", false
	}
	switch lit.Kind {
	case LiteralHereString:
		return lit.Value, true
	case LiteralString:
		if strings.HasPrefix(lit.Value, `"`) && strings.ContainsAny(lit.Value, "$") {
			return "", false
		}
		return Unquote(lit.Value), true
	}
	return lit.Value, true
}
