package analyzer

import (
	"strings"

	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/Zachacious/go-mockspec/internal/psast"
)

// toPosition converts a parser position into a model position in file.
func toPosition(file string, p psast.Position) model.Position {
	return model.Position{File: file, Line: p.Line, Column: p.Column, Offset: p.Offset}
}

// exprText returns the text an argument was written as. Here-strings yield
// their content, everything else its exact source.
func exprText(e psast.Expr) string {
	if lit, ok := e.(*psast.Literal); ok && lit.Kind == psast.LiteralHereString {
		return lit.Value
	}
	return e.Source()
}

// statementText returns the value text of a hashtable entry.
func statementText(s psast.Statement) string {
	if e := singleExpr(s); e != nil {
		if v, ok := psast.StaticValue(e); ok {
			return v
		}
		return psast.Unquote(e.Source())
	}
	return psast.Unquote(s.Source())
}

// singleExpr returns the expression of a statement that is a pipeline of one
// expression element, nil otherwise.
func singleExpr(s psast.Statement) psast.Expr {
	pl, ok := s.(*psast.Pipeline)
	if !ok || len(pl.Elements) != 1 {
		return nil
	}
	el, ok := pl.Elements[0].(*psast.ExprElement)
	if !ok {
		return nil
	}
	return el.Expr
}

// hashValue returns the hashtable literal a statement evaluates to, allowing
// type casts such as [ordered]@{...}.
func hashValue(s psast.Statement) (*psast.HashLiteral, bool) {
	e := singleExpr(s)
	if e == nil {
		return nil, false
	}
	if h, ok := e.(*psast.HashLiteral); ok {
		return h, true
	}
	c, ok := e.(*psast.Compound)
	if !ok || len(c.Parts) < 2 {
		return nil, false
	}
	for _, part := range c.Parts[:len(c.Parts)-1] {
		if !isTypeLiteral(part) {
			return nil, false
		}
	}
	h, ok := c.Parts[len(c.Parts)-1].(*psast.HashLiteral)
	return h, ok
}

// targetVariable returns the variable an assignment target writes to.
// direct is false when the target writes into the variable, through an
// index or a member, instead of replacing it.
func targetVariable(target psast.Expr) (name string, direct bool) {
	switch t := target.(type) {
	case *psast.VariableRef:
		if t.Splatted {
			return "", false
		}
		return t.Name, true
	case *psast.Compound:
		for i, part := range t.Parts {
			if isTypeLiteral(part) {
				continue
			}
			v, ok := part.(*psast.VariableRef)
			if !ok || v.Splatted {
				return "", false
			}
			return v.Name, i == len(t.Parts)-1
		}
	}
	return "", false
}

func isTypeLiteral(e psast.Expr) bool {
	o, ok := e.(*psast.Opaque)
	return ok && strings.HasPrefix(o.Source(), "[")
}

// precedes reports whether the assignment ends before pos.
func precedes(as *psast.Assignment, pos model.Position) bool {
	return as.End.Offset <= pos.Offset
}
