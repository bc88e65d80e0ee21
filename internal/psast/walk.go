package psast

import (
	"fmt"
	"strings"
)

// Inspect traverses the tree rooted at n depth-first in source order. If f
// returns false for a node, its children are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, child := range Children(n) {
		Inspect(child, f)
	}
}

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		if !isNil(c) {
			out = append(out, c)
		}
	}

	switch n := n.(type) {
	case *File:
		add(n.Body)
	case *ScriptBlock:
		add(n.Param)
		for _, s := range n.Statements {
			add(s)
		}
	case *FunctionDef:
		add(n.Params)
		add(n.Body)
	case *Pipeline:
		for _, e := range n.Elements {
			add(e)
		}
	case *Assignment:
		add(n.Target)
		add(n.Value)
	case *Control:
		for _, c := range n.Clauses {
			add(c)
		}
	case *Clause:
		add(n.Condition)
		add(n.Body)
	case *Flow:
		add(n.Value)
	case *Command:
		add(n.Name)
		for _, e := range n.Elements {
			add(e)
		}
	case *ExprElement:
		add(n.Expr)
	case *CommandParameter:
		add(n.Arg)
	case *CommandArgument:
		add(n.Value)
	case *Redirection:
		add(n.Target)
	case *HashLiteral:
		for _, e := range n.Entries {
			add(e)
		}
	case *HashEntry:
		add(n.Key)
		add(n.Value)
	case *ArrayLiteral:
		add(n.Body)
	case *SubExpr:
		add(n.Body)
	case *ScriptBlockExpr:
		add(n.Body)
	case *Compound:
		for _, p := range n.Parts {
			add(p)
		}
	case *ParamBlock:
		for _, a := range n.Attributes {
			add(a)
		}
		for _, p := range n.Parameters {
			add(p)
		}
	case *Parameter:
		for _, a := range n.Attributes {
			add(a)
		}
		add(n.Default)
	case *Literal, *VariableRef, *Opaque, *Attribute:
		// leaves
	default:
		panic(fmt.Sprintf("psast: unexpected node type %T", n))
	}
	return out
}

// isNil reports whether a Node interface holds a typed nil pointer.
func isNil(n Node) bool {
	if n == nil {
		return true
	}
	switch v := n.(type) {
	case *ScriptBlock:
		return v == nil
	case *ParamBlock:
		return v == nil
	case *Pipeline:
		return v == nil
	case *Clause:
		return v == nil
	}
	return false
}

// FindAll returns every node below root (root included) for which match
// returns true, in source order.
func FindAll(root Node, match func(Node) bool) []Node {
	var out []Node
	Inspect(root, func(n Node) bool {
		if match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Functions returns every function definition in the file, nested ones
// included, in source order.
func (f *File) Functions() []*FunctionDef {
	var out []*FunctionDef
	Inspect(f, func(n Node) bool {
		if fn, ok := n.(*FunctionDef); ok {
			out = append(out, fn)
		}
		return true
	})
	return out
}

func equalFold(a, b string) bool { return strings.EqualFold(a, b) }
