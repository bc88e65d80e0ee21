package analyzer

import (
	"strings"

	"github.com/Zachacious/go-mockspec/internal/psast"
)

// Scope is one lexical scope of a function analysis: a function body, a
// script block or the script top level. Scopes are built per analysis and
// never shared between goroutines.
type Scope struct {
	Parent *Scope
	Block  *psast.ScriptBlock
	// Function is set when Block is a function body. Walking from such a
	// scope to its Parent crosses a function boundary.
	Function *psast.FunctionDef

	assignments []*psast.Assignment
}

func newScope(parent *Scope, block *psast.ScriptBlock, fn *psast.FunctionDef) *Scope {
	s := &Scope{Parent: parent, Block: block, Function: fn}
	if block != nil {
		s.assignments = collectAssignments(block)
	}
	return s
}

// collectAssignments returns the assignments of block in lexical order,
// skipping nested function definitions and script blocks, which are scopes
// of their own.
func collectAssignments(block *psast.ScriptBlock) []*psast.Assignment {
	var out []*psast.Assignment
	psast.Inspect(block, func(n psast.Node) bool {
		switch n := n.(type) {
		case *psast.FunctionDef, *psast.ScriptBlockExpr:
			return false
		case *psast.Assignment:
			out = append(out, n)
		}
		return true
	})
	return out
}

// Assignments returns the assignments of this scope whose target is the
// variable name, compared case-insensitively.
func (s *Scope) Assignments(name string) []*psast.Assignment {
	var out []*psast.Assignment
	for _, as := range s.assignments {
		if v, _ := targetVariable(as.Target); v != "" && strings.EqualFold(v, name) {
			out = append(out, as)
		}
	}
	return out
}

// boundary reports whether leaving the scope crosses a function boundary.
func (s *Scope) boundary() bool { return s.Function != nil }

// Depth returns the number of scopes in the chain, s included.
func (s *Scope) Depth() int {
	n := 0
	for ; s != nil; s = s.Parent {
		n++
	}
	return n
}
