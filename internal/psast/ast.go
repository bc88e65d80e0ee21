// Package psast is a syntax tree and parser for the subset of PowerShell that
// mockspec analyzes: function definitions, pipelines of command invocations,
// assignments, hashtable literals and the control-flow statements that nest
// them.
//
// The node set is closed. Every node type lives in this file and implements
// the unexported node method, so a type switch over Node can be exhaustive.
package psast

// Extent is the source range and text a node was parsed from.
type Extent struct {
	Start Position
	End   Position
	Text  string
}

// Pos returns the start of the node.
func (e Extent) Pos() Position { return e.Start }

// Source returns the exact source text of the node.
func (e Extent) Source() string { return e.Text }

// Node is implemented by every syntax tree node.
type Node interface {
	Pos() Position
	Source() string
	node()
}

// Statement is a node that can appear in a statement list.
type Statement interface {
	Node
	stmt()
}

// Expr is a node that produces a value.
type Expr interface {
	Node
	expr()
}

// PipelineElement is one stage of a pipeline: a command or an expression.
type PipelineElement interface {
	Node
	element()
}

// CommandElement is one argument of a command invocation.
type CommandElement interface {
	Node
	commandElement()
}

// File is a parsed script file.
type File struct {
	Extent
	Name     string
	Body     *ScriptBlock
	Comments []Comment
}

// ScriptBlock is an ordered statement list with an optional param block.
type ScriptBlock struct {
	Extent
	Param      *ParamBlock
	Statements []Statement
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// FunctionDef is a function or filter definition.
type FunctionDef struct {
	Extent
	Keyword string // function, filter or workflow
	Name    string
	// Params holds the parenthesized parameter list of `function f($a) {}`.
	Params *ParamBlock
	Body   *ScriptBlock
	// Help is the comment-based help attached to the definition, if any.
	Help *Comment
}

// Parameters returns the effective parameter declaration: the param block of
// the body when present, the inline list otherwise.
func (f *FunctionDef) Parameters() *ParamBlock {
	if f.Body != nil && f.Body.Param != nil {
		return f.Body.Param
	}
	return f.Params
}

// Pipeline is one or more pipeline elements joined by '|'.
type Pipeline struct {
	Extent
	Elements []PipelineElement
}

// Assignment assigns the value of a statement to a target.
type Assignment struct {
	Extent
	Target Expr
	Op     string // =, +=, -=, ...
	Value  Statement
}

// Control is a compound statement such as if, foreach, while, switch, try
// or a named begin/process/end block.
type Control struct {
	Extent
	Keyword string
	Clauses []*Clause
}

// Clause is one arm of a Control statement.
type Clause struct {
	Extent
	Keyword   string // if, elseif, else, catch, finally, a switch pattern...
	Condition Expr   // nil when the clause has none
	Body      *ScriptBlock
}

// Flow is a return, throw, exit, break or continue statement.
type Flow struct {
	Extent
	Keyword string
	Value   *Pipeline // nil when bare
}

// ---------------------------------------------------------------------------
// Pipeline elements
// ---------------------------------------------------------------------------

// Command is a command invocation, the node kind the analyzer looks for.
type Command struct {
	Extent
	// Invoke is "&" or "." when the command uses a call operator.
	Invoke   string
	Name     Expr
	Elements []CommandElement
}

// ExprElement is a pipeline stage that is an expression rather than a
// command, e.g. the 'a','b' in `'a','b' | Out-Host`.
type ExprElement struct {
	Extent
	Expr Expr
}

// CommandParameter is a -Name or -Name:value command element. Arg is nil for
// switch parameters.
type CommandParameter struct {
	Extent
	Name  string
	Arg   Expr
	Colon bool
}

// CommandArgument is a command element supplied without a parameter name.
type CommandArgument struct {
	Extent
	Value Expr
}

// Redirection is an output redirection such as `> out.txt` or `2>&1`.
type Redirection struct {
	Extent
	Op     string
	Target Expr // nil for stream merges
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// LiteralKind distinguishes literal flavours.
type LiteralKind int

const (
	LiteralWord LiteralKind = iota
	LiteralString
	LiteralHereString
	LiteralNumber
)

// Literal is a string, number or bareword.
type Literal struct {
	Extent
	Kind  LiteralKind
	Value string // here-string content for LiteralHereString, the raw text otherwise
}

// VariableRef is a $name reference, or @name when Splatted.
type VariableRef struct {
	Extent
	Name     string
	Splatted bool
}

// HashLiteral is an @{ key = value; ... } literal.
type HashLiteral struct {
	Extent
	Entries []*HashEntry
}

// HashEntry is one key/value pair of a HashLiteral in declaration order.
type HashEntry struct {
	Extent
	Key   Expr
	Value Statement
}

// ArrayLiteral is an @( ... ) array sub-expression.
type ArrayLiteral struct {
	Extent
	Body *ScriptBlock
}

// SubExpr is a $( ... ) sub-expression, or a ( ... ) grouping when Dollar is
// false.
type SubExpr struct {
	Extent
	Dollar bool
	Body   *ScriptBlock
}

// ScriptBlockExpr is a { ... } script block used as a value.
type ScriptBlockExpr struct {
	Extent
	Body *ScriptBlock
}

// Compound is an expression made of several parts joined by operators,
// member access or indexing. Its value is not evaluated; only its source
// text and nested parts are kept.
type Compound struct {
	Extent
	Parts []Expr
}

// Opaque is a token the parser keeps only as text: operators, type literals.
type Opaque struct {
	Extent
}

// ---------------------------------------------------------------------------
// Parameter declarations
// ---------------------------------------------------------------------------

// ParamBlock is a param(...) block or an inline function parameter list.
type ParamBlock struct {
	Extent
	Attributes []*Attribute
	Parameters []*Parameter
}

// Attribute is an attribute such as [Parameter(Position=0)] or a type
// constraint such as [string] (no arguments, TypeOnly set).
type Attribute struct {
	Extent
	Name       string
	TypeOnly   bool
	Positional []string
	Named      []*NamedArg
}

// Arg returns the value of the named argument name, case-insensitively.
func (a *Attribute) Arg(name string) (string, bool) {
	for _, n := range a.Named {
		if equalFold(n.Name, name) {
			return n.Value, true
		}
	}
	return "", false
}

// NamedArg is a Name=Value attribute argument. A bare Name has value $true.
type NamedArg struct {
	Name  string
	Value string
}

// Parameter is a declared function parameter.
type Parameter struct {
	Extent
	Name       string
	Attributes []*Attribute
	Default    Expr
}

// Attribute returns the first attribute with the given name.
func (p *Parameter) Attribute(name string) *Attribute {
	for _, a := range p.Attributes {
		if equalFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func (*File) node()             {}
func (*ScriptBlock) node()      {}
func (*FunctionDef) node()      {}
func (*Pipeline) node()         {}
func (*Assignment) node()       {}
func (*Control) node()          {}
func (*Clause) node()           {}
func (*Flow) node()             {}
func (*Command) node()          {}
func (*ExprElement) node()      {}
func (*CommandParameter) node() {}
func (*CommandArgument) node()  {}
func (*Redirection) node()      {}
func (*Literal) node()          {}
func (*VariableRef) node()      {}
func (*HashLiteral) node()      {}
func (*HashEntry) node()        {}
func (*ArrayLiteral) node()     {}
func (*SubExpr) node()          {}
func (*ScriptBlockExpr) node()  {}
func (*Compound) node()         {}
func (*Opaque) node()           {}
func (*ParamBlock) node()       {}
func (*Parameter) node()        {}
func (*Attribute) node()        {}

func (*FunctionDef) stmt() {}
func (*Pipeline) stmt()    {}
func (*Assignment) stmt()  {}
func (*Control) stmt()     {}
func (*Flow) stmt()        {}

func (*Command) element()     {}
func (*ExprElement) element() {}

func (*CommandParameter) commandElement() {}
func (*CommandArgument) commandElement()  {}
func (*Redirection) commandElement()      {}

func (*Literal) expr()         {}
func (*VariableRef) expr()     {}
func (*HashLiteral) expr()     {}
func (*ArrayLiteral) expr()    {}
func (*SubExpr) expr()         {}
func (*ScriptBlockExpr) expr() {}
func (*Compound) expr()        {}
func (*Opaque) expr()          {}
