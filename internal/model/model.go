package model

import (
	"fmt"
	"strings"
)

const (
	// UnresolvedCommand stands in for a command name that is not a static
	// literal, e.g. `& $cmd`.
	UnresolvedCommand = "<unresolved>"
	// PipelineSentinel is the binding name used when a command receives its
	// input from the pipeline and no explicit argument is available.
	PipelineSentinel = "<pipeline>"
)

// Position is the location of an invocation in a script.
type Position struct {
	File   string `yaml:"file,omitempty"`
	Line   int    `yaml:"line"`
	Column int    `yaml:"column"`
	// Offset is the 0-based byte offset, used to order positions in one file.
	Offset int `yaml:"-"`
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Invocation is one command call site found inside a function body.
type Invocation struct {
	// Parent is the function whose body contains the call.
	Parent string
	// Command is the invoked command name or UnresolvedCommand.
	Command string
	// Arguments holds the raw arguments in source order.
	Arguments []RawArgument
	// FromPipeline is set when the command is on the right-hand side of a pipe.
	FromPipeline bool
	Pos          Position
	// Text is the source text of the call.
	Text string
}

// RawArgument is one argument of an invocation as written. Exactly one of
// the three shapes applies: a named argument (Name set), a splat (Splat set)
// or a positional value (Ordinal >= 0).
type RawArgument struct {
	// Name is the parameter name of a -Name value argument.
	Name string
	// Value is the source text of the value. Switch parameters carry "$true".
	Value string
	// Splat is the variable name of an @name argument.
	Splat string
	// Ordinal is the index among the positional arguments of the invocation,
	// -1 for named and splat arguments.
	Ordinal int
}

// NamedArgument builds a -name value argument.
func NamedArgument(name, value string) RawArgument {
	return RawArgument{Name: name, Value: value, Ordinal: -1}
}

// PositionalArgument builds an argument supplied without a parameter name.
func PositionalArgument(ordinal int, value string) RawArgument {
	return RawArgument{Value: value, Ordinal: ordinal}
}

// SplatArgument builds an @variable argument.
func SplatArgument(variable string) RawArgument {
	return RawArgument{Splat: variable, Ordinal: -1}
}

func (a RawArgument) String() string {
	switch {
	case a.Splat != "":
		return "@" + a.Splat
	case a.Name != "":
		return "-" + a.Name + " " + a.Value
	}
	return a.Value
}

// CommandSignature describes the parameters a command accepts.
type CommandSignature struct {
	Name string `yaml:"name"`
	// Builtin marks host commands without an inspectable body.
	Builtin       bool           `yaml:"builtin,omitempty"`
	Aliases       []string       `yaml:"aliases,omitempty"`
	ParameterSets []ParameterSet `yaml:"parameterSets"`
	// Source names the provider that produced the signature.
	Source string `yaml:"-"`
}

// ParameterSet is a named group of parameters in declaration order.
type ParameterSet struct {
	Name       string                `yaml:"name,omitempty"`
	Parameters []ParameterDescriptor `yaml:"parameters"`
}

// ParameterDescriptor describes one parameter of a command.
type ParameterDescriptor struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
	// Position is nil for parameters that can only be bound by name.
	Position  *int `yaml:"position,omitempty"`
	Mandatory bool `yaml:"mandatory,omitempty"`
	Switch    bool `yaml:"switch,omitempty"`
}

// Matches reports whether name refers to the parameter, by name or alias.
func (d ParameterDescriptor) Matches(name string) bool {
	if strings.EqualFold(d.Name, name) {
		return true
	}
	for _, a := range d.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// ParameterAt returns the first parameter, across parameter sets in
// declaration order, whose position equals ordinal.
func (s *CommandSignature) ParameterAt(ordinal int) (ParameterDescriptor, bool) {
	for _, set := range s.ParameterSets {
		for _, p := range set.Parameters {
			if p.Position != nil && *p.Position == ordinal {
				return p, true
			}
		}
	}
	return ParameterDescriptor{}, false
}

// Parameter returns the parameter called name (or aliased to it).
func (s *CommandSignature) Parameter(name string) (ParameterDescriptor, bool) {
	for _, set := range s.ParameterSets {
		for _, p := range set.Parameters {
			if p.Matches(name) {
				return p, true
			}
		}
	}
	return ParameterDescriptor{}, false
}

// Answers reports whether the signature is for name, by name or alias.
func (s *CommandSignature) Answers(name string) bool {
	if strings.EqualFold(s.Name, name) {
		return true
	}
	for _, a := range s.Aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// SplatSource is the hashtable literal a splatted variable was assigned.
type SplatSource struct {
	Variable string
	Entries  []SplatEntry
	// Pos is the position of the selected assignment.
	Pos Position
}

// SplatEntry is one key/value pair of a splat source, quotes stripped.
type SplatEntry struct {
	Key   string
	Value string
}

// BindingKind records how a parameter received its value.
type BindingKind int

const (
	BindByName BindingKind = iota
	BindByPosition
	BindBySplat
	BindByPipeline
)

var bindingKindNames = [...]string{
	BindByName:     "Name",
	BindByPosition: "Position",
	BindBySplat:    "Splat",
	BindByPipeline: "Pipeline",
}

func (k BindingKind) String() string {
	if int(k) >= 0 && int(k) < len(bindingKindNames) {
		return bindingKindNames[k]
	}
	return fmt.Sprintf("BindingKind(%d)", int(k))
}

// ParameterBinding is one resolved parameter.
type ParameterBinding struct {
	Name  string
	Value string
	Kind  BindingKind
}

// ResolvedReference is a fully resolved invocation.
type ResolvedReference struct {
	Parent   string
	Child    string
	Pos      Position
	Text     string
	Bindings *Bindings
}

// Result is the outcome of resolving one invocation: a reference or an error.
type Result struct {
	Ref *ResolvedReference
	Err error
}

// OK reports whether the invocation resolved.
func (r Result) OK() bool { return r.Err == nil && r.Ref != nil }

// FunctionReport collects everything found for one analyzed function.
type FunctionReport struct {
	Function string
	File     string
	// Synopsis and Description come from the function's comment-based help.
	Synopsis    string
	Description string
	Results     []Result
	// Err is set when the function itself could not be analyzed.
	Err error
}

// Failed reports whether the function or any of its invocations failed.
func (r *FunctionReport) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}
