package assembler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Zachacious/go-mockspec/internal/model"
	"gopkg.in/yaml.v3"
)

// Predicate is one condition of a mock's parameter filter.
type Predicate struct {
	Name  string
	Value string
	Kind  model.BindingKind
}

// Filter is an ordered list of predicates, combined with -and.
type Filter []Predicate

// Pipeline reports whether the filter is the pipeline placeholder.
func (f Filter) Pipeline() bool {
	return len(f) == 1 && f[0].Kind == model.BindByPipeline
}

func (f Filter) key() string {
	var sb strings.Builder
	for _, p := range f {
		sb.WriteString(strings.ToLower(p.Name))
		sb.WriteByte(0)
		sb.WriteString(p.Value)
		sb.WriteByte(0)
	}
	return sb.String()
}

// MarshalYAML encodes the filter as an ordered name: value mapping.
func (f Filter) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range f {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Value},
		)
	}
	return node, nil
}

// Mock is one mocked dependency of a function. Identical call sites share a
// mock and raise its Times.
type Mock struct {
	Command string
	Filter  Filter
	Times   int
	Sites   []model.Position
}

// Diagnostic is an invocation, or a whole function, that could not be
// resolved.
type Diagnostic struct {
	Function string
	Command  string
	Pos      model.Position
	Kind     string
	Message  string
}

func (d Diagnostic) String() string {
	if d.Command == "" {
		return fmt.Sprintf("%s: %s: %s", d.Function, d.Kind, d.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", d.Pos, d.Command, d.Kind, d.Message)
}

// Test is the scaffold for one analyzed function.
type Test struct {
	Function    string
	File        string
	Synopsis    string
	Mocks       []*Mock
	Diagnostics []Diagnostic
}

// Suite is everything generated for a batch of functions.
type Suite struct {
	Tests []*Test
}

// Diagnostics returns the diagnostics of every test in order.
func (s *Suite) Diagnostics() []Diagnostic {
	var out []Diagnostic
	for _, t := range s.Tests {
		out = append(out, t.Diagnostics...)
	}
	return out
}

// Build turns function reports into a suite. Bindings become predicates in
// binding order; errors become diagnostics. Two call sites with the same
// command and the same predicates merge into one mock.
func Build(reports []*model.FunctionReport) *Suite {
	suite := &Suite{}
	for _, report := range reports {
		if report == nil {
			continue
		}
		suite.Tests = append(suite.Tests, buildTest(report))
	}
	return suite
}

func buildTest(report *model.FunctionReport) *Test {
	t := &Test{Function: report.Function, File: report.File, Synopsis: report.Synopsis}
	if report.Err != nil {
		t.Diagnostics = append(t.Diagnostics, diagnosticFor(report.Function, report.Err))
	}

	seen := make(map[string]*Mock)
	for _, res := range report.Results {
		if res.Err != nil {
			t.Diagnostics = append(t.Diagnostics, diagnosticFor(report.Function, res.Err))
			continue
		}
		if res.Ref == nil {
			continue
		}
		filter := filterOf(res.Ref.Bindings)
		key := strings.ToLower(res.Ref.Child) + "\x00" + filter.key()
		if m, ok := seen[key]; ok {
			m.Times++
			m.Sites = append(m.Sites, res.Ref.Pos)
			continue
		}
		m := &Mock{Command: res.Ref.Child, Filter: filter, Times: 1, Sites: []model.Position{res.Ref.Pos}}
		seen[key] = m
		t.Mocks = append(t.Mocks, m)
	}
	return t
}

func filterOf(b *model.Bindings) Filter {
	var f Filter
	for _, binding := range b.All() {
		f = append(f, Predicate{Name: binding.Name, Value: binding.Value, Kind: binding.Kind})
	}
	return f
}

func diagnosticFor(function string, err error) Diagnostic {
	d := Diagnostic{Function: function, Kind: "Error", Message: err.Error()}
	var re *model.ResolutionError
	if errors.As(err, &re) {
		d.Command = re.Command
		d.Pos = re.Pos
		d.Kind = re.Kind.String()
		d.Message = re.Message()
		if re.Function != "" {
			d.Function = re.Function
		}
	}
	return d
}
