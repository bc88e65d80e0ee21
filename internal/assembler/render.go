package assembler

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/model"
	"gopkg.in/yaml.v3"
)

// PipelinePlaceholder is the filter body rendered for a parameter bound from
// the pipeline.
const PipelinePlaceholder = "<# bound via pipeline: complete manually #>"

// Options controls rendering.
type Options struct {
	Format string
	// Describe is a template for the Describe title, executed with the Test.
	// The function name is used when empty.
	Describe string
}

const pesterTemplate = `{{- if .Files}}BeforeAll {
{{- range .Files}}
    . (Join-Path $PSScriptRoot {{quote .}})
{{- end}}
}
{{end}}
{{- range $i, $t := .Tests}}{{if or $i $.Files}}
{{end}}Describe {{quote (title $t)}} {
{{- if $t.Mocks}}
    BeforeAll {
{{- range $t.Mocks}}
        {{mock .}}
{{- end}}
    }
{{- end}}

    It {{quote (it $t)}} {
        {{$t.Function}}
{{- if $t.Mocks}}
{{range $t.Mocks}}
        {{assert .}}
{{- end}}
{{- end}}
    }
{{- range $t.Diagnostics}}
    # unresolved: {{.}}
{{- end}}
}
{{end}}`

// Render writes the suite in the requested format.
func Render(w io.Writer, suite *Suite, opts Options) error {
	switch opts.Format {
	case "", config.FormatPester:
		return renderPester(w, suite, opts)
	case config.FormatYAML:
		return renderYAML(w, suite)
	}
	return fmt.Errorf("unknown output format %q", opts.Format)
}

func renderPester(w io.Writer, suite *Suite, opts Options) error {
	titleFn := func(t *Test) string { return t.Function }
	if opts.Describe != "" {
		describe, err := template.New("describe").Parse(opts.Describe)
		if err != nil {
			return fmt.Errorf("parsing describe template: %w", err)
		}
		titleFn = func(t *Test) string {
			var buf bytes.Buffer
			if err := describe.Execute(&buf, t); err != nil {
				return t.Function
			}
			return buf.String()
		}
	}

	tmpl, err := template.New("pester").Funcs(template.FuncMap{
		"quote":  quote,
		"mock":   mockLine,
		"assert": assertLine,
		"title":  titleFn,
		"it": func(t *Test) string {
			if t.Synopsis != "" {
				return t.Synopsis
			}
			return t.Function
		},
	}).Parse(pesterTemplate)
	if err != nil {
		return fmt.Errorf("parsing pester template: %w", err)
	}

	data := struct {
		Files []string
		Tests []*Test
	}{Files: sourceFiles(suite), Tests: suite.Tests}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("rendering pester suite: %w", err)
	}
	return nil
}

// sourceFiles returns the distinct base names of the analyzed files in order.
func sourceFiles(suite *Suite) []string {
	var files []string
	seen := make(map[string]bool)
	for _, t := range suite.Tests {
		if t.File == "" {
			continue
		}
		base := filepath.Base(t.File)
		if !seen[base] {
			seen[base] = true
			files = append(files, base)
		}
	}
	return files
}

// quote renders s as a single-quoted PowerShell string.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var simpleVariable = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// variable renders a parameter name as a PowerShell variable reference.
func variable(name string) string {
	if simpleVariable.MatchString(name) {
		return "$" + name
	}
	return "${" + name + "}"
}

// filterBody renders the inside of a -ParameterFilter script block.
func filterBody(f Filter) string {
	if f.Pipeline() {
		return PipelinePlaceholder
	}
	parts := make([]string, 0, len(f))
	for _, p := range f {
		parts = append(parts, variable(p.Name)+" -eq "+operand(p.Value))
	}
	return strings.Join(parts, " -and ")
}

// operand renders a bound value for comparison. The boolean literals stay
// unquoted: any non-empty string compares equal to $true.
func operand(value string) string {
	switch strings.ToLower(value) {
	case "$true":
		return "$true"
	case "$false":
		return "$false"
	}
	return quote(value)
}

func mockLine(m *Mock) string {
	if len(m.Filter) == 0 {
		return "Mock " + m.Command
	}
	return "Mock " + m.Command + " -ParameterFilter { " + filterBody(m.Filter) + " }"
}

func assertLine(m *Mock) string {
	line := fmt.Sprintf("Should -Invoke %s -Times %d -Exactly", m.Command, m.Times)
	if len(m.Filter) == 0 {
		return line
	}
	return line + " -ParameterFilter { " + filterBody(m.Filter) + " }"
}

type yamlSuite struct {
	Functions []yamlFunction `yaml:"functions"`
}

type yamlFunction struct {
	Name        string           `yaml:"name"`
	File        string           `yaml:"file,omitempty"`
	Synopsis    string           `yaml:"synopsis,omitempty"`
	Mocks       []yamlMock       `yaml:"mocks"`
	Diagnostics []yamlDiagnostic `yaml:"diagnostics,omitempty"`
}

type yamlMock struct {
	Command string   `yaml:"command"`
	Times   int      `yaml:"times"`
	Filter  Filter   `yaml:"filter"`
	Sites   []string `yaml:"sites"`
}

type yamlDiagnostic struct {
	Command  string `yaml:"command,omitempty"`
	Position string `yaml:"position,omitempty"`
	Kind     string `yaml:"kind"`
	Message  string `yaml:"message"`
}

func renderYAML(w io.Writer, suite *Suite) error {
	out := yamlSuite{Functions: make([]yamlFunction, 0, len(suite.Tests))}
	for _, t := range suite.Tests {
		fn := yamlFunction{Name: t.Function, File: t.File, Synopsis: t.Synopsis, Mocks: make([]yamlMock, 0, len(t.Mocks))}
		for _, m := range t.Mocks {
			ym := yamlMock{Command: m.Command, Times: m.Times, Filter: m.Filter}
			for _, site := range m.Sites {
				ym.Sites = append(ym.Sites, site.String())
			}
			fn.Mocks = append(fn.Mocks, ym)
		}
		for _, d := range t.Diagnostics {
			yd := yamlDiagnostic{Command: d.Command, Kind: d.Kind, Message: d.Message}
			if d.Pos != (model.Position{}) {
				yd.Position = d.Pos.String()
			}
			fn.Diagnostics = append(fn.Diagnostics, yd)
		}
		out.Functions = append(out.Functions, fn)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
