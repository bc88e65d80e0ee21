package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zachacious/go-mockspec/internal/assembler"
	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `function Get-Settings {
    param($Path)
    Get-Content -Path $Path -Raw | ConvertFrom-Json
}

function Save-Report {
    Get-Settings 'settings.json'
    Publish-Report 'weekly'
}
`

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func scriptDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.ps1"), []byte(script), 0o644))
	return dir
}

func TestListCommand(t *testing.T) {
	out, _, err := run(t, "list", "-q", scriptDir(t))
	require.NoError(t, err)
	assert.Equal(t, "Get-Settings\nSave-Report\n", out)
}

func TestGenerateCommand(t *testing.T) {
	out, stderr, err := run(t, "generate", scriptDir(t), "-f", "Save-Report")
	require.NoError(t, err)
	assert.Contains(t, out, "Describe 'Save-Report' {")
	assert.Contains(t, out, "Mock Get-Settings -ParameterFilter { $Path -eq 'settings.json' }")
	assert.Contains(t, out, "# unresolved: ")

	assert.Contains(t, stderr, "Generated 1 tests with 1 mocks")
	assert.Contains(t, stderr, "1 unresolved invocations:")
	assert.Contains(t, stderr, "Publish-Report")
}

func TestGenerateCommandToFile(t *testing.T) {
	dir := scriptDir(t)
	target := filepath.Join(t.TempDir(), "out.yaml")
	out, _, err := run(t, "generate", dir, "-q", "--format", "yaml", "-o", target)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: Get-Settings")
	assert.Contains(t, string(data), "command: ConvertFrom-Json")
}

func TestGenerateCommandAbort(t *testing.T) {
	_, _, err := run(t, "generate", scriptDir(t), "-q", "--policy", "abort", "-f", "Save-Report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generating scaffolding")
}

func TestGenerateCommandBadFlags(t *testing.T) {
	_, _, err := run(t, "generate", scriptDir(t), "--splat", "loose")
	assert.ErrorContains(t, err, "splat policy")

	_, _, err = run(t, "generate")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "mockspec version dev")
}

func TestRenderReport(t *testing.T) {
	suite := &assembler.Suite{Tests: []*assembler.Test{
		{Function: "A", Mocks: []*assembler.Mock{{Command: "Get-Item", Times: 1}}},
		{Function: "B", Diagnostics: []assembler.Diagnostic{
			{Function: "B", Command: "Do-It", Pos: model.Position{File: "b.ps1", Line: 3, Column: 5}, Kind: "UnknownPosition", Message: "no parameter at position"},
			{Function: "B", Kind: "NotFound", Message: "function not found"},
		}},
	}}
	var buf bytes.Buffer
	renderReport(&buf, suite)
	assert.Contains(t, buf.String(), "Generated 2 tests with 1 mocks")
	assert.Contains(t, buf.String(), "2 unresolved invocations:")
	assert.Contains(t, buf.String(), "b.ps1:3:5 Do-It")
	assert.Contains(t, buf.String(), "no parameter at position")
	assert.Contains(t, buf.String(), "NotFound")

	buf.Reset()
	renderReport(&buf, &assembler.Suite{})
	assert.Contains(t, buf.String(), "All invocations resolved")
}
