package psast

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(src, "test.ps1")
	require.NoError(t, err)
	return f
}

// commandNames returns the literal names of every command below root in
// source order.
func commandNames(root Node) []string {
	var names []string
	for _, n := range FindAll(root, func(n Node) bool { _, ok := n.(*Command); return ok }) {
		cmd := n.(*Command)
		if lit, ok := cmd.Name.(*Literal); ok {
			names = append(names, lit.Value)
		} else {
			names = append(names, cmd.Name.Source())
		}
	}
	return names
}

func TestParseFunctionWithParamBlock(t *testing.T) {
	src := `function Invoke-Thing {
    [CmdletBinding()]
    param(
        [Parameter(Mandatory, Position=0)]
        [Alias('p')]
        [string]$Path,
        [switch]$Force
    )
    Write-Log -Message 'value1' -Source "value2"
}`
	f := mustParse(t, src)

	fns := f.Functions()
	require.Len(t, fns, 1)
	fn := fns[0]
	assert.Equal(t, "Invoke-Thing", fn.Name)
	assert.Equal(t, "function", fn.Keyword)
	assert.Equal(t, src, fn.Source())

	params := fn.Parameters()
	require.NotNil(t, params)
	require.Len(t, params.Attributes, 1)
	assert.Equal(t, "CmdletBinding", params.Attributes[0].Name)
	require.Len(t, params.Parameters, 2)

	path := params.Parameters[0]
	assert.Equal(t, "Path", path.Name)
	attr := path.Attribute("parameter")
	require.NotNil(t, attr)
	pos, ok := attr.Arg("Position")
	require.True(t, ok)
	assert.Equal(t, "0", pos)
	mandatory, ok := attr.Arg("mandatory")
	require.True(t, ok)
	assert.Equal(t, "$true", mandatory)
	alias := path.Attribute("Alias")
	require.NotNil(t, alias)
	assert.Equal(t, []string{"'p'"}, alias.Positional)
	assert.True(t, path.Attribute("string").TypeOnly)

	assert.Equal(t, "Force", params.Parameters[1].Name)

	require.Len(t, fn.Body.Statements, 1)
	pipe, ok := fn.Body.Statements[0].(*Pipeline)
	require.True(t, ok)
	require.Len(t, pipe.Elements, 1)
	cmd, ok := pipe.Elements[0].(*Command)
	require.True(t, ok)
	assert.Equal(t, "Write-Log -Message 'value1' -Source \"value2\"", cmd.Source())
	assert.Equal(t, Position{Line: 9, Column: 5, Offset: strings.Index(src, "Write-Log")}, cmd.Pos())

	require.Len(t, cmd.Elements, 2)
	msg := cmd.Elements[0].(*CommandParameter)
	assert.Equal(t, "Message", msg.Name)
	assert.Equal(t, "'value1'", msg.Arg.Source())
	src2 := cmd.Elements[1].(*CommandParameter)
	assert.Equal(t, "Source", src2.Name)
	lit := src2.Arg.(*Literal)
	assert.Equal(t, LiteralString, lit.Kind)
	assert.Equal(t, `"value2"`, lit.Value)
}

func TestParseInlineParameters(t *testing.T) {
	f := mustParse(t, "function f($a, [int]$b = 2) { Get-X $a }")
	fn := f.Functions()[0]
	require.NotNil(t, fn.Params)
	require.Len(t, fn.Params.Parameters, 2)
	assert.Equal(t, "a", fn.Params.Parameters[0].Name)
	assert.Nil(t, fn.Params.Parameters[0].Default)
	assert.Equal(t, "b", fn.Params.Parameters[1].Name)
	assert.Equal(t, "2", fn.Params.Parameters[1].Default.Source())
	assert.Same(t, fn.Params, fn.Parameters())
}

func TestParseAssignmentOfHashtable(t *testing.T) {
	src := "$splatParams = @{splatparam1 = 'splatval1'; splatparam2 = 'splatval2'}\nAdd-Content @splatParams"
	f := mustParse(t, src)
	require.Len(t, f.Body.Statements, 2)

	asg, ok := f.Body.Statements[0].(*Assignment)
	require.True(t, ok)
	assert.Equal(t, "=", asg.Op)
	target, ok := asg.Target.(*VariableRef)
	require.True(t, ok)
	assert.Equal(t, "splatParams", target.Name)

	pipe := asg.Value.(*Pipeline)
	hash, ok := pipe.Elements[0].(*ExprElement).Expr.(*HashLiteral)
	require.True(t, ok)
	require.Len(t, hash.Entries, 2)
	assert.Equal(t, "splatparam1", hash.Entries[0].Key.Source())
	assert.Equal(t, "'splatval1'", hash.Entries[0].Value.Source())
	assert.Equal(t, "splatparam2", hash.Entries[1].Key.Source())
	assert.Equal(t, "'splatval2'", hash.Entries[1].Value.Source())

	cmd := f.Body.Statements[1].(*Pipeline).Elements[0].(*Command)
	require.Len(t, cmd.Elements, 1)
	ref := cmd.Elements[0].(*CommandArgument).Value.(*VariableRef)
	assert.True(t, ref.Splatted)
	assert.Equal(t, "splatParams", ref.Name)
}

func TestParseMultilineHashtable(t *testing.T) {
	src := `$p = @{
    Path = $path
    Count = 3
    'Quoted Key' = @"
text
"@
}`
	f := mustParse(t, src)
	hash := f.Body.Statements[0].(*Assignment).Value.(*Pipeline).Elements[0].(*ExprElement).Expr.(*HashLiteral)
	require.Len(t, hash.Entries, 3)
	assert.Equal(t, "$path", hash.Entries[0].Value.Source())
	assert.Equal(t, "3", hash.Entries[1].Value.Source())
	assert.Equal(t, "'Quoted Key'", hash.Entries[2].Key.Source())
	here := hash.Entries[2].Value.(*Pipeline).Elements[0].(*ExprElement).Expr.(*Literal)
	assert.Equal(t, LiteralHereString, here.Kind)
	assert.Equal(t, "text", here.Value)
}

func TestParsePipeline(t *testing.T) {
	f := mustParse(t, "Get-Foo |\n  Do-Something -Verbose")
	pipe := f.Body.Statements[0].(*Pipeline)
	require.Len(t, pipe.Elements, 2)
	assert.Equal(t, []string{"Get-Foo", "Do-Something"}, commandNames(f))
	second := pipe.Elements[1].(*Command)
	require.Len(t, second.Elements, 1)
	assert.Nil(t, second.Elements[0].(*CommandParameter).Arg)
}

func TestParseNestedCommandsInDocumentOrder(t *testing.T) {
	src := `if ($a -eq 1) { Get-A } elseif (Test-B) { Get-B } else { Get-C }
foreach ($i in $items) { Get-D $i }
try { Get-E } catch [System.Exception] { Get-F } finally { Get-G }
switch ($x) { 'a' { Get-H } default { Get-I } }
Invoke-Command -ScriptBlock { Get-J }
$v = $(Get-K)
do { Get-L } while ($false)
for ($n = 0; $n -lt 3; $n++) { Get-M }
while (Test-N) { break }
[void](Get-O)
$list.Add((Get-P))
Get-Q && Get-R
function Outer { function Inner { Get-S } }
`
	f := mustParse(t, src)
	want := []string{
		"Get-A", "Test-B", "Get-B", "Get-C", "Get-D", "Get-E", "Get-F", "Get-G",
		"Get-H", "Get-I", "Invoke-Command", "Get-J", "Get-K", "Get-L", "Get-M",
		"Test-N", "Get-O", "Get-P", "Get-Q", "Get-R", "Get-S",
	}
	if diff := cmp.Diff(want, commandNames(f)); diff != "" {
		t.Errorf("command order mismatch (-want +got):\n%s", diff)
	}

	ctrl := f.Body.Statements[0].(*Control)
	assert.Equal(t, "if", ctrl.Keyword)
	require.Len(t, ctrl.Clauses, 3)
	assert.Equal(t, "else", ctrl.Clauses[2].Keyword)
	assert.Nil(t, ctrl.Clauses[2].Condition)

	assert.Len(t, f.Functions(), 2)
}

func TestParseSwitchParameters(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		switches []string
	}{
		{"followed by parameter", "Get-Item -Force -Path x", []string{"Force"}},
		{"followed by terminator", "Get-Item -Path x -Force; Get-Y", []string{"Force"}},
		{"followed by closing brace", "& { Get-Item -Path x -Recurse }", []string{"Recurse"}},
		{"followed by pipe", "Get-Item -Force | Out-Null", []string{"Force"}},
		{"followed by splat", "Get-Item -Force @rest", []string{"Force"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, tt.input)
			var switches []string
			Inspect(f, func(n Node) bool {
				if p, ok := n.(*CommandParameter); ok && p.Arg == nil {
					switches = append(switches, p.Name)
				}
				return true
			})
			assert.Equal(t, tt.switches, switches)
		})
	}
}

func TestParseCommandElements(t *testing.T) {
	f := mustParse(t, "Get-X @p 'v' -N:$y -List a,b 2>&1")
	cmd := f.Body.Statements[0].(*Pipeline).Elements[0].(*Command)
	require.Len(t, cmd.Elements, 5)

	splat := cmd.Elements[0].(*CommandArgument).Value.(*VariableRef)
	assert.True(t, splat.Splatted)

	assert.Equal(t, "'v'", cmd.Elements[1].(*CommandArgument).Value.Source())

	colon := cmd.Elements[2].(*CommandParameter)
	assert.True(t, colon.Colon)
	assert.Equal(t, "y", colon.Arg.(*VariableRef).Name)

	list := cmd.Elements[3].(*CommandParameter)
	compound, ok := list.Arg.(*Compound)
	require.True(t, ok)
	assert.Len(t, compound.Parts, 2)
	assert.Equal(t, "a,b", compound.Source())

	redir := cmd.Elements[4].(*Redirection)
	assert.Equal(t, "2>&1", redir.Op)
	assert.Nil(t, redir.Target)
}

func TestParseCallOperators(t *testing.T) {
	f := mustParse(t, "& $cmd -A 1\n. ./helpers.ps1\n& 'Get-Thing' x")
	cmds := FindAll(f, func(n Node) bool { _, ok := n.(*Command); return ok })
	require.Len(t, cmds, 3)

	first := cmds[0].(*Command)
	assert.Equal(t, "&", first.Invoke)
	_, ok := first.Name.(*VariableRef)
	assert.True(t, ok)

	second := cmds[1].(*Command)
	assert.Equal(t, ".", second.Invoke)
	assert.Equal(t, "./helpers.ps1", second.Name.Source())

	third := cmds[2].(*Command)
	assert.Equal(t, "'Get-Thing'", third.Name.Source())
}

func TestParseHelpComments(t *testing.T) {
	src := `<#
.SYNOPSIS
Does things.
#>
function Do-Things { Get-A }

# just a note
function Plain { Get-B }

function Other {
    # .SYNOPSIS
    # Other things.
    param()
    Get-C
}
`
	f := mustParse(t, src)
	fns := f.Functions()
	require.Len(t, fns, 3)

	require.NotNil(t, fns[0].Help)
	assert.Contains(t, fns[0].Help.Text, "Does things.")
	assert.True(t, fns[0].Help.Block)

	assert.Nil(t, fns[1].Help)

	require.NotNil(t, fns[2].Help)
	assert.Contains(t, fns[2].Help.Text, "Other things.")
}

func TestParseScopedFunctionName(t *testing.T) {
	f := mustParse(t, "function global:Get-Thing { }")
	assert.Equal(t, "Get-Thing", f.Functions()[0].Name)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{"missing closing brace", "function Foo {\n  Get-X", "missing closing '}'"},
		{"missing closing paren", "if ($a { }", "missing closing ')'"},
		{"try without catch", "try { Get-X }", "try block requires a catch or finally block"},
		{"unterminated string", "Get-X 'abc", "unterminated string"},
		{"hashtable without equals", "$h = @{ a 1 }", "expected '=' after hashtable key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input, "bad.ps1")
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Message, tt.wantMsg)
			assert.Equal(t, "bad.ps1", pe.File)
			assert.True(t, strings.HasPrefix(err.Error(), "bad.ps1:"), err.Error())
		})
	}
}

func TestParseErrorFormatting(t *testing.T) {
	err := &ParseError{Pos: Position{Line: 3, Column: 7}, Message: "boom"}
	assert.Equal(t, "line 3, column 7: boom", err.Error())
	err.File = "x.ps1"
	assert.Equal(t, "x.ps1:3:7: boom", err.Error())
}

func TestParseForeachPipelineSource(t *testing.T) {
	f := mustParse(t, "foreach ($file in Get-ChildItem -Path $root) { Remove-Item $file }\nforeach ([string]$s in $list) { }")
	assert.Equal(t, []string{"Get-ChildItem", "Remove-Item"}, commandNames(f))

	loop := f.Body.Statements[0].(*Control)
	cond, ok := loop.Clauses[0].Condition.(*SubExpr)
	require.True(t, ok)
	require.Len(t, cond.Body.Statements, 2)
	assert.Equal(t, "($file in Get-ChildItem -Path $root)", cond.Source())
}
