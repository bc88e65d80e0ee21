package analyzer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/Zachacious/go-mockspec/internal/psast"
	"github.com/Zachacious/go-mockspec/internal/signature"
	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

// testCatalog declares Test-Path with Path at position 0 and Copy-Thing with
// Path and Destination at positions 0 and 1.
func testCatalog() *signature.Catalog {
	return signature.NewCatalog("test",
		&model.CommandSignature{
			Name:    "Test-Path",
			Builtin: true,
			ParameterSets: []model.ParameterSet{{
				Name:       "Path",
				Parameters: []model.ParameterDescriptor{{Name: "Path", Position: intPtr(0), Mandatory: true}},
			}},
		},
		&model.CommandSignature{
			Name:    "Copy-Thing",
			Aliases: []string{"ct"},
			ParameterSets: []model.ParameterSet{
				{Name: "A", Parameters: []model.ParameterDescriptor{{Name: "Path", Position: intPtr(0)}}},
				{Name: "B", Parameters: []model.ParameterDescriptor{
					{Name: "LiteralPath"},
					{Name: "Destination", Position: intPtr(1)},
				}},
			},
		},
	)
}

func parse(t *testing.T, name, src string) *psast.File {
	t.Helper()
	f, err := psast.Parse(src, name)
	require.NoError(t, err)
	return f
}

func newAnalyzer(t *testing.T, cfg *config.Config, provider signature.Provider, srcs ...string) *Analyzer {
	t.Helper()
	files := make([]*psast.File, len(srcs))
	for i, src := range srcs {
		files[i] = parse(t, "test.ps1", src)
	}
	a, err := New(cfg, provider, nil, files...)
	require.NoError(t, err)
	return a
}

// results collects every result of the named function.
func results(t *testing.T, a *Analyzer, name string) []model.Result {
	t.Helper()
	seq, err := a.References(name)
	require.NoError(t, err)
	var out []model.Result
	for r := range seq {
		out = append(out, r)
	}
	return out
}

// single resolves a one-invocation function body and returns its bindings.
func single(t *testing.T, a *Analyzer, name string) *model.ResolvedReference {
	t.Helper()
	res := results(t, a, name)
	require.Len(t, res, 1)
	require.NoError(t, res[0].Err)
	require.NotNil(t, res[0].Ref)
	return res[0].Ref
}

func bindingMap(b *model.Bindings) [][2]string {
	var out [][2]string
	for name, binding := range b.All() {
		out = append(out, [2]string{name, binding.Value})
	}
	return out
}

func TestNamedBindings(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    write-log -Message 'value1' -Source 'value2'
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, "Invoke-It", ref.Parent)
	assert.Equal(t, "write-log", ref.Child)
	assert.Equal(t, [][2]string{{"Message", "value1"}, {"Source", "value2"}}, bindingMap(ref.Bindings))
	assert.Equal(t, "test.ps1", ref.Pos.File)
	assert.Equal(t, 2, ref.Pos.Line)
	assert.Equal(t, 5, ref.Pos.Column)

	b, ok := ref.Bindings.Get("message")
	require.True(t, ok)
	assert.Equal(t, model.BindByName, b.Kind)
}

func TestQuoteStyles(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    Write-Log -Message 'value1'
    Write-Log -Message "value1"
    Write-Log -Message value1
}`)
	for _, res := range results(t, a, "Invoke-It") {
		require.NoError(t, res.Err)
		b, ok := res.Ref.Bindings.Get("Message")
		require.True(t, ok)
		assert.Equal(t, "value1", b.Value)
	}
}

func TestPositionalBinding(t *testing.T) {
	a := newAnalyzer(t, nil, testCatalog(), `function Invoke-It {
    Test-path 'valbyposition'
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, [][2]string{{"Path", "valbyposition"}}, bindingMap(ref.Bindings))
	b, _ := ref.Bindings.Get("Path")
	assert.Equal(t, model.BindByPosition, b.Kind)
}

func TestPositionalAcrossParameterSets(t *testing.T) {
	a := newAnalyzer(t, nil, testCatalog(), `function Invoke-It {
    ct 'a.txt' 'b.txt' -Force
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, [][2]string{{"Path", "a.txt"}, {"Destination", "b.txt"}, {"Force", "$true"}}, bindingMap(ref.Bindings))
}

func TestPositionalFailures(t *testing.T) {
	a := newAnalyzer(t, nil, testCatalog(), `function Invoke-It {
    Get-Unknown 'x'
    Test-Path 'a' 'b'
}`)
	res := results(t, a, "Invoke-It")
	require.Len(t, res, 2)

	assert.ErrorIs(t, res[0].Err, model.ErrMissingSignature)
	assert.Nil(t, res[0].Ref)
	kind, ok := model.KindOf(res[0].Err)
	require.True(t, ok)
	assert.Equal(t, model.MissingSignature, kind)

	assert.ErrorIs(t, res[1].Err, model.ErrUnknownPosition)
	assert.Contains(t, res[1].Err.Error(), "position 1")
}

type brokenProvider struct{}

func (brokenProvider) Lookup(string) (*model.CommandSignature, error) {
	return nil, errors.New("catalog offline")
}

func TestProviderFailureIsMissingSignature(t *testing.T) {
	a := newAnalyzer(t, nil, brokenProvider{}, "function f { Get-X 1 }")
	res := results(t, a, "f")
	require.Len(t, res, 1)
	assert.ErrorIs(t, res[0].Err, model.ErrMissingSignature)
	assert.Contains(t, res[0].Err.Error(), "catalog offline")
}

func TestSplatBinding(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    $splatParams = @{splatparam1 = 'splatval1'; splatparam2 = 'splatval2'}
    Add-Content @splatParams
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, [][2]string{{"splatparam1", "splatval1"}, {"splatparam2", "splatval2"}}, bindingMap(ref.Bindings))
	b, _ := ref.Bindings.Get("splatparam2")
	assert.Equal(t, model.BindBySplat, b.Kind)
}

func TestSplatMultilineAndValues(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    $Params = [ordered]@{
        "Path"  = $path
        Filter  = "*.log"
        Depth   = 2
    }
    Get-ChildItem @params
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, [][2]string{{"Path", "$path"}, {"Filter", "*.log"}, {"Depth", "2"}}, bindingMap(ref.Bindings))
}

func TestSplatMergeOrder(t *testing.T) {
	a := newAnalyzer(t, nil, testCatalog(), `function Invoke-It {
    $a = @{ Z = 'fromsplat'; A = 'x' }
    $b = @{ B = 'y' }
    Test-Path @b -Z 'explicit' 'p' @a
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, []string{"Z", "Path", "B", "A"}, ref.Bindings.Keys())
	z, _ := ref.Bindings.Get("Z")
	assert.Equal(t, "fromsplat", z.Value)
	assert.Equal(t, model.BindBySplat, z.Kind)
}

func TestSplatNotFound(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    Add-Content @nothing
    $later = @{ A = 1 }
    Add-Content @later2
}`)
	res := results(t, a, "Invoke-It")
	require.Len(t, res, 2)
	for _, r := range res {
		assert.ErrorIs(t, r.Err, model.ErrSplatSourceNotFound)
	}
}

func TestSplatAssignedAfterUse(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    Add-Content @p
    $p = @{ A = 1 }
}`)
	res := results(t, a, "Invoke-It")
	require.Len(t, res, 1)
	assert.ErrorIs(t, res[0].Err, model.ErrSplatSourceNotFound)
}

func TestSplatNearestPolicy(t *testing.T) {
	src := `function Invoke-It {
    $p = @{ A = 1 }
    Do-It @p
    $P = @{ B = 2 }
    Do-It @p
    $p = Get-Params
    Do-It @p
}`
	a := newAnalyzer(t, nil, nil, src)
	var refs []model.Result
	for _, r := range results(t, a, "Invoke-It") {
		if r.Ref != nil && r.Ref.Child == "Get-Params" {
			continue
		}
		refs = append(refs, r)
	}
	require.Len(t, refs, 3)
	require.NoError(t, refs[0].Err)
	assert.Equal(t, []string{"A"}, refs[0].Ref.Bindings.Keys())
	require.NoError(t, refs[1].Err)
	assert.Equal(t, []string{"B"}, refs[1].Ref.Bindings.Keys())
	assert.ErrorIs(t, refs[2].Err, model.ErrSplatSourceNotFound)
}

func TestSplatStrictPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.SplatPolicy = config.SplatStrict

	a := newAnalyzer(t, cfg, nil, `function Twice {
    $p = @{ A = 1 }
    $p = @{ B = 2 }
    Do-It @p
}
function Once {
    $q = @{ A = 1 }
    Do-It @q
}
function Reassigned {
    $p = Get-Thing
    $p = @{a='1'}
    Do-It @p
}
function OnlyDynamic {
    $p = Get-Thing
    Do-It @p
}
function Member {
    $p = @{ A = 1 }
    $p.B = 2
    Do-It @p
}
function Indexed {
    $p = @{ A = 1 }
    $p['B'] = 2
    Do-It @p
}
function Appended {
    $p = @{ A = 1 }
    $p += @{ B = 2 }
    Do-It @p
}`)
	res := results(t, a, "Twice")
	require.Len(t, res, 1)
	assert.ErrorIs(t, res[0].Err, model.ErrAmbiguousSplatSource)

	ref := single(t, a, "Once")
	assert.Equal(t, []string{"A"}, ref.Bindings.Keys())

	ref = single(t, a, "Reassigned")
	assert.Equal(t, [][2]string{{"a", "1"}}, bindingMap(ref.Bindings))

	for _, fn := range []string{"OnlyDynamic", "Member", "Indexed", "Appended"} {
		t.Run(fn, func(t *testing.T) {
			var splat []model.Result
			for _, r := range results(t, a, fn) {
				if r.Ref == nil || r.Ref.Child == "Do-It" {
					splat = append(splat, r)
				}
			}
			require.Len(t, splat, 1)
			assert.ErrorIs(t, splat[0].Err, model.ErrSplatSourceNotFound)
		})
	}
}

func TestSplatScopeChain(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `$defaults = @{ Level = 'Info' }
function Outer {
    $inner = @{ Source = 'outer' }
    function Inner {
        Write-Log @defaults @inner
    }
    Get-Item | ForEach-Object {
        Write-Log @inner
    }
}`)
	res := results(t, a, "Inner")
	require.Len(t, res, 1)
	require.NoError(t, res[0].Err)
	assert.Equal(t, [][2]string{{"Level", "Info"}, {"Source", "outer"}}, bindingMap(res[0].Ref.Bindings))

	var logs []*model.ResolvedReference
	for _, r := range results(t, a, "Outer") {
		if r.Ref != nil && r.Ref.Child == "Write-Log" {
			logs = append(logs, r.Ref)
		}
	}
	require.Len(t, logs, 2)
	for _, ref := range logs {
		assert.Equal(t, "Outer", ref.Parent, "nested invocations are attributed to the analyzed function")
	}
}

func TestSplatComputedKeyOrTarget(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    $p = @{ ($name) = 1 }
    Do-It @p
    $q = @{ A = 1 }
    $q['B'] = 2
    Do-It @q
    $r = @{ A = 1 }
    $r += @{ B = 2 }
    Do-It @r
}`)
	for _, r := range results(t, a, "Invoke-It") {
		assert.ErrorIs(t, r.Err, model.ErrSplatSourceNotFound, "%v", r.Err)
	}
}

func TestMissingSplatSourceWithoutScope(t *testing.T) {
	r := NewResolver(nil, nil, nil)
	inv := &model.Invocation{Parent: "f", Command: "Do-It", Arguments: []model.RawArgument{model.SplatArgument("p")}}
	_, err := r.Resolve(inv, nil)
	assert.ErrorIs(t, err, model.ErrMissingSplatSource)
	var re *model.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Do-It", re.Command)
}

func TestPipelineSentinel(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    Get-Foo | Do-Something
}`)
	res := results(t, a, "Invoke-It")
	require.Len(t, res, 2)

	require.NoError(t, res[0].Err)
	assert.Equal(t, 0, res[0].Ref.Bindings.Len())

	require.NoError(t, res[1].Err)
	want := []model.ParameterBinding{{Name: model.PipelineSentinel, Kind: model.BindByPipeline}}
	if diff := cmp.Diff(want, res[1].Ref.Bindings.List()); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineWithExplicitArguments(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    Get-Foo | Set-Content -Path 'out.txt'
}`)
	res := results(t, a, "Invoke-It")
	require.Len(t, res, 2)
	assert.Equal(t, [][2]string{{"Path", "out.txt"}}, bindingMap(res[1].Ref.Bindings))
}

func TestPseudoKeysAreFiltered(t *testing.T) {
	cfg := config.Default()
	cfg.PseudoKeys = []string{"-Custom"}
	a := newAnalyzer(t, cfg, nil, `function Invoke-It {
    Where-Object -Property Name -eq 'x' -custom 'y'
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, [][2]string{{"Property", "Name"}}, bindingMap(ref.Bindings))
}

func TestOperatorNamedParametersAreKept(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Update-User {
    Set-ADUser -Identity 'jdoe' -Replace @{title='x'}
    Join-String -Property Name -Split ','
    Get-Thing -Is 'a' -F 'b' -Join 'c'
}`)
	res := results(t, a, "Update-User")
	require.Len(t, res, 3)
	for _, r := range res {
		require.NoError(t, r.Err)
	}
	assert.Equal(t, []string{"Identity", "Replace"}, res[0].Ref.Bindings.Keys())
	assert.Equal(t, [][2]string{{"Property", "Name"}, {"Split", ","}}, bindingMap(res[1].Ref.Bindings))
	assert.Equal(t, []string{"Is", "F", "Join"}, res[2].Ref.Bindings.Keys())
}

func TestDocumentOrderTraversal(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    if (Test-One) {
        Step-Two
    } elseif ($x) {
        Step-Three
    } else {
        Step-Four
    }
    foreach ($i in Get-Items) { Step-Five $i }
    try {
        Step-Six
    } catch {
        Step-Seven
    } finally {
        Step-Eight
    }
    $value = $(Step-Nine)
    & { Step-Ten }
    Get-Item | ForEach-Object { Step-Eleven }
    switch ($x) {
        'a' { Step-Twelve }
    }
    while (Step-Thirteen) { break }
}`)
	var names []string
	for _, r := range results(t, a, "Invoke-It") {
		if r.Ref != nil {
			names = append(names, r.Ref.Child)
		} else {
			var re *model.ResolutionError
			require.ErrorAs(t, r.Err, &re)
			names = append(names, re.Command)
		}
	}
	want := []string{
		"Test-One", "Step-Two", "Step-Three", "Step-Four",
		"Get-Items", "Step-Five",
		"Step-Six", "Step-Seven", "Step-Eight",
		"Step-Nine", "Step-Ten",
		"Get-Item", "ForEach-Object", "Step-Eleven",
		"Step-Twelve", "Step-Thirteen",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("invocation order mismatch (-want +got):\n%s", diff)
	}
}

func TestUnresolvedCommandName(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    & $cmd -Name 'x'
    & (Get-Name)
    Write-Log -Message 'after'
}`)
	res := results(t, a, "Invoke-It")
	require.Len(t, res, 4)

	assert.ErrorIs(t, res[0].Err, model.ErrUnresolvedCommandName)
	var re *model.ResolutionError
	require.ErrorAs(t, res[0].Err, &re)
	assert.Equal(t, model.UnresolvedCommand, re.Command)

	assert.ErrorIs(t, res[1].Err, model.ErrUnresolvedCommandName)
	require.NoError(t, res[2].Err)
	assert.Equal(t, "Get-Name", res[2].Ref.Child)
	require.NoError(t, res[3].Err)
	assert.Equal(t, "Write-Log", res[3].Ref.Child)
}

func TestStaticCallOperator(t *testing.T) {
	a := newAnalyzer(t, nil, nil, `function Invoke-It {
    & 'Write-Log' -Message 'x'
}`)
	ref := single(t, a, "Invoke-It")
	assert.Equal(t, "Write-Log", ref.Child)
}

func TestReferencesErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Builtins = []string{"Invoke-Native"}
	a := newAnalyzer(t, cfg, testCatalog(), "function Known { }")

	_, err := a.References("Unknown-Function")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = a.References("test-path")
	assert.ErrorIs(t, err, model.ErrOpaque)
	kind, _ := model.KindOf(err)
	assert.Equal(t, model.Opaque, kind)

	_, err = a.References("Invoke-Native")
	assert.ErrorIs(t, err, model.ErrOpaque)

	seq, err := a.References("known")
	require.NoError(t, err)
	for range seq {
		t.Fatal("empty body yields nothing")
	}
}

func TestLastDefinitionWins(t *testing.T) {
	a := newAnalyzer(t, nil, nil,
		"function Get-X { Write-Old }",
		"function Get-X { Write-New }\nfunction Get-Y { }",
	)
	ref := single(t, a, "get-x")
	assert.Equal(t, "Write-New", ref.Child)
	assert.Equal(t, []string{"Get-X", "Get-Y"}, a.Functions())

	respelled := newAnalyzer(t, nil, nil,
		"function get-x { }\nfunction Get-Y { }",
		"function GET-X { }",
	)
	assert.Equal(t, []string{"GET-X", "Get-Y"}, respelled.Functions())
}

func TestReferencesIsLazyAndRepeatable(t *testing.T) {
	a := newAnalyzer(t, nil, testCatalog(), `function Invoke-It {
    Write-Log -Message 'a'
    Test-Path 'b'
    Get-Foo | Do-Something
    Add-Content @missing
}`)
	seq, err := a.References("Invoke-It")
	require.NoError(t, err)

	count := 0
	for range seq {
		count++
		break
	}
	assert.Equal(t, 1, count)

	first := results(t, a, "Invoke-It")
	second := results(t, a, "Invoke-It")
	require.Len(t, first, 5)
	assert.Equal(t, first, second)
}

func TestAnalyzeReport(t *testing.T) {
	src := `<#
.SYNOPSIS
    Copies the thing.
.DESCRIPTION
    Copies the thing somewhere else.
#>
function Copy-It {
    Write-Log -Message 'copy'
    Test-Path 'x'
}`
	var buf bytes.Buffer
	logger := log.New(&buf)
	a, err := New(nil, nil, logger, parse(t, "copy.ps1", src))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Phase 1: discovering functions")

	report := a.Analyze(context.Background(), "copy-it")
	assert.Equal(t, "Copy-It", report.Function)
	assert.Equal(t, "copy.ps1", report.File)
	assert.Equal(t, "Copies the thing.", report.Synopsis)
	assert.Equal(t, "Copies the thing somewhere else.", report.Description)
	require.Len(t, report.Results, 2)
	assert.True(t, report.Results[0].OK())
	assert.ErrorIs(t, report.Results[1].Err, model.ErrMissingSignature)
	assert.True(t, report.Failed())

	missing := a.Analyze(context.Background(), "Nope")
	assert.ErrorIs(t, missing.Err, model.ErrNotFound)
	assert.Equal(t, "Nope", missing.Function)
}

func TestAnalyzeCancelled(t *testing.T) {
	a := newAnalyzer(t, nil, nil, "function f { A-One; A-Two }")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := a.Analyze(ctx, "f")
	assert.ErrorIs(t, report.Err, context.Canceled)
	assert.Empty(t, report.Results)
}

func TestNewRejectsUnknownSplatPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.SplatPolicy = "closest"
	_, err := New(cfg, nil, nil)
	assert.Error(t, err)
}
