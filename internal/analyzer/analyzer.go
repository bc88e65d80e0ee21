package analyzer

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/Zachacious/go-mockspec/internal/psast"
	"github.com/Zachacious/go-mockspec/internal/signature"
	"github.com/charmbracelet/log"
)

// Analyzer finds the command invocations of script functions and resolves
// their parameter bindings. It is immutable after New and safe for
// concurrent use.
type Analyzer struct {
	universe *Universe
	provider signature.Provider
	builtins map[string]struct{}
	resolver *Resolver
	logger   *log.Logger
}

// New creates an Analyzer over the parsed files. Files are given in load
// order: a function defined in several files resolves to the last one.
func New(cfg *config.Config, provider signature.Provider, logger *log.Logger, files ...*psast.File) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if provider == nil {
		provider = signature.None{}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	splats, err := NewSplatResolver(cfg.SplatPolicy)
	if err != nil {
		return nil, err
	}

	logger.Info("Phase 1: discovering functions", "files", len(files))
	universe := discoverUniverse(files)
	logger.Info("Discovered functions", "count", len(universe.Functions))

	builtins := make(map[string]struct{}, len(cfg.Builtins))
	for _, b := range cfg.Builtins {
		builtins[strings.ToLower(b)] = struct{}{}
	}
	return &Analyzer{
		universe: universe,
		provider: provider,
		builtins: builtins,
		resolver: NewResolver(provider, NewClassifier(cfg.PseudoKeys...), splats),
		logger:   logger,
	}, nil
}

// Functions returns the names of the analyzable functions in load order.
func (a *Analyzer) Functions() []string {
	return a.universe.Names()
}

// Universe returns the function definitions known to the analyzer.
func (a *Analyzer) Universe() *Universe {
	return a.universe
}

// References returns the invocations in the body of the named function, one
// Result per invocation in document order. The sequence is lazy: nothing is
// resolved until it is ranged over, and every range walks the body afresh.
//
// The error is NotFound when no script defines the function and Opaque when
// it is a command with no inspectable body.
func (a *Analyzer) References(name string) (iter.Seq[model.Result], error) {
	info, ok := a.universe.Lookup(name)
	if !ok {
		return nil, a.missing(name)
	}
	return func(yield func(model.Result) bool) {
		w := &walker{
			resolver: a.resolver,
			parent:   info.Def.Name,
			file:     info.File.Name,
			yield:    yield,
		}
		if info.Def.Body != nil {
			w.walk(info.Def.Body, info.scope())
		}
	}, nil
}

// missing classifies a name that no script defines.
func (a *Analyzer) missing(name string) error {
	if _, ok := a.builtins[strings.ToLower(name)]; ok {
		return &model.ResolutionError{Kind: model.Opaque, Function: name, Detail: "configured builtin"}
	}
	sig, err := a.provider.Lookup(name)
	switch {
	case err == nil && sig != nil:
		return &model.ResolutionError{Kind: model.Opaque, Function: name, Detail: "signature from " + sig.Source}
	case err != nil && !errors.Is(err, signature.ErrUnavailable):
		return &model.ResolutionError{Kind: model.NotFound, Function: name, Err: err}
	}
	return &model.ResolutionError{Kind: model.NotFound, Function: name}
}

// Analyze resolves every invocation of the named function into a report.
// Cancellation of ctx stops the walk and is recorded as the report error.
func (a *Analyzer) Analyze(ctx context.Context, name string) *model.FunctionReport {
	report := &model.FunctionReport{Function: name}
	seq, err := a.References(name)
	if err != nil {
		report.Err = err
		a.logger.Warn("Skipping function", "function", name, "err", err)
		return report
	}

	info, _ := a.universe.Lookup(name)
	report.Function = info.Def.Name
	report.File = info.File.Name
	if help := parseHelp(info.Def.Help); help != nil {
		report.Synopsis = help.Synopsis
		report.Description = help.Description
	}

	a.logger.Debug("Analyzing function", "function", report.Function, "file", report.File)
	for res := range seq {
		if err := ctx.Err(); err != nil {
			report.Err = err
			break
		}
		if res.Err != nil {
			a.logger.Debug("Unresolved invocation", "err", res.Err)
		}
		report.Results = append(report.Results, res)
	}
	a.logger.Debug("Analyzed function", "function", report.Function, "invocations", len(report.Results))
	return report
}

// walker visits a function body in document order, yielding one result per
// command invocation.
type walker struct {
	resolver *Resolver
	parent   string
	file     string
	yield    func(model.Result) bool
	stopped  bool
}

// walk visits n within scope. It returns false once the consumer stops.
func (w *walker) walk(n psast.Node, scope *Scope) bool {
	if w.stopped {
		return false
	}
	switch n := n.(type) {
	case *psast.Pipeline:
		for i, el := range n.Elements {
			if cmd, ok := el.(*psast.Command); ok {
				if !w.command(cmd, i > 0, scope) {
					return false
				}
				continue
			}
			if !w.walk(el, scope) {
				return false
			}
		}
		return true
	case *psast.Command:
		return w.command(n, false, scope)
	case *psast.FunctionDef:
		if n.Params != nil && !w.walk(n.Params, scope) {
			return false
		}
		if n.Body == nil {
			return true
		}
		return w.walk(n.Body, newScope(scope, n.Body, n))
	case *psast.ScriptBlockExpr:
		if n.Body == nil {
			return true
		}
		return w.walk(n.Body, newScope(scope, n.Body, nil))
	}
	for _, child := range psast.Children(n) {
		if !w.walk(child, scope) {
			return false
		}
	}
	return true
}

// command yields the invocation of cmd, then walks its arguments for nested
// invocations. A call operator applied to a script block literal is not an
// invocation of a named command; only the block's interior is walked.
func (w *walker) command(cmd *psast.Command, fromPipeline bool, scope *Scope) bool {
	if _, ok := cmd.Name.(*psast.ScriptBlockExpr); !ok {
		inv := w.invocation(cmd, fromPipeline)
		ref, err := w.resolver.Resolve(inv, scope)
		if !w.yield(model.Result{Ref: ref, Err: err}) {
			w.stopped = true
			return false
		}
	}
	for _, child := range psast.Children(cmd) {
		if !w.walk(child, scope) {
			return false
		}
	}
	return true
}

// invocation captures the call site of cmd.
func (w *walker) invocation(cmd *psast.Command, fromPipeline bool) *model.Invocation {
	inv := &model.Invocation{
		Parent:       w.parent,
		Command:      model.UnresolvedCommand,
		FromPipeline: fromPipeline,
		Pos:          toPosition(w.file, cmd.Pos()),
		Text:         cmd.Source(),
	}
	if name, ok := psast.StaticValue(cmd.Name); ok && name != "" {
		inv.Command = name
	}

	ordinal := 0
	for _, el := range cmd.Elements {
		switch el := el.(type) {
		case *psast.CommandParameter:
			value := "$true"
			if el.Arg != nil {
				value = exprText(el.Arg)
			}
			inv.Arguments = append(inv.Arguments, model.NamedArgument(el.Name, value))
		case *psast.CommandArgument:
			if v, ok := el.Value.(*psast.VariableRef); ok && v.Splatted {
				inv.Arguments = append(inv.Arguments, model.SplatArgument(v.Name))
				continue
			}
			inv.Arguments = append(inv.Arguments, model.PositionalArgument(ordinal, exprText(el.Value)))
			ordinal++
		}
	}
	return inv
}
