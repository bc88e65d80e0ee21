// Package mockspec generates Pester mock scaffolding for PowerShell functions.
//
// A Generator discovers the scripts of a project, resolves the parameter
// bindings of every command each function invokes and renders one Describe
// block per function with a Mock and a Should -Invoke assertion per distinct
// call:
//
//	err := mockspec.New("./scripts").
//		WithSignatures("commands.yaml").
//		Generate(ctx, os.Stdout, "Backup-Logs")
package mockspec

import (
	"context"
	"fmt"
	"io"

	"github.com/Zachacious/go-mockspec/internal/analyzer"
	"github.com/Zachacious/go-mockspec/internal/assembler"
	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/psast"
	"github.com/Zachacious/go-mockspec/internal/signature"
	"github.com/charmbracelet/log"
)

// Generator builds mock scaffolding for one project. The With methods
// override values from the project's .mockspec.yaml.
type Generator struct {
	root   string
	cfg    *config.Config
	cfgErr error
	logger *log.Logger
	suite  *assembler.Suite
}

// New returns a generator for the project at projectPath. The project
// configuration is loaded immediately; a bad file is reported by the first
// call that needs it.
func New(projectPath string) *Generator {
	cfg, err := config.Load(projectPath)
	return &Generator{root: projectPath, cfg: cfg, cfgErr: err}
}

// WithConfig replaces the loaded configuration.
func (g *Generator) WithConfig(cfg *config.Config) *Generator {
	g.cfg, g.cfgErr = cfg, nil
	return g
}

// WithSignatures adds YAML signature catalogs.
func (g *Generator) WithSignatures(paths ...string) *Generator {
	if g.cfg != nil {
		g.cfg.Signatures = append(g.cfg.Signatures, paths...)
	}
	return g
}

// WithOpenAPI adds OpenAPI documents describing generated cmdlets.
func (g *Generator) WithOpenAPI(paths ...string) *Generator {
	if g.cfg != nil {
		g.cfg.OpenAPI = append(g.cfg.OpenAPI, paths...)
	}
	return g
}

// WithFormat sets the output format, pester or yaml.
func (g *Generator) WithFormat(format string) *Generator {
	if g.cfg != nil && format != "" {
		g.cfg.Output.Format = format
	}
	return g
}

// WithBatchPolicy sets how a failing function affects the rest of the run.
func (g *Generator) WithBatchPolicy(policy string) *Generator {
	if g.cfg != nil && policy != "" {
		g.cfg.BatchPolicy = policy
	}
	return g
}

// WithSplatPolicy sets which assignment feeds a splatted variable.
func (g *Generator) WithSplatPolicy(policy string) *Generator {
	if g.cfg != nil && policy != "" {
		g.cfg.SplatPolicy = policy
	}
	return g
}

// WithLogger sets the logger for analysis progress. Nothing is logged by
// default.
func (g *Generator) WithLogger(logger *log.Logger) *Generator {
	g.logger = logger
	return g
}

// Suite returns what the last Generate produced, or nil.
func (g *Generator) Suite() *assembler.Suite {
	return g.suite
}

// Functions lists the functions defined in the project in load order.
func (g *Generator) Functions(ctx context.Context) ([]string, error) {
	a, err := g.analyzer(ctx)
	if err != nil {
		return nil, err
	}
	return a.Functions(), nil
}

// Generate analyzes functions, or every function of the project when none
// are named, and writes the scaffolding to w. Unresolved invocations do not
// fail the run under the collect policy; they are rendered as comments and
// available from Suite. Under the abort policy Suite holds the functions
// finished before the failure.
func (g *Generator) Generate(ctx context.Context, w io.Writer, functions ...string) error {
	a, err := g.analyzer(ctx)
	if err != nil {
		return err
	}
	policy, err := analyzer.ParseBatchPolicy(g.cfg.BatchPolicy)
	if err != nil {
		return err
	}
	if len(functions) == 0 {
		functions = a.Functions()
	}

	reports, err := a.Batch(ctx, functions, policy, g.cfg.Workers)
	g.suite = assembler.Build(reports)
	if err != nil {
		return err
	}
	return assembler.Render(w, g.suite, assembler.Options{
		Format:   g.cfg.Output.Format,
		Describe: g.cfg.Output.Describe,
	})
}

func (g *Generator) analyzer(ctx context.Context) (*analyzer.Analyzer, error) {
	if g.cfgErr != nil {
		return nil, fmt.Errorf("loading configuration: %w", g.cfgErr)
	}
	if g.cfg == nil {
		g.cfg = config.Default()
	}
	if err := g.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	files, err := discover(g.root, g.cfg.Include, g.cfg.Exclude)
	if err != nil {
		return nil, err
	}
	scripts, err := load(g.root, files)
	if err != nil {
		return nil, err
	}
	provider, err := g.provider(scripts)
	if err != nil {
		return nil, err
	}
	return analyzer.New(g.cfg, provider, g.logger, scripts...)
}

// provider chains the project's own functions, then catalogs, then OpenAPI
// documents, then the built-in host commands, behind one cache.
func (g *Generator) provider(scripts []*psast.File) (signature.Provider, error) {
	chain := signature.Chain{signature.FromScripts(scripts...)}
	for _, path := range g.cfg.Signatures {
		c, err := signature.LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
	}
	for _, path := range g.cfg.OpenAPI {
		c, err := signature.LoadOpenAPI(path)
		if err != nil {
			return nil, err
		}
		chain = append(chain, c)
	}
	builtins, err := signature.Builtins()
	if err != nil {
		return nil, err
	}
	chain = append(chain, builtins)
	return signature.NewCache(chain), nil
}
