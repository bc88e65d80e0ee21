package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the project configuration file looked up in the project root.
const FileName = ".mockspec.yaml"

// Splat policies decide which assignment supplies a splatted variable.
const (
	SplatNearest = "nearest"
	SplatStrict  = "strict"
)

// Batch policies decide what happens when one function of a batch fails.
const (
	BatchCollect = "collect"
	BatchAbort   = "abort"
)

// Output formats.
const (
	FormatPester = "pester"
	FormatYAML   = "yaml"
)

// DefaultPseudoKeys are the comparison and pattern-match operator markers
// the binder reports as parameters. Configuration can add to the set, not
// remove from it.
var DefaultPseudoKeys = []string{
	"eq", "ieq", "ceq", "ne", "ine", "cne",
	"gt", "igt", "cgt", "ge", "ige", "cge",
	"lt", "ilt", "clt", "le", "ile", "cle",
	"like", "ilike", "clike", "notlike", "inotlike", "cnotlike",
	"match", "imatch", "cmatch", "notmatch", "inotmatch", "cnotmatch",
	"contains", "icontains", "ccontains", "notcontains", "inotcontains", "cnotcontains",
	"in", "iin", "cin", "notin", "inotin", "cnotin",
}

// Output holds rendering options.
type Output struct {
	Format string `yaml:"format"`
	// Describe overrides the Describe block title; the function synopsis or
	// name is used when empty.
	Describe string `yaml:"describe"`
}

// Config is the project configuration.
type Config struct {
	// Include and Exclude are doublestar globs relative to the project root.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
	// Signatures lists YAML signature catalogs.
	Signatures []string `yaml:"signatures"`
	// OpenAPI lists OpenAPI documents of generated cmdlet modules.
	OpenAPI []string `yaml:"openapi"`
	// Builtins are extra command names treated as opaque host commands.
	Builtins []string `yaml:"builtins"`
	// PseudoKeys extends DefaultPseudoKeys.
	PseudoKeys  []string `yaml:"pseudoKeys"`
	SplatPolicy string   `yaml:"splatPolicy"`
	BatchPolicy string   `yaml:"batchPolicy"`
	Workers     int      `yaml:"workers"`
	Output      Output   `yaml:"output"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Include:     []string{"**/*.ps1", "**/*.psm1"},
		Exclude:     []string{"**/*.Tests.ps1"},
		SplatPolicy: SplatNearest,
		BatchPolicy: BatchCollect,
		Workers:     4,
		Output:      Output{Format: FormatPester},
	}
}

// Load builds the defaults and overlays .mockspec.yaml from projectPath when
// it exists.
func Load(projectPath string) (*Config, error) {
	cfg := Default()

	configPath := filepath.Join(projectPath, FileName)
	data, err := os.ReadFile(configPath)
	if err == nil {
		if unmarshalErr := yaml.Unmarshal(data, cfg); unmarshalErr != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, unmarshalErr)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.resolvePaths(projectPath)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configPath, err)
	}
	return cfg, nil
}

// resolvePaths makes catalog and document paths relative to the project root.
func (c *Config) resolvePaths(root string) {
	for _, list := range []*[]string{&c.Signatures, &c.OpenAPI} {
		for i, p := range *list {
			if !filepath.IsAbs(p) {
				(*list)[i] = filepath.Join(root, p)
			}
		}
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.SplatPolicy {
	case SplatNearest, SplatStrict:
	default:
		return fmt.Errorf("unknown splat policy %q (want %s or %s)", c.SplatPolicy, SplatNearest, SplatStrict)
	}
	switch c.BatchPolicy {
	case BatchCollect, BatchAbort:
	default:
		return fmt.Errorf("unknown batch policy %q (want %s or %s)", c.BatchPolicy, BatchCollect, BatchAbort)
	}
	switch c.Output.Format {
	case FormatPester, FormatYAML:
	default:
		return fmt.Errorf("unknown output format %q (want %s or %s)", c.Output.Format, FormatPester, FormatYAML)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// AllPseudoKeys returns the defaults plus the configured extensions,
// lower-cased and without a leading dash.
func (c *Config) AllPseudoKeys() []string {
	keys := slices.Clone(DefaultPseudoKeys)
	for _, k := range c.PseudoKeys {
		k = strings.ToLower(strings.TrimPrefix(k, "-"))
		if k != "" && !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}
