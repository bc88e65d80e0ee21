package signature

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/Zachacious/go-mockspec/internal/model"
	"gopkg.in/yaml.v3"
)

// Catalog is an in-memory set of signatures indexed by name and alias.
type Catalog struct {
	source   string
	commands []*model.CommandSignature
	byName   map[string]*model.CommandSignature
}

type catalogFile struct {
	Commands []*model.CommandSignature `yaml:"commands"`
}

// NewCatalog indexes sigs. Later signatures replace earlier ones with the
// same name or alias.
func NewCatalog(source string, sigs ...*model.CommandSignature) *Catalog {
	c := &Catalog{source: source, byName: make(map[string]*model.CommandSignature)}
	for _, sig := range sigs {
		c.Add(sig)
	}
	return c
}

// Add indexes one signature.
func (c *Catalog) Add(sig *model.CommandSignature) {
	if sig.Source == "" {
		sig.Source = c.source
	}
	c.commands = append(c.commands, sig)
	c.byName[strings.ToLower(sig.Name)] = sig
	for _, a := range sig.Aliases {
		c.byName[strings.ToLower(a)] = sig
	}
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signature catalog: %w", err)
	}
	return ParseCatalog(data, path)
}

// ParseCatalog decodes a YAML catalog of the form
//
//	commands:
//	  - name: Test-Path
//	    aliases: [tp]
//	    parameterSets:
//	      - name: Path
//	        parameters:
//	          - {name: Path, position: 0, mandatory: true}
func ParseCatalog(data []byte, source string) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing signature catalog %s: %w", source, err)
	}
	for i, sig := range file.Commands {
		if sig == nil || strings.TrimSpace(sig.Name) == "" {
			return nil, fmt.Errorf("signature catalog %s: command %d has no name", source, i)
		}
		for _, set := range sig.ParameterSets {
			for _, p := range set.Parameters {
				if p.Name == "" {
					return nil, fmt.Errorf("signature catalog %s: command %s has a parameter without a name", source, sig.Name)
				}
			}
		}
	}
	return NewCatalog(source, file.Commands...), nil
}

// Lookup implements Provider.
func (c *Catalog) Lookup(name string) (*model.CommandSignature, error) {
	if sig, ok := c.byName[strings.ToLower(name)]; ok {
		return sig, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnavailable)
}

// Names returns the canonical command names in the catalog, sorted.
func (c *Catalog) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, sig := range c.byName {
		if !seen[sig.Name] {
			seen[sig.Name] = true
			names = append(names, sig.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Len returns the number of indexed commands.
func (c *Catalog) Len() int { return len(c.Names()) }

//go:embed builtin.yaml
var builtinYAML []byte

var builtins = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(builtinYAML, "builtin")
})

// Builtins returns the catalog of common host commands shipped with mockspec.
func Builtins() (*Catalog, error) {
	return builtins()
}
