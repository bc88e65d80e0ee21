// Package signature supplies command parameter metadata to the binding
// resolver: which parameters a command declares, their aliases and the
// positions they bind to. Metadata comes from the analyzed scripts
// themselves, from YAML catalogs, from OpenAPI documents of generated cmdlet
// modules and from a built-in catalog of common host commands.
package signature

import (
	"errors"
	"fmt"

	"github.com/Zachacious/go-mockspec/internal/model"
)

// ErrUnavailable is returned when a provider has no signature for a command.
var ErrUnavailable = errors.New("signature unavailable")

// Provider looks up command signatures by name. Lookups are case-insensitive.
type Provider interface {
	Lookup(name string) (*model.CommandSignature, error)
}

// Chain consults providers in order and returns the first signature found.
// A provider error other than ErrUnavailable stops the search.
type Chain []Provider

// Lookup implements Provider.
func (c Chain) Lookup(name string) (*model.CommandSignature, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		sig, err := p.Lookup(name)
		if err == nil {
			return sig, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnavailable)
}

// None is a provider that knows no commands.
type None struct{}

// Lookup implements Provider.
func (None) Lookup(name string) (*model.CommandSignature, error) {
	return nil, fmt.Errorf("%s: %w", name, ErrUnavailable)
}
