package analyzer

import (
	"strings"

	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/model"
)

// Classify tags how an argument binds: a splat, a positional value or a
// named parameter.
func Classify(arg model.RawArgument) model.BindingKind {
	switch {
	case arg.Splat != "":
		return model.BindBySplat
	case arg.Name == "":
		return model.BindByPosition
	}
	return model.BindByName
}

// Classifier removes binder pseudo-keys before classification.
type Classifier struct {
	pseudo map[string]struct{}
}

// NewClassifier builds a classifier that excludes config.DefaultPseudoKeys
// plus extra. The defaults cannot be removed.
func NewClassifier(extra ...string) *Classifier {
	c := &Classifier{pseudo: make(map[string]struct{}, len(config.DefaultPseudoKeys)+len(extra))}
	for _, list := range [][]string{config.DefaultPseudoKeys, extra} {
		for _, k := range list {
			k = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(k), "-"))
			if k != "" {
				c.pseudo[k] = struct{}{}
			}
		}
	}
	return c
}

// IsPseudoKey reports whether -name is an operator marker rather than a
// parameter.
func (c *Classifier) IsPseudoKey(name string) bool {
	_, ok := c.pseudo[strings.ToLower(name)]
	return ok
}

// Filter returns args without pseudo-key arguments. The operand of a
// pseudo-key travels with it in the named argument and is dropped too.
// Positional ordinals are left as they are.
func (c *Classifier) Filter(args []model.RawArgument) []model.RawArgument {
	out := make([]model.RawArgument, 0, len(args))
	for _, arg := range args {
		if Classify(arg) == model.BindByName && c.IsPseudoKey(arg.Name) {
			continue
		}
		out = append(out, arg)
	}
	return out
}
