package analyzer

import (
	"fmt"

	"github.com/Zachacious/go-mockspec/internal/config"
	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/Zachacious/go-mockspec/internal/psast"
)

// SplatResolver finds the hashtable literal a splatted variable holds.
type SplatResolver struct {
	policy string
}

// NewSplatResolver returns a resolver for config.SplatNearest or
// config.SplatStrict. An empty policy means nearest.
func NewSplatResolver(policy string) (*SplatResolver, error) {
	switch policy {
	case "":
		policy = config.SplatNearest
	case config.SplatNearest, config.SplatStrict:
	default:
		return nil, fmt.Errorf("unknown splat policy %q", policy)
	}
	return &SplatResolver{policy: policy}, nil
}

// Policy returns the tie-break policy in use.
func (r *SplatResolver) Policy() string { return r.policy }

// Resolve returns the source of @name for an invocation at before.
//
// Under the nearest policy the last assignment to name that ends before the
// invocation is taken from the innermost scope that has one. Past a function
// boundary, outer scopes contribute their lexically last assignment. When the
// selected assignment is not a plain hashtable literal the source is
// reported as not found.
//
// Under the strict policy only assignments of a hashtable literal count and
// more than one in the chain is ambiguous. Plain reassignments of another
// value are ignored; an in-place change such as $p.b = 1 or $p += @{} fails
// the lookup.
func (r *SplatResolver) Resolve(name string, scope *Scope, before model.Position) (*model.SplatSource, error) {
	if scope == nil {
		return nil, model.NewError(model.MissingSplatSource, nil, "@%s", name)
	}
	if r.policy == config.SplatStrict {
		return r.resolveStrict(name, scope, before.File)
	}

	cutoff := true
	for s := scope; s != nil; s = s.Parent {
		var nearest *psast.Assignment
		for _, as := range s.Assignments(name) {
			if cutoff && !precedes(as, before) {
				continue
			}
			nearest = as
		}
		if nearest != nil {
			return sourceOf(name, nearest, before.File)
		}
		if s.boundary() {
			cutoff = false
		}
	}
	return nil, model.NewError(model.SplatSourceNotFound, nil, "no assignment to $%s", name)
}

func (r *SplatResolver) resolveStrict(name string, scope *Scope, file string) (*model.SplatSource, error) {
	var found []*psast.Assignment
	for s := scope; s != nil; s = s.Parent {
		for _, as := range s.Assignments(name) {
			if _, direct := targetVariable(as.Target); !direct || as.Op != "=" {
				return nil, model.NewError(model.SplatSourceNotFound, nil,
					"$%s is modified in place at %s", name, as.Pos())
			}
			if _, ok := hashValue(as.Value); ok {
				found = append(found, as)
			}
		}
	}
	switch len(found) {
	case 0:
		return nil, model.NewError(model.SplatSourceNotFound, nil, "no hashtable literal assigned to $%s", name)
	case 1:
		return sourceOf(name, found[0], file)
	}
	return nil, model.NewError(model.AmbiguousSplatSource, nil, "$%s is assigned %d hashtable literals", name, len(found))
}

// sourceOf converts a qualifying assignment into a splat source.
func sourceOf(name string, as *psast.Assignment, file string) (*model.SplatSource, error) {
	_, direct := targetVariable(as.Target)
	hash, ok := hashValue(as.Value)
	if !direct || as.Op != "=" || !ok {
		return nil, model.NewError(model.SplatSourceNotFound, nil,
			"$%s is assigned a computed value at %s", name, as.Pos())
	}

	src := &model.SplatSource{Variable: name, Pos: toPosition(file, as.Pos())}
	for _, entry := range hash.Entries {
		key, ok := psast.StaticValue(entry.Key)
		if !ok {
			return nil, model.NewError(model.SplatSourceNotFound, nil,
				"$%s has a computed key %s at %s", name, entry.Key.Source(), entry.Pos())
		}
		src.Entries = append(src.Entries, model.SplatEntry{Key: key, Value: statementText(entry.Value)})
	}
	return src, nil
}
