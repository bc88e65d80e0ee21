package analyzer

import (
	"errors"

	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/Zachacious/go-mockspec/internal/psast"
	"github.com/Zachacious/go-mockspec/internal/signature"
)

// Resolver turns the raw arguments of an invocation into parameter bindings.
type Resolver struct {
	provider   signature.Provider
	classifier *Classifier
	splats     *SplatResolver
}

// NewResolver builds a resolver. A nil provider knows no commands.
func NewResolver(provider signature.Provider, classifier *Classifier, splats *SplatResolver) *Resolver {
	if provider == nil {
		provider = signature.None{}
	}
	if classifier == nil {
		classifier = NewClassifier()
	}
	if splats == nil {
		splats = &SplatResolver{}
	}
	return &Resolver{provider: provider, classifier: classifier, splats: splats}
}

// Resolve binds every argument of inv. Named and positional bindings come
// first in the order they are written, then the entries of each splat in
// source order. scope may be nil, in which case any splat fails with
// MissingSplatSource.
//
// The first failing argument fails the whole invocation.
func (r *Resolver) Resolve(inv *model.Invocation, scope *Scope) (*model.ResolvedReference, error) {
	if inv.Command == model.UnresolvedCommand {
		return nil, model.NewError(model.UnresolvedCommandName, inv, "%s", inv.Text)
	}

	args := r.classifier.Filter(inv.Arguments)
	ref := &model.ResolvedReference{
		Parent:   inv.Parent,
		Child:    inv.Command,
		Pos:      inv.Pos,
		Text:     inv.Text,
		Bindings: model.NewBindings(),
	}

	if inv.FromPipeline && len(args) == 0 {
		ref.Bindings.Set(model.ParameterBinding{Name: model.PipelineSentinel, Kind: model.BindByPipeline})
		return ref, nil
	}

	var sig *model.CommandSignature
	var splats []model.RawArgument
	for _, arg := range args {
		switch Classify(arg) {
		case model.BindByName:
			ref.Bindings.Set(model.ParameterBinding{
				Name:  psast.Unquote(arg.Name),
				Value: psast.Unquote(arg.Value),
				Kind:  model.BindByName,
			})
		case model.BindByPosition:
			if sig == nil {
				var err error
				if sig, err = r.signature(inv, arg); err != nil {
					return nil, err
				}
			}
			param, ok := sig.ParameterAt(arg.Ordinal)
			if !ok {
				return nil, model.NewError(model.UnknownPosition, inv, "%s at position %d", arg.Value, arg.Ordinal)
			}
			ref.Bindings.Set(model.ParameterBinding{
				Name:  param.Name,
				Value: psast.Unquote(arg.Value),
				Kind:  model.BindByPosition,
			})
		case model.BindBySplat:
			splats = append(splats, arg)
		}
	}

	for _, arg := range splats {
		src, err := r.splats.Resolve(arg.Splat, scope, inv.Pos)
		if err != nil {
			return nil, locate(err, inv)
		}
		for _, entry := range src.Entries {
			ref.Bindings.Set(model.ParameterBinding{Name: entry.Key, Value: entry.Value, Kind: model.BindBySplat})
		}
	}
	return ref, nil
}

// signature looks up the invoked command. Unavailability and provider
// failures are both reported as MissingSignature, the latter with its cause.
func (r *Resolver) signature(inv *model.Invocation, arg model.RawArgument) (*model.CommandSignature, error) {
	sig, err := r.provider.Lookup(inv.Command)
	if err == nil && sig != nil {
		return sig, nil
	}
	e := model.NewError(model.MissingSignature, inv, "%s at position %d", arg.Value, arg.Ordinal)
	if err != nil && !errors.Is(err, signature.ErrUnavailable) {
		e.Err = err
	}
	return nil, e
}

// locate fills in where a resolution error happened.
func locate(err error, inv *model.Invocation) error {
	var re *model.ResolutionError
	if !errors.As(err, &re) {
		return err
	}
	if re.Function == "" {
		re.Function = inv.Parent
	}
	if re.Command == "" {
		re.Command = inv.Command
	}
	if re.Pos == (model.Position{}) {
		re.Pos = inv.Pos
	}
	return re
}
