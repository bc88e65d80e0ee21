package model

import (
	"iter"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bindings is an insertion-ordered map of parameter bindings with unique,
// case-insensitive keys. Setting an existing key keeps its original slot and
// spelling and replaces the value.
type Bindings struct {
	entries []ParameterBinding
	index   map[string]int
}

// NewBindings returns an empty Bindings.
func NewBindings() *Bindings {
	return &Bindings{index: make(map[string]int)}
}

// Set adds or replaces a binding.
func (b *Bindings) Set(binding ParameterBinding) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	key := strings.ToLower(binding.Name)
	if i, ok := b.index[key]; ok {
		binding.Name = b.entries[i].Name
		b.entries[i] = binding
		return
	}
	b.index[key] = len(b.entries)
	b.entries = append(b.entries, binding)
}

// Get returns the binding for name.
func (b *Bindings) Get(name string) (ParameterBinding, bool) {
	if b == nil {
		return ParameterBinding{}, false
	}
	i, ok := b.index[strings.ToLower(name)]
	if !ok {
		return ParameterBinding{}, false
	}
	return b.entries[i], true
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Keys returns the binding names in order.
func (b *Bindings) Keys() []string {
	if b == nil {
		return nil
	}
	keys := make([]string, len(b.entries))
	for i, e := range b.entries {
		keys[i] = e.Name
	}
	return keys
}

// List returns a copy of the bindings in order.
func (b *Bindings) List() []ParameterBinding {
	if b == nil {
		return nil
	}
	return append([]ParameterBinding(nil), b.entries...)
}

// All iterates the bindings in order.
func (b *Bindings) All() iter.Seq2[string, ParameterBinding] {
	return func(yield func(string, ParameterBinding) bool) {
		if b == nil {
			return
		}
		for _, e := range b.entries {
			if !yield(e.Name, e) {
				return
			}
		}
	}
}

// Equal reports whether both hold the same bindings in the same order.
func (b *Bindings) Equal(o *Bindings) bool {
	if b.Len() != o.Len() {
		return false
	}
	for i := range b.Len() {
		if b.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

// MarshalYAML encodes the bindings as a mapping that preserves order.
func (b *Bindings) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for name, binding := range b.All() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: binding.Value},
		)
	}
	return node, nil
}
