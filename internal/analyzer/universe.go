package analyzer

import (
	"slices"
	"strings"

	"github.com/Zachacious/go-mockspec/internal/psast"
)

// FunctionInfo is one function definition found while loading scripts.
type FunctionInfo struct {
	Def  *psast.FunctionDef
	File *psast.File
	// frames are the blocks that enclose the definition, outermost first:
	// the file body, enclosing function bodies and script blocks.
	frames []frame
}

// frame is one scope-forming block. fn is set for function bodies.
type frame struct {
	block *psast.ScriptBlock
	fn    *psast.FunctionDef
}

// Universe maps lower-cased function names to their definitions.
type Universe struct {
	Functions map[string]*FunctionInfo
	// order lists each name once, at the position of its first definition;
	// Names spells it as the last definition does.
	order []string
}

// discoverUniverse is Phase 1 of the analysis. It records every function
// definition in files, nested ones included. A later definition of a name
// replaces an earlier one.
func discoverUniverse(files []*psast.File) *Universe {
	u := &Universe{Functions: make(map[string]*FunctionInfo)}
	for _, f := range files {
		if f == nil || f.Body == nil {
			continue
		}
		root := []frame{{block: f.Body}}
		u.collect(f, f.Body, root)
	}
	return u
}

// collect walks n, registering function definitions with the frames that
// enclose them.
func (u *Universe) collect(file *psast.File, n psast.Node, frames []frame) {
	for _, child := range psast.Children(n) {
		switch c := child.(type) {
		case *psast.FunctionDef:
			u.register(file, c, frames)
			if c.Params != nil {
				u.collect(file, c.Params, frames)
			}
			if c.Body != nil {
				u.collect(file, c.Body, append(slices.Clip(frames), frame{block: c.Body, fn: c}))
			}
		case *psast.ScriptBlockExpr:
			if c.Body != nil {
				u.collect(file, c.Body, append(slices.Clip(frames), frame{block: c.Body}))
			}
		default:
			u.collect(file, child, frames)
		}
	}
}

func (u *Universe) register(file *psast.File, fn *psast.FunctionDef, frames []frame) {
	key := strings.ToLower(fn.Name)
	if _, exists := u.Functions[key]; !exists {
		u.order = append(u.order, key)
	}
	u.Functions[key] = &FunctionInfo{Def: fn, File: file, frames: slices.Clone(frames)}
}

// Lookup returns the effective definition of name.
func (u *Universe) Lookup(name string) (*FunctionInfo, bool) {
	info, ok := u.Functions[strings.ToLower(name)]
	return info, ok
}

// Names returns the defined function names in load order, spelled as in the
// effective definition.
func (u *Universe) Names() []string {
	names := make([]string, 0, len(u.order))
	for _, key := range u.order {
		names = append(names, u.Functions[key].Def.Name)
	}
	return names
}

// scope builds the scope chain of the function body: its own scope over the
// scopes of the enclosing blocks.
func (info *FunctionInfo) scope() *Scope {
	var parent *Scope
	for _, fr := range info.frames {
		parent = newScope(parent, fr.block, fr.fn)
	}
	return newScope(parent, info.Def.Body, info.Def)
}
