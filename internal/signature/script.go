package signature

import (
	"strconv"
	"strings"

	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/Zachacious/go-mockspec/internal/psast"
)

const allParameterSets = "__AllParameterSets"

// FromScripts builds a catalog from the functions defined in files. When a
// name is defined more than once the last definition wins.
func FromScripts(files ...*psast.File) *Catalog {
	c := NewCatalog("script")
	for _, f := range files {
		for _, fn := range f.Functions() {
			c.Add(ScriptSignature(fn))
		}
	}
	return c
}

// ScriptSignature derives a signature from a function's parameter
// declaration.
//
// An explicit Position=n wins. When no parameter declares a position and
// PositionalBinding is not disabled through CmdletBinding, parameters become
// positional in declaration order. Switch parameters are never positional.
func ScriptSignature(fn *psast.FunctionDef) *model.CommandSignature {
	sig := &model.CommandSignature{Name: fn.Name, Source: "script"}
	block := fn.Parameters()
	if block == nil {
		sig.ParameterSets = []model.ParameterSet{{Name: allParameterSets}}
		return sig
	}

	positional := true
	for _, a := range block.Attributes {
		if strings.EqualFold(a.Name, "CmdletBinding") {
			if v, ok := a.Arg("PositionalBinding"); ok && isFalse(v) {
				positional = false
			}
		}
	}
	explicit := false
	for _, p := range block.Parameters {
		if _, ok := explicitPosition(p); ok {
			explicit = true
			break
		}
	}

	type declared struct {
		desc model.ParameterDescriptor
		sets []string
	}
	var params []declared
	var setNames []string
	next := 0
	for _, p := range block.Parameters {
		d := model.ParameterDescriptor{Name: p.Name, Switch: isSwitch(p)}
		if pos, ok := explicitPosition(p); ok {
			d.Position = &pos
		} else if !explicit && positional && !d.Switch {
			pos := next
			d.Position = &pos
			next++
		}
		var sets []string
		for _, a := range p.Attributes {
			switch {
			case strings.EqualFold(a.Name, "Parameter"):
				if v, ok := a.Arg("Mandatory"); ok && !isFalse(v) {
					d.Mandatory = true
				}
				if v, ok := a.Arg("ParameterSetName"); ok {
					name := psast.Unquote(v)
					sets = append(sets, name)
					if !containsFold(setNames, name) {
						setNames = append(setNames, name)
					}
				}
			case strings.EqualFold(a.Name, "Alias"):
				for _, alias := range a.Positional {
					d.Aliases = append(d.Aliases, psast.Unquote(alias))
				}
			}
		}
		params = append(params, declared{desc: d, sets: sets})
	}

	if len(setNames) == 0 {
		setNames = []string{allParameterSets}
	}
	for _, setName := range setNames {
		set := model.ParameterSet{Name: setName}
		for _, p := range params {
			if len(p.sets) == 0 || containsFold(p.sets, setName) {
				set.Parameters = append(set.Parameters, p.desc)
			}
		}
		sig.ParameterSets = append(sig.ParameterSets, set)
	}
	return sig
}

func explicitPosition(p *psast.Parameter) (int, bool) {
	for _, a := range p.Attributes {
		if !strings.EqualFold(a.Name, "Parameter") {
			continue
		}
		if v, ok := a.Arg("Position"); ok {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func isSwitch(p *psast.Parameter) bool {
	for _, a := range p.Attributes {
		if !a.TypeOnly {
			continue
		}
		switch strings.ToLower(a.Name) {
		case "switch", "switchparameter", "system.management.automation.switchparameter":
			return true
		}
	}
	return false
}

func isFalse(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "$false" || v == "0"
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
