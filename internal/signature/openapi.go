package signature

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Zachacious/go-mockspec/internal/model"
	"github.com/getkin/kin-openapi/openapi3"
)

// Extensions read from operations and parameters of an OpenAPI document.
const (
	ExtCommand  = "x-ps-command"
	ExtPosition = "x-ps-position"
	ExtAliases  = "x-ps-aliases"
	ExtBodyName = "x-ps-body-name"
)

// LoadOpenAPI loads an OpenAPI 3 document and derives one command signature
// per operation.
func LoadOpenAPI(path string) (*Catalog, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading OpenAPI document %s: %w", path, err)
	}
	return FromOpenAPI(doc, path)
}

// FromOpenAPI maps the operations of doc to command signatures. The command
// name is the x-ps-command extension or the operationId; operations with
// neither are skipped. Parameters keep declaration order grouped as path,
// query, header, then the request body.
func FromOpenAPI(doc *openapi3.T, source string) (*Catalog, error) {
	c := NewCatalog(source)
	if doc == nil || doc.Paths == nil {
		return c, nil
	}

	paths := doc.Paths.Map()
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, path := range keys {
		item := paths[path]
		ops := item.Operations()
		methods := make([]string, 0, len(ops))
		for m := range ops {
			methods = append(methods, m)
		}
		sort.Strings(methods)

		for _, method := range methods {
			op := ops[method]
			name := extString(op.Extensions, ExtCommand)
			if name == "" {
				name = op.OperationID
			}
			if name == "" {
				continue
			}
			set, err := operationParameters(item.Parameters, op)
			if err != nil {
				return nil, fmt.Errorf("%s %s %s: %w", source, method, path, err)
			}
			set.Name = op.OperationID
			c.Add(&model.CommandSignature{
				Name:          name,
				ParameterSets: []model.ParameterSet{set},
				Source:        "openapi",
			})
		}
	}
	return c, nil
}

func operationParameters(shared openapi3.Parameters, op *openapi3.Operation) (model.ParameterSet, error) {
	var set model.ParameterSet
	var all []*openapi3.Parameter
	for _, refs := range []openapi3.Parameters{shared, op.Parameters} {
		for _, ref := range refs {
			if ref != nil && ref.Value != nil {
				all = append(all, ref.Value)
			}
		}
	}

	for _, in := range []string{openapi3.ParameterInPath, openapi3.ParameterInQuery, openapi3.ParameterInHeader} {
		for _, p := range all {
			if p.In != in {
				continue
			}
			desc := model.ParameterDescriptor{
				Name:      p.Name,
				Mandatory: p.Required,
				Aliases:   extStrings(p.Extensions, ExtAliases),
			}
			pos, ok, err := extInt(p.Extensions, ExtPosition)
			if err != nil {
				return set, fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			if ok {
				desc.Position = &pos
			}
			set.Parameters = append(set.Parameters, desc)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		body := model.ParameterDescriptor{Name: "Body", Mandatory: op.RequestBody.Value.Required}
		if n := extString(op.RequestBody.Value.Extensions, ExtBodyName); n != "" {
			body.Name = n
		}
		pos, ok, err := extInt(op.RequestBody.Value.Extensions, ExtPosition)
		if err != nil {
			return set, fmt.Errorf("request body: %w", err)
		}
		if ok {
			body.Position = &pos
		}
		set.Parameters = append(set.Parameters, body)
	}
	return set, nil
}

func extString(ext map[string]any, key string) string {
	if s, ok := ext[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func extStrings(ext map[string]any, key string) []string {
	switch v := ext[key].(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	}
	return nil
}

func extInt(ext map[string]any, key string) (int, bool, error) {
	raw, ok := ext[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return int(v), true, nil
	case int:
		return v, true, nil
	case int64:
		return int(v), true, nil
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil, err
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %w", key, err)
		}
		return n, true, nil
	}
	return 0, false, fmt.Errorf("%s: unsupported value %v", key, raw)
}
