// Package exprfilter provides the JSEval filter plugin: a JavaScript
// expression evaluated with goja that yields the candidate values for the
// variable the filter binds.
package exprfilter

import (
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/me/pipeweave/internal/registry"
)

// ClassName is the class the plugin registers under.
const ClassName = "JSEval"

// Register adds the JSEval filter class to the registry.
func Register(r *registry.Registry) error {
	return r.RegisterFilter(ClassName, newJSEval)
}

// jsEval holds one evaluated expression. The parameters other than
// "expression" are exposed to the script as the `params` object.
type jsEval struct {
	expression string
	params     map[string]any
}

func newJSEval(params map[string]any) (registry.FilterPlugin, error) {
	raw, ok := params["expression"]
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", "expression")
	}
	expr, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be a string, got %T", "expression", raw)
	}

	rest := make(map[string]any, len(params))
	for k, v := range params {
		if k == "expression" {
			continue
		}
		rest[k] = v
	}
	return &jsEval{expression: expr, params: rest}, nil
}

// Filter evaluates the expression in a fresh VM. The script may return a
// single value or an array; every element is stringified.
func (j *jsEval) Filter() ([]string, error) {
	vm := goja.New()
	if err := vm.Set("params", j.params); err != nil {
		return nil, fmt.Errorf("set params: %w", err)
	}

	// Wrap in a function so the script can use `return`.
	wrapped := fmt.Sprintf("(function() { %s })()", j.expression)
	val, err := vm.RunString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("JavaScript error: %w", err)
	}
	if val == goja.Undefined() || val == goja.Null() {
		return nil, fmt.Errorf("expression returned no value")
	}

	switch exported := val.Export().(type) {
	case []any:
		out := make([]string, 0, len(exported))
		for i, item := range exported {
			s, err := stringify(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		s, err := stringify(exported)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func stringify(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("value of type %T cannot be a candidate", v)
	}
}
