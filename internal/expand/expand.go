// Package expand turns one plugin definition into the concrete parameter
// combinations it must be invoked with. Each parameter contributes a
// candidate axis; the expansion is the Cartesian product of the axes in the
// plugin's declared parameter order.
package expand

import (
	"log/slog"

	"github.com/me/pipeweave/internal/binding"
	"github.com/me/pipeweave/internal/registry"
	"github.com/me/pipeweave/pkg/model"
)

// Expander computes parameter combinations for dispatch.
type Expander struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates an Expander backed by the given plugin registry.
func New(reg *registry.Registry, logger *slog.Logger) *Expander {
	return &Expander{registry: reg, logger: logger.With("component", "expand")}
}

// Expand computes every ParameterCombination for one plugin instance.
// varBindings holds the values produced by the filters this plugin depends
// on; validation guarantees each variable is referenced by exactly one
// parameter, so per-parameter candidate lists compose without aliasing. An
// empty candidate list for any parameter aborts expansion.
func (e *Expander) Expand(stage int, section model.Section, p *model.PluginDefinition, varBindings map[string][]string) ([]model.ParameterCombination, error) {
	names := make([]string, 0, len(p.Params))
	axes := make([][]any, 0, len(p.Params))

	for _, param := range p.Params {
		candidates, err := e.candidates(param, varBindings)
		if err != nil {
			if perr, ok := err.(*model.PlanError); ok {
				perr.WithContext(stage, section, p.ClassName)
				if perr.Param == "" {
					perr.Param = param.Name
				}
			}
			return nil, err
		}
		names = append(names, param.Name)
		axes = append(axes, candidates)
	}

	combos := product(names, axes)
	e.logger.Debug("plugin expanded",
		"stage", stage, "plugin", p.ClassName, "combinations", len(combos))
	return combos, nil
}

// candidates computes the candidate axis for one parameter.
func (e *Expander) candidates(param model.Param, varBindings map[string][]string) ([]any, error) {
	switch param.Value.Kind {
	case model.BindingNull:
		// Sensitive parameter, filled in at dispatch time.
		return []any{nil}, nil

	case model.BindingList:
		// A list binds as one value, not one candidate per element.
		return []any{param.Value.List}, nil

	case model.BindingNested:
		return e.nestedCandidates(param)

	case model.BindingString:
		s := param.Value.Str
		refs := binding.FindVariableRefs(s)
		if len(refs) == 0 {
			return []any{s}, nil
		}
		return substituted(s, refs, varBindings)
	}
	return nil, model.NewDefinitionError("parameter %q has unknown binding kind %q", param.Name, param.Value.Kind)
}

// nestedCandidates invokes the nested filter spec and uses its output as the
// candidate axis.
func (e *Expander) nestedCandidates(param model.Param) ([]any, error) {
	spec := param.Value.Nested
	params := make(map[string]any, len(spec.Params))
	for _, p := range spec.Params {
		switch p.Value.Kind {
		case model.BindingString:
			params[p.Name] = p.Value.Str
		case model.BindingList:
			params[p.Name] = p.Value.List
		default:
			// Validation rejects null and deeper nesting inside specs.
			return nil, model.NewDefinitionError(
				"nested filter parameter %q has unsupported binding", p.Name)
		}
	}

	filter, err := e.registry.NewFilter(spec.ClassName, params)
	if err != nil {
		return nil, err
	}
	values, err := filter.Filter()
	if err != nil {
		return nil, model.NewNoValidBindingError(
			"filter %s failed: %v", spec.ClassName, err)
	}
	if len(values) == 0 {
		return nil, model.NewNoValidBindingError(
			"filter %s produced no candidate values", spec.ClassName)
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out, nil
}

// substituted expands a variable-bearing string over the product of its
// variables' bound values, in first-mention order.
func substituted(s string, refs []string, varBindings map[string][]string) ([]any, error) {
	vars := distinct(refs)
	for _, v := range vars {
		if len(varBindings[v]) == 0 {
			return nil, model.NewNoValidBindingError(
				"variable %%{%s} has no candidate values", v)
		}
	}

	candidates := []any{s}
	for _, v := range vars {
		next := make([]any, 0, len(candidates)*len(varBindings[v]))
		for _, c := range candidates {
			for _, val := range varBindings[v] {
				next = append(next, binding.SubstituteVars(c.(string), map[string]string{v: val}))
			}
		}
		candidates = next
	}
	return candidates, nil
}

// product walks the axes odometer-style, last axis fastest, so the output
// order follows the declared parameter order.
func product(names []string, axes [][]any) []model.ParameterCombination {
	total := 1
	for _, axis := range axes {
		total *= len(axis)
	}
	if total == 0 || len(axes) == 0 {
		if len(axes) == 0 {
			// A plugin with no parameters still runs once.
			return []model.ParameterCombination{{Params: nil, Values: map[string]any{}}}
		}
		return nil
	}

	combos := make([]model.ParameterCombination, 0, total)
	idx := make([]int, len(axes))
	for {
		values := make(map[string]any, len(names))
		for i, name := range names {
			values[name] = axes[i][idx[i]]
		}
		combos = append(combos, model.ParameterCombination{
			Params: append([]string(nil), names...),
			Values: values,
		})

		i := len(axes) - 1
		for i >= 0 {
			idx[i]++
			if idx[i] < len(axes[i]) {
				break
			}
			idx[i] = 0
			i--
		}
		if i < 0 {
			return combos
		}
	}
}

func distinct(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	var out []string
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
