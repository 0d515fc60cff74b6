// Package registry maps plugin class names to constructors. Registration is
// static: callers wire the plugins they want at startup and thread the
// registry through explicitly instead of relying on package-level state or
// runtime class discovery.
package registry

import (
	"fmt"
	"sort"

	"github.com/me/pipeweave/pkg/model"
)

// FilterPlugin produces candidate values for the variable it is bound to.
// A plugin instance is constructed for one parameter combination and never
// mutated afterwards, so a single instance is safe to share.
type FilterPlugin interface {
	Filter() ([]string, error)
}

// FilterFactory builds a filter plugin from its fully bound parameters.
type FilterFactory func(params map[string]any) (FilterPlugin, error)

// Registry holds the known plugin classes.
type Registry struct {
	filters map[string]FilterFactory
}

// New returns a registry preloaded with the built-in filter plugins.
func New() *Registry {
	r := &Registry{filters: make(map[string]FilterFactory)}
	r.filters["ValueList"] = newValueList
	r.filters["DateTimeRange"] = newDateTimeRange
	return r
}

// RegisterFilter adds a filter class. Re-registering an existing class is a
// wiring mistake and fails.
func (r *Registry) RegisterFilter(class string, factory FilterFactory) error {
	if _, ok := r.filters[class]; ok {
		return model.NewConflictError("filter plugin %q is already registered", class)
	}
	r.filters[class] = factory
	return nil
}

// NewFilter constructs an instance of the named filter class.
func (r *Registry) NewFilter(class string, params map[string]any) (FilterPlugin, error) {
	factory, ok := r.filters[class]
	if !ok {
		return nil, model.NewNotFoundError("filter plugin", class)
	}
	return factory(params)
}

// FilterClasses lists the registered filter classes in sorted order.
func (r *Registry) FilterClasses() []string {
	classes := make([]string, 0, len(r.filters))
	for c := range r.filters {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes
}

// stringParam fetches a required string parameter.
func stringParam(params map[string]any, name string) (string, error) {
	v, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing required parameter %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T", name, v)
	}
	return s, nil
}

// stringsParam fetches a required list-of-strings parameter. A bare string
// is accepted as a single-element list.
func stringsParam(params map[string]any, name string) ([]string, error) {
	v, ok := params[name]
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", name)
	}
	switch val := v.(type) {
	case []string:
		return val, nil
	case []any:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %q element %d must be a string, got %T", name, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{val}, nil
	default:
		return nil, fmt.Errorf("parameter %q must be a list of strings, got %T", name, v)
	}
}
