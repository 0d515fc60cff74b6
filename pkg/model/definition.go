package model

import "fmt"

// StageKind distinguishes the two possible shapes of a workflow stage.
type StageKind string

const (
	StageConnector StageKind = "Connector"
	StageProcessor StageKind = "Processor"
)

// Section identifies the part of a connector definition a plugin appears in.
// It doubles as the plugin kind for registry lookups and error context.
type Section string

const (
	SectionInput     Section = "Input"
	SectionFilter    Section = "Filter"
	SectionOutput    Section = "Output"
	SectionProcessor Section = "Processor"
)

// WorkflowDefinition is a parsed pipeline definition: an ordered sequence of
// stages indexed 1..N. Stage identifiers in the source document must be
// exactly the integers 1..N, one each; the parser enforces this.
type WorkflowDefinition struct {
	Name   string             `json:"name,omitempty"`
	Stages []*StageDefinition `json:"stages"`
}

// Stage returns the stage with the given 1-based index, or nil.
func (w *WorkflowDefinition) Stage(index int) *StageDefinition {
	if index < 1 || index > len(w.Stages) {
		return nil
	}
	return w.Stages[index-1]
}

// StageDefinition is one stage of a workflow: either a Connector or a
// Processor. Exactly one of Connector/Processor is set, per Kind.
type StageDefinition struct {
	Index     int              `json:"index"`
	Kind      StageKind        `json:"kind"`
	Connector *ConnectorDef    `json:"connector,omitempty"`
	Processor *PluginInstances `json:"processor,omitempty"`
}

// ConnectorDef holds the plugin sections of a connector stage. The slices
// preserve the raw document shape so the validator can enforce arity
// (exactly one Input plugin, at most one Output plugin, one plugin per
// filter variable) rather than the parser silently discarding extras.
type ConnectorDef struct {
	Input   *PluginInstances `json:"input"`
	Filters []FilterBinding  `json:"filters,omitempty"`
	Output  *PluginInstances `json:"output,omitempty"`
}

// FilterBinding binds one variable name to the filter plugin that produces
// its candidate values.
type FilterBinding struct {
	Variable string           `json:"variable"`
	Plugins  *PluginInstances `json:"plugins"`
}

// PluginInstances is a plugin section as written: class name -> parameter
// bindings. A well-formed section has exactly one class; the slice keeps
// whatever the document said so validation owns the arity rule.
type PluginInstances struct {
	Instances []*PluginDefinition `json:"instances"`
}

// Single returns the sole plugin definition, or nil when the section does
// not contain exactly one.
func (p *PluginInstances) Single() *PluginDefinition {
	if p == nil || len(p.Instances) != 1 {
		return nil
	}
	return p.Instances[0]
}

// PluginDefinition is one plugin instance: a class name plus parameter
// bindings in declared order. Order matters for binding expansion.
type PluginDefinition struct {
	ClassName string  `json:"class_name"`
	Params    []Param `json:"params"`
}

// Param is a single named parameter binding.
type Param struct {
	Name  string       `json:"name"`
	Value BindingValue `json:"value"`
}

// ParamNames returns parameter names in declared order.
func (p *PluginDefinition) ParamNames() []string {
	names := make([]string, len(p.Params))
	for i, pr := range p.Params {
		names[i] = pr.Name
	}
	return names
}

// Lookup returns the binding for the named parameter.
func (p *PluginDefinition) Lookup(name string) (BindingValue, bool) {
	for _, pr := range p.Params {
		if pr.Name == name {
			return pr.Value, true
		}
	}
	return BindingValue{}, false
}

// BindingKind tags the variants of a BindingValue.
type BindingKind string

const (
	// BindingNull marks a parameter with no value; permitted only where the
	// plugin kind accepts a sensitive argument.
	BindingNull BindingKind = "null"
	// BindingString is a literal string, possibly containing variable or
	// stage references.
	BindingString BindingKind = "string"
	// BindingList is a literal list of strings, passed through as one value.
	BindingList BindingKind = "list"
	// BindingNested is an inline filter spec producing candidate values
	// (processor parameters only).
	BindingNested BindingKind = "nested"
)

// BindingValue is one parameter's textual binding: a tagged union of
// null, string, list, and nested filter spec.
type BindingValue struct {
	Kind   BindingKind       `json:"kind"`
	Str    string            `json:"str,omitempty"`
	List   []string          `json:"list,omitempty"`
	Nested *PluginDefinition `json:"nested,omitempty"`
}

// NullValue returns a null binding.
func NullValue() BindingValue { return BindingValue{Kind: BindingNull} }

// StringValue returns a literal string binding.
func StringValue(s string) BindingValue { return BindingValue{Kind: BindingString, Str: s} }

// ListValue returns a literal list binding.
func ListValue(vals ...string) BindingValue { return BindingValue{Kind: BindingList, List: vals} }

// NestedValue returns an inline filter spec binding.
func NestedValue(p *PluginDefinition) BindingValue {
	return BindingValue{Kind: BindingNested, Nested: p}
}

// IsEmpty reports whether the binding is null or an empty string, the
// values that classify an argument as sensitive.
func (v BindingValue) IsEmpty() bool {
	return v.Kind == BindingNull || (v.Kind == BindingString && v.Str == "")
}

func (v BindingValue) String() string {
	switch v.Kind {
	case BindingNull:
		return "<null>"
	case BindingString:
		return v.Str
	case BindingList:
		return fmt.Sprintf("%v", v.List)
	case BindingNested:
		if v.Nested != nil {
			return fmt.Sprintf("<filter %s>", v.Nested.ClassName)
		}
		return "<filter>"
	}
	return ""
}
