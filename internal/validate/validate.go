// Package validate applies the structural rules for stage definitions:
// plugin arity, parameter uniqueness, and variable-scoping rules.
package validate

import (
	"log/slog"

	"github.com/me/pipeweave/internal/binding"
	"github.com/me/pipeweave/pkg/model"
)

// Validator performs semantic validation on parsed stage definitions.
type Validator struct {
	logger *slog.Logger
}

// New creates a Validator with the given logger.
func New(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "validator")}
}

// ValidateWorkflow validates every stage of a definition in index order,
// stopping at the first failing stage.
func (v *Validator) ValidateWorkflow(def *model.WorkflowDefinition) error {
	for _, stage := range def.Stages {
		if err := v.ValidateStage(stage); err != nil {
			return err
		}
	}
	return nil
}

// ValidateStage validates one stage definition. Errors are typed
// (DefinitionError / VariableError / ReferenceError) and carry the stage,
// plugin, and parameter context.
func (v *Validator) ValidateStage(stage *model.StageDefinition) error {
	switch stage.Kind {
	case model.StageConnector:
		return v.validateConnector(stage)
	case model.StageProcessor:
		return v.validateProcessor(stage)
	}
	return model.NewDefinitionError("stage %d has unknown kind %q", stage.Index, stage.Kind)
}

// varScope accumulates variable-scoping state across a connector stage's
// plugin sections. A stage has a single namespace: variable names and
// bound plugin parameter names must not collide.
type varScope struct {
	referenced  []string        // first-mention order
	refSet      map[string]bool // variables referenced anywhere outside Output
	boundVars   map[string]bool // variables bound by a filter
	boundParams map[string]bool // plugin parameter names seen so far
}

func newVarScope() *varScope {
	return &varScope{
		refSet:      make(map[string]bool),
		boundVars:   make(map[string]bool),
		boundParams: make(map[string]bool),
	}
}

func (v *Validator) validateConnector(stage *model.StageDefinition) error {
	conn := stage.Connector

	// Arity rules.
	if conn.Input == nil || len(conn.Input.Instances) == 0 {
		return &model.PlanError{Code: model.ErrDefinition, Stage: stage.Index,
			Message: "connector must have an Input definition"}
	}
	if len(conn.Input.Instances) != 1 {
		return &model.PlanError{Code: model.ErrDefinition, Stage: stage.Index,
			Message: "connector must have exactly one Input source"}
	}
	for _, fb := range conn.Filters {
		if len(fb.Plugins.Instances) != 1 {
			return &model.PlanError{Code: model.ErrDefinition, Stage: stage.Index,
				Section: model.SectionFilter, Param: fb.Variable,
				Message: "each filter variable must be bound by exactly one Filter source"}
		}
	}
	if conn.Output != nil && len(conn.Output.Instances) != 1 {
		return &model.PlanError{Code: model.ErrDefinition, Stage: stage.Index,
			Message: "connector must have at most one Output plugin"}
	}

	scope := newVarScope()

	if err := v.validatePluginDef(stage.Index, model.SectionInput, conn.Input.Single(), scope); err != nil {
		return err
	}
	for _, fb := range conn.Filters {
		if scope.boundVars[fb.Variable] {
			return &model.PlanError{Code: model.ErrVariable, Stage: stage.Index,
				Section: model.SectionFilter, Param: fb.Variable,
				Message: "a variable can only be bound once by a filter: " + fb.Variable}
		}
		scope.boundVars[fb.Variable] = true
		if err := v.validatePluginDef(stage.Index, model.SectionFilter, fb.Plugins.Single(), scope); err != nil {
			return err
		}
	}
	if conn.Output != nil {
		if err := v.validatePluginDef(stage.Index, model.SectionOutput, conn.Output.Single(), scope); err != nil {
			return err
		}
	}

	// Every referenced variable must be bound by exactly one filter, and
	// every filter must bind a referenced variable.
	for _, name := range scope.referenced {
		if !scope.boundVars[name] {
			return &model.PlanError{Code: model.ErrVariable, Stage: stage.Index,
				Message: "unbound variable: " + name + " (all variables must be bound by filters)"}
		}
	}
	for name := range scope.boundVars {
		if !scope.refSet[name] {
			return &model.PlanError{Code: model.ErrVariable, Stage: stage.Index,
				Section: model.SectionFilter, Param: name,
				Message: "only referenced variables can be bound by a filter: " + name}
		}
	}

	v.logger.Debug("connector validated", "stage", stage.Index,
		"filters", len(conn.Filters), "variables", len(scope.referenced))
	return nil
}

// validatePluginDef checks one plugin instance's parameter bindings and
// folds its variable references and parameter names into the stage scope.
func (v *Validator) validatePluginDef(stageIdx int, section model.Section, plugin *model.PluginDefinition, scope *varScope) error {
	fail := func(code model.ErrorCode, param, msg string) error {
		return &model.PlanError{Code: code, Stage: stageIdx, Section: section,
			Plugin: plugin.ClassName, Param: param, Message: msg}
	}

	seen := make(map[string]bool, len(plugin.Params))
	for _, p := range plugin.Params {
		if seen[p.Name] {
			return fail(model.ErrDefinition, p.Name, "parameters can only be bound once in a plugin")
		}
		seen[p.Name] = true

		if p.Value.IsEmpty() {
			// Sensitive arguments (supplied out-of-band at dispatch) are
			// accepted on Input plugins only.
			if section != model.SectionInput {
				return fail(model.ErrDefinition, p.Name,
					"parameter must have a binding if included in definition: "+p.Name)
			}
			continue
		}

		if p.Value.Kind != model.BindingString {
			continue
		}

		vars := binding.FindVariableRefs(p.Value.Str)
		if len(vars) > 0 && section == model.SectionOutput {
			return fail(model.ErrVariable, p.Name, "variables are not allowed in output plugins")
		}
		for _, name := range vars {
			if scope.refSet[name] {
				return fail(model.ErrVariable, p.Name, "cannot reuse variable: "+name)
			}
			scope.refSet[name] = true
			scope.referenced = append(scope.referenced, name)
		}

		if err := binding.ValidateStageRefShape(p.Value.Str); err != nil {
			if pe, ok := err.(*model.PlanError); ok {
				return pe.WithContext(stageIdx, section, plugin.ClassName)
			}
			return err
		}
	}

	// A variable cannot also be a bound plugin parameter: the stage has a
	// single namespace.
	for name := range seen {
		scope.boundParams[name] = true
	}
	for name := range scope.refSet {
		if scope.boundParams[name] {
			return fail(model.ErrVariable, name, "a variable cannot also be a bound plugin parameter: "+name)
		}
	}
	return nil
}

func (v *Validator) validateProcessor(stage *model.StageDefinition) error {
	if stage.Processor == nil || len(stage.Processor.Instances) != 1 {
		return &model.PlanError{Code: model.ErrDefinition, Stage: stage.Index,
			Message: "processor stage must define exactly one plugin"}
	}
	plugin := stage.Processor.Single()

	fail := func(code model.ErrorCode, param, msg string) error {
		return &model.PlanError{Code: code, Stage: stage.Index, Section: model.SectionProcessor,
			Plugin: plugin.ClassName, Param: param, Message: msg}
	}

	seen := make(map[string]bool, len(plugin.Params))
	for _, p := range plugin.Params {
		if seen[p.Name] {
			return fail(model.ErrDefinition, p.Name, "parameters can only be bound once in a plugin")
		}
		seen[p.Name] = true

		switch {
		case p.Value.IsEmpty():
			return fail(model.ErrDefinition, p.Name,
				"parameter must have a binding if included in definition: "+p.Name)

		case p.Value.Kind == model.BindingString:
			if vars := binding.FindVariableRefs(p.Value.Str); len(vars) > 0 {
				return fail(model.ErrVariable, p.Name, "processor parameter values cannot contain variables")
			}
			if err := binding.ValidateStageRefShape(p.Value.Str); err != nil {
				if pe, ok := err.(*model.PlanError); ok {
					return pe.WithContext(stage.Index, model.SectionProcessor, plugin.ClassName)
				}
				return err
			}

		case p.Value.Kind == model.BindingNested:
			if err := v.validateNestedFilterSpec(stage.Index, plugin.ClassName, p.Name, p.Value.Nested); err != nil {
				return err
			}
		}
	}

	v.logger.Debug("processor validated", "stage", stage.Index, "plugin", plugin.ClassName)
	return nil
}

// validateNestedFilterSpec checks an inline filter spec one level down:
// its parameter values may not contain variables, stage references, or
// further nested specs.
func (v *Validator) validateNestedFilterSpec(stageIdx int, procClass, procParam string, spec *model.PluginDefinition) error {
	fail := func(code model.ErrorCode, msg string) error {
		return &model.PlanError{Code: code, Stage: stageIdx, Section: model.SectionProcessor,
			Plugin: procClass, Param: procParam, Message: msg}
	}

	seen := make(map[string]bool, len(spec.Params))
	for _, p := range spec.Params {
		if seen[p.Name] {
			return fail(model.ErrDefinition, "parameters can only be bound once in a plugin")
		}
		seen[p.Name] = true

		switch p.Value.Kind {
		case model.BindingNull:
			return fail(model.ErrDefinition,
				"filter parameter must have a binding: "+p.Name)
		case model.BindingNested:
			return fail(model.ErrDefinition,
				"nested filtering is not allowed inside filter parameter bindings")
		case model.BindingString:
			if p.Value.Str == "" {
				return fail(model.ErrDefinition,
					"filter parameter must have a binding: "+p.Name)
			}
			if vars := binding.FindVariableRefs(p.Value.Str); len(vars) > 0 {
				return fail(model.ErrVariable, "filter parameter values cannot contain variables")
			}
			if refs := binding.FindStageRefs(p.Value.Str); len(refs) > 0 {
				return fail(model.ErrReference,
					"stage references are not allowed in filter parameter bindings")
			}
		}
	}
	return nil
}
