package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/me/pipeweave/internal/expand"
	"github.com/me/pipeweave/internal/registry"
	"github.com/me/pipeweave/pkg/model"
)

// SecretCollector supplies values for sensitive parameters at dispatch
// time. Sensitive values are never persisted in the plan.
type SecretCollector interface {
	Collect(stage int, pluginClass, param string) (string, error)
}

// FileRelocator moves a local file to the execution target and returns the
// handle the plugin should receive instead of the local path.
type FileRelocator interface {
	Relocate(stage int, pluginClass, param, localPath string) (string, error)
}

// Translator consumes resolved plugin invocations batch by batch and
// produces whatever job format the execution backend requires. Invocations
// within one call carry no dependency relationship.
type Translator interface {
	TranslateBatch(ctx context.Context, stage int, invocations []model.PluginInvocation) error
}

// Dispatcher walks a plan in batch order, expands each plugin into concrete
// invocations, and feeds them to the translator. Filter plugins are run
// during dispatch: their output becomes the candidate values for the
// variable they bind.
type Dispatcher struct {
	expander   *expand.Expander
	registry   *registry.Registry
	secrets    SecretCollector
	relocator  FileRelocator
	translator Translator
	logger     *slog.Logger
}

// NewDispatcher wires a dispatcher. secrets and relocator may be nil when
// the plan has no sensitive or local-file arguments.
func NewDispatcher(reg *registry.Registry, secrets SecretCollector, relocator FileRelocator, translator Translator, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		expander:   expand.New(reg, logger),
		registry:   reg,
		secrets:    secrets,
		relocator:  relocator,
		translator: translator,
		logger:     logger.With("component", "dispatch"),
	}
}

// Dispatch expands and translates every stage of the plan in index order.
// A failure aborts the affected stage; batches already handed to the
// translator stand.
func (d *Dispatcher) Dispatch(ctx context.Context, def *model.WorkflowDefinition, plan *model.WorkflowPlan) error {
	for _, sp := range plan.Stages {
		stage := def.Stage(sp.Index)
		if stage == nil {
			return model.NewNotFoundError("stage", fmt.Sprintf("$%d", sp.Index))
		}
		if err := d.dispatchStage(ctx, stage, sp); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) dispatchStage(ctx context.Context, stage *model.StageDefinition, sp *model.StagePlan) error {
	// Values produced by this stage's filters, keyed by variable.
	varBindings := make(map[string][]string)

	for _, batch := range sp.Batches {
		if err := ctx.Err(); err != nil {
			return err
		}

		var invocations []model.PluginInvocation
		for _, pp := range batch {
			pdef := pluginDef(stage, pp.ID)
			if pdef == nil {
				return model.NewNotFoundError("plugin", pp.ID)
			}

			combos, err := d.expander.Expand(stage.Index, pp.Section, pdef, varBindings)
			if err != nil {
				return err
			}
			for _, combo := range combos {
				if err := d.finalize(stage.Index, pp, combo); err != nil {
					return err
				}
				invocations = append(invocations, model.PluginInvocation{
					Stage:       stage.Index,
					PluginID:    pp.ID,
					ClassName:   pp.ClassName,
					Combination: combo,
				})
			}

			if variable, ok := strings.CutPrefix(pp.ID, "Filter:"); ok {
				values, err := d.runFilter(stage.Index, pp.ClassName, combos)
				if err != nil {
					return err
				}
				if len(values) == 0 {
					err := model.NewNoValidBindingError(
						"filter bound to %%{%s} produced no candidate values", variable)
					return err.WithContext(stage.Index, model.SectionFilter, pp.ClassName)
				}
				varBindings[variable] = values
			}
		}

		if err := d.translator.TranslateBatch(ctx, stage.Index, invocations); err != nil {
			return fmt.Errorf("translate stage %d batch: %w", stage.Index, err)
		}
	}

	d.logger.Debug("stage dispatched", "stage", stage.Index, "batches", len(sp.Batches))
	return nil
}

// finalize fills in sensitive values and swaps local paths for relocated
// handles on one combination.
func (d *Dispatcher) finalize(stage int, pp *model.PluginPlan, combo model.ParameterCombination) error {
	for _, param := range pp.SensitiveArgs {
		if d.secrets == nil {
			return fmt.Errorf("stage %d plugin %s: parameter %q is sensitive but no secret collector is wired",
				stage, pp.ClassName, param)
		}
		value, err := d.secrets.Collect(stage, pp.ClassName, param)
		if err != nil {
			return fmt.Errorf("collect secret for stage %d plugin %s parameter %q: %w",
				stage, pp.ClassName, param, err)
		}
		combo.Values[param] = value
	}
	for param, path := range pp.LocalFileArgs {
		if d.relocator == nil {
			return fmt.Errorf("stage %d plugin %s: parameter %q names local file %q but no relocator is wired",
				stage, pp.ClassName, param, path)
		}
		handle, err := d.relocator.Relocate(stage, pp.ClassName, param, path)
		if err != nil {
			return fmt.Errorf("relocate %q for stage %d plugin %s: %w", path, stage, pp.ClassName, err)
		}
		combo.Values[param] = handle
	}
	return nil
}

// runFilter invokes the filter class once per combination and unions the
// produced values in invocation order.
func (d *Dispatcher) runFilter(stage int, class string, combos []model.ParameterCombination) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, combo := range combos {
		filter, err := d.registry.NewFilter(class, combo.Values)
		if err != nil {
			if perr, ok := err.(*model.PlanError); ok {
				perr.WithContext(stage, model.SectionFilter, class)
			}
			return nil, err
		}
		values, err := filter.Filter()
		if err != nil {
			return nil, fmt.Errorf("stage %d filter %s: %w", stage, class, err)
		}
		for _, v := range values {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	return out, nil
}

// pluginDef resolves a plan node ID back to its definition.
func pluginDef(stage *model.StageDefinition, id string) *model.PluginDefinition {
	switch {
	case id == model.NodeProcessor:
		if stage.Processor == nil {
			return nil
		}
		return stage.Processor.Single()
	case id == model.NodeInput:
		if stage.Connector == nil {
			return nil
		}
		return stage.Connector.Input.Single()
	case id == model.NodeOutput:
		if stage.Connector == nil || stage.Connector.Output == nil {
			return nil
		}
		return stage.Connector.Output.Single()
	default:
		variable, ok := strings.CutPrefix(id, "Filter:")
		if !ok || stage.Connector == nil {
			return nil
		}
		for _, fb := range stage.Connector.Filters {
			if fb.Variable == variable {
				return fb.Plugins.Single()
			}
		}
		return nil
	}
}
