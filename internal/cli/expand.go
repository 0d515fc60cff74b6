package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/me/pipeweave/internal/exprfilter"
	"github.com/me/pipeweave/internal/parser"
	"github.com/me/pipeweave/internal/planner"
	"github.com/me/pipeweave/internal/registry"
	"github.com/me/pipeweave/pkg/model"
)

func newExpandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expand <workflow.yml>",
		Short: "Expand a workflow into concrete plugin invocations",
		Long: `Expand plans the workflow, runs its filter plugins, and prints every
plugin invocation the binding expansion produces, batch by batch, as
JSON to stdout. Sensitive parameter values are masked. Nothing is
submitted anywhere; use this to preview what a run would dispatch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := parser.New(logger).ParseFile(args[0])
			if err != nil {
				return err
			}
			plan, err := planner.New(logger).Plan(def)
			if err != nil {
				return err
			}

			reg := registry.New()
			if err := exprfilter.Register(reg); err != nil {
				return err
			}

			printer := &printTranslator{enc: json.NewEncoder(os.Stdout)}
			printer.enc.SetIndent("", "  ")
			d := planner.NewDispatcher(reg, maskSecrets{}, localPaths{}, printer, logger)
			return d.Dispatch(cmd.Context(), def, plan)
		},
	}
}

// maskSecrets stands in for a real secret source during preview. The
// masked value makes clear a secret would be collected here.
type maskSecrets struct{}

func (maskSecrets) Collect(stage int, pluginClass, param string) (string, error) {
	return "********", nil
}

// localPaths resolves local-file arguments to absolute paths without
// staging them anywhere.
type localPaths struct{}

func (localPaths) Relocate(stage int, pluginClass, param, localPath string) (string, error) {
	return filepath.Abs(localPath)
}

type printTranslator struct {
	enc *json.Encoder
}

type expandedBatch struct {
	Stage       int                      `json:"stage"`
	Invocations []model.PluginInvocation `json:"invocations"`
}

func (p *printTranslator) TranslateBatch(ctx context.Context, stage int, invocations []model.PluginInvocation) error {
	if len(invocations) == 0 {
		return nil
	}
	return p.enc.Encode(expandedBatch{Stage: stage, Invocations: invocations})
}
