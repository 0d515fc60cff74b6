package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/me/pipeweave/internal/planner"
	"github.com/me/pipeweave/pkg/model"
)

func newPlanCmd() *cobra.Command {
	var (
		runName string
		outPath string
	)

	cmd := &cobra.Command{
		Use:   "plan <workflow.yml>",
		Short: "Plan a workflow definition into ordered plugin batches",
		Long: `Plan parses and validates the definition, resolves each stage's plugin
dependency graph into batches, and writes the plan as JSON to stdout.
With --run the plan is also recorded in the local store under the given
unique run name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := planner.New(logger).PlanFile(args[0])
			if err != nil {
				return err
			}

			if runName != "" {
				st, err := openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer st.Close()

				run := &model.Run{
					ID:           "run_" + uuid.New().String(),
					Name:         runName,
					WorkflowFile: args[0],
					RunDir:       cfg.RunDir,
					State:        model.RunStatePlanned,
					CreatedAt:    time.Now().UTC(),
				}
				if err := st.CreateRun(cmd.Context(), run, plan); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "run %q recorded\n", runName)
			}

			out := os.Stdout
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				defer f.Close()
				out = f
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		},
	}

	cmd.Flags().StringVar(&runName, "run", "", "Record the plan as a run with this unique name")
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the plan JSON to this file instead of stdout")
	return cmd
}
