package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/pipeweave/pkg/model"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-name>",
		Short: "Show the task progress of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.GetRun(cmd.Context(), name)
			if err != nil {
				return err
			}
			if run == nil {
				return model.NewNotFoundError("run", name)
			}
			summary, err := st.TaskSummary(cmd.Context(), name)
			if err != nil {
				return err
			}

			fmt.Printf("Run: %s\n", run.Name)
			fmt.Printf("  Workflow: %s\n", run.WorkflowFile)
			fmt.Printf("  State:    %s\n", run.State)
			fmt.Printf("  Tasks:    %d complete, %d executing, %d pending\n",
				len(summary.Complete), len(summary.Executing), len(summary.Pending))
			if summary.AllComplete {
				fmt.Println("  All tasks complete.")
			} else if summary.CurrentTask != "" {
				fmt.Printf("  Current:  %s\n", summary.CurrentTask)
			}
			fmt.Printf("  Created:  %s\n", run.CreatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
