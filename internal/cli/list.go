package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/pipeweave/pkg/model"
)

func newListCmd() *cobra.Command {
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			runs, total, err := st.ListRuns(cmd.Context(), model.ListOptions{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			fmt.Printf("%-24s  %-10s  %-40s  %s\n", "NAME", "STATE", "WORKFLOW", "CREATED")
			fmt.Printf("%-24s  %-10s  %-40s  %s\n", "----", "-----", "--------", "-------")
			for _, run := range runs {
				fmt.Printf("%-24s  %-10s  %-40s  %s\n",
					run.Name, run.State, run.WorkflowFile,
					run.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			if total > len(runs)+offset {
				fmt.Printf("\n(%d of %d shown)\n", len(runs), total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Runs to skip")
	return cmd
}
