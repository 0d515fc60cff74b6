package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/pipeweave/internal/parser"
	"github.com/me/pipeweave/internal/validate"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yml>",
		Short: "Validate a workflow definition without planning it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := parser.New(logger).ParseFile(args[0])
			if err != nil {
				return err
			}
			if err := validate.New(logger).ValidateWorkflow(def); err != nil {
				return err
			}
			fmt.Printf("%s: %d stage(s) valid\n", args[0], len(def.Stages))
			return nil
		},
	}
}
