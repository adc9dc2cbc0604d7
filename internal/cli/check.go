package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func newCheckCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate dependencies and versions and print the initialization order",
		Long: `check loads packages and validates them without initializing anything.
It fails when a candidate is rejected, a dependency is missing, a version
constraint is not met or the dependency graph has a cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := o.newHost(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = h.close(cmd.Context()) }()

			out := cmd.OutOrStdout()
			_, loadErr := h.load(cmd.Context())
			if loadErr != nil && !isLoadError(loadErr) {
				return loadErr
			}
			if loadErr != nil {
				printErrors(out, "rejected packages", loadErr)
			}

			order, planErr := h.injector.Plan(cmd.Context())
			if planErr != nil {
				printErrors(out, "validation failed", planErr)
			} else {
				printPackages(out, h.injector.Packages(), order)
			}
			return errors.Join(loadErr, planErr)
		},
	}
}
