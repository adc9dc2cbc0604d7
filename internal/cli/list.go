package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newListCommand(o *rootOptions) *cobra.Command {
	var entryPoints bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List discovered packages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := o.newHost(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = h.close(cmd.Context()) }()

			out := cmd.OutOrStdout()
			if entryPoints {
				t := newTable(out)
				t.AppendHeader(table.Row{"ENTRY POINT"})
				for _, name := range h.injector.Catalog().EntryPoints() {
					t.AppendRow(table.Row{name})
				}
				t.Render()
				return nil
			}

			pkgs, err := h.load(cmd.Context())
			if err != nil && !isLoadError(err) {
				return err
			}
			// A failed plan still lists what was loaded, just unnumbered.
			order, _ := h.injector.Plan(cmd.Context())
			printPackages(out, pkgs, order)
			return nil
		},
	}
	cmd.Flags().BoolVar(&entryPoints, "entry-points", false, "list the compiled-in entry points instead")
	return cmd
}
