package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachescope/config"
)

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the hardware presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

			fmt.Fprintln(w, "NAME\tSIZE\tWAYS\tLINE\tSETS\tPOLICY\tDESCRIPTION")

			for _, p := range config.Presets() {
				fmt.Fprintf(w, "%s\t%d KiB\t%d\t%d B\t%d\t%s\t%s\n",
					p.Name, p.SizeKB, p.Ways, p.LineSize, p.Sets(),
					p.Policy, p.Description)
			}

			return w.Flush()
		},
	}
}
