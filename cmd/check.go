package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the configured sources and report registry statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "sources\t%d\n", len(rt.syncer.Sources()))
			fmt.Fprintf(tw, "secrets\t%d\n", rt.reg.Size())
			fmt.Fprintf(tw, "patterns\t%d\n", rt.reg.PatternCount())
			fmt.Fprintf(tw, "max secret length\t%d\n", rt.reg.MaxSecretLength())
			fmt.Fprintf(tw, "min length\t%d\n", rt.reg.MinLength())
			fmt.Fprintf(tw, "heuristics\t%t\n", rt.cfg.Redaction.Heuristic)
			collisions := rt.reg.Collisions()
			fmt.Fprintf(tw, "collisions\t%d\n", len(collisions))
			for _, c := range collisions {
				fmt.Fprintf(tw, "  %s\t%s, %s\n", c.Placeholder, c.First, c.Second)
			}
			return tw.Flush()
		},
	}
}
