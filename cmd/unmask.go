package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newUnmaskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmask",
		Short: "Restore placeholders on stdin to their registered values",
		Long: `Reads stdin and replaces every {{SECRET:xxxxxxxx}} token whose value is
registered by the configured sources. Unknown tokens are left as they are.
The output contains raw secrets; do not pipe it anywhere persistent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), rt.reg.Unmask(string(data)))
			return err
		},
	}
}
