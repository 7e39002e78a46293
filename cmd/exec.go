package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/tools"
)

func newExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec -- command [args...]",
		Short: "Run a command with registered secrets masked in its output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)
			rt.watch(ctx)

			ctx, span := rt.tracer.Tracer("goclaw-secrets").Start(ctx, "exec "+args[0])
			defer span.End()

			res, err := tools.RunCommand(rt.context(ctx), args[0], args[1:], tools.ExecOptions{
				Env:    os.Environ(),
				Stdin:  cmd.InOrStdin(),
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			span.SetAttributes(attribute.Int("exit_code", res.ExitCode), attribute.Int64("duration_ms", res.Duration.Milliseconds()))
			if res.ExitCode != 0 {
				return exitError{code: res.ExitCode}
			}
			return nil
		},
	}
}
