package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

// ExecResult is the masked outcome of a command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExecOptions controls RunCommand. Stdout and Stderr, when set, receive the
// masked output live in addition to the captured copy.
type ExecOptions struct {
	Dir    string
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunCommand runs name with args and masks both output streams through the
// registry from ctx while they are produced, so a secret split across pipe
// reads never reaches a writer. A non-zero exit is reported in ExitCode, not
// as an error.
func RunCommand(ctx context.Context, name string, args []string, opts ExecOptions) (*ExecResult, error) {
	r := secrets.RegistryFromContext(ctx)
	if r == nil {
		if t := secrets.TransportFromContext(ctx); t != nil {
			r = t.Registry()
		}
	}
	if r == nil {
		r = secrets.New()
	}

	var stdout, stderr bytes.Buffer
	outW := secrets.NewWriter(tee(&stdout, opts.Stdout), r)
	errW := secrets.NewWriter(tee(&stderr, opts.Stderr), r)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Env
	cmd.Stdin = opts.Stdin
	cmd.Stdout = outW
	cmd.Stderr = errW

	start := time.Now()
	runErr := cmd.Run()
	res := &ExecResult{Duration: time.Since(start)}
	if err := errors.Join(outW.Close(), errW.Close()); err != nil {
		return nil, fmt.Errorf("flush output: %w", err)
	}
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("run %s: %w", name, runErr)
	}
	slog.Debug("tools: command finished", "bin", name, "exit", res.ExitCode, "duration", res.Duration)
	return res, nil
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}
