package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/config"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/credentials"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/logging"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/redact"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/tracing"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgPath   string
	envNames  []string
	envFiles  []string
	minLength int
)

// exitError carries a process exit code out of a command.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "goclaw-secrets",
		Short:         "Mask registered secret values in text, streams and command output",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", os.Getenv("GOCLAW_SECRETS_CONFIG"), "config file (.json5, .json, .yaml)")
	pf.StringSliceVar(&envNames, "env", nil, "environment variable names to register as secrets")
	pf.StringSliceVar(&envFiles, "env-file", nil, "dotenv files to register as secrets")
	pf.IntVar(&minLength, "min-length", 0, "override the minimum secret length")

	root.AddCommand(newMaskCmd(), newUnmaskCmd(), newCheckCmd(), newExecCmd(), newVersionCmd())
	return root
}

// Execute runs the CLI and exits with its status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// engine is the wired masking stack shared by subcommands.
type engine struct {
	cfg       *config.Config
	reg       *secrets.Registry
	transport *secrets.Transport
	syncer    *credentials.Syncer
	tracer    *tracing.Provider
	closeLog  func() error
}

func setup(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if minLength > 0 {
		cfg.Secrets.MinLength = minLength
	}
	cfg.Credentials.Env = append(cfg.Credentials.Env, envNames...)
	cfg.Credentials.Files = append(cfg.Credentials.Files, envFiles...)

	reg := secrets.New(secrets.WithMinLength(cfg.Secrets.MinLength), secrets.WithCache(cfg.Secrets.CacheSize))

	var heuristic secrets.Redactor
	if cfg.Redaction.Heuristic {
		rd, err := redact.New(cfg.Redaction.Patterns...)
		if err != nil {
			return nil, fmt.Errorf("redaction patterns: %w", err)
		}
		heuristic = rd
	}
	tr := secrets.NewTransport(reg, heuristic)

	logger, closeLog, err := logging.Open(cfg.Logging, tr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	rt := &engine{cfg: cfg, reg: reg, transport: tr, closeLog: closeLog}
	rt.syncer = credentials.NewSyncer(reg, credentials.FromConfig(cfg.Credentials)...)
	if _, err := rt.syncer.Sync(ctx); err != nil {
		rt.close(ctx)
		return nil, err
	}

	rt.tracer, err = tracing.NewProvider(ctx, cfg.Tracing, tr)
	if err != nil {
		rt.close(ctx)
		return nil, err
	}
	return rt, nil
}

// watch keeps the registry in sync with credential files until ctx ends.
func (rt *engine) watch(ctx context.Context) {
	if !rt.cfg.Credentials.Watch {
		return
	}
	w := credentials.NewWatcher(rt.syncer, 0)
	go func() {
		if err := w.Run(ctx); err != nil {
			slog.Warn("cmd: credential watcher stopped", "error", err)
		}
	}()
}

func (rt *engine) context(ctx context.Context) context.Context {
	return secrets.WithTransport(secrets.WithRegistry(ctx, rt.reg), rt.transport)
}

func (rt *engine) close(ctx context.Context) {
	if rt.tracer != nil {
		if err := rt.tracer.Shutdown(ctx); err != nil {
			slog.Warn("cmd: tracing shutdown", "error", err)
		}
	}
	if rt.closeLog != nil {
		_ = rt.closeLog()
	}
}
