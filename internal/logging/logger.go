package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/config"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

// ParseLevel maps debug, info, warn(ing) and error to slog levels.
// Unknown or empty values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a masked logger writing to w in the configured format.
func New(w io.Writer, cfg config.LogConfig, t *secrets.Transport) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var base slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		base = slog.NewTextHandler(w, opts)
	} else {
		base = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewHandler(base, t))
}

// Open resolves cfg.Output (stderr when empty) and builds the logger. The
// returned close func releases the output file, if one was opened.
func Open(cfg config.LogConfig, t *secrets.Transport) (*slog.Logger, func() error, error) {
	if cfg.Output == "" {
		return New(os.Stderr, cfg, t), func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}
	return New(f, cfg, t), f.Close, nil
}
