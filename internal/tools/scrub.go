// Package tools scrubs tool-call output before it is returned to the model
// or written to a transcript.
package tools

import (
	"context"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/redact"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

// ScrubToolOutput masks registered secrets using the transport carried by
// ctx, followed by its heuristic pass. Without a transport in ctx only the
// default format heuristics run.
func ScrubToolOutput(ctx context.Context, text string) string {
	if text == "" {
		return text
	}
	if t := secrets.TransportFromContext(ctx); t != nil {
		return t.MaskString(text)
	}
	return redact.Default().Redact(text)
}
