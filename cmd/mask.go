package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

const readChunk = 32 * 1024

func newMaskCmd() *cobra.Command {
	var lines bool
	c := &cobra.Command{
		Use:   "mask",
		Short: "Copy stdin to stdout with registered secrets replaced by placeholders",
		Long: `Streams stdin to stdout, replacing every registered secret (and its base64
and URL-encoded forms) with {{SECRET:xxxxxxxx}}. Secrets split across reads are
still caught. With --lines, input is processed per line and the format
heuristics also run.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx)
			if err != nil {
				return err
			}
			defer rt.close(ctx)
			rt.watch(ctx)

			_, span := rt.tracer.Tracer("goclaw-secrets").Start(ctx, "mask")
			defer span.End()

			var n int64
			if lines {
				n, err = maskLines(cmd.InOrStdin(), cmd.OutOrStdout(), rt.transport)
			} else {
				n, err = maskStream(cmd.InOrStdin(), cmd.OutOrStdout(), rt.reg)
			}
			span.SetAttributes(attribute.Int64("bytes_in", n), attribute.Int("secrets", rt.reg.Size()))
			return err
		},
	}
	c.Flags().BoolVar(&lines, "lines", false, "process line by line and apply format heuristics")
	return c
}

func maskStream(in io.Reader, out io.Writer, r *secrets.Registry) (int64, error) {
	w := secrets.NewWriter(out, r)
	n, err := io.CopyBuffer(w, in, make([]byte, readChunk))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("mask stream: %w", err)
	}
	return n, nil
}

func maskLines(in io.Reader, out io.Writer, t *secrets.Transport) (int64, error) {
	br := bufio.NewReaderSize(in, readChunk)
	bw := bufio.NewWriter(out)
	var n int64
	for {
		line, err := br.ReadString('\n')
		n += int64(len(line))
		if line != "" {
			if _, werr := bw.WriteString(t.MaskString(line)); werr != nil {
				return n, fmt.Errorf("write: %w", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("read: %w", err)
		}
	}
	return n, bw.Flush()
}
