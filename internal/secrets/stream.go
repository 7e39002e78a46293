package secrets

import (
	"io"
	"log/slog"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Stream masks incremental text where a secret may straddle chunk
// boundaries. It retains at most maxNeedleLen-1 bytes between pushes
// (plus up to utf8.UTFMax-1 bytes so a rune is never split).
//
// A match that starts before the release point is emitted once its own
// needle is complete, even if a longer overlapping needle has not fully
// arrived yet. With overlapping distinct secrets the output can therefore
// differ from a one-shot Mask; every released match is still masked whole.
//
// A Stream belongs to one logical output stream; it is not safe to share
// across concurrent streams.
type Stream struct {
	id  uuid.UUID
	reg *Registry
	buf string

	in, out int
}

// NewStream starts a masking session over r.
func NewStream(r *Registry) *Stream {
	return &Stream{id: uuid.New(), reg: r}
}

// ID identifies the session in logs.
func (s *Stream) ID() uuid.UUID { return s.id }

// Buffered returns the number of bytes held back for the next push.
func (s *Stream) Buffered() int { return len(s.buf) }

// Push appends chunk and returns the masked text that is safe to release.
// Bytes that could still be the start of a secret are held back.
func (s *Stream) Push(chunk string) string {
	if chunk == "" {
		return ""
	}
	s.in += len(chunk)
	text := s.buf + chunk

	t := s.reg.table()
	if t == nil || t.maxNeedleLen == 0 {
		s.buf = ""
		s.out += len(text)
		return text
	}

	window := t.maxNeedleLen - 1
	cut := len(text) - window
	if cut <= 0 {
		s.buf = text
		return ""
	}

	// Any needle starting before cut is fully visible, so a match that
	// starts there is released whole even if it ends past cut.
	var emit []match
	lastEnd := 0
	for _, m := range t.match.find(text) {
		if m.start >= cut {
			break
		}
		emit = append(emit, m)
		lastEnd = m.end
		if m.end > cut {
			cut = m.end
		}
	}
	for i := 0; i < utf8.UTFMax-1 && cut > lastEnd && cut < len(text) && !utf8.RuneStart(text[cut]); i++ {
		cut--
	}

	out := render(text[:cut], emit, t.patterns)
	s.buf = text[cut:]
	s.out += len(out)
	return out
}

// Flush masks and returns everything still buffered, then resets the session.
func (s *Stream) Flush() string {
	out := s.reg.Mask(s.buf)
	s.out += len(out)
	slog.Debug("secrets: stream flushed", "stream", s.id, "in_bytes", s.in, "out_bytes", s.out)
	s.buf = ""
	s.in, s.out = 0, 0
	return out
}

// Writer adapts a Stream to io.WriteCloser for subprocess and network
// output. Close flushes the held-back tail; it does not close the
// underlying writer.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
	s  *Stream
}

// NewWriter returns a masking writer that forwards to w.
func NewWriter(w io.Writer, r *Registry) *Writer {
	return &Writer{w: w, s: NewStream(r)}
}

// Write masks p and forwards whatever is safe to release. It reports len(p)
// on success even when some bytes are held back.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if out := w.s.Push(string(p)); out != "" {
		if _, err := io.WriteString(w.w, out); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close flushes the remaining buffered text.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if out := w.s.Flush(); out != "" {
		if _, err := io.WriteString(w.w, out); err != nil {
			return err
		}
	}
	return nil
}
