// Package redact is the format-heuristic redaction layer. It catches values
// that look like credentials but were never registered with the secrets
// registry, and renders them in the visible truncation format so a reader
// can tell them apart from registered-secret placeholders.
package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/goclaw-secrets/pkg/protocol"
)

// secretGroup names the capture group holding the credential itself when a
// pattern also matches surrounding context (key names, "Bearer ", URL parts).
const secretGroup = "secret"

// Credential formats, most specific first.
var defaultPatterns = []string{
	// Anthropic, OpenAI (sk-, sk-proj-, sk-svcacct-)
	`sk-ant-[A-Za-z0-9_-]{20,}`,
	`sk-[A-Za-z0-9_-]{20,}`,
	// GitHub tokens
	`gh[pousr]_[A-Za-z0-9]{36,}`,
	`github_pat_[A-Za-z0-9_]{22,}`,
	// AWS access key IDs
	`\b(?:AKIA|ASIA)[A-Z0-9]{16}\b`,
	// Slack
	`xox[abprs]-[A-Za-z0-9-]{10,}`,
	// Stripe
	`\b[rs]k_(?:live|test)_[A-Za-z0-9]{16,}`,
	// Google API keys
	`AIza[0-9A-Za-z_-]{35}`,
	// Telegram bot tokens
	`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`,
	// JWT
	`eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`,
	// PEM private keys
	`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]+?-----END [A-Z ]*PRIVATE KEY-----`,
	// Authorization: Bearer <token>
	`(?i)\bBearer\s+(?P<secret>[A-Za-z0-9._~+/=-]{16,})`,
	// Connection string passwords
	`(?i)\b(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqps?)://[^:\s/@]+:(?P<secret>[^@\s]+)@`,
	// key=value / key: value (skip already-redacted [REDACTED] values)
	`(?i)\b(?:api[_-]?key|token|secret|password|passwd|pwd|authorization)\b["']?\s*[:=]\s*["']?(?P<secret>[^\s"'\[,;]{8,})`,
	// KEY=/SECRET=/TOKEN= env-var assignments
	`\b[A-Z0-9_]*(?:KEY|SECRET|TOKEN|PASSWORD|CREDENTIAL|PRIVATE)[A-Z0-9_]*\s*=\s*["']?(?P<secret>[^\s"'\[,;]{8,})`,
	// Long hex strings (64+ chars), likely keys or signing secrets
	`\b[a-fA-F0-9]{64,}\b`,
}

// Redactor replaces secret-shaped substrings with protocol.Truncate output.
// It is safe for concurrent use.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles the default catalogue plus extra patterns. An extra pattern
// may name a capture group "secret" to truncate only that part of a match.
func New(extra ...string) (*Redactor, error) {
	r := &Redactor{}
	for _, src := range append(append([]string(nil), defaultPatterns...), extra...) {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("compile redaction pattern %q: %w", src, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Default returns a redactor with the built-in catalogue only.
func Default() *Redactor {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

type span struct {
	start, end int
}

// Redact truncates every secret-shaped substring of text. All patterns are
// matched against the original text in one pass so a truncated value is
// never re-matched by a later pattern.
func (r *Redactor) Redact(text string) string {
	if text == "" {
		return text
	}
	var spans []span
	for _, re := range r.patterns {
		group := re.SubexpIndex(secretGroup)
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			s := span{loc[0], loc[1]}
			if group > 0 && loc[2*group] >= 0 {
				s = span{loc[2*group], loc[2*group+1]}
			}
			if s.end > s.start {
				spans = append(spans, s)
			}
		}
	}
	if len(spans) == 0 {
		return text
	}

	// Earliest first, longest at equal starts.
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, s := range spans {
		if s.start < cursor {
			continue
		}
		b.WriteString(text[cursor:s.start])
		b.WriteString(protocol.Truncate(text[s.start:s.end]))
		cursor = s.end
	}
	b.WriteString(text[cursor:])
	return b.String()
}
