package secrets

import (
	"encoding/base64"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/goclaw-secrets/pkg/protocol"
)

// Encoding identifies which textual form of a secret a needle represents.
type Encoding string

const (
	EncodingRaw    Encoding = "raw"
	EncodingBase64 Encoding = "base64"
	EncodingURL    Encoding = "url"
)

// automatonThreshold is the pattern count at which matching switches from
// sequential replace to the Aho-Corasick automaton.
const automatonThreshold = 10

// Pattern is one literal needle derived from a registered secret.
type Pattern struct {
	Needle      string
	Placeholder string
	Raw         string
	Encoding    Encoding
}

// entry is a registered (name, value) pair in registration order.
type entry struct {
	name  string
	value string
}

// Collision reports two distinct raw values that share a placeholder.
// Names are reported, never values.
type Collision struct {
	Placeholder string
	First       string
	Second      string
}

// table is an immutable compiled pattern table. It is built off to the side
// and published in a single atomic store.
type table struct {
	gen          uint64
	patterns     []Pattern
	reverse      map[string]string // placeholder -> raw
	maxNeedleLen int
	maxSecretLen int
	collisions   []Collision
	match        matcher
}

// compile expands entries into their encoding variants and builds the
// matching strategy for the resulting pattern count.
func compile(gen uint64, entries []entry) *table {
	t := &table{
		gen:     gen,
		reverse: make(map[string]string, len(entries)),
	}
	owner := make(map[string]string, len(entries)) // placeholder -> first name
	seen := make(map[string]bool, len(entries))

	for _, e := range entries {
		if seen[e.value] {
			continue
		}
		seen[e.value] = true

		ph := protocol.Placeholder(e.value)
		if _, taken := t.reverse[ph]; taken {
			slog.Warn("secrets: placeholder collision, unmask keeps first registrant",
				"placeholder", ph, "first", owner[ph], "second", e.name)
			t.collisions = append(t.collisions, Collision{Placeholder: ph, First: owner[ph], Second: e.name})
		} else {
			t.reverse[ph] = e.value
			owner[ph] = e.name
		}

		if len(e.value) > t.maxSecretLen {
			t.maxSecretLen = len(e.value)
		}
		t.patterns = append(t.patterns, expand(e.value, ph)...)
	}

	// Longest first; equal lengths keep registration order, then raw < base64 < url.
	sort.SliceStable(t.patterns, func(i, j int) bool {
		return len(t.patterns[i].Needle) > len(t.patterns[j].Needle)
	})
	if len(t.patterns) > 0 {
		t.maxNeedleLen = len(t.patterns[0].Needle)
	}

	if len(t.patterns) >= automatonThreshold {
		t.match = newAutomaton(t.patterns)
	} else {
		t.match = sequentialMatcher{patterns: t.patterns}
	}
	return t
}

// expand returns the raw needle plus every encoded variant that differs
// from it and decodes back to the raw value.
func expand(raw, placeholder string) []Pattern {
	out := []Pattern{{Needle: raw, Placeholder: placeholder, Raw: raw, Encoding: EncodingRaw}}

	if b64, ok := encodeBase64(raw); ok && b64 != raw {
		out = append(out, Pattern{Needle: b64, Placeholder: placeholder, Raw: raw, Encoding: EncodingBase64})
	}
	if u, ok := encodeURL(raw); ok && u != raw {
		out = append(out, Pattern{Needle: u, Placeholder: placeholder, Raw: raw, Encoding: EncodingURL})
	}
	return out
}

func encodeBase64(raw string) (string, bool) {
	enc := base64.StdEncoding.EncodeToString([]byte(raw))
	dec, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || string(dec) != raw {
		return "", false
	}
	return enc, true
}

// encodeURL percent-encodes reserved and unsafe characters. Spaces become
// %20 rather than '+' so the needle matches both query and path contexts.
func encodeURL(raw string) (string, bool) {
	enc := strings.ReplaceAll(url.QueryEscape(raw), "+", "%20")
	dec, err := url.PathUnescape(enc)
	if err != nil || dec != raw {
		return "", false
	}
	return enc, true
}
