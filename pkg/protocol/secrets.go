package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Placeholder wire format. Persisted logs and forwarded records carry these
// tokens, so the shape must not change.
const (
	PlaceholderPrefix  = "{{SECRET:"
	PlaceholderSuffix  = "}}"
	PlaceholderHashLen = 8
	PlaceholderLen     = len(PlaceholderPrefix) + PlaceholderHashLen + len(PlaceholderSuffix)
)

// Heuristic truncation wire format (first 6 + "..." + last 4).
const (
	TruncateHead   = 6
	TruncateTail   = 4
	TruncateMarker = "..."

	// TruncateShort replaces values too short to truncate without
	// revealing most of their characters.
	TruncateShort = "***"
)

// truncateMinLen is the shortest value that is truncated rather than
// replaced outright.
const truncateMinLen = 18

// PlaceholderRE matches a well-formed placeholder token.
var PlaceholderRE = regexp.MustCompile(`\{\{SECRET:[0-9a-f]{8}\}\}`)

// Placeholder returns the deterministic token for a raw secret value.
// It depends only on the value, never on the name it was registered under.
func Placeholder(raw string) string {
	return PlaceholderPrefix + Hash8(raw) + PlaceholderSuffix
}

// Hash8 returns the first 8 lowercase hex characters of SHA-256(raw).
func Hash8(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:PlaceholderHashLen/2])
}

// IsPlaceholder reports whether s is exactly one well-formed token.
func IsPlaceholder(s string) bool {
	return len(s) == PlaceholderLen && PlaceholderRE.MatchString(s)
}

// Truncate renders an unregistered but secret-shaped value in the visible
// truncation format.
func Truncate(v string) string {
	if len(v) < truncateMinLen {
		return TruncateShort
	}
	return v[:TruncateHead] + TruncateMarker + v[len(v)-TruncateTail:]
}
