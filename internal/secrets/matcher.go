package secrets

import (
	"sort"
	"strings"
)

// match is a single needle occurrence, [start, end) in bytes.
type match struct {
	pattern int
	start   int
	end     int
}

// matcher is one of the two interchangeable matching strategies.
type matcher interface {
	// replace substitutes every match in text with its placeholder.
	replace(text string) string
	// find returns resolved, non-overlapping matches ordered by start.
	find(text string) []match
}

// sequentialMatcher scans per pattern, longest first, and substitutes in a
// single render over the original text. Placeholder text is never scanned,
// so a short needle that occurs inside another value's hash cannot rewrite
// an inserted placeholder.
type sequentialMatcher struct {
	patterns []Pattern
}

func (m sequentialMatcher) replace(text string) string {
	return render(text, m.find(text), m.patterns)
}

// find lets longer needles claim their ranges first; shorter needles may
// not match inside or across a claimed range.
func (m sequentialMatcher) find(text string) []match {
	var found []match
	for i, p := range m.patterns {
		if !strings.Contains(text, p.Needle) {
			continue
		}
		n := len(p.Needle)
		for off := 0; off+n <= len(text); {
			j := strings.Index(text[off:], p.Needle)
			if j < 0 {
				break
			}
			start := off + j
			if overlaps(found, start, start+n) {
				off = start + 1
				continue
			}
			found = append(found, match{pattern: i, start: start, end: start + n})
			off = start + n
		}
	}
	sort.Slice(found, func(a, b int) bool { return found[a].start < found[b].start })
	return found
}

func overlaps(ms []match, start, end int) bool {
	for _, m := range ms {
		if start < m.end && m.start < end {
			return true
		}
	}
	return false
}

// resolve keeps the earliest match at each position, longest first, lowest
// pattern index on ties, dropping anything that overlaps a kept match.
func resolve(ms []match) []match {
	if len(ms) < 2 {
		return ms
	}
	sort.Slice(ms, func(a, b int) bool {
		if ms[a].start != ms[b].start {
			return ms[a].start < ms[b].start
		}
		la, lb := ms[a].end-ms[a].start, ms[b].end-ms[b].start
		if la != lb {
			return la > lb
		}
		return ms[a].pattern < ms[b].pattern
	})
	kept := ms[:0]
	cursor := 0
	for _, m := range ms {
		if m.start < cursor {
			continue
		}
		kept = append(kept, m)
		cursor = m.end
	}
	return kept
}

// render copies the gaps between matches verbatim and substitutes each
// match with its placeholder.
func render(text string, ms []match, patterns []Pattern) string {
	if len(ms) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, m := range ms {
		b.WriteString(text[cursor:m.start])
		b.WriteString(patterns[m.pattern].Placeholder)
		cursor = m.end
	}
	b.WriteString(text[cursor:])
	return b.String()
}
