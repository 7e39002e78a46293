package secrets

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testPatterns(needles ...string) []Pattern {
	ps := make([]Pattern, len(needles))
	for i, n := range needles {
		ps[i] = Pattern{Needle: n, Placeholder: "<" + n + ">", Raw: n, Encoding: EncodingRaw}
	}
	return ps
}

func TestAutomaton_ReportsSuffixMatches(t *testing.T) {
	a := newAutomaton(testPatterns("hers", "she", "his", "he"))
	got := a.scan("ushers")

	// "she" ends at 4 and its suffix "he" must be reported from the same
	// node through the merged output set.
	want := []match{
		{pattern: 1, start: 1, end: 4},
		{pattern: 3, start: 2, end: 4},
		{pattern: 0, start: 2, end: 6},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(match{})); diff != "" {
		t.Fatalf("scan mismatch (-want +got):\n%s", diff)
	}
}

func TestAutomaton_EarliestThenLongest(t *testing.T) {
	a := newAutomaton(testPatterns("hers", "she", "his", "he"))
	if got := a.replace("ushers"); got != "u<she>rs" {
		t.Fatalf("replace = %q", got)
	}
	if got := a.replace("ahisheh"); got != "a<his><he>h" {
		t.Fatalf("replace = %q", got)
	}
}

func TestAutomaton_EqualLengthTieBreak(t *testing.T) {
	// Same start, same length cannot happen for distinct needles, but two
	// patterns may share a needle (raw of one secret equals an encoded
	// variant of another). The lower index wins.
	ps := []Pattern{
		{Needle: "abcd", Placeholder: "<first>"},
		{Needle: "abcd", Placeholder: "<second>"},
	}
	if got := newAutomaton(ps).replace("xabcdx"); got != "x<first>x" {
		t.Fatalf("replace = %q", got)
	}
}

func TestAutomaton_NoMatches(t *testing.T) {
	a := newAutomaton(testPatterns("needle-one", "needle-two"))
	in := "nothing to see in this haystack, needle-on"
	if got := a.replace(in); got != in {
		t.Fatalf("replace = %q", got)
	}
	if got := a.find(in); len(got) != 0 {
		t.Fatalf("find = %v", got)
	}
}

func TestAutomaton_AgreesWithSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	var needles []string
	for i := 0; i < 40; i++ {
		needles = append(needles, fmt.Sprintf("tok%02d-%s", i, strings.Repeat(string(rune('a'+i%26)), 3+i%7)))
	}
	tbl := compile(1, func() []entry {
		es := make([]entry, len(needles))
		for i, n := range needles {
			es[i] = entry{name: fmt.Sprintf("N%d", i), value: n}
		}
		return es
	}())
	seq := sequentialMatcher{patterns: tbl.patterns}
	ac := newAutomaton(tbl.patterns)

	for round := 0; round < 50; round++ {
		var b strings.Builder
		for i := 0; i < 30; i++ {
			if rng.Intn(3) == 0 {
				b.WriteString(needles[rng.Intn(len(needles))])
			} else {
				b.WriteString(fmt.Sprintf(" filler %d ", rng.Intn(1000)))
			}
		}
		text := b.String()
		if s, a := seq.replace(text), ac.replace(text); s != a {
			t.Fatalf("strategies disagree on %q:\nsequential: %q\n automaton: %q", text, s, a)
		}
		if diff := cmp.Diff(seq.find(text), ac.find(text), cmp.AllowUnexported(match{})); diff != "" {
			t.Fatalf("find disagrees on %q (-seq +ac):\n%s", text, diff)
		}
	}
}

func TestCompile_SortsLongestFirst(t *testing.T) {
	tbl := compile(1, []entry{
		{name: "A", value: "short1"},
		{name: "B", value: "a-much-longer-value"},
		{name: "C", value: "mid-length"},
	})
	for i := 1; i < len(tbl.patterns); i++ {
		if len(tbl.patterns[i-1].Needle) < len(tbl.patterns[i].Needle) {
			t.Fatalf("patterns not sorted longest first: %q before %q",
				tbl.patterns[i-1].Needle, tbl.patterns[i].Needle)
		}
	}
	if tbl.maxNeedleLen != len(tbl.patterns[0].Needle) {
		t.Fatalf("maxNeedleLen = %d", tbl.maxNeedleLen)
	}
	if _, ok := tbl.match.(sequentialMatcher); !ok {
		t.Fatalf("expected sequential strategy for %d patterns", len(tbl.patterns))
	}
}

func TestExpand_SharesPlaceholderAndSkipsIdentical(t *testing.T) {
	ps := expand("abcdef", "<ph>")
	got := make([]Encoding, len(ps))
	for i, p := range ps {
		got[i] = p.Encoding
		if p.Placeholder != "<ph>" || p.Raw != "abcdef" {
			t.Fatalf("variant %+v does not share placeholder/raw", p)
		}
	}
	// URL-encoding of an alphanumeric value is identical to raw.
	if diff := cmp.Diff([]Encoding{EncodingRaw, EncodingBase64}, got); diff != "" {
		t.Fatalf("encodings (-want +got):\n%s", diff)
	}
}
