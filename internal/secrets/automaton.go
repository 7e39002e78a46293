package secrets

// automaton is a byte-level Aho-Corasick matcher built once per compiled
// table. Construction is linear in total needle length; a scan is a single
// left-to-right pass regardless of how many secrets are registered.
type automaton struct {
	nodes    []acNode
	lens     []int // needle length per pattern index
	patterns []Pattern
}

type acNode struct {
	next map[byte]int32
	fail int32
	// out holds every pattern ending here, including those inherited from
	// the failure chain (needles that are suffixes of this path).
	out []int32
}

func newAutomaton(patterns []Pattern) *automaton {
	a := &automaton{
		nodes:    []acNode{{}},
		lens:     make([]int, len(patterns)),
		patterns: patterns,
	}
	for i, p := range patterns {
		a.lens[i] = len(p.Needle)
		a.insert(p.Needle, int32(i))
	}
	a.link()
	return a
}

func (a *automaton) insert(needle string, idx int32) {
	cur := int32(0)
	for i := 0; i < len(needle); i++ {
		c := needle[i]
		nxt, ok := a.nodes[cur].next[c]
		if !ok {
			a.nodes = append(a.nodes, acNode{})
			nxt = int32(len(a.nodes) - 1)
			if a.nodes[cur].next == nil {
				a.nodes[cur].next = make(map[byte]int32)
			}
			a.nodes[cur].next[c] = nxt
		}
		cur = nxt
	}
	a.nodes[cur].out = append(a.nodes[cur].out, idx)
}

// link computes failure links breadth-first and merges each node's output
// set with that of its failure node.
func (a *automaton) link() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[0].next {
		a.nodes[child].fail = 0
		queue = append(queue, child)
	}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for c, child := range a.nodes[u].next {
			f := a.nodes[u].fail
			for f != 0 {
				if _, ok := a.nodes[f].next[c]; ok {
					break
				}
				f = a.nodes[f].fail
			}
			if nxt, ok := a.nodes[f].next[c]; ok && nxt != child {
				a.nodes[child].fail = nxt
			} else {
				a.nodes[child].fail = 0
			}
			if inherited := a.nodes[a.nodes[child].fail].out; len(inherited) > 0 {
				merged := make([]int32, 0, len(a.nodes[child].out)+len(inherited))
				merged = append(merged, a.nodes[child].out...)
				a.nodes[child].out = append(merged, inherited...)
			}
			queue = append(queue, child)
		}
	}
}

// scan reports every needle occurrence, overlapping ones included.
func (a *automaton) scan(text string) []match {
	var found []match
	state := int32(0)
	for i := 0; i < len(text); i++ {
		c := text[i]
		for {
			if nxt, ok := a.nodes[state].next[c]; ok {
				state = nxt
				break
			}
			if state == 0 {
				break
			}
			state = a.nodes[state].fail
		}
		for _, p := range a.nodes[state].out {
			found = append(found, match{pattern: int(p), start: i + 1 - a.lens[p], end: i + 1})
		}
	}
	return found
}

func (a *automaton) find(text string) []match {
	return resolve(a.scan(text))
}

func (a *automaton) replace(text string) string {
	return render(text, a.find(text), a.patterns)
}
