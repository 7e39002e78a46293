// Package secrets implements value-based secret masking: a registry of
// known credential values, a pattern compiler with encoding variants, two
// interchangeable matching strategies, a streaming masker and a deep
// traversal transport for structured records.
package secrets

import (
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/nextlevelbuilder/goclaw-secrets/pkg/protocol"
)

// DefaultMinLength is the shortest value accepted by Register.
const DefaultMinLength = 4

// maxCachedLen bounds the inputs memoized by the mask cache.
const maxCachedLen = 4096

// Registry owns the name -> value associations and lazily recompiles the
// pattern table after each mutation. It is safe for concurrent use: Mask
// reads a published immutable table and never holds a lock during a scan.
type Registry struct {
	minLength int

	mu      sync.RWMutex
	entries []entry        // registration order
	index   map[string]int // name -> position in entries
	gen     uint64         // bumped on every mutation; the dirty flag

	size     atomic.Int64
	compiled atomic.Pointer[table]
	flight   singleflight.Group

	cache *lru.Cache[string, cachedMask]
}

type cachedMask struct {
	gen uint64
	out string
}

// Option configures a Registry.
type Option func(*Registry)

// WithMinLength sets the minimum secret length in bytes. Values shorter
// than n are never registered.
func WithMinLength(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.minLength = n
		}
	}
}

// WithCache memoizes up to size Mask results for short inputs. Repeated log
// lines are common; cached entries are dropped when the table changes.
func WithCache(size int) Option {
	return func(r *Registry) {
		if size <= 0 {
			return
		}
		c, err := lru.New[string, cachedMask](size)
		if err != nil {
			slog.Warn("secrets: mask cache disabled", "size", size, "error", err)
			return
		}
		r.cache = c
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		minLength: DefaultMinLength,
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MinLength returns the configured minimum secret length.
func (r *Registry) MinLength() int { return r.minLength }

// Register stores value under name. It returns false, without changing
// state, when value is empty, shorter than the minimum length in runes, or
// already stored under that name.
func (r *Registry) Register(name, value string) bool {
	if value == "" || utf8.RuneCountInString(value) < r.minLength {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[name]; ok {
		if r.entries[i].value == value {
			return false
		}
		// Rotation: drop the old value, append the new one at the end.
		r.removeLocked(i)
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, entry{name: name, value: value})
	r.gen++
	r.size.Store(int64(len(r.entries)))
	return true
}

// Unregister removes name. It returns whether anything was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[name]
	if !ok {
		return false
	}
	r.removeLocked(i)
	r.gen++
	r.size.Store(int64(len(r.entries)))
	return true
}

func (r *Registry) removeLocked(i int) {
	delete(r.index, r.entries[i].name)
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
	for j := i; j < len(r.entries); j++ {
		r.index[r.entries[j].name] = j
	}
}

// Reset drops every entry and the compiled table. Intended for test isolation.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.index = make(map[string]int)
	r.gen++
	r.size.Store(0)
	r.mu.Unlock()

	r.compiled.Store(nil)
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// Size returns the number of registered names.
func (r *Registry) Size() int { return int(r.size.Load()) }

// PatternCount returns the number of needles after encoding expansion.
func (r *Registry) PatternCount() int {
	if t := r.table(); t != nil {
		return len(t.patterns)
	}
	return 0
}

// MaxSecretLength returns the length of the longest registered raw value.
func (r *Registry) MaxSecretLength() int {
	if t := r.table(); t != nil {
		return t.maxSecretLen
	}
	return 0
}

// Collisions returns placeholder collisions detected in the current table.
func (r *Registry) Collisions() []Collision {
	if t := r.table(); t != nil {
		return append([]Collision(nil), t.collisions...)
	}
	return nil
}

// Mask replaces every registered value, and its encoded variants, with its
// placeholder. Well-formed placeholder tokens already in text are left as
// they are, so masking is idempotent. Empty input and an empty registry
// return text unchanged.
func (r *Registry) Mask(text string) string {
	if text == "" || r.size.Load() == 0 {
		return text
	}
	t := r.table()
	if t == nil || len(t.patterns) == 0 {
		return text
	}
	if r.cache != nil && len(text) <= maxCachedLen {
		if c, ok := r.cache.Get(text); ok && c.gen == t.gen {
			return c.out
		}
		out := betweenPlaceholders(text, t.match.replace)
		r.cache.Add(text, cachedMask{gen: t.gen, out: out})
		return out
	}
	return betweenPlaceholders(text, t.match.replace)
}

// Unmask restores every well-formed placeholder known to the registry.
// Unknown tokens are left verbatim. Only use it on text this process
// produced itself; never on untrusted input.
func (r *Registry) Unmask(text string) string {
	if text == "" || !strings.Contains(text, protocol.PlaceholderPrefix) {
		return text
	}
	t := r.table()
	if t == nil || len(t.reverse) == 0 {
		return text
	}
	return protocol.PlaceholderRE.ReplaceAllStringFunc(text, func(tok string) string {
		if raw, ok := t.reverse[tok]; ok {
			return raw
		}
		return tok
	})
}

// table returns a compiled table at least as new as the generation
// observed on entry, compiling it if the registry changed since the last
// build. Callers that observe the same stale generation share a single
// compilation; a caller never joins a build for an older generation.
func (r *Registry) table() *table {
	r.mu.RLock()
	gen := r.gen
	r.mu.RUnlock()

	for {
		if t := r.compiled.Load(); t != nil && t.gen >= gen {
			return t
		}
		v, _, shared := r.flight.Do(strconv.FormatUint(gen, 10), func() (any, error) {
			r.mu.RLock()
			cur := r.gen
			snapshot := append([]entry(nil), r.entries...)
			r.mu.RUnlock()

			if t := r.compiled.Load(); t != nil && t.gen >= cur {
				return t, nil
			}
			start := time.Now()
			t := compile(cur, snapshot)
			r.publish(t)
			return compileResult{t: t, took: time.Since(start)}, nil
		})

		var t *table
		switch res := v.(type) {
		case compileResult:
			if !shared {
				slog.Debug("secrets: pattern table compiled",
					"secrets", len(res.t.reverse),
					"patterns", len(res.t.patterns),
					"automaton", len(res.t.patterns) >= automatonThreshold,
					"duration", res.took)
			}
			t = res.t
		case *table:
			t = res
		}
		if t != nil && t.gen >= gen {
			return t
		}
	}
}

type compileResult struct {
	t    *table
	took time.Duration
}

// publish stores t unless a newer generation has already been published.
func (r *Registry) publish(t *table) {
	for {
		cur := r.compiled.Load()
		if cur != nil && cur.gen >= t.gen {
			return
		}
		if r.compiled.CompareAndSwap(cur, t) {
			return
		}
	}
}
