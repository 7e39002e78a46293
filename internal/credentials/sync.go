package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/config"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
)

// Result summarizes one Sync pass. Names only, never values.
type Result struct {
	Registered   []string
	Unregistered []string
	Skipped      []string // below the registry's minimum length
}

// Syncer mirrors the union of its sources into a registry. Names it
// registered and that no source yields any more are unregistered; names
// registered by other callers are left alone.
type Syncer struct {
	reg     *secrets.Registry
	sources []Source

	mu    sync.Mutex
	owned map[string]string // name -> value last registered by this syncer
}

// NewSyncer creates a syncer. Later sources override earlier ones on name
// conflicts.
func NewSyncer(r *secrets.Registry, sources ...Source) *Syncer {
	return &Syncer{reg: r, sources: sources, owned: make(map[string]string)}
}

// FromConfig builds the sources described by cfg: the environment first,
// then files in order.
func FromConfig(cfg config.CredentialsConfig) []Source {
	var out []Source
	if len(cfg.Env)+len(cfg.EnvPrefixes)+len(cfg.EnvSuffixes) > 0 {
		out = append(out, EnvSource{Names: cfg.Env, Prefixes: cfg.EnvPrefixes, Suffixes: cfg.EnvSuffixes})
	}
	for _, p := range cfg.Files {
		out = append(out, FileSource{Path: p})
	}
	return out
}

// Sources returns the configured sources.
func (s *Syncer) Sources() []Source { return s.sources }

// Sync loads every source and applies the difference to the registry. A
// failing source aborts the pass before the registry is touched, so a
// transient read error never unregisters live secrets.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	merged := make(map[string]string)
	var errs []error
	for _, src := range s.sources {
		vals, err := src.Load(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		for k, v := range vals {
			merged[k] = v
		}
	}
	if len(errs) > 0 {
		return Result{}, fmt.Errorf("load credentials: %w", errors.Join(errs...))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	for name := range s.owned {
		if _, ok := merged[name]; !ok {
			s.reg.Unregister(name)
			delete(s.owned, name)
			res.Unregistered = append(res.Unregistered, name)
		}
	}
	for name, val := range merged {
		if prev, ok := s.owned[name]; ok && prev == val {
			continue
		}
		if utf8.RuneCountInString(val) < s.reg.MinLength() {
			if _, ok := s.owned[name]; ok {
				// Rotated to a value that is now too short.
				s.reg.Unregister(name)
				delete(s.owned, name)
				res.Unregistered = append(res.Unregistered, name)
			}
			res.Skipped = append(res.Skipped, name)
			continue
		}
		if s.reg.Register(name, val) {
			res.Registered = append(res.Registered, name)
		}
		// Register reports false for an identical value already present.
		s.owned[name] = val
	}
	sort.Strings(res.Registered)
	sort.Strings(res.Unregistered)
	sort.Strings(res.Skipped)

	if len(res.Registered)+len(res.Unregistered) > 0 {
		slog.Info("credentials: synced",
			"registered", len(res.Registered),
			"unregistered", len(res.Unregistered),
			"skipped", len(res.Skipped),
			"total", s.reg.Size())
	}
	return res, nil
}
