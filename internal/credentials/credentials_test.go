package credentials

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nextlevelbuilder/goclaw-secrets/internal/config"
	"github.com/nextlevelbuilder/goclaw-secrets/internal/secrets"
	"github.com/nextlevelbuilder/goclaw-secrets/pkg/protocol"
)

func TestParseDotenv(t *testing.T) {
	in := `
# comment
OPENAI_API_KEY=sk-test-abc123
export DB_PASSWORD="p@ss \"word\"\n2"
LITERAL='no $expansion \n here'
INLINE=value # trailing comment
EMPTY=
`
	got, err := ParseDotenv([]byte(in))
	if err != nil {
		t.Fatalf("ParseDotenv: %v", err)
	}
	want := map[string]string{
		"OPENAI_API_KEY": "sk-test-abc123",
		"DB_PASSWORD":    "p@ss \"word\"\n2",
		"LITERAL":        `no $expansion \n here`,
		"INLINE":         "value",
		"EMPTY":          "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ParseDotenv (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"NOEQUALS", "BAD KEY=v", `Q="open`, `S='open`} {
		if _, err := ParseDotenv([]byte(bad)); err == nil {
			t.Errorf("ParseDotenv(%q): expected error", bad)
		}
	}
}

func TestEnvSource(t *testing.T) {
	src := EnvSource{
		Names:    []string{"EXACT"},
		Prefixes: []string{"GOCLAW_"},
		Suffixes: []string{"_TOKEN"},
		Environ: func() []string {
			return []string{"EXACT=one1", "GOCLAW_DB=two2", "GH_TOKEN=three", "HOME=/root", "EMPTY_TOKEN=", "malformed"}
		},
	}
	got, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := map[string]string{"EXACT": "one1", "GOCLAW_DB": "two2", "GH_TOKEN": "three"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("EnvSource (-want +got):\n%s", diff)
	}
}

func TestFileSource_Missing(t *testing.T) {
	got, err := FileSource{Path: filepath.Join(t.TempDir(), "absent.env")}.Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("missing file: %v, %v", got, err)
	}
}

type staticSource map[string]string

func (s staticSource) Name() string { return "static" }
func (s staticSource) Load(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }
func (failingSource) Load(context.Context) (map[string]string, error) {
	return nil, errors.New("boom")
}

func TestSyncer_RegisterRotateRemove(t *testing.T) {
	ctx := context.Background()
	r := secrets.New()
	r.Register("FOREIGN", "registered-elsewhere")
	src := staticSource{"A": "alpha-secret", "B": "beta-secret", "SHORT": "abc"}
	s := NewSyncer(r, src)

	res, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff(Result{Registered: []string{"A", "B"}, Skipped: []string{"SHORT"}}, res); diff != "" {
		t.Fatalf("first sync (-want +got):\n%s", diff)
	}
	if r.Mask("alpha-secret") != protocol.Placeholder("alpha-secret") {
		t.Fatal("A not masked after sync")
	}

	// Unchanged input is a no-op.
	if res, _ := s.Sync(ctx); len(res.Registered)+len(res.Unregistered) != 0 {
		t.Fatalf("second sync changed state: %+v", res)
	}

	src["A"] = "alpha-rotated"
	delete(src, "B")
	res, err = s.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{"A"}, res.Registered); diff != "" {
		t.Fatalf("registered (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"B"}, res.Unregistered); diff != "" {
		t.Fatalf("unregistered (-want +got):\n%s", diff)
	}
	if r.Mask("alpha-secret beta-secret") != "alpha-secret beta-secret" {
		t.Fatal("stale values still masked")
	}
	if !r.Has("FOREIGN") {
		t.Fatal("syncer removed a secret it did not register")
	}

	// Rotation to a too-short value drops the old one.
	src["A"] = "ab"
	if res, _ := s.Sync(ctx); !cmp.Equal([]string{"A"}, res.Unregistered) {
		t.Fatalf("short rotation: %+v", res)
	}
	if r.Has("A") {
		t.Fatal("A still registered")
	}
}

func TestSyncer_FailingSourceKeepsState(t *testing.T) {
	r := secrets.New()
	ok := staticSource{"A": "alpha-secret"}
	s := NewSyncer(r, ok)
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	s.sources = append(s.sources, failingSource{})
	delete(ok, "A")
	if _, err := s.Sync(context.Background()); err == nil {
		t.Fatal("expected error from failing source")
	}
	if !r.Has("A") {
		t.Fatal("failed pass unregistered a live secret")
	}
}

func TestFromConfig(t *testing.T) {
	srcs := FromConfig(config.CredentialsConfig{EnvSuffixes: []string{"_KEY"}, Files: []string{"a.env", "b.env"}})
	if len(srcs) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(srcs))
	}
	if srcs[0].Name() != "env" || srcs[2].Name() != "file:b.env" {
		t.Fatalf("unexpected order: %s, %s", srcs[0].Name(), srcs[2].Name())
	}
	if got := FromConfig(config.CredentialsConfig{}); len(got) != 0 {
		t.Fatalf("empty config yielded %d sources", len(got))
	}
}

func TestWatcher_ResyncsOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("filesystem watcher test")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "app.env")
	if err := os.WriteFile(path, []byte("TOKEN=first-token-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	r := secrets.New()
	s := NewSyncer(r, FileSource{Path: path})
	if _, err := s.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	w := NewWatcher(s, 20*time.Millisecond)
	synced := make(chan Result, 4)
	w.OnSync = func(res Result, err error) {
		if err == nil {
			synced <- res
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("TOKEN=second-token-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-synced:
			if r.Mask("second-token-value") == protocol.Placeholder("second-token-value") {
				if r.Mask("first-token-value") != "first-token-value" {
					t.Fatal("rotated-out value still masked")
				}
				return
			}
		case <-deadline:
			t.Fatal("watcher did not resync within 5s")
		}
	}
}

func TestWatcher_NothingToWatch(t *testing.T) {
	w := NewWatcher(NewSyncer(secrets.New(), EnvSource{}), 0)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
