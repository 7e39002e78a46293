package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of events an editor or secret
// projector emits for a single update.
const DefaultDebounce = 200 * time.Millisecond

// Watcher re-syncs when any FileSource of the syncer changes on disk.
// Parent directories are watched rather than the files, so atomic
// rename-into-place updates are seen.
type Watcher struct {
	syncer   *Syncer
	debounce time.Duration
	files    map[string]struct{}
	dirs     []string

	// OnSync, if set, receives the outcome of every triggered pass.
	OnSync func(Result, error)
}

// NewWatcher collects the file paths of s's sources. debounce <= 0 uses
// DefaultDebounce.
func NewWatcher(s *Syncer, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{syncer: s, debounce: debounce, files: make(map[string]struct{})}
	seen := make(map[string]struct{})
	for _, src := range s.Sources() {
		fs, ok := src.(FileSource)
		if !ok {
			continue
		}
		abs, err := filepath.Abs(fs.Path)
		if err != nil {
			abs = filepath.Clean(fs.Path)
		}
		w.files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if _, dup := seen[dir]; !dup {
			seen[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w
}

// Run blocks until ctx is done. It returns nil when there is nothing to
// watch.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.dirs) == 0 {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	for _, d := range w.dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	slog.Info("credentials: watching", "dirs", len(w.dirs), "files", len(w.files))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("credentials: watcher error", "error", err)
		case <-timer.C:
			res, err := w.syncer.Sync(ctx)
			if err != nil {
				slog.Warn("credentials: resync failed", "error", err)
			}
			if w.OnSync != nil {
				w.OnSync(res, err)
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	_, ok := w.files[filepath.Clean(ev.Name)]
	return ok
}
