// Package watcher keeps the index in sync with the workspace: file-system
// events are debounced and turned into IndexFile/Delete calls.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"rubyscope/internal/config"
	"rubyscope/internal/index"
	"rubyscope/internal/location"
)

// DefaultDebounce batches rapid save bursts into one reindex per file.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reindexes files as they change on disk. It watches the workspace
// tree recursively and adds directories created after startup.
type Watcher struct {
	ix       *index.Index
	cfg      *config.Configuration
	fs       *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a watcher over the configuration's workspace. The workspace
// tree is registered here, before Run starts draining events, so changes
// made after New returns are never missed.
func New(ix *index.Index, cfg *config.Configuration, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		ix:       ix,
		cfg:      cfg,
		fs:       fs,
		debounce: debounce,
		pending:  map[string]time.Time{},
	}
	if err := w.addRecursive(cfg.WorkspacePath); err != nil {
		fs.Close()
		return nil, err
	}
	return w, nil
}

// Run drains events until the context is cancelled. Event handling and
// debounced flushing run in this goroutine; callers usually `go w.Run(ctx)`.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case _, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			// Watch errors are transient; indexing stays best-effort.

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.addRecursive(event.Name)
			return
		}
	}
	if filepath.Ext(event.Name) != ".rb" {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flush applies pending changes whose debounce window has passed. A path
// that no longer exists is deindexed; anything else is reindexed from disk.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()

	w.mu.Lock()
	var ready []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.apply(ctx, path)
	}
}

func (w *Watcher) apply(ctx context.Context, path string) {
	uri := location.NewFileURI(path)

	source, err := os.ReadFile(path)
	if err != nil {
		w.ix.Delete(uri)
		return
	}
	if rel, err := filepath.Rel(w.cfg.WorkspacePath, path); err == nil && !w.cfg.Indexable(rel) {
		return
	}
	_ = w.ix.IndexFile(ctx, uri, source)
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.cfg.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		// Individual add failures are non-fatal; the rest of the tree
		// still gets watched.
		_ = w.fs.Add(path)
		return nil
	})
}
