package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rubyscope/internal/config"
	"rubyscope/internal/index"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestWatcherIndexesAndDeletes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	ix := index.New(cfg)

	w, err := New(ix, cfg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	path := filepath.Join(dir, "user.rb")
	require.NoError(t, os.WriteFile(path, []byte(`class User; end`), 0o644))
	waitFor(t, func() bool { return len(ix.EntriesFor("User")) == 1 })

	require.NoError(t, os.WriteFile(path, []byte(`class Person; end`), 0o644))
	waitFor(t, func() bool {
		return len(ix.EntriesFor("Person")) == 1 && len(ix.EntriesFor("User")) == 0
	})

	require.NoError(t, os.Remove(path))
	waitFor(t, func() bool { return len(ix.EntriesFor("Person")) == 0 })

	cancel()
	<-done
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	ix := index.New(cfg)

	w, err := New(ix, cfg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(dir, "lib", "models")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher a beat to pick up the new directories.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "post.rb"), []byte(`class Post; end`), 0o644))
	waitFor(t, func() bool { return len(ix.EntriesFor("Post")) == 1 })
}

func TestWatcherIgnoresNonRuby(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	ix := index.New(cfg)

	w, err := New(ix, cfg, 20*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.rb"), []byte(`class App; end`), 0o644))
	waitFor(t, func() bool { return len(ix.EntriesFor("App")) == 1 })
	require.Equal(t, []string{"App"}, ix.Names())
}

func TestDefaultDebounceApplied(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	w, err := New(index.New(cfg), cfg, 0)
	require.NoError(t, err)
	require.Equal(t, DefaultDebounce, w.debounce)
}

func TestWatcherSeesWritesMadeBeforeRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	ix := index.New(cfg)

	w, err := New(ix, cfg, 20*time.Millisecond)
	require.NoError(t, err)

	// Watches are registered by New, so a write landing before Run starts
	// draining events is still delivered.
	path := filepath.Join(dir, "early.rb")
	require.NoError(t, os.WriteFile(path, []byte(`class Early; end`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	waitFor(t, func() bool { return len(ix.EntriesFor("Early")) == 1 })

	cancel()
	<-done
}
