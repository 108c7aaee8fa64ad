package config

import (
	"os"
	"path/filepath"
	"testing"

	"rubyscope/internal/location"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.IncludedPatterns) != 1 || cfg.IncludedPatterns[0] != "**/*.rb" {
		t.Errorf("IncludedPatterns = %v", cfg.IncludedPatterns)
	}
	if len(cfg.LoadPaths) != 1 || cfg.LoadPaths[0] != "lib" {
		t.Errorf("LoadPaths = %v", cfg.LoadPaths)
	}
	if len(cfg.MagicComments()) == 0 {
		t.Error("default magic comments missing")
	}
}

func TestLoadTOML(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, ConfigFileName, `
excluded_patterns = ["spec/**"]
load_paths = ["lib", "app"]
excluded_gems = ["rubocop"]
`)
	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.LoadPaths) != 2 {
		t.Errorf("LoadPaths = %v", cfg.LoadPaths)
	}
	if cfg.Indexable("spec/foo_spec.rb") {
		t.Error("excluded pattern should not be indexable")
	}
	if !cfg.Indexable("lib/foo.rb") {
		t.Error("lib/foo.rb should be indexable")
	}
}

func TestLoadMalformed(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, ConfigFileName, "load_paths = not toml")
	if _, err := Load(root); err == nil {
		t.Error("malformed config should error")
	}
}

func TestIndexableSkipsBuiltins(t *testing.T) {
	t.Parallel()
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		path string
		want bool
	}{
		{"lib/foo.rb", true},
		{"vendor/gems/foo.rb", false},
		{"sorbet/rbi/foo.rb", false},
		{"lib/foo.txt", false},
		{"node_modules/x/y.rb", false},
	}
	for _, c := range cases {
		if got := cfg.Indexable(c.path); got != c.want {
			t.Errorf("Indexable(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestIndexablePaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	writeFile(t, root, "lib/foo.rb", "class Foo; end\n")
	writeFile(t, root, "lib/bar/baz.rb", "class Baz; end\n")
	writeFile(t, root, "README.md", "nope\n")
	writeFile(t, root, "vendor/skip.rb", "class Skip; end\n")

	cfg, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	uris, err := cfg.IndexablePaths()
	if err != nil {
		t.Fatalf("IndexablePaths: %v", err)
	}
	if len(uris) != 2 {
		t.Fatalf("got %d paths, want 2: %v", len(uris), uris)
	}
}

func TestRequirePathFor(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	cfg, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}

	uri := location.NewFileURI(filepath.Join(root, "lib", "foo", "bar.rb"))
	if got := cfg.RequirePathFor(uri); got != "foo/bar" {
		t.Errorf("RequirePathFor = %q, want foo/bar", got)
	}

	outside := location.NewFileURI(filepath.Join(root, "spec", "bar_spec.rb"))
	if got := cfg.RequirePathFor(outside); got != "" {
		t.Errorf("RequirePathFor outside load paths = %q, want empty", got)
	}
}

func TestLoadGemPaths(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	// Under vendor/ the workspace walk skips them; only the gem roots
	// reach them.
	writeFile(t, root, "vendor/gems/activemodel-7.0/lib/active_model.rb", "module ActiveModel; end\n")
	writeFile(t, root, "vendor/gems/rubocop-1.0/lib/rubocop.rb", "module RuboCop; end\n")
	writeFile(t, root, ConfigFileName, `
gem_paths = ["vendor/gems/activemodel-7.0", "vendor/gems/rubocop-1.0"]
excluded_gems = ["rubocop"]
`)

	cfg, err := Load(root)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.GemPaths) != 2 {
		t.Fatalf("GemPaths = %v", cfg.GemPaths)
	}
	for _, p := range cfg.GemPaths {
		if !filepath.IsAbs(p) {
			t.Errorf("gem path %q not resolved against the workspace", p)
		}
	}

	uris, err := cfg.IndexablePaths()
	if err != nil {
		t.Fatalf("IndexablePaths: %v", err)
	}
	var sawActiveModel bool
	for _, uri := range uris {
		path := uri.FullPath()
		if filepath.Base(path) == "active_model.rb" {
			sawActiveModel = true
		}
		if filepath.Base(path) == "rubocop.rb" {
			t.Errorf("excluded gem file indexed: %s", path)
		}
	}
	if !sawActiveModel {
		t.Error("gem path file missing from indexable paths")
	}
}
