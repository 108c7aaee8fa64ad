// Package config controls what gets indexed and how documentation comments
// are extracted. Settings come from an optional rubyscope.toml in the
// workspace root, layered over defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	ignore "github.com/sabhiram/go-gitignore"

	"rubyscope/internal/location"
)

// ConfigFileName is looked up in the workspace root.
const ConfigFileName = "rubyscope.toml"

// Directories never worth indexing, regardless of patterns.
var skipDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"tmp":          {},
	"log":          {},
	"coverage":     {},
	"vendor":       {},
	".bundle":      {},
	"sorbet":       {},
}

// Magic comments stripped from documentation blocks.
var defaultMagicComments = []string{
	`^frozen_string_literal:`,
	`^typed:`,
	`^encoding:`,
	`^warn_indent:`,
	`^rubocop:`,
	`^shareable_constant_value:`,
	`^compiled:`,
}

// fileConfig is the raw TOML shape.
type fileConfig struct {
	IncludedPatterns      []string `toml:"included_patterns"`
	ExcludedPatterns      []string `toml:"excluded_patterns"`
	IncludedGems          []string `toml:"included_gems"`
	ExcludedGems          []string `toml:"excluded_gems"`
	LoadPaths             []string `toml:"load_paths"`
	GemPaths              []string `toml:"gem_paths"`
	ExcludedMagicComments []string `toml:"excluded_magic_comments"`
}

// Configuration holds the effective indexing settings for one workspace.
type Configuration struct {
	WorkspacePath string

	IncludedPatterns []string
	ExcludedPatterns []string
	IncludedGems     []string
	ExcludedGems     []string

	// LoadPaths are workspace-relative directories whose files are
	// requirable; they drive require-path computation.
	LoadPaths []string

	// GemPaths are additional absolute directories (installed dependencies)
	// to index alongside the workspace.
	GemPaths []string

	magicComments []*regexp.Regexp
	excluded      *ignore.GitIgnore
}

// Load builds the configuration for a workspace, reading rubyscope.toml when
// present. A missing file is not an error; a malformed one is.
func Load(workspacePath string) (*Configuration, error) {
	cfg := &Configuration{
		WorkspacePath:    workspacePath,
		IncludedPatterns: []string{"**/*.rb"},
		LoadPaths:        []string{"lib"},
	}

	var raw fileConfig
	path := filepath.Join(workspacePath, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &raw); err != nil {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	if len(raw.IncludedPatterns) > 0 {
		cfg.IncludedPatterns = raw.IncludedPatterns
	}
	cfg.ExcludedPatterns = raw.ExcludedPatterns
	cfg.IncludedGems = raw.IncludedGems
	cfg.ExcludedGems = raw.ExcludedGems
	if len(raw.LoadPaths) > 0 {
		cfg.LoadPaths = raw.LoadPaths
	}
	for _, p := range raw.GemPaths {
		if !filepath.IsAbs(p) {
			p = filepath.Join(workspacePath, p)
		}
		cfg.GemPaths = append(cfg.GemPaths, p)
	}

	magic := append([]string{}, defaultMagicComments...)
	magic = append(magic, raw.ExcludedMagicComments...)
	for _, pattern := range magic {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("excluded_magic_comments pattern %q: %w", pattern, err)
		}
		cfg.magicComments = append(cfg.magicComments, re)
	}

	if len(cfg.ExcludedPatterns) > 0 {
		cfg.excluded = ignore.CompileIgnoreLines(cfg.ExcludedPatterns...)
	}

	return cfg, nil
}

// MagicComments returns the compiled magic-comment patterns applied when
// extracting documentation.
func (c *Configuration) MagicComments() []*regexp.Regexp { return c.magicComments }

// SkipDir reports whether a directory name should be pruned from workspace
// walks and file watches.
func (c *Configuration) SkipDir(name string) bool {
	if _, skip := skipDirs[name]; skip {
		return true
	}
	return strings.HasPrefix(name, ".")
}

// Indexable reports whether a workspace-relative path should be indexed.
func (c *Configuration) Indexable(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	if !strings.HasSuffix(relPath, ".rb") {
		return false
	}
	for _, part := range strings.Split(relPath, "/") {
		if _, skip := skipDirs[part]; skip {
			return false
		}
	}
	if c.excluded != nil && c.excluded.MatchesPath(relPath) {
		return false
	}
	return true
}

// IndexablePaths walks the workspace (and any configured gem paths) and
// returns the URIs of every file worth indexing, sorted by path.
func (c *Configuration) IndexablePaths() ([]location.URI, error) {
	var paths []string

	collect := func(root string) error {
		return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable subtrees are skipped, not fatal
			}
			name := d.Name()
			if d.IsDir() {
				if path == root {
					return nil
				}
				if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&os.ModeSymlink != 0 {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return nil
			}
			if root == c.WorkspacePath && !c.Indexable(rel) {
				return nil
			}
			if root != c.WorkspacePath && !strings.HasSuffix(name, ".rb") {
				return nil
			}
			paths = append(paths, path)
			return nil
		})
	}

	if err := collect(c.WorkspacePath); err != nil {
		return nil, err
	}
	for _, gemPath := range c.GemPaths {
		if !c.gemIncluded(filepath.Base(gemPath)) {
			continue
		}
		if err := collect(gemPath); err != nil {
			return nil, err
		}
	}

	sort.Strings(paths)
	uris := make([]location.URI, len(paths))
	for i, p := range paths {
		uris[i] = location.NewFileURI(p)
	}
	return uris, nil
}

func (c *Configuration) gemIncluded(name string) bool {
	for _, excluded := range c.ExcludedGems {
		if strings.HasPrefix(name, excluded) {
			return false
		}
	}
	if len(c.IncludedGems) == 0 {
		return true
	}
	for _, included := range c.IncludedGems {
		if strings.HasPrefix(name, included) {
			return true
		}
	}
	return false
}

// RequirePathFor computes the requirable name for a file, or "" when the
// file is not under any load path: lib/foo/bar.rb -> "foo/bar".
func (c *Configuration) RequirePathFor(uri location.URI) string {
	full := uri.FullPath()
	if full == "" {
		return ""
	}
	rel, err := filepath.Rel(c.WorkspacePath, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	rel = filepath.ToSlash(rel)
	for _, loadPath := range c.LoadPaths {
		prefix := strings.TrimSuffix(filepath.ToSlash(loadPath), "/") + "/"
		if strings.HasPrefix(rel, prefix) {
			return strings.TrimSuffix(strings.TrimPrefix(rel, prefix), ".rb")
		}
	}
	return ""
}
