// Package index is the central declaration database: a name-keyed multimap
// of entries fed by the visitor, with incremental per-file update, lexical
// constant resolution, ancestor linearization, lazy alias resolution, and
// prefix/fuzzy search on top.
package index

import (
	"context"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"rubyscope/internal/config"
	"rubyscope/internal/entry"
	"rubyscope/internal/location"
	"rubyscope/internal/rubyast"
	"rubyscope/internal/visitor"
)

type cachedAncestors struct {
	hash  uint64
	names []string
}

// Index owns every entry. One RWMutex guards all internal structures so a
// reader never observes a file half-applied; resolutions that materialize
// aliases and cache fills also take the write lock.
type Index struct {
	cfg *config.Configuration

	mu          sync.RWMutex
	entries     map[string][]entry.Entry
	uriToNames  map[location.URI][]string
	names       *prefixTree[string]
	requires    *prefixTree[string]
	uriRequires map[location.URI]string
	ancestors   map[string]cachedAncestors
}

// New creates an empty index. cfg supplies magic-comment filters and
// require-path mapping; it must not be nil.
func New(cfg *config.Configuration) *Index {
	return &Index{
		cfg:         cfg,
		entries:     map[string][]entry.Entry{},
		uriToNames:  map[location.URI][]string{},
		names:       newPrefixTree[string](),
		requires:    newPrefixTree[string](),
		uriRequires: map[location.URI]string{},
		ancestors:   map[string]cachedAncestors{},
	}
}

// IndexFile parses source and replaces every entry previously contributed
// by uri. Reopened namespaces merge into the existing record; a file that
// fails to parse contributes zero entries and clears its old ones.
func (ix *Index) IndexFile(ctx context.Context, uri location.URI, source []byte) error {
	tree, err := rubyast.Parse(ctx, source)
	if err != nil {
		ix.Delete(uri)
		return err
	}
	defer tree.Close()

	res := visitor.Run(tree.RootNode(), source, uri, ix.cfg.MagicComments())

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.deleteLocked(uri)
	for _, e := range res.Entries {
		ix.addLocked(uri, e)
	}
	if rp := ix.cfg.RequirePathFor(uri); rp != "" {
		ix.requires.insert(rp, rp)
		ix.uriRequires[uri] = rp
	}
	ix.ancestors = map[string]cachedAncestors{}
	return nil
}

func (ix *Index) addLocked(uri location.URI, e entry.Entry) {
	name := e.Name()

	if ns, ok := e.(*entry.Namespace); ok {
		if existing := ix.namespaceLocked(name); existing != nil {
			for _, site := range ns.Sites() {
				existing.AddSite(site)
			}
			for _, m := range ns.Mixins() {
				existing.AddMixin(m)
			}
			ix.uriToNames[uri] = append(ix.uriToNames[uri], name)
			return
		}
	}

	ix.entries[name] = append(ix.entries[name], e)
	ix.names.insert(name, name)
	ix.uriToNames[uri] = append(ix.uriToNames[uri], name)
}

// Delete removes every entry contributed by uri. Namespace records reopened
// by other files lose only this file's declaration sites and mixins.
func (ix *Index) Delete(uri location.URI) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.deleteLocked(uri)
	ix.ancestors = map[string]cachedAncestors{}
}

func (ix *Index) deleteLocked(uri location.URI) {
	for _, name := range ix.uriToNames[uri] {
		list, ok := ix.entries[name]
		if !ok {
			continue
		}
		kept := list[:0]
		for _, e := range list {
			if ns, isNS := e.(*entry.Namespace); isNS {
				if ns.RemoveURI(uri) {
					kept = append(kept, e)
				}
				continue
			}
			if e.URI() != uri {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(ix.entries, name)
			ix.names.delete(name)
		} else {
			ix.entries[name] = kept
		}
	}
	delete(ix.uriToNames, uri)

	if rp, ok := ix.uriRequires[uri]; ok {
		ix.requires.delete(rp)
		delete(ix.uriRequires, uri)
	}
}

// IndexAll scans every indexable path in the configuration. Files parse in
// parallel; the merge itself is serialized by the index lock. Unreadable or
// unparsable files are skipped, consistent with best-effort indexing.
func (ix *Index) IndexAll(ctx context.Context) error {
	paths, err := ix.cfg.IndexablePaths()
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, uri := range paths {
		uri := uri
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			source, err := os.ReadFile(uri.FullPath())
			if err != nil {
				return nil
			}
			_ = ix.IndexFile(ctx, uri, source)
			return nil
		})
	}
	return g.Wait()
}

// EntriesFor returns the entries indexed under an exact name.
func (ix *Index) EntriesFor(name string) []entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	list := ix.entries[name]
	out := make([]entry.Entry, len(list))
	copy(out, list)
	return out
}

// FileEntries returns every entry whose record was contributed by uri,
// in indexing order. Namespace records are included when the file holds
// one of their declaration sites.
func (ix *Index) FileEntries(uri location.URI) []entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []entry.Entry
	seen := map[entry.Entry]bool{}
	for _, name := range ix.uriToNames[uri] {
		for _, e := range ix.entries[name] {
			if seen[e] {
				continue
			}
			if ns, ok := e.(*entry.Namespace); ok {
				if !namespaceHasURI(ns, uri) {
					continue
				}
			} else if e.URI() != uri {
				continue
			}
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func namespaceHasURI(ns *entry.Namespace, uri location.URI) bool {
	for _, s := range ns.Sites() {
		if s.URI == uri {
			return true
		}
	}
	return false
}

// namespaceLocked returns the namespace record stored under fqn, or nil.
func (ix *Index) namespaceLocked(fqn string) *entry.Namespace {
	for _, e := range ix.entries[fqn] {
		if ns, ok := e.(*entry.Namespace); ok {
			return ns
		}
	}
	return nil
}

// Len reports how many distinct names are indexed.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Names returns every indexed name in lexicographic order.
func (ix *Index) Names() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.names.search("")
}
