package index

import (
	"sort"
	"strings"

	"rubyscope/internal/entry"
)

// PrefixSearch returns entries whose name starts with query, grouped by full
// name. The same innermost-to-outermost nesting order as Resolve applies, so
// a partial name typed inside A::B surfaces A::B's constants first.
func (ix *Index) PrefixSearch(query string, nesting []string) [][]entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out [][]entry.Entry
	seen := map[string]bool{}
	for _, candidate := range ix.candidates(query, nesting) {
		for _, name := range ix.names.search(candidate) {
			if seen[name] {
				continue
			}
			seen[name] = true
			group := make([]entry.Entry, len(ix.entries[name]))
			copy(group, ix.entries[name])
			out = append(out, group)
		}
	}
	return out
}

// ConstantCompletionCandidates is PrefixSearch narrowed to constant-like
// entries: namespaces, constants, and constant aliases.
func (ix *Index) ConstantCompletionCandidates(query string, nesting []string) [][]entry.Entry {
	groups := ix.PrefixSearch(query, nesting)
	out := groups[:0]
	for _, group := range groups {
		kept := make([]entry.Entry, 0, len(group))
		for _, e := range group {
			switch e.(type) {
			case *entry.Namespace, *entry.Constant, *entry.Alias, *entry.UnresolvedAlias:
				kept = append(kept, e)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}

// MethodCompletionCandidates returns members whose name starts with query
// and whose owner appears in the receiver's ancestor chain, ordered by
// ancestor proximity so the receiver's own methods come first.
func (ix *Index) MethodCompletionCandidates(query, receiver string) ([]entry.Member, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ancestors, err := ix.linearizedLocked(receiver, map[string]bool{})
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(ancestors))
	for i, a := range ancestors {
		rank[a] = i
	}

	type ranked struct {
		member entry.Member
		rank   int
	}
	var found []ranked
	seen := map[string]bool{}
	for _, name := range ix.names.search(query) {
		for _, e := range ix.entries[name] {
			m, ok := e.(entry.Member)
			if !ok {
				continue
			}
			r, inChain := rank[m.Owner()]
			if !inChain || seen[m.Name()] {
				continue
			}
			seen[m.Name()] = true
			found = append(found, ranked{member: m, rank: r})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].rank < found[j].rank })

	out := make([]entry.Member, len(found))
	for i, f := range found {
		out[i] = f.member
	}
	return out, nil
}

// FuzzySearch matches query as a case-insensitive subsequence of indexed
// names, scored by match compactness. Used for workspace symbol queries.
// An empty query returns everything.
func (ix *Index) FuzzySearch(query string) []entry.Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type scored struct {
		name  string
		score float64
	}
	var matches []scored
	for _, name := range ix.names.search("") {
		if score, ok := fuzzyScore(query, name); ok {
			matches = append(matches, scored{name: name, score: score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	var out []entry.Entry
	for _, m := range matches {
		out = append(out, ix.entries[m.name]...)
	}
	return out
}

// fuzzyScore reports whether query is a subsequence of name and how tightly
// it matches: adjacent matched characters and shorter names score higher.
func fuzzyScore(query, name string) (float64, bool) {
	if query == "" {
		return 0, true
	}
	q := strings.ToLower(query)
	n := strings.ToLower(name)

	score := 0.0
	last := -1
	qi := 0
	for i := 0; i < len(n) && qi < len(q); i++ {
		if n[i] != q[qi] {
			continue
		}
		if last == i-1 {
			score += 2
		} else {
			score++
		}
		last = i
		qi++
	}
	if qi < len(q) {
		return 0, false
	}
	return score / float64(len(n)), true
}

// RequirePathSearch completes require statements: every indexed require
// path starting with prefix, in lexicographic order.
func (ix *Index) RequirePathSearch(prefix string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.requires.search(prefix)
}
