package index

import (
	"strings"

	"rubyscope/internal/entry"
)

// Resolve performs the lexical constant lookup: a name written under the
// given nesting resolves against progressively shorter nesting prefixes,
// innermost first, then top level. A leading :: makes the name absolute.
// Unresolved constant aliases encountered on the way are materialized in
// place, which is why this takes the write lock.
//
// A nil result means the name is not indexed; that is a normal outcome,
// not an error.
func (ix *Index) Resolve(name string, nesting []string) []entry.Entry {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	_, list := ix.resolveLocked(name, nesting, map[string]bool{})
	if list == nil {
		return nil
	}
	out := make([]entry.Entry, len(list))
	copy(out, list)
	return out
}

// ResolveFQN is Resolve but also reporting which fully qualified name won.
func (ix *Index) ResolveFQN(name string, nesting []string) (string, []entry.Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	fqn, list := ix.resolveLocked(name, nesting, map[string]bool{})
	out := make([]entry.Entry, len(list))
	copy(out, list)
	return fqn, out
}

func (ix *Index) resolveLocked(name string, nesting []string, seen map[string]bool) (string, []entry.Entry) {
	for _, candidate := range ix.candidates(name, nesting) {
		fqn := ix.substitutePrefixLocked(candidate, seen)
		if list := ix.entries[fqn]; len(list) > 0 {
			ix.materializeConstAliasesLocked(fqn, list, seen)
			return fqn, ix.entries[fqn]
		}
	}
	return "", nil
}

// substitutePrefixLocked rewrites aliased enclosing prefixes so that
// "Short::Inner" resolves under an alias declared for "Short". The terminal
// name is left alone: an alias entry stored under it is what resolution
// returns, not the target it points at.
func (ix *Index) substitutePrefixLocked(name string, seen map[string]bool) string {
	if len(ix.entries[name]) > 0 {
		return name
	}
	i := strings.LastIndex(name, "::")
	if i < 0 {
		return name
	}
	prefix := ix.followAliasLocked(name[:i], seen)
	if prefix == name[:i] {
		return name
	}
	return prefix + name[i:]
}

// candidates lists the fully qualified names to try, in lookup order.
func (ix *Index) candidates(name string, nesting []string) []string {
	if rest, ok := strings.CutPrefix(name, "::"); ok {
		return []string{rest}
	}
	out := make([]string, 0, len(nesting)+1)
	for i := len(nesting); i > 0; i-- {
		out = append(out, strings.Join(nesting[:i], "::")+"::"+name)
	}
	return append(out, name)
}

// FollowAliasedNamespace substitutes resolved namespace aliases until the
// name reaches a non-alias, including aliases of any enclosing prefix, so
// that "Short::Inner" follows an alias declared for "Short".
func (ix *Index) FollowAliasedNamespace(name string) string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.followAliasLocked(name, map[string]bool{})
}

func (ix *Index) followAliasLocked(name string, seen map[string]bool) string {
	if seen[name] {
		return name
	}
	seen[name] = true

	if list := ix.entries[name]; len(list) > 0 {
		switch e := list[0].(type) {
		case *entry.Alias:
			return ix.followAliasLocked(e.Target(), seen)
		case *entry.UnresolvedAlias:
			if resolved := ix.materializeOneConstAliasLocked(name, 0, e, seen); resolved != nil {
				return ix.followAliasLocked(resolved.Target(), seen)
			}
			return name
		default:
			return name
		}
	}

	// Not indexed directly: an enclosing prefix may be aliased.
	i := strings.LastIndex(name, "::")
	if i < 0 {
		return name
	}
	prefix := ix.followAliasLocked(name[:i], seen)
	if prefix == name[:i] {
		return name
	}
	return prefix + name[i:]
}

// materializeConstAliasesLocked retries resolution for every unresolved
// constant alias in the list, rewriting successes in place. Failures stay
// unresolved and are retried on the next lookup.
func (ix *Index) materializeConstAliasesLocked(fqn string, list []entry.Entry, seen map[string]bool) {
	for i, e := range list {
		if u, ok := e.(*entry.UnresolvedAlias); ok {
			ix.materializeOneConstAliasLocked(fqn, i, u, seen)
		}
	}
}

func (ix *Index) materializeOneConstAliasLocked(fqn string, i int, u *entry.UnresolvedAlias, seen map[string]bool) *entry.Alias {
	// Re-entry marker: alias cycles must not recurse through resolution.
	marker := "\x00" + fqn
	if seen[marker] {
		return nil
	}
	seen[marker] = true

	target, list := ix.resolveLocked(u.Target(), u.Nesting(), seen)
	if len(list) == 0 || target == fqn {
		return nil
	}
	resolved := entry.NewAlias(u, target)
	ix.entries[fqn][i] = resolved
	return resolved
}

// ResolveMethod walks the receiver's linearized ancestors and returns the
// first ancestor's members named name, so methods on the receiver itself
// shadow inherited ones. inheritedOnly skips the receiver, which is how
// super targets are found. Unresolved method aliases materialize here.
func (ix *Index) ResolveMethod(name, receiver string, inheritedOnly bool) ([]entry.Member, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.resolveMethodLocked(name, receiver, inheritedOnly, map[string]bool{})
}

func (ix *Index) resolveMethodLocked(name, receiver string, inheritedOnly bool, following map[string]bool) ([]entry.Member, error) {
	ancestors, err := ix.linearizedLocked(receiver, map[string]bool{})
	if err != nil {
		return nil, err
	}

	for _, ancestor := range ancestors {
		if inheritedOnly && ancestor == receiver {
			continue
		}
		var found []entry.Member
		for i, e := range ix.entries[name] {
			m, ok := e.(entry.Member)
			if !ok || m.Owner() != ancestor {
				continue
			}
			if u, isAlias := e.(*entry.UnresolvedMethodAlias); isAlias {
				resolved := ix.materializeMethodAliasLocked(name, i, u, following)
				if resolved == nil {
					continue
				}
				m = resolved
			}
			found = append(found, m)
		}
		if len(found) > 0 {
			return found, nil
		}
	}
	return nil, nil
}

func (ix *Index) materializeMethodAliasLocked(name string, i int, u *entry.UnresolvedMethodAlias, following map[string]bool) *entry.MethodAlias {
	key := u.Owner() + "#" + u.OldName()
	if following[key] {
		return nil
	}
	following[key] = true

	owner := u.Owner()
	if owner == "" {
		return nil
	}
	targets, err := ix.resolveMethodLocked(u.OldName(), owner, false, following)
	if err != nil || len(targets) == 0 {
		return nil
	}
	resolved := entry.NewMethodAlias(u, targets[0])
	ix.entries[name][i] = resolved
	return resolved
}
