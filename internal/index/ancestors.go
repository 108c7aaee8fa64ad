package index

import (
	"fmt"

	"rubyscope/internal/entry"
)

// NonExistingNamespaceError reports that ancestry was requested for a name
// with no indexed namespace record. Callers degrade per-node: skip the
// feature for that reference, never fail the whole request.
type NonExistingNamespaceError struct {
	Name string
}

func (e *NonExistingNamespaceError) Error() string {
	return fmt.Sprintf("namespace %q is not indexed", e.Name)
}

// LinearizedAncestors computes the method resolution order for a fully
// qualified namespace name:
//
//	prepends (reverse declaration order, recursively linearized)
//	the namespace itself
//	includes (reverse declaration order, recursively linearized)
//	the superclass chain
//
// Later mixins rank closer to the front, so the last include wins. Classes
// without an explicit parent fall back to Object when Object is indexed.
// Results are cached per name; the cache entry stores the namespace's
// ancestor hash and is recomputed when the hash has drifted.
func (ix *Index) LinearizedAncestors(name string) ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	names, err := ix.linearizedLocked(name, map[string]bool{})
	if err != nil {
		return nil, err
	}
	// The cache keeps the computed slice; callers get their own copy.
	out := make([]string, len(names))
	copy(out, names)
	return out, nil
}

func (ix *Index) linearizedLocked(name string, visited map[string]bool) ([]string, error) {
	// Cycle guard: a namespace revisited during its own linearization
	// resolves to itself rather than recursing.
	if visited[name] {
		return []string{name}, nil
	}

	ns := ix.namespaceLocked(name)
	if ns == nil {
		return nil, &NonExistingNamespaceError{Name: name}
	}

	if cached, ok := ix.ancestors[name]; ok && cached.hash == ns.AncestorHash() {
		return cached.names, nil
	}

	top := len(visited) == 0
	visited[name] = true
	var out []string

	mixins := ns.Mixins()
	if attached, ok := entry.AttachedName(name); ok {
		// A module extended into a namespace behaves as an include on
		// that namespace's singleton class.
		if ans := ix.namespaceLocked(attached); ans != nil {
			for _, m := range ans.Mixins() {
				if m.Kind == entry.MixinExtend {
					mixins = append(mixins, entry.Mixin{
						Kind:    entry.MixinInclude,
						Module:  m.Module,
						Nesting: m.Nesting,
						URI:     m.URI,
					})
				}
			}
		}
	}

	for i := len(mixins) - 1; i >= 0; i-- {
		if mixins[i].Kind == entry.MixinPrepend {
			out = ix.appendLinearized(out, mixins[i].Module, mixins[i].Nesting, visited)
		}
	}

	out = append(out, name)

	for i := len(mixins) - 1; i >= 0; i-- {
		if mixins[i].Kind == entry.MixinInclude {
			out = ix.appendLinearized(out, mixins[i].Module, mixins[i].Nesting, visited)
		}
	}

	out = ix.appendSuperclasses(out, name, ns, visited)
	out = dedupe(out)

	if top {
		// Nested results may be truncated by the cycle guard above them;
		// only top-level linearizations are cached.
		ix.ancestors[name] = cachedAncestors{hash: ns.AncestorHash(), names: out}
	}
	return out, nil
}

// appendLinearized resolves a mixin module name under its recorded nesting
// and appends its linearization. Unindexed modules are skipped: the index
// is a best-effort approximation and absence is not an error.
func (ix *Index) appendLinearized(out []string, module string, nesting []string, visited map[string]bool) []string {
	fqn, list := ix.resolveLocked(module, nesting, map[string]bool{})
	if len(list) == 0 {
		return out
	}
	// The resolved name may be a constant alias; the chain needs the
	// namespace it points at.
	fqn = ix.followAliasLocked(fqn, map[string]bool{})
	chain, err := ix.linearizedLocked(fqn, visited)
	if err != nil {
		return out
	}
	return append(out, chain...)
}

func (ix *Index) appendSuperclasses(out []string, name string, ns *entry.Namespace, visited map[string]bool) []string {
	switch ns.Kind() {
	case entry.KindClass:
		if sup, nesting, ok := ns.Superclass(); ok {
			return ix.appendLinearized(out, sup, nesting, visited)
		}
		// No explicit parent: default to Object, silently skipped when
		// Object itself is not indexed. Object and BasicObject end the
		// chain instead of defaulting to themselves.
		if name != "Object" && name != "BasicObject" {
			if ix.namespaceLocked("Object") != nil {
				return ix.appendLinearized(out, "Object", nil, visited)
			}
		}
	case entry.KindSingletonClass:
		// The singleton's superclass is the superclass's singleton, when
		// both are indexed.
		attached, ok := entry.AttachedName(name)
		if !ok {
			return out
		}
		ans := ix.namespaceLocked(attached)
		if ans == nil {
			return out
		}
		if sup, nesting, ok := ans.Superclass(); ok {
			fqn, list := ix.resolveLocked(sup, nesting, map[string]bool{})
			if len(list) == 0 {
				return out
			}
			singleton := entry.SingletonName(ix.followAliasLocked(fqn, map[string]bool{}))
			if ix.namespaceLocked(singleton) != nil {
				chain, err := ix.linearizedLocked(singleton, visited)
				if err == nil {
					return append(out, chain...)
				}
			}
		}
	}
	return out
}

// dedupe keeps the first occurrence of each name, preserving order.
func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
