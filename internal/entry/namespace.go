package entry

import (
	"hash/fnv"
	"regexp"
	"strings"

	"rubyscope/internal/location"
)

// NamespaceKind distinguishes the three declaration forms ancestry is
// computed over.
type NamespaceKind int

const (
	KindModule NamespaceKind = iota
	KindClass
	KindSingletonClass
)

func (k NamespaceKind) String() string {
	switch k {
	case KindClass:
		return "class"
	case KindSingletonClass:
		return "singleton class"
	default:
		return "module"
	}
}

// MixinKind is the operation that attached a module to a namespace.
type MixinKind int

const (
	MixinInclude MixinKind = iota
	MixinPrepend
	MixinExtend
)

func (k MixinKind) String() string {
	switch k {
	case MixinPrepend:
		return "prepend"
	case MixinExtend:
		return "extend"
	default:
		return "include"
	}
}

// Mixin is one include/prepend/extend operation in exact source order.
// Module is the unresolved module name as written; Nesting is the lexical
// nesting at the call site, needed to resolve it later. URI tracks which
// file contributed the operation so deindexing that file removes exactly
// its mixins.
type Mixin struct {
	Kind    MixinKind
	Module  string
	Nesting []string
	URI     location.URI
}

// DeclarationSite is one place a namespace was opened. Reopening the same
// fully qualified name in other files (or twice in one file) adds sites to
// the same Namespace record rather than creating a second record.
type DeclarationSite struct {
	URI          location.URI
	Location     location.Range
	NameLocation location.Range
	Nesting      []string

	// Superclass is the unresolved superclass name written at this site.
	// Empty for modules and for class sites without an explicit parent.
	Superclass string

	rawComments string
	magic       []*regexp.Regexp
}

// NewDeclarationSite records one opening of a namespace.
func NewDeclarationSite(uri location.URI, loc, nameLoc location.Range, nesting []string, superclass, rawComments string, magic []*regexp.Regexp) DeclarationSite {
	return DeclarationSite{
		URI:          uri,
		Location:     loc,
		NameLocation: nameLoc,
		Nesting:      nesting,
		Superclass:   superclass,
		rawComments:  rawComments,
		magic:        magic,
	}
}

// Comments returns the filtered documentation block for this site.
func (s *DeclarationSite) Comments() string {
	return filterComments(s.rawComments, s.magic)
}

// Namespace is a class, module, or singleton class. One record exists per
// fully qualified name; it accumulates declaration sites and mixin
// operations from every file that opens the namespace.
type Namespace struct {
	name   string
	kind   NamespaceKind
	sites  []DeclarationSite
	mixins []Mixin
}

// NewNamespace creates a namespace record with a single declaration site.
func NewNamespace(name string, kind NamespaceKind, site DeclarationSite) *Namespace {
	return &Namespace{name: name, kind: kind, sites: []DeclarationSite{site}}
}

func (n *Namespace) Name() string        { return n.name }
func (n *Namespace) Kind() NamespaceKind { return n.kind }

func (n *Namespace) URI() location.URI            { return n.sites[0].URI }
func (n *Namespace) Location() location.Range     { return n.sites[0].Location }
func (n *Namespace) NameLocation() location.Range { return n.sites[0].NameLocation }
func (n *Namespace) Visibility() Visibility       { return VisibilityPublic }

// Comments joins the documentation from every declaration site, so a class
// documented at one reopening keeps its docs when looked up from another.
func (n *Namespace) Comments() string {
	var parts []string
	for i := range n.sites {
		if c := n.sites[i].Comments(); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Sites returns every declaration site, oldest first.
func (n *Namespace) Sites() []DeclarationSite { return n.sites }

// Mixins returns the accumulated mixin operations in source/merge order.
func (n *Namespace) Mixins() []Mixin { return n.mixins }

// AddSite merges another opening of the namespace into this record.
func (n *Namespace) AddSite(site DeclarationSite) { n.sites = append(n.sites, site) }

// AddMixin appends a mixin operation. Order is preserved exactly; it
// determines linearization precedence.
func (n *Namespace) AddMixin(m Mixin) { n.mixins = append(n.mixins, m) }

// Superclass returns the first explicit superclass recorded across sites,
// with the nesting in effect where it was written. ok is false when no site
// names a parent.
func (n *Namespace) Superclass() (name string, nesting []string, ok bool) {
	for i := range n.sites {
		if n.sites[i].Superclass != "" {
			return n.sites[i].Superclass, n.sites[i].Nesting, true
		}
	}
	return "", nil, false
}

// RemoveURI drops every declaration site and mixin operation contributed by
// uri and reports whether any site survives. A namespace with zero sites is
// deleted from the index by the caller.
func (n *Namespace) RemoveURI(uri location.URI) bool {
	sites := n.sites[:0]
	for _, s := range n.sites {
		if s.URI != uri {
			sites = append(sites, s)
		}
	}
	n.sites = sites

	mixins := n.mixins[:0]
	for _, m := range n.mixins {
		if m.URI != uri {
			mixins = append(mixins, m)
		}
	}
	n.mixins = mixins

	return len(n.sites) > 0
}

// AncestorHash is a structural hash of everything that contributes to this
// namespace's ancestry: its kind, ordered mixin operations, and superclass
// names. Cached linearizations compare it at read time to detect staleness.
func (n *Namespace) AncestorHash() uint64 {
	h := fnv.New64a()
	h.Write([]byte{byte(n.kind)})
	for _, m := range n.mixins {
		h.Write([]byte{0, byte(m.Kind)})
		h.Write([]byte(m.Module))
		for _, seg := range m.Nesting {
			h.Write([]byte{1})
			h.Write([]byte(seg))
		}
	}
	for i := range n.sites {
		if n.sites[i].Superclass != "" {
			h.Write([]byte{2})
			h.Write([]byte(n.sites[i].Superclass))
		}
	}
	return h.Sum64()
}

// SingletonName derives the name of a namespace's singleton class, e.g.
// "A::B" -> "A::B::<Class:B>". Methods defined with `self.` or inside
// `class << self` are owned by the singleton.
func SingletonName(attached string) string {
	last := attached
	if i := strings.LastIndex(attached, "::"); i >= 0 {
		last = attached[i+2:]
	}
	return attached + "::<Class:" + last + ">"
}

// AttachedName is the inverse of SingletonName. ok is false when name is
// not a singleton class name.
func AttachedName(name string) (string, bool) {
	i := strings.LastIndex(name, "::<Class:")
	if i < 0 || !strings.HasSuffix(name, ">") {
		return "", false
	}
	return name[:i], true
}
