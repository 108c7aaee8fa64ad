package server

import (
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"rubyscope/internal/entry"
	"rubyscope/internal/location"
)

// symbolNode is a mutable DocumentSymbol while the tree is being assembled.
// The protocol struct holds children by value, so building in place would
// lose grandchildren appended after a parent was attached.
type symbolNode struct {
	sym      protocol.DocumentSymbol
	children []*symbolNode
}

func (n *symbolNode) finish() protocol.DocumentSymbol {
	for _, c := range n.children {
		n.sym.Children = append(n.sym.Children, c.finish())
	}
	return n.sym
}

func (s *Server) textDocumentDocumentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	if s.ix == nil {
		return nil, nil
	}
	uri := location.ParseURI(string(params.TextDocument.URI))
	entries := s.ix.FileEntries(uri)
	if len(entries) == 0 {
		return nil, nil
	}

	var roots []*symbolNode
	byName := map[string]*symbolNode{}
	attach := func(parent string, node *symbolNode) {
		if p, ok := byName[parent]; ok && parent != "" {
			p.children = append(p.children, node)
			return
		}
		roots = append(roots, node)
	}

	// Namespaces first so members emitted before a reopening still nest.
	for _, e := range entries {
		ns, ok := e.(*entry.Namespace)
		if !ok {
			continue
		}
		full, sel := namespaceRanges(ns, uri)
		node := &symbolNode{sym: protocol.DocumentSymbol{
			Name:           lastSegment(ns.Name()),
			Kind:           symbolKind(ns),
			Range:          full,
			SelectionRange: sel,
		}}
		byName[ns.Name()] = node
		attach(parentName(ns.Name()), node)
	}

	for _, e := range entries {
		if _, ok := e.(*entry.Namespace); ok {
			continue
		}
		r := toProtocolRange(e.Location())
		sel := toProtocolRange(e.NameLocation())
		node := &symbolNode{sym: protocol.DocumentSymbol{
			Name:           lastSegment(e.Name()),
			Detail:         symbolDetail(e),
			Kind:           symbolKind(e),
			Range:          r,
			SelectionRange: sel,
		}}
		attach(entryContainer(e), node)
	}

	symbols := make([]protocol.DocumentSymbol, 0, len(roots))
	for _, n := range roots {
		symbols = append(symbols, n.finish())
	}
	return symbols, nil
}

func (s *Server) workspaceSymbol(_ *glsp.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	if s.ix == nil {
		return nil, nil
	}
	var results []protocol.SymbolInformation
	for _, e := range s.ix.FuzzySearch(params.Query) {
		info := protocol.SymbolInformation{
			Name:     lastSegment(e.Name()),
			Kind:     symbolKind(e),
			Location: entryLocation(e),
		}
		if container := entryContainer(e); container != "" {
			info.ContainerName = ptr(container)
		}
		results = append(results, info)
	}
	return results, nil
}

// namespaceRanges picks the declaration site belonging to uri. A namespace
// reopened across files keeps one record per name, so sites[0] may point
// elsewhere.
func namespaceRanges(ns *entry.Namespace, uri location.URI) (full, sel protocol.Range) {
	for _, site := range ns.Sites() {
		if site.URI == uri {
			return toProtocolRange(site.Location), toProtocolRange(site.NameLocation)
		}
	}
	return toProtocolRange(ns.Location()), toProtocolRange(ns.NameLocation())
}

// entryContainer names the symbol an entry nests under, or "" for top level.
func entryContainer(e entry.Entry) string {
	switch v := e.(type) {
	case entry.Member:
		return v.Owner()
	case *entry.InstanceVariable:
		return v.Owner()
	case *entry.ClassVariable:
		return v.Owner()
	case *entry.Namespace:
		return parentName(v.Name())
	case *entry.GlobalVariable:
		return ""
	default:
		// Constants and aliases carry their container in the name.
		return parentName(e.Name())
	}
}

func parentName(fqn string) string {
	if i := strings.LastIndex(fqn, "::"); i >= 0 {
		return fqn[:i]
	}
	return ""
}

func symbolDetail(e entry.Entry) *string {
	m, ok := e.(entry.Member)
	if !ok {
		return nil
	}
	sigs := m.Signatures()
	if len(sigs) == 0 {
		return nil
	}
	return ptr(sigs[0].Label())
}
