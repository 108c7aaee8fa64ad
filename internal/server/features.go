package server

import (
	"context"
	"errors"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"rubyscope/internal/entry"
	"rubyscope/internal/index"
	"rubyscope/internal/location"
	"rubyscope/internal/rubyast"
)

// cursor bundles everything position-based features need: the node under
// the editor position and the lexical nesting around it. close releases the
// parse tree.
type cursor struct {
	source  []byte
	tree    *sitter.Tree
	node    *sitter.Node
	nesting []string
}

func (c *cursor) close() {
	if c.tree != nil {
		c.tree.Close()
	}
}

func (c *cursor) enclosing() string {
	return strings.Join(c.nesting, "::")
}

func (s *Server) cursorAt(rawURI protocol.DocumentUri, pos protocol.Position) (*cursor, bool) {
	uri := location.ParseURI(string(rawURI))
	source, ok := s.sourceFor(uri)
	if !ok {
		return nil, false
	}
	tree, err := rubyast.Parse(context.Background(), source)
	if err != nil {
		return nil, false
	}
	node := rubyast.NodeAtPosition(tree.RootNode(), source, fromProtocolPosition(pos))
	if node == nil {
		tree.Close()
		return nil, false
	}
	return &cursor{
		source:  source,
		tree:    tree,
		node:    node,
		nesting: rubyast.NestingAt(node, source),
	}, true
}

func (s *Server) textDocumentDefinition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	c, ok := s.cursorAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}
	defer c.close()

	var found []entry.Entry
	if rubyast.IsConstantNode(c.node) {
		path, _ := rubyast.ConstantPath(c.node, c.source)
		found = s.ix.Resolve(path, c.nesting)
	} else if isMethodName(c.node) {
		found = s.methodEntries(rubyast.NodeText(c.node, c.source), c.enclosing())
	}
	if len(found) == 0 {
		return nil, nil
	}

	locations := make([]protocol.Location, 0, len(found))
	for _, e := range found {
		if e.URI().IsUntitled() {
			continue
		}
		locations = append(locations, entryLocation(e))
	}
	return locations, nil
}

func (s *Server) textDocumentHover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	c, ok := s.cursorAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}
	defer c.close()

	var (
		fqn     string
		found   []entry.Entry
		hovered = c.node
	)
	if rubyast.IsConstantNode(c.node) {
		path, pathNode := rubyast.ConstantPath(c.node, c.source)
		hovered = pathNode
		fqn, found = s.ix.ResolveFQN(path, c.nesting)
	} else if isMethodName(c.node) {
		name := rubyast.NodeText(c.node, c.source)
		fqn = name
		found = s.methodEntries(name, c.enclosing())
	}
	if len(found) == 0 {
		return nil, nil
	}

	rng := toProtocolRange(rubyast.NodeRange(hovered))
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: hoverMarkdown(entryTitle(fqn, found[0]), found[0]),
		},
		Range: &rng,
	}, nil
}

func (s *Server) textDocumentCompletion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	c, ok := s.cursorAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}
	defer c.close()

	if prefix, ok := requireArgument(c.node, c.source); ok {
		return s.requirePathItems(prefix), nil
	}

	if rubyast.IsConstantNode(c.node) {
		path, _ := rubyast.ConstantPath(c.node, c.source)
		return s.constantItems(path, c.nesting), nil
	}

	if isMethodName(c.node) {
		return s.methodItems(rubyast.NodeText(c.node, c.source), c.enclosing()), nil
	}
	return nil, nil
}

func (s *Server) constantItems(prefix string, nesting []string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, group := range s.ix.ConstantCompletionCandidates(prefix, nesting) {
		e := group[0]
		items = append(items, protocol.CompletionItem{
			Label:  lastSegment(e.Name()),
			Kind:   ptr(completionKind(e)),
			Detail: ptr(e.Name()),
		})
	}
	return items
}

func (s *Server) methodItems(prefix, receiver string) []protocol.CompletionItem {
	if receiver == "" {
		return nil
	}
	members, err := s.ix.MethodCompletionCandidates(prefix, receiver)
	if err != nil {
		return nil
	}
	items := make([]protocol.CompletionItem, 0, len(members))
	for _, m := range members {
		detail := m.Owner()
		if sigs := m.Signatures(); len(sigs) > 0 {
			detail = m.Name() + sigs[0].Label()
		}
		items = append(items, protocol.CompletionItem{
			Label:  m.Name(),
			Kind:   ptr(protocol.CompletionItemKindMethod),
			Detail: ptr(detail),
		})
	}
	return items
}

func (s *Server) requirePathItems(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, path := range s.ix.RequirePathSearch(prefix) {
		items = append(items, protocol.CompletionItem{
			Label: path,
			Kind:  ptr(protocol.CompletionItemKindFile),
		})
	}
	return items
}

func (s *Server) textDocumentSignatureHelp(_ *glsp.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	c, ok := s.cursorAt(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}
	defer c.close()

	call := enclosingCall(c.node)
	if call == nil {
		return nil, nil
	}
	method := call.ChildByFieldName("method")
	if method == nil {
		return nil, nil
	}
	name := rubyast.NodeText(method, c.source)
	args := rubyast.CallArguments(call.ChildByFieldName("arguments"), c.source)

	members := s.methodMembers(name, s.callReceiver(call, c))
	var signatures []protocol.SignatureInformation
	for _, m := range members {
		for _, sig := range m.Signatures() {
			if !sig.Matches(args) {
				continue
			}
			info := protocol.SignatureInformation{Label: name + sig.Label()}
			for _, p := range sig.Parameters {
				info.Parameters = append(info.Parameters, protocol.ParameterInformation{Label: p.Label()})
			}
			signatures = append(signatures, info)
		}
	}
	if len(signatures) == 0 {
		return nil, nil
	}

	active := protocol.UInteger(len(args))
	return &protocol.SignatureHelp{
		Signatures:      signatures,
		ActiveSignature: ptr(protocol.UInteger(0)),
		ActiveParameter: &active,
	}, nil
}

// callReceiver maps a call node to the namespace its method resolves
// against: explicit constant receivers resolve to that constant's singleton
// (class-level call), everything else uses the lexical namespace.
func (s *Server) callReceiver(call *sitter.Node, c *cursor) string {
	receiver := call.ChildByFieldName("receiver")
	if receiver != nil && rubyast.IsConstantNode(receiver) {
		path, _ := rubyast.ConstantPath(receiver, c.source)
		if fqn, list := s.ix.ResolveFQN(path, c.nesting); len(list) > 0 {
			return entry.SingletonName(fqn)
		}
		return ""
	}
	return c.enclosing()
}

// methodMembers resolves a method against a receiver, trying the
// receiver's singleton as well so both instance and class-level call sites
// find their targets. Missing namespaces degrade to a name-only lookup.
func (s *Server) methodMembers(name, receiver string) []entry.Member {
	if receiver != "" {
		for _, candidate := range []string{receiver, entry.SingletonName(receiver)} {
			members, err := s.ix.ResolveMethod(name, candidate, false)
			if err != nil {
				var missing *index.NonExistingNamespaceError
				if !errors.As(err, &missing) {
					return nil
				}
				continue
			}
			if len(members) > 0 {
				return members
			}
		}
	}

	var members []entry.Member
	for _, e := range s.ix.EntriesFor(name) {
		if m, ok := e.(entry.Member); ok {
			members = append(members, m)
		}
	}
	return members
}

func (s *Server) methodEntries(name, receiver string) []entry.Entry {
	members := s.methodMembers(name, receiver)
	out := make([]entry.Entry, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

func isMethodName(node *sitter.Node) bool {
	switch node.Type() {
	case "identifier", "operator", "setter":
		return true
	}
	return false
}

func enclosingCall(node *sitter.Node) *sitter.Node {
	for n := node; n != nil; n = n.Parent() {
		if n.Type() == "call" {
			return n
		}
	}
	return nil
}

// requireArgument detects completion inside the string argument of a
// require or require_relative call and returns the typed prefix.
func requireArgument(node *sitter.Node, source []byte) (string, bool) {
	str := node
	for str != nil && str.Type() != "string" {
		str = str.Parent()
	}
	if str == nil {
		return "", false
	}
	call := enclosingCall(str)
	if call == nil {
		return "", false
	}
	method := call.ChildByFieldName("method")
	if method == nil {
		return "", false
	}
	switch rubyast.NodeText(method, source) {
	case "require", "require_relative":
	default:
		return "", false
	}
	return strings.Trim(rubyast.NodeText(str, source), `"'`), true
}
