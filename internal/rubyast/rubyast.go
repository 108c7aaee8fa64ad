// Package rubyast wraps the tree-sitter Ruby grammar: parsing, node text
// and range helpers, leading-comment extraction, and position lookups used
// to translate editor coordinates into syntax nodes.
package rubyast

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"rubyscope/internal/entry"
	"rubyscope/internal/location"
)

// NewParser creates a fresh parser configured for Ruby. Parsers are not
// thread-safe; each goroutine needs its own.
func NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(ruby.GetLanguage())
	return p
}

// Parse parses source and returns the syntax tree. Tree-sitter recovers
// from syntax errors, so mid-edit files still produce a best-effort tree;
// callers walk whatever parsed.
func Parse(ctx context.Context, source []byte) (*sitter.Tree, error) {
	return NewParser().ParseCtx(ctx, nil, source)
}

// NodeText returns the source text of a node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// NodeRange converts a node's span to a location range (1-based lines,
// 0-based columns).
func NodeRange(node *sitter.Node) location.Range {
	start := node.StartPoint()
	end := node.EndPoint()
	return location.Range{
		Start: location.Position{Line: int(start.Row) + 1, Column: int(start.Column)},
		End:   location.Position{Line: int(end.Row) + 1, Column: int(end.Column)},
	}
}

// LeadingComments collects the contiguous block of comment lines
// immediately above a declaration node, in source order. A blank line (or
// any other node) breaks the block.
func LeadingComments(node *sitter.Node, source []byte) string {
	var lines []string
	expectedRow := int(node.StartPoint().Row) - 1

	sibling := node.PrevNamedSibling()
	for sibling != nil && sibling.Type() == "comment" {
		row := int(sibling.EndPoint().Row)
		if row != expectedRow {
			break
		}
		lines = append(lines, NodeText(sibling, source))
		expectedRow = int(sibling.StartPoint().Row) - 1
		sibling = sibling.PrevNamedSibling()
	}

	// Collected bottom-up; restore source order.
	for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
		lines[i], lines[j] = lines[j], lines[i]
	}
	return strings.Join(lines, "\n")
}

// ByteOffset converts a position to a byte offset within source. ok is
// false when the position does not exist in the document.
func ByteOffset(source []byte, pos location.Position) (int, bool) {
	line := 1
	offset := 0
	for offset < len(source) && line < pos.Line {
		if source[offset] == '\n' {
			line++
		}
		offset++
	}
	if line != pos.Line {
		return 0, false
	}
	end := offset
	for end < len(source) && source[end] != '\n' {
		end++
	}
	if offset+pos.Column > end {
		return 0, false
	}
	return offset + pos.Column, true
}

// NodeAtPosition returns the smallest named node containing the position,
// or nil when the position is outside the tree. An editor cursor sits after
// the token just typed, so when the node ending exactly at the position is
// deeper than the containing one, it wins: completion after "Us" must see
// the constant, not the surrounding body.
func NodeAtPosition(root *sitter.Node, source []byte, pos location.Position) *sitter.Node {
	offset, ok := ByteOffset(source, pos)
	if !ok {
		return nil
	}
	target := uint32(offset)

	node := deepestNodeAt(root, target)
	if target > 0 {
		prev := deepestNodeAt(root, target-1)
		if prev != nil && prev.EndByte() == target &&
			(node == nil || prev.EndByte()-prev.StartByte() < node.EndByte()-node.StartByte()) {
			return prev
		}
	}
	return node
}

func deepestNodeAt(root *sitter.Node, target uint32) *sitter.Node {
	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.StartByte() <= target && target < child.EndByte() {
				next = child
				break
			}
		}
		if next == nil {
			if node == root && !(root.StartByte() <= target && target < root.EndByte()) {
				return nil
			}
			return node
		}
		node = next
	}
}

// NestingAt returns the lexical namespace nesting enclosing a node,
// outermost first, the way a constant reference at that point would see it.
func NestingAt(node *sitter.Node, source []byte) []string {
	var nesting []string
	current := node.Parent()
	for current != nil {
		switch current.Type() {
		case "class", "module":
			if name := current.ChildByFieldName("name"); name != nil {
				nesting = append(nesting, NodeText(name, source))
			}
		}
		current = current.Parent()
	}
	// Collected innermost-first; callers expect outermost-first.
	for i, j := 0, len(nesting)-1; i < j; i, j = i+1, j-1 {
		nesting[i], nesting[j] = nesting[j], nesting[i]
	}
	return nesting
}

// IsConstantNode reports whether the node is a constant reference
// (a bare constant or a scope-resolution path).
func IsConstantNode(node *sitter.Node) bool {
	switch node.Type() {
	case "constant", "scope_resolution":
		return true
	}
	return false
}

// ConstantPath returns the full constant path for a node, climbing to the
// enclosing scope_resolution so that hovering the `B` of `A::B` yields
// "A::B".
func ConstantPath(node *sitter.Node, source []byte) (string, *sitter.Node) {
	for parent := node.Parent(); parent != nil && parent.Type() == "scope_resolution"; parent = node.Parent() {
		node = parent
	}
	return NodeText(node, source), node
}

// CallArguments classifies the arguments of a call for signature matching.
// args is the call's argument_list node; nil yields no arguments.
func CallArguments(args *sitter.Node, source []byte) []entry.Argument {
	if args == nil {
		return nil
	}
	var out []entry.Argument
	for i := 0; i < int(args.NamedChildCount()); i++ {
		child := args.NamedChild(i)
		text := NodeText(child, source)
		switch {
		case child.Type() == "pair":
			name := ""
			if key := child.ChildByFieldName("key"); key != nil {
				name = strings.TrimSuffix(NodeText(key, source), ":")
			}
			out = append(out, entry.Argument{Kind: entry.ArgKeyword, Name: name})
		case child.Type() == "forward_argument" || text == "...":
			out = append(out, entry.Argument{Kind: entry.ArgForwarding})
		case strings.HasPrefix(text, "**"):
			out = append(out, entry.Argument{Kind: entry.ArgKeywordSplat})
		case strings.HasPrefix(text, "*"):
			out = append(out, entry.Argument{Kind: entry.ArgSplat})
		case strings.HasPrefix(text, "&"):
			out = append(out, entry.Argument{Kind: entry.ArgBlock})
		default:
			out = append(out, entry.Argument{Kind: entry.ArgPositional})
		}
	}
	return out
}
