package rubyast

import (
	"context"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"

	"rubyscope/internal/location"
)

func parse(t *testing.T, source string) ([]byte, *sitter.Tree) {
	t.Helper()
	src := []byte(source)
	tree, err := Parse(context.Background(), src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	t.Cleanup(tree.Close)
	return src, tree
}

func TestParseAndNodeText(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "class Foo\nend\n")
	root := tree.RootNode()
	if root.Type() != "program" {
		t.Fatalf("root type = %q", root.Type())
	}
	cls := root.NamedChild(0)
	if cls.Type() != "class" {
		t.Fatalf("child type = %q", cls.Type())
	}
	name := cls.ChildByFieldName("name")
	if got := NodeText(name, src); got != "Foo" {
		t.Errorf("name = %q, want Foo", got)
	}
	r := NodeRange(cls)
	if r.Start.Line != 1 || r.End.Line != 2 {
		t.Errorf("range = %v", r)
	}
}

func TestParseRecoverFromErrors(t *testing.T) {
	t.Parallel()
	// Mid-edit garbage after a valid class still yields the class node.
	src, tree := parse(t, "class Foo\nend\ndef broken(\n")
	root := tree.RootNode()
	found := false
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "class" && NodeText(child.ChildByFieldName("name"), src) == "Foo" {
			found = true
		}
	}
	if !found {
		t.Error("expected class node despite trailing syntax error")
	}
}

func TestLeadingComments(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "# first\n# second\nclass Foo\nend\n")
	cls := tree.RootNode().NamedChild(2)
	if cls.Type() != "class" {
		t.Fatalf("node = %q", cls.Type())
	}
	want := "# first\n# second"
	if got := LeadingComments(cls, src); got != want {
		t.Errorf("comments = %q, want %q", got, want)
	}
}

func TestLeadingCommentsBrokenByBlankLine(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "# far away\n\nclass Foo\nend\n")
	root := tree.RootNode()
	var cls = root.NamedChild(int(root.NamedChildCount()) - 1)
	if cls.Type() != "class" {
		t.Fatalf("node = %q", cls.Type())
	}
	if got := LeadingComments(cls, src); got != "" {
		t.Errorf("comments = %q, want empty (blank line breaks block)", got)
	}
}

func TestNodeAtPosition(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "module A\n  class B\n  end\nend\n")
	node := NodeAtPosition(tree.RootNode(), src, location.Position{Line: 2, Column: 8})
	if node == nil {
		t.Fatal("no node at position")
	}
	if node.Type() != "constant" || NodeText(node, src) != "B" {
		t.Errorf("node = %q %q, want constant B", node.Type(), NodeText(node, src))
	}
}

func TestNodeAtPositionEndOfToken(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "class Session\n  def current\n    Us\n  end\nend\n")
	// Cursor just after "Us", where an editor leaves it mid-typing.
	node := NodeAtPosition(tree.RootNode(), src, location.Position{Line: 3, Column: 6})
	if node == nil {
		t.Fatal("no node at position")
	}
	if node.Type() != "constant" || NodeText(node, src) != "Us" {
		t.Errorf("node = %q %q, want constant Us", node.Type(), NodeText(node, src))
	}
}

func TestNestingAt(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "module A\n  class B\n    CONST = 1\n  end\nend\n")
	node := NodeAtPosition(tree.RootNode(), src, location.Position{Line: 3, Column: 4})
	if node == nil {
		t.Fatal("no node at position")
	}
	nesting := NestingAt(node, src)
	if len(nesting) != 2 || nesting[0] != "A" || nesting[1] != "B" {
		t.Errorf("nesting = %v, want [A B]", nesting)
	}
}

func TestConstantPath(t *testing.T) {
	t.Parallel()
	src, tree := parse(t, "x = Foo::Bar::Baz\n")
	// Position on "Baz".
	node := NodeAtPosition(tree.RootNode(), src, location.Position{Line: 1, Column: 15})
	if node == nil || node.Type() != "constant" {
		t.Fatalf("node at position = %v", node)
	}
	path, top := ConstantPath(node, src)
	if path != "Foo::Bar::Baz" {
		t.Errorf("path = %q, want Foo::Bar::Baz", path)
	}
	if top.Type() != "scope_resolution" {
		t.Errorf("top node = %q", top.Type())
	}
}

func TestByteOffset(t *testing.T) {
	t.Parallel()
	src := []byte("ab\ncd\n")
	cases := []struct {
		pos    location.Position
		offset int
		ok     bool
	}{
		{location.Position{Line: 1, Column: 0}, 0, true},
		{location.Position{Line: 2, Column: 1}, 4, true},
		{location.Position{Line: 2, Column: 9}, 0, false},
		{location.Position{Line: 9, Column: 0}, 0, false},
	}
	for _, c := range cases {
		got, ok := ByteOffset(src, c.pos)
		if ok != c.ok || (ok && got != c.offset) {
			t.Errorf("ByteOffset(%v) = (%d, %v), want (%d, %v)", c.pos, got, ok, c.offset, c.ok)
		}
	}
}
