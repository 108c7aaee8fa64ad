package visitor

import (
	"context"
	"testing"

	"rubyscope/internal/entry"
	"rubyscope/internal/location"
	"rubyscope/internal/rubyast"
)

func run(t *testing.T, src string) Result {
	t.Helper()
	tree, err := rubyast.Parse(context.Background(), []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	t.Cleanup(tree.Close)
	return Run(tree.RootNode(), []byte(src), location.NewUntitledURI("test"), nil)
}

func findNamespace(t *testing.T, res Result, name string) *entry.Namespace {
	t.Helper()
	for _, e := range res.Entries {
		if ns, ok := e.(*entry.Namespace); ok && ns.Name() == name {
			return ns
		}
	}
	t.Fatalf("no namespace %q in %v", name, names(res))
	return nil
}

func findMethod(t *testing.T, res Result, name, owner string) *entry.Method {
	t.Helper()
	for _, e := range res.Entries {
		if m, ok := e.(*entry.Method); ok && m.Name() == name && m.Owner() == owner {
			return m
		}
	}
	t.Fatalf("no method %q owned by %q in %v", name, owner, names(res))
	return nil
}

func names(res Result) []string {
	out := make([]string, len(res.Entries))
	for i, e := range res.Entries {
		out[i] = e.Name()
	}
	return out
}

func TestClassesAndModules(t *testing.T) {
	t.Parallel()
	res := run(t, `
module A
  class B < C
  end
end

class ::Root
end
`)

	a := findNamespace(t, res, "A")
	if a.Kind() != entry.KindModule {
		t.Errorf("A kind = %v, want module", a.Kind())
	}

	b := findNamespace(t, res, "A::B")
	if b.Kind() != entry.KindClass {
		t.Errorf("A::B kind = %v, want class", b.Kind())
	}
	sup, nesting, ok := b.Superclass()
	if !ok || sup != "C" {
		t.Errorf("A::B superclass = %q/%v, want C", sup, ok)
	}
	if len(nesting) != 1 || nesting[0] != "A" {
		t.Errorf("A::B nesting = %v, want [A]", nesting)
	}

	// A leading :: escapes the enclosing nesting.
	findNamespace(t, res, "Root")
}

func TestCompactNesting(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Outer::Inner
  NUM = 1
end
`)
	findNamespace(t, res, "Outer::Inner")
	for _, e := range res.Entries {
		if c, ok := e.(*entry.Constant); ok {
			if c.Name() != "Outer::Inner::NUM" {
				t.Errorf("constant = %q, want Outer::Inner::NUM", c.Name())
			}
			return
		}
	}
	t.Fatal("constant NUM not indexed")
}

func TestNamespaceComments(t *testing.T) {
	t.Parallel()
	res := run(t, `
# Handles the things.
# All of them.
class Handler
end
`)
	ns := findNamespace(t, res, "Handler")
	want := "Handles the things.\nAll of them."
	if got := ns.Comments(); got != want {
		t.Errorf("Comments = %q, want %q", got, want)
	}
}

func TestMethodVisibility(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  def pub; end

  private

  def hidden; end

  public def forced; end

  def late; end
  private :late
end
`)

	cases := []struct {
		name string
		want entry.Visibility
	}{
		{"pub", entry.VisibilityPublic},
		{"hidden", entry.VisibilityPrivate},
		{"forced", entry.VisibilityPublic},
		{"late", entry.VisibilityPrivate},
	}
	for _, c := range cases {
		m := findMethod(t, res, c.name, "Foo")
		if m.Visibility() != c.want {
			t.Errorf("%s visibility = %v, want %v", c.name, m.Visibility(), c.want)
		}
	}
}

func TestVisibilityScopedToNamespace(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  private

  class Bar
    def inner; end
  end

  def outer; end
end
`)
	if m := findMethod(t, res, "inner", "Foo::Bar"); m.Visibility() != entry.VisibilityPublic {
		t.Error("nested class should start with public visibility")
	}
	if m := findMethod(t, res, "outer", "Foo"); m.Visibility() != entry.VisibilityPrivate {
		t.Error("private should persist after the nested class closes")
	}
}

func TestSingletonMethods(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  def self.build; end

  class << self
    def setup; end
  end
end
`)

	singleton := "Foo::<Class:Foo>"
	findMethod(t, res, "build", singleton)
	findMethod(t, res, "setup", singleton)

	ns := findNamespace(t, res, singleton)
	if ns.Kind() != entry.KindSingletonClass {
		t.Errorf("kind = %v, want singleton class", ns.Kind())
	}
}

func TestDynamicReceiversSkipped(t *testing.T) {
	t.Parallel()
	res := run(t, `
obj = Object.new
class << obj
  def hidden; end
end

def obj.dynamic; end
`)
	for _, e := range res.Entries {
		if m, ok := e.(*entry.Method); ok {
			t.Errorf("unexpected method %q indexed from dynamic receiver", m.Name())
		}
	}
}

func TestMixins(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  include Enumerable
  prepend Wrapper
  extend Helpers::ClassMethods
  include make_module
end
`)

	ns := findNamespace(t, res, "Foo")
	mixins := ns.Mixins()
	if len(mixins) != 3 {
		t.Fatalf("mixins = %+v, want 3 (dynamic one skipped)", mixins)
	}
	want := []struct {
		kind entry.MixinKind
		mod  string
	}{
		{entry.MixinInclude, "Enumerable"},
		{entry.MixinPrepend, "Wrapper"},
		{entry.MixinExtend, "Helpers::ClassMethods"},
	}
	for i, w := range want {
		if mixins[i].Kind != w.kind || mixins[i].Module != w.mod {
			t.Errorf("mixin[%d] = %+v, want %v %s", i, mixins[i], w.kind, w.mod)
		}
	}
}

func TestAccessors(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  attr_reader :a
  attr_writer :b
  attr_accessor :c
end
`)

	want := map[string]bool{"a": false, "b=": false, "c": false, "c=": false}
	for _, e := range res.Entries {
		if acc, ok := e.(*entry.Accessor); ok {
			if _, expected := want[acc.Name()]; !expected {
				t.Errorf("unexpected accessor %q", acc.Name())
				continue
			}
			want[acc.Name()] = true
			if acc.Owner() != "Foo" {
				t.Errorf("accessor %q owner = %q, want Foo", acc.Name(), acc.Owner())
			}
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("accessor %q not indexed", name)
		}
	}
}

func TestConstantAlias(t *testing.T) {
	t.Parallel()
	res := run(t, `
module A
  Original = 1
  Shortcut = Other::Thing
end
`)

	var sawConstant, sawAlias bool
	for _, e := range res.Entries {
		switch v := e.(type) {
		case *entry.Constant:
			sawConstant = true
			if v.Name() != "A::Original" {
				t.Errorf("constant = %q, want A::Original", v.Name())
			}
		case *entry.UnresolvedAlias:
			sawAlias = true
			if v.Name() != "A::Shortcut" || v.Target() != "Other::Thing" {
				t.Errorf("alias = %q -> %q", v.Name(), v.Target())
			}
			if len(v.Nesting()) != 1 || v.Nesting()[0] != "A" {
				t.Errorf("alias nesting = %v, want [A]", v.Nesting())
			}
		}
	}
	if !sawConstant || !sawAlias {
		t.Errorf("constant=%v alias=%v, want both", sawConstant, sawAlias)
	}
}

func TestMethodAliases(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  def original; end
  alias shorthand original
  alias_method :other, :original
end
`)

	found := map[string]string{}
	for _, e := range res.Entries {
		if a, ok := e.(*entry.UnresolvedMethodAlias); ok {
			found[a.Name()] = a.OldName()
			if a.Owner() != "Foo" {
				t.Errorf("alias %q owner = %q, want Foo", a.Name(), a.Owner())
			}
		}
	}
	if found["shorthand"] != "original" || found["other"] != "original" {
		t.Errorf("aliases = %v, want shorthand and other -> original", found)
	}
}

func TestVariableOwnership(t *testing.T) {
	t.Parallel()
	res := run(t, `
$global = 1

class Foo
  @class_level = 1
  @@counter = 0

  def initialize
    @name = "x"
  end

  def self.configure
    @registry = {}
  end
end
`)

	owners := map[string]string{}
	for _, e := range res.Entries {
		switch v := e.(type) {
		case *entry.InstanceVariable:
			owners[v.Name()] = v.Owner()
		case *entry.ClassVariable:
			owners[v.Name()] = v.Owner()
		case *entry.GlobalVariable:
			owners[v.Name()] = "<global>"
		}
	}

	singleton := "Foo::<Class:Foo>"
	want := map[string]string{
		"@name":        "Foo",
		"@class_level": singleton,
		"@registry":    singleton,
		"@@counter":    "Foo",
		"$global":      "<global>",
	}
	for name, owner := range want {
		if owners[name] != owner {
			t.Errorf("%s owner = %q, want %q", name, owners[name], owner)
		}
	}
}

func TestMethodParameters(t *testing.T) {
	t.Parallel()
	res := run(t, `
class Foo
  def all(a, b = 1, *rest, k:, opt: 2, **kw, &blk); end
  def fwd(...); end
end
`)

	m := findMethod(t, res, "all", "Foo")
	sigs := m.Signatures()
	if len(sigs) != 1 {
		t.Fatalf("signatures = %d, want 1", len(sigs))
	}
	kinds := []entry.ParameterKind{
		entry.ParamRequired, entry.ParamOptional, entry.ParamRest,
		entry.ParamKeywordRequired, entry.ParamKeywordOptional,
		entry.ParamKeywordRest, entry.ParamBlock,
	}
	params := sigs[0].Parameters
	if len(params) != len(kinds) {
		t.Fatalf("params = %+v, want %d entries", params, len(kinds))
	}
	for i, k := range kinds {
		if params[i].Kind != k {
			t.Errorf("param[%d] kind = %v, want %v", i, params[i].Kind, k)
		}
	}

	fwd := findMethod(t, res, "fwd", "Foo")
	fp := fwd.Signatures()[0].Parameters
	if len(fp) != 1 || fp[0].Kind != entry.ParamForwarding {
		t.Errorf("fwd params = %+v, want single forwarding", fp)
	}
}

func TestReopeningProducesSeparateRecords(t *testing.T) {
	t.Parallel()
	// Two openings in one file each emit a record; merging into one record
	// per fully qualified name happens in the index, not here.
	res := run(t, `
class Foo
end

class Foo
  include M
end
`)
	var count int
	for _, e := range res.Entries {
		if ns, ok := e.(*entry.Namespace); ok && ns.Name() == "Foo" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("Foo records = %d, want 2", count)
	}
}

func TestTopLevelMethod(t *testing.T) {
	t.Parallel()
	res := run(t, `
def helper(x)
  x
end
`)
	m := findMethod(t, res, "helper", "")
	if m.Visibility() != entry.VisibilityPublic {
		t.Errorf("visibility = %v, want public", m.Visibility())
	}
}
