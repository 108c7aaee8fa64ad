// Package visitor walks one file's syntax tree and produces the declaration
// entries for the index. The walk is a single depth-first pass with explicit
// nesting and visibility stacks; anything whose target cannot be statically
// determined is skipped silently rather than guessed.
package visitor

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"rubyscope/internal/entry"
	"rubyscope/internal/location"
	"rubyscope/internal/rubyast"
)

// Result is the outcome of visiting one file.
type Result struct {
	Entries []entry.Entry
}

// methodContext tracks what kind of body the walk is currently inside,
// which decides who owns instance variable assignments.
type methodContext int

const (
	ctxNone methodContext = iota
	ctxInstanceMethod
	ctxSingletonMethod
)

type frame struct {
	segment    string // name as written at this opening
	fqn        string
	ns         *entry.Namespace
	visibility entry.Visibility

	// Singleton class record for this namespace, created on demand when a
	// `def self.` method needs an owner.
	singletonNS *entry.Namespace
}

type visitor struct {
	source []byte
	uri    location.URI
	magic  []*regexp.Regexp

	frames    []frame
	methodCtx methodContext
	result    Result
}

// Run visits a parsed file and returns its entries. The tree may contain
// error nodes; whatever parsed is indexed.
func Run(root *sitter.Node, source []byte, uri location.URI, magic []*regexp.Regexp) Result {
	v := &visitor{source: source, uri: uri, magic: magic}
	v.visitChildren(root)
	return v.result
}

func (v *visitor) visit(node *sitter.Node) {
	switch node.Type() {
	case "class":
		v.visitClass(node)
	case "module":
		v.visitModule(node)
	case "singleton_class":
		v.visitSingletonClass(node)
	case "method":
		v.visitMethod(node, nil)
	case "singleton_method":
		v.visitSingletonMethod(node)
	case "assignment", "operator_assignment":
		v.visitAssignment(node)
	case "alias":
		v.visitAliasKeyword(node)
	case "call":
		v.visitCall(node)
	case "identifier":
		v.visitBareIdentifier(node)
	case "comment":
		// Comments are collected by the declarations below them.
	default:
		v.visitChildren(node)
	}
}

func (v *visitor) visitChildren(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		v.visit(node.NamedChild(i))
	}
}

func (v *visitor) text(node *sitter.Node) string {
	return rubyast.NodeText(node, v.source)
}

func (v *visitor) emit(e entry.Entry) {
	v.result.Entries = append(v.result.Entries, e)
}

func (v *visitor) current() *frame {
	if len(v.frames) == 0 {
		return nil
	}
	return &v.frames[len(v.frames)-1]
}

func (v *visitor) currentFQN() string {
	if f := v.current(); f != nil {
		return f.fqn
	}
	return ""
}

func (v *visitor) currentVisibility() entry.Visibility {
	if f := v.current(); f != nil {
		return f.visibility
	}
	return entry.VisibilityPublic
}

// nestingSnapshot returns the namespace names enclosing the current point,
// outermost first, as written in source. Recorded on entries so lookups can
// replay the lexical constant search later.
func (v *visitor) nestingSnapshot() []string {
	out := make([]string, len(v.frames))
	for i := range v.frames {
		out[i] = v.frames[i].segment
	}
	return out
}

// qualify builds the fully qualified name for a declaration. A leading ::
// escapes the current nesting.
func (v *visitor) qualify(name string) string {
	if rest, ok := strings.CutPrefix(name, "::"); ok {
		return rest
	}
	if fqn := v.currentFQN(); fqn != "" {
		return fqn + "::" + name
	}
	return name
}

func (v *visitor) base(name string, node, nameNode *sitter.Node) entry.Base {
	return entry.NewBase(
		name,
		v.uri,
		rubyast.NodeRange(node),
		rubyast.NodeRange(nameNode),
		rubyast.LeadingComments(node, v.source),
		v.magic,
	)
}

func (v *visitor) visitClass(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || !rubyast.IsConstantNode(nameNode) {
		return
	}
	written := v.text(nameNode)
	fqn := v.qualify(written)

	superclass := ""
	if sc := node.ChildByFieldName("superclass"); sc != nil {
		for i := 0; i < int(sc.NamedChildCount()); i++ {
			if child := sc.NamedChild(i); rubyast.IsConstantNode(child) {
				superclass = v.text(child)
			}
		}
	}

	site := entry.NewDeclarationSite(
		v.uri,
		rubyast.NodeRange(node),
		rubyast.NodeRange(nameNode),
		v.nestingSnapshot(),
		superclass,
		rubyast.LeadingComments(node, v.source),
		v.magic,
	)
	ns := entry.NewNamespace(fqn, entry.KindClass, site)
	v.emit(ns)
	v.pushNamespace(strings.TrimPrefix(written, "::"), fqn, ns, node)
}

func (v *visitor) visitModule(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || !rubyast.IsConstantNode(nameNode) {
		return
	}
	written := v.text(nameNode)
	fqn := v.qualify(written)

	site := entry.NewDeclarationSite(
		v.uri,
		rubyast.NodeRange(node),
		rubyast.NodeRange(nameNode),
		v.nestingSnapshot(),
		"",
		rubyast.LeadingComments(node, v.source),
		v.magic,
	)
	ns := entry.NewNamespace(fqn, entry.KindModule, site)
	v.emit(ns)
	v.pushNamespace(strings.TrimPrefix(written, "::"), fqn, ns, node)
}

func (v *visitor) visitSingletonClass(node *sitter.Node) {
	value := node.ChildByFieldName("value")
	if value == nil || value.Type() != "self" {
		return // `class << obj` with a dynamic receiver
	}
	enclosing := v.current()
	if enclosing == nil {
		return
	}

	fqn := entry.SingletonName(enclosing.fqn)
	site := entry.NewDeclarationSite(
		v.uri,
		rubyast.NodeRange(node),
		rubyast.NodeRange(value),
		v.nestingSnapshot(),
		"",
		rubyast.LeadingComments(node, v.source),
		v.magic,
	)
	ns := entry.NewNamespace(fqn, entry.KindSingletonClass, site)
	v.emit(ns)

	segment := fqn[strings.LastIndex(fqn, "::")+2:]
	v.pushNamespace(segment, fqn, ns, node)
}

func (v *visitor) pushNamespace(segment, fqn string, ns *entry.Namespace, node *sitter.Node) {
	v.frames = append(v.frames, frame{segment: segment, fqn: fqn, ns: ns})
	savedCtx := v.methodCtx
	v.methodCtx = ctxNone
	v.visitChildren(node)
	v.methodCtx = savedCtx
	v.frames = v.frames[:len(v.frames)-1]
}

func (v *visitor) visitMethod(node *sitter.Node, override *entry.Visibility) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := v.text(nameNode)

	base := v.base(name, node, nameNode)
	if override != nil {
		base.SetVisibility(*override)
	} else {
		base.SetVisibility(v.currentVisibility())
	}

	sig := entry.Signature{Parameters: v.parameters(node.ChildByFieldName("parameters"))}
	v.emit(entry.NewMethod(base, v.currentFQN(), []entry.Signature{sig}))

	savedCtx := v.methodCtx
	v.methodCtx = ctxInstanceMethod
	v.visitChildren(node)
	v.methodCtx = savedCtx
}

func (v *visitor) visitSingletonMethod(node *sitter.Node) {
	object := node.ChildByFieldName("object")
	nameNode := node.ChildByFieldName("name")
	if object == nil || nameNode == nil || object.Type() != "self" {
		return // `def Foo.bar` and dynamic receivers are not indexed
	}
	enclosing := v.current()
	if enclosing == nil {
		return
	}

	name := v.text(nameNode)
	base := v.base(name, node, nameNode)
	base.SetVisibility(v.currentVisibility())

	owner := v.ensureSingleton(enclosing, node)
	sig := entry.Signature{Parameters: v.parameters(node.ChildByFieldName("parameters"))}
	v.emit(entry.NewMethod(base, owner, []entry.Signature{sig}))

	savedCtx := v.methodCtx
	v.methodCtx = ctxSingletonMethod
	v.visitChildren(node)
	v.methodCtx = savedCtx
}

// ensureSingleton returns the singleton class name for a frame, creating
// the record the first time something needs to be owned by it.
func (v *visitor) ensureSingleton(f *frame, node *sitter.Node) string {
	if f.ns.Kind() == entry.KindSingletonClass {
		return f.fqn
	}
	name := entry.SingletonName(f.fqn)
	if f.singletonNS == nil {
		site := entry.NewDeclarationSite(
			v.uri,
			rubyast.NodeRange(node),
			rubyast.NodeRange(node),
			v.nestingSnapshot(),
			"",
			"",
			v.magic,
		)
		f.singletonNS = entry.NewNamespace(name, entry.KindSingletonClass, site)
		v.emit(f.singletonNS)
	}
	return name
}

func (v *visitor) parameters(params *sitter.Node) []entry.Parameter {
	if params == nil {
		return nil
	}
	var out []entry.Parameter
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		switch child.Type() {
		case "identifier":
			out = append(out, entry.Parameter{Kind: entry.ParamRequired, Name: v.text(child)})
		case "optional_parameter":
			out = append(out, entry.Parameter{Kind: entry.ParamOptional, Name: v.fieldText(child, "name")})
		case "keyword_parameter":
			kind := entry.ParamKeywordRequired
			if child.ChildByFieldName("value") != nil {
				kind = entry.ParamKeywordOptional
			}
			out = append(out, entry.Parameter{Kind: kind, Name: v.fieldText(child, "name")})
		case "splat_parameter":
			out = append(out, entry.Parameter{Kind: entry.ParamRest, Name: v.fieldText(child, "name")})
		case "hash_splat_parameter":
			out = append(out, entry.Parameter{Kind: entry.ParamKeywordRest, Name: v.fieldText(child, "name")})
		case "block_parameter":
			out = append(out, entry.Parameter{Kind: entry.ParamBlock, Name: v.fieldText(child, "name")})
		case "forward_parameter":
			out = append(out, entry.Parameter{Kind: entry.ParamForwarding})
		case "destructured_parameter":
			out = append(out, entry.Parameter{Kind: entry.ParamRequired, Name: v.text(child)})
		}
	}
	return out
}

func (v *visitor) fieldText(node *sitter.Node, field string) string {
	if child := node.ChildByFieldName(field); child != nil {
		return v.text(child)
	}
	return ""
}

func (v *visitor) visitAssignment(node *sitter.Node) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	if left == nil {
		return
	}

	switch left.Type() {
	case "constant", "scope_resolution":
		name := v.qualify(v.text(left))
		// Plain assignment of one constant to another is an alias; the
		// target may not be indexed yet, so it starts unresolved.
		if node.Type() == "assignment" && right != nil && rubyast.IsConstantNode(right) {
			v.emit(entry.NewUnresolvedAlias(v.base(name, node, left), v.text(right), v.nestingSnapshot()))
			return
		}
		v.emit(entry.NewConstant(v.base(name, node, left)))
	case "instance_variable":
		v.emit(entry.NewInstanceVariable(v.base(v.text(left), node, left), v.instanceVariableOwner()))
	case "class_variable":
		v.emit(entry.NewClassVariable(v.base(v.text(left), node, left), v.currentFQN()))
	case "global_variable":
		v.emit(entry.NewGlobalVariable(v.base(v.text(left), node, left)))
	default:
		// Multiple assignment and computed targets are not indexed, but the
		// right side may still contain declarations worth walking.
		if right != nil {
			v.visit(right)
		}
	}
}

// instanceVariableOwner decides which namespace an @variable belongs to:
// instance methods put it on the namespace itself, class bodies and
// `self.` methods put it on the singleton.
func (v *visitor) instanceVariableOwner() string {
	f := v.current()
	if f == nil {
		return ""
	}
	if v.methodCtx == ctxInstanceMethod {
		return f.fqn
	}
	if f.ns.Kind() == entry.KindSingletonClass {
		return f.fqn
	}
	return entry.SingletonName(f.fqn)
}

func (v *visitor) visitAliasKeyword(node *sitter.Node) {
	if node.NamedChildCount() < 2 {
		return
	}
	newName := methodNameText(node.NamedChild(0), v.source)
	oldName := methodNameText(node.NamedChild(1), v.source)
	if newName == "" || oldName == "" {
		return // global variable aliases and dynamic names
	}
	base := v.base(newName, node, node.NamedChild(0))
	base.SetVisibility(v.currentVisibility())
	v.emit(entry.NewUnresolvedMethodAlias(base, v.currentFQN(), oldName))
}

// methodNameText extracts a method name from an alias operand, or "" when
// the operand is not a method name.
func methodNameText(node *sitter.Node, source []byte) string {
	switch node.Type() {
	case "identifier", "constant", "operator", "setter":
		return rubyast.NodeText(node, source)
	case "simple_symbol":
		return strings.TrimPrefix(rubyast.NodeText(node, source), ":")
	}
	return ""
}

var visibilityByName = map[string]entry.Visibility{
	"public":    entry.VisibilityPublic,
	"protected": entry.VisibilityProtected,
	"private":   entry.VisibilityPrivate,
}

func (v *visitor) visitCall(node *sitter.Node) {
	receiver := node.ChildByFieldName("receiver")
	method := node.ChildByFieldName("method")
	if method == nil || (receiver != nil && receiver.Type() != "self") {
		v.visitChildren(node)
		return
	}
	args := node.ChildByFieldName("arguments")

	switch name := v.text(method); name {
	case "include", "prepend", "extend":
		v.addMixins(mixinKind(name), args)
	case "attr_reader":
		v.addAccessors(args, entry.AccessorReader)
	case "attr_writer":
		v.addAccessors(args, entry.AccessorWriter)
	case "attr_accessor":
		v.addAccessors(args, entry.AccessorReader)
		v.addAccessors(args, entry.AccessorWriter)
	case "alias_method":
		v.addMethodAlias(node, args)
	case "public", "protected", "private":
		v.applyVisibility(visibilityByName[name], args)
	default:
		v.visitChildren(node)
	}
}

func mixinKind(name string) entry.MixinKind {
	switch name {
	case "prepend":
		return entry.MixinPrepend
	case "extend":
		return entry.MixinExtend
	default:
		return entry.MixinInclude
	}
}

func (v *visitor) addMixins(kind entry.MixinKind, args *sitter.Node) {
	f := v.current()
	if f == nil || args == nil {
		return
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if !rubyast.IsConstantNode(arg) {
			continue // non-literal mixin targets are not analyzable
		}
		f.ns.AddMixin(entry.Mixin{
			Kind:    kind,
			Module:  v.text(arg),
			Nesting: v.nestingSnapshot(),
			URI:     v.uri,
		})
	}
}

func (v *visitor) addAccessors(args *sitter.Node, kind entry.AccessorKind) {
	if args == nil {
		return
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "simple_symbol" {
			continue
		}
		name := strings.TrimPrefix(v.text(arg), ":")
		if kind == entry.AccessorWriter {
			name += "="
		}
		base := v.base(name, arg, arg)
		base.SetVisibility(v.currentVisibility())
		v.emit(entry.NewAccessor(base, v.currentFQN(), kind))
	}
}

func (v *visitor) addMethodAlias(call *sitter.Node, args *sitter.Node) {
	if args == nil || args.NamedChildCount() < 2 {
		return
	}
	newName := methodNameText(args.NamedChild(0), v.source)
	oldName := methodNameText(args.NamedChild(1), v.source)
	if newName == "" || oldName == "" {
		return
	}
	base := v.base(newName, call, args.NamedChild(0))
	base.SetVisibility(v.currentVisibility())
	v.emit(entry.NewUnresolvedMethodAlias(base, v.currentFQN(), oldName))
}

// applyVisibility implements the two forms of visibility modifiers: bare
// calls flip the default for subsequent declarations, single-argument forms
// apply to just the named or inline-defined methods.
func (v *visitor) applyVisibility(vis entry.Visibility, args *sitter.Node) {
	if args == nil || args.NamedChildCount() == 0 {
		if f := v.current(); f != nil {
			f.visibility = vis
		}
		return
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "method":
			v.visitMethod(arg, &vis)
		case "singleton_method":
			v.visitSingletonMethod(arg)
		case "simple_symbol", "string":
			name := strings.Trim(strings.TrimPrefix(v.text(arg), ":"), `"'`)
			v.retroVisibility(name, vis)
		}
	}
}

// retroVisibility updates already-emitted members, covering the
// `private :foo` form that follows the definition.
func (v *visitor) retroVisibility(name string, vis entry.Visibility) {
	owner := v.currentFQN()
	for _, e := range v.result.Entries {
		m, ok := e.(entry.Member)
		if !ok || m.Owner() != owner || m.Name() != name {
			continue
		}
		switch t := e.(type) {
		case *entry.Method:
			t.SetVisibility(vis)
		case *entry.Accessor:
			t.SetVisibility(vis)
		case *entry.UnresolvedMethodAlias:
			t.SetVisibility(vis)
		}
	}
}

// visitBareIdentifier handles `private` and friends written without
// arguments, which parse as plain identifiers rather than calls.
func (v *visitor) visitBareIdentifier(node *sitter.Node) {
	vis, ok := visibilityByName[v.text(node)]
	if !ok {
		return
	}
	parent := node.Parent()
	if parent == nil {
		return
	}
	switch parent.Type() {
	case "body_statement", "program":
		if f := v.current(); f != nil {
			f.visibility = vis
		}
	}
}
