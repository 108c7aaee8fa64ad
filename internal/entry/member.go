package entry

// Member is a method-like entry: something that can be resolved against a
// receiver type through its ancestor chain. Owner is the fully qualified
// name of the innermost enclosing namespace at the declaration ("" for
// top-level definitions); it is a name, not a pointer, so member entries
// survive their owner being reindexed.
type Member interface {
	Entry
	Owner() string
	Signatures() []Signature
}

// Method is a `def` declaration.
type Method struct {
	Base
	owner      string
	signatures []Signature
}

// NewMethod creates a method entry owned by the named namespace.
func NewMethod(base Base, owner string, signatures []Signature) *Method {
	return &Method{Base: base, owner: owner, signatures: signatures}
}

func (m *Method) Owner() string           { return m.owner }
func (m *Method) Signatures() []Signature { return m.signatures }

// AccessorKind distinguishes generated reader and writer methods.
type AccessorKind int

const (
	AccessorReader AccessorKind = iota
	AccessorWriter
)

// Accessor is a method generated by attr_reader/attr_writer/attr_accessor.
// attr_accessor produces two entries, one of each kind; the writer's name
// carries the trailing "=".
type Accessor struct {
	Base
	owner string
	kind  AccessorKind
}

// NewAccessor creates an accessor entry.
func NewAccessor(base Base, owner string, kind AccessorKind) *Accessor {
	return &Accessor{Base: base, owner: owner, kind: kind}
}

func (a *Accessor) Owner() string      { return a.owner }
func (a *Accessor) Kind() AccessorKind { return a.kind }

// Signatures synthesizes the parameter list: readers take nothing, writers
// take the single value being assigned.
func (a *Accessor) Signatures() []Signature {
	if a.kind == AccessorWriter {
		name := a.Name()
		if n := len(name); n > 0 && name[n-1] == '=' {
			name = name[:n-1]
		}
		return []Signature{{Parameters: []Parameter{{Kind: ParamRequired, Name: name}}}}
	}
	return []Signature{{}}
}

// UnresolvedMethodAlias records `alias new_name old_name` (or alias_method)
// before the target method has been indexed. Resolution is retried lazily
// on every method lookup until it succeeds.
type UnresolvedMethodAlias struct {
	Base
	owner   string
	oldName string
}

// NewUnresolvedMethodAlias creates the unresolved form of a method alias.
func NewUnresolvedMethodAlias(base Base, owner, oldName string) *UnresolvedMethodAlias {
	return &UnresolvedMethodAlias{Base: base, owner: owner, oldName: oldName}
}

func (u *UnresolvedMethodAlias) Owner() string   { return u.owner }
func (u *UnresolvedMethodAlias) OldName() string { return u.oldName }

// Signatures is empty until the alias resolves.
func (u *UnresolvedMethodAlias) Signatures() []Signature { return nil }

// MethodAlias is a resolved method alias: it forwards signatures to the
// target member found during lazy resolution.
type MethodAlias struct {
	Base
	owner  string
	target Member
}

// NewMethodAlias wraps the resolved target of a method alias.
func NewMethodAlias(unresolved *UnresolvedMethodAlias, target Member) *MethodAlias {
	return &MethodAlias{Base: unresolved.Base, owner: unresolved.owner, target: target}
}

func (a *MethodAlias) Owner() string           { return a.owner }
func (a *MethodAlias) Target() Member          { return a.target }
func (a *MethodAlias) Signatures() []Signature { return a.target.Signatures() }
