package entry

// Constant is a plain constant assignment whose right-hand side is not
// itself a constant reference. The entry name is fully qualified.
type Constant struct {
	Base
}

// NewConstant creates a constant entry.
func NewConstant(base Base) *Constant { return &Constant{Base: base} }

// UnresolvedAlias records `A = B` where B is a constant reference. The
// target is kept as written, together with the nesting at the assignment,
// because B may not be indexed yet; resolution happens lazily on lookup and
// is retried until it succeeds.
type UnresolvedAlias struct {
	Base
	target  string
	nesting []string
}

// NewUnresolvedAlias creates the unresolved form of a constant alias.
func NewUnresolvedAlias(base Base, target string, nesting []string) *UnresolvedAlias {
	return &UnresolvedAlias{Base: base, target: target, nesting: nesting}
}

func (u *UnresolvedAlias) Target() string    { return u.target }
func (u *UnresolvedAlias) Nesting() []string { return u.nesting }

// Alias is a resolved constant alias. Target is the fully qualified name of
// the aliased declaration.
type Alias struct {
	Base
	target string
}

// NewAlias materializes the resolved form of a constant alias.
func NewAlias(unresolved *UnresolvedAlias, target string) *Alias {
	return &Alias{Base: unresolved.Base, target: target}
}

func (a *Alias) Target() string { return a.target }

// InstanceVariable is an `@name` assignment, owned by the namespace whose
// instances carry it (or the singleton, for class-level assignments).
type InstanceVariable struct {
	Base
	owner string
}

// NewInstanceVariable creates an instance variable entry.
func NewInstanceVariable(base Base, owner string) *InstanceVariable {
	return &InstanceVariable{Base: base, owner: owner}
}

func (v *InstanceVariable) Owner() string { return v.owner }

// ClassVariable is a `@@name` assignment.
type ClassVariable struct {
	Base
	owner string
}

// NewClassVariable creates a class variable entry.
func NewClassVariable(base Base, owner string) *ClassVariable {
	return &ClassVariable{Base: base, owner: owner}
}

func (v *ClassVariable) Owner() string { return v.owner }

// GlobalVariable is a `$name` assignment. Globals have no owner.
type GlobalVariable struct {
	Base
}

// NewGlobalVariable creates a global variable entry.
func NewGlobalVariable(base Base) *GlobalVariable { return &GlobalVariable{Base: base} }
