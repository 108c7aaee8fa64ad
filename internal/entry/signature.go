package entry

// ParameterKind is the taxonomy of method parameters. Each kind is matched
// differently at call sites: rest and forwarding parameters make arity
// effectively unbounded, keyword parameters match by name.
type ParameterKind int

const (
	ParamRequired ParameterKind = iota
	ParamOptional
	ParamKeywordRequired
	ParamKeywordOptional
	ParamRest
	ParamKeywordRest
	ParamBlock
	ParamForwarding
)

// Parameter is one formal parameter in declaration order.
type Parameter struct {
	Kind ParameterKind
	Name string
}

// Label renders the parameter the way it appears in a signature.
func (p Parameter) Label() string {
	switch p.Kind {
	case ParamOptional:
		return p.Name + " = <default>"
	case ParamKeywordRequired:
		return p.Name + ":"
	case ParamKeywordOptional:
		return p.Name + ": <default>"
	case ParamRest:
		return "*" + p.Name
	case ParamKeywordRest:
		return "**" + p.Name
	case ParamBlock:
		return "&" + p.Name
	case ParamForwarding:
		return "..."
	default:
		return p.Name
	}
}

// ArgumentKind classifies a call-site argument for signature matching.
type ArgumentKind int

const (
	ArgPositional ArgumentKind = iota
	ArgSplat
	ArgKeyword
	ArgKeywordSplat
	ArgBlock
	ArgForwarding
)

// Argument is one call-site argument. Name is set for keyword arguments.
type Argument struct {
	Kind ArgumentKind
	Name string
}

// Signature is one parameter list for a method. Methods can carry several
// signatures to model overload-like declarations from type annotations.
type Signature struct {
	Parameters []Parameter
}

// Label renders the full parameter list for signature help.
func (s Signature) Label() string {
	out := "("
	for i, p := range s.Parameters {
		if i > 0 {
			out += ", "
		}
		out += p.Label()
	}
	return out + ")"
}

// MinPositional is the number of required positional parameters.
func (s Signature) MinPositional() int {
	min := 0
	for _, p := range s.Parameters {
		if p.Kind == ParamRequired {
			min++
		}
	}
	return min
}

// MaxPositional is the largest positional count the signature accepts.
// unbounded is true when a rest or forwarding parameter is present.
func (s Signature) MaxPositional() (max int, unbounded bool) {
	for _, p := range s.Parameters {
		switch p.Kind {
		case ParamRequired, ParamOptional:
			max++
		case ParamRest, ParamForwarding:
			unbounded = true
		}
	}
	return max, unbounded
}

// Matches reports whether the call-site arguments could satisfy this
// signature. Matching is deliberately permissive: whenever static analysis
// cannot rule out a match (splats, forwarding, on either side) or the call
// is a prefix of a valid call (the user is still typing), it reports true.
// Signature help must not hide valid overloads behind false negatives.
func (s Signature) Matches(args []Argument) bool {
	maxPos, unbounded := s.MaxPositional()

	keywordNames := make(map[string]bool)
	hasKeywordRest := false
	for _, p := range s.Parameters {
		switch p.Kind {
		case ParamKeywordRequired, ParamKeywordOptional:
			keywordNames[p.Name] = true
		case ParamKeywordRest, ParamForwarding:
			hasKeywordRest = true
		}
	}

	positional := 0
	var keywords []string
	for _, a := range args {
		switch a.Kind {
		case ArgForwarding, ArgSplat, ArgKeywordSplat:
			// The argument consumes an unknown number of positions or
			// keyword names; assume it works out.
			return true
		case ArgPositional:
			positional++
		case ArgKeyword:
			keywords = append(keywords, a.Name)
		case ArgBlock:
			// Blocks never affect arity.
		}
	}

	// Fewer arguments than required still matches: the call may be a prefix
	// of a valid call.
	if !unbounded && positional > maxPos {
		return false
	}

	if !hasKeywordRest {
		for _, name := range keywords {
			if !keywordNames[name] {
				return false
			}
		}
	}
	return true
}
