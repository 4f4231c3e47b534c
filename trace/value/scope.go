package value

// Scope is a lexical environment frame: a function call, a module body, a
// class body, or a lambda body. It chains to its defining (not calling)
// parent, matching ordinary lexical scoping for the embedded language.
type Scope struct {
	ID     string // e.g. "pkg", "pkg.Point" or "pkg.init", mirrored on the flow-graph builder's per-scope tables (§4.8)
	Kind   string // "module", "function", "class"
	Name   string
	Parent *Scope

	vars map[string]Value
}

// NewScope creates a child scope rooted at parent (nil for the module root).
func NewScope(id, kind, name string, parent *Scope) *Scope {
	return &Scope{ID: id, Kind: kind, Name: name, Parent: parent, vars: map[string]Value{}}
}

// Get resolves name by walking outward through defining scopes.
func (s *Scope) Get(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set assigns name in the nearest scope that already binds it, or in s
// itself if unbound anywhere.
func (s *Scope) Set(name string, v Value) {
	for sc := s; sc != nil; sc = sc.Parent {
		if _, ok := sc.vars[name]; ok {
			sc.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

// Bind defines name in s directly, used for parameter binding and
// destructured targets where the binder (trace/bind) has already resolved
// values.
func (s *Scope) Bind(name string, v Value) {
	s.vars[name] = v
}

// Delete removes name from whichever scope in the chain currently binds it.
func (s *Scope) Delete(name string) bool {
	for sc := s; sc != nil; sc = sc.Parent {
		if _, ok := sc.vars[name]; ok {
			delete(sc.vars, name)
			return true
		}
	}
	return false
}

// Names returns every name bound directly in s, used by the interpreter to
// collect a class body's methods.
func (s *Scope) Names() []string {
	out := make([]string, 0, len(s.vars))
	for k := range s.vars {
		out = append(out, k)
	}
	return out
}
