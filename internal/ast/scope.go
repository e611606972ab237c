package ast

// Scope is the symbol table opened by Module, UnifyBody, LiteralEnum,
// and Function nodes (§3.1). A
// Var/LocalRef resolves upward through the enclosing chain of scopes to
// the nearest binding.
type Scope struct {
	owner    *Node
	bindings map[string][]*Node
	order    []string
}

func newScope(owner *Node) *Scope {
	return &Scope{owner: owner, bindings: make(map[string][]*Node)}
}

// Bind records that name resolves to decl within this scope. Multiple
// bindings of the same name are kept (e.g. a Local rebound by successive
// enumerations); lookups return the most recently bound by default.
func (s *Scope) Bind(name string, decl *Node) {
	if _, ok := s.bindings[name]; !ok {
		s.order = append(s.order, name)
	}
	s.bindings[name] = append(s.bindings[name], decl)
}

// Lookdown finds bindings introduced directly in this scope (not parent
// scopes), used for within-body named child lookup.
func (s *Scope) Lookdown(name string) (*Node, bool) {
	decls, ok := s.bindings[name]
	if !ok || len(decls) == 0 {
		return nil, false
	}
	return decls[len(decls)-1], true
}

// Names returns bound names in first-bind order, used by passes that
// enumerate a UnifyBody's free variables.
func (s *Scope) Names() []string { return s.order }
