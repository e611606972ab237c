package ast

// scopeOpeningKinds are the kinds that open a symbol table, per §3.1:
// Module, UnifyBody, LiteralEnum, and Function.
var scopeOpeningKinds = map[Kind]bool{
	KindModule:      true,
	KindUnifyBody:   true,
	KindLiteralEnum: true,
	KindFunction:    true,
}

// Node is an AST node: (Kind, Location, ordered Children, optional Symbol
// table). It is the single representation shared by every compiler stage
// — surface syntax, intermediate lowering, and bundle-adjacent IR —
// distinguished only by Kind, per the "flat enumeration, not a class
// hierarchy" design note.
type Node struct {
	kind     Kind
	loc      Location
	children []*Node
	parent   *Node
	scope    *Scope

	// Lit carries kind-specific payload: the operator string for
	// ArithInfix/BoolInfix, the literal value.Value for Scalar/DataTerm,
	// the statement's local-index/ext payload while building the bundle,
	// etc. Kept as interface{} rather than one field per kind, the way a
	// tagged union's payload is modeled in a GC'd language (§9).
	Lit interface{}
}

func New(kind Kind, loc Location) *Node {
	n := &Node{kind: kind, loc: loc}
	if scopeOpeningKinds[kind] {
		n.scope = newScope(n)
	}
	return n
}

func (n *Node) Kind() Kind         { return n.kind }
func (n *Node) Location() Location { return n.loc }
func (n *Node) SetLocation(l Location) { n.loc = l }
func (n *Node) Parent() *Node      { return n.parent }
func (n *Node) Size() int          { return len(n.children) }

func (n *Node) At(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

func (n *Node) Children() []*Node { return n.children }

// PushBack appends child, attaching n as its parent.
func (n *Node) PushBack(child *Node) *Node {
	if child == nil {
		return n
	}
	child.parent = n
	n.children = append(n.children, child)
	return n
}

func (n *Node) PushBackAll(children ...*Node) *Node {
	for _, c := range children {
		n.PushBack(c)
	}
	return n
}

// Insert splices children in at position pos.
func (n *Node) Insert(pos int, children ...*Node) {
	for _, c := range children {
		c.parent = n
	}
	tail := append([]*Node{}, n.children[pos:]...)
	n.children = append(append(n.children[:pos], children...), tail...)
}

// Replace swaps old for replacement among n's direct children, preserving
// replacement's ability to expand inline if it is itself spliced by the
// caller (the pass engine handles Seq expansion; Replace itself is 1:1).
func (n *Node) Replace(old, replacement *Node) bool {
	for i, c := range n.children {
		if c == old {
			replacement.parent = n
			n.children[i] = replacement
			return true
		}
	}
	return false
}

// Erase removes the child at pos.
func (n *Node) Erase(pos int) {
	n.children = append(n.children[:pos], n.children[pos+1:]...)
}

// ReplaceAt swaps the child at pos for repl, used by the rewrite engine
// when a rule fires.
func (n *Node) ReplaceAt(pos int, repl *Node) {
	repl.parent = n
	n.children[pos] = repl
}

// SpliceAt replaces the single child at pos with the given sequence of
// nodes (§4.3's "lift a child upward" / Seq expansion).
func (n *Node) SpliceAt(pos int, repls ...*Node) {
	for _, r := range repls {
		r.parent = n
	}
	tail := append([]*Node{}, n.children[pos+1:]...)
	n.children = append(append(append([]*Node{}, n.children[:pos]...), repls...), tail...)
}

// OpensScope reports whether this node carries its own symbol table.
func (n *Node) OpensScope() bool { return n.scope != nil }

func (n *Node) Scope() *Scope { return n.scope }

// Lookdown finds a name bound directly in n's own scope. It reports
// false when n opens no scope; enclosing scopes are not searched.
func (n *Node) Lookdown(name string) (*Node, bool) {
	if n.scope != nil {
		return n.scope.Lookdown(name)
	}
	return nil, false
}

// Lookup walks up the scope chain starting at n's nearest enclosing
// scope (n's own if it opens one, else its ancestors') and returns the
// first binding found, per §3.1 "resolve upward through the enclosing
// symbol-tables to the nearest binding".
func (n *Node) Lookup(name string) (*Node, bool) {
	cur := n
	if cur.scope == nil {
		cur = cur.parent
	}
	for cur != nil {
		if cur.scope != nil {
			if decl, ok := cur.scope.Lookdown(name); ok {
				return decl, true
			}
		}
		cur = cur.parent
	}
	return nil, false
}

// Bind records name -> decl in the nearest enclosing scope (n's own, if
// it opens one, else the first ancestor that does).
func (n *Node) Bind(name string, decl *Node) {
	cur := n
	for cur != nil {
		if cur.scope != nil {
			cur.scope.Bind(name, decl)
			return
		}
		cur = cur.parent
	}
}

// Fresh yields a Location unique within the whole AST, used to name
// temporaries this node's pass introduces.
func (n *Node) Fresh(hint string) Location { return Fresh(hint) }

// Clone deep-copies the subtree rooted at n; shared read-only children
// across two passes are never mutated in place without going through
// Clone first (§9 "Cyclic structures").
func (n *Node) Clone() *Node {
	c := &Node{kind: n.kind, loc: n.loc, Lit: n.Lit}
	if n.scope != nil {
		c.scope = newScope(c)
	}
	for _, child := range n.children {
		c.PushBack(child.Clone())
	}
	return c
}
