// Package rewrite is the pass engine (component C3): the shared
// pattern-directed rewrite substrate every compiler pass (component C4)
// runs on. A Pass is (name, direction, rules, output WF); a Rule is
// (selector, action); the engine traverses topdown or bottomup, applies
// the first matching rule at each node, optionally loops to a fixpoint,
// and validates the result against the pass's output WF.
package rewrite

import (
	"github.com/opa-rego/rego-go/internal/ast"
)

type Direction int

const (
	TopDown Direction = iota
	BottomUp
)

// Captures are the named sub-matches a Selector records for its Action.
type Captures map[string]*ast.Node

// Selector is a tree-pattern predicate: does n match, and if so what did
// it capture.
type Selector func(n *ast.Node) (Captures, bool)

// Action builds the replacement node from n and its captures. Returning
// n itself (or nil) signals "no change"; returning a node of ast.KindSeq
// splices that node's children inline into the parent (lift).
type Action func(n *ast.Node, caps Captures) (*ast.Node, error)

type Rule struct {
	Name   string
	Select Selector
	Apply  Action
}

// Pass is (name, wf_out, direction, rules) per §4.3.
type Pass struct {
	Name      string
	Direction Direction
	Fixpoint  bool
	Rules     []Rule
	WFOut     ast.WF
}

// Run applies p to root, returning the rewritten tree. The tree is
// rewritten by wrapping it under an internal holder node so that even a
// rule matching the root can replace it, mirroring how every other node
// is replaced.
func (p *Pass) Run(root *ast.Node) (*ast.Node, error) {
	holder := ast.New(ast.KindHolder, ast.Location{})
	holder.PushBack(root)

	for {
		changed, err := p.rewriteChildren(holder)
		if err != nil {
			return nil, err
		}
		if !changed || !p.Fixpoint {
			break
		}
	}

	out := holder.At(0)
	if p.WFOut != nil {
		if err := p.WFOut.Check(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rewriteChildren applies matching rules to each child of parent (in the
// pass's traversal direction) and recurses into each child's own
// children, splicing Seq results inline.
func (p *Pass) rewriteChildren(parent *ast.Node) (bool, error) {
	changedAny := false

	for i := 0; i < parent.Size(); i++ {
		child := parent.At(i)

		if p.Direction == TopDown {
			newChild, spliced, changed, err := p.tryRules(child)
			if err != nil {
				return changedAny, err
			}
			if changed {
				changedAny = true
				if spliced {
					parent.SpliceAt(i, newChild.Children()...)
					i--
					continue
				}
				parent.ReplaceAt(i, newChild)
				child = newChild
			}
		}

		childChanged, err := p.rewriteChildren(child)
		if err != nil {
			return changedAny, err
		}
		changedAny = changedAny || childChanged

		if p.Direction == BottomUp {
			newChild, spliced, changed, err := p.tryRules(child)
			if err != nil {
				return changedAny, err
			}
			if changed {
				changedAny = true
				if spliced {
					parent.SpliceAt(i, newChild.Children()...)
					i--
					continue
				}
				parent.ReplaceAt(i, newChild)
			}
		}
	}
	return changedAny, nil
}

func (p *Pass) tryRules(n *ast.Node) (repl *ast.Node, spliced bool, changed bool, err error) {
	for _, r := range p.Rules {
		caps, ok := r.Select(n)
		if !ok {
			continue
		}
		out, aerr := r.Apply(n, caps)
		if aerr != nil {
			return nil, false, false, aerr
		}
		if out == nil || out == n {
			continue
		}
		return out, out.Kind() == ast.KindSeq, true, nil
	}
	return nil, false, false, nil
}

// KindIs returns a Selector matching any node of the given kind with no
// captures, the common case for simple one-shot rewrites.
func KindIs(k ast.Kind) Selector {
	return func(n *ast.Node) (Captures, bool) {
		if n.Kind() == k {
			return Captures{}, true
		}
		return nil, false
	}
}
