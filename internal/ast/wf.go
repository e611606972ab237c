package ast

import (
	"fmt"

	rerrors "github.com/opa-rego/rego-go/internal/errors"
)

// WF is a pass's well-formedness relation (§4.2): for each Kind, the set
// of child Kinds its instances may contain. This is a deliberately
// reduced form of the full "A * B++[tag]" sequence-pattern DSL §4.2
// describes — an unordered, uncounted allowed-child-kind set rather than
// a full sequence grammar. The reduction is recorded as an Open Question
// resolution in DESIGN.md: our parser already only emits the constrained
// grammar subset this module accepts, so the stronger, ordered pattern
// language buys little extra safety here while costing real complexity.
// A Kind with no entry in the map is unconstrained (any children).
type WF map[Kind][]Kind

func (wf WF) allows(parent, child Kind) bool {
	allowed, ok := wf[parent]
	if !ok {
		return true
	}
	for _, k := range allowed {
		if k == child {
			return true
		}
	}
	return false
}

// Check walks the subtree rooted at n and verifies every parent/child
// pair is permitted by wf, per Testable Property 2 (WF preservation).
func (wf WF) Check(n *Node) error {
	var errs rerrors.ErrorSeq
	var walk func(*Node)
	walk = func(node *Node) {
		for _, child := range node.children {
			if !wf.allows(node.kind, child.kind) {
				errs = errs.Append(rerrors.New(rerrors.CompileError,
					fmt.Sprintf("well-formedness violation: %s may not contain %s", node.kind, child.kind),
					rerrors.SourceLocation{File: child.loc.File, Line: child.loc.Line, Column: child.loc.Column}))
			}
			walk(child)
		}
	}
	walk(n)
	if errs.HasErrors() {
		return errs
	}
	return nil
}
