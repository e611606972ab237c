// Pass 16 of §4.4: expand_imports. Rewritten here on top of the
// otherwise-unexercised internal/rewrite pass engine (component C3),
// rather than folded into funcCompiler's direct lowering like the rest
// of this module's passes, because this one is a genuinely tree-local
// rewrite with no enumeration-ordering concerns — exactly the shape
// the engine's Selector/Action substrate was built for.
package compiler

import (
	"strings"

	"github.com/opa-rego/rego-go/internal/ast"
	"github.com/opa-rego/rego-go/internal/rewrite"
)

// expandImports resolves every `import data.foo.bar as baz` (or the
// implicit alias, the path's final segment) in mod by rewriting every
// Var reference to that alias, anywhere in the module's rule bodies,
// into the fully qualified Ref the import stands for.
//
// `import future.keywords.*` is intentionally left untouched: this
// module's lexer/parser already recognizes every/in/some/if/contains
// etc. as fixed keyword tokens rather than gating them behind an
// import, so there is nothing for this pass to rewrite them to.
func expandImports(mod *ast.Node) (*ast.Node, error) {
	aliases := map[string]string{}
	var imports []int
	for i := 0; i < mod.Size(); i++ {
		child := mod.At(i)
		if child.Kind() != ast.KindImport {
			continue
		}
		imports = append(imports, i)
		pair, ok := child.Lit.([2]string)
		if !ok {
			continue
		}
		path, alias := pair[0], pair[1]
		if strings.HasPrefix(path, "future.keywords") {
			continue
		}
		if alias == "" {
			segs := strings.Split(path, ".")
			alias = segs[len(segs)-1]
		}
		aliases[alias] = path
	}
	if len(aliases) == 0 {
		return mod, nil
	}

	pass := &rewrite.Pass{
		Name:      "expand_imports",
		Direction: rewrite.TopDown,
		Rules: []rewrite.Rule{
			{
				Name:   "alias_to_ref",
				Select: aliasSelector(aliases),
				Apply:  aliasAction(aliases),
			},
		},
	}

	// Import declarations have already done their job as of this pass;
	// strip them so later passes never see an aliases-only Var hanging
	// off a dropped KindImport child.
	for i := len(imports) - 1; i >= 0; i-- {
		mod.Erase(imports[i])
	}

	return pass.Run(mod)
}

func aliasSelector(aliases map[string]string) rewrite.Selector {
	return func(n *ast.Node) (rewrite.Captures, bool) {
		if n.Kind() != ast.KindVar {
			return nil, false
		}
		name, ok := n.Lit.(string)
		if !ok {
			return nil, false
		}
		if _, ok := aliases[name]; !ok {
			return nil, false
		}
		return rewrite.Captures{}, true
	}
}

func aliasAction(aliases map[string]string) rewrite.Action {
	return func(n *ast.Node, _ rewrite.Captures) (*ast.Node, error) {
		name, _ := n.Lit.(string)
		path, ok := aliases[name]
		if !ok {
			return n, nil
		}
		return buildPathRef(n.Location(), path), nil
	}
}

// buildPathRef builds the Ref/Var subtree a dotted import path stands
// for ("data.foo.bar" -> Ref{Var(data), .foo, .bar}), the same shape
// compileRef/compileRefSegments already know how to lower.
func buildPathRef(loc ast.Location, path string) *ast.Node {
	segs := strings.Split(path, ".")
	head := ast.New(ast.KindVar, loc)
	head.Lit = segs[0]
	if len(segs) == 1 {
		return head
	}
	ref := ast.New(ast.KindRef, loc)
	ref.PushBack(head)
	for _, seg := range segs[1:] {
		dot := ast.New(ast.KindRefArgDot, loc)
		dot.Lit = seg
		ref.PushBack(dot)
	}
	return ref
}
