// Package compiler implements the compiler pipeline (component C4):
// lowering parsed internal/ast.Node modules into an internal/bundle.Bundle.
// The ~30 named passes spec.md describes (normalization, ref
// resolution, expression lowering, the dependency-ordered Unifier,
// query/bundle emission) are consolidated here into a smaller set of
// direct Go passes, a deliberate scope reduction recorded in DESIGN.md:
// this module's reduced grammar doesn't need the full generality of an
// arbitrarily-ordered dependency graph, so the Unifier is approximated
// by funccompiler.go's continuation-passing lowering (compileBody,
// compileRefSegments) — a single left-to-right sweep that nests every
// later statement inside each earlier enumeration's Scan block, which
// is exactly right for the
// conventional "generator before consumer" style real Rego policies
// are written in.
package compiler

import (
	"fmt"
	"sort"

	"github.com/opa-rego/rego-go/internal/ast"
	"github.com/opa-rego/rego-go/internal/bundle"
	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

const (
	localData  bundle.Local = 0
	localInput bundle.Local = 1
	firstFree  bundle.Local = 2
)

// Compiler accumulates interned strings/constants and emitted
// functions across every module in one build.
type Compiler struct {
	b           *bundle.Bundle
	stringIdx   map[string]int
	constKeyIdx map[string]int

	// known holds every package-qualified rule name gathered in Compile's
	// first pass, so a bare identifier inside any rule body can be told
	// apart from an unbound variable reference before that rule's own
	// body is lowered.
	known map[string]bool
}

func New(baseData value.Value) *Compiler {
	b := bundle.New()
	if baseData != nil {
		b.Data = baseData
	}
	return &Compiler{b: b, stringIdx: map[string]int{}, constKeyIdx: map[string]int{}, known: map[string]bool{}}
}

func (c *Compiler) intern(s string) int {
	if i, ok := c.stringIdx[s]; ok {
		return i
	}
	i := len(c.b.Strings)
	c.b.Strings = append(c.b.Strings, s)
	c.stringIdx[s] = i
	return i
}

func (c *Compiler) internValue(v value.Value) int {
	key := value.ToKey(v)
	if i, ok := c.constKeyIdx[key]; ok {
		return i
	}
	i := len(c.b.Constants)
	c.b.Constants = append(c.b.Constants, v)
	c.constKeyIdx[key] = i
	return i
}

// ruleDef is one parsed rule node plus the package-qualified name its
// head resolves to, gathered in a first pass so every cross-reference
// between rules in the same build can resolve regardless of file order.
type ruleDef struct {
	pkg  string
	name string
	node *ast.Node
}

// Compile lowers every module (already parsed, one ast.Node per file)
// into a single Bundle, wiring every rule into a named Function,
// building a query plan if queryBody is non-nil, and building one
// "entrypoint:data.X.Y" plan per fully-qualified rule name in
// entrypoints (§6.3's AddEntrypoint/RunEntrypoint surface).
func Compile(modules []*ast.Node, baseData value.Value, queryBody *ast.Node, entrypoints []string) (*bundle.Bundle, error) {
	c := New(baseData)

	var defs []ruleDef
	for _, raw := range modules {
		mod, err := expandImports(raw)
		if err != nil {
			return nil, err
		}
		pkg, err := packageName(mod)
		if err != nil {
			return nil, err
		}
		for i := 0; i < mod.Size(); i++ {
			child := mod.At(i)
			if child.Kind() != ast.KindRule {
				continue
			}
			head := child.At(0)
			name, ok := head.Lit.(string)
			if !ok {
				return nil, rerrors.New(rerrors.CompileError, "rule head missing a name", rerrors.SourceLocation{})
			}
			defs = append(defs, ruleDef{pkg: pkg, name: pkg + "." + name, node: child})
		}
	}

	grouped := map[string][]ruleDef{}
	var order []string
	for _, d := range defs {
		if _, ok := grouped[d.name]; !ok {
			order = append(order, d.name)
		}
		grouped[d.name] = append(grouped[d.name], d)
		c.known[d.name] = true
	}
	sort.Strings(order)

	for _, name := range order {
		pkg := grouped[name][0].pkg
		fn, err := c.compileRuleGroup(pkg, "data."+name, grouped[name])
		if err != nil {
			return nil, err
		}
		c.b.Functions = append(c.b.Functions, fn)
	}

	if queryBody != nil {
		plan, err := c.compileQuery(queryBody)
		if err != nil {
			return nil, err
		}
		c.b.Plans = append(c.b.Plans, plan)
		c.b.QueryPlan = len(c.b.Plans) - 1
	}

	for _, ep := range entrypoints {
		plan, err := c.compileEntrypoint(ep)
		if err != nil {
			return nil, err
		}
		c.b.Plans = append(c.b.Plans, plan)
	}

	c.b.LocalCount = 256 // generous fixed frame size; locals beyond this grow on demand (CallFrame.set)
	return c.b, nil
}

// compileEntrypoint builds the synthetic "entrypoint:<name>" plan that
// calls the already-compiled function named name and reports its
// result as the single "result" key of one ResultSetAdd object, the
// shape Interpreter.QueryBundleEntrypoint projects (§6.3).
func (c *Compiler) compileEntrypoint(name string) (*bundle.Plan, error) {
	if c.b.FunctionByName(name) == nil {
		return nil, rerrors.New(rerrors.CompileError, fmt.Sprintf("unknown entrypoint %q", name), rerrors.SourceLocation{})
	}
	callTarget := firstFree
	obj := firstFree + 1
	block := bundle.Block{
		{Op: bundle.Call, Target: callTarget, Func: name},
		{Op: bundle.MakeObject, Target: obj},
		{Op: bundle.ObjectInsert, Target: obj, A: bundle.StringOperand(c.intern("result")), B: bundle.LocalOperand(callTarget)},
		{Op: bundle.ResultSetAdd, A: bundle.LocalOperand(obj)},
	}
	return &bundle.Plan{Name: "entrypoint:" + name, Blocks: []bundle.Block{block}}, nil
}

func packageName(mod *ast.Node) (string, error) {
	if mod.Size() == 0 || mod.At(0).Kind() != ast.KindPackage {
		return "", rerrors.New(rerrors.CompileError, "module has no package declaration", rerrors.SourceLocation{})
	}
	name, _ := mod.At(0).Lit.(string)
	return name, nil
}

// compileRuleGroup lowers every definition sharing one qualified name
// into a single Function, choosing its evaluation Mode from the head
// shape of its first definition (§4.4: complete, partial set/object, or
// arity>0 function — a module may not mix shapes under one name, which
// this module does not itself validate: malformed input here simply
// compiles incorrectly rather
// than being rejected up front).
func (c *Compiler) compileRuleGroup(pkg, qualifiedName string, defs []ruleDef) (*bundle.Function, error) {
	head0 := defs[0].node.At(0)
	fn := &bundle.Function{Name: qualifiedName, Cacheable: true}

	switch head0.Kind() {
	case ast.KindRuleHeadFunc:
		fn.Mode = bundle.ModeFunc
	case ast.KindRuleHeadObj:
		fn.Mode = bundle.ModePartialObject
	case ast.KindRuleHeadSet:
		if head0.Size() > 0 {
			fn.Mode = bundle.ModePartialSet
		} else {
			fn.Mode = bundle.ModeComplete
		}
	}

	fc := &funcCompiler{c: c, pkg: pkg, vars: map[string]bundle.Local{}, next: firstFree}
	fn.Result = fc.freshLocal()

	if fn.Mode == bundle.ModeFunc {
		for i := 0; i < head0.Size(); i++ {
			p := head0.At(i)
			name, _ := p.Lit.(string)
			l := fc.freshLocal()
			fc.vars[name] = l
			fn.Parameters = append(fn.Parameters, l)
		}
		fn.Arity = len(fn.Parameters)
	}

	for _, def := range defs {
		block, err := fc.compileRuleBody(def.node, fn)
		if err != nil {
			return nil, err
		}
		fn.Blocks = append(fn.Blocks, block)
	}
	return fn, nil
}

// compileQuery lowers an ad-hoc query body into the synthetic
// "query" plan: each satisfying assignment of the body appends one
// {"term": ..., <var>: ...} object to the result set, per §6.2.
func (c *Compiler) compileQuery(body *ast.Node) (*bundle.Plan, error) {
	fc := &funcCompiler{c: c, pkg: "", vars: map[string]bundle.Local{}, next: firstFree, lastTerm: bundle.TrueOperand}
	lits := bodyLiterals(body)

	final := func(vars map[string]bundle.Local) (bundle.Block, error) {
		obj := fc.freshLocal()
		var out bundle.Block
		out = append(out, bundle.Statement{Op: bundle.MakeObject, Target: obj})
		out = append(out, bundle.Statement{
			Op: bundle.ObjectInsert, Target: obj,
			A: bundle.StringOperand(fc.c.intern("term")), B: fc.lastTerm,
		})
		names := make([]string, 0, len(vars))
		for n := range vars {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, bundle.Statement{
				Op: bundle.ObjectInsert, Target: obj,
				A: bundle.StringOperand(fc.c.intern(n)), B: bundle.LocalOperand(vars[n]),
			})
		}
		out = append(out, bundle.Statement{Op: bundle.ResultSetAdd, A: bundle.LocalOperand(obj)})
		return out, nil
	}

	block, err := fc.compileBody(lits, fc.vars, final)
	if err != nil {
		return nil, err
	}
	return &bundle.Plan{Name: "query", Blocks: []bundle.Block{block}}, nil
}

func bodyLiterals(body *ast.Node) []*ast.Node {
	if body == nil {
		return nil
	}
	lits := make([]*ast.Node, body.Size())
	for i := 0; i < body.Size(); i++ {
		lits[i] = body.At(i)
	}
	return lits
}

func unsupported(n *ast.Node) error {
	return rerrors.New(rerrors.CompileError, fmt.Sprintf("unsupported construct %s", n.Kind()), rerrors.SourceLocation{
		File: n.Location().File, Line: n.Location().Line, Column: n.Location().Column,
	})
}
