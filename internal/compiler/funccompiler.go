package compiler

import (
	"strings"

	"github.com/opa-rego/rego-go/internal/ast"
	"github.com/opa-rego/rego-go/internal/bundle"
	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// funcCompiler lowers one rule definition's (or query's) body into
// bundle.Block statements, threading variable bindings and the
// enumeration-nesting continuation described in compiler.go's package
// doc (compileBody, compileRefSegments).
type funcCompiler struct {
	c    *Compiler
	pkg  string
	vars map[string]bundle.Local
	next bundle.Local

	// lastTerm holds the operand of the most recently compiled bare
	// expression literal (the compileBody fallback below); compileQuery
	// reads it back as the ad-hoc query's "term" result (§6.2), since a
	// query without an explicit assignment still reports the value of
	// its own expression rather than a bare true.
	lastTerm bundle.Operand
}

func (fc *funcCompiler) freshLocal() bundle.Local {
	l := fc.next
	fc.next++
	return l
}

func cloneVars(v map[string]bundle.Local) map[string]bundle.Local {
	out := make(map[string]bundle.Local, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// compileRuleBody lowers one rule definition node (KindRule) into a
// single Block for fn, writing into fn.Result per the rule's mode.
func (fc *funcCompiler) compileRuleBody(rule *ast.Node, fn *bundle.Function) (bundle.Block, error) {
	head := rule.At(0)
	idx := 1
	var headValue *ast.Node
	if idx < rule.Size() && rule.At(idx).Kind() != ast.KindBody {
		headValue = rule.At(idx)
		idx++
	}
	var body *ast.Node
	if idx < rule.Size() {
		body = rule.At(idx)
	}
	lits := bodyLiterals(body)

	switch fn.Mode {
	case bundle.ModePartialSet:
		keyNode := head.At(0)
		final := func(vars map[string]bundle.Local) (bundle.Block, error) {
			kBlock, kOp, err := fc.compileTermSimple(keyNode, vars)
			if err != nil {
				return nil, err
			}
			return append(kBlock, bundle.Statement{Op: bundle.SetAdd, Target: fn.Result, A: kOp}), nil
		}
		return fc.compileBody(lits, fc.vars, final)

	case bundle.ModePartialObject:
		keyNode := head.At(0)
		final := func(vars map[string]bundle.Local) (bundle.Block, error) {
			kBlock, kOp, err := fc.compileTermSimple(keyNode, vars)
			if err != nil {
				return nil, err
			}
			var vBlock bundle.Block
			var vOp bundle.Operand
			if headValue != nil {
				vb, vo, err := fc.compileTermSimple(headValue, vars)
				if err != nil {
					return nil, err
				}
				vBlock, vOp = vb, vo
			} else {
				vOp = bundle.TrueOperand
			}
			out := append(kBlock, vBlock...)
			out = append(out, bundle.Statement{Op: bundle.ObjectInsertOnce, Target: fn.Result, A: kOp, B: vOp})
			return out, nil
		}
		return fc.compileBody(lits, fc.vars, final)

	default: // ModeComplete, ModeFunc
		final := func(vars map[string]bundle.Local) (bundle.Block, error) {
			if headValue == nil {
				return bundle.Block{{Op: bundle.AssignVarOnce, Target: fn.Result, A: bundle.TrueOperand}}, nil
			}
			vBlock, vOp, err := fc.compileTermSimple(headValue, vars)
			if err != nil {
				return nil, err
			}
			return append(vBlock, bundle.Statement{Op: bundle.AssignVarOnce, Target: fn.Result, A: vOp}), nil
		}
		return fc.compileBody(lits, fc.vars, final)
	}
}

type bodyCont func(vars map[string]bundle.Local) (bundle.Block, error)
type termCont func(vars map[string]bundle.Local, op bundle.Operand) (bundle.Block, error)

// compileBody lowers lits[0:] in order, invoking cont once the
// conjunction is exhausted. A literal that introduces an enumeration
// (some ... in, or a bracket wildcard inside a term) nests the
// remainder of the list — and therefore the eventual call to cont —
// inside that enumeration's Scan block, which is the whole of this
// module's Unifier approximation.
func (fc *funcCompiler) compileBody(lits []*ast.Node, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	if len(lits) == 0 {
		return cont(vars)
	}
	lit, rest := lits[0], lits[1:]
	restCont := func(v map[string]bundle.Local) (bundle.Block, error) {
		return fc.compileBody(rest, v, cont)
	}

	switch lit.Kind() {
	case ast.KindSome:
		return fc.compileSome(lit, vars, restCont)
	case ast.KindEvery:
		return fc.compileEvery(lit, vars, restCont)
	case ast.KindNot:
		return fc.compileNot(lit, vars, restCont)
	case ast.KindWith:
		return fc.compileWith(lit, vars, restCont)
	case ast.KindExprCall:
		if op, ok := lit.Lit.(string); ok {
			switch op {
			case "assign", "unify":
				return fc.compileAssign(lit, vars, restCont)
			case "equal", "neq":
				return fc.compileCompareEq(lit, op, vars, restCont)
			}
		}
	}
	// Fallback: compile the literal as a plain term and gate continuation
	// on its truthiness (§3.2's "every defined value but false is true").
	return fc.compileTermCPS(lit, vars, func(v map[string]bundle.Local, op bundle.Operand) (bundle.Block, error) {
		fc.lastTerm = op
		gate := bundle.Block{
			{Op: bundle.IsDefined, A: op},
			{Op: bundle.NotEqual, A: op, B: bundle.FalseOperand},
		}
		rest, err := restCont(v)
		if err != nil {
			return nil, err
		}
		return append(gate, rest...), nil
	})
}

func (fc *funcCompiler) compileNot(lit *ast.Node, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	inner := lit.At(0)
	innerBlock, err := fc.compileBody([]*ast.Node{inner}, vars, func(v map[string]bundle.Local) (bundle.Block, error) {
		return bundle.Block{}, nil
	})
	if err != nil {
		return nil, err
	}
	notStmt := bundle.Statement{Op: bundle.Not, Blocks: []bundle.Block{innerBlock}}
	rest, err := cont(vars)
	if err != nil {
		return nil, err
	}
	return append(bundle.Block{notStmt}, rest...), nil
}

func (fc *funcCompiler) compileWith(lit *ast.Node, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	pathNode, valueNode, target := lit.At(0), lit.At(1), lit.At(2)
	path, _ := pathNode.Lit.(string)
	segs := strings.Split(path, ".")
	pathOps := make([]bundle.Operand, len(segs))
	for i, s := range segs {
		pathOps[i] = bundle.StringOperand(fc.c.intern(s))
	}

	valBlock, valOp, err := fc.compileTermSimple(valueNode, vars)
	if err != nil {
		return nil, err
	}
	targetBlock, err := fc.compileBody([]*ast.Node{target}, vars, func(v map[string]bundle.Local) (bundle.Block, error) {
		return bundle.Block{}, nil
	})
	if err != nil {
		return nil, err
	}
	withStmt := bundle.Statement{Op: bundle.With, Path: pathOps, Value: valOp, Blocks: []bundle.Block{targetBlock}}
	rest, err := cont(vars)
	if err != nil {
		return nil, err
	}
	out := append(valBlock, withStmt)
	return append(out, rest...), nil
}

func (fc *funcCompiler) compileSome(lit *ast.Node, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	hasColl, _ := lit.Lit.(bool)
	numVars := lit.Size()
	if hasColl {
		numVars--
	}
	if !hasColl {
		newVars := cloneVars(vars)
		for i := 0; i < numVars; i++ {
			name, _ := lit.At(i).Lit.(string)
			newVars[name] = fc.freshLocal()
		}
		return cont(newVars)
	}

	coll := lit.At(lit.Size() - 1)
	collBlock, collOp, err := fc.compileTermSimple(coll, vars)
	if err != nil {
		return nil, err
	}
	key, val := fc.freshLocal(), fc.freshLocal()
	newVars := cloneVars(vars)
	if numVars == 2 {
		name0, _ := lit.At(0).Lit.(string)
		name1, _ := lit.At(1).Lit.(string)
		newVars[name0] = key
		newVars[name1] = val
	} else {
		name0, _ := lit.At(0).Lit.(string)
		newVars[name0] = val
	}

	body, err := cont(newVars)
	if err != nil {
		return nil, err
	}
	scan := bundle.Statement{Op: bundle.Scan, A: collOp, KeyLocal: key, ValLocal: val, Blocks: []bundle.Block{body}}
	return append(collBlock, scan), nil
}

func (fc *funcCompiler) compileEvery(lit *ast.Node, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	n := lit.Size()
	hasKey := n == 4
	var keyNode, valNode, collNode, bodyNode *ast.Node
	if hasKey {
		keyNode, valNode, collNode, bodyNode = lit.At(0), lit.At(1), lit.At(2), lit.At(3)
	} else {
		valNode, collNode, bodyNode = lit.At(0), lit.At(1), lit.At(2)
	}

	collBlock, collOp, err := fc.compileTermSimple(collNode, vars)
	if err != nil {
		return nil, err
	}
	key, val := fc.freshLocal(), fc.freshLocal()
	innerVars := cloneVars(vars)
	if hasKey {
		name, _ := keyNode.Lit.(string)
		innerVars[name] = key
	}
	name, _ := valNode.Lit.(string)
	innerVars[name] = val

	bodyBlock, err := fc.compileBody(bodyLiterals(bodyNode), innerVars, func(v map[string]bundle.Local) (bundle.Block, error) {
		return bundle.Block{}, nil
	})
	if err != nil {
		return nil, err
	}

	foundBad := fc.freshLocal()
	scanBody := bundle.Block{
		{Op: bundle.Not, Blocks: []bundle.Block{bodyBlock}},
		{Op: bundle.AssignVar, Target: foundBad, A: bundle.TrueOperand},
	}
	scan := bundle.Statement{Op: bundle.Scan, A: collOp, KeyLocal: key, ValLocal: val, Blocks: []bundle.Block{scanBody}}

	rest, err := cont(vars)
	if err != nil {
		return nil, err
	}
	out := append(bundle.Block{}, collBlock...)
	out = append(out, bundle.Statement{Op: bundle.AssignVar, Target: foundBad, A: bundle.FalseOperand})
	out = append(out, scan)
	out = append(out, bundle.Statement{Op: bundle.Equal, A: bundle.LocalOperand(foundBad), B: bundle.FalseOperand})
	return append(out, rest...), nil
}

func (fc *funcCompiler) compileAssign(lit *ast.Node, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	lhs, rhs := lit.At(0), lit.At(1)
	// `=`/`:=` are symmetric in Rego: `[a, b] = x` binds x exactly like
	// `x = [a, b]` does, so prefer whichever side is the bare variable.
	if lhs.Kind() != ast.KindVar && rhs.Kind() == ast.KindVar {
		lhs, rhs = rhs, lhs
	}
	if lhs.Kind() != ast.KindVar {
		return fc.compileCompareEq(lit, "equal", vars, cont)
	}
	name, _ := lhs.Lit.(string)

	return fc.compileTermCPS(rhs, vars, func(v map[string]bundle.Local, rhsOp bundle.Operand) (bundle.Block, error) {
		newVars := cloneVars(v)
		var l bundle.Local
		if existing, ok := v[name]; ok {
			l = existing
		} else {
			l = fc.freshLocal()
			newVars[name] = l
		}
		assign := bundle.Statement{Op: bundle.AssignVar, Target: l, A: rhsOp}
		rest, err := cont(newVars)
		if err != nil {
			return nil, err
		}
		return append(bundle.Block{assign}, rest...), nil
	})
}

func (fc *funcCompiler) compileCompareEq(lit *ast.Node, op string, vars map[string]bundle.Local, cont bodyCont) (bundle.Block, error) {
	lBlock, lOp, err := fc.compileTermSimple(lit.At(0), vars)
	if err != nil {
		return nil, err
	}
	rBlock, rOp, err := fc.compileTermSimple(lit.At(1), vars)
	if err != nil {
		return nil, err
	}
	kind := bundle.Equal
	if op == "neq" {
		kind = bundle.NotEqual
	}
	rest, err := cont(vars)
	if err != nil {
		return nil, err
	}
	out := append(append(bundle.Block{}, lBlock...), rBlock...)
	out = append(out, bundle.Statement{Op: kind, A: lOp, B: rOp})
	return append(out, rest...), nil
}

// compileTermSimple compiles node to a value-producing operand without
// allowing it to introduce an enumeration of its own — used for index
// expressions, call arguments, and other positions where this module's
// reduced grammar doesn't support a nested generator.
func (fc *funcCompiler) compileTermSimple(node *ast.Node, vars map[string]bundle.Local) (bundle.Block, bundle.Operand, error) {
	var op bundle.Operand
	block, err := fc.compileTermCPS(node, vars, func(v map[string]bundle.Local, o bundle.Operand) (bundle.Block, error) {
		op = o
		return bundle.Block{}, nil
	})
	return block, op, err
}

var operatorNames = map[string]bool{
	"plus": true, "minus": true, "mul": true, "div": true, "rem": true, "neg": true,
	"and": true, "or": true, "lt": true, "gt": true, "lte": true, "gte": true,
}

func (fc *funcCompiler) resolveCallName(name string) string {
	if operatorNames[name] {
		return name
	}
	if fc.c.known[fc.pkg+"."+name] {
		return "data." + fc.pkg + "." + name
	}
	return name
}

// compileTermCPS compiles node into an Operand and invokes cont with it
// and the (possibly extended) variable bindings; a bracket reference
// whose index is the wildcard `_` or a not-yet-bound identifier nests
// cont's continuation inside the resulting Scan, the same way
// compileBody nests the rest of a literal list.
func (fc *funcCompiler) compileTermCPS(node *ast.Node, vars map[string]bundle.Local, cont termCont) (bundle.Block, error) {
	switch node.Kind() {
	case ast.KindScalar:
		return cont(vars, fc.scalarOperand(node))

	case ast.KindVar:
		return fc.compileVar(node, vars, cont)

	case ast.KindRef:
		return fc.compileRef(node, vars, cont)

	case ast.KindMembership:
		lBlock, lOp, err := fc.compileTermSimple(node.At(0), vars)
		if err != nil {
			return nil, err
		}
		rBlock, rOp, err := fc.compileTermSimple(node.At(1), vars)
		if err != nil {
			return nil, err
		}
		fresh := fc.freshLocal()
		call := bundle.Statement{Op: bundle.Call, Target: fresh, Func: "member", Args: []bundle.Operand{lOp, rOp}}
		rest, err := cont(vars, bundle.LocalOperand(fresh))
		if err != nil {
			return nil, err
		}
		out := append(append(append(bundle.Block{}, lBlock...), rBlock...), call)
		return append(out, rest...), nil

	case ast.KindExprCall:
		return fc.compileCall(node, vars, cont)

	case ast.KindArray:
		return fc.compileCollectionLiteral(node, vars, cont, bundle.MakeArray, bundle.ArrayAppend)
	case ast.KindSet:
		return fc.compileCollectionLiteral(node, vars, cont, bundle.MakeSet, bundle.SetAdd)
	case ast.KindObject:
		return fc.compileObjectLiteral(node, vars, cont)

	case ast.KindComprArray:
		return fc.compileComprehension(node, vars, cont, bundle.MakeArray, bundle.ArrayAppend, false)
	case ast.KindComprSet:
		return fc.compileComprehension(node, vars, cont, bundle.MakeSet, bundle.SetAdd, false)
	case ast.KindComprObject:
		return fc.compileComprehension(node, vars, cont, bundle.MakeObject, bundle.ObjectInsert, true)

	default:
		return nil, unsupported(node)
	}
}

func (fc *funcCompiler) scalarOperand(node *ast.Node) bundle.Operand {
	v, _ := node.Lit.(value.Value)
	switch v {
	case value.Bool(true):
		return bundle.TrueOperand
	case value.Bool(false):
		return bundle.FalseOperand
	}
	if s, ok := v.(value.String); ok {
		return bundle.StringOperand(fc.c.intern(string(s)))
	}
	return bundle.ValueOperand(fc.c.internValue(v))
}

// compileVar resolves a bare identifier: the reserved input/data roots,
// an already-bound local, a zero-arity rule reference in the current
// package (compiled to a Call), or else an unsafe-variable error.
func (fc *funcCompiler) compileVar(node *ast.Node, vars map[string]bundle.Local, cont termCont) (bundle.Block, error) {
	name, _ := node.Lit.(string)
	switch {
	case name == "input":
		return cont(vars, bundle.LocalOperand(localInput))
	case name == "data":
		return cont(vars, bundle.LocalOperand(localData))
	case name == "_":
		return nil, unsupported(node)
	}
	if l, ok := vars[name]; ok {
		return cont(vars, bundle.LocalOperand(l))
	}
	if fc.c.known[fc.pkg+"."+name] {
		fresh := fc.freshLocal()
		call := bundle.Statement{Op: bundle.Call, Target: fresh, Func: "data." + fc.pkg + "." + name}
		rest, err := cont(vars, bundle.LocalOperand(fresh))
		if err != nil {
			return nil, err
		}
		return append(bundle.Block{call}, rest...), nil
	}
	return nil, rerrors.New(rerrors.CompileError, "unsafe variable "+name, rerrors.SourceLocation{
		File: node.Location().File, Line: node.Location().Line, Column: node.Location().Column,
	})
}

// compileRef lowers a KindRef (a Var head plus Dot/Brack segments) into
// a chain of Dot statements, nesting a Scan when a bracket segment's
// index is the wildcard `_` or an as-yet-unbound identifier — this is
// where an enumeration most commonly originates in a rule body. A
// `data`-rooted ref whose leading dot segments name a compiled rule
// (in any package, not just the current one) is instead dispatched
// through compileDataRef, since rule outputs live in the Function
// table, not the base-data tree a bare Dot chain walks.
func (fc *funcCompiler) compileRef(node *ast.Node, vars map[string]bundle.Local, cont termCont) (bundle.Block, error) {
	base := node.At(0)
	segs := node.Children()[1:]

	if name, ok := base.Lit.(string); ok && base.Kind() == ast.KindVar && name == "data" {
		block, handled, err := fc.compileDataRef(segs, vars, cont)
		if err != nil {
			return nil, err
		}
		if handled {
			return block, nil
		}
	}

	baseBlock, baseOp, err := fc.compileTermSimple(base, vars)
	if err != nil {
		return nil, err
	}
	segBlock, err := fc.compileRefSegments(segs, 0, baseOp, vars, cont)
	if err != nil {
		return nil, err
	}
	return append(baseBlock, segBlock...), nil
}

// compileDataRef resolves a `data.`-rooted reference's leading run of
// dotted segments (e.g. "objects.sites" in data.objects.sites[1]) to a
// compiled rule Function by dynamic dispatch (CallDynamic, §4.7.2's
// longest-prefix match, supplementing the distilled spec per SPEC_FULL
// §12), since a rule's value is never materialized into the base data
// tree this package's funcCompiler otherwise walks with plain Dot
// statements. handled is false when no prefix of the dotted path names
// a known rule, so the caller falls back to ordinary base-document
// navigation (a `data.foo` ref into the literal data document, with no
// rule of that name anywhere in the build).
func (fc *funcCompiler) compileDataRef(segs []*ast.Node, vars map[string]bundle.Local, cont termCont) (bundle.Block, bool, error) {
	var names []string
	for _, seg := range segs {
		if seg.Kind() != ast.KindRefArgDot {
			break
		}
		name, _ := seg.Lit.(string)
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, false, nil
	}

	known := false
	acc := names[0]
	if fc.c.known[acc] {
		known = true
	}
	for _, n := range names[1:] {
		acc = acc + "." + n
		if fc.c.known[acc] {
			known = true
		}
	}
	if !known {
		return nil, false, nil
	}

	dynSegs := make([]bundle.Operand, len(names)+1)
	dynSegs[0] = bundle.StringOperand(fc.c.intern("data"))
	for i, n := range names {
		dynSegs[i+1] = bundle.StringOperand(fc.c.intern(n))
	}
	fresh := fc.freshLocal()
	call := bundle.Statement{Op: bundle.CallDynamic, Target: fresh, DynSegments: dynSegs}

	rest, err := fc.compileRefSegments(segs, len(names), bundle.LocalOperand(fresh), vars, cont)
	if err != nil {
		return nil, true, err
	}
	return append(bundle.Block{call}, rest...), true, nil
}

func (fc *funcCompiler) compileRefSegments(segs []*ast.Node, idx int, cur bundle.Operand, vars map[string]bundle.Local, cont termCont) (bundle.Block, error) {
	if idx >= len(segs) {
		return cont(vars, cur)
	}
	seg := segs[idx]

	switch seg.Kind() {
	case ast.KindRefArgDot:
		name, _ := seg.Lit.(string)
		fresh := fc.freshLocal()
		dot := bundle.Statement{Op: bundle.Dot, Target: fresh, A: cur, B: bundle.StringOperand(fc.c.intern(name))}
		rest, err := fc.compileRefSegments(segs, idx+1, bundle.LocalOperand(fresh), vars, cont)
		if err != nil {
			return nil, err
		}
		return append(bundle.Block{dot}, rest...), nil

	case ast.KindRefArgBrack:
		child := seg.At(0)
		if child.Kind() == ast.KindVar {
			name, _ := child.Lit.(string)
			if _, bound := vars[name]; name == "_" || (!bound && !fc.c.known[fc.pkg+"."+name]) {
				key, val := fc.freshLocal(), fc.freshLocal()
				newVars := cloneVars(vars)
				if name != "_" {
					newVars[name] = key
				}
				restBlock, err := fc.compileRefSegments(segs, idx+1, bundle.LocalOperand(val), newVars, cont)
				if err != nil {
					return nil, err
				}
				scan := bundle.Statement{Op: bundle.Scan, A: cur, KeyLocal: key, ValLocal: val, Blocks: []bundle.Block{restBlock}}
				return bundle.Block{scan}, nil
			}
		}
		childBlock, childOp, err := fc.compileTermSimple(child, vars)
		if err != nil {
			return nil, err
		}
		fresh := fc.freshLocal()
		dot := bundle.Statement{Op: bundle.Dot, Target: fresh, A: cur, B: childOp}
		rest, err := fc.compileRefSegments(segs, idx+1, bundle.LocalOperand(fresh), vars, cont)
		if err != nil {
			return nil, err
		}
		out := append(childBlock, dot)
		return append(out, rest...), nil

	default:
		return nil, unsupported(seg)
	}
}

// compileCall lowers an ExprCall to either a user-defined rule/function
// invocation or a built-in, and otherwise covers the arithmetic/set
// infix forms parseArith/parseTerm/parseUnary produce (plus/minus/mul/
// div/rem/neg/and/or/lt/gt/lte/gte), all dispatched the same way since
// the VM treats them identically (Call to a registered name).
func (fc *funcCompiler) compileCall(node *ast.Node, vars map[string]bundle.Local, cont termCont) (bundle.Block, error) {
	name, _ := node.Lit.(string)
	var argBlock bundle.Block
	args := make([]bundle.Operand, node.Size())
	for i := 0; i < node.Size(); i++ {
		b, op, err := fc.compileTermSimple(node.At(i), vars)
		if err != nil {
			return nil, err
		}
		argBlock = append(argBlock, b...)
		args[i] = op
	}
	fresh := fc.freshLocal()
	call := bundle.Statement{Op: bundle.Call, Target: fresh, Func: fc.resolveCallName(name), Args: args}
	rest, err := cont(vars, bundle.LocalOperand(fresh))
	if err != nil {
		return nil, err
	}
	return append(append(argBlock, call), rest...), nil
}

func (fc *funcCompiler) compileCollectionLiteral(node *ast.Node, vars map[string]bundle.Local, cont termCont, makeOp, addOp bundle.StmtKind) (bundle.Block, error) {
	acc := fc.freshLocal()
	out := bundle.Block{{Op: makeOp, Target: acc}}
	for i := 0; i < node.Size(); i++ {
		b, op, err := fc.compileTermSimple(node.At(i), vars)
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
		out = append(out, bundle.Statement{Op: addOp, Target: acc, A: op})
	}
	rest, err := cont(vars, bundle.LocalOperand(acc))
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

func (fc *funcCompiler) compileObjectLiteral(node *ast.Node, vars map[string]bundle.Local, cont termCont) (bundle.Block, error) {
	acc := fc.freshLocal()
	out := bundle.Block{{Op: bundle.MakeObject, Target: acc}}
	for i := 0; i < node.Size(); i++ {
		item := node.At(i)
		kBlock, kOp, err := fc.compileTermSimple(item.At(0), vars)
		if err != nil {
			return nil, err
		}
		vBlock, vOp, err := fc.compileTermSimple(item.At(1), vars)
		if err != nil {
			return nil, err
		}
		out = append(out, kBlock...)
		out = append(out, vBlock...)
		out = append(out, bundle.Statement{Op: bundle.ObjectInsert, Target: acc, A: kOp, B: vOp})
	}
	rest, err := cont(vars, bundle.LocalOperand(acc))
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}

// compileComprehension lowers an array/set/object comprehension by
// running its body as an ordinary (nested) conjunction whose final
// continuation inserts the head term(s) into an accumulator allocated
// before the body runs, then yields that accumulator as this term's
// operand — the same "generator before consumer" CPS nesting compileBody
// uses for a rule's own enumerations, just scoped to one term.
func (fc *funcCompiler) compileComprehension(node *ast.Node, vars map[string]bundle.Local, cont termCont, makeOp, addOp bundle.StmtKind, isObject bool) (bundle.Block, error) {
	acc := fc.freshLocal()
	var headKey, headVal, bodyNode *ast.Node
	if isObject {
		headKey, headVal, bodyNode = node.At(0), node.At(1), node.At(2)
	} else {
		headVal, bodyNode = node.At(0), node.At(1)
	}
	lits := bodyLiterals(bodyNode)

	final := func(v map[string]bundle.Local) (bundle.Block, error) {
		if isObject {
			kBlock, kOp, err := fc.compileTermSimple(headKey, v)
			if err != nil {
				return nil, err
			}
			vBlock, vOp, err := fc.compileTermSimple(headVal, v)
			if err != nil {
				return nil, err
			}
			out := append(kBlock, vBlock...)
			return append(out, bundle.Statement{Op: addOp, Target: acc, A: kOp, B: vOp}), nil
		}
		hBlock, hOp, err := fc.compileTermSimple(headVal, v)
		if err != nil {
			return nil, err
		}
		return append(hBlock, bundle.Statement{Op: addOp, Target: acc, A: hOp}), nil
	}

	bodyBlock, err := fc.compileBody(lits, vars, final)
	if err != nil {
		return nil, err
	}
	out := bundle.Block{{Op: makeOp, Target: acc}}
	out = append(out, bodyBlock...)
	rest, err := cont(vars, bundle.LocalOperand(acc))
	if err != nil {
		return nil, err
	}
	return append(out, rest...), nil
}
