package vm

import (
	"fmt"

	"github.com/opa-rego/rego-go/internal/bundle"
	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// resolveOperand decodes a bundle.Operand against the bundle's string
// table and constant pool, or the active frame's locals (§3.4's tagged
// operand union: Local | String | Value | False | True | None).
func (s *State) resolveOperand(f *CallFrame, op bundle.Operand) value.Value {
	switch op.Kind {
	case bundle.OperandLocal:
		return f.get(bundle.Local(op.N))
	case bundle.OperandString:
		if op.N >= 0 && op.N < len(s.Bundle.Strings) {
			return value.String(s.Bundle.Strings[op.N])
		}
		return value.TheUndefined
	case bundle.OperandValue:
		if op.N >= 0 && op.N < len(s.Bundle.Constants) {
			return s.Bundle.Constants[op.N]
		}
		return value.TheUndefined
	case bundle.OperandTrue:
		return value.Bool(true)
	case bundle.OperandFalse:
		return value.Bool(false)
	default:
		return value.TheUndefined
	}
}

// execBlock runs stmts in order against frame, stopping at the first
// statement that is undefined (negation-as-failure's soft stop, §7) or
// that requests a break. A real error aborts evaluation entirely.
func (s *State) execBlock(f *CallFrame, block bundle.Block) (control, error) {
	for i := range block {
		stmt := &block[i]
		if s.Hook != nil {
			s.Hook.OnStatement(f, stmt)
		}
		ctrl, err := s.execStmt(f, stmt)
		if err != nil {
			return control{}, err
		}
		if ctrl.breakLevels > 0 {
			return control{ok: true, breakLevels: ctrl.breakLevels - 1}, nil
		}
		if !ctrl.ok {
			return cFail, nil
		}
	}
	return cOK, nil
}

func (s *State) execStmt(f *CallFrame, stmt *bundle.Statement) (control, error) {
	switch stmt.Op {
	case bundle.MakeObject:
		f.set(stmt.Target, value.NewObject())
		return cOK, nil
	case bundle.MakeArray:
		f.set(stmt.Target, value.NewArray())
		return cOK, nil
	case bundle.MakeSet:
		f.set(stmt.Target, value.NewSet())
		return cOK, nil
	case bundle.MakeNull:
		f.set(stmt.Target, value.TheNull)
		return cOK, nil
	case bundle.MakeNumberInt, bundle.MakeNumberRef:
		f.set(stmt.Target, s.resolveOperand(f, stmt.A))
		return cOK, nil

	case bundle.AssignVar:
		f.set(stmt.Target, s.resolveOperand(f, stmt.A))
		return cOK, nil
	case bundle.AssignVarOnce:
		return s.execAssignOnce(f, stmt)
	case bundle.ResetLocal:
		f.set(stmt.Target, value.TheUndefined)
		return cOK, nil

	case bundle.IsDefined:
		if value.IsUndefined(s.resolveOperand(f, stmt.A)) {
			return cFail, nil
		}
		return cOK, nil
	case bundle.IsUndefined:
		if !value.IsUndefined(s.resolveOperand(f, stmt.A)) {
			return cFail, nil
		}
		return cOK, nil
	case bundle.IsObject:
		_, ok := s.resolveOperand(f, stmt.A).(*value.Object)
		return boolCtrl(ok), nil
	case bundle.IsArray:
		_, ok := s.resolveOperand(f, stmt.A).(*value.Array)
		return boolCtrl(ok), nil
	case bundle.IsSet:
		_, ok := s.resolveOperand(f, stmt.A).(*value.Set)
		return boolCtrl(ok), nil

	case bundle.Not:
		return s.execNot(f, stmt)
	case bundle.BlockOp:
		if len(stmt.Blocks) == 0 {
			return cOK, nil
		}
		return s.execBlock(f, stmt.Blocks[0])

	case bundle.Len:
		return s.execLen(f, stmt)
	case bundle.Dot:
		return s.execDot(f, stmt)

	case bundle.ObjectInsert:
		return s.execObjectInsert(f, stmt, false)
	case bundle.ObjectInsertOnce:
		return s.execObjectInsert(f, stmt, true)
	case bundle.ObjectMerge:
		merged, err := value.MergeObjects(s.resolveOperand(f, stmt.A), s.resolveOperand(f, stmt.B))
		if err != nil {
			return control{}, err
		}
		f.set(stmt.Target, merged)
		return cOK, nil

	case bundle.ArrayAppend:
		arr, ok := f.get(stmt.Target).(*value.Array)
		if !ok {
			arr = value.NewArray()
		}
		arr.Append(s.resolveOperand(f, stmt.A))
		f.set(stmt.Target, arr)
		return cOK, nil
	case bundle.SetAdd:
		st, ok := f.get(stmt.Target).(*value.Set)
		if !ok {
			st = value.NewSet()
		}
		st.Add(s.resolveOperand(f, stmt.A))
		f.set(stmt.Target, st)
		return cOK, nil

	case bundle.ReturnLocal:
		f.set(stmt.Target, s.resolveOperand(f, stmt.A))
		return cOK, nil
	case bundle.ResultSetAdd:
		s.Results = append(s.Results, s.resolveOperand(f, stmt.A))
		return cOK, nil

	case bundle.Equal:
		return boolCtrl(value.Equal(s.resolveOperand(f, stmt.A), s.resolveOperand(f, stmt.B))), nil
	case bundle.NotEqual:
		return boolCtrl(!value.Equal(s.resolveOperand(f, stmt.A), s.resolveOperand(f, stmt.B))), nil

	case bundle.Call:
		return s.execCall(f, stmt)
	case bundle.CallDynamic:
		return s.execCallDynamic(f, stmt)
	case bundle.Scan:
		return s.execScan(f, stmt)
	case bundle.With:
		return s.execWith(f, stmt)
	case bundle.Break:
		return control{ok: true, breakLevels: stmt.BreakLevels}, nil
	case bundle.Nop:
		return cOK, nil
	default:
		return control{}, rerrors.New(rerrors.CompileError, fmt.Sprintf("unhandled statement kind %s", stmt.Op), rerrors.SourceLocation{})
	}
}

func boolCtrl(ok bool) control { return control{ok: ok} }

func (s *State) execAssignOnce(f *CallFrame, stmt *bundle.Statement) (control, error) {
	newVal := s.resolveOperand(f, stmt.A)
	existing := f.get(stmt.Target)
	if !value.IsUndefined(existing) && !value.Equal(existing, newVal) {
		return control{}, rerrors.New(rerrors.ConflictError,
			fmt.Sprintf("complete rules must not produce multiple outputs: %s and %s", value.ToKey(existing), value.ToKey(newVal)),
			rerrors.SourceLocation{File: stmt.Debug.File, Line: stmt.Debug.Line, Column: stmt.Debug.Column})
	}
	f.set(stmt.Target, newVal)
	return cOK, nil
}

func (s *State) execNot(f *CallFrame, stmt *bundle.Statement) (control, error) {
	if len(stmt.Blocks) == 0 {
		return cOK, nil
	}
	inner := f.clone()
	ctrl, err := s.execBlock(inner, stmt.Blocks[0])
	if err != nil {
		return control{}, err
	}
	return boolCtrl(!ctrl.ok), nil
}

func (s *State) execLen(f *CallFrame, stmt *bundle.Statement) (control, error) {
	v := s.resolveOperand(f, stmt.A)
	var n int
	switch t := v.(type) {
	case value.String:
		n = len(string(t))
	case *value.Array:
		n = t.Len()
	case *value.Set:
		n = t.Len()
	case *value.Object:
		n = t.Len()
	default:
		return cFail, nil
	}
	f.set(stmt.Target, value.NewInt(int64(n)))
	return cOK, nil
}

func (s *State) execDot(f *CallFrame, stmt *bundle.Statement) (control, error) {
	base := s.resolveOperand(f, stmt.A)
	key := s.resolveOperand(f, stmt.B)
	switch t := base.(type) {
	case *value.Object:
		v, ok := t.Get(key)
		if !ok {
			return cFail, nil
		}
		f.set(stmt.Target, v)
		return cOK, nil
	case *value.Array:
		idx, ok := key.(value.Int)
		if !ok {
			return cFail, nil
		}
		n, ok := idx.Big.Int64()
		if !ok {
			return cFail, nil
		}
		elem, ok := t.At(int(n))
		if !ok {
			return cFail, nil
		}
		f.set(stmt.Target, elem)
		return cOK, nil
	default:
		return cFail, nil
	}
}

func (s *State) execObjectInsert(f *CallFrame, stmt *bundle.Statement, once bool) (control, error) {
	obj, ok := f.get(stmt.Target).(*value.Object)
	if !ok {
		obj = value.NewObject()
	}
	out, err := value.InsertIntoObject(obj, s.resolveOperand(f, stmt.A), s.resolveOperand(f, stmt.B), once)
	if err != nil {
		return control{}, err
	}
	f.set(stmt.Target, out)
	return cOK, nil
}

// execScan iterates the collection in stmt.A, binding each (key, value)
// pair into stmt.KeyLocal/stmt.ValLocal in a fresh copy of the frame and
// running stmt.Blocks[0] as the loop body, per the canonical Scan order
// of §8 (Array by index, Object by insertion order, Set by canonical
// key). Dependent statements were nested inside this block by the
// compiler's enumeration-lowering pass, so over an array, set or object
// Scan reports success whether or not any iteration's body succeeded; it
// is control flow, not a truth test. A non-collection operand is
// undefined.
func (s *State) execScan(f *CallFrame, stmt *bundle.Statement) (control, error) {
	if len(stmt.Blocks) == 0 {
		return cOK, nil
	}
	collection := s.resolveOperand(f, stmt.A)

	iterate := func(key, val value.Value) (bool, error) {
		inner := f.clone()
		inner.set(stmt.KeyLocal, key)
		inner.set(stmt.ValLocal, val)
		ctrl, err := s.execBlock(inner, stmt.Blocks[0])
		if err != nil {
			return false, err
		}
		copy(f.Locals, inner.Locals)
		return ctrl.breakLevels > 0, nil
	}

	switch t := collection.(type) {
	case *value.Array:
		for i := 0; i < t.Len(); i++ {
			elem, _ := t.At(i)
			stop, err := iterate(value.NewInt(int64(i)), elem)
			if err != nil {
				return control{}, err
			}
			if stop {
				break
			}
		}
	case *value.Set:
		for _, it := range t.Items() {
			stop, err := iterate(it, it)
			if err != nil {
				return control{}, err
			}
			if stop {
				break
			}
		}
	case *value.Object:
		keys, vals := t.Entries()
		for i, k := range keys {
			stop, err := iterate(k, vals[i])
			if err != nil {
				return control{}, err
			}
			if stop {
				break
			}
		}
	default:
		return cFail, nil
	}
	return cOK, nil
}

// execWith pushes a data/input override for the duration of the nested
// body, then restores the prior state unconditionally (§4.7's with
// semantics), propagating the body's success.
func (s *State) execWith(f *CallFrame, stmt *bundle.Statement) (control, error) {
	if len(stmt.Blocks) == 0 {
		return cOK, nil
	}
	path := make([]string, len(stmt.Path))
	for i, p := range stmt.Path {
		if str, ok := s.resolveOperand(f, p).(value.String); ok {
			path[i] = string(str)
		}
	}
	newVal := s.resolveOperand(f, stmt.Value)

	s.withDepth++
	defer func() { s.withDepth-- }()

	old := s.overridePath(path, newVal)
	defer old()

	return s.execBlock(f, stmt.Blocks[0])
}

// overridePath replaces the root (input/data) named by path[0] (and
// descends the rest as an object path) for the block's duration,
// returning a closure that restores it.
func (s *State) overridePath(path []string, newVal value.Value) func() {
	if len(path) == 0 {
		return func() {}
	}
	switch path[0] {
	case "input":
		old := s.Input
		s.Input = applyOverride(s.Input, path[1:], newVal)
		return func() { s.Input = old }
	default:
		old := s.Data
		s.Data = applyOverride(s.Data, path, newVal)
		return func() { s.Data = old }
	}
}

func applyOverride(root value.Value, path []string, newVal value.Value) value.Value {
	if len(path) == 0 {
		return newVal
	}
	obj, ok := root.(*value.Object)
	if !ok {
		obj = value.NewObject()
	}
	obj = obj.Clone()
	child, _ := obj.Get(value.String(path[0]))
	if child == nil {
		child = value.NewObject()
	}
	obj.Set(value.String(path[0]), applyOverride(child, path[1:], newVal))
	return obj
}

func (s *State) execCall(f *CallFrame, stmt *bundle.Statement) (control, error) {
	args := make([]value.Value, len(stmt.Args))
	for i, a := range stmt.Args {
		args[i] = s.resolveOperand(f, a)
	}

	var result value.Value
	var err error
	if s.Bundle.FunctionByName(stmt.Func) != nil {
		result, err = s.CallFunction(stmt.Func, args)
	} else {
		result, err = s.Builtins.Invoke(stmt.Func, args)
		if re, ok := err.(*rerrors.RegoError); ok && (re.Code == rerrors.EvalTypeError || re.Code == rerrors.BuiltinError) {
			if _, known := s.Builtins.Lookup(stmt.Func); known {
				if !s.StrictBuiltins {
					return cFail, nil
				}
				if re.Code == rerrors.EvalTypeError {
					err = rerrors.Wrap(re, rerrors.BuiltinError, stmt.Func, rerrors.SourceLocation{})
				}
			}
		}
	}
	if err != nil {
		return control{}, err
	}
	if value.IsUndefined(result) {
		return cFail, nil
	}
	f.set(stmt.Target, result)
	return cOK, nil
}

// execCallDynamic resolves stmt.DynSegments against the function table
// by longest-prefix match (supplementing the distilled spec with
// original_source's dynamic-dispatch algorithm, §12): the longest
// registered function name that is a prefix of the joined segments wins,
// and any remaining segments are treated as a data lookup into its
// result.
func (s *State) execCallDynamic(f *CallFrame, stmt *bundle.Statement) (control, error) {
	segments := make([]string, len(stmt.DynSegments))
	for i, seg := range stmt.DynSegments {
		if str, ok := s.resolveOperand(f, seg).(value.String); ok {
			segments[i] = string(str)
		}
	}

	fn, consumed := s.longestPrefixFunction(segments)
	if fn == nil {
		return cFail, nil
	}
	args := make([]value.Value, len(stmt.Args))
	for i, a := range stmt.Args {
		args[i] = s.resolveOperand(f, a)
	}
	result, err := s.CallFunction(fn.Name, args)
	if err != nil {
		return control{}, err
	}
	for _, rest := range segments[consumed:] {
		obj, ok := result.(*value.Object)
		if !ok {
			return cFail, nil
		}
		v, ok := obj.Get(value.String(rest))
		if !ok {
			return cFail, nil
		}
		result = v
	}
	if value.IsUndefined(result) {
		return cFail, nil
	}
	f.set(stmt.Target, result)
	return cOK, nil
}

func (s *State) longestPrefixFunction(segments []string) (*bundle.Function, int) {
	joined := make([]string, len(segments)+1)
	joined[0] = ""
	acc := ""
	for i, seg := range segments {
		if i == 0 {
			acc = seg
		} else {
			acc = acc + "." + seg
		}
		joined[i+1] = acc
	}
	for i := len(joined) - 1; i >= 1; i-- {
		if fn := s.Bundle.FunctionByName(joined[i]); fn != nil {
			return fn, i
		}
	}
	return nil, 0
}
