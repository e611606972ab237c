package builtins

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// version is set by the caller (cmd/rego's build) and reported by the
// version built-in as {"version": version}; the built-in reports nothing
// about the process environment.
var version = "0.0.0-dev"

// SetVersion overrides the string the version built-in reports.
func SetVersion(v string) { version = v }

// Default returns the standard built-in registry: string, aggregate,
// and numeric-coercion functions plus the version built-in,
// grounded in original_source's numeric.cc/strings.cc/aggregates.cc
// surface and distilled to the subset this evaluator's grammar can call.
func Default() *Registry {
	r := NewRegistry()

	r.Register("count", 1, true, builtinCount)
	r.Register("sum", 1, true, builtinSum)
	r.Register("max", 1, true, builtinMax)
	r.Register("min", 1, true, builtinMin)
	r.Register("sort", 1, true, builtinSort)

	r.Register("to_number", 1, true, builtinToNumber)
	r.Register("abs", 1, true, builtinAbs)

	r.Register("upper", 1, true, builtinUpper)
	r.Register("lower", 1, true, builtinLower)
	r.Register("trim", 1, true, builtinTrim)
	r.Register("concat", 2, true, builtinConcat)
	r.Register("split", 2, true, builtinSplit)
	r.Register("contains", 2, true, builtinContains)
	r.Register("startswith", 2, true, builtinStartsWith)
	r.Register("endswith", 2, true, builtinEndsWith)
	r.Register("sprintf", 2, true, builtinSprintf)

	r.Register("object.union", 2, true, builtinObjectUnion)
	r.Register("object.get", 3, true, builtinObjectGet)
	r.Register("array.concat", 2, true, builtinArrayConcat)

	r.Register("member", 2, true, builtinMember)

	r.Register("version", 0, false, builtinVersion)

	registerArithmetic(r)

	return r
}

func typeErr(name, msg string) error {
	return rerrors.New(rerrors.EvalTypeError, fmt.Sprintf("%s: %s", name, msg), rerrors.SourceLocation{})
}

func asArrayOrSet(name string, v value.Value) ([]value.Value, error) {
	switch t := v.(type) {
	case *value.Array:
		return t.Elems, nil
	case *value.Set:
		return t.Items(), nil
	default:
		return nil, typeErr(name, "expects an array or set")
	}
}

func asNumber(name string, v value.Value) (float64, bool, value.Int, error) {
	switch t := v.(type) {
	case value.Int:
		return t.Big.Float64(), true, t, nil
	case value.Float:
		return float64(t), false, value.Int{}, nil
	default:
		return 0, false, value.Int{}, typeErr(name, "expects a number")
	}
}

func builtinCount(args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case *value.Array:
		return value.NewInt(int64(t.Len())), nil
	case *value.Set:
		return value.NewInt(int64(t.Len())), nil
	case *value.Object:
		return value.NewInt(int64(t.Len())), nil
	case value.String:
		return value.NewInt(int64(len(t))), nil
	default:
		return nil, typeErr("count", "expects an array, set, object or string")
	}
}

func builtinSum(args []value.Value) (value.Value, error) {
	elems, err := asArrayOrSet("sum", args[0])
	if err != nil {
		return nil, err
	}
	isInt := true
	var fsum float64
	acc := value.NewInt(0)
	for _, e := range elems {
		f, wasInt, iv, err := asNumber("sum", e)
		if err != nil {
			return nil, err
		}
		fsum += f
		if wasInt && isInt {
			acc = value.Int{Big: acc.Big.Add(iv.Big)}
		} else {
			isInt = false
		}
	}
	if isInt {
		return acc, nil
	}
	return value.Float(fsum), nil
}

func builtinMax(args []value.Value) (value.Value, error) {
	elems, err := asArrayOrSet("max", args[0])
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return value.TheUndefined, nil
	}
	best := elems[0]
	for _, e := range elems[1:] {
		if value.Compare(e, best) > 0 {
			best = e
		}
	}
	return best, nil
}

func builtinMin(args []value.Value) (value.Value, error) {
	elems, err := asArrayOrSet("min", args[0])
	if err != nil {
		return nil, err
	}
	if len(elems) == 0 {
		return value.TheUndefined, nil
	}
	best := elems[0]
	for _, e := range elems[1:] {
		if value.Compare(e, best) < 0 {
			best = e
		}
	}
	return best, nil
}

func builtinSort(args []value.Value) (value.Value, error) {
	elems, err := asArrayOrSet("sort", args[0])
	if err != nil {
		return nil, err
	}
	out := append([]value.Value{}, elems...)
	sort.SliceStable(out, func(i, j int) bool { return value.Compare(out[i], out[j]) < 0 })
	return value.NewArray(out...), nil
}

func builtinToNumber(args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case value.Int, value.Float:
		return t, nil
	case value.String:
		if bi, ok := value.NewBigIntFromString(string(t)); ok {
			return value.Int{Big: bi}, nil
		}
		if f, err := strconv.ParseFloat(string(t), 64); err == nil {
			return value.Float(f), nil
		}
		return nil, typeErr("to_number", "string is not a valid number")
	case value.Bool:
		if t {
			return value.NewInt(1), nil
		}
		return value.NewInt(0), nil
	default:
		return nil, typeErr("to_number", "expects a number, string, or boolean")
	}
}

func builtinAbs(args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case value.Int:
		if t.Big.Sign() < 0 {
			return value.Int{Big: t.Big.Negate()}, nil
		}
		return t, nil
	case value.Float:
		if t < 0 {
			return -t, nil
		}
		return t, nil
	default:
		return nil, typeErr("abs", "expects a number")
	}
}

func asString(name string, v value.Value) (string, error) {
	s, ok := v.(value.String)
	if !ok {
		return "", typeErr(name, "expects a string")
	}
	return string(s), nil
}

func builtinUpper(args []value.Value) (value.Value, error) {
	s, err := asString("upper", args[0])
	if err != nil {
		return nil, err
	}
	return value.String(strings.ToUpper(s)), nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	s, err := asString("lower", args[0])
	if err != nil {
		return nil, err
	}
	return value.String(strings.ToLower(s)), nil
}

func builtinTrim(args []value.Value) (value.Value, error) {
	s, err := asString("trim", args[0])
	if err != nil {
		return nil, err
	}
	return value.String(strings.TrimSpace(s)), nil
}

func builtinConcat(args []value.Value) (value.Value, error) {
	sep, err := asString("concat", args[0])
	if err != nil {
		return nil, err
	}
	elems, err := asArrayOrSet("concat", args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(elems))
	for i, e := range elems {
		s, ok := e.(value.String)
		if !ok {
			return nil, typeErr("concat", "all elements must be strings")
		}
		parts[i] = string(s)
	}
	return value.String(strings.Join(parts, sep)), nil
}

func builtinSplit(args []value.Value) (value.Value, error) {
	s, err := asString("split", args[0])
	if err != nil {
		return nil, err
	}
	sep, err := asString("split", args[1])
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s, sep)
	elems := make([]value.Value, len(parts))
	for i, p := range parts {
		elems[i] = value.String(p)
	}
	return value.NewArray(elems...), nil
}

func builtinContains(args []value.Value) (value.Value, error) {
	s, err := asString("contains", args[0])
	if err != nil {
		return nil, err
	}
	sub, err := asString("contains", args[1])
	if err != nil {
		return nil, err
	}
	return value.Bool(strings.Contains(s, sub)), nil
}

func builtinStartsWith(args []value.Value) (value.Value, error) {
	s, err := asString("startswith", args[0])
	if err != nil {
		return nil, err
	}
	prefix, err := asString("startswith", args[1])
	if err != nil {
		return nil, err
	}
	return value.Bool(strings.HasPrefix(s, prefix)), nil
}

func builtinEndsWith(args []value.Value) (value.Value, error) {
	s, err := asString("endswith", args[0])
	if err != nil {
		return nil, err
	}
	suffix, err := asString("endswith", args[1])
	if err != nil {
		return nil, err
	}
	return value.Bool(strings.HasSuffix(s, suffix)), nil
}

func builtinSprintf(args []value.Value) (value.Value, error) {
	format, err := asString("sprintf", args[0])
	if err != nil {
		return nil, err
	}
	elems, err := asArrayOrSet("sprintf", args[1])
	if err != nil {
		return nil, err
	}
	anys := make([]interface{}, len(elems))
	for i, e := range elems {
		anys[i] = formatArg(e)
	}
	return value.String(fmt.Sprintf(format, anys...)), nil
}

func formatArg(v value.Value) interface{} {
	switch t := v.(type) {
	case value.String:
		return string(t)
	case value.Bool:
		return bool(t)
	case value.Int:
		return t.Big.String()
	case value.Float:
		return float64(t)
	default:
		return v
	}
}

func builtinObjectUnion(args []value.Value) (value.Value, error) {
	a, ok := args[0].(*value.Object)
	if !ok {
		return nil, typeErr("object.union", "expects an object")
	}
	b, ok := args[1].(*value.Object)
	if !ok {
		return nil, typeErr("object.union", "expects an object")
	}
	return value.MergeObjects(a, b)
}

func builtinObjectGet(args []value.Value) (value.Value, error) {
	obj, ok := args[0].(*value.Object)
	if !ok {
		return nil, typeErr("object.get", "expects an object")
	}
	if v, ok := obj.Get(args[1]); ok {
		return v, nil
	}
	return args[2], nil
}

func builtinArrayConcat(args []value.Value) (value.Value, error) {
	a, ok := args[0].(*value.Array)
	if !ok {
		return nil, typeErr("array.concat", "expects an array")
	}
	b, ok := args[1].(*value.Array)
	if !ok {
		return nil, typeErr("array.concat", "expects an array")
	}
	out := append([]value.Value{}, a.Elems...)
	out = append(out, b.Elems...)
	return value.NewArray(out...), nil
}

// builtinMember implements the `needle in haystack` membership test:
// array/set membership by value, object membership among its values.
func builtinMember(args []value.Value) (value.Value, error) {
	needle, haystack := args[0], args[1]
	switch t := haystack.(type) {
	case *value.Array:
		for i := 0; i < t.Len(); i++ {
			elem, _ := t.At(i)
			if value.Equal(elem, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *value.Set:
		for _, it := range t.Items() {
			if value.Equal(it, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *value.Object:
		_, vals := t.Entries()
		for _, v := range vals {
			if value.Equal(v, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	default:
		return nil, typeErr("member", "expects an array, set, or object")
	}
}

func builtinVersion(args []value.Value) (value.Value, error) {
	obj := value.NewObject()
	obj.Set(value.String("version"), value.String(version))
	return obj, nil
}
