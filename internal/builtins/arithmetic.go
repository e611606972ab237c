package builtins

import "github.com/opa-rego/rego-go/internal/value"

// registerArithmetic wires the infix/prefix operators the compiler
// lowers arithmetic and set expressions to (§4 "keep HOW, replace
// WHAT": operators are just built-ins with two operands, the same
// uniform dispatch as any named function, rather than a separate
// bytecode opcode family).
func registerArithmetic(r *Registry) {
	r.Register("plus", 2, true, numOp(func(a, b value.BigInt) value.BigInt { return a.Add(b) },
		func(a, b float64) float64 { return a + b }))
	r.Register("minus", 2, true, builtinMinus)
	r.Register("mul", 2, true, numOp(func(a, b value.BigInt) value.BigInt { return a.Mul(b) },
		func(a, b float64) float64 { return a * b }))
	r.Register("div", 2, true, builtinDiv)
	r.Register("rem", 2, true, builtinRem)
	r.Register("neg", 1, true, builtinNeg)

	r.Register("and", 2, true, builtinSetAnd)
	r.Register("or", 2, true, builtinSetOr)

	r.Register("lt", 2, true, cmpOp(func(c int) bool { return c < 0 }))
	r.Register("gt", 2, true, cmpOp(func(c int) bool { return c > 0 }))
	r.Register("lte", 2, true, cmpOp(func(c int) bool { return c <= 0 }))
	r.Register("gte", 2, true, cmpOp(func(c int) bool { return c >= 0 }))
}

// builtinMinus backs the `-` operator, which the parser lowers the same
// way for numeric subtraction and set difference (`{1,2,3} - {2}`); the
// compiler has no separate operator per operand type, so the dispatch
// happens here instead.
func builtinMinus(args []value.Value) (value.Value, error) {
	if a, ok := args[0].(*value.Set); ok {
		b, ok := args[1].(*value.Set)
		if !ok {
			return nil, typeErr("minus", "expects two sets")
		}
		return value.SetDifference(a, b), nil
	}
	return numOp(func(a, b value.BigInt) value.BigInt { return a.Sub(b) },
		func(a, b float64) float64 { return a - b })(args)
}

func numOp(ints func(a, b value.BigInt) value.BigInt, floats func(a, b float64) float64) Func {
	return func(args []value.Value) (value.Value, error) {
		ai, aIsInt := args[0].(value.Int)
		bi, bIsInt := args[1].(value.Int)
		if aIsInt && bIsInt {
			return value.Int{Big: ints(ai.Big, bi.Big)}, nil
		}
		af, err := numToFloat("arith", args[0])
		if err != nil {
			return nil, err
		}
		bf, err := numToFloat("arith", args[1])
		if err != nil {
			return nil, err
		}
		return value.Float(floats(af, bf)), nil
	}
}

func numToFloat(name string, v value.Value) (float64, error) {
	switch t := v.(type) {
	case value.Int:
		return t.Big.Float64(), nil
	case value.Float:
		return float64(t), nil
	default:
		return 0, typeErr(name, "expects a number")
	}
}

func builtinDiv(args []value.Value) (value.Value, error) {
	ai, aIsInt := args[0].(value.Int)
	bi, bIsInt := args[1].(value.Int)
	if aIsInt && bIsInt {
		q, ok := ai.Big.Div(bi.Big)
		if !ok {
			return nil, typeErr("div", "division by zero")
		}
		return value.Int{Big: q}, nil
	}
	af, err := numToFloat("div", args[0])
	if err != nil {
		return nil, err
	}
	bf, err := numToFloat("div", args[1])
	if err != nil {
		return nil, err
	}
	if bf == 0 {
		return nil, typeErr("div", "division by zero")
	}
	return value.Float(af / bf), nil
}

func builtinRem(args []value.Value) (value.Value, error) {
	ai, aIsInt := args[0].(value.Int)
	bi, bIsInt := args[1].(value.Int)
	if !aIsInt || !bIsInt {
		return nil, typeErr("rem", "expects integers")
	}
	m, ok := ai.Big.Mod(bi.Big)
	if !ok {
		return nil, typeErr("rem", "modulo by zero")
	}
	return value.Int{Big: m}, nil
}

func builtinNeg(args []value.Value) (value.Value, error) {
	switch t := args[0].(type) {
	case value.Int:
		return value.Int{Big: t.Big.Negate()}, nil
	case value.Float:
		return -t, nil
	default:
		return nil, typeErr("neg", "expects a number")
	}
}

func builtinSetAnd(args []value.Value) (value.Value, error) {
	a, aok := args[0].(*value.Set)
	b, bok := args[1].(*value.Set)
	if !aok || !bok {
		return nil, typeErr("and", "expects two sets")
	}
	return value.SetIntersection(a, b), nil
}

func builtinSetOr(args []value.Value) (value.Value, error) {
	a, aok := args[0].(*value.Set)
	b, bok := args[1].(*value.Set)
	if !aok || !bok {
		return nil, typeErr("or", "expects two sets")
	}
	merged, err := value.MergeSets(a, b)
	return merged, err
}

func cmpOp(pred func(c int) bool) Func {
	return func(args []value.Value) (value.Value, error) {
		return value.Bool(pred(value.Compare(args[0], args[1]))), nil
	}
}
