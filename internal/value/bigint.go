package value

import "math/big"

// BigInt is the arbitrary-precision signed integer backing the Int value
// kind. It wraps math/big.Int (the teacher's own packages never shipped a
// bignum of their own to build on, and none of the retrieval pack's
// libraries expose a standalone arbitrary-precision integer type, so this
// is the one place the ambient stack is stdlib — see DESIGN.md) but never
// leaks *big.Int outside this package: every Value produced or consumed
// goes through the constructors and accessors below.
type BigInt struct {
	v *big.Int
}

var bigZero = NewBigIntFromInt64(0)

func NewBigIntFromInt64(n int64) BigInt {
	return BigInt{v: big.NewInt(n)}
}

func NewBigIntFromString(s string) (BigInt, bool) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return BigInt{}, false
	}
	return BigInt{v: v}, true
}

func (b BigInt) String() string {
	if b.v == nil {
		return "0"
	}
	return b.v.String()
}

func (b BigInt) Int64() (int64, bool) {
	if b.v == nil {
		return 0, true
	}
	if !b.v.IsInt64() {
		return 0, false
	}
	return b.v.Int64(), true
}

func (b BigInt) Float64() float64 {
	if b.v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(b.v).Float64()
	return f
}

func (b BigInt) raw() *big.Int {
	if b.v == nil {
		return big.NewInt(0)
	}
	return b.v
}

func (b BigInt) Add(o BigInt) BigInt { return BigInt{v: new(big.Int).Add(b.raw(), o.raw())} }
func (b BigInt) Sub(o BigInt) BigInt { return BigInt{v: new(big.Int).Sub(b.raw(), o.raw())} }
func (b BigInt) Mul(o BigInt) BigInt { return BigInt{v: new(big.Int).Mul(b.raw(), o.raw())} }

// Div performs truncating integer division; ok is false on division by zero.
func (b BigInt) Div(o BigInt) (BigInt, bool) {
	if o.raw().Sign() == 0 {
		return BigInt{}, false
	}
	return BigInt{v: new(big.Int).Quo(b.raw(), o.raw())}, true
}

// Mod performs truncating remainder; ok is false on modulo by zero.
func (b BigInt) Mod(o BigInt) (BigInt, bool) {
	if o.raw().Sign() == 0 {
		return BigInt{}, false
	}
	return BigInt{v: new(big.Int).Rem(b.raw(), o.raw())}, true
}

func (b BigInt) Negate() BigInt    { return BigInt{v: new(big.Int).Neg(b.raw())} }
func (b BigInt) Increment() BigInt { return b.Add(NewBigIntFromInt64(1)) }
func (b BigInt) Decrement() BigInt { return b.Sub(NewBigIntFromInt64(1)) }

func (b BigInt) Cmp(o BigInt) int { return b.raw().Cmp(o.raw()) }
func (b BigInt) Sign() int        { return b.raw().Sign() }

func (b BigInt) Equal(o BigInt) bool { return b.Cmp(o) == 0 }
