package value

import (
	"fmt"

	rerrors "github.com/opa-rego/rego-go/internal/errors"
)

// Equal compares by canonical key (§3.3).
func Equal(a, b Value) bool { return ToKey(a) == ToKey(b) }

// IsUndefined reports whether v is the absence-of-value marker.
func IsUndefined(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Undefined)
	return ok
}

// IsTruthy follows Rego's definition: every defined value except `false`
// is truthy (unlike a dynamic language's "zero/empty is falsy" rule).
func IsTruthy(v Value) bool {
	if IsUndefined(v) {
		return false
	}
	if b, ok := v.(Bool); ok {
		return bool(b)
	}
	return true
}

func IsFalsy(v Value) bool { return !IsTruthy(v) }

func TypeName(v Value) string {
	switch v.(type) {
	case nil, Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Int, Float:
		return "number"
	case String:
		return "string"
	case *Array:
		return "array"
	case *Set:
		return "set"
	case *Object:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Unwrap asserts v is one of the given kinds, used by built-ins to reject
// arguments of the wrong shape with a proper rego_type_error.
func Unwrap(v Value, kinds ...Kind) (Value, bool) {
	if v == nil {
		return nil, false
	}
	k := v.Kind()
	for _, want := range kinds {
		if k == want {
			return v, true
		}
	}
	return nil, false
}

// InsertIntoObject implements §4.1's insert_into_object contract: if the
// key is unset, append; if set to an equal value, succeed; otherwise
// report an object-insert conflict. once=false allows silent overwrite
// (used when a rule body legitimately rebinds during iteration).
func InsertIntoObject(obj *Object, k, v Value, once bool) (*Object, error) {
	out := obj.Clone()
	if existing, ok := out.Get(k); ok {
		if !once || Equal(existing, v) {
			out.Set(k, v)
			return out, nil
		}
		return nil, rerrors.New(rerrors.ConflictError,
			fmt.Sprintf("object keys must be unique: %q", ToKey(k)), rerrors.SourceLocation{})
	}
	out.Set(k, v)
	return out, nil
}

// MergeObjects implements §4.1's merge_objects contract: object union by
// key with recursive merge; duplicate leaf keys with unequal values fail.
func MergeObjects(a, b Value) (Value, error) {
	switch av := a.(type) {
	case *Object:
		bv, ok := b.(*Object)
		if !ok {
			return nil, rerrors.New(rerrors.ConflictError,
				fmt.Sprintf("cannot merge object with %s", TypeName(b)), rerrors.SourceLocation{})
		}
		out := av.Clone()
		keys, vals := bv.Entries()
		for i, k := range keys {
			if existing, has := out.Get(k); has {
				merged, err := mergeLeaf(existing, vals[i])
				if err != nil {
					return nil, err
				}
				out.Set(k, merged)
			} else {
				out.Set(k, vals[i])
			}
		}
		return out, nil
	case *Set:
		return MergeSets(a, b)
	default:
		return nil, rerrors.New(rerrors.ConflictError,
			fmt.Sprintf("cannot merge scalar value of type %s", TypeName(a)), rerrors.SourceLocation{})
	}
}

func mergeLeaf(a, b Value) (Value, error) {
	if Equal(a, b) {
		return a, nil
	}
	_, aIsObj := a.(*Object)
	_, bIsObj := b.(*Object)
	if aIsObj && bIsObj {
		return MergeObjects(a, b)
	}
	_, aIsSet := a.(*Set)
	_, bIsSet := b.(*Set)
	if aIsSet && bIsSet {
		return MergeSets(a, b)
	}
	return nil, rerrors.New(rerrors.ConflictError,
		fmt.Sprintf("object keys must be unique: conflicting values of type %s and %s", TypeName(a), TypeName(b)),
		rerrors.SourceLocation{})
}

// MergeSets implements §4.1's merge_sets contract: plain set union.
func MergeSets(a, b Value) (Value, error) {
	av, aok := a.(*Set)
	bv, bok := b.(*Set)
	if !aok || !bok {
		return nil, rerrors.New(rerrors.ConflictError,
			fmt.Sprintf("cannot merge %s with %s", TypeName(a), TypeName(b)), rerrors.SourceLocation{})
	}
	out := av.Clone()
	for _, it := range bv.Items() {
		out.Add(it)
	}
	return out, nil
}

// SetDifference, SetIntersection implement the `-` and `&` set operators
// of §8 scenario S6.
func SetDifference(a, b *Set) *Set {
	out := NewSet()
	for _, it := range a.Items() {
		if !b.Contains(it) {
			out.Add(it)
		}
	}
	return out
}

func SetIntersection(a, b *Set) *Set {
	out := NewSet()
	for _, it := range a.Items() {
		if b.Contains(it) {
			out.Add(it)
		}
	}
	return out
}

// Compare gives a total order over values: Null < Bool(false) < Bool(true)
// < Number < String < Array/Set/Object, numbers compared numerically
// (mixed Int/Float promoted to float64), same-kind composites compared by
// canonical key. Used by the `sort` built-in and by comparison operators
// where Rego allows cross-kind ordering.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 3: // number
		fa, fb := numFloat(a), numFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 4: // string
		as, bs := string(a.(String)), string(b.(String))
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		default:
			return 0
		}
	default:
		ka, kb := ToKey(a), ToKey(b)
		switch {
		case ka < kb:
			return -1
		case ka > kb:
			return 1
		default:
			return 0
		}
	}
}

func rank(v Value) int {
	switch t := v.(type) {
	case nil, Undefined:
		return -1
	case Null:
		return 0
	case Bool:
		if t {
			return 2
		}
		return 1
	case Int, Float:
		return 3
	case String:
		return 4
	default:
		return 5
	}
}

func numFloat(v Value) float64 {
	switch t := v.(type) {
	case Int:
		return t.Big.Float64()
	case Float:
		return float64(t)
	default:
		return 0
	}
}
