package value

import (
	"fmt"
	"strconv"
	"strings"
)

// ToKey returns a total, deterministic string for any value node (§3.3).
// Equality over values is equality of canonical keys; set members and
// object keys are ordered by this string.
func ToKey(v Value) string {
	switch t := v.(type) {
	case nil, Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		if t {
			return "true"
		}
		return "false"
	case Int:
		return "i:" + t.Big.String()
	case Float:
		return "f:" + strconv.FormatFloat(float64(t), 'g', -1, 64)
	case String:
		return strconv.Quote(string(t))
	case *Array:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = ToKey(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case *Set:
		parts := make([]string, len(t.items))
		for i, e := range t.items {
			parts[i] = ToKey(e)
		}
		return "<" + strings.Join(parts, ",") + ">"
	case *Object:
		pairs := make([]struct{ k, v string }, t.Len())
		keys, vals := t.Entries()
		for i := range keys {
			pairs[i] = struct{ k, v string }{ToKey(keys[i]), ToKey(vals[i])}
		}
		sortKV(pairs)
		parts := make([]string, len(pairs))
		for i, p := range pairs {
			parts[i] = p.k + ":" + p.v
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprintf("?:%v", v)
	}
}

func sortKV(pairs []struct{ k, v string }) {
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j-1].k > pairs[j].k; j-- {
			pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
		}
	}
}
