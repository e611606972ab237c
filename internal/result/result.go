// Package result implements result projection (component C8): turning
// the VM's raw accumulated result set into the Results/Result/Bindings
// shape §6.2 specifies as this evaluator's public output, the
// equivalent of how the teacher's interpreter layer turns a raw VM
// return value into a user-facing ExecutionResult.
package result

import (
	"sort"

	"github.com/opa-rego/rego-go/internal/value"
)

// Result is one answer: the query's term (the expression value itself,
// when the query is a single expression) and the variable bindings that
// produced it.
type Result struct {
	Term     value.Value
	Bindings map[string]value.Value
}

type Results []Result

// Project converts the VM's raw result set into Results. Each raw entry
// is expected to be an object with a "term" key for the query's own
// expression value and zero or more other keys for named variable
// bindings — the convention the query plan's final ResultSetAdd
// populates (§6.2).
func Project(raw []value.Value) Results {
	out := make(Results, 0, len(raw))
	for _, r := range raw {
		obj, ok := r.(*value.Object)
		if !ok {
			out = append(out, Result{Term: r, Bindings: map[string]value.Value{}})
			continue
		}
		res := Result{Bindings: map[string]value.Value{}}
		keys, vals := obj.Entries()
		for i, k := range keys {
			name, ok := k.(value.String)
			if !ok {
				continue
			}
			if string(name) == "term" {
				res.Term = vals[i]
				continue
			}
			res.Bindings[string(name)] = vals[i]
		}
		out = append(out, res)
	}
	return out
}

// ToJSON renders Results in the plain Go interface{} shape
// encoding/json already knows how to marshal, mirroring §6.2's JSON
// result shape: a list of {"expressions": [...], "bindings": {...}}.
func (rs Results) ToJSON() []interface{} {
	out := make([]interface{}, len(rs))
	for i, r := range rs {
		entry := map[string]interface{}{}
		if r.Term != nil {
			entry["expressions"] = []interface{}{toJSON(r.Term)}
		}
		bindings := map[string]interface{}{}
		names := make([]string, 0, len(r.Bindings))
		for n := range r.Bindings {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			bindings[n] = toJSON(r.Bindings[n])
		}
		entry["bindings"] = bindings
		out[i] = entry
	}
	return out
}

func toJSON(v value.Value) interface{} {
	switch t := v.(type) {
	case nil, value.Undefined, value.Null:
		return nil
	case value.Bool:
		return bool(t)
	case value.Int:
		if n, ok := t.Big.Int64(); ok {
			return n
		}
		return t.Big.String()
	case value.Float:
		return float64(t)
	case value.String:
		return string(t)
	case *value.Array:
		out := make([]interface{}, t.Len())
		for i := 0; i < t.Len(); i++ {
			elem, _ := t.At(i)
			out[i] = toJSON(elem)
		}
		return out
	case *value.Set:
		items := t.Items()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = toJSON(it)
		}
		return out
	case *value.Object:
		out := map[string]interface{}{}
		keys, vals := t.Entries()
		for i, k := range keys {
			if s, ok := k.(value.String); ok {
				out[string(s)] = toJSON(vals[i])
			} else {
				out[value.ToKey(k)] = toJSON(vals[i])
			}
		}
		return out
	default:
		return nil
	}
}
