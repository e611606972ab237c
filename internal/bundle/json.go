package bundle

import "github.com/opa-rego/rego-go/internal/value"

// ValueToJSON and JSONToValue expose the bridge below to callers outside
// this package (the Interpreter's data/input loading, §6.3), so there is
// exactly one place that knows how a value.Value round-trips through
// encoding/json.
func ValueToJSON(v value.Value) interface{} { return valueToJSON(v) }
func JSONToValue(v interface{}) value.Value { return jsonToValue(v) }

// valueToJSON and jsonToValue convert between value.Value and the plain
// Go interface{} shape encoding/json already knows how to marshal,
// mirroring how the teacher's internal/database package turns rows into
// map[string]interface{} before handing them to the json package rather
// than hand-rolling a token writer.
func valueToJSON(v value.Value) interface{} {
	switch t := v.(type) {
	case value.Undefined:
		return nil
	case value.Null:
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
			out[i] = valueToJSON(elem)
		}
		return out
	case *value.Set:
		items := t.Items()
		out := make([]interface{}, len(items))
		for i, it := range items {
			out[i] = valueToJSON(it)
		}
		return out
	case *value.Object:
		out := map[string]interface{}{}
		keys, vals := t.Entries()
		for i, k := range keys {
			if s, ok := k.(value.String); ok {
				out[string(s)] = valueToJSON(vals[i])
			} else {
				out[value.ToKey(k)] = valueToJSON(vals[i])
			}
		}
		return out
	default:
		return nil
	}
}

func jsonToValue(v interface{}) value.Value {
	switch t := v.(type) {
	case nil:
		return value.TheNull
	case bool:
		return value.Bool(t)
	case float64:
		if t == float64(int64(t)) {
			return value.NewInt(int64(t))
		}
		return value.Float(t)
	case string:
		return value.String(t)
	case []interface{}:
		elems := make([]value.Value, len(t))
		for i, e := range t {
			elems[i] = jsonToValue(e)
		}
		return value.NewArray(elems...)
	case map[string]interface{}:
		obj := value.NewObject()
		for k, e := range t {
			obj.Set(value.String(k), jsonToValue(e))
		}
		return obj
	default:
		return value.TheUndefined
	}
}
