package builtins

import (
	"testing"

	"github.com/opa-rego/rego-go/internal/value"
)

func TestCountAndSum(t *testing.T) {
	r := Default()
	arr := value.NewArray(value.NewInt(1), value.NewInt(2), value.NewInt(3))

	got, err := r.Invoke("count", []value.Value{arr})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n, _ := got.(value.Int).Big.Int64(); n != 3 {
		t.Fatalf("count = %v, want 3", got)
	}

	got, err = r.Invoke("sum", []value.Value{arr})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if n, _ := got.(value.Int).Big.Int64(); n != 6 {
		t.Fatalf("sum = %v, want 6", got)
	}
}

func TestSortStrings(t *testing.T) {
	r := Default()
	arr := value.NewArray(value.String("b"), value.String("a"), value.String("c"))
	got, err := r.Invoke("sort", []value.Value{arr})
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	sorted := got.(*value.Array)
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if string(sorted.Elems[i].(value.String)) != w {
			t.Fatalf("sort[%d] = %v, want %v", i, sorted.Elems[i], w)
		}
	}
}

func TestUnknownBuiltin(t *testing.T) {
	r := Default()
	if _, err := r.Invoke("no_such_builtin", nil); err == nil {
		t.Fatalf("expected error for unknown builtin")
	}
}

func TestArityMismatch(t *testing.T) {
	r := Default()
	if _, err := r.Invoke("upper", nil); err == nil {
		t.Fatalf("expected arity error")
	}
}

func TestObjectGetDefault(t *testing.T) {
	r := Default()
	obj := value.NewObject()
	obj.Set(value.String("a"), value.NewInt(1))
	got, err := r.Invoke("object.get", []value.Value{obj, value.String("missing"), value.String("fallback")})
	if err != nil {
		t.Fatalf("object.get: %v", err)
	}
	if got != value.String("fallback") {
		t.Fatalf("object.get = %v, want fallback", got)
	}
}
