package interp

import (
	"strings"
	"testing"

	"github.com/opa-rego/rego-go/internal/value"
)

func mustQuery(t *testing.T, in *Interpreter, expr string) string {
	t.Helper()
	out, err := in.Query(expr)
	if err != nil {
		t.Fatalf("query %q: %v", expr, err)
	}
	return out
}

func TestObjectNavigation(t *testing.T) {
	in := New()
	mod := `package objects

index := 1
names := ["prod", "smoke1", "dev"]
sites := [{"name": "prod"}, {"name": names[index]}, {"name": "dev"}]
`
	if err := in.AddModule("objects.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := in.SetInputJSON(`{"b": "20"}`); err != nil {
		t.Fatalf("SetInputJSON: %v", err)
	}

	out := mustQuery(t, in, `[data.objects.sites[1], input.b] = x`)
	if !strings.Contains(out, "smoke1") || !strings.Contains(out, `"20"`) {
		t.Fatalf("unexpected result: %s", out)
	}
}

func TestComprehensionAndMembership(t *testing.T) {
	in := New()
	mod := `package p

xs := [1, 2, 3, 4]
evens := [x | x := xs[_]; x % 2 == 0]
has_two := 2 in evens
`
	if err := in.AddModule("p.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}

	out := mustQuery(t, in, "data.p.has_two")
	if !strings.Contains(out, "true") {
		t.Fatalf("expected has_two = true, got %s", out)
	}

	out = mustQuery(t, in, "data.p.evens")
	if !strings.Contains(out, "2") || !strings.Contains(out, "4") {
		t.Fatalf("expected evens = [2,4], got %s", out)
	}
}

func TestCompleteRuleConflict(t *testing.T) {
	in := New()
	mod := `package c

r := 1
r := 2
`
	if err := in.AddModule("c.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := in.SetQuery("data.c.r"); err != nil {
		t.Fatalf("SetQuery: %v", err)
	}
	b, err := in.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := in.QueryBundle(b); err == nil {
		t.Fatalf("expected eval_conflict_error, got nil")
	} else if !strings.Contains(err.Error(), "eval_conflict_error") {
		t.Fatalf("expected eval_conflict_error, got %v", err)
	}
}

func TestNegationAsFailure(t *testing.T) {
	mod := `package n

allow { not denied }
denied { input.user == "mallory" }
`
	in := New()
	if err := in.AddModule("n.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := in.SetInputJSON(`{"user": "alice"}`); err != nil {
		t.Fatalf("SetInputJSON: %v", err)
	}
	out := mustQuery(t, in, "data.n.allow")
	if !strings.Contains(out, "true") {
		t.Fatalf("expected allow = true for alice, got %s", out)
	}

	in2 := New()
	if err := in2.AddModule("n.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	if err := in2.SetInputJSON(`{"user": "mallory"}`); err != nil {
		t.Fatalf("SetInputJSON: %v", err)
	}
	rv, err := in2.RawQuery("data.n.allow")
	if err != nil {
		t.Fatalf("RawQuery: %v", err)
	}
	if len(rv) != 0 {
		t.Fatalf("expected no results for mallory, got %v", rv)
	}
}

func TestWithOverride(t *testing.T) {
	mod := `package w

f := input.x + 1
`
	in := New()
	if err := in.AddModule("w.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}

	out := mustQuery(t, in, `data.w.f with input as {"x": 41}`)
	if !strings.Contains(out, "42") {
		t.Fatalf("expected f = 42, got %s", out)
	}

	in2 := New()
	if err := in2.AddModule("w.rego", mod); err != nil {
		t.Fatalf("AddModule: %v", err)
	}
	rv, err := in2.RawQuery("data.w.f")
	if err != nil {
		t.Fatalf("RawQuery: %v", err)
	}
	if len(rv) != 0 {
		t.Fatalf("expected undefined without with-override, got %v", rv)
	}
}

func TestSetAlgebra(t *testing.T) {
	in := New()
	rv, err := in.RawQuery("{1,2,3} - {2} = s; {1,2} | {2,3} = u; {1,2} & {2,3} = i")
	if err != nil {
		t.Fatalf("RawQuery: %v", err)
	}
	if len(rv) == 0 {
		t.Fatalf("expected at least one result")
	}
	obj, ok := rv[0].(*value.Object)
	if !ok {
		t.Fatalf("expected object result, got %T", rv[0])
	}
	want := map[string]value.Value{
		"s": value.NewSet(value.NewInt(1), value.NewInt(3)),
		"u": value.NewSet(value.NewInt(1), value.NewInt(2), value.NewInt(3)),
		"i": value.NewSet(value.NewInt(2)),
	}
	keys, vals := obj.Entries()
	found := map[string]value.Value{}
	for i, k := range keys {
		if s, ok := k.(value.String); ok {
			found[string(s)] = vals[i]
		}
	}
	for k, w := range want {
		got, ok := found[k]
		if !ok {
			t.Fatalf("missing binding %q in %v", k, found)
		}
		if !value.Equal(got, w) {
			t.Fatalf("binding %q = %s, want %s", k, value.ToKey(got), value.ToKey(w))
		}
	}
}
