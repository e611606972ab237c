package parser

import (
	"testing"

	"github.com/opa-rego/rego-go/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.Node {
	t.Helper()
	mod, err := Parse(src, "test.rego")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return mod
}

func TestParsePackageAndCompleteRule(t *testing.T) {
	mod := mustParse(t, `package example

allow {
	input.user == "alice"
}
`)
	if mod.Kind() != ast.KindModule {
		t.Fatalf("root kind = %s, want Module", mod.Kind())
	}
	if mod.At(0).Kind() != ast.KindPackage || mod.At(0).Lit != "example" {
		t.Fatalf("package node = %+v", mod.At(0))
	}
	if mod.Size() != 2 {
		t.Fatalf("module has %d children, want 2 (package + rule)", mod.Size())
	}
	rule := mod.At(1)
	if rule.Kind() != ast.KindRule {
		t.Fatalf("second child kind = %s, want Rule", rule.Kind())
	}
}

func TestParsePartialSetRule(t *testing.T) {
	mod := mustParse(t, `package example

deny[msg] {
	not input.allowed
	msg := "denied"
}
`)
	rule := mod.At(1)
	head := rule.At(0)
	if head.Kind() != ast.KindRuleHeadSet || head.Lit != "deny" {
		t.Fatalf("head = %+v", head)
	}
}

func TestParseFunctionRule(t *testing.T) {
	mod := mustParse(t, `package example

double(x) = y {
	y := x * 2
}
`)
	rule := mod.At(1)
	head := rule.At(0)
	if head.Kind() != ast.KindRuleHeadFunc || head.Size() != 1 {
		t.Fatalf("head = %+v", head)
	}
}

func TestParseComprehensionAndMembership(t *testing.T) {
	mod := mustParse(t, `package example

names[n] {
	some u in input.users
	n := u.name
}

count_admins = c {
	admins := [u | u := input.users[_]; u.role == "admin"]
	c := count(admins)
}
`)
	if mod.Size() != 3 {
		t.Fatalf("module has %d children, want 3", mod.Size())
	}
}

func TestParseWithAndNegation(t *testing.T) {
	mod := mustParse(t, `package example

allow {
	not denied with input.role as "admin"
}
`)
	rule := mod.At(1)
	body := rule.At(1)
	if body.Kind() != ast.KindBody {
		t.Fatalf("expected body, got %s", body.Kind())
	}
	with := body.At(0)
	if with.Kind() != ast.KindWith {
		t.Fatalf("expected WithExpr, got %s", with.Kind())
	}
}

func TestParseSetAlgebra(t *testing.T) {
	mod := mustParse(t, `package example

combined = c {
	a := {1, 2, 3}
	b := {2, 3, 4}
	c := a & b
}
`)
	if mod.Size() != 2 {
		t.Fatalf("module has %d children, want 2", mod.Size())
	}
}
