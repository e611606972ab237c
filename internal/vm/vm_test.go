package vm

import (
	"testing"

	"github.com/opa-rego/rego-go/internal/builtins"
	"github.com/opa-rego/rego-go/internal/bundle"
	"github.com/opa-rego/rego-go/internal/value"
)

func freshBundle() *bundle.Bundle {
	b := bundle.New()
	b.LocalCount = 8
	b.Strings = []string{"name", "alice"}
	return b
}

// TestDotNavigation exercises object navigation (S1): locals[1] holds
// an object, Dot extracts "name" into locals[2].
func TestDotNavigation(t *testing.T) {
	b := freshBundle()
	obj := value.NewObject()
	obj.Set(value.String("name"), value.String("alice"))
	b.Constants = []value.Value{obj}

	b.Plans = []*bundle.Plan{{
		Name: "q",
		Blocks: []bundle.Block{{
			{Op: bundle.AssignVar, Target: 1, A: bundle.ValueOperand(0)},
			{Op: bundle.Dot, Target: 2, A: bundle.LocalOperand(1), B: bundle.StringOperand(0)},
			{Op: bundle.ResultSetAdd, A: bundle.LocalOperand(2)},
		}},
	}}

	st := NewState(b, builtins.Default(), value.TheNull)
	results, err := st.RunPlan("q")
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if len(results) != 1 || results[0] != value.String("alice") {
		t.Fatalf("results = %v, want [alice]", results)
	}
}

// TestNegationAsFailure exercises S4: Not over a defined Dot lookup
// fails, so the result after it is never added.
func TestNegationAsFailure(t *testing.T) {
	b := freshBundle()
	obj := value.NewObject()
	obj.Set(value.String("name"), value.String("alice"))
	b.Constants = []value.Value{obj}

	notBlock := bundle.Block{
		{Op: bundle.Dot, Target: 2, A: bundle.LocalOperand(1), B: bundle.StringOperand(0)},
	}
	b.Plans = []*bundle.Plan{{
		Name: "q",
		Blocks: []bundle.Block{{
			{Op: bundle.AssignVar, Target: 1, A: bundle.ValueOperand(0)},
			{Op: bundle.Not, Blocks: []bundle.Block{notBlock}},
			{Op: bundle.ResultSetAdd, A: bundle.TrueOperand},
		}},
	}}

	st := NewState(b, builtins.Default(), value.TheNull)
	results, err := st.RunPlan("q")
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected negation to suppress the result (key exists), got %v", results)
	}
}

// TestCompleteRuleConflict exercises S3: AssignVarOnce on the same
// local with two unequal values is an eval_conflict_error.
func TestCompleteRuleConflict(t *testing.T) {
	b := freshBundle()
	b.Plans = []*bundle.Plan{{
		Name: "q",
		Blocks: []bundle.Block{{
			{Op: bundle.AssignVarOnce, Target: 2, A: bundle.TrueOperand},
			{Op: bundle.AssignVarOnce, Target: 2, A: bundle.FalseOperand},
		}},
	}}
	st := NewState(b, builtins.Default(), value.TheNull)
	if _, err := st.RunPlan("q"); err == nil {
		t.Fatalf("expected a conflict error")
	}
}

// TestScanSet exercises canonical-key Scan order over a set (S6-adjacent).
func TestScanSet(t *testing.T) {
	b := freshBundle()
	setVal := value.NewSet(value.NewInt(3), value.NewInt(1), value.NewInt(2))
	b.Constants = []value.Value{setVal}

	body := bundle.Block{
		{Op: bundle.ResultSetAdd, A: bundle.LocalOperand(3)},
	}
	b.Plans = []*bundle.Plan{{
		Name: "q",
		Blocks: []bundle.Block{{
			{Op: bundle.AssignVar, Target: 1, A: bundle.ValueOperand(0)},
			{Op: bundle.Scan, A: bundle.LocalOperand(1), KeyLocal: 2, ValLocal: 3, Blocks: []bundle.Block{body}},
		}},
	}}
	st := NewState(b, builtins.Default(), value.TheNull)
	results, err := st.RunPlan("q")
	if err != nil {
		t.Fatalf("RunPlan: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %v, want 3 entries", results)
	}
	want := []int64{1, 2, 3}
	for i, w := range want {
		n, _ := results[i].(value.Int).Big.Int64()
		if n != w {
			t.Fatalf("results[%d] = %d, want %d", i, n, w)
		}
	}
}

// TestRecursionDetection exercises a function calling itself directly.
func TestRecursionDetection(t *testing.T) {
	b := freshBundle()
	b.Functions = []*bundle.Function{{
		Name:      "f",
		Arity:     0,
		Result:    1,
		Cacheable: false,
		Blocks: []bundle.Block{{
			{Op: bundle.Call, Target: 1, Func: "f"},
		}},
	}}
	st := NewState(b, builtins.Default(), value.TheNull)
	if _, err := st.CallFunction("f", nil); err == nil {
		t.Fatalf("expected recursion error")
	}
}
