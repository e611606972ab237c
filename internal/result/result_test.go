package result

import (
	"testing"

	"github.com/opa-rego/rego-go/internal/value"
)

func TestProjectAndToJSON(t *testing.T) {
	obj := value.NewObject()
	obj.Set(value.String("term"), value.Bool(true))
	obj.Set(value.String("x"), value.NewInt(42))

	results := Project([]value.Value{obj})
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Term != value.Bool(true) {
		t.Fatalf("term = %v, want true", results[0].Term)
	}
	if results[0].Bindings["x"] != value.Value(value.NewInt(42)) {
		t.Fatalf("binding x = %v, want 42", results[0].Bindings["x"])
	}

	j := results.ToJSON()
	entry := j[0].(map[string]interface{})
	if entry["expressions"].([]interface{})[0] != true {
		t.Fatalf("expressions[0] = %v, want true", entry["expressions"])
	}
	bindings := entry["bindings"].(map[string]interface{})
	if bindings["x"] != int64(42) {
		t.Fatalf("bindings.x = %v, want 42", bindings["x"])
	}
}
