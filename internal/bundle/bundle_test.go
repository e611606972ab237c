package bundle

import (
	"path/filepath"
	"testing"

	"github.com/opa-rego/rego-go/internal/value"
)

func sampleBundle() *Bundle {
	b := New()
	b.Strings = []string{"x", "data.example.allow"}
	b.LocalCount = 3
	b.Sources = map[string]string{"example.rego": "package example\n\nallow { true }\n"}
	obj := value.NewObject()
	obj.Set(value.String("example"), value.NewObject())
	b.Data = obj
	b.Plans = []*Plan{{
		Name: "data.example.allow",
		Blocks: []Block{{
			{Op: AssignVar, Target: 1, A: TrueOperand},
			{Op: ReturnLocal, A: LocalOperand(1)},
		}},
	}}
	return b
}

func TestSaveLoadDirRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bundle")
	b := sampleBundle()
	if err := b.SaveDir(dir); err != nil {
		t.Fatalf("SaveDir: %v", err)
	}
	got, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(got.Plans) != 1 || got.Plans[0].Name != "data.example.allow" {
		t.Fatalf("plans not preserved: %+v", got.Plans)
	}
	if len(got.Plans[0].Blocks[0]) != 2 {
		t.Fatalf("block statements not preserved: %+v", got.Plans[0].Blocks)
	}
	if got.Sources["example.rego"] == "" {
		t.Fatalf("source not preserved: %+v", got.Sources)
	}
}

func TestSaveLoadBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.bin")
	b := sampleBundle()
	if err := b.SaveBinary(path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}
	got, err := LoadBinary(path)
	if err != nil {
		t.Fatalf("LoadBinary: %v", err)
	}
	if len(got.Plans) != 1 || got.Plans[0].Blocks[0][0].Op != AssignVar {
		t.Fatalf("binary round trip lost statement data: %+v", got.Plans)
	}
}

func TestStorePutGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	b := sampleBundle()
	digest := Digest(b.Sources, []byte("{}"))
	if err := s.Put(digest, b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(digest)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got.Plans) != 1 {
		t.Fatalf("cached bundle lost plans: %+v", got.Plans)
	}

	if _, ok, err := s.Get("deadbeef"); err != nil || ok {
		t.Fatalf("expected cache miss, got ok=%v err=%v", ok, err)
	}
}
