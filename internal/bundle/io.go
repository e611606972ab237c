package bundle

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"os"
	"path/filepath"

	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// planDoc is the on-disk shape of plan.json in the directory form
// (§6.3): plan.json holds everything but the base document and raw
// sources, data.json holds the base document as plain JSON, and each
// original module is re-emitted verbatim under its own *.rego name so a
// bundle directory is self-describing without re-parsing.
type planDoc struct {
	Strings    []string    `json:"strings"`
	Constants  []interface{} `json:"constants"`
	LocalCount int         `json:"local_count"`
	Functions  []*Function `json:"functions"`
	Plans      []*Plan     `json:"plans"`
	QueryPlan  int         `json:"query_plan"`
}

// SaveDir writes the bundle in directory form under dir: plan.json,
// data.json, and one *.rego file per source, per §6.3.
func (b *Bundle) SaveDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "creating bundle directory", rerrors.SourceLocation{})
	}

	doc := planDoc{
		Strings:    b.Strings,
		LocalCount: b.LocalCount,
		Functions:  b.Functions,
		Plans:      b.Plans,
		QueryPlan:  b.QueryPlan,
	}
	doc.Constants = make([]interface{}, len(b.Constants))
	for i, c := range b.Constants {
		doc.Constants[i] = valueToJSON(c)
	}

	planBytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "encoding plan.json", rerrors.SourceLocation{})
	}
	if err := os.WriteFile(filepath.Join(dir, "plan.json"), planBytes, 0o644); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "writing plan.json", rerrors.SourceLocation{})
	}

	dataBytes, err := json.MarshalIndent(valueToJSON(b.Data), "", "  ")
	if err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "encoding data.json", rerrors.SourceLocation{})
	}
	if err := os.WriteFile(filepath.Join(dir, "data.json"), dataBytes, 0o644); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "writing data.json", rerrors.SourceLocation{})
	}

	for name, src := range b.Sources {
		path := filepath.Join(dir, name)
		if filepath.Ext(path) != ".rego" {
			path += ".rego"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return rerrors.Wrap(err, rerrors.CompileError, "creating source subdirectory", rerrors.SourceLocation{})
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			return rerrors.Wrap(err, rerrors.CompileError, "writing source file", rerrors.SourceLocation{})
		}
	}
	return nil
}

// LoadDir reads a directory-form bundle back. Strings, constants,
// functions, plans and data round-trip through plan.json and data.json.
// Sources are read only from the *.rego files directly in dir, keyed by
// file name including the extension; subdirectories are not read, so a
// source SaveDir wrote under a subdirectory, or under a name it extended
// with ".rego", comes back under a different key or not at all.
func LoadDir(dir string) (*Bundle, error) {
	planBytes, err := os.ReadFile(filepath.Join(dir, "plan.json"))
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "reading plan.json", rerrors.SourceLocation{})
	}
	var doc planDoc
	if err := json.Unmarshal(planBytes, &doc); err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "decoding plan.json", rerrors.SourceLocation{})
	}

	dataBytes, err := os.ReadFile(filepath.Join(dir, "data.json"))
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "reading data.json", rerrors.SourceLocation{})
	}
	var rawData interface{}
	if err := json.Unmarshal(dataBytes, &rawData); err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "decoding data.json", rerrors.SourceLocation{})
	}

	b := New()
	b.Strings = doc.Strings
	b.LocalCount = doc.LocalCount
	b.Functions = doc.Functions
	b.Plans = doc.Plans
	b.QueryPlan = doc.QueryPlan
	b.Data = jsonToValue(rawData)
	b.Constants = make([]value.Value, len(doc.Constants))
	for i, c := range doc.Constants {
		b.Constants[i] = jsonToValue(c)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "listing bundle directory", rerrors.SourceLocation{})
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".rego" {
			continue
		}
		src, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, rerrors.Wrap(err, rerrors.CompileError, "reading source file", rerrors.SourceLocation{})
		}
		b.Sources[e.Name()] = string(src)
	}

	return b, nil
}

// SaveBinary writes the bundle as a single opaque file. §6.3 delegates
// the exact layout to the serializer and only requires that a
// load-then-save round trip be semantically identity; gob is the
// stdlib's own self-describing binary codec and needs no schema file,
// so it is used directly rather than hand-rolling a wire format (no
// third-party binary-serialization library appears in the retrieved
// pack; see DESIGN.md).
func (b *Bundle) SaveBinary(path string) error {
	var buf bytes.Buffer
	doc := wireBundle{
		Strings: b.Strings, LocalCount: b.LocalCount,
		Functions: b.Functions, Plans: b.Plans, QueryPlan: b.QueryPlan,
		Sources: b.Sources,
	}
	doc.Constants = make([]interface{}, len(b.Constants))
	for i, c := range b.Constants {
		doc.Constants[i] = valueToJSON(c)
	}
	doc.Data = valueToJSON(b.Data)

	if err := gob.NewEncoder(&buf).Encode(doc); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "encoding binary bundle", rerrors.SourceLocation{})
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "writing binary bundle", rerrors.SourceLocation{})
	}
	return nil
}

func LoadBinary(path string) (*Bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "reading binary bundle", rerrors.SourceLocation{})
	}
	var doc wireBundle
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&doc); err != nil {
		return nil, rerrors.Wrap(err, rerrors.CompileError, "decoding binary bundle", rerrors.SourceLocation{})
	}

	b := New()
	b.Strings = doc.Strings
	b.LocalCount = doc.LocalCount
	b.Functions = doc.Functions
	b.Plans = doc.Plans
	b.QueryPlan = doc.QueryPlan
	b.Sources = doc.Sources
	b.Data = jsonToValue(doc.Data)
	b.Constants = make([]value.Value, len(doc.Constants))
	for i, c := range doc.Constants {
		b.Constants[i] = jsonToValue(c)
	}
	return b, nil
}

// wireBundle is the gob-friendly flattening of Bundle: value.Value is an
// interface and gob cannot decode into one without a registered concrete
// type per branch, so Data/Constants travel as plain interface{} built
// by valueToJSON/jsonToValue, the same bridge the JSON form uses.
type wireBundle struct {
	Strings    []string
	Constants  []interface{}
	LocalCount int
	Functions  []*Function
	Plans      []*Plan
	QueryPlan  int
	Data       interface{}
	Sources    map[string]string
}
