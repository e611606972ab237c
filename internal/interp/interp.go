// Package interp implements the Interpreter facade (§6.1/§6.3): the
// single entry point wiring the parser, compiler, bundle store, VM, and
// result projector together behind the accumulator/build/query surface
// spec.md describes, and builds its construction the way the teacher's
// EnhancedVM/Config pair is built: functional options over a plain
// struct literal rather than a builder type of its own.
package interp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opa-rego/rego-go/internal/ast"
	"github.com/opa-rego/rego-go/internal/builtins"
	"github.com/opa-rego/rego-go/internal/bundle"
	"github.com/opa-rego/rego-go/internal/compiler"
	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/logging"
	"github.com/opa-rego/rego-go/internal/parser"
	"github.com/opa-rego/rego-go/internal/result"
	"github.com/opa-rego/rego-go/internal/value"
	"github.com/opa-rego/rego-go/internal/vm"
)

// Interpreter accumulates modules, a base data document, an input
// document, and an ad-hoc query, then builds them into a Bundle
// (§4.8's "Bundle is built once from compiled Source+Data+Query+
// Entrypoints; thereafter it is read-only"). It is not safe to share
// across goroutines (§4.8's shared-resource policy).
type Interpreter struct {
	modules     []*ast.Node
	sources     map[string]string
	data        value.Value
	input       value.Value
	queryBody   *ast.Node
	entrypoints []string

	strictBuiltins bool
	wfChecks       bool
	debugDumpDir   string

	builtins *builtins.Registry
	cachePath string

	built *bundle.Bundle
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithStrictBuiltins makes a non-strict built-in failure (a bad-type
// argument, not a call to an unknown name) a hard eval_builtin_error
// instead of the default soft Undefined propagation (§7).
func WithStrictBuiltins() Option {
	return func(in *Interpreter) { in.strictBuiltins = true }
}

// WithWFChecks enables the reduced Module/Rule well-formedness check
// (ast.SurfaceWF) against every module added, before it is compiled.
func WithWFChecks(enabled bool) Option {
	return func(in *Interpreter) { in.wfChecks = enabled }
}

// WithDebugDump makes Build() also write the built bundle's directory
// form under dir, for inspecting the compiled plan/data documents a
// query ran against.
func WithDebugDump(dir string) Option {
	return func(in *Interpreter) { in.debugDumpDir = dir }
}

// WithLogLevel sets the process-wide log level (internal/logging is
// process-global, so this just forwards to it; see DESIGN.md's "global
// state" note).
func WithLogLevel(l logging.Level) Option {
	return func(in *Interpreter) { logging.SetLevel(l) }
}

// WithBuildCache opens a sqlite3-backed bundle cache at path; Build()
// consults it before compiling and populates it after a successful
// build (§11.1).
func WithBuildCache(path string) Option {
	return func(in *Interpreter) { in.cachePath = path }
}

// WithBuiltins overrides the default built-in registry.
func WithBuiltins(r *builtins.Registry) Option {
	return func(in *Interpreter) { in.builtins = r }
}

func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		sources:  map[string]string{},
		data:     value.NewObject(),
		input:    value.NewObject(),
		builtins: builtins.Default(),
	}
	for _, o := range opts {
		o(in)
	}
	return in
}

// AddModule parses text as a Rego module under name and appends it to
// the interpreter's accumulated source set (§6.1).
func (in *Interpreter) AddModule(name, text string) error {
	mod, err := parser.Parse(text, name)
	if err != nil {
		return err
	}
	if in.wfChecks {
		if err := ast.SurfaceWF.Check(mod); err != nil {
			return err
		}
	}
	in.modules = append(in.modules, mod)
	in.sources[name] = text
	in.built = nil
	return nil
}

// AddModuleFile reads path and adds it as a module named by its base
// filename.
func (in *Interpreter) AddModuleFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "reading module file", rerrors.SourceLocation{})
	}
	return in.AddModule(filepath.Base(path), string(text))
}

// AddDataJSON decodes text as JSON and merges it into the accumulated
// base data document.
func (in *Interpreter) AddDataJSON(text string) error {
	var raw interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "decoding data JSON", rerrors.SourceLocation{})
	}
	return in.AddData(bundle.JSONToValue(raw))
}

// AddDataJSONFile reads path and merges its JSON content into data.
func (in *Interpreter) AddDataJSONFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "reading data file", rerrors.SourceLocation{})
	}
	return in.AddDataJSON(string(text))
}

// AddData merges v into the accumulated base data document (§3.4's
// merge/insert-with-conflict value semantics).
func (in *Interpreter) AddData(v value.Value) error {
	merged, err := value.MergeObjects(in.data, v)
	if err != nil {
		return err
	}
	in.data = merged
	in.built = nil
	return nil
}

// SetInputJSON decodes text as JSON and sets it as the evaluation input.
func (in *Interpreter) SetInputJSON(text string) error {
	var raw interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return rerrors.Wrap(err, rerrors.CompileError, "decoding input JSON", rerrors.SourceLocation{})
	}
	in.input = bundle.JSONToValue(raw)
	return nil
}

// SetInputTerm parses text as a single literal Rego term (no variables
// or refs — scalars, arrays, objects, sets) and sets it as input.
func (in *Interpreter) SetInputTerm(text string) error {
	body, err := parser.ParseQuery(text, "input")
	if err != nil {
		return err
	}
	if body.Size() != 1 {
		return rerrors.New(rerrors.ParseError, "set_input_term expects exactly one term", rerrors.SourceLocation{})
	}
	v, err := literalToValue(body.At(0))
	if err != nil {
		return err
	}
	in.input = v
	return nil
}

// SetInput sets v directly as the evaluation input.
func (in *Interpreter) SetInput(v value.Value) { in.input = v }

// SetQuery parses expr as an ad-hoc query and installs it as the
// query plan the next Build() compiles.
func (in *Interpreter) SetQuery(expr string) error {
	body, err := parser.ParseQuery(expr, "query")
	if err != nil {
		return err
	}
	in.queryBody = body
	in.built = nil
	return nil
}

// AddEntrypoint registers path (e.g. "pkg/rule", mirroring how the
// data document itself is addressed) as an additional compiled plan
// the next Build() emits, queryable by QueryBundleEntrypoint without needing an
// ad-hoc query text (§6.3).
func (in *Interpreter) AddEntrypoint(path string) {
	qualified := "data." + strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
	in.entrypoints = append(in.entrypoints, qualified)
	in.built = nil
}

// Build compiles every accumulated module, the merged data document,
// the query (if set), and every entrypoint into a Bundle, consulting
// and then populating the build cache if one was configured (§11.1).
func (in *Interpreter) Build() (*bundle.Bundle, error) {
	var store *bundle.Store
	var digest string
	if in.cachePath != "" {
		s, err := bundle.OpenStore(in.cachePath)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		store = s

		dataJSON, err := json.Marshal(bundle.ValueToJSON(in.data))
		if err != nil {
			return nil, rerrors.Wrap(err, rerrors.CompileError, "hashing data document", rerrors.SourceLocation{})
		}
		digest = bundle.Digest(in.sources, dataJSON)
		if cached, ok, err := store.Get(digest); err != nil {
			return nil, err
		} else if ok {
			in.built = cached
			return cached, nil
		}
	}

	b, err := compiler.Compile(in.modules, in.data, in.queryBody, in.entrypoints)
	if err != nil {
		return nil, err
	}
	b.Sources = in.sources

	if store != nil {
		if err := store.Put(digest, b); err != nil {
			return nil, err
		}
	}
	if in.debugDumpDir != "" {
		if err := b.SaveDir(in.debugDumpDir); err != nil {
			return nil, err
		}
	}

	in.built = b
	return b, nil
}

// SaveBundle writes the most recently built or loaded bundle to disk:
// directory form, unless path ends in ".bin" (binary form), per §6.3.
func (in *Interpreter) SaveBundle(path string) error {
	if in.built == nil {
		return rerrors.New(rerrors.CompileError, "no bundle built or loaded yet", rerrors.SourceLocation{})
	}
	if strings.HasSuffix(path, ".bin") {
		return in.built.SaveBinary(path)
	}
	return in.built.SaveDir(path)
}

// LoadBundle reads a directory-form bundle and makes it the current one.
func (in *Interpreter) LoadBundle(dir string) (*bundle.Bundle, error) {
	b, err := bundle.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	in.built = b
	return b, nil
}

// LoadBundleBinary reads a gob-encoded bundle file and makes it current.
func (in *Interpreter) LoadBundleBinary(path string) (*bundle.Bundle, error) {
	b, err := bundle.LoadBinary(path)
	if err != nil {
		return nil, err
	}
	in.built = b
	return b, nil
}

// newState builds a VM State over b sharing this interpreter's input
// and built-in registry, with strict-builtins honored as configured.
func (in *Interpreter) newState(b *bundle.Bundle) *vm.State {
	st := vm.NewState(b, in.builtins, in.input)
	st.StrictBuiltins = in.strictBuiltins
	return st
}

// QueryBundle runs b's ad-hoc query plan and projects the raw result
// set into Results (§6.2).
func (in *Interpreter) QueryBundle(b *bundle.Bundle) (result.Results, error) {
	raw, err := in.newState(b).RunPlan("query")
	if err != nil {
		return nil, err
	}
	return result.Project(raw), nil
}

// QueryBundleEntrypoint runs the named entrypoint's plan (path, the
// same "pkg/rule" form AddEntrypoint accepts) and projects its single
// "result" binding into Results.
func (in *Interpreter) QueryBundleEntrypoint(b *bundle.Bundle, path string) (result.Results, error) {
	qualified := "data." + strings.ReplaceAll(strings.Trim(path, "/"), "/", ".")
	raw, err := in.newState(b).RunPlan("entrypoint:" + qualified)
	if err != nil {
		return nil, err
	}
	return result.Project(raw), nil
}

// Query is the one-shot convenience path: set the query, build, run it,
// and render §6.2's `{"result": [...]}` JSON shape (or the error array
// shape on failure).
func (in *Interpreter) Query(expr string) (string, error) {
	if err := in.SetQuery(expr); err != nil {
		return errorJSON(err), err
	}
	b, err := in.Build()
	if err != nil {
		return errorJSON(err), err
	}
	rs, err := in.QueryBundle(b)
	if err != nil {
		return errorJSON(err), err
	}
	return resultJSON(rs)
}

// RawQuery is Query without the JSON rendering step: the unprojected
// value each matching assignment's query plan produced.
func (in *Interpreter) RawQuery(expr string) ([]value.Value, error) {
	if err := in.SetQuery(expr); err != nil {
		return nil, err
	}
	b, err := in.Build()
	if err != nil {
		return nil, err
	}
	return in.newState(b).RunPlan("query")
}

// Builtins returns the registry this interpreter resolves calls
// against.
func (in *Interpreter) Builtins() *builtins.Registry { return in.builtins }

func resultJSON(rs result.Results) (string, error) {
	out, err := json.Marshal(map[string]interface{}{"result": rs.ToJSON()})
	if err != nil {
		return "", rerrors.Wrap(err, rerrors.CompileError, "encoding result JSON", rerrors.SourceLocation{})
	}
	return string(out), nil
}

func errorJSON(err error) string {
	out, jerr := json.Marshal(rerrors.AsSeq(err).ToJSON())
	if jerr != nil {
		return fmt.Sprintf(`[{"code":"rego_compile_error","message":%q}]`, err.Error())
	}
	return string(out)
}

// literalToValue converts a parsed literal term (scalars, arrays,
// objects, sets — no Var/Ref/ExprCall) directly into a value.Value,
// the same shape Kind.Scalar's Lit field already carries for a bare
// scalar.
func literalToValue(n *ast.Node) (value.Value, error) {
	switch n.Kind() {
	case ast.KindScalar:
		v, _ := n.Lit.(value.Value)
		return v, nil
	case ast.KindArray:
		elems := make([]value.Value, n.Size())
		for i := 0; i < n.Size(); i++ {
			v, err := literalToValue(n.At(i))
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.NewArray(elems...), nil
	case ast.KindSet:
		elems := make([]value.Value, n.Size())
		for i := 0; i < n.Size(); i++ {
			v, err := literalToValue(n.At(i))
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return value.NewSet(elems...), nil
	case ast.KindObject:
		obj := value.NewObject()
		for i := 0; i < n.Size(); i++ {
			item := n.At(i)
			k, err := literalToValue(item.At(0))
			if err != nil {
				return nil, err
			}
			v, err := literalToValue(item.At(1))
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	default:
		return nil, rerrors.New(rerrors.ParseError,
			fmt.Sprintf("%s is not a literal term", n.Kind()), rerrors.SourceLocation{
				File: n.Location().File, Line: n.Location().Line, Column: n.Location().Column,
			})
	}
}
