// Package builtins implements the built-in function registry (component
// C6): a name -> (arity, purity, behavior) table the compiler consults
// to resolve calls and the VM consults to invoke them. Grounded on the
// teacher's RegisterBuiltin pattern (previously internal/stdlib's
// table-driven registration of named Go functions under string keys,
// looked up by the VM's CALL_BUILTIN-style dispatch).
package builtins

import (
	"fmt"
	"sort"

	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// Func is a built-in's behavior: given its already-evaluated arguments,
// produce a result or value.TheUndefined, or an error for a genuine
// builtin-error condition (§7 eval_builtin_error) distinct from mere
// undefinedness.
type Func func(args []value.Value) (value.Value, error)

type Entry struct {
	Name  string
	Arity int
	Pure  bool
	Fn    Func
}

// Registry is name -> Entry, mutable only at construction time; the VM
// treats it as read-only once built, same as a Bundle.
type Registry struct {
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

func (r *Registry) Register(name string, arity int, pure bool, fn Func) {
	r.entries[name] = Entry{Name: name, Arity: arity, Pure: pure, Fn: fn}
}

func (r *Registry) Lookup(name string) (Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke checks arity and calls fn, wrapping Go-level errors from fn in
// the eval_builtin_error taxonomy (§7).
func (r *Registry) Invoke(name string, args []value.Value) (value.Value, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, rerrors.New(rerrors.BuiltinError, fmt.Sprintf("unknown built-in function %q", name), rerrors.SourceLocation{})
	}
	if len(args) != e.Arity {
		return nil, rerrors.New(rerrors.BuiltinError,
			fmt.Sprintf("%s: expected %d argument(s), got %d", name, e.Arity, len(args)), rerrors.SourceLocation{})
	}
	out, err := e.Fn(args)
	if err != nil {
		if re, ok := err.(*rerrors.RegoError); ok {
			return nil, re
		}
		return nil, rerrors.Wrap(err, rerrors.BuiltinError, name, rerrors.SourceLocation{})
	}
	return out, nil
}
