// Package vm implements the virtual machine (component C7): a
// frame-based interpreter over a bundle.Bundle's Plans and Functions.
// Generalized from the teacher's stack-based EnhancedVM/CallFrame/
// DebugHook pattern: where the teacher's CallFrame held an operand
// stack and instruction pointer into a flat bytecode array, this VM's
// CallFrame holds a slice of named locals and walks nested
// bundle.Block trees directly, since this IR's unit of dispatch is the
// statement, not a stack op. The DebugHook interface is carried over
// unchanged in spirit: a pluggable trace point a caller may attach for
// diagnostics, never required for correct evaluation.
package vm

import (
	"fmt"

	"github.com/opa-rego/rego-go/internal/builtins"
	"github.com/opa-rego/rego-go/internal/bundle"
	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/value"
)

// localData and localInput are the two reserved frame slots every
// compiled Plan/Function assumes are pre-seeded: local 0 is the base
// data document, local 1 is the evaluation input (§4.7.1's "initial
// frame"). internal/compiler's funcCompiler lowers the bare `data` and
// `input` identifiers to exactly these two locals.
const (
	localData  bundle.Local = 0
	localInput bundle.Local = 1
)

// DebugHook observes statement execution; a caller wanting an eval
// trace implements this and sets State.Hook instead of the VM growing
// println calls of its own. Nothing in this module installs one.
type DebugHook interface {
	OnStatement(frame *CallFrame, stmt *bundle.Statement)
	OnCall(name string, args []value.Value)
	OnReturn(name string, result value.Value)
}

// CallFrame is one activation: a function or plan's locals. With
// overrides are applied to State.Input/State.Data (see execWith); the
// VM does not write Overrides.
type CallFrame struct {
	Function  string
	Locals    []value.Value
	Overrides []override
}

type override struct {
	path []string
	old  value.Value
	had  bool
}

func newFrame(name string, localCount int) *CallFrame {
	return &CallFrame{Function: name, Locals: make([]value.Value, localCount)}
}

func (f *CallFrame) get(l bundle.Local) value.Value {
	if int(l) < 0 || int(l) >= len(f.Locals) || f.Locals[l] == nil {
		return value.TheUndefined
	}
	return f.Locals[l]
}

func (f *CallFrame) set(l bundle.Local, v value.Value) {
	for int(l) >= len(f.Locals) {
		f.Locals = append(f.Locals, value.TheUndefined)
	}
	f.Locals[l] = v
}

func (f *CallFrame) clone() *CallFrame {
	locals := make([]value.Value, len(f.Locals))
	copy(locals, f.Locals)
	return &CallFrame{Function: f.Function, Locals: locals}
}

// State is the mutable evaluation context shared across one top-level
// query or build: call stack (recursion detection), per-call-signature
// result cache (memoized Cacheable functions), with-depth, and the
// accumulated result set a Plan's ResultSetAdd statements feed into.
type State struct {
	Bundle      *bundle.Bundle
	Builtins    *builtins.Registry
	Input       value.Value
	Data        value.Value
	Hook        DebugHook
	StrictBuiltins bool

	callStack []string
	cache     map[string]value.Value
	withDepth int
	Results   []value.Value
}

func NewState(b *bundle.Bundle, reg *builtins.Registry, input value.Value) *State {
	data := b.Data
	if data == nil {
		data = value.NewObject()
	}
	return &State{
		Bundle:   b,
		Builtins: reg,
		Input:    input,
		Data:     data,
		cache:    map[string]value.Value{},
	}
}

// control is the intra-block signal returned by statement execution:
// whether the statement/body produced a value (ok) and how many
// enclosing block levels a Break should still unwind (breakLevels).
type control struct {
	ok          bool
	breakLevels int
}

var cOK = control{ok: true}
var cFail = control{ok: false}

// RunPlan executes the named plan's blocks in order and returns the
// accumulated result set it produced via ResultSetAdd.
func (s *State) RunPlan(name string) ([]value.Value, error) {
	plan := s.Bundle.PlanByName(name)
	if plan == nil {
		return nil, rerrors.New(rerrors.CompileError, fmt.Sprintf("no such plan %q", name), rerrors.SourceLocation{})
	}
	frame := newFrame(name, s.Bundle.LocalCount)
	frame.set(localData, s.Data)
	frame.set(localInput, s.Input)
	s.Results = nil
	for _, block := range plan.Blocks {
		if _, err := s.execBlock(frame, block); err != nil {
			return nil, err
		}
	}
	return s.Results, nil
}

// CallFunction invokes a compiled function by name with already
// evaluated arguments, honoring the recursion check and the memoizing
// cache for Cacheable functions (§7 rego_recursion_error).
func (s *State) CallFunction(name string, args []value.Value) (value.Value, error) {
	fn := s.Bundle.FunctionByName(name)
	if fn == nil {
		return nil, rerrors.New(rerrors.CompileError, fmt.Sprintf("no such function %q", name), rerrors.SourceLocation{})
	}
	if len(args) != fn.Arity {
		return nil, rerrors.New(rerrors.EvalTypeError,
			fmt.Sprintf("%s: expected %d argument(s), got %d", name, fn.Arity, len(args)), rerrors.SourceLocation{})
	}

	key := ""
	cacheable := fn.Cacheable && s.withDepth == 0
	if cacheable {
		key = cacheKey(name, args)
		if v, ok := s.cache[key]; ok {
			return v, nil
		}
	}

	for _, onStack := range s.callStack {
		if onStack == name {
			return nil, rerrors.New(rerrors.RecursionError,
				fmt.Sprintf("recursive call to %s", name), rerrors.SourceLocation{}).
				WithStack(s.stackFrames())
		}
	}
	s.callStack = append(s.callStack, name)
	defer func() { s.callStack = s.callStack[:len(s.callStack)-1] }()

	if s.Hook != nil {
		s.Hook.OnCall(name, args)
	}

	frame := newFrame(name, s.Bundle.LocalCount)
	frame.set(localData, s.Data)
	frame.set(localInput, s.Input)
	for i, p := range fn.Parameters {
		if i < len(args) {
			frame.set(p, args[i])
		}
	}

	var result value.Value
	switch fn.Mode {
	case bundle.ModePartialSet:
		frame.set(fn.Result, value.NewSet())
		for _, block := range fn.Blocks {
			if _, err := s.execBlock(frame, block); err != nil {
				return nil, err
			}
		}
		result = frame.get(fn.Result)
	case bundle.ModePartialObject:
		frame.set(fn.Result, value.NewObject())
		for _, block := range fn.Blocks {
			if _, err := s.execBlock(frame, block); err != nil {
				return nil, err
			}
		}
		result = frame.get(fn.Result)
	case bundle.ModeComplete:
		frame.set(fn.Result, value.TheUndefined)
		var found value.Value
		seen := false
		for _, block := range fn.Blocks {
			frame.set(fn.Result, value.TheUndefined)
			ctrl, err := s.execBlock(frame, block)
			if err != nil {
				return nil, err
			}
			if !ctrl.ok {
				continue
			}
			v := frame.get(fn.Result)
			if seen && !value.Equal(found, v) {
				return nil, rerrors.New(rerrors.ConflictError,
					fmt.Sprintf("complete rules must not produce multiple outputs: %s and %s", name, name),
					rerrors.SourceLocation{})
			}
			found, seen = v, true
		}
		if seen {
			result = found
		} else {
			result = value.TheUndefined
		}
	default: // ModeFunc
		frame.set(fn.Result, value.TheUndefined)
		result = value.TheUndefined
		for _, block := range fn.Blocks {
			ctrl, err := s.execBlock(frame, block)
			if err != nil {
				return nil, err
			}
			if ctrl.ok {
				result = frame.get(fn.Result)
				break
			}
		}
	}

	if s.Hook != nil {
		s.Hook.OnReturn(name, result)
	}
	if cacheable {
		s.cache[key] = result
	}
	return result, nil
}

func cacheKey(name string, args []value.Value) string {
	key := name
	for _, a := range args {
		key += "\x00" + value.ToKey(a)
	}
	return key
}

func (s *State) stackFrames() []rerrors.StackFrame {
	frames := make([]rerrors.StackFrame, len(s.callStack))
	for i, n := range s.callStack {
		frames[i] = rerrors.StackFrame{Function: n}
	}
	return frames
}
