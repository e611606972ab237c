// Package errors implements the error taxonomy every compiler pass and the
// VM report through: a closed set of codes (see §7 of the design), a
// source/AST location, and an optional wrapped cause. Wrapping uses
// github.com/pkg/errors so that IO and driver failures (bundle store,
// module file reads) keep a walkable stack instead of losing the
// underlying cause the way a bare fmt.Errorf would.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Code is one entry of the closed error-taxonomy enumeration.
type Code string

const (
	ParseError     Code = "rego_parse_error"
	CompileError   Code = "rego_compile_error"
	TypeError      Code = "rego_type_error"
	RecursionError Code = "rego_recursion_error"
	ConflictError  Code = "eval_conflict_error"
	EvalTypeError  Code = "eval_type_error"
	BuiltinError   Code = "eval_builtin_error"
)

// SourceLocation is a location in source text or in the compiled AST.
type SourceLocation struct {
	File   string
	Line   int
	Column int
}

func (l SourceLocation) String() string {
	if l.File == "" && l.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// StackFrame is a single frame in a VM call-stack snapshot, attached to
// runtime errors (recursion, eval_conflict_error) for diagnostics.
type StackFrame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// RegoError is the concrete error type returned at every package boundary.
type RegoError struct {
	Code      Code
	Message   string
	Location  SourceLocation
	CallStack []StackFrame
	Source    string // the source line where the error occurred, if known
	Cause     error
}

// Error implements the error interface.
func (e *RegoError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Code, e.Message))

	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", e.Location.File, e.Location.Line, e.Location.Column))
		if e.Source != "" {
			sb.WriteString(fmt.Sprintf("\n\n  %d | %s\n  %s^", e.Location.Line, e.Source,
				strings.Repeat(" ", len(fmt.Sprintf("%d | ", e.Location.Line))+max(0, e.Location.Column-1))))
		}
	}

	for _, frame := range e.CallStack {
		if frame.Function != "" {
			sb.WriteString(fmt.Sprintf("\n  at %s (%s:%d:%d)", frame.Function, frame.File, frame.Line, frame.Column))
		} else {
			sb.WriteString(fmt.Sprintf("\n  at %s:%d:%d", frame.File, frame.Line, frame.Column))
		}
	}
	return sb.String()
}

func (e *RegoError) Unwrap() error { return e.Cause }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func New(code Code, message string, loc SourceLocation) *RegoError {
	return &RegoError{Code: code, Message: message, Location: loc}
}

// Wrap attaches cause via pkg/errors so errors.Cause(e) / errors.As can walk
// back through a wrapped driver or IO failure.
func Wrap(cause error, code Code, message string, loc SourceLocation) *RegoError {
	return &RegoError{Code: code, Message: message, Location: loc, Cause: pkgerrors.Wrap(cause, message)}
}

func (e *RegoError) WithSource(src string) *RegoError {
	e.Source = src
	return e
}

func (e *RegoError) WithStack(stack []StackFrame) *RegoError {
	e.CallStack = stack
	return e
}

// ErrorSeq is the ordered accumulator every pass and the VM append into; it
// is what the Interpreter returns instead of a Results value on failure.
type ErrorSeq []*RegoError

func (s ErrorSeq) Error() string {
	parts := make([]string, len(s))
	for i, e := range s {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "\n")
}

func (s ErrorSeq) HasErrors() bool { return len(s) > 0 }

// Append flattens err onto the sequence; a nested ErrorSeq (from a
// sub-compile or a comprehension's synthetic rule) is spliced in rather
// than nested, so the Interpreter always reports one flat sequence.
func (s ErrorSeq) Append(err error) ErrorSeq {
	switch e := err.(type) {
	case nil:
		return s
	case *RegoError:
		return append(s, e)
	case ErrorSeq:
		return append(s, e...)
	default:
		return append(s, &RegoError{Code: CompileError, Message: e.Error()})
	}
}

// AsSeq flattens any error returned by a compiler pass or the VM into an
// ErrorSeq, the shape the Interpreter reports failures in (§6.2).
func AsSeq(err error) ErrorSeq {
	return ErrorSeq(nil).Append(err)
}

// ToJSON renders the sequence as the plain-interface{} shape §6.2's
// failure output uses: one {"code", "message", "location"} object per
// error.
func (s ErrorSeq) ToJSON() []map[string]interface{} {
	out := make([]map[string]interface{}, len(s))
	for i, e := range s {
		entry := map[string]interface{}{
			"code":    string(e.Code),
			"message": e.Message,
		}
		if loc := e.Location.String(); loc != "" {
			entry["location"] = loc
		}
		out[i] = entry
	}
	return out
}
