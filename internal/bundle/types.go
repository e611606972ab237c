// Package bundle implements the compiled artifact (component C5): Plans,
// Functions, Blocks of Statements, an interned string table, the base
// data document, and original sources. It is read-only once built and
// may be persisted and re-evaluated without re-parsing (§3.4).
//
// The Statement tag (StmtKind) and the builder-style append API below
// are adapted from the teacher's internal/bytecode package: a byte-sized
// iota enum grouped by comment section (bytecode/opcodes.go) and a
// WriteOp-style incremental builder (bytecode/chunk.go) — generalized
// here from a stack machine's flat byte-code to this IR's frame-local,
// nested-block statement model.
package bundle

import "github.com/opa-rego/rego-go/internal/value"

// Local addresses a slot in the VM frame.
type Local int

// StmtKind is the exhaustive statement enumeration from §3.4.
type StmtKind byte

const (
	MakeObject StmtKind = iota
	MakeArray
	MakeSet
	MakeNull
	MakeNumberInt
	MakeNumberRef

	AssignInt
	AssignVar
	AssignVarOnce
	ResetLocal

	IsDefined
	IsUndefined
	IsObject
	IsArray
	IsSet

	Not
	BlockOp
	Len
	Dot

	ObjectInsert
	ObjectInsertOnce
	ObjectMerge
	ArrayAppend
	SetAdd

	ReturnLocal
	ResultSetAdd

	Equal
	NotEqual

	Call
	CallDynamic
	Scan
	With
	Break
	Nop
)

func (k StmtKind) String() string {
	names := [...]string{
		"MakeObject", "MakeArray", "MakeSet", "MakeNull", "MakeNumberInt", "MakeNumberRef",
		"AssignInt", "AssignVar", "AssignVarOnce", "ResetLocal",
		"IsDefined", "IsUndefined", "IsObject", "IsArray", "IsSet",
		"Not", "Block", "Len", "Dot",
		"ObjectInsert", "ObjectInsertOnce", "ObjectMerge", "ArrayAppend", "SetAdd",
		"ReturnLocal", "ResultSetAdd",
		"Equal", "NotEqual",
		"Call", "CallDynamic", "Scan", "With", "Break", "Nop",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// OperandKind discriminates an Operand's payload.
type OperandKind byte

const (
	OperandNone OperandKind = iota
	OperandLocal
	OperandString // index into Bundle.Strings
	OperandValue  // index into the bundle-wide constant pool
	OperandFalse
	OperandTrue
)

// Operand is one of Local(index) | String(index) | Value(index) | False |
// True | None, per §3.4.
type Operand struct {
	Kind OperandKind
	N    int
}

func LocalOperand(l Local) Operand  { return Operand{Kind: OperandLocal, N: int(l)} }
func StringOperand(idx int) Operand { return Operand{Kind: OperandString, N: idx} }
func ValueOperand(idx int) Operand  { return Operand{Kind: OperandValue, N: idx} }

var (
	NoOperand    = Operand{Kind: OperandNone}
	TrueOperand  = Operand{Kind: OperandTrue}
	FalseOperand = Operand{Kind: OperandFalse}
)

// DebugInfo mirrors the teacher's bytecode.DebugInfo, carried per
// Statement instead of per byte since this IR's unit of execution is
// the statement, not an opcode byte.
type DebugInfo struct {
	Line   int
	Column int
	File   string
}

// Statement is (target local, op0, op1, ext) per §3.4. Ext-only fields
// (Blocks, KeyLocal/ValLocal, Path, Func, Args, Cacheable, BreakLevels)
// are populated only by the statement kinds that use them.
type Statement struct {
	Op     StmtKind
	Target Local
	A, B   Operand

	Blocks      []Block   // Not/Block: [body]; Scan/With: [body]
	KeyLocal    Local     // Scan
	ValLocal    Local     // Scan
	Path        []Operand // With: override path segments (strings)
	Value       Operand   // With: override value
	Func        string    // Call: resolved function/built-in name
	DynSegments []Operand // CallDynamic: path segments to resolve longest-prefix
	Args        []Operand // Call/CallDynamic arguments
	Cacheable   bool      // Call: whether result may be memoized
	BreakLevels int       // Break: how many block levels to unwind

	Debug DebugInfo
}

// Block is an ordered sequence of Statement (§3.4).
type Block []Statement

// FunctionMode discriminates the three rule shapes a Function may
// compile from, since each has distinct multi-body evaluation
// semantics (§4.4): a complete rule's bodies must all agree on one
// value, a partial set/object rule's bodies all contribute members,
// and an arity>0 function rule's bodies are tried until one succeeds.
type FunctionMode int

const (
	ModeFunc FunctionMode = iota
	ModeComplete
	ModePartialSet
	ModePartialObject
)

// Function is a named, arity-checked callable compiled from a Rego
// rule (complete, partial set/object, or arity>0 function) or a lifted
// comprehension.
type Function struct {
	Name       string
	Mode       FunctionMode
	Parameters []Local
	Arity      int
	Result     Local
	Cacheable  bool
	Blocks     []Block
}

// Plan is a named sequence of blocks: one per entrypoint/rule, or the
// synthetic ad-hoc query plan.
type Plan struct {
	Name   string
	Blocks []Block
}

// Bundle is the self-contained compiled artifact of §3.4.
type Bundle struct {
	Strings    []string
	Constants  []value.Value
	LocalCount int
	Functions  []*Function
	Plans      []*Plan
	QueryPlan  int // index into Plans, or -1
	Data       value.Value
	Sources    map[string]string
}

func New() *Bundle {
	return &Bundle{QueryPlan: -1, Data: value.NewObject(), Sources: map[string]string{}}
}

func (b *Bundle) FunctionByName(name string) *Function {
	for _, f := range b.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (b *Bundle) PlanByName(name string) *Plan {
	for _, p := range b.Plans {
		if p.Name == name {
			return p
		}
	}
	return nil
}
