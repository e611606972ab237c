package ast

// Kind is a closed enumeration of AST node kinds grouped by compiler
// stage, mirroring §3.1: surface (parser output), intermediate
// (normalization/lowering passes), and bundle (what the unify/query
// passes finally emit, one step short of the bundle.Statement IR).
// Modeled as a string enum the way the lexer's TokenType is, so debug
// dumps and WF error messages read as the kind name directly.
type Kind string

const (
	// --- surface ---
	KindModule       Kind = "Module"
	KindPackage      Kind = "Package"
	KindImport       Kind = "Import"
	KindRule         Kind = "Rule"
	KindRuleHeadSet  Kind = "RuleHeadSet"
	KindRuleHeadObj  Kind = "RuleHeadObj"
	KindRuleHeadFunc Kind = "RuleHeadFunc"
	KindBody         Kind = "Body"
	KindExpr         Kind = "Expr"
	KindRef          Kind = "Ref"
	KindRefArgDot    Kind = "RefArgDot"
	KindRefArgBrack  Kind = "RefArgBrack"
	KindScalar       Kind = "Scalar"
	KindArray        Kind = "Array"
	KindObject       Kind = "Object"
	KindObjectItem   Kind = "ObjectItem"
	KindSet          Kind = "Set"
	KindTerm         Kind = "Term"
	KindVar          Kind = "Var"
	KindInt          Kind = "Int"
	KindFloat        Kind = "Float"
	KindString       Kind = "String"
	KindTrue         Kind = "True"
	KindFalse        Kind = "False"
	KindNull         Kind = "Null"
	KindUndefined    Kind = "Undefined"
	KindExprCall     Kind = "ExprCall"
	KindMembership   Kind = "Membership"
	KindComprArray   Kind = "ComprArray"
	KindComprSet     Kind = "ComprSet"
	KindComprObject  Kind = "ComprObject"
	KindSome         Kind = "Some"
	KindEvery        Kind = "Every"
	KindWith         Kind = "WithExpr"
	KindNot          Kind = "NotExpr"

	// --- intermediate ---
	KindArithInfix  Kind = "ArithInfix"
	KindBoolInfix   Kind = "BoolInfix"
	KindBinInfix    Kind = "BinInfix"
	KindUnifyExpr   Kind = "UnifyExpr"
	KindSimpleRef   Kind = "SimpleRef"
	KindEnumerate   Kind = "Enumerate"
	KindLiteralEnum Kind = "LiteralEnum"
	KindLiteralInit Kind = "LiteralInit"
	KindLiteralNot  Kind = "LiteralNot"
	KindLiteralWith Kind = "LiteralWith"
	KindUnifyBody   Kind = "UnifyBody"
	KindFunction    Kind = "Function"
	KindArgSeq      Kind = "ArgSeq"
	KindDataTerm    Kind = "DataTerm"
	KindSkip        Kind = "Skip"

	// --- bundle-adjacent (one step before bundle.Statement) ---
	KindOpBlock          Kind = "OpBlock"
	KindOperand          Kind = "Operand"
	KindLocalRef         Kind = "LocalRef"
	KindDotStmt          Kind = "DotStmt"
	KindCallStmt         Kind = "CallStmt"
	KindScanStmt         Kind = "ScanStmt"
	KindMakeObjectStmt   Kind = "MakeObjectStmt"
	KindObjectInsertStmt Kind = "ObjectInsertStmt"
	KindObjectMergeStmt  Kind = "ObjectMergeStmt"
	KindArrayAppendStmt  Kind = "ArrayAppendStmt"
	KindSetAddStmt       Kind = "SetAddStmt"
	KindWithStmt         Kind = "WithStmt"
	KindNotStmt          Kind = "NotStmt"
	KindReturnLocalStmt  Kind = "ReturnLocalStmt"
	KindBreakStmt        Kind = "BreakStmt"
	KindAssignVarStmt    Kind = "AssignVarStmt"
	KindAssignOnceStmt   Kind = "AssignVarOnceStmt"
	KindIsDefinedStmt    Kind = "IsDefinedStmt"
	KindBlockStmt        Kind = "BlockStmt"
	KindBuiltInCallStmt  Kind = "BuiltInCallStmt"
	KindBlock            Kind = "Block"
	KindBlockSeq         Kind = "BlockSeq"

	// Root placeholders used internally by the pass engine.
	KindData  Kind = "Data"
	KindInput Kind = "Input"
	KindQuery Kind = "Query"

	// KindSeq is a sentinel a rewrite rule may return to splice multiple
	// replacement nodes inline into the parent's child sequence (§4.3
	// "lifting"), rather than a single 1:1 replacement.
	KindSeq Kind = "Seq"

	// KindHolder is the pass engine's internal root wrapper so a rule may
	// replace the tree's root the same way it replaces any other node.
	KindHolder Kind = "$holder$"
)
