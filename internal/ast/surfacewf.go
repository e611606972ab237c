package ast

// SurfaceWF is the WF table the Interpreter's WithWFChecks option
// applies to a module before compiling it (§10.3): a best-effort check
// at the Module/Rule level rather than a full per-Kind grammar, since
// this module's WF is already the reduced unordered-allowed-child-kind
// form documented in wf.go — checking every intermediate Kind here
// would just restate what the parser's own grammar already guarantees.
var SurfaceWF = WF{
	KindModule: {KindPackage, KindImport, KindRule},
	KindRule:   {KindRuleHeadSet, KindRuleHeadObj, KindRuleHeadFunc, KindBody,
		KindVar, KindRef, KindScalar, KindInt, KindFloat, KindString, KindTrue, KindFalse, KindNull,
		KindArray, KindObject, KindSet, KindComprArray, KindComprSet, KindComprObject,
		KindExprCall, KindMembership, KindArithInfix, KindBoolInfix},
}
