// Package parser implements a recursive-descent parser over the token
// stream internal/lexer produces, building internal/ast.Node trees
// directly rather than an intermediate Expr/Stmt type hierarchy — this
// IR's "one flat Node kind per compiler stage" design (§3.1) replaces
// the teacher's old visitor-pattern Expr/Stmt classes, but the parser's
// own control flow (a Parser struct holding tokens/pos, one method per
// grammar production, match/check/expect helpers) is carried over from
// the teacher's recursive-descent shape unchanged.
//
// The grammar accepted here is a deliberately reduced subset of Rego —
// package declarations, imports, complete/partial-set/partial-object/
// function rules, bodies of conjunctive expressions, refs, arithmetic
// and comparison/membership expressions, arrays/objects/sets and their
// comprehensions, some/every, with, and negation — sufficient to parse
// every construct the worked scenarios and this module's tests use.
// Full Rego grammar fidelity (e.g. multi-arity head sugar, every
// numeric literal form, string escape edge cases) is out of scope, as
// spec.md already delegates the text-level grammar to an external
// collaborator; see DESIGN.md for the explicit Open Question
// resolution.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opa-rego/rego-go/internal/ast"
	rerrors "github.com/opa-rego/rego-go/internal/errors"
	"github.com/opa-rego/rego-go/internal/lexer"
	"github.com/opa-rego/rego-go/internal/value"
)

type Parser struct {
	file   string
	tokens []lexer.Token
	pos    int
}

// Parse tokenizes and parses a single Rego module.
func Parse(source, file string) (*ast.Node, error) {
	toks := lexer.NewScanner(source).ScanTokens()
	p := &Parser{file: file, tokens: toks}
	return p.parseModule()
}

// ParseQuery tokenizes and parses an ad-hoc query: a `;`-separated
// conjunction of body literals with no enclosing package declaration or
// braces, the shape the Interpreter's query methods and the CLI's -q
// flag accept (§6.3/§6.4).
func ParseQuery(source, file string) (*ast.Node, error) {
	toks := lexer.NewScanner(source).ScanTokens()
	p := &Parser{file: file, tokens: toks}
	loc := p.loc()
	body := ast.New(ast.KindBody, loc)
	for !p.atEnd() {
		expr, err := p.parseLiteralExpr()
		if err != nil {
			return nil, err
		}
		body.PushBack(expr)
		for p.match(lexer.TokenSemicolon) {
		}
	}
	return body, nil
}

func (p *Parser) cur() lexer.Token  { return p.tokens[p.pos] }
func (p *Parser) atEnd() bool       { return p.cur().Type == lexer.TokenEOF }
func (p *Parser) loc() ast.Location {
	t := p.cur()
	return ast.Location{File: p.file, Line: t.Line, Column: t.Column, Text: t.Lexeme}
}

func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(tt lexer.TokenType) bool { return p.cur().Type == tt }

func (p *Parser) match(tt lexer.TokenType) bool {
	if p.check(tt) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(tt lexer.TokenType, ctx string) (lexer.Token, error) {
	if p.check(tt) {
		return p.advance(), nil
	}
	return lexer.Token{}, rerrors.New(rerrors.ParseError,
		fmt.Sprintf("%s: expected %s, got %s %q", ctx, tt, p.cur().Type, p.cur().Lexeme),
		rerrors.SourceLocation{File: p.file, Line: p.cur().Line, Column: p.cur().Column})
}

func (p *Parser) parseModule() (*ast.Node, error) {
	mod := ast.New(ast.KindModule, p.loc())

	if !p.check(lexer.TokenPackage) {
		return nil, rerrors.New(rerrors.ParseError, "module must begin with a package declaration",
			rerrors.SourceLocation{File: p.file, Line: p.cur().Line, Column: p.cur().Column})
	}
	pkg, err := p.parsePackage()
	if err != nil {
		return nil, err
	}
	mod.PushBack(pkg)

	for !p.atEnd() {
		if p.check(lexer.TokenImport) {
			imp, err := p.parseImport()
			if err != nil {
				return nil, err
			}
			mod.PushBack(imp)
			continue
		}
		rule, err := p.parseRule()
		if err != nil {
			return nil, err
		}
		mod.PushBack(rule)
	}
	return mod, nil
}

func (p *Parser) parsePackage() (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "package"
	ref, err := p.parseDottedPath()
	if err != nil {
		return nil, err
	}
	pkg := ast.New(ast.KindPackage, loc)
	pkg.Lit = ref
	return pkg, nil
}

// parseDottedPath reads a simple dotted name (package paths and import
// paths don't support bracket refs or computed segments in this grammar).
func (p *Parser) parseDottedPath() (string, error) {
	tok, err := p.expect(lexer.TokenIdent, "path segment")
	if err != nil {
		return "", err
	}
	parts := []string{tok.Lexeme}
	for p.match(lexer.TokenDot) {
		seg, err := p.expect(lexer.TokenIdent, "path segment")
		if err != nil {
			return "", err
		}
		parts = append(parts, seg.Lexeme)
	}
	return strings.Join(parts, "."), nil
}

func (p *Parser) parseImport() (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "import"
	path, err := p.parseDottedPath()
	if err != nil {
		return nil, err
	}
	imp := ast.New(ast.KindImport, loc)
	alias := ""
	if p.match(lexer.TokenAs) {
		tok, err := p.expect(lexer.TokenIdent, "import alias")
		if err != nil {
			return nil, err
		}
		alias = tok.Lexeme
	}
	imp.Lit = [2]string{path, alias}
	return imp, nil
}

// parseRule handles complete, partial set/object, and function rules:
//
//	allow { ... }
//	allow = true { ... }
//	deny[msg] { ... }
//	widgets[name] = w { ... }
//	f(x) = y { ... }
func (p *Parser) parseRule() (*ast.Node, error) {
	loc := p.loc()
	isDefault := p.match(lexer.TokenDefault)

	nameTok, err := p.expect(lexer.TokenIdent, "rule head")
	if err != nil {
		return nil, err
	}
	name := nameTok.Lexeme

	var params []*ast.Node
	isFunc := false
	if p.match(lexer.TokenLParen) {
		isFunc = true
		for !p.check(lexer.TokenRParen) {
			argTok, err := p.expect(lexer.TokenIdent, "function parameter")
			if err != nil {
				return nil, err
			}
			v := ast.New(ast.KindVar, p.loc())
			v.Lit = argTok.Lexeme
			params = append(params, v)
			if !p.match(lexer.TokenComma) {
				break
			}
		}
		if _, err := p.expect(lexer.TokenRParen, "function parameter list"); err != nil {
			return nil, err
		}
	}

	var key *ast.Node
	isPartialSet := false
	if !isFunc && p.match(lexer.TokenLBracket) {
		isPartialSet = true
		k, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		key = k
		if _, err := p.expect(lexer.TokenRBracket, "partial rule key"); err != nil {
			return nil, err
		}
	}

	var headValue *ast.Node
	if p.match(lexer.TokenAssign) || p.match(lexer.TokenDeclare) {
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		headValue = v
	}

	var body *ast.Node
	if p.check(lexer.TokenLBrace) {
		b, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		body = b
	}

	var head *ast.Node
	switch {
	case isFunc:
		head = ast.New(ast.KindRuleHeadFunc, loc)
		head.PushBackAll(params...)
	case isPartialSet && headValue != nil:
		head = ast.New(ast.KindRuleHeadObj, loc)
		head.PushBack(key)
	case isPartialSet:
		head = ast.New(ast.KindRuleHeadSet, loc)
		head.PushBack(key)
	default:
		head = ast.New(ast.KindRuleHeadSet, loc) // complete rule, reuses the set-head shape with no key child
	}
	head.Lit = name

	rule := ast.New(ast.KindRule, loc)
	rule.PushBack(head)
	if headValue != nil {
		rule.PushBack(headValue)
	}
	if body != nil {
		rule.PushBack(body)
	}
	if isDefault {
		rule.Lit = "default"
	}
	return rule, nil
}

func (p *Parser) parseBody() (*ast.Node, error) {
	loc := p.loc()
	if p.pos > 0 && p.tokens[p.pos-1].Type == lexer.TokenPipe && !p.check(lexer.TokenLBrace) {
		// Unbraced comprehension body: literals run up to the
		// comprehension's closing bracket or brace, left for the caller.
		body := ast.New(ast.KindBody, loc)
		for !p.check(lexer.TokenRBracket) && !p.check(lexer.TokenRBrace) && !p.atEnd() {
			expr, err := p.parseLiteralExpr()
			if err != nil {
				return nil, err
			}
			body.PushBack(expr)
			for p.match(lexer.TokenSemicolon) {
			}
		}
		return body, nil
	}
	if _, err := p.expect(lexer.TokenLBrace, "rule body"); err != nil {
		return nil, err
	}
	body := ast.New(ast.KindBody, loc)
	for !p.check(lexer.TokenRBrace) && !p.atEnd() {
		expr, err := p.parseLiteralExpr()
		if err != nil {
			return nil, err
		}
		body.PushBack(expr)
		for p.match(lexer.TokenSemicolon) {
		}
	}
	if _, err := p.expect(lexer.TokenRBrace, "rule body"); err != nil {
		return nil, err
	}
	return body, nil
}

// parseLiteralExpr parses one body literal: an optional `not`, a
// some/every declaration, or a plain expression, any of which may carry
// trailing `with ... as ...` clauses.
func (p *Parser) parseLiteralExpr() (*ast.Node, error) {
	loc := p.loc()

	if p.check(lexer.TokenSome) {
		return p.parseSome()
	}
	if p.check(lexer.TokenEvery) {
		return p.parseEvery()
	}

	negated := p.match(lexer.TokenNot)
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if negated {
		not := ast.New(ast.KindNot, loc)
		not.PushBack(expr)
		expr = not
	}

	for p.check(lexer.TokenWith) {
		expr, err = p.parseWith(expr)
		if err != nil {
			return nil, err
		}
	}
	return expr, nil
}

func (p *Parser) parseWith(target *ast.Node) (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "with"
	path, err := p.parseDottedPath()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokenAs, "with clause"); err != nil {
		return nil, err
	}
	val, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	with := ast.New(ast.KindWith, loc)
	pathNode := ast.New(ast.KindRef, loc)
	pathNode.Lit = path
	with.PushBack(pathNode)
	with.PushBack(val)
	with.PushBack(target)
	return with, nil
}

func (p *Parser) parseSome() (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "some"
	some := ast.New(ast.KindSome, loc)

	first, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	some.PushBack(first)
	for p.match(lexer.TokenComma) {
		v, err := p.parseVar()
		if err != nil {
			return nil, err
		}
		some.PushBack(v)
	}
	if p.match(lexer.TokenIn) {
		coll, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		some.PushBack(coll)
		some.Lit = true // has a collection; last child is the collection, not a declared var
	}
	return some, nil
}

func (p *Parser) parseEvery() (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "every"
	every := ast.New(ast.KindEvery, loc)

	first, err := p.parseVar()
	if err != nil {
		return nil, err
	}
	every.PushBack(first)
	if p.match(lexer.TokenComma) {
		second, err := p.parseVar()
		if err != nil {
			return nil, err
		}
		every.PushBack(second)
	}
	if _, err := p.expect(lexer.TokenIn, "every declaration"); err != nil {
		return nil, err
	}
	coll, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	every.PushBack(coll)
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	every.PushBack(body)
	return every, nil
}

func (p *Parser) parseVar() (*ast.Node, error) {
	tok, err := p.expect(lexer.TokenIdent, "variable")
	if err != nil {
		return nil, err
	}
	v := ast.New(ast.KindVar, p.loc())
	v.Lit = tok.Lexeme
	return v, nil
}

// parseExpr parses one full expression, handling membership (`in`) and
// the unify/assign/compare operators at the lowest precedence.
func (p *Parser) parseExpr() (*ast.Node, error) {
	left, err := p.parseArith()
	if err != nil {
		return nil, err
	}

	if p.match(lexer.TokenIn) {
		loc := p.loc()
		right, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		m := ast.New(ast.KindMembership, loc)
		m.PushBack(left)
		m.PushBack(right)
		return m, nil
	}

	op, ok := compareOp(p.cur().Type)
	if !ok {
		return left, nil
	}
	loc := p.loc()
	p.advance()
	right, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	call := ast.New(ast.KindExprCall, loc)
	call.Lit = op
	call.PushBack(left)
	call.PushBack(right)
	return call, nil
}

func compareOp(tt lexer.TokenType) (string, bool) {
	switch tt {
	case lexer.TokenAssign:
		return "unify", true
	case lexer.TokenDeclare:
		return "assign", true
	case lexer.TokenEqEq:
		return "equal", true
	case lexer.TokenNotEq:
		return "neq", true
	case lexer.TokenLT:
		return "lt", true
	case lexer.TokenGT:
		return "gt", true
	case lexer.TokenLE:
		return "lte", true
	case lexer.TokenGE:
		return "gte", true
	default:
		return "", false
	}
}

func (p *Parser) parseArith() (*ast.Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenPlus) || p.check(lexer.TokenMinus) ||
		p.check(lexer.TokenAmp) || p.check(lexer.TokenPipe) {
		op := map[lexer.TokenType]string{
			lexer.TokenPlus: "plus", lexer.TokenMinus: "minus",
			lexer.TokenAmp: "and", lexer.TokenPipe: "or",
		}[p.cur().Type]
		loc := p.loc()
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		call := ast.New(ast.KindExprCall, loc)
		call.Lit = op
		call.PushBack(left)
		call.PushBack(right)
		left = call
	}
	return left, nil
}

func (p *Parser) parseTerm() (*ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokenStar) || p.check(lexer.TokenSlash) || p.check(lexer.TokenPercent) {
		op := map[lexer.TokenType]string{
			lexer.TokenStar: "mul", lexer.TokenSlash: "div", lexer.TokenPercent: "rem",
		}[p.cur().Type]
		loc := p.loc()
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		call := ast.New(ast.KindExprCall, loc)
		call.Lit = op
		call.PushBack(left)
		call.PushBack(right)
		left = call
	}
	return left, nil
}

func (p *Parser) parseUnary() (*ast.Node, error) {
	if p.check(lexer.TokenMinus) {
		loc := p.loc()
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		call := ast.New(ast.KindExprCall, loc)
		call.Lit = "neg"
		call.PushBack(operand)
		return call, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (*ast.Node, error) {
	loc := p.loc()
	switch {
	case p.match(lexer.TokenLParen):
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRParen, "parenthesized expression"); err != nil {
			return nil, err
		}
		return inner, nil
	case p.check(lexer.TokenLBracket):
		return p.parseArrayOrCompr()
	case p.check(lexer.TokenLBrace):
		return p.parseObjectOrSetOrCompr()
	case p.match(lexer.TokenTrue):
		n := ast.New(ast.KindScalar, loc)
		n.Lit = value.Bool(true)
		return n, nil
	case p.match(lexer.TokenFalse):
		n := ast.New(ast.KindScalar, loc)
		n.Lit = value.Bool(false)
		return n, nil
	case p.match(lexer.TokenNull):
		n := ast.New(ast.KindScalar, loc)
		n.Lit = value.TheNull
		return n, nil
	case p.check(lexer.TokenString), p.check(lexer.TokenRawString):
		tok := p.advance()
		n := ast.New(ast.KindScalar, loc)
		n.Lit = value.String(tok.Lexeme)
		return n, nil
	case p.check(lexer.TokenNumber):
		tok := p.advance()
		n := ast.New(ast.KindScalar, loc)
		n.Lit = parseNumber(tok.Lexeme)
		return n, nil
	case p.check(lexer.TokenIdent):
		return p.parseRefOrCall()
	default:
		return nil, rerrors.New(rerrors.ParseError,
			fmt.Sprintf("unexpected token %s %q", p.cur().Type, p.cur().Lexeme),
			rerrors.SourceLocation{File: p.file, Line: p.cur().Line, Column: p.cur().Column})
	}
}

func parseNumber(lexeme string) value.Value {
	if !strings.ContainsAny(lexeme, ".eE") {
		if bi, ok := value.NewBigIntFromString(lexeme); ok {
			return value.Int{Big: bi}
		}
	}
	f, _ := strconv.ParseFloat(lexeme, 64)
	return value.Float(f)
}

// parseRefOrCall parses a dotted/bracketed reference, and if followed by
// "(" treats it as a function call instead.
func (p *Parser) parseRefOrCall() (*ast.Node, error) {
	loc := p.loc()
	nameTok := p.advance()

	if p.check(lexer.TokenLParen) {
		return p.parseCallArgs(nameTok.Lexeme, loc)
	}

	ref := ast.New(ast.KindRef, loc)
	head := ast.New(ast.KindVar, loc)
	head.Lit = nameTok.Lexeme
	ref.PushBack(head)

	for {
		switch {
		case p.match(lexer.TokenDot):
			segTok, err := p.expect(lexer.TokenIdent, "reference segment")
			if err != nil {
				return nil, err
			}
			seg := ast.New(ast.KindRefArgDot, p.loc())
			seg.Lit = segTok.Lexeme
			ref.PushBack(seg)
		case p.match(lexer.TokenLBracket):
			inner, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenRBracket, "reference index"); err != nil {
				return nil, err
			}
			seg := ast.New(ast.KindRefArgBrack, p.loc())
			seg.PushBack(inner)
			ref.PushBack(seg)
		default:
			if ref.Size() == 1 {
				return head, nil // bare variable, not a multi-segment ref
			}
			return ref, nil
		}
	}
}

func (p *Parser) parseCallArgs(name string, loc ast.Location) (*ast.Node, error) {
	p.advance() // "("
	call := ast.New(ast.KindExprCall, loc)
	call.Lit = name
	for !p.check(lexer.TokenRParen) {
		arg, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		call.PushBack(arg)
		if !p.match(lexer.TokenComma) {
			break
		}
	}
	if _, err := p.expect(lexer.TokenRParen, "call arguments"); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseArrayOrCompr() (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "["
	if p.match(lexer.TokenRBracket) {
		return ast.New(ast.KindArray, loc), nil
	}
	first, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.match(lexer.TokenPipe) {
		body, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRBracket, "array comprehension"); err != nil {
			return nil, err
		}
		compr := ast.New(ast.KindComprArray, loc)
		compr.PushBack(first)
		compr.PushBack(body)
		return compr, nil
	}
	arr := ast.New(ast.KindArray, loc)
	arr.PushBack(first)
	for p.match(lexer.TokenComma) {
		if p.check(lexer.TokenRBracket) {
			break
		}
		elem, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		arr.PushBack(elem)
	}
	if _, err := p.expect(lexer.TokenRBracket, "array literal"); err != nil {
		return nil, err
	}
	return arr, nil
}

func (p *Parser) parseObjectOrSetOrCompr() (*ast.Node, error) {
	loc := p.loc()
	p.advance() // "{"
	if p.match(lexer.TokenRBrace) {
		return ast.New(ast.KindObject, loc), nil
	}

	firstKey, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	if p.match(lexer.TokenColon) {
		firstVal, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if p.match(lexer.TokenPipe) {
			body, err := p.parseBody()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenRBrace, "object comprehension"); err != nil {
				return nil, err
			}
			compr := ast.New(ast.KindComprObject, loc)
			compr.PushBack(firstKey)
			compr.PushBack(firstVal)
			compr.PushBack(body)
			return compr, nil
		}
		obj := ast.New(ast.KindObject, loc)
		obj.PushBack(newObjectItem(loc, firstKey, firstVal))
		for p.match(lexer.TokenComma) {
			if p.check(lexer.TokenRBrace) {
				break
			}
			k, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokenColon, "object literal"); err != nil {
				return nil, err
			}
			v, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			obj.PushBack(newObjectItem(loc, k, v))
		}
		if _, err := p.expect(lexer.TokenRBrace, "object literal"); err != nil {
			return nil, err
		}
		return obj, nil
	}

	if p.match(lexer.TokenPipe) {
		body, err := p.parseBody()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokenRBrace, "set comprehension"); err != nil {
			return nil, err
		}
		compr := ast.New(ast.KindComprSet, loc)
		compr.PushBack(firstKey)
		compr.PushBack(body)
		return compr, nil
	}

	set := ast.New(ast.KindSet, loc)
	set.PushBack(firstKey)
	for p.match(lexer.TokenComma) {
		if p.check(lexer.TokenRBrace) {
			break
		}
		elem, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		set.PushBack(elem)
	}
	if _, err := p.expect(lexer.TokenRBrace, "set literal"); err != nil {
		return nil, err
	}
	return set, nil
}

func newObjectItem(loc ast.Location, k, v *ast.Node) *ast.Node {
	item := ast.New(ast.KindObjectItem, loc)
	item.PushBack(k)
	item.PushBack(v)
	return item
}
