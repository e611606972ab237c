package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanRuleHeader(t *testing.T) {
	toks := NewScanner(`package example.allow`).ScanTokens()
	want := []TokenType{TokenPackage, TokenIdent, TokenDot, TokenIdent, TokenEOF}
	assertTypes(t, toks, want)
}

func TestScanRuleBody(t *testing.T) {
	src := `allow { input.user == "alice"; not input.banned }`
	toks := NewScanner(src).ScanTokens()
	want := []TokenType{
		TokenIdent, TokenLBrace,
		TokenIdent, TokenDot, TokenIdent, TokenEqEq, TokenString, TokenSemicolon,
		TokenNot, TokenIdent, TokenDot, TokenIdent,
		TokenRBrace, TokenEOF,
	}
	assertTypes(t, toks, want)
}

func TestScanNumbersAndComments(t *testing.T) {
	src := "x := 1.5e3 # a comment\ny := 42"
	toks := NewScanner(src).ScanTokens()
	want := []TokenType{
		TokenIdent, TokenDeclare, TokenNumber,
		TokenIdent, TokenDeclare, TokenNumber,
		TokenEOF,
	}
	assertTypes(t, toks, want)
}

func assertTypes(t *testing.T, toks []Token, want []TokenType) {
	t.Helper()
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens %v, want %d %v", len(toks), tokenTypes(toks), len(want), want)
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Fatalf("token %d = %s, want %s (all: %v)", i, toks[i].Type, w, tokenTypes(toks))
		}
	}
}
