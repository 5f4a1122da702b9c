package lexer

import (
	"testing"

	"github.com/goatlang/goat/internal/token"
)

func TestNextToken_Operators(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []token.Type
	}{
		{
			name:     "arithmetic operators",
			input:    "+ - * / %",
			expected: []token.Type{token.PLUS, token.MINUS, token.STAR, token.SLASH, token.PERCENT, token.EOF},
		},
		{
			name:     "comparison operators",
			input:    "== != < > <= >=",
			expected: []token.Type{token.EQ, token.NEQ, token.LT, token.GT, token.LEQ, token.GEQ, token.EOF},
		},
		{
			name:     "logical and shift operators",
			input:    "&& || << >> & | ^ !",
			expected: []token.Type{token.LAND, token.LOR, token.SHL, token.SHR, token.AMP, token.PIPE, token.CARET, token.NOT, token.EOF},
		},
		{
			name:     "channel receive",
			input:    "<-",
			expected: []token.Type{token.ARROW, token.EOF},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.input)
			for i, want := range tt.expected {
				tok := l.NextToken()
				if tok.Type != want {
					t.Errorf("token[%d] = %s, want %s", i, tok.Type, want)
				}
			}
		})
	}
}

func TestNextToken_Keywords(t *testing.T) {
	tests := []struct {
		keyword  string
		expected token.Type
	}{
		{"func", token.FUNC},
		{"var", token.VAR},
		{"if", token.IF},
		{"else", token.ELSE},
		{"for", token.FOR},
		{"return", token.RETURN},
		{"go", token.GO},
		{"chan", token.CHAN},
		{"true", token.TRUE},
		{"false", token.FALSE},
		{"Int", token.INT_TYPE},
		{"Float", token.FLOAT_TYPE},
		{"Bool", token.BOOL_TYPE},
		{"String", token.STRING_TYPE},
	}
	for _, tt := range tests {
		t.Run(tt.keyword, func(t *testing.T) {
			tok := New(tt.keyword).NextToken()
			if tok.Type != tt.expected {
				t.Errorf("keyword %q = %s, want %s", tt.keyword, tok.Type, tt.expected)
			}
		})
	}
}

func TestNextToken_IdentifiersVsKeywords(t *testing.T) {
	tests := []struct {
		input    string
		expected token.Type
	}{
		{"if", token.IF},
		{"ifx", token.IDENT},
		{"forEach", token.IDENT},
		{"goroutine", token.IDENT},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.expected {
			t.Errorf("input %q = %s, want %s", tt.input, tok.Type, tt.expected)
		}
	}
}

func TestNextToken_IntAndFloatLiterals(t *testing.T) {
	tests := []struct {
		input    string
		wantType token.Type
		wantLit  string
	}{
		{"0", token.INT_LIT, "0"},
		{"123", token.INT_LIT, "123"},
		{"3.14", token.FLOAT_LIT, "3.14"},
		{"0.5", token.FLOAT_LIT, "0.5"},
	}
	for _, tt := range tests {
		tok := New(tt.input).NextToken()
		if tok.Type != tt.wantType || tok.Literal != tt.wantLit {
			t.Errorf("input %q = (%s, %q), want (%s, %q)", tt.input, tok.Type, tok.Literal, tt.wantType, tt.wantLit)
		}
	}
}

func TestNextToken_StringEscapes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `"hello"`, "hello"},
		{"newline", `"a\nb"`, "a\nb"},
		{"tab", `"a\tb"`, "a\tb"},
		{"quote", `"say \"hi\""`, `say "hi"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(tt.in).NextToken()
			if tok.Type != token.STRING_LIT {
				t.Fatalf("expected STRING_LIT, got %s", tok.Type)
			}
			if tok.Literal != tt.want {
				t.Errorf("literal = %q, want %q", tok.Literal, tt.want)
			}
		})
	}
}

func TestNextToken_UnterminatedString(t *testing.T) {
	tok := New(`"unterminated`).NextToken()
	if tok.Type != token.ILLEGAL {
		t.Errorf("expected ILLEGAL, got %s", tok.Type)
	}
}

func TestNextToken_Comments(t *testing.T) {
	input := "x // a comment\ny /* block\ncomment */ z"
	expected := []token.Type{token.IDENT, token.IDENT, token.IDENT, token.EOF}
	l := New(input)
	for i, want := range expected {
		tok := l.NextToken()
		if tok.Type != want {
			t.Errorf("token[%d] = %s, want %s", i, tok.Type, want)
		}
	}
}

func TestNextToken_LineAndColumnTracking(t *testing.T) {
	input := "x = 5\ny = 10"
	expected := []struct {
		typ        token.Type
		line, col int
	}{
		{token.IDENT, 1, 1},
		{token.ASSIGN, 1, 3},
		{token.INT_LIT, 1, 5},
		{token.IDENT, 2, 1},
		{token.ASSIGN, 2, 3},
		{token.INT_LIT, 2, 5},
	}
	l := New(input)
	for i, exp := range expected {
		tok := l.NextToken()
		if tok.Type != exp.typ || tok.Line != exp.line || tok.Column != exp.col {
			t.Errorf("token[%d] = %s@%d:%d, want %s@%d:%d", i, tok.Type, tok.Line, tok.Column, exp.typ, exp.line, exp.col)
		}
	}
}

func TestTokenize(t *testing.T) {
	toks := New("x = 5").Tokenize()
	want := []token.Type{token.IDENT, token.ASSIGN, token.INT_LIT, token.EOF}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token[%d] = %s, want %s", i, toks[i].Type, w)
		}
	}
}
