// Package parser builds a Program parse tree from a token stream via
// recursive descent with operator-precedence climbing for expressions.
package parser

import (
	"github.com/goatlang/goat/internal/ast"
	"github.com/goatlang/goat/internal/diagnostic"
	"github.com/goatlang/goat/internal/lexer"
	"github.com/goatlang/goat/internal/token"
)

// Parser consumes a pre-lexed token slice and produces an *ast.Program.
type Parser struct {
	tokens []token.Token
	pos    int
	ids    ast.IDGen
	diags  *diagnostic.Diagnostics
}

// New creates a Parser over source text.
func New(source string) *Parser {
	return &Parser{
		tokens: lexer.New(source).Tokenize(),
		diags:  diagnostic.New(),
	}
}

// Diagnostics returns the parser's accumulated diagnostics.
func (p *Parser) Diagnostics() *diagnostic.Diagnostics { return p.diags }

func (p *Parser) current() token.Token { return p.tokens[p.pos] }

func (p *Parser) advance() token.Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) check(t token.Type) bool { return p.current().Type == t }

func (p *Parser) expect(t token.Type) token.Token {
	if p.check(t) {
		return p.advance()
	}
	tok := p.current()
	p.diags.ErrorfKind(diagnostic.KindParse, tok.Line, tok.Column,
		"expected %s, got %s %q", t, tok.Type, tok.Literal)
	return tok
}

func (p *Parser) newMeta(line, col int) ast.Meta {
	return ast.Meta{ID: p.ids.Next(), Line: line, Column: col}
}

// Parse consumes the entire token stream and returns the resulting program.
// Parse errors are recorded in Diagnostics and parsing continues rather
// than aborting. Stray tokens at the top level are skipped to the next
// declaration or statement boundary; inside a function body parsing simply
// resumes at the next token.
func (p *Parser) Parse() *ast.Program {
	tok := p.current()
	prog := &ast.Program{Meta: p.newMeta(tok.Line, tok.Column)}
	for !p.check(token.EOF) {
		if !p.check(token.FUNC) {
			t := p.current()
			p.diags.ErrorfKind(diagnostic.KindParse, t.Line, t.Column,
				"expected top-level function declaration, got %s %q", t.Type, t.Literal)
			start := p.pos
			p.synchronize()
			if p.pos == start {
				p.advance()
			}
			continue
		}
		if fn := p.parseFunctionDecl(); fn != nil {
			prog.Functions = append(prog.Functions, fn)
		}
	}
	return prog
}

func (p *Parser) parseFunctionDecl() *ast.FunctionDecl {
	tok := p.expect(token.FUNC)
	nameTok := p.expect(token.IDENT)
	sig := p.parseSignature()
	body := p.parseBlock()
	return &ast.FunctionDecl{
		Meta: p.newMeta(tok.Line, tok.Column),
		Name: nameTok.Literal,
		Sig:  sig,
		Body: body,
	}
}

func (p *Parser) parseSignature() *ast.FuncSignature {
	tok := p.current()
	sig := &ast.FuncSignature{Meta: p.newMeta(tok.Line, tok.Column)}
	p.expect(token.LPAREN)
	for !p.check(token.RPAREN) && !p.check(token.EOF) {
		ptok := p.current()
		nameTok := p.expect(token.IDENT)
		typ := p.parseType()
		sig.Params = append(sig.Params, &ast.Param{
			Meta: p.newMeta(ptok.Line, ptok.Column),
			Name: nameTok.Literal,
			Type: typ,
		})
		if p.check(token.COMMA) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RPAREN)
	if p.startsType() {
		sig.Result = p.parseType()
	}
	return sig
}

// startsType reports whether the current token can begin a type expression.
func (p *Parser) startsType() bool {
	switch p.current().Type {
	case token.INT_TYPE, token.FLOAT_TYPE, token.BOOL_TYPE, token.STRING_TYPE, token.CHAN, token.FUNC:
		return true
	default:
		return false
	}
}

func (p *Parser) parseType() ast.TypeExpr {
	tok := p.current()
	switch tok.Type {
	case token.INT_TYPE, token.FLOAT_TYPE, token.BOOL_TYPE, token.STRING_TYPE:
		p.advance()
		return &ast.NamedType{Meta: p.newMeta(tok.Line, tok.Column), Name: tok.Literal}
	case token.CHAN:
		p.advance()
		elem := p.parseType()
		return &ast.ChanType{Meta: p.newMeta(tok.Line, tok.Column), Elem: elem}
	case token.FUNC:
		p.advance()
		p.expect(token.LPAREN)
		ft := &ast.FuncType{Meta: p.newMeta(tok.Line, tok.Column)}
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			ft.Params = append(ft.Params, p.parseType())
			if p.check(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RPAREN)
		if p.startsType() {
			ft.Result = p.parseType()
		}
		return ft
	default:
		p.diags.ErrorfKind(diagnostic.KindParse, tok.Line, tok.Column, "expected a type, got %s %q", tok.Type, tok.Literal)
		p.advance()
		return &ast.NamedType{Meta: p.newMeta(tok.Line, tok.Column), Name: "Int"}
	}
}

func (p *Parser) parseBlock() *ast.Block {
	tok := p.expect(token.LBRACE)
	block := &ast.Block{Meta: p.newMeta(tok.Line, tok.Column)}
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		if stmt := p.parseStatement(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	p.expect(token.RBRACE)
	return block
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.current().Type {
	case token.VAR:
		return p.parseVarDecl()
	case token.IF:
		return p.parseIf()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.GO:
		return p.parseGo()
	case token.LBRACE:
		return p.parseBlock()
	default:
		return p.parseSimpleStatement()
	}
}

func (p *Parser) parseVarDecl() ast.Statement {
	tok := p.expect(token.VAR)
	nameTok := p.expect(token.IDENT)
	var typ ast.TypeExpr
	if p.startsType() {
		typ = p.parseType()
	}
	var value ast.Expression
	if p.check(token.ASSIGN) {
		p.advance()
		value = p.parseExpression(0)
	}
	p.expect(token.SEMICOLON)
	return &ast.VarDecl{Meta: p.newMeta(tok.Line, tok.Column), Name: nameTok.Literal, Type: typ, Value: value}
}

func (p *Parser) parseIf() ast.Statement {
	tok := p.expect(token.IF)
	hasParen := p.check(token.LPAREN)
	if hasParen {
		p.advance()
	}
	cond := p.parseExpression(0)
	if hasParen {
		p.expect(token.RPAREN)
	}
	then := p.parseBlock()
	stmt := &ast.IfStmt{Meta: p.newMeta(tok.Line, tok.Column), Cond: cond, Then: then}
	if p.check(token.ELSE) {
		p.advance()
		if p.check(token.IF) {
			stmt.Else = p.parseIf()
		} else {
			stmt.Else = p.parseBlock()
		}
	}
	return stmt
}

func (p *Parser) parseFor() ast.Statement {
	tok := p.expect(token.FOR)
	var cond ast.Expression
	if !p.check(token.LBRACE) {
		hasParen := p.check(token.LPAREN)
		if hasParen {
			p.advance()
		}
		cond = p.parseExpression(0)
		if hasParen {
			p.expect(token.RPAREN)
		}
	}
	body := p.parseBlock()
	return &ast.ForStmt{Meta: p.newMeta(tok.Line, tok.Column), Cond: cond, Body: body}
}

func (p *Parser) parseReturn() ast.Statement {
	tok := p.expect(token.RETURN)
	stmt := &ast.ReturnStmt{Meta: p.newMeta(tok.Line, tok.Column)}
	if !p.check(token.SEMICOLON) {
		stmt.Value = p.parseExpression(0)
	}
	p.expect(token.SEMICOLON)
	return stmt
}

func (p *Parser) parseGo() ast.Statement {
	tok := p.expect(token.GO)
	expr := p.parseExpression(0)
	p.expect(token.SEMICOLON)
	call, ok := expr.(*ast.CallExpr)
	if !ok {
		p.diags.ErrorfKind(diagnostic.KindShape, tok.Line, tok.Column, "go must be followed by a function call")
		return &ast.ExprStmt{Meta: p.newMeta(tok.Line, tok.Column), Expr: expr}
	}
	return &ast.GoStmt{Meta: p.newMeta(tok.Line, tok.Column), Call: call}
}

// parseSimpleStatement handles assignment, send, and bare expression
// statements, which all start with an expression.
func (p *Parser) parseSimpleStatement() ast.Statement {
	tok := p.current()
	expr := p.parseExpression(0)
	switch p.current().Type {
	case token.ASSIGN:
		p.advance()
		value := p.parseExpression(0)
		p.expect(token.SEMICOLON)
		return &ast.AssignStmt{Meta: p.newMeta(tok.Line, tok.Column), Target: expr, Value: value}
	case token.ARROW:
		p.advance()
		value := p.parseExpression(0)
		p.expect(token.SEMICOLON)
		return &ast.SendStmt{Meta: p.newMeta(tok.Line, tok.Column), Channel: expr, Value: value}
	default:
		p.expect(token.SEMICOLON)
		return &ast.ExprStmt{Meta: p.newMeta(tok.Line, tok.Column), Expr: expr}
	}
}

// precedence returns the binding power of a binary operator, or 0 if tt is
// not a binary operator.
func precedence(tt token.Type) int {
	switch tt {
	case token.LOR:
		return 1
	case token.LAND:
		return 2
	case token.EQ, token.NEQ, token.LT, token.GT, token.LEQ, token.GEQ:
		return 3
	case token.PLUS, token.MINUS, token.PIPE, token.CARET:
		return 4
	case token.STAR, token.SLASH, token.PERCENT, token.AMP, token.SHL, token.SHR:
		return 5
	default:
		return 0
	}
}

func (p *Parser) parseExpression(minPrec int) ast.Expression {
	left := p.parseUnary()
	for {
		op := p.current().Type
		prec := precedence(op)
		if prec == 0 || prec < minPrec {
			return left
		}
		tok := p.current()
		p.advance()
		right := p.parseExpression(prec + 1)
		left = &ast.BinaryExpr{Meta: p.newMeta(tok.Line, tok.Column), Op: op, Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() ast.Expression {
	switch p.current().Type {
	case token.MINUS, token.PLUS, token.NOT, token.CARET, token.ARROW:
		tok := p.advance()
		operand := p.parseUnary()
		return &ast.UnaryExpr{Meta: p.newMeta(tok.Line, tok.Column), Op: tok.Type, Operand: operand}
	default:
		return p.parsePostfix(p.parsePrimary())
	}
}

// parsePostfix handles call expressions `f(args...)` chained after a
// primary expression.
func (p *Parser) parsePostfix(expr ast.Expression) ast.Expression {
	for p.check(token.LPAREN) {
		tok := p.advance()
		var args []ast.Expression
		for !p.check(token.RPAREN) && !p.check(token.EOF) {
			args = append(args, p.parseExpression(0))
			if p.check(token.COMMA) {
				p.advance()
			} else {
				break
			}
		}
		p.expect(token.RPAREN)
		expr = &ast.CallExpr{Meta: p.newMeta(tok.Line, tok.Column), Fn: expr, Args: args}
	}
	return expr
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.current()
	switch tok.Type {
	case token.INT_LIT:
		p.advance()
		return &ast.IntLit{Meta: p.newMeta(tok.Line, tok.Column), Value: tok.Literal}
	case token.FLOAT_LIT:
		p.advance()
		return &ast.FloatLit{Meta: p.newMeta(tok.Line, tok.Column), Value: tok.Literal}
	case token.STRING_LIT:
		p.advance()
		return &ast.StringLit{Meta: p.newMeta(tok.Line, tok.Column), Value: tok.Literal}
	case token.TRUE, token.FALSE:
		p.advance()
		return &ast.BoolLit{Meta: p.newMeta(tok.Line, tok.Column), Value: tok.Type == token.TRUE}
	case token.IDENT:
		if tok.Literal == "make" {
			return p.parseMakeExpr()
		}
		p.advance()
		return &ast.Ident{Meta: p.newMeta(tok.Line, tok.Column), Name: tok.Literal}
	case token.LPAREN:
		p.advance()
		expr := p.parseExpression(0)
		p.expect(token.RPAREN)
		return expr
	case token.FUNC:
		return p.parseFuncLit()
	case token.CHAN:
		// `chan` only appears inside make(chan Elem, cap), which consumes
		// it itself; it cannot start an expression.
		p.diags.ErrorfKind(diagnostic.KindParse, tok.Line, tok.Column, "unexpected %s in expression", tok.Type)
		p.advance()
		return &ast.Ident{Meta: p.newMeta(tok.Line, tok.Column), Name: "<error>"}
	default:
		p.diags.ErrorfKind(diagnostic.KindParse, tok.Line, tok.Column, "unexpected token %s %q in expression", tok.Type, tok.Literal)
		p.advance()
		return &ast.Ident{Meta: p.newMeta(tok.Line, tok.Column), Name: "<error>"}
	}
}

// parseMakeExpr handles the one builtin the language needs at the
// expression level: `make(chan Elem, capacity)`. Only the element type
// is stored; the `chan` keyword is consumed here.
func (p *Parser) parseMakeExpr() ast.Expression {
	tok := p.advance() // consume "make"
	p.expect(token.LPAREN)
	p.expect(token.CHAN)
	elem := p.parseType()
	expr := &ast.MakeExpr{Meta: p.newMeta(tok.Line, tok.Column), Elem: elem}
	if p.check(token.COMMA) {
		p.advance()
		expr.Capacity = p.parseExpression(0)
	}
	p.expect(token.RPAREN)
	return expr
}

func (p *Parser) parseFuncLit() ast.Expression {
	tok := p.expect(token.FUNC)
	sig := p.parseSignature()
	body := p.parseBlock()
	return &ast.FuncLit{Meta: p.newMeta(tok.Line, tok.Column), Sig: sig, Body: body}
}
