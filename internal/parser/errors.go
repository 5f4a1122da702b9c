package parser

import "github.com/goatlang/goat/internal/token"

// synchronize discards tokens until a plausible statement or declaration
// boundary so a single syntax error doesn't cascade into dozens more.
func (p *Parser) synchronize() {
	for !p.check(token.EOF) {
		if p.check(token.SEMICOLON) {
			p.advance()
			return
		}
		switch p.current().Type {
		case token.FUNC, token.VAR, token.IF, token.FOR, token.RETURN, token.RBRACE:
			return
		}
		p.advance()
	}
}
