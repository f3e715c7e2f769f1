package parser

import (
	"github.com/pontaoski/mini/ast"
	"github.com/pontaoski/mini/errors"
	"github.com/pontaoski/mini/types"
)

type precedence int

const (
	lowest precedence = iota
	additive
	multiplicative
)

type binaryOperator struct {
	prec precedence
	op   ast.Op
}

var binaryOperators = map[types.TokenKind]binaryOperator{
	types.PLUS:  {additive, ast.Add},
	types.MINUS: {additive, ast.Sub},
	types.STAR:  {multiplicative, ast.Mul},
	types.SLASH: {multiplicative, ast.Div},
}

// parseExpression parses operators binding at least as tightly as min.
// Right operands are parsed at one level higher, which makes every binary
// operator left-associative.
func (p *Parser) parseExpression(min precedence) ast.Expression {
	left := p.parseUnary()

	for {
		op, ok := binaryOperators[p.peek().Kind]
		if !ok || op.prec < min {
			return left
		}
		p.next()

		right := p.parseExpression(op.prec + 1)
		p.requireInt(left)
		p.requireInt(right)

		left = ast.BinaryOp{
			Op:    op.op,
			Left:  left,
			Right: right,
			Pos:   ast.Join(left.Span(), right.Span()),
		}
	}
}

func (p *Parser) parseUnary() ast.Expression {
	if p.peekIs(types.MINUS) {
		minus := p.next()
		if lit := p.peek(); lit.Kind == types.INT && lit.Value < 0 {
			p.next()
			return ast.IntegerConstant{Value: lit.Value, Pos: ast.Join(minus.Location, lit.Location)}
		}
		operand := p.parseUnary()
		p.requireInt(operand)

		return ast.UnaryMinus{
			Operand: operand,
			Pos:     ast.Join(minus.Location, operand.Span()),
		}
	}

	return p.parsePrimary()
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.next()

	switch tok.Kind {
	case types.INT:
		if tok.Value < 0 {
			panic(errors.ParseError{
				Expected: "an integer no larger than 9223372036854775807",
				Found:    tok.Text,
				Location: tok.Location,
			})
		}
		return ast.IntegerConstant{Value: tok.Value, Pos: tok.Location}
	case types.STRING:
		return ast.StringConstant{Text: tok.Text, Pos: tok.Location}
	case types.IDENT:
		p.resolve(tok)
		return ast.VariableReference{Name: tok.Text, Pos: tok.Location}
	case types.LPAREN:
		inner := p.parseExpression(lowest)
		closing := p.nextExpecting(types.RPAREN)
		// Parentheses only group; a string stays a string and is rejected by
		// the enclosing operator, if any.
		switch v := inner.(type) {
		case ast.BinaryOp:
			v.Pos = ast.Join(tok.Location, closing.Location)
			return v
		case ast.UnaryMinus:
			v.Pos = ast.Join(tok.Location, closing.Location)
			return v
		}
		return inner
	}

	panic(errors.ParseError{
		Expected: "an expression",
		Found:    tok.String(),
		Location: tok.Location,
	})
}

// requireInt rejects string values inside arithmetic.
func (p *Parser) requireInt(e ast.Expression) {
	if p.kindOf(e) == ast.Int {
		return
	}

	found := "string value"
	if v, ok := e.(ast.VariableReference); ok {
		found = "string variable " + v.Name
	}
	panic(errors.ParseError{
		Expected: "an integer operand",
		Found:    found,
		Location: e.Span(),
	})
}
