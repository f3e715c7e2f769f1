package parser

import (
	"github.com/pontaoski/mini/ast"
	"github.com/pontaoski/mini/errors"
	"github.com/pontaoski/mini/lexer"
	"github.com/pontaoski/mini/types"
	"github.com/ztrue/tracerr"
)

type Parser struct {
	toks []types.Token
	pos  int
	// scope holds the kind of every name bound so far. There is one flat
	// scope per program.
	scope map[string]ast.Kind
}

func NewParser(toks []types.Token) *Parser {
	return &Parser{
		toks:  toks,
		scope: map[string]ast.Kind{},
	}
}

// ParseSource tokenizes and parses src in one go.
func ParseSource(src, filename string) (*ast.Program, error) {
	toks, err := lexer.Tokenize(src, filename)
	if err != nil {
		return nil, err
	}
	return NewParser(toks).Parse()
}

// Parse consumes the whole token sequence. It stops at the first error and
// never returns a partial program.
func (p *Parser) Parse() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			perr, ok := r.(errors.ParseError)
			if !ok {
				panic(r)
			}
			prog = nil
			err = tracerr.Wrap(perr)
		}
	}()

	prog = &ast.Program{}
	for !p.peekIs(types.EOF) {
		prog.Statements = append(prog.Statements, p.parseStatement())
	}

	return prog, nil
}

// Kinds returns the kind of every name bound by the parsed program.
func (p *Parser) Kinds() map[string]ast.Kind {
	ret := make(map[string]ast.Kind, len(p.scope))
	for k, v := range p.scope {
		ret[k] = v
	}
	return ret
}

func (p *Parser) peek() types.Token {
	if p.pos >= len(p.toks) {
		var at types.Span
		if len(p.toks) > 0 {
			at = p.toks[len(p.toks)-1].Location
		}
		return types.Token{Kind: types.EOF, Location: at}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekIs(k ...types.TokenKind) bool {
	tok := p.peek()
	for _, kind := range k {
		if tok.Kind == kind {
			return true
		}
	}
	return false
}

func (p *Parser) next() types.Token {
	tok := p.peek()
	if tok.Kind != types.EOF {
		p.pos++
	}
	return tok
}

func (p *Parser) nextExpecting(k ...types.TokenKind) types.Token {
	tok := p.next()
	for _, kind := range k {
		if tok.Kind == kind {
			return tok
		}
	}

	panic(errors.ExpectedOneOfKindGotKind(k, tok))
}

func (p *Parser) parseStatement() ast.Statement {
	tok := p.nextExpecting(types.LET, types.PRINT)

	switch tok.Kind {
	case types.LET:
		name := p.nextExpecting(types.IDENT)
		p.nextExpecting(types.EQUALS)
		value := p.parseExpression(lowest)
		p.nextExpecting(types.EOS)

		// The right-hand side is resolved before the name is (re)bound, so
		// `let x = x + 1;` reads the previous x.
		p.scope[name.Text] = p.kindOf(value)

		return ast.Let{
			Name:  ast.Identifier{Name: name.Text, Pos: name.Location},
			Value: value,
		}
	default:
		name := p.nextExpecting(types.IDENT)
		p.resolve(name)
		p.nextExpecting(types.EOS)

		return ast.Print{
			Name: ast.Identifier{Name: name.Text, Pos: name.Location},
		}
	}
}

func (p *Parser) resolve(name types.Token) ast.Kind {
	kind, ok := p.scope[name.Text]
	if !ok {
		panic(errors.ParseError{
			Expected: "a bound name",
			Found:    "unbound name " + name.Text,
			Location: name.Location,
		})
	}
	return kind
}

// kindOf reports the kind of an already checked expression. Only a bare
// string literal or a reference to a string binding is a string.
func (p *Parser) kindOf(e ast.Expression) ast.Kind {
	switch v := e.(type) {
	case ast.StringConstant:
		return ast.Str
	case ast.VariableReference:
		return p.scope[v.Name]
	}
	return ast.Int
}
