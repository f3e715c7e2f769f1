package types

import (
	"fmt"
)

type Position struct {
	Line     int
	Column   int
	Filename string
}

type Span struct {
	From Position
	To   Position
}

type TokenKind int

const (
	EOF TokenKind = iota

	LET
	PRINT

	IDENT
	INT
	STRING

	PLUS
	MINUS
	STAR
	SLASH
	LPAREN
	RPAREN
	EQUALS

	EOS
)

var kindNames = map[TokenKind]string{
	EOF:    "EOF",
	LET:    "LET",
	PRINT:  "PRINT",
	IDENT:  "IDENT",
	INT:    "INT",
	STRING: "STRING",
	PLUS:   "PLUS",
	MINUS:  "MINUS",
	STAR:   "STAR",
	SLASH:  "SLASH",
	LPAREN: "LPAREN",
	RPAREN: "RPAREN",
	EQUALS: "EQUALS",
	EOS:    "EOS",
}

func (t TokenKind) String() string {
	if name, ok := kindNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(t))
}

var Keywords = map[string]TokenKind{
	"let":   LET,
	"print": PRINT,
}

func (p Position) String() string {
	if p.Filename == "" {
		p.Filename = "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%d:%d", s.From, s.To.Line, s.To.Column)
}

func SingleCharSpan(p Position) Span {
	return Span{p, p}
}

// Token is one lexeme. Text holds the identifier name or string contents,
// Value the parsed integer for INT tokens. The literal 9223372036854775808
// is the only one with a negative Value.
type Token struct {
	Kind     TokenKind
	Text     string
	Value    int64
	Location Span
}

func (t Token) String() string {
	switch t.Kind {
	case IDENT:
		return fmt.Sprintf("IDENT(%s)", t.Text)
	case INT:
		return fmt.Sprintf("INT(%d)", t.Value)
	case STRING:
		return fmt.Sprintf("STRING(%q)", t.Text)
	}
	return t.Kind.String()
}
