package ast

import "github.com/pontaoski/mini/types"

// Kind is the runtime kind of a bound value.
type Kind int

const (
	Int Kind = iota
	Str
)

func (k Kind) String() string {
	if k == Str {
		return "string"
	}
	return "int"
}

type Identifier struct {
	Name string
	Pos  types.Span
}

type Op int

const (
	Add Op = iota
	Sub
	Mul
	Div
)

func (o Op) String() string {
	return [...]string{"+", "-", "*", "/"}[o]
}

type Expression interface {
	isExpression()
	Span() types.Span
}

type IntegerConstant struct {
	Value int64
	Pos   types.Span
}

type StringConstant struct {
	Text string
	Pos  types.Span
}

type VariableReference Identifier

type UnaryMinus struct {
	Operand Expression
	Pos     types.Span
}

type BinaryOp struct {
	Op    Op
	Left  Expression
	Right Expression
	Pos   types.Span
}

func (IntegerConstant) isExpression()   {}
func (StringConstant) isExpression()    {}
func (VariableReference) isExpression() {}
func (UnaryMinus) isExpression()        {}
func (BinaryOp) isExpression()          {}

func (v IntegerConstant) Span() types.Span   { return v.Pos }
func (v StringConstant) Span() types.Span    { return v.Pos }
func (v VariableReference) Span() types.Span { return v.Pos }
func (v UnaryMinus) Span() types.Span        { return v.Pos }
func (v BinaryOp) Span() types.Span          { return v.Pos }

type Statement interface {
	isStatement()
}

// Let binds Name in the single flat scope, replacing any earlier binding.
type Let struct {
	Name  Identifier
	Value Expression
}

type Print struct {
	Name Identifier
}

func (Let) isStatement()   {}
func (Print) isStatement() {}

// Program is executed statement by statement in source order.
type Program struct {
	Statements []Statement
}

// Join spans the source range from a to b.
func Join(a, b types.Span) types.Span {
	return types.Span{From: a.From, To: b.To}
}
