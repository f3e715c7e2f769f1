package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders an expression as an s-expression, e.g. (+ 2 (* 3 5)).
func String(e Expression) string {
	switch v := e.(type) {
	case IntegerConstant:
		return strconv.FormatInt(v.Value, 10)
	case StringConstant:
		return strconv.Quote(v.Text)
	case VariableReference:
		return v.Name
	case UnaryMinus:
		return "(neg " + String(v.Operand) + ")"
	case BinaryOp:
		return fmt.Sprintf("(%s %s %s)", v.Op, String(v.Left), String(v.Right))
	case nil:
		return "<nil>"
	}

	panic("unhandled")
}

func (v Let) String() string {
	return fmt.Sprintf("let %s = %s;", v.Name.Name, String(v.Value))
}

func (v Print) String() string {
	return fmt.Sprintf("print %s;", v.Name.Name)
}

func (p *Program) String() string {
	var lines []string
	for _, stmt := range p.Statements {
		lines = append(lines, fmt.Sprint(stmt))
	}
	return strings.Join(lines, "\n")
}
