package codegen

import (
	"math"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/pontaoski/mini/ast"
)

// Builtins are declared the first time a program needs them.

const sdivName = "__mini_sdiv"

// printf is libc's printf(i8*, ...).
func (c *ctx) printf() *ir.Func {
	if c.printfFunc == nil {
		fn := c.mod.NewFunc("printf", types.I32, ir.NewParam("format", types.I8Ptr))
		fn.Sig.Variadic = true
		c.printfFunc = fn
	}
	return c.printfFunc
}

func (c *ctx) format(kind ast.Kind) constant.Constant {
	if f, ok := c.formats[kind]; ok {
		return f
	}

	var g *ir.Global
	if kind == ast.Str {
		g = c.newPrivateString(".fmt.str", "%s\n")
	} else {
		g = c.newPrivateString(".fmt.int", "%lld\n")
	}
	zero := constant.NewInt(types.I64, 0)
	f := constant.NewGetElementPtr(g.ContentType, g, zero, zero)
	c.formats[kind] = f
	return f
}

// sdiv returns the division helper. A zero divisor traps, MinInt64 / -1
// wraps to MinInt64, anything else is a truncating signed division.
func (c *ctx) sdiv() *ir.Func {
	if c.sdivFunc != nil {
		return c.sdivFunc
	}

	trap := c.mod.NewFunc("llvm.trap", types.Void)

	a := ir.NewParam("a", types.I64)
	b := ir.NewParam("b", types.I64)
	fn := c.mod.NewFunc(sdivName, types.I64, a, b)
	fn.Linkage = enum.LinkageInternal

	entry := fn.NewBlock("entry")
	trapBlock := fn.NewBlock("trap")
	check := fn.NewBlock("check")
	overflow := fn.NewBlock("overflow")
	divide := fn.NewBlock("divide")

	minInt := constant.NewInt(types.I64, math.MinInt64)

	isZero := entry.NewICmp(enum.IPredEQ, b, constant.NewInt(types.I64, 0))
	entry.NewCondBr(isZero, trapBlock, check)

	trapBlock.NewCall(trap)
	trapBlock.NewUnreachable()

	isMin := check.NewICmp(enum.IPredEQ, a, minInt)
	isNegOne := check.NewICmp(enum.IPredEQ, b, constant.NewInt(types.I64, -1))
	check.NewCondBr(check.NewAnd(isMin, isNegOne), overflow, divide)

	overflow.NewRet(minInt)

	divide.NewRet(divide.NewSDiv(a, b))

	c.sdivFunc = fn
	return fn
}
