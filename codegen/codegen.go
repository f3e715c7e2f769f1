package codegen

import (
	"hash/fnv"
	"strconv"

	"github.com/coreos/pkg/capnslog"
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pontaoski/mini/ast"
	"github.com/pontaoski/mini/errors"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/mini", "codegen")

// EntryName is the symbol of the generated entry function.
const EntryName = "main"

type Settings struct {
	// SourceFilename is recorded in the module header.
	SourceFilename string
	// TargetTriple is recorded in the module header when non-empty.
	TargetTriple string
	// EmitSymbols embeds a description of the symbol table as __mini_symbols.
	EmitSymbols bool
}

// ctx is owned by a single Generate call.
type ctx struct {
	mod   *ir.Module
	block *ir.Block

	// slots holds one storage slot per name and kind; current is the kind a
	// name is bound to right now.
	slots   map[string]map[ast.Kind]*ir.InstAlloca
	current map[string]ast.Kind

	stringConstants map[string]*ir.Global
	globalNames     map[string]bool

	printfFunc *ir.Func
	sdivFunc   *ir.Func
	formats    map[ast.Kind]constant.Constant
}

func hash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

// Generate lowers prog to a module holding one entry function, main, that
// runs every statement in order and returns 0.
func Generate(prog *ast.Program, settings Settings) (mod *ir.Module, err error) {
	defer func() {
		if v := recover(); v != nil {
			cerr, ok := v.(errors.CodegenError)
			if !ok {
				panic(v)
			}
			mod = nil
			err = cerr
		}
	}()

	c := &ctx{
		mod:             ir.NewModule(),
		slots:           map[string]map[ast.Kind]*ir.InstAlloca{},
		current:         map[string]ast.Kind{},
		stringConstants: map[string]*ir.Global{},
		globalNames:     map[string]bool{},
		formats:         map[ast.Kind]constant.Constant{},
	}
	c.mod.SourceFilename = settings.SourceFilename
	c.mod.TargetTriple = settings.TargetTriple

	entry := c.mod.NewFunc(EntryName, types.I32)
	c.block = entry.NewBlock("entry")

	for _, stmt := range prog.Statements {
		codegenStatement(c, stmt)
	}

	c.block.NewRet(constant.NewInt(types.I32, 0))

	if settings.EmitSymbols {
		registerSymbolInfo(c.symbolInfo(), c.mod)
	}

	plog.Debugf("generated %d statements, %d bindings", len(prog.Statements), len(c.current))
	return c.mod, nil
}

func codegenStatement(c *ctx, stmt ast.Statement) {
	switch s := stmt.(type) {
	case ast.Let:
		kind, val := codegenValue(c, s.Value)
		slot := c.slotFor(s.Name.Name, kind)
		c.block.NewStore(val, slot)
		c.current[s.Name.Name] = kind
	case ast.Print:
		kind, ok := c.current[s.Name.Name]
		if !ok {
			panic(errors.NewCodegenError("%s: print of unbound name %s", s.Name.Pos.From, s.Name.Name))
		}
		slot := c.slots[s.Name.Name][kind]
		loaded := c.block.NewLoad(slot.ElemType, slot)
		c.block.NewCall(c.printf(), c.format(kind), loaded)
	default:
		panic(errors.NewCodegenError("unhandled statement %T", stmt))
	}
}

// slotFor returns the slot that holds name's value of the given kind,
// allocating it on first use. Rebinding a name to the same kind reuses the
// slot.
func (c *ctx) slotFor(name string, kind ast.Kind) *ir.InstAlloca {
	byKind, ok := c.slots[name]
	if !ok {
		byKind = map[ast.Kind]*ir.InstAlloca{}
		c.slots[name] = byKind
	}
	if slot, ok := byKind[kind]; ok {
		return slot
	}

	// Local names share a namespace with block labels, so slots carry a
	// suffix no identifier can spell.
	slot := c.block.NewAlloca(llvmType(kind))
	if kind == ast.Str {
		slot.SetName(name + ".str")
	} else {
		slot.SetName(name + ".addr")
	}
	byKind[kind] = slot
	return slot
}

// codegenValue evaluates the right-hand side of a let, which is the only
// place a string may appear.
func codegenValue(c *ctx, e ast.Expression) (ast.Kind, value.Value) {
	switch expr := e.(type) {
	case ast.StringConstant:
		return ast.Str, c.stringPointer(expr.Text)
	case ast.VariableReference:
		if c.current[expr.Name] == ast.Str {
			slot := c.lookup(expr)
			return ast.Str, c.block.NewLoad(slot.ElemType, slot)
		}
	}
	return ast.Int, codegenExpression(c, e)
}

func (c *ctx) lookup(v ast.VariableReference) *ir.InstAlloca {
	kind, ok := c.current[v.Name]
	if !ok {
		panic(errors.NewCodegenError("%s: reference to unbound name %s", v.Pos.From, v.Name))
	}
	return c.slots[v.Name][kind]
}

// codegenExpression evaluates an integer expression. Operands are evaluated
// left to right.
func codegenExpression(c *ctx, e ast.Expression) value.Value {
	switch expr := e.(type) {
	case ast.IntegerConstant:
		return constant.NewInt(types.I64, expr.Value)
	case ast.VariableReference:
		if c.current[expr.Name] == ast.Str {
			panic(errors.NewCodegenError("%s: %s is a string, expected an integer", expr.Pos.From, expr.Name))
		}
		slot := c.lookup(expr)
		return c.block.NewLoad(slot.ElemType, slot)
	case ast.UnaryMinus:
		operand := codegenExpression(c, expr.Operand)
		return c.block.NewSub(constant.NewInt(types.I64, 0), operand)
	case ast.BinaryOp:
		left := codegenExpression(c, expr.Left)
		right := codegenExpression(c, expr.Right)
		switch expr.Op {
		case ast.Add:
			return c.block.NewAdd(left, right)
		case ast.Sub:
			return c.block.NewSub(left, right)
		case ast.Mul:
			return c.block.NewMul(left, right)
		case ast.Div:
			return c.block.NewCall(c.sdiv(), left, right)
		}
		panic(errors.NewCodegenError("unhandled operator %d", expr.Op))
	case ast.StringConstant:
		panic(errors.NewCodegenError("%s: string literal in integer expression", expr.Pos.From))
	}

	panic(errors.NewCodegenError("unhandled expression %T", e))
}

// stringPointer returns an i8* to a private, NUL-terminated copy of s.
// Equal literals share one global.
func (c *ctx) stringPointer(s string) constant.Constant {
	g, ok := c.stringConstants[s]
	if !ok {
		g = c.newPrivateString(".str."+hash(s), s)
		c.stringConstants[s] = g
	}
	zero := constant.NewInt(types.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}

func (c *ctx) newPrivateString(name, s string) *ir.Global {
	for c.globalNames[name] {
		name += "_"
	}
	c.globalNames[name] = true

	g := c.mod.NewGlobalDef(name, constant.NewCharArrayFromString(s+"\x00"))
	g.Immutable = true
	g.Linkage = enum.LinkagePrivate
	g.UnnamedAddr = enum.UnnamedAddrUnnamedAddr
	return g
}

func llvmType(kind ast.Kind) types.Type {
	if kind == ast.Str {
		return types.I8Ptr
	}
	return types.I64
}
