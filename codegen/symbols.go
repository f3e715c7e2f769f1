package codegen

import (
	"encoding/json"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
)

// SymbolsName is the global holding the embedded symbol description.
const SymbolsName = "__mini_symbols"

type SymbolInfo struct {
	Source  string            `json:"source,omitempty"`
	Symbols map[string]string `json:"symbols"`
}

func (c *ctx) symbolInfo() SymbolInfo {
	info := SymbolInfo{
		Source:  c.mod.SourceFilename,
		Symbols: make(map[string]string, len(c.current)),
	}
	for name, kind := range c.current {
		info.Symbols[name] = kind.String()
	}
	return info
}

func registerSymbolInfo(info SymbolInfo, m *ir.Module) {
	data, err := json.Marshal(info)
	if err != nil {
		panic(err)
	}

	g := m.NewGlobalDef(SymbolsName, constant.NewCharArray(append(data, 0)))
	g.Immutable = true
}
