// Package compiler runs the whole pipeline: source text to tokens, tokens to
// a program, the program to an IR module, and the module to an executable.
package compiler

import (
	"context"
	"fmt"
	"os"

	"github.com/coreos/pkg/capnslog"
	"github.com/llir/llvm/ir"
	"github.com/pontaoski/mini/ast"
	"github.com/pontaoski/mini/codegen"
	"github.com/pontaoski/mini/lexer"
	"github.com/pontaoski/mini/link"
	"github.com/pontaoski/mini/parser"
	"github.com/ztrue/tracerr"
)

var plog = capnslog.NewPackageLogger("github.com/pontaoski/mini", "compiler")

type Options struct {
	// Filename is used in diagnostics.
	Filename    string
	EmitSymbols bool
	Link        link.Options
}

func (o Options) target() link.Target {
	if o.Link.Target.IsZero() {
		return link.Host()
	}
	return o.Link.Target
}

// Parse runs the lexer and parser.
func Parse(src string, opts Options) (*ast.Program, error) {
	plog.Debugf("lexing %s", opts.Filename)
	toks, err := lexer.Tokenize(src, opts.Filename)
	if err != nil {
		return nil, err
	}

	plog.Debugf("parsing %d tokens", len(toks))
	return parser.NewParser(toks).Parse()
}

// Compile turns source text into an IR module for the configured target.
func Compile(src string, opts Options) (*ir.Module, error) {
	prog, err := Parse(src, opts)
	if err != nil {
		return nil, err
	}

	// An unsupported target is reported by the link step; the module is
	// still generated, without a triple.
	triple, _ := link.TripleFor(opts.target())

	mod, err := codegen.Generate(prog, codegen.Settings{
		SourceFilename: opts.Filename,
		TargetTriple:   triple,
		EmitSymbols:    opts.EmitSymbols,
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return mod, nil
}

// Build compiles the file at sourcePath into an executable at outputPath.
// On failure outputPath is left as it was.
func Build(ctx context.Context, sourcePath, outputPath string, opts Options) error {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", sourcePath, err)
	}
	if opts.Filename == "" {
		opts.Filename = sourcePath
	}

	mod, err := Compile(string(data), opts)
	if err != nil {
		return err
	}

	if err := link.Link(ctx, mod, outputPath, opts.Link); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}
