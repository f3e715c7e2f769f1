// Package casebook reads end-to-end compiler test cases out of Markdown.
//
// A case starts at a heading "Test: <name>" and holds one ```mini fence with
// the program, followed by either an ```output fence with the expected
// standard output or an ```error fence whose first line names the failing
// stage (lex, parse, codegen, link) and whose remaining text must appear in
// the error message.
package casebook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	fenceSource = "mini"
	fenceOutput = "output"
	fenceError  = "error"
)

type Case struct {
	Name   string
	Line   int
	Source string
	// Output is set when the program must compile and run.
	Output *string
	// ErrorStage and ErrorText are set when compilation must fail.
	ErrorStage string
	ErrorText  string
}

func (c Case) WantsError() bool {
	return c.ErrorStage != ""
}

// Extract parses markdown and returns its cases in document order.
func Extract(markdown []byte) ([]Case, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var cases []Case
	var current *Case

	finish := func() error {
		if current == nil {
			return nil
		}
		if current.Source == "" {
			return fmt.Errorf("line %d: test %q has no %s fence", current.Line, current.Name, fenceSource)
		}
		if current.Output == nil && !current.WantsError() {
			return fmt.Errorf("line %d: test %q needs an %s or %s fence", current.Line, current.Name, fenceOutput, fenceError)
		}
		cases = append(cases, *current)
		current = nil
		return nil
	}

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := string(n.Text(markdown))
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkSkipChildren, nil
			}
			if err := finish(); err != nil {
				return ast.WalkStop, err
			}
			current = &Case{
				Name: strings.TrimSpace(strings.TrimPrefix(heading, "Test: ")),
				Line: lineOf(n, markdown),
			}
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			language := string(n.Language(markdown))
			content := blockContent(n, markdown)
			line := lineOf(n, markdown)

			if current == nil {
				if language == fenceSource || language == fenceOutput || language == fenceError {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence outside of a test", line, language)
				}
				return ast.WalkSkipChildren, nil
			}

			switch language {
			case fenceSource:
				if current.Source != "" {
					return ast.WalkStop, fmt.Errorf("line %d: test %q has more than one %s fence", line, current.Name, fenceSource)
				}
				current.Source = content
			case fenceOutput:
				if current.Output != nil || current.WantsError() {
					return ast.WalkStop, fmt.Errorf("line %d: test %q has more than one expectation", line, current.Name)
				}
				current.Output = &content
			case fenceError:
				if current.Output != nil || current.WantsError() {
					return ast.WalkStop, fmt.Errorf("line %d: test %q has more than one expectation", line, current.Name)
				}
				stage, rest, _ := strings.Cut(content, "\n")
				current.ErrorStage = strings.TrimSpace(stage)
				current.ErrorText = strings.TrimSpace(rest)
				if current.ErrorStage == "" {
					return ast.WalkStop, fmt.Errorf("line %d: test %q has an empty %s fence", line, current.Name, fenceError)
				}
			default:
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language %q in test %q", line, language, current.Name)
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}

	return cases, nil
}

func blockContent(n *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
	return buf.String()
}

func lineOf(n ast.Node, source []byte) int {
	var offset int
	switch v := n.(type) {
	case *ast.FencedCodeBlock:
		if v.Info != nil {
			offset = v.Info.Segment.Start
		} else if v.Lines().Len() > 0 {
			offset = v.Lines().At(0).Start
		}
	default:
		if n.Lines().Len() > 0 {
			offset = n.Lines().At(0).Start
		}
	}
	return bytes.Count(source[:offset], []byte("\n")) + 1
}
