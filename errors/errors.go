package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/pontaoski/mini/types"
	"github.com/ztrue/tracerr"
)

// Stage names the pipeline step that produced an error.
type Stage int

const (
	StageNone Stage = iota
	StageLex
	StageParse
	StageCodegen
	StageLink
)

func (s Stage) String() string {
	switch s {
	case StageLex:
		return "lex"
	case StageParse:
		return "parse"
	case StageCodegen:
		return "codegen"
	case StageLink:
		return "link"
	}
	return "none"
}

type staged interface {
	Stage() Stage
}

// StageOf reports which stage err came from, looking through tracerr
// wrapping. Errors from outside the pipeline report StageNone.
func StageOf(err error) Stage {
	if err == nil {
		return StageNone
	}
	var s staged
	if stderrors.As(tracerr.Unwrap(err), &s) {
		return s.Stage()
	}
	return StageNone
}

// Cause strips tracerr wrapping.
func Cause(err error) error {
	if err == nil {
		return nil
	}
	return tracerr.Unwrap(err)
}

type LexError struct {
	Unexpected rune
	Reason     string
	Location   types.Span
}

func (e LexError) Stage() Stage { return StageLex }

func (e LexError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("lex error: %s: %s", e.Location.From, e.Reason)
	}
	return fmt.Sprintf("lex error: %s: unexpected character %q", e.Location.From, e.Unexpected)
}

type ParseError struct {
	Expected string
	Found    string
	Location types.Span
}

func (e ParseError) Stage() Stage { return StageParse }

func (e ParseError) Error() string {
	return fmt.Sprintf("parse error: %s: expected %s, found %s", e.Location.From, e.Expected, e.Found)
}

// ExpectedOneOfKindGotKind builds a ParseError for a token that matched none
// of the allowed kinds.
func ExpectedOneOfKindGotKind(expected []types.TokenKind, got types.Token) ParseError {
	names := make([]string, 0, len(expected))
	for _, kind := range expected {
		names = append(names, kind.String())
	}
	return ParseError{
		Expected: strings.Join(names, " or "),
		Found:    got.String(),
		Location: got.Location,
	}
}

type CodegenError struct {
	Msg string
}

func (e CodegenError) Stage() Stage { return StageCodegen }

func (e CodegenError) Error() string {
	return "codegen error: " + e.Msg
}

func NewCodegenError(msg string, fmts ...interface{}) CodegenError {
	return CodegenError{Msg: fmt.Sprintf(msg, fmts...)}
}

type LinkError struct {
	Target string
	Tool   string
	Reason string
	// Output is whatever the external tool printed, if it ran.
	Output string
	Err    error
}

func (e LinkError) Stage() Stage { return StageLink }

func (e LinkError) Error() string {
	var b strings.Builder
	b.WriteString("link error")
	if e.Target != "" {
		fmt.Fprintf(&b, " [%s]", e.Target)
	}
	if e.Tool != "" {
		fmt.Fprintf(&b, " %s", e.Tool)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		fmt.Fprintf(&b, "\n%s", out)
	}
	return b.String()
}

func (e LinkError) Unwrap() error {
	return e.Err
}

const (
	ReasonUnsupportedTarget = "unsupported target"
	ReasonToolNotFound      = "tool not found"
	ReasonToolFailed        = "tool failed"
	ReasonTimeout           = "timeout"
	ReasonOutput            = "cannot write output"
	ReasonNoCrossLinker     = "no linker can target this triple"
)
