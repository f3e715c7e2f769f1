package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/nalgeon/be"
	"github.com/pontaoski/mini/types"
	"github.com/ztrue/tracerr"
)

func TestStageOf(t *testing.T) {
	pos := types.Position{Line: 2, Column: 5, Filename: "a.mini"}
	tests := []struct {
		err  error
		want Stage
	}{
		{nil, StageNone},
		{fmt.Errorf("plain"), StageNone},
		{LexError{Unexpected: '@', Location: types.SingleCharSpan(pos)}, StageLex},
		{tracerr.Wrap(ParseError{Expected: "EOS", Found: "EOF"}), StageParse},
		{NewCodegenError("bad"), StageCodegen},
		{tracerr.Wrap(LinkError{Reason: ReasonTimeout}), StageLink},
	}
	for _, tt := range tests {
		be.Equal(t, StageOf(tt.err), tt.want)
	}
}

func TestMessages(t *testing.T) {
	pos := types.Position{Line: 1, Column: 9, Filename: "a.mini"}

	lex := LexError{Unexpected: '@', Location: types.SingleCharSpan(pos)}
	be.Equal(t, lex.Error(), `lex error: a.mini:1:9: unexpected character '@'`)

	perr := ExpectedOneOfKindGotKind([]types.TokenKind{types.LET, types.PRINT}, types.Token{
		Kind:     types.IDENT,
		Text:     "x",
		Location: types.SingleCharSpan(pos),
	})
	be.Equal(t, perr.Error(), "parse error: a.mini:1:9: expected LET or PRINT, found IDENT(x)")

	link := LinkError{Target: "plan9/amd64", Reason: ReasonUnsupportedTarget}
	be.Equal(t, link.Error(), "link error [plan9/amd64]: unsupported target")

	failed := LinkError{Tool: "cc", Reason: ReasonToolFailed, Output: "undefined reference\n"}
	be.True(t, strings.HasSuffix(failed.Error(), "\nundefined reference"))
}
