package lexer

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pontaoski/mini/errors"
	"github.com/pontaoski/mini/types"
	"github.com/ztrue/tracerr"
)

type Lexer struct {
	pos    types.Position
	prev   types.Position
	reader *bufio.Reader
	peeked *types.Token
	done   bool
}

func NewLexer(reader io.Reader, filename string) *Lexer {
	return &Lexer{
		pos:    types.Position{Line: 1, Column: 0, Filename: filename},
		reader: bufio.NewReader(reader),
	}
}

// Tokenize scans src to the end and returns every token, terminated by EOF.
func Tokenize(src string, filename string) ([]types.Token, error) {
	return NewLexer(strings.NewReader(src), filename).All()
}

// All lexes the remaining input. The last token is always EOF.
func (l *Lexer) All() (toks []types.Token, err error) {
	defer recoverLexError(&err)

	if l.peeked != nil {
		toks = append(toks, *l.peeked)
		l.peeked = nil
		if toks[0].Kind == types.EOF {
			return toks, nil
		}
	}

	for {
		tok := l.lex()
		toks = append(toks, tok)
		if tok.Kind == types.EOF {
			return toks, nil
		}
	}
}

// Lex returns the next token. After EOF it keeps returning EOF.
func (l *Lexer) Lex() (tok types.Token, err error) {
	defer recoverLexError(&err)

	if l.peeked != nil {
		defer func() { l.peeked = nil }()
		return *l.peeked, nil
	}
	return l.lex(), nil
}

func (l *Lexer) Peek() (types.Token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}

	tok, err := l.Lex()
	if err != nil {
		return tok, err
	}
	l.peeked = &tok

	return tok, nil
}

func (l *Lexer) PeekIs(k ...types.TokenKind) bool {
	token, err := l.Peek()
	if err != nil {
		return false
	}
	for _, kind := range k {
		if token.Kind == kind {
			return true
		}
	}

	return false
}

func recoverLexError(err *error) {
	if r := recover(); r != nil {
		lerr, ok := r.(errors.LexError)
		if !ok {
			panic(r)
		}
		*err = tracerr.Wrap(lerr)
	}
}

// read returns the next rune, or -1 at end of input.
func (l *Lexer) read() rune {
	r, size, err := l.reader.ReadRune()
	if err != nil {
		if err == io.EOF {
			return -1
		}
		panic(errors.LexError{Reason: err.Error(), Location: types.SingleCharSpan(l.pos)})
	}

	l.prev = l.pos
	if r == '\n' {
		l.pos.Line++
		l.pos.Column = 0
	} else {
		l.pos.Column++
	}

	if r == utf8.RuneError && size == 1 {
		panic(errors.LexError{Reason: "invalid UTF-8 encoding", Location: types.SingleCharSpan(l.pos)})
	}
	return r
}

// backup undoes the last read. Only one rune can be backed up.
func (l *Lexer) backup() {
	if err := l.reader.UnreadRune(); err != nil {
		panic(err)
	}

	l.pos = l.prev
}

func (l *Lexer) kinded(t types.TokenKind) types.Token {
	return types.Token{
		Location: types.SingleCharSpan(l.pos),
		Kind:     t,
	}
}

func firstChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func otherChar(r rune) bool {
	return firstChar(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

var punctuation = map[rune]types.TokenKind{
	'+': types.PLUS,
	'-': types.MINUS,
	'*': types.STAR,
	'/': types.SLASH,
	'(': types.LPAREN,
	')': types.RPAREN,
	'=': types.EQUALS,
	';': types.EOS,
}

func (l *Lexer) lex() types.Token {
	if l.done {
		return l.kinded(types.EOF)
	}

	for {
		r := l.read()

		switch {
		case r == -1:
			l.done = true
			return l.kinded(types.EOF)
		case unicode.IsSpace(r):
			continue
		case r == '/':
			if next := l.read(); next == '/' {
				l.skipLine()
				continue
			} else if next != -1 {
				l.backup()
			}
			return l.kinded(types.SLASH)
		case r == '"':
			return l.lexString()
		case isDigit(r):
			return l.lexInt(r)
		case firstChar(r):
			return l.lexIdent(r)
		}

		if kind, ok := punctuation[r]; ok {
			return l.kinded(kind)
		}

		panic(errors.LexError{Unexpected: r, Location: types.SingleCharSpan(l.pos)})
	}
}

func (l *Lexer) skipLine() {
	for {
		r := l.read()
		if r == -1 || r == '\n' {
			return
		}
	}
}

func (l *Lexer) lexIdent(first rune) types.Token {
	from := l.pos
	to := l.pos

	var lit strings.Builder
	lit.WriteRune(first)
	for {
		r := l.read()
		if r == -1 {
			break
		}
		if !otherChar(r) {
			l.backup()
			break
		}
		lit.WriteRune(r)
		to = l.pos
	}

	name := lit.String()
	kind := types.IDENT
	if kw, ok := types.Keywords[name]; ok {
		kind = kw
	}

	return types.Token{Kind: kind, Text: name, Location: types.Span{From: from, To: to}}
}

func (l *Lexer) lexInt(first rune) types.Token {
	from := l.pos
	to := l.pos

	var digits strings.Builder
	digits.WriteRune(first)
	for {
		r := l.read()
		if r == -1 {
			break
		}
		if !isDigit(r) {
			l.backup()
			break
		}
		digits.WriteRune(r)
		to = l.pos
	}

	span := types.Span{From: from, To: to}
	value, err := strconv.ParseUint(digits.String(), 10, 64)
	if err != nil || value > 1<<63 {
		panic(errors.LexError{Reason: "integer literal " + digits.String() + " out of range", Location: span})
	}

	// 1<<63 wraps to math.MinInt64; the parser only accepts it negated.
	return types.Token{Kind: types.INT, Text: digits.String(), Value: int64(value), Location: span}
}

// lexString is called after the opening quote. There are no escape
// sequences and a literal may not span lines.
func (l *Lexer) lexString() types.Token {
	from := l.pos

	var lit strings.Builder
	for {
		r := l.read()
		switch r {
		case -1, '\n':
			panic(errors.LexError{
				Unexpected: '"',
				Reason:     "unterminated string literal",
				Location:   types.SingleCharSpan(from),
			})
		case 0:
			// strings are printed as C strings
			panic(errors.LexError{
				Unexpected: 0,
				Reason:     "NUL character in string literal",
				Location:   types.SingleCharSpan(l.pos),
			})
		case '"':
			return types.Token{
				Kind:     types.STRING,
				Text:     lit.String(),
				Location: types.Span{From: from, To: l.pos},
			}
		}
		lit.WriteRune(r)
	}
}
