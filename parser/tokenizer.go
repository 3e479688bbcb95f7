package parser

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/runes"
)

// Token is a lexical unit of source text.
type Token struct {
	Text string
	Line int
}

func (t Token) String() string {
	return fmt.Sprintf("%q (line %d)", t.Text, t.Line)
}

// Pairs of separators that form a single token.
var digraphs = map[string]bool{
	":-": true,
	">=": true,
	"<=": true,
	"\\=": true,
	"!=": true,
}

type tokenizer struct {
	tokens []Token
	word   strings.Builder
	line   int
	// Number of tokens already emitted when the current line started.
	lineStart int
}

func (t *tokenizer) flush() {
	if t.word.Len() == 0 {
		return
	}
	t.emit(t.word.String())
	t.word.Reset()
}

func (t *tokenizer) emit(text string) {
	t.tokens = append(t.tokens, Token{Text: text, Line: t.line})
}

// startsComment returns whether a '%' at this point begins a comment. It does
// when it is the first token in the line, or when it follows the end of a
// clause; elsewhere it is the modulo operator.
func (t *tokenizer) startsComment() bool {
	if t.word.Len() > 0 {
		return false
	}
	n := len(t.tokens)
	return n == t.lineStart || t.tokens[n-1].Text == "."
}

// Tokenize splits text into tokens.
//
// Separators are single-character tokens, except for the digraphs ':-', '>=',
// '<=', '\=' and '!='. Quoted text is a single token, quotes included.
// Whitespace only splits tokens.
func Tokenize(text string) ([]Token, error) {
	t := &tokenizer{line: 1}
	rs := []rune(text)
	for i := 0; i < len(rs); i++ {
		ch := rs[i]
		switch {
		case ch == '\n':
			t.flush()
			t.line++
			t.lineStart = len(t.tokens)
		case unicode.IsSpace(ch):
			t.flush()
		case ch == '\'':
			t.flush()
			j := i + 1
			for j < len(rs) && rs[j] != '\'' {
				j++
			}
			if j >= len(rs) {
				return nil, errors.New("%v: line %d: unterminated quoted atom", ErrSyntax, t.line)
			}
			quoted := string(rs[i : j+1])
			t.emit(quoted)
			t.line += strings.Count(quoted, "\n")
			i = j
		case ch == '%' && t.startsComment():
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
			i--
		case runes.IsSeparator(ch):
			t.flush()
			if i+1 < len(rs) && digraphs[string(rs[i:i+2])] {
				t.emit(string(rs[i : i+2]))
				i++
			} else {
				t.emit(string(ch))
			}
		default:
			t.word.WriteRune(ch)
		}
	}
	t.flush()
	return t.tokens, nil
}
