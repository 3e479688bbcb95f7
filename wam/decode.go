package wam

import (
	"bufio"
	"io"
	"strings"

	"github.com/brunokim/prolog-wam/errors"
)

// ErrBytecode is returned for malformed lines of bytecode text.
var ErrBytecode = errors.Kind("malformed bytecode")

// ReadProgram parses bytecode text and links the resulting program.
//
// Each line holds a statement, optionally prefixed by "label:". Blank lines
// and lines starting with ';', '#' or '%' are ignored. Operands are separated
// by spaces and may be quoted with single quotes. Unknown mnemonics are kept
// as invalid statements.
func ReadProgram(r io.Reader) (*Program, error) {
	p := NewProgram()
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		s, err := decodeStatement(scanner.Text())
		if err != nil {
			return nil, errors.New("%v: line %d: %v", ErrBytecode, lineno, err)
		}
		if s != nil {
			p.Add(s)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.UpdateLabels()
	return p, nil
}

// ParseStatement decodes a single line of bytecode text.
func ParseStatement(line string) (*Statement, error) {
	s, err := decodeStatement(line)
	if err != nil {
		return nil, errors.New("%v: %v", ErrBytecode, err)
	}
	if s == nil {
		return nil, errors.New("%v: empty line", ErrBytecode)
	}
	return s, nil
}

func decodeStatement(line string) (*Statement, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsRune(";#%", rune(line[0])) {
		return nil, nil
	}
	label, line := cutLabel(line)
	function, rest, _ := strings.Cut(line, " ")
	args, err := splitOperands(rest)
	if err != nil {
		return nil, err
	}
	if len(args) > 3 {
		args = append(args[:2], strings.Join(args[2:], " "))
	}
	return NewStatement(label, function, args...), nil
}

// cutLabel splits a "label:" prefix from line. The label may be quoted, as
// in "'hello world': trust_me".
func cutLabel(line string) (string, string) {
	var b strings.Builder
	inQuote := false
	for i, ch := range line {
		switch {
		case ch == '\'':
			inQuote = !inQuote
		case inQuote:
			b.WriteRune(ch)
		case ch == ':':
			if b.Len() == 0 {
				return "", line
			}
			return b.String(), strings.TrimSpace(line[i+1:])
		case ch == ' ':
			return "", line
		default:
			b.WriteRune(ch)
		}
	}
	return "", line
}

// splitOperands splits text on spaces, keeping quoted operands together.
func splitOperands(text string) ([]string, error) {
	var args []string
	var b strings.Builder
	inQuote, hasArg := false, false
	for _, ch := range text {
		switch {
		case ch == '\'':
			inQuote = !inQuote
			hasArg = true
		case ch == ' ' && !inQuote:
			if hasArg {
				args = append(args, b.String())
				b.Reset()
				hasArg = false
			}
		default:
			b.WriteRune(ch)
			hasArg = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote in %q", text)
	}
	if hasArg {
		args = append(args, b.String())
	}
	return args, nil
}
