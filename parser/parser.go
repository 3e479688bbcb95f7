// Package parser reads the Horn-clause language into logic clauses and queries.
//
// The grammar is parsed by recursive descent with backtracking: a body
// condition is tried as a comparison, then as a unification, then as an
// assignment and finally as a predicate call.
package parser

import (
	"strconv"
	"strings"

	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/logic"
	"github.com/brunokim/prolog-wam/runes"
)

// ErrSyntax is returned for malformed clauses and queries.
var ErrSyntax = errors.Kind("syntax error")

var comparisons = map[string]string{
	"<":   logic.Less,
	"<=":  logic.LessEq,
	">":   logic.Greater,
	">=":  logic.GreaterEq,
	"!=":  logic.NotEqual,
	"\\=": logic.NotEqual,
}

var operators = map[string]bool{"+": true, "-": true, "*": true, "/": true, "%": true}

type parser struct {
	tokens []Token
	pos    int
	// Farthest position where a token didn't match, used for error reporting.
	farthest int
}

func newParser(text string) (*parser, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	return &parser{tokens: tokens}, nil
}

// ---- Token helpers

func (p *parser) eof() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) peek() string {
	if p.eof() {
		return ""
	}
	return p.tokens[p.pos].Text
}

func (p *parser) peekAt(offset int) string {
	if p.pos+offset >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos+offset].Text
}

func (p *parser) miss() {
	if p.pos > p.farthest {
		p.farthest = p.pos
	}
}

// accept consumes the next token if it is text.
func (p *parser) accept(text string) bool {
	if !p.eof() && p.peek() == text {
		p.pos++
		return true
	}
	p.miss()
	return false
}

func (p *parser) expect(text string) error {
	if p.accept(text) {
		return nil
	}
	return p.errorf("expected %q", text)
}

func (p *parser) errorf(msg string, args ...interface{}) error {
	p.miss()
	detail := strings.TrimSpace(errors.New(msg, args...).Error())
	if p.farthest >= len(p.tokens) {
		line := 1
		if n := len(p.tokens); n > 0 {
			line = p.tokens[n-1].Line
		}
		return errors.New("%v: line %d: unexpected end of input: %s", ErrSyntax, line, detail)
	}
	tok := p.tokens[p.farthest]
	return errors.New("%v: line %d: unexpected %q: %s", ErrSyntax, tok.Line, tok.Text, detail)
}

// ---- Token classes

func isQuoted(text string) bool {
	return len(text) >= 2 && strings.HasPrefix(text, "'") && strings.HasSuffix(text, "'")
}

func unquote(text string) string {
	if isQuoted(text) {
		return text[1 : len(text)-1]
	}
	return text
}

func isName(text string) bool {
	return isQuoted(text) || (logic.IsPlainAtom(text) && text != "[]")
}

func isNumber(text string) bool {
	return runes.IsDigits(text)
}

// ---- Grammar

// predicate := name [ '(' term (',' term)* ')' ]
func (p *parser) predicate() (*logic.Comp, bool) {
	start := p.pos
	if p.eof() || !isName(p.peek()) {
		p.miss()
		return nil, false
	}
	functor := unquote(p.peek())
	p.pos++
	if !p.accept("(") {
		return logic.NewComp(functor), true
	}
	args, ok := p.terms()
	if !ok || !p.accept(")") {
		p.pos = start
		return nil, false
	}
	return logic.NewComp(functor, args...), true
}

// terms := term (',' term)*
func (p *parser) terms() ([]logic.Term, bool) {
	var ts []logic.Term
	for {
		t, ok := p.term()
		if !ok {
			return nil, false
		}
		ts = append(ts, t)
		if !p.accept(",") {
			return ts, true
		}
	}
}

// term := structure | Var | constant | list
func (p *parser) term() (logic.Term, bool) {
	text := p.peek()
	if (isName(text) || logic.IsVar(text)) && p.peekAt(1) == "(" {
		start := p.pos
		p.pos += 2
		args, ok := p.terms()
		if ok && p.accept(")") {
			functor := text
			if !logic.IsVar(text) {
				functor = unquote(text)
			}
			return logic.NewComp(functor, args...), true
		}
		p.pos = start
		return nil, false
	}
	if logic.IsVar(text) {
		p.pos++
		return logic.Var{Name: text}, true
	}
	if c, ok := p.constant(); ok {
		return c, true
	}
	return p.list()
}

// constant := name | number | '-' number | '[' ']'
func (p *parser) constant() (logic.Term, bool) {
	text := p.peek()
	switch {
	case p.eof():
	case isNumber(text):
		n, err := strconv.Atoi(text)
		if err != nil {
			break
		}
		p.pos++
		return logic.Int{Value: n}, true
	case text == "-" && isNumber(p.peekAt(1)):
		n, err := strconv.Atoi("-" + p.peekAt(1))
		if err != nil {
			break
		}
		p.pos += 2
		return logic.Int{Value: n}, true
	case text == "[" && p.peekAt(1) == "]":
		p.pos += 2
		return logic.EmptyList, true
	case isName(text):
		p.pos++
		return logic.Atom{Name: unquote(text)}, true
	}
	p.miss()
	return nil, false
}

// list := '[' term (',' term)* [ '|' term ] ']'
func (p *parser) list() (logic.Term, bool) {
	start := p.pos
	if !p.accept("[") {
		return nil, false
	}
	ts, ok := p.terms()
	if !ok {
		p.pos = start
		return nil, false
	}
	var tail logic.Term
	if p.accept("|") {
		if tail, ok = p.term(); !ok {
			p.pos = start
			return nil, false
		}
	}
	if !p.accept("]") {
		p.pos = start
		return nil, false
	}
	return &logic.List{Terms: ts, Tail: tail}, true
}

// operand := Var | constant
func (p *parser) operand() (logic.Term, bool) {
	if text := p.peek(); logic.IsVar(text) && p.peekAt(1) != "(" {
		p.pos++
		return logic.Var{Name: text}, true
	}
	return p.constant()
}

// condition := '!' | operand cmp operand | term '=' term
//            | Var 'is' operand op operand | predicate
func (p *parser) condition() (logic.Goal, error) {
	if p.accept("!") {
		return &logic.Cut{}, nil
	}
	start := p.pos
	if l, ok := p.operand(); ok {
		if op, ok := comparisons[p.peek()]; ok {
			p.pos++
			if r, ok := p.operand(); ok {
				return &logic.Compare{Op: op, L: l, R: r}, nil
			}
		}
		p.miss()
	}
	p.pos = start
	if l, ok := p.term(); ok && p.accept("=") {
		if r, ok := p.term(); ok {
			return &logic.Unify{L: l, R: r}, nil
		}
	}
	p.pos = start
	if target := p.peek(); logic.IsVar(target) && p.peekAt(1) == "is" {
		p.pos += 2
		if g, ok := p.expression(logic.Var{Name: target}); ok {
			return g, nil
		}
	}
	p.pos = start
	if c, ok := p.predicate(); ok {
		return &logic.Call{Comp: c}, nil
	}
	return nil, p.errorf("expected condition")
}

// expression := operand op operand
func (p *parser) expression(target logic.Var) (*logic.Assign, bool) {
	start := p.pos
	if l, ok := p.operand(); ok {
		if op := p.peek(); operators[op] {
			p.pos++
			if r, ok := p.operand(); ok {
				return &logic.Assign{Target: target, Op: op, L: l, R: r}, true
			}
		}
		p.miss()
	}
	p.pos = start
	return nil, false
}

// body := condition (',' condition)*
func (p *parser) body() ([]logic.Goal, error) {
	var goals []logic.Goal
	for {
		goal, err := p.condition()
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
		if !p.accept(",") {
			return goals, nil
		}
	}
}

// clause := predicate ( '.' | ':-' body '.' )
func (p *parser) clause() (*logic.Clause, error) {
	head, ok := p.predicate()
	if !ok {
		return nil, p.errorf("expected clause head")
	}
	if p.accept(".") {
		return logic.NewClause(head), nil
	}
	if err := p.expect(":-"); err != nil {
		return nil, err
	}
	body, err := p.body()
	if err != nil {
		return nil, err
	}
	if err := p.expect("."); err != nil {
		return nil, err
	}
	return logic.NewClause(head, body...), nil
}

// ---- Public API

// ParseProgram parses a sequence of clauses.
func ParseProgram(text string) ([]*logic.Clause, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	var clauses []*logic.Clause
	for !p.eof() {
		c, err := p.clause()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// ParseClause parses a single clause.
func ParseClause(text string) (*logic.Clause, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	c, err := p.clause()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		p.farthest = p.pos
		return nil, p.errorf("expected end of clause")
	}
	return c, nil
}

// ParseQuery parses the goals of a query, that must end with '.'.
func ParseQuery(text string) ([]logic.Goal, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	goals, err := p.body()
	if err != nil {
		return nil, err
	}
	if err := p.expect("."); err != nil {
		return nil, err
	}
	if !p.eof() {
		p.farthest = p.pos
		return nil, p.errorf("expected end of query")
	}
	return goals, nil
}
