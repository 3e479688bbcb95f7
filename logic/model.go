// Package logic implements the abstract syntax of the Horn-clause language.
//
// A logic term can fall in one of three categories:
//
// * atomic: a term that represents an immutable value, an Atom or an Int.
//
// * variable: a term that represents an unbound, yet-to-be-resolved term.
//
// * complex: a term that contains other terms, recursively.
//
// A logic program is composed of clauses of the form 'head :- goal1, goal2.', that
// must be read as "head holds if goal1 and goal2 hold". A clause with no goals in
// the body is called a fact.
//
// Goals are the conditions of a clause body: calls to other predicates, cuts,
// unifications, comparisons and arithmetic assignments.
package logic

import (
	"fmt"
	"strings"
)

// ---- Basic types

// Term is a representation of a logic term.
type Term interface {
	fmt.Stringer
	isTerm()
}

// Atom is an atomic term representing a symbol.
type Atom struct {
	// Name is the identifier for an atom.
	Name string
}

// Int is an atomic term representing an integer.
type Int struct {
	// Value is the (immutable) value of an int.
	Value int
}

// Var is a variable term.
type Var struct {
	// Name is the identifier for a var.
	Name string
}

// Comp is a complex term, representing an immutable compound term.
type Comp struct {
	// Functor is the primary identifier of a comp. Within terms, it may also
	// be the name of a variable.
	Functor string
	// Args is the list of terms within this term.
	Args []Term
}

// List is a complex term, representing an ordered sequence of terms.
type List struct {
	// Terms are the contents of a list.
	Terms []Term
	// Tail is the continuation of a list after '|', which is usually another
	// list, the empty list, or an unbound var. It is nil for proper lists.
	Tail Term
}

func (Atom) isTerm()  {}
func (Int) isTerm()   {}
func (Var) isTerm()   {}
func (*Comp) isTerm() {}
func (*List) isTerm() {}

// ---- Public vars

var (
	// AnonymousVar represents a variable to be ignored.
	AnonymousVar = Var{"_"}
	// EmptyList is an atom representing an empty list.
	EmptyList = Atom{"[]"}
)

// ---- Vars

// NewVar creates a new var.
//
// It panics if the name doesn't start with an uppercase letter or an underscore.
func NewVar(name string) Var {
	if !IsVar(name) {
		panic(fmt.Sprintf("NewVar: invalid name: %q", name))
	}
	return Var{name}
}

// IsAnonymous returns whether x is the anonymous var '_'.
func (x Var) IsAnonymous() bool {
	return x.Name == "_"
}

// ---- Compound terms

// NewComp creates a compound term.
func NewComp(functor string, terms ...Term) *Comp {
	return &Comp{Functor: functor, Args: terms}
}

// HasVarFunctor returns whether the functor is a variable name, as in 'X(a, b)'.
func (c *Comp) HasVarFunctor() bool {
	return IsVar(c.Functor)
}

// Indicator is a notation for a comp, usually shown as functor/arity, e.g., f/2.
type Indicator struct {
	// Name is the compound term's functor.
	Name string
	// Arity is the compound term's number of args.
	Arity int
}

// Indicator returns the functor's indicator.
func (c *Comp) Indicator() Indicator {
	return Indicator{c.Functor, len(c.Args)}
}

func (i Indicator) String() string {
	return fmt.Sprintf("%s/%d", i.Name, i.Arity)
}

// ---- Lists

// NewList creates a proper List with the provided terms. Without terms, it
// returns EmptyList.
func NewList(terms ...Term) Term {
	if len(terms) == 0 {
		return EmptyList
	}
	return &List{Terms: terms}
}

// NewIncompleteList creates a List with the provided terms and tail.
func NewIncompleteList(terms []Term, tail Term) Term {
	if len(terms) == 0 {
		return tail
	}
	return &List{Terms: terms, Tail: tail}
}

// ---- Goals

// Goal is a condition within a clause body.
type Goal interface {
	fmt.Stringer
	isGoal()
}

// Call is a goal that calls a predicate.
type Call struct {
	*Comp
}

// Cut is the goal '!', that commits to the choices made since the clause was entered.
type Cut struct{}

// Unify is the goal 'L = R'.
type Unify struct {
	L, R Term
}

// Comparison operators.
const (
	Less      = "<"
	LessEq    = "<="
	Greater   = ">"
	GreaterEq = ">="
	NotEqual  = "!="
)

// Compare is an arithmetic comparison goal, such as 'X > 0'. Op is one of
// the comparison operators; '\=' is read as NotEqual.
type Compare struct {
	Op   string
	L, R Term
}

// Assign is the arithmetic goal 'Target is L op R', where op is one of
// + - * / %.
type Assign struct {
	Target Var
	Op     string
	L, R   Term
}

func (*Call) isGoal()    {}
func (*Cut) isGoal()     {}
func (*Unify) isGoal()   {}
func (*Compare) isGoal() {}
func (*Assign) isGoal()  {}

// NewCall creates a call goal.
func NewCall(functor string, args ...Term) *Call {
	return &Call{NewComp(functor, args...)}
}

// ---- Clauses

// Clause is the representation of a logic rule.
// Note that Clause is not a Term, so it can't be used within complex terms.
type Clause struct {
	// Head is the consequent of a clause. Atoms are represented as comps
	// without args.
	Head *Comp
	// Body is the antecedent of a clause.
	Body []Goal
}

// NewClause returns a clause with the provided head and goals as body.
func NewClause(head *Comp, body ...Goal) *Clause {
	return &Clause{Head: head, Body: body}
}

// Name returns the name of the procedure this clause belongs to.
func (c *Clause) Name() string {
	return c.Head.Functor
}

// ---- Vars()

// Vars returns all variables within term, in order of first occurrence.
// The anonymous var is never included.
func Vars(terms ...Term) []Var {
	var xs []Var
	seen := make(map[Var]struct{})
	for _, term := range terms {
		xs = vars(term, seen, xs)
	}
	return xs
}

func vars(term Term, seen map[Var]struct{}, xs []Var) []Var {
	switch t := term.(type) {
	case Var:
		if _, ok := seen[t]; ok || t.IsAnonymous() {
			return xs
		}
		seen[t] = struct{}{}
		return append(xs, t)
	case *Comp:
		if t.HasVarFunctor() {
			xs = vars(Var{t.Functor}, seen, xs)
		}
		for _, arg := range t.Args {
			xs = vars(arg, seen, xs)
		}
	case *List:
		for _, elem := range t.Terms {
			xs = vars(elem, seen, xs)
		}
		if t.Tail != nil {
			xs = vars(t.Tail, seen, xs)
		}
	}
	return xs
}

// GoalVars returns all variables within goals, in order of first occurrence.
func GoalVars(goals ...Goal) []Var {
	var terms []Term
	for _, goal := range goals {
		switch g := goal.(type) {
		case *Call:
			terms = append(terms, g.Comp)
		case *Unify:
			terms = append(terms, g.L, g.R)
		case *Compare:
			terms = append(terms, g.L, g.R)
		case *Assign:
			terms = append(terms, g.L, g.R, g.Target)
		}
	}
	return Vars(terms...)
}

// ---- String()

func (t Atom) String() string {
	return FormatAtom(t.Name)
}

func (t Int) String() string {
	return fmt.Sprintf("%d", t.Value)
}

func (t Var) String() string {
	return t.Name
}

func (t *Comp) String() string {
	if len(t.Args) == 0 {
		return FormatAtom(t.Functor)
	}
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	functor := t.Functor
	if !t.HasVarFunctor() {
		functor = FormatAtom(functor)
	}
	return fmt.Sprintf("%s(%s)", functor, strings.Join(args, ", "))
}

func (t *List) String() string {
	terms := make([]string, len(t.Terms))
	for i, term := range t.Terms {
		terms[i] = term.String()
	}
	xs := strings.Join(terms, ", ")
	if t.Tail == nil {
		return fmt.Sprintf("[%s]", xs)
	}
	return fmt.Sprintf("[%s|%v]", xs, t.Tail)
}

func (*Cut) String() string {
	return "!"
}

func (g *Unify) String() string {
	return fmt.Sprintf("%v = %v", g.L, g.R)
}

func (g *Compare) String() string {
	return fmt.Sprintf("%v %s %v", g.L, g.Op, g.R)
}

func (g *Assign) String() string {
	return fmt.Sprintf("%v is %v %s %v", g.Target, g.L, g.Op, g.R)
}

func (c *Clause) String() string {
	head := c.Head.String()
	if len(c.Body) == 0 {
		return head + "."
	}
	body := make([]string, len(c.Body))
	for i, goal := range c.Body {
		body[i] = goal.String()
	}
	return fmt.Sprintf("%s :-\n  %s.", head, strings.Join(body, ",\n  "))
}
