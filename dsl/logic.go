// Package dsl offers terse builders of logic values, for tests and embedding.
package dsl

import (
	"github.com/brunokim/prolog-wam/logic"
)

func Terms(terms ...logic.Term) []logic.Term {
	return terms
}

func Atom(name string) logic.Atom {
	return logic.Atom{Name: name}
}

func Int(i int) logic.Int {
	return logic.Int{Value: i}
}

func Var(name string) logic.Var {
	return logic.NewVar(name)
}

func Comp(functor string, args ...logic.Term) *logic.Comp {
	return logic.NewComp(functor, args...)
}

func Indicator(name string, arity int) logic.Indicator {
	return logic.Indicator{Name: name, Arity: arity}
}

func Clause(head *logic.Comp, body ...logic.Goal) *logic.Clause {
	return logic.NewClause(head, body...)
}

func Clauses(cs ...*logic.Clause) []*logic.Clause {
	return cs
}

// ----

func List(terms ...logic.Term) logic.Term {
	return logic.NewList(terms...)
}

// IList creates an incomplete list, whose last argument is the tail.
func IList(terms ...logic.Term) logic.Term {
	n := len(terms)
	butlast, last := terms[:n-1], terms[n-1]
	return logic.NewIncompleteList(butlast, last)
}

// ---- Goals

func Query(goals ...logic.Goal) []logic.Goal {
	return goals
}

func Call(functor string, args ...logic.Term) *logic.Call {
	return logic.NewCall(functor, args...)
}

func Cut() *logic.Cut {
	return &logic.Cut{}
}

func Unify(l, r logic.Term) *logic.Unify {
	return &logic.Unify{L: l, R: r}
}

func Cmp(l logic.Term, op string, r logic.Term) *logic.Compare {
	return &logic.Compare{Op: op, L: l, R: r}
}

// Is creates the assignment 'target is l op r'.
func Is(target string, l logic.Term, op string, r logic.Term) *logic.Assign {
	return &logic.Assign{Target: logic.NewVar(target), Op: op, L: l, R: r}
}
