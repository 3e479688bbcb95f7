package compiler

import (
	"fmt"
	"strconv"

	"github.com/brunokim/prolog-wam/logic"
	"github.com/brunokim/prolog-wam/wam"
)

var comparisonOps = map[string]string{
	logic.Greater:   "bigger",
	logic.Less:      "smaller",
	logic.GreaterEq: "biggereq",
	logic.LessEq:    "smallereq",
	logic.NotEqual:  "unequal",
}

// codegen holds the state for compiling a single clause or query.
//
// Every variable of the clause, and every intermediate term, is assigned a
// permanent register in order of first occurrence.
type codegen struct {
	// Register prefix, Y for clauses and Q for queries.
	prefix string
	// Names of variables already assigned to a register. Intermediate
	// terms get an empty name.
	vars []string
	// Register of the last term compiled.
	lastVar string
	// Number of predicate calls in the body.
	calls int
	// Index of the first body statement.
	bodyStart int
	stmts     []*wam.Statement
}

func newCodegen(prefix string) *codegen {
	return &codegen{prefix: prefix}
}

func (g *codegen) emit(function string, args ...string) {
	g.stmts = append(g.stmts, wam.NewStatement("", function, args...))
}

func (g *codegen) insert(i int, function string, args ...string) {
	g.stmts = append(g.stmts, nil)
	copy(g.stmts[i+1:], g.stmts[i:])
	g.stmts[i] = wam.NewStatement("", function, args...)
}

func (g *codegen) isQuery() bool {
	return g.prefix == "Q"
}

// isFirst returns whether name doesn't have a register yet.
func (g *codegen) isFirst(name string) bool {
	return g.index(name) < 0
}

func (g *codegen) index(name string) int {
	if name == "" || name == "_" {
		return -1
	}
	for i, v := range g.vars {
		if v == name {
			return i
		}
	}
	return -1
}

// subst returns the register of name, assigning a new one if it has none.
// The anonymous var and intermediate terms always get a new register.
func (g *codegen) subst(name string) string {
	i := g.index(name)
	if i < 0 {
		i = len(g.vars)
		g.vars = append(g.vars, name)
	}
	g.lastVar = fmt.Sprintf("%s%d", g.prefix, i)
	return g.lastVar
}

func constant(t logic.Term) (string, bool) {
	switch t := t.(type) {
	case logic.Atom:
		return t.Name, true
	case logic.Int:
		return strconv.Itoa(t.Value), true
	case *logic.Comp:
		if len(t.Args) == 0 && !t.HasVarFunctor() {
			return t.Functor, true
		}
	case *logic.List:
		if len(t.Terms) == 0 && t.Tail == nil {
			return logic.EmptyList.Name, true
		}
	}
	return "", false
}

// ---- Terms

// variable assigns a register to x. In queries, the first occurrence of a
// variable is created and named, so that its binding can be reported.
func (g *codegen) variable(x logic.Var) string {
	first := g.isFirst(x.Name)
	reg := g.subst(x.Name)
	if first && g.isQuery() {
		g.emit("create_variable", reg, x.Name)
	}
	return reg
}

// term builds t into registers. The register holding t is left in lastVar.
func (g *codegen) term(t logic.Term) {
	if c, ok := constant(t); ok {
		g.emit("put_constant", c, g.subst(""))
		return
	}
	switch t := t.(type) {
	case logic.Var:
		g.variable(t)
	case *logic.List:
		g.list(t.Terms, t.Tail)
	case *logic.Comp:
		if t.HasVarFunctor() {
			g.variable(logic.Var{Name: t.Functor})
		} else {
			g.emit("put_constant", t.Functor, g.subst(""))
		}
		functor := g.lastVar
		g.list(t.Args, nil)
		args := g.lastVar
		g.emit("unify_struc", g.subst(""), functor, args)
	default:
		panic(fmt.Sprintf("codegen.term: unhandled type %T (%v)", t, t))
	}
}

// list builds the list of terms, ending with tail or [] if it is nil.
func (g *codegen) list(terms []logic.Term, tail logic.Term) {
	if len(terms) == 0 {
		if tail != nil {
			g.term(tail)
			return
		}
		g.emit("put_constant", logic.EmptyList.Name, g.subst(""))
		return
	}
	g.term(terms[0])
	head := g.lastVar
	var rest string
	switch {
	case len(terms) > 1:
		g.list(terms[1:], tail)
		rest = g.lastVar
	case tail != nil:
		g.term(tail)
		rest = g.lastVar
	default:
		rest = g.subst("")
		g.emit("put_constant", logic.EmptyList.Name, rest)
	}
	g.emit("unify_list", g.subst(""), head, rest)
}

// ---- Clauses

func (g *codegen) head(head *logic.Comp) {
	for i, arg := range head.Args {
		ai := wam.RegAddr(i).String()
		if c, ok := constant(arg); ok {
			g.emit("get_constant", c, ai)
			continue
		}
		if x, ok := arg.(logic.Var); ok {
			if g.isFirst(x.Name) {
				g.emit("get_variable", g.subst(x.Name), ai)
			} else {
				g.emit("get_value", g.subst(x.Name), ai)
			}
			continue
		}
		reg := g.subst("")
		g.emit("get_variable", reg, ai)
		g.term(arg)
		g.emit("unify_variable", reg, g.lastVar)
	}
}

func (g *codegen) body(goals []logic.Goal) {
	g.bodyStart = len(g.stmts)
	for _, goal := range goals {
		g.goal(goal)
	}
}

func (g *codegen) goal(goal logic.Goal) {
	switch goal := goal.(type) {
	case *logic.Call:
		g.call(goal.Comp)
	case *logic.Cut:
		// The cut level is saved on entry, before any call may change it.
		reg := g.subst("")
		g.insert(g.bodyStart, "get_level", reg)
		g.emit("cut", reg)
	case *logic.Unify:
		g.term(goal.L)
		l := g.lastVar
		g.term(goal.R)
		g.emit("unify_variable", l, g.lastVar)
	case *logic.Compare:
		g.term(goal.L)
		l := g.lastVar
		g.term(goal.R)
		g.emit(comparisonOps[goal.Op], l, g.lastVar)
	case *logic.Assign:
		g.term(goal.L)
		l := g.lastVar
		g.term(goal.R)
		r := g.lastVar
		g.variable(goal.Target)
		g.emit("is", g.lastVar, goal.Op, l, r)
	default:
		panic(fmt.Sprintf("codegen.goal: unhandled type %T (%v)", goal, goal))
	}
}

func (g *codegen) call(pred *logic.Comp) {
	g.calls++
	for i, arg := range pred.Args {
		ai := wam.RegAddr(i).String()
		if c, ok := constant(arg); ok {
			g.emit("put_constant", c, ai)
			continue
		}
		if x, ok := arg.(logic.Var); ok {
			g.emit("put_value", g.variable(x), ai)
			continue
		}
		g.term(arg)
		g.emit("put_value", g.lastVar, ai)
	}
	g.emit("call", pred.Functor)
}

// clause compiles c, whose first statement is header.
func (g *codegen) clause(c *logic.Clause, header *wam.Statement) []*wam.Statement {
	g.stmts = []*wam.Statement{header}
	g.head(c.Head)
	g.body(c.Body)
	if len(g.vars) > 0 || g.calls > 0 {
		g.insert(1, "allocate")
		g.emit("deallocate")
	}
	g.emit("proceed")
	return g.stmts
}

func (g *codegen) query(goals []logic.Goal) []*wam.Statement {
	g.stmts = []*wam.Statement{wam.NewStatement(wam.QueryLabel, "trust_me")}
	g.body(goals)
	g.emit("halt")
	return g.stmts
}
