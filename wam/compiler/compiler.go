// Package compiler translates Horn clauses into WAM bytecode.
package compiler

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/logic"
	"github.com/brunokim/prolog-wam/parser"
	"github.com/brunokim/prolog-wam/wam"
)

// Compiler turns source text into programs. It implements wam.Compiler.
type Compiler struct {
	Logger *slog.Logger
}

var _ wam.Compiler = (*Compiler)(nil)

// New returns a compiler that logs to the default logger.
func New() *Compiler {
	return &Compiler{Logger: slog.Default()}
}

func (c *Compiler) logger() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Compile translates clauses into a program.
//
// Clauses with the same name form a procedure, even if they are not
// consecutive. Clause k of n is labeled name~k, or just name for the first,
// and starts with try_me_else, retry_me_else or trust_me to chain the
// alternatives.
func Compile(clauses []*logic.Clause) *wam.Program {
	total := make(map[string]int)
	for _, c := range clauses {
		total[c.Name()]++
	}
	seen := make(map[string]int)
	var stmts []*wam.Statement
	for _, c := range clauses {
		name := c.Name()
		seen[name]++
		k, n := seen[name], total[name]
		header := wam.NewStatement(clauseLabel(name, k), "trust_me")
		if k < n {
			function := "retry_me_else"
			if k == 1 {
				function = "try_me_else"
			}
			header = wam.NewStatement(clauseLabel(name, k), function, clauseLabel(name, k+1))
		}
		stmts = append(stmts, newCodegen("Y").clause(c, header)...)
	}
	return wam.NewProgram(stmts...)
}

func clauseLabel(name string, k int) string {
	if k == 1 {
		return name
	}
	return fmt.Sprintf("%s~%d", name, k)
}

// MixedArities returns the indicators of procedures whose clauses have
// different arities, in order of first appearance. Labels identify
// procedures by name only, so such clauses are chained together.
func MixedArities(clauses []*logic.Clause) []logic.Indicator {
	arities := make(map[string][]logic.Indicator)
	var names []string
	for _, c := range clauses {
		ind := c.Head.Indicator()
		known, ok := arities[ind.Name]
		if !ok {
			names = append(names, ind.Name)
		}
		found := false
		for _, other := range known {
			if other == ind {
				found = true
				break
			}
		}
		if !found {
			arities[ind.Name] = append(known, ind)
		}
	}
	var mixed []logic.Indicator
	for _, name := range names {
		if inds := arities[name]; len(inds) > 1 {
			mixed = append(mixed, inds...)
		}
	}
	return mixed
}

// CompileGoals translates the goals of a query into a program labeled
// wam.QueryLabel, that ends with halt.
func CompileGoals(goals []logic.Goal) *wam.Program {
	return wam.NewProgram(newCodegen("Q").query(goals)...)
}

// CompileProgram compiles a sequence of clauses.
func (c *Compiler) CompileProgram(text string) (*wam.Program, error) {
	clauses, err := parser.ParseProgram(text)
	if err != nil {
		return nil, err
	}
	for _, ind := range MixedArities(clauses) {
		c.logger().Warn("procedure defined with mixed arities", slog.String("indicator", ind.String()))
	}
	p := Compile(clauses)
	c.logger().Debug("compiled program",
		slog.Int("clauses", len(clauses)),
		slog.Int("statements", p.Len()))
	return p, nil
}

// CompileClause compiles a single clause, as a procedure of its own.
func (c *Compiler) CompileClause(text string) (*wam.Program, error) {
	clause, err := parser.ParseClause(text)
	if err != nil {
		return nil, err
	}
	return Compile([]*logic.Clause{clause}), nil
}

// CompileQuery compiles the goals of a query.
func (c *Compiler) CompileQuery(text string) (*wam.Program, error) {
	goals, err := parser.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	vars := logic.GoalVars(goals...)
	names := make([]string, len(vars))
	for i, x := range vars {
		names[i] = x.Name
	}
	c.logger().Debug("compiled query", slog.Any("vars", names))
	return CompileGoals(goals), nil
}

// CompileFile compiles the clauses in a file.
func (c *Compiler) CompileFile(filename string) (*wam.Program, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	p, err := c.CompileProgram(string(bs))
	if err != nil {
		return nil, errors.New("%s: %v", filename, err)
	}
	return p, nil
}
