package solver_test

import (
	"fmt"

	"github.com/brunokim/prolog-wam/solver"
)

func Example() {
	s := solver.New()
	for _, clause := range []string{
		// Adding A+B=Sum, with numbers written as successors s(X).
		"add(0, Sum, Sum).",
		"add(s(A), B, s(Sum)) :- add(A, B, Sum).",
	} {
		if err := s.AssertClause(clause); err != nil {
			panic(err)
		}
	}
	solutions, _ := s.RunQuery("add(X, Y, s(s(0))).")
	for _, solution := range solutions {
		fmt.Println(solution.Message())
	}
	// Output:
	// Success: X = 0, Y = s(s(0)).
	// Success: X = s(0), Y = s(0).
	// Success: X = s(s(0)), Y = 0.
	// Failed.
}
