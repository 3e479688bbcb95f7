package wam_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/brunokim/prolog-wam/test_helpers"
	"github.com/brunokim/prolog-wam/wam"
)

// stubCompiler returns precompiled bytecode for known texts.
type stubCompiler map[string]string

func (c stubCompiler) compile(text string) (*wam.Program, error) {
	code, ok := c[text]
	if !ok {
		return nil, fmt.Errorf("unknown text %q", text)
	}
	return wam.ReadProgram(strings.NewReader(code))
}

func (c stubCompiler) CompileQuery(text string) (*wam.Program, error)  { return c.compile(text) }
func (c stubCompiler) CompileClause(text string) (*wam.Program, error) { return c.compile(text) }
func (c stubCompiler) CompileFile(path string) (*wam.Program, error)   { return c.compile(path) }

func newMachine(t *testing.T, program string, queries stubCompiler) *wam.Machine {
	t.Helper()
	m := wam.NewMachine()
	p, err := wam.ReadProgram(strings.NewReader(program))
	if err != nil {
		t.Fatalf("ReadProgram: got err: %v", err)
	}
	m.Program = p
	m.Compiler = queries
	return m
}

func runQuery(t *testing.T, m *wam.Machine, query string) []wam.Solution {
	t.Helper()
	solutions, err := m.RunQuery(query)
	if err != nil {
		t.Fatalf("RunQuery(%q): got err: %v", query, err)
	}
	return solutions
}

func messages(solutions []wam.Solution) []string {
	msgs := make([]string, len(solutions))
	for i, sol := range solutions {
		msgs[i] = sol.Message()
	}
	return msgs
}

const starWarsCode = `
equal:        trust_me
              allocate
              get_variable Y0 A0
              get_value Y0 A1
              deallocate
              proceed
mother:       try_me_else mother~2
              get_constant shmi A0
              get_constant anakin A1
              proceed
mother~2:     retry_me_else mother~3
              get_constant padme A0
              get_constant luke A1
              proceed
mother~3:     trust_me
              get_constant padme A0
              get_constant leia A1
              proceed
first:        trust_me
              allocate
              get_variable Y0 A0
              get_level Y1
              put_value Y0 A0
              put_value Y2 A1
              call mother
              cut Y1
              deallocate
              proceed
`

var starWarsQueries = stubCompiler{
	"equal(luke, luke).": `
query$:       trust_me
              put_constant luke A0
              put_constant luke A1
              call equal
              halt`,
	"equal(luke, X).": `
query$:       trust_me
              put_constant luke A0
              create_variable Q0 X
              put_value Q0 A1
              call equal
              halt`,
	"mother(X, anakin).": `
query$:       trust_me
              create_variable Q0 X
              put_value Q0 A0
              put_constant anakin A1
              call mother
              halt`,
	"mother(padme, Child).": `
query$:       trust_me
              put_constant padme A0
              create_variable Q0 Child
              put_value Q0 A1
              call mother
              halt`,
	"first(X).": `
query$:       trust_me
              create_variable Q0 X
              put_value Q0 A0
              call first
              halt`,
}

func TestRunQuery_Equal(t *testing.T) {
	m := newMachine(t, starWarsCode, starWarsQueries)

	solutions := runQuery(t, m, "equal(luke, luke).")
	if diff := cmp.Diff([]string{"Success."}, messages(solutions)); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if solutions[0].BacktrackCount != 0 {
		t.Errorf("backtrack count = %d, want 0", solutions[0].BacktrackCount)
	}

	solutions = runQuery(t, m, "equal(luke, X).")
	want := []wam.Solution{{
		Succeed:  true,
		Bindings: []wam.Binding{{Name: "X", Value: wam.Atom("luke")}},
		Output:   []string{"Success: X = luke."},
		OpCount:  12,
	}}
	if diff := cmp.Diff(want, solutions, test_helpers.IgnoreElapsed); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRunQuery_Backtracking(t *testing.T) {
	m := newMachine(t, starWarsCode, starWarsQueries)

	solutions := runQuery(t, m, "mother(X, anakin).")
	if diff := cmp.Diff([]string{"Success: X = shmi.", "Failed."}, messages(solutions)); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if got := solutions[1].BacktrackCount; got != 3 {
		t.Errorf("backtrack count = %d, want 3", got)
	}

	// Last alternative leaves no choice point, so there's no trailing failure.
	solutions = runQuery(t, m, "mother(padme, Child).")
	want := []string{"Success: Child = luke.", "Success: Child = leia."}
	if diff := cmp.Diff(want, messages(solutions)); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRunQuery_Cut(t *testing.T) {
	m := newMachine(t, starWarsCode, starWarsQueries)
	solutions := runQuery(t, m, "first(X).")
	if diff := cmp.Diff([]string{"Success: X = shmi."}, messages(solutions)); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestNextSolution(t *testing.T) {
	m := newMachine(t, starWarsCode, starWarsQueries)
	if err := m.StartQuery("mother(padme, Child)."); err != nil {
		t.Fatalf("StartQuery: got err: %v", err)
	}
	sol, ok := m.NextSolution()
	if !ok || !sol.Succeed {
		t.Fatalf("expected first solution, got %v (ok=%t)", sol, ok)
	}
	if got := sol.Binding("Child"); got != wam.Atom("luke") {
		t.Errorf("Child = %v, want luke", got)
	}
	if !m.HasMore() {
		t.Errorf("expected more solutions")
	}
	sol, ok = m.NextSolution()
	if !ok || sol.Binding("Child") != wam.Atom("leia") {
		t.Errorf("expected Child = leia, got %v (ok=%t)", sol, ok)
	}
	if _, ok := m.NextSolution(); ok {
		t.Errorf("expected no more solutions")
	}
}

func TestRunQuery_UnknownQuery(t *testing.T) {
	m := newMachine(t, starWarsCode, starWarsQueries)
	if _, err := m.RunQuery("foo."); err == nil {
		t.Errorf("expected error for query that doesn't compile")
	}
}

func TestRun_Arithmetic(t *testing.T) {
	m := newMachine(t, "", stubCompiler{
		"X is 6 * 7.": `
query$:       trust_me
              create_variable Q0 X
              is Q0 * 6 7
              halt`,
		"X is Y / 0.": `
query$:       trust_me
              create_variable Q0 X
              put_constant 10 Q1
              is Q0 / Q1 0
              halt`,
		"X = 5, X is 2 + 3.": `
query$:       trust_me
              create_variable Q0 X
              put_constant 5 Q1
              unify_variable Q0 Q1
              is Q0 + 2 3
              halt`,
		"X is a + 1.": `
query$:       trust_me
              create_variable Q0 X
              put_constant a Q1
              is Q0 + Q1 1
              halt`,
		"X is 17 % 5, Y is X - 10.": `
query$:       trust_me
              create_variable Q0 X
              create_variable Q1 Y
              is Q0 % 17 5
              is Q1 - Q0 10
              halt`,
	})
	tests := []struct {
		query string
		want  []string
	}{
		{"X is 6 * 7.", []string{"Success: X = 42."}},
		{"X is Y / 0.", []string{"Failed."}},
		// Bound targets are not compared.
		{"X = 5, X is 2 + 3.", []string{"Failed."}},
		{"X is a + 1.", []string{"Failed."}},
		{"X is 17 % 5, Y is X - 10.", []string{"Success: X = 2, Y = -8."}},
	}
	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			got := messages(runQuery(t, m, test.query))
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("(-want, +got)%s", diff)
			}
		})
	}
}

func TestRun_Comparison(t *testing.T) {
	m := newMachine(t, "", stubCompiler{
		"numbers.": `
query$:       trust_me
              put_constant 10 Q0
              put_constant 9 Q1
              bigger Q0 Q1
              smaller Q1 Q0
              biggereq Q0 Q0
              smallereq Q1 Q1
              unequal Q0 Q1
              halt`,
		"strings.": `
query$:       trust_me
              put_constant abc Q0
              put_constant abd Q1
              smaller Q0 Q1
              halt`,
		"unbound.": `
query$:       trust_me
              put_constant abc Q0
              smaller Q0 Q1
              halt`,
		"equal.": `
query$:       trust_me
              put_constant 1 Q0
              put_constant 1 Q1
              unequal Q0 Q1
              halt`,
	})
	tests := []struct {
		query string
		want  bool
	}{
		{"numbers.", true},
		{"strings.", true},
		{"unbound.", false},
		{"equal.", false},
	}
	for _, test := range tests {
		solutions := runQuery(t, m, test.query)
		if got := solutions[0].Succeed; got != test.want {
			t.Errorf("%s: succeed = %t, want %t", test.query, got, test.want)
		}
	}
}

func TestRun_WriteAndReadLn(t *testing.T) {
	m := newMachine(t, "", stubCompiler{
		"write.": `
query$:       trust_me
              put_constant hello A0
              call write
              call nl
              create_variable Q0 X
              put_value Q0 A0
              call writeln
              halt`,
		"readln.": `
query$:       trust_me
              create_variable Q0 L
              put_value Q0 A0
              call readln
              halt`,
	})
	var stdout bytes.Buffer
	m.Stdout = &stdout
	m.Input = strings.NewReader("first line\nsecond\n")

	solutions := runQuery(t, m, "write.")
	want := []string{"hello", "_", "Success: X = _."}
	if diff := cmp.Diff(want, solutions[0].Output); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if got := stdout.String(); got != "hello\n_\nSuccess: X = _.\n" {
		t.Errorf("stdout = %q", got)
	}

	for _, line := range []string{"first line", "second"} {
		solutions = runQuery(t, m, "readln.")
		if got := solutions[0].Binding("L"); got != wam.Atom(line) {
			t.Errorf("L = %v, want %q", got, line)
		}
	}
	solutions = runQuery(t, m, "readln.")
	if solutions[0].Succeed {
		t.Errorf("expected readln to fail at end of input")
	}
}

func TestRun_TypeChecks(t *testing.T) {
	check := func(pred, value string) string {
		return fmt.Sprintf(`
query$:       trust_me
              put_constant %s A0
              call %s
              halt`, value, pred)
	}
	m := newMachine(t, "", stubCompiler{
		"integer(42).":  check("integer", "42"),
		"integer(a).":   check("integer", "a"),
		"atomic(a).":    check("atomic", "a"),
		"bound(a).":     check("bound", "a"),
		"atomic([a]).": `
query$:       trust_me
              put_constant a Q0
              put_constant [] Q1
              unify_list Q2 Q0 Q1
              put_value Q2 A0
              call atomic
              halt`,
		"atomic(X).": `
query$:       trust_me
              put_value Q0 A0
              call atomic
              halt`,
		"bound(X).": `
query$:       trust_me
              put_value Q0 A0
              call bound
              halt`,
	})
	tests := []struct {
		query string
		want  bool
	}{
		{"integer(42).", true},
		{"integer(a).", false},
		{"atomic(a).", true},
		{"atomic([a]).", false},
		{"atomic(X).", true},
		{"bound(a).", true},
		{"bound(X).", false},
	}
	for _, test := range tests {
		solutions := runQuery(t, m, test.query)
		if got := solutions[0].Succeed; got != test.want {
			t.Errorf("%s: succeed = %t, want %t", test.query, got, test.want)
		}
	}
}

func TestRun_MetaCall(t *testing.T) {
	m := newMachine(t, `
greet:        trust_me
              get_constant hi A0
              proceed
`, stubCompiler{
		"call(greet(hi)).": `
query$:       trust_me
              put_constant greet Q1
              put_constant hi Q2
              put_constant [] Q3
              unify_list Q4 Q2 Q3
              unify_struc Q5 Q1 Q4
              put_value Q5 A0
              call call
              halt`,
		"call(greet(bye)).": `
query$:       trust_me
              put_constant greet Q1
              put_constant bye Q2
              put_constant [] Q3
              unify_list Q4 Q2 Q3
              unify_struc Q5 Q1 Q4
              put_value Q5 A0
              call call
              halt`,
		"call(nothing).": `
query$:       trust_me
              put_constant nothing A0
              call call
              halt`,
		"call(nl).": `
query$:       trust_me
              put_constant nl A0
              call call
              halt`,
	})
	tests := []struct {
		query string
		want  []string
	}{
		{"call(greet(hi)).", []string{"Success."}},
		{"call(greet(bye)).", []string{"Failed."}},
		{"call(nothing).", []string{"Failed."}},
		{"call(nl).", []string{"", "Success."}},
	}
	for _, test := range tests {
		solutions := runQuery(t, m, test.query)
		if diff := cmp.Diff(test.want, solutions[0].Output); diff != "" {
			t.Errorf("%s: (-want, +got)%s", test.query, diff)
		}
	}
}

func TestRun_MaxOpCount(t *testing.T) {
	m := newMachine(t, `
loop:         trust_me
              call loop
`, stubCompiler{
		"loop.": `
query$:       trust_me
              call loop
              halt`,
	})
	m.MaxOpCount = 100
	solutions := runQuery(t, m, "loop.")
	want := []wam.Solution{{
		Output:    []string{"Maximum OpCount reached. Think of this as a stack overflow.", "Failed."},
		OpCount:   102,
		Exhausted: true,
	}}
	ignore := cmp.Options{test_helpers.IgnoreElapsed, test_helpers.IgnoreBacktrackCount}
	if diff := cmp.Diff(want, solutions, ignore); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRun_InvalidOperation(t *testing.T) {
	m := newMachine(t, `
bad:          trust_me
              frobnicate A0
              proceed
`, stubCompiler{
		"bad.": `
query$:       trust_me
              call bad
              halt`,
	})
	if op := m.Program.Statement(1).Op; op != wam.Invalid {
		t.Errorf("op = %v, want invalid", op)
	}
	solutions := runQuery(t, m, "bad.")
	want := []string{"Invalid operation in line 0001", "Failed."}
	if diff := cmp.Diff(want, solutions[0].Output); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRun_CallUnresolved(t *testing.T) {
	m := newMachine(t, "", stubCompiler{
		"missing.": `
query$:       trust_me
              call missing
              halt`,
	})
	solutions := runQuery(t, m, "missing.")
	if diff := cmp.Diff([]string{"Failed."}, messages(solutions)); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRun_AddClauseOrder(t *testing.T) {
	m := newMachine(t, `
p:            trust_me
              get_constant a A0
              proceed
`, stubCompiler{
		"p(X).": `
query$:       trust_me
              create_variable Q0 X
              put_value Q0 A0
              call p
              halt`,
	})
	for _, value := range []string{"b", "c"} {
		code, err := wam.ReadProgram(strings.NewReader(fmt.Sprintf(`
p:            trust_me
              get_constant %s A0
              proceed`, value)))
		if err != nil {
			t.Fatalf("ReadProgram: got err: %v", err)
		}
		if err := m.Program.AddClause("p", code); err != nil {
			t.Fatalf("AddClause: got err: %v", err)
		}
	}
	got := messages(runQuery(t, m, "p(X)."))
	want := []string{"Success: X = a.", "Success: X = b.", "Success: X = c."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRetract(t *testing.T) {
	m := newMachine(t, `
p:            try_me_else p~2
              get_constant a A0
              proceed
p~2:          trust_me
              get_constant b A0
              proceed
q:            trust_me
              call p
              proceed
`, nil)
	if !m.Retract("p") {
		t.Fatalf("expected to retract p")
	}
	want := []string{
		"p: trust_me",
		"get_constant a A0",
		"proceed",
		"q: trust_me",
		"call p",
		"proceed",
	}
	if diff := cmp.Diff(want, listing(m.Program)); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if jump := m.Program.Statement(4).Jump; jump != 0 {
		t.Errorf("call p jump = %d, want 0", jump)
	}
	if !m.Retract("p") {
		t.Fatalf("expected to retract p again")
	}
	if m.Retract("p") {
		t.Errorf("expected no clause left to retract")
	}
	if got := m.Program.LabelIndex("q"); got != 0 {
		t.Errorf("q index = %d, want 0", got)
	}
}

func TestRetract_RelocatesSharedEnv(t *testing.T) {
	// The choice point of r shares the environment of s, whose continuation
	// must be moved only once when p~2 is removed.
	m := newMachine(t, `
p:            try_me_else p~2
              get_constant a A0
              proceed
p~2:          trust_me
              get_constant b A0
              proceed
r:            try_me_else r~2
              proceed
r~2:          trust_me
              proceed
s:            trust_me
              allocate
              call r
              put_constant p A0
              call retract
              deallocate
              proceed
`, stubCompiler{
		"s.": `
query$:       trust_me
              call s
              halt`,
	})
	got := messages(runQuery(t, m, "s."))
	if diff := cmp.Diff([]string{"Success.", "Success."}, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if idx := m.Program.LabelIndex("p"); idx >= 0 {
		t.Errorf("p index = %d, want removed", idx)
	}
}

func TestRetract_RunningAlternative(t *testing.T) {
	// The pending alternative of p is the clause being retracted.
	m := newMachine(t, `
p:            try_me_else p~2
              get_constant 1 A0
              proceed
p~2:          trust_me
              get_constant 2 A0
              proceed
`, stubCompiler{
		"p(X), retract(p).": `
query$:       trust_me
              create_variable Q0 X
              put_value Q0 A0
              call p
              put_constant p A0
              call retract
              halt`,
	})
	got := messages(runQuery(t, m, "p(X), retract(p)."))
	if diff := cmp.Diff([]string{"Success: X = 1."}, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestRetract_RemovedContinuation(t *testing.T) {
	// q retracts the clause of r that called it, so it fails when it
	// proceeds.
	m := newMachine(t, `
r:            try_me_else r~2
              call nope
              proceed
r~2:          trust_me
              allocate
              call q
              deallocate
              proceed
q:            trust_me
              put_constant r A0
              call retract
              proceed
`, stubCompiler{
		"r.": `
query$:       trust_me
              call r
              halt`,
	})
	got := messages(runQuery(t, m, "r."))
	if diff := cmp.Diff([]string{"Failed."}, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if got := m.Program.LastClauseOf("r"); got != 0 {
		t.Errorf("last clause of r = %d, want 0", got)
	}
}

func TestAssert_DuplicateLabel(t *testing.T) {
	// p~2 is not chained to p, so the new clause can't take its label.
	m := newMachine(t, `
p:            trust_me
              get_constant a A0
              proceed
p~2:          trust_me
              get_constant z A0
              proceed
`, stubCompiler{
		"assert(p).": `
query$:       trust_me
              put_constant p A0
              call assert
              halt`,
		"p.": `
p:            trust_me
              proceed`,
	})
	got := messages(runQuery(t, m, "assert(p)."))
	if diff := cmp.Diff([]string{"Failed."}, got); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	if op := m.Program.Statement(0).Op; op != wam.TrustMe {
		t.Errorf("first clause of p = %v, want trust_me", op)
	}
	if got := m.Program.LastClauseOf("p"); got != 0 {
		t.Errorf("last clause of p = %d, want 0", got)
	}
}
