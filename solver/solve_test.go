package solver_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/metrics"
	"github.com/brunokim/prolog-wam/parser"
	"github.com/brunokim/prolog-wam/solver"
	"github.com/brunokim/prolog-wam/test_helpers"
	"github.com/brunokim/prolog-wam/wam"
)

func newSolver(t *testing.T, files ...string) *solver.Solver {
	t.Helper()
	s := solver.New()
	for _, file := range files {
		require.NoError(t, s.LoadProlog(filepath.Join("testdata", file)))
	}
	return s
}

func messages(solutions []wam.Solution) []string {
	msgs := make([]string, len(solutions))
	for i, sol := range solutions {
		msgs[i] = sol.Message()
	}
	return msgs
}

func runQuery(t *testing.T, s *solver.Solver, query string) []wam.Solution {
	t.Helper()
	solutions, err := s.RunQuery(query)
	require.NoError(t, err, "RunQuery(%q)", query)
	return solutions
}

func TestRunQuery_StarWars(t *testing.T) {
	s := newSolver(t, "starwars.pro")
	tests := []struct {
		query string
		want  []string
	}{
		{"equal(luke, luke).", []string{"Success."}},
		{"equal(luke, X).", []string{"Success: X = luke."}},
		{"equal(molecule(carbon, oxygen), molecule(carbon, X)).", []string{"Success: X = oxygen."}},
		{"mother(X, anakin).", []string{"Success: X = shmi.", "Failed."}},
		{"mother(padme, X).", []string{"Success: X = luke.", "Success: X = leia.", "Failed."}},
		{"grandmother(X, luke).", []string{"Success: X = shmi.", "Success: X = jobal.", "Failed."}},
		{"sibling(luke, leia).", []string{"Success.", "Failed."}},
		{"sibling(luke, X).", []string{"Success: X = leia.", "Failed."}},
		{"first_mother(X).", []string{"Success: X = shmi."}},
		{"mother(vader, X).", []string{"Failed."}},
	}
	for _, test := range tests {
		t.Run(test.query, func(t *testing.T) {
			got := messages(runQuery(t, s, test.query))
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("(-want, +got)%s", diff)
			}
		})
	}
}

func TestRunQuery_Identity(t *testing.T) {
	s := newSolver(t, "starwars.pro")
	solutions := runQuery(t, s, "equal(luke, luke).")
	require.Len(t, solutions, 1)
	assert.Equal(t, 0, solutions[0].BacktrackCount)
}

func TestRunQuery_Factorial(t *testing.T) {
	s := newSolver(t, "factorial.pro")
	solutions := runQuery(t, s, "factorial(6, X).")
	want := []wam.Solution{
		{
			Succeed:        true,
			Bindings:       []wam.Binding{{Name: "X", Value: wam.Atom("720")}},
			Output:         []string{"Success: X = 720."},
			BacktrackCount: 6,
		},
		{Output: []string{"Failed."}},
	}
	opts := cmp.Options{test_helpers.IgnoreElapsed, test_helpers.IgnoreCounters}
	if diff := cmp.Diff(want, solutions, opts); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	assert.Equal(t, 6, solutions[0].BacktrackCount)
}

func TestRunQuery_EightQueens(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping eight queens in short mode")
	}
	s := newSolver(t, "queens.pro")
	solutions := runQuery(t, s, "queens(Qs).")
	require.Len(t, solutions, 93)
	seen := make(map[string]bool)
	for i, sol := range solutions[:92] {
		require.True(t, sol.Succeed, "solution #%d", i)
		qs, ok := sol.Binding("Qs").(wam.List)
		require.True(t, ok, "solution #%d: Qs = %v", i, sol.Binding("Qs"))
		assert.Len(t, qs.Items, 8)
		seen[qs.String()] = true
	}
	assert.Len(t, seen, 92, "solutions should be distinct")
	assert.False(t, solutions[92].Succeed)
}

func TestRunQuery_Metalogic(t *testing.T) {
	s := newSolver(t, "metalogic.pro")
	steps := []struct {
		query string
		want  []string
	}{
		{"assert(robot(c3po)).", []string{"Success."}},
		{"robot(X).", []string{"Success: X = c3po."}},
		{"assert(robot(ig88)).", []string{"Success."}},
		{"robot(X).", []string{"Success: X = c3po.", "Success: X = ig88."}},
		{"retract(robot).", []string{"Success."}},
		{"robot(X).", []string{"Success: X = c3po."}},
		{"retractall(robot).", []string{"Success."}},
		{"robot(X).", []string{"Failed."}},
		{"assert(robot(ig88)).", []string{"Success."}},
		{"assert(robot(r2d2)).", []string{"Success."}},
		{"retract(robot).", []string{"Success."}},
		{"robot(X).", []string{"Success: X = ig88."}},
		// The clause asserted by donothing/1 is undone when it backtracks.
		{"assert(robot(c3po)).", []string{"Success."}},
		{"donothing(robot(r2d2)).", []string{"Success."}},
		{"robot(X).", []string{"Success: X = ig88.", "Success: X = c3po."}},
		{"call(foo).", []string{"Failed."}},
		{"call(foo(bar)).", []string{"Failed."}},
		{"call(robot(ig88)).", []string{"Success.", "Failed."}},
		{"unif(male, X).", []string{"Success: X = luke."}},
	}
	for i, step := range steps {
		got := messages(runQuery(t, s, step.query))
		if diff := cmp.Diff(step.want, got); diff != "" {
			t.Fatalf("#%d %s: (-want, +got)%s", i, step.query, diff)
		}
	}
}

func TestRunQuery_IllegalQuery(t *testing.T) {
	var stdout bytes.Buffer
	s := solver.New(solver.WithOutput(&stdout))
	solutions, err := s.RunQuery("mother(X, .")
	assert.True(t, errors.Is(err, solver.ErrIllegalQuery), "got err %v", err)
	assert.True(t, errors.Is(err, parser.ErrSyntax), "got err %v", err)
	want := []wam.Solution{{Output: []string{"Illegal query."}}}
	if diff := cmp.Diff(want, solutions); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	assert.Equal(t, "Illegal query.\n", stdout.String())
}

func TestRunQuery_Output(t *testing.T) {
	var stdout bytes.Buffer
	s := solver.New(
		solver.WithOutput(&stdout),
		solver.WithInput(strings.NewReader("ping\n")))
	require.NoError(t, s.LoadProlog("testdata/metalogic.pro"))
	stdout.Reset()

	solutions := runQuery(t, s, "greet.")
	if diff := cmp.Diff([]string{"hello world", "Success."}, solutions[0].Output); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	assert.Equal(t, "hello world\nSuccess.\n", stdout.String())

	solutions = runQuery(t, s, "echo.")
	if diff := cmp.Diff([]string{"ping", "Success."}, solutions[0].Output); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
	solutions = runQuery(t, s, "echo.")
	assert.False(t, solutions[0].Succeed, "readln should fail at end of input")
}

func TestRunQuery_Exhausted(t *testing.T) {
	s := solver.New()
	require.NoError(t, s.Set("autostop", "1000"))
	require.NoError(t, s.AssertClause("loop :- loop."))
	solutions := runQuery(t, s, "loop.")
	require.Len(t, solutions, 1)
	sol := solutions[0]
	assert.False(t, sol.Succeed)
	assert.True(t, sol.Exhausted)
	want := []string{"Maximum OpCount reached. Think of this as a stack overflow.", "Failed."}
	if diff := cmp.Diff(want, sol.Output); diff != "" {
		t.Errorf("(-want, +got)%s", diff)
	}
}

func TestQuery(t *testing.T) {
	s := newSolver(t, "starwars.pro")
	stream, err := s.Query("mother(padme, X).")
	require.NoError(t, err)
	assert.NotEmpty(t, stream.ID())
	assert.Equal(t, wam.QueryLabel, stream.Code().Statement(0).Label)

	sol, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, wam.Atom("luke"), sol.Binding("X"))
	assert.True(t, stream.HasMore())
	stream.Close()
	stream.Close()

	_, ok = stream.Next()
	assert.False(t, ok, "closed stream should not produce solutions")

	// The solver is released after Close.
	got := messages(runQuery(t, s, "mother(X, anakin)."))
	assert.Equal(t, []string{"Success: X = shmi.", "Failed."}, got)
}

func TestQuery_Drain(t *testing.T) {
	s := newSolver(t, "starwars.pro")
	stream, err := s.Query("mother(padme, X).")
	require.NoError(t, err)
	var got []string
	for {
		sol, ok := stream.Next()
		if !ok {
			break
		}
		got = append(got, sol.Message())
	}
	assert.Equal(t, []string{"Success: X = luke.", "Success: X = leia.", "Failed."}, got)
	assert.False(t, stream.HasMore())
	// Draining releases the solver.
	runQuery(t, s, "equal(a, a).")
}

func TestQuery_Illegal(t *testing.T) {
	s := solver.New()
	_, err := s.Query("foo(")
	assert.True(t, errors.Is(err, solver.ErrIllegalQuery), "got err %v", err)
	// The solver is not held on errors.
	runQuery(t, s, "X = a.")
}

func TestAssertClause(t *testing.T) {
	s := solver.New()
	require.NoError(t, s.AssertClause("color(red)."))
	require.NoError(t, s.AssertClause("color(green)."))
	require.NoError(t, s.AssertClause("bright(X) :- color(X), X \\= red."))

	got := messages(runQuery(t, s, "bright(X)."))
	assert.Equal(t, []string{"Success: X = green."}, got)
	assert.Equal(t, []string{"color", "color~2", "bright"}, s.Labels())
	assert.Equal(t, []string{"color", "bright"}, s.Procedures())

	err := s.AssertClause("color(blue)")
	assert.True(t, errors.Is(err, parser.ErrSyntax), "got err %v", err)
}

func TestLoad(t *testing.T) {
	s := solver.New()
	require.NoError(t, s.LoadWam("testdata/mother.wam"))
	got := messages(runQuery(t, s, "mother(X, anakin)."))
	assert.Equal(t, []string{"Success: X = shmi."}, got)

	err := s.LoadProlog("testdata/missing.pro")
	assert.True(t, errors.Is(err, solver.ErrLoad), "got err %v", err)
	err = s.LoadWam("testdata/missing.wam")
	assert.True(t, errors.Is(err, solver.ErrLoad), "got err %v", err)
}

func TestReconsult(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jedi.pro")
	require.NoError(t, os.WriteFile(path, []byte("jedi(yoda).\njedi(luke).\nsith(vader).\n"), 0o644))

	s := solver.New()
	require.NoError(t, s.LoadProlog(path))
	assert.Equal(t, []string{"Success: X = yoda.", "Success: X = luke."}, messages(runQuery(t, s, "jedi(X).")))

	require.NoError(t, os.WriteFile(path, []byte("jedi(obiwan).\n"), 0o644))
	require.NoError(t, s.Reconsult(path))
	assert.Equal(t, []string{"Success: X = obiwan."}, messages(runQuery(t, s, "jedi(X).")))
	// Procedures missing from the new version are kept.
	assert.Equal(t, []string{"Success: X = vader."}, messages(runQuery(t, s, "sith(X).")))
}

func TestProgram_Copy(t *testing.T) {
	s := solver.New()
	require.NoError(t, s.AssertClause("robot(c3po)."))
	p := s.Program()
	p.Statement(0).SetFunction("halt")
	p.Statement(1).SetArg(0, "r2d2")

	solutions, err := s.RunQuery("robot(X).")
	require.NoError(t, err)
	assert.Equal(t, []string{"Success: X = c3po."}, messages(solutions))
	assert.Equal(t, "trust_me", s.Program().Statement(0).Function)
}

func TestReset(t *testing.T) {
	s := newSolver(t, "starwars.pro")
	assert.NotEmpty(t, s.Labels())
	s.Reset()
	assert.Empty(t, s.Labels())
	assert.Equal(t, []string{"Failed."}, messages(runQuery(t, s, "mother(X, Y).")))
}

func TestSet(t *testing.T) {
	s := solver.New()
	require.NoError(t, s.Set("benchmark", "1"))
	assert.True(t, s.Config().Benchmark)
	err := s.Set("colors", "on")
	assert.Error(t, err)
}

func TestDebugTrace(t *testing.T) {
	dir := t.TempDir()
	s := newSolver(t, "starwars.pro")
	require.NoError(t, s.Set("debug", "1"))
	require.NoError(t, s.Set("debug_dir", dir))

	stream, err := s.Query("mother(X, anakin).")
	require.NoError(t, err)
	id := stream.ID()
	for {
		if _, ok := stream.Next(); !ok {
			break
		}
	}
	bs, err := os.ReadFile(filepath.Join(dir, id+".jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(bs)), "\n")
	assert.Greater(t, len(lines), 1)
	assert.Contains(t, lines[0], `"Clock":0`)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := solver.New(solver.WithMetrics(metrics.New(reg)))
	require.NoError(t, s.LoadProlog("testdata/starwars.pro"))
	runQuery(t, s, "mother(X, anakin).")
	runQuery(t, s, "mother(vader, X).")
	s.RunQuery("mother(")

	// consult itself is a successful query.
	expected := `
# HELP wam_queries_total Total queries by outcome
# TYPE wam_queries_total counter
wam_queries_total{outcome="failure"} 1
wam_queries_total{outcome="illegal"} 1
wam_queries_total{outcome="success"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wam_queries_total"))

	expected = `
# HELP wam_program_edits_total Total program edits by operation
# TYPE wam_program_edits_total counter
wam_program_edits_total{operation="consult"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "wam_program_edits_total"))
}

func TestConcurrentQueries(t *testing.T) {
	s := newSolver(t, "starwars.pro", "factorial.pro")
	var wg sync.WaitGroup
	errs := make(chan string, 20)
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			solutions, err := s.RunQuery("factorial(5, X).")
			if err != nil || solutions[0].Binding("X") != wam.Atom("120") {
				errs <- "factorial(5, X) failed"
			}
		}()
		go func() {
			defer wg.Done()
			solutions, err := s.RunQuery("grandmother(X, luke).")
			if err != nil || len(solutions) != 3 {
				errs <- "grandmother(X, luke) failed"
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}
