// Package solver runs queries against a machine, serializing access to it.
package solver

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brunokim/prolog-wam/config"
	"github.com/brunokim/prolog-wam/errors"
	"github.com/brunokim/prolog-wam/logic"
	"github.com/brunokim/prolog-wam/metrics"
	"github.com/brunokim/prolog-wam/wam"
	"github.com/brunokim/prolog-wam/wam/compiler"
)

var (
	// ErrIllegalQuery is returned when a query can't be compiled.
	ErrIllegalQuery = errors.Kind("illegal query")
	// ErrLoad is returned when a file can't be consulted or loaded.
	ErrLoad = errors.Kind("load failed")
)

const illegalQuery = "Illegal query."

// Solver owns a machine and its program.
type Solver struct {
	mu       sync.Mutex
	m        *wam.Machine
	cfg      *config.Config
	compiler wam.Compiler
	logger   *slog.Logger
	metrics  *metrics.Metrics
	stdout   io.Writer
	input    io.Reader
}

// Option configures a Solver.
type Option func(*Solver)

// WithConfig sets the engine settings. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(s *Solver) { s.cfg = cfg }
}

// WithOutput copies everything written by queries to w.
func WithOutput(w io.Writer) Option {
	return func(s *Solver) { s.stdout = w }
}

// WithInput sets the source of lines for readln.
func WithInput(r io.Reader) Option {
	return func(s *Solver) { s.input = r }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Solver) { s.logger = logger }
}

// WithMetrics records query metrics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Solver) { s.metrics = m }
}

// WithCompiler replaces the compiler used for queries, assert and consult.
func WithCompiler(c wam.Compiler) Option {
	return func(s *Solver) { s.compiler = c }
}

// New creates a solver with an empty program.
func New(opts ...Option) *Solver {
	s := &Solver{
		cfg:    config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.compiler == nil {
		s.compiler = &compiler.Compiler{Logger: s.logger}
	}
	s.m = s.newMachine()
	return s
}

func (s *Solver) newMachine() *wam.Machine {
	m := wam.NewMachine()
	m.Compiler = s.compiler
	m.Logger = s.logger
	m.Stdout = s.stdout
	m.Input = s.input
	s.cfg.Apply(m)
	return m
}

// Config returns the current settings.
func (s *Solver) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cfg
}

// Set changes a setting, as in the console command "set key=value".
func (s *Solver) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cfg.Set(key, value); err != nil {
		return err
	}
	s.cfg.Apply(s.m)
	return nil
}

// Program returns a copy of the program, including the code of the last query.
func (s *Solver) Program() *wam.Program {
	s.mu.Lock()
	defer s.mu.Unlock()
	stmts := s.m.Program.Statements()
	copies := make([]*wam.Statement, len(stmts))
	for i, stmt := range stmts {
		copies[i] = stmt.Clone()
	}
	return wam.NewProgram(copies...)
}

// Reset discards the program.
func (s *Solver) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = s.newMachine()
	s.metrics.ProgramEdit(metrics.Reset, 0)
	s.logger.Info("program cleared")
}

// ---- Queries

// query holds the state of a running query.
type query struct {
	id        string
	text      string
	logger    *slog.Logger
	start     time.Time
	succeeded bool
	exhausted bool
}

// begin compiles text and prepares the machine to run it. Must be called
// with the lock held.
func (s *Solver) begin(text string) (*query, error) {
	q := &query{id: uuid.NewString(), text: text, start: time.Now()}
	q.logger = s.logger.With(slog.String("query_id", q.id))
	s.cfg.Apply(s.m)
	s.m.Logger = q.logger
	s.m.DebugFilename = ""
	if s.cfg.Debug > 0 {
		s.m.DebugFilename = filepath.Join(s.cfg.DebugDir, q.id+".jsonl")
	}
	if err := s.m.StartQuery(text); err != nil {
		q.logger.Info("illegal query", slog.String("query", text), slog.Any("err", err))
		if s.stdout != nil {
			io.WriteString(s.stdout, illegalQuery+"\n")
		}
		s.metrics.ObserveQuery(metrics.Illegal, time.Since(q.start))
		return nil, errors.New("%v: %v", ErrIllegalQuery, err)
	}
	q.logger.Debug("query started", slog.String("query", text))
	return q, nil
}

func (s *Solver) next(q *query) (wam.Solution, bool) {
	sol, ok := s.m.NextSolution()
	if !ok {
		return sol, false
	}
	if sol.Succeed {
		q.succeeded = true
	}
	if sol.Exhausted {
		q.exhausted = true
	}
	s.metrics.ObserveSolution(sol)
	return sol, true
}

// end finishes the query, discarding any alternatives left. Must be called
// with the lock held.
func (s *Solver) end(q *query) {
	s.m.Reset()
	outcome := metrics.Failure
	switch {
	case q.exhausted:
		outcome = metrics.Exhausted
	case q.succeeded:
		outcome = metrics.Success
	}
	elapsed := time.Since(q.start)
	s.metrics.ObserveQuery(outcome, elapsed)
	q.logger.Debug("query finished",
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed))
	s.m.Logger = s.logger
}

func illegalSolution() wam.Solution {
	return wam.Solution{Output: []string{illegalQuery}}
}

// RunQuery runs a query and collects all of its solutions. A failed
// solution, if present, is always the last one.
//
// If the query can't be compiled, it returns a single failed solution with
// output "Illegal query.", and an error wrapping ErrIllegalQuery.
func (s *Solver) RunQuery(text string) ([]wam.Solution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.begin(text)
	if err != nil {
		return []wam.Solution{illegalSolution()}, err
	}
	defer s.end(q)
	var solutions []wam.Solution
	for {
		sol, ok := s.next(q)
		if !ok {
			break
		}
		solutions = append(solutions, sol)
	}
	return solutions, nil
}

// Stream produces the solutions of a query one at a time. It holds the
// solver until it's closed or there are no more solutions.
type Stream struct {
	s      *Solver
	q      *query
	closed bool
}

// Query starts a query whose solutions are computed on demand. The caller
// must call Close if it stops before Next returns false.
func (s *Solver) Query(text string) (*Stream, error) {
	s.mu.Lock()
	q, err := s.begin(text)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	return &Stream{s: s, q: q}, nil
}

// ID returns the query id, used in logs and in the debug trace name.
func (st *Stream) ID() string {
	return st.q.id
}

// Code returns the compiled query.
func (st *Stream) Code() *wam.Program {
	p := st.s.m.Program
	i := p.LabelIndex(wam.QueryLabel)
	if st.closed || i < 0 {
		return wam.NewProgram()
	}
	return wam.NewProgram(p.Statements()[i:]...)
}

// Next runs the query until its next success or failure.
func (st *Stream) Next() (wam.Solution, bool) {
	if st.closed {
		return wam.Solution{}, false
	}
	sol, ok := st.s.next(st.q)
	if !ok {
		st.Close()
	}
	return sol, ok
}

// HasMore returns whether Next may produce another solution.
func (st *Stream) HasMore() bool {
	return !st.closed && st.s.m.HasMore()
}

// Close stops the query and releases the solver. It's safe to call more than once.
func (st *Stream) Close() {
	if st.closed {
		return
	}
	st.closed = true
	st.s.end(st.q)
	st.s.mu.Unlock()
}

// ---- Program edition

// run executes a built-in query and reports whether it succeeded.
func (s *Solver) run(text string) (bool, error) {
	solutions, err := s.RunQuery(text)
	if err != nil {
		return false, err
	}
	return len(solutions) > 0 && solutions[0].Succeed, nil
}

func (s *Solver) programSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Program.Len()
}

// AssertClause compiles a clause and appends it to its procedure.
func (s *Solver) AssertClause(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, err := s.compiler.CompileClause(text)
	if err != nil {
		return err
	}
	if code.Len() == 0 {
		return nil
	}
	name := code.Statement(0).Label
	if err := s.m.Program.AddClause(name, code); err != nil {
		return err
	}
	s.metrics.ProgramEdit(metrics.Assert, s.m.Program.Len())
	s.logger.Debug("asserted clause", slog.String("procedure", name))
	return nil
}

func (s *Solver) loadFile(builtin, operation, path string) error {
	ok, err := s.run(builtin + "(" + logic.FormatAtom(path) + ").")
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("%v: %s(%s)", ErrLoad, builtin, path)
	}
	size := s.programSize()
	s.metrics.ProgramEdit(operation, size)
	s.logger.Info("loaded file",
		slog.String("path", path),
		slog.String("builtin", builtin),
		slog.Int("statements", size))
	return nil
}

// LoadProlog consults a source file, appending its clauses to the program.
func (s *Solver) LoadProlog(path string) error {
	return s.loadFile("consult", metrics.Consult, path)
}

// Reconsult replaces the procedures defined in a source file.
func (s *Solver) Reconsult(path string) error {
	return s.loadFile("reconsult", metrics.Consult, path)
}

// LoadWam appends a bytecode file to the program.
func (s *Solver) LoadWam(path string) error {
	return s.loadFile("load", metrics.Load, path)
}

// Labels returns the labels of the program, without the query.
func (s *Solver) Labels() []string {
	var labels []string
	for _, label := range s.Program().Labels() {
		if label != wam.QueryLabel {
			labels = append(labels, label)
		}
	}
	return labels
}

// Procedures returns the names of the user procedures.
func (s *Solver) Procedures() []string {
	var names []string
	for _, label := range s.Labels() {
		if !strings.Contains(label, "~") {
			names = append(names, label)
		}
	}
	return names
}
