package wam

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brunokim/prolog-wam/errors"
)

// DefaultMaxOpCount is the default limit of steps in a single run.
const DefaultMaxOpCount = 50000000

// NewMachine creates a new abstract machine with an empty program.
func NewMachine() *Machine {
	m := new(Machine)
	m.Program = NewProgram()
	m.MaxOpCount = DefaultMaxOpCount
	m.Reset()
	return m
}

// Reset clears registers, stacks and query variables, keeping the program.
func (m *Machine) Reset() {
	m.Args = []*Cell{NewCell()}
	m.Env = &Env{Continuation: rootContinuation}
	m.Continuation = -1
	m.Trail = NewTrail(m)
	m.QueryVars = nil
	m.displayed = nil
	m.ChoicePoint = nil
	m.CutPoint = nil
}

func (m *Machine) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

// StartQuery compiles a query and prepares the machine to run it. Any
// previous query is removed from the program.
func (m *Machine) StartQuery(text string) error {
	if m.Compiler == nil {
		return errors.New("no compiler configured")
	}
	m.Reset()
	m.Program.DeleteFrom(QueryLabel)
	m.done = true
	query, err := m.Compiler.CompileQuery(text)
	if err != nil {
		return err
	}
	if m.Debug > 1 {
		m.logger().Debug("query code", slog.String("code", query.String()))
	}
	if err := m.Program.Append(query); err != nil {
		return err
	}
	m.Program.UpdateLabels()
	m.PC = m.Program.LabelIndex(QueryLabel)
	m.done = false
	return nil
}

// NextSolution runs the current query until its next success or failure.
//
// After a success, the machine backtracks right away if there's a choice
// point left, so that the next call will look for another solution. It
// returns false when there are no more solutions to look for.
func (m *Machine) NextSolution() (Solution, bool) {
	if m.done {
		return Solution{}, false
	}
	m.out = newLineBuffer()
	start := time.Now()
	m.Run()
	sol := Solution{
		Elapsed:        time.Since(start),
		OpCount:        m.OpCount,
		BacktrackCount: m.BacktrackCount,
		Exhausted:      m.Exhausted,
	}
	if !m.Failed {
		sol.Succeed = true
		sol.Bindings = m.bindings()
	}
	m.endLine()
	m.writeLn(sol.Message())
	sol.Output = m.out.flush()
	m.ChoicePoint = liveChoicePoint(m.ChoicePoint)
	if m.Failed || m.ChoicePoint == nil {
		m.done = true
		m.Reset()
	} else {
		m.backtrack()
	}
	return sol, true
}

// HasMore returns whether NextSolution may produce another solution.
func (m *Machine) HasMore() bool {
	return !m.done
}

// RunQuery runs a query and collects all of its solutions. A failed
// solution, if present, is always the last one.
func (m *Machine) RunQuery(text string) ([]Solution, error) {
	if err := m.StartQuery(text); err != nil {
		return nil, err
	}
	var solutions []Solution
	for {
		sol, ok := m.NextSolution()
		if !ok {
			break
		}
		solutions = append(solutions, sol)
	}
	return solutions, nil
}

func (m *Machine) bindings() []Binding {
	var bs []Binding
	for _, i := range m.displayed {
		q := m.QueryVars[i]
		bs = append(bs, Binding{Name: q.Name, Value: Materialize(q)})
	}
	return bs
}

// Run executes statements from PC until it halts or runs out of alternatives.
//
// The outcome is stored in Failed and Exhausted. On failure, every choice
// point is discarded and the trail is completely undone.
func (m *Machine) Run() {
	if m.MaxOpCount <= 0 {
		m.MaxOpCount = DefaultMaxOpCount
	}
	if m.out == nil {
		m.out = newLineBuffer()
	}
	m.OpCount, m.BacktrackCount = 0, 0
	m.Failed, m.Exhausted = true, false
	f := m.debugInit()
	defer m.debugClose(f)
	for m.PC >= 0 {
		m.Failed = false
		if m.PC >= m.Program.Len() {
			m.invalidOperation(nil)
			continue
		}
		s := m.Program.Statement(m.PC)
		m.debugWrite(f, s)
		n := m.OpCount
		m.OpCount++
		if n > m.MaxOpCount {
			m.writeLn("Maximum OpCount reached. Think of this as a stack overflow.")
			m.logger().Warn("maximum op count reached", slog.Int("max_op_count", m.MaxOpCount))
			m.Failed = true
			m.Exhausted = true
			break
		}
		if s.Op == Halt {
			break
		}
		m.execute(s)
	}
	if m.Failed {
		for m.ChoicePoint != nil {
			m.backtrack()
		}
		m.backtrack()
	}
}

// ---- Registers

func grow(cells []*Cell, i int) []*Cell {
	for len(cells) <= i {
		cells = append(cells, NewCell())
	}
	return cells
}

// ref returns the cell at addr, creating it if needed.
func (m *Machine) ref(addr Addr) *Cell {
	switch a := addr.(type) {
	case RegAddr:
		m.Args = grow(m.Args, int(a))
		return m.Args[a]
	case StackAddr:
		if m.Env == nil {
			return nil
		}
		m.Env.Vars = grow(m.Env.Vars, int(a))
		return m.Env.Vars[a]
	case QueryAddr:
		m.QueryVars = grow(m.QueryVars, int(a))
		return m.QueryVars[a]
	}
	return nil
}

// refs returns the cells for the first n operands of s, or false if any is not an address.
func (m *Machine) refs(s *Statement, n int) ([]*Cell, bool) {
	cells := make([]*Cell, n)
	for i := range cells {
		cells[i] = m.ref(s.addr(i))
		if cells[i] == nil {
			return nil, false
		}
	}
	return cells, true
}

// ---- Execution

func (m *Machine) execute(s *Statement) {
	switch s.Op {
	case Allocate:
		// Save continuation in a new environment.
		m.Env = &Env{Continuation: m.Continuation, Prev: m.Env}
		m.PC++
	case Deallocate:
		// Restore continuation from the environment.
		if m.Env == nil {
			m.invalidOperation(s)
			return
		}
		m.Continuation = m.Env.Continuation
		m.Env = m.Env.Prev
		m.PC++
	case Call:
		m.call(s.Jump)
	case Proceed:
		if m.Continuation == deadCode {
			m.backtrack()
			return
		}
		m.PC = m.Continuation
	case TryMeElse, RetryMeElse:
		// Both push a choice point for the next alternative.
		m.pushChoicePoint(s.Jump)
		m.PC++
	case TrustMe, Noop:
		m.PC++
	case GetLevel:
		v := m.ref(s.addr(0))
		if v == nil {
			m.invalidOperation(s)
			return
		}
		v.CutLevel = m.CutPoint
		m.PC++
	case Cut:
		v := m.ref(s.addr(0))
		if v == nil {
			m.invalidOperation(s)
			return
		}
		m.ChoicePoint = v.CutLevel
		m.PC++
	case GetVariable:
		cells, ok := m.refs(s, 2)
		if !ok {
			m.invalidOperation(s)
			return
		}
		cells[0].CopyFrom(cells[1])
		m.PC++
	case GetValue:
		cells, ok := m.refs(s, 2)
		m.succeedIf(ok && m.unify(cells[1], cells[0]))
	case GetConstant:
		m.getConstant(s.Arg(0), m.ref(s.addr(1)))
	case PutConstant:
		a := m.ref(s.addr(1))
		if a == nil {
			m.invalidOperation(s)
			return
		}
		a.Tag = Con
		a.Value = s.Arg(0)
		m.PC++
	case PutValue:
		cells, ok := m.refs(s, 2)
		if !ok {
			m.invalidOperation(s)
			return
		}
		cells[1].CopyFrom(cells[0])
		m.PC++
	case PutVariable:
		cells, ok := m.refs(s, 2)
		if !ok {
			m.invalidOperation(s)
			return
		}
		v := cells[0].Deref()
		cells[1].Tag = Ref
		cells[1].Ref = v
		m.PC++
	case UnifyVariable:
		cells, ok := m.refs(s, 2)
		m.succeedIf(ok && m.unify(cells[0], cells[1]))
	case UnifyList:
		cells, ok := m.refs(s, 3)
		m.succeedIf(ok && m.unifyCompound(Lis, cells[0], cells[1], cells[2]))
	case UnifyStruc:
		cells, ok := m.refs(s, 3)
		m.succeedIf(ok && m.unifyCompound(Str, cells[0], cells[1], cells[2]))
	case Bigger, Smaller, BiggerEq, SmallerEq, Unequal:
		cells, ok := m.refs(s, 2)
		m.succeedIf(ok && m.compare(s.Op, cells[0], cells[1]))
	case Is:
		m.is(s)
	case CreateVariable:
		m.createVariable(s)
	default:
		m.invalidOperation(s)
	}
}

func (m *Machine) succeedIf(ok bool) {
	if ok {
		m.PC++
	} else {
		m.backtrack()
	}
}

func (m *Machine) invalidOperation(s *Statement) {
	m.writeLn(fmt.Sprintf("Invalid operation in line %04d", m.PC))
	var text string
	if s != nil {
		text = s.String()
	}
	m.logger().Error("invalid operation", slog.Int("pc", m.PC), slog.String("statement", text))
	m.backtrack()
}

func (m *Machine) call(target int) {
	if target >= 0 {
		m.Continuation = m.PC + 1
		m.CutPoint = m.ChoicePoint
		m.PC = target
		return
	}
	m.callBuiltin(target)
}

func (m *Machine) pushChoicePoint(alternative int) {
	args := make([]*Cell, len(m.Args))
	for i, arg := range m.Args {
		args[i] = arg.Clone()
	}
	m.ChoicePoint = &ChoicePoint{
		Prev:         m.ChoicePoint,
		NextClause:   alternative,
		Args:         args,
		TrailSize:    m.Trail.Len(),
		Env:          m.Env,
		CutPoint:     m.CutPoint,
		Continuation: m.Continuation,
	}
}

// backtrack restores the state saved in the latest choice point and pops
// it. Without choice points, it undoes the whole trail and stops the machine.
func (m *Machine) backtrack() {
	m.BacktrackCount++
	m.Failed = true
	cp := liveChoicePoint(m.ChoicePoint)
	if cp == nil {
		m.ChoicePoint = nil
		m.PC = -1
		m.Trail.unwind(0)
		return
	}
	m.Continuation = cp.Continuation
	m.PC = cp.NextClause
	m.Env = cp.Env
	m.Trail.unwind(cp.TrailSize)
	m.Args = cp.Args
	m.CutPoint = cp.CutPoint
	m.ChoicePoint = cp.Prev
}

// liveChoicePoint skips choice points whose alternative was removed.
func liveChoicePoint(cp *ChoicePoint) *ChoicePoint {
	for cp != nil && cp.NextClause == deadCode {
		cp = cp.Prev
	}
	return cp
}

// ---- Unification

func (m *Machine) bind(c, value *Cell) {
	m.Trail.Push(c)
	c.CopyFrom(value)
}

// unify makes two terms equal, binding unbound variables along the way.
//
// Bindings done before a failure are not undone here; the caller is
// expected to backtrack.
func (m *Machine) unify(a, b *Cell) bool {
	stack := []*Cell{a, b}
	for len(stack) > 0 {
		n := len(stack)
		c1, c2 := stack[n-2], stack[n-1]
		stack = stack[:n-2]
		if c1 == nil || c2 == nil {
			return false
		}
		c1, c2 = c1.Deref(), c2.Deref()
		if c1 == c2 {
			continue
		}
		switch {
		case c1.Tag == Ref:
			m.bind(c1, c2)
		case c2.Tag == Ref:
			m.bind(c2, c1)
		case c1.Tag == Con && c2.Tag == Con:
			if c1.Value != c2.Value {
				return false
			}
		case c1.Tag == Lis && c2.Tag == Lis, c1.Tag == Str && c2.Tag == Str:
			// Push tails first, so that heads are unified first.
			stack = append(stack, c1.Tail, c2.Tail, c1.Head, c2.Head)
		default:
			return false
		}
	}
	return true
}

// unifyCompound unifies c with a list or struct cell built from head and tail.
func (m *Machine) unifyCompound(tag Tag, c, head, tail *Cell) bool {
	c = c.Deref()
	switch c.Tag {
	case Ref:
		m.Trail.Push(c)
		c.Tag = tag
		c.Head = head
		c.Tail = tail
		return true
	case tag:
		return m.unify(head, c.Head) && m.unify(tail, c.Tail)
	}
	return false
}

func (m *Machine) getConstant(value string, c *Cell) {
	if c == nil {
		m.invalidOperation(m.Program.Statement(m.PC))
		return
	}
	c = c.Deref()
	switch {
	case c.Tag == Ref:
		m.bind(c, NewConstant(value))
		m.PC++
	case c.Tag == Con && c.Value == value:
		m.PC++
	default:
		m.backtrack()
	}
}

// ---- Arithmetic and comparison

func (m *Machine) compare(op Opcode, a, b *Cell) bool {
	a, b = a.Deref(), b.Deref()
	if a.Tag != Con || b.Tag != Con {
		return false
	}
	return comparators[op](compareConstants(a.Value, b.Value))
}

// operand returns the integer value of a literal number or of a variable bound to one.
func (m *Machine) operand(s *Statement, i int) (int64, bool) {
	if n, ok := parseNumber(s.Arg(i)); ok {
		return n, true
	}
	c := m.ref(s.addr(i))
	if c == nil {
		return 0, false
	}
	c = c.Deref()
	if c.Tag != Con {
		return 0, false
	}
	return parseNumber(c.Value)
}

func evaluate(op string, x, y int64) (int64, bool) {
	switch op {
	case "+":
		return x + y, true
	case "-":
		return x - y, true
	case "*":
		return x * y, true
	case "/":
		if y == 0 {
			return 0, false
		}
		return x / y, true
	case "%":
		if y == 0 {
			return 0, false
		}
		return x % y, true
	}
	return 0, false
}

// is evaluates "is Target Op X Y". The target must be unbound: it's not
// compared against an existing value.
func (m *Machine) is(s *Statement) {
	x, ok1 := m.operand(s, 2)
	y, ok2 := m.operand(s, 3)
	target := m.ref(s.addr(0))
	if !ok1 || !ok2 || target == nil {
		m.backtrack()
		return
	}
	var op string
	if arg := s.Arg(1); arg != "" {
		op = arg[:1]
	}
	z, ok := evaluate(op, x, y)
	target = target.Deref()
	if !ok || target.Tag != Ref {
		m.backtrack()
		return
	}
	m.bind(target, NewConstant(strconv.FormatInt(z, 10)))
	m.PC++
}

func (m *Machine) createVariable(s *Statement) {
	name := s.Arg(1)
	if name != "_" {
		addr, ok := s.addr(0).(QueryAddr)
		if !ok {
			m.invalidOperation(s)
			return
		}
		q := m.ref(addr)
		q.Name = name
		i := int(addr)
		found := false
		for _, j := range m.displayed {
			if j == i {
				found = true
				break
			}
		}
		if !found {
			m.displayed = insertSorted(m.displayed, i)
		}
	}
	m.PC++
}

func insertSorted(xs []int, x int) []int {
	i := len(xs)
	for i > 0 && xs[i-1] > x {
		i--
	}
	xs = append(xs, 0)
	copy(xs[i+1:], xs[i:])
	xs[i] = x
	return xs
}

// ---- Program edition

// Retract removes the last clause of the procedure name. It returns false
// if there's no such procedure.
func (m *Machine) Retract(name string) bool {
	last := m.Program.LastClauseOf(name)
	if last < 0 {
		return false
	}
	prev := m.Program.LastClauseButOneOf(name)
	m.removeLines(last)
	if prev >= 0 {
		s := m.Program.Statement(prev)
		s.SetFunction("trust_me")
		s.SetArg(0, "")
		s.Jump = -1
	}
	return true
}

// removeLines deletes the clause starting at line, relocating every saved
// code address past it. Choice points that would resume inside the removed
// code become dead, and continuations into it fail when taken. If the
// current statement was removed, the machine backtracks.
func (m *Machine) removeLines(line int) {
	n := m.Program.DeleteFromLine(line)
	if n == 0 {
		return
	}
	removed := func(addr int) bool {
		return addr >= line && addr < line+n
	}
	relocate := func(addr int) int {
		switch {
		case removed(addr):
			return deadCode
		case addr >= line+n && addr != rootContinuation:
			return addr - n
		}
		return addr
	}
	// Environments are shared between choice points, so each one is
	// relocated only once.
	seen := make(map[*Env]bool)
	relocateEnvs := func(env *Env) {
		for ; env != nil && !seen[env]; env = env.Prev {
			seen[env] = true
			env.Continuation = relocate(env.Continuation)
		}
	}
	m.Continuation = relocate(m.Continuation)
	relocateEnvs(m.Env)
	for cp := m.ChoicePoint; cp != nil; cp = cp.Prev {
		if removed(cp.NextClause) || removed(cp.Continuation) {
			cp.NextClause = deadCode
		} else {
			cp.NextClause = relocate(cp.NextClause)
		}
		cp.Continuation = relocate(cp.Continuation)
		relocateEnvs(cp.Env)
	}
	if m.PC >= 0 && m.PC >= line {
		if m.PC >= line+n {
			m.PC -= n
		} else {
			m.backtrack()
		}
	}
}
