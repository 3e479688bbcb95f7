// Package wam implements an interpreter for a Warren Abstract Machine.
//
// The WAM is a design for a register-based Prolog machine,
// that enjoys good performance and ease of translation to machine code.
//
// The classic design expects a huge area of contiguous memory to
// contain the machine's stack, heap and registers. We sidestep this model
// to make use of regular Go pointers whenever possible, leveraging the
// runtime's garbage collector: a term is a mutable *Cell, and binding a
// variable overwrites the cell in place after saving it in the trail.
//
// The machine is composed of a list of registers and two stacks: the
// environment (or AND-)stack, that stores local variables of clause calls,
// and the choicepoint (or OR-)stack, that stores the sequence of possible
// alternate steps to take on failure.
//
// Code is a flat list of statements, addressed by their index, as written
// in the textual bytecode format:
//
//	append:       try_me_else append~2
//	              get_constant [] A0
//	              ...
//
// Labels are resolved to indices once, when linking the program.
package wam

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// ---- Address types

// Addr represents an address within the machine's memory.
type Addr interface {
	fmt.Stringer
	isAddr()
}

// RegAddr is the index of an argument register.
type RegAddr int

// StackAddr is the index of a local variable in the current environment.
type StackAddr int

// QueryAddr is the index of a query variable.
type QueryAddr int

func (a RegAddr) isAddr()   {}
func (a StackAddr) isAddr() {}
func (a QueryAddr) isAddr() {}

func (a RegAddr) String() string   { return fmt.Sprintf("A%d", a) }
func (a StackAddr) String() string { return fmt.Sprintf("Y%d", a) }
func (a QueryAddr) String() string { return fmt.Sprintf("Q%d", a) }

// ParseAddr decodes operands like "A0", "Y12" or "Q3". It returns nil for
// any other text, such as constants and labels.
func ParseAddr(s string) Addr {
	if len(s) < 2 {
		return nil
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 0 {
		return nil
	}
	switch s[0] {
	case 'A':
		return RegAddr(n)
	case 'Y':
		return StackAddr(n)
	case 'Q':
		return QueryAddr(n)
	}
	return nil
}

// ---- Instructions

// Opcode identifies the operation of a statement.
type Opcode int

// Opcode values are part of the bytecode contract and must not change.
const (
	Invalid        Opcode = -1
	Allocate       Opcode = 1
	Bigger         Opcode = 2
	Call           Opcode = 3
	CreateVariable Opcode = 4
	Cut            Opcode = 5
	Deallocate     Opcode = 6
	GetConstant    Opcode = 7
	GetValue       Opcode = 8
	GetVariable    Opcode = 9
	Halt           Opcode = 10
	Is             Opcode = 11
	GetLevel       Opcode = 12
	Noop           Opcode = 13
	Proceed        Opcode = 14
	PutConstant    Opcode = 15
	PutValue       Opcode = 16
	PutVariable    Opcode = 17
	RetryMeElse    Opcode = 18
	Smaller        Opcode = 19
	TrustMe        Opcode = 20
	TryMeElse      Opcode = 21
	UnifyList      Opcode = 22
	UnifyStruc     Opcode = 23
	Unequal        Opcode = 24
	UnifyVariable  Opcode = 25
	BiggerEq       Opcode = 27
	SmallerEq      Opcode = 28
)

var opcodeNames = map[Opcode]string{
	Allocate:       "allocate",
	Bigger:         "bigger",
	Call:           "call",
	CreateVariable: "create_variable",
	Cut:            "cut",
	Deallocate:     "deallocate",
	GetConstant:    "get_constant",
	GetValue:       "get_value",
	GetVariable:    "get_variable",
	Halt:           "halt",
	Is:             "is",
	GetLevel:       "get_level",
	Noop:           "noop",
	Proceed:        "proceed",
	PutConstant:    "put_constant",
	PutValue:       "put_value",
	PutVariable:    "put_variable",
	RetryMeElse:    "retry_me_else",
	Smaller:        "smaller",
	TrustMe:        "trust_me",
	TryMeElse:      "try_me_else",
	UnifyList:      "unify_list",
	UnifyStruc:     "unify_struc",
	Unequal:        "unequal",
	UnifyVariable:  "unify_variable",
	BiggerEq:       "biggereq",
	SmallerEq:      "smallereq",
}

var opcodes = func() map[string]Opcode {
	m := map[string]Opcode{"nop": Noop}
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

// ParseOpcode returns the opcode for a mnemonic, or Invalid.
func ParseOpcode(name string) Opcode {
	if op, ok := opcodes[name]; ok {
		return op
	}
	return Invalid
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("invalid(%d)", int(op))
}

// Statement is a single instruction of a program.
type Statement struct {
	// Label is the name of a clause entry point, if any.
	Label string
	// Function is the mnemonic as written; it's preserved for invalid opcodes.
	Function string
	Op       Opcode
	Args     []string
	// Jump is the resolved target of call, try_me_else and retry_me_else.
	// Negative values other than -1 identify built-in predicates.
	Jump int

	addrs []Addr
}

// NewStatement creates a statement. A third operand with spaces is split
// into further operands, as with "is Y4 - Y0 Y3".
func NewStatement(label, function string, args ...string) *Statement {
	var ops []string
	for i, arg := range args {
		if i == 2 && strings.Contains(arg, " ") {
			ops = append(ops, strings.Fields(arg)...)
			continue
		}
		ops = append(ops, arg)
	}
	s := &Statement{Label: label, Jump: -1}
	s.SetFunction(function)
	s.setArgs(ops)
	return s
}

// SetFunction changes the operation of s.
func (s *Statement) SetFunction(function string) {
	s.Function = function
	s.Op = ParseOpcode(function)
}

// SetArg replaces the i-th operand of s.
func (s *Statement) SetArg(i int, arg string) {
	args := make([]string, len(s.Args))
	copy(args, s.Args)
	for len(args) <= i {
		args = append(args, "")
	}
	args[i] = arg
	s.setArgs(args)
}

func (s *Statement) setArgs(args []string) {
	for len(args) > 0 && args[len(args)-1] == "" {
		args = args[:len(args)-1]
	}
	s.Args = args
	s.addrs = make([]Addr, len(args))
	for i, arg := range args {
		s.addrs[i] = ParseAddr(arg)
	}
}

// Clone returns a copy of s that can be changed independently.
func (s *Statement) Clone() *Statement {
	c := *s
	c.Args = append([]string(nil), s.Args...)
	c.addrs = append([]Addr(nil), s.addrs...)
	return &c
}

// Arg returns the i-th operand, or "" if absent.
func (s *Statement) Arg(i int) string {
	if i < len(s.Args) {
		return s.Args[i]
	}
	return ""
}

func (s *Statement) addr(i int) Addr {
	if i < len(s.addrs) {
		return s.addrs[i]
	}
	return nil
}

// Dump formats a statement as a line of the bytecode text format.
func (s *Statement) Dump() string {
	var b strings.Builder
	if s.Label != "" {
		label := s.Label
		if strings.ContainsAny(label, " :") {
			label = "'" + label + "'"
		}
		fmt.Fprintf(&b, "%-14s", label+": ")
	} else {
		b.WriteString(strings.Repeat(" ", 14))
	}
	b.WriteString(s.Function)
	for _, arg := range s.Args {
		b.WriteByte(' ')
		if strings.Contains(arg, " ") || arg == "" {
			b.WriteString("'" + arg + "'")
		} else {
			b.WriteString(arg)
		}
	}
	return b.String()
}

func (s *Statement) String() string {
	if s.Jump >= 0 {
		return fmt.Sprintf("%s (%d)", s.Dump(), s.Jump)
	}
	return s.Dump()
}

// ---- Stack frames

// Env represents an AND-stack frame with the environment associated to a call.
type Env struct {
	// Previous environment.
	Prev *Env
	// Continuation pointer.
	Continuation int
	// Local variables, grown as they are first accessed.
	Vars []*Cell
}

// ChoicePoint represents an OR-stack frame with the state associated to an alternative code path.
type ChoicePoint struct {
	// Previous choice point.
	Prev *ChoicePoint
	// Next clause to try.
	NextClause int

	// Machine vars to restore
	Args         []*Cell
	TrailSize    int
	Env          *Env
	CutPoint     *ChoicePoint
	Continuation int
}

// rootContinuation is the continuation of the environment at the bottom of the stack.
const rootContinuation = 999999999

// deadCode replaces saved addresses into code that was removed.
const deadCode = -2

// ---- Machine

// Compiler turns source text into code that can be appended to a machine's program.
type Compiler interface {
	CompileQuery(text string) (*Program, error)
	CompileClause(text string) (*Program, error)
	CompileFile(filename string) (*Program, error)
}

// Machine represents an abstract machine state.
type Machine struct {
	// Program holds every statement loaded, including the current query.
	Program *Program

	// Compiler used by the consult and assert built-ins.
	Compiler Compiler

	// Current statement index.
	PC int

	// Location to return after call.
	Continuation int

	// Argument registers.
	Args []*Cell

	// Variables of the current query.
	QueryVars []*Cell

	// Trail of variables that need to be unbound on backtrack.
	Trail *Trail

	// Latest environment.
	Env *Env

	// Latest choice point.
	ChoicePoint *ChoicePoint

	// Choice point to restore after a cut, set on every call.
	CutPoint *ChoicePoint

	// Maximum number of steps for a single run.
	MaxOpCount int

	// Counters and outcome of the last run.
	OpCount        int
	BacktrackCount int
	Failed         bool
	Exhausted      bool

	// Debug level: 1 traces statements, 2 also registers and trail.
	Debug int

	// File to output the debug trace.
	DebugFilename string

	// Directories searched by consult and load for relative names.
	SearchPaths []string

	// Logger for machine events. Defaults to slog.Default().
	Logger *slog.Logger

	// Stdout receives a copy of everything written by the I/O built-ins.
	Stdout io.Writer

	// Source of lines for readln.
	Input io.Reader

	displayed []int
	out       *lineBuffer
	reader    *bufio.Reader
	readerSrc io.Reader
	done      bool
}

func formatCells(cells []*Cell) string {
	if len(cells) == 0 {
		return ""
	}
	xs := make([]string, len(cells))
	for i, cell := range cells {
		xs[i] = fmt.Sprintf("#%d: %v", i, cell)
	}
	return "\n\t" + strings.Join(xs, "\n\t")
}

func indent(s string) string {
	return "\t" + strings.ReplaceAll(s, "\n", "\n\t")
}

func (env *Env) String() string {
	return fmt.Sprintf(`%% %p
continuation: %d
vars:%s`,
		env, env.Continuation, formatCells(env.Vars))
}

func (cpt *ChoicePoint) String() string {
	return fmt.Sprintf(`%% %p
env: %p
trail_size: %d
next_clause: %d
args:%s
continuation: %d`,
		cpt, cpt.Env, cpt.TrailSize, cpt.NextClause, formatCells(cpt.Args), cpt.Continuation)
}

func (m *Machine) String() string {
	var stmt string
	if m.PC >= 0 && m.PC < m.Program.Len() {
		stmt = m.Program.Statement(m.PC).String()
	}
	// Environments
	var envs []string
	for env := m.Env; env != nil; env = env.Prev {
		envs = append(envs, indent(env.String()))
	}
	// Choice points
	var cpts []string
	for cpt := m.ChoicePoint; cpt != nil; cpt = cpt.Prev {
		cpts = append(cpts, indent(cpt.String()))
	}
	return fmt.Sprintf(`%% %p
pc: %d %s
continuation: %d
registers:%s
query:%s
trail:%s
environments:
%s
choice_points:
%s`,
		m, m.PC, stmt, m.Continuation, formatCells(m.Args), formatCells(m.QueryVars),
		formatCells(m.Trail.entries), strings.Join(envs, "\n"), strings.Join(cpts, "\n"))
}
