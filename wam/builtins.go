package wam

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Built-in predicate codes, used as call targets. They are part of the
// bytecode contract and must not change.
const (
	BuiltinWrite      = -10
	BuiltinWriteLn    = -11
	BuiltinNewLine    = -12
	BuiltinConsult    = -13
	BuiltinReconsult  = -14
	BuiltinLoad       = -15
	BuiltinAssert     = -16
	BuiltinRetractOne = -17
	BuiltinRetractAll = -18
	BuiltinIsInteger  = -19
	BuiltinIsAtom     = -20
	BuiltinIsBound    = -21
	BuiltinReadLn     = -22
	BuiltinCall       = -23
)

// builtinCodes maps predicate names to built-in codes. User-defined
// predicates with the same name take precedence.
var builtinCodes = map[string]int{
	"write":      BuiltinWrite,
	"writeln":    BuiltinWriteLn,
	"nl":         BuiltinNewLine,
	"newline":    BuiltinNewLine,
	"consult":    BuiltinConsult,
	"reconsult":  BuiltinReconsult,
	"load":       BuiltinLoad,
	"assert":     BuiltinAssert,
	"assertz":    BuiltinAssert,
	"retract":    BuiltinRetractOne,
	"retractone": BuiltinRetractOne,
	"retractall": BuiltinRetractAll,
	"integer":    BuiltinIsInteger,
	"atomic":     BuiltinIsAtom,
	"bound":      BuiltinIsBound,
	"readln":     BuiltinReadLn,
	"call":       BuiltinCall,
}

// BuiltinCode returns the code of a built-in predicate.
func BuiltinCode(name string) (int, bool) {
	code, ok := builtinCodes[name]
	return code, ok
}

// builtin is a predicate implemented natively. It reads its argument from
// A0, and returns false to fail.
type builtin struct {
	name string
	fn   func(m *Machine) bool
	// jumps is set if the built-in moves the PC itself on success.
	jumps bool
}

var builtins map[int]builtin

func init() {
	builtins = map[int]builtin{
		BuiltinWrite:      {name: "write", fn: (*Machine).builtinWrite},
		BuiltinWriteLn:    {name: "writeln", fn: (*Machine).builtinWriteLn},
		BuiltinNewLine:    {name: "nl", fn: (*Machine).builtinNewLine},
		BuiltinConsult:    {name: "consult", fn: (*Machine).builtinConsult},
		BuiltinReconsult:  {name: "reconsult", fn: (*Machine).builtinReconsult},
		BuiltinLoad:       {name: "load", fn: (*Machine).builtinLoad},
		BuiltinAssert:     {name: "assert", fn: (*Machine).builtinAssert},
		BuiltinRetractOne: {name: "retract", fn: (*Machine).builtinRetract},
		BuiltinRetractAll: {name: "retractall", fn: (*Machine).builtinRetractAll},
		BuiltinIsInteger:  {name: "integer", fn: (*Machine).builtinIsInteger},
		BuiltinIsAtom:     {name: "atomic", fn: (*Machine).builtinIsAtom},
		BuiltinIsBound:    {name: "bound", fn: (*Machine).builtinIsBound},
		BuiltinReadLn:     {name: "readln", fn: (*Machine).builtinReadLn},
		BuiltinCall:       {name: "call", fn: (*Machine).builtinCall, jumps: true},
	}
}

// callBuiltin runs the built-in with the given code. Unknown codes, including
// the -1 of unresolved calls, fail.
func (m *Machine) callBuiltin(code int) {
	b, ok := builtins[code]
	if !ok {
		m.backtrack()
		return
	}
	if !b.fn(m) {
		// The built-in may have backtracked already, by removing the running code.
		if !m.Failed {
			m.backtrack()
		}
		return
	}
	if !m.Failed && !b.jumps {
		m.PC++
	}
}

func (m *Machine) arg0() *Cell {
	return m.ref(RegAddr(0)).Deref()
}

// predicateName returns the name of an atom or the functor of a structure.
func predicateName(c *Cell) (string, bool) {
	switch c.Tag {
	case Con:
		return c.Value, true
	case Str:
		if f := c.Head.Deref(); f.Tag == Con {
			return f.Value, true
		}
	}
	return "", false
}

// ---- Type checks

func (m *Machine) builtinIsInteger() bool {
	_, ok := parseNumber(Materialize(m.arg0()).String())
	return ok
}

func (m *Machine) builtinIsAtom() bool {
	c := m.arg0()
	return c.Tag == Con || c.Tag == Ref
}

func (m *Machine) builtinIsBound() bool {
	return !m.arg0().IsUnbound()
}

// ---- I/O

func (m *Machine) builtinWrite() bool {
	m.write(Materialize(m.arg0()).String())
	return true
}

func (m *Machine) builtinWriteLn() bool {
	m.writeLn(Materialize(m.arg0()).String())
	return true
}

func (m *Machine) builtinNewLine() bool {
	m.writeLn("")
	return true
}

func (m *Machine) builtinReadLn() bool {
	line, ok := m.readLn()
	if !ok {
		return false
	}
	return m.unify(m.ref(RegAddr(0)), NewConstant(line))
}

// ---- Meta-call

func (m *Machine) builtinCall() bool {
	c := m.arg0()
	name, ok := predicateName(c)
	if !ok {
		return false
	}
	target := m.Program.LabelIndex(name)
	if target < 0 {
		code, ok := builtinCodes[name]
		if !ok {
			return false
		}
		target = code
	}
	if c.Tag == Str {
		i := 0
		for t := c.Tail.Deref(); t.Tag == Lis; t = t.Tail.Deref() {
			arg := m.ref(RegAddr(i))
			arg.Tag = Ref
			arg.Ref = t.Head
			i++
		}
	}
	m.call(target)
	return true
}

// ---- Program edition

func (m *Machine) builtinAssert() bool {
	c := m.arg0()
	name, ok := predicateName(c)
	if !ok || m.Compiler == nil {
		return false
	}
	src, ok := formatSource(c)
	if !ok {
		m.logger().Warn("assert: cyclic term", slog.String("term", Materialize(c).String()))
		return false
	}
	text := src + "."
	code, err := m.Compiler.CompileClause(text)
	if err != nil {
		m.logger().Warn("assert: failed to compile clause", slog.String("clause", text), slog.Any("err", err))
		return false
	}
	if err := m.Program.AddClause(name, code); err != nil {
		m.logger().Warn("assert: failed to add clause", slog.String("clause", text), slog.Any("err", err))
		return false
	}
	m.Trail.Push(&Cell{Tag: AssertMark, Value: name})
	return true
}

func (m *Machine) builtinRetract() bool {
	name, ok := predicateName(m.arg0())
	if !ok {
		return false
	}
	return m.Retract(name)
}

func (m *Machine) builtinRetractAll() bool {
	name, ok := predicateName(m.arg0())
	if !ok {
		return false
	}
	success := false
	for m.Retract(name) {
		if m.Failed {
			return false
		}
		success = true
	}
	return success
}

// ---- Files

// findFile looks for name and, if it has no extension, for name with each
// of exts. Relative names are searched in the working directory, then in
// every search path.
func (m *Machine) findFile(name string, exts ...string) (string, bool) {
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		for _, ext := range exts {
			candidates = append(candidates, name+ext)
		}
	}
	for _, candidate := range candidates {
		paths := []string{candidate}
		if !filepath.IsAbs(candidate) {
			for _, dir := range m.SearchPaths {
				paths = append(paths, filepath.Join(dir, candidate))
			}
		}
		for _, path := range paths {
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, true
			}
		}
	}
	return "", false
}

// appendProgram adds code to the program, reporting duplicate labels on the output.
func (m *Machine) appendProgram(code *Program) {
	for _, label := range m.Program.Conflicts(code) {
		m.writeLn(fmt.Sprintf("Error: Multiple occurrence of label %q. Use reconsult.", label))
	}
	if err := m.Program.Append(code); err != nil {
		m.logger().Debug("skipped duplicate labels", slog.Any("err", err))
	}
	m.Program.UpdateLabels()
}

func (m *Machine) compileFile(name string) (*Program, bool) {
	if m.Compiler == nil {
		return nil, false
	}
	path, ok := m.findFile(name, ".pro", ".prolog")
	if !ok {
		m.writeLn(fmt.Sprintf("File %q could not be opened.", name))
		return nil, false
	}
	code, err := m.Compiler.CompileFile(path)
	if err != nil {
		m.writeLn(fmt.Sprintf("Error: %v", err))
		m.logger().Warn("consult: failed to compile file", slog.String("path", path), slog.Any("err", err))
		return nil, false
	}
	if m.Debug > 1 {
		m.writeLn(code.String())
	}
	return code, true
}

func (m *Machine) builtinConsult() bool {
	code, ok := m.compileFile(Materialize(m.arg0()).String())
	if !ok {
		return false
	}
	m.appendProgram(code)
	return true
}

func (m *Machine) builtinReconsult() bool {
	code, ok := m.compileFile(Materialize(m.arg0()).String())
	if !ok {
		return false
	}
	for _, name := range code.Procedures() {
		m.removeProcedure(name)
	}
	m.appendProgram(code)
	return true
}

// removeProcedure deletes every clause of the procedure name.
func (m *Machine) removeProcedure(name string) {
	for _, label := range m.Program.Labels() {
		if label == name || strings.HasPrefix(label, name+"~") {
			m.removeLines(m.Program.LabelIndex(label))
		}
	}
}

func (m *Machine) builtinLoad() bool {
	name := Materialize(m.arg0()).String()
	path, ok := m.findFile(name, ".wam")
	if !ok {
		m.writeLn(fmt.Sprintf("File %q could not be opened.", name))
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		m.logger().Warn("load: failed to open file", slog.String("path", path), slog.Any("err", err))
		return false
	}
	defer f.Close()
	code, err := ReadProgram(f)
	if err != nil {
		m.writeLn(fmt.Sprintf("Error: %v", err))
		return false
	}
	m.appendProgram(code)
	return true
}
