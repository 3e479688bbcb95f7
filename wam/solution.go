package wam

import (
	"bufio"
	"io"
	"strings"
	"time"
)

// Binding is the value of a named query variable in a solution.
type Binding struct {
	Name  string
	Value Value
}

func (b Binding) String() string {
	return b.Name + " = " + b.Value.String()
}

// Solution is the outcome of running a query until its next success or failure.
type Solution struct {
	Succeed        bool
	Bindings       []Binding
	Output         []string
	Elapsed        time.Duration
	OpCount        int
	BacktrackCount int
	Exhausted      bool
}

// Message returns the status line of the solution, as shown in the console.
func (s Solution) Message() string {
	if !s.Succeed {
		return "Failed."
	}
	if len(s.Bindings) == 0 {
		return "Success."
	}
	parts := make([]string, len(s.Bindings))
	for i, b := range s.Bindings {
		parts[i] = b.String()
	}
	return "Success: " + strings.Join(parts, ", ") + "."
}

// Binding returns the value bound to name, or nil.
func (s Solution) Binding(name string) Value {
	for _, b := range s.Bindings {
		if b.Name == name {
			return b.Value
		}
	}
	return nil
}

// ---- Output

// lineBuffer accumulates output as a list of lines. The last line is open
// for writing.
type lineBuffer struct {
	lines []string
}

func newLineBuffer() *lineBuffer {
	return &lineBuffer{lines: []string{""}}
}

func (b *lineBuffer) write(s string) {
	b.lines[len(b.lines)-1] += s
}

func (b *lineBuffer) writeLn(s string) {
	b.write(s)
	b.lines = append(b.lines, "")
}

func (b *lineBuffer) lastLine() string {
	return b.lines[len(b.lines)-1]
}

// flush returns the lines written, omitting an empty open line, and clears the buffer.
func (b *lineBuffer) flush() []string {
	lines := b.lines
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	b.lines = []string{""}
	return lines
}

func (m *Machine) write(s string) {
	if m.out == nil {
		m.out = newLineBuffer()
	}
	m.out.write(s)
	if m.Stdout != nil {
		io.WriteString(m.Stdout, s)
	}
}

func (m *Machine) writeLn(s string) {
	if m.out == nil {
		m.out = newLineBuffer()
	}
	m.out.writeLn(s)
	if m.Stdout != nil {
		io.WriteString(m.Stdout, s+"\n")
	}
}

// endLine closes the current output line if it isn't empty.
func (m *Machine) endLine() {
	if m.out != nil && m.out.lastLine() != "" {
		m.writeLn("")
	}
}

// ---- Input

func (m *Machine) readLn() (string, bool) {
	if m.Input == nil {
		return "", false
	}
	if m.reader == nil || m.readerSrc != m.Input {
		m.reader = bufio.NewReader(m.Input)
		m.readerSrc = m.Input
	}
	line, err := m.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}
