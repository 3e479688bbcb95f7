package wam

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/brunokim/prolog-wam/errors"
)

// ErrDuplicateLabel is returned when appending code whose labels are already present.
var ErrDuplicateLabel = errors.Kind("duplicate label")

// QueryLabel is the label of the query being executed.
const QueryLabel = "query$"

// Program is an ordered list of statements, addressed by index.
type Program struct {
	statements []*Statement
	labels     map[string]int
}

// NewProgram creates a program with the given statements. Labels are not
// resolved until UpdateLabels is called.
func NewProgram(stmts ...*Statement) *Program {
	p := &Program{labels: make(map[string]int)}
	for _, s := range stmts {
		p.Add(s)
	}
	p.indexLabels()
	return p
}

// Len returns the number of statements.
func (p *Program) Len() int {
	return len(p.statements)
}

// Statement returns the i-th statement.
func (p *Program) Statement(i int) *Statement {
	return p.statements[i]
}

// Statements returns all statements in order.
func (p *Program) Statements() []*Statement {
	return p.statements
}

// Add appends a single statement, without checking its label.
func (p *Program) Add(s *Statement) {
	if _, ok := p.labels[s.Label]; s.Label != "" && !ok {
		p.labels[s.Label] = len(p.statements)
	}
	p.statements = append(p.statements, s)
}

// Append adds the statements of q to p.
//
// A statement whose label is already present is skipped, along with the
// unlabeled statements following it. Every skipped label is reported in the
// returned error, wrapping ErrDuplicateLabel.
func (p *Program) Append(q *Program) error {
	if q == nil {
		return nil
	}
	var dups []string
	canAdd := true
	for _, s := range q.statements {
		if s.Label != "" {
			if _, ok := p.labels[s.Label]; ok {
				canAdd = false
				dups = append(dups, s.Label)
			} else {
				p.labels[s.Label] = len(p.statements)
				canAdd = true
			}
		}
		if canAdd {
			p.Add(s)
		}
	}
	if len(dups) > 0 {
		return errors.New("%v: %s", ErrDuplicateLabel, strings.Join(dups, ", "))
	}
	return nil
}

// Conflicts returns the labels of q that are already present in p.
func (p *Program) Conflicts(q *Program) []string {
	var dups []string
	for _, s := range q.statements {
		if s.Label == "" {
			continue
		}
		if _, ok := p.labels[s.Label]; ok {
			dups = append(dups, s.Label)
		}
	}
	return dups
}

// DeleteFromLine removes the statements starting at line up to the next
// labeled statement, and relinks the program. It returns the number of
// statements removed.
func (p *Program) DeleteFromLine(line int) int {
	if line < 0 || line >= len(p.statements) {
		return 0
	}
	end := len(p.statements)
	for k := line + 1; k < len(p.statements); k++ {
		if p.statements[k].Label != "" {
			end = k
			break
		}
	}
	n := end - line
	p.statements = append(p.statements[:line], p.statements[end:]...)
	p.UpdateLabels()
	return n
}

// DeleteFrom removes the clause starting at label.
func (p *Program) DeleteFrom(label string) int {
	return p.DeleteFromLine(p.LabelIndex(label))
}

// LabelIndex returns the index of the first statement with label, or -1.
func (p *Program) LabelIndex(label string) int {
	if i, ok := p.labels[label]; ok && i < len(p.statements) && p.statements[i].Label == label {
		return i
	}
	for i, s := range p.statements {
		if s.Label == label {
			return i
		}
	}
	return -1
}

// LastClauseOf returns the index of the last clause of a procedure, following
// the chain of try_me_else and retry_me_else jumps.
func (p *Program) LastClauseOf(name string) int {
	line := p.LabelIndex(name)
	seen := make(map[int]bool)
	for line >= 0 && line < len(p.statements) && !seen[line] {
		seen[line] = true
		s := p.statements[line]
		if s.Op != TryMeElse && s.Op != RetryMeElse {
			return line
		}
		line = s.Jump
	}
	return -1
}

// LastClauseButOneOf returns the index of the clause preceding the last
// one of a procedure, or -1 if it has a single clause.
func (p *Program) LastClauseButOneOf(name string) int {
	result := -1
	line := p.LabelIndex(name)
	seen := make(map[int]bool)
	for line >= 0 && line < len(p.statements) && !seen[line] {
		seen[line] = true
		s := p.statements[line]
		if s.Op != TryMeElse && s.Op != RetryMeElse {
			break
		}
		result = line
		line = s.Jump
	}
	return result
}

// AddClause appends code as the last clause of the procedure name.
//
// If the procedure exists, its last clause is turned from trust_me into
// try_me_else pointing to the new code, which is relabeled as name~k.
//
// It fails with ErrDuplicateLabel, leaving the program unchanged, if the
// new label is already taken.
func (p *Program) AddClause(name string, code *Program) error {
	if code == nil || code.Len() == 0 {
		return nil
	}
	line := p.LastClauseOf(name)
	if line >= 0 {
		last := p.statements[line]
		k := 2
		if i := strings.Index(last.Label, "~"); i > 0 {
			if n, err := strconv.Atoi(last.Label[i+1:]); err == nil {
				k = n + 1
			}
		}
		newLabel := fmt.Sprintf("%s~%d", name, k)
		code.statements[0].Label = newLabel
		code.indexLabels()
		if dups := p.Conflicts(code); len(dups) > 0 {
			return errors.New("%v: %s", ErrDuplicateLabel, strings.Join(dups, ", "))
		}
		last.SetFunction("try_me_else")
		last.SetArg(0, newLabel)
		last.Jump = len(p.statements)
	}
	err := p.Append(code)
	p.UpdateLabels()
	return err
}

func (p *Program) indexLabels() {
	p.labels = make(map[string]int)
	for i, s := range p.statements {
		if s.Label == "" {
			continue
		}
		if _, ok := p.labels[s.Label]; !ok {
			p.labels[s.Label] = i
		}
	}
}

// UpdateLabels resolves the operands of call, try_me_else and retry_me_else
// into statement indices, or built-in codes. Unresolved targets get -1.
func (p *Program) UpdateLabels() {
	p.indexLabels()
	for _, s := range p.statements {
		switch s.Op {
		case Call, TryMeElse, RetryMeElse:
		default:
			continue
		}
		target := s.Arg(0)
		if i, ok := p.labels[target]; ok {
			s.Jump = i
		} else if code, ok := builtinCodes[target]; ok {
			s.Jump = code
		} else {
			s.Jump = -1
		}
	}
}

// Labels returns every label in program order.
func (p *Program) Labels() []string {
	var labels []string
	for _, s := range p.statements {
		if s.Label != "" {
			labels = append(labels, s.Label)
		}
	}
	return labels
}

// Procedures returns the sorted names of user procedures, without clause suffixes.
func (p *Program) Procedures() []string {
	seen := make(map[string]bool)
	var names []string
	for _, label := range p.Labels() {
		name := label
		if i := strings.Index(name, "~"); i > 0 {
			name = name[:i]
		}
		if name == QueryLabel || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Program) String() string {
	lines := make([]string, len(p.statements))
	for i, s := range p.statements {
		lines[i] = fmt.Sprintf("(%04d)  %v", i, s)
	}
	return strings.Join(lines, "\n")
}
