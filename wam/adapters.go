package wam

import (
	"fmt"
	"strings"

	"github.com/brunokim/prolog-wam/logic"
)

// Value is a plain, immutable copy of a term, detached from the machine.
type Value interface {
	fmt.Stringer
	isValue()
}

// Atom is a constant value.
type Atom string

// Unbound is a variable without binding.
type Unbound struct{}

// List is a list of values. Tail is nil for proper lists.
type List struct {
	Items []Value
	Tail  Value
}

// Struct is a compound value.
type Struct struct {
	Functor string
	Args    []Value
}

func (Atom) isValue()    {}
func (Unbound) isValue() {}
func (List) isValue()    {}
func (Struct) isValue()  {}

func (v Atom) String() string    { return string(v) }
func (v Unbound) String() string { return "_" }

func (v List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	joinValues(&b, v.Items)
	if v.Tail != nil {
		b.WriteByte('|')
		b.WriteString(v.Tail.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (v Struct) String() string {
	var b strings.Builder
	b.WriteString(v.Functor)
	b.WriteByte('(')
	joinValues(&b, v.Args)
	b.WriteByte(')')
	return b.String()
}

func joinValues(b *strings.Builder, vs []Value) {
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
}

// Materialize copies the term in c into a Value.
//
// Terms may be cyclic, since unification has no occurs check. A cell found
// within itself is rendered as the atom "...".
func Materialize(c *Cell) Value {
	return materialize(c, make(map[*Cell]struct{}))
}

func materialize(c *Cell, parents map[*Cell]struct{}) Value {
	if c == nil {
		return Atom("")
	}
	c = c.Deref()
	if _, ok := parents[c]; ok {
		return Atom("...")
	}
	switch c.Tag {
	case Ref:
		return Unbound{}
	case Con:
		return Atom(c.Value)
	case Lis:
		parents[c] = struct{}{}
		defer delete(parents, c)
		items, tail := unrollList(c, parents)
		return List{Items: items, Tail: tail}
	case Str:
		parents[c] = struct{}{}
		defer delete(parents, c)
		functor := materialize(c.Head, parents)
		args, _ := unrollList(c.Tail, parents)
		return Struct{Functor: functor.String(), Args: args}
	}
	return Atom("")
}

// unrollList materializes the items of a list cell, and its tail if it isn't [].
func unrollList(c *Cell, parents map[*Cell]struct{}) ([]Value, Value) {
	var items []Value
	seen := make(map[*Cell]struct{})
	for {
		if c == nil {
			return items, nil
		}
		c = c.Deref()
		if _, ok := seen[c]; ok {
			return items, Atom("...")
		}
		seen[c] = struct{}{}
		switch {
		case c.Tag == Lis:
			items = append(items, materialize(c.Head, parents))
			c = c.Tail
		case c.Tag == Con && c.Value == EmptyList:
			return items, nil
		default:
			return items, materialize(c, parents)
		}
	}
}

// sourceWriter renders terms as source text that the parser can read back.
type sourceWriter struct {
	b       strings.Builder
	names   map[*Cell]string
	parents map[*Cell]struct{}
}

// formatSource renders c as clause source text. Unbound variables are named
// _G0, _G1, ... in order of appearance, so that shared variables remain
// shared. It returns false for cyclic terms.
func formatSource(c *Cell) (string, bool) {
	w := &sourceWriter{
		names:   make(map[*Cell]string),
		parents: make(map[*Cell]struct{}),
	}
	if !w.write(c) {
		return "", false
	}
	return w.b.String(), true
}

func (w *sourceWriter) write(c *Cell) bool {
	if c == nil {
		return false
	}
	c = c.Deref()
	if _, ok := w.parents[c]; ok {
		return false
	}
	switch c.Tag {
	case Ref:
		name, ok := w.names[c]
		if !ok {
			name = fmt.Sprintf("_G%d", len(w.names))
			w.names[c] = name
		}
		w.b.WriteString(name)
		return true
	case Con:
		if logic.IsInt(c.Value) {
			w.b.WriteString(c.Value)
		} else {
			w.b.WriteString(logic.FormatAtom(c.Value))
		}
		return true
	}
	w.parents[c] = struct{}{}
	defer delete(w.parents, c)
	switch c.Tag {
	case Lis:
		seen := map[*Cell]struct{}{c: {}}
		w.b.WriteByte('[')
		for i := 0; ; i++ {
			if i > 0 {
				w.b.WriteString(", ")
			}
			if !w.write(c.Head) {
				return false
			}
			tail := c.Tail.Deref()
			if tail.Tag == Lis {
				if _, ok := seen[tail]; ok {
					return false
				}
				seen[tail] = struct{}{}
				c = tail
				continue
			}
			if tail.Tag != Con || tail.Value != EmptyList {
				w.b.WriteByte('|')
				if !w.write(tail) {
					return false
				}
			}
			break
		}
		w.b.WriteByte(']')
		return true
	case Str:
		functor := c.Head.Deref()
		if functor.Tag == Con {
			w.b.WriteString(logic.FormatAtom(functor.Value))
		} else if !w.write(functor) {
			return false
		}
		args := c.Tail.Deref()
		if args.Tag != Lis {
			return true
		}
		w.b.WriteByte('(')
		for i := 0; args.Tag == Lis; i++ {
			if i > 0 {
				w.b.WriteString(", ")
			}
			if !w.write(args.Head) {
				return false
			}
			args = args.Tail.Deref()
		}
		w.b.WriteByte(')')
		return true
	}
	return false
}
