package wam

import "fmt"

// Tag identifies the content of a cell.
type Tag int

const (
	// Ref is a reference to another cell. A Ref cell pointing to itself is unbound.
	Ref Tag = iota
	// Con is a constant, such as an atom or an integer.
	Con
	// Lis is a list cell, with Head and Tail.
	Lis
	// Str is a structure: Head holds the functor and Tail the list of arguments.
	Str
	// AssertMark is a pseudo-binding that lives only in the trail, naming
	// an asserted predicate to be retracted on backtrack.
	AssertMark
)

var tagNames = map[Tag]string{
	Ref:        "REF",
	Con:        "CON",
	Lis:        "LIS",
	Str:        "STR",
	AssertMark: "ASSERT",
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tag(%d)", int(t))
}

// EmptyList is the value of the constant terminating every proper list.
const EmptyList = "[]"

// Cell represents a term in the Go heap.
//
// Cells are mutable: binding a variable overwrites its tag and fields with
// the contents of another cell. Only the fields relevant to the tag are
// meaningful, stale ones are ignored.
type Cell struct {
	Tag   Tag
	Value string
	Ref   *Cell
	Head  *Cell
	Tail  *Cell
	// Name of a query variable, used when displaying solutions.
	Name string
	// CutLevel is the choice point saved by get_level.
	CutLevel *ChoicePoint
}

// NewCell creates an unbound variable.
func NewCell() *Cell {
	c := &Cell{Tag: Ref}
	c.Ref = c
	return c
}

// NewConstant creates a cell holding a constant.
func NewConstant(value string) *Cell {
	return &Cell{Tag: Con, Value: value}
}

// NewList creates a list cell.
func NewList(head, tail *Cell) *Cell {
	return &Cell{Tag: Lis, Head: head, Tail: tail}
}

// NewStruct creates a structure cell from its functor and argument list.
func NewStruct(functor, args *Cell) *Cell {
	return &Cell{Tag: Str, Head: functor, Tail: args}
}

// MakeList builds a proper list from cells.
func MakeList(cells ...*Cell) *Cell {
	l := NewConstant(EmptyList)
	for i := len(cells) - 1; i >= 0; i-- {
		l = NewList(cells[i], l)
	}
	return l
}

// MakeStruct builds a structure with a constant functor.
func MakeStruct(name string, args ...*Cell) *Cell {
	return NewStruct(NewConstant(name), MakeList(args...))
}

// Clone returns a new cell with the same contents as c.
func (c *Cell) Clone() *Cell {
	x := new(Cell)
	x.CopyFrom(c)
	return x
}

// IsUnbound returns whether c is a variable pointing to itself.
func (c *Cell) IsUnbound() bool {
	return c.Tag == Ref && c.Ref == c
}

// Deref walks the reference chain until it finds a non-ref cell, or an unbound ref.
func (c *Cell) Deref() *Cell {
	for c.Tag == Ref && c.Ref != c && c.Ref != nil {
		c = c.Ref
	}
	return c
}

// CopyFrom sets the contents of c to those of src.
func (c *Cell) CopyFrom(src *Cell) {
	c.Tag = src.Tag
	switch src.Tag {
	case Ref:
		c.Ref = src.Ref
	case Con, AssertMark:
		c.Value = src.Value
	default:
		c.Head = src.Head
		c.Tail = src.Tail
	}
}

// reset turns c back into an unbound variable.
func (c *Cell) reset() {
	c.Tag = Ref
	c.Ref = c
}

func (c *Cell) String() string {
	if c == nil {
		return "<nil>"
	}
	return Materialize(c).String()
}
