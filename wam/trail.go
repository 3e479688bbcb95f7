package wam

// Retracter removes the last clause of a predicate.
type Retracter interface {
	Retract(name string) bool
}

// Trail is the undo log of cells bound since the oldest live choice point.
type Trail struct {
	entries []*Cell
	r       Retracter
}

// NewTrail creates an empty trail. Undoing an assert mark calls r.
func NewTrail(r Retracter) *Trail {
	return &Trail{r: r}
}

// Push records c before it's bound.
func (t *Trail) Push(c *Cell) {
	t.entries = append(t.entries, c)
}

// Len returns the number of entries.
func (t *Trail) Len() int {
	return len(t.entries)
}

// SetLen truncates the trail to n entries, or pads it with nil.
func (t *Trail) SetLen(n int) {
	if n <= len(t.entries) {
		for i := n; i < len(t.entries); i++ {
			t.entries[i] = nil
		}
		t.entries = t.entries[:n]
		return
	}
	for len(t.entries) < n {
		t.entries = append(t.entries, nil)
	}
}

// Entry returns the cell recorded at index i.
func (t *Trail) Entry(i int) *Cell {
	return t.entries[i]
}

// Undo unbinds the cell at index i. An assert mark retracts its clause instead.
func (t *Trail) Undo(i int) {
	c := t.entries[i]
	if c == nil {
		return
	}
	if c.Tag == AssertMark && t.r != nil {
		t.r.Retract(c.Value)
	}
	c.reset()
}

// unwind undoes every entry from the top down to index n, then truncates.
func (t *Trail) unwind(n int) {
	for i := len(t.entries) - 1; i >= n; i-- {
		t.Undo(i)
	}
	t.SetLen(n)
}
