// Package roster maps transient simulator vehicle ids onto a fixed set of
// integer agent slots, as required by training algorithms with a constant
// agent cardinality.
package roster

// Table is a fixed-capacity arena of agent slots. A vehicle id is assigned
// the lowest free slot the first time it is seen and keeps it until
// released; released slots are reused. All operations are O(1).
type Table struct {
	slots []string // "" marks an empty slot
	index map[string]int
	free  []int // stack of free slot indices
}

// New builds an empty table with the given capacity.
func New(capacity int) *Table {
	t := &Table{
		slots: make([]string, capacity),
		index: make(map[string]int, capacity),
		free:  make([]int, capacity),
	}
	// lowest index on top of the stack
	for i := range t.free {
		t.free[i] = capacity - 1 - i
	}
	return t
}

// Acquire returns the slot for id, allocating one on first sight. The
// second return is false when the table is full and id holds no slot.
func (t *Table) Acquire(id string) (int, bool) {
	if idx, ok := t.index[id]; ok {
		return idx, true
	}
	if len(t.free) == 0 {
		return 0, false
	}
	idx := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	t.slots[idx] = id
	t.index[id] = idx
	return idx, true
}

// Release frees the slot held by id. Releasing an unknown id is a no-op.
func (t *Table) Release(id string) {
	idx, ok := t.index[id]
	if !ok {
		return
	}
	delete(t.index, id)
	t.slots[idx] = ""
	t.free = append(t.free, idx)
}

// Index returns the slot held by id, if any.
func (t *Table) Index(id string) (int, bool) {
	idx, ok := t.index[id]
	return idx, ok
}

// ID returns the occupant of slot idx, if any.
func (t *Table) ID(idx int) (string, bool) {
	if idx < 0 || idx >= len(t.slots) || t.slots[idx] == "" {
		return "", false
	}
	return t.slots[idx], true
}

// Clear empties every slot.
func (t *Table) Clear() {
	for i := range t.slots {
		t.slots[i] = ""
	}
	t.index = make(map[string]int, len(t.slots))
	t.free = t.free[:0]
	for i := len(t.slots) - 1; i >= 0; i-- {
		t.free = append(t.free, i)
	}
}

// Len is the number of occupied slots.
func (t *Table) Len() int { return len(t.index) }

// Cap is the total number of slots.
func (t *Table) Cap() int { return len(t.slots) }
