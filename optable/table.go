package optable

import (
	"fmt"
	"iter"
)

// Entry is the content of a table slot: either a nested table or an
// instruction definition. The zero Entry is an empty slot.
type Entry struct {
	table *Table
	insn  *Insn
}

// TableEntry returns an entry referring to t.
func TableEntry(t *Table) Entry { return Entry{table: t} }

// InsnEntry returns a leaf entry referring to insn.
func InsnEntry(insn *Insn) Entry { return Entry{insn: insn} }

// IsZero reports whether e is an empty slot.
func (e Entry) IsZero() bool { return e.table == nil && e.insn == nil }

// Table returns the nested table, if e is one.
func (e Entry) Table() (*Table, bool) { return e.table, e.table != nil }

// Insn returns the instruction definition, if e is a leaf.
func (e Entry) Insn() (*Insn, bool) { return e.insn, e.insn != nil }

func (e Entry) String() string {
	switch {
	case e.table != nil:
		return e.table.String()
	case e.insn != nil:
		return e.insn.String()
	}
	return "<empty>"
}

// Table is a fixed size dispatch table indexed by one decode field.
type Table struct {
	id    int
	kind  Kind
	slots []Entry
	n     int
}

func newTable(id int, kind Kind) *Table {
	return &Table{
		id:    id,
		kind:  kind,
		slots: make([]Entry, kind.Size()),
	}
}

// ID is the table's position in the arena of every table created while
// compiling. IDs are stable, but not dense once tables are collapsed.
func (t *Table) ID() int { return t.id }

func (t *Table) Kind() Kind    { return t.kind }
func (t *Table) Size() int     { return len(t.slots) }
func (t *Table) Label() string { return t.kind.Label() }

// Len returns the number of populated slots.
func (t *Table) Len() int { return t.n }

func (t *Table) String() string {
	return fmt.Sprintf("table-%s#%d", t.kind, t.id)
}

func (t *Table) index(tok Token) (int, error) {
	if tok.Kind != t.kind {
		return 0, &KindError{Table: t, Token: tok}
	}
	return tok.Index()
}

// Add places e in the slot selected by tok.
func (t *Table) Add(tok Token, e Entry) error {
	i, err := t.index(tok)
	if err != nil {
		return err
	}
	if old := t.slots[i]; !old.IsZero() {
		return &CollisionError{Table: t, Index: i, Existing: old, Incoming: e}
	}
	return t.SetEntryAt(i, e)
}

// Lookup returns the entry in the slot selected by tok.
func (t *Table) Lookup(tok Token) (Entry, bool, error) {
	i, err := t.index(tok)
	if err != nil {
		return Entry{}, false, err
	}
	return t.EntryAt(i)
}

// EntryAt returns the entry at slot i, or false if the slot is empty.
func (t *Table) EntryAt(i int) (Entry, bool, error) {
	if i < 0 || i >= len(t.slots) {
		return Entry{}, false, &IndexError{Table: t, Index: i}
	}
	e := t.slots[i]
	return e, !e.IsZero(), nil
}

// SetEntryAt stores e at slot i, replacing whatever was there. Storing
// the zero Entry clears the slot.
func (t *Table) SetEntryAt(i int, e Entry) error {
	if i < 0 || i >= len(t.slots) {
		return &IndexError{Table: t, Index: i}
	}
	switch old := t.slots[i]; {
	case old.IsZero() && !e.IsZero():
		t.n++
	case !old.IsZero() && e.IsZero():
		t.n--
	}
	t.slots[i] = e
	return nil
}

// Entries yields the populated slots of t in index order.
func (t *Table) Entries() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i, e := range t.slots {
			if e.IsZero() {
				continue
			}
			if !yield(i, e) {
				return
			}
		}
	}
}
