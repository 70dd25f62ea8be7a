package optable

import (
	"fmt"
)

// arena owns every table created while compiling, indexed by Table.ID.
// Collapsing detaches tables without removing them, so the live tables
// are always recomputed from the root rather than read from here.
type arena struct {
	tables []*Table
}

func (a *arena) newTable(kind Kind) *Table {
	t := newTable(len(a.tables), kind)
	a.tables = append(a.tables, t)
	return t
}

// mkTrie builds a fresh chain of tables mapping toks to leaf. An empty
// path is the leaf itself.
func (a *arena) mkTrie(toks []Token, leaf Entry) (Entry, error) {
	if len(toks) == 0 {
		return leaf, nil
	}
	t := a.newTable(toks[0].Kind)
	child, err := a.mkTrie(toks[1:], leaf)
	if err != nil {
		return Entry{}, err
	}
	if err := t.Add(toks[0], child); err != nil {
		return Entry{}, err
	}
	return TableEntry(t), nil
}

// insert maps toks to leaf below t, reusing existing tables along the
// path and building new ones where the path leaves the trie.
func (a *arena) insert(t *Table, toks []Token, leaf Entry) error {
	if len(toks) == 0 {
		return fmt.Errorf("%w: empty opcode path", ErrMalformedRecord)
	}
	e, ok, err := t.Lookup(toks[0])
	if err != nil {
		return err
	}
	if !ok {
		child, err := a.mkTrie(toks[1:], leaf)
		if err != nil {
			return err
		}
		return t.Add(toks[0], child)
	}
	next, isTable := e.Table()
	if len(toks) == 1 || !isTable {
		// Either both want the terminal slot, or a definition already
		// sits where this path needs a table.
		i, _ := toks[0].Index()
		return &CollisionError{Table: t, Index: i, Existing: e, Incoming: leaf}
	}
	return a.insert(next, toks[1:], leaf)
}

// Walk follows toks down from t. It stops early at a definition, so the
// result is either the entry reached after the last token or the first
// leaf on the way. ok is false if the path runs into an empty slot.
func Walk(t *Table, toks []Token) (e Entry, ok bool, err error) {
	if len(toks) == 0 {
		return TableEntry(t), true, nil
	}
	e, ok, err = t.Lookup(toks[0])
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if next, isTable := e.Table(); isTable && len(toks) > 1 {
		return Walk(next, toks[1:])
	}
	return e, true, nil
}
