package optable

import (
	"fmt"
	"io"

	"github.com/xlab/treeprint"
)

// Stats summarizes a finished collection.
type Stats struct {
	Tables    int // live tables
	InsnDefs  int // definitions, including the invalid instruction
	Mnemonics int
	Occupied  int // populated slots over all live tables
	Capacity  int // slots over all live tables
}

// PackingRatio is the percentage of live table slots in use.
func (s Stats) PackingRatio() int {
	if s.Capacity == 0 {
		return 0
	}
	return s.Occupied * 100 / s.Capacity
}

func (c *Collection) Stats() Stats {
	s := Stats{
		Tables:    len(c.tables),
		InsnDefs:  len(c.insns),
		Mnemonics: len(c.mnemonics),
	}
	for _, t := range c.tables {
		s.Occupied += t.Len()
		s.Capacity += t.Size()
	}
	return s
}

// Dump renders the tables as a tree, one branch per populated slot.
// Shared tables appear under each of their parents.
func (c *Collection) Dump() string {
	return dumpTables(c.root)
}

func dumpTables(root *Table) string {
	tree := treeprint.NewWithRoot(root.String())
	dumpTable(tree, root)
	return tree.String()
}

func dumpTable(tree treeprint.Tree, t *Table) {
	for i, e := range t.Entries() {
		slot := fmt.Sprintf("%02x", i)
		if next, ok := e.Table(); ok {
			dumpTable(tree.AddMetaBranch(slot, next.String()), next)
			continue
		}
		tree.AddMetaNode(slot, e.String())
	}
}

// WriteLog writes the statistics block followed by the table dump.
func (c *Collection) WriteLog(w io.Writer) error {
	s := c.Stats()
	_, err := fmt.Fprintf(w, "stats: \n"+
		"  Num tables    = %d\n"+
		"  Num insnDefs  = %d\n"+
		"  Num insns     = %d\n"+
		"  Packing Ratio = %d%%\n"+
		"--------------------\n",
		s.Tables, s.InsnDefs, s.Mnemonics, s.PackingRatio())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, c.Dump())
	return err
}
