// Package optable compiles x86 instruction definitions into the opcode
// tables driving the udis86 decoder.
//
// Each definition is placed in a trie of fixed size tables rooted at a
// 256 entry opcode byte table. The path to a definition is its literal
// opcode bytes followed by its opcode extensions (modrm fields, mandatory
// prefixes, operand size, mode, vendor and so on), each extension kind
// getting a table of its own.
package optable

import (
	"context"
	"slices"
	"sort"

	"zombiezen.com/go/log"
)

// State is the stage a Compiler is in. A compiler only moves forward.
type State uint8

const (
	StateIngesting State = iota
	StatePostProcessing
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIngesting:
		return "ingesting"
	case StatePostProcessing:
		return "post-processing"
	case StateFinalized:
		return "finalized"
	}
	return "unknown"
}

// Compiler accumulates instruction definitions into opcode tables.
type Compiler struct {
	state State
	err   error

	arena     arena
	root      *Table
	invalid   *Insn
	insns     []*Insn
	mnemonics map[string][]*Insn
}

// NewCompiler returns a compiler with an empty root table.
func NewCompiler() *Compiler {
	c := &Compiler{
		mnemonics: make(map[string][]*Insn),
	}
	// The root table is always a 256 entry opctbl, indexed by a plain
	// opcode byte.
	c.root = c.arena.newTable(KindTable)

	// The invalid instruction is listed but never mapped in the tables.
	c.invalid = newInsn("invalid", nil, nil, nil, nil)
	c.insns = append(c.insns, c.invalid)
	return c
}

// Compile builds the finished tables for records.
func Compile(ctx context.Context, records []Record) (*Collection, error) {
	c := NewCompiler()
	for _, rec := range records {
		if err := c.Add(ctx, rec); err != nil {
			return nil, err
		}
	}
	return c.Finish(ctx)
}

func (c *Compiler) State() State { return c.state }

// Add canonicalizes rec and inserts the definitions derived from it. Any
// error is fatal: the compiler returns it from every later call.
func (c *Compiler) Add(ctx context.Context, rec Record) error {
	if c.err != nil {
		return c.err
	}
	if c.state != StateIngesting {
		return ErrFinalized
	}
	if err := c.addRecord(ctx, rec); err != nil {
		c.err = err
		return err
	}
	return nil
}

func (c *Compiler) addRecord(ctx context.Context, rec Record) error {
	if rec.Mnemonic == "" {
		return c.fail(rec.Mnemonic, nil, &RecordError{Mnemonic: "?", Reason: "no mnemonic"})
	}
	if len(rec.Opcodes) == 0 {
		return c.fail(rec.Mnemonic, nil, &RecordError{Mnemonic: rec.Mnemonic, Reason: "no opcodes"})
	}
	toks, err := ParseTokens(rec.Opcodes)
	if err != nil {
		return c.fail(rec.Mnemonic, nil, err)
	}

	// Pack plain opcodes first, and collect opcode extensions.
	var opcodes []Token
	exts := make(map[Kind]string)
	for _, tok := range toks {
		if tok.IsByte() {
			opcodes = append(opcodes, tok)
			continue
		}
		if _, dup := exts[tok.Kind]; dup {
			return c.fail(rec.Mnemonic, toks, &RecordError{Mnemonic: rec.Mnemonic, Reason: "repeated " + tok.Kind.String() + " extension"})
		}
		exts[tok.Kind] = tok.Value
	}
	if len(opcodes) == 0 {
		return c.fail(rec.Mnemonic, toks, &RecordError{Mnemonic: rec.Mnemonic, Reason: "no opcode bytes"})
	}

	// Two byte opcodes without a mandatory prefix still dispatch through
	// an sse table, in its none slot.
	if _, ok := exts[KindSSE]; !ok && len(opcodes) > 1 && opcodes[0].Value == "0f" && opcodes[1].Value != "0f" {
		exts[KindSSE] = "none"
	}

	// Vendor is treated as an opcode extension.
	if len(rec.Vendor) > 0 {
		exts[KindVendor] = rec.Vendor[0]
	}

	sse, hasSSE := exts[KindSSE]
	if !slices.Contains(rec.CPUID, "avx") || !hasSSE {
		return c.addInsn(rec.Mnemonic, rec.Prefixes, opcodes, exts, rec.Operands, rec.CPUID)
	}

	if opcodes[0].Value != "0f" || len(opcodes) < 2 {
		return c.fail(rec.Mnemonic, toks, &RecordError{Mnemonic: rec.Mnemonic, Reason: "avx definition outside the 0f opcode space"})
	}

	// The legacy sse encoding has no VEX.vvvv or VEX.L operands and no
	// VEX.W.
	var sseOperands []string
	for _, opr := range rec.Operands {
		if opr != "H" && opr != "L" {
			sseOperands = append(sseOperands, opr)
		}
	}
	sseExts := make(map[Kind]string, len(exts))
	for k, v := range exts {
		if k != KindVexW {
			sseExts[k] = v
		}
	}
	if err := c.addInsn(rec.Mnemonic, rec.Prefixes, opcodes, sseExts, sseOperands, rec.CPUID); err != nil {
		return err
	}

	// The VEX encoding folds the mandatory prefix and the escape bytes
	// into the vex extension.
	vexExts := make(map[Kind]string, len(exts))
	for k, v := range exts {
		if k != KindSSE {
			vexExts[k] = v
		}
	}
	vex := sse + "_0f"
	rest := opcodes[1:]
	if esc := opcodes[1].Value; esc == "38" || esc == "3a" {
		vex += esc
		rest = opcodes[2:]
	}
	vexExts[KindVex] = vex
	vexOpcodes := append([]Token{Byte(0xc4)}, rest...)

	vexOperands := make([]string, len(rec.Operands))
	for i, opr := range rec.Operands {
		// The vector size is explicit in VEX.L.
		if opr == "V" || opr == "W" || opr == "H" {
			opr += "x"
		}
		vexOperands[i] = opr
	}

	return c.addInsn("v"+rec.Mnemonic, rec.Prefixes, vexOpcodes, vexExts, vexOperands, rec.CPUID)
}

// addInsn builds the canonical opcode path for a definition and maps it
// into the tables.
func (c *Compiler) addInsn(mnemonic string, prefixes []string, opcodes []Token, exts map[Kind]string, operands, cpuid []string) error {
	path := slices.Clone(opcodes)
	if vex, ok := exts[KindVex]; ok {
		if b := path[0].Value; b != "c4" && b != "c5" {
			return c.fail(mnemonic, path, &RecordError{Mnemonic: mnemonic, Reason: "vex extension without a c4 or c5 opcode"})
		}
		path = slices.Insert(path, 1, Ext(KindVex, vex))
	}

	// The order is important, and determines how well the opcode table
	// is packed.
	for _, k := range ExtensionOrder {
		if v, ok := exts[k]; ok {
			path = append(path, Ext(k, v))
		}
	}

	insn := newInsn(mnemonic, prefixes, path, operands, cpuid)
	if err := c.arena.insert(c.root, path, InsnEntry(insn)); err != nil {
		return c.fail(mnemonic, path, err)
	}
	c.insns = append(c.insns, insn)
	c.mnemonics[mnemonic] = append(c.mnemonics[mnemonic], insn)
	return nil
}

func (c *Compiler) fail(mnemonic string, path []Token, err error) error {
	return &CompileError{
		Mnemonic: mnemonic,
		Path:     path,
		Dump:     dumpTables(c.root),
		Err:      err,
	}
}

// Finish runs the whole-table passes and returns the finished tables.
func (c *Compiler) Finish(ctx context.Context) (*Collection, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.state != StateIngesting {
		return nil, ErrFinalized
	}
	c.state = StatePostProcessing

	if err := c.patchVex2Byte(ctx); err != nil {
		c.err = err
		return nil, err
	}
	c.mergeSSENone(ctx)

	coll := &Collection{
		root:      c.root,
		tables:    reachable(c.root),
		insns:     c.insns,
		invalid:   c.invalid,
		mnemonics: c.mnemonics,
	}
	c.state = StateFinalized
	log.Debugf(ctx, "Finalized %d of %d opcode tables", len(coll.tables), len(c.arena.tables))
	return coll, nil
}

// patchVex2Byte makes every VEX table reachable through c4 also reachable
// through the two byte c5 prefix. The subtrees are shared, not copied.
func (c *Compiler) patchVex2Byte(ctx context.Context) error {
	c4 := Byte(0xc4)
	c5 := Byte(0xc5)
	e, ok, err := c.root.Lookup(c4)
	if err != nil {
		return err
	}
	if vexTable, isTable := e.Table(); !ok || !isTable || vexTable.Kind() != KindVex {
		log.Debugf(ctx, "No vex table to alias")
		return nil
	}

	n := 0
	for _, pp := range vexPrefixes {
		for _, m := range vexEscapes {
			if pp == "" && m == "" {
				continue
			}
			vex := Ext(KindVex, VexValue(pp, m))
			sub, ok, err := Walk(c.root, []Token{c4, vex})
			if err != nil {
				return c.fail("vex", []Token{c4, vex}, err)
			}
			if !ok {
				continue
			}
			path := []Token{c5, vex}
			if err := c.arena.insert(c.root, path, sub); err != nil {
				return c.fail("vex", path, err)
			}
			n++
		}
	}
	log.Debugf(ctx, "Aliased %d vex tables under c5", n)
	return nil
}

// mergeSSENone replaces references to sse tables holding only the none
// slot with that slot's entry. Only the referring slot is rewritten, since
// the sse table may be reachable some other way.
func (c *Compiler) mergeSSENone(ctx context.Context) {
	n := 0
	for _, t := range reachable(c.root) {
		for i, e := range t.Entries() {
			sse, ok := e.Table()
			if !ok || sse.Kind() != KindSSE || sse.Len() != 1 {
				continue
			}
			if none, ok, _ := sse.EntryAt(0); ok {
				t.SetEntryAt(i, none)
				n++
			}
		}
	}
	log.Debugf(ctx, "Collapsed %d sse=none tables", n)
}

// reachable lists the tables reachable from root, depth first and
// counting shared tables once.
func reachable(root *Table) []*Table {
	var tables []*Table
	seen := make(map[*Table]bool)
	var visit func(t *Table)
	visit = func(t *Table) {
		if seen[t] {
			return
		}
		seen[t] = true
		tables = append(tables, t)
		for _, e := range t.Entries() {
			if next, ok := e.Table(); ok {
				visit(next)
			}
		}
	}
	visit(root)
	return tables
}

// Collection is the finished, read-only set of opcode tables.
type Collection struct {
	root      *Table
	tables    []*Table
	insns     []*Insn
	invalid   *Insn
	mnemonics map[string][]*Insn
}

func (c *Collection) Root() *Table { return c.root }

// Tables returns the live tables, root first.
func (c *Collection) Tables() []*Table { return slices.Clone(c.tables) }

// Insns returns every definition in insertion order, starting with the
// invalid instruction.
func (c *Collection) Insns() []*Insn { return slices.Clone(c.insns) }

// Invalid returns the invalid instruction, which no table refers to.
func (c *Collection) Invalid() *Insn { return c.invalid }

// Mnemonics returns the sorted mnemonics of every mapped definition.
func (c *Collection) Mnemonics() []string {
	ms := make([]string, 0, len(c.mnemonics))
	for m := range c.mnemonics {
		ms = append(ms, m)
	}
	sort.Strings(ms)
	return ms
}

// Lookup returns the definitions of a mnemonic.
func (c *Collection) Lookup(mnemonic string) []*Insn {
	return slices.Clone(c.mnemonics[mnemonic])
}

// Find resolves an opcode path from the root, as given by Insn.Opcodes.
// An sse=none step is skipped where its table was collapsed away.
func (c *Collection) Find(path []Token) (Entry, bool, error) {
	t := c.root
	for i, tok := range path {
		if isSSENone(tok) && t.Kind() != KindSSE {
			continue
		}
		e, ok, err := t.Lookup(tok)
		if err != nil || !ok {
			return Entry{}, false, err
		}
		next, isTable := e.Table()
		if !isTable {
			for _, rest := range path[i+1:] {
				if !isSSENone(rest) {
					return Entry{}, false, nil
				}
			}
			return e, true, nil
		}
		t = next
	}
	return TableEntry(t), true, nil
}

func isSSENone(tok Token) bool {
	return tok.Kind == KindSSE && tok.Value == "none"
}
