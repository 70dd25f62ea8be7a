package main

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/TechLord-Forever/udis86/optable"
	"zombiezen.com/go/log"
)

// tableFlag marks a table entry that refers to another table rather than
// to an instruction. Empty slots refer to the invalid instruction, number 0.
const tableFlag = 0x8000

// generateItab writes itab.go, the decoder's tables, into dir.
func generateItab(ctx context.Context, dir, pkg string, coll *optable.Collection) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := renderItab(&buf, pkg, coll); err != nil {
		return err
	}
	filename := filepath.Join(dir, "itab.go")
	if err := os.WriteFile(filename, buf.Bytes(), 0o666); err != nil {
		return err
	}
	log.Infof(ctx, "Wrote %s", filename)
	return nil
}

// renderItab writes a gofmt'd Go source file declaring the mnemonic
// enumeration, the instruction list and every live table of coll.
func renderItab(w io.Writer, pkg string, coll *optable.Collection) error {
	insns := coll.Insns()
	tables := coll.Tables()
	if len(insns) >= tableFlag || len(tables) >= tableFlag {
		return fmt.Errorf("%d instructions and %d tables do not fit in 15-bit entries", len(insns), len(tables))
	}

	mnemonics := append([]string{coll.Invalid().Mnemonic}, coll.Mnemonics()...)
	idents := make(map[string]string, len(mnemonics))
	seen := make(map[string]string, len(mnemonics))
	for _, m := range mnemonics {
		ident := "Mnemonic" + makeIdentTitle(m)
		if prev, ok := seen[ident]; ok {
			return fmt.Errorf("mnemonics %q and %q both render as %s", prev, m, ident)
		}
		seen[ident] = m
		idents[m] = ident
	}

	var b bytes.Buffer
	b.WriteString("// Code generated by optgen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	fmt.Fprintf(&b, "const tableFlag = 0x%04x\n\n", tableFlag)

	b.WriteString("type Mnemonic uint16\n\n")
	b.WriteString("const (\n")
	for i, m := range mnemonics {
		if i == 0 {
			fmt.Fprintf(&b, "\t%s Mnemonic = iota\n", idents[m])
			continue
		}
		fmt.Fprintf(&b, "\t%s\n", idents[m])
	}
	b.WriteString(")\n\n")

	b.WriteString("var mnemonicNames = [...]string{\n")
	for _, m := range mnemonics {
		fmt.Fprintf(&b, "\t%q,\n", m)
	}
	b.WriteString("}\n\n")
	b.WriteString("func (m Mnemonic) String() string { return mnemonicNames[m] }\n\n")

	b.WriteString("type Operand struct {\n\tMethod string\n\tSize string\n}\n\n")
	b.WriteString("type Insn struct {\n\tMnemonic Mnemonic\n\tOperands []Operand\n\tPrefixes []string\n}\n\n")

	insnNums := make(map[*optable.Insn]int, len(insns))
	b.WriteString("var Insns = [...]Insn{\n")
	for i, insn := range insns {
		insnNums[insn] = i
		fmt.Fprintf(&b, "\t/* %04d */ {%s, %s, %s},\n", i, idents[insn.Mnemonic], goOperands(insn.Operands), goStrings(insn.Prefixes.Sorted()))
	}
	b.WriteString("}\n\n")

	tableNums := make(map[*optable.Table]int, len(tables))
	for i, t := range tables {
		tableNums[t] = i
	}

	b.WriteString("type Table struct {\n\tLabel string\n\tEntries []uint16\n}\n\n")
	b.WriteString("var Tables = [...]Table{\n")
	for i, t := range tables {
		fmt.Fprintf(&b, "\t/* %04d */ {%q, []uint16{", i, t.Label())
		for slot := 0; slot < t.Size(); slot++ {
			if slot%16 == 0 {
				b.WriteString("\n\t\t")
			} else {
				b.WriteByte(' ')
			}
			e, ok, err := t.EntryAt(slot)
			if err != nil {
				return err
			}
			ref := 0
			switch next, isTable := e.Table(); {
			case !ok:
			case isTable:
				n, live := tableNums[next]
				if !live {
					return fmt.Errorf("%s[%02x] refers to %s, which is not live", t, slot, next)
				}
				ref = tableFlag | n
			default:
				insn, _ := e.Insn()
				ref = insnNums[insn]
			}
			fmt.Fprintf(&b, "0x%04x,", ref)
		}
		b.WriteString("\n\t}},\n")
	}
	b.WriteString("}\n")

	src, err := format.Source(b.Bytes())
	if err != nil {
		return fmt.Errorf("failed to format generated source: %w", err)
	}
	_, err = w.Write(src)
	return err
}

func goOperands(raw []string) string {
	if len(raw) == 0 {
		return "nil"
	}
	parts := make([]string, len(raw))
	for i, opr := range ParseOperands(raw) {
		parts[i] = fmt.Sprintf("{%q, %q}", opr.Method, opr.Size)
	}
	return "[]Operand{" + strings.Join(parts, ", ") + "}"
}

func goStrings(ss []string) string {
	if len(ss) == 0 {
		return "nil"
	}
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = fmt.Sprintf("%q", s)
	}
	return "[]string{" + strings.Join(parts, ", ") + "}"
}
