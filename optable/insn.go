package optable

import (
	"strings"
)

// Record is one instruction definition as handed over by a loader, before
// any canonicalization.
type Record struct {
	Mnemonic string   `yaml:"mnemonic"`
	Prefixes []string `yaml:"prefixes,omitempty"`
	Opcodes  []string `yaml:"opcodes"`            // Literal hex bytes and [/]kind=value extensions.
	Operands []string `yaml:"operands,omitempty"` // udis86 operand codes, such as Eb or Vx.
	Vendor   []string `yaml:"vendor,omitempty"`   // Only the first vendor is significant.
	CPUID    []string `yaml:"cpuid,omitempty"`
}

// Insn is a single encoding of a mnemonic, placed in the tables at the
// path given by Opcodes. An Insn is never modified once it is created.
type Insn struct {
	Mnemonic string
	Prefixes Set
	Opcodes  []Token
	Operands []string
	CPUID    Set

	exts map[Kind]string
}

func newInsn(mnemonic string, prefixes []string, opcodes []Token, operands []string, cpuid []string) *Insn {
	insn := &Insn{
		Mnemonic: mnemonic,
		Prefixes: NewSet(prefixes...),
		Opcodes:  opcodes,
		Operands: operands,
		CPUID:    NewSet(cpuid...),
		exts:     make(map[Kind]string),
	}
	for _, tok := range opcodes {
		if !tok.IsByte() {
			insn.exts[tok.Kind] = tok.Value
		}
	}
	return insn
}

// HasPrefix reports whether the definition lists the named prefix.
func (insn *Insn) HasPrefix(pfx string) bool {
	return insn.Prefixes.Has(pfx)
}

// HasCPUID reports whether the definition requires the given feature.
func (insn *Insn) HasCPUID(feature string) bool {
	return insn.CPUID.Has(feature)
}

// IsDef64 reports whether the operand size defaults to 64 bits in 64-bit
// mode.
func (insn *Insn) IsDef64() bool {
	return insn.HasPrefix("def64")
}

// Extension returns the value of the k extension on the opcode path.
func (insn *Insn) Extension(k Kind) (string, bool) {
	v, ok := insn.exts[k]
	return v, ok
}

func (insn *Insn) Vendor() (string, bool)      { return insn.Extension(KindVendor) }
func (insn *Insn) Mode() (string, bool)        { return insn.Extension(KindMode) }
func (insn *Insn) OperandSize() (string, bool) { return insn.Extension(KindOSize) }

func (insn *Insn) String() string {
	s := insn.Mnemonic
	if len(insn.Operands) > 0 {
		s += " " + strings.Join(insn.Operands, ", ")
	}
	if len(insn.Opcodes) > 0 {
		s += " " + formatPath(insn.Opcodes)
	}
	return s
}
