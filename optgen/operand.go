package main

import (
	"strings"
	"unicode"
)

// Operand is a udis86 operand code split into its addressing method and
// its size. "Eb" is method E, size b; "Vx" is method V, size x. Fixed
// register operands such as "AL" or "ST0" have no size.
type Operand struct {
	Method string
	Size   string
}

// ParseOperand splits raw at its trailing run of lower case letters. A
// leading lower case modifier (the "s" of "sIb") stays with the method.
func ParseOperand(raw string) Operand {
	i := len(raw)
	for i > 0 && unicode.IsLower(rune(raw[i-1])) {
		i--
	}
	if i == 0 {
		return Operand{Method: raw}
	}
	return Operand{Method: raw[:i], Size: raw[i:]}
}

func ParseOperands(raw []string) []Operand {
	ret := make([]Operand, len(raw))
	for i, r := range raw {
		ret[i] = ParseOperand(r)
	}
	return ret
}

func (o Operand) String() string {
	return o.Method + o.Size
}

// IsMemory reports whether the operand can only be encoded with a memory
// modrm form.
func (o Operand) IsMemory() bool {
	return strings.HasPrefix(o.Method, "M")
}
