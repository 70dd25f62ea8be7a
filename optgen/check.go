package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/TechLord-Forever/udis86/optable"
	"golang.org/x/arch/x86/x86asm"
	"zombiezen.com/go/log"
)

// A mismatch is a definition that x86asm decodes as something else.
type mismatch struct {
	Insn *optable.Insn
	Code []byte
	Got  string // x86asm's mnemonic, or its decode error
}

func (m mismatch) String() string {
	return fmt.Sprintf("%s: % x decodes as %s", m.Insn, m.Code, m.Got)
}

// crossCheck decodes a synthesized encoding of every definition it can
// build machine code for and compares mnemonics. Definitions are skipped
// if their path needs a VEX prefix, 3DNow! suffix or address size, if they
// are AMD only, or if they are not valid in mode.
func crossCheck(ctx context.Context, coll *optable.Collection, mode int) (checked int, mismatches []mismatch) {
	for _, insn := range coll.Insns() {
		code, ok := synthesize(insn, mode)
		if !ok {
			continue
		}
		checked++
		inst, err := x86asm.Decode(code, mode)
		if err != nil {
			mismatches = append(mismatches, mismatch{Insn: insn, Code: code, Got: err.Error()})
			continue
		}
		if got := inst.Op.String(); !strings.EqualFold(got, insn.Mnemonic) {
			mismatches = append(mismatches, mismatch{Insn: insn, Code: code[:inst.Len], Got: got})
		}
	}
	log.Debugf(ctx, "Checked %d of %d definitions against x86asm", checked, len(coll.Insns()))
	return checked, mismatches
}

// synthesize builds machine code selecting insn's path in mode. The modrm
// byte defaults to a register form unless an operand is memory only, and
// zero padding supplies any displacement or immediate.
func synthesize(insn *optable.Insn, mode int) ([]byte, bool) {
	if len(insn.Opcodes) == 0 {
		return nil, false
	}

	var prefixes, opcodes []byte
	var rex byte
	mod, reg, rm := 3, 0, 0
	if slices.ContainsFunc(ParseOperands(insn.Operands), Operand.IsMemory) {
		mod = 0
	}
	x87 := -1

	for _, tok := range insn.Opcodes {
		i, err := tok.Index()
		if err != nil {
			return nil, false
		}
		switch tok.Kind {
		case optable.KindTable:
			opcodes = append(opcodes, byte(i))
		case optable.KindMod:
			mod = 3 * i
		case optable.KindReg:
			reg = i
		case optable.KindRM:
			rm = i
		case optable.KindX87:
			x87 = i
		case optable.KindSSE:
			if tok.Value != "none" {
				b, err := strconv.ParseUint(tok.Value, 16, 8)
				if err != nil {
					return nil, false
				}
				prefixes = append(prefixes, byte(b))
			}
		case optable.KindOSize:
			switch tok.Value {
			case "16":
				prefixes = slices.Insert(prefixes, 0, 0x66)
			case "64":
				if mode != 64 {
					return nil, false
				}
				rex = 0x48
			}
		case optable.KindMode:
			if (tok.Value == "64") != (mode == 64) {
				return nil, false
			}
		case optable.KindVendor:
			if tok.Value == "amd" {
				return nil, false
			}
		default:
			return nil, false
		}
	}

	modrm := byte(mod<<6 | reg<<3 | rm)
	if x87 >= 0 {
		modrm = 0xc0 | byte(x87)
	}

	code := slices.Clone(prefixes)
	if rex != 0 {
		code = append(code, rex)
	}
	code = append(code, opcodes...)
	code = append(code, modrm)
	code = append(code, make([]byte, 8)...)
	return code, true
}
