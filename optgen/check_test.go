package main

import (
	"context"
	"testing"

	"github.com/TechLord-Forever/udis86/optable"
	"github.com/google/go-cmp/cmp"
)

func TestCrossCheck(t *testing.T) {
	coll, err := optable.Compile(context.Background(), []optable.Record{
		{Mnemonic: "hlt", Opcodes: []string{"f4"}},
		{Mnemonic: "add", Opcodes: []string{"00"}, Operands: []string{"Eb", "Gb"}},
		{Mnemonic: "cpuid", Opcodes: []string{"0f", "a2"}},
		{Mnemonic: "fadd", Opcodes: []string{"d8", "/mod=11", "/x87=00"}, Operands: []string{"ST0", "ST0"}},
		{Mnemonic: "addpd", Opcodes: []string{"0f", "58", "/sse=66"}, Operands: []string{"V", "H", "W"}, CPUID: []string{"sse2", "avx"}},
		{Mnemonic: "syscall", Opcodes: []string{"0f", "05"}, Vendor: []string{"amd"}},
		// f8 is clc.
		{Mnemonic: "stc", Opcodes: []string{"f8"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	checked, mismatches := crossCheck(context.Background(), coll, 64)
	if checked != 6 {
		t.Errorf("checked %d definitions, want 6", checked)
	}
	if len(mismatches) != 1 {
		t.Fatalf("mismatches = %v, want only stc", mismatches)
	}
	if m := mismatches[0]; m.Insn.Mnemonic != "stc" || m.Got != "CLC" {
		t.Errorf("mismatch = %v, want stc decoding as CLC", m)
	}
}

func TestSynthesize(t *testing.T) {
	coll, err := optable.Compile(context.Background(), []optable.Record{
		{Mnemonic: "sgdt", Opcodes: []string{"0f", "01", "/reg=0", "/mod=!11"}, Operands: []string{"M"}},
		{Mnemonic: "cmpxchg16b", Opcodes: []string{"0f", "c7", "/reg=1", "/o=64"}, Operands: []string{"M"}},
		{Mnemonic: "pushw", Opcodes: []string{"50", "/o=16"}, Operands: []string{"R0v"}},
		{Mnemonic: "fld1", Opcodes: []string{"d9", "/mod=11", "/x87=28"}},
		{Mnemonic: "movss", Opcodes: []string{"0f", "10", "/sse=f3"}, Operands: []string{"V", "W"}},
		{Mnemonic: "aaa", Opcodes: []string{"37", "/m=!64"}},
		{Mnemonic: "pi2fw", Opcodes: []string{"0f", "0f", "/3dnow=0c"}, Operands: []string{"P", "Q"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	pad := make([]byte, 8)
	tests := []struct {
		Mnemonic string
		Mode     int
		Want     []byte // nil if the definition is skipped
	}{
		{"sgdt", 64, append([]byte{0x0f, 0x01, 0x00}, pad...)},
		{"cmpxchg16b", 64, append([]byte{0x48, 0x0f, 0xc7, 0x08}, pad...)},
		{"cmpxchg16b", 32, nil},
		{"pushw", 64, append([]byte{0x66, 0x50, 0xc0}, pad...)},
		{"fld1", 32, append([]byte{0xd9, 0xe8}, pad...)},
		{"movss", 64, append([]byte{0xf3, 0x0f, 0x10, 0xc0}, pad...)},
		{"aaa", 32, append([]byte{0x37, 0xc0}, pad...)},
		{"aaa", 64, nil},
		{"pi2fw", 32, nil},
	}

	for _, test := range tests {
		t.Run(test.Mnemonic, func(t *testing.T) {
			insn := coll.Lookup(test.Mnemonic)[0]
			got, ok := synthesize(insn, test.Mode)
			if ok != (test.Want != nil) {
				t.Fatalf("synthesize(%v, %d) ok = %v", insn, test.Mode, ok)
			}
			if diff := cmp.Diff(test.Want, got); diff != "" {
				t.Errorf("synthesize(%v, %d) (-want +got):\n%s", insn, test.Mode, diff)
			}
		})
	}

	if _, ok := synthesize(coll.Invalid(), 64); ok {
		t.Errorf("synthesized code for the invalid instruction")
	}
}
