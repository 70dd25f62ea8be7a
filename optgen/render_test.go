package main

import (
	"bytes"
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/TechLord-Forever/udis86/optable"
)

var renderRecords = []optable.Record{
	{Mnemonic: "nop", Opcodes: []string{"90"}},
	{Mnemonic: "add", Opcodes: []string{"00"}, Operands: []string{"Eb", "Gb"}},
	{Mnemonic: "sgdt", Opcodes: []string{"0f", "01", "/reg=0", "/mod=!11"}, Operands: []string{"M"}},
	{Mnemonic: "push", Opcodes: []string{"50"}, Prefixes: []string{"oso", "def64"}, Operands: []string{"R0v"}},
}

func TestRenderItab(t *testing.T) {
	coll, err := optable.Compile(context.Background(), renderRecords)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := renderItab(&buf, "itab", coll); err != nil {
		t.Fatal(err)
	}
	src := buf.String()

	if _, err := parser.ParseFile(token.NewFileSet(), "itab.go", src, 0); err != nil {
		t.Fatalf("generated source does not parse: %v\n%s", err, src)
	}

	for _, want := range []string{
		"// Code generated by optgen. DO NOT EDIT.",
		"package itab",
		"MnemonicInvalid Mnemonic = iota",
		"MnemonicAdd",
		"MnemonicSgdt",
		`{"E", "b"}, {"G", "b"}`,
		`{"R0", "v"}`,
		`[]string{"def64", "oso"}`,
		`"UD_TAB__OPC_TABLE"`,
		`"UD_TAB__OPC_MOD"`,
		`"UD_TAB__OPC_REG"`,
		// root[0f] refers to table 1.
		"0x8001,",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source does not contain %q:\n%s", want, src)
		}
	}

	// The collapsed sse table is not rendered.
	if strings.Contains(src, "UD_TAB__OPC_SSE") {
		t.Errorf("generated source contains an sse table:\n%s", src)
	}
	if n, want := strings.Count(src, `"UD_TAB__OPC_`), len(coll.Tables()); n != want {
		t.Errorf("rendered %d tables, want %d", n, want)
	}
}

func TestGenerateItab(t *testing.T) {
	coll, err := optable.Compile(context.Background(), renderRecords)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Join(t.TempDir(), "decoder")
	if err := generateItab(context.Background(), dir, "decoder", coll); err != nil {
		t.Fatal(err)
	}
	src, err := os.ReadFile(filepath.Join(dir, "itab.go"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(src, []byte("package decoder\n")) {
		t.Errorf("itab.go has the wrong package:\n%s", src)
	}
}

func TestRenderIdentCollision(t *testing.T) {
	coll, err := optable.Compile(context.Background(), []optable.Record{
		{Mnemonic: "rep_movs", Opcodes: []string{"a4"}},
		{Mnemonic: "rep.movs", Opcodes: []string{"a5"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := renderItab(&buf, "itab", coll); err == nil {
		t.Errorf("renderItab accepted two mnemonics named MnemonicRepMovs")
	}
}
