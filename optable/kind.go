package optable

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies the decode field a table is indexed by. KindTable is the
// plain byte-indexed opcode table; every other kind is an opcode extension.
type Kind uint8

const (
	KindTable  Kind = iota // plain opcode byte
	KindMod                // modrm.mod: memory or register operand
	KindX87                // x87 modrm byte, 0xc0-0xff
	KindReg                // modrm.reg
	KindRM                 // modrm.rm
	KindSSE                // mandatory SSE prefix
	KindOSize              // operand size
	KindASize              // address size
	KindMode               // 64-bit decoding mode
	KindVexW               // VEX.W
	Kind3DNow              // 3DNow! suffix byte
	KindVendor             // cpu vendor
	KindVex                // VEX mandatory prefix and escape
	numKinds
)

// ExtensionOrder is the order extension tokens are appended to a
// definition's literal opcode bytes. sse has to come before osize since
// consuming a mandatory 66 prefix changes how the operand size is decoded.
var ExtensionOrder = []Kind{
	KindMod,
	KindX87,
	KindReg,
	KindRM,
	KindSSE,
	KindOSize,
	KindASize,
	KindMode,
	KindVexW,
	Kind3DNow,
	KindVendor,
}

type kindInfo struct {
	name    string
	aliases []string
	label   string
	size    int
	index   func(v string) (int, bool)
	vocab   func() []string
}

var kinds = [numKinds]kindInfo{
	KindTable: {
		name:  "opctbl",
		label: "UD_TAB__OPC_TABLE",
		size:  256,
		index: hexIndex(256),
		vocab: hexVocab(256),
	},
	KindMod: {
		name:  "/mod",
		label: "UD_TAB__OPC_MOD",
		size:  2,
		// (!11, 11) => (00b, 01b)
		index: func(v string) (int, bool) {
			if v == "!11" {
				return 0, true
			}
			return 1, true
		},
		vocab: words("!11", "11"),
	},
	KindX87: {
		name:  "/x87",
		label: "UD_TAB__OPC_X87",
		size:  64,
		index: hexIndex(64),
		vocab: hexVocab(64),
	},
	KindReg: {
		name:  "/reg",
		label: "UD_TAB__OPC_REG",
		size:  8,
		index: hexIndex(8),
		vocab: hexVocab(8),
	},
	KindRM: {
		name:  "/rm",
		label: "UD_TAB__OPC_RM",
		size:  8,
		index: hexIndex(8),
		vocab: hexVocab(8),
	},
	KindSSE: {
		name:  "/sse",
		label: "UD_TAB__OPC_SSE",
		size:  4,
		index: sseIndex,
		vocab: words("none", "f2", "f3", "66"),
	},
	KindOSize: {
		name:    "/o",
		aliases: []string{"osize"},
		label:   "UD_TAB__OPC_OSIZE",
		size:    3,
		index:   sizeIndex,
		vocab:   words("16", "32", "64"),
	},
	KindASize: {
		name:    "/a",
		aliases: []string{"asize"},
		label:   "UD_TAB__OPC_ASIZE",
		size:    3,
		index:   sizeIndex,
		vocab:   words("16", "32", "64"),
	},
	KindMode: {
		name:    "/m",
		aliases: []string{"mode64"},
		label:   "UD_TAB__OPC_MODE",
		size:    2,
		// (!64, 64) => (00b, 01b)
		index: func(v string) (int, bool) {
			if v == "64" {
				return 1, true
			}
			return 0, true
		},
		vocab: words("!64", "64"),
	},
	KindVexW: {
		name:    "/vexw",
		aliases: []string{"vexW"},
		label:   "UD_TAB__OPC_VEX_W",
		size:    2,
		index: func(v string) (int, bool) {
			switch v {
			case "0":
				return 0, true
			case "1":
				return 1, true
			}
			return 0, false
		},
		vocab: words("0", "1"),
	},
	Kind3DNow: {
		name:  "/3dnow",
		label: "UD_TAB__OPC_3DNOW",
		size:  256,
		index: hexIndex(256),
		vocab: hexVocab(256),
	},
	KindVendor: {
		name:  "/vendor",
		label: "UD_TAB__OPC_VENDOR",
		size:  3,
		index: func(v string) (int, bool) {
			switch v {
			case "amd":
				return 0, true
			case "intel":
				return 1, true
			}
			return 2, true
		},
		vocab: words("amd", "intel", "any"),
	},
	KindVex: {
		name:  "/vex",
		label: "UD_TAB__OPC_VEX",
		size:  16,
		index: func(v string) (int, bool) {
			i, ok := vexIndex[strings.TrimPrefix(v, "none_")]
			return i, ok
		},
		vocab: func() []string {
			var vs []string
			for _, pp := range vexPrefixes {
				for _, m := range vexEscapes {
					vs = append(vs, VexValue(pp, m))
				}
			}
			return vs
		},
	},
}

// vexPrefixes and vexEscapes are the two axes of the vex kind. The empty
// string stands for an absent prefix or escape.
var (
	vexPrefixes = []string{"", "f2", "f3", "66"}
	vexEscapes  = []string{"", "0f", "0f38", "0f3a"}
)

var vexIndex = map[string]int{
	"none":    0x0,
	"0f":      0x1,
	"0f38":    0x2,
	"0f3a":    0x3,
	"66":      0x4,
	"66_0f":   0x5,
	"66_0f38": 0x6,
	"66_0f3a": 0x7,
	"f3":      0x8,
	"f3_0f":   0x9,
	"f3_0f38": 0xa,
	"f3_0f3a": 0xb,
	"f2":      0xc,
	"f2_0f":   0xd,
	"f2_0f38": 0xe,
	"f2_0f3a": 0xf,
}

// VexValue combines a mandatory prefix and an escape into a vex extension
// value. Either may be empty, but not both.
func VexValue(prefix, escape string) string {
	switch {
	case prefix == "" && escape == "":
		return "none"
	case prefix == "":
		return escape
	case escape == "":
		return prefix
	}
	return prefix + "_" + escape
}

func hexIndex(size int) func(string) (int, bool) {
	return func(v string) (int, bool) {
		n, err := strconv.ParseUint(v, 16, 16)
		if err != nil || int(n) >= size {
			return 0, false
		}
		return int(n), true
	}
}

func hexVocab(size int) func() []string {
	return func() []string {
		vs := make([]string, size)
		for i := range vs {
			vs[i] = fmt.Sprintf("%02x", i)
		}
		return vs
	}
}

func words(vs ...string) func() []string {
	return func() []string { return vs }
}

// sseIndex maps none to 0 and a mandatory prefix byte to ((b&0xf)+1)/2,
// so f2, f3 and 66 land in 1, 2 and 3.
func sseIndex(v string) (int, bool) {
	switch v {
	case "none":
		return 0, true
	case "f2", "f3", "66":
		b, _ := strconv.ParseUint(v, 16, 8)
		return int(((b & 0xf) + 1) / 2), true
	}
	return 0, false
}

// sizeIndex maps (16, 32, 64) to (0, 1, 2).
func sizeIndex(v string) (int, bool) {
	switch v {
	case "16", "32", "64":
		n, _ := strconv.Atoi(v)
		return n / 32, true
	}
	return 0, false
}

// Size returns the number of slots in a table of kind k.
func (k Kind) Size() int {
	return kinds[k].size
}

// Label returns the symbolic table type name used by renderers.
func (k Kind) Label() string {
	return kinds[k].label
}

// Vocabulary returns every symbolic value k knows how to resolve. For
// vendor, "any" stands in for every non-amd, non-intel vendor.
func (k Kind) Vocabulary() []string {
	return kinds[k].vocab()
}

// Index resolves the symbolic value v to a slot in a table of kind k.
func (k Kind) Index(v string) (int, error) {
	if k >= numKinds {
		return 0, &ExtensionError{Kind: k, Value: v}
	}
	i, ok := kinds[k].index(v)
	if !ok || i < 0 || i >= kinds[k].size {
		return 0, &ExtensionError{Kind: k, Value: v}
	}
	return i, nil
}

func (k Kind) String() string {
	if k >= numKinds {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kinds[k].name
}

// kindByName finds the extension kind for a token name, with or without
// its leading slash.
func kindByName(name string) (Kind, bool) {
	name = strings.TrimPrefix(name, "/")
	for k := KindMod; k < numKinds; k++ {
		if name == kinds[k].name[1:] {
			return k, true
		}
		for _, alias := range kinds[k].aliases {
			if name == alias {
				return k, true
			}
		}
	}
	return 0, false
}

// Token is one step of an opcode path: either a literal opcode byte
// (Kind == KindTable) or an extension selector.
type Token struct {
	Kind  Kind
	Value string
}

// Byte returns a literal opcode byte token.
func Byte(b byte) Token {
	return Token{Kind: KindTable, Value: fmt.Sprintf("%02x", b)}
}

// Ext returns an extension token.
func Ext(k Kind, v string) Token {
	return Token{Kind: k, Value: v}
}

// ParseToken parses either a two digit hex byte or a [/]name=value
// extension selector. The value is not resolved here.
func ParseToken(s string) (Token, error) {
	name, value, ok := strings.Cut(s, "=")
	if !ok {
		n, err := strconv.ParseUint(s, 16, 8)
		if err != nil || len(s) != 2 {
			return Token{}, fmt.Errorf("%w: bad opcode byte %q", ErrMalformedRecord, s)
		}
		return Byte(byte(n)), nil
	}
	k, ok := kindByName(name)
	if !ok || value == "" {
		return Token{}, fmt.Errorf("%w: bad opcode extension %q", ErrMalformedRecord, s)
	}
	return Token{Kind: k, Value: value}, nil
}

// MustParseTokens parses a list of tokens, panicking on error.
func MustParseTokens(ss ...string) []Token {
	toks, err := ParseTokens(ss)
	if err != nil {
		panic(err)
	}
	return toks
}

// ParseTokens parses each of ss.
func ParseTokens(ss []string) ([]Token, error) {
	toks := make([]Token, len(ss))
	for i, s := range ss {
		tok, err := ParseToken(s)
		if err != nil {
			return nil, err
		}
		toks[i] = tok
	}
	return toks, nil
}

// Index resolves the slot t selects in a table of t.Kind.
func (t Token) Index() (int, error) {
	return t.Kind.Index(t.Value)
}

// IsByte reports whether t is a literal opcode byte.
func (t Token) IsByte() bool {
	return t.Kind == KindTable
}

func (t Token) String() string {
	if t.Kind == KindTable {
		return t.Value
	}
	return t.Kind.String() + "=" + t.Value
}

func formatPath(toks []Token) string {
	var b strings.Builder
	for i, tok := range toks {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok.String())
	}
	return b.String()
}
