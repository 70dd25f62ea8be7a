package optable

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKindIndex(t *testing.T) {
	tests := []struct {
		Name  string
		Kind  Kind
		Value string
		Want  int
	}{
		{"memory mod", KindMod, "!11", 0},
		{"register mod", KindMod, "11", 1},
		{"byte", KindTable, "c4", 0xc4},
		{"reg", KindReg, "7", 7},
		{"rm", KindRM, "0", 0},
		{"x87", KindX87, "3f", 0x3f},
		{"3dnow", Kind3DNow, "bf", 0xbf},
		{"sse none", KindSSE, "none", 0},
		{"sse f2", KindSSE, "f2", 1},
		{"sse f3", KindSSE, "f3", 2},
		{"sse 66", KindSSE, "66", 3},
		{"osize 16", KindOSize, "16", 0},
		{"osize 32", KindOSize, "32", 1},
		{"osize 64", KindOSize, "64", 2},
		{"asize 64", KindASize, "64", 2},
		{"mode 64", KindMode, "64", 1},
		{"mode not 64", KindMode, "!64", 0},
		{"vexw 0", KindVexW, "0", 0},
		{"vexw 1", KindVexW, "1", 1},
		{"vendor amd", KindVendor, "amd", 0},
		{"vendor intel", KindVendor, "intel", 1},
		{"vendor other", KindVendor, "via", 2},
		{"vex none", KindVex, "none", 0},
		{"vex escape", KindVex, "0f38", 2},
		{"vex none alias", KindVex, "none_0f38", 2},
		{"vex prefix", KindVex, "66", 4},
		{"vex prefix escape", KindVex, "66_0f38", 6},
		{"vex f2 0f3a", KindVex, "f2_0f3a", 0xf},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			got, err := test.Kind.Index(test.Value)
			if err != nil {
				t.Fatalf("%s=%s: %v", test.Kind, test.Value, err)
			}
			if got != test.Want {
				t.Errorf("%s=%s: got index %d, want %d", test.Kind, test.Value, got, test.Want)
			}
		})
	}
}

func TestKindIndexInvalid(t *testing.T) {
	tests := []struct {
		Name  string
		Kind  Kind
		Value string
	}{
		{"reg out of range", KindReg, "8"},
		{"rm not hex", KindRM, "r"},
		{"x87 out of range", KindX87, "40"},
		{"byte out of range", KindTable, "100"},
		{"sse unknown prefix", KindSSE, "f1"},
		{"osize unknown width", KindOSize, "8"},
		{"asize not a number", KindASize, "wide"},
		{"vexw unknown", KindVexW, "2"},
		{"vex unknown", KindVex, "0f39"},
		{"vex bad order", KindVex, "0f_66"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			_, err := test.Kind.Index(test.Value)
			if !errors.Is(err, ErrInvalidExtensionValue) {
				t.Fatalf("%s=%s: got error %v, want %v", test.Kind, test.Value, err, ErrInvalidExtensionValue)
			}
			var extErr *ExtensionError
			if !errors.As(err, &extErr) {
				t.Fatalf("%s=%s: got error %T, want *ExtensionError", test.Kind, test.Value, err)
			}
			if extErr.Kind != test.Kind || extErr.Value != test.Value {
				t.Errorf("got error for %s=%s, want %s=%s", extErr.Kind, extErr.Value, test.Kind, test.Value)
			}
		})
	}
}

func TestVocabularyInRange(t *testing.T) {
	for k := KindTable; k < numKinds; k++ {
		vocab := k.Vocabulary()
		if len(vocab) == 0 {
			t.Errorf("%s: empty vocabulary", k)
		}
		seen := make(map[int]string)
		for _, v := range vocab {
			i, err := k.Index(v)
			if err != nil {
				t.Errorf("%s=%s: %v", k, v, err)
				continue
			}
			if i < 0 || i >= k.Size() {
				t.Errorf("%s=%s: index %d outside [0, %d)", k, v, i, k.Size())
			}
			if prev, ok := seen[i]; ok {
				t.Errorf("%s: %s and %s share index %d", k, prev, v, i)
			}
			seen[i] = v
		}
	}
}

func TestKindSizes(t *testing.T) {
	want := map[Kind]int{
		KindTable:  256,
		KindMod:    2,
		KindX87:    64,
		KindReg:    8,
		KindRM:     8,
		KindSSE:    4,
		KindOSize:  3,
		KindASize:  3,
		KindMode:   2,
		KindVexW:   2,
		Kind3DNow:  256,
		KindVendor: 3,
		KindVex:    16,
	}
	got := make(map[Kind]int)
	for k := KindTable; k < numKinds; k++ {
		got[k] = k.Size()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("table sizes (-want +got):\n%s", diff)
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		Name  string
		Text  string
		Want  Token
		Canon string
	}{
		{"byte", "0f", Byte(0x0f), "0f"},
		{"upper case byte", "C4", Byte(0xc4), "c4"},
		{"slash extension", "/reg=3", Ext(KindReg, "3"), "/reg=3"},
		{"bare extension", "reg=3", Ext(KindReg, "3"), "/reg=3"},
		{"short osize", "/o=16", Ext(KindOSize, "16"), "/o=16"},
		{"long osize", "osize=16", Ext(KindOSize, "16"), "/o=16"},
		{"long mode", "mode64=64", Ext(KindMode, "64"), "/m=64"},
		{"long vexw", "vexW=1", Ext(KindVexW, "1"), "/vexw=1"},
		{"mod", "/mod=!11", Ext(KindMod, "!11"), "/mod=!11"},
		{"vex", "/vex=66_0f38", Ext(KindVex, "66_0f38"), "/vex=66_0f38"},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			got, err := ParseToken(test.Text)
			if err != nil {
				t.Fatalf("ParseToken(%q): %v", test.Text, err)
			}
			if diff := cmp.Diff(test.Want, got); diff != "" {
				t.Errorf("ParseToken(%q) (-want +got):\n%s", test.Text, diff)
			}
			if s := got.String(); s != test.Canon {
				t.Errorf("ParseToken(%q).String() = %q, want %q", test.Text, s, test.Canon)
			}
		})
	}
}

func TestParseTokenInvalid(t *testing.T) {
	for _, text := range []string{"", "f", "zz", "0f0f", "/foo=1", "/reg=", "=3"} {
		if tok, err := ParseToken(text); !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("ParseToken(%q) = %v, %v; want %v", text, tok, err, ErrMalformedRecord)
		}
	}
}

func TestVexValue(t *testing.T) {
	tests := []struct {
		Prefix, Escape string
		Want           string
	}{
		{"", "", "none"},
		{"", "0f", "0f"},
		{"66", "", "66"},
		{"66", "0f38", "66_0f38"},
	}
	for _, test := range tests {
		if got := VexValue(test.Prefix, test.Escape); got != test.Want {
			t.Errorf("VexValue(%q, %q) = %q, want %q", test.Prefix, test.Escape, got, test.Want)
		}
	}
}
