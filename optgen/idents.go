package main

import (
	"strings"
	"unicode"
)

// makeIdentLower turns inp into a lower case Go identifier, dropping
// anything that isn't a letter or digit.
func makeIdentLower(inp string) string {
	var b strings.Builder
	for _, r := range inp {
		switch {
		case unicode.IsDigit(r):
			if b.Len() == 0 {
				b.WriteByte('x')
			}
			b.WriteRune(r)
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// makeIdentTitle turns inp into an exported camel case identifier. Each
// digit run or separator starts a new word, so "cmpxchg8b" becomes
// "Cmpxchg8B".
func makeIdentTitle(inp string) string {
	var b strings.Builder
	nextUpper := true
	for _, r := range inp {
		switch {
		case unicode.IsDigit(r):
			if b.Len() == 0 {
				b.WriteByte('X')
			}
			b.WriteRune(r)
			nextUpper = true
		case unicode.IsLetter(r):
			if nextUpper {
				b.WriteRune(unicode.ToUpper(r))
			} else {
				b.WriteRune(unicode.ToLower(r))
			}
			nextUpper = false
		default:
			nextUpper = true
		}
	}
	return b.String()
}
