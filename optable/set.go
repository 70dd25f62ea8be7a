package optable

import (
	"sort"
	"strings"
)

// Set is a set of flag words, such as instruction prefixes or CPUID
// feature names.
type Set map[string]struct{}

// NewSet returns a set holding each of words.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		s.Add(w)
	}
	return s
}

func (s Set) Has(w string) bool {
	_, ok := s[w]
	return ok
}

func (s Set) Add(w string) {
	s[w] = struct{}{}
}

// Sorted returns the members of s in order.
func (s Set) Sorted() []string {
	list := make([]string, 0, len(s))
	for w := range s {
		list = append(list, w)
	}
	sort.Strings(list)
	return list
}

func (s Set) String() string {
	return strings.Join(s.Sorted(), " ")
}
