package search

import "github.com/poiesic/bookgrep/core"

// kmpMatcher counts overlapping literal occurrences with a Knuth-Morris-Pratt
// automaton over case-folded bytes. "aa" occurs three times in "aaaa".
type kmpMatcher struct {
	pattern string
	needle  []byte
	failure []int
}

func newKMPMatcher(pattern string) *kmpMatcher {
	needle := []byte(fold(pattern))
	return &kmpMatcher{
		pattern: pattern,
		needle:  needle,
		failure: failureTable(needle),
	}
}

// failureTable returns F where F[i] is the length of the longest proper
// prefix of needle[:i+1] that is also a suffix of it.
func failureTable(needle []byte) []int {
	f := make([]int, len(needle))
	k := 0
	for i := 1; i < len(needle); i++ {
		for k > 0 && needle[i] != needle[k] {
			k = f[k-1]
		}
		if needle[i] == needle[k] {
			k++
		}
		f[i] = k
	}
	return f
}

func (m *kmpMatcher) Count(text string) int {
	n := len(m.needle)
	if n == 0 {
		return 0
	}
	haystack := fold(text)

	count, p := 0, 0
	for t := 0; t < len(haystack); t++ {
		for p > 0 && haystack[t] != m.needle[p] {
			p = m.failure[p-1]
		}
		if haystack[t] == m.needle[p] {
			p++
		}
		if p == n {
			count++
			// continue from the longest border to keep overlapping matches
			p = m.failure[p-1]
		}
	}
	return count
}

func (m *kmpMatcher) Mode() core.Mode { return core.ModeKMP }

func (m *kmpMatcher) Pattern() string { return m.pattern }
