package search

import (
	"strings"

	"github.com/poiesic/bookgrep/core"
)

// keywordMatcher counts case-insensitive, non-overlapping literal occurrences.
// After a match the scan resumes just past it, so "aa" occurs twice in "aaaa".
type keywordMatcher struct {
	pattern string
	folded  string
}

func newKeywordMatcher(pattern string) *keywordMatcher {
	return &keywordMatcher{pattern: pattern, folded: fold(pattern)}
}

func (m *keywordMatcher) Count(text string) int {
	return strings.Count(fold(text), m.folded)
}

func (m *keywordMatcher) Mode() core.Mode { return core.ModeKeyword }

func (m *keywordMatcher) Pattern() string { return m.pattern }
