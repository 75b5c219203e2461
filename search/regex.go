package search

import (
	"fmt"
	"regexp"

	"github.com/poiesic/bookgrep/core"
)

// regexMatcher counts non-overlapping matches of a case-insensitive RE2 expression.
// Zero-width matches (e.g. "a*" against "bbb") are not occurrences.
type regexMatcher struct {
	pattern string
	re      *regexp.Regexp
}

func newRegexMatcher(pattern string) (*regexMatcher, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidPattern, err)
	}
	return &regexMatcher{pattern: pattern, re: re}, nil
}

func (m *regexMatcher) Count(text string) int {
	count := 0
	for _, loc := range m.re.FindAllStringIndex(text, -1) {
		if loc[1] > loc[0] {
			count++
		}
	}
	return count
}

func (m *regexMatcher) Mode() core.Mode { return core.ModeRegex }

func (m *regexMatcher) Pattern() string { return m.pattern }
