package search

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/poiesic/bookgrep/core"
)

// Matcher counts occurrences of a compiled pattern in a document.
// Implementations are immutable and safe for concurrent use.
type Matcher interface {
	// Count returns the number of occurrences of the pattern in text.
	Count(text string) int
	// Mode returns the strategy the matcher implements.
	Mode() core.Mode
	// Pattern returns the normalized pattern the matcher was compiled from.
	Pattern() string
}

// Compile validates a query and builds the matcher for its mode.
//
// The pattern is trimmed of surrounding whitespace. An empty pattern compiles
// to a matcher that never matches. Unknown modes fail with core.ErrInvalidMode
// and regular expressions that do not parse fail with core.ErrInvalidPattern.
func Compile(q core.Query) (Matcher, error) {
	pattern := strings.TrimSpace(q.Pattern)

	switch q.Mode {
	case core.ModeKeyword, core.ModeRegex, core.ModeKMP:
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidMode, string(q.Mode))
	}

	if pattern == "" {
		return emptyMatcher{mode: q.Mode}, nil
	}

	switch q.Mode {
	case core.ModeKeyword:
		return newKeywordMatcher(pattern), nil
	case core.ModeRegex:
		return newRegexMatcher(pattern)
	default:
		return newKMPMatcher(pattern), nil
	}
}

// fold maps every rune of s to the canonical member of its simple case
// folding orbit. Two strings fold equal exactly when (?i) would match one
// against the other rune for rune.
func fold(s string) string {
	return strings.Map(foldRune, s)
}

// foldRune returns the smallest rune in the unicode.SimpleFold orbit of r.
func foldRune(r rune) rune {
	if r < utf8.RuneSelf {
		if 'a' <= r && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}
	canon := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < canon {
			canon = f
		}
	}
	return canon
}

// emptyMatcher is the matcher for a blank pattern.
type emptyMatcher struct {
	mode core.Mode
}

func (m emptyMatcher) Count(string) int { return 0 }

func (m emptyMatcher) Mode() core.Mode { return m.mode }

func (m emptyMatcher) Pattern() string { return "" }
