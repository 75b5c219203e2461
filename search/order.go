package search

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/bookgrep/core"
)

// SortKey names a field search results can be reordered by.
type SortKey string

const (
	// SortRelevance keeps the ranking order: occurrence, then relevance, then id.
	SortRelevance SortKey = "relevance"
	SortTitle     SortKey = "title"
	SortAuthor    SortKey = "author"
	SortDate      SortKey = "date"
)

// ParseSortKey converts a wire token into a SortKey. Empty means SortRelevance.
func ParseSortKey(token string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(token)); k {
	case "":
		return SortRelevance, nil
	case SortRelevance, SortTitle, SortAuthor, SortDate:
		return k, nil
	}
	return "", fmt.Errorf("unknown sort key %q", token)
}

// Reorder sorts ranked results in place by key: title and author
// alphabetically ignoring case, date oldest first, relevance best first.
// Reverse flips the primary key only; ties fall back to the ranking order so
// the output stays deterministic.
func Reorder(results []*core.SearchResult, key SortKey, reverse bool) {
	if key == SortRelevance && !reverse {
		sortResults(results)
		return
	}

	sign := 1
	if reverse {
		sign = -1
	}
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		var c int
		switch key {
		case SortTitle:
			c = compareFolded(a.Title, b.Title)
		case SortAuthor:
			c = compareFolded(a.Author, b.Author)
		case SortDate:
			c = a.ReleaseDate.Compare(b.ReleaseDate)
		default:
			c = rank(a, b)
		}
		if c != 0 {
			return sign * c
		}
		return rank(a, b)
	})
}

// rank is the comparison used by sortResults.
func rank(a, b *core.SearchResult) int {
	if c := cmp.Compare(b.Occurrence, a.Occurrence); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Relevance, a.Relevance); c != 0 {
		return c
	}
	return cmp.Compare(a.Id, b.Id)
}

func compareFolded(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
