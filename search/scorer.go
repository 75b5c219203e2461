package search

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/poiesic/bookgrep/core"
)

// DefaultDensityUnit is the document length, in characters, that DensityScorer normalizes to.
const DefaultDensityUnit = 10000

// Scorer computes the relevance of a document that matched a query.
// Scores must be deterministic and non-decreasing in occurrence for a fixed document.
type Scorer interface {
	Score(occurrence int, book *core.Book) float64
}

// DensityScorer scores by occurrences per Unit characters of content,
// so a short book with a few hits can outrank a long book with slightly more.
type DensityScorer struct {
	Unit int
}

func (d DensityScorer) Score(occurrence int, book *core.Book) float64 {
	length := utf8.RuneCountInString(book.Content)
	if length == 0 || occurrence <= 0 {
		return 0
	}
	unit := d.Unit
	if unit <= 0 {
		unit = DefaultDensityUnit
	}
	density := float64(occurrence) * float64(unit) / float64(length)
	return math.Round(density*1e4) / 1e4
}

// CountScorer uses the raw occurrence count as relevance.
type CountScorer struct{}

func (CountScorer) Score(occurrence int, _ *core.Book) float64 {
	return float64(occurrence)
}

// ScorerByName returns the scorer registered under name ("density" or "count").
func ScorerByName(name string, densityUnit int) (Scorer, error) {
	switch name {
	case "", "density":
		return DensityScorer{Unit: densityUnit}, nil
	case "count":
		return CountScorer{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScorer, name)
}
