package core

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for books.
// It is generated from a database sequence; checksums use the same type.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Book is a single full-text document in the corpus.
type Book struct {
	Id          ID
	Title       string
	Author      string
	ReleaseDate time.Time
	Content     string
	Checksum    ID // IDFromContent(Content), used to reject duplicate imports
}

// Mode selects the matching strategy for a query.
type Mode string

const (
	// ModeKeyword counts case-insensitive, non-overlapping literal occurrences.
	ModeKeyword Mode = "keyword"
	// ModeRegex counts non-overlapping regular expression matches.
	ModeRegex Mode = "regex"
	// ModeKMP counts overlapping literal occurrences with a Knuth-Morris-Pratt automaton.
	ModeKMP Mode = "kmp"
)

// Modes lists every supported mode in wire order.
var Modes = []Mode{ModeKeyword, ModeRegex, ModeKMP}

// ParseMode converts a wire token into a Mode.
// Tokens are matched exactly; there is no fallback for unknown values.
func ParseMode(token string) (Mode, error) {
	switch m := Mode(token); m {
	case ModeKeyword, ModeRegex, ModeKMP:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidMode, token, modeList())
}

func modeList() string {
	names := make([]string, len(Modes))
	for i, m := range Modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// Query is a single search request.
type Query struct {
	Pattern string
	Mode    Mode
}

// MatchResult is the per-document outcome of running a query.
type MatchResult struct {
	Id         ID
	Occurrence int
	Relevance  float64
}

// SearchResult is a ranked match joined with the book's display metadata.
type SearchResult struct {
	Id          ID        `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	ReleaseDate time.Time `json:"releaseDate"`
	Occurrence  int       `json:"occurrence"`
	Relevance   float64   `json:"relevance"`
}

// NewSearchResult joins a match with the metadata of the book it came from.
func NewSearchResult(book *Book, match MatchResult) *SearchResult {
	return &SearchResult{
		Id:          book.Id,
		Title:       book.Title,
		Author:      book.Author,
		ReleaseDate: book.ReleaseDate,
		Occurrence:  match.Occurrence,
		Relevance:   match.Relevance,
	}
}
