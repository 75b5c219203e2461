package ingestion

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/poiesic/bookgrep/core"
)

// catalogEntry is one element of a JSON catalog file.
type catalogEntry struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	ReleaseDate string `json:"releaseDate"`
	Content     string `json:"content"`
}

// ParseCatalog reads a JSON array of books:
//
//	[{"title": "...", "author": "...", "releaseDate": "1998-06-01", "content": "..."}]
//
// releaseDate may be empty, a date, RFC 3339, or any form accepted in Gutenberg headers.
// Entries that fail validation are returned as errors alongside the valid books.
func ParseCatalog(name string, r io.Reader) ([]*core.Book, []error, error) {
	var entries []catalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrParseFailed, name, err)
	}

	books := make([]*core.Book, 0, len(entries))
	var problems []error
	for i, e := range entries {
		book := &core.Book{
			Title:   strings.TrimSpace(e.Title),
			Author:  strings.TrimSpace(e.Author),
			Content: e.Content,
		}
		if book.Author == "" {
			book.Author = unknownAuthor
		}
		if e.ReleaseDate != "" {
			ts, ok := parseCatalogDate(e.ReleaseDate)
			if !ok {
				problems = append(problems, fmt.Errorf("%w: %s[%d]: unrecognized releaseDate %q", ErrParseFailed, name, i, e.ReleaseDate))
				continue
			}
			book.ReleaseDate = ts
		}
		if err := core.ValidateBook(book); err != nil {
			problems = append(problems, fmt.Errorf("%w: %s[%d]: %w", ErrParseFailed, name, i, err))
			continue
		}
		books = append(books, book)
	}
	return books, problems, nil
}

func parseCatalogDate(value string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), true
	}
	return parseReleaseDate(value)
}
