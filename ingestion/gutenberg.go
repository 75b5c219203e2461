package ingestion

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/poiesic/bookgrep/core"
)

const unknownAuthor = "Unknown"

var (
	startMarker = regexp.MustCompile(`(?i)^\*\*\*\s*START OF (THE|THIS) PROJECT GUTENBERG`)
	endMarker   = regexp.MustCompile(`(?i)^\*\*\*\s*END OF (THE|THIS) PROJECT GUTENBERG`)
	headerField = regexp.MustCompile(`(?i)^(title|author|release date|posting date)\s*:\s*(.*)$`)
)

// releaseDateLayouts are tried in order against the cleaned "Release Date:" value.
var releaseDateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January, 2006",
	"January 2006",
	"2006-01-02",
	"2006",
}

// ParseGutenberg reads a Project Gutenberg plain-text ebook.
//
// Title, Author and Release Date come from the header block preceding the
// "*** START OF" marker. Content is the text between the START and END markers;
// files without markers are taken whole. A missing title falls back to the
// file name and a missing author to "Unknown".
func ParseGutenberg(name string, r io.Reader) (*core.Book, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var (
		header   []string
		body     strings.Builder
		inBody   bool
		sawStart bool
	)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case !sawStart && startMarker.MatchString(line):
			sawStart = true
			inBody = true
			continue
		case inBody && endMarker.MatchString(line):
			inBody = false
			continue
		}

		if sawStart {
			if inBody {
				body.WriteString(line)
				body.WriteByte('\n')
			}
			continue
		}
		header = append(header, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParseFailed, name, err)
	}

	book := &core.Book{Author: unknownAuthor}
	parseHeader(header, book)

	if sawStart {
		book.Content = strings.TrimSpace(body.String())
	} else {
		book.Content = strings.TrimSpace(strings.Join(header, "\n"))
	}
	if book.Title == "" {
		book.Title = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	if err := core.ValidateBook(book); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParseFailed, name, err)
	}
	return book, nil
}

// parseHeader fills metadata from header lines. Indented lines continue the previous field.
func parseHeader(lines []string, book *core.Book) {
	var last string
	for _, line := range lines {
		if last != "" && strings.HasPrefix(line, " ") && strings.TrimSpace(line) != "" {
			if last == "title" {
				book.Title += " " + strings.TrimSpace(line)
			}
			continue
		}
		last = ""

		m := headerField.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		field, value := strings.ToLower(m[1]), strings.TrimSpace(m[2])
		if value == "" {
			continue
		}

		switch field {
		case "title":
			if book.Title == "" {
				book.Title = value
				last = field
			}
		case "author":
			if book.Author == unknownAuthor {
				book.Author = value
			}
		case "release date", "posting date":
			if book.ReleaseDate.IsZero() {
				if ts, ok := parseReleaseDate(value); ok {
					book.ReleaseDate = ts
				}
			}
		}
	}
}

// parseReleaseDate accepts the date forms found in Gutenberg headers,
// e.g. "June 1, 1998 [eBook #1342]".
func parseReleaseDate(value string) (time.Time, bool) {
	if i := strings.IndexByte(value, '['); i >= 0 {
		value = value[:i]
	}
	value = strings.TrimSpace(value)

	for _, layout := range releaseDateLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
