package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCatalog(t *testing.T) {
	input := `[
		{"title": "Emma", "author": "Jane Austen", "releaseDate": "1994-08-01", "content": "Emma Woodhouse"},
		{"title": "Dracula", "releaseDate": "1995-10-01T00:00:00Z", "content": "3 May. Bistritz."},
		{"title": "", "content": "no title"},
		{"title": "Bad date", "releaseDate": "someday", "content": "x"},
		{"title": "No content"}
	]`

	books, problems, err := ParseCatalog("catalog.json", strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, books, 2)
	assert.Equal(t, "Emma", books[0].Title)
	assert.Equal(t, 1994, books[0].ReleaseDate.Year())
	assert.Equal(t, "Dracula", books[1].Title)
	assert.Equal(t, "Unknown", books[1].Author)

	assert.Len(t, problems, 3)
	for _, p := range problems {
		assert.ErrorIs(t, p, ErrParseFailed)
	}
}

func TestParseCatalog_Malformed(t *testing.T) {
	_, _, err := ParseCatalog("bad.json", strings.NewReader(`{"title": "not an array"}`))
	assert.ErrorIs(t, err, ErrParseFailed)
}
