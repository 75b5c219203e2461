package search

import (
	"strings"
	"testing"

	"github.com/poiesic/bookgrep/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDensityScorer(t *testing.T) {
	scorer := DensityScorer{Unit: 100}
	book := &core.Book{Content: strings.Repeat("x", 200)}

	assert.Equal(t, 0.0, scorer.Score(0, book))
	assert.Equal(t, 0.5, scorer.Score(1, book))
	assert.Equal(t, 1.5, scorer.Score(3, book))

	t.Run("monotonic in occurrence", func(t *testing.T) {
		prev := -1.0
		for occ := 0; occ <= 50; occ++ {
			score := scorer.Score(occ, book)
			assert.GreaterOrEqual(t, score, prev)
			prev = score
		}
	})

	t.Run("shorter documents score higher for the same count", func(t *testing.T) {
		short := &core.Book{Content: strings.Repeat("x", 50)}
		assert.Greater(t, scorer.Score(2, short), scorer.Score(2, book))
	})

	t.Run("counts characters not bytes", func(t *testing.T) {
		ascii := &core.Book{Content: strings.Repeat("e", 100)}
		accented := &core.Book{Content: strings.Repeat("é", 100)}
		assert.Equal(t, scorer.Score(1, ascii), scorer.Score(1, accented))
	})

	t.Run("empty content", func(t *testing.T) {
		assert.Equal(t, 0.0, scorer.Score(3, &core.Book{}))
	})

	t.Run("zero unit uses default", func(t *testing.T) {
		doc := &core.Book{Content: strings.Repeat("x", DefaultDensityUnit)}
		assert.Equal(t, 1.0, DensityScorer{}.Score(1, doc))
	})
}

func TestScorerByName(t *testing.T) {
	s, err := ScorerByName("density", 500)
	require.NoError(t, err)
	assert.Equal(t, DensityScorer{Unit: 500}, s)

	s, err = ScorerByName("", 0)
	require.NoError(t, err)
	assert.IsType(t, DensityScorer{}, s)

	s, err = ScorerByName("count", 0)
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.Score(4, &core.Book{Content: "whatever"}))

	_, err = ScorerByName("bm25", 0)
	assert.ErrorIs(t, err, ErrUnknownScorer)
}
