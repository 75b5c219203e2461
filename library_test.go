package bookgrep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/bookgrep/config"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/search"
	"github.com/poiesic/bookgrep/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryLibrary(t *testing.T) *Library {
	t.Helper()
	cfg := config.NewConfig(config.WithInMemory(true), config.WithSearchWorkers(2))
	lib, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { lib.Close() })
	return lib
}

func writeBook(t *testing.T, dir, name, title, body string) {
	t.Helper()
	text := "Title: " + title + "\nAuthor: Anonymous\nRelease Date: May 1, 1901\n\n" +
		"*** START OF THE PROJECT GUTENBERG EBOOK ***\n" + body + "\n*** END OF THE PROJECT GUTENBERG EBOOK ***\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0644))
}

func TestOpen(t *testing.T) {
	t.Run("create new library", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "test_db")
		lib, err := Open(context.Background(), config.NewConfig(config.WithStoragePath(dir)))
		require.NoError(t, err)
		require.NotNil(t, lib)
		defer lib.Close()

		// Verify components are initialized
		assert.NotNil(t, lib.Repository())
		assert.NotNil(t, lib.Snapshot())
		assert.NotNil(t, lib.Searcher())
		assert.Equal(t, 0, lib.Len())
	})

	t.Run("error with invalid path", func(t *testing.T) {
		// Try to create a database at a file path instead of directory
		tmpFile := filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(tmpFile, []byte("test"), 0644))

		lib, err := Open(context.Background(), config.NewConfig(config.WithStoragePath(tmpFile)))
		assert.Error(t, err)
		assert.Nil(t, lib)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := config.NewConfig(config.WithInMemory(true))
		cfg.Search.Scorer = "bm25"

		_, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("reopen sees stored books", func(t *testing.T) {
		dbDir := filepath.Join(t.TempDir(), "db")
		srcDir := t.TempDir()
		writeBook(t, srcDir, "a.txt", "Alpha", "the whale")

		cfg := config.NewConfig(config.WithStoragePath(dbDir))
		lib, err := Open(context.Background(), cfg)
		require.NoError(t, err)
		_, err = lib.Import(context.Background(), srcDir)
		require.NoError(t, err)
		require.NoError(t, lib.Close())

		lib, err = Open(context.Background(), cfg)
		require.NoError(t, err)
		defer lib.Close()
		assert.Equal(t, 1, lib.Len())
	})
}

func TestLibrary_Close(t *testing.T) {
	lib, err := Open(context.Background(), config.NewConfig(config.WithStoragePath(t.TempDir())))
	require.NoError(t, err)
	assert.NoError(t, lib.Close())
}

type stubCloser struct {
	err    error
	closed bool
}

func (c *stubCloser) Close() error {
	c.closed = true
	return c.err
}

func TestCloseAll(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("keeps closing after a failure", func(t *testing.T) {
		repoErr := errors.New("sequence lease lost")
		repo := &stubCloser{err: repoErr}
		backend := &stubCloser{}

		err := closeAll(logger, namedCloser{"book repository", repo}, namedCloser{"backend storage", backend})
		assert.ErrorIs(t, err, repoErr)
		assert.True(t, repo.closed)
		assert.True(t, backend.closed)
	})

	t.Run("joins every error", func(t *testing.T) {
		first, second := errors.New("first"), errors.New("second")
		err := closeAll(logger,
			namedCloser{"a", &stubCloser{err: first}},
			namedCloser{"b", &stubCloser{err: second}},
		)
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
	})

	t.Run("nil when all close", func(t *testing.T) {
		assert.NoError(t, closeAll(logger, namedCloser{"a", &stubCloser{}}))
	})
}

func TestLibrary_ImportAndSearch(t *testing.T) {
	lib := openMemoryLibrary(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeBook(t, dir, "one.txt", "One", "The whale, the WHALE and the sea.")
	writeBook(t, dir, "two.txt", "Two", "A single whale.")
	writeBook(t, dir, "three.txt", "Three", "No cetaceans here.")

	report, err := lib.Import(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Imported)
	assert.Equal(t, 3, lib.Len(), "import reloads the corpus")

	t.Run("keyword ranks by occurrence", func(t *testing.T) {
		results, err := lib.SearchBooks(ctx, "whale", "keyword")
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "One", results[0].Title)
		assert.Equal(t, 2, results[0].Occurrence)
		assert.Equal(t, "Two", results[1].Title)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := lib.SearchBooks(ctx, "whale", "fuzzy")
		assert.ErrorIs(t, err, core.ErrInvalidMode)
	})

	t.Run("invalid regex", func(t *testing.T) {
		_, err := lib.SearchBooks(ctx, "(whale", "regex")
		assert.ErrorIs(t, err, core.ErrInvalidPattern)
	})

	t.Run("no matches is empty", func(t *testing.T) {
		results, err := lib.SearchBooks(ctx, "kraken", "kmp")
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	})

	t.Run("monitor sees every book", func(t *testing.T) {
		stats := &search.StatsMonitor{}
		_, err := lib.Search(ctx, core.Query{Pattern: "whale", Mode: core.ModeKMP}, stats)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Scanned())
		assert.Equal(t, 2, stats.Matched())
	})

	t.Run("listing and lookup", func(t *testing.T) {
		books, total, err := lib.ListBooks(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, books, 2)

		got, err := lib.GetBook(ctx, books[0].Id)
		require.NoError(t, err)
		assert.Equal(t, books[0].Title, got.Title)

		_, err = lib.GetBook(ctx, core.ID(999999))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("reimport skips duplicates", func(t *testing.T) {
		report, err := lib.Import(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Imported)
		assert.Equal(t, 3, report.Skipped)
		assert.Equal(t, 3, lib.Len())
	})
}

func TestLibrary_Reload(t *testing.T) {
	lib := openMemoryLibrary(t)
	ctx := context.Background()

	_, err := lib.Repository().AddBooks(ctx, &core.Book{
		Title:       "Direct",
		Content:     "written around the importer",
		ReleaseDate: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		Checksum:    core.IDFromContent("written around the importer"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, lib.Len(), "snapshot is unchanged until reload")

	require.NoError(t, lib.Reload(ctx))
	assert.Equal(t, 1, lib.Len())
}

func TestLibrary_NewWatcher(t *testing.T) {
	lib := openMemoryLibrary(t)

	w, err := lib.NewWatcher(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, w)

	_, err = lib.NewWatcher(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLibrary_Audit(t *testing.T) {
	lib := openMemoryLibrary(t)
	ctx := context.Background()

	dir := t.TempDir()
	writeBook(t, dir, "one.txt", "One", "first book")
	_, err := lib.Import(ctx, dir)
	require.NoError(t, err)

	report, err := lib.Audit(ctx, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.True(t, report.Healthy())
	assert.Equal(t, 1, lib.Len())
}
