package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepo(t *testing.T) (*BookRepository, *Backend) {
	t.Helper()
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo, backend
}

func sampleBooks(n int) []*core.Book {
	books := make([]*core.Book, n)
	for i := range books {
		books[i] = &core.Book{
			Title:       fmt.Sprintf("Volume %d", i+1),
			Author:      "Anonymous",
			ReleaseDate: time.Date(1900+i, time.January, 1, 0, 0, 0, 0, time.UTC),
			Content:     fmt.Sprintf("contents of volume %d", i+1),
		}
	}
	return books
}

func TestAddBooks(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	added, err := repo.AddBooks(ctx, sampleBooks(3)...)
	require.NoError(t, err)
	require.Len(t, added, 3)

	for _, b := range added {
		assert.NotZero(t, b.Id)
		assert.Equal(t, core.IDFromContent(b.Content), b.Checksum)
	}
	assert.Less(t, added[0].Id, added[1].Id)
	assert.Less(t, added[1].Id, added[2].Id)

	count, err := repo.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestAddBooks_Duplicate(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	_, err := repo.AddBooks(ctx, &core.Book{Title: "A", Content: "same text"})
	require.NoError(t, err)

	t.Run("already stored", func(t *testing.T) {
		_, err := repo.AddBooks(ctx, &core.Book{Title: "B", Content: "same text"})
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("repeated in batch stores nothing", func(t *testing.T) {
		_, err := repo.AddBooks(ctx,
			&core.Book{Title: "C", Content: "fresh"},
			&core.Book{Title: "D", Content: "fresh"},
		)
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)

		count, err := repo.CountBooks(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestGetBook(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	added, err := repo.AddBooks(ctx, sampleBooks(1)...)
	require.NoError(t, err)

	got, err := repo.GetBook(ctx, added[0].Id)
	require.NoError(t, err)
	assert.Equal(t, added[0].Title, got.Title)
	assert.Equal(t, added[0].Content, got.Content)
	assert.True(t, added[0].ReleaseDate.Equal(got.ReleaseDate))

	_, err = repo.GetBook(ctx, core.ID(99999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindByChecksum(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	added, err := repo.AddBooks(ctx, sampleBooks(2)...)
	require.NoError(t, err)

	got, err := repo.FindByChecksum(ctx, core.IDFromContent(added[1].Content))
	require.NoError(t, err)
	assert.Equal(t, added[1].Id, got.Id)

	_, err = repo.FindByChecksum(ctx, core.IDFromContent("not stored"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteBooks(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	added, err := repo.AddBooks(ctx, sampleBooks(2)...)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteBooks(ctx, added[0].Id))

	_, err = repo.GetBook(ctx, added[0].Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.FindByChecksum(ctx, added[0].Checksum)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = repo.DeleteBooks(ctx, added[0].Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Content can be re-imported once deleted
	_, err = repo.AddBooks(ctx, &core.Book{Title: "again", Content: added[0].Content})
	assert.NoError(t, err)
}

func TestDeleteBooks_Corrupt(t *testing.T) {
	repo, backend := setupRepo(t)
	ctx := context.Background()

	added, err := repo.AddBooks(ctx, sampleBooks(2)...)
	require.NoError(t, err)
	victim := added[1]

	// Overwrite the record with garbage; its checksum entry is left behind.
	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeBookKey(victim.Id), []byte{0xFF, 0xFF}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteBooks(ctx, victim.Id))

	_, err = repo.GetBook(ctx, victim.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = repo.FindByChecksum(ctx, victim.Checksum)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The other book and its index entry are untouched
	found, err := repo.FindByChecksum(ctx, added[0].Checksum)
	require.NoError(t, err)
	assert.Equal(t, added[0].Id, found.Id)
}

func TestListBooks(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	_, err := repo.AddBooks(ctx, sampleBooks(5)...)
	require.NoError(t, err)

	tests := []struct {
		name       string
		page       int
		limit      int
		wantTitles []string
	}{
		{"first page", 1, 2, []string{"Volume 1", "Volume 2"}},
		{"second page", 2, 2, []string{"Volume 3", "Volume 4"}},
		{"partial last page", 3, 2, []string{"Volume 5"}},
		{"past the end", 4, 2, []string{}},
		{"everything", 1, 10, []string{"Volume 1", "Volume 2", "Volume 3", "Volume 4", "Volume 5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, total, err := repo.ListBooks(ctx, tt.page, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, 5, total)

			titles := make([]string, len(books))
			for i, b := range books {
				titles[i] = b.Title
			}
			assert.Equal(t, tt.wantTitles, titles)
		})
	}

	t.Run("invalid parameters", func(t *testing.T) {
		_, _, err := repo.ListBooks(ctx, 0, 5)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
		_, _, err = repo.ListBooks(ctx, 1, 0)
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestScanBooks(t *testing.T) {
	repo, backend := setupRepo(t)
	ctx := context.Background()

	added, err := repo.AddBooks(ctx, sampleBooks(3)...)
	require.NoError(t, err)

	t.Run("yields every book in order", func(t *testing.T) {
		var ids []core.ID
		for book, err := range repo.ScanBooks(ctx) {
			require.NoError(t, err)
			ids = append(ids, book.Id)
		}
		assert.Equal(t, []core.ID{added[0].Id, added[1].Id, added[2].Id}, ids)
	})

	t.Run("stops when consumer breaks", func(t *testing.T) {
		n := 0
		for range repo.ScanBooks(ctx) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})

	t.Run("corrupt record is reported and skipped", func(t *testing.T) {
		badID := core.ID(1 << 40)
		err := backend.WithTx(func(tx *badger.Txn) error {
			if err := tx.Set(makeBookKey(badID), []byte{0xFF, 0xFF}); err != nil {
				return err
			}
			return tx.Commit()
		}, true)
		require.NoError(t, err)

		var good int
		var faults []error
		for book, err := range repo.ScanBooks(ctx) {
			if err != nil {
				faults = append(faults, err)
				continue
			}
			require.NotNil(t, book)
			good++
		}
		assert.Equal(t, 3, good)
		require.Len(t, faults, 1)

		var decodeErr *storage.DecodeError
		require.ErrorAs(t, faults[0], &decodeErr)
		assert.Equal(t, badID, decodeErr.ID)
		assert.ErrorIs(t, faults[0], storage.ErrSerializationFailed)
	})

	t.Run("cancelled context stops the scan", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		n := 0
		for range repo.ScanBooks(cctx) {
			n++
		}
		assert.Zero(t, n)
	})
}
