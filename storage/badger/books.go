package badger

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/storage"
)

// BookRepository implements storage.BookRepository for BadgerDB.
type BookRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.BookRepository = (*BookRepository)(nil)

// NewBookRepository creates a new BookRepository.
func NewBookRepository(backend *Backend) (*BookRepository, error) {
	idSeq, err := backend.GetSequence(bookIDSeq)
	if err != nil {
		return nil, err
	}

	return &BookRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *BookRepository) Close() error {
	return r.idSeq.Release()
}

// AddBooks adds one or more books to storage in a single transaction.
func (r *BookRepository) AddBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		seen := make(map[core.ID]struct{}, len(books))
		for _, book := range books {
			book.Checksum = core.IDFromContent(book.Content)

			if _, dup := seen[book.Checksum]; dup {
				return fmt.Errorf("%w: %q repeated in batch", storage.ErrDuplicateKey, book.Title)
			}
			seen[book.Checksum] = struct{}{}

			sumKey := makeBookChecksumKey(book.Checksum)
			if _, err := tx.Get(sumKey); err == nil {
				return fmt.Errorf("%w: %q already stored", storage.ErrDuplicateKey, book.Title)
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			nextID, err := r.nextID()
			if err != nil {
				return err
			}
			book.Id = nextID

			if err := tx.Set(makeBookKey(book.Id), storage.MarshalBook(book)); err != nil {
				return err
			}
			if err := tx.Set(sumKey, storage.MarshalID(book.Id)); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
		return nil
	}, true)

	return books, err
}

// nextID draws the next non-zero ID from the sequence.
func (r *BookRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// DeleteBooks removes books by their IDs.
// Records that no longer decode are removed along with every checksum entry
// pointing at them.
func (r *BookRepository) DeleteBooks(ctx context.Context, ids ...core.ID) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			key := makeBookKey(id)

			book, err := readBook(tx, key)
			switch {
			case errors.Is(err, storage.ErrSerializationFailed), errors.Is(err, storage.ErrTruncatedData):
				if err := deleteChecksumsFor(tx, id); err != nil {
					return err
				}
			case err != nil:
				return err
			case book == nil:
				return fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
			default:
				if err := deleteChecksumIfOwned(tx, book.Checksum, id); err != nil {
					return err
				}
			}

			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrTransactionFailed, err)
		}
		return nil
	}, true)
}

// GetBook retrieves a single book by ID.
func (r *BookRepository) GetBook(ctx context.Context, id core.ID) (*core.Book, error) {
	var result *core.Book
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readBook(tx, makeBookKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
		}
		return nil
	}, false)
	return result, err
}

// FindByChecksum looks up a book through the checksum index.
func (r *BookRepository) FindByChecksum(ctx context.Context, checksum core.ID) (*core.Book, error) {
	var result *core.Book
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeBookChecksumKey(checksum))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			var err error
			id, err = storage.UnmarshalID(val)
			return err
		}); err != nil {
			return err
		}

		result, err = readBook(tx, makeBookKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// CountBooks returns the number of stored books.
func (r *BookRepository) CountBooks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		iter := newKeyIterator(tx)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ListBooks returns one 1-based page of books in ID order together with the total count.
func (r *BookRepository) ListBooks(ctx context.Context, page, limit int) ([]*core.Book, int, error) {
	if page < 1 || limit < 1 {
		return nil, 0, fmt.Errorf("%w: page=%d limit=%d", storage.ErrInvalidQuery, page, limit)
	}

	offset := (page - 1) * limit
	results := make([]*core.Book, 0, limit)
	total := 0

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		iter := newKeyIterator(tx)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			pos := total
			total++
			if pos < offset || pos >= offset+limit {
				continue
			}

			var book *core.Book
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				book, err = storage.UnmarshalBook(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, book)
		}
		return nil
	}, false)
	if err != nil {
		return nil, 0, err
	}

	return results, total, nil
}

// ScanBooks iterates every stored book in ID order.
// Decode failures are yielded with the offending ID in the error and iteration continues.
func (r *BookRepository) ScanBooks(ctx context.Context) iter.Seq2[*core.Book, error] {
	return func(yield func(*core.Book, error) bool) {
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(bookPrefix)
			iter := tx.NewIterator(opts)
			defer iter.Close()

			for iter.Rewind(); iter.Valid(); iter.Next() {
				if ctx.Err() != nil {
					return nil
				}

				item := iter.Item()
				var book *core.Book
				err := item.Value(func(val []byte) error {
					var err error
					book, err = storage.UnmarshalBook(val)
					return err
				})
				if err != nil {
					id, _ := bookIDFromKey(item.KeyCopy(nil))
					if !yield(nil, &storage.DecodeError{ID: id, Err: err}) {
						return nil
					}
					continue
				}
				if !yield(book, nil) {
					return nil
				}
			}
			return nil
		}, false)
		if err != nil {
			yield(nil, err)
		}
	}
}

// deleteChecksumIfOwned removes the checksum entry only when it maps to id,
// so deleting a stray copy leaves the original's entry in place.
func deleteChecksumIfOwned(tx *badger.Txn, checksum, id core.ID) error {
	key := makeBookChecksumKey(checksum)
	item, err := tx.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var owner core.ID
	if err := item.Value(func(val []byte) error {
		var err error
		owner, err = storage.UnmarshalID(val)
		return err
	}); err != nil {
		return err
	}
	if owner != id {
		return nil
	}
	return tx.Delete(key)
}

// deleteChecksumsFor removes checksum entries that map to id.
func deleteChecksumsFor(tx *badger.Txn, id core.ID) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(bookChecksumPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var stale [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		err := item.Value(func(val []byte) error {
			target, err := storage.UnmarshalID(val)
			if err == nil && target == id {
				stale = append(stale, item.KeyCopy(nil))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	for _, key := range stale {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// newKeyIterator returns an iterator over primary book keys.
func newKeyIterator(tx *badger.Txn) *badger.Iterator {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(bookPrefix)
	opts.PrefetchValues = false
	return tx.NewIterator(opts)
}

// readBook reads a book from the transaction.
// Returns nil, nil if the key does not exist.
func readBook(tx *badger.Txn, key []byte) (*core.Book, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var book *core.Book
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		book, unmarshalErr = storage.UnmarshalBook(val)
		return unmarshalErr
	})
	return book, err
}
