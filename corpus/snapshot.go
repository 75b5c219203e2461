// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package corpus

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/storage"
)

// Snapshot is an immutable in-memory view of a storage.Corpus.
type Snapshot struct {
	source storage.Corpus
	logger *slog.Logger

	mu      sync.RWMutex
	current *generation
}

// generation is one loaded copy of the corpus. It is never modified after load.
type generation struct {
	books    []*core.Book // ordered by id
	byID     map[core.ID]*core.Book
	faults   []error
	loadedAt time.Time
}

var _ storage.Corpus = (*Snapshot)(nil)

// Option configures a Snapshot.
type Option func(*Snapshot)

// WithLogger sets the logger used for load diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Snapshot) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Load reads every book from source and returns a snapshot of them.
// Records that fail to decode are left out and logged; they are not fatal.
func Load(ctx context.Context, source storage.Corpus, opts ...Option) (*Snapshot, error) {
	if source == nil {
		return nil, fmt.Errorf("corpus source cannot be nil")
	}

	s := &Snapshot{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gen, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.current = gen
	return s, nil
}

// Reload re-reads the source and atomically replaces the snapshot contents.
// On error the previous contents stay in place.
func (s *Snapshot) Reload(ctx context.Context) error {
	gen, err := s.load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = gen
	s.mu.Unlock()
	return nil
}

func (s *Snapshot) load(ctx context.Context) (*generation, error) {
	start := time.Now()
	gen := &generation{
		byID: make(map[core.ID]*core.Book),
	}

	for book, err := range s.source.ScanBooks(ctx) {
		if err != nil {
			var decodeErr *storage.DecodeError
			if !errors.As(err, &decodeErr) {
				return nil, fmt.Errorf("loading corpus: %w", err)
			}
			s.logger.Warn("skipping unreadable book", "id", decodeErr.ID, "err", err)
			gen.faults = append(gen.faults, err)
			continue
		}
		gen.books = append(gen.books, book)
		gen.byID[book.Id] = book
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}

	slices.SortFunc(gen.books, func(a, b *core.Book) int {
		switch {
		case a.Id < b.Id:
			return -1
		case a.Id > b.Id:
			return 1
		}
		return 0
	})
	gen.loadedAt = time.Now()

	s.logger.Info("corpus loaded",
		"books", len(gen.books),
		"faults", len(gen.faults),
		"duration", time.Since(start))
	return gen, nil
}

func (s *Snapshot) snapshot() *generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Len returns the number of books in the current snapshot.
func (s *Snapshot) Len() int {
	return len(s.snapshot().books)
}

// LoadedAt returns when the current snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.snapshot().loadedAt
}

// Faults returns the decode errors encountered while building the current snapshot.
func (s *Snapshot) Faults() []error {
	return slices.Clone(s.snapshot().faults)
}

// ListBooks returns one 1-based page of books in id order and the total count.
func (s *Snapshot) ListBooks(ctx context.Context, page, limit int) ([]*core.Book, int, error) {
	if page < 1 || limit < 1 {
		return nil, 0, fmt.Errorf("%w: page=%d limit=%d", storage.ErrInvalidQuery, page, limit)
	}

	books := s.snapshot().books
	total := len(books)
	start := (page - 1) * limit
	if start >= total {
		return []*core.Book{}, total, nil
	}
	end := min(start+limit, total)
	return slices.Clone(books[start:end]), total, nil
}

// GetBook returns the book with the given id.
func (s *Snapshot) GetBook(ctx context.Context, id core.ID) (*core.Book, error) {
	book, ok := s.snapshot().byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", storage.ErrNotFound, id)
	}
	return book, nil
}

// ScanBooks iterates the snapshot that is current when iteration begins.
// Books that failed to load are replayed as errors after the readable books.
func (s *Snapshot) ScanBooks(ctx context.Context) iter.Seq2[*core.Book, error] {
	return func(yield func(*core.Book, error) bool) {
		gen := s.snapshot()
		for _, book := range gen.books {
			if ctx.Err() != nil {
				return
			}
			if !yield(book, nil) {
				return
			}
		}
		for _, fault := range gen.faults {
			if !yield(nil, fault) {
				return
			}
		}
	}
}
