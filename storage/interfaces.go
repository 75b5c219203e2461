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


package storage

import (
	"context"
	"iter"

	"github.com/poiesic/bookgrep/core"
)

// Corpus is the read-only view of the document collection used by the
// search engine and the HTTP listing endpoints.
type Corpus interface {
	// ListBooks returns one page of books ordered by id, plus the total number
	// of books. Pages are 1-based. Returns ErrInvalidQuery if page or limit is
	// less than 1. A page past the end yields an empty slice.
	ListBooks(ctx context.Context, page, limit int) ([]*core.Book, int, error)

	// GetBook retrieves a single book by ID.
	// Returns ErrNotFound if the book doesn't exist.
	GetBook(ctx context.Context, id core.ID) (*core.Book, error)

	// ScanBooks iterates every book in id order, bypassing pagination.
	// Records that fail to decode are yielded as (nil, err) and iteration continues.
	ScanBooks(ctx context.Context) iter.Seq2[*core.Book, error]
}

// BookRepository provides read and write operations for books.
type BookRepository interface {
	Corpus

	// AddBooks stores one or more books.
	// IDs are always generated from the repository sequence and Checksum is
	// computed from Content. Returns ErrDuplicateKey, and stores nothing, if
	// any book's content is already present.
	AddBooks(ctx context.Context, books ...*core.Book) ([]*core.Book, error)

	// DeleteBooks removes books by their IDs.
	// Returns ErrNotFound if any book doesn't exist.
	DeleteBooks(ctx context.Context, ids ...core.ID) error

	// FindByChecksum looks up a book by its content fingerprint.
	// Returns ErrNotFound if no book has that checksum.
	FindByChecksum(ctx context.Context, checksum core.ID) (*core.Book, error)

	// CountBooks returns the number of stored books.
	CountBooks(ctx context.Context) (int, error)

	// Close releases repository resources. It does not close the backend.
	Close() error
}
