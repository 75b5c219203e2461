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


package core

import (
	"fmt"
	"strings"
	"time"
)

// ValidateBook validates a Book according to domain rules.
//
// Validation rules:
//   - Title must not be blank
//   - Content must not be empty
//   - ReleaseDate must not be in the future
//
// NOT validated:
//   - Author (importers substitute "Unknown")
//   - ID (assigned from the storage sequence)
//   - Checksum (computed on insert)
func ValidateBook(book *Book) error {
	if book == nil {
		return fmt.Errorf("%w: book is nil", ErrInvalidBook)
	}

	if strings.TrimSpace(book.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBook, ErrEmptyTitle)
	}

	if book.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBook, ErrEmptyContent)
	}

	if !IsValidReleaseDate(book.ReleaseDate) {
		return fmt.Errorf("%w: %w", ErrInvalidBook, ErrInvalidReleaseDate)
	}

	return nil
}

// IsValidReleaseDate checks that a release date is not in the future.
// The zero time is accepted for books without a known date.
func IsValidReleaseDate(ts time.Time) bool {
	return !ts.After(time.Now())
}
