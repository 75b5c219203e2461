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
	"errors"
	"fmt"

	"github.com/poiesic/bookgrep/core"
)

var (
	// ErrNotFound indicates that the requested book was not found.
	ErrNotFound = errors.New("book not found")

	// ErrDuplicateKey indicates a book with the same content is already stored.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrTransactionFailed indicates that a write transaction could not be committed.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrInvalidQuery indicates invalid listing parameters.
	ErrInvalidQuery = errors.New("invalid query parameters")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrTruncatedData indicates a stored value had bytes left over after decoding.
	ErrTruncatedData = errors.New("truncated data")
)

// DecodeError reports a stored book that could not be decoded.
// Corpus scans yield it in place of the book so callers can skip the record.
type DecodeError struct {
	ID  core.ID
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode book %d: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
