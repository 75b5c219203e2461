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


// Package storage provides the storage abstraction layer for bookgrep.
//
// This package defines the corpus and repository interfaces that decouple the
// search engine from where books live. The engine only ever reads through
// Corpus; BookRepository adds the write side used by importers.
//
// # Architecture
//
//   - Corpus: read-only access (paged listing, lookup by id, full scan)
//   - BookRepository: Corpus plus insert, delete and count
//   - badger subpackage: persistent BadgerDB implementation
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	defer repo.Close()
//
// # Scanning
//
// ScanBooks yields (book, nil) for every readable record and (nil, err) for
// records that could not be decoded, so callers can skip a damaged document
// and keep going. Iteration stops early when the consumer stops ranging or
// the context is cancelled.
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
package storage
