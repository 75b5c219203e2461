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


package ingestion

import "errors"

var (
	// ErrRepositoryRequired is returned when a book repository is not provided.
	ErrRepositoryRequired = errors.New("book repository required")

	// ErrImporterRequired is returned when a watcher is created without an importer.
	ErrImporterRequired = errors.New("importer required")

	// ErrParseFailed indicates a source file could not be turned into a book.
	ErrParseFailed = errors.New("parse failed")

	// ErrUnsupportedFormat indicates a file extension the importer does not read.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrInvalidMaxAttempts is returned when maxAttempts is less than 1.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be at least 1")
)
