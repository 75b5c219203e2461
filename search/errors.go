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


package search

import (
	"errors"
	"fmt"

	"github.com/poiesic/bookgrep/core"
)

var (
	// ErrCorpusRequired is returned when a corpus is not provided.
	ErrCorpusRequired = errors.New("corpus required")

	// ErrUnknownScorer is returned for a scorer name that is not registered.
	ErrUnknownScorer = errors.New("unknown scorer")

	// ErrDocumentScanFault marks a document that was skipped during a search.
	ErrDocumentScanFault = errors.New("document scan fault")
)

// ScanFault describes a document that could not be scanned.
// The search continues without it.
type ScanFault struct {
	BookID core.ID
	Err    error
}

func (f *ScanFault) Error() string {
	return fmt.Sprintf("%v: book %d: %v", ErrDocumentScanFault, f.BookID, f.Err)
}

func (f *ScanFault) Unwrap() []error {
	return []error{ErrDocumentScanFault, f.Err}
}
