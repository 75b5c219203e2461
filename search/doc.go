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


// Package search implements pattern search over a book corpus.
//
// A query is a pattern plus a mode. Compile turns it into a Matcher:
//   - keyword: case-insensitive literal, non-overlapping count
//   - regex: case-insensitive RE2 expression, non-overlapping count
//   - kmp: case-insensitive literal, overlapping count (Knuth-Morris-Pratt)
//
// The Searcher scans every document on a worker pool, drops documents with no
// occurrences, scores the rest with a Scorer and returns them ranked by
// occurrence, then relevance, then id. There is no index: every query reads
// the whole corpus.
//
// Documents that cannot be read or scanned are skipped. Each one is logged and
// reported to the SearchMonitor as a ScanFault; the search itself still succeeds.
package search
