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


// Package corpus holds the process-wide, read-only copy of the book collection
// that searches scan.
//
// A Snapshot is loaded once from a storage.Corpus and never mutated. Reload
// builds a fresh copy and swaps it in under a write lock; scans that started
// before the swap keep iterating the copy they began with.
package corpus
