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


// Package api serves the book search HTTP interface.
//
// Routes:
//
//	POST /api/books/search-books   {"pattern": "...", "type": "keyword|regex|kmp"}
//	GET  /api/books/books          ?page=1&limit=9
//	GET  /api/books/book/{id}
//	GET  /healthz
//
// Errors are written as {"error": code, "message": text}. Patterns shorter
// than the configured minimum are rejected before searching and longer ones
// are truncated. Search responses carry X-Scan-Faults with the number of books
// that could not be scanned.
package api
