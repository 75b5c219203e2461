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


// Package audit checks a book store for records that searches would skip or
// that would block future imports, and optionally removes them.
//
// A record is reported when it:
//   - no longer decodes (corrupt)
//   - repeats the content of a lower-numbered book (duplicate)
//   - fails book validation, such as an empty title (invalid)
//   - carries a checksum that does not match its content (mismatch)
//
// Corrupt and duplicate records are removed when fixing; the others are only
// reported since removing them would lose readable text.
//
// Usage:
//
//	auditor := audit.NewAuditor(repo, audit.DefaultConfig(), os.Stderr)
//	report, err := auditor.Run(ctx, false)
package audit
