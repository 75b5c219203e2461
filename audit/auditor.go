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


package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/ingestion"
	"github.com/poiesic/bookgrep/storage"
)

// Kind classifies a finding.
type Kind string

const (
	KindCorrupt   Kind = "corrupt"
	KindDuplicate Kind = "duplicate"
	KindInvalid   Kind = "invalid"
	KindMismatch  Kind = "checksum-mismatch"
)

// fixable kinds are removed by Run when fix is set.
var fixable = []Kind{KindCorrupt, KindDuplicate}

// Finding is one problem record.
type Finding struct {
	ID   core.ID
	Kind Kind
	Err  error
}

// Report summarizes an audit.
type Report struct {
	Scanned  int
	Findings []Finding
	Removed  int
}

// Count returns the number of findings of kind.
func (r *Report) Count(kind Kind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// Healthy reports whether nothing was found.
func (r *Report) Healthy() bool {
	return len(r.Findings) == 0
}

// Config holds configuration for an audit.
type Config struct {
	// BatchSize is the number of records removed per transaction
	BatchSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a failed removal
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     50 * time.Millisecond,
	}
}

// Auditor walks every record in a repository.
type Auditor struct {
	repo     storage.BookRepository
	config   *Config
	progress io.Writer
}

// NewAuditor creates a new auditor.
// progress: where to write progress output (typically os.Stderr); nil discards it
func NewAuditor(repo storage.BookRepository, config *Config, progress io.Writer) *Auditor {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Auditor{
		repo:     repo,
		config:   config,
		progress: progress,
	}
}

// Run scans the repository and, when fix is set, removes corrupt and
// duplicate records in batches.
func (a *Auditor) Run(ctx context.Context, fix bool) (*Report, error) {
	total, err := a.repo.CountBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count books: %w", err)
	}

	report := &Report{}
	if total == 0 {
		fmt.Fprintf(a.progress, "No books found in database (0 records)\n")
		return report, nil
	}
	fmt.Fprintf(a.progress, "Auditing %d records\n", total)

	tracker := ingestion.NewProgressTracker(a.progress, total, a.config.ReportInterval)
	tracker.Start()

	seen := make(map[core.ID]core.ID)
	for book, err := range a.repo.ScanBooks(ctx) {
		report.Scanned++
		tracker.Increment(1)

		if err != nil {
			var decodeErr *storage.DecodeError
			if !errors.As(err, &decodeErr) {
				return report, fmt.Errorf("scan failed: %w", err)
			}
			report.Findings = append(report.Findings, Finding{ID: decodeErr.ID, Kind: KindCorrupt, Err: err})
			continue
		}

		sum := core.IDFromContent(book.Content)
		if first, dup := seen[sum]; dup {
			report.Findings = append(report.Findings, Finding{
				ID:   book.Id,
				Kind: KindDuplicate,
				Err:  fmt.Errorf("same content as book %d", first),
			})
			continue
		}
		seen[sum] = book.Id

		if err := core.ValidateBook(book); err != nil {
			report.Findings = append(report.Findings, Finding{ID: book.Id, Kind: KindInvalid, Err: err})
		}
		if book.Checksum != sum {
			report.Findings = append(report.Findings, Finding{
				ID:   book.Id,
				Kind: KindMismatch,
				Err:  fmt.Errorf("stored checksum %d, content hashes to %d", book.Checksum, sum),
			})
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	tracker.Finish()

	if fix {
		removed, err := a.remove(ctx, report.Findings)
		report.Removed = removed
		if err != nil {
			return report, err
		}
	}

	fmt.Fprintf(a.progress, "Audit complete. Scanned %d records in %v: %d corrupt, %d duplicate, %d invalid, %d mismatched, %d removed\n",
		report.Scanned, tracker.Elapsed().Round(time.Millisecond),
		report.Count(KindCorrupt), report.Count(KindDuplicate),
		report.Count(KindInvalid), report.Count(KindMismatch), report.Removed)
	return report, nil
}

func (a *Auditor) remove(ctx context.Context, findings []Finding) (int, error) {
	var ids []core.ID
	for _, f := range findings {
		if slices.Contains(fixable, f.Kind) {
			ids = append(ids, f.ID)
		}
	}

	removed := 0
	for batch := range slices.Chunk(ids, max(a.config.BatchSize, 1)) {
		err := ingestion.RetryWithBackoff(ctx, func() error {
			return a.repo.DeleteBooks(ctx, batch...)
		}, isTransient, max(a.config.MaxRetries, 1), a.config.RetryDelay)
		if err != nil {
			return removed, fmt.Errorf("failed to remove %d records: %w", len(batch), err)
		}
		removed += len(batch)
	}
	return removed, nil
}

func isTransient(err error) bool {
	return errors.Is(err, storage.ErrTransactionFailed)
}
