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


package bookgrep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/bookgrep/audit"
	"github.com/poiesic/bookgrep/config"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/corpus"
	"github.com/poiesic/bookgrep/ingestion"
	"github.com/poiesic/bookgrep/search"
	"github.com/poiesic/bookgrep/storage"
	"github.com/poiesic/bookgrep/storage/badger"
)

// Library wires the book store, the in-memory corpus, the searcher and the
// importer together.
type Library struct {
	cfg      *config.Config
	backend  *badger.Backend
	repo     *badger.BookRepository
	snapshot *corpus.Snapshot
	searcher *search.Searcher
	importer *ingestion.Importer
	logger   *slog.Logger
}

// Option configures a Library.
type Option func(*libraryOptions)

type libraryOptions struct {
	logger   *slog.Logger
	progress io.Writer
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *libraryOptions) {
		o.logger = logger
	}
}

// WithProgress reports import progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *libraryOptions) {
		o.progress = w
	}
}

// Open opens the book store described by cfg and loads its books into memory.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Library, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Apply options
	options := &libraryOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger

	// Open backend
	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory, badger.WithBackendLogger(logger))
	if err != nil {
		return nil, err
	}

	// Create book repository
	repo, err := badger.NewBookRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Load the corpus snapshot
	snapshot, err := corpus.Load(ctx, repo, corpus.WithLogger(logger))
	if err != nil {
		repo.Close()
		backend.Close()
		return nil, err
	}

	// Create searcher over the snapshot
	scorer, err := search.ScorerByName(cfg.Search.Scorer, cfg.Search.DensityUnit)
	if err != nil {
		repo.Close()
		backend.Close()
		return nil, err
	}
	searchOpts := []search.Option{
		search.WithLogger(logger),
		search.WithScorer(scorer),
		search.WithCacheSize(cfg.Search.MatcherCacheSize),
	}
	if cfg.Search.Workers > 0 {
		searchOpts = append(searchOpts, search.WithPoolSize(cfg.Search.Workers))
	}
	searcher, err := search.NewSearcher(snapshot, searchOpts...)
	if err != nil {
		repo.Close()
		backend.Close()
		return nil, err
	}

	// Create importer over the repository
	importOpts := []ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		ingestion.WithRetry(cfg.Ingestion.MaxRetries, cfg.Ingestion.RetryDelay),
		ingestion.WithProgress(options.progress),
	}
	if cfg.Ingestion.Workers > 0 {
		importOpts = append(importOpts, ingestion.WithPoolSize(cfg.Ingestion.Workers))
	}
	importer, err := ingestion.NewImporter(repo, importOpts...)
	if err != nil {
		searcher.Release()
		repo.Close()
		backend.Close()
		return nil, err
	}

	logger.Info("library opened",
		"path", cfg.Storage.Path,
		"in_memory", cfg.Storage.InMemory,
		"books", snapshot.Len())

	return &Library{
		cfg:      cfg,
		backend:  backend,
		repo:     repo,
		snapshot: snapshot,
		searcher: searcher,
		importer: importer,
		logger:   logger,
	}, nil
}

// Close stops the worker pools and closes the store. The backend is closed
// even when closing the repository fails.
func (l *Library) Close() error {
	// Stop workers first
	l.importer.Release()
	l.searcher.Release()

	return closeAll(l.logger,
		namedCloser{"book repository", l.repo},
		namedCloser{"backend storage", l.backend},
	)
}

type namedCloser struct {
	name string
	io.Closer
}

// closeAll closes every closer in order and joins their errors.
func closeAll(logger *slog.Logger, closers ...namedCloser) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Error("error closing "+c.name, "err", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}

// SearchBooks parses modeToken and searches every book for pattern.
// An unknown token fails with core.ErrInvalidMode before any book is read.
func (l *Library) SearchBooks(ctx context.Context, pattern, modeToken string) ([]*core.SearchResult, error) {
	mode, err := core.ParseMode(modeToken)
	if err != nil {
		return nil, err
	}
	return l.searcher.Search(ctx, pattern, mode)
}

// Search runs q, reporting scan progress to monitor. monitor may be nil.
func (l *Library) Search(ctx context.Context, q core.Query, monitor search.SearchMonitor) ([]*core.SearchResult, error) {
	return l.searcher.SearchWithMonitor(ctx, q, monitor)
}

// ListBooks returns one page of books ordered by id, and the total count.
func (l *Library) ListBooks(ctx context.Context, page, limit int) ([]*core.Book, int, error) {
	return l.snapshot.ListBooks(ctx, page, limit)
}

// GetBook returns the book with id, or storage.ErrNotFound.
func (l *Library) GetBook(ctx context.Context, id core.ID) (*core.Book, error) {
	return l.snapshot.GetBook(ctx, id)
}

// Len returns the number of searchable books.
func (l *Library) Len() int {
	return l.snapshot.Len()
}

// Import reads books from paths into the store and refreshes the searchable
// corpus when anything new was written.
func (l *Library) Import(ctx context.Context, paths ...string) (*ingestion.Report, error) {
	report, err := l.importer.ImportPaths(ctx, paths...)
	if report != nil && report.Imported > 0 {
		if reloadErr := l.Reload(ctx); reloadErr != nil {
			return report, errors.Join(err, reloadErr)
		}
	}
	return report, err
}

// Reload re-reads the store into the searchable corpus.
func (l *Library) Reload(ctx context.Context) error {
	if err := l.snapshot.Reload(ctx); err != nil {
		l.logger.Error("corpus reload failed", "err", err)
		return err
	}
	l.logger.Info("corpus reloaded", "books", l.snapshot.Len())
	return nil
}

// Audit checks every stored record and, when fix is set, removes corrupt and
// duplicate ones. The corpus is reloaded after anything is removed.
func (l *Library) Audit(ctx context.Context, fix bool, progress io.Writer) (*audit.Report, error) {
	auditor := audit.NewAuditor(l.repo, &audit.Config{
		BatchSize:      l.cfg.Ingestion.BatchSize,
		ReportInterval: 100,
		MaxRetries:     l.cfg.Ingestion.MaxRetries,
		RetryDelay:     l.cfg.Ingestion.RetryDelay,
	}, progress)

	report, err := auditor.Run(ctx, fix)
	if report != nil && report.Removed > 0 {
		if reloadErr := l.Reload(ctx); reloadErr != nil {
			return report, errors.Join(err, reloadErr)
		}
	}
	return report, err
}

// NewWatcher returns a watcher that imports dir on change and reloads the
// corpus after each import that wrote books.
func (l *Library) NewWatcher(dir string) (*ingestion.Watcher, error) {
	return ingestion.NewWatcher(l.importer, dir, l.cfg.Ingestion.Debounce,
		func(ctx context.Context, report *ingestion.Report) error {
			if report.Imported == 0 {
				return nil
			}
			return l.Reload(ctx)
		}, l.logger)
}

// Repository returns the persistent book store.
func (l *Library) Repository() storage.BookRepository {
	return l.repo
}

// Snapshot returns the in-memory corpus searches run over.
func (l *Library) Snapshot() *corpus.Snapshot {
	return l.snapshot
}

// Searcher returns the underlying searcher.
func (l *Library) Searcher() *search.Searcher {
	return l.searcher
}
