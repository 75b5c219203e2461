package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/storage"
)

// DefaultCacheSize is the number of compiled matchers kept by default.
const DefaultCacheSize = 256

// Searcher runs pattern queries over every document in a corpus.
type Searcher struct {
	corpus    storage.Corpus
	scorer    Scorer
	pool      *ants.Pool
	matchers  *lru.Cache[string, Matcher]
	poolSize  int
	cacheSize int
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithPoolSize sets the number of documents scanned concurrently.
// Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(s *Searcher) error {
		if size <= 0 {
			return fmt.Errorf("pool size must be positive, got %d", size)
		}
		s.poolSize = size
		return nil
	}
}

// WithCacheSize sets how many compiled matchers are cached.
func WithCacheSize(size int) Option {
	return func(s *Searcher) error {
		if size <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", size)
		}
		s.cacheSize = size
		return nil
	}
}

// WithScorer replaces the default DensityScorer.
func WithScorer(scorer Scorer) Option {
	return func(s *Searcher) error {
		if scorer == nil {
			return errors.New("scorer cannot be nil")
		}
		s.scorer = scorer
		return nil
	}
}

// NewSearcher creates a new searcher over corpus.
// Call Release when done to stop the worker pool.
func NewSearcher(corpus storage.Corpus, opts ...Option) (*Searcher, error) {
	if corpus == nil {
		return nil, ErrCorpusRequired
	}

	s := &Searcher{
		corpus:    corpus,
		scorer:    DensityScorer{Unit: DefaultDensityUnit},
		poolSize:  runtime.NumCPU(),
		cacheSize: DefaultCacheSize,
		logger:    slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	matchers, err := lru.New[string, Matcher](s.cacheSize)
	if err != nil {
		return nil, err
	}
	s.matchers = matchers

	pool, err := ants.NewPool(s.poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create scan pool: %w", err)
	}
	s.pool = pool

	return s, nil
}

// Release stops the worker pool. Searches after Release fail.
func (s *Searcher) Release() {
	s.pool.Release()
}

// Compile returns the matcher for q, reusing a cached one when available.
// The boolean reports whether the matcher came from the cache.
func (s *Searcher) Compile(q core.Query) (Matcher, bool, error) {
	key := string(q.Mode) + "\x00" + strings.TrimSpace(q.Pattern)
	if m, ok := s.matchers.Get(key); ok {
		return m, true, nil
	}

	m, err := Compile(q)
	if err != nil {
		return nil, false, err
	}
	s.matchers.Add(key, m)
	return m, false, nil
}

// Search scans every document for pattern using mode and returns the documents
// with at least one occurrence, ranked by occurrence, then relevance, then id.
// No matches yields an empty slice and a nil error.
func (s *Searcher) Search(ctx context.Context, pattern string, mode core.Mode) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, core.Query{Pattern: pattern, Mode: mode}, nil)
}

// SearchWithMonitor is Search with callbacks at each stage of the scan.
// Pattern and mode errors are returned before any document is read.
// Documents that cannot be scanned are skipped, logged and reported to the monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, q core.Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(q)
	start := time.Now()

	matcher, cached, err := s.Compile(q)
	if err != nil {
		s.logger.Debug("rejected query", "mode", q.Mode, "pattern", q.Pattern, "err", err)
		return nil, err
	}
	monitor.Compiled(matcher, cached)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make([]*core.SearchResult, 0)
		faults  int
	)

	fault := func(f *ScanFault) {
		s.logger.Warn("skipping document", "id", f.BookID, "err", f.Err)
		monitor.DocumentFault(f)
		mu.Lock()
		faults++
		mu.Unlock()
	}

	for book, err := range s.corpus.ScanBooks(ctx) {
		if err != nil {
			fault(faultFromError(err))
			continue
		}
		if book == nil {
			continue
		}

		wg.Add(1)
		submitErr := s.pool.Submit(func() {
			defer wg.Done()

			match, f := s.scan(matcher, book)
			if f != nil {
				fault(f)
				return
			}
			monitor.DocumentScanned(book.Id, match.Occurrence)
			if match.Occurrence == 0 {
				return
			}

			mu.Lock()
			results = append(results, core.NewSearchResult(book, match))
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit scan task: %w", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sortResults(results)
	monitor.Finish(results)

	s.logger.Debug("search complete",
		"mode", matcher.Mode(),
		"pattern", matcher.Pattern(),
		"results", len(results),
		"faults", faults,
		"duration", time.Since(start))

	return results, nil
}

// scan counts and scores one document, converting a panic into a fault.
func (s *Searcher) scan(matcher Matcher, book *core.Book) (match core.MatchResult, fault *ScanFault) {
	defer func() {
		if r := recover(); r != nil {
			fault = &ScanFault{BookID: book.Id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	match.Id = book.Id
	match.Occurrence = matcher.Count(book.Content)
	if match.Occurrence > 0 {
		match.Relevance = s.scorer.Score(match.Occurrence, book)
	}
	return match, nil
}

func faultFromError(err error) *ScanFault {
	var decodeErr *storage.DecodeError
	if errors.As(err, &decodeErr) {
		return &ScanFault{BookID: decodeErr.ID, Err: err}
	}
	return &ScanFault{Err: err}
}

// sortResults orders by occurrence desc, relevance desc, then id asc.
func sortResults(results []*core.SearchResult) {
	slices.SortFunc(results, rank)
}
