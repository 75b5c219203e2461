package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/bookgrep/core"
	"github.com/poiesic/bookgrep/storage"
)

const (
	defaultBatchSize  = 8
	defaultMaxRetries = 3
	defaultRetryDelay = 50 * time.Millisecond
)

// Importer loads books from files into a repository.
// Files are parsed concurrently; books are written in id order of the sorted file list.
type Importer struct {
	repo       storage.BookRepository
	pool       *ants.Pool
	batchSize  int
	maxRetries int
	retryDelay time.Duration
	progress   io.Writer
	logger     *slog.Logger
}

// Report summarizes one import run.
type Report struct {
	Files    int     // source files read
	Imported int     // books written
	Skipped  int     // books whose content was already stored
	Failed   int     // files or entries that could not be parsed
	Errors   []error // parse problems, one per failure
}

// Option configures an Importer.
type Option func(*Importer) error

// WithPoolSize sets the number of files parsed concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(im *Importer) error {
		if size < 1 {
			size = 1
		}
		if im.pool != nil {
			im.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		im.pool = pool
		return nil
	}
}

// WithBatchSize sets how many books are written per transaction.
func WithBatchSize(size int) Option {
	return func(im *Importer) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		im.batchSize = size
		return nil
	}
}

// WithRetry sets how often a failed write transaction is attempted and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(im *Importer) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		im.maxRetries = maxAttempts
		im.retryDelay = baseDelay
		return nil
	}
}

// WithProgress writes a progress line to w while parsing.
func WithProgress(w io.Writer) Option {
	return func(im *Importer) error {
		im.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) error {
		if logger == nil {
			logger = slog.Default()
		}
		im.logger = logger
		return nil
	}
}

// NewImporter creates an importer writing to repo.
// Call Release when done to stop the parse pool.
func NewImporter(repo storage.BookRepository, opts ...Option) (*Importer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	im := &Importer{
		repo:       repo,
		pool:       pool,
		batchSize:  defaultBatchSize,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(im); optErr != nil {
			im.Release()
			return nil, optErr
		}
	}

	return im, nil
}

// Release stops the parse pool. Safe to call more than once.
func (im *Importer) Release() {
	if im.pool != nil {
		im.pool.Release()
	}
}

// parsed is the outcome of reading one source file.
type parsed struct {
	books []*core.Book
	errs  []error
}

// ImportPaths imports every supported file under the given files and directories.
// Directories are walked recursively; .txt files are read as Gutenberg ebooks
// and .json files as catalogs. Unparseable files are counted and reported but
// do not stop the import.
func (im *Importer) ImportPaths(ctx context.Context, paths ...string) (*Report, error) {
	files, err := collectFiles(paths)
	if err != nil {
		return nil, err
	}

	report := &Report{Files: len(files)}
	if len(files) == 0 {
		return report, nil
	}

	tracker := NewProgressTracker(im.progress, len(files), 1)
	tracker.Start()

	results := make([]parsed, len(files))
	var wg sync.WaitGroup
	for i, file := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := im.pool.Submit(func() {
			defer wg.Done()
			results[i] = parseFile(file)
			tracker.Increment(1)
		})
		if submitErr != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit parse task: %w", submitErr)
		}
	}
	wg.Wait()
	if im.progress != nil {
		tracker.Finish()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var books []*core.Book
	for i, res := range results {
		for _, perr := range res.errs {
			im.logger.Warn("skipping unparseable source", "file", files[i], "err", perr)
			report.Failed++
			report.Errors = append(report.Errors, perr)
		}
		books = append(books, res.books...)
	}

	stored, err := im.ImportBooks(ctx, books...)
	if stored != nil {
		report.Imported = stored.Imported
		report.Skipped = stored.Skipped
	}
	if err != nil {
		return report, err
	}

	im.logger.Info("import complete",
		"files", report.Files,
		"imported", report.Imported,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"duration", tracker.Elapsed())
	return report, nil
}

// ImportBooks stores already-parsed books, skipping any whose content is
// already present in the repository or earlier in the same call.
func (im *Importer) ImportBooks(ctx context.Context, books ...*core.Book) (*Report, error) {
	report := &Report{}
	seen := make(map[core.ID]struct{}, len(books))
	pending := make([]*core.Book, 0, len(books))

	for _, book := range books {
		sum := core.IDFromContent(book.Content)
		if _, dup := seen[sum]; dup {
			report.Skipped++
			continue
		}
		seen[sum] = struct{}{}

		_, err := im.repo.FindByChecksum(ctx, sum)
		switch {
		case err == nil:
			im.logger.Debug("book already stored", "title", book.Title)
			report.Skipped++
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return report, fmt.Errorf("checking for existing book %q: %w", book.Title, err)
		}
		pending = append(pending, book)
	}

	for batch := range slices.Chunk(pending, im.batchSize) {
		added, skipped, err := im.writeBatch(ctx, batch)
		report.Imported += added
		report.Skipped += skipped
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// writeBatch stores one batch with retry. A batch that collides with content
// written concurrently is retried one book at a time.
func (im *Importer) writeBatch(ctx context.Context, batch []*core.Book) (added, skipped int, err error) {
	err = im.add(ctx, batch...)
	if err == nil {
		return len(batch), 0, nil
	}
	if !errors.Is(err, storage.ErrDuplicateKey) {
		return 0, 0, err
	}

	for _, book := range batch {
		switch err := im.add(ctx, book); {
		case err == nil:
			added++
		case errors.Is(err, storage.ErrDuplicateKey):
			skipped++
		default:
			return added, skipped, err
		}
	}
	return added, skipped, nil
}

func (im *Importer) add(ctx context.Context, books ...*core.Book) error {
	return RetryWithBackoff(ctx, func() error {
		_, err := im.repo.AddBooks(ctx, books...)
		return err
	}, isTransient, im.maxRetries, im.retryDelay)
}

func isTransient(err error) bool {
	return errors.Is(err, storage.ErrTransactionFailed)
}

func parseFile(path string) parsed {
	f, err := os.Open(path)
	if err != nil {
		return parsed{errs: []error{fmt.Errorf("%w: %w", ErrParseFailed, err)}}
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		book, err := ParseGutenberg(path, f)
		if err != nil {
			return parsed{errs: []error{err}}
		}
		return parsed{books: []*core.Book{book}}
	case ".json":
		books, problems, err := ParseCatalog(path, f)
		if err != nil {
			return parsed{errs: []error{err}}
		}
		return parsed{books: books, errs: problems}
	}
	return parsed{errs: []error{fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)}}
}

// collectFiles expands paths into a sorted, de-duplicated list of importable files.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if !isSupported(path) {
				return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
			}
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isSupported(p) && !strings.HasPrefix(d.Name(), ".") {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

func isSupported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".json":
		return true
	}
	return false
}
