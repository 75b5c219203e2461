package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits after the last change before importing.
const DefaultDebounce = 500 * time.Millisecond

// ImportFunc is called after each import triggered by the watcher.
type ImportFunc func(ctx context.Context, report *Report) error

// Watcher re-imports a directory whenever supported files in it change.
// Bursts of events are collapsed into a single import.
type Watcher struct {
	importer *Importer
	dir      string
	debounce time.Duration
	onImport ImportFunc
	logger   *slog.Logger
}

// NewWatcher creates a watcher for dir. onImport may be nil.
func NewWatcher(importer *Importer, dir string, debounce time.Duration, onImport ImportFunc, logger *slog.Logger) (*Watcher, error) {
	if importer == nil {
		return nil, ErrImporterRequired
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		importer: importer,
		dir:      dir,
		debounce: debounce,
		onImport: onImport,
		logger:   logger.With("component", "watcher", "dir", dir),
	}, nil
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.dir); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	w.logger.Info("watching for new books")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fsw, event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "err", err)
		case <-fire:
			fire = nil
			w.sync(ctx)
		}
	}
}

// relevant reports whether an event should trigger an import.
// Newly created directories are added to the watch as a side effect.
func (w *Watcher) relevant(fsw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "err", err)
			}
			return true
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return isSupported(event.Name)
}

func (w *Watcher) sync(ctx context.Context) {
	report, err := w.importer.ImportPaths(ctx, w.dir)
	if err != nil {
		w.logger.Error("import failed", "err", err)
		return
	}
	if w.onImport == nil {
		return
	}
	if err := w.onImport(ctx, report); err != nil {
		w.logger.Error("post-import hook failed", "err", err)
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}
